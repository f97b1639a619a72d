package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/handler"
	"bankledger/internal/infrastructure/cache"
	"bankledger/internal/infrastructure/database"
	"bankledger/internal/job"
	"bankledger/internal/repository"
	"bankledger/internal/service"
	"bankledger/pkg/crypto"
	"bankledger/pkg/idgen"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 PII 编解码器
	codec, err := crypto.NewCodec(cfg.Crypto.Key, cfg.Crypto.Salt)
	if err != nil {
		log.Fatalf("初始化 PII 编解码器失败: %v", err)
	}

	// 初始化 MySQL
	db := database.InitMySQL(&cfg.MySQL)

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)
	accountCache := cache.NewAccountCache(redisClient,
		time.Duration(cfg.Business.CacheTTLSeconds)*time.Second)

	// 存储层
	accountRepo := repository.NewAccountRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	// 服务层
	accountService := service.NewAccountService(accountRepo, codec, accountCache, cfg.Business.DefaultCurrency)
	mutationService := service.NewMutationService(accountRepo, idempotencyRepo, codec, accountCache, service.MutationConfig{
		MaxRetryCount:   cfg.Business.MaxRetryCount,
		Retention:       time.Duration(cfg.Business.IdempotencyExpiryHours) * time.Hour,
		PendingWait:     time.Duration(cfg.Business.PendingWaitMillis) * time.Millisecond,
		DefaultCurrency: cfg.Business.DefaultCurrency,
	})

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	sweeper := job.NewIdempotencySweeper(idempotencyRepo,
		time.Duration(cfg.Business.SweepIntervalMinutes)*time.Minute)
	go sweeper.Start(ctx)

	// 设置路由
	h := handler.NewHandler(accountService, mutationService)
	router := handler.SetupRouter(h)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
