package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"bankledger/internal/config"

	"github.com/go-redis/redis/v8"
)

var RedisClient *redis.Client

func InitRedis(cfg *config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("连接 Redis 失败: %v", err)
	}

	RedisClient = client
	log.Println("Redis 连接成功")
	return client
}

// AccountCache 账户详情读缓存
// 键为账号的查询哈希，值为详情 JSON；任何变更成功后调用 Invalidate
type AccountCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAccountCache(rdb *redis.Client, ttl time.Duration) *AccountCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AccountCache{rdb: rdb, ttl: ttl}
}

func (c *AccountCache) key(lookupHash string) string {
	return "account:detail:" + lookupHash
}

// Get 未命中时返回 nil, nil
func (c *AccountCache) Get(ctx context.Context, lookupHash string) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, c.key(lookupHash)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *AccountCache) Set(ctx context.Context, lookupHash string, payload []byte) error {
	return c.rdb.Set(ctx, c.key(lookupHash), payload, c.ttl).Err()
}

func (c *AccountCache) Invalidate(ctx context.Context, lookupHash string) error {
	return c.rdb.Del(ctx, c.key(lookupHash)).Err()
}
