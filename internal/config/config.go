package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Crypto   CryptoConfig   `mapstructure:"crypto"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CryptoConfig PII 编解码器密钥，均为 base64
type CryptoConfig struct {
	Key  string `mapstructure:"key"`  // AES-256 密钥，32 字节
	Salt string `mapstructure:"salt"` // HMAC-SHA256 盐
}

type BusinessConfig struct {
	DefaultCurrency        string `mapstructure:"default_currency"`
	MaxRetryCount          int    `mapstructure:"max_retry_count"`           // 版本冲突重试上限
	IdempotencyExpiryHours int    `mapstructure:"idempotency_expiry_hours"`  // 幂等记录保留时长，至少 24
	SweepIntervalMinutes   int    `mapstructure:"sweep_interval_minutes"`    // 过期记录清理周期
	PendingWaitMillis      int    `mapstructure:"pending_wait_millis"`       // PENDING 记录等待先行请求的时长
	CacheTTLSeconds        int    `mapstructure:"cache_ttl_seconds"`         // 账户详情缓存时长
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
