// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
// 服务端与 hannactl 共用同一份结构，各取所需。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Client   ClientConfig   `mapstructure:"client"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// MaxBodyBytes 对齐原 express.json({ limit: "1mb" })
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// DatabaseConfig 存储服务端数据库连接的配置。
type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空表示不启用。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey         string              `mapstructure:"api_key"`
	BaseURL        string              `mapstructure:"base_url"`
	Model          string              `mapstructure:"model"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	Generation     LLMGenerationConfig `mapstructure:"generation"`
	// CodeGeneration 用于代码助手模式，通常需要更低的温度与更大的输出。
	CodeGeneration LLMGenerationConfig `mapstructure:"code_generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	Endpoint            string `mapstructure:"endpoint"`
	AccessKeyID         string `mapstructure:"access_key_id"`
	SecretAccessKey     string `mapstructure:"secret_access_key"`
	UseSSL              bool   `mapstructure:"use_ssl"`
	BucketName          string `mapstructure:"bucket_name"`
	PresignExpiryMinute int    `mapstructure:"presign_expiry_minutes"`
}

// ClientConfig 是 hannactl 的配置。
type ClientConfig struct {
	Endpoint       string            `mapstructure:"endpoint"`
	Level          string            `mapstructure:"level"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds"`
	Persistence    PersistenceConfig `mapstructure:"persistence"`
}

// PersistenceConfig 选择消息存储使用的 blob 驱动。
type PersistenceConfig struct {
	// Driver: sqlite | file | redis | mysql | memory
	Driver   string      `mapstructure:"driver"`
	Key      string      `mapstructure:"key"`
	Path     string      `mapstructure:"path"`
	DSN      string      `mapstructure:"dsn"`
	TTLHours int         `mapstructure:"ttl_hours"`
	Redis    RedisConfig `mapstructure:"redis"`
}

// Timeout 返回 LLM 请求超时时间。
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout 返回客户端单次交换的超时时间，0 表示不限制。
func (c ClientConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "4000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("database.redis.addr", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.generation.temperature", 0.7)
	v.SetDefault("llm.generation.top_p", 0)
	v.SetDefault("llm.generation.max_tokens", 1000)
	v.SetDefault("llm.code_generation.temperature", 0.2)
	v.SetDefault("llm.code_generation.top_p", 0)
	v.SetDefault("llm.code_generation.max_tokens", 2000)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "hanna-exchanges")
	v.SetDefault("kafka.group_id", "hanna-chat-go-stats")

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "hanna-transcripts")
	v.SetDefault("minio.presign_expiry_minutes", 60)

	v.SetDefault("client.endpoint", "http://localhost:4000/api/chat")
	v.SetDefault("client.level", "Beginner")
	v.SetDefault("client.timeout_seconds", 0)
	v.SetDefault("client.persistence.driver", "sqlite")
	v.SetDefault("client.persistence.key", "chatbot-messages")
	v.SetDefault("client.persistence.path", "")
	v.SetDefault("client.persistence.dsn", "")
	v.SetDefault("client.persistence.ttl_hours", 0)
	v.SetDefault("client.persistence.redis.addr", "localhost:6379")
	v.SetDefault("client.persistence.redis.password", "")
	v.SetDefault("client.persistence.redis.db", 0)
}

// Load 读取 YAML 配置（文件可选），叠加环境变量后返回配置。
// 环境变量以 "_" 代替 "."，例如 LLM_MODEL；OPENAI_API_KEY 直接映射到 llm.api_key。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "OPENAI_API_KEY", "LLM_API_KEY"); err != nil {
		return nil, fmt.Errorf("绑定环境变量失败: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return &cfg, nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}
