package config

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	AI       AIConfig       `mapstructure:"ai"`
	Log      LogConfig      `mapstructure:"log"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Seed     SeedConfig     `mapstructure:"seed"`
	Identity IdentityConfig `mapstructure:"identity"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AIConfig 语言模型配置
type AIConfig struct {
	Provider     string          `mapstructure:"provider"`
	APIKey       string          `mapstructure:"api_key"`
	Model        string          `mapstructure:"model"`
	BaseURL      string          `mapstructure:"base_url"`
	Timeout      time.Duration   `mapstructure:"timeout"`       // 单次调用超时
	MaxRetries   int             `mapstructure:"max_retries"`   // 可重试错误的额外尝试次数
	RetryBackoff time.Duration   `mapstructure:"retry_backoff"` // 首次重试前的等待时间
	Options      AIOptionsConfig `mapstructure:"options"`
}

// AIOptionsConfig AI 模型参数
type AIOptionsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置，Addr 为空时不启用种子数据缓存
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SeedConfig GitHub 种子题库坐标
type SeedConfig struct {
	Owner      string        `mapstructure:"owner"`
	Repo       string        `mapstructure:"repo"`
	Path       string        `mapstructure:"path"`
	Branch     string        `mapstructure:"branch"`
	APIBaseURL string        `mapstructure:"api_base_url"`
	Token      string        `mapstructure:"token"` // 可选，提高 GitHub 限流额度
	Timeout    time.Duration `mapstructure:"timeout"`
	SampleSize int           `mapstructure:"sample_size"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// IdentityConfig 匿名客户端 cookie 配置
type IdentityConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	Secret     string        `mapstructure:"secret"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	Secure     bool          `mapstructure:"secure"`
	SameSite   string        `mapstructure:"same_site"` // lax, strict, none
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SameSiteMode 将配置字符串转换为 http.SameSite
func (c *IdentityConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	if c.AI.APIKey == "" {
		return errors.New("ai.api_key is required")
	}
	if c.AI.MaxRetries < 0 {
		return errors.New("ai.max_retries must not be negative")
	}

	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		return errors.New("mongo.uri and mongo.database are required")
	}

	if err := c.Seed.Validate(); err != nil {
		return err
	}

	if c.Identity.CookieName == "" {
		return errors.New("identity.cookie_name is required")
	}
	if c.Server.Mode == "release" && c.Identity.Secret == "" {
		return errors.New("identity.secret is required in release mode")
	}

	return nil
}

// Validate 检查种子题库坐标是否完整
func (c *SeedConfig) Validate() error {
	if c.Owner == "" || c.Repo == "" || c.Path == "" {
		return errors.New("seed.owner, seed.repo and seed.path are required")
	}
	return nil
}
