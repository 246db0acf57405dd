package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`

	// WebSocket transport tuning.
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`

	// Credential verification. Access tokens arrive via the explicit token
	// field or the Authorization header; refresh tokens via the named cookie.
	AccessSecret  string `mapstructure:"access_secret"`
	RefreshSecret string `mapstructure:"refresh_secret"`
	RefreshCookie string `mapstructure:"refresh_cookie"`

	// Shared secret for the /internal announce API (CRUD collaborator).
	InternalToken string `mapstructure:"internal_token"`

	StreamChatMaxLen int `mapstructure:"stream_chat_max_len"`

	// Identity directory (optional; empty addr disables enrichment).
	RedisAddr        string        `mapstructure:"redis_addr"`
	RedisPassword    string        `mapstructure:"redis_password"`
	RedisDB          int           `mapstructure:"redis_db"`
	DirectoryTTL     time.Duration `mapstructure:"directory_ttl"`
	DirectoryTimeout time.Duration `mapstructure:"directory_timeout"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("refresh_cookie", "rt")
	v.SetDefault("stream_chat_max_len", 300)
	v.SetDefault("directory_ttl", "1m")
	v.SetDefault("directory_timeout", "500ms")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	v.SetEnvPrefix("pulse")
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about. Secrets
	// and the redis settings have no defaults, so bind them explicitly or
	// an env-only deploy never sees them.
	for _, key := range []string{
		"access_secret", "refresh_secret", "internal_token",
		"redis_addr", "redis_password", "redis_db",
	} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d\n", cfg.Mode, cfg.Port)
	return &cfg, nil
}
