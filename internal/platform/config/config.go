package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig          `mapstructure:"server"`
	Database  DatabaseConfig        `mapstructure:"database"`
	Redis     RedisConfig           `mapstructure:"redis"`
	JWT       JWTConfig             `mapstructure:"jwt"`
	APIKeys   APIKeysConfig         `mapstructure:"api_keys"`
	RateLimit RateLimitConfig       `mapstructure:"rate_limit"`
	Tiers     map[string]TierConfig `mapstructure:"tiers"`
	Logging   LoggingConfig         `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type APIKeysConfig struct {
	HashSecret string `mapstructure:"hash_secret"`
	Prefix     string `mapstructure:"prefix"`
}

type RateLimitConfig struct {
	Window     time.Duration `mapstructure:"window"`
	Grace      time.Duration `mapstructure:"grace"`
	FailClosed bool          `mapstructure:"fail_closed"`
}

// TierConfig drives the quota and scope policy for one service tier.
// MaxLiveKeys < 0 means unbounded; RequestsPerSecond <= 0 means unlimited.
type TierConfig struct {
	MaxLiveKeys       int      `mapstructure:"max_live_keys"`
	RequestsPerSecond int      `mapstructure:"requests_per_second"`
	Scopes            []string `mapstructure:"scopes"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
