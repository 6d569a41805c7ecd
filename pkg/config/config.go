// Package config loads runtime configuration for the engine. Settings
// come from a config file, environment variables with the FARO_ prefix,
// and built-in defaults, in that order of precedence (env highest).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime setting the engine reads.
type Config struct {
	// Server
	ListenAddr string `mapstructure:"listen_addr"`
	DBPath     string `mapstructure:"db_path"`
	ArchiveDir string `mapstructure:"archive_dir"`
	ImageDir   string `mapstructure:"image_dir"`

	// Security
	// JWTSecret signs API session tokens. Override it in production.
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`

	// Device sessions
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	CommandTimeout  time.Duration `mapstructure:"command_timeout"`
	TransferTimeout time.Duration `mapstructure:"transfer_timeout"`

	// Background loops
	BackupInterval time.Duration `mapstructure:"backup_interval"`
	JobPoll        time.Duration `mapstructure:"job_poll"`

	// Coordination. RedisAddr empty means in-process device locks; set it
	// when several engine instances share one fleet.
	RedisAddr string        `mapstructure:"redis_addr"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads ./faro.yaml or ~/.faro/faro.yaml if present, then applies
// FARO_-prefixed environment variables over it.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":8420")
	v.SetDefault("db_path", "faro.db")
	v.SetDefault("archive_dir", "archive")
	v.SetDefault("image_dir", "images")

	v.SetDefault("jwt_secret", "change-me-before-production")
	v.SetDefault("token_ttl", 12*time.Hour)

	v.SetDefault("connect_timeout", 10*time.Second)
	v.SetDefault("command_timeout", 30*time.Second)
	v.SetDefault("transfer_timeout", 60*time.Second)

	v.SetDefault("backup_interval", 12*time.Hour)
	v.SetDefault("job_poll", time.Minute)

	v.SetDefault("redis_addr", "")
	v.SetDefault("lock_ttl", 5*time.Minute)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetConfigName("faro")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.faro")
	if err := v.ReadInConfig(); err != nil {
		// The config file is optional.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FARO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
