// Package config provides configuration loading and validation for the
// telegram-utils application. It reads defaults, an optional YAML file, and
// BOT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Default values for optional configuration parameters.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// DefaultStorePath is where the credential/recipient store lives when no
	// path is configured.
	DefaultStorePath = "telegram.db"

	DefaultAcceptedReply = "Accepted."
	DefaultRejectedReply = "Invalid!"
)

// ErrConfiguration indicates that configuration could not be loaded or failed
// validation.
var ErrConfiguration = errors.New("configuration error")

// Config defines the application configuration. Values can be set through
// config.yaml or environment variables prefixed with BOT_
// (e.g. BOT_STORE_PATH).
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// StoreConfig locates the credential/recipient store file. The path is
// resolved once at load time.
type StoreConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds the replies sent during a listen session.
type TelegramConfig struct {
	AcceptedReply string `mapstructure:"accepted_reply" validate:"required"`
	RejectedReply string `mapstructure:"rejected_reply" validate:"required"`
}

// Load reads configuration from the YAML file at configPath, overlays BOT_*
// environment variables, and validates the result. A missing config file is
// not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("store.path", DefaultStorePath)
	v.SetDefault("telegram.accepted_reply", DefaultAcceptedReply)
	v.SetDefault("telegram.rejected_reply", DefaultRejectedReply)

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: failed to read config file: %v", ErrConfiguration, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}
