package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp" mapstructure:"whatsapp"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Phone    PhoneConfig    `yaml:"phone" mapstructure:"phone"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// WhatsAppConfig holds the messaging vendor API settings.
type WhatsAppConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	Token        string  `yaml:"token" mapstructure:"token"`
	SenderID     string  `yaml:"sender_id" mapstructure:"sender_id"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ResolverConfig configures lead identity resolution.
type ResolverConfig struct {
	HomeRegion       string   `yaml:"home_region" mapstructure:"home_region"`
	FallbackRegions  []string `yaml:"fallback_regions" mapstructure:"fallback_regions"`
	SuffixLimit      int      `yaml:"suffix_limit" mapstructure:"suffix_limit"`
	QueryTimeoutSecs int      `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
	SelfHeal         bool     `yaml:"self_heal" mapstructure:"self_heal"`
}

// PhoneConfig configures number normalization.
type PhoneConfig struct {
	DenylistPath string `yaml:"denylist_path" mapstructure:"denylist_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so AutomaticEnv can bind them.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("whatsapp.token", "")
	v.SetDefault("whatsapp.sender_id", "")
	v.SetDefault("phone.denylist_path", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("whatsapp.base_url", "https://api.chatpush.io/v2")
	v.SetDefault("whatsapp.rate_limit_rps", 10.0)
	v.SetDefault("whatsapp.timeout_secs", 15)
	v.SetDefault("resolver.home_region", "BR")
	v.SetDefault("resolver.fallback_regions", []string{"BR", "PT", "US"})
	v.SetDefault("resolver.suffix_limit", 5)
	v.SetDefault("resolver.query_timeout_secs", 3)
	v.SetDefault("resolver.self_heal", false)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
