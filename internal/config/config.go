package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"database"`
	Upstream  UpstreamConfig `mapstructure:"upstream"`
	Suggest   SuggestConfig  `mapstructure:"suggest"`
	Engine    EngineConfig   `mapstructure:"engine"`
	JWTSecret string         `mapstructure:"jwt_secret"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

// UpstreamConfig points at the collaborator services this engine consumes:
// the configuration service that owns form/connection definitions and the
// related-value lookup endpoint.
type UpstreamConfig struct {
	ConfigURL string `mapstructure:"config_url"` // base URL; empty disables upstream sync
	LookupURL string `mapstructure:"lookup_url"` // full URL of the related-value endpoint
	TimeoutMs int    `mapstructure:"timeout_ms"`
	RefreshMs int    `mapstructure:"refresh_ms"` // registry refresh interval; 0 disables
}

type SuggestConfig struct {
	MinQueryLength int `mapstructure:"min_query_length"`
	MaxResults     int `mapstructure:"max_results"`
	MemoryCap      int `mapstructure:"memory_cap"` // cached queries kept per (form, field)
}

type EngineConfig struct {
	TriggerBudget int `mapstructure:"trigger_budget"` // max evaluations per applied input
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "formlink")
	viper.SetDefault("database.pool_size", 10)
	viper.SetDefault("database.path", "./data")
	viper.SetDefault("upstream.config_url", "")
	viper.SetDefault("upstream.lookup_url", "")
	viper.SetDefault("upstream.timeout_ms", 10000)
	viper.SetDefault("upstream.refresh_ms", 300000)
	viper.SetDefault("suggest.min_query_length", 2)
	viper.SetDefault("suggest.max_results", 10)
	viper.SetDefault("suggest.memory_cap", 200)
	viper.SetDefault("engine.trigger_budget", 100)
	viper.SetDefault("jwt_secret", "changeme-secret")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
