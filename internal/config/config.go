// Package config loads pulse configuration from defaults, an optional YAML
// file and PULSE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PULSE_SERVER_PORT.
const EnvPrefix = "PULSE"

// Config holds all pulse configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"` // empty: store.DefaultDBPath()
}

type EngineConfig struct {
	TaxonomyPath  string        `mapstructure:"taxonomy_path"` // empty: built-in taxonomy
	PolicyPath    string        `mapstructure:"policy_path"`   // empty: built-in policy
	PolicyWatch   bool          `mapstructure:"policy_watch"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	TopN          int           `mapstructure:"top_n"`
	GeoBucket     string        `mapstructure:"geo_bucket"`
	Persist       bool          `mapstructure:"persist"`

	// AuditRetention bounds the observation log and export audit tables.
	AuditRetention time.Duration `mapstructure:"audit_retention"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Engine: EngineConfig{
			PolicyWatch:    true,
			SweepInterval:  time.Hour,
			TopN:           10,
			Persist:        true,
			AuditRetention: 30 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Engine.SweepInterval < time.Minute {
		return fmt.Errorf("engine.sweep_interval %s below 1m", c.Engine.SweepInterval)
	}
	if c.Engine.AuditRetention < time.Hour {
		return fmt.Errorf("engine.audit_retention %s below 1h", c.Engine.AuditRetention)
	}
	if c.Engine.TopN <= 0 {
		return fmt.Errorf("engine.top_n must be positive, got %d", c.Engine.TopN)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	return nil
}

// Load reads configuration. An explicit path must exist; otherwise
// $HOME/.pulse.yaml is read when present.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".pulse")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config %s: %w", filepath.Join(home, ".pulse.yaml"), err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// appear in no file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("engine.taxonomy_path", d.Engine.TaxonomyPath)
	v.SetDefault("engine.policy_path", d.Engine.PolicyPath)
	v.SetDefault("engine.policy_watch", d.Engine.PolicyWatch)
	v.SetDefault("engine.sweep_interval", d.Engine.SweepInterval)
	v.SetDefault("engine.top_n", d.Engine.TopN)
	v.SetDefault("engine.geo_bucket", d.Engine.GeoBucket)
	v.SetDefault("engine.persist", d.Engine.Persist)
	v.SetDefault("engine.audit_retention", d.Engine.AuditRetention)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
}
