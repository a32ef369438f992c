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
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	DuckDB   DuckDBConfig   `yaml:"duckdb" mapstructure:"duckdb"`
	Load     LoadConfig     `yaml:"load" mapstructure:"load"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Regions  []string       `yaml:"regions" mapstructure:"regions"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig holds the connection URIs of the two logical databases.
type DatabaseConfig struct {
	LocalURL  string `yaml:"local_url" mapstructure:"local_url"`
	RemoteURL string `yaml:"remote_url" mapstructure:"remote_url"`
}

// DuckDBConfig configures the embedded engine used to read GeoParquet sources.
type DuckDBConfig struct {
	Path       string   `yaml:"path" mapstructure:"path"`
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
	Threads    int      `yaml:"threads" mapstructure:"threads"`
}

// LoadConfig configures bulk loading into staging tables.
type LoadConfig struct {
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// DataConfig points at the per-dataset YAML files.
type DataConfig struct {
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
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
	v.SetEnvPrefix("POIETL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("database.local_url", "")
	v.SetDefault("database.remote_url", "")
	v.SetDefault("duckdb.path", "")
	v.SetDefault("duckdb.extensions", []string{"spatial", "httpfs"})
	v.SetDefault("duckdb.threads", 0)
	v.SetDefault("load.batch_size", 50000)
	v.SetDefault("data.config_dir", "config/data_variables")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks that the settings a command depends on are present.
func (c *Config) Validate(command string) error {
	var missing []string
	switch command {
	case "collect":
		if c.Database.LocalURL == "" {
			missing = append(missing, "database.local_url")
		}
		if c.Database.RemoteURL == "" {
			missing = append(missing, "database.remote_url")
		}
		if c.Load.BatchSize <= 0 {
			return eris.Errorf("config: load.batch_size must be positive, got %d", c.Load.BatchSize)
		}
	case "prepare":
		if c.Database.RemoteURL == "" {
			missing = append(missing, "database.remote_url")
		}
	default:
		return eris.Errorf("config: unknown command %q", command)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings for %s: %s", command, strings.Join(missing, ", "))
	}
	return nil
}

// RegionAllowed reports whether region is in the configured allow-list.
// An empty list accepts every syntactically valid region.
func (c *Config) RegionAllowed(region string) bool {
	if len(c.Regions) == 0 {
		return true
	}
	for _, r := range c.Regions {
		if r == region {
			return true
		}
	}
	return false
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
