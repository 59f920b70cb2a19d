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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Geodata   GeodataConfig   `yaml:"geodata" mapstructure:"geodata"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Assign    AssignConfig    `yaml:"assign" mapstructure:"assign"`
	Segment   SegmentConfig   `yaml:"segment" mapstructure:"segment"`
	Analytics AnalyticsConfig `yaml:"analytics" mapstructure:"analytics"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GeodataConfig configures the city open-data feature service client.
type GeodataConfig struct {
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	ParcelLayer      string  `yaml:"parcel_layer" mapstructure:"parcel_layer"`
	StreetLayer      string  `yaml:"street_layer" mapstructure:"street_layer"`
	PageSize         int     `yaml:"page_size" mapstructure:"page_size"`
	Concurrency      int     `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSecond    float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CircuitFailures  int     `yaml:"circuit_failures" mapstructure:"circuit_failures"`
	CircuitResetSecs int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// IngestConfig configures file ingestion.
type IngestConfig struct {
	ChunkSize int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	Sheet     string `yaml:"sheet" mapstructure:"sheet"`
}

// AssignConfig configures address-based block assignment.
type AssignConfig struct {
	BlockSize            int  `yaml:"block_size" mapstructure:"block_size"`
	UseNaturalBoundaries bool `yaml:"use_natural_boundaries" mapstructure:"use_natural_boundaries"`
	GapThreshold         int  `yaml:"gap_threshold" mapstructure:"gap_threshold"`
}

// SegmentConfig configures geometric block segmentation.
type SegmentConfig struct {
	EndpointThresholdMeters float64 `yaml:"endpoint_threshold_meters" mapstructure:"endpoint_threshold_meters"`
	BufferMeters            float64 `yaml:"buffer_meters" mapstructure:"buffer_meters"`
}

// AnalyticsConfig configures snapshot computation.
type AnalyticsConfig struct {
	RecentSaleYears int `yaml:"recent_sale_years" mapstructure:"recent_sale_years"`
}

// RetryConfig configures retry behavior for external calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// ServerConfig configures the query HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the configuration for the given mode. Mode is the CLI
// verb about to run; only the settings that verb depends on are checked.
func (c *Config) Validate(mode string) error {
	var problems []string

	checkEngine := func() {
		if c.Assign.BlockSize <= 0 {
			problems = append(problems, "assign.block_size must be > 0")
		}
		if c.Assign.GapThreshold < 0 {
			problems = append(problems, "assign.gap_threshold must be >= 0")
		}
		if c.Segment.EndpointThresholdMeters < 0 {
			problems = append(problems, "segment.endpoint_threshold_meters must be >= 0")
		}
		if c.Segment.BufferMeters <= 0 {
			problems = append(problems, "segment.buffer_meters must be > 0")
		}
	}

	switch mode {
	case "assign", "analytics":
		checkEngine()
	case "segment":
		checkEngine()
		if c.Geodata.PageSize <= 0 {
			problems = append(problems, "geodata.page_size must be > 0")
		}
		if c.Geodata.Concurrency < 1 || c.Geodata.Concurrency > 32 {
			problems = append(problems, "geodata.concurrency must be between 1 and 32")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "migrate", "status", "retry":
		// Store checks below cover these.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BLOCKLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "blockline.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("geodata.base_url", "https://services2.arcgis.com/qvkbeam7Wirps6zC/arcgis/rest/services")
	v.SetDefault("geodata.parcel_layer", "parcel_file_current/FeatureServer/0")
	v.SetDefault("geodata.street_layer", "detroit_streets/FeatureServer/0")
	v.SetDefault("geodata.page_size", 2000)
	v.SetDefault("geodata.concurrency", 4)
	v.SetDefault("geodata.rate_per_second", 5.0)
	v.SetDefault("geodata.timeout_secs", 60)
	v.SetDefault("geodata.circuit_failures", 5)
	v.SetDefault("geodata.circuit_reset_secs", 30)
	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("assign.block_size", 100)
	v.SetDefault("assign.gap_threshold", 50)
	v.SetDefault("segment.endpoint_threshold_meters", 10.0)
	v.SetDefault("segment.buffer_meters", 50.0)
	v.SetDefault("analytics.recent_sale_years", 2)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)

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
