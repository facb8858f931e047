package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig     `yaml:"store" mapstructure:"store"`
	Input      InputConfig     `yaml:"input" mapstructure:"input"`
	Merge      MergeConfig     `yaml:"merge" mapstructure:"merge"`
	Output     OutputConfig    `yaml:"output" mapstructure:"output"`
	Thresholds ThresholdConfig `yaml:"thresholds" mapstructure:"thresholds"`
	Log        LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the relational sink.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
	Table       string `yaml:"table" mapstructure:"table"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// InputConfig locates the three source exports and describes how to read them.
type InputConfig struct {
	SalesPath  string `yaml:"sales_path" mapstructure:"sales_path"`
	InfoPath   string `yaml:"info_path" mapstructure:"info_path"`
	ChangePath string `yaml:"change_path" mapstructure:"change_path"`
	Encoding   string `yaml:"encoding" mapstructure:"encoding"`
	Delimiter  string `yaml:"delimiter" mapstructure:"delimiter"`
	Sheet      string `yaml:"sheet" mapstructure:"sheet"`
	// Member names the table inside .zip sources; empty picks the only one.
	Member string      `yaml:"member" mapstructure:"member"`
	Fetch  FetchConfig `yaml:"fetch" mapstructure:"fetch"`
}

// FetchConfig tunes downloads of http(s) input paths.
type FetchConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// MergeConfig selects the join keys used when combining the exports.
type MergeConfig struct {
	// InfoKey joins sales to district info: "name" or "code".
	InfoKey string `yaml:"info_key" mapstructure:"info_key"`
	// ChangeKey joins change indicators: "auto", "code", or "code_period".
	ChangeKey string `yaml:"change_key" mapstructure:"change_key"`
}

// OutputConfig locates the static artifacts.
type OutputConfig struct {
	JSONPath    string `yaml:"json_path" mapstructure:"json_path"`
	RejectsPath string `yaml:"rejects_path" mapstructure:"rejects_path"`
}

// ThresholdConfig selects a threshold preset. Non-nil fields override the
// preset's value.
type ThresholdConfig struct {
	Preset     string   `yaml:"preset" mapstructure:"preset"`
	Conversion *float64 `yaml:"conversion" mapstructure:"conversion"`
	RelSales   *float64 `yaml:"rel_sales" mapstructure:"rel_sales"`
	Quality    *float64 `yaml:"quality" mapstructure:"quality"`
	TimeRatio  *float64 `yaml:"time_ratio" mapstructure:"time_ratio"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
// Environment variables use the COLDSPOT_ prefix, e.g. COLDSPOT_STORE_DATABASE_URL.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COLDSPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.schema", "public")
	v.SetDefault("store.table", "cold_spots")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("input.sales_path", "data/추정매출-상권_2024년.csv")
	v.SetDefault("input.info_path", "data/상권정보_20221212.csv")
	v.SetDefault("input.change_path", "data/상권변화지표-상권.csv")
	v.SetDefault("input.encoding", "cp949")
	v.SetDefault("input.delimiter", ",")
	v.SetDefault("input.fetch.timeout", "60s")
	v.SetDefault("input.fetch.max_retries", 3)
	v.SetDefault("input.fetch.rate_per_sec", 2)
	v.SetDefault("merge.info_key", "name")
	v.SetDefault("merge.change_key", "auto")
	v.SetDefault("output.json_path", "public/api/cold-spots.json")
	v.SetDefault("thresholds.preset", "default")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Override keys have no default; bind them so env-only values unmarshal.
	for _, key := range []string{
		"thresholds.conversion", "thresholds.rel_sales", "thresholds.quality", "thresholds.time_ratio",
		"output.rejects_path", "store.database_url", "input.sheet", "input.member",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

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

// Validate checks the settings a command depends on. Mode is one of
// "run" (load + persist), "classify" (load only) or "query" (sink only).
func (c *Config) Validate(mode string) error {
	var errs []string

	needInputs := mode == "run" || mode == "classify"
	needStore := mode == "run" || mode == "query"
	switch mode {
	case "run", "classify", "query":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needInputs {
		if c.Input.SalesPath == "" {
			errs = append(errs, "input.sales_path is required")
		}
		if c.Input.InfoPath == "" {
			errs = append(errs, "input.info_path is required")
		}
		if c.Input.ChangePath == "" {
			errs = append(errs, "input.change_path is required")
		}
		if len([]rune(c.Input.Delimiter)) > 1 {
			errs = append(errs, "input.delimiter must be a single character")
		}
		if c.Input.Fetch.Timeout < 0 {
			errs = append(errs, "input.fetch.timeout must be >= 0")
		}
		if c.Input.Fetch.MaxRetries < 0 {
			errs = append(errs, "input.fetch.max_retries must be >= 0")
		}
		if c.Input.Fetch.RatePerSec < 0 {
			errs = append(errs, "input.fetch.rate_per_sec must be >= 0")
		}
		switch c.Merge.InfoKey {
		case "", "name", "code":
		default:
			errs = append(errs, "merge.info_key must be name or code")
		}
		switch c.Merge.ChangeKey {
		case "", "auto", "code", "code_period":
		default:
			errs = append(errs, "merge.change_key must be auto, code or code_period")
		}
	}

	if needStore {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for postgres")
			}
		case "sqlite":
		default:
			errs = append(errs, "store.driver must be postgres or sqlite")
		}
		if c.Store.Table == "" {
			errs = append(errs, "store.table is required")
		}
	}

	if mode == "run" && c.Output.JSONPath == "" {
		errs = append(errs, "output.json_path is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
