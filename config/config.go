// Package config loads mlwiz settings from defaults, an optional config file
// and MLWIZ_* environment variables, in increasing order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/YuminosukeSato/mlwiz/automl"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
	"github.com/YuminosukeSato/mlwiz/pkg/log"
)

// EnvPrefix is prepended to every environment variable, e.g.
// MLWIZ_AUTOML_TEST_SIZE for automl.test_size.
const EnvPrefix = "MLWIZ"

// Config is the full mlwiz configuration, one section per top-level key.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	AutoML AutoMLConfig `mapstructure:"automl"`
	Models ModelsConfig `mapstructure:"models"`
	Server ServerConfig `mapstructure:"server"`
}

// LogConfig controls the zerolog provider set up by log.SetupLogger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// AutoMLConfig holds the split and problem-type settings of automl.Pipeline.
type AutoMLConfig struct {
	TestSize                float64 `mapstructure:"test_size"`
	RandomState             int64   `mapstructure:"random_state"`
	ClassificationThreshold int     `mapstructure:"classification_threshold"`
	FailFast                bool    `mapstructure:"fail_fast"`
	Parallel                bool    `mapstructure:"parallel"`
}

// ModelsConfig holds hyperparameters for the candidate models.
type ModelsConfig struct {
	Forest   ForestConfig   `mapstructure:"forest"`
	Logistic LogisticConfig `mapstructure:"logistic"`
}

// ForestConfig applies to both random forest candidates.
type ForestConfig struct {
	NEstimators int `mapstructure:"n_estimators"`
}

// LogisticConfig applies to the Logistic Regression candidate.
type LogisticConfig struct {
	MaxIter int `mapstructure:"max_iter"`
}

// ServerConfig configures the HTTP API started by "mlwiz serve".
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

var defaults = map[string]any{
	"log.level":                       "info",
	"log.pretty":                      true,
	"automl.test_size":                0.2,
	"automl.random_state":             42,
	"automl.classification_threshold": automl.DefaultClassificationThreshold,
	"automl.fail_fast":                false,
	"automl.parallel":                 false,
	"models.forest.n_estimators":      100,
	"models.logistic.max_iter":        1000,
	"server.addr":                     ":8080",
	"server.max_upload_mb":            32,
	"server.read_timeout":             "15s",
	"server.write_timeout":            "60s",
}

// New returns a viper instance with defaults and environment binding set up.
// Callers may bind command-line flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (YAML, JSON or TOML; optional) into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile is Load(New(), path).
func LoadFile(path string) (*Config, error) {
	return Load(New(), path)
}

// Default returns the built-in settings.
func Default() *Config {
	cfg, err := Load(New(), "")
	if err != nil {
		// 組み込みのデフォルト値は常に妥当
		panic(err)
	}
	return cfg
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.AutoML.TestSize <= 0 || c.AutoML.TestSize >= 1 {
		return errors.NewValidationError("automl.test_size", "must be in (0, 1)", c.AutoML.TestSize)
	}
	if c.AutoML.ClassificationThreshold < 1 {
		return errors.NewValidationError("automl.classification_threshold", "must be >= 1", c.AutoML.ClassificationThreshold)
	}
	if c.Models.Forest.NEstimators < 1 {
		return errors.NewValidationError("models.forest.n_estimators", "must be >= 1", c.Models.Forest.NEstimators)
	}
	if c.Models.Logistic.MaxIter < 1 {
		return errors.NewValidationError("models.logistic.max_iter", "must be >= 1", c.Models.Logistic.MaxIter)
	}
	if c.Server.MaxUploadMB < 1 {
		return errors.NewValidationError("server.max_upload_mb", "must be >= 1", c.Server.MaxUploadMB)
	}
	return nil
}

// ModelSettings returns the candidate hyperparameters.
func (c *Config) ModelSettings() automl.ModelSettings {
	return automl.ModelSettings{
		ForestEstimators: c.Models.Forest.NEstimators,
		LogisticMaxIter:  c.Models.Logistic.MaxIter,
		RandomState:      c.AutoML.RandomState,
	}
}

// Pipeline builds an automl.Pipeline from the settings.
func (c *Config) Pipeline(opts ...automl.RunnerOption) *automl.Pipeline {
	runnerOpts := append([]automl.RunnerOption{
		automl.WithRegistry(automl.NewRegistry(c.ModelSettings())),
		automl.WithFailFast(c.AutoML.FailFast),
		automl.WithParallel(c.AutoML.Parallel),
	}, opts...)
	return automl.NewPipeline(
		automl.WithRunner(automl.NewRunner(runnerOpts...)),
		automl.WithTestSize(c.AutoML.TestSize),
		automl.WithSeed(c.AutoML.RandomState),
		automl.WithThreshold(c.AutoML.ClassificationThreshold),
		automl.WithPipelineFailFast(c.AutoML.FailFast),
	)
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}
