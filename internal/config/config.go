package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"delayrisk/domain/run"
	"delayrisk/domain/schema"
	"delayrisk/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Data      DataConfig
	Training  TrainingConfig
	Inference InferenceConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
}

// DataConfig holds dataset and schema locations
type DataConfig struct {
	Path       string // CSV or XLSX training table
	SchemaFile string // optional YAML schema; empty means the reference schema
}

// TrainingConfig holds offline training settings
type TrainingConfig struct {
	ArtifactDir string
	ConfigFile  string // optional YAML hyperparameters
	SplitSeed   int64
	FitTimeout  time.Duration
	CodeVersion string
}

// InferenceConfig holds online scoring settings
type InferenceConfig struct {
	ModelPath string // model.json of a bundle; empty means the newest bundle
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// DatabaseConfig holds the optional experiment tracking database
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether run tracking in Postgres is configured
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Data: DataConfig{
			Path:       getEnvOrDefault("DATA_PATH", "data/dataset.csv"),
			SchemaFile: getEnvOrDefault("SCHEMA_FILE", ""),
		},
		Inference: InferenceConfig{
			ModelPath: getEnvOrDefault("MODEL_PATH", ""),
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "INFO"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	training, err := loadTrainingConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load training configuration")
	}
	config.Training = *training

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadTrainingConfig() (*TrainingConfig, error) {
	seed, err := getEnvInt64("SPLIT_SEED", 42)
	if err != nil {
		return nil, err
	}
	timeout, err := getEnvDuration("FIT_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	return &TrainingConfig{
		ArtifactDir: getEnvOrDefault("ARTIFACT_DIR", "models"),
		ConfigFile:  getEnvOrDefault("TRAINING_CONFIG", ""),
		SplitSeed:   seed,
		FitTimeout:  timeout,
		CodeVersion: getEnvOrDefault("CODE_VERSION", "dev"),
	}, nil
}

func validateConfig(config *Config) error {
	if config.Training.ArtifactDir == "" {
		return errors.ConfigInvalid("ARTIFACT_DIR cannot be empty")
	}
	if config.Training.FitTimeout <= 0 {
		return errors.ConfigInvalid("FIT_TIMEOUT must be positive")
	}
	switch config.Server.GinMode {
	case "debug", "release", "test":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("GIN_MODE must be debug, release or test, got %q", config.Server.GinMode))
	}
	return nil
}

// LoadHyperparameters overlays a YAML file on the reference hyperparameters.
// An empty path returns the defaults. Unknown keys are rejected.
func LoadHyperparameters(path string) (run.Hyperparameters, error) {
	params := run.DefaultHyperparameters()
	if path == "" {
		return params, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return params, errors.Wrapf(errors.ConfigInvalid(err.Error()), "read training config %s", path)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&params); err != nil {
		return params, errors.Wrapf(errors.ConfigInvalid(err.Error()), "parse training config %s", path)
	}
	if err := params.Validate(); err != nil {
		return params, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return params, nil
}

// LoadSchema returns the reference schema, or the one described in path.
func LoadSchema(path string) (*schema.Schema, error) {
	if path == "" {
		return schema.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ConfigInvalid(err.Error()), "read schema %s", path)
	}
	s, err := schema.Parse(data)
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return s, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be an integer, got %q", key, value))
	}
	return parsed, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be a duration, got %q", key, value))
	}
	return parsed, nil
}
