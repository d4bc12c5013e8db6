// Package config loads pipeline settings from the environment.
package config

import (
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/samber/lo"
	"golang.org/x/xerrors"
)

// Config holds every setting of the pipeline.
// Values come from an optional .env file; environment variables override it.
type Config struct {
	Database  DatabaseConfig
	Warehouse WarehouseConfig
	Staging   StagingConfig
	Schedule  ScheduleConfig
	Log       LogConfig
	Slack     SlackConfig
}

// DatabaseConfig is the operational MySQL database.
type DatabaseConfig struct {
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"` // Secret
	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT" env-default:"3306"`
	Name     string `env:"DB_NAME"`
}

// WarehouseConfig is the BigQuery destination.
type WarehouseConfig struct {
	ProjectID string `env:"PROJECT_ID"`
	DatasetID string `env:"DATASET_ID"`

	// ServiceAccount is a path to a service account key file. Empty uses
	// application default credentials.
	ServiceAccount string `env:"SERVICE_ACCOUNT"`

	// Bucket, when set, stages load files in Cloud Storage.
	Bucket string `env:"STAGING_BUCKET"`

	Concurrency int `env:"LOAD_CONCURRENCY" env-default:"4"`
}

// StagingConfig is the local CSV handoff directories.
type StagingConfig struct {
	RawDir         string `env:"RAW_DIR" env-default:"data_source_csv"`
	DimensionalDir string `env:"DIMENSIONAL_DIR" env-default:"data_source_dimensional"`
	FinalDir       string `env:"FINAL_DIR" env-default:"data_source_to_load"`
}

// ScheduleConfig sets when runs fire and how failed tasks are retried.
type ScheduleConfig struct {
	Spec       string        `env:"SCHEDULE" env-default:"0 */12 * * *"`
	Retries    int           `env:"RETRIES" env-default:"1"`
	RetryDelay time.Duration `env:"RETRY_DELAY" env-default:"1m"`
}

// LogConfig sets log level and format.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Pretty bool   `env:"LOG_PRETTY" env-default:"false"`
}

// SlackConfig enables run notifications when both values are set.
type SlackConfig struct {
	Token   string `env:"SLACK_TOKEN"` // Secret
	Channel string `env:"SLACK_CHANNEL"`
}

// Enabled reports whether notifications are configured.
func (c SlackConfig) Enabled() bool {
	return c.Token != "" && c.Channel != ""
}

// Load reads the .env file at path if it exists, then the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" && fileExists(path) {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, xerrors.Errorf("failed to read config from %s: %w", path, err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, xerrors.Errorf("failed to read config from environment: %w", err)
	}

	return cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ValidateDatabase reports missing database settings.
func (c *Config) ValidateDatabase() error {
	return missing("database", map[string]string{
		"DB_USER": c.Database.User,
		"DB_HOST": c.Database.Host,
		"DB_NAME": c.Database.Name,
	})
}

// ValidateWarehouse reports missing warehouse settings.
func (c *Config) ValidateWarehouse() error {
	if c.Warehouse.Concurrency < 1 {
		return xerrors.Errorf("LOAD_CONCURRENCY must be positive, got %d", c.Warehouse.Concurrency)
	}
	return missing("warehouse", map[string]string{
		"PROJECT_ID": c.Warehouse.ProjectID,
		"DATASET_ID": c.Warehouse.DatasetID,
	})
}

func missing(section string, values map[string]string) error {
	names := lo.Filter(lo.Keys(values), func(k string, _ int) bool {
		return strings.TrimSpace(values[k]) == ""
	})
	slices.Sort(names)
	if len(names) > 0 {
		return xerrors.Errorf("%s config is incomplete: %s not set", section, strings.Join(names, ", "))
	}
	return nil
}
