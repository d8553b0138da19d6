// Package config loads schoolctl settings from YAML and the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"schoolcore/internal/blob"
	"schoolcore/internal/core"
)

// Config holds all application configuration.
type Config struct {
	Storage        core.StorageConfig `yaml:"storage"`
	Blob           blob.Config        `yaml:"blob"`
	Log            LogConfig          `yaml:"log"`
	RequireCollege bool               `yaml:"require_college"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: core.StorageConfig{Driver: core.StorageSQLite, SQLitePath: "./schoolcore.db"},
		Blob:    blob.Config{Driver: blob.DriverFilesystem},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path, then applies environment overrides. A
// missing file, or an empty path, yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the Config to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var storageDriver, blobDriver string
	str("SCHOOLCORE_STORAGE_DRIVER", &storageDriver)
	if storageDriver != "" {
		c.Storage.Driver = core.StorageDriver(strings.ToLower(storageDriver))
	}
	str("SCHOOLCORE_SQLITE_PATH", &c.Storage.SQLitePath)
	str("SCHOOLCORE_POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("SCHOOLCORE_MYSQL_DSN", &c.Storage.MySQLDSN)
	str("SCHOOLCORE_DYNAMO_TABLE", &c.Storage.DynamoTable)
	str("SCHOOLCORE_DYNAMO_REGION", &c.Storage.DynamoRegion)
	str("SCHOOLCORE_DYNAMO_ENDPOINT", &c.Storage.DynamoEndpoint)

	str("SCHOOLCORE_BLOB_DRIVER", &blobDriver)
	if blobDriver != "" {
		c.Blob.Driver = blob.Driver(strings.ToLower(blobDriver))
	}
	str("SCHOOLCORE_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("SCHOOLCORE_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("SCHOOLCORE_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("SCHOOLCORE_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("SCHOOLCORE_BLOB_S3_ACCESS_KEY_ID", &c.Blob.S3.AccessKeyID)
	str("SCHOOLCORE_BLOB_S3_SECRET_ACCESS_KEY", &c.Blob.S3.SecretAccessKey)
	if v, ok := lookup("SCHOOLCORE_BLOB_S3_PATH_STYLE"); ok && v != "" {
		c.Blob.S3.PathStyle = strings.EqualFold(v, "true")
	}

	str("SCHOOLCORE_LOG_LEVEL", &c.Log.Level)
	str("SCHOOLCORE_LOG_FORMAT", &c.Log.Format)
	if v, ok := lookup("SCHOOLCORE_REQUIRE_COLLEGE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SCHOOLCORE_REQUIRE_COLLEGE: %w", err)
		}
		c.RequireCollege = b
	}
	return nil
}

// Policy returns the directory policy the config selects.
func (c *Config) Policy() core.Policy {
	return core.Policy{RequireStudentCollege: c.RequireCollege}
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", name, err)
	}
	return level, nil
}

// NewLogger builds the slog logger described by the log section.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(l.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", l.Format)
	}
}
