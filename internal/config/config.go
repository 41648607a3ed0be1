// Package config loads service configuration from an optional .env file, an
// optional YAML overlay and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort            = "8080"
	defaultSQLitePath      = "soundwatch.db"
	defaultModelPath       = "sound-detection-model/model.msgpack"
	defaultLabelsPath      = "sound-detection-model/labels.yaml"
	defaultQueueSize       = 64
	defaultMaxUploadBytes  = 25 << 20
	defaultArtifactRetries = 3
	defaultArtifactBackoff = 500 * time.Millisecond
)

// MySQL holds the connection settings used when StorageDriver is "mysql".
type MySQL struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Config holds the configuration for the API server and CLI.
type Config struct {
	Port          string `yaml:"port"`
	StorageDriver string `yaml:"storage_driver"`
	SQLitePath    string `yaml:"sqlite_path"`
	MySQL         MySQL  `yaml:"mysql"`

	ModelPath  string `yaml:"model_path"`
	LabelsPath string `yaml:"labels_path"`
	TempDir    string `yaml:"temp_dir"`
	FFmpegBin  string `yaml:"ffmpeg_bin"`

	WorkerCount     int   `yaml:"worker_count"`
	WorkerQueueSize int   `yaml:"worker_queue_size"`
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ArtifactMaxRetries   int           `yaml:"artifact_max_retries"`
	ArtifactRetryBackoff time.Duration `yaml:"artifact_retry_backoff"`
	S3Region             string        `yaml:"s3_region"`
	S3Endpoint           string        `yaml:"s3_endpoint"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:                 defaultPort,
		StorageDriver:        "sqlite",
		SQLitePath:           defaultSQLitePath,
		MySQL:                MySQL{Host: "localhost", Port: 3306},
		ModelPath:            defaultModelPath,
		LabelsPath:           defaultLabelsPath,
		TempDir:              os.TempDir(),
		WorkerCount:          runtime.NumCPU(),
		WorkerQueueSize:      defaultQueueSize,
		MaxUploadBytes:       defaultMaxUploadBytes,
		LogLevel:             "info",
		LogFormat:            "text",
		ArtifactMaxRetries:   defaultArtifactRetries,
		ArtifactRetryBackoff: defaultArtifactBackoff,
		S3Region:             "us-east-1",
	}
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	cfg := Default()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load .env file: %w", err)
		}
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.StorageDriver = getEnv("STORAGE_DRIVER", c.StorageDriver)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.MySQL.Host = getEnv("MYSQL_HOST", c.MySQL.Host)
	c.MySQL.User = getEnv("MYSQL_USER", c.MySQL.User)
	c.MySQL.Password = getEnv("MYSQL_PASSWORD", c.MySQL.Password)
	c.MySQL.Database = getEnv("MYSQL_DATABASE", c.MySQL.Database)
	c.ModelPath = getEnv("MODEL_PATH", c.ModelPath)
	c.LabelsPath = getEnv("LABELS_PATH", c.LabelsPath)
	c.TempDir = getEnv("TEMP_DIR", c.TempDir)
	c.FFmpegBin = getEnv("FFMPEG_BIN", c.FFmpegBin)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.S3Region = getEnv("S3_REGION", c.S3Region)
	c.S3Endpoint = getEnv("S3_ENDPOINT", c.S3Endpoint)

	ints := []struct {
		key string
		dst *int
	}{
		{"MYSQL_PORT", &c.MySQL.Port},
		{"WORKER_COUNT", &c.WorkerCount},
		{"WORKER_QUEUE_SIZE", &c.WorkerQueueSize},
		{"ARTIFACT_MAX_RETRIES", &c.ArtifactMaxRetries},
	}
	for _, e := range ints {
		raw := os.Getenv(e.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("config: %s: %w", e.key, err)
		}
		*e.dst = n
	}

	if raw := os.Getenv("MAX_UPLOAD_BYTES"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("config: MAX_UPLOAD_BYTES: %w", err)
		}
		c.MaxUploadBytes = n
	}
	if raw := os.Getenv("ARTIFACT_RETRY_BACKOFF_MS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("config: ARTIFACT_RETRY_BACKOFF_MS: %w", err)
		}
		c.ArtifactRetryBackoff = time.Duration(n) * time.Millisecond
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT must be numeric, got %q", c.Port))
	}
	switch c.StorageDriver {
	case "sqlite":
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	case "mysql":
		if c.MySQL.Host == "" || c.MySQL.User == "" || c.MySQL.Database == "" {
			errs = append(errs, errors.New("MYSQL_HOST, MYSQL_USER and MYSQL_DATABASE are required for the mysql driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	if strings.TrimSpace(c.ModelPath) == "" {
		errs = append(errs, errors.New("MODEL_PATH is required"))
	}
	if strings.TrimSpace(c.LabelsPath) == "" {
		errs = append(errs, errors.New("LABELS_PATH is required"))
	}
	if c.WorkerCount < 1 {
		errs = append(errs, fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount))
	}
	if c.WorkerQueueSize < 1 {
		errs = append(errs, fmt.Errorf("WORKER_QUEUE_SIZE must be positive, got %d", c.WorkerQueueSize))
	}
	if c.MaxUploadBytes < 1 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}
	if c.ArtifactMaxRetries < 1 {
		errs = append(errs, fmt.Errorf("ARTIFACT_MAX_RETRIES must be positive, got %d", c.ArtifactMaxRetries))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
