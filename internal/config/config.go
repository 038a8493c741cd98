// Package config handles configuration loading, validation, and management for wordlogd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Output configures the word log.
	Output OutputConfig `toml:"output" json:"output" yaml:"output"`

	// Index configures the optional SQLite mirror of committed lines.
	Index IndexConfig `toml:"index" json:"index" yaml:"index"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`
}

// OutputConfig holds word log configuration.
type OutputConfig struct {
	// Path is the JSON-Lines file committed lines are appended to.
	Path string `toml:"path" json:"path" yaml:"path"`

	// MaxSizeMB rotates the log when it would grow past this size.
	// Zero disables rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated logs to keep. Zero keeps all.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// Compress gzips rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// IndexConfig holds search index configuration.
type IndexConfig struct {
	// Enabled mirrors every committed line into the index.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the SQLite database path.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file" or "both").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// MetricsConfig holds the metrics endpoint configuration.
type MetricsConfig struct {
	// Enabled serves /metrics on Listen.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Listen is the TCP address of the metrics endpoint.
	Listen string `toml:"listen" json:"listen" yaml:"listen"`
}

// DefaultConfig returns the default configuration rooted at DataDir.
func DefaultConfig() *Config {
	dir := DataDir()
	return &Config{
		Version: Version,
		Output: OutputConfig{
			Path:       filepath.Join(dir, "word.log"),
			MaxBackups: 10,
			Compress:   true,
		},
		Index: IndexConfig{
			Enabled: false,
			Path:    filepath.Join(dir, "index.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(dir, "logs", "wordlogd.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
	}
}

// DataDir returns the base wordlog directory.
// WORDLOG_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("WORDLOG_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from path, applying environment overrides.
// A missing file yields the defaults. The format follows the file
// extension: TOML, JSON or YAML.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Output.Path)}
	if c.Index.Enabled {
		dirs = append(dirs, filepath.Dir(c.Index.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies WORDLOG_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("WORDLOG_OUTPUT_PATH"); v != "" {
		c.Output.Path = v
	}
	if v := os.Getenv("WORDLOG_INDEX_PATH"); v != "" {
		c.Index.Path = v
		c.Index.Enabled = true
	}
	if v := os.Getenv("WORDLOG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("WORDLOG_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("WORDLOG_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
		c.Metrics.Enabled = true
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
