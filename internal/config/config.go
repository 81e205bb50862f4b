// This file defines the configuration structure for the application.
package config

import (
	// use Viper for loading the config.yml file.
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Uploads struct {
		Path     string `mapstructure:"path"`
		MaxBytes int64  `mapstructure:"max_bytes"`
	} `mapstructure:"uploads"`
	Inbox struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"inbox"`
	Pipeline struct {
		UploadLatencyMs int     `mapstructure:"upload_latency_ms"`
		TimeScale       float64 `mapstructure:"time_scale"`
	} `mapstructure:"pipeline"`
	Jobs struct {
		PruneInterval  int `mapstructure:"prune_interval"`
		RetentionHours int `mapstructure:"retention_hours"`
	} `mapstructure:"jobs"`
	Admin struct {
		// PasswordHash is a bcrypt hash. Empty leaves the admin API open.
		PasswordHash string `mapstructure:"password_hash"`
	} `mapstructure:"admin"`
}

// UploadLatency returns the configured simulated upload duration.
func (c *Config) UploadLatency() time.Duration {
	return time.Duration(c.Pipeline.UploadLatencyMs) * time.Millisecond
}

// Retention returns how long superseded uploads are kept on disk.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Jobs.RetentionHours) * time.Hour
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")
	v.AddConfigPath(".")

	// --- Environment Variable Overrides ---
	// e.g., OILSPILL_UPLOADS_PATH will override the `uploads.path` key.
	v.SetEnvPrefix("OILSPILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	// Defaults are static; unmarshalling them cannot fail.
	_ = v.Unmarshal(&config)
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("database.path", "./oilspill.db")
	v.SetDefault("uploads.path", "./uploads")
	v.SetDefault("uploads.max_bytes", int64(1)<<30)
	v.SetDefault("inbox.path", "")
	v.SetDefault("pipeline.upload_latency_ms", 2000)
	v.SetDefault("pipeline.time_scale", 1.0)
	v.SetDefault("jobs.prune_interval", 60)
	v.SetDefault("jobs.retention_hours", 24)
	v.SetDefault("admin.password_hash", "")
}
