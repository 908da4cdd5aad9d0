// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces every environment variable the tool reads.
	EnvPrefix = "SNOWFLAKE"
	// DefaultConfigFile is used when neither --config-file nor
	// SNOWFLAKE_CONFIG_FILE names one.
	DefaultConfigFile = "snowflake_config.json"
	// DefaultSignupURL is the entry point of the signup form.
	DefaultSignupURL = "https://signup.snowflake.com/#"
)

// Config holds the ambient settings of the process. The signup record itself
// is resolved separately by Resolver.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Batch   BatchConfig   `mapstructure:"batch" yaml:"batch"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
	Color       bool   `mapstructure:"color" yaml:"color"`
}

// BrowserConfig tunes the Chrome instances driven by the workflow.
type BrowserConfig struct {
	SignupURL string `mapstructure:"signup_url" yaml:"signup_url"`
	// ExecPath overrides chromedp's Chrome discovery when set.
	ExecPath string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args     []string `mapstructure:"args" yaml:"args"`
	// CaptchaPollInterval paces the unbounded wait for the human to finish.
	CaptchaPollInterval time.Duration `mapstructure:"captcha_poll_interval" yaml:"captcha_poll_interval"`
	// CompletionPollInterval paces the search for the confirmation marker.
	CompletionPollInterval time.Duration `mapstructure:"completion_poll_interval" yaml:"completion_poll_interval"`
}

// BatchConfig holds the defaults of the batch and demo commands.
type BatchConfig struct {
	DataFile string `mapstructure:"data_file" yaml:"data_file"`
	// Delay is the pause between two entries, in seconds.
	Delay     int    `mapstructure:"delay" yaml:"delay"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file"`
}

// StoreConfig enables the optional Postgres result sink.
type StoreConfig struct {
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

// Enabled reports whether a database URL was configured.
func (s StoreConfig) Enabled() bool { return s.DatabaseURL != "" }

// NewDefaultConfig creates a configuration populated with default values only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults registers every ambient default on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "signup-cli")
	v.SetDefault("logger.log_file", "signup-cli.log")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.color", true)

	// -- Browser --
	v.SetDefault("browser.signup_url", DefaultSignupURL)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.captcha_poll_interval", "500ms")
	v.SetDefault("browser.completion_poll_interval", "1s")

	// -- Batch --
	v.SetDefault("batch.data_file", "test_data.json")
	v.SetDefault("batch.delay", 60)
	v.SetDefault("batch.output_dir", ".")
	v.SetDefault("batch.log_file", "batch_signup.log")

	// -- Store --
	v.SetDefault("store.database_url", "")
}

// NewViper builds the process viper: defaults, SNOWFLAKE_ environment
// overrides and the JSON config file at path. A missing file is not an
// error. An unreadable or malformed one is returned as a *FileError next to
// a usable viper so callers can log it and carry on.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		return v, nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return v, &FileError{Path: path, Err: err}
	}
	if _, err := os.Stat(expanded); errors.Is(err, fs.ErrNotExist) {
		return v, nil
	}

	v.SetConfigFile(expanded)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		// ReadInConfig can leave partial state behind; start over without the file.
		clean := viper.New()
		SetDefaults(clean)
		clean.SetEnvPrefix(EnvPrefix)
		clean.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		clean.AutomaticEnv()
		return clean, &FileError{Path: expanded, Err: err}
	}
	return v, nil
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for _, p := range []*string{&cfg.Logger.LogFile, &cfg.Batch.DataFile, &cfg.Batch.OutputDir, &cfg.Batch.LogFile} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return nil, fmt.Errorf("error expanding path %q: %w", *p, err)
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Browser.SignupURL == "" {
		return fmt.Errorf("browser.signup_url is a required configuration field")
	}
	if c.Browser.CaptchaPollInterval <= 0 {
		return fmt.Errorf("browser.captcha_poll_interval must be a positive duration")
	}
	if c.Browser.CompletionPollInterval <= 0 {
		return fmt.Errorf("browser.completion_poll_interval must be a positive duration")
	}
	if c.Batch.Delay < 0 {
		return fmt.Errorf("batch.delay must not be negative")
	}
	if c.Logger.MaxSize < 0 || c.Logger.MaxBackups < 0 || c.Logger.MaxAge < 0 {
		return fmt.Errorf("logger rotation settings must not be negative")
	}
	return nil
}
