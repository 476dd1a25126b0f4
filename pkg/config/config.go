package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"wosexport/pkg/pacing"
)

// EnvPrefix prefixes every environment variable the tool reads.
const EnvPrefix = "WOSEXPORT_"

// Config holds all configuration options for the exporter
type Config struct {
	// Institutional access channel and its account
	Channel ChannelConfig `yaml:"channel" json:"channel"`

	// Browser launch options
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Directories handed to the session, exporter and relocation helper
	Paths PathsConfig `yaml:"paths" json:"paths"`

	// Export batching and retry behavior
	Export ExportConfig `yaml:"export" json:"export"`

	// Human-like pause ranges
	Pacing PacingConfig `yaml:"pacing" json:"pacing"`

	// Wait bounds for page elements
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ChannelConfig selects the institutional login portal
type ChannelConfig struct {
	Name     string `yaml:"name" json:"name" validate:"required"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password,omitempty" json:"-"`
	HomeURL  string `yaml:"home_url,omitempty" json:"home_url,omitempty" validate:"omitempty,url"`
}

// BrowserConfig holds Chrome launch options
type BrowserConfig struct {
	ChromePath       string `yaml:"chrome_path" json:"chrome_path"`
	Headless         bool   `yaml:"headless" json:"headless"`
	WindowPercentage int    `yaml:"window_percentage" json:"window_percentage" validate:"gte=20,lte=100"`
	ScreenWidth      int    `yaml:"screen_width" json:"screen_width" validate:"gt=0"`
	ScreenHeight     int    `yaml:"screen_height" json:"screen_height" validate:"gt=0"`
	UserAgent        string `yaml:"user_agent" json:"user_agent"`
	Language         string `yaml:"language" json:"language"`
}

// PathsConfig holds every directory the tool touches
type PathsConfig struct {
	ProfileDir  string `yaml:"profile_dir" json:"profile_dir" validate:"required"`
	DownloadDir string `yaml:"download_dir" json:"download_dir" validate:"required"`
	LogDir      string `yaml:"log_dir" json:"log_dir" validate:"required"`
	ArchiveDir  string `yaml:"archive_dir" json:"archive_dir"`
}

// ExportConfig holds export batching configuration
type ExportConfig struct {
	RecordsPerExport int           `yaml:"records_per_export" json:"records_per_export" validate:"gt=0,lte=1000"`
	MaxAttempts      int           `yaml:"max_attempts" json:"max_attempts" validate:"gt=0,lte=50"`
	ReexportPasses   int           `yaml:"reexport_passes" json:"reexport_passes" validate:"gte=0,lte=10"`
	RecordContent    string        `yaml:"record_content" json:"record_content" validate:"required"`
	LogPrefix        string        `yaml:"log_prefix" json:"log_prefix" validate:"required,excludesall=/\\"`
	ExportsPerHour   int           `yaml:"exports_per_hour" json:"exports_per_hour" validate:"gte=0"`
	DialogTimeout    time.Duration `yaml:"dialog_timeout" json:"dialog_timeout" validate:"gt=0"`
	DownloadTimeout  time.Duration `yaml:"download_timeout" json:"download_timeout" validate:"gt=0"`
}

// PacingConfig holds the named pause ranges used across the automation
type PacingConfig struct {
	// Think is the generic pause between two page interactions
	Think pacing.Range `yaml:"think" json:"think"`
	// Settle is the pause after a navigation or a dialog change
	Settle pacing.Range `yaml:"settle" json:"settle"`
	// Keystroke is the gap between typed characters
	Keystroke pacing.Range `yaml:"keystroke" json:"keystroke"`
	// Scroll is the gap between scroll key presses
	Scroll pacing.Range `yaml:"scroll" json:"scroll"`
	// Hover is how long the pointer rests on a target before clicking
	Hover pacing.Range `yaml:"hover" json:"hover"`
	// Clear is the pause inside a field-clearing gesture
	Clear pacing.Range `yaml:"clear" json:"clear"`
	// BetweenExports separates two export ranges
	BetweenExports pacing.Range `yaml:"between_exports" json:"between_exports"`
	// Poll is the gap between two download directory scans
	Poll pacing.Range `yaml:"poll" json:"poll"`
}

// TimeoutConfig holds page wait bounds
type TimeoutConfig struct {
	Element       time.Duration `yaml:"element" json:"element" validate:"gt=0"`
	LoggedInCheck time.Duration `yaml:"logged_in_check" json:"logged_in_check" validate:"gt=0"`
	Login         time.Duration `yaml:"login" json:"login" validate:"gt=0"`
	Captcha       time.Duration `yaml:"captcha" json:"captcha" validate:"gt=0"`
	Overlay       time.Duration `yaml:"overlay" json:"overlay" validate:"gt=0"`
	Results       time.Duration `yaml:"results" json:"results" validate:"gt=0"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" json:"on_error"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn warning error"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Channel: ChannelConfig{
			Name: "sunshine",
		},
		Browser: BrowserConfig{
			WindowPercentage: 80,
			ScreenWidth:      1920,
			ScreenHeight:     1080,
			Language:         "zh-CN",
		},
		Paths: PathsConfig{
			ProfileDir:  "./chrome-profile",
			DownloadDir: "./downloads",
			LogDir:      "./task-logs",
			ArchiveDir:  "./archive",
		},
		Export: ExportConfig{
			RecordsPerExport: 500,
			MaxAttempts:      7,
			ReexportPasses:   3,
			RecordContent:    "Full Record and Cited References",
			LogPrefix:        "task_log_",
			ExportsPerHour:   40,
			DialogTimeout:    60 * time.Second,
			DownloadTimeout:  2 * time.Minute,
		},
		Pacing: PacingConfig{
			Think:          pacing.Seconds(1.618, 5.42, 0.2),
			Settle:         pacing.Seconds(1.8, 5.42, 1),
			Keystroke:      pacing.Seconds(0.5, 1.5, 1),
			Scroll:         pacing.Seconds(0.5, 2.42, 1),
			Hover:          pacing.Seconds(1.42, 5.42, 0.2),
			Clear:          pacing.Seconds(1.2, 3.14, 1),
			BetweenExports: pacing.Seconds(3.42, 15, 0.3),
			Poll:           pacing.Seconds(0.8, 1.6, 1),
		},
		Timeouts: TimeoutConfig{
			Element:       20 * time.Second,
			LoggedInCheck: 7 * time.Second,
			Login:         5 * time.Minute,
			Captcha:       3 * time.Minute,
			Overlay:       3 * time.Second,
			Results:       60 * time.Second,
		},
		Notifications: NotificationConfig{
			Enabled:    true,
			OnComplete: true,
			OnError:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
	setBool := func(name string, dst *bool) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = b
	}

	// Channel account
	setString("CHANNEL", &c.Channel.Name)
	setString("USERNAME", &c.Channel.Username)
	setString("PASSWORD", &c.Channel.Password)

	// Browser
	if p := os.Getenv("CHROME_PATH"); p != "" {
		c.Browser.ChromePath = p
	}
	setString("CHROME_PATH", &c.Browser.ChromePath)
	setBool("HEADLESS", &c.Browser.Headless)

	// Directories
	setString("PROFILE_DIR", &c.Paths.ProfileDir)
	setString("DOWNLOAD_DIR", &c.Paths.DownloadDir)
	setString("LOG_DIR", &c.Paths.LogDir)
	setString("ARCHIVE_DIR", &c.Paths.ArchiveDir)

	// Export
	setInt("RECORDS_PER_EXPORT", &c.Export.RecordsPerExport)
	setInt("MAX_ATTEMPTS", &c.Export.MaxAttempts)
	setInt("REEXPORT_PASSES", &c.Export.ReexportPasses)
	setInt("EXPORTS_PER_HOUR", &c.Export.ExportsPerHour)

	// Notifications
	setBool("NOTIFICATIONS_ENABLED", &c.Notifications.Enabled)

	// Logging
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// DefaultPath is where `config init` writes when no path is given
func DefaultPath() string {
	return filepath.Join(userConfigDir(), "wosexport", "config.yaml")
}

func userConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

// findConfigFile searches for a config file in standard locations
func findConfigFile() string {
	locations := []string{
		".wosexport.yaml",
		".wosexport.yml",
		DefaultPath(),
		filepath.Join(userConfigDir(), "wosexport", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".wosexport.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

var validate = validator.New()

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Field rules declared in struct tags
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validating config: %w", err)
		}
		for _, fe := range fieldErrs {
			errs = append(errs, describeFieldError(fe))
		}
	}

	// Pause ranges
	ranges := map[string]pacing.Range{
		"think":           c.Pacing.Think,
		"settle":          c.Pacing.Settle,
		"keystroke":       c.Pacing.Keystroke,
		"scroll":          c.Pacing.Scroll,
		"hover":           c.Pacing.Hover,
		"clear":           c.Pacing.Clear,
		"between_exports": c.Pacing.BetweenExports,
		"poll":            c.Pacing.Poll,
	}
	for _, name := range slices.Sorted(maps.Keys(ranges)) {
		if err := ranges[name].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("pacing.%s: %w", name, err))
		}
	}

	// Cross-field directory rules
	if c.Paths.ProfileDir != "" && samePath(c.Paths.ProfileDir, c.Paths.DownloadDir) {
		errs = append(errs, errors.New("paths.download_dir must differ from paths.profile_dir"))
	}
	if c.Paths.ArchiveDir != "" && samePath(c.Paths.ArchiveDir, c.Paths.LogDir) {
		errs = append(errs, errors.New("paths.archive_dir must differ from paths.log_dir"))
	}

	return errors.Join(errs...)
}

func describeFieldError(fe validator.FieldError) error {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "gt", "gte", "lt", "lte":
		return fmt.Errorf("%s must be %s %s, got %v", field, fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s failed %q check", field, fe.Tag())
	}
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Masked returns a copy that is safe to print
func (c *Config) Masked() *Config {
	cp := *c
	if cp.Channel.Password != "" {
		cp.Channel.Password = "********"
	}
	return &cp
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Keys match the cobra flag names; empty or zero values are ignored.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	str := func(key string, dst *string) {
		if v, ok := flags[key].(string); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := flags[key].(int); ok && v > 0 {
			*dst = v
		}
	}

	str("channel", &c.Channel.Name)
	str("username", &c.Channel.Username)
	str("chrome-path", &c.Browser.ChromePath)
	str("profile-dir", &c.Paths.ProfileDir)
	str("download-dir", &c.Paths.DownloadDir)
	str("log-dir", &c.Paths.LogDir)
	str("archive-dir", &c.Paths.ArchiveDir)
	str("log-level", &c.Logging.Level)
	str("log-file", &c.Logging.File)
	num("records-per-export", &c.Export.RecordsPerExport)
	num("max-attempts", &c.Export.MaxAttempts)

	if v, ok := flags["reexport-passes"].(int); ok && v >= 0 {
		c.Export.ReexportPasses = v
	}
	if v, ok := flags["headless"].(bool); ok && v {
		c.Browser.Headless = true
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".wosexport.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
