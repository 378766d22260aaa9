package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// QualityProfile is a named compression preset: rasterization resolution,
// JPEG quality for downsampled images, and the Ghostscript device preset.
type QualityProfile struct {
	Name        string `json:"name"`
	DPI         int    `json:"dpi"`
	JPEGQuality int    `json:"jpeg_quality"`
	Preset      string `json:"preset"`
	Description string `json:"description"`
}

// DefaultProfileName is the profile used when none is requested.
const DefaultProfileName = "balanced"

// DefaultOutputSuffix is appended to output file stems and to the batch
// output directory name.
const DefaultOutputSuffix = "_optimized_bw"

// Size bucket limits for the timeout policy.
const (
	smallFileLimit  = 1 << 20  // 1MB
	mediumFileLimit = 10 << 20 // 10MB
	largeFileLimit  = 50 << 20 // 50MB
)

// Config represents the main configuration structure
type Config struct {
	Quality     string            `mapstructure:"quality"`
	Output      OutputConfig      `mapstructure:"output"`
	Process     ProcessConfig     `mapstructure:"process"`
	Timeouts    TimeoutPolicy     `mapstructure:"timeouts"`
	Ghostscript GhostscriptConfig `mapstructure:"ghostscript"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// OutputConfig contains output naming settings
type OutputConfig struct {
	Suffix string `mapstructure:"suffix"`
}

// ProcessConfig contains external process supervision settings
type ProcessConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	GraceWindow      time.Duration `mapstructure:"grace_window"`
	RemoveAttempts   int           `mapstructure:"remove_attempts"`
	RemoveRetryDelay time.Duration `mapstructure:"remove_retry_delay"`
}

// TimeoutPolicy maps an input file size to the allowed processing duration.
// The total is the base plus exactly one size-bucketed addition.
type TimeoutPolicy struct {
	Base        time.Duration `mapstructure:"base"`
	SmallExtra  time.Duration `mapstructure:"small_extra"`  // < 1MB
	MediumExtra time.Duration `mapstructure:"medium_extra"` // < 10MB
	LargeExtra  time.Duration `mapstructure:"large_extra"`  // < 50MB
	XLargeExtra time.Duration `mapstructure:"xlarge_extra"` // >= 50MB
}

// GhostscriptConfig contains external tool settings
type GhostscriptConfig struct {
	Binary string `mapstructure:"binary"` // explicit path; empty means autodetect
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// DurationFor returns the allowed processing duration for a file of the given
// size in bytes. Buckets are half-open and evaluated in increasing order, so
// exactly one addition applies. The result never decreases as size grows.
func (p TimeoutPolicy) DurationFor(sizeBytes int64) time.Duration {
	switch {
	case sizeBytes < smallFileLimit:
		return p.Base + p.SmallExtra
	case sizeBytes < mediumFileLimit:
		return p.Base + p.MediumExtra
	case sizeBytes < largeFileLimit:
		return p.Base + p.LargeExtra
	default:
		return p.Base + p.XLargeExtra
	}
}

// AvailableProfiles returns all quality profiles, strongest compression last.
func AvailableProfiles() []QualityProfile {
	return []QualityProfile{
		{
			Name:        "high",
			DPI:         300,
			JPEGQuality: 85,
			Preset:      "/prepress",
			Description: "Archival quality, 300 DPI, light compression",
		},
		{
			Name:        "balanced",
			DPI:         200,
			JPEGQuality: 70,
			Preset:      "/ebook",
			Description: "Good quality and size trade-off, 200 DPI",
		},
		{
			Name:        "compact",
			DPI:         150,
			JPEGQuality: 60,
			Preset:      "/screen",
			Description: "Smallest output, 150 DPI, visible quality loss",
		},
	}
}

// ProfileByName resolves a profile by name, case-insensitively. Unknown or
// empty names resolve to the balanced profile; strict rejection of bad names
// belongs to the CLI and config boundaries, not here.
func ProfileByName(name string) QualityProfile {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range AvailableProfiles() {
		if p.Name == name {
			return p
		}
	}
	return ProfileByName(DefaultProfileName)
}

// IsValidProfile reports whether name is one of the defined profiles.
func IsValidProfile(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range AvailableProfiles() {
		if p.Name == name {
			return true
		}
	}
	return false
}

// ProfileNames returns the defined profile names in display order.
func ProfileNames() []string {
	profiles := AvailableProfiles()
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	return names
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Quality: DefaultProfileName,
		Output: OutputConfig{
			Suffix: DefaultOutputSuffix,
		},
		Process: ProcessConfig{
			PollInterval:     10 * time.Second,
			GraceWindow:      10 * time.Second,
			RemoveAttempts:   3,
			RemoveRetryDelay: 500 * time.Millisecond,
		},
		Timeouts: TimeoutPolicy{
			Base:        120 * time.Second,
			SmallExtra:  60 * time.Second,
			MediumExtra: 180 * time.Second,
			LargeExtra:  600 * time.Second,
			XLargeExtra: 1200 * time.Second,
		},
		Ghostscript: GhostscriptConfig{
			Binary: "",
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "pdf-compressor.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
			Console:    false,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.pdf-compressor")
		viper.AddConfigPath("/etc/pdf-compressor")
	}

	// Enable environment variable support
	viper.SetEnvPrefix("PDF_COMPRESSOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	// Unmarshal config
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate and normalize config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration and fills empty fields with defaults.
// Unlike the lenient profile lookup used during compression, a quality name
// set here must be one of the defined profiles.
func (c *Config) Validate() error {
	if c.Quality == "" {
		c.Quality = DefaultProfileName
	}
	if !IsValidProfile(c.Quality) {
		return fmt.Errorf("invalid quality profile: %s (valid: %s)",
			c.Quality, strings.Join(ProfileNames(), ", "))
	}

	if c.Output.Suffix == "" {
		c.Output.Suffix = DefaultOutputSuffix
	}

	if c.Process.PollInterval <= 0 {
		c.Process.PollInterval = 10 * time.Second
	}
	if c.Process.GraceWindow <= 0 {
		c.Process.GraceWindow = 10 * time.Second
	}
	if c.Process.RemoveAttempts <= 0 {
		c.Process.RemoveAttempts = 3
	}
	if c.Process.RemoveRetryDelay <= 0 {
		c.Process.RemoveRetryDelay = 500 * time.Millisecond
	}

	defaults := DefaultConfig().Timeouts
	if c.Timeouts.Base <= 0 {
		c.Timeouts.Base = defaults.Base
	}
	if c.Timeouts.SmallExtra <= 0 {
		c.Timeouts.SmallExtra = defaults.SmallExtra
	}
	if c.Timeouts.MediumExtra <= 0 {
		c.Timeouts.MediumExtra = defaults.MediumExtra
	}
	if c.Timeouts.LargeExtra <= 0 {
		c.Timeouts.LargeExtra = defaults.LargeExtra
	}
	if c.Timeouts.XLargeExtra <= 0 {
		c.Timeouts.XLargeExtra = defaults.XLargeExtra
	}
	if c.Timeouts.SmallExtra > c.Timeouts.MediumExtra ||
		c.Timeouts.MediumExtra > c.Timeouts.LargeExtra ||
		c.Timeouts.LargeExtra > c.Timeouts.XLargeExtra {
		return fmt.Errorf("timeout additions must not decrease across size buckets")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// Profile returns the quality profile selected by the configuration.
func (c *Config) Profile() QualityProfile {
	return ProfileByName(c.Quality)
}

// OutputFileName returns the output file name for the given input file,
// e.g. "report.pdf" -> "report_optimized_bw.pdf".
func (c *Config) OutputFileName(inputPath string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + c.Output.Suffix + ".pdf"
}

// OutputDirName returns the batch output directory for the given input
// directory, a sibling named after it, e.g. "scans" -> "scans_optimized_bw".
func (c *Config) OutputDirName(inputDir string) string {
	return filepath.Clean(inputDir) + c.Output.Suffix
}
