// Package config loads buildtrack configuration through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config represents the complete buildtrack configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Timeline    TimelineConfig    `mapstructure:"timeline"`
	Markers     MarkersConfig     `mapstructure:"markers"`
	Layout      LayoutConfig      `mapstructure:"layout"`
	History     HistoryConfig     `mapstructure:"history"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
}

// ServerConfig controls the HTTP listener and storage location
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	DBPath    string `mapstructure:"db_path"`
	StaticDir string `mapstructure:"static_dir"`
	// ShutdownTimeoutSeconds bounds graceful shutdown
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// LoggingConfig controls slog output
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level"`
	// Format is "text" or "json"
	Format string `mapstructure:"format"`
}

// TimelineConfig controls default timeline ranges and schedule derivation
type TimelineConfig struct {
	DefaultView string `mapstructure:"default_view"`
	// PaddingDays pads the derived range on both sides
	PaddingDays int `mapstructure:"padding_days"`
	// HoursPerDay converts estimated hours into whole days
	HoursPerDay float64 `mapstructure:"hours_per_day"`
}

// MarkersConfig tunes collision detection and resolution
type MarkersConfig struct {
	// Horizontal tolerances in percent of the timeline width
	ToleranceDays   float64 `mapstructure:"tolerance_days"`
	ToleranceWeeks  float64 `mapstructure:"tolerance_weeks"`
	ToleranceMonths float64 `mapstructure:"tolerance_months"`
	// MobileToleranceFactor widens tolerances for touch targets
	MobileToleranceFactor float64 `mapstructure:"mobile_tolerance_factor"`
	// Minimum vertical spacing in pixels before two markers overlap
	MinSpacingDesktop float64 `mapstructure:"min_spacing_desktop"`
	MinSpacingMobile  float64 `mapstructure:"min_spacing_mobile"`
	// Vertical step between stacked markers
	StackSpacingDesktop float64 `mapstructure:"stack_spacing_desktop"`
	StackSpacingMobile  float64 `mapstructure:"stack_spacing_mobile"`
	// Horizontal step between offset markers per view mode
	OffsetStepDays   float64 `mapstructure:"offset_step_days"`
	OffsetStepWeeks  float64 `mapstructure:"offset_step_weeks"`
	OffsetStepMonths float64 `mapstructure:"offset_step_months"`
	// DebounceMs coalesces marker recomputation
	DebounceMs int `mapstructure:"debounce_ms"`
}

// LayoutConfig controls row heights and virtualization
type LayoutConfig struct {
	CollapsedRowHeight  int `mapstructure:"collapsed_row_height"`
	ExpandedRowHeight   int `mapstructure:"expanded_row_height"`
	VirtualizeThreshold int `mapstructure:"virtualize_threshold"`
	BufferRows          int `mapstructure:"buffer_rows"`
}

// HistoryConfig controls the undo stack
type HistoryConfig struct {
	// MaxDepth caps the number of undoable actions, 0 = unlimited
	MaxDepth int `mapstructure:"max_depth"`
}

// PreferencesConfig bounds the persisted panel settings
type PreferencesConfig struct {
	PanelWidth    int  `mapstructure:"panel_width"`
	MinPanelWidth int  `mapstructure:"min_panel_width"`
	MaxPanelWidth int  `mapstructure:"max_panel_width"`
	PanelStep     int  `mapstructure:"panel_step"`
	Collapsed     bool `mapstructure:"collapsed"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                   ":8080",
			DBPath:                 "data/buildtrack.db",
			StaticDir:              "web/dist",
			ShutdownTimeoutSeconds: 5,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Timeline: TimelineConfig{
			DefaultView: "days",
			PaddingDays: 3,
			HoursPerDay: 8,
		},
		Markers: MarkersConfig{
			ToleranceDays:         0.5,
			ToleranceWeeks:        1.0,
			ToleranceMonths:       2.0,
			MobileToleranceFactor: 2.0,
			MinSpacingDesktop:     24,
			MinSpacingMobile:      44,
			StackSpacingDesktop:   24,
			StackSpacingMobile:    44,
			OffsetStepDays:        0.8,
			OffsetStepWeeks:       1.2,
			OffsetStepMonths:      1.6,
			DebounceMs:            16,
		},
		Layout: LayoutConfig{
			CollapsedRowHeight:  40,
			ExpandedRowHeight:   64,
			VirtualizeThreshold: 50,
			BufferRows:          5,
		},
		History: HistoryConfig{
			MaxDepth: 100,
		},
		Preferences: PreferencesConfig{
			PanelWidth:    320,
			MinPanelWidth: 200,
			MaxPanelWidth: 640,
			PanelStep:     20,
			Collapsed:     false,
		},
	}
}

// DebounceDelay returns the marker recomputation delay
func (c *MarkersConfig) DebounceDelay() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown budget
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// SetDefaults registers every default with the global viper so that env
// overrides work without a config file
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers every default on v
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.db_path", defaults.Server.DBPath)
	v.SetDefault("server.static_dir", defaults.Server.StaticDir)
	v.SetDefault("server.shutdown_timeout_seconds", defaults.Server.ShutdownTimeoutSeconds)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetDefault("timeline.default_view", defaults.Timeline.DefaultView)
	v.SetDefault("timeline.padding_days", defaults.Timeline.PaddingDays)
	v.SetDefault("timeline.hours_per_day", defaults.Timeline.HoursPerDay)

	v.SetDefault("markers.tolerance_days", defaults.Markers.ToleranceDays)
	v.SetDefault("markers.tolerance_weeks", defaults.Markers.ToleranceWeeks)
	v.SetDefault("markers.tolerance_months", defaults.Markers.ToleranceMonths)
	v.SetDefault("markers.mobile_tolerance_factor", defaults.Markers.MobileToleranceFactor)
	v.SetDefault("markers.min_spacing_desktop", defaults.Markers.MinSpacingDesktop)
	v.SetDefault("markers.min_spacing_mobile", defaults.Markers.MinSpacingMobile)
	v.SetDefault("markers.stack_spacing_desktop", defaults.Markers.StackSpacingDesktop)
	v.SetDefault("markers.stack_spacing_mobile", defaults.Markers.StackSpacingMobile)
	v.SetDefault("markers.offset_step_days", defaults.Markers.OffsetStepDays)
	v.SetDefault("markers.offset_step_weeks", defaults.Markers.OffsetStepWeeks)
	v.SetDefault("markers.offset_step_months", defaults.Markers.OffsetStepMonths)
	v.SetDefault("markers.debounce_ms", defaults.Markers.DebounceMs)

	v.SetDefault("layout.collapsed_row_height", defaults.Layout.CollapsedRowHeight)
	v.SetDefault("layout.expanded_row_height", defaults.Layout.ExpandedRowHeight)
	v.SetDefault("layout.virtualize_threshold", defaults.Layout.VirtualizeThreshold)
	v.SetDefault("layout.buffer_rows", defaults.Layout.BufferRows)

	v.SetDefault("history.max_depth", defaults.History.MaxDepth)

	v.SetDefault("preferences.panel_width", defaults.Preferences.PanelWidth)
	v.SetDefault("preferences.min_panel_width", defaults.Preferences.MinPanelWidth)
	v.SetDefault("preferences.max_panel_width", defaults.Preferences.MaxPanelWidth)
	v.SetDefault("preferences.panel_step", defaults.Preferences.PanelStep)
	v.SetDefault("preferences.collapsed", defaults.Preferences.Collapsed)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against an explicit viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("%w: server.addr is required", ErrInvalid))
	}
	if c.Server.DBPath == "" {
		errs = append(errs, fmt.Errorf("%w: server.db_path is required", ErrInvalid))
	}
	switch c.Timeline.DefaultView {
	case "days", "weeks", "months":
	default:
		errs = append(errs, fmt.Errorf("%w: timeline.default_view %q must be days, weeks or months", ErrInvalid, c.Timeline.DefaultView))
	}
	if c.Timeline.PaddingDays < 0 {
		errs = append(errs, fmt.Errorf("%w: timeline.padding_days must be >= 0", ErrInvalid))
	}
	if c.Timeline.HoursPerDay <= 0 {
		errs = append(errs, fmt.Errorf("%w: timeline.hours_per_day must be > 0", ErrInvalid))
	}
	if c.Markers.ToleranceDays <= 0 || c.Markers.ToleranceWeeks <= 0 || c.Markers.ToleranceMonths <= 0 {
		errs = append(errs, fmt.Errorf("%w: markers tolerances must be > 0", ErrInvalid))
	}
	if c.Markers.MobileToleranceFactor < 1 {
		errs = append(errs, fmt.Errorf("%w: markers.mobile_tolerance_factor must be >= 1", ErrInvalid))
	}
	if c.Markers.MinSpacingDesktop <= 0 || c.Markers.MinSpacingMobile <= 0 {
		errs = append(errs, fmt.Errorf("%w: markers min spacing must be > 0", ErrInvalid))
	}
	if c.Markers.DebounceMs < 0 {
		errs = append(errs, fmt.Errorf("%w: markers.debounce_ms must be >= 0", ErrInvalid))
	}
	if c.Layout.CollapsedRowHeight <= 0 || c.Layout.ExpandedRowHeight < c.Layout.CollapsedRowHeight {
		errs = append(errs, fmt.Errorf("%w: layout row heights must be > 0 and expanded >= collapsed", ErrInvalid))
	}
	if c.Layout.VirtualizeThreshold < 0 || c.Layout.BufferRows < 0 {
		errs = append(errs, fmt.Errorf("%w: layout threshold and buffer must be >= 0", ErrInvalid))
	}
	if c.History.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("%w: history.max_depth must be >= 0", ErrInvalid))
	}
	p := c.Preferences
	if p.MinPanelWidth <= 0 || p.MaxPanelWidth < p.MinPanelWidth {
		errs = append(errs, fmt.Errorf("%w: preferences panel bounds are inconsistent", ErrInvalid))
	} else if p.PanelWidth < p.MinPanelWidth || p.PanelWidth > p.MaxPanelWidth {
		errs = append(errs, fmt.Errorf("%w: preferences.panel_width must be between %d and %d", ErrInvalid, p.MinPanelWidth, p.MaxPanelWidth))
	}
	return errors.Join(errs...)
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "buildtrack")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".buildtrack"
	}
	return filepath.Join(home, ".config", "buildtrack")
}
