package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata" // clip stats default to Pacific/Auckland on hosts without zoneinfo
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Background subtraction modes accepted by background_subtraction.
const (
	SubtractionAuto = "auto"
	SubtractionOn   = "on"
	SubtractionOff  = "off"
)

// TuningConfig represents the root configuration for tuning parameters.
// Every field is optional; the Get* accessors supply the defaults used when a
// key is absent, so partial JSON files are safe.
type TuningConfig struct {
	// Background estimation
	BackgroundSubtraction     *string  `json:"background_subtraction,omitempty"` // "auto", "on" or "off"
	BackgroundPercentile      *float64 `json:"background_percentile,omitempty"`
	ThresholdPercentile       *float64 `json:"threshold_percentile,omitempty"`
	MinThreshold              *float64 `json:"min_threshold,omitempty"`
	MaxThreshold              *float64 `json:"max_threshold,omitempty"`
	FallbackThreshold         *float64 `json:"fallback_threshold,omitempty"`
	StaticBackgroundThreshold *float64 `json:"static_background_threshold,omitempty"`

	// Clip admission
	MaxMeanTemperature  *float64 `json:"max_mean_temperature,omitempty"`
	MaxTemperatureRange *float64 `json:"max_temperature_range,omitempty"`

	// Region detection
	ErosionIterations *int `json:"erosion_iterations,omitempty"`
	RegionPadding     *int `json:"region_padding,omitempty"`

	// Association
	MinOverlapFraction        *float64 `json:"min_overlap_fraction,omitempty"`
	MaxRelativeAreaDifference *float64 `json:"max_relative_area_difference,omitempty"`
	VelocitySmoothing         *float64 `json:"velocity_smoothing,omitempty"`

	// Scoring and filtering
	FrameRate       *float64 `json:"frame_rate,omitempty"`
	MinTrackSeconds *float64 `json:"min_track_seconds,omitempty"`
	MinMaxOffset    *float64 `json:"min_max_offset,omitempty"`
	MaxTracks       *int     `json:"max_tracks,omitempty"` // 0 keeps every surviving track

	// Export
	WindowSize *int    `json:"window_size,omitempty"`
	EnableFlow *bool   `json:"enable_flow,omitempty"`
	Timezone   *string `json:"timezone,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated with
// its default value. It mirrors config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	return &TuningConfig{
		BackgroundSubtraction:     ptrString(empty.GetBackgroundSubtraction()),
		BackgroundPercentile:      ptrFloat64(empty.GetBackgroundPercentile()),
		ThresholdPercentile:       ptrFloat64(empty.GetThresholdPercentile()),
		MinThreshold:              ptrFloat64(empty.GetMinThreshold()),
		MaxThreshold:              ptrFloat64(empty.GetMaxThreshold()),
		FallbackThreshold:         ptrFloat64(empty.GetFallbackThreshold()),
		StaticBackgroundThreshold: ptrFloat64(empty.GetStaticBackgroundThreshold()),
		MaxMeanTemperature:        ptrFloat64(empty.GetMaxMeanTemperature()),
		MaxTemperatureRange:       ptrFloat64(empty.GetMaxTemperatureRange()),
		ErosionIterations:         ptrInt(empty.GetErosionIterations()),
		RegionPadding:             ptrInt(empty.GetRegionPadding()),
		MinOverlapFraction:        ptrFloat64(empty.GetMinOverlapFraction()),
		MaxRelativeAreaDifference: ptrFloat64(empty.GetMaxRelativeAreaDifference()),
		VelocitySmoothing:         ptrFloat64(empty.GetVelocitySmoothing()),
		FrameRate:                 ptrFloat64(empty.GetFrameRate()),
		MinTrackSeconds:           ptrFloat64(empty.GetMinTrackSeconds()),
		MinMaxOffset:              ptrFloat64(empty.GetMinMaxOffset()),
		MaxTracks:                 ptrInt(empty.GetMaxTracks()),
		WindowSize:                ptrInt(empty.GetWindowSize()),
		EnableFlow:                ptrBool(empty.GetEnableFlow()),
		Timezone:                  ptrString(empty.GetTimezone()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/thermal/l5tracks/
		"../../../../" + DefaultConfigPath,    // from internal/thermal/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.BackgroundSubtraction != nil {
		switch *c.BackgroundSubtraction {
		case SubtractionAuto, SubtractionOn, SubtractionOff:
		default:
			return fmt.Errorf("background_subtraction must be one of auto, on, off; got %q", *c.BackgroundSubtraction)
		}
	}

	for name, p := range map[string]*float64{
		"background_percentile": c.BackgroundPercentile,
		"threshold_percentile":  c.ThresholdPercentile,
	} {
		if p != nil && (*p < 0 || *p > 100) {
			return fmt.Errorf("%s must be between 0 and 100, got %f", name, *p)
		}
	}

	if c.GetMinThreshold() > c.GetMaxThreshold() {
		return fmt.Errorf("min_threshold (%f) must not exceed max_threshold (%f)", c.GetMinThreshold(), c.GetMaxThreshold())
	}

	if c.ErosionIterations != nil && *c.ErosionIterations < 0 {
		return fmt.Errorf("erosion_iterations must be non-negative, got %d", *c.ErosionIterations)
	}
	if c.RegionPadding != nil && *c.RegionPadding < 0 {
		return fmt.Errorf("region_padding must be non-negative, got %d", *c.RegionPadding)
	}

	if c.MinOverlapFraction != nil && (*c.MinOverlapFraction < 0 || *c.MinOverlapFraction > 1) {
		return fmt.Errorf("min_overlap_fraction must be between 0 and 1, got %f", *c.MinOverlapFraction)
	}
	if c.MaxRelativeAreaDifference != nil && *c.MaxRelativeAreaDifference <= 0 {
		return fmt.Errorf("max_relative_area_difference must be positive, got %f", *c.MaxRelativeAreaDifference)
	}
	if c.VelocitySmoothing != nil && (*c.VelocitySmoothing < 0 || *c.VelocitySmoothing >= 1) {
		return fmt.Errorf("velocity_smoothing must be in [0, 1), got %f", *c.VelocitySmoothing)
	}

	if c.FrameRate != nil && *c.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %f", *c.FrameRate)
	}
	if c.MaxTracks != nil && *c.MaxTracks < 0 {
		return fmt.Errorf("max_tracks must be non-negative, got %d", *c.MaxTracks)
	}
	if c.WindowSize != nil && (*c.WindowSize <= 0 || *c.WindowSize%2 != 0) {
		return fmt.Errorf("window_size must be a positive even number, got %d", *c.WindowSize)
	}

	if c.Timezone != nil && *c.Timezone != "" {
		if _, err := time.LoadLocation(*c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", *c.Timezone, err)
		}
	}

	return nil
}

// GetBackgroundSubtraction returns the background_subtraction mode or the default.
func (c *TuningConfig) GetBackgroundSubtraction() string {
	if c.BackgroundSubtraction == nil || *c.BackgroundSubtraction == "" {
		return SubtractionAuto
	}
	return *c.BackgroundSubtraction
}

// GetBackgroundPercentile returns the per-pixel background percentile or the default.
func (c *TuningConfig) GetBackgroundPercentile() float64 {
	if c.BackgroundPercentile == nil {
		return 10.0
	}
	return *c.BackgroundPercentile
}

// GetThresholdPercentile returns the threshold_percentile value or the default.
func (c *TuningConfig) GetThresholdPercentile() float64 {
	if c.ThresholdPercentile == nil {
		return 99.9
	}
	return *c.ThresholdPercentile
}

// GetMinThreshold returns the min_threshold value or the default.
func (c *TuningConfig) GetMinThreshold() float64 {
	if c.MinThreshold == nil {
		return 10.0
	}
	return *c.MinThreshold
}

// GetMaxThreshold returns the max_threshold value or the default.
func (c *TuningConfig) GetMaxThreshold() float64 {
	if c.MaxThreshold == nil {
		return 50.0
	}
	return *c.MaxThreshold
}

// GetFallbackThreshold returns the threshold used when background
// subtraction is disabled.
func (c *TuningConfig) GetFallbackThreshold() float64 {
	if c.FallbackThreshold == nil {
		return 75.0
	}
	return *c.FallbackThreshold
}

// GetStaticBackgroundThreshold returns the static_background_threshold value or the default.
func (c *TuningConfig) GetStaticBackgroundThreshold() float64 {
	if c.StaticBackgroundThreshold == nil {
		return 5.0
	}
	return *c.StaticBackgroundThreshold
}

// GetMaxMeanTemperature returns the max_mean_temperature value or the default.
func (c *TuningConfig) GetMaxMeanTemperature() float64 {
	if c.MaxMeanTemperature == nil {
		return 3800
	}
	return *c.MaxMeanTemperature
}

// GetMaxTemperatureRange returns the max_temperature_range value or the default.
func (c *TuningConfig) GetMaxTemperatureRange() float64 {
	if c.MaxTemperatureRange == nil {
		return 2000
	}
	return *c.MaxTemperatureRange
}

// GetErosionIterations returns the erosion_iterations value or the default.
func (c *TuningConfig) GetErosionIterations() int {
	if c.ErosionIterations == nil {
		return 1
	}
	return *c.ErosionIterations
}

// GetRegionPadding returns the region_padding value or the default.
func (c *TuningConfig) GetRegionPadding() int {
	if c.RegionPadding == nil {
		return 12
	}
	return *c.RegionPadding
}

// GetMinOverlapFraction returns the min_overlap_fraction value or the default.
func (c *TuningConfig) GetMinOverlapFraction() float64 {
	if c.MinOverlapFraction == nil {
		return 0.10
	}
	return *c.MinOverlapFraction
}

// GetMaxRelativeAreaDifference returns the max_relative_area_difference value or the default.
func (c *TuningConfig) GetMaxRelativeAreaDifference() float64 {
	if c.MaxRelativeAreaDifference == nil {
		return 0.5
	}
	return *c.MaxRelativeAreaDifference
}

// GetVelocitySmoothing returns the velocity_smoothing value or the default.
func (c *TuningConfig) GetVelocitySmoothing() float64 {
	if c.VelocitySmoothing == nil {
		return 0.9
	}
	return *c.VelocitySmoothing
}

// GetFrameRate returns the frame_rate value or the default.
func (c *TuningConfig) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return 9.0
	}
	return *c.FrameRate
}

// GetMinTrackSeconds returns the min_track_seconds value or the default.
func (c *TuningConfig) GetMinTrackSeconds() float64 {
	if c.MinTrackSeconds == nil {
		return 3.0
	}
	return *c.MinTrackSeconds
}

// GetMinMaxOffset returns the min_max_offset value or the default.
func (c *TuningConfig) GetMinMaxOffset() float64 {
	if c.MinMaxOffset == nil {
		return 4.0
	}
	return *c.MinMaxOffset
}

// GetMaxTracks returns the max_tracks value or the default (0, unlimited).
func (c *TuningConfig) GetMaxTracks() int {
	if c.MaxTracks == nil {
		return 0
	}
	return *c.MaxTracks
}

// GetWindowSize returns the window_size value or the default.
func (c *TuningConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 64
	}
	return *c.WindowSize
}

// GetEnableFlow returns the enable_flow value or the default.
func (c *TuningConfig) GetEnableFlow() bool {
	if c.EnableFlow == nil {
		return true
	}
	return *c.EnableFlow
}

// GetTimezone returns the timezone value or the default.
func (c *TuningConfig) GetTimezone() string {
	if c.Timezone == nil || *c.Timezone == "" {
		return "Pacific/Auckland"
	}
	return *c.Timezone
}

// GetLocation resolves the configured timezone, falling back to UTC when the
// tz database does not know it.
func (c *TuningConfig) GetLocation() *time.Location {
	loc, err := time.LoadLocation(c.GetTimezone())
	if err != nil {
		return time.UTC
	}
	return loc
}
