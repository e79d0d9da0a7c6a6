package l3grid

import (
	"fmt"

	"github.com/banshee-data/thermal.tracker/internal/config"
)

// BackgroundConfig holds the background estimation and detection mode
// parameters for a clip.
type BackgroundConfig struct {
	Subtraction         string  // "auto", "on" or "off" (default: auto)
	Percentile          float64 // Per-pixel background percentile (default: 10)
	ThresholdPercentile float64 // Percentile of deltas used for the auto threshold (default: 99.9)
	MinThreshold        float64 // Lower clamp of the auto threshold (default: 10)
	MaxThreshold        float64 // Upper clamp of the auto threshold (default: 50)
	FallbackThreshold   float64 // Threshold when subtraction is off (default: 75)
	StaticThreshold     float64 // Average frame delta below which the background is static (default: 5)
}

// DefaultBackgroundConfig returns a BackgroundConfig loaded from the
// canonical tuning defaults file (config/tuning.defaults.json).
// Panics if the file cannot be found.
func DefaultBackgroundConfig() *BackgroundConfig {
	return BackgroundConfigFromTuning(config.MustLoadDefaultConfig())
}

// BackgroundConfigFromTuning builds a BackgroundConfig from a loaded TuningConfig.
func BackgroundConfigFromTuning(cfg *config.TuningConfig) *BackgroundConfig {
	return &BackgroundConfig{
		Subtraction:         cfg.GetBackgroundSubtraction(),
		Percentile:          cfg.GetBackgroundPercentile(),
		ThresholdPercentile: cfg.GetThresholdPercentile(),
		MinThreshold:        cfg.GetMinThreshold(),
		MaxThreshold:        cfg.GetMaxThreshold(),
		FallbackThreshold:   cfg.GetFallbackThreshold(),
		StaticThreshold:     cfg.GetStaticBackgroundThreshold(),
	}
}

// WithSubtraction sets the detection mode and returns the config for chaining.
func (c *BackgroundConfig) WithSubtraction(mode string) *BackgroundConfig {
	c.Subtraction = mode
	return c
}

// Validate checks that the configuration is usable.
func (c *BackgroundConfig) Validate() error {
	switch c.Subtraction {
	case config.SubtractionAuto, config.SubtractionOn, config.SubtractionOff:
	default:
		return fmt.Errorf("unknown background subtraction mode %q", c.Subtraction)
	}
	if c.Percentile < 0 || c.Percentile > 100 {
		return fmt.Errorf("background percentile must be in [0,100], got %f", c.Percentile)
	}
	if c.ThresholdPercentile < 0 || c.ThresholdPercentile > 100 {
		return fmt.Errorf("threshold percentile must be in [0,100], got %f", c.ThresholdPercentile)
	}
	if c.MinThreshold > c.MaxThreshold {
		return fmt.Errorf("min threshold %f exceeds max threshold %f", c.MinThreshold, c.MaxThreshold)
	}
	return nil
}
