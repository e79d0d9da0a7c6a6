package l4perception

import (
	"fmt"

	"github.com/banshee-data/thermal.tracker/internal/config"
)

// DetectorConfig holds the region detector parameters that do not vary
// per clip. The detection threshold is chosen per clip and passed to
// NewDetector.
type DetectorConfig struct {
	ErosionIterations int // 3x3 erosion passes (default: 1)
	Padding           int // pixels added to every side of a region (default: 12)
}

// DefaultDetectorConfig returns a DetectorConfig loaded from the canonical
// tuning defaults file. Panics if the file cannot be found.
func DefaultDetectorConfig() *DetectorConfig {
	return DetectorConfigFromTuning(config.MustLoadDefaultConfig())
}

// DetectorConfigFromTuning builds a DetectorConfig from a loaded TuningConfig.
func DetectorConfigFromTuning(cfg *config.TuningConfig) *DetectorConfig {
	return &DetectorConfig{
		ErosionIterations: cfg.GetErosionIterations(),
		Padding:           cfg.GetRegionPadding(),
	}
}

// Validate checks that the configuration is usable.
func (c *DetectorConfig) Validate() error {
	if c.ErosionIterations < 0 {
		return fmt.Errorf("erosion iterations must be non-negative, got %d", c.ErosionIterations)
	}
	if c.Padding < 0 {
		return fmt.Errorf("padding must be non-negative, got %d", c.Padding)
	}
	return nil
}
