package l5tracks

import (
	"fmt"
	"time"

	"github.com/banshee-data/thermal.tracker/internal/config"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l3grid"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l4perception"
)

// TrackerConfig holds configuration for a clip extraction run.
type TrackerConfig struct {
	Background *l3grid.BackgroundConfig
	Detector   *l4perception.DetectorConfig

	// Association
	MinOverlapFraction        float64 // Overlap fraction a region must exceed (default: 0.10)
	MaxRelativeAreaDifference float64 // Relative area change a similar region must stay under (default: 0.5)
	VelocitySmoothing         float64 // EMA weight kept from the previous velocity (default: 0.9)

	// Admission
	MaxMeanTemperature  float64 // Clips hotter than this on average are skipped (default: 3800)
	MaxTemperatureRange float64 // Clips with a wider max-min spread are skipped (default: 2000)

	EnableFlow bool           // Compute dense optical flow per frame (default: true)
	Location   *time.Location // Timezone for clip stats (default: Pacific/Auckland)
}

// DefaultTrackerConfig returns a TrackerConfig loaded from the canonical
// tuning defaults file. Panics if the file cannot be found.
func DefaultTrackerConfig() *TrackerConfig {
	return TrackerConfigFromTuning(config.MustLoadDefaultConfig())
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
func TrackerConfigFromTuning(cfg *config.TuningConfig) *TrackerConfig {
	return &TrackerConfig{
		Background:                l3grid.BackgroundConfigFromTuning(cfg),
		Detector:                  l4perception.DetectorConfigFromTuning(cfg),
		MinOverlapFraction:        cfg.GetMinOverlapFraction(),
		MaxRelativeAreaDifference: cfg.GetMaxRelativeAreaDifference(),
		VelocitySmoothing:         cfg.GetVelocitySmoothing(),
		MaxMeanTemperature:        cfg.GetMaxMeanTemperature(),
		MaxTemperatureRange:       cfg.GetMaxTemperatureRange(),
		EnableFlow:                cfg.GetEnableFlow(),
		Location:                  cfg.GetLocation(),
	}
}

// Validate checks the configuration and its nested layer configs.
func (c *TrackerConfig) Validate() error {
	if c.Background == nil || c.Detector == nil {
		return fmt.Errorf("tracker config requires background and detector configs")
	}
	if err := c.Background.Validate(); err != nil {
		return fmt.Errorf("background config: %w", err)
	}
	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector config: %w", err)
	}
	if c.MinOverlapFraction < 0 || c.MinOverlapFraction > 1 {
		return fmt.Errorf("min overlap fraction must be in [0,1], got %f", c.MinOverlapFraction)
	}
	if c.MaxRelativeAreaDifference <= 0 {
		return fmt.Errorf("max relative area difference must be positive, got %f", c.MaxRelativeAreaDifference)
	}
	if c.VelocitySmoothing < 0 || c.VelocitySmoothing >= 1 {
		return fmt.Errorf("velocity smoothing must be in [0,1), got %f", c.VelocitySmoothing)
	}
	return nil
}
