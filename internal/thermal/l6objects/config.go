package l6objects

import (
	"fmt"
	"math"

	"github.com/banshee-data/thermal.tracker/internal/config"
)

// ScorerConfig holds the scoring, filtering and export parameters.
type ScorerConfig struct {
	FrameRate       float64 // Frames per second of the source (default: 9)
	MinTrackSeconds float64 // Shortest track kept (default: 3)
	MinMaxOffset    float64 // Smallest max offset from origin kept, in pixels (default: 4)
	MaxTracks       int     // Keep at most this many tracks; 0 keeps all (default: 0)
	WindowSize      int     // Edge length of exported windows (default: 64)
}

// DefaultScorerConfig returns a ScorerConfig loaded from the canonical
// tuning defaults file. Panics if the file cannot be found.
func DefaultScorerConfig() *ScorerConfig {
	return ScorerConfigFromTuning(config.MustLoadDefaultConfig())
}

// ScorerConfigFromTuning builds a ScorerConfig from a loaded TuningConfig.
func ScorerConfigFromTuning(cfg *config.TuningConfig) *ScorerConfig {
	return &ScorerConfig{
		FrameRate:       cfg.GetFrameRate(),
		MinTrackSeconds: cfg.GetMinTrackSeconds(),
		MinMaxOffset:    cfg.GetMinMaxOffset(),
		MaxTracks:       cfg.GetMaxTracks(),
		WindowSize:      cfg.GetWindowSize(),
	}
}

// MinFrames is the shortest history, in frames, that survives filtering.
func (c *ScorerConfig) MinFrames() int {
	return int(math.Round(c.FrameRate * c.MinTrackSeconds))
}

// Validate checks that the configuration is usable.
func (c *ScorerConfig) Validate() error {
	if c.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive, got %f", c.FrameRate)
	}
	if c.MaxTracks < 0 {
		return fmt.Errorf("max tracks must be non-negative, got %d", c.MaxTracks)
	}
	if c.WindowSize <= 0 || c.WindowSize%2 != 0 {
		return fmt.Errorf("window size must be a positive even number, got %d", c.WindowSize)
	}
	return nil
}
