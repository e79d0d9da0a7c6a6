package l2frames

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// ClipStats summarises the temperature range and capture context of a clip.
// Temperatures are truncated to int to match the stored stats record.
type ClipStats struct {
	Source                 string    `json:"source"`
	MeanTemp               int       `json:"mean_temp"`
	MaxTemp                int       `json:"max_temp"`
	MinTemp                int       `json:"min_temp"`
	LocalTime              time.Time `json:"date_time"`
	IsNight                bool      `json:"is_night"`
	IsStaticBackground     bool      `json:"is_static_background"`
	AutoThreshold          float64   `json:"auto_threshold"`
	AverageBackgroundDelta float64   `json:"average_background_delta"`
}

// Range returns MaxTemp - MinTemp.
func (s ClipStats) Range() int {
	return s.MaxTemp - s.MinTemp
}

// ComputeClipStats fills the temperature and time fields of ClipStats.
// Background-derived fields are left zero; the caller sets them once the
// background has been estimated. A nil loc means UTC.
func ComputeClipStats(c *Clip, loc *time.Location) ClipStats {
	if loc == nil {
		loc = time.UTC
	}
	stats := ClipStats{Source: c.Source}
	if !c.StartTime.IsZero() {
		stats.LocalTime = c.StartTime.In(loc)
		hour := stats.LocalTime.Hour()
		stats.IsNight = hour >= 21 || hour <= 4
	}
	if len(c.Frames) == 0 {
		return stats
	}

	var sum float64
	var n int
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, f := range c.Frames {
		sum += floats.Sum(f.Pix)
		n += len(f.Pix)
		lo = math.Min(lo, floats.Min(f.Pix))
		hi = math.Max(hi, floats.Max(f.Pix))
	}
	stats.MeanTemp = int(sum / float64(n))
	stats.MaxTemp = int(hi)
	stats.MinTemp = int(lo)
	return stats
}
