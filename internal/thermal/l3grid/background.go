package l3grid

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/thermal.tracker/internal/config"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l2frames"
)

// Background is the per-clip background estimate. It is computed once
// before the tracking loop and is read-only afterwards.
type Background struct {
	Frame         *l2frames.Frame
	AutoThreshold float64
	// AverageDelta is the mean absolute per-pixel change between
	// consecutive frames; 0 for single-frame clips.
	AverageDelta float64
	IsStatic     bool
}

// EstimateBackground computes the per-pixel background percentile, the
// auto threshold and the static-background flag for a validated clip.
func EstimateBackground(clip *l2frames.Clip, cfg *BackgroundConfig) *Background {
	frames := clip.Frames
	w, h := clip.Width(), clip.Height()
	bg := l2frames.NewFrame(w, h)

	column := make([]float64, len(frames))
	for p := range bg.Pix {
		for i, f := range frames {
			column[i] = f.Pix[p]
		}
		sort.Float64s(column)
		bg.Pix[p] = Percentile(column, cfg.Percentile)
	}

	deltas := make([]float64, 0, len(frames)*w*h)
	for _, f := range frames {
		for p, v := range f.Pix {
			deltas = append(deltas, v-bg.Pix[p])
		}
	}
	sort.Float64s(deltas)
	threshold := Percentile(deltas, cfg.ThresholdPercentile) / 2
	threshold = math.Max(cfg.MinThreshold, math.Min(cfg.MaxThreshold, threshold))

	avg := averageFrameDelta(frames)
	return &Background{
		Frame:         bg,
		AutoThreshold: threshold,
		AverageDelta:  avg,
		IsStatic:      avg < cfg.StaticThreshold,
	}
}

func averageFrameDelta(frames []*l2frames.Frame) float64 {
	if len(frames) < 2 {
		return 0
	}
	means := make([]float64, 0, len(frames)-1)
	diff := make([]float64, len(frames[0].Pix))
	for i := 1; i < len(frames); i++ {
		floats.SubTo(diff, frames[i].Pix, frames[i-1].Pix)
		for j, d := range diff {
			diff[j] = math.Abs(d)
		}
		means = append(means, stat.Mean(diff, nil))
	}
	// Every pair has the same pixel count, so the mean of means is the
	// overall mean.
	return stat.Mean(means, nil)
}

// DetectionMode is the subtraction decision for a clip: the mask that is
// subtracted from every frame and the detection threshold.
type DetectionMode struct {
	Subtract  bool
	Mask      *l2frames.Frame
	Threshold float64
}

// SelectMode resolves the configured subtraction mode against the
// background estimate. With subtraction the mask is the background and the
// threshold is the auto threshold; without it the mask is zero and the
// fallback threshold applies.
func SelectMode(bg *Background, cfg *BackgroundConfig) DetectionMode {
	var subtract bool
	switch cfg.Subtraction {
	case config.SubtractionOn:
		subtract = true
	case config.SubtractionOff:
		subtract = false
	default:
		subtract = bg.IsStatic
	}
	if subtract {
		return DetectionMode{Subtract: true, Mask: bg.Frame, Threshold: bg.AutoThreshold}
	}
	return DetectionMode{
		Mask:      l2frames.NewFrame(bg.Frame.Width, bg.Frame.Height),
		Threshold: cfg.FallbackThreshold,
	}
}

// FilteredFrame returns frame - mask re-centred on its own median, with
// negative values clipped to zero.
func FilteredFrame(frame, mask *l2frames.Frame) *l2frames.Frame {
	out := frame.Sub(mask)
	med := Median(out.Pix)
	for i, v := range out.Pix {
		out.Pix[i] = math.Max(0, v-med)
	}
	return out
}
