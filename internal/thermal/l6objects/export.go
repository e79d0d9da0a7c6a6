package l6objects

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/thermal.tracker/internal/monitoring"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l2frames"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l3grid"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l4perception"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l5tracks"
)

// ErrMassHistoryMismatch is returned when a track's mass history does not
// cover exactly the frames being exported.
var ErrMassHistoryMismatch = errors.New("mass history length does not match exported frames")

// TrackStats is the summary record written alongside an exported track.
type TrackStats struct {
	ID                 int                `json:"id"`
	Score              float64            `json:"score"`
	Movement           float64            `json:"movement"`
	AverageMass        float64            `json:"average_mass"`
	MaxOffset          float64            `json:"max_offset"`
	Timestamp          time.Time          `json:"timestamp"`
	Duration           float64            `json:"duration"`
	OriginX            float64            `json:"origin_x"`
	OriginY            float64            `json:"origin_y"`
	Filename           string             `json:"filename"`
	Threshold          float64            `json:"threshold"`
	IsStaticBackground bool               `json:"is_static_background"`
	MassHistory        []int              `json:"mass_history"`
	BoundsHistory      []l4perception.Box `json:"bounds_history"`
}

// TrackExport holds the per-frame windows and motion of one track.
type TrackExport struct {
	TrackID        int
	Frames         []*l2frames.Frame
	FilteredFrames []*l2frames.Frame
	// FlowFrames is empty when the run did not compute flow.
	FlowFrames    []*l3grid.FlowField
	MotionVectors [][2]float64
	Stats         TrackStats
}

// Len returns the number of exported frames.
func (e *TrackExport) Len() int { return len(e.Frames) }

// ExportTrack cuts WindowSize windows around every history entry of a
// scored track from the raw, filtered and flow frames of run. A track
// whose mass history does not match the exported frames is reported and
// returned with ErrMassHistoryMismatch.
func ExportTrack(run *l5tracks.Tracker, track *l5tracks.Track, cfg *ScorerConfig) (*TrackExport, error) {
	history := run.HistoryFor(track.ID)
	size := cfg.WindowSize
	exp := &TrackExport{TrackID: track.ID}
	bounds := make([]l4perception.Box, 0, len(history))

	for _, h := range history {
		if h.FrameNumber >= len(run.Filtered) {
			return nil, fmt.Errorf("track %d: frame %d not processed", track.ID, h.FrameNumber)
		}
		exp.Frames = append(exp.Frames, Subsection(run.Clip.Frames[h.FrameNumber], h.Bounds, size))
		exp.FilteredFrames = append(exp.FilteredFrames, Subsection(run.Filtered[h.FrameNumber], h.Bounds, size))
		if h.FrameNumber < len(run.FlowField) {
			exp.FlowFrames = append(exp.FlowFrames, FlowSubsection(run.FlowField[h.FrameNumber], h.Bounds, size))
		}
		exp.MotionVectors = append(exp.MotionVectors, [2]float64{h.VX, h.VY})
		bounds = append(bounds, h.Bounds)
	}

	exp.Stats = TrackStats{
		ID:                 track.ID,
		Score:              track.Score,
		Movement:           track.Movement,
		AverageMass:        track.AverageMass,
		MaxOffset:          track.MaxOffset,
		Timestamp:          run.Clip.StartTime,
		Duration:           track.Duration,
		OriginX:            track.OriginX,
		OriginY:            track.OriginY,
		Filename:           run.Clip.Source,
		Threshold:          run.Stats.AutoThreshold,
		IsStaticBackground: run.Stats.IsStaticBackground,
		MassHistory:        track.MassHistory,
		BoundsHistory:      bounds,
	}

	if len(track.MassHistory) != exp.Len() {
		monitoring.Warnf("track %d mass history mismatch %d != %d", track.ID, len(track.MassHistory), exp.Len())
		return exp, fmt.Errorf("track %d: %w (%d != %d)",
			track.ID, ErrMassHistoryMismatch, len(track.MassHistory), exp.Len())
	}
	return exp, nil
}

// Channels is the number of values per pixel in ChannelData.
const Channels = 4

// ChannelData packs frame i as a pixel-interleaved float32 tensor of shape
// [size, size, 4]: normalised raw window, normalised filtered window and
// the two flow components (zero when flow was not computed).
func (e *TrackExport) ChannelData(i int) []float32 {
	raw := normalise(e.Frames[i].Pix)
	filtered := normalise(e.FilteredFrames[i].Pix)
	var flow *l3grid.FlowField
	if i < len(e.FlowFrames) {
		flow = e.FlowFrames[i]
	}

	out := make([]float32, len(raw)*Channels)
	for p := range raw {
		out[p*Channels] = float32(raw[p])
		out[p*Channels+1] = float32(filtered[p])
		if flow != nil {
			out[p*Channels+2] = float32(flow.U[p])
			out[p*Channels+3] = float32(flow.V[p])
		}
	}
	return out
}

// normalise rescales values to zero mean and unit (population) standard
// deviation. Constant input maps to zeros.
func normalise(values []float64) []float64 {
	mean, std := stat.PopMeanStdDev(values, nil)
	std = math.Max(std, 1e-6)
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}
