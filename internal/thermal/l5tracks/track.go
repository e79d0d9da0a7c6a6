package l5tracks

import (
	"math"

	"github.com/banshee-data/thermal.tracker/internal/thermal/l4perception"
)

// TrackState represents the association outcome of a track's latest frame.
type TrackState string

const (
	TrackNone     TrackState = "none"     // Created, not yet associated
	TrackAcquired TrackState = "acquired" // Followed a single similar region
	TrackLost     TrackState = "lost"     // No similar region; terminal
	TrackSplit    TrackState = "split"    // Several similar regions; box held
)

// CanTransition reports whether a track in state s may move to next.
// LOST is terminal; every other state may move to ACQUIRED, LOST or SPLIT.
func (s TrackState) CanTransition(next TrackState) bool {
	if s == TrackLost {
		return false
	}
	switch next {
	case TrackAcquired, TrackLost, TrackSplit:
		return true
	}
	return false
}

// HistoryEntry is one frame of a track's recorded history.
type HistoryEntry struct {
	FrameNumber int              `json:"frame_number"`
	State       TrackState       `json:"state"`
	Bounds      l4perception.Box `json:"bounds"`
	VX          float64          `json:"vx"`
	VY          float64          `json:"vy"`
	OffsetX     float64          `json:"offset_x"`
	OffsetY     float64          `json:"offset_y"`
	Mass        int              `json:"mass"`
}

// Track is a single object followed through a clip.
type Track struct {
	ID         int
	State      TrackState
	Bounds     l4perception.Box
	VX, VY     float64
	OriginX    float64
	OriginY    float64
	Mass       int
	FirstFrame int

	// Post-hoc statistics, filled in by scoring.
	Movement    float64
	MaxOffset   float64
	Score       float64
	AverageMass float64
	Duration    float64
	MassHistory []int

	cfg *TrackerConfig
}

// NewTrack starts a track on region. Its origin is the region centre.
func NewTrack(id int, region l4perception.Box, firstFrame int, cfg *TrackerConfig) *Track {
	return &Track{
		ID:         id,
		State:      TrackNone,
		Bounds:     region,
		OriginX:    region.MidX(),
		OriginY:    region.MidY(),
		Mass:       region.Mass,
		FirstFrame: firstFrame,
		cfg:        cfg,
	}
}

// OffsetX is the horizontal distance of the box centre from the origin.
func (t *Track) OffsetX() float64 { return t.Bounds.MidX() - t.OriginX }

// OffsetY is the vertical distance of the box centre from the origin.
func (t *Track) OffsetY() float64 { return t.Bounds.MidY() - t.OriginY }

// Predicted returns the box translated by the truncated current velocity.
func (t *Track) Predicted() l4perception.Box {
	p := t.Bounds
	p.X = int(float64(t.Bounds.X) + t.VX)
	p.Y = int(float64(t.Bounds.Y) + t.VY)
	return p
}

// SyncNewLocation associates the track with this frame's regions and
// returns every region that overlaps the prediction, in input order.
// A LOST track is left untouched and returns nil.
func (t *Track) SyncNewLocation(regions []l4perception.Box) []l4perception.Box {
	idx := t.sync(regions, nil)
	if idx == nil {
		return nil
	}
	out := make([]l4perception.Box, len(idx))
	for i, j := range idx {
		out[i] = regions[j]
	}
	return out
}

// sync performs association and returns the indices of overlapping regions.
func (t *Track) sync(regions []l4perception.Box, dbg DebugCollector) []int {
	if t.State == TrackLost {
		return nil
	}

	pred := t.Predicted()
	predArea := float64(pred.Area())
	recording := dbg != nil && dbg.IsEnabled()
	if recording {
		dbg.RecordPrediction(t.ID, pred, t.VX, t.VY)
	}

	var similar []int
	overlapping := []int{}
	for i, r := range regions {
		overlap := 2 * float64(pred.OverlapArea(r)) / (predArea + float64(r.Area()))
		areaDiff := math.Abs(float64(r.Area())-predArea) / predArea
		isOverlap := overlap > t.cfg.MinOverlapFraction
		isSimilar := isOverlap && areaDiff < t.cfg.MaxRelativeAreaDifference
		if isSimilar {
			similar = append(similar, i)
		}
		if isOverlap {
			overlapping = append(overlapping, i)
		}
		if recording {
			dbg.RecordAssociation(t.ID, i, overlap, areaDiff, isSimilar)
		}
	}

	prev := t.State
	switch len(similar) {
	case 0:
		t.State = TrackLost
	case 1:
		t.State = TrackAcquired
		oldX, oldY := t.Bounds.MidX(), t.Bounds.MidY()
		t.Bounds = regions[similar[0]]
		t.Mass = t.Bounds.Mass
		a := t.cfg.VelocitySmoothing
		t.VX = a*t.VX + (1-a)*(t.Bounds.MidX()-oldX)
		t.VY = a*t.VY + (1-a)*(t.Bounds.MidY()-oldY)
	default:
		t.State = TrackSplit
	}
	if recording && prev != t.State {
		dbg.RecordTransition(t.ID, prev, t.State)
	}
	return overlapping
}

// historyEntry snapshots the track for frame.
func (t *Track) historyEntry(frame int) HistoryEntry {
	return HistoryEntry{
		FrameNumber: frame,
		State:       t.State,
		Bounds:      t.Bounds,
		VX:          t.VX,
		VY:          t.VY,
		OffsetX:     t.OffsetX(),
		OffsetY:     t.OffsetY(),
		Mass:        t.Mass,
	}
}

// IDSequence issues track ids for one extraction run, starting at 1.
type IDSequence struct {
	last int
}

// Next returns the next id.
func (s *IDSequence) Next() int {
	s.last++
	return s.last
}
