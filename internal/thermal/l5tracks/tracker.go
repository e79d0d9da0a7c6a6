package l5tracks

import (
	"context"
	"fmt"

	"github.com/banshee-data/thermal.tracker/internal/monitoring"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l2frames"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l3grid"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l4perception"
)

// Tracker runs region detection and association over a single clip. A
// Tracker is used for one Extract call; ids, history and per-frame
// artefacts are scoped to it.
type Tracker struct {
	Clip   *l2frames.Clip
	Config *TrackerConfig

	Background *l3grid.Background
	Mode       l3grid.DetectionMode
	Stats      l2frames.ClipStats
	// Rejected is the admission reason when the clip was skipped, and
	// RejectedCode its short form (AdmissionHot or AdmissionRange).
	Rejected     string
	RejectedCode string

	// Tracks holds every track created, in creation (id) order.
	Tracks []*Track
	// History is keyed by track id.
	History map[int][]HistoryEntry

	// Per-frame artefacts, indexed by frame number.
	Regions   [][]l4perception.Box // active track boxes after association
	Detected  [][]l4perception.Box // detector output
	Labels    []*l4perception.LabelMap
	Filtered  []*l2frames.Frame
	FlowField []*l3grid.FlowField

	ids   IDSequence
	flow  l3grid.FlowEstimator
	debug DebugCollector
	logf  func(format string, v ...interface{})
}

// NewTracker creates a tracker for clip. Flow estimation uses the
// build's default estimator when cfg.EnableFlow is set.
func NewTracker(clip *l2frames.Clip, cfg *TrackerConfig) *Tracker {
	t := &Tracker{
		Clip:    clip,
		Config:  cfg,
		History: make(map[int][]HistoryEntry),
		logf:    monitoring.ClipLogger(clip.Source),
	}
	if cfg.EnableFlow {
		t.flow = l3grid.DefaultFlowEstimator()
	}
	return t
}

// SetDebugCollector attaches a per-frame association collector.
func (t *Tracker) SetDebugCollector(dc DebugCollector) {
	t.debug = dc
}

// SetFlowEstimator overrides the flow estimator. nil disables flow.
func (t *Tracker) SetFlowEstimator(fe l3grid.FlowEstimator) {
	t.flow = fe
}

// Track returns the track with the given id, or nil.
func (t *Tracker) Track(id int) *Track {
	for _, tr := range t.Tracks {
		if tr.ID == id {
			return tr
		}
	}
	return nil
}

// Extract runs the tracking loop over every frame of the clip. A clip
// rejected by admission returns nil with Rejected set and no tracks.
// Malformed frames abort with an error wrapping *l2frames.FrameError.
func (t *Tracker) Extract(ctx context.Context) error {
	if err := t.Config.Validate(); err != nil {
		return fmt.Errorf("tracker config: %w", err)
	}
	if err := t.Clip.Validate(); err != nil {
		return fmt.Errorf("extract tracks: %w", err)
	}

	// Step 1: estimate the background once and pick the detection mode.
	t.Background = l3grid.EstimateBackground(t.Clip, t.Config.Background)
	t.Mode = l3grid.SelectMode(t.Background, t.Config.Background)
	t.Stats = l2frames.ComputeClipStats(t.Clip, t.Config.Location)
	t.Stats.IsStaticBackground = t.Background.IsStatic
	t.Stats.AutoThreshold = t.Background.AutoThreshold
	t.Stats.AverageBackgroundDelta = t.Background.AverageDelta

	// Step 2: admission.
	if code, reason := t.admission(); code != "" {
		t.Rejected, t.RejectedCode = reason, code
		t.logf("skipping clip: %s", reason)
		return nil
	}

	detector := l4perception.NewDetector(t.Config.Detector, t.Mode.Threshold)
	var active []*Track

	for frameNumber, frame := range t.Clip.Frames {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extract tracks at frame %d: %w", frameNumber, err)
		}
		if t.debug != nil && t.debug.IsEnabled() {
			t.debug.BeginFrame(frameNumber)
		}

		// Step 3: detect regions on the masked frame.
		masked := frame.Sub(t.Mode.Mask)
		det := detector.Detect(masked)
		t.Detected = append(t.Detected, det.Regions)
		t.Labels = append(t.Labels, det.Labels)

		// Step 4: filtered frame and optical flow.
		filtered := l3grid.FilteredFrame(frame, t.Mode.Mask)
		t.Filtered = append(t.Filtered, filtered)
		if err := t.appendFlow(frameNumber); err != nil {
			return err
		}

		// Step 5: associate active tracks in creation order.
		used := make([]bool, len(det.Regions))
		for _, tr := range active {
			for _, i := range tr.sync(det.Regions, t.debug) {
				used[i] = true
			}
		}

		// Step 6: seed tracks from unconsumed regions.
		for i, region := range det.Regions {
			if used[i] {
				continue
			}
			tr := NewTrack(t.ids.Next(), region, frameNumber, t.Config)
			active = append(active, tr)
			t.Tracks = append(t.Tracks, tr)
			t.History[tr.ID] = nil
			if t.debug != nil && t.debug.IsEnabled() {
				t.debug.RecordSpawn(tr.ID, i)
			}
		}

		// Step 7: retire lost tracks.
		kept := active[:0]
		for _, tr := range active {
			if tr.State != TrackLost {
				kept = append(kept, tr)
			}
		}
		active = kept

		// Step 8: record per-frame boxes and history.
		boxes := make([]l4perception.Box, len(active))
		for i, tr := range active {
			boxes[i] = tr.Bounds
			t.History[tr.ID] = append(t.History[tr.ID], tr.historyEntry(frameNumber))
		}
		t.Regions = append(t.Regions, boxes)
	}

	t.logf("extracted %d tracks from %d frames (subtract=%t threshold=%.1f)",
		len(t.Tracks), len(t.Clip.Frames), t.Mode.Subtract, t.Mode.Threshold)
	return nil
}

// Admission rejection codes.
const (
	AdmissionHot   = "mean_temperature"
	AdmissionRange = "temperature_range"
)

func (t *Tracker) admission() (code, reason string) {
	if float64(t.Stats.MeanTemp) > t.Config.MaxMeanTemperature {
		return AdmissionHot, fmt.Sprintf("mean temperature %d exceeds %.0f", t.Stats.MeanTemp, t.Config.MaxMeanTemperature)
	}
	if float64(t.Stats.Range()) > t.Config.MaxTemperatureRange {
		return AdmissionRange, fmt.Sprintf("temperature range %d exceeds %.0f", t.Stats.Range(), t.Config.MaxTemperatureRange)
	}
	return "", ""
}

func (t *Tracker) appendFlow(frameNumber int) error {
	if t.flow == nil {
		return nil
	}
	if frameNumber == 0 {
		f := t.Filtered[0]
		t.FlowField = append(t.FlowField, l3grid.NewFlowField(f.Width, f.Height))
		return nil
	}
	field, err := t.flow.Estimate(t.Filtered[frameNumber-1], t.Filtered[frameNumber])
	if err != nil {
		return fmt.Errorf("extract tracks: %w",
			&l2frames.FrameError{Clip: t.Clip.Source, Frame: frameNumber, Err: err})
	}
	t.FlowField = append(t.FlowField, field)
	return nil
}

// HistoryFor returns the recorded history of a track, or nil.
func (t *Tracker) HistoryFor(id int) []HistoryEntry {
	return t.History[id]
}
