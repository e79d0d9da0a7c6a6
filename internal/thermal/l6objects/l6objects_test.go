package l6objects

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/thermal.tracker/internal/config"
	"github.com/banshee-data/thermal.tracker/internal/monitoring"
	"github.com/banshee-data/thermal.tracker/internal/testutil"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l2frames"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l3grid"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l4perception"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l5tracks"
)

func init() {
	monitoring.SetLogger(nil)
}

func testScorerConfig() *ScorerConfig {
	return ScorerConfigFromTuning(config.DefaultTuningConfig())
}

// linearHistory builds n entries with constant velocity and offsets
// growing by step per frame.
func linearHistory(first, n int, vx, step float64) []l5tracks.HistoryEntry {
	h := make([]l5tracks.HistoryEntry, n)
	for i := range h {
		h[i] = l5tracks.HistoryEntry{
			FrameNumber: first + i,
			Bounds:      l4perception.Box{X: i, Y: 0, Width: 30, Height: 30, Mass: 40 + i},
			VX:          vx,
			OffsetX:     step * float64(i),
			Mass:        40 + i,
		}
	}
	return h
}

func TestMinFrames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 27, testScorerConfig().MinFrames())
}

func TestScoreTrack(t *testing.T) {
	t.Parallel()

	track := &l5tracks.Track{ID: 1}
	history := []l5tracks.HistoryEntry{
		{VX: 3, VY: 4, OffsetX: 0, OffsetY: 0, Mass: 10},
		{VX: 0, VY: 1, OffsetX: 6, OffsetY: 8, Mass: 20},
		{VX: 0, VY: 0, OffsetX: 1, OffsetY: 1, Mass: 30},
	}
	NewScorer(testScorerConfig()).ScoreTrack(track, history)

	assert.InDelta(t, 6.0, track.Movement, 1e-12)
	assert.InDelta(t, 10.0, track.MaxOffset, 1e-12)
	assert.InDelta(t, 16.0, track.Score, 1e-12)
	assert.Equal(t, []int{10, 20, 30}, track.MassHistory)
	assert.InDelta(t, 20.0, track.AverageMass, 1e-12)
	assert.InDelta(t, 3.0/9.0, track.Duration, 1e-12)
}

func TestScoreIsMonotonicInMovement(t *testing.T) {
	t.Parallel()

	s := NewScorer(testScorerConfig())
	slow := &l5tracks.Track{ID: 1}
	fast := &l5tracks.Track{ID: 2}
	s.ScoreTrack(slow, linearHistory(0, 30, 0.5, 0.5))
	s.ScoreTrack(fast, linearHistory(0, 30, 1.0, 0.5))
	assert.Greater(t, fast.Score, slow.Score)

	far := &l5tracks.Track{ID: 3}
	s.ScoreTrack(far, linearHistory(0, 30, 0.5, 1.0))
	assert.Greater(t, far.Score, slow.Score)
}

func TestScoreFilterBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		frames     int
		maxOffset  float64
		wantKept   bool
		wantReason string
	}{
		{name: "exactly 27 frames and offset 4.0", frames: 27, maxOffset: 4.0, wantKept: true},
		{name: "26 frames", frames: 26, maxOffset: 20, wantReason: RejectTooShort},
		{name: "offset just under 4", frames: 40, maxOffset: 3.99, wantReason: RejectNotMoving},
		{name: "stationary", frames: 40, wantReason: RejectNotMoving},
		{name: "long and moving", frames: 60, maxOffset: 59, wantKept: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := linearHistory(0, tt.frames, 0, tt.maxOffset/float64(tt.frames-1))
			h[len(h)-1].OffsetX = tt.maxOffset
			track := &l5tracks.Track{ID: 1}
			history := map[int][]l5tracks.HistoryEntry{1: h}

			res := NewScorer(testScorerConfig()).Score([]*l5tracks.Track{track}, history)
			if tt.wantKept {
				require.Len(t, res.Tracks, 1)
				assert.Empty(t, res.Rejected)
				assert.InDelta(t, tt.maxOffset, track.MaxOffset, 1e-12)
				return
			}
			assert.Empty(t, res.Tracks)
			assert.Equal(t, tt.wantReason, res.Rejected[1])
		})
	}
}

func TestScoreSortsAndTruncates(t *testing.T) {
	t.Parallel()

	tracks := []*l5tracks.Track{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	history := map[int][]l5tracks.HistoryEntry{
		1: linearHistory(0, 30, 0.2, 0.5),
		2: linearHistory(0, 30, 1.0, 0.5),
		3: linearHistory(0, 30, 0.2, 0.5), // ties with 1
		4: linearHistory(0, 10, 5.0, 5.0), // too short
	}

	res := NewScorer(testScorerConfig()).Score(tracks, history)
	require.Len(t, res.Tracks, 3)
	assert.Equal(t, []int{2, 1, 3}, []int{res.Tracks[0].ID, res.Tracks[1].ID, res.Tracks[2].ID})
	assert.Equal(t, RejectTooShort, res.Rejected[4])

	cfg := testScorerConfig()
	cfg.MaxTracks = 2
	res = NewScorer(cfg).Score(tracks, history)
	require.Len(t, res.Tracks, 2)
	assert.Equal(t, 2, res.Tracks[0].ID)
	assert.Equal(t, RejectOverMaximum, res.Rejected[3])

	stats := ComputeRunStatistics(tracks, res)
	assert.Equal(t, 4, stats.TrackCount)
	assert.Equal(t, 2, stats.SurvivorCount)
	assert.Equal(t, 1, stats.RejectedShort)
	assert.Equal(t, 1, stats.RejectedExcess)
	assert.Equal(t, res.Tracks[0].Score, stats.MaxScore)
	assert.InDelta(t, 30.0/9.0, stats.AvgDuration, 1e-12)
	assert.InDelta(t, (res.Tracks[0].Score+res.Tracks[1].Score)/2, stats.AvgScore, 1e-9)
}

func TestComputeRunStatisticsEmpty(t *testing.T) {
	t.Parallel()

	stats := ComputeRunStatistics(nil, ScoreResult{})
	assert.Zero(t, stats.TrackCount)
	assert.Zero(t, stats.AvgScore)
}

func TestScorerConfigValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, testScorerConfig().Validate())
	cfg := testScorerConfig()
	cfg.WindowSize = 63
	assert.Error(t, cfg.Validate())
	cfg = testScorerConfig()
	cfg.FrameRate = 0
	assert.Error(t, cfg.Validate())
}

func gradientFrame(w, h int) *l2frames.Frame {
	f := l2frames.NewFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Set(x, y, float64(x+10*y))
		}
	}
	return f
}

func TestSubsection(t *testing.T) {
	t.Parallel()

	f := gradientFrame(10, 10)

	centred := Subsection(f, l4perception.Box{X: 3, Y: 3, Width: 4, Height: 4}, 4)
	assert.Equal(t, 4, centred.Width)
	assert.Equal(t, 33.0, centred.At(0, 0))
	assert.Equal(t, 66.0, centred.At(3, 3))

	offImage := Subsection(f, l4perception.Box{X: -10, Y: -10, Width: 4, Height: 4}, 4)
	for _, v := range offImage.Pix {
		assert.Equal(t, 0.0, v, "top-left corner replicated")
	}

	rightEdge := Subsection(f, l4perception.Box{X: 8, Y: 0, Width: 4, Height: 4}, 4)
	assert.Equal(t, 9.0, rightEdge.At(3, 0))
	assert.Equal(t, 19.0, rightEdge.At(2, 1))
	assert.Equal(t, 8.0, rightEdge.At(0, 0))
}

func TestFlowSubsection(t *testing.T) {
	t.Parallel()

	flow := l3grid.NewFlowField(10, 10)
	flow.U[5*10+5] = 1.5
	flow.V[5*10+5] = -2
	win := FlowSubsection(flow, l4perception.Box{X: 3, Y: 3, Width: 4, Height: 4}, 4)
	u, v := win.At(2, 2)
	assert.Equal(t, 1.5, u)
	assert.Equal(t, -2.0, v)
}

func TestNormalise(t *testing.T) {
	t.Parallel()

	out := normalise([]float64{1, 3})
	assert.InDeltaSlice(t, []float64{-1, 1}, out, 1e-12)
	assert.Equal(t, []float64{0, 0, 0}, normalise([]float64{5, 5, 5}))
}

// movingRun extracts a clip with one long-lived moving blob and one
// two-frame blip.
func movingRun(t *testing.T, enableFlow bool) *l5tracks.Tracker {
	t.Helper()
	clip, err := testutil.MovingBlobClip("export.cptv").Load(context.Background())
	require.NoError(t, err)

	cfg := l5tracks.TrackerConfigFromTuning(config.DefaultTuningConfig())
	cfg.EnableFlow = enableFlow
	run := l5tracks.NewTracker(clip, cfg)
	require.NoError(t, run.Extract(context.Background()))
	return run
}

func TestScoreFiltersShortLivedTrack(t *testing.T) {
	t.Parallel()

	run := movingRun(t, false)
	require.Len(t, run.Tracks, 2, "the blip is created as a track")

	res := NewScorer(testScorerConfig()).Score(run.Tracks, run.History)
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, 1, res.Tracks[0].ID)
	assert.Equal(t, RejectTooShort, res.Rejected[2])
	assert.InDelta(t, 36.0/9.0, res.Tracks[0].Duration, 1e-12)
}

func TestExportTrack(t *testing.T) {
	t.Parallel()

	run := movingRun(t, true)
	cfg := testScorerConfig()
	res := NewScorer(cfg).Score(run.Tracks, run.History)
	require.NotEmpty(t, res.Tracks)
	track := res.Tracks[0]

	exp, err := ExportTrack(run, track, cfg)
	require.NoError(t, err)
	assert.Equal(t, 36, exp.Len())
	assert.Len(t, exp.FilteredFrames, 36)
	assert.Len(t, exp.FlowFrames, 36)
	assert.Equal(t, 64, exp.Frames[0].Width)
	assert.Equal(t, 64, exp.FlowFrames[0].Height)
	assert.Equal(t, [2]float64{0, 0}, exp.MotionVectors[0])

	assert.Equal(t, track.ID, exp.Stats.ID)
	assert.Equal(t, "export.cptv", exp.Stats.Filename)
	assert.Equal(t, run.Clip.StartTime, exp.Stats.Timestamp)
	assert.Equal(t, track.MassHistory, exp.Stats.MassHistory)
	assert.Len(t, exp.Stats.BoundsHistory, 36)
	assert.Equal(t, run.Stats.AutoThreshold, exp.Stats.Threshold)

	data := exp.ChannelData(5)
	assert.Len(t, data, 64*64*Channels)
}

func TestExportTrackMassHistoryMismatch(t *testing.T) {
	t.Parallel()

	run := movingRun(t, false)
	// Not scored, so there is no mass history.
	exp, err := ExportTrack(run, run.Tracks[0], testScorerConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMassHistoryMismatch))
	require.NotNil(t, exp)
	assert.Empty(t, exp.FlowFrames)
}

type fakeClassifier struct {
	labels []string
	scores []float32
	states [][]float32
}

func (c *fakeClassifier) Labels() []string { return c.labels }

func (c *fakeClassifier) Classify(frame []float32, state []float32) ([]float32, float32, []float32, error) {
	c.states = append(c.states, state)
	out := make([]float32, len(c.scores))
	copy(out, c.scores)
	return out, 0.9, []float32{1}, nil
}

func syntheticExport(masses ...int) *TrackExport {
	exp := &TrackExport{TrackID: 5}
	for _, m := range masses {
		exp.Frames = append(exp.Frames, gradientFrame(4, 4))
		exp.FilteredFrames = append(exp.FilteredFrames, gradientFrame(4, 4))
		exp.Stats.BoundsHistory = append(exp.Stats.BoundsHistory, l4perception.Box{Width: 4, Height: 4, Mass: m})
	}
	return exp
}

func TestIdentifyTrack(t *testing.T) {
	t.Parallel()

	c := &fakeClassifier{
		labels: []string{"bird", FalsePositiveLabel, "possum"},
		scores: []float32{0.2, 0.5, 0.3},
	}
	pred, err := IdentifyTrack(c, syntheticExport(20, 5))
	require.NoError(t, err)

	require.Len(t, pred.Predictions, 2)
	assert.InDeltaSlice(t, []float64{0.2, 0.4, 0.3}, pred.Predictions[0], 1e-6)
	assert.InDeltaSlice(t, []float64{0.19, 0.38, 0.285}, pred.Predictions[1], 1e-6)
	assert.InDeltaSlice(t, []float64{0.5, 0.54}, pred.Novelties, 1e-6)

	require.Len(t, c.states, 2)
	assert.Nil(t, c.states[0])
	assert.InDeltaSlice(t, []float32{0.98}, c.states[1], 1e-6)

	label, score := pred.BestLabel()
	assert.Equal(t, FalsePositiveLabel, label)
	assert.InDelta(t, 0.4, score, 1e-6)
	assert.InDelta(t, 0.52, pred.AverageNovelty(), 1e-6)
	assert.InDelta(t, 0.54, pred.MaxNovelty(), 1e-6)
}

func TestIdentifyTrackMassWeightFloor(t *testing.T) {
	t.Parallel()

	c := &fakeClassifier{labels: []string{"cat"}, scores: []float32{1}}
	pred, err := IdentifyTrack(c, syntheticExport(0))
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(0.02), pred.Predictions[0][0], 1e-6)
}

type failingClassifier struct{}

func (failingClassifier) Labels() []string { return []string{"a"} }
func (failingClassifier) Classify([]float32, []float32) ([]float32, float32, []float32, error) {
	return nil, 0, nil, errors.New("model unavailable")
}

func TestIdentifyTrackErrors(t *testing.T) {
	t.Parallel()

	_, err := IdentifyTrack(failingClassifier{}, syntheticExport(10))
	assert.ErrorContains(t, err, "model unavailable")

	_, err = IdentifyTrack(failingClassifier{}, &TrackExport{})
	assert.ErrorIs(t, err, ErrEmptyTrack)

	mismatched := &fakeClassifier{labels: []string{"a", "b"}, scores: []float32{1}}
	_, err = IdentifyTrack(mismatched, syntheticExport(10))
	assert.Error(t, err)
}

func TestClipPrediction(t *testing.T) {
	t.Parallel()

	labels := []string{"bird", "cat", "possum"}
	preds := []*TrackPrediction{
		{Labels: labels, Predictions: [][]float64{{0.1, 0.6, 0.2}}},
		{Labels: labels, Predictions: [][]float64{{0.7, 0.1, 0.2}, {0.3, 0.2, 0.25}}},
	}
	got := ClipPrediction(labels, preds)
	assert.Equal(t, []LabelScore{
		{Label: "bird", Score: 0.7},
		{Label: "cat", Score: 0.6},
		{Label: "possum", Score: 0.25},
	}, got)
}

func TestDefaultScorerConfig(t *testing.T) {
	cfg := DefaultScorerConfig()
	assert.Equal(t, ScorerConfigFromTuning(config.DefaultTuningConfig()), cfg)
	assert.Equal(t, 27, cfg.MinFrames())
}

func TestScoreSingleMovingBlob(t *testing.T) {
	t.Parallel()

	// A 10x10 blob moving (+2,+2) per frame for 30 frames, then gone.
	gen := l2frames.NewSynthetic("single", 32).WithBlob(l2frames.SyntheticBlob{
		X: 10, Y: 10, VX: 2, VY: 2, Size: 10, Heat: 200, EndFrame: 30,
	})
	clip, err := gen.Load(context.Background())
	require.NoError(t, err)

	cfg := l5tracks.TrackerConfigFromTuning(config.DefaultTuningConfig())
	cfg.EnableFlow = false
	tracker := l5tracks.NewTracker(clip, cfg)
	require.NoError(t, tracker.Extract(context.Background()))

	res := NewScorer(testScorerConfig()).Score(tracker.Tracks, tracker.History)
	require.Len(t, res.Tracks, 1)
	assert.Empty(t, res.Rejected)

	// Velocity starts at zero and converges on (2,2) through the 0.9
	// smoothing, so frame k contributes 2*sqrt(2)*(1-0.9^k) and the total
	// stays well below 30 * 2.83.
	var wantMovement float64
	for k := 0; k < 30; k++ {
		wantMovement += 2 * math.Sqrt2 * (1 - math.Pow(0.9, float64(k)))
	}
	track := res.Tracks[0]
	assert.InDelta(t, wantMovement, track.Movement, 1e-9)
	assert.InDelta(t, 58*math.Sqrt2, track.MaxOffset, 1e-9)
	assert.InDelta(t, wantMovement+58*math.Sqrt2, track.Score, 1e-9)
	assert.InDelta(t, 30.0/9.0, track.Duration, 1e-12)
}
