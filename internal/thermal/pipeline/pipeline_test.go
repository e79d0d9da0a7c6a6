package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/thermal.tracker/internal/config"
	"github.com/banshee-data/thermal.tracker/internal/metrics"
	"github.com/banshee-data/thermal.tracker/internal/monitoring"
	"github.com/banshee-data/thermal.tracker/internal/testutil"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l2frames"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l6objects"
	"github.com/banshee-data/thermal.tracker/internal/thermal/storage/sqlite"
	"github.com/banshee-data/thermal.tracker/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func testOptions() *Options {
	opts := OptionsFromTuning(config.DefaultTuningConfig())
	opts.Tracker.EnableFlow = false
	return opts
}

func movingClip() *l2frames.Synthetic {
	return testutil.MovingBlobClip("20171024-105434-akaroa03")
}

func hotClip() *l2frames.Synthetic {
	return testutil.HotClip("hot")
}

type stubClassifier struct{}

func (stubClassifier) Labels() []string { return []string{"bird", l6objects.FalsePositiveLabel, "possum"} }

func (stubClassifier) Classify(frame []float32, state []float32) ([]float32, float32, []float32, error) {
	return []float32{0.1, 0.2, 0.7}, 0.3, []float32{1, 1}, nil
}

type recordingRenderer struct {
	results []*Result
	err     error
}

func (r *recordingRenderer) Render(_ context.Context, res *Result) error {
	r.results = append(r.results, res)
	return r.err
}

type failingSource struct{}

func (failingSource) Load(context.Context) (*l2frames.Clip, error) {
	return nil, errors.New("corrupt header")
}

func TestOptionsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Options)
		want   error
	}{
		{name: "defaults", modify: func(*Options) {}},
		{name: "preview without renderer", modify: func(o *Options) { o.Preview = true }, want: ErrRendererRequired},
		{name: "identify without classifier", modify: func(o *Options) { o.Identify = true }, want: ErrClassifierRequired},
		{name: "preview with renderer", modify: func(o *Options) {
			o.Preview = true
			o.Renderer = &recordingRenderer{}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.modify(opts)
			err := opts.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Error(t, (&Options{}).Validate())
}

func TestProcessClipRejectsBeforeReading(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.Identify = true
	_, err := ProcessClip(context.Background(), failingSource{}, opts)
	assert.ErrorIs(t, err, ErrClassifierRequired)
}

func TestProcessClipMovingBlob(t *testing.T) {
	t.Parallel()

	res, err := ProcessClip(context.Background(), movingClip(), testOptions())
	require.NoError(t, err)

	assert.Equal(t, "20171024-105434-akaroa03", res.Source)
	assert.Empty(t, res.Rejected)
	assert.Empty(t, res.RunID)
	require.Len(t, res.Run.Tracks, 2)
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, 1, res.Tracks[0].ID)
	assert.Equal(t, map[int]string{2: l6objects.RejectTooShort}, res.Filtered)

	require.Len(t, res.Exports, 1)
	assert.Equal(t, 36, res.Exports[0].Len())
	assert.Empty(t, res.Predictions)
	assert.Nil(t, res.Debug)

	require.NotNil(t, res.Statistics)
	assert.Equal(t, 2, res.Statistics.TrackCount)
	assert.Equal(t, 1, res.Statistics.SurvivorCount)
	assert.Equal(t, 1, res.Statistics.RejectedShort)
}

func TestProcessClipHotClip(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.Metrics = metrics.New()
	renderer := &recordingRenderer{}
	opts.Preview, opts.Renderer = true, renderer

	res, err := ProcessClip(context.Background(), hotClip(), opts)
	require.NoError(t, err)
	assert.Contains(t, res.Rejected, "mean temperature")
	assert.Empty(t, res.Tracks)
	assert.Empty(t, res.Exports)
	assert.Empty(t, renderer.results, "rejected clips are not previewed")

	assert.Equal(t, 1.0, promtest.ToFloat64(opts.Metrics.ClipsRejected.WithLabelValues("mean_temperature")))
	assert.Equal(t, 0.0, promtest.ToFloat64(opts.Metrics.ClipsProcessed))
}

func TestProcessClipAllSinks(t *testing.T) {
	t.Parallel()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "thermal.db"))
	require.NoError(t, err)
	defer db.Close()
	store := sqlite.NewStore(db)

	opts := testOptions()
	opts.Metrics = metrics.New()
	opts.Store = store
	opts.Identify, opts.Classifier = true, stubClassifier{}
	renderer := &recordingRenderer{}
	opts.Preview, opts.Renderer = true, renderer
	opts.Debug = true
	clock := timeutil.NewMockClock(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	opts.Clock = clock

	res, err := ProcessClip(context.Background(), movingClip(), opts)
	require.NoError(t, err)

	// Identification.
	require.Len(t, res.Predictions, 1)
	label, score := res.Predictions[0].BestLabel()
	assert.Equal(t, "possum", label)
	assert.Greater(t, score, 0.0)
	require.Len(t, res.ClipLabels, 3)
	assert.Equal(t, "possum", res.ClipLabels[0].Label)

	// Debug.
	require.NotNil(t, res.Debug)
	assert.Len(t, res.Debug.Frames(), 36)

	// Preview.
	require.Len(t, renderer.results, 1)
	assert.Same(t, res, renderer.results[0])

	// Metrics.
	m := opts.Metrics
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ClipsProcessed))
	assert.Equal(t, 36.0, promtest.ToFloat64(m.FramesProcessed))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.TracksCreated))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.TracksKept))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.TracksFiltered.WithLabelValues(l6objects.RejectTooShort)))

	// Persistence.
	require.NotEmpty(t, res.RunID)
	run, err := store.Clips.Get(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Source, run.Source)
	assert.Equal(t, 36, run.FrameCount)
	assert.Equal(t, 2, run.TrackCount)
	assert.Equal(t, 1, run.SurvivorCount)
	assert.Equal(t, clock.Now().UnixNano(), run.CreatedAt)

	tracks, err := store.Tracks.ListByRun(res.RunID)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, 1, tracks[0].TrackID)
	assert.Equal(t, 0, tracks[0].Rank)
	assert.Equal(t, 36, tracks[0].FrameCount)
	assert.Len(t, tracks[0].BoundsHistory, 36)
	assert.Equal(t, res.Tracks[0].MassHistory, tracks[0].MassHistory)
	assert.Equal(t, "possum", tracks[0].BestLabel)
}

func TestProcessClipPersistsRejectedClip(t *testing.T) {
	t.Parallel()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "thermal.db"))
	require.NoError(t, err)
	defer db.Close()
	store := sqlite.NewStore(db)

	opts := testOptions()
	opts.Store = store
	res, err := ProcessClip(context.Background(), hotClip(), opts)
	require.NoError(t, err)

	run, err := store.Clips.Get(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Rejected, run.RejectedReason)
	assert.Zero(t, run.TrackCount)
}

func TestProcessClipLoadError(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.Metrics = metrics.New()
	_, err := ProcessClip(context.Background(), failingSource{}, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load clip: corrupt header")
	assert.Equal(t, 1.0, promtest.ToFloat64(opts.Metrics.ClipErrors))
}

func TestProcessClipRendererError(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.Preview = true
	opts.Renderer = &recordingRenderer{err: errors.New("disk full")}
	_, err := ProcessClip(context.Background(), movingClip(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestProcessClipCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ProcessClip(ctx, movingClip(), testOptions())
	assert.ErrorIs(t, err, context.Canceled)
}
