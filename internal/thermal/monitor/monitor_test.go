package monitor

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/thermal.tracker/internal/config"
	"github.com/banshee-data/thermal.tracker/internal/monitoring"
	"github.com/banshee-data/thermal.tracker/internal/testutil"
	"github.com/banshee-data/thermal.tracker/internal/thermal/pipeline"
)

func init() {
	monitoring.SetLogger(nil)
}

func processedClip(t *testing.T, renderer pipeline.Renderer) *pipeline.Result {
	t.Helper()
	gen := testutil.MovingBlobClip("preview")
	opts := pipeline.OptionsFromTuning(config.DefaultTuningConfig())
	opts.Tracker.EnableFlow = false
	if renderer != nil {
		opts.Preview, opts.Renderer = true, renderer
	}
	res, err := pipeline.ProcessClip(context.Background(), gen, opts)
	require.NoError(t, err)
	require.Len(t, res.Tracks, 1)
	return res
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestTrajectoryPlotter(t *testing.T) {
	dir := t.TempDir()
	res := processedClip(t, nil)

	tp := &TrajectoryPlotter{OutputDir: dir}
	path, err := tp.Plot(res.Run, res.Tracks)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "preview_tracks.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))

	tp.IncludeFiltered = true
	_, err = tp.Plot(res.Run, res.Tracks)
	require.NoError(t, err)
}

func TestTrajectoryPlotterBadDir(t *testing.T) {
	res := processedClip(t, nil)
	tp := &TrajectoryPlotter{OutputDir: filepath.Join(t.TempDir(), "missing", "dir")}
	_, err := tp.Plot(res.Run, res.Tracks)
	assert.Error(t, err)
}

func TestScoreChart(t *testing.T) {
	dir := t.TempDir()
	res := processedClip(t, nil)

	sc := &ScoreChart{OutputDir: dir}
	path, err := sc.Write(res.Run, res.Tracks)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "preview_scores.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "Track scores")
	assert.Contains(t, html, "Track mass")
	assert.Contains(t, html, "track 1")
	assert.Contains(t, html, "max offset")
}

func TestPreviewRendererViaPipeline(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "previews")
	processedClip(t, NewPreviewRenderer(dir))

	for _, name := range []string{"preview_tracks.png", "preview_scores.html"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestPreviewRendererCancelled(t *testing.T) {
	res := processedClip(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPreviewRenderer(t.TempDir()).Render(ctx, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrackColors(t *testing.T) {
	assert.Nil(t, trackColors(0))

	colors := trackColors(3)
	require.Len(t, colors, 3)
	assert.Equal(t, color.RGBA{R: 216, G: 38, B: 38, A: 255}, colors[0])
	assert.Equal(t, "#d82626", hexColor(colors[0]))
	assert.NotEqual(t, colors[0], colors[1])
}
