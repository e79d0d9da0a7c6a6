package l3grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/thermal.tracker/internal/config"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l2frames"
)

func testBackgroundConfig() *BackgroundConfig {
	return BackgroundConfigFromTuning(config.DefaultTuningConfig())
}

func flatClip(n, w, h int, v float64) *l2frames.Clip {
	clip := &l2frames.Clip{Source: "flat"}
	for i := 0; i < n; i++ {
		f := l2frames.NewFrame(w, h)
		for p := range f.Pix {
			f.Pix[p] = v
		}
		clip.Frames = append(clip.Frames, f)
	}
	return clip
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.3, Percentile(sorted, 10), 1e-9)
	assert.Equal(t, 1.0, Percentile(sorted, 0))
	assert.Equal(t, 4.0, Percentile(sorted, 100))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 99.9))
}

func TestMedian(t *testing.T) {
	t.Parallel()

	values := []float64{3, 1, 2, 4}
	assert.Equal(t, 2.5, Median(values))
	assert.Equal(t, []float64{3, 1, 2, 4}, values, "input must not be reordered")
	assert.Equal(t, 2.0, Median([]float64{5, 2, 1}))
	assert.Equal(t, 0.0, Median(nil))
}

func TestEstimateBackgroundFlatClip(t *testing.T) {
	t.Parallel()

	bg := EstimateBackground(flatClip(5, 4, 3, 3000), testBackgroundConfig())
	assert.Equal(t, 3000.0, bg.Frame.At(2, 2))
	assert.Equal(t, 10.0, bg.AutoThreshold, "clamped to the minimum")
	assert.Equal(t, 0.0, bg.AverageDelta)
	assert.True(t, bg.IsStatic)
}

func TestEstimateBackgroundSpike(t *testing.T) {
	t.Parallel()

	clip := flatClip(10, 3, 3, 3000)
	clip.Frames[4].Set(0, 0, 3500)

	bg := EstimateBackground(clip, testBackgroundConfig())
	assert.Equal(t, 3000.0, bg.Frame.At(0, 0), "10th percentile ignores the spike")
	assert.Equal(t, 50.0, bg.AutoThreshold, "clamped to the maximum")
	assert.InDelta(t, 2*500.0/9/9, bg.AverageDelta, 1e-9)
	assert.False(t, bg.IsStatic)
}

func TestEstimateBackgroundSingleFrame(t *testing.T) {
	t.Parallel()

	f, err := l2frames.FrameFromRows([][]float64{{3000, 3020}, {3040, 3060}})
	require.NoError(t, err)
	bg := EstimateBackground(&l2frames.Clip{Frames: []*l2frames.Frame{f}}, testBackgroundConfig())

	assert.Equal(t, f.Pix, bg.Frame.Pix)
	assert.Equal(t, 0.0, bg.AverageDelta)
	assert.True(t, bg.IsStatic)
}

func TestSelectMode(t *testing.T) {
	t.Parallel()

	static := EstimateBackground(flatClip(3, 2, 2, 3000), testBackgroundConfig())
	moving := &Background{Frame: static.Frame, AutoThreshold: 33, IsStatic: false}

	tests := []struct {
		name          string
		bg            *Background
		mode          string
		wantSubtract  bool
		wantThreshold float64
	}{
		{name: "auto static", bg: static, mode: config.SubtractionAuto, wantSubtract: true, wantThreshold: 10},
		{name: "auto moving", bg: moving, mode: config.SubtractionAuto, wantThreshold: 75},
		{name: "forced on", bg: moving, mode: config.SubtractionOn, wantSubtract: true, wantThreshold: 33},
		{name: "forced off", bg: static, mode: config.SubtractionOff, wantThreshold: 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testBackgroundConfig().WithSubtraction(tt.mode)
			m := SelectMode(tt.bg, cfg)
			assert.Equal(t, tt.wantSubtract, m.Subtract)
			assert.Equal(t, tt.wantThreshold, m.Threshold)
			if tt.wantSubtract {
				assert.Same(t, tt.bg.Frame, m.Mask)
			} else {
				assert.Equal(t, 0.0, m.Mask.At(1, 1))
			}
		})
	}
}

func TestBackgroundConfigValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, testBackgroundConfig().Validate())
	assert.Error(t, testBackgroundConfig().WithSubtraction("maybe").Validate())

	cfg := testBackgroundConfig()
	cfg.MinThreshold = 80
	assert.Error(t, cfg.Validate())
}

func TestFilteredFrame(t *testing.T) {
	t.Parallel()

	frame, _ := l2frames.FrameFromRows([][]float64{{10, 20, 30}, {40, 50, 60}})
	mask, _ := l2frames.FrameFromRows([][]float64{{10, 10, 10}, {10, 10, 10}})

	out := FilteredFrame(frame, mask)
	// frame - mask = 0..50, median 25.
	assert.Equal(t, []float64{0, 0, 0, 5, 15, 25}, out.Pix)
	assert.Equal(t, 10.0, frame.At(0, 0), "input untouched")
}

func gaussianFrame(w, h int, cx, cy, sigma float64) *l2frames.Frame {
	f := l2frames.NewFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			f.Set(x, y, 100*math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma)))
		}
	}
	return f
}

func TestLucasKanadeDetectsShift(t *testing.T) {
	t.Parallel()

	prev := gaussianFrame(32, 32, 15, 16, 3)
	next := gaussianFrame(32, 32, 16, 16, 3)

	flow, err := NewLucasKanade().Estimate(prev, next)
	require.NoError(t, err)

	u, v := flow.At(13, 16)
	assert.Greater(t, u, 0.3)
	assert.Less(t, u, 2.0)
	assert.InDelta(t, 0, v, 0.1)

	// Far corner has no texture.
	u, v = flow.At(0, 0)
	assert.InDelta(t, 0, u, 0.05)
	assert.InDelta(t, 0, v, 0.05)
}

func TestLucasKanadeStaticFrames(t *testing.T) {
	t.Parallel()

	f := gaussianFrame(16, 16, 8, 8, 2)
	flow, err := NewLucasKanade().Estimate(f, f.Clone())
	require.NoError(t, err)
	for i := range flow.U {
		assert.Equal(t, 0.0, flow.U[i])
		assert.Equal(t, 0.0, flow.V[i])
	}
}

func TestLucasKanadeSizeMismatch(t *testing.T) {
	t.Parallel()

	_, err := NewLucasKanade().Estimate(l2frames.NewFrame(2, 2), l2frames.NewFrame(3, 2))
	assert.Error(t, err)
}

func TestDefaultFlowEstimator(t *testing.T) {
	t.Parallel()
	assert.NotNil(t, DefaultFlowEstimator())
}

func TestDefaultBackgroundConfigMatchesDefaults(t *testing.T) {
	assert.Equal(t, testBackgroundConfig(), DefaultBackgroundConfig())
}
