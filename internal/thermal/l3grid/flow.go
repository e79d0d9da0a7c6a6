package l3grid

import (
	"fmt"

	"github.com/banshee-data/thermal.tracker/internal/thermal/l2frames"
)

// FlowField is a dense per-pixel motion estimate between two frames,
// stored row-major as separate horizontal (U) and vertical (V) components.
type FlowField struct {
	Width  int
	Height int
	U      []float64
	V      []float64
}

// NewFlowField allocates a zero flow field.
func NewFlowField(width, height int) *FlowField {
	return &FlowField{
		Width:  width,
		Height: height,
		U:      make([]float64, width*height),
		V:      make([]float64, width*height),
	}
}

// At returns the flow vector at (x, y).
func (f *FlowField) At(x, y int) (float64, float64) {
	i := y*f.Width + x
	return f.U[i], f.V[i]
}

// FlowEstimator computes dense optical flow from prev to next.
type FlowEstimator interface {
	Estimate(prev, next *l2frames.Frame) (*FlowField, error)
}

// LucasKanade is a dense Lucas-Kanade flow estimator. Each pixel solves the
// 2x2 normal equations over a square window of spatial and temporal
// gradients; pixels whose system is ill-conditioned get zero flow.
type LucasKanade struct {
	Window int     // odd window edge length (default: 5)
	MinDet float64 // determinant floor below which flow is zero (default: 1e-6)
}

// NewLucasKanade returns an estimator with a 5x5 window.
func NewLucasKanade() *LucasKanade {
	return &LucasKanade{Window: 5, MinDet: 1e-6}
}

// Estimate implements FlowEstimator.
func (lk *LucasKanade) Estimate(prev, next *l2frames.Frame) (*FlowField, error) {
	if !prev.SameSize(next) {
		return nil, fmt.Errorf("flow frames differ in size: %dx%d vs %dx%d",
			prev.Width, prev.Height, next.Width, next.Height)
	}
	w, h := prev.Width, prev.Height
	half := lk.Window / 2
	if half < 1 {
		half = 1
	}

	ix := make([]float64, w*h)
	iy := make([]float64, w*h)
	it := make([]float64, w*h)
	at := func(f *l2frames.Frame, x, y int) float64 {
		return f.At(clampInt(x, 0, w-1), clampInt(y, 0, h-1))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			ix[i] = (at(prev, x+1, y) - at(prev, x-1, y) + at(next, x+1, y) - at(next, x-1, y)) / 4
			iy[i] = (at(prev, x, y+1) - at(prev, x, y-1) + at(next, x, y+1) - at(next, x, y-1)) / 4
			it[i] = next.Pix[i] - prev.Pix[i]
		}
	}

	out := NewFlowField(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sxx, sxy, syy, sxt, syt float64
			for dy := -half; dy <= half; dy++ {
				yy := clampInt(y+dy, 0, h-1)
				for dx := -half; dx <= half; dx++ {
					j := yy*w + clampInt(x+dx, 0, w-1)
					sxx += ix[j] * ix[j]
					sxy += ix[j] * iy[j]
					syy += iy[j] * iy[j]
					sxt += ix[j] * it[j]
					syt += iy[j] * it[j]
				}
			}
			det := sxx*syy - sxy*sxy
			if det < lk.MinDet {
				continue
			}
			i := y*w + x
			out.U[i] = (-syy*sxt + sxy*syt) / det
			out.V[i] = (sxy*sxt - sxx*syt) / det
		}
	}
	return out, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
