//go:build gocv

package l3grid

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/banshee-data/thermal.tracker/internal/thermal/l2frames"
)

// Farneback estimates dense flow with OpenCV's polynomial expansion
// method. Frames are clipped to 8-bit before estimation.
type Farneback struct {
	PyrScale   float64
	Levels     int
	WindowSize int
	Iterations int
	PolyN      int
	PolySigma  float64
}

// NewFarneback returns an estimator with OpenCV's commonly used parameters.
func NewFarneback() *Farneback {
	return &Farneback{PyrScale: 0.5, Levels: 3, WindowSize: 15, Iterations: 3, PolyN: 5, PolySigma: 1.2}
}

// Estimate implements FlowEstimator.
func (fb *Farneback) Estimate(prev, next *l2frames.Frame) (*FlowField, error) {
	if !prev.SameSize(next) {
		return nil, fmt.Errorf("flow frames differ in size")
	}
	prevMat, err := toGray8(prev)
	if err != nil {
		return nil, err
	}
	defer prevMat.Close()
	nextMat, err := toGray8(next)
	if err != nil {
		return nil, err
	}
	defer nextMat.Close()

	flow := gocv.NewMat()
	defer flow.Close()
	gocv.CalcOpticalFlowFarneback(prevMat, nextMat, &flow,
		fb.PyrScale, fb.Levels, fb.WindowSize, fb.Iterations, fb.PolyN, fb.PolySigma, 0)

	out := NewFlowField(prev.Width, prev.Height)
	for y := 0; y < prev.Height; y++ {
		for x := 0; x < prev.Width; x++ {
			v := flow.GetVecfAt(y, x)
			i := y*prev.Width + x
			out.U[i] = float64(v[0])
			out.V[i] = float64(v[1])
		}
	}
	return out, nil
}

func toGray8(f *l2frames.Frame) (gocv.Mat, error) {
	buf := make([]byte, len(f.Pix))
	for i, v := range f.Pix {
		switch {
		case v < 0:
			buf[i] = 0
		case v > 255:
			buf[i] = 255
		default:
			buf[i] = byte(v)
		}
	}
	m, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8U, buf)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("build gocv mat: %w", err)
	}
	return m, nil
}
