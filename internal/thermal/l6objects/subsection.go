package l6objects

import (
	"github.com/banshee-data/thermal.tracker/internal/thermal/l2frames"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l3grid"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l4perception"
)

// subsectionPadding is the edge-replicated margin added around the frame
// before cropping.
const subsectionPadding = 40

// windowOrigin returns the top-left source coordinate of a size x size
// window centred on box.
func windowOrigin(box l4perception.Box, size int) (int, int) {
	midX := int(box.MidX() + subsectionPadding)
	midY := int(box.MidY() + subsectionPadding)
	half := size / 2
	return midX - half - subsectionPadding, midY - half - subsectionPadding
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Subsection returns a size x size window of frame centred on box. Samples
// outside the frame repeat the nearest edge pixel.
func Subsection(frame *l2frames.Frame, box l4perception.Box, size int) *l2frames.Frame {
	x0, y0 := windowOrigin(box, size)
	out := l2frames.NewFrame(size, size)
	for y := 0; y < size; y++ {
		sy := clamp(y0+y, 0, frame.Height-1)
		for x := 0; x < size; x++ {
			sx := clamp(x0+x, 0, frame.Width-1)
			out.Set(x, y, frame.At(sx, sy))
		}
	}
	return out
}

// FlowSubsection is Subsection for flow fields.
func FlowSubsection(flow *l3grid.FlowField, box l4perception.Box, size int) *l3grid.FlowField {
	x0, y0 := windowOrigin(box, size)
	out := l3grid.NewFlowField(size, size)
	for y := 0; y < size; y++ {
		sy := clamp(y0+y, 0, flow.Height-1)
		for x := 0; x < size; x++ {
			sx := clamp(x0+x, 0, flow.Width-1)
			u, v := flow.At(sx, sy)
			out.U[y*size+x] = u
			out.V[y*size+x] = v
		}
	}
	return out
}
