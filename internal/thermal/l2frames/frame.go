package l2frames

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrEmptyClip is returned when a clip has no frames to process.
var ErrEmptyClip = errors.New("clip has no frames")

// Frame is a single thermal image: one temperature sample per pixel,
// stored row-major. Frames are treated as immutable once they are part
// of a Clip; derived images are always new Frames.
type Frame struct {
	Width  int
	Height int
	Pix    []float64
}

// NewFrame allocates a zero-valued frame.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// FrameFromRows builds a frame from row slices. All rows must share a length.
func FrameFromRows(rows [][]float64) (*Frame, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("frame must have at least one row and column")
	}
	width := len(rows[0])
	f := NewFrame(width, len(rows))
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d columns, want %d", y, len(row), width)
		}
		copy(f.Pix[y*width:(y+1)*width], row)
	}
	return f, nil
}

// At returns the sample at (x, y).
func (f *Frame) At(x, y int) float64 {
	return f.Pix[y*f.Width+x]
}

// Set writes the sample at (x, y).
func (f *Frame) Set(x, y int, v float64) {
	f.Pix[y*f.Width+x] = v
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	c := &Frame{Width: f.Width, Height: f.Height, Pix: make([]float64, len(f.Pix))}
	copy(c.Pix, f.Pix)
	return c
}

// Sub returns f - other as a new frame. Dimensions must match.
func (f *Frame) Sub(other *Frame) *Frame {
	out := NewFrame(f.Width, f.Height)
	for i, v := range f.Pix {
		out.Pix[i] = v - other.Pix[i]
	}
	return out
}

// SameSize reports whether both frames have identical dimensions.
func (f *Frame) SameSize(other *Frame) bool {
	return f.Width == other.Width && f.Height == other.Height
}

// FrameError identifies the clip and frame at which processing failed.
type FrameError struct {
	Clip  string
	Frame int
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("clip %s frame %d: %v", e.Clip, e.Frame, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// Clip is an ordered sequence of equal-sized frames with a start timestamp.
type Clip struct {
	Source    string
	StartTime time.Time
	Frames    []*Frame
}

// Width of the clip's frames (0 for an empty clip).
func (c *Clip) Width() int {
	if len(c.Frames) == 0 {
		return 0
	}
	return c.Frames[0].Width
}

// Height of the clip's frames (0 for an empty clip).
func (c *Clip) Height() int {
	if len(c.Frames) == 0 {
		return 0
	}
	return c.Frames[0].Height
}

// ValidateFrame checks frame i of the clip: dimensions must match the first
// frame and every sample must be finite.
func (c *Clip) ValidateFrame(i int) error {
	f := c.Frames[i]
	if f == nil {
		return &FrameError{Clip: c.Source, Frame: i, Err: errors.New("nil frame")}
	}
	if f.Width <= 0 || f.Height <= 0 || len(f.Pix) != f.Width*f.Height {
		return &FrameError{Clip: c.Source, Frame: i,
			Err: fmt.Errorf("malformed frame %dx%d with %d samples", f.Width, f.Height, len(f.Pix))}
	}
	if first := c.Frames[0]; !f.SameSize(first) {
		return &FrameError{Clip: c.Source, Frame: i,
			Err: fmt.Errorf("frame is %dx%d, clip is %dx%d", f.Width, f.Height, first.Width, first.Height)}
	}
	for p, v := range f.Pix {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &FrameError{Clip: c.Source, Frame: i,
				Err: fmt.Errorf("non-finite sample %v at (%d,%d)", v, p%f.Width, p/f.Width)}
		}
	}
	return nil
}

// Validate checks every frame in the clip.
func (c *Clip) Validate() error {
	if len(c.Frames) == 0 {
		return fmt.Errorf("clip %s: %w", c.Source, ErrEmptyClip)
	}
	for i := range c.Frames {
		if err := c.ValidateFrame(i); err != nil {
			return err
		}
	}
	return nil
}
