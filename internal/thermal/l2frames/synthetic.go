package l2frames

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// SyntheticBlob is a square hotspot moving at constant velocity.
type SyntheticBlob struct {
	X, Y   float64 // top-left position at frame 0
	VX, VY float64 // pixels per frame
	Size   int     // edge length in pixels
	Heat   float64 // temperature above background
	// Blob is visible for frames in [StartFrame, EndFrame). EndFrame 0 means
	// until the end of the clip.
	StartFrame int
	EndFrame   int
}

// Synthetic generates deterministic clips of moving blobs over a flat
// background, used for tests and demos.
type Synthetic struct {
	Name       string
	Width      int
	Height     int
	FrameCount int
	Background float64
	Noise      float64 // uniform noise amplitude; 0 disables noise
	Seed       int64
	StartTime  time.Time
	Blobs      []SyntheticBlob
}

// NewSynthetic returns a 160x120 scene with a 3000-count background.
func NewSynthetic(name string, frames int) *Synthetic {
	return &Synthetic{
		Name:       name,
		Width:      160,
		Height:     120,
		FrameCount: frames,
		Background: 3000,
		Seed:       1,
		StartTime:  time.Date(2017, 10, 24, 10, 54, 34, 0, time.UTC),
	}
}

// WithBlob adds a blob and returns the generator for chaining.
func (s *Synthetic) WithBlob(b SyntheticBlob) *Synthetic {
	s.Blobs = append(s.Blobs, b)
	return s
}

// Load implements Source.
func (s *Synthetic) Load(ctx context.Context) (*Clip, error) {
	rng := rand.New(rand.NewSource(s.Seed))
	clip := &Clip{Source: s.Name, StartTime: s.StartTime}
	for i := 0; i < s.FrameCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clip.Frames = append(clip.Frames, s.render(i, rng))
	}
	return clip, nil
}

func (s *Synthetic) render(frameNumber int, rng *rand.Rand) *Frame {
	f := NewFrame(s.Width, s.Height)
	for i := range f.Pix {
		f.Pix[i] = s.Background
		if s.Noise > 0 {
			f.Pix[i] += (rng.Float64()*2 - 1) * s.Noise
		}
	}
	for _, b := range s.Blobs {
		if frameNumber < b.StartFrame || (b.EndFrame > 0 && frameNumber >= b.EndFrame) {
			continue
		}
		x0 := int(math.Round(b.X + b.VX*float64(frameNumber)))
		y0 := int(math.Round(b.Y + b.VY*float64(frameNumber)))
		for y := y0; y < y0+b.Size; y++ {
			for x := x0; x < x0+b.Size; x++ {
				if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
					continue
				}
				f.Set(x, y, f.At(x, y)+b.Heat)
			}
		}
	}
	return f
}
