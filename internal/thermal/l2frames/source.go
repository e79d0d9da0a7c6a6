package l2frames

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/image/tiff"
)

// Source produces a fully loaded clip. Decoding of camera-native formats
// lives behind this interface.
type Source interface {
	Load(ctx context.Context) (*Clip, error)
}

// TIFFSequence loads a clip from a directory of greyscale TIFF images,
// one file per frame, ordered by file name. 16-bit images keep their raw
// sensor values; 8-bit images are widened.
type TIFFSequence struct {
	Dir       string
	StartTime time.Time
}

// Load implements Source.
func (s TIFFSequence) Load(ctx context.Context) (*Clip, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".tif" || ext == ".tiff" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w", s.Dir, ErrEmptyClip)
	}

	clip := &Clip{Source: filepath.Base(s.Dir), StartTime: s.StartTime}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := decodeTIFF(filepath.Join(s.Dir, name))
		if err != nil {
			return nil, err
		}
		clip.Frames = append(clip.Frames, f)
	}
	return clip, nil
}

func decodeTIFF(path string) (*Frame, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer r.Close()

	img, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return FrameFromImage(img), nil
}

// FrameFromImage converts a decoded image into a Frame. Gray16 images are
// copied verbatim; any other model is converted through color.Gray16Model.
func FrameFromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := NewFrame(b.Dx(), b.Dy())
	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				f.Set(x, y, float64(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
	case *image.Gray:
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				f.Set(x, y, float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
	default:
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				f.Set(x, y, float64(g.Y))
			}
		}
	}
	return f
}

// FrameToGray16 renders a frame as a 16-bit greyscale image, clamping
// samples to [0, 65535].
func FrameToGray16(f *Frame) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := f.At(x, y)
			switch {
			case v < 0:
				v = 0
			case v > 65535:
				v = 65535
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}
	return img
}
