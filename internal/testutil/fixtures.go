// Package testutil provides shared clip fixtures for tests across the
// thermal layers.
package testutil

import (
	"github.com/banshee-data/thermal.tracker/internal/thermal/l2frames"
)

// Fixture geometry shared by tests that assert on the moving-blob clip.
const (
	MovingClipFrames = 36
	MovingClipWidth  = 128
	MovingClipHeight = 112
)

// MovingBlobClip is a 36-frame clip with one 8x8 blob moving (+2,+1) per
// frame for the whole clip and a 6x6 blip visible only on frames 10 and
// 11. Extraction yields two tracks; scoring keeps only the first.
func MovingBlobClip(name string) *l2frames.Synthetic {
	gen := l2frames.NewSynthetic(name, MovingClipFrames).
		WithBlob(l2frames.SyntheticBlob{X: 20, Y: 30, VX: 2, VY: 1, Size: 8, Heat: 250}).
		WithBlob(l2frames.SyntheticBlob{X: 120, Y: 90, Size: 6, Heat: 250, StartFrame: 10, EndFrame: 12})
	gen.Width, gen.Height = MovingClipWidth, MovingClipHeight
	return gen
}

// HotClip is a clip whose mean temperature exceeds the default admission
// limit, so it is skipped without tracks.
func HotClip(name string) *l2frames.Synthetic {
	gen := l2frames.NewSynthetic(name, 10).WithBlob(l2frames.SyntheticBlob{
		X: 10, Y: 10, VX: 2, Size: 10, Heat: 200,
	})
	gen.Background = 3900
	return gen
}
