package l4perception

import (
	"github.com/banshee-data/thermal.tracker/internal/thermal/l2frames"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l3grid"
)

// gaussian5 is OpenCV's fixed 5-tap kernel used when sigma is derived from
// the kernel size.
var gaussian5 = [5]float64{0.0625, 0.25, 0.375, 0.25, 0.0625}

// LabelMap assigns every pixel a component label; 0 is background and
// labels 1..Count are numbered in raster order of their first pixel.
type LabelMap struct {
	Width  int
	Height int
	Labels []int32
	Count  int
}

// At returns the label at (x, y).
func (m *LabelMap) At(x, y int) int32 {
	return m.Labels[y*m.Width+x]
}

// Detection is the result of running the detector on one frame.
type Detection struct {
	Regions []Box
	Labels  *LabelMap
}

// Detector finds hotspot regions in background-subtracted frames.
type Detector struct {
	cfg       *DetectorConfig
	Threshold float64
	seg       segmenter
}

// segmenter blurs frame, keeps samples above level, erodes the mask and
// labels its 8-connected components. Boxes are returned unpadded, one per
// label in label order, with Mass set to the component's pixel count.
type segmenter interface {
	segment(frame *l2frames.Frame, level float64, erosions int) (*LabelMap, []Box)
}

// NewDetector returns a detector using threshold above the frame median
// and the segmentation backend compiled into this build.
func NewDetector(cfg *DetectorConfig, threshold float64) *Detector {
	return &Detector{cfg: cfg, Threshold: threshold, seg: defaultSegmenter()}
}

// Detect returns the padded bounding boxes of every connected hotspot in
// frame, in label order. An empty or uniform frame yields no regions.
func (d *Detector) Detect(frame *l2frames.Frame) Detection {
	if frame == nil || len(frame.Pix) == 0 {
		return Detection{Labels: &LabelMap{}}
	}

	level := l3grid.Median(frame.Pix) + d.Threshold
	labels, boxes := d.seg.segment(frame, level, d.cfg.ErosionIterations)
	for i := range boxes {
		boxes[i] = boxes[i].Pad(d.cfg.Padding)
	}
	return Detection{Regions: boxes, Labels: labels}
}

// goSegmenter implements segmenter with OpenCV's kernels and border rules
// in Go.
type goSegmenter struct{}

func (goSegmenter) segment(frame *l2frames.Frame, level float64, erosions int) (*LabelMap, []Box) {
	blurred := gaussianBlur5(frame)
	mask := make([]bool, len(blurred.Pix))
	for i, v := range blurred.Pix {
		mask[i] = v-level > 0
	}
	for i := 0; i < erosions; i++ {
		mask = erode3x3(mask, frame.Width, frame.Height)
	}
	labels := labelComponents(mask, frame.Width, frame.Height)
	return labels, componentBoxes(labels)
}

// reflect101 maps an out-of-range index back into [0, n) without
// repeating the edge sample (OpenCV BORDER_REFLECT_101).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func gaussianBlur5(f *l2frames.Frame) *l2frames.Frame {
	w, h := f.Width, f.Height
	tmp := l2frames.NewFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s float64
			for k := -2; k <= 2; k++ {
				s += gaussian5[k+2] * f.At(reflect101(x+k, w), y)
			}
			tmp.Set(x, y, s)
		}
	}
	out := l2frames.NewFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s float64
			for k := -2; k <= 2; k++ {
				s += gaussian5[k+2] * tmp.At(x, reflect101(y+k, h))
			}
			out.Set(x, y, s)
		}
	}
	return out
}

// erode3x3 clears every pixel with a cleared 8-neighbour. Pixels outside
// the image count as set.
func erode3x3(mask []bool, w, h int) []bool {
	out := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			keep := mask[y*w+x]
			for dy := -1; dy <= 1 && keep; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					if !mask[yy*w+xx] {
						keep = false
						break
					}
				}
			}
			out[y*w+x] = keep
		}
	}
	return out
}

func labelComponents(mask []bool, w, h int) *LabelMap {
	parent := make([]int32, len(mask))
	for i := range parent {
		parent[i] = int32(i)
	}
	find := func(i int32) int32 {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int32) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		// Keep the earlier raster index as root.
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if !mask[i] {
				continue
			}
			// Previously visited 8-neighbours: W, NW, N, NE.
			if x > 0 && mask[i-1] {
				union(int32(i), int32(i-1))
			}
			if y > 0 {
				for dx := -1; dx <= 1; dx++ {
					xx := x + dx
					if xx >= 0 && xx < w && mask[i-w+dx] {
						union(int32(i), int32(i-w+dx))
					}
				}
			}
		}
	}

	lm := &LabelMap{Width: w, Height: h, Labels: make([]int32, len(mask))}
	next := map[int32]int32{}
	for i, set := range mask {
		if !set {
			continue
		}
		root := find(int32(i))
		label, ok := next[root]
		if !ok {
			lm.Count++
			label = int32(lm.Count)
			next[root] = label
		}
		lm.Labels[i] = label
	}
	return lm
}

func componentBoxes(lm *LabelMap) []Box {
	if lm.Count == 0 {
		return nil
	}
	type extent struct{ minX, minY, maxX, maxY, mass int }
	ext := make([]extent, lm.Count+1)
	for i := range ext {
		ext[i] = extent{minX: lm.Width, minY: lm.Height, maxX: -1, maxY: -1}
	}
	for y := 0; y < lm.Height; y++ {
		for x := 0; x < lm.Width; x++ {
			l := lm.Labels[y*lm.Width+x]
			if l == 0 {
				continue
			}
			e := &ext[l]
			e.minX = min(e.minX, x)
			e.minY = min(e.minY, y)
			e.maxX = max(e.maxX, x)
			e.maxY = max(e.maxY, y)
			e.mass++
		}
	}

	boxes := make([]Box, 0, lm.Count)
	for l := 1; l <= lm.Count; l++ {
		e := ext[l]
		boxes = append(boxes, Box{
			X:      e.minX,
			Y:      e.minY,
			Width:  e.maxX - e.minX + 1,
			Height: e.maxY - e.minY + 1,
			Mass:   e.mass,
		})
	}
	return boxes
}
