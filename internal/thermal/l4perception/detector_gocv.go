//go:build gocv

package l4perception

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/banshee-data/thermal.tracker/internal/thermal/l2frames"
)

// cvSegmenter implements segmenter with OpenCV. Labels are renumbered into
// raster order of their first pixel so both backends agree.
type cvSegmenter struct{}

func (cvSegmenter) segment(frame *l2frames.Frame, level float64, erosions int) (*LabelMap, []Box) {
	w, h := frame.Width, frame.Height
	src := gocv.NewMatWithSize(h, w, gocv.MatTypeCV64F)
	defer src.Close()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src.SetDoubleAt(y, x, frame.At(x, y))
		}
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(src, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	// Thresholded here rather than with gocv.Threshold, whose float32
	// level would round the comparison.
	mask := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8U)
	defer mask.Close()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if blurred.GetDoubleAt(y, x)-level > 0 {
				mask.SetUCharAt(y, x, 255)
			}
		}
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	for i := 0; i < erosions; i++ {
		gocv.Erode(mask, &mask, kernel)
	}

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()
	n := gocv.ConnectedComponentsWithStats(mask, &labels, &stats, &centroids)

	lm := &LabelMap{Width: w, Height: h, Labels: make([]int32, w*h)}
	order := make([]int32, n)
	var boxes []Box
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cv := labels.GetIntAt(y, x)
			if cv == 0 {
				continue
			}
			if order[cv] == 0 {
				lm.Count++
				order[cv] = int32(lm.Count)
				row := int(cv)
				boxes = append(boxes, Box{
					X:      int(stats.GetIntAt(row, int(gocv.CCStatLeft))),
					Y:      int(stats.GetIntAt(row, int(gocv.CCStatTop))),
					Width:  int(stats.GetIntAt(row, int(gocv.CCStatWidth))),
					Height: int(stats.GetIntAt(row, int(gocv.CCStatHeight))),
					Mass:   int(stats.GetIntAt(row, int(gocv.CCStatArea))),
				})
			}
			lm.Labels[y*w+x] = order[cv]
		}
	}
	return lm, boxes
}
