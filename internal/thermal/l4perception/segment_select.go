//go:build !gocv

package l4perception

func defaultSegmenter() segmenter {
	return goSegmenter{}
}
