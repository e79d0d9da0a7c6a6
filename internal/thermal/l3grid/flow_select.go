//go:build !gocv

package l3grid

// DefaultFlowEstimator returns the flow estimator compiled into this build.
func DefaultFlowEstimator() FlowEstimator {
	return NewLucasKanade()
}
