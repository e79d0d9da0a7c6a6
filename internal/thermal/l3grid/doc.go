// Package l3grid owns Layer 3 (Grid) of the thermal data model.
//
// Responsibilities: per-clip background estimation, detection mode
// selection, filtered (background-removed) frames and dense optical flow.
// Key types: Background, DetectionMode, FlowField, FlowEstimator.
//
// Dependency rule: L3 may depend on L2, but never on L4+.
package l3grid
