// Package l4perception owns Layer 4 (Perception) of the thermal data model.
//
// Responsibilities: axis-aligned boxes and per-frame region detection
// (blur, threshold, erode, connected components).
// Key types: Box, Detector, Detection, LabelMap.
//
// Dependency rule: L4 may depend on L2-L3, but never on L5+.
package l4perception
