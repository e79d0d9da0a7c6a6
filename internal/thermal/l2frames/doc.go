// Package l2frames owns Layer 2 (Frames) of the thermal data model.
//
// Responsibilities: the in-memory Frame and Clip types, frame validation,
// clip-level temperature statistics, and frame sources (TIFF sequences and
// synthetic scenes).
// Key types: Frame, Clip, ClipStats, Source.
//
// Dependency rule: L2 never depends on L3+.
package l2frames
