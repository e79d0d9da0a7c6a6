// Package l5tracks owns Layer 5 (Tracks) of the thermal data model.
//
// Responsibilities: the per-track association state machine, the
// per-clip extraction loop (detect, associate, spawn, retire, record),
// and the per-run track id sequence.
// Key types: Track, TrackState, HistoryEntry, Tracker.
//
// Dependency rule: L5 may depend on L2-L4, but never on L6.
// No SQL/database code is allowed in this package.
package l5tracks
