// Package l6objects owns Layer 6 (Objects) of the thermal data model.
//
// Responsibilities: track scoring and filtering, per-track export records
// (image windows, motion vectors, stats), identification through an
// external classifier, and run-level statistics.
//
// Dependency rule: L6 may depend on L2-L5.
// No SQL/database code is allowed in this package.
package l6objects
