// Package monitor renders offline previews of processed clips: a PNG of
// track trajectories and an HTML page of track scores and mass.
//
// PreviewRenderer satisfies pipeline.Renderer so previews are produced as
// the last step of ProcessClip.
package monitor
