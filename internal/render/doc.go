// Package render produces the raster surfaces of a viewing session.
//
// A refresh is assembled in three steps:
//
//  1. The radiometric transform turns the decoded frame into an 8-bit
//     grayscale image through the active window.
//  2. Frame resamples that image into the viewport through the view
//     transform (pan, zoom, rotation, flips), inverting it when requested.
//  3. DrawOverlay strokes the annotations and any in-progress draft in
//     screen space, so line widths and labels do not scale with zoom.
//
// Encode wraps the result as a base64 PNG Surface. Thumbnail renders a
// small orientation-preserving preview of any decoded frame.
package render
