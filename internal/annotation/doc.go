// Package annotation implements the interactive measurement engine: the
// geometric model of each annotation type, the pointer-driven creation state
// machine, hit testing, editing, statistics and deletion.
//
// # Annotation Types
//
//	Type        Points  Drawn as               Measures
//	Length      2       segment                distance (mm, or px without spacing)
//	Ellipse     2       box corners            area, mean/min/max HU
//	Rectangle   2       box corners            area, mean/min/max HU
//	Freehand    >=3     closed polygon         area, perimeter, mean/min/max HU
//	Text        1       marker + text          -
//	Angle       3       arm, vertex, arm       angle at points[1]
//	CobbsAngle  4       two 2-point lines      acute angle between the lines
//	HU          1       marker                 HU at the pixel
//
// # Creation
//
// The active tool decides how pointer input builds a new annotation:
//
//   - Single-shot tools (Length, Ellipse, Rectangle, Freehand): pointer-down
//     places point 1, pointer-move sets point 2 (Freehand appends a sample),
//     pointer-up finalizes when enough points exist and discards otherwise.
//   - Point tools (Text, HU): pointer-down creates and finalizes at once.
//   - Multi-click tools (Angle, CobbsAngle): every pointer-down advances an
//     explicit Stage; pointer-move previews the arm or line being placed;
//     the pointer-up after the final click completes the annotation.
//
// Pointer input the current stage does not accept is ignored.
//
// # Editing
//
// A pointer-down first hit-tests the annotations on the current raster,
// topmost (last) first. Landing within HandleRadius/scale of a control point
// starts a handle drag; landing on the outline starts a translation of the
// whole shape. Text and HU markers use the larger MarkerRadius.
//
// # Bounds
//
// Image coordinates are continuous with pixel (i, j) covering
// [i, i+1) x [j, j+1). An annotation whose points leave
// [0, width) x [0, height) is discarded when created and reverted when
// edited. Neither case is an error.
//
// # History
//
// Commands return a Change. Committed means the annotation list changed and
// the caller should record a history snapshot; Preview and Selection only
// need a redraw. Snapshot and Restore exchange deep copies so history
// entries never alias live state.
package annotation
