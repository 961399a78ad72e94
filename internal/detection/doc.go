// Package detection assembles license plate text from object detector output.
//
// A detector trained on plates and individual glyphs returns an unordered
// pool of boxes, each with a class label and a confidence score. This package
// decides which glyphs belong to which plate, orders them, collapses
// duplicate detections of the same glyph and joins the result into one string
// per plate.
//
// # Pipeline
//
// AssemblePlates runs four stages over one image's detections:
//
//  1. Partition: drop detections scoring below the minimum confidence and
//     split the rest into plate boxes and character candidates
//  2. Associate: attach to each plate every candidate whose intersection over
//     the candidate's own area exceeds 0.5
//  3. OrderLeftToRight: stable sort of each plate's characters by left edge
//  4. SuppressOverlaps: drop a character when its IoU with the last kept
//     character is 0.3 or more, then join the labels
//
// Plates that attract no characters produce no output.
//
// # Coordinate System
//
// Boxes are normalized to [0, 1] and ordered (startY, startX, endY, endX),
// the layout used by TensorFlow Object Detection models:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// # Errors
//
// Misaligned input arrays, label ids missing from the category index and
// boxes with non-positive area abort the image with ErrInputShape,
// ErrUnknownLabel or ErrDegenerateGeometry. No partial result is returned.
//
// # Concurrency
//
// Every function is a pure computation over its arguments. Independent images
// may be assembled from separate goroutines without synchronization.
package detection
