package detection

import "errors"

var (
	// ErrInputShape is returned when the boxes, scores and label id slices
	// are not index-aligned.
	ErrInputShape = errors.New("detection arrays are misaligned")

	// ErrUnknownLabel is returned when a label id has no category index entry.
	ErrUnknownLabel = errors.New("label id not in category index")

	// ErrDegenerateGeometry is returned when a box with zero or negative area
	// reaches an overlap computation.
	ErrDegenerateGeometry = errors.New("box has non-positive area")
)
