package detection

import (
	"encoding/json"
	"fmt"
	"math"
)

// Box is an axis-aligned bounding box in normalized image coordinates.
//
// The field order matches the detector's output tensor layout
// (startY, startX, endY, endX). Every coordinate is expected in [0, 1] with
// StartY < EndY and StartX < EndX; the detector guarantees this and Box does
// not re-check it except where an area is used as a divisor.
type Box struct {
	StartY float64 // Top edge
	StartX float64 // Left edge
	EndY   float64 // Bottom edge
	EndX   float64 // Right edge
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 {
	return b.EndX - b.StartX
}

// Height returns the vertical extent of the box.
func (b Box) Height() float64 {
	return b.EndY - b.StartY
}

// Area returns Width * Height. It is zero or negative for degenerate boxes.
func (b Box) Area() float64 {
	return (b.EndY - b.StartY) * (b.EndX - b.StartX)
}

// String formats the box as (startY,startX,endY,endX).
func (b Box) String() string {
	return fmt.Sprintf("(%.4f,%.4f,%.4f,%.4f)", b.StartY, b.StartX, b.EndY, b.EndX)
}

// MarshalJSON encodes the box as a four-element array in detector order.
func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.StartY, b.StartX, b.EndY, b.EndX})
}

// UnmarshalJSON decodes a four-element array [startY, startX, endY, endX].
func (b *Box) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("box must be an array of 4 numbers: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("box must have 4 coordinates, got %d", len(v))
	}
	b.StartY, b.StartX, b.EndY, b.EndX = v[0], v[1], v[2], v[3]
	return nil
}

// validArea reports whether the box can be used as an area divisor.
func (b Box) validArea() bool {
	a := b.Area()
	return a > 0 && !math.IsNaN(a) && !math.IsInf(a, 0)
}

// intersectionArea returns the area shared by a and b, or 0 when they do
// not overlap.
func intersectionArea(a, b Box) float64 {
	xA := math.Max(a.StartX, b.StartX)
	yA := math.Max(a.StartY, b.StartY)
	xB := math.Min(a.EndX, b.EndX)
	yB := math.Min(a.EndY, b.EndY)

	if xB > xA && yB > yA {
		return (xB - xA) * (yB - yA)
	}
	return 0
}

// IntersectionOverUnion returns the IoU of two boxes.
//
// The result is symmetric in its operands and lies in [0, 1]. It is used to
// decide whether two character detections describe the same glyph.
//
// Returns ErrDegenerateGeometry if either box has zero or negative area.
func IntersectionOverUnion(a, b Box) (float64, error) {
	if !a.validArea() {
		return 0, fmt.Errorf("%w: first box %s", ErrDegenerateGeometry, a)
	}
	if !b.validArea() {
		return 0, fmt.Errorf("%w: second box %s", ErrDegenerateGeometry, b)
	}

	inter := intersectionArea(a, b)
	return inter / (a.Area() + b.Area() - inter), nil
}

// IntersectionOverArea returns the fraction of char's area that lies inside
// plate.
//
// Unlike IoU the measure is relative to char only: a small character fully
// inside a large plate scores 1 regardless of the plate's size.
//
// Returns ErrDegenerateGeometry if either box has zero or negative area.
func IntersectionOverArea(char, plate Box) (float64, error) {
	if !char.validArea() {
		return 0, fmt.Errorf("%w: character box %s", ErrDegenerateGeometry, char)
	}
	if !plate.validArea() {
		return 0, fmt.Errorf("%w: plate box %s", ErrDegenerateGeometry, plate)
	}

	return intersectionArea(char, plate) / char.Area(), nil
}
