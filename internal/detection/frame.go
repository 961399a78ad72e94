package detection

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Frame is the detector output for one image as exchanged on the wire.
//
// Detectors commonly emit fixed-size, zero-padded tensors together with the
// number of real detections. When NumDetections is set only that many
// leading entries are used.
type Frame struct {
	Source        string    `json:"source,omitempty"`
	Boxes         []Box     `json:"boxes"`
	Scores        []float64 `json:"scores"`
	LabelIDs      []int     `json:"label_ids"`
	NumDetections *int      `json:"num_detections,omitempty"`
}

// Trimmed returns the frame's arrays cut to NumDetections.
func (f *Frame) Trimmed() ([]Box, []float64, []int, error) {
	boxes, scores, labels := f.Boxes, f.Scores, f.LabelIDs
	if f.NumDetections == nil {
		return boxes, scores, labels, nil
	}

	n := *f.NumDetections
	if n < 0 || n > len(boxes) || n > len(scores) || n > len(labels) {
		return nil, nil, nil, fmt.Errorf("%w: num_detections %d with %d boxes, %d scores, %d label ids",
			ErrInputShape, n, len(boxes), len(scores), len(labels))
	}
	return boxes[:n], scores[:n], labels[:n], nil
}

// Assemble runs AssemblePlates over the frame.
func (f *Frame) Assemble(idx CategoryIndex, minConfidence float64) (*Result, error) {
	boxes, scores, labels, err := f.Trimmed()
	if err != nil {
		return nil, err
	}
	return AssemblePlates(boxes, scores, labels, idx, minConfidence)
}

// DecodeFrame reads one JSON frame.
func DecodeFrame(r io.Reader) (*Frame, error) {
	var f Frame
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return &f, nil
}

// LoadFrame reads a JSON frame from a file. An empty Source is set to path.
func LoadFrame(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer file.Close()

	f, err := DecodeFrame(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Source == "" {
		f.Source = path
	}
	return f, nil
}
