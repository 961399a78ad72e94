// Package eval scores assembled plate text against ground truth using
// character error rate.
package eval

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/agnivade/levenshtein"
)

// Truth maps a frame source to its expected plate strings in plate
// discovery order.
type Truth map[string][]string

// LoadTruth reads a Truth JSON object from path.
func LoadTruth(path string) (Truth, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read truth: %w", err)
	}
	var t Truth
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode truth %s: %w", path, err)
	}
	return t, nil
}

// Score accumulates edit distance over compared plates.
type Score struct {
	Frames     int `json:"frames"`
	Plates     int `json:"plates"`
	Exact      int `json:"exact"`
	Distance   int `json:"distance"`
	TruthChars int `json:"truth_chars"`
}

// CER is Distance over TruthChars. A perfect match is 0; any output against
// an empty truth is 1.
func (s Score) CER() float64 {
	switch {
	case s.Distance == 0:
		return 0
	case s.TruthChars == 0:
		return 1
	default:
		return float64(s.Distance) / float64(s.TruthChars)
	}
}

// Add folds o into s.
func (s *Score) Add(o Score) {
	s.Frames += o.Frames
	s.Plates += o.Plates
	s.Exact += o.Exact
	s.Distance += o.Distance
	s.TruthChars += o.TruthChars
}

// Compare scores one frame. Plates are paired by index; a missing or extra
// plate is compared against the empty string.
func Compare(got, want []string) Score {
	n := len(got)
	if len(want) > n {
		n = len(want)
	}

	s := Score{Frames: 1, Plates: n}
	for i := 0; i < n; i++ {
		var g, w string
		if i < len(got) {
			g = got[i]
		}
		if i < len(want) {
			w = want[i]
		}
		d := levenshtein.ComputeDistance(g, w)
		if d == 0 {
			s.Exact++
		}
		s.Distance += d
		s.TruthChars += len([]rune(w))
	}
	return s
}
