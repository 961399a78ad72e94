package detection

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBox_Area(t *testing.T) {
	b := Box{StartY: 0.25, StartX: 0.5, EndY: 0.75, EndX: 1.0}
	if b.Width() != 0.5 || b.Height() != 0.5 {
		t.Errorf("Width/Height: got %v/%v, want 0.5/0.5", b.Width(), b.Height())
	}
	if b.Area() != 0.25 {
		t.Errorf("Area: got %v, want 0.25", b.Area())
	}
}

func TestIntersectionOverUnion(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
		want float64
	}{
		{
			"identical",
			Box{0.1, 0.1, 0.3, 0.4},
			Box{0.1, 0.1, 0.3, 0.4},
			1.0,
		},
		{
			"disjoint",
			Box{0.0, 0.0, 0.25, 0.25},
			Box{0.5, 0.5, 0.75, 0.75},
			0.0,
		},
		{
			"touching edges",
			Box{0.0, 0.0, 0.5, 0.5},
			Box{0.0, 0.5, 0.5, 1.0},
			0.0,
		},
		{
			"half overlap",
			Box{0.0, 0.0, 1.0, 0.5},
			Box{0.0, 0.25, 1.0, 0.75},
			0.25 / 0.75,
		},
		{
			"contained",
			Box{0.0, 0.0, 1.0, 1.0},
			Box{0.0, 0.0, 0.5, 0.5},
			0.25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IntersectionOverUnion(tt.a, tt.b)
			if err != nil {
				t.Fatalf("IntersectionOverUnion failed: %v", err)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}

			reverse, err := IntersectionOverUnion(tt.b, tt.a)
			if err != nil {
				t.Fatalf("IntersectionOverUnion (reversed) failed: %v", err)
			}
			if got != reverse {
				t.Errorf("IoU should be symmetric: %v vs %v", got, reverse)
			}
			if got < 0 || got > 1 {
				t.Errorf("IoU %v outside [0,1]", got)
			}
		})
	}
}

func TestIntersectionOverArea(t *testing.T) {
	plate := Box{0.10, 0.10, 0.30, 0.90}

	tests := []struct {
		name  string
		char  Box
		plate Box
		want  float64
	}{
		{"char inside plate", Box{0.12, 0.15, 0.28, 0.25}, plate, 1.0},
		{"self", plate, plate, 1.0},
		{"disjoint", Box{0.5, 0.5, 0.6, 0.6}, plate, 0.0},
		{"half outside", Box{0.25, 0.25, 0.5, 0.75}, Box{0.0, 0.5, 1.0, 1.0}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IntersectionOverArea(tt.char, tt.plate)
			if err != nil {
				t.Fatalf("IntersectionOverArea failed: %v", err)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntersectionOverArea_Asymmetric(t *testing.T) {
	small := Box{0.12, 0.15, 0.28, 0.25}
	large := Box{0.10, 0.10, 0.30, 0.90}

	inside, _ := IntersectionOverArea(small, large)
	outside, _ := IntersectionOverArea(large, small)

	if !almostEqual(inside, 1.0) {
		t.Errorf("small inside large: got %v, want 1", inside)
	}
	if outside >= 0.5 {
		t.Errorf("large relative to small should be small, got %v", outside)
	}
}

func TestOverlap_DegenerateGeometry(t *testing.T) {
	good := Box{0.1, 0.1, 0.2, 0.2}
	degenerate := []Box{
		{0.1, 0.1, 0.1, 0.2},  // zero height
		{0.1, 0.2, 0.2, 0.2},  // zero width
		{0.2, 0.2, 0.1, 0.1},  // inverted
		{0.1, 0.1, 0.2, 0.05}, // negative width
	}

	for _, d := range degenerate {
		if _, err := IntersectionOverUnion(d, good); !errors.Is(err, ErrDegenerateGeometry) {
			t.Errorf("IoU(%s, good): expected ErrDegenerateGeometry, got %v", d, err)
		}
		if _, err := IntersectionOverUnion(good, d); !errors.Is(err, ErrDegenerateGeometry) {
			t.Errorf("IoU(good, %s): expected ErrDegenerateGeometry, got %v", d, err)
		}
		if _, err := IntersectionOverArea(d, good); !errors.Is(err, ErrDegenerateGeometry) {
			t.Errorf("IoA(%s, good): expected ErrDegenerateGeometry, got %v", d, err)
		}
		if _, err := IntersectionOverArea(good, d); !errors.Is(err, ErrDegenerateGeometry) {
			t.Errorf("IoA(good, %s): expected ErrDegenerateGeometry, got %v", d, err)
		}
	}
}

func TestBox_JSON(t *testing.T) {
	var b Box
	if err := json.Unmarshal([]byte(`[0.1, 0.2, 0.3, 0.4]`), &b); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := Box{StartY: 0.1, StartX: 0.2, EndY: 0.3, EndX: 0.4}
	if b != want {
		t.Errorf("got %+v, want %+v", b, want)
	}

	out, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `[0.1,0.2,0.3,0.4]` {
		t.Errorf("Marshal: got %s", out)
	}

	for _, bad := range []string{`[0.1, 0.2, 0.3]`, `{"x": 1}`, `"box"`} {
		if err := json.Unmarshal([]byte(bad), &b); err == nil {
			t.Errorf("expected error for %s", bad)
		}
	}
}
