package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/ironsheep/plate-text-mcp/internal/detection"
)

// metricValue returns the value of a counter, gauge or the sample count of a
// histogram, summed over label sets.
func metricValue(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		total := 0.0
		for _, metric := range f.GetMetric() {
			total += sampleValue(metric)
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetHistogram() != nil:
		return float64(m.GetHistogram().GetSampleCount())
	}
	return 0
}

func sampleResult() *detection.Result {
	return &detection.Result{
		Plates: []detection.PlateRecord{
			{Characters: make([]detection.Character, 3)},
			{Characters: make([]detection.Character, 2)},
		},
		Texts: []string{"ABC", "DE"},
		Count: 2,
		Stats: detection.Stats{
			Detections:              12,
			BelowConfidence:         4,
			PlateBoxes:              3,
			CharacterCandidates:     5,
			PlatesWithoutCharacters: 1,
			DuplicatesSuppressed:    1,
		},
	}
}

func TestObserveResult(t *testing.T) {
	m := New()
	m.ObserveResult(sampleResult(), 3*time.Millisecond)

	tests := []struct {
		name string
		want float64
	}{
		{"plate_images_total", 1},
		{"plate_detections_total", 12},
		{"plate_detections_below_confidence_total", 4},
		{"plate_plates_total", 2},
		{"plate_plates_without_characters_total", 1},
		{"plate_characters_total", 5},
		{"plate_duplicates_suppressed_total", 1},
		{"plate_assemble_seconds", 1},
		{"plate_last_image_plates", 2},
	}
	for _, tt := range tests {
		if got := metricValue(t, m, tt.name); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestObserveFailure(t *testing.T) {
	m := New()
	m.ObserveFailure(fmt.Errorf("wrapped: %w", detection.ErrUnknownLabel))
	m.ObserveFailure(detection.ErrInputShape)

	if got := metricValue(t, m, "plate_image_failures_total"); got != 2 {
		t.Errorf("failures: got %v, want 2", got)
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{detection.ErrInputShape, ReasonInputShape},
		{fmt.Errorf("x: %w", detection.ErrUnknownLabel), ReasonUnknown},
		{fmt.Errorf("y: %w", detection.ErrDegenerateGeometry), ReasonGeometry},
		{errors.New("boom"), ReasonOther},
	}
	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveResult(sampleResult(), time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "plate_plates_total 2") {
		t.Errorf("metrics output missing plate count:\n%s", body)
	}
}
