// Package metrics exposes Prometheus instrumentation for plate assembly.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ironsheep/plate-text-mcp/internal/detection"
)

// Failure reasons used for the failures counter.
const (
	ReasonInputShape = "input_shape"
	ReasonUnknown    = "unknown_label"
	ReasonGeometry   = "degenerate_geometry"
	ReasonOther      = "other"
)

// Metrics holds the collectors for one process. Each instance owns its own
// registry so tests and multiple servers never collide.
type Metrics struct {
	// LastPlates is the plate count of the most recent successful image.
	LastPlates atomic.Uint64

	registry *prometheus.Registry

	images      prometheus.Counter
	failures    *prometheus.CounterVec
	detections  prometheus.Counter
	lowScore    prometheus.Counter
	plates      prometheus.Counter
	emptyPlates prometheus.Counter
	characters  prometheus.Counter
	duplicates  prometheus.Counter
	latency     prometheus.Histogram
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		images: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plate_images_total",
			Help: "Images whose detections were assembled successfully",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plate_image_failures_total",
			Help: "Images aborted during assembly, by reason",
		}, []string{"reason"}),
		detections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plate_detections_total",
			Help: "Raw detections received",
		}),
		lowScore: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plate_detections_below_confidence_total",
			Help: "Detections discarded by the confidence cut",
		}),
		plates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plate_plates_total",
			Help: "Plates that produced text",
		}),
		emptyPlates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plate_plates_without_characters_total",
			Help: "Plate boxes dropped because no character matched them",
		}),
		characters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plate_characters_total",
			Help: "Characters emitted in plate text",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plate_duplicates_suppressed_total",
			Help: "Character detections collapsed as duplicates",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plate_assemble_seconds",
			Help:    "Time spent assembling one image",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}

	m.registry.MustRegister(
		m.images, m.failures, m.detections, m.lowScore, m.plates,
		m.emptyPlates, m.characters, m.duplicates, m.latency,
	)
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "plate_last_image_plates",
			Help: "Plates found in the most recent image",
		},
		func() float64 { return float64(m.LastPlates.Load()) },
	))

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveResult records a successful assembly.
func (m *Metrics) ObserveResult(res *detection.Result, elapsed time.Duration) {
	m.images.Inc()
	m.latency.Observe(elapsed.Seconds())

	s := res.Stats
	m.detections.Add(float64(s.Detections))
	m.lowScore.Add(float64(s.BelowConfidence))
	m.plates.Add(float64(res.Count))
	m.emptyPlates.Add(float64(s.PlatesWithoutCharacters))
	m.duplicates.Add(float64(s.DuplicatesSuppressed))

	chars := 0
	for _, p := range res.Plates {
		chars += len(p.Characters)
	}
	m.characters.Add(float64(chars))
	m.LastPlates.Store(uint64(res.Count))
}

// ObserveFailure records an aborted image.
func (m *Metrics) ObserveFailure(err error) {
	m.failures.WithLabelValues(Reason(err)).Inc()
}

// Reason maps an assembly error to a failure label.
func Reason(err error) string {
	switch {
	case errors.Is(err, detection.ErrInputShape):
		return ReasonInputShape
	case errors.Is(err, detection.ErrUnknownLabel):
		return ReasonUnknown
	case errors.Is(err, detection.ErrDegenerateGeometry):
		return ReasonGeometry
	default:
		return ReasonOther
	}
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
