package metrics

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stages
const (
	StageOpen       = "open"
	StageDecode     = "decode"
	StageSimilarity = "similarity"
	StageOverlay    = "overlay"
	StageAnnotate   = "annotate"
	StageCalibrate  = "calibrate"
	StageEstimate   = "estimate"
	StageReport     = "report"
	StageExtract    = "extract"
)

// Metrics holds all measurement metrics
type Metrics struct {
	// Session counters
	Runs            atomic.Uint64
	FramesDecoded   atomic.Uint64
	PointsMarked    atomic.Uint64
	ClicksIgnored   atomic.Uint64
	SessionsAborted atomic.Uint64

	// Last results, stored as float64 bits
	lastScale      atomic.Uint64
	lastSpeed      atomic.Uint64
	lastSimilarity atomic.Uint64

	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "speedcam_stage_duration_seconds",
				Help:    "Time spent in each measurement stage",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage"},
		),
		stageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "speedcam_stage_errors_total",
				Help: "Failed measurement stages",
			},
			[]string{"stage"},
		),
	}
	m.lastScale.Store(math.Float64bits(math.NaN()))
	m.lastSpeed.Store(math.Float64bits(math.NaN()))
	m.lastSimilarity.Store(math.Float64bits(math.NaN()))

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(m.stageDuration, m.stageErrors)

	counters := []struct {
		name, help string
		v          *atomic.Uint64
	}{
		{"speedcam_runs_total", "Measurement runs started", &m.Runs},
		{"speedcam_frames_decoded_total", "Frames decoded from the input video", &m.FramesDecoded},
		{"speedcam_points_marked_total", "Calibration points committed", &m.PointsMarked},
		{"speedcam_clicks_ignored_total", "Clicks received after all points were marked", &m.ClicksIgnored},
		{"speedcam_sessions_aborted_total", "Marking sessions cancelled before finishing", &m.SessionsAborted},
	}
	for _, c := range counters {
		v := c.v
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(v.Load()) },
		))
	}

	gauges := []struct {
		name, help string
		v          *atomic.Uint64
	}{
		{"speedcam_last_scale_meters_per_pixel", "Scale of the last successful calibration", &m.lastScale},
		{"speedcam_last_speed_kmh", "Last estimated speed in km/h", &m.lastSpeed},
		{"speedcam_last_similarity", "Last normalized cross-correlation score", &m.lastSimilarity},
	}
	for _, g := range gauges {
		v := g.v
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return math.Float64frombits(v.Load()) },
		))
	}
}

// ObserveStage records how long a stage took and whether it failed
func (m *Metrics) ObserveStage(stage string, started time.Time, err error) {
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(stage).Inc()
	}
}

// SetScale stores the last calibration scale
func (m *Metrics) SetScale(metersPerPixel float64) {
	m.lastScale.Store(math.Float64bits(metersPerPixel))
}

// SetSpeed stores the last speed estimate
func (m *Metrics) SetSpeed(kmh float64) {
	m.lastSpeed.Store(math.Float64bits(kmh))
}

// SetSimilarity stores the last frame similarity score
func (m *Metrics) SetSimilarity(score float64) {
	m.lastSimilarity.Store(math.Float64bits(score))
}

// Gatherer exposes the underlying registry
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes all metrics in the node-exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// StartServer serves /metrics until ctx is done
func (m *Metrics) StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

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
