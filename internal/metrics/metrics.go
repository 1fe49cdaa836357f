// ABOUTME: Prometheus collectors for engine activity
// ABOUTME: Implements the engine Observer and serves the /metrics endpoint
package metrics

import (
	"net/http"
	"time"

	"github.com/dualdeck/dualdeck-go/pkg/dualdeck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds the collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry
	log      logrus.FieldLogger

	framesWritten      prometheus.Counter
	sinkWriteLatency   prometheus.Histogram
	sinkErrors         prometheus.Counter
	decodeStalls       *prometheus.CounterVec
	decodeFaults       *prometheus.CounterVec
	completions        *prometheus.CounterVec
	completionsDropped *prometheus.CounterVec
	engineRunning      prometheus.Gauge
}

// New creates and registers all collectors
func New(logger logrus.FieldLogger) *Metrics {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		log:      logger.WithField("component", "metrics"),

		framesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dualdeck_frames_written_total",
			Help: "Total number of stereo frames written to the output",
		}),
		sinkWriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dualdeck_sink_write_seconds",
			Help:    "Time spent blocked in output writes",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~200ms
		}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dualdeck_sink_errors_total",
			Help: "Total number of failed output writes",
		}),
		decodeStalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dualdeck_decode_stalls_total",
			Help: "Mixer iterations where a slot produced no frames after all retries",
		}, []string{"slot"}),
		decodeFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dualdeck_decode_faults_total",
			Help: "Unrecoverable decoder errors",
		}, []string{"slot"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dualdeck_completions_total",
			Help: "End-of-stream notifications raised",
		}, []string{"slot"}),
		completionsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dualdeck_completions_dropped_total",
			Help: "End-of-stream notifications dropped because the queue was full",
		}, []string{"slot"}),
		engineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dualdeck_engine_running",
			Help: "1 while the mixer is running",
		}),
	}

	m.registry.MustRegister(
		m.framesWritten,
		m.sinkWriteLatency,
		m.sinkErrors,
		m.decodeStalls,
		m.decodeFaults,
		m.completions,
		m.completionsDropped,
		m.engineRunning,
	)
	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog: m.log,
	})
}

// FramesWritten implements dualdeck.Observer
func (m *Metrics) FramesWritten(frames int, elapsed time.Duration) {
	m.framesWritten.Add(float64(frames))
	m.sinkWriteLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) SinkError(err error) { m.sinkErrors.Inc() }

func (m *Metrics) DecodeStall(s dualdeck.Slot) { m.decodeStalls.WithLabelValues(s.String()).Inc() }

func (m *Metrics) DecodeFault(s dualdeck.Slot) { m.decodeFaults.WithLabelValues(s.String()).Inc() }

func (m *Metrics) Completion(s dualdeck.Slot) { m.completions.WithLabelValues(s.String()).Inc() }

func (m *Metrics) CompletionDropped(s dualdeck.Slot) {
	m.completionsDropped.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) Running(running bool) {
	if running {
		m.engineRunning.Set(1)
	} else {
		m.engineRunning.Set(0)
	}
}

var _ dualdeck.Observer = (*Metrics)(nil)
