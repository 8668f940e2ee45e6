package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "apanic"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	CapturesTotal   *prometheus.CounterVec
	CaptureBytes    *prometheus.GaugeVec
	EraseTotal      *prometheus.CounterVec
	SegmentReads    *prometheus.CounterVec
	BoundGauge      *prometheus.GaugeVec
	MemdumpTotal    *prometheus.CounterVec
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates the metrics and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		CapturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Crash capture attempts by final state",
		}, []string{"state"}),
		CaptureBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_bytes",
			Help:      "Bytes captured per segment by the last capture attempt",
		}, []string{"segment"}),
		EraseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "erase_total",
			Help:      "Panic partition erases by result",
		}, []string{"result"}),
		SegmentReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_reads_total",
			Help:      "Segment read requests by segment and result",
		}, []string{"segment", "result"}),
		BoundGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "partition_bound",
			Help:      "Whether the partition with the given role is bound (1) or not (0)",
		}, []string{"role"}),
		MemdumpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memdump_total",
			Help:      "Full memory snapshot attempts by result",
		}, []string{"result"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"route"}),
	}

	r.registry.MustRegister(
		r.CapturesTotal,
		r.CaptureBytes,
		r.EraseTotal,
		r.SegmentReads,
		r.BoundGauge,
		r.MemdumpTotal,
		r.RequestsTotal,
		r.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Gatherer returns the underlying gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served HTTP request.
func (r *Registry) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (r *Registry) CaptureFinished(state string, consoleBytes, threadsBytes int64) {
	r.CapturesTotal.WithLabelValues(state).Inc()
	r.CaptureBytes.WithLabelValues("console").Set(float64(consoleBytes))
	r.CaptureBytes.WithLabelValues("threads").Set(float64(threadsBytes))
}

func (r *Registry) EraseFinished(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.EraseTotal.WithLabelValues(result).Inc()
}

func (r *Registry) SegmentRead(segment, result string) {
	r.SegmentReads.WithLabelValues(segment, result).Inc()
}

func (r *Registry) PartitionBound(role string, bound bool) {
	v := 0.0
	if bound {
		v = 1
	}
	r.BoundGauge.WithLabelValues(role).Set(v)
}

func (r *Registry) SnapshotFinished(result string) {
	r.MemdumpTotal.WithLabelValues(result).Inc()
}
