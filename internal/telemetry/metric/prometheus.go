package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "amrsnap"

// Registry holds all engine metrics on a private prometheus registry.
//
// All recording methods are safe to call on a nil *Registry, so components
// can be built without metrics.
type Registry struct {
	reg *prometheus.Registry

	// Catalog metrics
	CatalogSnapshots   *prometheus.GaugeVec
	HeaderCacheLookups *prometheus.CounterVec

	// Reconstruction metrics
	ShardsRead          *prometheus.CounterVec
	CoverageGaps        *prometheus.CounterVec
	BoxesCopied         *prometheus.CounterVec
	ReconstructDuration *prometheus.HistogramVec
	ReconstructErrors   *prometheus.CounterVec
}

// NewRegistry creates a registry with all engine metrics registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		CatalogSnapshots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "snapshots",
			Help:      "Number of discovered snapshots per kind.",
		}, []string{"kind"}),
		HeaderCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "header_cache_lookups_total",
			Help:      "Header cache lookups by result (hit, miss).",
		}, []string{"result"}),
		ShardsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shards_read_total",
			Help:      "Rank shard files opened during reconstruction.",
		}, []string{"kind"}),
		CoverageGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coverage_gaps_total",
			Help:      "Rank shards without coordinate datasets.",
		}, []string{"kind"}),
		BoxesCopied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boxes_copied_total",
			Help:      "Box payloads copied into destination arrays.",
		}, []string{"kind"}),
		ReconstructDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconstruct_duration_seconds",
			Help:      "Wall time of reconstruction queries.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9),
		}, []string{"kind"}),
		ReconstructErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconstruct_errors_total",
			Help:      "Failed reconstruction queries by error code.",
		}, []string{"kind", "code"}),
	}

	r.reg.MustRegister(
		r.CatalogSnapshots,
		r.HeaderCacheLookups,
		r.ShardsRead,
		r.CoverageGaps,
		r.BoxesCopied,
		r.ReconstructDuration,
		r.ReconstructErrors,
	)
	return r
}

// WithRuntimeCollectors adds the Go runtime and process collectors. Used by
// long-running commands that serve /metrics.
func (r *Registry) WithRuntimeCollectors() *Registry {
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer returns the underlying registry for exposition and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// SetSnapshots records the catalog size of a kind.
func (r *Registry) SetSnapshots(kind string, n int) {
	if r == nil {
		return
	}
	r.CatalogSnapshots.WithLabelValues(kind).Set(float64(n))
}

// HeaderCacheHit records a header cache lookup.
func (r *Registry) HeaderCacheHit(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.HeaderCacheLookups.WithLabelValues(result).Inc()
}

// ShardRead records one opened rank shard.
func (r *Registry) ShardRead(kind string) {
	if r == nil {
		return
	}
	r.ShardsRead.WithLabelValues(kind).Inc()
}

// CoverageGap records one rank shard that contributed nothing.
func (r *Registry) CoverageGap(kind string) {
	if r == nil {
		return
	}
	r.CoverageGaps.WithLabelValues(kind).Inc()
}

// AddBoxes records n copied box payloads.
func (r *Registry) AddBoxes(kind string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.BoxesCopied.WithLabelValues(kind).Add(float64(n))
}

// ObserveQuery records the outcome of a reconstruction query. An empty code
// means success.
func (r *Registry) ObserveQuery(kind string, elapsed time.Duration, code string) {
	if r == nil {
		return
	}
	r.ReconstructDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if code != "" {
		r.ReconstructErrors.WithLabelValues(kind, code).Inc()
	}
}
