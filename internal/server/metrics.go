package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/depmap/pkg/observability"
)

const namespace = "depmap"

// Metrics collects Prometheus series for scans, builds, caches and HTTP
// queries. It implements every observability hook interface.
type Metrics struct {
	reg *prometheus.Registry

	scans         *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	filesParsed   *prometheus.CounterVec
	buildDuration prometheus.Histogram
	graphNodes    prometheus.Gauge
	graphEdges    prometheus.Gauge
	unresolved    prometheus.Gauge
	cacheLookups  *prometheus.CounterVec
	cacheBytes    *prometheus.CounterVec
	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
}

// NewMetrics registers collectors on a fresh registry that also carries
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		scans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Completed aports scans by result.",
		}, []string{"result"}),
		scanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of aports scans.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		filesParsed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_parsed_total",
			Help:      "APKBUILD files parsed by repository and result.",
		}, []string{"repository", "result"}),
		buildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_build_duration_seconds",
			Help:      "Time spent building the dependency graph.",
			Buckets:   prometheus.DefBuckets,
		}),
		graphNodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Packages in the served graph.",
		}),
		graphEdges: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Typed edges in the served graph.",
		}),
		unresolved: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_unresolved_dependencies",
			Help:      "Dependency tokens that matched no package.",
		}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by key type and result.",
		}, []string{"type", "result"}),
		cacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_written_bytes_total",
			Help:      "Bytes written to caches by key type.",
		}, []string{"type"}),
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "code"}),
		queryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Register installs m as the process-wide observability hooks.
func (m *Metrics) Register() {
	observability.SetScanHooks(m)
	observability.SetCacheHooks(m)
	observability.SetQueryHooks(m)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) OnScanStart(context.Context, string, []string) {}

func (m *Metrics) OnFileParsed(_ context.Context, repo string, _ int, err error) {
	m.filesParsed.WithLabelValues(repo, result(err)).Inc()
}

func (m *Metrics) OnScanComplete(_ context.Context, _, _, _ int, d time.Duration, err error) {
	m.scans.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.scanDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) OnBuildComplete(_ context.Context, nodes, edges, unresolved int, d time.Duration, err error) {
	if err != nil {
		return
	}
	m.buildDuration.Observe(d.Seconds())
	m.graphNodes.Set(float64(nodes))
	m.graphEdges.Set(float64(edges))
	m.unresolved.Set(float64(unresolved))
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheLookups.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheLookups.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (m *Metrics) OnQuery(_ context.Context, route string, status int, d time.Duration) {
	m.queries.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.queryDuration.WithLabelValues(route).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

var (
	_ observability.ScanHooks  = (*Metrics)(nil)
	_ observability.CacheHooks = (*Metrics)(nil)
	_ observability.QueryHooks = (*Metrics)(nil)
)
