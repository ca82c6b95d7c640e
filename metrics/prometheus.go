package metrics

import (
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vantage"

// Exporter exposes a Collector and server-level instruments on a private
// Prometheus registry.
type Exporter struct {
	registry *prometheus.Registry

	// HTTPRequestsTotal counts API requests by method, route and status.
	HTTPRequestsTotal *prometheus.CounterVec
	// WSConnectionsActive is the number of open session websockets.
	WSConnectionsActive prometheus.Gauge
	// WSMessagesTotal counts websocket messages by direction.
	WSMessagesTotal *prometheus.CounterVec
}

// NewExporter registers the collector's counters and the server
// instruments on a fresh registry.
func NewExporter(c *Collector) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newSnapshotCollector(c))

	factory := promauto.With(reg)
	return &Exporter{
		registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		WSConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections_active",
				Help:      "Open session websocket connections",
			},
		),
		WSMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "Websocket messages by direction",
			},
			[]string{"direction"},
		),
	}
}

// Registry returns the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns the /metrics HTTP handler.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// snapshotCollector adapts Collector.Snapshot to prometheus.Collector.
type snapshotCollector struct {
	c *Collector

	counters []counterDesc
	byKind   *prometheus.Desc
	byType   *prometheus.Desc
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(Snapshot) int64
}

func newSnapshotCollector(c *Collector) *snapshotCollector {
	s := c.Snapshot()
	constLabels := prometheus.Labels{
		"policy":          s.Policy,
		"storage_backend": s.StorageBackend,
		"adapter":         s.Adapter,
	}
	counter := func(name, help string, value func(Snapshot) int64) counterDesc {
		return counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, constLabels),
			value: value,
		}
	}

	return &snapshotCollector{
		c: c,
		counters: []counterDesc{
			counter("sessions_opened_total", "Sessions created by the registry",
				func(s Snapshot) int64 { return s.SessionsOpened }),
			counter("sessions_evicted_total", "Sessions evicted from the registry",
				func(s Snapshot) int64 { return s.SessionsEvicted }),
			counter("resets_total", "Session resets",
				func(s Snapshot) int64 { return s.Resets }),
			counter("selections_total", "History card selections",
				func(s Snapshot) int64 { return s.Selections }),
			counter("parts_received_total", "Inbound data parts",
				func(s Snapshot) int64 { return s.PartsReceived }),
			counter("artifact_parts_total", "Inbound artifact parts",
				func(s Snapshot) int64 { return s.ArtifactParts }),
			counter("parts_forwarded_total", "Non-artifact parts handed to the forward policy",
				func(s Snapshot) int64 { return s.PartsForwarded }),
			counter("stale_dropped_total", "Update or error parts for a non-current artifact",
				func(s Snapshot) int64 { return s.StaleDropped }),
			counter("decode_errors_total", "Frames or lines that failed to decode",
				func(s Snapshot) int64 { return s.DecodeErrors }),
			counter("archive_write_success_total", "Successful archive writes",
				func(s Snapshot) int64 { return s.ArchiveWriteSuccess }),
			counter("archive_write_failure_total", "Failed archive writes",
				func(s Snapshot) int64 { return s.ArchiveWriteFailure }),
			counter("notify_success_total", "Delivered lifecycle notifications",
				func(s Snapshot) int64 { return s.NotifySuccess }),
			counter("notify_failure_total", "Failed lifecycle notifications",
				func(s Snapshot) int64 { return s.NotifyFailure }),
		},
		byKind: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "actions_total"),
			"Dispatched artifact actions by kind", []string{"kind"}, constLabels),
		byType: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "artifacts_streamed_total"),
			"Artifacts started by type", []string{"artifact_type"}, constLabels),
	}
}

func (sc *snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range sc.counters {
		ch <- cd.desc
	}
	ch <- sc.byKind
	ch <- sc.byType
}

func (sc *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	s := sc.c.Snapshot()
	for _, cd := range sc.counters {
		ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(cd.value(s)))
	}
	for _, k := range sortedKeys(s.ActionsByKind) {
		ch <- prometheus.MustNewConstMetric(sc.byKind, prometheus.CounterValue, float64(s.ActionsByKind[k]), k)
	}
	for _, k := range sortedKeys(s.ArtifactsByType) {
		ch <- prometheus.MustNewConstMetric(sc.byType, prometheus.CounterValue, float64(s.ArtifactsByType[k]), k)
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
