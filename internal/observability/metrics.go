package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the small set of domain gauges/counters this pipeline needs:
// proxy occupancy, queue depth, and per-stage validation outcomes. This is
// a from-scratch, narrowly scoped set built on the same client_golang
// primitives used in jordigilh-kubernaut, since there is no domain
// equivalent here to the original dashboard surface (course-generation
// funnels, LLM token spend).
type Metrics struct {
	ProxiesInUse       prometheus.Gauge
	ProxiesBlocked     prometheus.Gauge
	CatalogQueueDepth  prometheus.Gauge
	ObjectQueueDepth   prometheus.Gauge
	ValidationOutcomes *prometheus.CounterVec
	TasksRecovered     *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ProxiesInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avitoscout_proxies_in_use",
			Help: "Number of proxies currently claimed by a worker.",
		}),
		ProxiesBlocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avitoscout_proxies_blocked",
			Help: "Number of permanently blocked proxies.",
		}),
		CatalogQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avitoscout_catalog_tasks_pending",
			Help: "Number of pending catalog_tasks.",
		}),
		ObjectQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avitoscout_object_tasks_pending",
			Help: "Number of pending object_tasks.",
		}),
		ValidationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avitoscout_validation_outcomes_total",
			Help: "Validation results by stage and pass/fail.",
		}, []string{"stage", "passed"}),
		TasksRecovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avitoscout_heartbeat_recovered_total",
			Help: "Tasks returned to queue by the heartbeat sweep, by task type.",
		}, []string{"task_type"}),
	}
	registry.MustRegister(
		m.ProxiesInUse,
		m.ProxiesBlocked,
		m.CatalogQueueDepth,
		m.ObjectQueueDepth,
		m.ValidationOutcomes,
		m.TasksRecovered,
	)
	return m
}
