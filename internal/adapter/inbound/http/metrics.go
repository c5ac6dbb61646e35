package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aegis-gate/aegisgate/internal/domain/policy"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	AdmissionsTotal  *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	PendingApprovals prometheus.GaugeFunc
	PolicyFiles      prometheus.GaugeFunc
	PolicyAgents     prometheus.GaugeFunc
}

// NewMetrics creates and registers all metrics with the given registry.
// pending and stats are sampled at scrape time.
func NewMetrics(reg prometheus.Registerer, pending func() int, stats func() policy.Stats) *Metrics {
	return &Metrics{
		AdmissionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aegis_gate",
				Name:      "admissions_total",
				Help:      "Total tool-call admissions processed, by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "aegis_gate",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		PendingApprovals: promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "aegis_gate",
				Name:      "pending_approvals",
				Help:      "Number of approvals waiting on a human",
			},
			func() float64 { return float64(pending()) },
		),
		PolicyFiles: promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "aegis_gate",
				Name:      "policy_files",
				Help:      "Number of policy files in the active snapshot",
			},
			func() float64 { return float64(stats().PolicyFiles) },
		),
		PolicyAgents: promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "aegis_gate",
				Name:      "policy_agents",
				Help:      "Number of agents across all loaded policy files",
			},
			func() float64 { return float64(stats().TotalAgents) },
		),
	}
}
