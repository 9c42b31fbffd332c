package metrics

import "github.com/prometheus/client_golang/prometheus"

// BlastMetrics holds Prometheus metrics for campaign delivery.
type BlastMetrics struct {
	EmailsSent     prometheus.Counter
	EmailsFailed   prometheus.Counter
	ECardsRendered *prometheus.CounterVec
	BlastDuration  *prometheus.HistogramVec
	InProgress     prometheus.Gauge
}

// NewBlastMetrics creates and registers blast metrics on the given registry.
func NewBlastMetrics(reg prometheus.Registerer) *BlastMetrics {
	m := &BlastMetrics{
		EmailsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Total number of blast emails accepted by the mail relay.",
		}),
		EmailsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_failed_total",
			Help:      "Total number of blast emails that could not be delivered.",
		}),
		ECardsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ecards_rendered_total",
			Help:      "Total number of e-card renders, by result.",
		}, []string{"result"}),
		BlastDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "blast_duration_seconds",
			Help:      "Wall-clock duration of a blast send, by final status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"status"}),
		InProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blasts_in_progress",
			Help:      "Number of blasts currently being sent by this instance.",
		}),
	}

	reg.MustRegister(m.EmailsSent, m.EmailsFailed, m.ECardsRendered, m.BlastDuration, m.InProgress)
	return m
}
