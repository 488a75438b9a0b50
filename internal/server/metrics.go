package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus instruments for the optimization service.
type Metrics struct {
	JobsStarted  prometheus.Counter
	JobsFinished *prometheus.CounterVec
	JobsRunning  prometheus.Gauge
	Evaluations  prometheus.Counter
}

// NewMetrics registers the service metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "schola_jobs_started_total",
			Help: "Optimization jobs started.",
		}),
		JobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schola_jobs_finished_total",
			Help: "Optimization jobs finished, by terminal status.",
		}, []string{"status"}),
		JobsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name: "schola_jobs_running",
			Help: "Optimization jobs currently running.",
		}),
		Evaluations: factory.NewCounter(prometheus.CounterOpts{
			Name: "schola_objective_evaluations_total",
			Help: "Objective function evaluations across all jobs.",
		}),
	}
}
