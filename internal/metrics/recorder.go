// Package metrics exports workflow measurements to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/npratt/fingerlock/internal/controller"
)

// Recorder implements controller.Recorder with Prometheus collectors.
type Recorder struct {
	workersStarted *prometheus.CounterVec
	outcomesTotal  *prometheus.CounterVec
	workerDuration *prometheus.HistogramVec
	lockoutsTotal  *prometheus.CounterVec
	wrongAttempts  prometheus.Gauge
	workflowsTotal *prometheus.CounterVec
}

// NewRecorder creates a Recorder and registers its collectors with
// registerer. It panics if they are already registered.
func NewRecorder(registerer prometheus.Registerer) *Recorder {
	r := &Recorder{
		workersStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fingerlock_workers_started_total",
				Help: "Number of sensor calls started by mode.",
			},
			[]string{"mode"},
		),

		outcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fingerlock_outcomes_total",
				Help: "Number of sensor outcomes by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),

		workerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fingerlock_worker_duration_seconds",
				Help:    "Duration of a sensor call in seconds by mode and outcome.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"mode", "outcome"},
		),

		lockoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fingerlock_lockouts_total",
				Help: "Number of lockouts armed by mode.",
			},
			[]string{"mode"},
		),

		wrongAttempts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fingerlock_wrong_attempts",
				Help: "Current number of counted bad swipes.",
			},
		),

		workflowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fingerlock_workflows_finished_total",
				Help: "Number of workflows that reached a terminal result by mode and result.",
			},
			[]string{"mode", "result"},
		),
	}

	registerer.MustRegister(
		r.workersStarted,
		r.outcomesTotal,
		r.workerDuration,
		r.lockoutsTotal,
		r.wrongAttempts,
		r.workflowsTotal,
	)

	return r
}

var _ controller.Recorder = (*Recorder)(nil)

func (r *Recorder) WorkerStarted(mode string) {
	r.workersStarted.WithLabelValues(mode).Inc()
}

func (r *Recorder) OutcomeObserved(mode, outcome string, d time.Duration) {
	r.outcomesTotal.WithLabelValues(mode, outcome).Inc()
	r.workerDuration.WithLabelValues(mode, outcome).Observe(d.Seconds())
}

func (r *Recorder) LockoutArmed(mode string) {
	r.lockoutsTotal.WithLabelValues(mode).Inc()
}

func (r *Recorder) WrongAttempts(n int) {
	r.wrongAttempts.Set(float64(n))
}

func (r *Recorder) WorkflowFinished(mode string, accepted bool) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	r.workflowsTotal.WithLabelValues(mode, result).Inc()
}
