// Package metrics holds the Prometheus collectors for subscription
// lifecycle and executor activity.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/roach88/coldfetch/internal/fetch"
)

// Subscription outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Cancellation phases.
const (
	PhaseBeforeRun = "before_run"
	PhaseDuringRun = "during_run"
)

// Collectors groups every coldfetch metric. A nil *Collectors is valid and
// records nothing.
type Collectors struct {
	subscriptions *prometheus.CounterVec
	cancellations *prometheus.CounterVec
	executions    *prometheus.CounterVec
	duration      prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		subscriptions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldfetch_subscriptions_total",
				Help: "Subscriptions that reached a final state, by outcome",
			},
			[]string{"outcome"},
		),
		cancellations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldfetch_cancellations_total",
				Help: "Cancelled subscriptions, by the phase they were in",
			},
			[]string{"phase"},
		),
		executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldfetch_executions_total",
				Help: "Executor invocations, by result",
			},
			[]string{"result"},
		),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "coldfetch_execution_duration_seconds",
			Help:    "Time spent in the executor per invocation",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
}

// SubscriptionFinished counts a subscription reaching outcome.
func (c *Collectors) SubscriptionFinished(outcome string) {
	if c == nil {
		return
	}
	c.subscriptions.WithLabelValues(outcome).Inc()
}

// Cancelled counts a cancellation observed in phase.
func (c *Collectors) Cancelled(phase string) {
	if c == nil {
		return
	}
	c.cancellations.WithLabelValues(phase).Inc()
}

// ObserveExecution records one executor invocation.
func (c *Collectors) ObserveExecution(d time.Duration, err *fetch.Error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(err.Kind)
	}
	c.executions.WithLabelValues(result).Inc()
	c.duration.Observe(d.Seconds())
}

// WriteText writes everything g gathers in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	return writeFamilies(w, families)
}

func writeFamilies(w io.Writer, families []*dto.MetricFamily) error {
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
