// Package telemetry holds the quartermaster's Prometheus metrics and its
// OpenTelemetry tracer.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"voxelcraft.ai/quartermaster/internal/failure"
	"voxelcraft.ai/quartermaster/internal/plan"
)

var tracer trace.Tracer = otel.Tracer("voxelcraft.ai/quartermaster")

// Tracer returns the package tracer. Spans go nowhere until the process
// installs a tracer provider.
func Tracer() trace.Tracer { return tracer }

type Metrics struct {
	reg *prometheus.Registry

	plans     *prometheus.CounterVec
	planSteps *prometheus.CounterVec
	planTime  prometheus.Histogram
	execSteps *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quartermaster_plans_total",
			Help: "Planning runs by outcome (sufficient, insufficient, error).",
		}, []string{"outcome"}),
		planSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quartermaster_plan_steps_total",
			Help: "Steps in produced plans by kind.",
		}, []string{"kind"}),
		planTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quartermaster_plan_seconds",
			Help:    "Wall time spent planning.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		execSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quartermaster_exec_steps_total",
			Help: "Executed steps by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	m.reg.MustRegister(m.plans, m.planSteps, m.planTime, m.execSteps)
	return m
}

// ObservePlan records one planning run. p may be nil when planning errored.
func (m *Metrics) ObservePlan(p *plan.Plan, took time.Duration, err error) {
	m.planTime.Observe(took.Seconds())
	switch {
	case err != nil || p == nil:
		m.plans.WithLabelValues("error").Inc()
		return
	case p.Sufficient():
		m.plans.WithLabelValues("sufficient").Inc()
	default:
		m.plans.WithLabelValues("insufficient").Inc()
	}
	for _, s := range p.Flatten() {
		m.planSteps.WithLabelValues(s.Kind().String()).Inc()
	}
}

// ObserveStep implements executor.Observer. Failed steps are labelled with
// their failure kind.
func (m *Metrics) ObserveStep(kind plan.Kind, err error) {
	outcome := "ok"
	if err != nil {
		outcome = failure.KindOf(err).String()
	}
	m.execSteps.WithLabelValues(kind.String(), outcome).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
