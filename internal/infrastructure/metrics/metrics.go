package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Noop implements the session metrics without emitting anything.
type Noop struct{}

func (Noop) IncSessionsStarted(string)              {}
func (Noop) IncSelections(string, string)           {}
func (Noop) IncSessionsFinished(string, string)     {}
func (Noop) ObserveEvaluation(string, int, float64) {}
func (Noop) IncPipelineErrors(string, string)       {}

// Prom implements the session metrics backed by Prometheus collectors.
type Prom struct {
	sessionsStarted  *prometheus.CounterVec
	selections       *prometheus.CounterVec
	sessionsFinished *prometheus.CounterVec
	evalDuration     *prometheus.HistogramVec
	evalPasses       *prometheus.HistogramVec
	pipelineErrors   *prometheus.CounterVec
}

// NewProm registers the collectors on reg, or on the default registerer when
// reg is nil. Collectors already registered under the same names are reused,
// so several instances in one process share their series.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prom{
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Configuration sessions started by configuration",
		}, []string{"configuration"}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Session changes by configuration and outcome",
		}, []string{"configuration", "outcome"}),
		sessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Sessions finished by configuration and final status",
		}, []string{"configuration", "status"}),
		evalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of a rules, validation and pricing run",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"configuration"}),
		evalPasses: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_passes",
			Help:      "Rule passes needed to reach a fixed point",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}, []string{"configuration"}),
		pipelineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_errors_total",
			Help:      "Fatal pipeline errors by configuration and kind",
		}, []string{"configuration", "kind"}),
	}
	p.sessionsStarted = register(reg, p.sessionsStarted)
	p.selections = register(reg, p.selections)
	p.sessionsFinished = register(reg, p.sessionsFinished)
	p.evalDuration = register(reg, p.evalDuration)
	p.evalPasses = register(reg, p.evalPasses)
	p.pipelineErrors = register(reg, p.pipelineErrors)
	return p
}

// register adds c to reg and returns the collector to use: c itself, or the
// equivalent one registered earlier. Any other registration error panics
// like prometheus.MustRegister.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(err)
}

func (p *Prom) IncSessionsStarted(configurationID string) {
	p.sessionsStarted.WithLabelValues(configurationID).Inc()
}

func (p *Prom) IncSelections(configurationID, outcome string) {
	p.selections.WithLabelValues(configurationID, outcome).Inc()
}

func (p *Prom) IncSessionsFinished(configurationID, status string) {
	p.sessionsFinished.WithLabelValues(configurationID, status).Inc()
}

func (p *Prom) ObserveEvaluation(configurationID string, passes int, durationSeconds float64) {
	p.evalDuration.WithLabelValues(configurationID).Observe(durationSeconds)
	p.evalPasses.WithLabelValues(configurationID).Observe(float64(passes))
}

func (p *Prom) IncPipelineErrors(configurationID, kind string) {
	p.pipelineErrors.WithLabelValues(configurationID, kind).Inc()
}
