// Package metrics records analysis progress with Prometheus.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketgame"

// Recorder implements marketgame.Recorder using Prometheus.
type Recorder struct {
	transitions    *prometheus.CounterVec
	solverFailures *prometheus.CounterVec
	solverLatency  *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
}

// New registers the analysis metrics on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_analyzed_total",
				Help:      "Total number of month transitions analyzed",
			},
			[]string{"area"},
		),
		solverFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "solver_failures_total",
				Help:      "Total number of solver runs that failed and were blanked",
			},
			[]string{"solver"},
		),
		solverLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "solver_duration_seconds",
				Help:      "Duration of one solver run in seconds",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
			},
			[]string{"solver"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "equilibrium_cache_lookups_total",
				Help:      "Equilibrium cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

func (r *Recorder) RecordTransition(area string) {
	r.transitions.WithLabelValues(area).Inc()
}

func (r *Recorder) RecordSolverFailure(solver string) {
	r.solverFailures.WithLabelValues(solver).Inc()
}

func (r *Recorder) RecordSolverLatency(solver string, seconds float64) {
	r.solverLatency.WithLabelValues(solver).Observe(seconds)
}

func (r *Recorder) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// WriteTextfile writes everything gathered by g to path in the text
// exposition format, for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}

	return nil
}
