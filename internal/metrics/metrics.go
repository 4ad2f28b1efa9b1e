// Package metrics publishes translation counters on a Prometheus registry.
//
// The collectors live on a private registry so that several translators
// (and tests) can run in one process without colliding on the default one.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/gitrdm/kuaa/pkg/cs"
)

const namespace = "kuaa"

// Metrics implements transfer.Recorder.
type Metrics struct {
	reg *prometheus.Registry

	nodes        *prometheus.CounterVec
	backtracks   *prometheus.CounterVec
	solutions    *prometheus.CounterVec
	propagation  *prometheus.HistogramVec
	builds       *prometheus.CounterVec
	realizations prometheus.Counter
	sentences    prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		// Labels: solver (covering, ordering)
		nodes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "nodes_total",
			Help:      "Search nodes explored",
		}, []string{"solver"}),
		backtracks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "backtracks_total",
			Help:      "Failed or exhausted search branches",
		}, []string{"solver"}),
		solutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "solutions_total",
			Help:      "Solutions yielded by the search",
		}, []string{"solver"}),
		propagation: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "propagation_seconds",
			Help:      "Time spent in one propagation fixpoint",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"solver"}),
		// Labels: result (ok, unification, agreement, order, error)
		builds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_results_total",
			Help:      "Outcomes of building translation trees",
		}, []string{"result"}),
		realizations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realizations_total",
			Help:      "Word orders realized",
		}),
		sentences: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sentence_duration_seconds",
			Help:      "Wall time to translate one sentence",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// SolverMonitor returns a monitor feeding the solver counters for name.
func (m *Metrics) SolverMonitor(name string) cs.Monitor {
	return solverMonitor{
		nodes:       m.nodes.WithLabelValues(name),
		backtracks:  m.backtracks.WithLabelValues(name),
		solutions:   m.solutions.WithLabelValues(name),
		propagation: m.propagation.WithLabelValues(name),
	}
}

// BuildResult counts one tree build outcome.
func (m *Metrics) BuildResult(result string) { m.builds.WithLabelValues(result).Inc() }

// Realization counts one realized output.
func (m *Metrics) Realization() { m.realizations.Inc() }

// Sentence observes the time spent on one sentence.
func (m *Metrics) Sentence(d time.Duration) { m.sentences.Observe(d.Seconds()) }

type solverMonitor struct {
	nodes, backtracks, solutions prometheus.Counter
	propagation                  prometheus.Observer
}

func (s solverMonitor) RecordNode()      { s.nodes.Inc() }
func (s solverMonitor) RecordBacktrack() { s.backtracks.Inc() }
func (s solverMonitor) RecordSolution()  { s.solutions.Inc() }
func (s solverMonitor) RecordDepth(int)  {}
func (s solverMonitor) RecordPropagation(d time.Duration) {
	s.propagation.Observe(d.Seconds())
}

// Sample is one gathered series.
type Sample struct {
	Name   string
	Labels string // k=v pairs joined by commas
	Value  float64
}

// Snapshot gathers counters and histogram counts, sorted by name then labels.
func (m *Metrics) Snapshot() ([]Sample, error) {
	families, err := m.reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	var out []Sample
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			s := Sample{Name: mf.GetName(), Labels: labelString(metric.GetLabel())}
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				s.Value = metric.GetCounter().GetValue()
			case dto.MetricType_HISTOGRAM:
				s.Name += "_count"
				s.Value = float64(metric.GetHistogram().GetSampleCount())
			default:
				continue
			}
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Labels < out[j].Labels
	})
	return out, nil
}

// WriteSummary prints the snapshot one series per line.
func (m *Metrics) WriteSummary(w io.Writer) error {
	samples, err := m.Snapshot()
	if err != nil {
		return err
	}
	for _, s := range samples {
		name := s.Name
		if s.Labels != "" {
			name += "{" + s.Labels + "}"
		}
		if _, err := fmt.Fprintf(w, "%-52s %g\n", name, s.Value); err != nil {
			return err
		}
	}
	return nil
}

func labelString(pairs []*dto.LabelPair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.GetName() + "=" + p.GetValue()
	}
	return strings.Join(parts, ",")
}
