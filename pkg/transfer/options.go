package transfer

import (
	"io"
	"log/slog"
	"time"

	"github.com/gitrdm/kuaa/pkg/cs"
	"github.com/gitrdm/kuaa/pkg/feat"
)

// Recorder receives pipeline events, typically to export metrics.
type Recorder interface {
	// SolverMonitor returns the monitor for the named solver
	// ("covering" or "ordering"); nil disables monitoring.
	SolverMonitor(solver string) cs.Monitor
	// BuildResult records the outcome of one target-group combination.
	BuildResult(result string)
	// Realization records one linearization.
	Realization()
	// Sentence records the time spent translating one sentence.
	Sentence(d time.Duration)
}

// Build outcomes passed to Recorder.BuildResult.
const (
	ResultOK          = "ok"
	ResultUnification = "unification"
	ResultAgreement   = "agreement"
	ResultOrder       = "order"
	ResultError       = "error"
)

type nopRecorder struct{}

func (nopRecorder) SolverMonitor(string) cs.Monitor { return nil }
func (nopRecorder) BuildResult(string)              {}
func (nopRecorder) Realization()                    {}
func (nopRecorder) Sentence(time.Duration)          {}

type settings struct {
	unifier  Unifier
	logger   *slog.Logger
	recorder Recorder
	solver   cs.SolverConfig
}

func newSettings(opts []Option) settings {
	s := settings{
		unifier:  feat.Default,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder: nopRecorder{},
		solver:   cs.DefaultSolverConfig(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures sentences, tree translations and translators.
type Option func(*settings)

// WithUnifier replaces the feature unifier.
func WithUnifier(u Unifier) Option {
	return func(s *settings) {
		if u != nil {
			s.unifier = u
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder sets the event recorder.
func WithRecorder(r Recorder) Option {
	return func(s *settings) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithMaxPropagation caps solver fixpoint rounds.
func WithMaxPropagation(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.solver.MaxPropagation = n
		}
	}
}

func (s settings) solverOptions(name string) []cs.Option {
	opts := []cs.Option{cs.WithLogger(s.logger)}
	if m := s.recorder.SolverMonitor(name); m != nil {
		opts = append(opts, cs.WithMonitor(m))
	}
	return opts
}
