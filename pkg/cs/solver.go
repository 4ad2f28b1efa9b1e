// This file implements the solver: propagation to a fixed point
// interleaved with depth-first backtracking search.
//
// # Architecture Overview
//
// The solver separates the immutable problem from the mutable search:
//
//	Problem (immutable during solving):
//	  - Constraints and the variables they reference
//	  - The root DStore of the solving episode
//
//	Search (mutable, copy-on-write):
//	  - A stack of frames, each holding a DStore and the choices left to try
//	  - Each choice is tried in a fresh child store
//	  - Backtracking pops a frame and drops its stores
//
// Solutions are exposed through a Generator, a pull-based iterator in the
// style of bufio.Scanner. Each call to Next resumes the search where the
// previous one stopped, so callers that stop pulling cancel the search.
//
// # Determinism
//
// Variable selection visits candidates in first-seen order over the
// constraints' variable lists; values are tried in ascending order (set
// variables: include before exclude) unless the configuration asks for
// descending values. The same problem always yields the same sequence of
// solutions.
package cs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ErrPropagationLimit reports that propagation did not reach a fixed point
// within the configured number of rounds.
var ErrPropagationLimit = errors.New("propagation did not reach a fixed point")

// VariableHeuristic selects which undetermined essential variable to
// branch on.
type VariableHeuristic int

const (
	// SelectFirst branches on the first undetermined variable.
	SelectFirst VariableHeuristic = iota
	// SelectSmallestDomain branches on the variable with the fewest undecided
	// values; ties go to the earlier variable.
	SelectSmallestDomain
)

// ValueHeuristic orders the choices tried for the branching variable.
type ValueHeuristic int

const (
	// ValueAscending tries integer values from smallest to largest; for set
	// variables the smallest undecided value is included, then excluded.
	ValueAscending ValueHeuristic = iota
	// ValueDescending tries integer values from largest to smallest; for set
	// variables the largest undecided value is excluded, then included.
	ValueDescending
)

// SolverConfig holds solver parameters.
type SolverConfig struct {
	VariableHeuristic VariableHeuristic
	ValueHeuristic    ValueHeuristic
	// MaxPropagation caps fixpoint rounds per propagation.
	MaxPropagation int
}

// DefaultSolverConfig returns the configuration used by NewSolver.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		VariableHeuristic: SelectFirst,
		ValueHeuristic:    ValueAscending,
		MaxPropagation:    1000,
	}
}

// Option configures a Solver.
type Option func(*Solver)

// WithConfig replaces the solver configuration.
func WithConfig(cfg SolverConfig) Option {
	return func(s *Solver) {
		if cfg.MaxPropagation <= 0 {
			cfg.MaxPropagation = DefaultSolverConfig().MaxPropagation
		}
		s.config = cfg
	}
}

// WithMonitor attaches a search monitor.
func WithMonitor(m Monitor) Option {
	return func(s *Solver) { s.monitor = m }
}

// WithLogger attaches a logger for search tracing at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithVariables adds variables to the search that no constraint mentions.
func WithVariables(vars ...*Var) Option {
	return func(s *Solver) { s.extra = append(s.extra, vars...) }
}

// Solver performs constraint propagation and backtracking search over the
// variables of a fixed set of constraints, starting from a root store.
//
// Solver instances are NOT safe for concurrent use, and neither are the
// stores of their episode. Parallel searches need separate solvers with
// separate root stores.
type Solver struct {
	description string
	constraints []Constraint
	root        *DStore
	vars        []*Var
	extra       []*Var
	config      SolverConfig
	monitor     Monitor
	logger      *slog.Logger
}

// NewSolver creates a solver for the constraints rooted at root.
// The description names the solver in logs and metrics.
func NewSolver(description string, constraints []Constraint, root *DStore, opts ...Option) *Solver {
	s := &Solver{
		description: description,
		constraints: constraints,
		root:        root,
		config:      DefaultSolverConfig(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	seen := make(map[*Var]bool)
	add := func(v *Var) {
		if v != nil && !seen[v] {
			seen[v] = true
			s.vars = append(s.vars, v)
		}
	}
	for _, c := range constraints {
		for _, v := range c.Variables() {
			add(v)
		}
	}
	for _, v := range s.extra {
		add(v)
	}
	return s
}

// Description returns the solver's description.
func (s *Solver) Description() string { return s.description }

// Constraints returns the solver's constraints.
// The returned slice should not be modified.
func (s *Solver) Constraints() []Constraint { return s.constraints }

// Variables returns every variable the solver knows, in selection order.
func (s *Solver) Variables() []*Var { return s.vars }

// Root returns the episode's root store.
func (s *Solver) Root() *DStore { return s.root }

// Propagate runs all constraints on store until none changes anything.
//
// The propagation loop:
//  1. Run each constraint once against store
//  2. If any constraint narrowed a bound, repeat from step 1
//  3. Stop when no changes occur (fixed point reached)
func (s *Solver) Propagate(store *DStore) error {
	start := time.Now()
	defer func() {
		if s.monitor != nil {
			s.monitor.RecordPropagation(time.Since(start))
		}
	}()
	for round := 0; round < s.config.MaxPropagation; round++ {
		changed := false
		for _, c := range s.constraints {
			ch, err := c.Propagate(store)
			if err != nil {
				return err
			}
			changed = changed || ch
		}
		if !changed {
			return nil
		}
	}
	return fmt.Errorf("%w after %d rounds", ErrPropagationLimit, s.config.MaxPropagation)
}

// IsComplete reports whether every essential variable is determined in store.
func (s *Solver) IsComplete(store *DStore) bool {
	for _, v := range s.vars {
		if v.Essential() && !v.Determined(store) {
			return false
		}
	}
	return true
}

// choice is one alternative at a search node.
type choice struct {
	v       *Var
	value   int
	include bool
}

func (c choice) apply(store *DStore) error {
	var err error
	switch {
	case c.v.Kind() == IntKind:
		_, err = c.v.Choose(store, c.value)
	case c.include:
		_, err = c.v.Include(store, NewIntSet(c.value))
	default:
		_, err = c.v.Exclude(store, NewIntSet(c.value))
	}
	return err
}

// selectVariable picks the branching variable and its ordered choices.
// Returns nil choices when every essential variable is determined.
func (s *Solver) selectVariable(store *DStore) []choice {
	var best *Var
	bestScore := 0
	for _, v := range s.vars {
		if !v.Essential() || v.Determined(store) {
			continue
		}
		score := v.Upper(store).Difference(v.Lower(store)).Len()
		if best == nil {
			best, bestScore = v, score
			if s.config.VariableHeuristic == SelectFirst {
				break
			}
			continue
		}
		if score < bestScore {
			best, bestScore = v, score
		}
	}
	if best == nil {
		return nil
	}
	desc := s.config.ValueHeuristic == ValueDescending
	if best.Kind() == IntKind {
		vals := best.Upper(store).Values()
		out := make([]choice, len(vals))
		for i, val := range vals {
			if desc {
				out[len(vals)-1-i] = choice{v: best, value: val}
			} else {
				out[i] = choice{v: best, value: val}
			}
		}
		return out
	}
	undecided := best.Upper(store).Difference(best.Lower(store))
	if desc {
		val := undecided.Max()
		return []choice{
			{v: best, value: val, include: false},
			{v: best, value: val, include: true},
		}
	}
	val := undecided.Min()
	return []choice{
		{v: best, value: val, include: true},
		{v: best, value: val, include: false},
	}
}

// Solve collects up to max solutions (all when max <= 0).
func (s *Solver) Solve(ctx context.Context, max int) ([]*DStore, error) {
	g := s.Generator()
	var out []*DStore
	for g.Next(ctx) {
		out = append(out, g.Store())
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, g.Err()
}

// Generator returns a new lazy sequence of solutions. Generators are not
// restartable; create a new one to search again from the root.
func (s *Solver) Generator() *Generator {
	return &Generator{solver: s}
}

// frame is one node of the explicit search stack.
type frame struct {
	store   *DStore
	choices []choice
	next    int
}

// Generator yields the succeeding stores of a search one at a time.
//
//	g := solver.Generator()
//	for g.Next(ctx) {
//		use(g.Store())
//	}
//	if err := g.Err(); err != nil { ... }
type Generator struct {
	solver  *Solver
	stack   []*frame
	started bool
	done    bool
	current *DStore
	err     error
	count   int
}

// Next advances to the next solution. It returns false when the search
// space is exhausted, the context is cancelled, or propagation hit its
// round limit; Err distinguishes the latter two from exhaustion.
func (g *Generator) Next(ctx context.Context) bool {
	if g.done {
		return false
	}
	s := g.solver
	g.current = nil
	if !g.started {
		g.started = true
		store := s.root.Child()
		if err := g.propagate(store); err != nil {
			return g.finish()
		}
		if s.IsComplete(store) {
			g.done = true
			return g.yield(store)
		}
		g.stack = append(g.stack, &frame{store: store, choices: s.selectVariable(store)})
	}
	for len(g.stack) > 0 {
		if err := ctx.Err(); err != nil {
			g.err = err
			return g.finish()
		}
		top := g.stack[len(g.stack)-1]
		if top.next >= len(top.choices) {
			g.stack = g.stack[:len(g.stack)-1]
			if s.monitor != nil {
				s.monitor.RecordBacktrack()
			}
			continue
		}
		c := top.choices[top.next]
		top.next++
		if s.monitor != nil {
			s.monitor.RecordNode()
			s.monitor.RecordDepth(len(g.stack))
		}
		child := top.store.Child()
		if err := c.apply(child); err != nil {
			continue
		}
		if err := g.propagate(child); err != nil {
			if g.err != nil {
				return g.finish()
			}
			continue
		}
		if s.IsComplete(child) {
			return g.yield(child)
		}
		next := s.selectVariable(child)
		if len(next) == 0 {
			continue
		}
		g.stack = append(g.stack, &frame{store: child, choices: next})
	}
	return g.finish()
}

// propagate runs the solver's fixpoint on store, recording a hard error
// when the failure is not an ordinary inconsistency.
func (g *Generator) propagate(store *DStore) error {
	err := g.solver.Propagate(store)
	if err != nil && !errors.Is(err, ErrInconsistent) {
		g.err = err
	}
	return err
}

func (g *Generator) yield(store *DStore) bool {
	g.current = store
	g.count++
	if g.solver.monitor != nil {
		g.solver.monitor.RecordSolution()
	}
	g.solver.logger.Debug("solution found",
		"solver", g.solver.description, "index", g.count, "level", store.Level())
	return true
}

func (g *Generator) finish() bool {
	g.done = true
	g.stack = nil
	g.solver.logger.Debug("search finished",
		"solver", g.solver.description, "solutions", g.count, "error", g.err)
	return false
}

// Store returns the most recent solution. The store must not be modified.
func (g *Generator) Store() *DStore { return g.current }

// Err returns the error that ended the search, or nil on exhaustion.
func (g *Generator) Err() error { return g.err }

// Count returns the number of solutions yielded so far.
func (g *Generator) Count() int { return g.count }
