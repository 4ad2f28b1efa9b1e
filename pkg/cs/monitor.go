package cs

// monitor.go: search statistics for the solver

import (
	"sync"
	"time"
)

// Monitor receives search events from a Solver. Implementations must be
// cheap; they are called on every search node.
type Monitor interface {
	RecordNode()
	RecordBacktrack()
	RecordSolution()
	RecordDepth(depth int)
	RecordPropagation(d time.Duration)
}

// SolverStats holds statistics about one or more searches.
type SolverStats struct {
	NodesExplored    int           // Number of search nodes explored
	Backtracks       int           // Number of failed or exhausted branches
	SolutionsFound   int           // Number of solutions yielded
	MaxDepth         int           // Maximum search depth reached
	PropagationCount int           // Number of fixpoint runs
	PropagationTime  time.Duration // Time spent in propagation
}

// Stats is a Monitor that accumulates SolverStats.
type Stats struct {
	mu    sync.Mutex
	stats SolverStats
}

// NewStats creates an empty statistics monitor.
func NewStats() *Stats {
	return &Stats{}
}

// Snapshot returns a copy of the current statistics.
func (m *Stats) Snapshot() SolverStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// RecordNode records exploring a search node
func (m *Stats) RecordNode() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.NodesExplored++
}

// RecordBacktrack records a backtrack
func (m *Stats) RecordBacktrack() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Backtracks++
}

// RecordSolution records finding a solution
func (m *Stats) RecordSolution() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.SolutionsFound++
}

// RecordDepth records the current search depth
func (m *Stats) RecordDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if depth > m.stats.MaxDepth {
		m.stats.MaxDepth = depth
	}
}

// RecordPropagation records one propagation run
func (m *Stats) RecordPropagation(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.PropagationCount++
	m.stats.PropagationTime += d
}

// multiMonitor fans events out to several monitors.
type multiMonitor []Monitor

// Tee returns a Monitor that forwards every event to all of ms.
func Tee(ms ...Monitor) Monitor {
	var out multiMonitor
	for _, m := range ms {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (mm multiMonitor) RecordNode() {
	for _, m := range mm {
		m.RecordNode()
	}
}

func (mm multiMonitor) RecordBacktrack() {
	for _, m := range mm {
		m.RecordBacktrack()
	}
}

func (mm multiMonitor) RecordSolution() {
	for _, m := range mm {
		m.RecordSolution()
	}
}

func (mm multiMonitor) RecordDepth(depth int) {
	for _, m := range mm {
		m.RecordDepth(depth)
	}
}

func (mm multiMonitor) RecordPropagation(d time.Duration) {
	for _, m := range mm {
		m.RecordPropagation(d)
	}
}
