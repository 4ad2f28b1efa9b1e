package cs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolVar(name string) *Var {
	return NewIVar(name, NewIntSet(0, 1), true)
}

func selectedValues(t *testing.T, s *DStore, vars ...*Var) []int {
	t.Helper()
	out := make([]int, len(vars))
	for i, v := range vars {
		val, err := v.IntValue(s)
		require.NoError(t, err)
		out[i] = val
	}
	return out
}

// Two words "John kicked", groups: g0 = [John], g1 = [$N kicked] (head 1),
// g2 = [kicked]. Slot 0: concrete g0 node 0 (head), abstract g1 node 1.
// Slot 1: concrete g1 node 2 (head), concrete g2 node 3 (head).
func TestCover_Merging(t *testing.T) {
	g0, g1, g2 := boolVar("g0"), boolVar("g1"), boolVar("g2")
	slots := []CoverSlot{
		{
			Concrete: []CoverCand{{Select: g0, GNode: 0, Head: true}},
			Abstract: []CoverCand{{Select: g1, GNode: 1}},
			GNodes:   NewVar("w0->gn", IntSet{}, NewIntSet(0, 1), 0, 2, false),
		},
		{
			Concrete: []CoverCand{{Select: g1, GNode: 2, Head: true}, {Select: g2, GNode: 3, Head: true}},
			CGNodes:  NewVar("w1->cgn", IntSet{}, NewIntSet(2, 3), 1, 1, false),
		},
	}
	cover, err := NewCover(slots)
	require.NoError(t, err)

	sols, err := NewSolver("covering", []Constraint{cover}, NewDStore("S")).Solve(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sols, 2)

	assert.Equal(t, []int{1, 0, 1}, selectedValues(t, sols[0], g0, g1, g2))
	assert.Equal(t, []int{1, 1, 0}, selectedValues(t, sols[1], g0, g1, g2))
	assert.Equal(t, []int{0, 1}, slots[0].GNodes.Value(sols[1]).Values(), "merged slot records both nodes")
	assert.Equal(t, []int{2}, slots[1].CGNodes.Value(sols[1]).Values())
}

func TestCover_AbstractNeedsHead(t *testing.T) {
	g0, g1 := boolVar("g0"), boolVar("g1")
	slots := []CoverSlot{{
		Concrete: []CoverCand{{Select: g0, GNode: 0, Head: false}},
		Abstract: []CoverCand{{Select: g1, GNode: 1}},
	}}
	cover, err := NewCover(slots)
	require.NoError(t, err)
	s := NewDStore("S")

	_, err = g1.Choose(s, 1)
	require.NoError(t, err)
	_, err = cover.Propagate(s)
	assert.ErrorIs(t, err, ErrInconsistent)
}

func TestCover_AbstractOnlySlot(t *testing.T) {
	g0 := boolVar("g0")
	cover, err := NewCover([]CoverSlot{{Abstract: []CoverCand{{Select: g0, GNode: 0}}}})
	require.NoError(t, err)
	s := NewDStore("S")

	_, err = cover.Propagate(s)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, selectedValues(t, s, g0), "an abstract node alone cannot cover a word")
}

func TestNewCover_RejectsNonBoolean(t *testing.T) {
	_, err := NewCover([]CoverSlot{{Concrete: []CoverCand{{Select: NewIVar("x", Range(0, 3), true)}}}})
	assert.Error(t, err)
}

// Slot 0 holds gb's head and an abstract node of ga, slot 1 holds ga's head
// and an abstract node of gb. Selecting both would put each group beneath
// the other. g2 and g3 are single-word alternatives.
func TestCover_RejectsMergeCycle(t *testing.T) {
	ga, gb, g2, g3 := boolVar("ga"), boolVar("gb"), boolVar("g2"), boolVar("g3")
	slots := []CoverSlot{
		{
			Concrete: []CoverCand{{Select: gb, GNode: 0, Head: true}, {Select: g2, GNode: 4, Head: true}},
			Abstract: []CoverCand{{Select: ga, GNode: 1}},
		},
		{
			Concrete: []CoverCand{{Select: ga, GNode: 2, Head: true}, {Select: g3, GNode: 5, Head: true}},
			Abstract: []CoverCand{{Select: gb, GNode: 3}},
		},
	}
	cover, err := NewCover(slots)
	require.NoError(t, err)

	sols, err := NewSolver("covering", []Constraint{cover}, NewDStore("S")).Solve(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, sols, 3)
	for _, s := range sols {
		assert.NotEqual(t, []int{1, 1}, selectedValues(t, s, ga, gb))
	}

	s := NewDStore("S")
	_, err = ga.Choose(s, 1)
	require.NoError(t, err)
	_, err = gb.Choose(s, 1)
	require.NoError(t, err)
	_, err = cover.Propagate(s)
	assert.ErrorIs(t, err, ErrInconsistent)
}

func TestCover_GroupDependencies(t *testing.T) {
	slots := func(g0, g1 *Var) []CoverSlot {
		return []CoverSlot{{
			Concrete: []CoverCand{{Select: g0, GNode: 0, Head: true}},
			Abstract: []CoverCand{{Select: g1, GNode: 1}},
		}}
	}
	tests := map[string]struct {
		deps *Var
		want int
	}{
		"allowed":   {NewDetVar("deps1", NewIntSet(0)), 2},
		"forbidden": {NewDetVar("deps1", NewIntSet(7)), 1},
		"any":       {nil, 2},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			g0, g1 := boolVar("g0"), boolVar("g1")
			cover, err := NewCover(slots(g0, g1), CoverGroup{Select: g0}, CoverGroup{Select: g1, Deps: tt.deps})
			require.NoError(t, err)
			sols, err := NewSolver("covering", []Constraint{cover}, NewDStore("S")).Solve(context.Background(), 0)
			require.NoError(t, err)
			assert.Len(t, sols, tt.want)
		})
	}
}

func TestCover_GroupSets(t *testing.T) {
	g0, g1 := boolVar("g0"), boolVar("g1")
	pos0 := NewVar("g0->pos", IntSet{}, NewIntSet(0, 1), 0, 2, false)
	pos1 := NewVar("g1->pos", IntSet{}, NewIntSet(1), 0, 1, false)
	slots := []CoverSlot{
		{Concrete: []CoverCand{{Select: g0, GNode: 0, Head: true}}},
		{Concrete: []CoverCand{{Select: g0, GNode: 1}, {Select: g1, GNode: 2, Head: true}}},
	}
	cover, err := NewCover(slots,
		CoverGroup{Select: g0, Sets: []CoverSet{{Var: pos0, Values: NewIntSet(0, 1)}}},
		CoverGroup{Select: g1, Sets: []CoverSet{{Var: pos1, Values: NewIntSet(1)}}},
	)
	require.NoError(t, err)

	sols, err := NewSolver("covering", []Constraint{cover}, NewDStore("S")).Solve(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sols, 1, "slot 0 forces g0, which takes slot 1 from g1")
	assert.Equal(t, []int{0, 1}, pos0.Lower(sols[0]).Values())
	assert.True(t, pos1.Upper(sols[0]).IsEmpty())

	_, err = NewCover(slots, CoverGroup{Select: g0})
	assert.Error(t, err, "g1 belongs to no group")
	_, err = NewCover(slots, CoverGroup{})
	assert.Error(t, err)
}

func TestCover_AnalysisNarrowing(t *testing.T) {
	ga, gb := boolVar("ga"), boolVar("gb")
	analysis := NewIVar("w0f", Range(0, 2), true)
	cover, err := NewCover([]CoverSlot{{
		Concrete: []CoverCand{
			{Select: ga, GNode: 0, Head: true, Analyses: NewIntSet(1)},
			{Select: gb, GNode: 1, Head: true},
		},
		Analysis: analysis,
	}})
	require.NoError(t, err)

	sols, err := NewSolver("covering", []Constraint{cover}, NewDStore("S")).Solve(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sols, 3, "ga under analysis 1, gb under either")
	for _, s := range sols {
		if selectedValues(t, s, ga)[0] == 1 {
			assert.Equal(t, []int{1}, selectedValues(t, s, analysis))
		}
	}

	s := NewDStore("S")
	_, err = analysis.Choose(s, 0)
	require.NoError(t, err)
	_, err = cover.Propagate(s)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, selectedValues(t, s, ga, gb), "ga matched no remaining analysis")
}

func TestCover_PositionBinding(t *testing.T) {
	g0, g1 := boolVar("g0"), boolVar("g1")
	elsewhere := NewIVar("gn0->w", NewIntSet(1), false)
	cover, err := NewCover([]CoverSlot{{
		Concrete: []CoverCand{{Select: g0, GNode: 0, Head: true, Position: elsewhere}, {Select: g1, GNode: 1, Head: true}},
	}})
	require.NoError(t, err)
	s := NewDStore("S")
	_, err = cover.Propagate(s)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, selectedValues(t, s, g0, g1), "a node bound elsewhere cannot cover slot 0")

	g2 := boolVar("g2")
	pos := NewIVar("gn2->w", NewIntSet(0, 1), false)
	cover, err = NewCover([]CoverSlot{{Concrete: []CoverCand{{Select: g2, GNode: 2, Head: true, Position: pos}}}})
	require.NoError(t, err)
	s = NewDStore("S")
	require.NoError(t, NewSolver("covering", []Constraint{cover}, s).Propagate(s))
	assert.Equal(t, []int{0}, selectedValues(t, s, pos), "selecting the node binds it here")
}
