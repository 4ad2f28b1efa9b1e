package cs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderVars(n int) []*Var {
	vars := make([]*Var, n)
	for i := range vars {
		vars[i] = NewIVar("o"+string(rune('0'+i)), Range(0, n), true)
	}
	return vars
}

func TestNewOrder_Validation(t *testing.T) {
	_, err := NewOrder(nil)
	assert.Error(t, err)

	_, err = NewOrder([]*Var{NewVar("s", IntSet{}, Range(0, 3), 0, 3, true)})
	assert.Error(t, err, "set variables cannot be ordered")
}

func TestOrder_ForwardChecking(t *testing.T) {
	vars := orderVars(3)
	c, err := NewOrder(vars)
	require.NoError(t, err)
	s := NewDStore("test")

	_, err = vars[0].Choose(s, 1)
	require.NoError(t, err)
	changed, err := c.Propagate(s)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []int{0, 2}, vars[1].Upper(s).Values())
	assert.Equal(t, []int{0, 2}, vars[2].Upper(s).Values())
}

func TestOrder_HiddenSingle(t *testing.T) {
	vars := orderVars(3)
	c, err := NewOrder(vars)
	require.NoError(t, err)
	s := NewDStore("test")

	// Only vars[2] can take position 0.
	_, err = vars[0].Restrict(s, NewIntSet(1, 2))
	require.NoError(t, err)
	_, err = vars[1].Restrict(s, NewIntSet(1, 2))
	require.NoError(t, err)

	_, err = c.Propagate(s)
	require.NoError(t, err)
	val, err := vars[2].IntValue(s)
	require.NoError(t, err)
	assert.Equal(t, 0, val)
}

func TestOrder_NoMatching(t *testing.T) {
	vars := orderVars(3)
	c, err := NewOrder(vars)
	require.NoError(t, err)
	s := NewDStore("test")

	for _, v := range vars[:2] {
		_, err = v.Restrict(s, NewIntSet(0, 1))
		require.NoError(t, err)
	}
	_, err = vars[2].Restrict(s, NewIntSet(0, 1, 2))
	require.NoError(t, err)
	_, err = c.Propagate(s)
	require.NoError(t, err, "positions 0 and 1 for two variables, 2 for the third")

	s2 := NewDStore("test")
	for _, v := range vars {
		_, err = v.Restrict(s2, NewIntSet(0, 1))
		require.NoError(t, err)
	}
	_, err = c.Propagate(s2)
	assert.ErrorIs(t, err, ErrInconsistent)
}

func TestPrecedenceSelection_Bounds(t *testing.T) {
	vars := orderVars(3)
	pairs := NewDetVar("pairs", NewIntSet(PairCode(0, 1, 3), PairCode(1, 2, 3)))
	c, err := NewPrecedenceSelection(pairs, vars)
	require.NoError(t, err)
	s := NewDStore("test")

	_, err = c.Propagate(s)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, vars[0].Upper(s).Values())
	assert.Equal(t, []int{1}, vars[1].Upper(s).Values())
	assert.Equal(t, []int{2}, vars[2].Upper(s).Values())

	s2 := NewDStore("test")
	_, err = vars[2].Choose(s2, 1)
	require.NoError(t, err)
	_, err = c.Propagate(s2)
	assert.ErrorIs(t, err, ErrInconsistent, "o1 must fall strictly between o0 and o2")
}

func TestPrecedenceSelection_OptionalPairs(t *testing.T) {
	vars := orderVars(2)
	sel := NewVar("sel", IntSet{}, NewIntSet(PairCode(0, 1, 2)), 0, 1, false)
	c, err := NewPrecedenceSelection(sel, vars)
	require.NoError(t, err)
	s := NewDStore("test")

	_, err = vars[0].Choose(s, 1)
	require.NoError(t, err)
	_, err = vars[1].Choose(s, 0)
	require.NoError(t, err)

	changed, err := c.Propagate(s)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, sel.Upper(s).IsEmpty(), "a pair that cannot hold is deselected")
}

func TestNewPrecedenceSelection_Invalid(t *testing.T) {
	vars := orderVars(2)
	_, err := NewPrecedenceSelection(NewDetVar("p", NewIntSet(PairCode(1, 1, 2))), vars)
	assert.Error(t, err)
	_, err = NewPrecedenceSelection(nil, vars)
	assert.Error(t, err)
}
