package cs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntSet_Basics(t *testing.T) {
	s := NewIntSet(3, 1, 70, -2, 1)

	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Has(1))
	assert.True(t, s.Has(70))
	assert.False(t, s.Has(2))
	assert.False(t, s.Has(-2))
	assert.Equal(t, []int{1, 3, 70}, s.Values())
	assert.Equal(t, 1, s.Min())
	assert.Equal(t, 70, s.Max())

	var empty IntSet
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, -1, empty.Min())
	assert.Equal(t, -1, empty.Max())
	assert.Equal(t, "{}", empty.String())
}

func TestIntSet_Immutable(t *testing.T) {
	s := NewIntSet(1, 2)
	added := s.Add(5)
	removed := s.Remove(1)

	assert.Equal(t, []int{1, 2}, s.Values(), "original must not change")
	assert.Equal(t, []int{1, 2, 5}, added.Values())
	assert.Equal(t, []int{2}, removed.Values())
}

func TestIntSet_SetAlgebra(t *testing.T) {
	a := NewIntSet(0, 1, 2, 100)
	b := NewIntSet(2, 3)

	tests := []struct {
		name string
		got  IntSet
		want []int
	}{
		{"union", a.Union(b), []int{0, 1, 2, 3, 100}},
		{"intersect", a.Intersect(b), []int{2}},
		{"difference", a.Difference(b), []int{0, 1, 100}},
		{"remove above", a.RemoveAbove(1), []int{0, 1}},
		{"remove above negative", a.RemoveAbove(-1), []int{}},
		{"remove below", a.RemoveBelow(2), []int{2, 100}},
		{"range", Range(2, 5), []int{2, 3, 4}},
		{"empty range", Range(5, 5), []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got.Values())
		})
	}
}

func TestIntSet_Equality(t *testing.T) {
	a := NewIntSet(1, 130).Remove(130)
	b := NewIntSet(1)

	assert.True(t, a.Equal(b), "trailing empty words are ignored")
	assert.True(t, b.SubsetOf(NewIntSet(0, 1)))
	assert.False(t, NewIntSet(0, 1).SubsetOf(b))
	assert.True(t, IntSet{}.SubsetOf(b))
}

func TestIntSet_String(t *testing.T) {
	assert.Equal(t, "{4}", NewIntSet(4).String())
	assert.Equal(t, "{0..3}", Range(0, 4).String())
	assert.Equal(t, "{1,3,5}", NewIntSet(1, 3, 5).String())
}
