// Package cs provides a small finite-domain constraint framework: set-valued
// and integer variables whose bounds live in copy-on-write domain stores,
// propagators that narrow those bounds, and a backtracking solver that
// exposes solutions as a pull-based stream of store snapshots.
//
// This file defines IntSet, the immutable bitset used for every variable
// bound. Values are non-negative integers; bit i represents value i.
package cs

import (
	"fmt"
	"math/bits"
	"strings"
)

// IntSet is an immutable set of non-negative integers backed by a bitset.
// All operations return new sets; the zero value is the empty set.
//
// Memory usage: (max value + 64) / 64 * 8 bytes.
type IntSet struct {
	words []uint64
}

// NewIntSet returns the set containing the given values.
// Negative values are ignored.
func NewIntSet(values ...int) IntSet {
	var s IntSet
	for _, v := range values {
		if v < 0 {
			continue
		}
		s = s.grow(v / 64)
		s.words[v/64] |= 1 << uint(v%64)
	}
	return s
}

// Range returns the set {lo, lo+1, ..., hi-1}.
func Range(lo, hi int) IntSet {
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return IntSet{}
	}
	s := IntSet{words: make([]uint64, (hi-1)/64+1)}
	for v := lo; v < hi; v++ {
		s.words[v/64] |= 1 << uint(v%64)
	}
	return s
}

// grow returns a copy of s with at least n+1 words.
func (s IntSet) grow(n int) IntSet {
	size := len(s.words)
	if n+1 > size {
		size = n + 1
	}
	words := make([]uint64, size)
	copy(words, s.words)
	return IntSet{words: words}
}

// Len returns the number of values in the set.
// Uses hardware popcount (O(number of words)).
func (s IntSet) Len() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// IsEmpty reports whether the set has no values.
func (s IntSet) IsEmpty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Has reports whether v is in the set. O(1).
func (s IntSet) Has(v int) bool {
	if v < 0 || v/64 >= len(s.words) {
		return false
	}
	return (s.words[v/64]>>uint(v%64))&1 == 1
}

// Add returns s ∪ {v}.
func (s IntSet) Add(v int) IntSet {
	if v < 0 || s.Has(v) {
		return s
	}
	out := s.grow(v / 64)
	out.words[v/64] |= 1 << uint(v%64)
	return out
}

// Remove returns s \ {v}.
func (s IntSet) Remove(v int) IntSet {
	if !s.Has(v) {
		return s
	}
	out := s.grow(0)
	out.words[v/64] &^= 1 << uint(v%64)
	return out
}

// Union returns s ∪ o.
func (s IntSet) Union(o IntSet) IntSet {
	long, short := s.words, o.words
	if len(short) > len(long) {
		long, short = short, long
	}
	words := make([]uint64, len(long))
	copy(words, long)
	for i, w := range short {
		words[i] |= w
	}
	return IntSet{words: words}
}

// Intersect returns s ∩ o. This is the core operation for narrowing upper bounds.
func (s IntSet) Intersect(o IntSet) IntSet {
	n := len(s.words)
	if len(o.words) < n {
		n = len(o.words)
	}
	words := make([]uint64, n)
	for i := 0; i < n; i++ {
		words[i] = s.words[i] & o.words[i]
	}
	return IntSet{words: words}
}

// Difference returns s \ o.
func (s IntSet) Difference(o IntSet) IntSet {
	words := make([]uint64, len(s.words))
	copy(words, s.words)
	for i := 0; i < len(words) && i < len(o.words); i++ {
		words[i] &^= o.words[i]
	}
	return IntSet{words: words}
}

// SubsetOf reports whether every value of s is in o.
func (s IntSet) SubsetOf(o IntSet) bool {
	for i, w := range s.words {
		var ow uint64
		if i < len(o.words) {
			ow = o.words[i]
		}
		if w&^ow != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether s and o contain the same values.
// Trailing empty words are ignored.
func (s IntSet) Equal(o IntSet) bool {
	return s.SubsetOf(o) && o.SubsetOf(s)
}

// Min returns the smallest value, or -1 for the empty set.
func (s IntSet) Min() int {
	for i, w := range s.words {
		if w != 0 {
			return i*64 + bits.TrailingZeros64(w)
		}
	}
	return -1
}

// Max returns the largest value, or -1 for the empty set.
func (s IntSet) Max() int {
	for i := len(s.words) - 1; i >= 0; i-- {
		if w := s.words[i]; w != 0 {
			return i*64 + 63 - bits.LeadingZeros64(w)
		}
	}
	return -1
}

// RemoveAbove returns the set without values > t.
func (s IntSet) RemoveAbove(t int) IntSet {
	if t < 0 {
		return IntSet{}
	}
	return s.Intersect(Range(0, t+1))
}

// RemoveBelow returns the set without values < t.
func (s IntSet) RemoveBelow(t int) IntSet {
	if t <= 0 {
		return s
	}
	return s.Difference(Range(0, t))
}

// Each calls f for each value in ascending order.
func (s IntSet) Each(f func(v int)) {
	for i, w := range s.words {
		for w != 0 {
			off := bits.TrailingZeros64(w)
			f(i*64 + off)
			w &^= 1 << uint(off)
		}
	}
}

// Values returns the values as an ascending slice.
func (s IntSet) Values() []int {
	out := make([]int, 0, s.Len())
	s.Each(func(v int) { out = append(out, v) })
	return out
}

// String returns e.g. "{1,3,5}" or "{0..9}" for consecutive runs.
func (s IntSet) String() string {
	vals := s.Values()
	switch {
	case len(vals) == 0:
		return "{}"
	case len(vals) == 1:
		return fmt.Sprintf("{%d}", vals[0])
	case vals[len(vals)-1]-vals[0] == len(vals)-1:
		return fmt.Sprintf("{%d..%d}", vals[0], vals[len(vals)-1])
	}
	var b strings.Builder
	b.WriteString("{")
	for i, v := range vals {
		if i > 0 {
			b.WriteString(",")
		}
		if i >= 19 && len(vals) > 20 {
			fmt.Fprintf(&b, "...+%d more", len(vals)-19)
			break
		}
		fmt.Fprintf(&b, "%d", v)
	}
	b.WriteString("}")
	return b.String()
}
