package cs

import (
	"errors"
	"fmt"
)

// ErrInconsistent reports that narrowing violated lower ⊆ upper, emptied a
// domain or broke a cardinality bound. The solver prunes such branches.
var ErrInconsistent = errors.New("inconsistent domain store")

type bounds struct {
	lower IntSet
	upper IntSet
}

// DStore is a domain store: a snapshot of variable bounds at one point of a
// search. Stores form a persistent chain; each store records only the
// bounds changed since its parent, so branching is O(1) and backtracking
// simply drops the child.
//
//	root DStore (episode)
//	  └─ child: o0={0}         (branch)
//	       └─ child: o1={1,2}  (propagation)
//
// A store that has been yielded as a solution is never written again.
// Stores are not safe for concurrent mutation; concurrent searches must use
// separate root stores.
type DStore struct {
	name   string
	parent *DStore
	mods   map[*Var]bounds
	level  int
}

// NewDStore creates an empty root store.
func NewDStore(name string) *DStore {
	return &DStore{name: name, mods: make(map[*Var]bounds)}
}

// Child returns a new store that sees all of s's bounds and records its
// own changes separately.
func (s *DStore) Child() *DStore {
	return &DStore{
		name:   s.name,
		parent: s,
		mods:   make(map[*Var]bounds),
		level:  s.level + 1,
	}
}

// Name returns the store's episode name.
func (s *DStore) Name() string { return s.name }

// Level returns the depth of s in its chain (0 for the root).
func (s *DStore) Level() int { return s.level }

// Parent returns the store s was derived from, or nil for a root.
func (s *DStore) Parent() *DStore { return s.parent }

// lookup walks the chain for the most recent bounds of v.
// This is O(depth) in the worst case.
func (s *DStore) lookup(v *Var) bounds {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.mods[v]; ok {
			return b
		}
	}
	return bounds{lower: v.lower, upper: v.upper}
}

func (s *DStore) set(v *Var, b bounds) {
	s.mods[v] = b
}

// String returns e.g. "TT0@3 (2 changes)".
func (s *DStore) String() string {
	return fmt.Sprintf("%s@%d (%d changes)", s.name, s.level, len(s.mods))
}
