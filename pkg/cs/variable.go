package cs

import (
	"fmt"
	"math"
)

// MaxCard is the cardinality used when a set variable has no upper limit.
const MaxCard = math.MaxInt32

// Kind distinguishes set-valued variables from single-valued ones.
type Kind int

const (
	// SetKind variables take a set of values between their bounds.
	SetKind Kind = iota
	// IntKind variables take exactly one value from their domain.
	IntKind
)

// Var is a finite-domain variable.
//
// A Var stores only its initial bounds. During solving the current bounds
// live in a DStore keyed by the variable, so the same Var can be read
// through many snapshots of one search. At all times
// lower ⊆ value ⊆ upper, and for set variables
// lowerCard ≤ |value| ≤ upperCard.
//
// For IntKind variables (IVars) upper is the domain and the variable is
// determined when the domain is a singleton; lower is either empty or that
// singleton.
type Var struct {
	name      string
	kind      Kind
	lower     IntSet
	upper     IntSet
	lowerCard int
	upperCard int
	essential bool
	det       bool
}

// NewVar creates a set variable with bounds [lower, upper] and cardinality
// bounds [lowerCard, upperCard]. Essential variables must be determined
// before a store counts as a solution.
func NewVar(name string, lower, upper IntSet, lowerCard, upperCard int, essential bool) *Var {
	if upperCard > upper.Len() {
		upperCard = upper.Len()
	}
	if lowerCard < lower.Len() {
		lowerCard = lower.Len()
	}
	return &Var{
		name:      name,
		kind:      SetKind,
		lower:     lower,
		upper:     upper,
		lowerCard: lowerCard,
		upperCard: upperCard,
		essential: essential,
	}
}

// NewIVar creates a single-valued variable over domain.
func NewIVar(name string, domain IntSet, essential bool) *Var {
	v := &Var{
		name:      name,
		kind:      IntKind,
		upper:     domain,
		lowerCard: 1,
		upperCard: 1,
		essential: essential,
	}
	if domain.Len() == 1 {
		v.lower = domain
	}
	return v
}

// NewDetVar creates a set variable whose value is fixed at creation.
// Any attempt to narrow it to something else is an inconsistency.
func NewDetVar(name string, value IntSet) *Var {
	n := value.Len()
	return &Var{
		name:      name,
		kind:      SetKind,
		lower:     value,
		upper:     value,
		lowerCard: n,
		upperCard: n,
		det:       true,
	}
}

// EMPTY is the determined variable with no value. It stands in for slots
// that cannot be filled (an SNode no group matched, a GInst with no
// abstract nodes).
var EMPTY = NewDetVar("EMPTY", IntSet{})

// Name returns the variable's name.
func (v *Var) Name() string { return v.name }

// Kind returns SetKind or IntKind.
func (v *Var) Kind() Kind { return v.kind }

// Essential reports whether the solver must determine the variable.
func (v *Var) Essential() bool { return v.essential }

// IsDet reports whether the variable was created determined.
func (v *Var) IsDet() bool { return v.det }

// LowerCard and UpperCard return the initial cardinality bounds.
func (v *Var) LowerCard() int { return v.lowerCard }

// UpperCard returns the initial upper cardinality bound.
func (v *Var) UpperCard() int { return v.upperCard }

// bounds returns the current bounds of v in s (initial bounds if s is nil).
func (v *Var) bounds(s *DStore) bounds {
	if v.det || s == nil {
		return bounds{lower: v.lower, upper: v.upper}
	}
	return s.lookup(v)
}

// Lower returns the values definitely in the solution.
func (v *Var) Lower(s *DStore) IntSet { return v.bounds(s).lower }

// Upper returns the values still possible.
func (v *Var) Upper(s *DStore) IntSet { return v.bounds(s).upper }

// Value returns the variable's value restricted by s: the domain for an
// IVar, the lower bound for a determined set variable, and the upper bound
// (still-possible values) otherwise.
func (v *Var) Value(s *DStore) IntSet {
	b := v.bounds(s)
	if v.kind == SetKind && b.lower.Equal(b.upper) {
		return b.lower
	}
	return b.upper
}

// IntValue returns the single value of a determined IVar.
func (v *Var) IntValue(s *DStore) (int, error) {
	b := v.bounds(s)
	if b.upper.Len() != 1 {
		return 0, fmt.Errorf("variable %s is not determined (domain %s)", v.name, b.upper)
	}
	return b.upper.Min(), nil
}

// Determined reports whether v has a single possible value in s.
func (v *Var) Determined(s *DStore) bool {
	if v.det {
		return true
	}
	b := v.bounds(s)
	if v.kind == IntKind {
		return b.upper.Len() == 1
	}
	return b.lower.Equal(b.upper)
}

// Include adds vals to the lower bound of v in s.
// Returns whether the bounds changed.
func (v *Var) Include(s *DStore, vals IntSet) (bool, error) {
	b := v.bounds(s)
	if vals.SubsetOf(b.lower) {
		return false, nil
	}
	if v.kind == IntKind {
		return v.Restrict(s, vals)
	}
	return v.update(s, bounds{lower: b.lower.Union(vals), upper: b.upper})
}

// Restrict intersects the upper bound of v in s with vals.
func (v *Var) Restrict(s *DStore, vals IntSet) (bool, error) {
	b := v.bounds(s)
	if b.upper.SubsetOf(vals) {
		return false, nil
	}
	return v.update(s, bounds{lower: b.lower, upper: b.upper.Intersect(vals)})
}

// Exclude removes vals from the upper bound of v in s.
func (v *Var) Exclude(s *DStore, vals IntSet) (bool, error) {
	b := v.bounds(s)
	if b.upper.Intersect(vals).IsEmpty() {
		return false, nil
	}
	return v.update(s, bounds{lower: b.lower, upper: b.upper.Difference(vals)})
}

// Choose determines an IVar to value.
func (v *Var) Choose(s *DStore, value int) (bool, error) {
	return v.Restrict(s, NewIntSet(value))
}

// update checks the new bounds, applies the cardinality rules and writes
// them to s.
func (v *Var) update(s *DStore, nb bounds) (bool, error) {
	if v.det {
		return false, fmt.Errorf("%w: determined variable %s narrowed", ErrInconsistent, v.name)
	}
	if s == nil {
		return false, fmt.Errorf("variable %s: nil store", v.name)
	}
	if !nb.lower.SubsetOf(nb.upper) {
		return false, fmt.Errorf("%w: %s lower %s not within upper %s", ErrInconsistent, v.name, nb.lower, nb.upper)
	}
	if v.kind == IntKind {
		switch nb.upper.Len() {
		case 0:
			return false, fmt.Errorf("%w: %s has empty domain", ErrInconsistent, v.name)
		case 1:
			nb.lower = nb.upper
		}
	} else {
		nl, nu := nb.lower.Len(), nb.upper.Len()
		if nl > v.upperCard || nu < v.lowerCard {
			return false, fmt.Errorf("%w: %s cardinality outside [%d,%d]", ErrInconsistent, v.name, v.lowerCard, v.upperCard)
		}
		if nu == v.lowerCard {
			nb.lower = nb.upper
		} else if nl == v.upperCard {
			nb.upper = nb.lower
		}
	}
	s.set(v, nb)
	return true, nil
}

// String returns a human-readable representation using initial bounds.
func (v *Var) String() string {
	if v.kind == IntKind {
		return fmt.Sprintf("%s∈%s", v.name, v.upper)
	}
	if v.det {
		return fmt.Sprintf("%s=%s", v.name, v.lower)
	}
	return fmt.Sprintf("%s:%s⊆·⊆%s", v.name, v.lower, v.upper)
}

// PairCode encodes the ordered pair (a, b) of values in [0, width) as one
// value so that a set of pairs can be held by a DetVar.
func PairCode(a, b, width int) int {
	return a*width + b
}

// DecodePair inverts PairCode.
func DecodePair(code, width int) (int, int) {
	return code / width, code % width
}
