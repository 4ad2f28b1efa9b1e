// Constraint propagation for the cs solver.
//
// Propagators never read or write anything but the store they are given:
// they read current bounds with Var.Lower/Upper and narrow them with
// Include/Restrict/Exclude, which record the change in that store. The
// solver runs all propagators to a fixed point after every branch.
//
// Constraint algorithms:
//   - Order: the variables take pairwise distinct positions 0..n-1
//     (forward checking, hidden singles, bipartite matching feasibility)
//   - PrecedenceSelection: bounds propagation for pos(a) < pos(b) over a
//     selected set of pairs
package cs

import (
	"fmt"
	"strings"
)

// Constraint restricts the values its variables can take simultaneously.
type Constraint interface {
	// Variables returns the variables involved in this constraint.
	Variables() []*Var

	// Type returns a string identifying the constraint type.
	Type() string

	// Propagate narrows bounds in s. It reports whether anything changed
	// and returns an error wrapping ErrInconsistent when no solution can
	// extend s.
	Propagate(s *DStore) (bool, error)

	// String returns a human-readable representation.
	String() string
}

// Order constrains IVars over [0, n) to a total order: every variable gets
// a distinct position. Typically the variables are the positions of output
// words.
type Order struct {
	vars []*Var
}

// NewOrder creates an Order constraint over the given position variables.
func NewOrder(vars []*Var) (*Order, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("Order constraint requires at least one variable")
	}
	for _, v := range vars {
		if v.Kind() != IntKind {
			return nil, fmt.Errorf("Order constraint: %s is not an integer variable", v.Name())
		}
	}
	return &Order{vars: vars}, nil
}

// Variables implements Constraint.
func (c *Order) Variables() []*Var { return c.vars }

// Type implements Constraint.
func (c *Order) Type() string { return "Order" }

// String implements Constraint.
func (c *Order) String() string {
	names := make([]string, len(c.vars))
	for i, v := range c.vars {
		names[i] = v.Name()
	}
	return fmt.Sprintf("Order(%s)", strings.Join(names, ","))
}

// Propagate implements Constraint.
func (c *Order) Propagate(s *DStore) (bool, error) {
	changed := false

	// Forward checking: a determined position is unavailable to the others.
	for again := true; again; {
		again = false
		for i, v := range c.vars {
			dom := v.Upper(s)
			if dom.Len() != 1 {
				continue
			}
			for j, w := range c.vars {
				if i == j {
					continue
				}
				ch, err := w.Exclude(s, dom)
				if err != nil {
					return changed, err
				}
				if ch {
					changed, again = true, true
				}
			}
		}
	}

	// Hidden singles: a position supported by exactly one variable is forced
	// when every position must be used.
	union := IntSet{}
	for _, v := range c.vars {
		union = union.Union(v.Upper(s))
	}
	if union.Len() < len(c.vars) {
		return changed, fmt.Errorf("%w: %s has %d positions for %d variables", ErrInconsistent, c, union.Len(), len(c.vars))
	}
	if union.Len() == len(c.vars) {
		var err error
		union.Each(func(p int) {
			if err != nil {
				return
			}
			var only *Var
			count := 0
			for _, v := range c.vars {
				if v.Upper(s).Has(p) {
					only = v
					count++
				}
			}
			if count == 1 && only.Upper(s).Len() > 1 {
				var ch bool
				ch, err = only.Choose(s, p)
				changed = changed || ch
			}
		})
		if err != nil {
			return changed, err
		}
	}

	if c.maxMatching(s) < len(c.vars) {
		return changed, fmt.Errorf("%w: %s has no complete matching", ErrInconsistent, c)
	}
	return changed, nil
}

// maxMatching returns the size of a maximum matching between variables and
// positions using augmenting paths.
func (c *Order) maxMatching(s *DStore) int {
	domains := make([][]int, len(c.vars))
	for i, v := range c.vars {
		domains[i] = v.Upper(s).Values()
	}
	matchPos := make(map[int]int)
	size := 0
	for i := range c.vars {
		visited := make(map[int]bool)
		if augment(i, domains, matchPos, visited) {
			size++
		}
	}
	return size
}

func augment(vi int, domains [][]int, matchPos map[int]int, visited map[int]bool) bool {
	for _, p := range domains[vi] {
		if visited[p] {
			continue
		}
		visited[p] = true
		other, taken := matchPos[p]
		if !taken || augment(other, domains, matchPos, visited) {
			matchPos[p] = vi
			return true
		}
	}
	return false
}

// PrecedenceSelection requires pos(a) < pos(b) for every pair (a, b)
// selected by sel. Pairs are encoded with PairCode using the number of
// position variables as width; pairs in sel's lower bound are enforced and
// pairs that can no longer hold are excluded from its upper bound. With a
// DetVar selection every pair is enforced.
type PrecedenceSelection struct {
	sel   *Var
	order []*Var
}

// NewPrecedenceSelection creates the constraint.
func NewPrecedenceSelection(sel *Var, order []*Var) (*PrecedenceSelection, error) {
	if sel == nil || len(order) == 0 {
		return nil, fmt.Errorf("PrecedenceSelection requires a selection variable and position variables")
	}
	width := len(order)
	var err error
	sel.Upper(nil).Each(func(code int) {
		if a, b := DecodePair(code, width); a == b || a >= width {
			err = fmt.Errorf("PrecedenceSelection: invalid pair (%d,%d)", a, b)
		}
	})
	if err != nil {
		return nil, err
	}
	return &PrecedenceSelection{sel: sel, order: order}, nil
}

// Variables implements Constraint.
func (c *PrecedenceSelection) Variables() []*Var {
	return append([]*Var{c.sel}, c.order...)
}

// Type implements Constraint.
func (c *PrecedenceSelection) Type() string { return "PrecedenceSelection" }

// String implements Constraint.
func (c *PrecedenceSelection) String() string {
	width := len(c.order)
	var pairs []string
	c.sel.Upper(nil).Each(func(code int) {
		a, b := DecodePair(code, width)
		pairs = append(pairs, fmt.Sprintf("%s<%s", c.order[a].Name(), c.order[b].Name()))
	})
	return fmt.Sprintf("PrecedenceSelection(%s)", strings.Join(pairs, ","))
}

// Propagate implements Constraint.
//
// For a selected pair x < y:
//   - remove from x all values >= max(y)
//   - remove from y all values <= min(x)
func (c *PrecedenceSelection) Propagate(s *DStore) (bool, error) {
	width := len(c.order)
	changed := false
	required := c.sel.Lower(s)
	var failed error
	c.sel.Upper(s).Each(func(code int) {
		if failed != nil {
			return
		}
		a, b := DecodePair(code, width)
		x, y := c.order[a], c.order[b]
		if !required.Has(code) {
			if x.Upper(s).Min() >= y.Upper(s).Max() {
				ch, err := c.sel.Exclude(s, NewIntSet(code))
				changed = changed || ch
				failed = err
			}
			return
		}
		ch, err := x.Restrict(s, x.Upper(s).RemoveAbove(y.Upper(s).Max()-1))
		if err != nil {
			failed = err
			return
		}
		changed = changed || ch
		ch, err = y.Restrict(s, y.Upper(s).RemoveBelow(x.Upper(s).Min()+1))
		if err != nil {
			failed = err
			return
		}
		changed = changed || ch
	})
	return changed, failed
}
