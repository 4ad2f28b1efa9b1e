package cs

import (
	"fmt"
	"strings"
)

// CoverCand is one way of covering a slot: a group node that becomes part of
// the covering when its group's selection variable takes the value 1.
type CoverCand struct {
	Select *Var // IVar over {0,1}
	GNode  int  // node identifier recorded in the slot's set variables
	Head   bool // whether the node is the head of its group
	// Position, when not nil, is an IVar over the slots the node may bind
	// to; selecting the node binds it to this slot.
	Position *Var
	// Analyses lists the slot analyses the node matched; empty means any.
	Analyses IntSet
}

// CoverSlot describes one sentence position. Concrete candidates are literal
// nodes, abstract candidates are category slots that can only be filled by
// merging with a concrete head node at the same position.
//
// GNodes, CGNodes and AGNodes, when not nil, are set variables mirroring the
// selected candidates; their cardinality bounds participate in propagation.
type CoverSlot struct {
	Concrete []CoverCand
	Abstract []CoverCand
	GNodes   *Var
	CGNodes  *Var
	AGNodes  *Var
	// Analysis, when not nil, is an IVar holding the index of the analysis
	// chosen for the slot. It is narrowed to the analyses of the selected
	// nodes, and nodes that matched none of its remaining values are
	// dropped.
	Analysis *Var
}

// CoverSet is a set variable that holds Values exactly when its group is
// selected and nothing otherwise.
type CoverSet struct {
	Var    *Var
	Values IntSet
}

// CoverGroup describes one group of candidates. Groups are identified by
// their position in the slice passed to NewCover.
type CoverGroup struct {
	Select *Var
	// Deps, when not nil, is a determined set of the groups whose heads may
	// fill this group's abstract nodes.
	Deps *Var
	Sets []CoverSet
}

// Cover forces a consistent covering of the slots by selected groups:
//   - a slot with any concrete candidate takes exactly one selected concrete node
//   - a slot with no concrete candidate takes no node at all
//   - a slot takes at most one selected abstract node, and only together with
//     a concrete node that heads its group
//   - merging a head into an abstract node puts its group beneath the
//     abstract node's group, and these merges never form a cycle
type Cover struct {
	slots   []CoverSlot
	groups  []CoverGroup
	groupOf map[*Var]int
	deps    []IntSet
	vars    []*Var
}

// NewCover creates the constraint. The selection variables must be
// integer variables over a subset of {0,1}. Groups are optional; when
// given, every candidate's selection variable must belong to one.
func NewCover(slots []CoverSlot, groups ...CoverGroup) (*Cover, error) {
	c := &Cover{slots: slots, groups: groups, groupOf: make(map[*Var]int, len(groups))}
	seen := make(map[*Var]bool)
	add := func(v *Var) {
		if v != nil && !seen[v] {
			seen[v] = true
			c.vars = append(c.vars, v)
		}
	}
	for i, s := range slots {
		for _, cand := range append(append([]CoverCand{}, s.Concrete...), s.Abstract...) {
			if cand.Select == nil || cand.Select.Kind() != IntKind {
				return nil, fmt.Errorf("Cover slot %d: candidate %d needs an integer selection variable", i, cand.GNode)
			}
			if !cand.Select.Upper(nil).SubsetOf(NewIntSet(0, 1)) {
				return nil, fmt.Errorf("Cover slot %d: selection %s is not boolean", i, cand.Select.Name())
			}
			add(cand.Select)
		}
	}
	for _, s := range slots {
		add(s.GNodes)
		add(s.CGNodes)
		add(s.AGNodes)
		add(s.Analysis)
		for _, cand := range append(append([]CoverCand{}, s.Concrete...), s.Abstract...) {
			add(cand.Position)
		}
	}
	for i, g := range groups {
		if g.Select == nil {
			return nil, fmt.Errorf("Cover group %d has no selection variable", i)
		}
		c.groupOf[g.Select] = i
		var deps IntSet
		if g.Deps != nil {
			deps = g.Deps.Upper(nil)
		}
		c.deps = append(c.deps, deps)
		add(g.Select)
		for _, set := range g.Sets {
			add(set.Var)
		}
	}
	if len(groups) > 0 {
		for i, s := range slots {
			for _, cand := range append(append([]CoverCand{}, s.Concrete...), s.Abstract...) {
				if _, ok := c.groupOf[cand.Select]; !ok {
					return nil, fmt.Errorf("Cover slot %d: candidate %d belongs to no group", i, cand.GNode)
				}
			}
		}
	}
	return c, nil
}

// Variables implements Constraint.
func (c *Cover) Variables() []*Var { return c.vars }

// Type implements Constraint.
func (c *Cover) Type() string { return "Cover" }

// String implements Constraint.
func (c *Cover) String() string {
	parts := make([]string, len(c.slots))
	for i, s := range c.slots {
		parts[i] = fmt.Sprintf("%d:%dc/%da", i, len(s.Concrete), len(s.Abstract))
	}
	return fmt.Sprintf("Cover(%s)", strings.Join(parts, " "))
}

func selected(s *DStore, cand CoverCand) bool {
	return cand.Select.Upper(s).Equal(NewIntSet(1))
}

func excluded(s *DStore, cand CoverCand) bool {
	return !cand.Select.Upper(s).Has(1)
}

// narrowSlot applies the position and analysis bindings of slot i.
func narrowSlot(s *DStore, i int, slot CoverSlot, choose func(CoverCand, int) error) (bool, error) {
	changed := false
	for _, cand := range append(append([]CoverCand{}, slot.Concrete...), slot.Abstract...) {
		if excluded(s, cand) {
			continue
		}
		if cand.Position != nil {
			if !cand.Position.Upper(s).Has(i) {
				if err := choose(cand, 0); err != nil {
					return changed, err
				}
				continue
			}
			if selected(s, cand) {
				ch, err := cand.Position.Choose(s, i)
				changed = changed || ch
				if err != nil {
					return changed, err
				}
			}
		}
		if slot.Analysis == nil || cand.Analyses.IsEmpty() {
			continue
		}
		if slot.Analysis.Upper(s).Intersect(cand.Analyses).IsEmpty() {
			if err := choose(cand, 0); err != nil {
				return changed, err
			}
			continue
		}
		if selected(s, cand) {
			ch, err := slot.Analysis.Restrict(s, cand.Analyses)
			changed = changed || ch
			if err != nil {
				return changed, err
			}
		}
	}
	return changed, nil
}

// Propagate implements Constraint.
func (c *Cover) Propagate(s *DStore) (bool, error) {
	changed := false
	choose := func(cand CoverCand, value int) error {
		ch, err := cand.Select.Choose(s, value)
		changed = changed || ch
		return err
	}
	// parent maps a merged group's selection to the group it fills.
	parent := make(map[*Var]*Var)
	for i, slot := range c.slots {
		ch, err := narrowSlot(s, i, slot, choose)
		changed = changed || ch
		if err != nil {
			return changed, err
		}
		var selConc, possConc, selAbs []CoverCand
		for _, cand := range slot.Concrete {
			if selected(s, cand) {
				selConc = append(selConc, cand)
			}
			if !excluded(s, cand) {
				possConc = append(possConc, cand)
			}
		}
		for _, cand := range slot.Abstract {
			if selected(s, cand) {
				selAbs = append(selAbs, cand)
			}
		}

		if len(slot.Concrete) == 0 {
			for _, cand := range slot.Abstract {
				if err := choose(cand, 0); err != nil {
					return changed, err
				}
			}
		} else {
			switch {
			case len(selConc) > 1:
				return changed, fmt.Errorf("%w: slot %d covered by %d concrete nodes", ErrInconsistent, i, len(selConc))
			case len(possConc) == 0:
				return changed, fmt.Errorf("%w: slot %d cannot be covered", ErrInconsistent, i)
			case len(selConc) == 1:
				for _, cand := range slot.Concrete {
					if cand.Select != selConc[0].Select {
						if err := choose(cand, 0); err != nil {
							return changed, err
						}
					}
				}
			case len(possConc) == 1:
				if err := choose(possConc[0], 1); err != nil {
					return changed, err
				}
				selConc = possConc
			}
		}

		if len(selAbs) > 1 {
			return changed, fmt.Errorf("%w: slot %d has %d abstract nodes", ErrInconsistent, i, len(selAbs))
		}
		if len(selAbs) == 1 {
			for _, cand := range slot.Abstract {
				if cand.Select != selAbs[0].Select {
					if err := choose(cand, 0); err != nil {
						return changed, err
					}
				}
			}
			// Only a head can fill the abstract node.
			heads := 0
			for _, cand := range slot.Concrete {
				if excluded(s, cand) {
					continue
				}
				if !cand.Head {
					if err := choose(cand, 0); err != nil {
						return changed, err
					}
					continue
				}
				heads++
			}
			if heads == 0 {
				return changed, fmt.Errorf("%w: abstract node at slot %d has no head to merge with", ErrInconsistent, i)
			}
		}
		if len(selConc) == 1 && !selConc[0].Head {
			for _, cand := range slot.Abstract {
				if err := choose(cand, 0); err != nil {
					return changed, err
				}
			}
		}
		if len(selAbs) == 1 && len(selConc) == 1 && selected(s, selConc[0]) {
			child, par := selConc[0].Select, selAbs[0].Select
			if !c.mayFill(par, child) {
				return changed, fmt.Errorf("%w: slot %d merges %s into %s, which does not depend on it",
					ErrInconsistent, i, child.Name(), par.Name())
			}
			parent[child] = par
		}

		ch, err = c.mirror(s, slot)
		changed = changed || ch
		if err != nil {
			return changed, err
		}
	}
	if err := mergeCycle(parent); err != nil {
		return changed, err
	}
	ch, err := c.propagateGroups(s)
	return changed || ch, err
}

// mayFill reports whether child's head may fill an abstract node of par.
// Without groups every merge is allowed.
func (c *Cover) mayFill(par, child *Var) bool {
	if len(c.groups) == 0 {
		return true
	}
	p, ci := c.groupOf[par], c.groupOf[child]
	return c.groups[p].Deps == nil || c.deps[p].Has(ci)
}

// mergeCycle fails when following merges from some group leads back to it.
func mergeCycle(parent map[*Var]*Var) error {
	done := make(map[*Var]bool, len(parent))
	for start := range parent {
		path := make(map[*Var]bool)
		for v := start; v != nil && !done[v]; v = parent[v] {
			if path[v] {
				return fmt.Errorf("%w: %s is merged beneath itself", ErrInconsistent, v.Name())
			}
			path[v] = true
		}
		for v := range path {
			done[v] = true
		}
	}
	return nil
}

// propagateGroups keeps each group's sets in step with its selection.
func (c *Cover) propagateGroups(s *DStore) (bool, error) {
	changed := false
	for _, g := range c.groups {
		sel := g.Select.Upper(s)
		for _, set := range g.Sets {
			if set.Var == nil || set.Var.IsDet() || set.Values.IsEmpty() {
				continue
			}
			var ch bool
			var err error
			switch {
			case !sel.Has(0):
				ch, err = set.Var.Include(s, set.Values)
			case !sel.Has(1):
				ch, err = set.Var.Exclude(s, set.Values)
			case !set.Var.Lower(s).Intersect(set.Values).IsEmpty():
				ch, err = g.Select.Choose(s, 1)
			case !set.Values.SubsetOf(set.Var.Upper(s)):
				ch, err = g.Select.Choose(s, 0)
			}
			changed = changed || ch
			if err != nil {
				return changed, err
			}
			sel = g.Select.Upper(s)
		}
	}
	return changed, nil
}

// mirror narrows the slot's set variables to the current selections.
func (c *Cover) mirror(s *DStore, slot CoverSlot) (bool, error) {
	changed := false
	apply := func(v *Var, cands []CoverCand) error {
		if v == nil || v.IsDet() {
			return nil
		}
		var in, out []int
		for _, cand := range cands {
			switch {
			case selected(s, cand):
				in = append(in, cand.GNode)
			case excluded(s, cand):
				out = append(out, cand.GNode)
			}
		}
		ch, err := v.Include(s, NewIntSet(in...))
		changed = changed || ch
		if err != nil {
			return err
		}
		ch, err = v.Exclude(s, NewIntSet(out...))
		changed = changed || ch
		return err
	}
	all := append(append([]CoverCand{}, slot.Concrete...), slot.Abstract...)
	if err := apply(slot.GNodes, all); err != nil {
		return changed, err
	}
	if err := apply(slot.CGNodes, slot.Concrete); err != nil {
		return changed, err
	}
	if err := apply(slot.AGNodes, slot.Abstract); err != nil {
		return changed, err
	}
	return changed, nil
}
