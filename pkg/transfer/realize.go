package transfer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gitrdm/kuaa/pkg/cs"
)

// RealizeOptions controls how many linearizations Realize produces.
type RealizeOptions struct {
	// All collects every linearization.
	All bool
	// Max caps the number of linearizations; zero means no cap.
	Max int
	// Continue is asked after each linearization when All is false;
	// returning true asks for another one. Nil stops after the first.
	Continue func(tt *TreeTrans, output int) bool
}

type member struct {
	node, index int
}

// MakeOrderPairs derives the precedence pairs between output nodes: nodes
// of one target group follow the group's token order, and when a group is
// merged into another's slot, the outer group's nodes before the slot
// precede the inner group's other nodes and those after it follow them.
func (tt *TreeTrans) MakeOrderPairs() error {
	tt.OrderPairs = nil
	var keys []GroupKey
	groups := make(map[GroupKey][]member)
	for i, n := range tt.Nodes {
		for _, t := range n.Targets {
			if _, ok := groups[t.GroupKey]; !ok {
				keys = append(keys, t.GroupKey)
			}
			groups[t.GroupKey] = append(groups[t.GroupKey], member{node: i, index: t.Index})
		}
	}

	seen := make(map[[2]int]bool)
	add := func(a, b int) error {
		if a == b || seen[[2]int{a, b}] {
			return nil
		}
		if seen[[2]int{b, a}] {
			return fmt.Errorf("%w: nodes %d and %d in %s", ErrOrderConflict, a, b, tt)
		}
		seen[[2]int{a, b}] = true
		tt.OrderPairs = append(tt.OrderPairs, [2]int{a, b})
		return nil
	}

	for _, k := range keys {
		ms := groups[k]
		sort.SliceStable(ms, func(i, j int) bool { return ms[i].index < ms[j].index })
		for i, a := range ms {
			for _, b := range ms[i+1:] {
				if err := add(a.node, b.node); err != nil {
					return err
				}
			}
		}
	}

	for _, m := range tt.Mergers {
		outer := groups[m.Outer]
		slot := -1
		for _, o := range outer {
			if o.node == m.Node {
				slot = o.index
				break
			}
		}
		if slot < 0 {
			continue
		}
		var inner []int
		for _, in := range groups[m.Inner] {
			if in.node != m.Node {
				inner = append(inner, in.node)
			}
		}
		for _, o := range outer {
			for _, in := range inner {
				var err error
				switch {
				case o.index < slot:
					err = add(o.node, in)
				case o.index > slot:
					err = add(in, o.node)
				}
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// CreateVariables creates one position variable per output node and the
// determined set of precedence pairs, in a fresh store.
func (tt *TreeTrans) CreateVariables() {
	n := len(tt.Nodes)
	tt.store = cs.NewDStore(fmt.Sprintf("TT%d", tt.Index))
	tt.orderVars = make([]*cs.Var, n)
	for i := range tt.orderVars {
		tt.orderVars[i] = cs.NewIVar(fmt.Sprintf("o%d", i), cs.Range(0, n), true)
	}
	codes := make([]int, 0, len(tt.OrderPairs))
	for _, p := range tt.OrderPairs {
		codes = append(codes, cs.PairCode(p[0], p[1], n))
	}
	tt.pairsVar = cs.NewDetVar(fmt.Sprintf("TT%d.pairs", tt.Index), cs.NewIntSet(codes...))
}

// CreateConstraints builds the ordering solver.
func (tt *TreeTrans) CreateConstraints() error {
	if tt.store == nil {
		return errors.New("ordering variables not created")
	}
	tt.constraints = nil
	if len(tt.orderVars) > 0 {
		prec, err := cs.NewPrecedenceSelection(tt.pairsVar, tt.orderVars)
		if err != nil {
			return err
		}
		order, err := cs.NewOrder(tt.orderVars)
		if err != nil {
			return err
		}
		tt.constraints = []cs.Constraint{prec, order}
	}
	opts := append(tt.cfg.solverOptions("ordering"), cs.WithConfig(tt.cfg.solver))
	tt.solver = cs.NewSolver("ordering", tt.constraints, tt.store, opts...)
	return nil
}

// Realize enumerates linearizations of the generated nodes, appending each
// to Outputs and OutputStrings. It returns how many were found. A tree with
// no nodes realizes as one empty output.
func (tt *TreeTrans) Realize(ctx context.Context, opts RealizeOptions) (int, error) {
	if len(tt.Nodes) == 0 {
		tt.appendOutput(nil)
		return 1, nil
	}
	if tt.solver == nil {
		return 0, errors.New("ordering constraints not created")
	}
	g := tt.solver.Generator()
	found := 0
	for g.Next(ctx) {
		st := g.Store()
		output := make([][]string, len(tt.Nodes))
		for i, v := range tt.orderVars {
			pos, err := v.IntValue(st)
			if err != nil {
				return found, err
			}
			output[pos] = tt.Nodes[i].Forms
		}
		tt.appendOutput(output)
		found++
		if opts.Max > 0 && found >= opts.Max {
			break
		}
		if opts.All {
			continue
		}
		if opts.Continue == nil || !opts.Continue(tt, len(tt.Outputs)-1) {
			break
		}
	}
	return found, g.Err()
}

func (tt *TreeTrans) appendOutput(output [][]string) {
	tt.Outputs = append(tt.Outputs, output)
	tt.OutputStrings = append(tt.OutputStrings, OutputString(output))
	tt.cfg.recorder.Realization()
}

// OutputString joins alternative forms of a word with "|" and words with
// spaces.
func OutputString(output [][]string) string {
	words := make([]string, len(output))
	for i, forms := range output {
		words[i] = strings.Join(forms, "|")
	}
	return strings.Join(words, " ")
}
