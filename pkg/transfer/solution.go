package transfer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gitrdm/kuaa/pkg/cs"
	"github.com/gitrdm/kuaa/pkg/feat"
)

// Tree is a selected top GInst with every GInst merged beneath it.
type Tree struct {
	Top    *GInst
	GInsts []*GInst // top first, then merged instances in index order
	SNodes []int    // covered sentence nodes, ascending
	Trans  *TreeTrans
}

// Segment is a contiguous span of the sentence with its translations.
type Segment struct {
	Start, End int // sentence node range [Start, End)
	Source     []string
	Outputs    []string
	Tree       *Tree // nil for nodes outside every tree
}

// Solution is one covering of the sentence.
type Solution struct {
	Index    int
	Sentence *Sentence
	Choices  []NodeChoice // per sentence node
	GInsts   []*GInst     // selected instances
	Trees    []*Tree

	segments []Segment
}

func newSolution(s *Sentence, store *cs.DStore, index int) (*Solution, error) {
	sol := &Solution{Index: index, Sentence: s, Choices: make([]NodeChoice, len(s.SNodes))}
	selected := make(map[*GInst]bool)
	for _, gi := range s.GInsts {
		v, err := gi.Vars.Selected.IntValue(store)
		if err != nil {
			return nil, fmt.Errorf("solution %d: %w", index, err)
		}
		if v == 1 {
			selected[gi] = true
			sol.GInsts = append(sol.GInsts, gi)
		}
	}

	parent := make(map[*GInst]*GInst)
	for i, sn := range s.SNodes {
		ch := NodeChoice{}
		for _, gn := range sn.gnodes {
			if selected[gn.GInst] {
				ch.GNodes = append(ch.GNodes, gn)
			}
		}
		abs, conc := splitChoice(ch.GNodes)
		a := analysisIndex(sn, store)
		if conc != nil {
			ch.Features = conc.MatchFeatures(sn.Index, a)
		}
		if ch.Features == nil {
			ch.Features = sn.Features()[a]
		}
		if abs != nil && conc != nil {
			parent[conc.GInst] = abs.GInst
		}
		sol.Choices[i] = ch
	}

	children := make(map[*GInst][]*GInst)
	for _, gi := range sol.GInsts {
		if p, ok := parent[gi]; ok {
			children[p] = append(children[p], gi)
		}
	}
	for _, gi := range sol.GInsts {
		if _, merged := parent[gi]; merged {
			continue
		}
		sol.Trees = append(sol.Trees, newTree(gi, children, store))
	}
	inTrees := 0
	for _, t := range sol.Trees {
		inTrees += len(t.GInsts)
	}
	if inTrees != len(sol.GInsts) {
		return nil, fmt.Errorf("solution %d: %d of %d instances are merged in a cycle",
			index, len(sol.GInsts)-inTrees, len(sol.GInsts))
	}
	return sol, nil
}

func analysisIndex(sn *SNode, store *cs.DStore) int {
	if sn.Vars.Features == nil || sn.Vars.Features == cs.EMPTY || !sn.Vars.Features.Determined(store) {
		return 0
	}
	i, err := sn.Vars.Features.IntValue(store)
	if err != nil || i < 0 || i >= len(sn.Analyses) {
		return 0
	}
	return i
}

func newTree(top *GInst, children map[*GInst][]*GInst, store *cs.DStore) *Tree {
	t := &Tree{Top: top, GInsts: []*GInst{top}}
	var below []*GInst
	queue := append([]*GInst(nil), children[top]...)
	seen := map[*GInst]bool{top: true}
	for len(queue) > 0 {
		gi := queue[0]
		queue = queue[1:]
		if seen[gi] {
			continue
		}
		seen[gi] = true
		below = append(below, gi)
		queue = append(queue, children[gi]...)
	}
	sort.Slice(below, func(i, j int) bool { return below[i].Index < below[j].Index })
	t.GInsts = append(t.GInsts, below...)

	nodes := make(map[int]bool)
	for _, gi := range t.GInsts {
		for _, i := range gi.Vars.GNodesPos.Lower(store).Values() {
			nodes[i] = true
		}
	}
	for i := range nodes {
		t.SNodes = append(t.SNodes, i)
	}
	sort.Ints(t.SNodes)
	return t
}

func (t *Tree) String() string {
	names := make([]string, len(t.GInsts))
	for i, gi := range t.GInsts {
		names[i] = gi.String()
	}
	return fmt.Sprintf("{%s %v}", strings.Join(names, "+"), t.SNodes)
}

// combinations enumerates one translation per GInst: the first GInst varies
// slowest and each list keeps catalog order.
func combinations(ginsts []*GInst) [][]Choice {
	for _, gi := range ginsts {
		if len(gi.Translations) == 0 {
			return nil
		}
	}
	var out [][]Choice
	idx := make([]int, len(ginsts))
	for {
		combo := make([]Choice, len(ginsts))
		for i, gi := range ginsts {
			combo[i] = Choice{GInst: gi, Translation: &gi.Translations[idx[i]]}
		}
		out = append(out, combo)
		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(ginsts[i].Translations) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}

// Translate realizes every tree of the solution. A tree whose combinations
// all fail, or whose instances have no translations, keeps its source
// words.
func (sol *Solution) Translate(ctx context.Context, opts RealizeOptions) error {
	s := sol.Sentence
	for i, tree := range sol.Trees {
		snodes := make([]*SNode, len(tree.SNodes))
		choices := make([]NodeChoice, len(tree.SNodes))
		for j, idx := range tree.SNodes {
			snodes[j] = s.SNodes[idx]
			choices[j] = sol.Choices[idx]
		}
		tt, err := newTreeTrans(i, tree.Top, snodes, choices, s.lex, s.lex, s.cfg)
		if err != nil {
			return err
		}
		tree.Trans = tt
		if err := sol.realize(ctx, tt, tree, opts); err != nil {
			return err
		}
	}
	sol.segments = sol.buildSegments()
	return nil
}

func (sol *Solution) realize(ctx context.Context, tt *TreeTrans, tree *Tree, opts RealizeOptions) error {
	rec := sol.Sentence.cfg.recorder
	log := tt.cfg.logger
	combos := combinations(tree.GInsts)
	if len(combos) == 0 {
		log.Warn("no translation", "tree", tree.String())
	}
	for _, combo := range combos {
		ok, err := tt.Build(combo)
		if err != nil {
			rec.BuildResult(ResultError)
			return err
		}
		if !ok {
			rec.BuildResult(failureResult(tt.LastFailure))
			continue
		}
		if err := tt.GenerateWords(); err != nil {
			if errors.Is(err, ErrAgreement) {
				log.Debug("combination rejected", "error", err)
				rec.BuildResult(ResultAgreement)
				continue
			}
			rec.BuildResult(ResultError)
			return err
		}
		if err := tt.MakeOrderPairs(); err != nil {
			if errors.Is(err, ErrOrderConflict) {
				log.Debug("combination rejected", "error", err)
				rec.BuildResult(ResultOrder)
				continue
			}
			rec.BuildResult(ResultError)
			return err
		}
		tt.CreateVariables()
		if err := tt.CreateConstraints(); err != nil {
			rec.BuildResult(ResultError)
			return err
		}
		ro := opts
		if opts.Max > 0 {
			ro.Max = opts.Max - len(tt.OutputStrings)
		}
		// more records the last answer, so that a request for another
		// realization moves on to the next combination once this one is
		// exhausted.
		more := false
		if opts.Continue != nil {
			ro.Continue = func(cur *TreeTrans, output int) bool {
				more = opts.Continue(cur, output)
				return more
			}
		}
		if _, err := tt.Realize(ctx, ro); err != nil {
			rec.BuildResult(ResultError)
			return err
		}
		rec.BuildResult(ResultOK)
		n := len(tt.OutputStrings)
		if opts.Max > 0 && n >= opts.Max {
			break
		}
		if n > 0 && !opts.All && !more {
			break
		}
	}
	if len(tt.OutputStrings) == 0 && len(combos) > 0 {
		log.Warn("every combination failed", "tree", tree.String(), "error", tt.LastFailure)
	}
	return nil
}

func failureResult(err error) string {
	switch {
	case errors.Is(err, ErrUnification):
		return ResultUnification
	case errors.Is(err, ErrAgreement):
		return ResultAgreement
	default:
		return ResultError
	}
}

// sourceForm renders an untranslated node.
func (sol *Solution) sourceForm(sn *SNode) string {
	if sn.IsSpecial() {
		return sol.Sentence.lex.TranslateSpecial(sn.Token)
	}
	return sol.Sentence.lex.Postprocess(sn.Token)
}

func (sol *Solution) buildSegments() []Segment {
	s := sol.Sentence
	covered := make(map[int]bool)
	var segs []Segment
	for _, tree := range sol.Trees {
		seg := Segment{Start: tree.SNodes[0], End: tree.SNodes[len(tree.SNodes)-1] + 1, Tree: tree}
		var fallback []string
		for _, i := range tree.SNodes {
			covered[i] = true
			seg.Source = append(seg.Source, s.Tokens[i])
			fallback = append(fallback, sol.sourceForm(s.SNodes[i]))
		}
		if tree.Trans != nil && len(tree.Trans.OutputStrings) > 0 {
			seg.Outputs = append([]string(nil), tree.Trans.OutputStrings...)
		} else {
			seg.Outputs = []string{strings.Join(fallback, " ")}
		}
		segs = append(segs, seg)
	}
	for i, sn := range s.SNodes {
		if covered[i] {
			continue
		}
		segs = append(segs, Segment{Start: i, End: i + 1, Source: []string{sn.Token}, Outputs: []string{sol.sourceForm(sn)}})
	}
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
	return segs
}

// Segments returns the solution's spans in sentence order. Before
// Translate every output is the source text.
func (sol *Solution) Segments() []Segment {
	if sol.segments == nil {
		return sol.buildSegments()
	}
	return sol.segments
}

// String renders the first translation of each segment.
func (sol *Solution) String() string {
	var words []string
	for _, seg := range sol.Segments() {
		if len(seg.Outputs) > 0 && seg.Outputs[0] != "" {
			words = append(words, seg.Outputs[0])
		}
	}
	return strings.Join(words, " ")
}

// SourceFeatures returns the features chosen for sentence node i.
func (sol *Solution) SourceFeatures(i int) feat.FeatStruct { return sol.Choices[i].Features }
