package transfer

import (
	"fmt"

	"github.com/gitrdm/kuaa/pkg/cs"
	"github.com/gitrdm/kuaa/pkg/feat"
	"github.com/gitrdm/kuaa/pkg/lexicon"
)

// GroupKey identifies one target group instance within a tree: the target
// group name and the index of the GInst it translates.
type GroupKey struct {
	Group string
	Inst  int
}

func (k GroupKey) String() string { return fmt.Sprintf("%s@%d", k.Group, k.Inst) }

// TargetPos is one position of a target group instance.
type TargetPos struct {
	GroupKey
	Index int
}

// NodeFeature is one output node before generation.
type NodeFeature struct {
	Token    string
	Features feat.FeatStruct
	Targets  []TargetPos
}

// Merger records that a node merges the head of Inner into an abstract
// slot of Outer.
type Merger struct {
	Node  int // index into NodeFeatures
	Inner GroupKey
	Outer GroupKey
}

// NodeChoice is the covering of one tree snode: its selected gnodes (zero,
// one, or an abstract and concrete pair) and the features of the chosen
// analysis.
type NodeChoice struct {
	GNodes   []*GNode
	Features feat.FeatStruct
}

// Choice picks one translation for one GInst of the tree.
type Choice struct {
	GInst       *GInst
	Translation *Translation
}

// OutputNode is a generated output word with its target positions.
type OutputNode struct {
	Forms   []string
	Targets []TargetPos
}

type cacheKey struct {
	A, B   TargetPos
	merged bool
}

type cachedNode struct {
	nf     NodeFeature
	merger *Merger
}

type groupAgreement struct {
	key GroupKey
	agr lexicon.Agreement
}

// TreeTrans realizes one tree of a covering: it combines target groups,
// generates surface forms and orders them.
//
// A TreeTrans is not safe for concurrent use.
type TreeTrans struct {
	Index   int
	Top     *GInst
	SNodes  []*SNode
	Choices []NodeChoice

	NodeFeatures []*NodeFeature
	GroupNodes   map[TargetPos]*NodeFeature
	Mergers      []Merger
	Nodes        []OutputNode
	OrderPairs   [][2]int

	Outputs       [][][]string
	OutputStrings []string

	// LastFailure holds the recoverable error of the last rejected
	// combination.
	LastFailure error

	gen        lexicon.Generator
	post       lexicon.Postprocessor
	cfg        settings
	cache      map[cacheKey]cachedNode
	agreements []groupAgreement

	store       *cs.DStore
	orderVars   []*cs.Var
	pairsVar    *cs.Var
	constraints []cs.Constraint
	solver      *cs.Solver
}

// NewTreeTrans creates the realization of the tree headed by top. snodes
// are the tree's sentence nodes in sentence order, choices the parallel
// per-node coverings. post may be nil.
func NewTreeTrans(index int, top *GInst, snodes []*SNode, choices []NodeChoice,
	gen lexicon.Generator, post lexicon.Postprocessor, opts ...Option) (*TreeTrans, error) {
	return newTreeTrans(index, top, snodes, choices, gen, post, newSettings(opts))
}

func newTreeTrans(index int, top *GInst, snodes []*SNode, choices []NodeChoice,
	gen lexicon.Generator, post lexicon.Postprocessor, cfg settings) (*TreeTrans, error) {
	if len(snodes) != len(choices) {
		return nil, top.errorf("%d choices for %d tree nodes", len(choices), len(snodes))
	}
	if gen == nil {
		return nil, top.errorf("no generator")
	}
	tt := &TreeTrans{
		Index:   index,
		Top:     top,
		SNodes:  snodes,
		Choices: choices,
		gen:     gen,
		post:    post,
		cfg:     cfg,
		cache:   make(map[cacheKey]cachedNode),
	}
	tt.cfg.logger = tt.cfg.logger.With("tree", index)
	return tt, nil
}

func (tt *TreeTrans) String() string { return fmt.Sprintf("TT%d%v", tt.Index, tt.Top) }

// fail records a recoverable failure of the current combination.
func (tt *TreeTrans) fail(err error) (bool, error) {
	tt.LastFailure = err
	tt.cfg.logger.Debug("combination rejected", "error", err)
	return false, nil
}

// Build assembles the node features of one target-group combination.
// A false result with nil error means the combination is rejected (see
// LastFailure); errors are construction errors.
//
// Build is idempotent: rebuilding the same combination reuses cached node
// features without unifying again.
func (tt *TreeTrans) Build(combo []Choice) (bool, error) {
	tt.LastFailure = nil
	tt.NodeFeatures = nil
	tt.GroupNodes = make(map[TargetPos]*NodeFeature)
	tt.Mergers = nil
	tt.Nodes = nil
	tt.agreements = nil

	chosen := make(map[*GInst]*Choice, len(combo))
	for i := range combo {
		if combo[i].Translation == nil {
			return false, combo[i].GInst.errorf("no translation chosen")
		}
		chosen[combo[i].GInst] = &combo[i]
	}
	if chosen[tt.Top] == nil {
		return false, tt.Top.errorf("combination does not translate the top group")
	}

	lookup := func(gn *GNode) (TargetNode, GroupKey, bool, error) {
		c := chosen[gn.GInst]
		if c == nil {
			return TargetNode{}, GroupKey{}, false, gn.GInst.errorf("no target group chosen for %s", gn)
		}
		key := GroupKey{Group: c.Translation.Target.Name, Inst: gn.GInst.Index}
		tn, ok := c.Translation.Node(gn)
		return tn, key, ok, nil
	}
	add := func(nf *NodeFeature) int {
		tt.NodeFeatures = append(tt.NodeFeatures, nf)
		for _, t := range nf.Targets {
			tt.GroupNodes[t] = nf
		}
		return len(tt.NodeFeatures) - 1
	}
	reuse := func(c cachedNode) {
		nf := c.nf
		idx := add(&nf)
		if c.merger != nil {
			tt.Mergers = append(tt.Mergers, Merger{Node: idx, Inner: c.merger.Inner, Outer: c.merger.Outer})
		}
	}

	for i, sn := range tt.SNodes {
		ch := tt.Choices[i]
		abs, conc := splitChoice(ch.GNodes)
		switch {
		case conc == nil:
			add(&NodeFeature{Token: sn.Token})

		case abs != nil:
			ta, ka, okA, err := lookup(abs)
			if err != nil {
				return false, err
			}
			tc, kc, okC, err := lookup(conc)
			if err != nil {
				return false, err
			}
			if !okC || !okA {
				// One side has no target token: nothing to merge.
				if okC {
					tt.single(tc, kc, ch.Features, add, reuse)
				}
				continue
			}
			outer := TargetPos{GroupKey: ka, Index: ta.TargetIndex}
			inner := TargetPos{GroupKey: kc, Index: tc.TargetIndex}
			key := cacheKey{A: inner, B: outer, merged: true}
			if c, ok := tt.cache[key]; ok {
				reuse(c)
				continue
			}
			feats, ok := tt.cfg.unifier.Unify(ta.Features, tc.Features, false)
			if !ok {
				return tt.fail(fmt.Errorf("%w: %s %v and %s %v", ErrUnification, ta.Token, ta.Features, tc.Token, tc.Features))
			}
			agrs, ok := feat.MergePairs(ta.Agr, tc.Agr)
			if !ok {
				return tt.fail(fmt.Errorf("%w: agreement pairs of %s and %s", ErrAgreement, ta.Token, tc.Token))
			}
			if len(agrs) > 0 && ch.Features != nil {
				feats = tt.cfg.unifier.Agree(ch.Features, feats, agrs)
			}
			nf := NodeFeature{Token: tc.Token, Features: feats, Targets: []TargetPos{outer, inner}}
			m := Merger{Inner: kc, Outer: ka}
			tt.cache[key] = cachedNode{nf: nf, merger: &m}
			reuse(tt.cache[key])

		default:
			tn, k, ok, err := lookup(conc)
			if err != nil {
				return false, err
			}
			if !ok {
				tt.cfg.logger.Debug("unaligned node", "gnode", conc.String())
				continue
			}
			tt.single(tn, k, ch.Features, add, reuse)
		}
	}

	for _, c := range combo {
		key := GroupKey{Group: c.Translation.Target.Name, Inst: c.GInst.Index}
		for _, tn := range c.Translation.TNodes {
			add(&NodeFeature{Token: tn.Token, Features: tn.Features.Copy(), Targets: []TargetPos{{GroupKey: key, Index: tn.Index}}})
		}
		for _, a := range c.Translation.Target.Agr {
			tt.agreements = append(tt.agreements, groupAgreement{key: key, agr: a})
		}
	}
	tt.cfg.logger.Debug("combination built", "nodes", len(tt.NodeFeatures), "mergers", len(tt.Mergers))
	return true, nil
}

// single adds the output node of an unmerged gnode.
func (tt *TreeTrans) single(tn TargetNode, k GroupKey, srcFeats feat.FeatStruct,
	add func(*NodeFeature) int, reuse func(cachedNode)) {
	pos := TargetPos{GroupKey: k, Index: tn.TargetIndex}
	key := cacheKey{A: pos}
	if c, ok := tt.cache[key]; ok {
		reuse(c)
		return
	}
	feats := tn.Features
	if len(tn.Agr) > 0 && srcFeats != nil {
		feats = tt.cfg.unifier.Agree(srcFeats, feats, tn.Agr)
	}
	tt.cache[key] = cachedNode{nf: NodeFeature{Token: tn.Token, Features: feats, Targets: []TargetPos{pos}}}
	add(&NodeFeature{Token: tn.Token, Features: feats, Targets: []TargetPos{pos}})
}

// splitChoice separates the abstract and concrete gnodes of a covering.
func splitChoice(gnodes []*GNode) (abs, conc *GNode) {
	for _, g := range gnodes {
		if g.Cat {
			if abs == nil {
				abs = g
			}
		} else if conc == nil {
			conc = g
		}
	}
	return abs, conc
}

// GenerateWords enforces the target groups' internal agreements and
// generates the surface forms of every node.
func (tt *TreeTrans) GenerateWords() error {
	for _, ga := range tt.agreements {
		n1 := tt.GroupNodes[TargetPos{GroupKey: ga.key, Index: ga.agr.From}]
		n2 := tt.GroupNodes[TargetPos{GroupKey: ga.key, Index: ga.agr.To}]
		if n1 == nil || n2 == nil {
			continue
		}
		f1, f2, ok := tt.cfg.unifier.MutualAgree(n1.Features, n2.Features, ga.agr.Pairs)
		if !ok {
			return fmt.Errorf("%w: %s and %s in %s", ErrAgreement, n1.Token, n2.Token, ga.key)
		}
		n1.Features, n2.Features = f1, f2
	}
	tt.Nodes = make([]OutputNode, 0, len(tt.NodeFeatures))
	for _, nf := range tt.NodeFeatures {
		var forms []string
		root, pos := lexicon.RootPOS(nf.Token)
		if pos == "" {
			tok := nf.Token
			if tt.post != nil {
				tok = tt.post.Postprocess(tok)
			}
			forms = []string{tok}
		} else {
			forms = tt.gen.Generate(root, nf.Features, pos)
			if len(forms) == 0 {
				forms = []string{root}
			}
		}
		tt.Nodes = append(tt.Nodes, OutputNode{Forms: forms, Targets: nf.Targets})
	}
	tt.cfg.logger.Debug("words generated", "nodes", len(tt.Nodes))
	return nil
}
