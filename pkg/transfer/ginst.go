package transfer

import (
	"fmt"

	"github.com/gitrdm/kuaa/pkg/cs"
	"github.com/gitrdm/kuaa/pkg/feat"
	"github.com/gitrdm/kuaa/pkg/lexicon"
)

// AnyAnalysis marks a span item that does not depend on which analysis of
// the sentence node is chosen.
const AnyAnalysis = -1

// SpanItem is one way a sentence node fills a group position. A node with
// several matching analyses yields one item per analysis.
type SpanItem struct {
	SNode    int             // sentence node index
	Analysis int             // matching analysis, or AnyAnalysis
	Features feat.FeatStruct // features unified during matching
	Token    string          // the sentence token
	Create   bool            // false when the token is absorbed elsewhere
}

// GNode is one token position within a GInst.
type GNode struct {
	GInst        *GInst
	Index        int // position among the group's tokens
	SentIndex    int // index among all gnodes of the sentence
	SNodeIndices []int
	Items        []SpanItem
	GToken       string // the group token
	Token        string // the token this node stands for
	Cat          bool   // abstract: a category slot
	Special      bool
	Head         bool
	Features     feat.FeatStruct
	Vars         struct{ SNodes *cs.Var }
}

func newGNode(gi *GInst, index int, items []SpanItem) *GNode {
	g := &GNode{GInst: gi, Index: index, GToken: gi.Group.Tokens[index], Items: items}
	seen := make(map[int]bool)
	for _, it := range items {
		if !seen[it.SNode] {
			seen[it.SNode] = true
			g.SNodeIndices = append(g.SNodeIndices, it.SNode)
		}
	}
	g.Head = index == gi.Group.Head
	g.Token = g.GToken
	// A set node stands for the sentence token, not the category name.
	if lexicon.IsSet(g.GToken) && len(items) > 0 {
		g.Token = items[0].Token
	}
	if len(g.SNodeIndices) == 1 && lexicon.IsSpecial(items[0].Token) {
		g.Token = items[0].Token
	}
	g.Cat = lexicon.IsCat(g.Token)
	g.Special = lexicon.IsSpecial(g.Token)
	g.Features = gi.Group.FeaturesAt(index)
	return g
}

func (g *GNode) String() string { return fmt.Sprintf("%s|%s", g.GInst, g.Token) }

// MatchFeatures returns the features matched at sentence node sn under the
// given analysis, or nil. An item matched regardless of analysis serves
// every analysis.
func (g *GNode) MatchFeatures(sn, analysis int) feat.FeatStruct {
	var fallback feat.FeatStruct
	for _, it := range g.Items {
		if it.SNode != sn {
			continue
		}
		if it.Analysis == analysis {
			return it.Features
		}
		if it.Analysis == AnyAnalysis && fallback == nil {
			fallback = it.Features
		}
	}
	return fallback
}

// Analyses returns the analyses of sentence node sn the node matched. The
// empty set means the node accepts any analysis.
func (g *GNode) Analyses(sn int) cs.IntSet {
	var out []int
	for _, it := range g.Items {
		if it.SNode != sn {
			continue
		}
		if it.Analysis == AnyAnalysis {
			return cs.IntSet{}
		}
		out = append(out, it.Analysis)
	}
	return cs.NewIntSet(out...)
}

// CreateVariables creates the IVar binding the node to one of its
// candidate positions.
func (g *GNode) CreateVariables() {
	g.Vars.SNodes = cs.NewIVar(fmt.Sprintf("gn%d->w", g.SentIndex), cs.NewIntSet(g.SNodeIndices...), false)
}

// TNode is a target token that has no source counterpart.
type TNode struct {
	Token    string
	Features feat.FeatStruct
	Group    *lexicon.Group
	Index    int
}

func (t *TNode) String() string { return fmt.Sprintf("~%s:%d", t.Token, t.Index) }

// TargetNode is the resolved target side of one source gnode.
type TargetNode struct {
	GNode       *GNode
	Token       string
	Features    feat.FeatStruct
	Agr         []feat.Pair
	TargetIndex int
}

// Translation is one target-group candidate of a GInst.
type Translation struct {
	Target *lexicon.Group
	Nodes  []TargetNode
	TNodes []*TNode
}

// Node returns the resolved target node for gn, if gn is aligned.
func (t *Translation) Node(gn *GNode) (TargetNode, bool) {
	for _, n := range t.Nodes {
		if n.GNode == gn {
			return n, true
		}
	}
	return TargetNode{}, false
}

// GInstVars are the covering variables of a group instance.
type GInstVars struct {
	Selected   *cs.Var // {0,1}: whether the instance is part of the covering
	Deps       *cs.Var // det: instances that may fill an abstract node
	GNodesPos  *cs.Var
	AGNodesPos *cs.Var
	CGNodesPos *cs.Var
}

// Agreement is a within-group agreement constraint between two gnodes,
// given by sentence gnode index.
type Agreement struct {
	From, To int
	Pairs    []feat.Pair
}

// GInst is one instantiation of a source group over a span of the sentence.
type GInst struct {
	Group        *lexicon.Group
	Index        int
	HeadIndex    int // sentence node of the head
	Nodes        []*GNode
	Head         *GNode
	NGNodes      int
	NANodes      int
	NCGNodes     int
	Translations []Translation
	Dependencies []int // GInsts whose head can fill one of this instance's abstract nodes
	Vars         GInstVars

	catalog lexicon.Catalog
}

// NewGInst instantiates group over spans, one entry per group position.
// Positions with no candidate, or with any candidate whose Create is false,
// are dropped, and the
// group's head index is decremented for each dropped position at or before
// it.
func NewGInst(group *lexicon.Group, catalog lexicon.Catalog, headIndex int, spans [][]SpanItem, index int) (*GInst, error) {
	gi := &GInst{Group: group, Index: index, HeadIndex: headIndex, catalog: catalog}
	if len(spans) != len(group.Tokens) {
		return nil, gi.errorf("%d spans for %d group tokens", len(spans), len(group.Tokens))
	}
	head := group.Head
	for i, items := range spans {
		deleted := len(items) == 0
		for _, it := range items {
			if !it.Create {
				deleted = true
				break
			}
		}
		if deleted {
			if i <= group.Head {
				head--
			}
			continue
		}
		gi.Nodes = append(gi.Nodes, newGNode(gi, i, items))
	}
	if head < 0 || head >= len(gi.Nodes) {
		return nil, gi.errorf("head index %d out of range for %d nodes", head, len(gi.Nodes))
	}
	gi.Head = gi.Nodes[head]
	gi.NGNodes = len(gi.Nodes)
	for _, n := range gi.Nodes {
		if n.Cat {
			gi.NANodes++
		}
	}
	gi.NCGNodes = gi.NGNodes - gi.NANodes
	return gi, nil
}

func (gi *GInst) String() string { return fmt.Sprintf("<<%s:%d>>", gi.Group.Name, gi.Group.ID) }

// Span returns the sentence node indices covered by the instance.
func (gi *GInst) Span() []int {
	var out []int
	for _, n := range gi.Nodes {
		out = append(out, n.SNodeIndices...)
	}
	return out
}

func (gi *GInst) errorf(format string, args ...any) *ConstructionError {
	return &ConstructionError{Group: gi.Group.Name, Span: gi.Span(), Reason: fmt.Sprintf(format, args...)}
}

// PosPairs returns every ordered pair of gnode sentence indices.
func (gi *GInst) PosPairs() [][2]int {
	var out [][2]int
	for i, a := range gi.Nodes {
		for _, b := range gi.Nodes[i+1:] {
			out = append(out, [2]int{a.SentIndex, b.SentIndex})
		}
	}
	return out
}

// GNodeSentIndex converts a node index to a sentence gnode index.
func (gi *GInst) GNodeSentIndex(i int) int { return gi.Nodes[i].SentIndex }

// Agreements returns the group's agreement constraints over sentence gnode
// indices. Constraints on dropped positions are skipped.
func (gi *GInst) Agreements() []Agreement {
	pos := make(map[int]*GNode, len(gi.Nodes))
	for _, n := range gi.Nodes {
		pos[n.Index] = n
	}
	var out []Agreement
	for _, a := range gi.Group.Agr {
		from, ok1 := pos[a.From]
		to, ok2 := pos[a.To]
		if ok1 && ok2 {
			out = append(out, Agreement{From: from.SentIndex, To: to.SentIndex, Pairs: a.Pairs})
		}
	}
	return out
}

// CreateVariables creates the instance's covering variables over the
// candidate sentence positions.
func (gi *GInst) CreateVariables() {
	name := func(what string) string { return fmt.Sprintf("g%d->%s", gi.Index, what) }
	var all, abs, conc []int
	for _, n := range gi.Nodes {
		all = append(all, n.SNodeIndices...)
		if n.Cat {
			abs = append(abs, n.SNodeIndices...)
		} else {
			conc = append(conc, n.SNodeIndices...)
		}
		n.CreateVariables()
	}
	posVar := func(what string, pos []int) *cs.Var {
		set := cs.NewIntSet(pos...)
		return cs.NewVar(name(what), cs.IntSet{}, set, 0, set.Len(), false)
	}
	v := &gi.Vars
	v.Selected = cs.NewIVar(fmt.Sprintf("g%d", gi.Index), cs.NewIntSet(0, 1), true)
	if len(gi.Dependencies) > 0 {
		v.Deps = cs.NewDetVar(fmt.Sprintf("deps%d", gi.Index), cs.NewIntSet(gi.Dependencies...))
	} else {
		v.Deps = cs.EMPTY
	}
	// Position sets hold their positions while the instance is selected and
	// are empty otherwise.
	v.GNodesPos = posVar("gnodes_pos", all)
	if gi.NANodes == 0 {
		v.AGNodesPos = cs.EMPTY
		v.CGNodesPos = v.GNodesPos
	} else {
		v.AGNodesPos = posVar("agnodes_pos", abs)
		v.CGNodesPos = posVar("cgnodes_pos", conc)
	}
}

// coverGroup ties the instance's selection to its position sets.
func (gi *GInst) coverGroup() cs.CoverGroup {
	v := gi.Vars
	g := cs.CoverGroup{Select: v.Selected, Deps: v.Deps}
	for _, pos := range []*cs.Var{v.GNodesPos, v.CGNodesPos, v.AGNodesPos} {
		if pos == cs.EMPTY || (pos == v.CGNodesPos && pos == v.GNodesPos) {
			continue
		}
		g.Sets = append(g.Sets, cs.CoverSet{Var: pos, Values: pos.Upper(nil)})
	}
	return g
}

// SetTranslations resolves the group's target-group candidates, most
// frequent first. Missing alignments default to the identity, with
// positions beyond the target group mapped to no target. Target positions
// no source node aligns with become TNodes. Special nodes take the
// catalog's literal translation instead of the target token.
func (gi *GInst) SetTranslations() error {
	gi.Translations = nil
	ntokens := len(gi.Group.Tokens)
	for _, tr := range gi.catalog.Translations(gi.Group) {
		tgroup, ok := gi.catalog.TargetGroup(tr.Target)
		if !ok {
			return gi.errorf("unknown target group %q", tr.Target)
		}
		nttokens := len(tgroup.Tokens)
		alignment := tr.Align
		if alignment == nil {
			alignment = make([]int, ntokens)
			for i := range alignment {
				alignment[i] = i
				if i >= nttokens {
					alignment[i] = -1
				}
			}
		}
		if len(alignment) != ntokens {
			return gi.errorf("alignment to %s has %d entries for %d tokens", tgroup.Name, len(alignment), ntokens)
		}
		for i, a := range alignment {
			if a < -1 || a >= nttokens {
				return gi.errorf("token %d aligned to %d in %s with %d tokens", i, a, tgroup.Name, nttokens)
			}
		}
		if tr.Agr != nil && len(tr.Agr) != ntokens {
			return gi.errorf("%d agreement entries for %d tokens", len(tr.Agr), ntokens)
		}

		cand := Translation{Target: tgroup}
		if nttokens > ntokens {
			full := make(map[int]bool, len(alignment))
			for _, a := range alignment {
				full[a] = true
			}
			for i := 0; i < nttokens; i++ {
				if !full[i] {
					cand.TNodes = append(cand.TNodes, &TNode{
						Token:    tgroup.Tokens[i],
						Features: tgroup.FeaturesAt(i),
						Group:    tgroup,
						Index:    i,
					})
				}
			}
		}
		for _, gn := range gi.Nodes {
			tindex := alignment[gn.Index]
			if tindex < 0 {
				// No target token for this node.
				continue
			}
			var agrs []feat.Pair
			if tr.Agr != nil {
				if a := tr.Agr[gn.Index]; a != nil {
					if a.Index >= nttokens {
						return gi.errorf("token %d agrees with target position %d out of range", gn.Index, a.Index)
					}
					tindex, agrs = a.Index, a.Pairs
				}
			}
			token := tgroup.Tokens[tindex]
			if gn.Special {
				token = gi.catalog.TranslateSpecial(gn.Token)
			}
			cand.Nodes = append(cand.Nodes, TargetNode{
				GNode:       gn,
				Token:       token,
				Features:    tgroup.FeaturesAt(tindex),
				Agr:         agrs,
				TargetIndex: tindex,
			})
		}
		gi.Translations = append(gi.Translations, cand)
	}
	return nil
}
