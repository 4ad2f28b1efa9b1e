// Package transfer is the group-matching and tree-realization engine.
//
// A Sentence is tokenized into SNodes. Lexicalization instantiates every
// source group that matches a span of the sentence as a GInst (one GNode
// per group position). A covering solver then selects GInsts so that every
// word is covered by exactly one concrete node, merging category slots
// (abstract nodes) with the heads of other groups. Each resulting tree is
// realized by a TreeTrans: target groups are combined, features unified and
// agreed, surface forms generated, and a second solver linearizes the
// output words under precedence constraints.
package transfer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gitrdm/kuaa/pkg/cs"
	"github.com/gitrdm/kuaa/pkg/feat"
	"github.com/gitrdm/kuaa/pkg/lexicon"
)

// Unifier is the feature-structure service. feat.Default implements it.
type Unifier interface {
	Unify(a, pattern feat.FeatStruct, strict bool) (feat.FeatStruct, bool)
	Agree(source, target feat.FeatStruct, pairs []feat.Pair) feat.FeatStruct
	MutualAgree(a, b feat.FeatStruct, pairs []feat.Pair) (feat.FeatStruct, feat.FeatStruct, bool)
}

// MatchResult is one analysis that satisfied a group item.
type MatchResult struct {
	Analysis int // index into the node's analyses
	Root     string
	Features feat.FeatStruct
}

// SNodeVars are the covering variables of a sentence node.
type SNodeVars struct {
	GNodes   *cs.Var // gnodes attached to the node: 0 to 2
	CGNodes  *cs.Var // concrete gnodes: exactly 1
	AGNodes  *cs.Var // abstract gnodes: 0 or 1
	Features *cs.Var // index of the chosen analysis; searched when ambiguous
}

// SNode is one token of the source sentence with its candidate analyses.
type SNode struct {
	Index    int
	Token    string
	Analyses []lexicon.Analysis
	Vars     SNodeVars

	unifier Unifier
	gnodes  []*GNode // candidates found during lexicalization
}

// NewSNode creates a sentence node. A token without analyses gets a
// single analysis whose root is the token. A nil unifier means feat.Default.
func NewSNode(index int, token string, analyses []lexicon.Analysis, u Unifier) *SNode {
	if len(analyses) == 0 {
		analyses = []lexicon.Analysis{{Root: token}}
	}
	if u == nil {
		u = feat.Default
	}
	return &SNode{Index: index, Token: token, Analyses: analyses, unifier: u}
}

func (n *SNode) String() string { return fmt.Sprintf("*%s:%d", n.Token, n.Index) }

// IsPunc reports whether the node is punctuation.
func (n *SNode) IsPunc() bool { return n.Analyses[0].POS == lexicon.PuncPOS }

// IsSpecial reports whether the token is special (a numeral, say).
func (n *SNode) IsSpecial() bool { return lexicon.IsSpecial(n.Token) }

// IsUnk reports whether the node has no POS, category or features.
func (n *SNode) IsUnk() bool {
	if n.IsSpecial() || strings.Contains(n.Token, lexicon.SpecialSep) {
		return false
	}
	a := n.Analyses[0]
	return a.POS == "" && len(a.Cats) == 0 && len(a.Features) == 0
}

// Cats returns the union of the categories of all analyses, sorted.
func (n *SNode) Cats() []string {
	set := make(map[string]bool)
	for _, a := range n.Analyses {
		for _, c := range a.Cats {
			set[c] = true
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Features returns one feature structure per analysis (empty when absent).
func (n *SNode) Features() []feat.FeatStruct {
	out := make([]feat.FeatStruct, len(n.Analyses))
	for i, a := range n.Analyses {
		if a.Features != nil {
			out[i] = a.Features
		} else {
			out[i] = feat.FeatStruct{}
		}
	}
	return out
}

// GNodes returns the candidate group nodes recorded by lexicalization.
func (n *SNode) GNodes() []*GNode { return n.gnodes }

// Match decides whether the node can fill a group item with feature
// constraints feats. It returns ok == false when no analysis matches. A
// nil result with ok == true is a trivial match with nothing to unify;
// otherwise there is one result per matching analysis.
func (n *SNode) Match(item string, feats feat.FeatStruct) ([]MatchResult, bool) {
	// Punctuation only matches punctuation items.
	if n.IsPunc() && lexicon.IsAlnum(item) {
		return nil, false
	}
	isCat := lexicon.IsCat(item)
	if lexicon.IsSpecial(item) && n.IsSpecial() &&
		strings.HasPrefix(lexicon.SpecialType(n.Token), item) {
		return nil, true
	}
	if isCat && lexicon.IsSet(item) {
		item = item[1:]
	}
	if !isCat && len(feats) == 0 && n.Token == item {
		return nil, true
	}

	var results []MatchResult
	for ai, a := range n.Analyses {
		root := a.Root
		if isCat {
			if !a.HasCat(item) {
				continue
			}
		} else {
			found := false
			for _, r := range lexicon.Roots(a.Root) {
				if r == item {
					root, found = r, true
					break
				}
			}
			if !found {
				continue
			}
		}
		switch {
		case len(a.Features) == 0:
			// The group has features but the analysis has none.
			results = append(results, MatchResult{Analysis: ai, Root: item, Features: feats})
		case len(feats) == 0:
			results = append(results, MatchResult{Analysis: ai, Root: root, Features: a.Features})
		default:
			// A true-valued group feature must be present in the analysis.
			if u, ok := n.unifier.Unify(a.Features, feats, true); ok {
				results = append(results, MatchResult{Analysis: ai, Root: root, Features: u})
			}
		}
	}
	if len(results) == 0 {
		return nil, false
	}
	return results, true
}

// NegMatch checks negative conditions. It succeeds only if every analysis
// fails to match at least one of the specs, so that no analysis satisfies
// them all. With no specs there is nothing to rule out.
func (n *SNode) NegMatch(specs []lexicon.NegSpec) bool {
	for _, a := range n.Analyses {
		failsOne := false
		for _, s := range specs {
			if !n.matchesSpec(a, s) {
				failsOne = true
				break
			}
		}
		if len(specs) > 0 && !failsOne {
			return false
		}
	}
	return true
}

func (n *SNode) matchesSpec(a lexicon.Analysis, s lexicon.NegSpec) bool {
	if s.Cat != "" {
		return a.HasCat(s.Cat) || a.POS == s.Cat
	}
	if len(a.Features) == 0 {
		return false
	}
	_, ok := n.unifier.Unify(a.Features, s.Features, true)
	return ok
}

// CreateVariables creates the node's covering variables from the candidate
// gnodes found during lexicalization. Nodes nothing can cover concretely get
// EMPTY everywhere.
func (n *SNode) CreateVariables() {
	var all, conc, abs []int
	for _, g := range n.gnodes {
		all = append(all, g.SentIndex)
		if g.Cat {
			abs = append(abs, g.SentIndex)
		} else {
			conc = append(conc, g.SentIndex)
		}
	}
	if len(conc) == 0 {
		n.Vars = SNodeVars{GNodes: cs.EMPTY, CGNodes: cs.EMPTY, AGNodes: cs.EMPTY, Features: cs.EMPTY}
		return
	}
	n.Vars.GNodes = cs.NewVar(fmt.Sprintf("w%d->gn", n.Index), cs.IntSet{}, cs.NewIntSet(all...), 0, 2, false)
	n.Vars.CGNodes = cs.NewVar(fmt.Sprintf("w%d->cgn", n.Index), cs.IntSet{}, cs.NewIntSet(conc...), 1, 1, false)
	if len(abs) > 0 {
		n.Vars.AGNodes = cs.NewVar(fmt.Sprintf("w%d->agn", n.Index), cs.IntSet{}, cs.NewIntSet(abs...), 0, 1, false)
	} else {
		n.Vars.AGNodes = cs.EMPTY
	}
	if len(n.Analyses) > 1 {
		n.Vars.Features = cs.NewIVar(fmt.Sprintf("w%df", n.Index), cs.Range(0, len(n.Analyses)), true)
	} else {
		n.Vars.Features = cs.NewDetVar(fmt.Sprintf("w%df", n.Index), cs.NewIntSet(0))
	}
}
