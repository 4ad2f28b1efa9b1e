package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/gitrdm/kuaa/pkg/cs"
	"github.com/gitrdm/kuaa/pkg/lexicon"
)

// Lexicon is everything the pipeline needs from the language data.
// *lexicon.Lexicon implements it.
type Lexicon interface {
	lexicon.Analyzer
	lexicon.Catalog
	lexicon.Generator
	lexicon.Postprocessor
	SourceGroups() []*lexicon.Group
}

// sentencePunct is split off words into tokens of its own.
const sentencePunct = `.,;:!?¿¡"()`

// Tokenize splits raw text on whitespace, separates sentence punctuation
// from words and rewrites numerals as %num~N specials.
func Tokenize(raw string) []string {
	var out []string
	isPunct := func(r rune) bool { return strings.ContainsRune(sentencePunct, r) }
	for _, word := range strings.Fields(raw) {
		for {
			r, size := utf8.DecodeRuneInString(word)
			if size == 0 || !isPunct(r) {
				break
			}
			out = append(out, word[:size])
			word = word[size:]
		}
		var tail []string
		for {
			r, size := utf8.DecodeLastRuneInString(word)
			if size == 0 || !isPunct(r) {
				break
			}
			tail = append([]string{word[len(word)-size:]}, tail...)
			word = word[:len(word)-size]
		}
		if word != "" {
			if isNumber(word) {
				word = lexicon.SpecialPrefix + "num" + lexicon.SpecialSep + word
			}
			out = append(out, word)
		}
		out = append(out, tail...)
	}
	return out
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// Sentence is one solving episode: the sentence nodes, the group instances
// matched over them and the covering solver. It owns every node, instance
// and realization created while translating it.
type Sentence struct {
	ID     string
	Raw    string
	Tokens []string
	SNodes []*SNode
	GInsts []*GInst
	GNodes []*GNode

	Solutions []*Solution

	lex     Lexicon
	cfg     settings
	store   *cs.DStore
	cover   *cs.Cover
	solver  *cs.Solver
	prepped bool
}

// NewSentence tokenizes and analyzes raw.
func NewSentence(raw string, lex Lexicon, opts ...Option) *Sentence {
	return newSentence(raw, lex, newSettings(opts))
}

func newSentence(raw string, lex Lexicon, cfg settings) *Sentence {
	s := &Sentence{ID: uuid.NewString(), Raw: raw, Tokens: Tokenize(raw), lex: lex, cfg: cfg}
	s.cfg.logger = s.cfg.logger.With("sentence", s.ID)
	for i, tok := range s.Tokens {
		s.SNodes = append(s.SNodes, NewSNode(i, tok, lex.Analyze(tok), cfg.unifier))
	}
	s.store = cs.NewDStore(s.ID)
	return s
}

func (s *Sentence) String() string { return fmt.Sprintf("|| %s ||", strings.Join(s.Tokens, " ")) }

// Logger returns the sentence's logger.
func (s *Sentence) Logger() *slog.Logger { return s.cfg.logger }

// Lexicalize instantiates every source group that matches consecutive
// sentence nodes, then links abstract slots to the groups that can fill
// them and resolves translations.
func (s *Sentence) Lexicalize() error {
	s.GInsts, s.GNodes = nil, nil
	for _, sn := range s.SNodes {
		sn.gnodes = nil
	}
	for _, g := range s.lex.SourceGroups() {
		n := len(g.Tokens)
		for start := 0; start+n <= len(s.SNodes); start++ {
			spans, ok := s.match(g, start)
			if !ok {
				continue
			}
			gi, err := NewGInst(g, s.lex, start+g.Head, spans, len(s.GInsts))
			if err != nil {
				return err
			}
			s.GInsts = append(s.GInsts, gi)
		}
	}
	for _, gi := range s.GInsts {
		for _, gn := range gi.Nodes {
			gn.SentIndex = len(s.GNodes)
			s.GNodes = append(s.GNodes, gn)
			for _, idx := range gn.SNodeIndices {
				s.SNodes[idx].gnodes = append(s.SNodes[idx].gnodes, gn)
			}
		}
	}
	for _, gi := range s.GInsts {
		gi.Dependencies = nil
		for _, gn := range gi.Nodes {
			if !gn.Cat {
				continue
			}
			for _, other := range s.GInsts {
				if other != gi && !other.Head.Cat && sharesSNode(other.Head, gn) {
					gi.Dependencies = append(gi.Dependencies, other.Index)
				}
			}
		}
		if err := gi.SetTranslations(); err != nil {
			return err
		}
	}
	s.cfg.logger.Debug("lexicalized", "ginsts", len(s.GInsts), "gnodes", len(s.GNodes))
	return nil
}

func (s *Sentence) match(g *lexicon.Group, start int) ([][]SpanItem, bool) {
	spans := make([][]SpanItem, len(g.Tokens))
	for i, item := range g.Tokens {
		sn := s.SNodes[start+i]
		res, ok := sn.Match(item, g.FeaturesAt(i))
		if !ok || !sn.NegMatch(g.NegAt(i)) {
			return nil, false
		}
		if res == nil {
			spans[i] = []SpanItem{{SNode: sn.Index, Analysis: AnyAnalysis, Token: sn.Token, Create: true}}
			continue
		}
		for _, r := range res {
			spans[i] = append(spans[i], SpanItem{
				SNode:    sn.Index,
				Analysis: r.Analysis,
				Features: r.Features,
				Token:    sn.Token,
				Create:   true,
			})
		}
	}
	return spans, true
}

func sharesSNode(a, b *GNode) bool {
	for _, x := range a.SNodeIndices {
		for _, y := range b.SNodeIndices {
			if x == y {
				return true
			}
		}
	}
	return false
}

// CreateVariables creates the covering variables of every instance and node.
func (s *Sentence) CreateVariables() {
	for _, gi := range s.GInsts {
		gi.CreateVariables()
	}
	for _, sn := range s.SNodes {
		sn.CreateVariables()
	}
}

// CreateConstraints builds the covering propagator and solver.
func (s *Sentence) CreateConstraints() error {
	nonEmpty := func(v *cs.Var) *cs.Var {
		if v == cs.EMPTY {
			return nil
		}
		return v
	}
	slots := make([]cs.CoverSlot, len(s.SNodes))
	for i, sn := range s.SNodes {
		slot := cs.CoverSlot{
			GNodes:   nonEmpty(sn.Vars.GNodes),
			CGNodes:  nonEmpty(sn.Vars.CGNodes),
			AGNodes:  nonEmpty(sn.Vars.AGNodes),
			Analysis: nonEmpty(sn.Vars.Features),
		}
		for _, gn := range sn.gnodes {
			cand := cs.CoverCand{
				Select:   gn.GInst.Vars.Selected,
				GNode:    gn.SentIndex,
				Head:     gn == gn.GInst.Head,
				Position: gn.Vars.SNodes,
				Analyses: gn.Analyses(sn.Index),
			}
			if gn.Cat {
				slot.Abstract = append(slot.Abstract, cand)
			} else {
				slot.Concrete = append(slot.Concrete, cand)
			}
		}
		slots[i] = slot
	}
	groups := make([]cs.CoverGroup, len(s.GInsts))
	for i, gi := range s.GInsts {
		groups[i] = gi.coverGroup()
	}
	cover, err := cs.NewCover(slots, groups...)
	if err != nil {
		return fmt.Errorf("covering %s: %w", s, err)
	}
	s.cover = cover

	cfg := s.cfg.solver
	// Groups are tried selected first, so larger groups win.
	cfg.ValueHeuristic = cs.ValueDescending
	selected := make([]*cs.Var, len(s.GInsts))
	for i, gi := range s.GInsts {
		selected[i] = gi.Vars.Selected
	}
	opts := append(s.cfg.solverOptions("covering"), cs.WithConfig(cfg), cs.WithVariables(selected...))
	s.solver = cs.NewSolver("covering", []cs.Constraint{cover}, s.store, opts...)
	return nil
}

// Prepare runs lexicalization and creates the covering problem. Solve calls
// it when needed.
func (s *Sentence) Prepare() error {
	if s.prepped {
		return nil
	}
	if err := s.Lexicalize(); err != nil {
		return err
	}
	s.CreateVariables()
	if err := s.CreateConstraints(); err != nil {
		return err
	}
	s.prepped = true
	return nil
}

// Solve finds up to max coverings (all when max <= 0).
func (s *Sentence) Solve(ctx context.Context, max int) ([]*Solution, error) {
	if err := s.Prepare(); err != nil {
		return nil, err
	}
	s.Solutions = nil
	g := s.solver.Generator()
	for g.Next(ctx) {
		sol, err := newSolution(s, g.Store(), len(s.Solutions))
		if err != nil {
			return s.Solutions, err
		}
		s.Solutions = append(s.Solutions, sol)
		s.cfg.logger.Debug("covering found", "solution", sol.Index, "ginsts", len(sol.GInsts))
		if max > 0 && len(s.Solutions) >= max {
			break
		}
	}
	if err := g.Err(); err != nil {
		return s.Solutions, fmt.Errorf("covering %s: %w", s, err)
	}
	return s.Solutions, nil
}
