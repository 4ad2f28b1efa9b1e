package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/kuaa/pkg/cs"
	"github.com/gitrdm/kuaa/pkg/lexicon"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"John kicked the bucket.", []string{"John", "kicked", "the", "bucket", "."}},
		{"  ¿Qué pasa?  ", []string{"¿", "Qué", "pasa", "?"}},
		{"I have 12 cats", []string{"I", "have", "%num~12", "cats"}},
		{`"Hi," he said.`, []string{`"`, "Hi", ",", `"`, "he", "said", "."}},
		{"(3)", []string{"(", "%num~3", ")"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestSentence_Lexicalize(t *testing.T) {
	lex := kickLexicon(t)
	s := NewSentence("John kicked the bucket.", lex)
	require.Len(t, s.SNodes, 5)
	require.NoError(t, s.Lexicalize())

	var names []string
	for _, gi := range s.GInsts {
		names = append(names, gi.Group.Name)
	}
	assert.Equal(t, []string{"kick_the_bucket", "kick", "the", "bucket", "John"}, names)
	assert.Len(t, s.GNodes, 8)
	for i, gn := range s.GNodes {
		assert.Equal(t, i, gn.SentIndex)
	}
	assert.Len(t, s.SNodes[0].GNodes(), 2, "the subject slot and John")
	assert.Empty(t, s.SNodes[4].GNodes())
	assert.Equal(t, []int{4}, s.GInsts[0].Dependencies, "John can fill the idiom's slot")
	assert.Len(t, s.GInsts[0].Translations, 2)
}

func TestSentence_NegativeConditionBlocksIdiom(t *testing.T) {
	lex := kickLexicon(t)
	s := NewSentence("it kicked the bucket", lex)
	require.NoError(t, s.Lexicalize())
	for _, gi := range s.GInsts {
		assert.NotEqual(t, "kick_the_bucket", gi.Group.Name)
	}
}

func TestSentence_Solve(t *testing.T) {
	lex := kickLexicon(t)
	s := NewSentence("John kicked the bucket.", lex)
	sols, err := s.Solve(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sols, 2)

	idiom := sols[0]
	require.Len(t, idiom.GInsts, 2, "the idiom is tried first")
	assert.Equal(t, "kick_the_bucket", idiom.GInsts[0].Group.Name)
	require.Len(t, idiom.Trees, 1)
	assert.Equal(t, []int{0, 1, 2, 3}, idiom.Trees[0].SNodes)
	assert.Len(t, idiom.Trees[0].GInsts, 2)
	assert.Len(t, idiom.Choices[0].GNodes, 2)
	assert.Empty(t, idiom.Choices[4].GNodes)
	assert.Equal(t, "sg", idiom.SourceFeatures(1)["num"])

	literal := sols[1]
	assert.Len(t, literal.GInsts, 4)
	assert.Len(t, literal.Trees, 4)

	one, err := NewSentence("John kicked the bucket.", lex).Solve(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestSolution_Translate(t *testing.T) {
	lex := kickLexicon(t)
	s := NewSentence("John kicked the bucket.", lex)
	sols, err := s.Solve(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sols, 2)

	before := sols[0].Segments()
	require.Len(t, before, 2)
	assert.Equal(t, []string{"John kicked the bucket"}, before[0].Outputs, "untranslated trees keep the source")

	for _, sol := range sols {
		require.NoError(t, sol.Translate(context.Background(), RealizeOptions{}))
	}
	assert.Equal(t, "John murió .", sols[0].String())
	assert.Equal(t, "John pateó el balde .", sols[1].String())

	segs := sols[0].Segments()
	require.Len(t, segs, 2)
	assert.Equal(t, Segment{Start: 0, End: 4, Source: []string{"John", "kicked", "the", "bucket"}, Outputs: []string{"John murió"}, Tree: sols[0].Trees[0]}, segs[0])
	assert.Equal(t, []string{"."}, segs[1].Outputs)
	assert.Nil(t, segs[1].Tree)
}

func TestSolution_TranslateAll(t *testing.T) {
	lex := kickLexicon(t)
	sols, err := NewSentence("John kicked the bucket", lex).Solve(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, sols[0].Translate(context.Background(), RealizeOptions{All: true}))
	assert.Equal(t, []string{"John murió", "John pateó el balde"}, sols[0].Segments()[0].Outputs,
		"every combination is realized")
}

func TestSolution_TranslateContinue(t *testing.T) {
	lex := kickLexicon(t)
	translate := func(answer bool) (int, []string) {
		sols, err := NewSentence("John kicked the bucket", lex).Solve(context.Background(), 1)
		require.NoError(t, err)
		asked := 0
		require.NoError(t, sols[0].Translate(context.Background(), RealizeOptions{
			Continue: func(*TreeTrans, int) bool {
				asked++
				return answer
			},
		}))
		return asked, sols[0].Segments()[0].Outputs
	}

	asked, outputs := translate(false)
	assert.Equal(t, 1, asked)
	assert.Equal(t, []string{"John murió"}, outputs)

	asked, outputs = translate(true)
	assert.Equal(t, 2, asked, "asking for more moves on to the next target group")
	assert.Equal(t, []string{"John murió", "John pateó el balde"}, outputs)
}

type countingRecorder struct {
	mu           sync.Mutex
	results      map[string]int
	realizations int
	sentences    int
	stats        map[string]*cs.Stats
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{results: make(map[string]int), stats: map[string]*cs.Stats{
		"covering": cs.NewStats(),
		"ordering": cs.NewStats(),
	}}
}

func (r *countingRecorder) SolverMonitor(name string) cs.Monitor { return r.stats[name] }

func (r *countingRecorder) BuildResult(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result]++
}

func (r *countingRecorder) Realization() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.realizations++
}

func (r *countingRecorder) Sentence(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sentences++
}

func TestTranslator(t *testing.T) {
	lex := kickLexicon(t)
	rec := newCountingRecorder()
	tr := NewTranslator(lex, WithRecorder(rec))

	res, err := tr.Translate(context.Background(), "John kicked the bucket.", TranslateOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, []string{"John murió .", "John pateó el balde ."}, res.Translations)
	assert.Len(t, res.Solutions, 2)

	assert.Equal(t, 5, rec.results[ResultOK], "one tree for the idiom, four for the literal covering")
	assert.Equal(t, 5, rec.realizations)
	assert.Equal(t, 1, rec.sentences)
	assert.Equal(t, 2, rec.stats["covering"].Snapshot().SolutionsFound)
	assert.Positive(t, rec.stats["ordering"].Snapshot().SolutionsFound)
}

func TestTranslator_Specials(t *testing.T) {
	lex := kickLexicon(t)
	tr := NewTranslator(lex)

	res, err := tr.Translate(context.Background(), "2", TranslateOptions{Solutions: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"dos"}, res.Translations)

	res, err = tr.Translate(context.Background(), "it kicked 7", TranslateOptions{Solutions: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"it pateó 7"}, res.Translations, "uncovered words pass through")
}

func TestTranslator_ConstructionError(t *testing.T) {
	doc := lexicon.Document{
		Source: "eng",
		Target: "spa",
		Groups: []*lexicon.Group{{
			Name:         "x",
			Tokens:       []string{"x"},
			Translations: []lexicon.Translation{{Target: "y"}},
		}},
		Targets: []*lexicon.Group{{Name: "y", Tokens: []string{"y"}}},
	}
	lex, err := lexicon.New(doc)
	require.NoError(t, err)
	broken := &brokenCatalog{Lexicon: lex}

	_, err = NewTranslator(broken).Translate(context.Background(), "x", TranslateOptions{})
	var cerr *ConstructionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "x", cerr.Group)
}

// brokenCatalog forgets every target group.
type brokenCatalog struct {
	*lexicon.Lexicon
}

func (brokenCatalog) TargetGroup(string) (*lexicon.Group, bool) { return nil, false }

func TestSentence_Cancelled(t *testing.T) {
	lex := kickLexicon(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSentence("John kicked the bucket", lex).Solve(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
