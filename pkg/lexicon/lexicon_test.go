package lexicon

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/kuaa/pkg/feat"
)

func loadKick(t *testing.T) *Lexicon {
	t.Helper()
	lex, err := Load("testdata/kick.yaml")
	require.NoError(t, err)
	return lex
}

func TestLoad(t *testing.T) {
	lex := loadKick(t)

	assert.Equal(t, "eng", lex.Source())
	assert.Equal(t, "spa", lex.Target())
	require.Len(t, lex.SourceGroups(), 6)
	g := lex.SourceGroups()[0]
	assert.Equal(t, "kick_the_bucket", g.Name)
	assert.Equal(t, 0, g.ID)
	assert.Equal(t, 1, g.Head)
	assert.Equal(t, []NegSpec{{Cat: "$PRON"}}, g.NegAt(0))
	assert.Nil(t, g.NegAt(1))
	assert.Nil(t, g.FeaturesAt(0))

	morir, ok := lex.TargetGroup("morir")
	require.True(t, ok)
	assert.Equal(t, []string{"$N", "morir_v"}, morir.Tokens)
	_, ok = lex.TargetGroup("nope")
	assert.False(t, ok)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestTranslations_SortedByCount(t *testing.T) {
	lex := loadKick(t)
	g := &Group{Name: "g", Tokens: []string{"x"}, Translations: []Translation{
		{Target: "a", Count: 1},
		{Target: "b", Count: 5},
		{Target: "c", Count: 1},
		{Target: "d", Count: 5},
	}}

	var got []string
	for _, tr := range lex.Translations(g) {
		got = append(got, tr.Target)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, got, "ties keep declaration order")
	assert.Equal(t, "a", g.Translations[0].Target, "group data is not reordered")
}

func TestAnalyze(t *testing.T) {
	lex := loadKick(t)

	a := lex.Analyze("kicked")
	require.Len(t, a, 1)
	assert.Equal(t, "kick_v", a[0].Root)
	assert.Equal(t, "prt", a[0].Features["tns"])

	assert.Len(t, lex.Analyze("The"), 1, "lower-case fallback")
	assert.Equal(t, []Analysis{{Root: ".", POS: PuncPOS}}, lex.Analyze("."))
	assert.Nil(t, lex.Analyze("zebra"))
}

func TestGenerate(t *testing.T) {
	lex := loadKick(t)

	assert.Equal(t, []string{"murió"}, lex.Generate("morir", feat.FeatStruct{"tns": "prt", "per": 3, "num": "sg"}, "v"))
	assert.Equal(t, []string{"murió", "muere"}, lex.Generate("morir", nil, "v"), "ambiguity is preserved")
	assert.Equal(t, []string{"correr"}, lex.Generate("correr", nil, "v"), "unknown roots fall back")
}

func TestTranslateSpecial(t *testing.T) {
	lex := loadKick(t)

	assert.Equal(t, "uno", lex.TranslateSpecial("%num~1"))
	assert.Equal(t, "12", lex.TranslateSpecial("%num~12"))
	assert.Equal(t, "%date", lex.TranslateSpecial("%date"))
}

func TestPostprocess(t *testing.T) {
	lex := loadKick(t)
	assert.Equal(t, "la casa del perro", lex.Postprocess("la casa de el perro"))
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing languages",
			yaml: "groups: []",
			want: "Document.Source",
		},
		{
			name: "head out of range",
			yaml: `
source: a
target: b
groups:
  - {name: g, tokens: [x], head: 3}
`,
			want: "head 3 out of range",
		},
		{
			name: "unknown target",
			yaml: `
source: a
target: b
groups:
  - name: g
    tokens: [x]
    translations: [{target: t}]
`,
			want: "unknown target group",
		},
		{
			name: "alignment out of range",
			yaml: `
source: a
target: b
groups:
  - name: g
    tokens: [x, y]
    translations: [{target: t, align: [0, 2]}]
targets:
  - {name: t, tokens: [z, w]}
`,
			want: "aligned to 2",
		},
		{
			name: "alignment length",
			yaml: `
source: a
target: b
groups:
  - name: g
    tokens: [x, y]
    translations: [{target: t, align: [0]}]
targets:
  - {name: t, tokens: [z]}
`,
			want: "alignment has 1 entries",
		},
		{
			name: "non-atomic feature",
			yaml: `
source: a
target: b
words:
  x: [{root: x, features: {f: [1, 2]}}]
`,
			want: "not atomic",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Error(), tt.want)
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("source: a\ntarget: b\nextra: 1\n"))
	assert.Error(t, err)
}

func TestEntryConventions(t *testing.T) {
	assert.True(t, IsCat("$N"))
	assert.True(t, IsSet("$$day"))
	assert.False(t, IsSet("$N"))
	assert.True(t, IsSpecial("%num~3"))
	assert.Equal(t, "%num", SpecialType("%num~3"))

	root, pos := RootPOS("morir_v")
	assert.Equal(t, "morir", root)
	assert.Equal(t, "v", pos)
	root, pos = RootPOS("Ty_q")
	assert.Equal(t, "Ty_q", root)
	assert.Empty(t, pos)
	root, pos = RootPOS("%num_v")
	assert.Equal(t, "%num_v", root)
	assert.Empty(t, pos)
	assert.True(t, IsLexeme("balde_n"))
	assert.False(t, IsLexeme("el"))

	assert.Equal(t, []string{"ser_v", "ir_v"}, Roots("ser|ir_v"))
	assert.Equal(t, []string{"banco_n"}, Roots("banco_n"))
	assert.True(t, IsPunct("..."))
	assert.False(t, IsPunct("$N2"))
	assert.True(t, IsAlnum("abc1"))
	assert.False(t, IsAlnum("$N"))
}
