package lexicon

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gitrdm/kuaa/pkg/feat"
)

// GenEntry is one row of the generation table.
type GenEntry struct {
	Root     string          `yaml:"root" validate:"required"`
	POS      string          `yaml:"pos" validate:"required"`
	Features feat.FeatStruct `yaml:"features,omitempty"`
	Forms    []string        `yaml:"forms" validate:"required,min=1,dive,required"`
}

// Replacement is an orthographic postprocessing rule.
type Replacement struct {
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to"`
}

// Document is the on-disk form of a language pack.
type Document struct {
	Source   string                `yaml:"source" validate:"required"`
	Target   string                `yaml:"target" validate:"required"`
	Groups   []*Group              `yaml:"groups" validate:"dive,required"`
	Targets  []*Group              `yaml:"targets" validate:"dive,required"`
	Words    map[string][]Analysis `yaml:"words" validate:"dive,dive"`
	Generate []GenEntry            `yaml:"generate" validate:"dive"`
	Specials map[string]string     `yaml:"specials"`
	Postproc []Replacement         `yaml:"postproc" validate:"dive"`
}

// ValidationError lists every problem found in a language pack.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid lexicon: %s", strings.Join(e.Problems, "; "))
}

func (e *ValidationError) addf(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

var validate = validator.New()

// Lexicon is an in-memory language pack. It is read-only after loading and
// safe for concurrent use.
type Lexicon struct {
	doc      Document
	targets  map[string]*Group
	words    map[string][]Analysis
	gen      map[string][]GenEntry
	specials []string // keys of doc.Specials, longest first
}

// Load reads and validates a YAML language pack.
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	lex, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lex, nil
}

// Parse decodes and validates a YAML language pack. Unknown fields are
// rejected.
func Parse(data []byte) (*Lexicon, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode lexicon: %w", err)
	}
	return New(doc)
}

// New validates doc and indexes it.
func New(doc Document) (*Lexicon, error) {
	verr := &ValidationError{}
	if err := validate.Struct(doc); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, err
		}
		for _, fe := range fieldErrs {
			verr.addf("%s fails %q", fe.Namespace(), fe.Tag())
		}
		return nil, verr
	}

	lex := &Lexicon{
		doc:     doc,
		targets: make(map[string]*Group, len(doc.Targets)),
		words:   doc.Words,
		gen:     make(map[string][]GenEntry),
	}
	for i, g := range doc.Targets {
		g.ID = i
		if _, dup := lex.targets[g.Name]; dup {
			verr.addf("duplicate target group %q", g.Name)
		}
		lex.targets[g.Name] = g
		checkGroup(verr, "target "+g.Name, g)
	}
	names := make(map[string]bool, len(doc.Groups))
	for i, g := range doc.Groups {
		g.ID = i
		if names[g.Name] {
			verr.addf("duplicate group %q", g.Name)
		}
		names[g.Name] = true
		checkGroup(verr, "group "+g.Name, g)
		lex.checkTranslations(verr, g)
	}
	for word, analyses := range doc.Words {
		for i, a := range analyses {
			if err := a.Features.Validate(); err != nil {
				verr.addf("word %q analysis %d: %v", word, i, err)
			}
		}
	}
	for _, e := range doc.Generate {
		if err := e.Features.Validate(); err != nil {
			verr.addf("generate %s_%s: %v", e.Root, e.POS, err)
		}
		key := e.Root + "_" + e.POS
		lex.gen[key] = append(lex.gen[key], e)
	}
	if len(verr.Problems) > 0 {
		return nil, verr
	}

	for k := range doc.Specials {
		lex.specials = append(lex.specials, k)
	}
	sort.Slice(lex.specials, func(i, j int) bool {
		a, b := lex.specials[i], lex.specials[j]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
	return lex, nil
}

func checkGroup(verr *ValidationError, what string, g *Group) {
	n := len(g.Tokens)
	if g.Head >= n {
		verr.addf("%s: head %d out of range for %d tokens", what, g.Head, n)
	}
	if len(g.Features) != 0 && len(g.Features) != n {
		verr.addf("%s: %d feature entries for %d tokens", what, len(g.Features), n)
	}
	for i, fs := range g.Features {
		if err := fs.Validate(); err != nil {
			verr.addf("%s: token %d: %v", what, i, err)
		}
	}
	for _, c := range g.Neg {
		if c.Index >= n {
			verr.addf("%s: negative condition on position %d out of range", what, c.Index)
		}
		for _, s := range c.Specs {
			if (s.Cat == "") == (s.Features == nil) {
				verr.addf("%s: negative spec needs exactly one of cat or features", what)
			}
		}
	}
	for _, a := range g.Agr {
		if a.From >= n || a.To >= n {
			verr.addf("%s: agreement %d-%d out of range", what, a.From, a.To)
		}
	}
}

func (l *Lexicon) checkTranslations(verr *ValidationError, g *Group) {
	n := len(g.Tokens)
	for _, t := range g.Translations {
		tg, ok := l.targets[t.Target]
		if !ok {
			verr.addf("group %s: unknown target group %q", g.Name, t.Target)
			continue
		}
		m := len(tg.Tokens)
		if t.Align != nil {
			if len(t.Align) != n {
				verr.addf("group %s -> %s: alignment has %d entries for %d tokens", g.Name, t.Target, len(t.Align), n)
			}
			for i, a := range t.Align {
				if a < -1 || a >= m {
					verr.addf("group %s -> %s: token %d aligned to %d, target has %d tokens", g.Name, t.Target, i, a, m)
				}
			}
		}
		if t.Agr != nil && len(t.Agr) != n {
			verr.addf("group %s -> %s: %d agreement entries for %d tokens", g.Name, t.Target, len(t.Agr), n)
		}
		for i, a := range t.Agr {
			if a != nil && a.Index >= m {
				verr.addf("group %s -> %s: token %d agrees with target position %d out of range", g.Name, t.Target, i, a.Index)
			}
		}
	}
}

// Source returns the source language name.
func (l *Lexicon) Source() string { return l.doc.Source }

// Target returns the target language name.
func (l *Lexicon) Target() string { return l.doc.Target }

// SourceGroups returns the source groups in declaration order.
func (l *Lexicon) SourceGroups() []*Group { return l.doc.Groups }

// Analyze implements Analyzer. Unknown words are retried in lower case;
// unknown punctuation gets a single punctuation analysis.
func (l *Lexicon) Analyze(token string) []Analysis {
	if a, ok := l.words[token]; ok {
		return append([]Analysis(nil), a...)
	}
	if a, ok := l.words[strings.ToLower(token)]; ok {
		return append([]Analysis(nil), a...)
	}
	if IsPunct(token) {
		return []Analysis{{Root: token, POS: PuncPOS}}
	}
	return nil
}

// Translations implements Catalog.
func (l *Lexicon) Translations(g *Group) []Translation {
	out := append([]Translation(nil), g.Translations...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// TargetGroup implements Catalog.
func (l *Lexicon) TargetGroup(name string) (*Group, bool) {
	g, ok := l.targets[name]
	return g, ok
}

// TranslateSpecial implements Catalog. The longest specials key that
// prefixes the token's type wins; without one the literal after the
// separator (or the token itself) is returned.
func (l *Lexicon) TranslateSpecial(token string) string {
	typ := SpecialType(token)
	if lit, ok := l.doc.Specials[token]; ok {
		return lit
	}
	for _, k := range l.specials {
		if strings.HasPrefix(typ, k) {
			return l.doc.Specials[k]
		}
	}
	if _, lit, ok := strings.Cut(token, SpecialSep); ok {
		return lit
	}
	return token
}

// Generate implements Generator. Every table entry for root and pos whose
// features are compatible with the request contributes its forms.
func (l *Lexicon) Generate(root string, features feat.FeatStruct, pos string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range l.gen[root+"_"+pos] {
		if _, ok := feat.Unify(e.Features, features, false); !ok {
			continue
		}
		for _, f := range e.Forms {
			f = l.Postprocess(f)
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	if len(out) == 0 {
		return []string{root}
	}
	return out
}

// Postprocess implements Postprocessor.
func (l *Lexicon) Postprocess(token string) string {
	for _, r := range l.doc.Postproc {
		token = strings.ReplaceAll(token, r.From, r.To)
	}
	return token
}
