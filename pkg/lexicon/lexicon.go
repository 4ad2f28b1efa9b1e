// Package lexicon holds the language data the transfer engine works from:
// source and target groups, their translations, word analyses, generation
// tables and special-token literals.
//
// The engine only depends on the capability interfaces (Analyzer, Catalog,
// Generator, Postprocessor). Lexicon is a YAML-backed implementation of all
// of them, good enough for small language packs, tests and demonstrations;
// real deployments plug in morphological analyzers and generators.
package lexicon

import (
	"github.com/gitrdm/kuaa/pkg/feat"
)

// Analysis is one morphological reading of a token.
type Analysis struct {
	Root     string          `yaml:"root" validate:"required"`
	POS      string          `yaml:"pos,omitempty"`
	Cats     []string        `yaml:"cats,omitempty"`
	Features feat.FeatStruct `yaml:"features,omitempty"`
}

// HasCat reports whether cat is among the analysis categories.
func (a Analysis) HasCat(cat string) bool {
	for _, c := range a.Cats {
		if c == cat {
			return true
		}
	}
	return false
}

// NegSpec is one negative condition: a category (or POS) or a feature
// structure that a token must not match.
type NegSpec struct {
	Cat      string          `yaml:"cat,omitempty"`
	Features feat.FeatStruct `yaml:"features,omitempty"`
}

// NegCondition attaches negative specs to one group position.
type NegCondition struct {
	Index int       `yaml:"index" validate:"gte=0"`
	Specs []NegSpec `yaml:"specs" validate:"required,min=1"`
}

// Agreement requires two positions of a group to agree on feature pairs.
type Agreement struct {
	From  int         `yaml:"from" validate:"gte=0"`
	To    int         `yaml:"to" validate:"gte=0"`
	Pairs []feat.Pair `yaml:"pairs" validate:"required,min=1,dive"`
}

// TokenAgr maps one source token to a target position and lists the
// source features the target token takes over.
type TokenAgr struct {
	Index int         `yaml:"index" validate:"gte=0"`
	Pairs []feat.Pair `yaml:"pairs" validate:"required,min=1,dive"`
}

// Translation links a source group with one target group.
//
// Align gives, per source token, the target position it maps to (-1 for
// none); a nil Align means the identity alignment. Agr, when present, has
// one entry per source token (nil for tokens without agreement).
type Translation struct {
	Target string      `yaml:"target" validate:"required"`
	Align  []int       `yaml:"align,omitempty"`
	Agr    []*TokenAgr `yaml:"agr,omitempty" validate:"omitempty,dive,omitnil"`
	Count  int         `yaml:"count,omitempty" validate:"gte=0"`
}

// Group is a multi-token pattern: an idiom, a collocation or a single word.
type Group struct {
	ID           int               `yaml:"-"`
	Name         string            `yaml:"name" validate:"required"`
	Tokens       []string          `yaml:"tokens" validate:"required,min=1,dive,required"`
	Head         int               `yaml:"head" validate:"gte=0"`
	Features     []feat.FeatStruct `yaml:"features,omitempty"`
	Neg          []NegCondition    `yaml:"neg,omitempty" validate:"dive"`
	Agr          []Agreement       `yaml:"agr,omitempty" validate:"dive"`
	Translations []Translation     `yaml:"translations,omitempty" validate:"dive"`
}

// FeaturesAt returns the feature constraints of position i, or nil.
func (g *Group) FeaturesAt(i int) feat.FeatStruct {
	if i < 0 || i >= len(g.Features) {
		return nil
	}
	return g.Features[i]
}

// NegAt returns the negative specs attached to position i.
func (g *Group) NegAt(i int) []NegSpec {
	var out []NegSpec
	for _, n := range g.Neg {
		if n.Index == i {
			out = append(out, n.Specs...)
		}
	}
	return out
}

func (g *Group) String() string { return g.Name }

// Analyzer returns the analyses of a token, or nil when it is unknown.
type Analyzer interface {
	Analyze(token string) []Analysis
}

// Catalog resolves translations.
type Catalog interface {
	// Translations returns the candidates for g by descending frequency;
	// ties keep declaration order.
	Translations(g *Group) []Translation
	// TargetGroup resolves a target group by name.
	TargetGroup(name string) (*Group, bool)
	// TranslateSpecial returns the literal translation of a special token.
	TranslateSpecial(token string) string
}

// Generator produces surface forms. It never returns an empty slice; on
// failure it returns the root unchanged.
type Generator interface {
	Generate(root string, features feat.FeatStruct, pos string) []string
}

// Postprocessor applies target-language orthographic rules to a finished
// surface form.
type Postprocessor interface {
	Postprocess(token string) string
}
