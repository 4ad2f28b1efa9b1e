package transfer

import (
	"context"
	"errors"
	"time"
)

// Result is the translation of one input sentence.
type Result struct {
	ID     string
	Source string
	// Translations holds one rendering per covering, best first.
	Translations []string
	Solutions    []*Solution
}

// TranslateOptions controls one call to Translator.Translate.
type TranslateOptions struct {
	// Solutions caps the coverings tried; zero means all of them.
	Solutions int
	Realize   RealizeOptions
}

// Translator runs the whole pipeline against one lexicon. It is safe for
// concurrent use: every call owns its own Sentence.
type Translator struct {
	lex Lexicon
	cfg settings
}

// NewTranslator creates a translator.
func NewTranslator(lex Lexicon, opts ...Option) *Translator {
	return &Translator{lex: lex, cfg: newSettings(opts)}
}

// Translate tokenizes, covers and realizes raw.
func (t *Translator) Translate(ctx context.Context, raw string, opts TranslateOptions) (Result, error) {
	start := time.Now()
	defer func() { t.cfg.recorder.Sentence(time.Since(start)) }()

	s := newSentence(raw, t.lex, t.cfg)
	res := Result{ID: s.ID, Source: raw}
	log := s.Logger()
	sols, err := s.Solve(ctx, opts.Solutions)
	if err != nil {
		var cerr *ConstructionError
		if errors.As(err, &cerr) {
			log.Error("sentence halted", "group", cerr.Group, "span", cerr.Span, "reason", cerr.Reason)
		}
		return res, err
	}
	for _, sol := range sols {
		if err := sol.Translate(ctx, opts.Realize); err != nil {
			var cerr *ConstructionError
			if errors.As(err, &cerr) {
				log.Error("sentence halted", "group", cerr.Group, "span", cerr.Span, "reason", cerr.Reason)
			}
			return res, err
		}
		res.Solutions = append(res.Solutions, sol)
		res.Translations = append(res.Translations, sol.String())
	}
	log.Debug("sentence translated", "tokens", len(s.Tokens), "solutions", len(sols), "elapsed", time.Since(start))
	return res, nil
}
