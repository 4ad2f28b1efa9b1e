package lexicon

import (
	"strings"
	"unicode"
)

// Token conventions shared by groups, analyses and the transfer engine.
const (
	CatPrefix     = "$"
	SetPrefix     = "$$"
	SpecialPrefix = "%"
	// SpecialSep separates a special token's type from its literal, as in %num~12.
	SpecialSep = "~"
	// PuncPOS is the part of speech of punctuation analyses.
	PuncPOS = "pnc"
)

// generatedPOS lists the parts of speech the generator inflects.
var generatedPOS = map[string]bool{"v": true, "a": true, "n": true}

// IsCat reports whether a group token is a category ($N).
func IsCat(token string) bool { return strings.HasPrefix(token, CatPrefix) }

// IsSet reports whether a group token is a set item ($$day), a category whose
// node takes the sentence token instead of the category name.
func IsSet(token string) bool { return strings.HasPrefix(token, SetPrefix) }

// IsSpecial reports whether a token is special (numerals and the like).
func IsSpecial(token string) bool { return strings.HasPrefix(token, SpecialPrefix) }

// SpecialType returns the part of a special token before the separator.
func SpecialType(token string) string {
	t, _, _ := strings.Cut(token, SpecialSep)
	return t
}

// RootPOS splits a lexeme like morir_v into root and part of speech. Tokens
// without a generated POS suffix are returned whole with an empty POS.
func RootPOS(token string) (root, pos string) {
	if IsSpecial(token) {
		return token, ""
	}
	i := strings.LastIndex(token, "_")
	if i < 0 {
		return token, ""
	}
	if p := token[i+1:]; generatedPOS[p] {
		return token[:i], p
	}
	// The '_' is part of the word itself.
	return token, ""
}

// IsLexeme reports whether a token needs morphological generation.
func IsLexeme(token string) bool {
	_, pos := RootPOS(token)
	return pos != ""
}

// IsPunct reports whether s is non-empty and consists of punctuation only.
func IsPunct(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

// IsAlnum reports whether s is non-empty and consists of letters and digits.
func IsAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Roots expands a disjunctive root (ser|ir_v) into its alternatives
// (ser_v, ir_v). Other roots are returned alone.
func Roots(root string) []string {
	i := strings.LastIndex(root, "_")
	if i < 0 || !strings.Contains(root[:i], "|") {
		return []string{root}
	}
	suffix := root[i:]
	alts := strings.Split(root[:i], "|")
	out := make([]string, len(alts))
	for j, a := range alts {
		out[j] = a + suffix
	}
	return out
}
