package pattern

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/scorer"
)

// CaseMatching selects how letter case is compared.
type CaseMatching int

const (
	CaseIgnore CaseMatching = iota
	CaseRespect
	// CaseSmart ignores case unless the atom contains an uppercase rune.
	CaseSmart
)

// Normalization selects whether diacritics and width variants are folded.
type Normalization int

const (
	// NormalizeSmart folds unless the atom itself contains runes that
	// folding would change.
	NormalizeSmart Normalization = iota
	NormalizeNever
)

// AtomKind is the matching strategy of one atom.
type AtomKind int

const (
	KindFuzzy AtomKind = iota
	KindSubstring
	KindPrefix
	KindPostfix
	KindExact
)

func (k AtomKind) String() string {
	switch k {
	case KindFuzzy:
		return "fuzzy"
	case KindSubstring:
		return "substring"
	case KindPrefix:
		return "prefix"
	case KindPostfix:
		return "postfix"
	case KindExact:
		return "exact"
	default:
		return "unknown"
	}
}

// Atom is one whitespace-separated term of a pattern.
type Atom struct {
	Kind       AtomKind
	Negative   bool
	Needle     []rune
	IgnoreCase bool
	Normalize  bool
}

// ParseAtom parses a single term. Leading `!` negates, leading `^` anchors to
// the start, leading `'` requests a substring match and trailing `$` anchors
// to the end. A backslash before any of these markers makes it literal.
// ok is false when nothing is left to match.
func ParseAtom(raw string, caseMatching CaseMatching, normalization Normalization) (Atom, bool) {
	atom := Atom{Kind: KindFuzzy}
	text := raw

	if strings.HasPrefix(text, "!") {
		atom.Negative = true
		atom.Kind = KindSubstring
		text = text[1:]
	}
	switch {
	case strings.HasPrefix(text, "^"):
		atom.Kind = KindPrefix
		text = text[1:]
	case strings.HasPrefix(text, "'"):
		atom.Kind = KindSubstring
		text = text[1:]
	case strings.HasPrefix(text, `\`) && len(text) > 1 && strings.ContainsRune("!^'", rune(text[1])):
		text = text[1:]
	}
	switch {
	case strings.HasSuffix(text, `\$`):
		text = text[:len(text)-2] + "$"
	case strings.HasSuffix(text, "$") && len(text) > 1:
		if atom.Kind == KindPrefix {
			atom.Kind = KindExact
		} else {
			atom.Kind = KindPostfix
		}
		text = text[:len(text)-1]
	}
	text = strings.ReplaceAll(text, `\ `, " ")
	if text == "" {
		return Atom{}, false
	}

	needle := []rune(text)
	switch caseMatching {
	case CaseIgnore:
		atom.IgnoreCase = true
	case CaseSmart:
		atom.IgnoreCase = true
		for _, r := range needle {
			if unicode.IsUpper(r) {
				atom.IgnoreCase = false
				break
			}
		}
	}
	if normalization == NormalizeSmart {
		atom.Normalize = true
		for _, r := range needle {
			if NormalizeRune(r) != r {
				atom.Normalize = false
				break
			}
		}
	}
	for i, r := range needle {
		if atom.IgnoreCase {
			r = unicode.ToLower(r)
		}
		if atom.Normalize {
			r = NormalizeRune(r)
		}
		needle[i] = r
	}
	atom.Needle = needle
	return atom, true
}

// Match scores the atom against h, ignoring negation.
func (a *Atom) Match(h *Haystack) (uint32, bool) {
	hay := h.view(a.IgnoreCase, a.Normalize)
	switch a.Kind {
	case KindSubstring:
		return scorer.Substring(h.Runes, hay, a.Needle)
	case KindPrefix:
		return scorer.Prefix(h.Runes, hay, a.Needle)
	case KindPostfix:
		return scorer.Postfix(h.Runes, hay, a.Needle)
	case KindExact:
		return scorer.Exact(h.Runes, hay, a.Needle)
	default:
		return scorer.Fuzzy(h.Runes, hay, a.Needle)
	}
}

// splitAtoms splits pattern text on whitespace that is not escaped with a
// backslash. Escapes are kept for ParseAtom.
func splitAtoms(text string) []string {
	var atoms []string
	var cur strings.Builder
	escaped := false
	for _, r := range text {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			cur.WriteRune(r)
			escaped = true
		case unicode.IsSpace(r):
			if cur.Len() > 0 {
				atoms = append(atoms, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		atoms = append(atoms, cur.String())
	}
	return atoms
}
