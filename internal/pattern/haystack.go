package pattern

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Haystack is the precomputed match state of one item's text. Every view
// has the same length as Runes so match positions line up across views.
type Haystack struct {
	Runes      []rune
	Folded     []rune
	Normalized []rune // folded and normalized
}

// NewHaystack prepares text for matching.
func NewHaystack(text string) *Haystack {
	runes := []rune(text)
	h := &Haystack{
		Runes:  runes,
		Folded: make([]rune, len(runes)),
	}
	plain := true
	for i, r := range runes {
		h.Folded[i] = unicode.ToLower(r)
		if r >= utf8.RuneSelf {
			plain = false
		}
	}
	if plain {
		h.Normalized = h.Folded
		return h
	}
	h.Normalized = make([]rune, len(runes))
	for i, r := range h.Folded {
		h.Normalized[i] = unicode.ToLower(NormalizeRune(r))
	}
	return h
}

// Len returns the haystack length in runes.
func (h *Haystack) Len() int {
	return len(h.Runes)
}

func (h *Haystack) view(ignoreCase, normalize bool) []rune {
	switch {
	case ignoreCase && normalize:
		return h.Normalized
	case ignoreCase:
		return h.Folded
	case normalize:
		out := make([]rune, len(h.Runes))
		for i, r := range h.Runes {
			out[i] = NormalizeRune(r)
		}
		return out
	default:
		return h.Runes
	}
}

// NormalizeRune maps a rune to its plain form: full-width and half-width
// variants fold to their canonical width and diacritics are stripped by
// keeping the base rune of the canonical decomposition. ASCII is returned
// unchanged.
func NormalizeRune(r rune) rune {
	if r < utf8.RuneSelf {
		return r
	}
	if folded := width.LookupRune(r).Folded(); folded != 0 {
		r = folded
		if r < utf8.RuneSelf {
			return r
		}
	}
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	if norm.NFD.IsNormal(buf[:n]) {
		return r
	}
	decomposed := norm.NFD.Bytes(buf[:n])
	base, size := utf8.DecodeRune(decomposed)
	if base == utf8.RuneError {
		return r
	}
	for rest := decomposed[size:]; len(rest) > 0; {
		mark, n := utf8.DecodeRune(rest)
		if !unicode.Is(unicode.Mn, mark) {
			return r
		}
		rest = rest[n:]
	}
	return base
}
