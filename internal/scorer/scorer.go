// Package scorer scores a single needle against a haystack. Haystack and
// needle are rune slices that have already been case-folded and normalized
// by the caller; the original runes are passed alongside so word boundaries
// and camelCase transitions are judged on the unfolded text.
//
// The fuzzy scorer finds the leftmost complete subsequence, then walks
// backwards from its end to shrink the window to the shortest one ending
// there, and scores that window. Consecutive runs and boundary hits earn
// bonuses; gaps cost a start penalty plus a smaller extension penalty.
package scorer

import "unicode"

const (
	ScoreMatch          = 16
	PenaltyGapStart     = 3
	PenaltyGapExtension = 1

	BonusBoundary          = ScoreMatch / 2
	BonusNonWord           = ScoreMatch / 2
	BonusCamel123          = BonusBoundary - PenaltyGapExtension
	BonusConsecutive       = PenaltyGapStart + PenaltyGapExtension
	BonusFirstCharMultiple = 2
	BonusBoundaryWhite     = BonusBoundary + 2
	BonusBoundaryDelimiter = BonusBoundary + 1
)

type charClass uint8

const (
	classWhite charClass = iota
	classNonWord
	classDelimiter
	classLower
	classUpper
	classLetter
	classNumber
)

const delimiters = "/,:;|-_."

func classOf(r rune) charClass {
	switch {
	case r >= 'a' && r <= 'z':
		return classLower
	case r >= 'A' && r <= 'Z':
		return classUpper
	case r >= '0' && r <= '9':
		return classNumber
	case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		return classWhite
	}
	for _, d := range delimiters {
		if r == d {
			return classDelimiter
		}
	}
	if r < 0x80 {
		return classNonWord
	}
	switch {
	case unicode.IsLower(r):
		return classLower
	case unicode.IsUpper(r):
		return classUpper
	case unicode.IsNumber(r):
		return classNumber
	case unicode.IsLetter(r):
		return classLetter
	case unicode.IsSpace(r):
		return classWhite
	}
	return classNonWord
}

func bonusFor(prev, cur charClass) int {
	if cur > classNonWord {
		switch prev {
		case classWhite:
			return BonusBoundaryWhite
		case classDelimiter:
			return BonusBoundaryDelimiter
		case classNonWord:
			return BonusBoundary
		}
	}
	if prev == classLower && cur == classUpper || prev != classNumber && cur == classNumber {
		return BonusCamel123
	}
	switch cur {
	case classNonWord, classDelimiter:
		return BonusNonWord
	case classWhite:
		return BonusBoundaryWhite
	}
	return 0
}

// Fuzzy reports whether needle is a subsequence of hay and, if so, its score.
// orig and hay must have the same length.
func Fuzzy(orig, hay, needle []rune) (uint32, bool) {
	m := len(needle)
	if m == 0 {
		return 0, true
	}
	if len(hay) < m {
		return 0, false
	}

	start, end := -1, -1
	pidx := 0
	for idx, r := range hay {
		if r != needle[pidx] {
			continue
		}
		if start < 0 {
			start = idx
		}
		pidx++
		if pidx == m {
			end = idx + 1
			break
		}
	}
	if end < 0 {
		return 0, false
	}

	pidx = m - 1
	for idx := end - 1; idx >= start; idx-- {
		if hay[idx] == needle[pidx] {
			pidx--
			if pidx < 0 {
				start = idx
				break
			}
		}
	}
	return windowScore(orig, hay, needle, start, end), true
}

// Substring reports whether needle occurs contiguously in hay, scoring the
// best occurrence.
func Substring(orig, hay, needle []rune) (uint32, bool) {
	m := len(needle)
	if m == 0 {
		return 0, true
	}
	var best uint32
	found := false
	for i := 0; i+m <= len(hay); i++ {
		if !equalAt(hay, needle, i) {
			continue
		}
		score := windowScore(orig, hay, needle, i, i+m)
		if !found || score > best {
			best = score
			found = true
		}
	}
	return best, found
}

// Prefix reports whether hay starts with needle.
func Prefix(orig, hay, needle []rune) (uint32, bool) {
	m := len(needle)
	if m == 0 {
		return 0, true
	}
	if len(hay) < m || !equalAt(hay, needle, 0) {
		return 0, false
	}
	return windowScore(orig, hay, needle, 0, m), true
}

// Postfix reports whether hay ends with needle.
func Postfix(orig, hay, needle []rune) (uint32, bool) {
	m := len(needle)
	if m == 0 {
		return 0, true
	}
	start := len(hay) - m
	if start < 0 || !equalAt(hay, needle, start) {
		return 0, false
	}
	return windowScore(orig, hay, needle, start, len(hay)), true
}

// Exact reports whether hay equals needle.
func Exact(orig, hay, needle []rune) (uint32, bool) {
	if len(hay) != len(needle) {
		return 0, false
	}
	if len(needle) == 0 {
		return 0, true
	}
	if !equalAt(hay, needle, 0) {
		return 0, false
	}
	return windowScore(orig, hay, needle, 0, len(hay)), true
}

func equalAt(hay, needle []rune, at int) bool {
	for i, r := range needle {
		if hay[at+i] != r {
			return false
		}
	}
	return true
}

// windowScore scores the match of needle inside hay[start:end]. The window
// must start and end on matching runes.
func windowScore(orig, hay, needle []rune, start, end int) uint32 {
	pidx := 0
	score := 0
	inGap := false
	consecutive := 0
	firstBonus := 0

	prevClass := classWhite
	if start > 0 {
		prevClass = classOf(orig[start-1])
	}
	for idx := start; idx < end && pidx < len(needle); idx++ {
		class := classOf(orig[idx])
		if hay[idx] == needle[pidx] {
			score += ScoreMatch
			bonus := bonusFor(prevClass, class)
			if consecutive == 0 {
				firstBonus = bonus
			} else {
				if bonus >= BonusBoundary && bonus > firstBonus {
					firstBonus = bonus
				}
				bonus = max(bonus, firstBonus, BonusConsecutive)
			}
			if pidx == 0 {
				score += bonus * BonusFirstCharMultiple
			} else {
				score += bonus
			}
			inGap = false
			consecutive++
			pidx++
		} else {
			if inGap {
				score -= PenaltyGapExtension
			} else {
				score -= PenaltyGapStart
			}
			inGap = true
			consecutive = 0
			firstBonus = 0
		}
		prevClass = class
	}
	// Zero is reserved for the empty pattern.
	if score < 1 {
		score = 1
	}
	return uint32(score)
}
