// Package pattern compiles query text into atoms and tracks how a reparse
// affects previously computed matches.
//
// Syntax: atoms are separated by unescaped whitespace ("\ " is a literal
// space). An atom is fuzzy by default; 'foo is a substring match, ^foo a
// prefix match, foo$ a postfix match and ^foo$ an exact match. A leading !
// negates an atom: the item is rejected when the (substring, prefix or
// postfix) atom matches. An item matches when every positive atom matches
// and no negative atom does, and its score is the sum of the positive atom
// scores. A pattern without atoms matches everything with score 0.
package pattern

import "strings"

// Status describes what a reparse means for existing matches.
type Status int

const (
	// StatusUnchanged means existing matches are still exact.
	StatusUnchanged Status = iota
	// StatusUpdate means the new pattern only narrows the old one, so only
	// previously matched items need rescoring.
	StatusUpdate
	// StatusRescore means every item must be rescored.
	StatusRescore
)

func (s Status) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusUpdate:
		return "update"
	case StatusRescore:
		return "rescore"
	default:
		return "unknown"
	}
}

// merge combines a pending status with a newer one; the stronger wins.
func (s Status) merge(next Status) Status {
	if next > s {
		return next
	}
	return s
}

// Pattern is a compiled query for one column. It is not safe for
// concurrent use; the engine guards it.
type Pattern struct {
	text          string
	atoms         []Atom
	caseMatching  CaseMatching
	normalization Normalization
	status        Status
}

// New compiles text with the given case and normalization policies.
func New(text string, caseMatching CaseMatching, normalization Normalization) *Pattern {
	p := &Pattern{}
	p.compile(text, caseMatching, normalization)
	return p
}

func (p *Pattern) compile(text string, caseMatching CaseMatching, normalization Normalization) {
	p.text = text
	p.caseMatching = caseMatching
	p.normalization = normalization
	p.atoms = p.atoms[:0]
	for _, raw := range splitAtoms(text) {
		if atom, ok := ParseAtom(raw, caseMatching, normalization); ok {
			p.atoms = append(p.atoms, atom)
		}
	}
}

// Reparse replaces the pattern text. appendHint asserts that the previous
// text is a prefix of text; it lets the engine rescore only items that
// matched before. The assertion is not checked: a false hint can make
// items that should match go missing until the next full rescore.
func (p *Pattern) Reparse(text string, caseMatching CaseMatching, normalization Normalization, appendHint bool) Status {
	if text == p.text && caseMatching == p.caseMatching && normalization == p.normalization {
		return StatusUnchanged
	}
	next := StatusRescore
	if appendHint && p.canNarrow() && caseMatching == p.caseMatching && normalization == p.normalization {
		next = StatusUpdate
	}
	p.compile(text, caseMatching, normalization)
	p.status = p.status.merge(next)
	return next
}

// canNarrow reports whether appending text to the current pattern can only
// shrink its match set.
func (p *Pattern) canNarrow() bool {
	if strings.HasSuffix(p.text, `\`) {
		return false
	}
	if len(p.atoms) == 0 {
		return true
	}
	last := p.atoms[len(p.atoms)-1]
	if last.Negative {
		return false
	}
	return last.Kind == KindFuzzy || last.Kind == KindSubstring || last.Kind == KindPrefix
}

// TakeStatus returns the status accumulated since the last call and resets
// it to StatusUnchanged.
func (p *Pattern) TakeStatus() Status {
	s := p.status
	p.status = StatusUnchanged
	return s
}

// Pending returns the accumulated status without resetting it.
func (p *Pattern) Pending() Status {
	return p.status
}

// Text returns the source text.
func (p *Pattern) Text() string {
	return p.text
}

// IsEmpty reports whether the pattern has no atoms.
func (p *Pattern) IsEmpty() bool {
	return len(p.atoms) == 0
}

// Atoms returns the compiled atoms. Callers must not modify them.
func (p *Pattern) Atoms() []Atom {
	return p.atoms
}

// Clone returns an independent copy that background workers can read while
// the original is reparsed.
func (p *Pattern) Clone() *Pattern {
	c := *p
	c.atoms = append([]Atom(nil), p.atoms...)
	return &c
}

// Match scores h. A nil haystack (an item whose text could not be derived)
// only matches the empty pattern.
func (p *Pattern) Match(h *Haystack) (uint32, bool) {
	if len(p.atoms) == 0 {
		return 0, true
	}
	if h == nil {
		return 0, false
	}
	var total uint32
	for i := range p.atoms {
		atom := &p.atoms[i]
		score, ok := atom.Match(h)
		if atom.Negative {
			if ok {
				return 0, false
			}
			continue
		}
		if !ok {
			return 0, false
		}
		total += score
	}
	return total, true
}
