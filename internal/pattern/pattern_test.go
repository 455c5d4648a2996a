package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAtom(t *testing.T) {
	tests := []struct {
		raw      string
		kind     AtomKind
		negative bool
		needle   string
	}{
		{"foo", KindFuzzy, false, "foo"},
		{"'foo", KindSubstring, false, "foo"},
		{"^foo", KindPrefix, false, "foo"},
		{"foo$", KindPostfix, false, "foo"},
		{"^foo$", KindExact, false, "foo"},
		{"!foo", KindSubstring, true, "foo"},
		{"!^foo", KindPrefix, true, "foo"},
		{"!foo$", KindPostfix, true, "foo"},
		{`\!foo`, KindFuzzy, false, "!foo"},
		{`\^foo`, KindFuzzy, false, "^foo"},
		{`foo\$`, KindFuzzy, false, "foo$"},
		{"$", KindFuzzy, false, "$"},
		{`a\ b`, KindFuzzy, false, "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			atom, ok := ParseAtom(tt.raw, CaseIgnore, NormalizeSmart)
			require.True(t, ok)
			assert.Equal(t, tt.kind, atom.Kind, "kind %s", atom.Kind)
			assert.Equal(t, tt.negative, atom.Negative)
			assert.Equal(t, tt.needle, string(atom.Needle))
		})
	}
}

func TestParseAtomRejectsBareMarkers(t *testing.T) {
	for _, raw := range []string{"!", "^", "'", "!^"} {
		_, ok := ParseAtom(raw, CaseIgnore, NormalizeSmart)
		assert.False(t, ok, raw)
	}
}

func TestSmartCase(t *testing.T) {
	lower, _ := ParseAtom("foo", CaseSmart, NormalizeSmart)
	assert.True(t, lower.IgnoreCase)

	mixed, _ := ParseAtom("Foo", CaseSmart, NormalizeSmart)
	assert.False(t, mixed.IgnoreCase)

	_, ok := New("Foo", CaseSmart, NormalizeSmart).Match(NewHaystack("foobar"))
	assert.False(t, ok)
	_, ok = New("Foo", CaseSmart, NormalizeSmart).Match(NewHaystack("FooBar"))
	assert.True(t, ok)
	_, ok = New("Foo", CaseIgnore, NormalizeSmart).Match(NewHaystack("foobar"))
	assert.True(t, ok)
}

func TestSmartNormalization(t *testing.T) {
	plain := New("cafe", CaseIgnore, NormalizeSmart)
	_, ok := plain.Match(NewHaystack("Café"))
	assert.True(t, ok, "plain needle matches accented haystack")

	accented := New("café", CaseIgnore, NormalizeSmart)
	_, ok = accented.Match(NewHaystack("café"))
	assert.True(t, ok)
	_, ok = accented.Match(NewHaystack("cafe"))
	assert.False(t, ok, "accented needle asks for an exact rune")

	_, ok = New("abc", CaseIgnore, NormalizeSmart).Match(NewHaystack("ＡＢＣ"))
	assert.True(t, ok, "full-width forms fold")

	_, ok = New("cafe", CaseIgnore, NormalizeNever).Match(NewHaystack("café"))
	assert.False(t, ok)
}

func TestNormalizeRune(t *testing.T) {
	assert.Equal(t, 'a', NormalizeRune('a'))
	assert.Equal(t, 'e', NormalizeRune('é'))
	assert.Equal(t, 'A', NormalizeRune('Ａ'))
	assert.Equal(t, 'n', NormalizeRune('ñ'))
	assert.Equal(t, '한', NormalizeRune('한'), "hangul syllables are not split")
}

func TestPatternMatch(t *testing.T) {
	tests := []struct {
		pattern string
		hay     string
		want    bool
	}{
		{"main go", "cmd/main.go", true},
		{"main !test", "cmd/main_test.go", false},
		{"main !test", "cmd/main.go", true},
		{"^cmd .go$", "cmd/main.go", true},
		{"^cmd .go$", "internal/cmd/main.go", false},
		{"^readme.md$", "README.md", true},
		{`foo\ bar`, "foo bar", true},
		{`foo\ bar`, "foobar", false},
		{"'ain.", "cmd/main.go", true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.hay, func(t *testing.T) {
			_, ok := New(tt.pattern, CaseIgnore, NormalizeSmart).Match(NewHaystack(tt.hay))
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestPatternScoreIsSumOfAtoms(t *testing.T) {
	hay := NewHaystack("src/main.go")
	whole, ok := New("main go", CaseIgnore, NormalizeSmart).Match(hay)
	require.True(t, ok)
	first, ok := New("main", CaseIgnore, NormalizeSmart).Match(hay)
	require.True(t, ok)
	second, ok := New("go", CaseIgnore, NormalizeSmart).Match(hay)
	require.True(t, ok)
	assert.Equal(t, first+second, whole)
}

func TestEmptyPatternMatchesEverything(t *testing.T) {
	p := New("   ", CaseIgnore, NormalizeSmart)
	require.True(t, p.IsEmpty())

	score, ok := p.Match(NewHaystack("anything"))
	assert.True(t, ok)
	assert.Zero(t, score)

	score, ok = p.Match(nil)
	assert.True(t, ok, "items without text still match the empty pattern")
	assert.Zero(t, score)

	_, ok = New("x", CaseIgnore, NormalizeSmart).Match(nil)
	assert.False(t, ok)
}

func TestReparseStatus(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		hint bool
		want Status
	}{
		{"same text", "foo", "foo", true, StatusUnchanged},
		{"append fuzzy", "fo", "foo", true, StatusUpdate},
		{"append substring", "'fo", "'foo", true, StatusUpdate},
		{"append prefix", "^fo", "^foo", true, StatusUpdate},
		{"append new atom", "foo", "foo bar", true, StatusUpdate},
		{"from empty", "", "f", true, StatusUpdate},
		{"no hint", "fo", "foo", false, StatusRescore},
		{"after postfix", "fo$", "fo$x", true, StatusRescore},
		{"after exact", "^fo$", "^fo$x", true, StatusRescore},
		{"after negation", "!fo", "!foo", true, StatusRescore},
		{"after escape", `fo\`, `fo\ x`, true, StatusRescore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.from, CaseIgnore, NormalizeSmart)
			got := p.Reparse(tt.to, CaseIgnore, NormalizeSmart, tt.hint)
			assert.Equal(t, tt.want, got, "got %s", got)
			assert.Equal(t, tt.to, p.Text())
		})
	}
}

func TestReparseStatusAccumulates(t *testing.T) {
	p := New("", CaseIgnore, NormalizeSmart)
	assert.Equal(t, StatusUnchanged, p.TakeStatus())

	p.Reparse("a", CaseIgnore, NormalizeSmart, true)
	p.Reparse("ab", CaseIgnore, NormalizeSmart, false)
	p.Reparse("abc", CaseIgnore, NormalizeSmart, true)
	assert.Equal(t, StatusRescore, p.Pending())
	assert.Equal(t, StatusRescore, p.TakeStatus())
	assert.Equal(t, StatusUnchanged, p.TakeStatus())

	p.Reparse("abcd", CaseIgnore, NormalizeSmart, true)
	assert.Equal(t, StatusUpdate, p.TakeStatus())
}

func TestCloneIsIndependent(t *testing.T) {
	p := New("foo bar", CaseIgnore, NormalizeSmart)
	c := p.Clone()
	p.Reparse("zzz", CaseIgnore, NormalizeSmart, false)

	require.Len(t, c.Atoms(), 2)
	assert.Equal(t, "foo", string(c.Atoms()[0].Needle))
	_, ok := c.Match(NewHaystack("foobar"))
	assert.True(t, ok)
}
