package scorer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scoreFunc func(orig, hay, needle []rune) (uint32, bool)

func score(fn scoreFunc, hay, needle string) (uint32, bool) {
	orig := []rune(hay)
	folded := []rune(strings.ToLower(hay))
	return fn(orig, folded, []rune(needle))
}

func TestFuzzyMatchesSubsequences(t *testing.T) {
	tests := []struct {
		name   string
		hay    string
		needle string
		want   bool
	}{
		{"exact", "abc", "abc", true},
		{"scattered", "a_b_c", "abc", true},
		{"case folded", "FooBar", "fb", true},
		{"out of order", "abc", "acb", false},
		{"needle longer", "ab", "abc", false},
		{"missing rune", "hello", "hz", false},
		{"unicode", "naïve café", "ïé", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := score(Fuzzy, tt.hay, tt.needle)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestFuzzyEmptyNeedleScoresZero(t *testing.T) {
	s, ok := score(Fuzzy, "anything", "")
	require.True(t, ok)
	assert.Zero(t, s)
}

func TestFuzzyPrefersConsecutiveRuns(t *testing.T) {
	tight, ok := score(Fuzzy, "xfoo", "foo")
	require.True(t, ok)
	loose, ok := score(Fuzzy, "xfxoxo", "foo")
	require.True(t, ok)
	assert.Greater(t, tight, loose)
}

func TestFuzzyPrefersWordBoundaries(t *testing.T) {
	boundary, ok := score(Fuzzy, "foo_bar", "fb")
	require.True(t, ok)
	inner, ok := score(Fuzzy, "xfxxbx", "fb")
	require.True(t, ok)
	assert.Greater(t, boundary, inner)

	camel, ok := score(Fuzzy, "fooBar", "fb")
	require.True(t, ok)
	assert.Greater(t, camel, inner)
}

func TestFuzzyShrinksToShortestWindow(t *testing.T) {
	// The leftmost 'a' is far from 'b'; the window should start at the
	// later 'a' right before it.
	far, ok := score(Fuzzy, "a-----------ab", "ab")
	require.True(t, ok)
	near, ok := score(Fuzzy, "-------------ab", "ab")
	require.True(t, ok)
	assert.Equal(t, near, far)
}

func TestFuzzyScoreNeverDropsToZero(t *testing.T) {
	s, ok := score(Fuzzy, "xa"+strings.Repeat("x", 30)+"b", "ab")
	require.True(t, ok)
	assert.Equal(t, uint32(1), s)
}

func TestSubstringPicksBestOccurrence(t *testing.T) {
	s, ok := score(Substring, "xab ab", "ab")
	require.True(t, ok)
	inner, ok := score(Substring, "xab", "ab")
	require.True(t, ok)
	assert.Greater(t, s, inner)

	_, ok = score(Substring, "a_b", "ab")
	assert.False(t, ok)
}

func TestAnchoredMatchers(t *testing.T) {
	tests := []struct {
		name   string
		fn     scoreFunc
		hay    string
		needle string
		want   bool
	}{
		{"prefix hit", Prefix, "main.go", "main", true},
		{"prefix miss", Prefix, "cmd/main.go", "main", false},
		{"prefix too long", Prefix, "ma", "main", false},
		{"postfix hit", Postfix, "main.go", ".go", true},
		{"postfix miss", Postfix, "main.go.bak", ".go", false},
		{"exact hit", Exact, "Readme", "readme", true},
		{"exact miss", Exact, "readme.md", "readme", false},
		{"exact empty", Exact, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := score(tt.fn, tt.hay, tt.needle)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, classLower, classOf('q'))
	assert.Equal(t, classUpper, classOf('Q'))
	assert.Equal(t, classNumber, classOf('7'))
	assert.Equal(t, classWhite, classOf(' '))
	assert.Equal(t, classDelimiter, classOf('/'))
	assert.Equal(t, classNonWord, classOf('('))
	assert.Equal(t, classLower, classOf('é'))
	assert.Equal(t, classLetter, classOf('日'))
}

func BenchmarkFuzzy(b *testing.B) {
	benchmarks := []struct {
		name   string
		hay    string
		needle string
	}{
		{"short", "internal/engine/worker.go", "engwk"},
		{"long", strings.Repeat("abcdefghij/", 40) + "target.go", "tgtgo"},
		{"miss", strings.Repeat("abcdefghij/", 40), "zzz"},
	}
	for _, bm := range benchmarks {
		orig := []rune(bm.hay)
		folded := []rune(strings.ToLower(bm.hay))
		needle := []rune(bm.needle)
		b.Run(bm.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Fuzzy(orig, folded, needle)
			}
		})
	}
}
