package trie

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	t.Parallel()

	tr := New("com/acme", "org.example.util", "net/thing/Main")

	tests := []struct {
		name string
		want bool
	}{
		{"com/acme/Util", true},
		{"com/acme/deep/Nested$Inner", true},
		{"com/acme", true},
		{"com/acmex/Util", false},
		{"com/Util", false},
		{"org/example/util/Strings", true},
		{"org.example.util.Strings", true},
		{"org/example/Strings", false},
		{"net/thing/Main", true},
		{"net/thing/Main$1", false},
		{"", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tr.Match(tc.name), tc.name)
	}
}

func TestEmptyTrieMatchesNothing(t *testing.T) {
	t.Parallel()

	assert.False(t, New().Match("a/B"))
	var nilTrie *Trie
	assert.False(t, nilTrie.Match("a/B"))
}

func TestEmptyPrefixMatchesEverything(t *testing.T) {
	t.Parallel()

	tr := New("")
	assert.True(t, tr.Match("a/B"))
	assert.Equal(t, 0, tr.Depth("a/B"))
}

func TestDepthPrefersLongest(t *testing.T) {
	t.Parallel()

	tr := New("com", "com/acme/internal")
	assert.Equal(t, 1, tr.Depth("com/acme/Util"))
	assert.Equal(t, 3, tr.Depth("com/acme/internal/Impl"))
	assert.Equal(t, -1, tr.Depth("org/acme/Util"))
}

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"com/acme", []string{"com", "acme"}},
		{"com.acme.*", []string{"com", "acme"}},
		{"com/acme/**", []string{"com", "acme"}},
		{"/com/acme/", []string{"com", "acme"}},
		{"", nil},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Split(tc.in), tc.in)
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []string
		want bool
	}{
		{"empty", nil, nil, true},
		{"same prefixes", []string{"a/b", "x/y"}, []string{"x/y", "a/b"}, true},
		{"dotted and slashed", []string{"a.b.c"}, []string{"a/b/c"}, true},
		{"different leaf", []string{"a/b/c"}, []string{"a/b/d"}, false},
		{"prefix overlap", []string{"a/b/c", "a/b"}, []string{"a/b/c"}, false},
		{"deep vs wide", []string{"a/b/c"}, []string{"a/b", "a/c"}, false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, New(tc.a...).Equal(New(tc.b...)))
		})
	}
}

func TestString(t *testing.T) {
	t.Parallel()

	tr := New("a/b", "a/c")
	assert.Equal(t, "a(b(*)c(*))", tr.String())
	assert.Equal(t, 2, tr.Len())
}
