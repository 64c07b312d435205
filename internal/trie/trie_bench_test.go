package trie

import (
	"math/rand"
	"strings"
	"testing"
)

func randomNames(count, depth int) []string {
	r := rand.New(rand.NewSource(1))
	names := make([]string, count)
	for i := range names {
		segs := make([]string, r.Intn(depth)+1)
		for j := range segs {
			segs[j] = string(rune('a' + r.Intn(26)))
		}
		names[i] = strings.Join(segs, "/")
	}
	return names
}

func BenchmarkInsert(b *testing.B) {
	for _, size := range []struct {
		name         string
		count, depth int
	}{
		{"Small", 100, 5},
		{"Medium", 1000, 10},
		{"Large", 10000, 20},
	} {
		b.Run(size.name, func(b *testing.B) {
			names := randomNames(size.count, size.depth)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				New(names...)
			}
		})
	}
}

func BenchmarkMatch(b *testing.B) {
	tr := New(randomNames(500, 4)...)
	names := randomNames(1000, 8)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr.Match(names[i%len(names)])
	}
}
