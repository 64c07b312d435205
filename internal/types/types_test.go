package types

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedup(t *testing.T) {
	t.Parallel()

	var got []string
	c := DepCollector(func(name string) { got = append(got, name) }).Dedup()
	for _, n := range []string{"a", "b", "a", "c", "b"} {
		c(n)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestDedupNil(t *testing.T) {
	t.Parallel()

	var c DepCollector
	assert.NotPanics(t, func() { c.Dedup()("x") })
}

func TestDepSetConcurrent(t *testing.T) {
	t.Parallel()

	var s DepSet
	c := s.Collector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c("jdowngrader/runtime/java/lang/StackWalker")
			c("jdowngrader/runtime/java/lang/Runtime")
		}()
	}
	wg.Wait()

	names := s.Names()
	sort.Strings(names)
	assert.Equal(t, []string{
		"jdowngrader/runtime/java/lang/Runtime",
		"jdowngrader/runtime/java/lang/StackWalker",
	}, names)
	assert.True(t, s.Has("jdowngrader/runtime/java/lang/Runtime"))
	assert.False(t, s.Has("java/lang/Object"))
	assert.Equal(t, 2, s.Len())
}

func TestMarkRevalidation(t *testing.T) {
	t.Parallel()

	var r Result
	assert.False(t, r.RequiresRevalidation)
	r.MarkRevalidation()
	assert.True(t, r.RequiresRevalidation)
}
