package internal

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherDispatchesClassWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pkg := filepath.Join(dir, "com", "acme")
	require.NoError(t, os.MkdirAll(pkg, 0o755))

	var mu sync.Mutex
	seen := map[string]int{}
	w, err := NewWatcher([]string{dir}, func(path string) error {
		mu.Lock()
		defer mu.Unlock()
		seen[filepath.Base(path)]++
		return nil
	}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	class := filepath.Join(pkg, "Util.class")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(class, []byte{0xca, 0xfe, byte(i)}, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "notes.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["Util.class"] > 0
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, seen["notes.txt"])
}

func TestWatcherStartTwice(t *testing.T) {
	t.Parallel()

	w, err := NewWatcher([]string{t.TempDir()}, func(string) error { return nil }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	assert.ErrorIs(t, w.Start(), errAlreadyWatching)
	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestWatcherMissingDir(t *testing.T) {
	t.Parallel()

	w, err := NewWatcher([]string{filepath.Join(t.TempDir(), "missing")}, func(string) error { return nil }, nil)
	require.NoError(t, err)
	assert.Error(t, w.Start())
}
