package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	tt "github.com/gnolang/jdowngrader/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	t.Parallel()

	cacheDir := filepath.Join(t.TempDir(), "cache")
	cache, err := NewCache(cacheDir)
	require.NoError(t, err)

	input := []byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 55}
	key := CacheKey(input, cf.V1_8, "fp")

	t.Run("NotFound", func(t *testing.T) {
		_, found := cache.Get(CacheKey([]byte("other"), cf.V1_8, "fp"))
		assert.False(t, found)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		res := tt.Result{Applied: 3, Replaced: 1, RequiresRevalidation: true}
		cache.Set(key, []byte("out"), []string{"jdowngrader/runtime/java/lang/Runtime"}, res)

		entry, found := cache.Get(key)
		require.True(t, found)
		assert.Equal(t, []byte("out"), entry.Output)
		assert.Equal(t, []string{"jdowngrader/runtime/java/lang/Runtime"}, entry.Deps)
		assert.Equal(t, res, entry.Result)
	})

	t.Run("PersistsAcrossOpen", func(t *testing.T) {
		require.NoError(t, cache.Flush())
		_, err := os.Stat(filepath.Join(cacheDir, cacheFileName))
		require.NoError(t, err)

		reopened, err := NewCache(cacheDir)
		require.NoError(t, err)
		entry, found := reopened.Get(key)
		require.True(t, found)
		assert.Equal(t, []byte("out"), entry.Output)
	})

	t.Run("InvalidateAll", func(t *testing.T) {
		require.NoError(t, cache.InvalidateAll())
		assert.Zero(t, cache.Len())

		reopened, err := NewCache(cacheDir)
		require.NoError(t, err)
		assert.Zero(t, reopened.Len())
	})
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	in := []byte("class bytes")
	base := CacheKey(in, cf.V1_8, "a")
	assert.Equal(t, base, CacheKey(in, cf.V1_8, "a"))
	assert.NotEqual(t, base, CacheKey(in, cf.V11, "a"))
	assert.NotEqual(t, base, CacheKey(in, cf.V1_8, "b"))
	assert.NotEqual(t, base, CacheKey([]byte("class bytez"), cf.V1_8, "a"))
}

func TestCacheExpiration(t *testing.T) {
	t.Parallel()

	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	cache.Set("k", []byte("v"), nil, tt.Result{})
	_, found := cache.Get("k")
	assert.True(t, found, "zero max age never expires")

	cache.SetMaxAge(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, found = cache.Get("k")
	assert.False(t, found)
	assert.Zero(t, cache.Len())
}

func TestCacheFlushWithoutChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cache, err := NewCache(dir)
	require.NoError(t, err)
	require.NoError(t, cache.Flush())

	_, err = os.Stat(filepath.Join(dir, cacheFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestCacheCorruptFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFileName), []byte("not gob"), 0o644))
	_, err := NewCache(dir)
	assert.Error(t, err)
}
