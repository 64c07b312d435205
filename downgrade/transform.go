// Package downgrade rewrites compiled Java classes, jars and class
// directories so that they run on an older Java release.
package downgrade

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/gnolang/jdowngrader/internal"
	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/trie"
	tt "github.com/gnolang/jdowngrader/internal/types"
	"github.com/gnolang/jdowngrader/scanner"
	"go.uber.org/zap"
)

// Outcome says what happened to one class.
type Outcome int

const (
	// Unchanged classes were already at or below the target.
	Unchanged Outcome = iota
	// Skipped classes were excluded by the include / exclude prefixes.
	Skipped
	Transformed
	// Failed classes are kept as they were.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Skipped:
		return "skipped"
	case Transformed:
		return "transformed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Transformer lowers single classes. It is safe for concurrent use and
// remembers every shim class the classes it rewrote depend on.
type Transformer struct {
	engine    *internal.Engine
	floor     cf.Version
	include   *trie.Trie
	exclude   *trie.Trie
	hierarchy *Hierarchy
	cache     *internal.Cache
	runtime   classRoot
	logger    *zap.Logger
	workers   int

	// Progress draws a progress bar on stderr while processing archives
	// and directories.
	Progress bool

	deps     tt.DepSet
	replaced atomic.Int64
}

// NewTransformer builds the engine and the class hierarchy described by
// config. Close releases the libraries and flushes the cache.
func NewTransformer(config Config, logger *zap.Logger) (*Transformer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	floor, err := config.Floor()
	if err != nil {
		return nil, err
	}
	engine, err := internal.NewEngine(config.Overrides)
	if err != nil {
		return nil, err
	}
	if err := engine.CheckFloor(floor); err != nil {
		return nil, err
	}
	for _, key := range engine.UnmatchedRules() {
		logger.Warn("ignored rule matches nothing", zap.String("rule", key))
	}

	t := &Transformer{
		engine:    engine,
		floor:     floor,
		include:   trie.New(config.Include...),
		exclude:   trie.New(config.Exclude...),
		hierarchy: NewHierarchy(),
		logger:    logger,
		workers:   config.Workers(),
	}
	for _, entry := range config.Libraries {
		libs, err := scanner.Expand(entry)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("library %s: %w", entry, err)
		}
		for _, lib := range libs {
			if err := t.hierarchy.AddLibrary(lib); err != nil {
				t.Close()
				return nil, fmt.Errorf("library: %w", err)
			}
		}
	}
	if config.Runtime != "" {
		root, err := openClassRoot(config.Runtime)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("runtime: %w", err)
		}
		t.runtime = root
		t.hierarchy.addRoot(root)
	}
	if config.CacheDir != "" {
		cache, err := internal.NewCache(config.CacheDir)
		if err != nil {
			t.Close()
			return nil, err
		}
		t.cache = cache
	}
	return t, nil
}

// Floor returns the version classes are lowered to.
func (t *Transformer) Floor() cf.Version {
	return t.floor
}

// Engine returns the engine used for rewriting.
func (t *Transformer) Engine() *internal.Engine {
	return t.engine
}

// Hierarchy returns the hierarchy used for frame computation. Callers
// register the classes they process with it.
func (t *Transformer) Hierarchy() *Hierarchy {
	return t.hierarchy
}

// Selected reports whether the include / exclude prefixes select name.
func (t *Transformer) Selected(name string) bool {
	inc := 0
	if t.include.Len() > 0 {
		inc = t.include.Depth(name)
		if inc < 0 {
			return false
		}
	}
	exc := t.exclude.Depth(name)
	return exc < 0 || inc > exc
}

// TransformClass lowers one class given its internal name and bytes. On
// error the original bytes are returned with Failed.
func (t *Transformer) TransformClass(name string, data []byte) ([]byte, Outcome, error) {
	return t.transform(name, data, nil)
}

// transform is TransformClass that also reports the shim classes of this
// class to deps, which may be nil.
func (t *Transformer) transform(name string, data []byte, deps tt.DepCollector) ([]byte, Outcome, error) {
	v, _, err := cf.PeekVersion(data)
	if err != nil {
		return data, Failed, fmt.Errorf("%s: %w", name, err)
	}
	if v <= t.floor {
		return data, Unchanged, nil
	}
	if !t.Selected(name) {
		return data, Skipped, nil
	}

	var key string
	if t.cache != nil {
		key = internal.CacheKey(data, t.floor, t.engine.Fingerprint())
		if entry, ok := t.cache.Get(key); ok {
			collect := t.collector(deps)
			for _, d := range entry.Deps {
				collect(d)
			}
			t.replaced.Add(int64(entry.Result.Replaced))
			return entry.Output, Transformed, nil
		}
	}

	c, err := cf.Parse(data)
	if err != nil {
		return data, Failed, fmt.Errorf("%s: %w", name, err)
	}
	var local tt.DepSet
	res, err := t.engine.Downgrade(c, t.floor, local.Collector())
	if err != nil {
		return data, Failed, err
	}
	out, err := cf.Write(c, cf.WriteOptions{
		ComputeFrames: res.RequiresRevalidation,
		Hierarchy:     t.hierarchy,
	})
	if err != nil {
		return data, Failed, fmt.Errorf("%s: writing: %w", name, err)
	}

	needed := local.Names()
	sort.Strings(needed)
	collect := t.collector(deps)
	for _, d := range needed {
		collect(d)
	}
	t.replaced.Add(int64(res.Replaced))
	if t.cache != nil {
		t.cache.Set(key, out, needed, res)
	}
	t.logger.Debug("transformed",
		zap.String("class", name),
		zap.Int("steps", res.Applied),
		zap.Int("replaced", res.Replaced),
		zap.Bool("frames", res.RequiresRevalidation))
	return out, Transformed, nil
}

// collector feeds the running set and, when given, deps.
func (t *Transformer) collector(deps tt.DepCollector) tt.DepCollector {
	all := t.deps.Collector()
	if deps == nil {
		return all
	}
	return func(name string) {
		all(name)
		deps(name)
	}
}

// Deps returns the shim classes needed by everything this transformer has
// lowered so far, sorted. Each Process call bundles only the shims of its
// own classes.
func (t *Transformer) Deps() []string {
	return sortedDeps(&t.deps)
}

func sortedDeps(s *tt.DepSet) []string {
	names := s.Names()
	sort.Strings(names)
	return names
}

// Replaced returns the number of call sites rewritten so far.
func (t *Transformer) Replaced() int {
	return int(t.replaced.Load())
}

// Close flushes the cache and releases the libraries and runtime.
func (t *Transformer) Close() error {
	var first error
	if t.cache != nil {
		if err := t.cache.Flush(); err != nil {
			first = err
		}
	}
	if err := t.hierarchy.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
