package rewrite

import (
	cf "github.com/gnolang/jdowngrader/internal/classfile"
	tt "github.com/gnolang/jdowngrader/internal/types"
)

// RuntimePackage is the package prefix of the bundled shim classes.
const RuntimePackage = "jdowngrader/runtime/"

type remapEntry struct {
	to string
	// dep is false for rename-only entries.
	dep   bool
	extra []string
}

// RemapTable renames classes that do not exist on the target release.
type RemapTable struct {
	entries map[string]remapEntry
}

func NewRemapTable() *RemapTable {
	return &RemapTable{entries: make(map[string]remapEntry)}
}

// Replace maps old to its shim under RuntimePackage.
func (t *RemapTable) Replace(old string) {
	t.ReplaceWith(old, RuntimePackage+old)
}

// ReplaceWith maps old to the shim class to. Every class referencing old
// also depends on extra.
func (t *RemapTable) ReplaceWith(old, to string, extra ...string) {
	t.entries[old] = remapEntry{to: to, dep: true, extra: extra}
}

// RenameOnly maps old to an existing class of the target release. No
// dependency is reported.
func (t *RemapTable) RenameOnly(old, to string) {
	t.entries[old] = remapEntry{to: to}
}

// Len returns the number of entries.
func (t *RemapTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Lookup returns the new name of old.
func (t *RemapTable) Lookup(old string) (string, bool) {
	if t == nil {
		return "", false
	}
	e, ok := t.entries[old]
	return e.to, ok
}

// Apply returns c with every mapped reference renamed. c is not modified.
// Each hit flags revalidation; hits on shim entries are reported to deps
// with their extra dependencies.
func (t *RemapTable) Apply(c *cf.Class, deps tt.DepCollector, res *tt.Result) *cf.Class {
	if t.Len() == 0 {
		return c
	}
	mapping := make(map[string]string, len(t.entries))
	for old, e := range t.entries {
		mapping[old] = e.to
	}
	out, hits := cf.Remap(c, mapping)
	for _, old := range hits {
		res.MarkRevalidation()
		e := t.entries[old]
		if !e.dep {
			continue
		}
		deps(e.to)
		for _, x := range e.extra {
			deps(x)
		}
	}
	return out
}
