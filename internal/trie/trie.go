// Package trie implements an arena-backed prefix trie over class name
// segments, used to decide which classes a run includes or excludes.
package trie

import (
	"sort"
	"strings"
)

/*
Nodes live in a single slice and refer to their children by index. A
trie built from a few hundred package prefixes stays in one allocation,
and matching a class name walks at most one node per package segment.
*/

// NodeIndex is the position of a node in the arena.
type NodeIndex int

const root NodeIndex = 0

type node struct {
	children map[string]NodeIndex
	// terminal marks the end of an inserted prefix.
	terminal bool
}

// Arena stores every node of a trie.
type Arena struct {
	nodes []node
}

func newArena() *Arena {
	a := &Arena{nodes: make([]node, 0, 64)}
	a.newNode()
	return a
}

func (a *Arena) newNode() NodeIndex {
	a.nodes = append(a.nodes, node{children: make(map[string]NodeIndex)})
	return NodeIndex(len(a.nodes) - 1)
}

func (a *Arena) insert(segments []string) {
	cur := root
	for _, seg := range segments {
		next, ok := a.nodes[cur].children[seg]
		if !ok {
			next = a.newNode()
			a.nodes[cur].children[seg] = next
		}
		cur = next
	}
	a.nodes[cur].terminal = true
}

// longestPrefix returns the number of leading segments covered by the
// longest inserted prefix, or -1 when none matches.
func (a *Arena) longestPrefix(segments []string) int {
	best := -1
	cur := root
	if a.nodes[cur].terminal {
		best = 0
	}
	for i, seg := range segments {
		next, ok := a.nodes[cur].children[seg]
		if !ok {
			break
		}
		cur = next
		if a.nodes[cur].terminal {
			best = i + 1
		}
	}
	return best
}

func (a *Arena) equal(aIdx NodeIndex, b *Arena, bIdx NodeIndex) bool {
	na, nb := a.nodes[aIdx], b.nodes[bIdx]
	if na.terminal != nb.terminal || len(na.children) != len(nb.children) {
		return false
	}
	for seg, ca := range na.children {
		cb, ok := nb.children[seg]
		if !ok || !a.equal(ca, b, cb) {
			return false
		}
	}
	return true
}

func (a *Arena) write(sb *strings.Builder, idx NodeIndex) {
	n := a.nodes[idx]
	if n.terminal {
		sb.WriteString("*")
	}
	keys := make([]string, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("(")
		a.write(sb, n.children[k])
		sb.WriteString(")")
	}
}

// Trie holds class name prefixes. The zero value is not usable; call New.
type Trie struct {
	arena *Arena
	size  int
}

// New returns a trie containing the given prefixes.
func New(prefixes ...string) *Trie {
	t := &Trie{arena: newArena()}
	for _, p := range prefixes {
		t.Insert(p)
	}
	return t
}

// Split turns a class or package name into its segments. Dotted and
// internal (slash separated) forms are equivalent, and a trailing
// separator or ".*" / "/**" wildcard is ignored.
func Split(name string) []string {
	name = strings.ReplaceAll(name, ".", "/")
	name = strings.TrimSuffix(name, "/**")
	name = strings.TrimSuffix(name, "/*")
	name = strings.Trim(name, "/")
	if name == "" {
		return nil
	}
	return strings.Split(name, "/")
}

// Insert adds a prefix. Inserting the empty string matches every name.
func (t *Trie) Insert(prefix string) {
	t.arena.insert(Split(prefix))
	t.size++
}

// Len returns the number of prefixes inserted.
func (t *Trie) Len() int {
	return t.size
}

// Match reports whether some inserted prefix covers name, segment by
// segment: "com/acme" covers "com/acme/Util" but not "com/acmex/Util".
func (t *Trie) Match(name string) bool {
	return t.Depth(name) >= 0
}

// Depth returns how many segments of name the longest matching prefix
// covers, or -1 when nothing matches.
func (t *Trie) Depth(name string) int {
	if t == nil || t.size == 0 {
		return -1
	}
	return t.arena.longestPrefix(Split(name))
}

// Equal reports whether both tries hold the same prefixes.
func (t *Trie) Equal(other *Trie) bool {
	return t.arena.equal(root, other.arena, root)
}

// String renders the trie in a stable form, e.g. "com(acme(*)example(*))".
func (t *Trie) String() string {
	var sb strings.Builder
	t.arena.write(&sb, root)
	return sb.String()
}
