package rewrite

import (
	"sort"
	"strings"
)

// Key returns the registry key of a call site. desc may be empty.
func Key(owner, name, desc string) string {
	return owner + ";" + name + desc
}

// Registry maps call-site keys to rules.
type Registry struct {
	rules map[string]Rule
}

func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Add registers r for every call to owner.name regardless of descriptor.
func (r *Registry) Add(owner, name string, rule Rule) {
	r.rules[Key(owner, name, "")] = rule
}

// AddDesc registers r for calls to owner.name with the exact descriptor.
func (r *Registry) AddDesc(owner, name, desc string, rule Rule) {
	r.rules[Key(owner, name, desc)] = rule
}

// Lookup returns the rule for a call site, preferring the descriptor key.
func (r *Registry) Lookup(owner, name, desc string) (Rule, bool) {
	if r == nil {
		return nil, false
	}
	if rule, ok := r.rules[Key(owner, name, desc)]; ok {
		return rule, true
	}
	rule, ok := r.rules[Key(owner, name, "")]
	return rule, ok
}

// Remove drops every rule whose key is key or, when key names no
// descriptor, starts with key followed by a descriptor. It returns the
// number of rules removed.
func (r *Registry) Remove(key string) int {
	n := 0
	for k := range r.rules {
		if k == key || (!strings.Contains(key, "(") && strings.HasPrefix(k, key+"(")) {
			delete(r.rules, k)
			n++
		}
	}
	return n
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.rules))
	for k := range r.rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
