package internal

import (
	"fmt"
	"sort"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/rewrite"
	tt "github.com/gnolang/jdowngrader/internal/types"
)

// StepInfo describes one version step for listings.
type StepInfo struct {
	Name     string     `json:"name"`
	Source   cf.Version `json:"source"`
	Target   cf.Version `json:"target"`
	Disabled bool       `json:"disabled,omitempty"`
	// Rules holds the call-site keys the step rewrites.
	Rules   []string `json:"rules,omitempty"`
	Members int      `json:"members"`
	Remaps  int      `json:"remaps"`
	Hooks   int      `json:"hooks"`
}

func describe(s *rewrite.Step) StepInfo {
	return StepInfo{
		Name:    s.Name,
		Source:  s.Source,
		Target:  s.Target,
		Rules:   s.Calls.Keys(),
		Members: len(s.Members),
		Remaps:  s.Remaps.Len(),
		Hooks:   len(s.Pre) + len(s.Post),
	}
}

// Steps lists the engine's steps newest first, with ignored rules left out.
func (e *Engine) Steps() []StepInfo {
	out := make([]StepInfo, 0, len(e.steps))
	for _, s := range e.steps {
		info := describe(s)
		info.Disabled = e.disabled[s.Name]
		out = append(out, info)
	}
	return out
}

// StepNames returns the configuration names of every step, newest first.
func (e *Engine) StepNames() []string {
	names := make([]string, len(e.steps))
	for i, s := range e.steps {
		names[i] = s.Name
	}
	return names
}

func (e *Engine) applyOverrides(o tt.Overrides) error {
	for _, name := range o.DisabledSteps {
		if err := e.DisableStep(name); err != nil {
			return err
		}
	}
	for _, key := range o.IgnoredRules {
		e.IgnoreRule(key)
	}
	return nil
}

// DisableStep marks the named step as unusable. Classes that would need
// it fail with ErrStepDisabled.
func (e *Engine) DisableStep(name string) error {
	for _, s := range e.steps {
		if s.Name == name {
			if e.disabled == nil {
				e.disabled = make(map[string]bool)
			}
			e.disabled[name] = true
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownStep, name)
}

// IgnoreRule removes the call-site rules matching key from every step and
// returns how many were removed. A key without a descriptor covers every
// overload. Calls to an ignored API are left as they are.
func (e *Engine) IgnoreRule(key string) int {
	if e.ignoredRules == nil {
		e.ignoredRules = make(map[string]int)
	}
	n := 0
	for _, s := range e.steps {
		n += s.Calls.Remove(key)
	}
	e.ignoredRules[key] += n
	return n
}

// UnmatchedRules returns the ignored keys that matched no rule, so
// callers can warn about typos.
func (e *Engine) UnmatchedRules() []string {
	var out []string
	for _, k := range sortedKeys(e.ignoredRules) {
		if e.ignoredRules[k] == 0 {
			out = append(out, k)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RuleFor returns the name of the first step, newest first, that rewrites
// calls to owner.name with the given descriptor.
func (e *Engine) RuleFor(owner, name, desc string) (string, bool) {
	for _, s := range e.steps {
		if _, ok := s.Calls.Lookup(owner, name, desc); ok {
			return s.Name, true
		}
	}
	return "", false
}
