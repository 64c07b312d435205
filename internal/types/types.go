package types

import "sync"

// Result accumulates what one pipeline run did to a class.
type Result struct {
	// RequiresRevalidation is set whenever the rewritten class needs its
	// stack map frames recomputed before it is written.
	RequiresRevalidation bool
	// Applied counts the version steps that ran.
	Applied int
	// Replaced counts rewritten call sites, bridges included.
	Replaced int
}

// MarkRevalidation flags the class for frame recomputation.
func (r *Result) MarkRevalidation() {
	r.RequiresRevalidation = true
}

// DepCollector receives the internal name of every shim class a rewritten
// class now depends on.
type DepCollector func(name string)

// NoDeps discards every dependency.
func NoDeps(string) {}

// Dedup returns a collector forwarding each distinct name to c once. The
// returned collector is safe for concurrent use.
func (c DepCollector) Dedup() DepCollector {
	if c == nil {
		return NoDeps
	}
	var mu sync.Mutex
	seen := make(map[string]bool)
	return func(name string) {
		mu.Lock()
		if seen[name] {
			mu.Unlock()
			return
		}
		seen[name] = true
		mu.Unlock()
		c(name)
	}
}

// DepSet collects dependencies into a set.
type DepSet struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// Collector returns a DepCollector adding to s.
func (s *DepSet) Collector() DepCollector {
	return func(name string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.names == nil {
			s.names = make(map[string]struct{})
		}
		s.names[name] = struct{}{}
	}
}

// Has reports whether name was collected.
func (s *DepSet) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.names[name]
	return ok
}

// Names returns the collected names in no particular order.
func (s *DepSet) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	return out
}

// Len returns the number of distinct names collected.
func (s *DepSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.names)
}

// Overrides names the parts of the step catalogue a configuration turns
// off. Steps are named like "java9-to-java8"; rules are call-site keys
// like "java/util/List;of", optionally with a descriptor.
type Overrides struct {
	DisabledSteps []string `yaml:"disabled_steps,omitempty" json:"disabled_steps,omitempty"`
	IgnoredRules  []string `yaml:"ignored_rules,omitempty" json:"ignored_rules,omitempty"`
}
