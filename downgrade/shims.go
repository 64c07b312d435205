package downgrade

import (
	"sort"
	"strings"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/rewrite"
	"go.uber.org/zap"
)

type shim struct {
	name string
	data []byte
}

// collectShims reads the required shim classes from the runtime root,
// following super classes, interfaces and nested classes that live in the
// runtime package too. Names in present are already in the output.
func (t *Transformer) collectShims(required []string, present map[string]bool, report *Report) []shim {
	var out []shim
	seen := make(map[string]bool)
	queue := append([]string(nil), required...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] || present[name] {
			continue
		}
		seen[name] = true

		var data []byte
		found := false
		if t.runtime != nil {
			var err error
			data, found, err = t.runtime.open(name)
			if err != nil {
				t.logger.Warn("reading shim", zap.String("class", name), zap.Error(err))
				found = false
			}
		}
		if !found {
			t.logger.Warn("shim class not found in runtime, skipping", zap.String("class", name))
			report.Missing = append(report.Missing, name)
			continue
		}
		out = append(out, shim{name: name, data: data})
		if c, err := cf.Parse(data); err == nil {
			queue = append(queue, shimRefs(c)...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	for _, s := range out {
		report.Shims = append(report.Shims, s.name)
	}
	sort.Strings(report.Missing)
	return out
}

func shimRefs(c *cf.Class) []string {
	var refs []string
	add := func(name string) {
		if strings.HasPrefix(name, rewrite.RuntimePackage) && name != c.Name {
			refs = append(refs, name)
		}
	}
	add(c.Super)
	for _, itf := range c.Interfaces {
		add(itf)
	}
	for _, ic := range c.InnerClasses {
		add(ic.Name)
	}
	return refs
}
