package rewrite

import (
	cf "github.com/gnolang/jdowngrader/internal/classfile"
	tt "github.com/gnolang/jdowngrader/internal/types"
)

// Inserter adds a default implementation of an interface method to classes
// implementing the interface without declaring the method themselves.
type Inserter struct {
	Interface string
	Name      string
	Desc      string
	// Build emits the body of the new public method.
	Build func(c *cf.Class, m *cf.Method, deps tt.DepCollector)
}

func (in Inserter) applies(c *cf.Class) bool {
	return c.Implements(in.Interface) && !c.HasMethod(in.Name, in.Desc)
}

// insert adds the member to c. It reports whether a method was added.
func (in Inserter) insert(c *cf.Class, deps tt.DepCollector, res *tt.Result) bool {
	if !in.applies(c) {
		return false
	}
	m := cf.NewMethod(cf.ACC_PUBLIC, in.Name, in.Desc)
	in.Build(c, m, deps)
	c.AddMethod(m)
	if hasBranches(m.Code.Insns) {
		res.MarkRevalidation()
	}
	return true
}
