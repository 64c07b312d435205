package replacers

import (
	cf "github.com/gnolang/jdowngrader/internal/classfile"
	tt "github.com/gnolang/jdowngrader/internal/types"
)

// flattenNest widens private members of nest hosts and nest members to
// package access: the old runtime checks private access per class, so
// nestmates would no longer reach each other's privates. Hosts are widened
// too since members read their private fields and call their private
// methods directly.
//
// A widened instance method can be overridden by a subclass in the same
// package. Calls the class makes to its own widened methods are turned
// into invokespecial so they keep reaching this class's body; calls from
// other nestmates still dispatch virtually.
func flattenNest(c *cf.Class, _ tt.DepCollector, _ *tt.Result) error {
	if c.NestHost == "" && len(c.NestMembers) == 0 {
		return nil
	}
	for _, f := range c.Fields {
		f.Access &^= cf.ACC_PRIVATE
	}
	widened := make(map[string]bool)
	for _, m := range c.Methods {
		if m.Access&cf.ACC_PRIVATE == 0 {
			continue
		}
		// Interfaces cannot declare package private methods.
		if c.IsInterface() {
			m.Access |= cf.ACC_PUBLIC
		}
		m.Access &^= cf.ACC_PRIVATE
		if !m.IsStatic() && m.Name != "<init>" {
			widened[m.Name+m.Desc] = true
		}
	}
	for _, m := range c.Methods {
		if m.Code == nil {
			continue
		}
		for _, in := range m.Code.Insns {
			mi, ok := in.(*cf.MethodInsn)
			if !ok || mi.Owner != c.Name || !widened[mi.Name+mi.Desc] {
				continue
			}
			if mi.Op == cf.INVOKEVIRTUAL || mi.Op == cf.INVOKEINTERFACE {
				mi.Op = cf.INVOKESPECIAL
			}
		}
	}
	c.NestHost = ""
	return nil
}

// dropNestMembers clears the member list of nest hosts.
func dropNestMembers(c *cf.Class, _ tt.DepCollector, _ *tt.Result) error {
	c.NestMembers = nil
	return nil
}

// dropPermittedSubclasses removes the sealed class metadata.
func dropPermittedSubclasses(c *cf.Class, _ tt.DepCollector, _ *tt.Result) error {
	c.PermittedSubclasses = nil
	return nil
}

// publishInterfaceMethods makes private interface methods public; before
// Java 9 interface methods must be public.
func publishInterfaceMethods(c *cf.Class, _ tt.DepCollector, _ *tt.Result) error {
	if !c.IsInterface() {
		return nil
	}
	for _, m := range c.Methods {
		if m.Access&cf.ACC_PRIVATE != 0 {
			m.Access = m.Access&^cf.ACC_PRIVATE | cf.ACC_PUBLIC
		}
	}
	return nil
}
