package rewrite

import (
	"strconv"
	"strings"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
)

const (
	// SyntheticPrefix starts the name of every member the rewriter adds.
	SyntheticPrefix = "jdowngrader-"
	// BridgePrefix starts the name of every bridge method.
	BridgePrefix = SyntheticPrefix + "bridge$"
)

// HelperName returns the method name of the helper serving purpose.
func HelperName(purpose string) string {
	return SyntheticPrefix + purpose
}

// SyntheticAccess returns the access flags of helpers and bridges added to c.
// Interfaces of the target release cannot declare private methods.
func SyntheticAccess(c *cf.Class) uint16 {
	if c.IsInterface() {
		return cf.ACC_PUBLIC | cf.ACC_STATIC | cf.ACC_SYNTHETIC
	}
	return cf.ACC_PRIVATE | cf.ACC_STATIC | cf.ACC_SYNTHETIC
}

// EnsureMethod returns the method name+desc of c, creating it with access and
// the body produced by build when it does not exist yet. created reports
// whether the method was added by this call.
func EnsureMethod(c *cf.Class, access uint16, name, desc string, build func(c *cf.Class, m *cf.Method)) (m *cf.Method, created bool) {
	if m := c.FindMethod(name, desc); m != nil {
		return m, false
	}
	m = cf.NewMethod(access, name, desc)
	if build != nil && m.Code != nil {
		build(c, m)
	}
	c.AddMethod(m)
	return m, true
}

// FreeLocal returns a local variable index above every slot m uses. index+1
// is free as well.
func FreeLocal(m *cf.Method) int {
	idx := cf.ArgumentsSize(m.Desc)
	if !m.IsStatic() {
		idx++
	}
	if m.Code == nil {
		return idx + 2
	}
	for _, in := range m.Code.Insns {
		switch i := in.(type) {
		case *cf.VarInsn:
			idx = max(idx, i.Var)
		case *cf.IincInsn:
			idx = max(idx, i.Var)
		}
	}
	return idx + 2
}

// LoadArgs returns the instructions pushing every parameter of a method
// with descriptor desc, starting at slot first.
func LoadArgs(desc string, first int) []cf.Insn {
	var out []cf.Insn
	slot := first
	for _, t := range cf.ArgumentTypes(desc) {
		out = append(out, cf.VarOp(t.Opcode(cf.ILOAD), slot))
		slot += t.Size()
	}
	return out
}

// bridgeIndex parses the counter of a bridge method name.
func bridgeIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, BridgePrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// nextBridgeIndex returns the first unused bridge counter of c: one past the
// highest existing index, or zero.
func nextBridgeIndex(c *cf.Class) int {
	next := 0
	for _, m := range c.Methods {
		if n, ok := bridgeIndex(m.Name); ok && n >= next {
			next = n + 1
		}
	}
	return next
}

// bridges hands out bridge names for one step over one class.
type bridges struct {
	class *cf.Class
	next  int
	init  bool
}

func (b *bridges) name() string {
	if !b.init {
		b.next = nextBridgeIndex(b.class)
		b.init = true
	}
	n := b.next
	b.next++
	return BridgePrefix + strconv.Itoa(n)
}

// bridgeDesc returns the descriptor of the bridge standing in for h.
func bridgeDesc(h cf.Handle) string {
	if h.IsStatic() {
		return h.Desc
	}
	return "(" + cf.ObjectType(h.Owner).Descriptor() + h.Desc[1:]
}

// bridge adds a method to ctx.Class whose body replays r for the handle h and
// returns the handle that invokes it.
func (b *bridges) bridge(ctx *Context, r Rule, h cf.Handle) (cf.Handle, error) {
	desc := bridgeDesc(h)
	m := cf.NewMethod(SyntheticAccess(b.class), b.name(), desc)
	m.Emit(LoadArgs(desc, 0)...)

	bctx := *ctx
	bctx.Method = m
	body, err := Expand(r, &bctx)
	if err != nil {
		return cf.Handle{}, err
	}
	m.Emit(body...)
	m.Emit(cf.Op(cf.ReturnType(h.Desc).Opcode(cf.IRETURN)))
	b.class.AddMethod(m)

	return cf.Handle{
		Kind:      cf.H_INVOKESTATIC,
		Owner:     b.class.Name,
		Name:      m.Name,
		Desc:      m.Desc,
		Interface: b.class.IsInterface(),
	}, nil
}
