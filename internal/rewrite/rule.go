package rewrite

import (
	"errors"
	"fmt"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	tt "github.com/gnolang/jdowngrader/internal/types"
)

// ErrRulePrecondition is returned when a rule is applied to a call shape it
// does not handle. It is fatal for the class being rewritten.
var ErrRulePrecondition = errors.New("rule precondition failed")

// Context describes the call site a rule is expanded for.
type Context struct {
	// Class is the unit being rewritten.
	Class *cf.Class
	// Method contains the call site. For bridges it is the bridge itself.
	Method *cf.Method
	// Op is the invocation opcode of the replaced call.
	Op        cf.Opcode
	Owner     string
	Name      string
	Desc      string
	Interface bool
	Deps      tt.DepCollector
	Result    *tt.Result
}

// Args returns the argument types of the replaced call, receiver excluded.
func (ctx *Context) Args() []cf.Type {
	return cf.ArgumentTypes(ctx.Desc)
}

// FreeLocal returns a local variable index not used anywhere in the method.
// The next index is free as well, so a long or double fits.
func (ctx *Context) FreeLocal() int {
	return FreeLocal(ctx.Method)
}

// Preconditionf builds an error wrapping ErrRulePrecondition.
func (ctx *Context) Preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s.%s%s: %s", ErrRulePrecondition, ctx.Owner, ctx.Name, ctx.Desc, fmt.Sprintf(format, args...))
}

// Rule is the replacement registered for a call-site key. The set of
// implementations is closed: Inline, Redirect and Helper.
type Rule interface {
	rule()
}

// Inline replaces the call with the instructions returned by Emit.
type Inline struct {
	Emit func(ctx *Context) ([]cf.Insn, error)
}

// Redirect replaces the call with a call to another method. Empty fields
// keep the value of the replaced call; a zero Op keeps its opcode.
type Redirect struct {
	Op        cf.Opcode
	Owner     string
	Name      string
	Desc      string
	Interface bool
	// Deps lists shim classes the new target lives in.
	Deps []string
}

// HelperMethod is a private static synthetic method added to the unit on
// first use and shared by every call site of the unit.
type HelperMethod struct {
	// Name is the purpose; the method is called "jdowngrader-" + Name.
	Name       string
	Desc       string
	Exceptions []string
	// Build fills the body of the freshly created method.
	Build func(c *cf.Class, m *cf.Method)
}

// Helper replaces the call with code calling one or more helper methods.
// When Emit is nil a single invokestatic of the first helper is emitted.
type Helper struct {
	Methods []HelperMethod
	Emit    func(ctx *Context, calls []*cf.MethodInsn) ([]cf.Insn, error)
}

func (Inline) rule()   {}
func (Redirect) rule() {}
func (Helper) rule()   {}

// Expand returns the instructions replacing the call described by ctx.
func Expand(r Rule, ctx *Context) ([]cf.Insn, error) {
	var (
		out []cf.Insn
		err error
	)
	switch r := r.(type) {
	case Inline:
		out, err = r.Emit(ctx)
	case Redirect:
		out = []cf.Insn{r.call(ctx)}
		for _, d := range r.Deps {
			ctx.Deps(d)
		}
	case Helper:
		out, err = r.expand(ctx)
	default:
		err = fmt.Errorf("%w: unknown rule %T", ErrRulePrecondition, r)
	}
	if err != nil {
		return nil, err
	}
	if hasBranches(out) {
		ctx.Result.MarkRevalidation()
	}
	return out, nil
}

func (r Redirect) call(ctx *Context) *cf.MethodInsn {
	in := &cf.MethodInsn{Op: r.Op, Owner: r.Owner, Name: r.Name, Desc: r.Desc, Interface: r.Interface}
	if in.Op == 0 {
		in.Op = ctx.Op
	}
	if in.Owner == "" {
		in.Owner = ctx.Owner
		in.Interface = ctx.Interface
	}
	if in.Name == "" {
		in.Name = ctx.Name
	}
	if in.Desc == "" {
		in.Desc = ctx.Desc
	}
	if in.Op == cf.INVOKEINTERFACE {
		in.Interface = true
	}
	return in
}

func (h Helper) expand(ctx *Context) ([]cf.Insn, error) {
	if len(h.Methods) == 0 {
		return nil, ctx.Preconditionf("helper rule without methods")
	}
	calls := make([]*cf.MethodInsn, len(h.Methods))
	for i, hm := range h.Methods {
		m, created := EnsureMethod(ctx.Class, SyntheticAccess(ctx.Class), HelperName(hm.Name), hm.Desc, hm.Build)
		if created {
			m.Exceptions = append([]string(nil), hm.Exceptions...)
			if hasBranches(m.Code.Insns) {
				ctx.Result.MarkRevalidation()
			}
		}
		calls[i] = cf.Invoke(cf.INVOKESTATIC, ctx.Class.Name, m.Name, m.Desc, ctx.Class.IsInterface())
	}
	if h.Emit == nil {
		return []cf.Insn{calls[0]}, nil
	}
	return h.Emit(ctx, calls)
}

// hasBranches reports whether insns alter control flow in a way existing
// stack map frames cannot describe.
func hasBranches(insns []cf.Insn) bool {
	for _, in := range insns {
		switch in.(type) {
		case *cf.Label, *cf.JumpInsn, *cf.TableSwitchInsn, *cf.LookupSwitchInsn:
			return true
		}
	}
	return false
}
