package replacers

import (
	"fmt"
	"strings"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/rewrite"
	tt "github.com/gnolang/jdowngrader/internal/types"
)

const (
	objectMethods = "java/lang/runtime/ObjectMethods"
	recordClass   = "java/lang/Record"
)

// recordSite is the decoded argument list of an ObjectMethods call site.
type recordSite struct {
	class   string
	names   []string
	getters []cf.Handle
}

func decodeRecordSite(c *cf.Class, indy *cf.InvokeDynamicInsn) (recordSite, error) {
	site := recordSite{class: c.Name}
	if len(indy.Args) < 2 {
		return site, fmt.Errorf("%w: ObjectMethods call site %s without class and names", rewrite.ErrRulePrecondition, indy.Name)
	}
	if t, ok := indy.Args[0].(cf.Type); ok {
		site.class = t.InternalName()
	}
	names, ok := indy.Args[1].(string)
	if !ok {
		return site, fmt.Errorf("%w: ObjectMethods names are not a string", rewrite.ErrRulePrecondition)
	}
	if names != "" {
		site.names = strings.Split(names, ";")
	}
	for _, a := range indy.Args[2:] {
		h, ok := a.(cf.Handle)
		if !ok {
			return site, fmt.Errorf("%w: ObjectMethods getter is %T", rewrite.ErrRulePrecondition, a)
		}
		site.getters = append(site.getters, h)
	}
	if len(site.names) != len(site.getters) {
		return site, fmt.Errorf("%w: %d component names for %d getters",
			rewrite.ErrRulePrecondition, len(site.names), len(site.getters))
	}
	return site, nil
}

// componentType returns the type a getter handle produces.
func componentType(h cf.Handle) cf.Type {
	if h.Kind == cf.H_GETFIELD {
		return cf.ParseType(h.Desc)
	}
	return cf.ReturnType(h.Desc)
}

// loadComponent pushes the component read by h from the record in local.
func loadComponent(h cf.Handle, local int) []cf.Insn {
	load := cf.VarOp(cf.ALOAD, local)
	switch h.Kind {
	case cf.H_GETFIELD:
		return []cf.Insn{load, cf.FieldOp(cf.GETFIELD, h.Owner, h.Name, h.Desc)}
	case cf.H_INVOKEINTERFACE:
		return []cf.Insn{load, cf.Invoke(cf.INVOKEINTERFACE, h.Owner, h.Name, h.Desc, true)}
	default:
		return []cf.Insn{load, cf.Invoke(cf.INVOKEVIRTUAL, h.Owner, h.Name, h.Desc, h.Interface)}
	}
}

// buildRecordEquals compares the instance and the candidate component by
// component, primitives by value and floating point as Float/Double.compare.
func buildRecordEquals(site recordSite, m *cf.Method) {
	differ, same := cf.NewLabel(), cf.NewLabel()
	m.Emit(
		cf.VarOp(cf.ALOAD, 0), cf.VarOp(cf.ALOAD, 1), cf.Jump(cf.IF_ACMPEQ, same),
		cf.VarOp(cf.ALOAD, 1), cf.TypeOp(cf.INSTANCEOF, site.class), cf.Jump(cf.IFEQ, differ),
		cf.VarOp(cf.ALOAD, 1), cf.TypeOp(cf.CHECKCAST, site.class), cf.VarOp(cf.ASTORE, 2),
	)
	for _, h := range site.getters {
		m.Emit(loadComponent(h, 0)...)
		m.Emit(loadComponent(h, 2)...)
		switch t := componentType(h); t.Sort {
		case cf.SortBoolean, cf.SortByte, cf.SortChar, cf.SortShort, cf.SortInt:
			m.Emit(cf.Jump(cf.IF_ICMPNE, differ))
		case cf.SortLong:
			m.Emit(cf.Op(cf.LCMP), cf.Jump(cf.IFNE, differ))
		case cf.SortFloat:
			m.Emit(invokeStatic("java/lang/Float", "compare", "(FF)I"), cf.Jump(cf.IFNE, differ))
		case cf.SortDouble:
			m.Emit(invokeStatic("java/lang/Double", "compare", "(DD)I"), cf.Jump(cf.IFNE, differ))
		default:
			m.Emit(invokeStatic(objects, "equals", "(Ljava/lang/Object;Ljava/lang/Object;)Z"), cf.Jump(cf.IFEQ, differ))
		}
	}
	m.Emit(
		same, cf.Op(cf.ICONST_1), cf.Op(cf.IRETURN),
		differ, cf.Op(cf.ICONST_0), cf.Op(cf.IRETURN),
	)
}

// buildRecordHashCode folds 31*h + hash(component) over the components.
func buildRecordHashCode(site recordSite, m *cf.Method) {
	m.Emit(cf.Op(cf.ICONST_0))
	for _, h := range site.getters {
		m.Emit(cf.PushInt(31), cf.Op(cf.IMUL))
		m.Emit(loadComponent(h, 0)...)
		if t := componentType(h); t.IsReference() {
			m.Emit(invokeStatic(objects, "hashCode", "(Ljava/lang/Object;)I"))
		} else {
			m.Emit(invokeStatic(boxOwner(t), "hashCode", "("+t.Descriptor()+")I"))
		}
		m.Emit(cf.Op(cf.IADD))
	}
	m.Emit(cf.Op(cf.IRETURN))
}

// buildRecordToString renders Name[a=1, b=x].
func buildRecordToString(c *cf.Class, site recordSite, m *cf.Method) {
	m.Emit(newInit(sbClass)...)
	text := recordSimpleName(c, site.class) + "["
	for i, h := range site.getters {
		if i > 0 {
			text += ", "
		}
		text += site.names[i] + "="
		m.Emit(cf.Ldc(text), invokeVirtual(sbClass, "append", appendDesc(stringDesc)))
		m.Emit(loadComponent(h, 0)...)
		m.Emit(appendValue(componentType(h)))
		text = ""
	}
	m.Emit(
		cf.Ldc(text+"]"), invokeVirtual(sbClass, "append", appendDesc(stringDesc)),
		invokeVirtual(sbClass, "toString", "()Ljava/lang/String;"),
		cf.Op(cf.ARETURN),
	)
}

// recordSimpleName mirrors Class.getSimpleName for the record class.
func recordSimpleName(c *cf.Class, class string) string {
	for _, ic := range c.InnerClasses {
		if ic.Name == class && ic.InnerName != "" {
			return ic.InnerName
		}
	}
	return cf.SimpleName(class)
}

// lowerRecords replaces the ObjectMethods bootstrap with per-class helpers
// and strips the record metadata. The super class and constructor chain are
// renamed to java/lang/Object by the step's remap table.
func lowerRecords(c *cf.Class, _ tt.DepCollector, res *tt.Result) error {
	for _, m := range c.Methods {
		if m.Code == nil {
			continue
		}
		for i, in := range m.Code.Insns {
			indy, ok := in.(*cf.InvokeDynamicInsn)
			if !ok || indy.Bootstrap.Owner != objectMethods {
				continue
			}
			call, err := recordHelper(c, indy, res)
			if err != nil {
				return fmt.Errorf("%s.%s%s: %w", c.Name, m.Name, m.Desc, err)
			}
			m.Code.Insns[i] = call
			res.Replaced++
		}
	}
	c.Record = false
	c.RecordComponents = nil
	return nil
}

func recordHelper(c *cf.Class, indy *cf.InvokeDynamicInsn, res *tt.Result) (*cf.MethodInsn, error) {
	site, err := decodeRecordSite(c, indy)
	if err != nil {
		return nil, err
	}
	var build func(*cf.Class, *cf.Method)
	switch indy.Name {
	case "equals":
		build = func(_ *cf.Class, m *cf.Method) { buildRecordEquals(site, m) }
	case "hashCode":
		build = func(_ *cf.Class, m *cf.Method) { buildRecordHashCode(site, m) }
	case "toString":
		build = func(c *cf.Class, m *cf.Method) { buildRecordToString(c, site, m) }
	default:
		return nil, fmt.Errorf("%w: unknown ObjectMethods method %q", rewrite.ErrRulePrecondition, indy.Name)
	}
	m, created := rewrite.EnsureMethod(c, rewrite.SyntheticAccess(c), rewrite.HelperName("record$"+indy.Name), indy.Desc, build)
	if created {
		res.MarkRevalidation()
	}
	return cf.Invoke(cf.INVOKESTATIC, c.Name, m.Name, m.Desc, c.IsInterface()), nil
}
