package replacers

import (
	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/rewrite"
)

// Descriptors and owners used all over the catalogue.
const (
	objectDesc = "Ljava/lang/Object;"
	stringDesc = "Ljava/lang/String;"

	objects     = "java/util/Objects"
	collections = "java/util/Collections"
	sbClass     = "java/lang/StringBuilder"
)

func invokeStatic(owner, name, desc string) *cf.MethodInsn {
	return cf.Invoke(cf.INVOKESTATIC, owner, name, desc, false)
}

func invokeStaticItf(owner, name, desc string) *cf.MethodInsn {
	return cf.Invoke(cf.INVOKESTATIC, owner, name, desc, true)
}

func invokeVirtual(owner, name, desc string) *cf.MethodInsn {
	return cf.Invoke(cf.INVOKEVIRTUAL, owner, name, desc, false)
}

func invokeInterface(owner, name, desc string) *cf.MethodInsn {
	return cf.Invoke(cf.INVOKEINTERFACE, owner, name, desc, true)
}

func invokeSpecial(owner, name, desc string) *cf.MethodInsn {
	return cf.Invoke(cf.INVOKESPECIAL, owner, name, desc, false)
}

// invokeLike calls name+desc with the opcode and owner of the replaced call.
func invokeLike(ctx *rewrite.Context, name, desc string) *cf.MethodInsn {
	op := ctx.Op
	if op == cf.INVOKESTATIC || op == cf.INVOKESPECIAL {
		op = cf.INVOKEVIRTUAL
		if ctx.Interface {
			op = cf.INVOKEINTERFACE
		}
	}
	return cf.Invoke(op, ctx.Owner, name, desc, ctx.Interface)
}

func ops(codes ...cf.Opcode) []cf.Insn {
	out := make([]cf.Insn, len(codes))
	for i, op := range codes {
		out[i] = cf.Op(op)
	}
	return out
}

func concat(parts ...[]cf.Insn) []cf.Insn {
	var out []cf.Insn
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func requireNonNull() *cf.MethodInsn {
	return invokeStatic(objects, "requireNonNull", "(Ljava/lang/Object;)Ljava/lang/Object;")
}

func requireNonNullMsg(msg string) []cf.Insn {
	return []cf.Insn{
		cf.Ldc(msg),
		invokeStatic(objects, "requireNonNull", "(Ljava/lang/Object;Ljava/lang/String;)Ljava/lang/Object;"),
	}
}

// newInit allocates class and runs the no-argument constructor.
func newInit(class string) []cf.Insn {
	return []cf.Insn{
		cf.TypeOp(cf.NEW, class),
		cf.Op(cf.DUP),
		invokeSpecial(class, "<init>", "()V"),
	}
}

// wrapNew allocates class and runs the constructor taking the value on top
// of the stack, which must be a single slot value of type argDesc.
func wrapNew(class, argDesc string) []cf.Insn {
	return []cf.Insn{
		cf.TypeOp(cf.NEW, class),
		cf.Op(cf.DUP_X1),
		cf.Op(cf.SWAP),
		invokeSpecial(class, "<init>", "("+argDesc+")V"),
	}
}

// throwNew throws a new instance of class with the message msg.
func throwNew(class, msg string) []cf.Insn {
	return []cf.Insn{
		cf.TypeOp(cf.NEW, class),
		cf.Op(cf.DUP),
		cf.Ldc(msg),
		invokeSpecial(class, "<init>", "(Ljava/lang/String;)V"),
		cf.Op(cf.ATHROW),
	}
}

func appendDesc(argDesc string) string {
	return "(" + argDesc + ")L" + sbClass + ";"
}

// appendValue appends a value of type t on top of a StringBuilder.
func appendValue(t cf.Type) *cf.MethodInsn {
	switch t.Sort {
	case cf.SortByte, cf.SortShort:
		return invokeVirtual(sbClass, "append", appendDesc("I"))
	case cf.SortBoolean, cf.SortChar, cf.SortInt, cf.SortLong, cf.SortFloat, cf.SortDouble:
		return invokeVirtual(sbClass, "append", appendDesc(t.Descriptor()))
	default:
		if t.Descriptor() == stringDesc {
			return invokeVirtual(sbClass, "append", appendDesc(stringDesc))
		}
		return invokeVirtual(sbClass, "append", appendDesc(objectDesc))
	}
}

// boxOwner returns the wrapper class of a primitive type.
func boxOwner(t cf.Type) string {
	switch t.Sort {
	case cf.SortBoolean:
		return "java/lang/Boolean"
	case cf.SortByte:
		return "java/lang/Byte"
	case cf.SortShort:
		return "java/lang/Short"
	case cf.SortChar:
		return "java/lang/Character"
	case cf.SortInt:
		return "java/lang/Integer"
	case cf.SortFloat:
		return "java/lang/Float"
	case cf.SortLong:
		return "java/lang/Long"
	case cf.SortDouble:
		return "java/lang/Double"
	}
	return ""
}

// inline adapts a fixed instruction sequence to a rule.
func inline(insns func() []cf.Insn) rewrite.Inline {
	return rewrite.Inline{Emit: func(*rewrite.Context) ([]cf.Insn, error) {
		return insns(), nil
	}}
}
