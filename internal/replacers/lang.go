package replacers

import (
	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/rewrite"
)

const (
	stringClass = "java/lang/String"
	charSeq     = "java/lang/CharSequence"
)

var stringIsBlank = rewrite.Helper{Methods: []rewrite.HelperMethod{{
	Name: "isBlank",
	Desc: "(Ljava/lang/String;)Z",
	Build: func(_ *cf.Class, m *cf.Method) {
		loop, blank, notBlank := cf.NewLabel(), cf.NewLabel(), cf.NewLabel()
		m.Emit(
			cf.VarOp(cf.ALOAD, 0), invokeVirtual(stringClass, "length", "()I"), cf.VarOp(cf.ISTORE, 1),
			cf.Op(cf.ICONST_0), cf.VarOp(cf.ISTORE, 2),
			loop,
			cf.VarOp(cf.ILOAD, 2), cf.VarOp(cf.ILOAD, 1), cf.Jump(cf.IF_ICMPGE, blank),
			cf.VarOp(cf.ALOAD, 0), cf.VarOp(cf.ILOAD, 2),
			invokeVirtual(stringClass, "codePointAt", "(I)I"),
			cf.VarOp(cf.ISTORE, 3),
			cf.VarOp(cf.ILOAD, 3),
			invokeStatic("java/lang/Character", "isWhitespace", "(I)Z"),
			cf.Jump(cf.IFEQ, notBlank),
			cf.VarOp(cf.ILOAD, 2), cf.VarOp(cf.ILOAD, 3),
			invokeStatic("java/lang/Character", "charCount", "(I)I"),
			cf.Op(cf.IADD), cf.VarOp(cf.ISTORE, 2),
			cf.Jump(cf.GOTO, loop),
			blank,
			cf.Op(cf.ICONST_1), cf.Op(cf.IRETURN),
			notBlank,
			cf.Op(cf.ICONST_0), cf.Op(cf.IRETURN),
		)
	},
}}}

var stringRepeat = rewrite.Helper{Methods: []rewrite.HelperMethod{{
	Name: "repeat",
	Desc: "(Ljava/lang/String;I)Ljava/lang/String;",
	Build: func(_ *cf.Class, m *cf.Method) {
		valid, loop, done := cf.NewLabel(), cf.NewLabel(), cf.NewLabel()
		m.Emit(cf.VarOp(cf.ILOAD, 1), cf.Jump(cf.IFGE, valid))
		m.Emit(throwNew("java/lang/IllegalArgumentException", "count is negative")...)
		m.Emit(valid, cf.VarOp(cf.ALOAD, 0), requireNonNull(), cf.Op(cf.POP))
		m.Emit(newInit(sbClass)...)
		m.Emit(
			cf.VarOp(cf.ASTORE, 2),
			cf.Op(cf.ICONST_0), cf.VarOp(cf.ISTORE, 3),
			loop,
			cf.VarOp(cf.ILOAD, 3), cf.VarOp(cf.ILOAD, 1), cf.Jump(cf.IF_ICMPGE, done),
			cf.VarOp(cf.ALOAD, 2), cf.VarOp(cf.ALOAD, 0),
			invokeVirtual(sbClass, "append", appendDesc(stringDesc)),
			cf.Op(cf.POP),
			cf.Iinc(3, 1),
			cf.Jump(cf.GOTO, loop),
			done,
			cf.VarOp(cf.ALOAD, 2),
			invokeVirtual(sbClass, "toString", "()Ljava/lang/String;"),
			cf.Op(cf.ARETURN),
		)
	},
}}}

var stringFormatted = rewrite.Redirect{
	Op:    cf.INVOKESTATIC,
	Owner: stringClass,
	Name:  "format",
	Desc:  "(Ljava/lang/String;[Ljava/lang/Object;)Ljava/lang/String;",
}

func stringTransform() []cf.Insn {
	return []cf.Insn{
		cf.Op(cf.SWAP),
		invokeInterface("java/util/function/Function", "apply", "(Ljava/lang/Object;)Ljava/lang/Object;"),
	}
}

// charSeqIsEmpty computes length() == 0 without branching: lengths are
// never negative, so the signum is 0 or 1.
func charSeqIsEmpty(ctx *rewrite.Context) ([]cf.Insn, error) {
	return []cf.Insn{
		invokeLike(ctx, "length", "()I"),
		invokeStatic("java/lang/Integer", "signum", "(I)I"),
		cf.Op(cf.ICONST_1),
		cf.Op(cf.IXOR),
	}, nil
}

func characterToString() []cf.Insn {
	return []cf.Insn{
		cf.TypeOp(cf.NEW, stringClass),
		cf.Op(cf.DUP_X1),
		cf.Op(cf.SWAP),
		invokeStatic("java/lang/Character", "toChars", "(I)[C"),
		invokeSpecial(stringClass, "<init>", "([C)V"),
	}
}

// parseRange parses s.subSequence(begin, end) with the String overload of
// the same method, for both int and long results.
func parseRange(ctx *rewrite.Context) ([]cf.Insn, error) {
	args := ctx.Args()
	if len(args) != 4 || args[0].Descriptor() != "Ljava/lang/CharSequence;" {
		return nil, ctx.Preconditionf("expected (CharSequence, int, int, int)")
	}
	ret := cf.ReturnType(ctx.Desc)
	out := []cf.Insn{
		cf.Op(cf.DUP2_X2),
		cf.Op(cf.POP),
		invokeInterface(charSeq, "subSequence", "(II)Ljava/lang/CharSequence;"),
		invokeInterface(charSeq, "toString", "()Ljava/lang/String;"),
		cf.Op(cf.SWAP),
		invokeStatic(ctx.Owner, ctx.Name, "(Ljava/lang/String;I)"+ret.Descriptor()),
	}
	if ret.Size() == 2 {
		return append(out, cf.Op(cf.DUP2_X1), cf.Op(cf.POP2), cf.Op(cf.POP)), nil
	}
	return append(out, cf.Op(cf.SWAP), cf.Op(cf.POP)), nil
}

var requireNonNullElse = rewrite.Helper{Methods: []rewrite.HelperMethod{{
	Name: "requireNonNullElse",
	Desc: "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;",
	Build: func(_ *cf.Class, m *cf.Method) {
		null := cf.NewLabel()
		m.Emit(cf.VarOp(cf.ALOAD, 0), cf.Jump(cf.IFNULL, null), cf.VarOp(cf.ALOAD, 0), cf.Op(cf.ARETURN), null)
		m.Emit(cf.VarOp(cf.ALOAD, 1))
		m.Emit(requireNonNullMsg("defaultObj")...)
		m.Emit(cf.Op(cf.ARETURN))
	},
}}}

var requireNonNullElseGet = rewrite.Helper{Methods: []rewrite.HelperMethod{{
	Name: "requireNonNullElseGet",
	Desc: "(Ljava/lang/Object;Ljava/util/function/Supplier;)Ljava/lang/Object;",
	Build: func(_ *cf.Class, m *cf.Method) {
		null := cf.NewLabel()
		m.Emit(cf.VarOp(cf.ALOAD, 0), cf.Jump(cf.IFNULL, null), cf.VarOp(cf.ALOAD, 0), cf.Op(cf.ARETURN), null)
		m.Emit(cf.VarOp(cf.ALOAD, 1))
		m.Emit(requireNonNullMsg("supplier")...)
		m.Emit(
			cf.TypeOp(cf.CHECKCAST, "java/util/function/Supplier"),
			invokeInterface("java/util/function/Supplier", "get", "()Ljava/lang/Object;"),
		)
		m.Emit(requireNonNullMsg("supplier.get()")...)
		m.Emit(cf.Op(cf.ARETURN))
	},
}}}

var checkIndex = rewrite.Helper{Methods: []rewrite.HelperMethod{{
	Name: "checkIndex",
	Desc: "(II)I",
	Build: func(_ *cf.Class, m *cf.Method) {
		const ioobe = "java/lang/IndexOutOfBoundsException"
		bad := cf.NewLabel()
		m.Emit(
			cf.VarOp(cf.ILOAD, 0), cf.Jump(cf.IFLT, bad),
			cf.VarOp(cf.ILOAD, 0), cf.VarOp(cf.ILOAD, 1), cf.Jump(cf.IF_ICMPGE, bad),
			cf.VarOp(cf.ILOAD, 0), cf.Op(cf.IRETURN),
			bad,
			cf.TypeOp(cf.NEW, ioobe), cf.Op(cf.DUP),
		)
		m.Emit(newInit(sbClass)...)
		m.Emit(
			cf.Ldc("Index "), invokeVirtual(sbClass, "append", appendDesc(stringDesc)),
			cf.VarOp(cf.ILOAD, 0), invokeVirtual(sbClass, "append", appendDesc("I")),
			cf.Ldc(" out of bounds for length "), invokeVirtual(sbClass, "append", appendDesc(stringDesc)),
			cf.VarOp(cf.ILOAD, 1), invokeVirtual(sbClass, "append", appendDesc("I")),
			invokeVirtual(sbClass, "toString", "()Ljava/lang/String;"),
			invokeSpecial(ioobe, "<init>", "(Ljava/lang/String;)V"),
			cf.Op(cf.ATHROW),
		)
	},
}}}

func classArrayType() []cf.Insn {
	return []cf.Insn{
		cf.Op(cf.ICONST_0),
		invokeStatic("java/lang/reflect/Array", "newInstance", "(Ljava/lang/Class;I)Ljava/lang/Object;"),
		invokeVirtual("java/lang/Object", "getClass", "()Ljava/lang/Class;"),
	}
}

const (
	matcher      = "java/util/regex/Matcher"
	stringBuffer = "java/lang/StringBuffer"
)

// Matcher only accepts StringBuffer before Java 9: the text goes through a
// temporary buffer that is appended to the builder afterwards.

func matcherAppendTail(ctx *rewrite.Context) ([]cf.Insn, error) {
	tmp := ctx.FreeLocal()
	return concat(newInit(stringBuffer), []cf.Insn{
		cf.VarOp(cf.ASTORE, tmp),
		cf.Op(cf.DUP_X1),
		cf.Op(cf.POP),
		cf.VarOp(cf.ALOAD, tmp),
		invokeVirtual(matcher, "appendTail", "(Ljava/lang/StringBuffer;)Ljava/lang/StringBuffer;"),
		invokeVirtual(sbClass, "append", appendDesc("Ljava/lang/StringBuffer;")),
	}), nil
}

func matcherAppendReplacement(ctx *rewrite.Context) ([]cf.Insn, error) {
	tmp := ctx.FreeLocal()
	return concat(newInit(stringBuffer), []cf.Insn{
		cf.VarOp(cf.ASTORE, tmp),
		cf.Op(cf.DUP2_X1),
		cf.Op(cf.POP2),
		cf.Op(cf.SWAP),
		cf.VarOp(cf.ALOAD, tmp),
		cf.Op(cf.SWAP),
		invokeVirtual(matcher, "appendReplacement", "(Ljava/lang/StringBuffer;Ljava/lang/String;)Ljava/util/regex/Matcher;"),
		cf.Op(cf.SWAP),
		cf.VarOp(cf.ALOAD, tmp),
		invokeVirtual(sbClass, "append", appendDesc("Ljava/lang/StringBuffer;")),
		cf.Op(cf.POP),
	}), nil
}

var bufferClasses = []string{
	"java/nio/ByteBuffer",
	"java/nio/CharBuffer",
	"java/nio/ShortBuffer",
	"java/nio/IntBuffer",
	"java/nio/LongBuffer",
	"java/nio/FloatBuffer",
	"java/nio/DoubleBuffer",
	"java/nio/MappedByteBuffer",
}

// bufferCovariant calls the java/nio/Buffer signature and casts the result
// back to the type the call site expects.
func bufferCovariant(ctx *rewrite.Context) ([]cf.Insn, error) {
	ret := cf.ReturnType(ctx.Desc)
	if ret.Sort != cf.SortObject {
		return nil, ctx.Preconditionf("expected a buffer return type")
	}
	desc := ctx.Desc[:len(ctx.Desc)-len(ret.Descriptor())] + "Ljava/nio/Buffer;"
	return []cf.Insn{
		invokeVirtual(ctx.Owner, ctx.Name, desc),
		cf.TypeOp(cf.CHECKCAST, ret.InternalName()),
	}, nil
}

// addBufferRules registers every buffer method whose return type became
// covariant in Java 9.
func addBufferRules(r *rewrite.Registry) {
	rule := rewrite.Inline{Emit: bufferCovariant}
	for _, owner := range bufferClasses {
		rets := []string{"L" + owner + ";"}
		if owner == "java/nio/MappedByteBuffer" {
			rets = append(rets, "Ljava/nio/ByteBuffer;")
		}
		for _, ret := range rets {
			for _, name := range []string{"flip", "clear", "mark", "reset", "rewind"} {
				r.AddDesc(owner, name, "()"+ret, rule)
			}
			for _, name := range []string{"position", "limit"} {
				r.AddDesc(owner, name, "(I)"+ret, rule)
			}
		}
	}
}
