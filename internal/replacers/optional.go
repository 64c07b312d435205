package replacers

import (
	"strings"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/rewrite"
)

// optionalKind describes Optional and its primitive specializations.
type optionalKind struct {
	class    string
	getter   string
	value    cf.Type
	consumer string
	stream   string
}

var optionalKinds = []optionalKind{
	{"java/util/Optional", "get", cf.ObjectType("java/lang/Object"), "java/util/function/Consumer", "java/util/stream/Stream"},
	{"java/util/OptionalInt", "getAsInt", cf.IntType, "java/util/function/IntConsumer", "java/util/stream/IntStream"},
	{"java/util/OptionalLong", "getAsLong", cf.LongType, "java/util/function/LongConsumer", "java/util/stream/LongStream"},
	{"java/util/OptionalDouble", "getAsDouble", cf.DoubleType, "java/util/function/DoubleConsumer", "java/util/stream/DoubleStream"},
}

func (k optionalKind) desc() string { return "L" + k.class + ";" }

// purpose names helpers after the optional class: "optionalInt" + suffix.
func (k optionalKind) purpose(suffix string) string {
	simple := cf.SimpleName(k.class)
	return strings.ToLower(simple[:1]) + simple[1:] + suffix
}

func (k optionalKind) get() *cf.MethodInsn {
	return invokeVirtual(k.class, k.getter, "()"+k.value.Descriptor())
}

func (k optionalKind) isPresent() *cf.MethodInsn {
	return invokeVirtual(k.class, "isPresent", "()Z")
}

func optionalIsEmpty(ctx *rewrite.Context) ([]cf.Insn, error) {
	return []cf.Insn{
		invokeVirtual(ctx.Owner, "isPresent", "()Z"),
		cf.Op(cf.ICONST_1),
		cf.Op(cf.IXOR),
	}, nil
}

func (k optionalKind) orElseThrow() rewrite.Redirect {
	return rewrite.Redirect{Name: k.getter, Desc: "()" + k.value.Descriptor()}
}

func (k optionalKind) ifPresentOrElse() rewrite.Helper {
	return rewrite.Helper{Methods: []rewrite.HelperMethod{{
		Name: k.purpose("IfPresentOrElse"),
		Desc: "(" + k.desc() + "L" + k.consumer + ";Ljava/lang/Runnable;)V",
		Build: func(_ *cf.Class, m *cf.Method) {
			empty := cf.NewLabel()
			m.Emit(
				cf.VarOp(cf.ALOAD, 0), k.isPresent(), cf.Jump(cf.IFEQ, empty),
				cf.VarOp(cf.ALOAD, 1), cf.VarOp(cf.ALOAD, 0), k.get(),
				invokeInterface(k.consumer, "accept", "("+k.value.Descriptor()+")V"),
				cf.Op(cf.RETURN),
				empty,
				cf.VarOp(cf.ALOAD, 2),
				invokeInterface("java/lang/Runnable", "run", "()V"),
				cf.Op(cf.RETURN),
			)
		},
	}}}
}

func (k optionalKind) toStream() rewrite.Helper {
	streamDesc := "L" + k.stream + ";"
	return rewrite.Helper{Methods: []rewrite.HelperMethod{{
		Name: k.purpose("Stream"),
		Desc: "(" + k.desc() + ")" + streamDesc,
		Build: func(_ *cf.Class, m *cf.Method) {
			empty := cf.NewLabel()
			m.Emit(
				cf.VarOp(cf.ALOAD, 0), k.isPresent(), cf.Jump(cf.IFEQ, empty),
				cf.VarOp(cf.ALOAD, 0), k.get(),
				invokeStaticItf(k.stream, "of", "("+k.value.Descriptor()+")"+streamDesc),
				cf.Op(cf.ARETURN),
				empty,
				invokeStaticItf(k.stream, "empty", "()"+streamDesc),
				cf.Op(cf.ARETURN),
			)
		},
	}}}
}

var optionalOr = rewrite.Helper{Methods: []rewrite.HelperMethod{{
	Name: "optionalOr",
	Desc: "(Ljava/util/Optional;Ljava/util/function/Supplier;)Ljava/util/Optional;",
	Build: func(_ *cf.Class, m *cf.Method) {
		const optional = "java/util/Optional"
		empty := cf.NewLabel()
		m.Emit(
			cf.VarOp(cf.ALOAD, 1), requireNonNull(), cf.Op(cf.POP),
			cf.VarOp(cf.ALOAD, 0), invokeVirtual(optional, "isPresent", "()Z"), cf.Jump(cf.IFEQ, empty),
			cf.VarOp(cf.ALOAD, 0), cf.Op(cf.ARETURN),
			empty,
			cf.VarOp(cf.ALOAD, 1),
			invokeInterface("java/util/function/Supplier", "get", "()Ljava/lang/Object;"),
			requireNonNull(),
			cf.TypeOp(cf.CHECKCAST, optional),
			cf.Op(cf.ARETURN),
		)
	},
}}}

// addOptionalRules registers the Optional methods added by Java 9.
func addOptionalRules(r *rewrite.Registry) {
	for _, k := range optionalKinds {
		r.Add(k.class, "ifPresentOrElse", k.ifPresentOrElse())
		r.Add(k.class, "stream", k.toStream())
	}
	r.AddDesc("java/util/Optional", "or", "(Ljava/util/function/Supplier;)Ljava/util/Optional;", optionalOr)
}
