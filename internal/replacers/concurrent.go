package replacers

import (
	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/rewrite"
)

const (
	randomClass = "java/util/Random"
	future      = "java/util/concurrent/CompletableFuture"
	futureDesc  = "Ljava/util/concurrent/CompletableFuture;"
	executor    = "Ljava/util/concurrent/Executor;"
	function    = "java/util/function/Function"
)

var checkBound = rewrite.HelperMethod{
	Name: "checkBound",
	Desc: "(J)V",
	Build: func(_ *cf.Class, m *cf.Method) {
		ok := cf.NewLabel()
		m.Emit(cf.VarOp(cf.LLOAD, 0), cf.Op(cf.LCONST_0), cf.Op(cf.LCMP), cf.Jump(cf.IFGT, ok))
		m.Emit(throwNew("java/lang/IllegalArgumentException", "bound must be positive")...)
		m.Emit(ok, cf.Op(cf.RETURN))
	},
}

// boundedNextLong draws uniformly from [0, bound) by rejection sampling.
// Locals: 0 rng, 1 bound, 3 r, 5 bound-1, 7 u.
var boundedNextLong = rewrite.HelperMethod{
	Name: "boundedNextLong",
	Desc: "(Ljava/util/Random;J)J",
	Build: func(_ *cf.Class, m *cf.Method) {
		notPow2, loop, done := cf.NewLabel(), cf.NewLabel(), cf.NewLabel()
		next := invokeVirtual(randomClass, "nextLong", "()J")
		m.Emit(
			cf.VarOp(cf.ALOAD, 0), next, cf.VarOp(cf.LSTORE, 3),
			cf.VarOp(cf.LLOAD, 1), cf.Op(cf.LCONST_1), cf.Op(cf.LSUB), cf.VarOp(cf.LSTORE, 5),
			cf.VarOp(cf.LLOAD, 1), cf.VarOp(cf.LLOAD, 5), cf.Op(cf.LAND), cf.Op(cf.LCONST_0), cf.Op(cf.LCMP),
			cf.Jump(cf.IFNE, notPow2),
			cf.VarOp(cf.LLOAD, 3), cf.VarOp(cf.LLOAD, 5), cf.Op(cf.LAND), cf.Op(cf.LRETURN),
			notPow2,
			cf.VarOp(cf.LLOAD, 3), cf.Op(cf.ICONST_1), cf.Op(cf.LUSHR), cf.VarOp(cf.LSTORE, 7),
			loop,
			cf.VarOp(cf.LLOAD, 7), cf.VarOp(cf.LLOAD, 5), cf.Op(cf.LADD),
			cf.VarOp(cf.LLOAD, 7), cf.VarOp(cf.LLOAD, 1), cf.Op(cf.LREM),
			cf.Op(cf.DUP2), cf.VarOp(cf.LSTORE, 3),
			cf.Op(cf.LSUB), cf.Op(cf.LCONST_0), cf.Op(cf.LCMP),
			cf.Jump(cf.IFGE, done),
			cf.VarOp(cf.ALOAD, 0), next, cf.Op(cf.ICONST_1), cf.Op(cf.LUSHR), cf.VarOp(cf.LSTORE, 7),
			cf.Jump(cf.GOTO, loop),
			done,
			cf.VarOp(cf.LLOAD, 3), cf.Op(cf.LRETURN),
		)
	},
}

var randomNextLong = rewrite.Helper{
	Methods: []rewrite.HelperMethod{checkBound, boundedNextLong},
	Emit: func(_ *rewrite.Context, calls []*cf.MethodInsn) ([]cf.Insn, error) {
		return []cf.Insn{cf.Op(cf.DUP2), calls[0], calls[1]}, nil
	},
}

func helperHandle(call *cf.MethodInsn) cf.Handle {
	return cf.Handle{
		Kind:      cf.H_INVOKESTATIC,
		Owner:     call.Owner,
		Name:      call.Name,
		Desc:      call.Desc,
		Interface: call.Interface,
	}
}

var exceptionallyApply = rewrite.HelperMethod{
	Name: "exceptionallyAsync$apply",
	Desc: "(Ljava/util/function/Function;Ljava/lang/Throwable;)Ljava/lang/Object;",
	Build: func(_ *cf.Class, m *cf.Method) {
		m.Emit(
			cf.VarOp(cf.ALOAD, 0), cf.VarOp(cf.ALOAD, 1),
			invokeInterface(function, "apply", "(Ljava/lang/Object;)Ljava/lang/Object;"),
			cf.Op(cf.ARETURN),
		)
	},
}

// exceptionallyHandle is the handle(...) callback: completed values pass
// through, failures are recovered asynchronously on the executor, or the
// default async pool when none was given.
var exceptionallyHandle = rewrite.HelperMethod{
	Name: "exceptionallyAsync$handle",
	Desc: "(Ljava/util/function/Function;" + executor + "Ljava/lang/Object;Ljava/lang/Throwable;)" + futureDesc,
	Build: func(c *cf.Class, m *cf.Method) {
		failed, defaultPool := cf.NewLabel(), cf.NewLabel()
		apply := helperHandle(cf.Invoke(cf.INVOKESTATIC, c.Name, rewrite.HelperName(exceptionallyApply.Name),
			exceptionallyApply.Desc, c.IsInterface()))
		supplier := lambda("java/util/function/Supplier", "get", "()Ljava/lang/Object;",
			"Ljava/util/function/Function;Ljava/lang/Throwable;", apply, "()Ljava/lang/Object;")
		m.Emit(
			cf.VarOp(cf.ALOAD, 3), cf.Jump(cf.IFNONNULL, failed),
			cf.VarOp(cf.ALOAD, 2),
			invokeStatic(future, "completedFuture", "(Ljava/lang/Object;)"+futureDesc),
			cf.Op(cf.ARETURN),
			failed,
			cf.VarOp(cf.ALOAD, 0), cf.VarOp(cf.ALOAD, 3), supplier,
			cf.VarOp(cf.ALOAD, 1), cf.Jump(cf.IFNULL, defaultPool),
			cf.VarOp(cf.ALOAD, 1),
			invokeStatic(future, "supplyAsync", "(Ljava/util/function/Supplier;"+executor+")"+futureDesc),
			cf.Op(cf.ARETURN),
			defaultPool,
			invokeStatic(future, "supplyAsync", "(Ljava/util/function/Supplier;)"+futureDesc),
			cf.Op(cf.ARETURN),
		)
	},
}

// exceptionallyAsync rewrites f.exceptionallyAsync(fn[, executor]) into
// f.handle(callback).thenCompose(identity()).
var exceptionallyAsync = rewrite.Helper{
	Methods: []rewrite.HelperMethod{exceptionallyApply, exceptionallyHandle},
	Emit: func(ctx *rewrite.Context, calls []*cf.MethodInsn) ([]cf.Insn, error) {
		var out []cf.Insn
		switch len(ctx.Args()) {
		case 1:
			out = append(out, cf.Op(cf.ACONST_NULL))
		case 2:
		default:
			return nil, ctx.Preconditionf("unexpected arguments")
		}
		return append(out,
			lambda("java/util/function/BiFunction", "apply", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;",
				"Ljava/util/function/Function;"+executor, helperHandle(calls[1]),
				"(Ljava/lang/Object;Ljava/lang/Throwable;)"+futureDesc),
			invokeVirtual(future, "handle", "(Ljava/util/function/BiFunction;)"+futureDesc),
			invokeStaticItf(function, "identity", "()Ljava/util/function/Function;"),
			invokeVirtual(future, "thenCompose", "(Ljava/util/function/Function;)"+futureDesc),
		), nil
	},
}
