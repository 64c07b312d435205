package replacers

import (
	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/rewrite"
)

const (
	listClass     = "java/util/List"
	setClass      = "java/util/Set"
	mapClass      = "java/util/Map"
	entryClass    = "java/util/Map$Entry"
	arrays        = "java/util/Arrays"
	collectors    = "java/util/stream/Collectors"
	collectorDesc = "Ljava/util/stream/Collector;"
	objArrayDesc  = "[Ljava/lang/Object;"
)

// unmodifiable wraps the collection on the stack, kind being List, Set or
// Map.
func unmodifiable(kind string) *cf.MethodInsn {
	desc := "Ljava/util/" + kind + ";"
	return invokeStatic(collections, "unmodifiable"+kind, "("+desc+")"+desc)
}

// storeArray pops n references into a fresh Object[] kept in local tmp.
// Elements land in call order; each one is null-checked first when
// nonNull is set.
func storeArray(n, tmp int, nonNull bool) []cf.Insn {
	out := []cf.Insn{
		cf.PushInt(n),
		cf.TypeOp(cf.ANEWARRAY, "java/lang/Object"),
		cf.VarOp(cf.ASTORE, tmp),
	}
	for i := n - 1; i >= 0; i-- {
		out = append(out, cf.VarOp(cf.ALOAD, tmp), cf.Op(cf.SWAP))
		if nonNull {
			out = append(out, requireNonNull())
		}
		out = append(out, cf.PushInt(i), cf.Op(cf.SWAP), cf.Op(cf.AASTORE))
	}
	return out
}

func isVarargs(args []cf.Type) bool {
	return len(args) == 1 && args[0].Sort == cf.SortArray
}

func listOf(ctx *rewrite.Context) ([]cf.Insn, error) {
	args := ctx.Args()
	switch {
	case isVarargs(args):
		return rewrite.Expand(listOfArray, ctx)
	case len(args) == 0:
		return []cf.Insn{invokeStatic(collections, "emptyList", "()Ljava/util/List;")}, nil
	case len(args) == 1:
		return []cf.Insn{
			requireNonNull(),
			invokeStatic(collections, "singletonList", "(Ljava/lang/Object;)Ljava/util/List;"),
		}, nil
	}
	tmp := ctx.FreeLocal()
	return concat(storeArray(len(args), tmp, true), []cf.Insn{
		cf.VarOp(cf.ALOAD, tmp),
		invokeStatic(arrays, "asList", "([Ljava/lang/Object;)Ljava/util/List;"),
		unmodifiable("List"),
	}), nil
}

func setOf(ctx *rewrite.Context) ([]cf.Insn, error) {
	args := ctx.Args()
	switch {
	case isVarargs(args):
		return rewrite.Expand(setOfArray, ctx)
	case len(args) == 0:
		return []cf.Insn{invokeStatic(collections, "emptySet", "()Ljava/util/Set;")}, nil
	case len(args) == 1:
		return []cf.Insn{
			requireNonNull(),
			invokeStatic(collections, "singleton", "(Ljava/lang/Object;)Ljava/util/Set;"),
		}, nil
	}
	tmp := ctx.FreeLocal()
	return concat(storeArray(len(args), tmp, true), []cf.Insn{
		cf.VarOp(cf.ALOAD, tmp),
		invokeStatic(arrays, "asList", "([Ljava/lang/Object;)Ljava/util/List;"),
	}, wrapNew("java/util/HashSet", "Ljava/util/Collection;"), []cf.Insn{
		unmodifiable("Set"),
	}), nil
}

func mapOf(ctx *rewrite.Context) ([]cf.Insn, error) {
	n := len(ctx.Args())
	if n%2 != 0 {
		return nil, ctx.Preconditionf("odd argument count %d", n)
	}
	switch n {
	case 0:
		return []cf.Insn{invokeStatic(collections, "emptyMap", "()Ljava/util/Map;")}, nil
	case 2:
		return []cf.Insn{
			requireNonNull(), cf.Op(cf.SWAP),
			requireNonNull(), cf.Op(cf.SWAP),
			invokeStatic(collections, "singletonMap", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/util/Map;"),
		}, nil
	}
	tmp := ctx.FreeLocal()
	out := concat(storeArray(n, tmp, true), newInit("java/util/HashMap"))
	for i := 0; i < n; i += 2 {
		out = append(out,
			cf.Op(cf.DUP),
			cf.VarOp(cf.ALOAD, tmp), cf.PushInt(i), cf.Op(cf.AALOAD),
			cf.VarOp(cf.ALOAD, tmp), cf.PushInt(i+1), cf.Op(cf.AALOAD),
			invokeInterface(mapClass, "put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;"),
			cf.Op(cf.POP),
		)
	}
	return append(out, unmodifiable("Map")), nil
}

func mapEntry() []cf.Insn {
	const entry = "java/util/AbstractMap$SimpleImmutableEntry"
	return []cf.Insn{
		requireNonNull(), cf.Op(cf.SWAP),
		requireNonNull(), cf.Op(cf.SWAP),
		cf.TypeOp(cf.NEW, entry),
		cf.Op(cf.DUP_X2),
		cf.Op(cf.DUP_X2),
		cf.Op(cf.POP),
		invokeSpecial(entry, "<init>", "(Ljava/lang/Object;Ljava/lang/Object;)V"),
	}
}

// copiedArray loads a null-checked copy of the Object[] in local 0.
func copiedArray(m *cf.Method) {
	loop, end := cf.NewLabel(), cf.NewLabel()
	m.Emit(
		cf.VarOp(cf.ALOAD, 0), cf.Op(cf.ARRAYLENGTH), cf.VarOp(cf.ISTORE, 1),
		cf.Op(cf.ICONST_0), cf.VarOp(cf.ISTORE, 2),
		loop,
		cf.VarOp(cf.ILOAD, 2), cf.VarOp(cf.ILOAD, 1), cf.Jump(cf.IF_ICMPGE, end),
		cf.VarOp(cf.ALOAD, 0), cf.VarOp(cf.ILOAD, 2), cf.Op(cf.AALOAD),
		requireNonNull(), cf.Op(cf.POP),
		cf.Iinc(2, 1),
		cf.Jump(cf.GOTO, loop),
		end,
		cf.VarOp(cf.ALOAD, 0), cf.VarOp(cf.ILOAD, 1),
		invokeStatic(arrays, "copyOf", "([Ljava/lang/Object;I)[Ljava/lang/Object;"),
		invokeStatic(arrays, "asList", "([Ljava/lang/Object;)Ljava/util/List;"),
	)
}

var listOfArray = rewrite.Helper{Methods: []rewrite.HelperMethod{{
	Name: "listOf",
	Desc: "([Ljava/lang/Object;)Ljava/util/List;",
	Build: func(_ *cf.Class, m *cf.Method) {
		copiedArray(m)
		m.Emit(unmodifiable("List"), cf.Op(cf.ARETURN))
	},
}}}

var setOfArray = rewrite.Helper{Methods: []rewrite.HelperMethod{{
	Name: "setOf",
	Desc: "([Ljava/lang/Object;)Ljava/util/Set;",
	Build: func(_ *cf.Class, m *cf.Method) {
		copiedArray(m)
		m.Emit(wrapNew("java/util/HashSet", "Ljava/util/Collection;")...)
		m.Emit(unmodifiable("Set"), cf.Op(cf.ARETURN))
	},
}}}

var mapOfEntries = rewrite.Helper{Methods: []rewrite.HelperMethod{{
	Name: "mapOfEntries",
	Desc: "([Ljava/util/Map$Entry;)Ljava/util/Map;",
	Build: func(_ *cf.Class, m *cf.Method) {
		loop, end := cf.NewLabel(), cf.NewLabel()
		m.Emit(newInit("java/util/HashMap")...)
		m.Emit(
			cf.VarOp(cf.ASTORE, 1),
			cf.VarOp(cf.ALOAD, 0), cf.Op(cf.ARRAYLENGTH), cf.VarOp(cf.ISTORE, 2),
			cf.Op(cf.ICONST_0), cf.VarOp(cf.ISTORE, 3),
			loop,
			cf.VarOp(cf.ILOAD, 3), cf.VarOp(cf.ILOAD, 2), cf.Jump(cf.IF_ICMPGE, end),
			cf.VarOp(cf.ALOAD, 0), cf.VarOp(cf.ILOAD, 3), cf.Op(cf.AALOAD), cf.VarOp(cf.ASTORE, 4),
			cf.VarOp(cf.ALOAD, 1),
			cf.VarOp(cf.ALOAD, 4), invokeInterface(entryClass, "getKey", "()Ljava/lang/Object;"), requireNonNull(),
			cf.VarOp(cf.ALOAD, 4), invokeInterface(entryClass, "getValue", "()Ljava/lang/Object;"), requireNonNull(),
			invokeInterface(mapClass, "put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;"),
			cf.Op(cf.POP),
			cf.Iinc(3, 1),
			cf.Jump(cf.GOTO, loop),
			end,
			cf.VarOp(cf.ALOAD, 1), unmodifiable("Map"), cf.Op(cf.ARETURN),
		)
	},
}}}

// copyOf builds a mutable copy with impl's copy constructor and wraps it.
func copyOf(kind, impl, argDesc string) rewrite.Inline {
	return inline(func() []cf.Insn {
		return append(wrapNew(impl, argDesc), unmodifiable(kind))
	})
}

var metafactoryHandle = cf.Handle{
	Kind:  cf.H_INVOKESTATIC,
	Owner: "java/lang/invoke/LambdaMetafactory",
	Name:  "metafactory",
	Desc: "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;" +
		"Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)" +
		"Ljava/lang/invoke/CallSite;",
}

// lambda returns an invokedynamic producing an instance of the functional
// interface iface whose method samName (erased to samDesc) forwards to impl.
// captured lists the descriptors of the values bound from the stack.
func lambda(iface, samName, samDesc, captured string, impl cf.Handle, instantiated string) *cf.InvokeDynamicInsn {
	return &cf.InvokeDynamicInsn{
		Name:      samName,
		Desc:      "(" + captured + ")L" + iface + ";",
		Bootstrap: metafactoryHandle,
		Args:      []any{cf.MethodType(samDesc), impl, cf.MethodType(instantiated)},
	}
}

// toUnmodifiable turns the collector produced by base into one whose result
// goes through Collections.unmodifiable<kind>.
func toUnmodifiable(kind, baseName, baseDesc string) rewrite.Inline {
	return inline(func() []cf.Insn {
		desc := "(Ljava/util/" + kind + ";)Ljava/util/" + kind + ";"
		return []cf.Insn{
			invokeStatic(collectors, baseName, baseDesc),
			lambda("java/util/function/Function", "apply", "(Ljava/lang/Object;)Ljava/lang/Object;", "",
				cf.Handle{Kind: cf.H_INVOKESTATIC, Owner: collections, Name: "unmodifiable" + kind, Desc: desc},
				desc),
			invokeStatic(collectors, "collectingAndThen",
				"("+collectorDesc+"Ljava/util/function/Function;)"+collectorDesc),
		}
	})
}

func streamToList() []cf.Insn {
	return []cf.Insn{
		invokeStatic(collectors, "toList", "()"+collectorDesc),
		invokeInterface("java/util/stream/Stream", "collect", "("+collectorDesc+")Ljava/lang/Object;"),
		cf.TypeOp(cf.CHECKCAST, listClass),
		unmodifiable("List"),
	}
}

// toArrayGenerator calls the generator for a zero length array and hands it
// to toArray(Object[]).
func toArrayGenerator(ctx *rewrite.Context) ([]cf.Insn, error) {
	return []cf.Insn{
		cf.Op(cf.ICONST_0),
		invokeInterface("java/util/function/IntFunction", "apply", "(I)Ljava/lang/Object;"),
		cf.TypeOp(cf.CHECKCAST, objArrayDesc),
		invokeLike(ctx, "toArray", "("+objArrayDesc+")"+objArrayDesc),
	}, nil
}

// lastIndex replaces the list on the stack by itself and size()-1.
func lastIndex(ctx *rewrite.Context) []cf.Insn {
	return []cf.Insn{
		cf.Op(cf.DUP),
		invokeLike(ctx, "size", "()I"),
		cf.Op(cf.ICONST_1),
		cf.Op(cf.ISUB),
	}
}

func sequencedGetFirst(ctx *rewrite.Context) ([]cf.Insn, error) {
	return []cf.Insn{cf.Op(cf.ICONST_0), invokeLike(ctx, "get", "(I)Ljava/lang/Object;")}, nil
}

func sequencedGetLast(ctx *rewrite.Context) ([]cf.Insn, error) {
	return append(lastIndex(ctx), invokeLike(ctx, "get", "(I)Ljava/lang/Object;")), nil
}

func sequencedRemoveFirst(ctx *rewrite.Context) ([]cf.Insn, error) {
	return []cf.Insn{cf.Op(cf.ICONST_0), invokeLike(ctx, "remove", "(I)Ljava/lang/Object;")}, nil
}

func sequencedRemoveLast(ctx *rewrite.Context) ([]cf.Insn, error) {
	return append(lastIndex(ctx), invokeLike(ctx, "remove", "(I)Ljava/lang/Object;")), nil
}

func sequencedAddFirst(ctx *rewrite.Context) ([]cf.Insn, error) {
	return []cf.Insn{
		cf.Op(cf.ICONST_0),
		cf.Op(cf.SWAP),
		invokeLike(ctx, "add", "(ILjava/lang/Object;)V"),
	}, nil
}

func sequencedAddLast(ctx *rewrite.Context) ([]cf.Insn, error) {
	return []cf.Insn{invokeLike(ctx, "add", "(Ljava/lang/Object;)Z"), cf.Op(cf.POP)}, nil
}

// sizedNew constructs impl with the capacity holding n mappings at the
// default load factor.
func sizedNew(impl string) rewrite.Inline {
	return inline(func() []cf.Insn {
		return concat([]cf.Insn{
			cf.Op(cf.I2D),
			cf.Ldc(0.75),
			cf.Op(cf.DDIV),
			invokeStatic("java/lang/Math", "ceil", "(D)D"),
			cf.Op(cf.D2I),
		}, wrapNew(impl, "I"))
	})
}
