package replacers

import (
	"strings"
	"testing"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	tt "github.com/gnolang/jdowngrader/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticCalls lists the registered owner;name pairs that are static methods.
var staticCalls = map[string]bool{
	"java/util/HashMap;newHashMap":                   true,
	"java/util/LinkedHashMap;newLinkedHashMap":       true,
	"java/util/WeakHashMap;newWeakHashMap":           true,
	"java/util/HashSet;newHashSet":                   true,
	"java/util/LinkedHashSet;newLinkedHashSet":       true,
	"java/nio/file/FileSystems;newFileSystem":        true,
	"java/lang/Character;toString":                   true,
	"java/nio/file/Files;readString":                 true,
	"java/nio/file/Files;writeString":                true,
	"java/nio/file/Path;of":                          true,
	"java/util/List;copyOf":                          true,
	"java/util/Set;copyOf":                           true,
	"java/util/Map;copyOf":                           true,
	"java/util/stream/Collectors;toUnmodifiableList": true,
	"java/util/stream/Collectors;toUnmodifiableSet":  true,
	"java/util/stream/Collectors;toUnmodifiableMap":  true,
	"java/util/List;of":                              true,
	"java/util/Set;of":                               true,
	"java/util/Map;of":                               true,
	"java/util/Map;entry":                            true,
	"java/util/Map;ofEntries":                        true,
	"java/util/Objects;requireNonNullElse":           true,
	"java/util/Objects;requireNonNullElseGet":        true,
	"java/util/Objects;checkIndex":                   true,
	"java/lang/Runtime;version":                      true,
	"java/lang/Integer;parseInt":                     true,
	"java/lang/Integer;parseUnsignedInt":             true,
	"java/lang/Long;parseLong":                       true,
	"java/lang/Long;parseUnsignedLong":               true,
}

var interfaceOwners = map[string]bool{
	"java/util/Collection":    true,
	"java/util/List":          true,
	"java/util/Set":           true,
	"java/util/Map":           true,
	"java/util/Queue":         true,
	"java/util/Deque":         true,
	"java/lang/CharSequence":  true,
	"java/util/stream/Stream": true,
	"java/nio/file/Path":      true,
}

const obj = "Ljava/lang/Object;"

// nameOnlyDescs gives the call shapes checked for rules registered without a
// descriptor.
var nameOnlyDescs = map[string][]string{
	"java/util/List;of": {
		"()Ljava/util/List;",
		"(" + obj + ")Ljava/util/List;",
		"(" + obj + obj + ")Ljava/util/List;",
		"(" + obj + obj + obj + ")Ljava/util/List;",
		"([" + obj + ")Ljava/util/List;",
	},
	"java/util/Set;of": {
		"()Ljava/util/Set;",
		"(" + obj + ")Ljava/util/Set;",
		"(" + obj + obj + ")Ljava/util/Set;",
		"(" + obj + obj + obj + ")Ljava/util/Set;",
		"([" + obj + ")Ljava/util/Set;",
	},
	"java/util/Map;of": {
		"()Ljava/util/Map;",
		"(" + obj + obj + ")Ljava/util/Map;",
		"(" + obj + obj + obj + obj + ")Ljava/util/Map;",
		"(" + obj + obj + obj + obj + obj + obj + ")Ljava/util/Map;",
	},
	"java/nio/file/Path;of": {
		"(Ljava/lang/String;[Ljava/lang/String;)Ljava/nio/file/Path;",
		"(Ljava/net/URI;)Ljava/nio/file/Path;",
	},
	"java/nio/file/Files;readString": {
		"(Ljava/nio/file/Path;)Ljava/lang/String;",
		"(Ljava/nio/file/Path;Ljava/nio/charset/Charset;)Ljava/lang/String;",
	},
	"java/nio/file/Files;writeString": {
		"(Ljava/nio/file/Path;Ljava/lang/CharSequence;[Ljava/nio/file/OpenOption;)Ljava/nio/file/Path;",
		"(Ljava/nio/file/Path;Ljava/lang/CharSequence;Ljava/nio/charset/Charset;[Ljava/nio/file/OpenOption;)Ljava/nio/file/Path;",
	},
	"java/util/concurrent/CompletableFuture;exceptionallyAsync": {
		"(Ljava/util/function/Function;)Ljava/util/concurrent/CompletableFuture;",
		"(Ljava/util/function/Function;Ljava/util/concurrent/Executor;)Ljava/util/concurrent/CompletableFuture;",
	},
	"java/util/Optional;ifPresentOrElse":       {"(Ljava/util/function/Consumer;Ljava/lang/Runnable;)V"},
	"java/util/OptionalInt;ifPresentOrElse":    {"(Ljava/util/function/IntConsumer;Ljava/lang/Runnable;)V"},
	"java/util/OptionalLong;ifPresentOrElse":   {"(Ljava/util/function/LongConsumer;Ljava/lang/Runnable;)V"},
	"java/util/OptionalDouble;ifPresentOrElse": {"(Ljava/util/function/DoubleConsumer;Ljava/lang/Runnable;)V"},
	"java/util/Optional;stream":                {"()Ljava/util/stream/Stream;"},
	"java/util/OptionalInt;stream":             {"()Ljava/util/stream/IntStream;"},
	"java/util/OptionalLong;stream":            {"()Ljava/util/stream/LongStream;"},
	"java/util/OptionalDouble;stream":          {"()Ljava/util/stream/DoubleStream;"},
}

type callShape struct {
	owner, name, desc string
}

// callShapes expands the registry keys of a step into concrete calls.
func callShapes(t *testing.T, keys []string) []callShape {
	t.Helper()
	var out []callShape
	for _, key := range keys {
		owner, rest, ok := strings.Cut(key, ";")
		require.True(t, ok, key)
		if i := strings.IndexByte(rest, '('); i >= 0 {
			out = append(out, callShape{owner, rest[:i], rest[i:]})
			continue
		}
		descs := nameOnlyDescs[key]
		require.NotEmpty(t, descs, "no call shapes for %s", key)
		for _, d := range descs {
			out = append(out, callShape{owner, rest, d})
		}
	}
	return out
}

// siteMethod loads the receiver, when there is one, and every argument of
// the call, makes the call and returns its result.
func siteMethod(call callShape) *cf.Method {
	static := staticCalls[call.owner+";"+call.name]
	itf := interfaceOwners[call.owner]

	var params []cf.Type
	if !static {
		params = append(params, cf.ObjectType(call.owner))
	}
	params = append(params, cf.ArgumentTypes(call.desc)...)
	ret := cf.ReturnType(call.desc)

	m := cf.NewMethod(cf.ACC_PUBLIC|cf.ACC_STATIC, "site", cf.MethodDescriptor(ret, params...))
	slot := 0
	for _, p := range params {
		m.Emit(cf.VarOp(p.Opcode(cf.ILOAD), slot))
		slot += p.Size()
	}
	op := cf.INVOKESTATIC
	switch {
	case static:
	case itf:
		op = cf.INVOKEINTERFACE
	default:
		op = cf.INVOKEVIRTUAL
	}
	m.Emit(
		cf.Invoke(op, call.owner, call.name, call.desc, itf),
		cf.Op(ret.Opcode(cf.IRETURN)),
	)
	return m
}

func TestRulesKeepStackShape(t *testing.T) {
	t.Parallel()

	for i, step := range Steps() {
		for _, call := range callShapes(t, step.Calls.Keys()) {
			i, call := i, call
			t.Run(step.Name+"/"+call.owner+"."+call.name+call.desc, func(t *testing.T) {
				t.Parallel()

				s := Steps()[i]
				c := newClass(s.Source, mainClass)
				c.AddMethod(siteMethod(call))

				res := &tt.Result{}
				require.NoError(t, s.Apply(c, tt.NoDeps, res))
				assert.Equal(t, 1, res.Replaced)

				checked := false
				for _, m := range c.Methods {
					an, err := cf.Analyze(c.Name, m, nil)
					require.NoError(t, err, "%s%s", m.Name, m.Desc)
					if m.Name != "site" {
						continue
					}
					checked = true
					last := len(an.Insns) - 1
					require.True(t, an.Reachable(last))
					want := 1
					if cf.ReturnType(call.desc).Sort == cf.SortVoid {
						want = 0
					}
					assert.Len(t, an.Stack(last), want)

					for _, in := range an.Insns {
						if mi, ok := in.(*cf.MethodInsn); ok {
							assert.False(t, mi.Owner == call.owner && mi.Name == call.name && mi.Desc == call.desc,
								"call left in place")
						}
					}
				}
				assert.True(t, checked)
			})
		}
	}
}
