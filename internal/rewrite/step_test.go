package rewrite

import (
	"errors"
	"testing"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	tt "github.com/gnolang/jdowngrader/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var metafactory = cf.Handle{
	Kind:  cf.H_INVOKESTATIC,
	Owner: "java/lang/invoke/LambdaMetafactory",
	Name:  "metafactory",
	Desc: "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;" +
		"Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;",
}

// predicateIndy captures h as a java/util/function/Predicate.
func predicateIndy(h cf.Handle) *cf.InvokeDynamicInsn {
	return &cf.InvokeDynamicInsn{
		Name:      "test",
		Desc:      "()Ljava/util/function/Predicate;",
		Bootstrap: metafactory,
		Args: []any{
			cf.MethodType("(Ljava/lang/Object;)Z"),
			h,
			cf.MethodType("(Ljava/lang/String;)Z"),
		},
	}
}

func isBlankStep(t *testing.T) *Step {
	t.Helper()
	s, err := NewStep(cf.V11, cf.V10)
	require.NoError(t, err)
	s.Calls.Add("java/lang/String", "isBlank", Redirect{
		Op: cf.INVOKESTATIC, Owner: "jdowngrader/runtime/java/lang/String", Desc: "(Ljava/lang/String;)Z",
		Deps: []string{"jdowngrader/runtime/java/lang/String"},
	})
	return s
}

func TestNewStep(t *testing.T) {
	t.Parallel()

	s, err := NewStep(cf.V9, cf.V1_8)
	require.NoError(t, err)
	assert.Equal(t, "java9-to-java8", s.Name)

	_, err = NewStep(cf.V1_8, cf.V9)
	assert.Error(t, err)
	assert.Panics(t, func() { MustStep(cf.V1_8, cf.V11) })
}

func TestStepApplyVersions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version cf.Version
		minor   uint16
		want    cf.Version
		applied int
		wantErr error
	}{
		{"lowers source", cf.V11, 0, cf.V10, 1, nil},
		{"clears preview", cf.V11, cf.PreviewMinor, cf.V10, 1, nil},
		{"already at target", cf.V10, 0, cf.V10, 0, nil},
		{"below target", cf.V1_8, 0, cf.V1_8, 0, nil},
		{"too new", cf.V12, 0, cf.V12, 0, ErrClassTooNew},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newClass(tc.version, "a/Main")
			c.MinorVersion = tc.minor
			res := &tt.Result{}
			err := isBlankStep(t).Apply(c, tt.NoDeps, res)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.want, c.Version)
			assert.Equal(t, tc.applied, res.Applied)
			if tc.applied > 0 {
				assert.Zero(t, c.MinorVersion)
			}
		})
	}
}

func TestStepReplacesCalls(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V11, "a/Main")
	m := addCaller(c, "blank", "(Ljava/lang/String;)Z",
		cf.VarOp(cf.ALOAD, 0),
		cf.Invoke(cf.INVOKEVIRTUAL, "java/lang/String", "isBlank", "()Z", false))

	var deps tt.DepSet
	res := &tt.Result{}
	require.NoError(t, isBlankStep(t).Apply(c, deps.Collector(), res))

	assert.Equal(t, []cf.Insn{
		cf.VarOp(cf.ALOAD, 0),
		cf.Invoke(cf.INVOKESTATIC, "jdowngrader/runtime/java/lang/String", "isBlank", "(Ljava/lang/String;)Z", false),
		cf.Op(cf.IRETURN),
	}, m.Code.Insns)
	assert.Equal(t, 1, res.Replaced)
	assert.True(t, deps.Has("jdowngrader/runtime/java/lang/String"))
}

func TestStepPrecondition(t *testing.T) {
	t.Parallel()

	s := MustStep(cf.V11, cf.V10)
	s.Calls.Add("java/util/List", "of", Inline{Emit: func(ctx *Context) ([]cf.Insn, error) {
		return nil, ctx.Preconditionf("unsupported")
	}})
	c := newClass(cf.V11, "a/Main")
	addCaller(c, "list", "()Ljava/util/List;",
		cf.Invoke(cf.INVOKESTATIC, "java/util/List", "of", "()Ljava/util/List;", true))

	err := s.Apply(c, tt.NoDeps, &tt.Result{})
	assert.ErrorIs(t, err, ErrRulePrecondition)
	assert.Equal(t, cf.V11, c.Version)
}

func TestStepBridges(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V11, "a/Main")
	captured := cf.Handle{Kind: cf.H_INVOKEVIRTUAL, Owner: "java/lang/String", Name: "isBlank", Desc: "()Z"}
	indy := predicateIndy(captured)
	addCaller(c, "pred", "()Ljava/util/function/Predicate;", indy)

	res := &tt.Result{}
	require.NoError(t, isBlankStep(t).Apply(c, tt.NoDeps, res))

	bridge := c.FindMethod("jdowngrader-bridge$0", "(Ljava/lang/String;)Z")
	require.NotNil(t, bridge)
	assert.Equal(t, uint16(cf.ACC_PRIVATE|cf.ACC_STATIC|cf.ACC_SYNTHETIC), bridge.Access)
	assert.Equal(t, []cf.Insn{
		cf.VarOp(cf.ALOAD, 0),
		cf.Invoke(cf.INVOKESTATIC, "jdowngrader/runtime/java/lang/String", "isBlank", "(Ljava/lang/String;)Z", false),
		cf.Op(cf.IRETURN),
	}, bridge.Code.Insns)
	assert.Equal(t, cf.Handle{
		Kind: cf.H_INVOKESTATIC, Owner: "a/Main", Name: "jdowngrader-bridge$0", Desc: "(Ljava/lang/String;)Z",
	}, indy.Args[1])
	assert.Equal(t, 1, res.Replaced)
}

func TestStepBridgeNamesStayUnique(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V12, "a/Main")
	h := cf.Handle{Kind: cf.H_INVOKEVIRTUAL, Owner: "java/lang/String", Name: "isBlank", Desc: "()Z"}
	addCaller(c, "a", "()Ljava/util/function/Predicate;", predicateIndy(h))
	addCaller(c, "b", "()Ljava/util/function/Predicate;", predicateIndy(h))
	c.AddMethod(cf.NewMethod(cf.ACC_PRIVATE|cf.ACC_STATIC|cf.ACC_SYNTHETIC, "jdowngrader-bridge$7", "()V"))

	s12 := MustStep(cf.V12, cf.V11)
	s12.Calls.Add("java/lang/String", "isBlank", Redirect{Name: "isEmpty"})
	require.NoError(t, s12.Apply(c, tt.NoDeps, &tt.Result{}))

	// a second pass over the same class, as when a jar is processed twice
	addCaller(c, "c", "()Ljava/util/function/Predicate;", predicateIndy(h))
	require.NoError(t, isBlankStep(t).Apply(c, tt.NoDeps, &tt.Result{}))

	seen := map[string]bool{}
	var bridges []string
	for _, n := range methodNames(c) {
		assert.False(t, seen[n], "duplicate method %s", n)
		seen[n] = true
		if _, ok := bridgeIndex(n); ok {
			bridges = append(bridges, n)
		}
	}
	assert.Equal(t, []string{
		"jdowngrader-bridge$7", "jdowngrader-bridge$8", "jdowngrader-bridge$9", "jdowngrader-bridge$10",
	}, bridges)
}

func TestStepSkipsConstructorHandles(t *testing.T) {
	t.Parallel()

	s := MustStep(cf.V11, cf.V10)
	s.Calls.Add("java/util/ArrayList", "<init>", Redirect{Name: "other"})
	c := newClass(cf.V11, "a/Main")
	h := cf.Handle{Kind: cf.H_NEWINVOKESPECIAL, Owner: "java/util/ArrayList", Name: "<init>", Desc: "()V"}
	indy := predicateIndy(h)
	addCaller(c, "supplier", "()Ljava/util/function/Predicate;", indy)

	require.NoError(t, s.Apply(c, tt.NoDeps, &tt.Result{}))
	assert.Equal(t, h, indy.Args[1])
	assert.Len(t, c.Methods, 1)
}

func TestStepOrder(t *testing.T) {
	t.Parallel()

	var order []string
	s := MustStep(cf.V11, cf.V10)
	s.Pre = append(s.Pre, func(c *cf.Class, _ tt.DepCollector, _ *tt.Result) error {
		order = append(order, "pre")
		assert.Equal(t, cf.V11, c.Version)
		return nil
	})
	s.Calls.Add("java/lang/String", "isBlank", Inline{Emit: func(*Context) ([]cf.Insn, error) {
		order = append(order, "call")
		return []cf.Insn{cf.Op(cf.POP), cf.Op(cf.ICONST_0)}, nil
	}})
	s.Members = append(s.Members, Inserter{
		Interface: "java/lang/CharSequence", Name: "isEmpty", Desc: "()Z",
		Build: func(_ *cf.Class, m *cf.Method, _ tt.DepCollector) {
			order = append(order, "member")
			m.Emit(cf.Op(cf.ICONST_0), cf.Op(cf.IRETURN))
		},
	})
	s.Remaps.RenameOnly("java/lang/Record", "java/lang/Object")
	s.Post = append(s.Post, func(c *cf.Class, _ tt.DepCollector, _ *tt.Result) error {
		order = append(order, "post")
		assert.Equal(t, "java/lang/Object", c.Super)
		assert.Equal(t, cf.V11, c.Version)
		return nil
	})

	c := newClass(cf.V11, "a/Main")
	c.Super = "java/lang/Record"
	c.Interfaces = []string{"java/lang/CharSequence"}
	addCaller(c, "blank", "(Ljava/lang/String;)Z",
		cf.VarOp(cf.ALOAD, 0),
		cf.Invoke(cf.INVOKEVIRTUAL, "java/lang/String", "isBlank", "()Z", false))

	var deps tt.DepSet
	res := &tt.Result{}
	require.NoError(t, s.Apply(c, deps.Collector(), res))
	assert.Equal(t, []string{"pre", "call", "member", "post"}, order)
	assert.Equal(t, cf.V10, c.Version)
	assert.True(t, res.RequiresRevalidation)
	assert.Zero(t, deps.Len())
}

func TestStepHookError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := MustStep(cf.V11, cf.V10)
	s.Pre = append(s.Pre, func(*cf.Class, tt.DepCollector, *tt.Result) error { return boom })
	c := newClass(cf.V11, "a/Main")

	err := s.Apply(c, tt.NoDeps, &tt.Result{})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "java11-to-java10: pre-transform")
	assert.Equal(t, cf.V11, c.Version)
}

func TestBridgeStackShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		h    cf.Handle
		rule Rule
		want string
	}{
		{
			name: "instance handle gains receiver",
			h:    cf.Handle{Kind: cf.H_INVOKEVIRTUAL, Owner: "java/util/Random", Name: "nextLong", Desc: "(J)J"},
			rule: Redirect{Op: cf.INVOKESTATIC, Owner: "a/Util", Desc: "(Ljava/util/Random;J)J"},
			want: "(Ljava/util/Random;J)J",
		},
		{
			name: "static handle keeps descriptor",
			h:    cf.Handle{Kind: cf.H_INVOKESTATIC, Owner: "java/lang/Character", Name: "toString", Desc: "(I)Ljava/lang/String;"},
			rule: Redirect{Owner: "java/lang/String", Name: "valueOf", Desc: "(I)Ljava/lang/String;"},
			want: "(I)Ljava/lang/String;",
		},
		{
			name: "interface handle",
			h:    cf.Handle{Kind: cf.H_INVOKEINTERFACE, Owner: "java/util/List", Name: "getFirst", Desc: "()Ljava/lang/Object;", Interface: true},
			rule: Inline{Emit: func(*Context) ([]cf.Insn, error) {
				return []cf.Insn{cf.Op(cf.ICONST_0), cf.Invoke(cf.INVOKEINTERFACE, "java/util/List", "get", "(I)Ljava/lang/Object;", true)}, nil
			}},
			want: "(Ljava/util/List;)Ljava/lang/Object;",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newClass(cf.V11, "a/Main")
			b := &bridges{class: c}
			ctx := &Context{Class: c, Op: handleOpcode(tc.h.Kind), Owner: tc.h.Owner, Name: tc.h.Name, Desc: tc.h.Desc, Deps: tt.NoDeps, Result: &tt.Result{}}
			nh, err := b.bridge(ctx, tc.rule, tc.h)
			require.NoError(t, err)
			assert.Equal(t, tc.want, nh.Desc)

			m := c.FindMethod(nh.Name, nh.Desc)
			require.NotNil(t, m)
			an, err := cf.Analyze(c.Name, m, nil)
			require.NoError(t, err)
			last := len(an.Insns) - 1
			assert.Len(t, an.Stack(last), 1)
		})
	}
}
