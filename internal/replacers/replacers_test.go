package replacers

import (
	"testing"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/classfile/jvmtest"
	"github.com/gnolang/jdowngrader/internal/rewrite"
	tt "github.com/gnolang/jdowngrader/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainClass = "t/Main"

func newClass(version cf.Version, name string) *cf.Class {
	return &cf.Class{
		Version: version,
		Access:  cf.ACC_PUBLIC | cf.ACC_SUPER,
		Name:    name,
		Super:   "java/lang/Object",
	}
}

func addStatic(c *cf.Class, name, desc string, insns ...cf.Insn) *cf.Method {
	m := cf.NewMethod(cf.ACC_PUBLIC|cf.ACC_STATIC, name, desc)
	m.Emit(insns...)
	return c.AddMethod(m)
}

// lower runs every applicable step down to floor.
func lower(t *testing.T, c *cf.Class, floor cf.Version) *tt.Result {
	t.Helper()
	res := &tt.Result{}
	for _, s := range Steps() {
		if s.Target < floor || c.Version <= s.Target {
			continue
		}
		require.NoError(t, s.Apply(c, tt.NoDeps, res))
	}
	return res
}

// verify checks every method of c with the data flow analyzer and that the
// class still serializes with recomputed frames.
func verify(t *testing.T, c *cf.Class) {
	t.Helper()
	for _, m := range c.Methods {
		_, err := cf.Analyze(c.Name, m, nil)
		require.NoError(t, err, "%s%s", m.Name, m.Desc)
	}
	_, err := cf.Write(c, cf.WriteOptions{ComputeFrames: true})
	require.NoError(t, err)
}

func noCallTo(t *testing.T, c *cf.Class, owner, name string) {
	t.Helper()
	for _, m := range c.Methods {
		if m.Code == nil {
			continue
		}
		for _, in := range m.Code.Insns {
			if mi, ok := in.(*cf.MethodInsn); ok {
				assert.False(t, mi.Owner == owner && mi.Name == name, "%s still calls %s.%s", m.Name, owner, name)
			}
		}
	}
}

func TestStepsOrder(t *testing.T) {
	t.Parallel()

	steps := Steps()
	require.Len(t, steps, 13)
	assert.Equal(t, cf.V21, steps[0].Source)
	assert.Equal(t, cf.V1_8, steps[len(steps)-1].Target)
	for i, s := range steps {
		assert.Equal(t, s.Source-1, s.Target, s.Name)
		if i > 0 {
			assert.Equal(t, steps[i-1].Target, s.Source, s.Name)
		}
	}
	assert.NotSame(t, steps[0], Steps()[0])
}

func TestRegisteredRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		step              *rewrite.Step
		owner, name, desc string
	}{
		{Java21To20(), "java/util/ArrayList", "getFirst", "()Ljava/lang/Object;"},
		{Java19To18(), "java/lang/Thread", "threadId", "()J"},
		{Java17To16(), "java/security/SecureRandom", "nextLong", "(J)J"},
		{Java16To15(), "java/util/stream/Stream", "toList", "()Ljava/util/List;"},
		{Java15To14(), "java/lang/StringBuilder", "isEmpty", "()Z"},
		{Java12To11(), "java/lang/String", "transform", "(Ljava/util/function/Function;)Ljava/lang/Object;"},
		{Java11To10(), "java/lang/String", "isBlank", "()Z"},
		{Java11To10(), "java/util/OptionalInt", "isEmpty", "()Z"},
		{Java10To9(), "java/util/List", "copyOf", "(Ljava/util/Collection;)Ljava/util/List;"},
		{Java9To8(), "java/util/List", "of", "()Ljava/util/List;"},
		{Java9To8(), "java/util/Map", "of", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/util/Map;"},
		{Java9To8(), "java/util/Objects", "checkIndex", "(II)I"},
	}
	for _, tc := range tests {
		_, ok := tc.step.Calls.Lookup(tc.owner, tc.name, tc.desc)
		assert.True(t, ok, "%s: %s.%s%s", tc.step.Name, tc.owner, tc.name, tc.desc)
	}

	// ThreadLocalRandom already has nextLong(long) on 16.
	_, ok := Java17To16().Calls.Lookup("java/util/concurrent/ThreadLocalRandom", "nextLong", "(J)J")
	assert.False(t, ok)
}

func listOfCall(desc string) *cf.MethodInsn {
	return cf.Invoke(cf.INVOKESTATIC, listClass, "of", desc, true)
}

func TestListOf(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V11, mainClass)
	addStatic(c, "none", "()Ljava/util/List;",
		listOfCall("()Ljava/util/List;"), cf.Op(cf.ARETURN))
	addStatic(c, "one", "(Ljava/lang/Object;)Ljava/util/List;",
		cf.VarOp(cf.ALOAD, 0), listOfCall("(Ljava/lang/Object;)Ljava/util/List;"), cf.Op(cf.ARETURN))
	addStatic(c, "three", "(Ljava/lang/Object;)Ljava/util/List;",
		cf.Ldc("a"), cf.VarOp(cf.ALOAD, 0), cf.Ldc("c"),
		listOfCall("(Ljava/lang/Object;Ljava/lang/Object;Ljava/lang/Object;)Ljava/util/List;"), cf.Op(cf.ARETURN))

	res := lower(t, c, cf.V1_8)
	assert.Equal(t, cf.V1_8, c.Version)
	assert.Equal(t, 3, res.Replaced)
	noCallTo(t, c, listClass, "of")
	verify(t, c)

	vm := jvmtest.New(c)

	empty, err := vm.Invoke(mainClass, "none", "()Ljava/util/List;")
	require.NoError(t, err)
	elems, ok := jvmtest.Elements(empty)
	require.True(t, ok)
	assert.Empty(t, elems)
	assert.True(t, jvmtest.ReadOnly(empty))

	one, err := vm.Invoke(mainClass, "one", "(Ljava/lang/Object;)Ljava/util/List;", "x")
	require.NoError(t, err)
	elems, _ = jvmtest.Elements(one)
	assert.Equal(t, []any{"x"}, elems)

	_, err = vm.Invoke(mainClass, "one", "(Ljava/lang/Object;)Ljava/util/List;", nil)
	assert.Equal(t, "java/lang/NullPointerException", jvmtest.Thrown(err))

	three, err := vm.Invoke(mainClass, "three", "(Ljava/lang/Object;)Ljava/util/List;", "b")
	require.NoError(t, err)
	elems, _ = jvmtest.Elements(three)
	assert.Equal(t, []any{"a", "b", "c"}, elems)
	assert.True(t, jvmtest.ReadOnly(three))

	_, err = vm.Invoke(mainClass, "three", "(Ljava/lang/Object;)Ljava/util/List;", nil)
	assert.Equal(t, "java/lang/NullPointerException", jvmtest.Thrown(err))
}

func TestSetOfDuplicates(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V9, mainClass)
	addStatic(c, "f", "()Ljava/util/Set;",
		cf.Ldc("a"), cf.Ldc("b"), cf.Ldc("a"),
		cf.Invoke(cf.INVOKESTATIC, setClass, "of",
			"(Ljava/lang/Object;Ljava/lang/Object;Ljava/lang/Object;)Ljava/util/Set;", true),
		cf.Op(cf.ARETURN))
	lower(t, c, cf.V1_8)
	verify(t, c)

	got, err := jvmtest.New(c).Invoke(mainClass, "f", "()Ljava/util/Set;")
	require.NoError(t, err)
	elems, ok := jvmtest.Elements(got)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"a", "b"}, elems)
	assert.True(t, jvmtest.ReadOnly(got))
}

func TestMapOfTwoPairs(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V9, mainClass)
	addStatic(c, "f", "(Ljava/lang/Object;)Ljava/util/Map;",
		cf.Ldc("a"), cf.Ldc("1"), cf.Ldc("b"), cf.VarOp(cf.ALOAD, 0),
		cf.Invoke(cf.INVOKESTATIC, mapClass, "of",
			"(Ljava/lang/Object;Ljava/lang/Object;Ljava/lang/Object;Ljava/lang/Object;)Ljava/util/Map;", true),
		cf.Op(cf.ARETURN))
	lower(t, c, cf.V1_8)
	noCallTo(t, c, mapClass, "of")
	verify(t, c)

	vm := jvmtest.New(c)
	got, err := vm.Invoke(mainClass, "f", "(Ljava/lang/Object;)Ljava/util/Map;", "2")
	require.NoError(t, err)
	m, ok := jvmtest.Entries(got)
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, m.Keys)
	assert.Equal(t, []any{"1", "2"}, m.Values)
	assert.True(t, jvmtest.ReadOnly(got))

	_, err = vm.Invoke(mainClass, "f", "(Ljava/lang/Object;)Ljava/util/Map;", nil)
	assert.Equal(t, "java/lang/NullPointerException", jvmtest.Thrown(err))
}

func TestMapOfOddArguments(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V9, mainClass)
	addStatic(c, "f", "()Ljava/util/Map;",
		cf.Ldc("a"),
		cf.Invoke(cf.INVOKESTATIC, mapClass, "of", "(Ljava/lang/Object;)Ljava/util/Map;", true),
		cf.Op(cf.ARETURN))
	err := Java9To8().Apply(c, tt.NoDeps, &tt.Result{})
	assert.ErrorIs(t, err, rewrite.ErrRulePrecondition)
}

// pointRecord builds record Point(int x, String s) with the equals,
// hashCode and toString bodies javac emits.
func pointRecord() *cf.Class {
	const name = "t/Point"
	c := newClass(cf.V16, name)
	c.Access |= cf.ACC_FINAL
	c.Super = recordClass
	c.Record = true
	c.RecordComponents = []cf.RecordComponent{{Name: "x", Desc: "I"}, {Name: "s", Desc: stringDesc}}
	c.Fields = []*cf.Field{
		{Access: cf.ACC_PRIVATE | cf.ACC_FINAL, Name: "x", Desc: "I"},
		{Access: cf.ACC_PRIVATE | cf.ACC_FINAL, Name: "s", Desc: stringDesc},
	}
	init := cf.NewMethod(cf.ACC_PUBLIC, "<init>", "(ILjava/lang/String;)V")
	init.Emit(
		cf.VarOp(cf.ALOAD, 0), cf.Invoke(cf.INVOKESPECIAL, recordClass, "<init>", "()V", false),
		cf.VarOp(cf.ALOAD, 0), cf.VarOp(cf.ILOAD, 1), cf.FieldOp(cf.PUTFIELD, name, "x", "I"),
		cf.VarOp(cf.ALOAD, 0), cf.VarOp(cf.ALOAD, 2), cf.FieldOp(cf.PUTFIELD, name, "s", stringDesc),
		cf.Op(cf.RETURN),
	)
	c.AddMethod(init)

	bootstrap := cf.Handle{
		Kind: cf.H_INVOKESTATIC, Owner: objectMethods, Name: "bootstrap",
		Desc: "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/TypeDescriptor;" +
			"Ljava/lang/Class;Ljava/lang/String;[Ljava/lang/invoke/MethodHandle;)Ljava/lang/Object;",
	}
	args := []any{
		cf.ObjectType(name), "x;s",
		cf.Handle{Kind: cf.H_GETFIELD, Owner: name, Name: "x", Desc: "I"},
		cf.Handle{Kind: cf.H_GETFIELD, Owner: name, Name: "s", Desc: stringDesc},
	}
	for _, m := range []struct{ name, desc, indy string }{
		{"equals", "(Ljava/lang/Object;)Z", "(Lt/Point;Ljava/lang/Object;)Z"},
		{"hashCode", "()I", "(Lt/Point;)I"},
		{"toString", "()Ljava/lang/String;", "(Lt/Point;)Ljava/lang/String;"},
	} {
		body := cf.NewMethod(cf.ACC_PUBLIC|cf.ACC_FINAL, m.name, m.desc)
		body.Emit(cf.VarOp(cf.ALOAD, 0))
		if m.name == "equals" {
			body.Emit(cf.VarOp(cf.ALOAD, 1))
		}
		body.Emit(&cf.InvokeDynamicInsn{Name: m.name, Desc: m.indy, Bootstrap: bootstrap, Args: args})
		ret := cf.ReturnType(m.desc)
		body.Emit(cf.Op(ret.Opcode(cf.IRETURN)))
		c.AddMethod(body)
	}
	return c
}

func TestRecordLowering(t *testing.T) {
	t.Parallel()

	c := pointRecord()
	res := lower(t, c, cf.V1_8)
	assert.Equal(t, "java/lang/Object", c.Super)
	assert.False(t, c.Record)
	assert.Empty(t, c.RecordComponents)
	assert.True(t, res.RequiresRevalidation)
	assert.True(t, c.HasMethod(rewrite.HelperName("record$equals"), "(Lt/Point;Ljava/lang/Object;)Z"))
	for _, m := range c.Methods {
		for _, in := range m.Code.Insns {
			_, indy := in.(*cf.InvokeDynamicInsn)
			assert.False(t, indy, "%s still uses invokedynamic", m.Name)
		}
	}
	verify(t, c)

	vm := jvmtest.New(c)
	p := vm.NewObject("t/Point", map[string]any{"x": int32(1), "s": "a"})
	same := vm.NewObject("t/Point", map[string]any{"x": int32(1), "s": "a"})
	otherInt := vm.NewObject("t/Point", map[string]any{"x": int32(2), "s": "a"})
	otherStr := vm.NewObject("t/Point", map[string]any{"x": int32(1), "s": "b"})
	nullStr := vm.NewObject("t/Point", map[string]any{"x": int32(1), "s": nil})

	tests := []struct {
		name  string
		other any
		want  int32
	}{
		{"itself", p, 1},
		{"equal components", same, 1},
		{"different int", otherInt, 0},
		{"different string", otherStr, 0},
		{"null component", nullStr, 0},
		{"null", nil, 0},
		{"other type", "a", 0},
	}
	for _, tc := range tests {
		got, err := vm.InvokeVirtual(p, "equals", "(Ljava/lang/Object;)Z", tc.other)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}

	// 31 * (31 * 0 + 1) + "a".hashCode()
	h, err := vm.InvokeVirtual(p, "hashCode", "()I")
	require.NoError(t, err)
	assert.Equal(t, int32(31+97), h)

	h, err = vm.InvokeVirtual(nullStr, "hashCode", "()I")
	require.NoError(t, err)
	assert.Equal(t, int32(31), h)

	s, err := vm.InvokeVirtual(p, "toString", "()Ljava/lang/String;")
	require.NoError(t, err)
	assert.Equal(t, "Point[x=1, s=a]", s)
}

func TestLowerTwiceIsNoop(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V11, mainClass)
	addStatic(c, "f", "()Ljava/util/List;",
		cf.Ldc("a"), cf.Ldc("b"),
		listOfCall("(Ljava/lang/Object;Ljava/lang/Object;)Ljava/util/List;"), cf.Op(cf.ARETURN))
	lower(t, c, cf.V1_8)
	before, err := cf.Write(c, cf.WriteOptions{ComputeFrames: true})
	require.NoError(t, err)

	res := lower(t, c, cf.V1_8)
	assert.Zero(t, res.Applied)
	assert.Zero(t, res.Replaced)
	assert.False(t, res.RequiresRevalidation)
	after, err := cf.Write(c, cf.WriteOptions{ComputeFrames: true})
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFloorStopsEarly(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V11, mainClass)
	addStatic(c, "f", "()Z",
		cf.Ldc(" "), cf.Invoke(cf.INVOKEVIRTUAL, stringClass, "isBlank", "()Z", false), cf.Op(cf.IRETURN))
	res := lower(t, c, cf.V10)
	assert.Equal(t, cf.V10, c.Version)
	assert.Equal(t, 1, res.Applied)
	noCallTo(t, c, stringClass, "isBlank")
}

func TestFlattenNest(t *testing.T) {
	t.Parallel()

	host := newClass(cf.V11, "app/Outer")
	host.NestMembers = []string{"app/Outer$Inner"}
	host.Fields = []*cf.Field{{Access: cf.ACC_PRIVATE, Name: "count", Desc: "I"}}
	secret := cf.NewMethod(cf.ACC_PRIVATE, "secret", "()I")
	secret.Emit(cf.Op(cf.ICONST_1), cf.Op(cf.IRETURN))
	host.AddMethod(secret)
	hidden := cf.NewMethod(cf.ACC_PRIVATE|cf.ACC_STATIC, "hidden", "()V")
	hidden.Emit(cf.Op(cf.RETURN))
	host.AddMethod(hidden)
	run := cf.NewMethod(cf.ACC_PUBLIC, "run", "()I")
	run.Emit(
		cf.VarOp(cf.ALOAD, 0),
		cf.Invoke(cf.INVOKEVIRTUAL, "app/Outer", "secret", "()I", false),
		cf.VarOp(cf.ALOAD, 0),
		cf.Invoke(cf.INVOKEVIRTUAL, "app/Outer", "run", "()I", false),
		cf.Op(cf.IADD),
		cf.Invoke(cf.INVOKESTATIC, "app/Outer", "hidden", "()V", false),
		cf.Op(cf.IRETURN),
	)
	host.AddMethod(run)

	member := newClass(cf.V11, "app/Outer$Inner")
	member.NestHost = "app/Outer"
	addStatic(member, "peek", "()V", cf.Op(cf.RETURN)).Access = cf.ACC_PRIVATE | cf.ACC_STATIC

	lower(t, host, cf.V1_8)
	lower(t, member, cf.V1_8)

	assert.Zero(t, host.Fields[0].Access&cf.ACC_PRIVATE)
	for _, m := range append(host.Methods, member.Methods...) {
		assert.Zero(t, m.Access&cf.ACC_PRIVATE, m.Name)
	}
	assert.Empty(t, host.NestMembers)
	assert.Empty(t, member.NestHost)

	var ops []cf.Opcode
	for _, in := range host.FindMethod("run", "()I").Code.Insns {
		if mi, ok := in.(*cf.MethodInsn); ok {
			ops = append(ops, mi.Op)
		}
	}
	assert.Equal(t, []cf.Opcode{cf.INVOKESPECIAL, cf.INVOKEVIRTUAL, cf.INVOKESTATIC}, ops)
	verify(t, host)
}
