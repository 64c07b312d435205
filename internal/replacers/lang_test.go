package replacers

import (
	"testing"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/classfile/jvmtest"
	tt "github.com/gnolang/jdowngrader/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringIsBlank(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V11, mainClass)
	addStatic(c, "f", "(Ljava/lang/String;)Z",
		cf.VarOp(cf.ALOAD, 0), cf.Invoke(cf.INVOKEVIRTUAL, stringClass, "isBlank", "()Z", false), cf.Op(cf.IRETURN))
	lower(t, c, cf.V1_8)
	noCallTo(t, c, stringClass, "isBlank")
	verify(t, c)

	vm := jvmtest.New(c)
	tests := []struct {
		in   string
		want int32
	}{
		{"", 1},
		{"   ", 1},
		{"\t\n ", 1},
		{" a ", 0},
		{"\u00a0", 0},
		{"😀", 0},
	}
	for _, tc := range tests {
		got, err := vm.Invoke(mainClass, "f", "(Ljava/lang/String;)Z", tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%q", tc.in)
	}

	_, err := vm.Invoke(mainClass, "f", "(Ljava/lang/String;)Z", nil)
	assert.Equal(t, "java/lang/NullPointerException", jvmtest.Thrown(err))
}

func TestStringRepeat(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V11, mainClass)
	addStatic(c, "f", "(Ljava/lang/String;I)Ljava/lang/String;",
		cf.VarOp(cf.ALOAD, 0), cf.VarOp(cf.ILOAD, 1),
		cf.Invoke(cf.INVOKEVIRTUAL, stringClass, "repeat", "(I)Ljava/lang/String;", false),
		cf.Op(cf.ARETURN))
	lower(t, c, cf.V1_8)
	verify(t, c)

	vm := jvmtest.New(c)
	got, err := vm.Invoke(mainClass, "f", "(Ljava/lang/String;I)Ljava/lang/String;", "ab", int32(3))
	require.NoError(t, err)
	assert.Equal(t, "ababab", got)

	got, err = vm.Invoke(mainClass, "f", "(Ljava/lang/String;I)Ljava/lang/String;", "ab", int32(0))
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = vm.Invoke(mainClass, "f", "(Ljava/lang/String;I)Ljava/lang/String;", "ab", int32(-1))
	assert.Equal(t, "java/lang/IllegalArgumentException", jvmtest.Thrown(err))
}

func TestCharSequenceIsEmpty(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V15, mainClass)
	addStatic(c, "f", "(Ljava/lang/CharSequence;)Z",
		cf.VarOp(cf.ALOAD, 0), cf.Invoke(cf.INVOKEINTERFACE, charSeq, "isEmpty", "()Z", true), cf.Op(cf.IRETURN))
	lower(t, c, cf.V1_8)
	noCallTo(t, c, charSeq, "isEmpty")
	verify(t, c)

	vm := jvmtest.New(c)
	for in, want := range map[string]int32{"": 1, "x": 0, "long text": 0} {
		got, err := vm.Invoke(mainClass, "f", "(Ljava/lang/CharSequence;)Z", in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "%q", in)
	}
}

func TestCharacterToString(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V11, mainClass)
	addStatic(c, "f", "(I)Ljava/lang/String;",
		cf.VarOp(cf.ILOAD, 0),
		cf.Invoke(cf.INVOKESTATIC, "java/lang/Character", "toString", "(I)Ljava/lang/String;", false),
		cf.Op(cf.ARETURN))
	lower(t, c, cf.V1_8)
	verify(t, c)

	vm := jvmtest.New(c)
	for _, r := range []rune{'q', 'ß', '🎉'} {
		got, err := vm.Invoke(mainClass, "f", "(I)Ljava/lang/String;", int32(r))
		require.NoError(t, err)
		assert.Equal(t, string(r), got)
	}
}

func TestParseRange(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V9, mainClass)
	addStatic(c, "i", "(Ljava/lang/CharSequence;)I",
		cf.VarOp(cf.ALOAD, 0), cf.Op(cf.ICONST_1), cf.Op(cf.ICONST_3), cf.PushInt(16),
		cf.Invoke(cf.INVOKESTATIC, "java/lang/Integer", "parseInt", "(Ljava/lang/CharSequence;III)I", false),
		cf.Op(cf.IRETURN))
	addStatic(c, "l", "(Ljava/lang/CharSequence;)J",
		cf.VarOp(cf.ALOAD, 0), cf.Op(cf.ICONST_1), cf.Op(cf.ICONST_4), cf.PushInt(10),
		cf.Invoke(cf.INVOKESTATIC, "java/lang/Long", "parseLong", "(Ljava/lang/CharSequence;III)J", false),
		cf.Op(cf.LRETURN))
	lower(t, c, cf.V1_8)
	verify(t, c)

	vm := jvmtest.New(c)
	got, err := vm.Invoke(mainClass, "i", "(Ljava/lang/CharSequence;)I", "#ff!")
	require.NoError(t, err)
	assert.Equal(t, int32(255), got)

	got, err = vm.Invoke(mainClass, "l", "(Ljava/lang/CharSequence;)J", "x123y")
	require.NoError(t, err)
	assert.Equal(t, int64(123), got)

	_, err = vm.Invoke(mainClass, "l", "(Ljava/lang/CharSequence;)J", "xa2cy")
	assert.Equal(t, "java/lang/NumberFormatException", jvmtest.Thrown(err))
}

func TestObjectsHelpers(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V9, mainClass)
	addStatic(c, "check", "(II)I",
		cf.VarOp(cf.ILOAD, 0), cf.VarOp(cf.ILOAD, 1),
		cf.Invoke(cf.INVOKESTATIC, objects, "checkIndex", "(II)I", false),
		cf.Op(cf.IRETURN))
	addStatic(c, "orElse", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;",
		cf.VarOp(cf.ALOAD, 0), cf.VarOp(cf.ALOAD, 1),
		cf.Invoke(cf.INVOKESTATIC, objects, "requireNonNullElse",
			"(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;", false),
		cf.Op(cf.ARETURN))
	lower(t, c, cf.V1_8)
	noCallTo(t, c, objects, "checkIndex")
	verify(t, c)

	vm := jvmtest.New(c)
	got, err := vm.Invoke(mainClass, "check", "(II)I", int32(2), int32(3))
	require.NoError(t, err)
	assert.Equal(t, int32(2), got)

	for _, idx := range []int32{-1, 3} {
		_, err = vm.Invoke(mainClass, "check", "(II)I", idx, int32(3))
		require.Error(t, err)
		var thr *jvmtest.Throw
		require.ErrorAs(t, err, &thr)
		assert.Equal(t, "java/lang/IndexOutOfBoundsException", thr.Obj.Class)
	}
	_, err = vm.Invoke(mainClass, "check", "(II)I", int32(5), int32(3))
	var thr *jvmtest.Throw
	require.ErrorAs(t, err, &thr)
	assert.Equal(t, "Index 5 out of bounds for length 3", thr.Message())

	const desc = "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;"
	got, err = vm.Invoke(mainClass, "orElse", desc, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a", got)
	got, err = vm.Invoke(mainClass, "orElse", desc, nil, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", got)
	_, err = vm.Invoke(mainClass, "orElse", desc, nil, nil)
	require.ErrorAs(t, err, &thr)
	assert.Equal(t, "defaultObj", thr.Message())
}

func concatIndy(desc, recipe string, consts ...any) *cf.InvokeDynamicInsn {
	return &cf.InvokeDynamicInsn{
		Name: "makeConcatWithConstants",
		Desc: desc,
		Bootstrap: cf.Handle{
			Kind: cf.H_INVOKESTATIC, Owner: concatFactory, Name: "makeConcatWithConstants",
			Desc: "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;" +
				"Ljava/lang/String;[Ljava/lang/Object;)Ljava/lang/invoke/CallSite;",
		},
		Args: append([]any{recipe}, consts...),
	}
}

func TestStringConcat(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V11, mainClass)
	const desc = "(Ljava/lang/String;IJZ)Ljava/lang/String;"
	addStatic(c, "f", desc,
		cf.VarOp(cf.ALOAD, 0), cf.VarOp(cf.ILOAD, 1), cf.VarOp(cf.LLOAD, 2), cf.VarOp(cf.ILOAD, 4),
		concatIndy(desc, "\u0001:\u0001\u0002\u0001 \u0001\u0002", "/", int32(9)),
		cf.Op(cf.ARETURN))
	res := lower(t, c, cf.V1_8)
	assert.Equal(t, 1, res.Replaced)
	for _, in := range c.Methods[0].Code.Insns {
		_, indy := in.(*cf.InvokeDynamicInsn)
		assert.False(t, indy)
	}
	verify(t, c)

	vm := jvmtest.New(c)
	got, err := vm.Invoke(mainClass, "f", desc, "a", int32(5), int64(-7), int32(1))
	require.NoError(t, err)
	assert.Equal(t, "a:5/-7 true9", got)

	got, err = vm.Invoke(mainClass, "f", desc, nil, int32(0), int64(0), int32(0))
	require.NoError(t, err)
	assert.Equal(t, "null:0/0 false9", got)
}

func TestStringConcatMalformedRecipe(t *testing.T) {
	t.Parallel()

	c := newClass(cf.V9, mainClass)
	addStatic(c, "f", "(I)Ljava/lang/String;",
		cf.VarOp(cf.ILOAD, 0),
		concatIndy("(I)Ljava/lang/String;", "\u0001\u0001"),
		cf.Op(cf.ARETURN))
	err := Java9To8().Apply(c, tt.NoDeps, &tt.Result{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "t/Main.f(I)Ljava/lang/String;")
}
