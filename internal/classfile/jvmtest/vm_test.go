package jvmtest

import (
	"testing"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func class(methods ...*cf.Method) *cf.Class {
	return &cf.Class{
		Version: cf.V1_8, Access: cf.ACC_PUBLIC | cf.ACC_SUPER,
		Name: "t/Main", Super: "java/lang/Object", Methods: methods,
	}
}

func static(name, desc string, insns ...cf.Insn) *cf.Method {
	m := cf.NewMethod(cf.ACC_PUBLIC|cf.ACC_STATIC, name, desc)
	m.Emit(insns...)
	return m
}

func TestLoop(t *testing.T) {
	t.Parallel()

	// sum(n) = 1 + ... + n
	loop, done := cf.NewLabel(), cf.NewLabel()
	vm := New(class(static("sum", "(I)I",
		cf.Op(cf.ICONST_0), cf.VarOp(cf.ISTORE, 1),
		loop,
		cf.VarOp(cf.ILOAD, 0), cf.Jump(cf.IFLE, done),
		cf.VarOp(cf.ILOAD, 1), cf.VarOp(cf.ILOAD, 0), cf.Op(cf.IADD), cf.VarOp(cf.ISTORE, 1),
		cf.Iinc(0, -1), cf.Jump(cf.GOTO, loop),
		done,
		cf.VarOp(cf.ILOAD, 1), cf.Op(cf.IRETURN),
	)))

	tests := []struct {
		n, want int32
	}{{0, 0}, {1, 1}, {10, 55}, {-3, 0}}
	for _, tc := range tests {
		got, err := vm.Invoke("t/Main", "sum", "(I)I", tc.n)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestWideStackOps(t *testing.T) {
	t.Parallel()

	// (a, b) -> a*b + b with the long kept on top via DUP2_X1 shuffling.
	vm := New(class(static("f", "(IJ)J",
		cf.VarOp(cf.ILOAD, 0), cf.VarOp(cf.LLOAD, 1),
		cf.Op(cf.DUP2_X1), cf.Op(cf.POP2),
		cf.Op(cf.I2L), cf.VarOp(cf.LLOAD, 1), cf.Op(cf.LMUL),
		cf.VarOp(cf.LLOAD, 1), cf.Op(cf.LADD),
		cf.Op(cf.LRETURN),
	)))
	got, err := vm.Invoke("t/Main", "f", "(IJ)J", int32(3), int64(1)<<40)
	require.NoError(t, err)
	assert.Equal(t, int64(4)<<40, got)
}

func TestExceptionHandler(t *testing.T) {
	t.Parallel()

	start, end, handler := cf.NewLabel(), cf.NewLabel(), cf.NewLabel()
	m := static("div", "(II)I",
		start,
		cf.VarOp(cf.ILOAD, 0), cf.VarOp(cf.ILOAD, 1), cf.Op(cf.IDIV), cf.Op(cf.IRETURN),
		end,
		handler,
		cf.Op(cf.POP), cf.Op(cf.ICONST_M1), cf.Op(cf.IRETURN),
	)
	m.Code.TryCatch = []cf.TryCatchBlock{{Start: start, End: end, Handler: handler, Type: "java/lang/RuntimeException"}}
	vm := New(class(m))

	got, err := vm.Invoke("t/Main", "div", "(II)I", int32(7), int32(2))
	require.NoError(t, err)
	assert.Equal(t, int32(3), got)

	got, err = vm.Invoke("t/Main", "div", "(II)I", int32(7), int32(0))
	require.NoError(t, err)
	assert.Equal(t, int32(-1), got)
}

func TestUncaughtThrow(t *testing.T) {
	t.Parallel()

	vm := New(class(static("check", "(Ljava/lang/Object;)Ljava/lang/Object;",
		cf.VarOp(cf.ALOAD, 0), cf.Ldc("value"),
		cf.Invoke(cf.INVOKESTATIC, "java/util/Objects", "requireNonNull",
			"(Ljava/lang/Object;Ljava/lang/String;)Ljava/lang/Object;", false),
		cf.Op(cf.ARETURN),
	)))

	_, err := vm.Invoke("t/Main", "check", "(Ljava/lang/Object;)Ljava/lang/Object;", nil)
	require.Error(t, err)
	assert.Equal(t, "java/lang/NullPointerException", Thrown(err))
	var thr *Throw
	require.ErrorAs(t, err, &thr)
	assert.Equal(t, "value", thr.Message())
}

func TestStringBuilderAndConstructors(t *testing.T) {
	t.Parallel()

	vm := New(class(static("render", "(IJC)Ljava/lang/String;",
		cf.TypeOp(cf.NEW, sbClass), cf.Op(cf.DUP),
		cf.Invoke(cf.INVOKESPECIAL, sbClass, "<init>", "()V", false),
		cf.VarOp(cf.ILOAD, 0), cf.Invoke(cf.INVOKEVIRTUAL, sbClass, "append", "(I)Ljava/lang/StringBuilder;", false),
		cf.Ldc("/"), cf.Invoke(cf.INVOKEVIRTUAL, sbClass, "append", "(Ljava/lang/String;)Ljava/lang/StringBuilder;", false),
		cf.VarOp(cf.LLOAD, 1), cf.Invoke(cf.INVOKEVIRTUAL, sbClass, "append", "(J)Ljava/lang/StringBuilder;", false),
		cf.VarOp(cf.ILOAD, 3), cf.Invoke(cf.INVOKEVIRTUAL, sbClass, "append", "(C)Ljava/lang/StringBuilder;", false),
		cf.Invoke(cf.INVOKEVIRTUAL, sbClass, "toString", "()Ljava/lang/String;", false),
		cf.Op(cf.ARETURN),
	)))
	got, err := vm.Invoke("t/Main", "render", "(IJC)Ljava/lang/String;", int32(-4), int64(9), int32('x'))
	require.NoError(t, err)
	assert.Equal(t, "-4/9x", got)
}

func TestStringFromChars(t *testing.T) {
	t.Parallel()

	vm := New(class(static("of", "(I)Ljava/lang/String;",
		cf.TypeOp(cf.NEW, "java/lang/String"), cf.Op(cf.DUP),
		cf.VarOp(cf.ILOAD, 0),
		cf.Invoke(cf.INVOKESTATIC, "java/lang/Character", "toChars", "(I)[C", false),
		cf.Invoke(cf.INVOKESPECIAL, "java/lang/String", "<init>", "([C)V", false),
		cf.Op(cf.ARETURN),
	)))
	for _, r := range []rune{'a', 'é', '😀'} {
		got, err := vm.Invoke("t/Main", "of", "(I)Ljava/lang/String;", int32(r))
		require.NoError(t, err)
		assert.Equal(t, string(r), got)
	}
}

func TestVirtualDispatch(t *testing.T) {
	t.Parallel()

	base := &cf.Class{Name: "t/Base", Super: "java/lang/Object", Access: cf.ACC_PUBLIC}
	name := cf.NewMethod(cf.ACC_PUBLIC, "name", "()Ljava/lang/String;")
	name.Emit(cf.Ldc("base"), cf.Op(cf.ARETURN))
	base.Methods = []*cf.Method{name}

	sub := &cf.Class{Name: "t/Sub", Super: "t/Base", Access: cf.ACC_PUBLIC}
	override := cf.NewMethod(cf.ACC_PUBLIC, "name", "()Ljava/lang/String;")
	override.Emit(cf.Ldc("sub"), cf.Op(cf.ARETURN))
	sub.Methods = []*cf.Method{override}

	vm := New(base, sub)
	got, err := vm.InvokeVirtual(vm.NewObject("t/Sub", nil), "name", "()Ljava/lang/String;")
	require.NoError(t, err)
	assert.Equal(t, "sub", got)

	got, err = vm.InvokeVirtual(vm.NewObject("t/Base", nil), "name", "()Ljava/lang/String;")
	require.NoError(t, err)
	assert.Equal(t, "base", got)

	assert.True(t, vm.IsInstance(vm.NewObject("t/Sub", nil), "t/Base"))
	assert.False(t, vm.IsInstance(vm.NewObject("t/Base", nil), "t/Sub"))
}

func TestUnsupported(t *testing.T) {
	t.Parallel()

	vm := New(class(static("f", "()V",
		cf.Invoke(cf.INVOKESTATIC, "java/lang/System", "gc", "()V", false),
		cf.Op(cf.RETURN),
	)))
	_, err := vm.Invoke("t/Main", "f", "()V")
	assert.ErrorIs(t, err, ErrUnsupported)
}
