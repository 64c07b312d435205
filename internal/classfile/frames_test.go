package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapHierarchy map[string]string

func (h mapHierarchy) SuperClass(name string) (string, bool, bool) {
	if name == objectClass {
		return "", false, true
	}
	super, ok := h[name]
	return super, false, ok
}

func withMethod(m *Method) *Class {
	return &Class{
		Version: V1_8,
		Access:  ACC_PUBLIC | ACC_SUPER,
		Name:    "app/Main",
		Super:   objectClass,
		Methods: []*Method{m},
	}
}

func TestComputeFramesAtBranchTarget(t *testing.T) {
	t.Parallel()

	zero := NewLabel()
	m := NewMethod(ACC_PUBLIC|ACC_STATIC, "isSet", "(I)I")
	m.Emit(
		VarOp(ILOAD, 0),
		Jump(IFEQ, zero),
		Op(ICONST_1),
		Op(IRETURN),
		zero,
		Op(ICONST_0),
		Op(IRETURN),
	)

	data, err := Write(withMethod(m), WriteOptions{ComputeFrames: true})
	require.NoError(t, err)
	c, err := Parse(data)
	require.NoError(t, err)

	fs := frames(c.Methods[0])
	require.Len(t, fs, 1)
	assert.Equal(t, []VType{Integer}, fs[0].Locals)
	assert.Empty(t, fs[0].Stack)
}

func TestComputeFramesDropsDeadCode(t *testing.T) {
	t.Parallel()

	m := NewMethod(ACC_PUBLIC|ACC_STATIC, "dead", "()V")
	m.Emit(
		Op(RETURN),
		Op(ICONST_1),
		Op(POP),
		Op(RETURN),
	)
	data, err := Write(withMethod(m), WriteOptions{ComputeFrames: true})
	require.NoError(t, err)
	c, err := Parse(data)
	require.NoError(t, err)
	assert.Len(t, code(c.Methods[0]), 1)
}

func TestAnalyzeMergesToCommonSuper(t *testing.T) {
	t.Parallel()

	other, end := NewLabel(), NewLabel()
	m := NewMethod(ACC_PUBLIC|ACC_STATIC, "pick", "(Z)Ljava/lang/Object;")
	m.Emit(
		VarOp(ILOAD, 0),
		Jump(IFEQ, other),
		FieldOp(GETSTATIC, "app/Holder", "b", "Lapp/B;"),
		Jump(GOTO, end),
		other,
		FieldOp(GETSTATIC, "app/Holder", "c", "Lapp/C;"),
		end,
		Op(ARETURN),
	)
	h := mapHierarchy{"app/B": "app/Base", "app/C": "app/Base", "app/Base": objectClass}

	tests := []struct {
		name string
		h    Hierarchy
		want string
	}{
		{"with hierarchy", h, "app/Base"},
		{"without hierarchy", nil, objectClass},
	}
	for _, tc := range tests {
		an, err := Analyze("app/Main", m, tc.h)
		require.NoError(t, err, tc.name)
		ret := -1
		for i, in := range an.Insns {
			if in.Opcode() == ARETURN {
				ret = i
			}
		}
		require.NotEqual(t, -1, ret)
		assert.Equal(t, []VType{ObjectVType(tc.want)}, an.Stack(ret), tc.name)
	}
}

func TestAnalyzeNullMerge(t *testing.T) {
	t.Parallel()

	other, end := NewLabel(), NewLabel()
	m := NewMethod(ACC_PUBLIC|ACC_STATIC, "maybe", "(Z)Ljava/lang/String;")
	m.Emit(
		VarOp(ILOAD, 0),
		Jump(IFEQ, other),
		Ldc("s"),
		Jump(GOTO, end),
		other,
		Op(ACONST_NULL),
		end,
		Op(ARETURN),
	)
	an, err := Analyze("app/Main", m, nil)
	require.NoError(t, err)
	last := len(an.Insns) - 1
	assert.Equal(t, []VType{ObjectVType("java/lang/String")}, an.Stack(last))
}

func TestAnalyzeInconsistentStack(t *testing.T) {
	t.Parallel()

	join := NewLabel()
	m := NewMethod(ACC_PUBLIC|ACC_STATIC, "bad", "(I)V")
	m.Emit(
		VarOp(ILOAD, 0),
		Jump(IFEQ, join),
		Op(ICONST_1),
		join,
		Op(RETURN),
	)
	_, err := Analyze("app/Main", m, nil)
	assert.ErrorIs(t, err, ErrAnalysis)
}
