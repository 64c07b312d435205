package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgumentTypes(t *testing.T) {
	t.Parallel()

	desc := "(IJLjava/lang/String;[[D)V"
	args := ArgumentTypes(desc)
	want := []string{"I", "J", "Ljava/lang/String;", "[[D"}
	if assert.Len(t, args, len(want)) {
		for i, a := range args {
			assert.Equal(t, want[i], a.Descriptor())
		}
	}
	assert.Equal(t, 5, ArgumentsSize(desc))
	assert.Equal(t, SortVoid, ReturnType(desc).Sort)
	assert.Empty(t, ArgumentTypes("()V"))
}

func TestTypes(t *testing.T) {
	t.Parallel()

	list := ObjectType("java/util/List")
	assert.Equal(t, "Ljava/util/List;", list.Descriptor())
	assert.Equal(t, "java/util/List", list.InternalName())
	assert.True(t, list.IsReference())
	assert.Equal(t, SortArray, ObjectType("[I").Sort)

	matrix := ParseType("[[Ljava/lang/String;")
	assert.Equal(t, 2, matrix.Dimensions())
	assert.Equal(t, "java/lang/String", matrix.ElementType().InternalName())
	assert.Equal(t, "[[Ljava/lang/String;", matrix.InternalName())

	assert.Equal(t, 2, LongType.Size())
	assert.Equal(t, 2, DoubleType.Size())
	assert.Equal(t, 1, list.Size())
	assert.Equal(t, 0, VoidType.Size())

	assert.Equal(t, "(JLjava/lang/String;)I", MethodDescriptor(IntType, LongType, ObjectType("java/lang/String")))
	assert.Equal(t, "Map$Entry", SimpleName("java/util/Map$Entry"))
	assert.Equal(t, "Foo", SimpleName("Foo"))
}

func TestTypeOpcode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ  Type
		base Opcode
		want Opcode
	}{
		{IntType, ILOAD, ILOAD},
		{LongType, ILOAD, LLOAD},
		{DoubleType, ISTORE, DSTORE},
		{ObjectType("java/lang/Object"), IRETURN, ARETURN},
		{VoidType, IRETURN, RETURN},
		{ByteType, IALOAD, BALOAD},
		{BooleanType, IASTORE, BASTORE},
		{CharType, IASTORE, CASTORE},
		{ShortType, IALOAD, SALOAD},
		{ParseType("[I"), IALOAD, AALOAD},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.typ.Opcode(tc.base), "%s %s", tc.typ, tc.base)
	}
}

func TestValidMethodDescriptor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc string
		want bool
	}{
		{"()V", true},
		{"(I)Ljava/lang/String;", true},
		{"([I)[J", true},
		{"(Ljava/lang/String;J)V", true},
		{"(Ljava/lang/String)V", false},
		{"()", false},
		{"I", false},
		{"(I)", false},
		{"(I)VV", false},
		{"", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ValidMethodDescriptor(tc.desc), tc.desc)
	}
}
