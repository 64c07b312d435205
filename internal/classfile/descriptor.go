package classfile

import "strings"

// Sort classifies a descriptor type.
type Sort uint8

const (
	SortVoid Sort = iota
	SortBoolean
	SortChar
	SortByte
	SortShort
	SortInt
	SortFloat
	SortLong
	SortDouble
	SortArray
	SortObject
	SortMethod
)

// Type is a parsed field or method descriptor.
type Type struct {
	Sort Sort
	desc string
}

var (
	VoidType    = Type{SortVoid, "V"}
	BooleanType = Type{SortBoolean, "Z"}
	CharType    = Type{SortChar, "C"}
	ByteType    = Type{SortByte, "B"}
	ShortType   = Type{SortShort, "S"}
	IntType     = Type{SortInt, "I"}
	FloatType   = Type{SortFloat, "F"}
	LongType    = Type{SortLong, "J"}
	DoubleType  = Type{SortDouble, "D"}
)

// ObjectType returns the type of the class with the given internal name.
// Array internal names ("[I") are accepted as well.
func ObjectType(internalName string) Type {
	if strings.HasPrefix(internalName, "[") {
		return Type{SortArray, internalName}
	}
	return Type{SortObject, "L" + internalName + ";"}
}

// MethodType returns the type of a method descriptor.
func MethodType(desc string) Type {
	return Type{SortMethod, desc}
}

// ParseType parses a single field descriptor.
func ParseType(desc string) Type {
	if desc == "" {
		return VoidType
	}
	switch desc[0] {
	case 'V':
		return VoidType
	case 'Z':
		return BooleanType
	case 'C':
		return CharType
	case 'B':
		return ByteType
	case 'S':
		return ShortType
	case 'I':
		return IntType
	case 'F':
		return FloatType
	case 'J':
		return LongType
	case 'D':
		return DoubleType
	case '[':
		return Type{SortArray, desc}
	case '(':
		return Type{SortMethod, desc}
	default:
		return Type{SortObject, desc}
	}
}

// Descriptor returns the descriptor form, e.g. "Ljava/lang/String;".
func (t Type) Descriptor() string { return t.desc }

// InternalName returns the internal name for objects and the descriptor for arrays.
func (t Type) InternalName() string {
	if t.Sort == SortObject {
		return t.desc[1 : len(t.desc)-1]
	}
	return t.desc
}

func (t Type) String() string { return t.desc }

// IsReference reports whether values of t are object references.
func (t Type) IsReference() bool {
	return t.Sort == SortObject || t.Sort == SortArray
}

// Size returns the number of local variable / operand stack slots a value of t occupies.
func (t Type) Size() int {
	switch t.Sort {
	case SortVoid:
		return 0
	case SortLong, SortDouble:
		return 2
	default:
		return 1
	}
}

// Dimensions returns the number of array dimensions.
func (t Type) Dimensions() int {
	n := 0
	for n < len(t.desc) && t.desc[n] == '[' {
		n++
	}
	return n
}

// ElementType returns the element type of an array type.
func (t Type) ElementType() Type {
	return ParseType(t.desc[t.Dimensions():])
}

// Opcode adapts a typed opcode family (ILOAD, ISTORE, IALOAD, IASTORE, IRETURN) to t.
func (t Type) Opcode(base Opcode) Opcode {
	switch base {
	case IALOAD, IASTORE:
		switch t.Sort {
		case SortBoolean, SortByte:
			return base + 5
		case SortChar:
			return base + 6
		case SortShort:
			return base + 7
		}
	case IRETURN:
		if t.Sort == SortVoid {
			return RETURN
		}
	}
	switch t.Sort {
	case SortLong:
		return base + 1
	case SortFloat:
		return base + 2
	case SortDouble:
		return base + 3
	case SortObject, SortArray:
		return base + 4
	default:
		return base
	}
}

// ArgumentTypes parses the parameter types of a method descriptor.
func ArgumentTypes(methodDesc string) []Type {
	var args []Type
	i := 1
	for i < len(methodDesc) && methodDesc[i] != ')' {
		end := fieldDescEnd(methodDesc, i)
		args = append(args, ParseType(methodDesc[i:end]))
		i = end
	}
	return args
}

// ReturnType parses the return type of a method descriptor.
func ReturnType(methodDesc string) Type {
	idx := strings.IndexByte(methodDesc, ')')
	if idx < 0 {
		return VoidType
	}
	return ParseType(methodDesc[idx+1:])
}

// ArgumentsSize returns the number of slots the parameters of methodDesc occupy.
func ArgumentsSize(methodDesc string) int {
	size := 0
	for _, a := range ArgumentTypes(methodDesc) {
		size += a.Size()
	}
	return size
}

// MethodDescriptor builds a method descriptor from its parts.
func MethodDescriptor(ret Type, args ...Type) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, a := range args {
		sb.WriteString(a.desc)
	}
	sb.WriteByte(')')
	sb.WriteString(ret.desc)
	return sb.String()
}

// ValidMethodDescriptor reports whether desc is a well formed method descriptor.
func ValidMethodDescriptor(desc string) bool {
	if len(desc) < 3 || desc[0] != '(' {
		return false
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		end := fieldDescEnd(desc, i)
		if end <= i || end > len(desc) {
			return false
		}
		i = end
	}
	if i >= len(desc)-1 {
		return false
	}
	ret := desc[i+1:]
	return ret == "V" || fieldDescEnd(ret, 0) == len(ret)
}

// fieldDescEnd returns the index just after the field descriptor starting at i.
func fieldDescEnd(desc string, i int) int {
	for i < len(desc) && desc[i] == '[' {
		i++
	}
	if i >= len(desc) {
		return i
	}
	if desc[i] == 'L' {
		semi := strings.IndexByte(desc[i:], ';')
		if semi < 0 {
			return len(desc) + 1
		}
		return i + semi + 1
	}
	return i + 1
}

// SimpleName returns the unqualified name of a class as Class.getSimpleName
// would for a top level class.
func SimpleName(internalName string) string {
	if idx := strings.LastIndexByte(internalName, '/'); idx >= 0 {
		return internalName[idx+1:]
	}
	return internalName
}
