package classfile

import (
	"fmt"
	"math"
	"strings"
)

// Pseudo is the opcode reported by labels, line numbers and frames.
const Pseudo Opcode = 0xff

// Insn is one element of a method body. The set of implementations is closed:
// every instruction shape of the class file format has exactly one Go type.
type Insn interface {
	Opcode() Opcode
	insn()
}

// SimpleInsn is an instruction without operands.
type SimpleInsn struct{ Op Opcode }

// IntInsn is bipush, sipush or newarray.
type IntInsn struct {
	Op      Opcode
	Operand int
}

// VarInsn loads or stores a local variable, or is ret.
type VarInsn struct {
	Op  Opcode
	Var int
}

// TypeInsn is new, anewarray, checkcast or instanceof.
type TypeInsn struct {
	Op   Opcode
	Type string
}

type FieldInsn struct {
	Op                Opcode
	Owner, Name, Desc string
}

type MethodInsn struct {
	Op                Opcode
	Owner, Name, Desc string
	Interface         bool
}

// InvokeDynamicInsn is an indirect call site: a bootstrap handle plus the
// constant arguments captured for it.
type InvokeDynamicInsn struct {
	Name, Desc string
	Bootstrap  Handle
	Args       []any
}

type JumpInsn struct {
	Op     Opcode
	Target *Label
}

// Label marks a position in the instruction list.
type Label struct {
	offset int
}

// LdcInsn pushes a constant: int32, float32, int64, float64, string, Type,
// Handle or *ConstantDynamic.
type LdcInsn struct{ Value any }

type IincInsn struct{ Var, Incr int }

type TableSwitchInsn struct {
	Min, Max int32
	Default  *Label
	Labels   []*Label
}

type LookupSwitchInsn struct {
	Default *Label
	Keys    []int32
	Labels  []*Label
}

type MultiANewArrayInsn struct {
	Desc string
	Dims int
}

// LineNumber associates a source line with the instructions following Start.
type LineNumber struct {
	Line  int
	Start *Label
}

// Frame is a stack map frame. Locals and Stack use the compressed form of the
// StackMapTable attribute: long and double values take a single entry.
type Frame struct {
	Locals []VType
	Stack  []VType
}

func (i *SimpleInsn) Opcode() Opcode         { return i.Op }
func (i *IntInsn) Opcode() Opcode            { return i.Op }
func (i *VarInsn) Opcode() Opcode            { return i.Op }
func (i *TypeInsn) Opcode() Opcode           { return i.Op }
func (i *FieldInsn) Opcode() Opcode          { return i.Op }
func (i *MethodInsn) Opcode() Opcode         { return i.Op }
func (i *InvokeDynamicInsn) Opcode() Opcode  { return INVOKEDYNAMIC }
func (i *JumpInsn) Opcode() Opcode           { return i.Op }
func (l *Label) Opcode() Opcode              { return Pseudo }
func (i *LdcInsn) Opcode() Opcode            { return LDC }
func (i *IincInsn) Opcode() Opcode           { return IINC }
func (i *TableSwitchInsn) Opcode() Opcode    { return TABLESWITCH }
func (i *LookupSwitchInsn) Opcode() Opcode   { return LOOKUPSWITCH }
func (i *MultiANewArrayInsn) Opcode() Opcode { return MULTIANEWARRAY }
func (l *LineNumber) Opcode() Opcode         { return Pseudo }
func (f *Frame) Opcode() Opcode              { return Pseudo }

func (*SimpleInsn) insn()         {}
func (*IntInsn) insn()            {}
func (*VarInsn) insn()            {}
func (*TypeInsn) insn()           {}
func (*FieldInsn) insn()          {}
func (*MethodInsn) insn()         {}
func (*InvokeDynamicInsn) insn()  {}
func (*JumpInsn) insn()           {}
func (*Label) insn()              {}
func (*LdcInsn) insn()            {}
func (*IincInsn) insn()           {}
func (*TableSwitchInsn) insn()    {}
func (*LookupSwitchInsn) insn()   {}
func (*MultiANewArrayInsn) insn() {}
func (*LineNumber) insn()         {}
func (*Frame) insn()              {}

// Handle is a CONSTANT_MethodHandle.
type Handle struct {
	Kind      uint8
	Owner     string
	Name      string
	Desc      string
	Interface bool
}

// IsStatic reports whether invoking the handle takes no receiver.
func (h Handle) IsStatic() bool {
	return h.Kind == H_INVOKESTATIC || h.Kind == H_GETSTATIC || h.Kind == H_PUTSTATIC
}

// IsMethod reports whether the handle refers to a method.
func (h Handle) IsMethod() bool {
	return h.Kind >= H_INVOKEVIRTUAL && h.Kind <= H_INVOKEINTERFACE
}

func (h Handle) String() string {
	return fmt.Sprintf("%d:%s.%s%s", h.Kind, h.Owner, h.Name, h.Desc)
}

// ConstantDynamic is a CONSTANT_Dynamic entry.
type ConstantDynamic struct {
	Name, Desc string
	Bootstrap  Handle
	Args       []any
}

// VKind is a verification type tag.
type VKind uint8

const (
	VTop VKind = iota
	VInteger
	VFloat
	VDouble
	VLong
	VNull
	VUninitializedThis
	VObject
	VUninitialized
)

// VType is a verification type of the StackMapTable attribute.
type VType struct {
	Kind  VKind
	Class string // VObject
	New   *Label // VUninitialized: the label just before the NEW instruction
}

var (
	Top               = VType{Kind: VTop}
	Integer           = VType{Kind: VInteger}
	Float             = VType{Kind: VFloat}
	Long              = VType{Kind: VLong}
	Double            = VType{Kind: VDouble}
	Null              = VType{Kind: VNull}
	UninitializedThis = VType{Kind: VUninitializedThis}
)

// ObjectVType returns the verification type of an instance of class.
func ObjectVType(class string) VType { return VType{Kind: VObject, Class: class} }

// Wide reports whether the value occupies two slots.
func (v VType) Wide() bool { return v.Kind == VLong || v.Kind == VDouble }

func (v VType) String() string {
	switch v.Kind {
	case VTop:
		return "top"
	case VInteger:
		return "int"
	case VFloat:
		return "float"
	case VDouble:
		return "double"
	case VLong:
		return "long"
	case VNull:
		return "null"
	case VUninitializedThis:
		return "uninitializedThis"
	case VObject:
		return v.Class
	default:
		return "uninitialized"
	}
}

// Constructors used when emitting code.

func Op(op Opcode) *SimpleInsn { return &SimpleInsn{Op: op} }

func VarOp(op Opcode, v int) *VarInsn { return &VarInsn{Op: op, Var: v} }

func TypeOp(op Opcode, typ string) *TypeInsn { return &TypeInsn{Op: op, Type: typ} }

func FieldOp(op Opcode, owner, name, desc string) *FieldInsn {
	return &FieldInsn{Op: op, Owner: owner, Name: name, Desc: desc}
}

func Invoke(op Opcode, owner, name, desc string, itf bool) *MethodInsn {
	return &MethodInsn{Op: op, Owner: owner, Name: name, Desc: desc, Interface: itf}
}

func Jump(op Opcode, target *Label) *JumpInsn { return &JumpInsn{Op: op, Target: target} }

func NewLabel() *Label { return &Label{offset: -1} }

func Ldc(v any) *LdcInsn { return &LdcInsn{Value: v} }

func Iinc(v, incr int) *IincInsn { return &IincInsn{Var: v, Incr: incr} }

func NewArray(elemType int) *IntInsn { return &IntInsn{Op: NEWARRAY, Operand: elemType} }

// PushInt returns the shortest instruction pushing the int constant v.
func PushInt(v int) Insn {
	switch {
	case v >= -1 && v <= 5:
		return Op(Opcode(int(ICONST_0) + v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return &IntInsn{Op: BIPUSH, Operand: v}
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return &IntInsn{Op: SIPUSH, Operand: v}
	default:
		return Ldc(int32(v))
	}
}

// Format renders a single instruction for listings and error messages.
func Format(in Insn) string {
	switch i := in.(type) {
	case *SimpleInsn:
		return i.Op.String()
	case *IntInsn:
		return fmt.Sprintf("%s %d", i.Op, i.Operand)
	case *VarInsn:
		return fmt.Sprintf("%s %d", i.Op, i.Var)
	case *TypeInsn:
		return fmt.Sprintf("%s %s", i.Op, i.Type)
	case *FieldInsn:
		return fmt.Sprintf("%s %s.%s:%s", i.Op, i.Owner, i.Name, i.Desc)
	case *MethodInsn:
		return fmt.Sprintf("%s %s.%s%s", i.Op, i.Owner, i.Name, i.Desc)
	case *InvokeDynamicInsn:
		return fmt.Sprintf("invokedynamic %s%s [%s]", i.Name, i.Desc, i.Bootstrap)
	case *JumpInsn:
		return fmt.Sprintf("%s L%p", i.Op, i.Target)
	case *Label:
		return fmt.Sprintf("L%p:", i)
	case *LdcInsn:
		if s, ok := i.Value.(string); ok {
			return fmt.Sprintf("ldc %q", s)
		}
		return fmt.Sprintf("ldc %v", i.Value)
	case *IincInsn:
		return fmt.Sprintf("iinc %d %d", i.Var, i.Incr)
	case *TableSwitchInsn:
		return fmt.Sprintf("tableswitch %d..%d", i.Min, i.Max)
	case *LookupSwitchInsn:
		return fmt.Sprintf("lookupswitch %d keys", len(i.Keys))
	case *MultiANewArrayInsn:
		return fmt.Sprintf("multianewarray %s %d", i.Desc, i.Dims)
	case *LineNumber:
		return fmt.Sprintf("line %d", i.Line)
	case *Frame:
		return fmt.Sprintf("frame locals=%v stack=%v", i.Locals, i.Stack)
	default:
		return fmt.Sprintf("%T", in)
	}
}

// Listing renders a whole instruction list, one instruction per line.
func Listing(insns []Insn) string {
	var sb strings.Builder
	for _, in := range insns {
		if _, ok := in.(*Label); !ok {
			sb.WriteString("    ")
		}
		sb.WriteString(Format(in))
		sb.WriteByte('\n')
	}
	return sb.String()
}
