package classfile

// Version is a class file major version.
type Version uint16

const (
	V1_6 Version = 50 + iota
	V1_7
	V1_8
	V9
	V10
	V11
	V12
	V13
	V14
	V15
	V16
	V17
	V18
	V19
	V20
	V21
	V22
)

// PreviewMinor marks classes compiled with preview features enabled.
const PreviewMinor = 0xffff

// Release returns the Java release number of v (52 -> 8).
func (v Version) Release() int { return int(v) - 44 }

// VersionOf returns the class file version of a Java release (8 -> 52).
func VersionOf(release int) Version { return Version(release + 44) }

// Class is a mutable, fully decoded class file.
type Class struct {
	Version      Version
	MinorVersion uint16
	Access       uint16
	Name         string
	Super        string
	Interfaces   []string

	Signature  string
	SourceFile string

	OuterClass      string
	OuterMethod     string
	OuterMethodDesc string

	NestHost            string
	NestMembers         []string
	PermittedSubclasses []string
	InnerClasses        []InnerClass

	// Record is true when the class carries a Record attribute.
	Record           bool
	RecordComponents []RecordComponent

	Fields     []*Field
	Methods    []*Method
	Attributes []Attribute

	// source constant pool and bootstrap table, seeded into the writer so raw
	// attributes keep valid indices.
	pool       *constantPool
	bootstraps []bootstrapMethod
}

type InnerClass struct {
	Name      string
	Outer     string
	InnerName string
	Access    uint16
}

type RecordComponent struct {
	Name       string
	Desc       string
	Signature  string
	Attributes []Attribute
}

// Attribute is an attribute kept verbatim.
type Attribute struct {
	Name string
	Data []byte
}

type Field struct {
	Access     uint16
	Name       string
	Desc       string
	Signature  string
	Value      any
	Attributes []Attribute
}

type Method struct {
	Access     uint16
	Name       string
	Desc       string
	Signature  string
	Exceptions []string
	Attributes []Attribute
	Code       *Code
}

// Code is the body of a concrete method.
type Code struct {
	Insns         []Insn
	TryCatch      []TryCatchBlock
	LocalVars     []LocalVar
	LocalVarTypes []LocalVar
	MaxStack      int
	MaxLocals     int
}

type TryCatchBlock struct {
	Start, End, Handler *Label
	Type                string // empty catches everything
}

type LocalVar struct {
	Name       string
	Desc       string
	Start, End *Label
	Index      int
}

// IsInterface reports whether c is an interface.
func (c *Class) IsInterface() bool { return c.Access&ACC_INTERFACE != 0 }

// FindMethod returns the method with the exact name and descriptor.
func (c *Class) FindMethod(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// HasMethod reports whether c declares name+desc.
func (c *Class) HasMethod(name, desc string) bool {
	return c.FindMethod(name, desc) != nil
}

// Implements reports whether c lists iface among its direct interfaces.
func (c *Class) Implements(iface string) bool {
	for _, i := range c.Interfaces {
		if i == iface {
			return true
		}
	}
	return false
}

// AddMethod appends m and returns it.
func (c *Class) AddMethod(m *Method) *Method {
	c.Methods = append(c.Methods, m)
	return m
}

// RemoveAttribute drops every raw attribute named name.
func (c *Class) RemoveAttribute(name string) {
	kept := c.Attributes[:0]
	for _, a := range c.Attributes {
		if a.Name != name {
			kept = append(kept, a)
		}
	}
	c.Attributes = kept
}

// IsStatic reports whether m is static.
func (m *Method) IsStatic() bool { return m.Access&ACC_STATIC != 0 }

// NewMethod returns a method with an empty body.
func NewMethod(access uint16, name, desc string) *Method {
	m := &Method{Access: access, Name: name, Desc: desc}
	if access&(ACC_ABSTRACT|ACC_NATIVE) == 0 {
		m.Code = &Code{}
	}
	return m
}

// Emit appends instructions to the body of m.
func (m *Method) Emit(insns ...Insn) {
	m.Code.Insns = append(m.Code.Insns, insns...)
}
