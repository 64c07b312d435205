package classfile

import (
	"sort"
	"strings"
)

// remapper renames class references and records which mappings were hit.
type remapper struct {
	mapping map[string]string
	hits    map[string]bool
	labels  map[*Label]*Label
}

// Remap returns a copy of c in which every reference to a class named in
// mapping (internal names) is renamed, together with the sorted list of the
// old names that were referenced. c itself is left untouched. Raw attributes
// are copied verbatim.
func Remap(c *Class, mapping map[string]string) (*Class, []string) {
	r := &remapper{mapping: mapping, hits: make(map[string]bool)}
	out := &Class{
		Version:             c.Version,
		MinorVersion:        c.MinorVersion,
		Access:              c.Access,
		Name:                r.name(c.Name),
		Super:               r.name(c.Super),
		Interfaces:          r.names(c.Interfaces),
		Signature:           r.signature(c.Signature),
		SourceFile:          c.SourceFile,
		OuterClass:          r.name(c.OuterClass),
		OuterMethod:         c.OuterMethod,
		OuterMethodDesc:     r.desc(c.OuterMethodDesc),
		NestHost:            r.name(c.NestHost),
		NestMembers:         r.names(c.NestMembers),
		PermittedSubclasses: r.names(c.PermittedSubclasses),
		Record:              c.Record,
		Attributes:          append([]Attribute(nil), c.Attributes...),
		pool:                c.pool,
		bootstraps:          c.bootstraps,
	}
	for _, ic := range c.InnerClasses {
		out.InnerClasses = append(out.InnerClasses, InnerClass{
			Name: r.name(ic.Name), Outer: r.name(ic.Outer), InnerName: ic.InnerName, Access: ic.Access,
		})
	}
	for _, rc := range c.RecordComponents {
		out.RecordComponents = append(out.RecordComponents, RecordComponent{
			Name: rc.Name, Desc: r.desc(rc.Desc), Signature: r.signature(rc.Signature),
			Attributes: append([]Attribute(nil), rc.Attributes...),
		})
	}
	for _, f := range c.Fields {
		out.Fields = append(out.Fields, &Field{
			Access: f.Access, Name: f.Name, Desc: r.desc(f.Desc), Signature: r.signature(f.Signature),
			Value: r.constant(f.Value), Attributes: append([]Attribute(nil), f.Attributes...),
		})
	}
	for _, m := range c.Methods {
		nm := &Method{
			Access: m.Access, Name: m.Name, Desc: r.desc(m.Desc), Signature: r.signature(m.Signature),
			Exceptions: r.names(m.Exceptions), Attributes: append([]Attribute(nil), m.Attributes...),
		}
		if m.Code != nil {
			nm.Code = r.code(m.Code)
		}
		out.Methods = append(out.Methods, nm)
	}

	hits := make([]string, 0, len(r.hits))
	for h := range r.hits {
		hits = append(hits, h)
	}
	sort.Strings(hits)
	return out, hits
}

func (r *remapper) name(n string) string {
	if n == "" {
		return n
	}
	if strings.HasPrefix(n, "[") {
		return r.desc(n)
	}
	if to, ok := r.mapping[n]; ok {
		r.hits[n] = true
		return to
	}
	return n
}

func (r *remapper) names(ns []string) []string {
	if ns == nil {
		return nil
	}
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = r.name(n)
	}
	return out
}

// desc renames the class names inside a field or method descriptor.
func (r *remapper) desc(d string) string {
	if !strings.Contains(d, "L") {
		return d
	}
	var sb strings.Builder
	for i := 0; i < len(d); i++ {
		if d[i] != 'L' {
			sb.WriteByte(d[i])
			continue
		}
		end := strings.IndexByte(d[i:], ';')
		if end < 0 {
			sb.WriteString(d[i:])
			break
		}
		sb.WriteByte('L')
		sb.WriteString(r.name(d[i+1 : i+end]))
		sb.WriteByte(';')
		i += end
	}
	return sb.String()
}

func (r *remapper) handle(h Handle) Handle {
	h.Owner = r.name(h.Owner)
	h.Desc = r.desc(h.Desc)
	return h
}

func (r *remapper) constant(v any) any {
	switch c := v.(type) {
	case Type:
		if c.Sort == SortMethod {
			return MethodType(r.desc(c.Descriptor()))
		}
		return ObjectType(r.name(c.InternalName()))
	case Handle:
		return r.handle(c)
	case *ConstantDynamic:
		return &ConstantDynamic{Name: c.Name, Desc: r.desc(c.Desc), Bootstrap: r.handle(c.Bootstrap), Args: r.constants(c.Args)}
	default:
		return v
	}
}

func (r *remapper) constants(vs []any) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = r.constant(v)
	}
	return out
}

func (r *remapper) label(l *Label) *Label {
	if l == nil {
		return nil
	}
	if nl, ok := r.labels[l]; ok {
		return nl
	}
	nl := NewLabel()
	r.labels[l] = nl
	return nl
}

func (r *remapper) vtypes(vs []VType) []VType {
	out := make([]VType, len(vs))
	for i, v := range vs {
		switch v.Kind {
		case VObject:
			v.Class = r.name(v.Class)
		case VUninitialized:
			v.New = r.label(v.New)
		}
		out[i] = v
	}
	return out
}

func (r *remapper) code(c *Code) *Code {
	r.labels = make(map[*Label]*Label)
	out := &Code{MaxStack: c.MaxStack, MaxLocals: c.MaxLocals}
	out.Insns = make([]Insn, 0, len(c.Insns))
	for _, in := range c.Insns {
		out.Insns = append(out.Insns, r.insn(in))
	}
	for _, tc := range c.TryCatch {
		out.TryCatch = append(out.TryCatch, TryCatchBlock{
			Start: r.label(tc.Start), End: r.label(tc.End), Handler: r.label(tc.Handler), Type: r.name(tc.Type),
		})
	}
	for _, lv := range c.LocalVars {
		out.LocalVars = append(out.LocalVars, LocalVar{
			Name: lv.Name, Desc: r.desc(lv.Desc), Start: r.label(lv.Start), End: r.label(lv.End), Index: lv.Index,
		})
	}
	for _, lv := range c.LocalVarTypes {
		out.LocalVarTypes = append(out.LocalVarTypes, LocalVar{
			Name: lv.Name, Desc: r.signature(lv.Desc), Start: r.label(lv.Start), End: r.label(lv.End), Index: lv.Index,
		})
	}
	return out
}

func (r *remapper) insn(in Insn) Insn {
	switch i := in.(type) {
	case *SimpleInsn:
		return Op(i.Op)
	case *IntInsn:
		return &IntInsn{Op: i.Op, Operand: i.Operand}
	case *VarInsn:
		return VarOp(i.Op, i.Var)
	case *TypeInsn:
		return TypeOp(i.Op, r.name(i.Type))
	case *FieldInsn:
		return FieldOp(i.Op, r.name(i.Owner), i.Name, r.desc(i.Desc))
	case *MethodInsn:
		return Invoke(i.Op, r.name(i.Owner), i.Name, r.desc(i.Desc), i.Interface)
	case *InvokeDynamicInsn:
		return &InvokeDynamicInsn{Name: i.Name, Desc: r.desc(i.Desc), Bootstrap: r.handle(i.Bootstrap), Args: r.constants(i.Args)}
	case *JumpInsn:
		return Jump(i.Op, r.label(i.Target))
	case *Label:
		return r.label(i)
	case *LdcInsn:
		return Ldc(r.constant(i.Value))
	case *IincInsn:
		return Iinc(i.Var, i.Incr)
	case *TableSwitchInsn:
		ls := make([]*Label, len(i.Labels))
		for k, l := range i.Labels {
			ls[k] = r.label(l)
		}
		return &TableSwitchInsn{Min: i.Min, Max: i.Max, Default: r.label(i.Default), Labels: ls}
	case *LookupSwitchInsn:
		ls := make([]*Label, len(i.Labels))
		for k, l := range i.Labels {
			ls[k] = r.label(l)
		}
		return &LookupSwitchInsn{Default: r.label(i.Default), Keys: append([]int32(nil), i.Keys...), Labels: ls}
	case *MultiANewArrayInsn:
		return &MultiANewArrayInsn{Desc: r.desc(i.Desc), Dims: i.Dims}
	case *LineNumber:
		return &LineNumber{Line: i.Line, Start: r.label(i.Start)}
	case *Frame:
		return &Frame{Locals: r.vtypes(i.Locals), Stack: r.vtypes(i.Stack)}
	default:
		return in
	}
}

// signature renames class names in a generic signature. Malformed
// signatures are returned unchanged.
func (r *remapper) signature(sig string) string {
	if sig == "" || !strings.Contains(sig, "L") {
		return sig
	}
	p := &sigParser{r: r, s: sig}
	if !p.top() {
		return sig
	}
	return p.out.String()
}

type sigParser struct {
	r   *remapper
	s   string
	i   int
	out strings.Builder
}

func (p *sigParser) peek() byte {
	if p.i < len(p.s) {
		return p.s[p.i]
	}
	return 0
}

func (p *sigParser) copyByte() {
	p.out.WriteByte(p.s[p.i])
	p.i++
}

func (p *sigParser) top() bool {
	if p.peek() == '<' && !p.typeParams() {
		return false
	}
	if p.peek() == '(' {
		p.copyByte()
		for p.peek() != ')' {
			if p.i >= len(p.s) || !p.typeSig() {
				return false
			}
		}
		p.copyByte()
		if p.peek() == 'V' {
			p.copyByte()
		} else if !p.typeSig() {
			return false
		}
		for p.peek() == '^' {
			p.copyByte()
			if !p.typeSig() {
				return false
			}
		}
		return p.i == len(p.s)
	}
	for p.i < len(p.s) {
		if !p.typeSig() {
			return false
		}
	}
	return true
}

func (p *sigParser) typeParams() bool {
	p.copyByte() // <
	for p.peek() != '>' {
		colon := strings.IndexByte(p.s[p.i:], ':')
		if colon <= 0 {
			return false
		}
		p.out.WriteString(p.s[p.i : p.i+colon])
		p.i += colon
		for p.peek() == ':' {
			p.copyByte()
			if c := p.peek(); c == 'L' || c == 'T' || c == '[' {
				if !p.typeSig() {
					return false
				}
			}
		}
		if p.i >= len(p.s) {
			return false
		}
	}
	p.copyByte() // >
	return true
}

func (p *sigParser) typeSig() bool {
	switch c := p.peek(); c {
	case 'L':
		return p.classTypeSig()
	case 'T':
		end := strings.IndexByte(p.s[p.i:], ';')
		if end < 0 {
			return false
		}
		p.out.WriteString(p.s[p.i : p.i+end+1])
		p.i += end + 1
		return true
	case '[':
		p.copyByte()
		return p.typeSig()
	case 'Z', 'C', 'B', 'S', 'I', 'F', 'J', 'D':
		p.copyByte()
		return true
	default:
		return false
	}
}

func (p *sigParser) classTypeSig() bool {
	p.copyByte() // L
	end := strings.IndexAny(p.s[p.i:], "<.;")
	if end < 0 {
		return false
	}
	p.out.WriteString(p.r.name(p.s[p.i : p.i+end]))
	p.i += end
	for {
		if p.peek() == '<' && !p.typeArgs() {
			return false
		}
		switch p.peek() {
		case '.':
			p.copyByte()
			end := strings.IndexAny(p.s[p.i:], "<.;")
			if end < 0 {
				return false
			}
			p.out.WriteString(p.s[p.i : p.i+end])
			p.i += end
		case ';':
			p.copyByte()
			return true
		default:
			return false
		}
	}
}

func (p *sigParser) typeArgs() bool {
	p.copyByte() // <
	for p.peek() != '>' {
		switch p.peek() {
		case '*':
			p.copyByte()
		case '+', '-':
			p.copyByte()
			if !p.typeSig() {
				return false
			}
		case 0:
			return false
		default:
			if !p.typeSig() {
				return false
			}
		}
	}
	p.copyByte() // >
	return true
}
