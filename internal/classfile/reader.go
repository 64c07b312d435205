package classfile

import (
	"encoding/binary"
	"fmt"
)

const magic = 0xCAFEBABE

// PeekVersion reads the version header without decoding the rest of the class.
func PeekVersion(data []byte) (Version, uint16, error) {
	if len(data) < 8 {
		return 0, 0, fmt.Errorf("%w: %d bytes", ErrMalformedClass, len(data))
	}
	if binary.BigEndian.Uint32(data) != magic {
		return 0, 0, fmt.Errorf("%w: bad magic", ErrMalformedClass)
	}
	minor := binary.BigEndian.Uint16(data[4:])
	major := binary.BigEndian.Uint16(data[6:])
	return Version(major), minor, nil
}

type rawAttr struct {
	name string
	data []byte
}

type rawMember struct {
	access     uint16
	name, desc string
	attrs      []rawAttr
}

type classReader struct {
	r    byteReader
	pool *constantPool
	bsms []bootstrapMethod
}

// Parse decodes a class file.
func Parse(data []byte) (*Class, error) {
	cr := &classReader{r: byteReader{data: data}}
	c, err := cr.parse()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (cr *classReader) parse() (*Class, error) {
	r := &cr.r
	if r.u4() != magic {
		if r.err != nil {
			return nil, r.err
		}
		return nil, fmt.Errorf("%w: bad magic", ErrMalformedClass)
	}
	c := &Class{}
	c.MinorVersion = r.u2()
	c.Version = Version(r.u2())
	if err := cr.readPool(); err != nil {
		return nil, err
	}
	c.pool = cr.pool

	var err error
	c.Access = r.u2()
	if c.Name, err = cr.pool.className(r.u2()); err != nil {
		return nil, err
	}
	if c.Super, err = cr.pool.optClassName(r.u2()); err != nil {
		return nil, err
	}
	n := int(r.u2())
	for i := 0; i < n; i++ {
		name, err := cr.pool.className(r.u2())
		if err != nil {
			return nil, err
		}
		c.Interfaces = append(c.Interfaces, name)
	}
	fields, err := cr.readMembers()
	if err != nil {
		return nil, err
	}
	methods, err := cr.readMembers()
	if err != nil {
		return nil, err
	}
	attrs, err := cr.readAttrs()
	if err != nil {
		return nil, err
	}

	for _, a := range attrs {
		if a.name == "BootstrapMethods" {
			if err := cr.readBootstraps(a.data); err != nil {
				return nil, err
			}
		}
	}
	c.bootstraps = cr.bsms

	if err := cr.decodeClassAttrs(c, attrs); err != nil {
		return nil, err
	}
	for _, f := range fields {
		field, err := cr.decodeField(f)
		if err != nil {
			return nil, err
		}
		c.Fields = append(c.Fields, field)
	}
	for _, m := range methods {
		method, err := cr.decodeMethod(c, m)
		if err != nil {
			return nil, fmt.Errorf("method %s%s: %w", m.name, m.desc, err)
		}
		c.Methods = append(c.Methods, method)
	}
	return c, nil
}

func (cr *classReader) readPool() error {
	r := &cr.r
	count := int(r.u2())
	p := newConstantPool()
	for i := 1; i < count; i++ {
		var e cpEntry
		e.tag = r.u1()
		switch e.tag {
		case tagUtf8:
			e.str = decodeModifiedUTF8(r.bytes(int(r.u2())))
		case tagInteger, tagFloat:
			e.num = uint64(r.u4())
		case tagLong, tagDouble:
			e.num = r.u8()
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			e.ref1 = r.u2()
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			e.ref1 = r.u2()
			e.ref2 = r.u2()
		case tagMethodHandle:
			e.kind = r.u1()
			e.ref1 = r.u2()
		default:
			if r.err != nil {
				return r.err
			}
			return fmt.Errorf("%w: unknown constant tag %d at index %d", ErrMalformedClass, e.tag, i)
		}
		p.entries = append(p.entries, e)
		if e.tag == tagLong || e.tag == tagDouble {
			p.entries = append(p.entries, cpEntry{})
			i++
		}
	}
	cr.pool = p
	return r.err
}

func (cr *classReader) readMembers() ([]rawMember, error) {
	r := &cr.r
	n := int(r.u2())
	members := make([]rawMember, 0, n)
	for i := 0; i < n; i++ {
		var m rawMember
		var err error
		m.access = r.u2()
		if m.name, err = cr.pool.utf8(r.u2()); err != nil {
			return nil, err
		}
		if m.desc, err = cr.pool.utf8(r.u2()); err != nil {
			return nil, err
		}
		if m.attrs, err = cr.readAttrs(); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, r.err
}

func (cr *classReader) readAttrs() ([]rawAttr, error) {
	return readAttrsFrom(&cr.r, cr.pool)
}

func readAttrsFrom(r *byteReader, pool *constantPool) ([]rawAttr, error) {
	n := int(r.u2())
	attrs := make([]rawAttr, 0, n)
	for i := 0; i < n; i++ {
		name, err := pool.utf8(r.u2())
		if err != nil {
			return nil, err
		}
		data := r.bytes(int(r.u4()))
		if r.err != nil {
			return nil, r.err
		}
		attrs = append(attrs, rawAttr{name: name, data: data})
	}
	return attrs, r.err
}

func (cr *classReader) readBootstraps(data []byte) error {
	r := &byteReader{data: data}
	n := int(r.u2())
	for i := 0; i < n; i++ {
		h, err := cr.pool.handle(r.u2())
		if err != nil {
			return err
		}
		argc := int(r.u2())
		args := make([]any, 0, argc)
		for j := 0; j < argc; j++ {
			v, err := cr.pool.constant(r.u2(), cr.bsms)
			if err != nil {
				return err
			}
			args = append(args, v)
		}
		cr.bsms = append(cr.bsms, bootstrapMethod{handle: h, args: args})
	}
	return r.err
}

func (cr *classReader) classList(data []byte) ([]string, error) {
	r := &byteReader{data: data}
	n := int(r.u2())
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name, err := cr.pool.className(r.u2())
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, r.err
}

func (cr *classReader) u2Utf8(data []byte) (string, error) {
	r := &byteReader{data: data}
	idx := r.u2()
	if r.err != nil {
		return "", r.err
	}
	return cr.pool.utf8(idx)
}

func (cr *classReader) decodeClassAttrs(c *Class, attrs []rawAttr) error {
	var err error
	for _, a := range attrs {
		switch a.name {
		case "BootstrapMethods":
			// rebuilt by the writer
		case "SourceFile":
			c.SourceFile, err = cr.u2Utf8(a.data)
		case "Signature":
			c.Signature, err = cr.u2Utf8(a.data)
		case "NestHost":
			r := &byteReader{data: a.data}
			c.NestHost, err = cr.pool.className(r.u2())
		case "NestMembers":
			c.NestMembers, err = cr.classList(a.data)
		case "PermittedSubclasses":
			c.PermittedSubclasses, err = cr.classList(a.data)
		case "EnclosingMethod":
			r := &byteReader{data: a.data}
			if c.OuterClass, err = cr.pool.className(r.u2()); err != nil {
				return err
			}
			if nt := r.u2(); nt != 0 {
				c.OuterMethod, c.OuterMethodDesc, err = cr.pool.nameAndType(nt)
			}
		case "InnerClasses":
			err = cr.decodeInnerClasses(c, a.data)
		case "Record":
			err = cr.decodeRecord(c, a.data)
		default:
			c.Attributes = append(c.Attributes, Attribute{Name: a.name, Data: a.data})
		}
		if err != nil {
			return fmt.Errorf("attribute %s: %w", a.name, err)
		}
	}
	return nil
}

func (cr *classReader) decodeInnerClasses(c *Class, data []byte) error {
	r := &byteReader{data: data}
	n := int(r.u2())
	for i := 0; i < n; i++ {
		var ic InnerClass
		var err error
		if ic.Name, err = cr.pool.className(r.u2()); err != nil {
			return err
		}
		if ic.Outer, err = cr.pool.optClassName(r.u2()); err != nil {
			return err
		}
		if ic.InnerName, err = cr.pool.optUtf8(r.u2()); err != nil {
			return err
		}
		ic.Access = r.u2()
		c.InnerClasses = append(c.InnerClasses, ic)
	}
	return r.err
}

func (cr *classReader) decodeRecord(c *Class, data []byte) error {
	r := &byteReader{data: data}
	c.Record = true
	n := int(r.u2())
	for i := 0; i < n; i++ {
		var rc RecordComponent
		var err error
		if rc.Name, err = cr.pool.utf8(r.u2()); err != nil {
			return err
		}
		if rc.Desc, err = cr.pool.utf8(r.u2()); err != nil {
			return err
		}
		attrs, err := readAttrsFrom(r, cr.pool)
		if err != nil {
			return err
		}
		for _, a := range attrs {
			if a.name == "Signature" {
				if rc.Signature, err = cr.u2Utf8(a.data); err != nil {
					return err
				}
				continue
			}
			rc.Attributes = append(rc.Attributes, Attribute{Name: a.name, Data: a.data})
		}
		c.RecordComponents = append(c.RecordComponents, rc)
	}
	return r.err
}

func (cr *classReader) decodeField(m rawMember) (*Field, error) {
	f := &Field{Access: m.access, Name: m.name, Desc: m.desc}
	var err error
	for _, a := range m.attrs {
		switch a.name {
		case "ConstantValue":
			r := &byteReader{data: a.data}
			f.Value, err = cr.pool.constant(r.u2(), cr.bsms)
		case "Signature":
			f.Signature, err = cr.u2Utf8(a.data)
		default:
			f.Attributes = append(f.Attributes, Attribute{Name: a.name, Data: a.data})
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", m.name, err)
		}
	}
	return f, nil
}

func (cr *classReader) decodeMethod(c *Class, m rawMember) (*Method, error) {
	method := &Method{Access: m.access, Name: m.name, Desc: m.desc}
	var err error
	for _, a := range m.attrs {
		switch a.name {
		case "Code":
			err = cr.decodeCode(c, method, a.data)
		case "Exceptions":
			method.Exceptions, err = cr.classList(a.data)
		case "Signature":
			method.Signature, err = cr.u2Utf8(a.data)
		default:
			method.Attributes = append(method.Attributes, Attribute{Name: a.name, Data: a.data})
		}
		if err != nil {
			return nil, err
		}
	}
	return method, nil
}

// codeDecoder turns bytecode into the label based instruction model.
type codeDecoder struct {
	cr     *classReader
	code   []byte
	labels map[int]*Label
	insns  map[int]Insn
	lines  map[int][]*LineNumber
	frames map[int]*Frame
}

func (d *codeDecoder) label(off int) (*Label, error) {
	if off < 0 || off > len(d.code) {
		return nil, fmt.Errorf("%w: code offset %d out of range", ErrMalformedClass, off)
	}
	if l, ok := d.labels[off]; ok {
		return l, nil
	}
	l := &Label{offset: off}
	d.labels[off] = l
	return l, nil
}

func (cr *classReader) decodeCode(c *Class, m *Method, data []byte) error {
	r := &byteReader{data: data}
	code := &Code{}
	code.MaxStack = int(r.u2())
	code.MaxLocals = int(r.u2())
	codeLen := int(r.u4())
	bytecode := r.bytes(codeLen)
	if r.err != nil {
		return r.err
	}
	d := &codeDecoder{
		cr:     cr,
		code:   bytecode,
		labels: make(map[int]*Label),
		insns:  make(map[int]Insn),
		lines:  make(map[int][]*LineNumber),
		frames: make(map[int]*Frame),
	}
	if err := d.decodeInsns(); err != nil {
		return err
	}

	n := int(r.u2())
	for i := 0; i < n; i++ {
		start, end, handler, typeIdx := int(r.u2()), int(r.u2()), int(r.u2()), r.u2()
		var tc TryCatchBlock
		var err error
		if tc.Start, err = d.label(start); err != nil {
			return err
		}
		if tc.End, err = d.label(end); err != nil {
			return err
		}
		if tc.Handler, err = d.label(handler); err != nil {
			return err
		}
		if tc.Type, err = cr.pool.optClassName(typeIdx); err != nil {
			return err
		}
		code.TryCatch = append(code.TryCatch, tc)
	}

	attrs, err := readAttrsFrom(r, cr.pool)
	if err != nil {
		return err
	}
	for _, a := range attrs {
		switch a.name {
		case "LineNumberTable":
			err = d.decodeLines(a.data)
		case "LocalVariableTable":
			code.LocalVars, err = d.decodeLocals(a.data)
		case "LocalVariableTypeTable":
			code.LocalVarTypes, err = d.decodeLocals(a.data)
		case "StackMapTable":
			err = d.decodeFrames(c, m, a.data)
		}
		// other code attributes carry raw offsets and are dropped
		if err != nil {
			return fmt.Errorf("attribute %s: %w", a.name, err)
		}
	}

	for off := 0; off <= codeLen; off++ {
		if l, ok := d.labels[off]; ok {
			code.Insns = append(code.Insns, l)
		}
		for _, ln := range d.lines[off] {
			code.Insns = append(code.Insns, ln)
		}
		if f, ok := d.frames[off]; ok {
			code.Insns = append(code.Insns, f)
		}
		if in, ok := d.insns[off]; ok {
			code.Insns = append(code.Insns, in)
		}
	}
	m.Code = code
	return nil
}

func (d *codeDecoder) decodeLines(data []byte) error {
	r := &byteReader{data: data}
	n := int(r.u2())
	for i := 0; i < n; i++ {
		pc, line := int(r.u2()), int(r.u2())
		l, err := d.label(pc)
		if err != nil {
			return err
		}
		d.lines[pc] = append(d.lines[pc], &LineNumber{Line: line, Start: l})
	}
	return r.err
}

func (d *codeDecoder) decodeLocals(data []byte) ([]LocalVar, error) {
	r := &byteReader{data: data}
	n := int(r.u2())
	vars := make([]LocalVar, 0, n)
	for i := 0; i < n; i++ {
		start, length := int(r.u2()), int(r.u2())
		var lv LocalVar
		var err error
		if lv.Name, err = d.cr.pool.utf8(r.u2()); err != nil {
			return nil, err
		}
		if lv.Desc, err = d.cr.pool.utf8(r.u2()); err != nil {
			return nil, err
		}
		lv.Index = int(r.u2())
		if lv.Start, err = d.label(start); err != nil {
			return nil, err
		}
		if lv.End, err = d.label(start + length); err != nil {
			return nil, err
		}
		vars = append(vars, lv)
	}
	return vars, r.err
}

func (d *codeDecoder) decodeInsns() error {
	r := &byteReader{data: d.code}
	pool := d.cr.pool
	for r.off < len(d.code) {
		pc := r.off
		op := Opcode(r.u1())
		var in Insn
		var err error
		switch {
		case op <= DCONST_1,
			op >= IALOAD && op <= SALOAD,
			op >= IASTORE && op <= LXOR,
			op >= I2L && op <= DCMPG,
			op >= IRETURN && op <= RETURN,
			op == ARRAYLENGTH, op == ATHROW, op == MONITORENTER, op == MONITOREXIT:
			in = Op(op)
		case op == BIPUSH:
			in = &IntInsn{Op: op, Operand: int(int8(r.u1()))}
		case op == SIPUSH:
			in = &IntInsn{Op: op, Operand: int(int16(r.u2()))}
		case op == LDC:
			in, err = d.ldc(uint16(r.u1()))
		case op == LDC_W, op == LDC2_W:
			in, err = d.ldc(r.u2())
		case op >= ILOAD && op <= ALOAD, op >= ISTORE && op <= ASTORE, op == RET:
			in = VarOp(op, int(r.u1()))
		case op >= iload0 && op <= aload3:
			in = VarOp(ILOAD+(op-iload0)/4, int(op-iload0)%4)
		case op >= istore0 && op <= astore3:
			in = VarOp(ISTORE+(op-istore0)/4, int(op-istore0)%4)
		case op == IINC:
			in = Iinc(int(r.u1()), int(int8(r.u1())))
		case op >= IFEQ && op <= JSR, op == IFNULL, op == IFNONNULL:
			in, err = d.jump(op, pc+int(int16(r.u2())))
		case op == GOTO_W:
			in, err = d.jump(GOTO, pc+int(int32(r.u4())))
		case op == JSR_W:
			in, err = d.jump(JSR, pc+int(int32(r.u4())))
		case op == TABLESWITCH:
			r.off += (4 - (pc+1)%4) % 4
			in, err = d.tableSwitch(r, pc)
		case op == LOOKUPSWITCH:
			r.off += (4 - (pc+1)%4) % 4
			in, err = d.lookupSwitch(r, pc)
		case op >= GETSTATIC && op <= PUTFIELD:
			owner, name, desc, _, e := pool.memberRef(r.u2())
			in, err = FieldOp(op, owner, name, desc), e
		case op >= INVOKEVIRTUAL && op <= INVOKESTATIC:
			owner, name, desc, itf, e := pool.memberRef(r.u2())
			in, err = Invoke(op, owner, name, desc, itf), e
		case op == INVOKEINTERFACE:
			owner, name, desc, _, e := pool.memberRef(r.u2())
			r.u2()
			in, err = Invoke(op, owner, name, desc, true), e
		case op == INVOKEDYNAMIC:
			in, err = d.indy(r.u2())
			r.u2()
		case op == NEW, op == ANEWARRAY, op == CHECKCAST, op == INSTANCEOF:
			name, e := pool.className(r.u2())
			in, err = TypeOp(op, name), e
		case op == NEWARRAY:
			in = NewArray(int(r.u1()))
		case op == WIDE:
			wop := Opcode(r.u1())
			if wop == IINC {
				in = Iinc(int(r.u2()), int(int16(r.u2())))
			} else {
				in = VarOp(wop, int(r.u2()))
			}
		case op == MULTIANEWARRAY:
			name, e := pool.className(r.u2())
			in, err = &MultiANewArrayInsn{Desc: name, Dims: int(r.u1())}, e
		default:
			return fmt.Errorf("%w: invalid opcode %d at %d", ErrMalformedClass, op, pc)
		}
		if err != nil {
			return err
		}
		if r.err != nil {
			return r.err
		}
		d.insns[pc] = in
	}
	return nil
}

func (d *codeDecoder) ldc(idx uint16) (Insn, error) {
	v, err := d.cr.pool.constant(idx, d.cr.bsms)
	if err != nil {
		return nil, err
	}
	return Ldc(v), nil
}

func (d *codeDecoder) jump(op Opcode, target int) (Insn, error) {
	l, err := d.label(target)
	if err != nil {
		return nil, err
	}
	return Jump(op, l), nil
}

func (d *codeDecoder) tableSwitch(r *byteReader, pc int) (Insn, error) {
	dflt := pc + int(int32(r.u4()))
	low, high := int32(r.u4()), int32(r.u4())
	if r.err != nil {
		return nil, r.err
	}
	if high < low || int64(high)-int64(low) > int64(len(d.code)) {
		return nil, fmt.Errorf("%w: tableswitch bounds %d..%d", ErrMalformedClass, low, high)
	}
	in := &TableSwitchInsn{Min: low, Max: high}
	var err error
	if in.Default, err = d.label(dflt); err != nil {
		return nil, err
	}
	for k := int64(low); k <= int64(high); k++ {
		l, err := d.label(pc + int(int32(r.u4())))
		if err != nil {
			return nil, err
		}
		in.Labels = append(in.Labels, l)
	}
	return in, r.err
}

func (d *codeDecoder) lookupSwitch(r *byteReader, pc int) (Insn, error) {
	dflt := pc + int(int32(r.u4()))
	n := int(int32(r.u4()))
	if r.err != nil {
		return nil, r.err
	}
	if n < 0 || n > len(d.code) {
		return nil, fmt.Errorf("%w: lookupswitch with %d pairs", ErrMalformedClass, n)
	}
	in := &LookupSwitchInsn{}
	var err error
	if in.Default, err = d.label(dflt); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		in.Keys = append(in.Keys, int32(r.u4()))
		l, err := d.label(pc + int(int32(r.u4())))
		if err != nil {
			return nil, err
		}
		in.Labels = append(in.Labels, l)
	}
	return in, r.err
}

func (d *codeDecoder) indy(idx uint16) (Insn, error) {
	e, err := d.cr.pool.entry(idx, tagInvokeDynamic)
	if err != nil {
		return nil, err
	}
	name, desc, err := d.cr.pool.nameAndType(e.ref2)
	if err != nil {
		return nil, err
	}
	if int(e.ref1) >= len(d.cr.bsms) {
		return nil, fmt.Errorf("%w: bootstrap method %d out of range", ErrMalformedClass, e.ref1)
	}
	bsm := d.cr.bsms[e.ref1]
	return &InvokeDynamicInsn{Name: name, Desc: desc, Bootstrap: bsm.handle, Args: bsm.args}, nil
}

func (d *codeDecoder) decodeFrames(c *Class, m *Method, data []byte) error {
	r := &byteReader{data: data}
	locals := InitialLocals(c.Name, m)
	n := int(r.u2())
	off := -1
	for i := 0; i < n; i++ {
		ft := int(r.u1())
		var delta int
		var stack []VType
		var err error
		switch {
		case ft < 64:
			delta = ft
		case ft < 128:
			delta = ft - 64
			var v VType
			if v, err = d.vtype(r); err != nil {
				return err
			}
			stack = []VType{v}
		case ft < 247:
			return fmt.Errorf("%w: reserved frame type %d", ErrMalformedClass, ft)
		case ft == 247:
			delta = int(r.u2())
			var v VType
			if v, err = d.vtype(r); err != nil {
				return err
			}
			stack = []VType{v}
		case ft < 251:
			delta = int(r.u2())
			k := 251 - ft
			if k > len(locals) {
				return fmt.Errorf("%w: chop frame removes %d of %d locals", ErrMalformedClass, k, len(locals))
			}
			locals = locals[:len(locals)-k]
		case ft == 251:
			delta = int(r.u2())
		case ft < 255:
			delta = int(r.u2())
			locals = append([]VType(nil), locals...)
			for k := 0; k < ft-251; k++ {
				v, err := d.vtype(r)
				if err != nil {
					return err
				}
				locals = append(locals, v)
			}
		default:
			delta = int(r.u2())
			nl := int(r.u2())
			locals = make([]VType, 0, nl)
			for k := 0; k < nl; k++ {
				v, err := d.vtype(r)
				if err != nil {
					return err
				}
				locals = append(locals, v)
			}
			ns := int(r.u2())
			for k := 0; k < ns; k++ {
				v, err := d.vtype(r)
				if err != nil {
					return err
				}
				stack = append(stack, v)
			}
		}
		if r.err != nil {
			return r.err
		}
		off += delta + 1
		if _, err := d.label(off); err != nil {
			return err
		}
		d.frames[off] = &Frame{Locals: append([]VType(nil), locals...), Stack: stack}
	}
	return r.err
}

func (d *codeDecoder) vtype(r *byteReader) (VType, error) {
	tag := VKind(r.u1())
	switch tag {
	case VObject:
		name, err := d.cr.pool.className(r.u2())
		return ObjectVType(name), err
	case VUninitialized:
		l, err := d.label(int(r.u2()))
		return VType{Kind: VUninitialized, New: l}, err
	default:
		if tag > VUninitialized {
			return VType{}, fmt.Errorf("%w: verification type %d", ErrMalformedClass, tag)
		}
		return VType{Kind: tag}, r.err
	}
}

// InitialLocals returns the implicit first frame of m in compressed form.
func InitialLocals(owner string, m *Method) []VType {
	var locals []VType
	if !m.IsStatic() {
		if m.Name == "<init>" && owner != "java/lang/Object" {
			locals = append(locals, UninitializedThis)
		} else {
			locals = append(locals, ObjectVType(owner))
		}
	}
	for _, t := range ArgumentTypes(m.Desc) {
		locals = append(locals, VTypeOf(t))
	}
	return locals
}

// VTypeOf maps a descriptor type to its verification type.
func VTypeOf(t Type) VType {
	switch t.Sort {
	case SortBoolean, SortByte, SortChar, SortShort, SortInt:
		return Integer
	case SortFloat:
		return Float
	case SortLong:
		return Long
	case SortDouble:
		return Double
	default:
		return ObjectVType(t.InternalName())
	}
}

// decodeModifiedUTF8 decodes the class file variant of UTF-8.
func decodeModifiedUTF8(b []byte) string {
	ascii := true
	for _, c := range b {
		if c >= 0x80 || c == 0 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}
	u := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			u = append(u, uint16(c))
			i++
		case c&0xe0 == 0xc0 && i+1 < len(b):
			u = append(u, uint16(c&0x1f)<<6|uint16(b[i+1]&0x3f))
			i += 2
		case c&0xf0 == 0xe0 && i+2 < len(b):
			u = append(u, uint16(c&0x0f)<<12|uint16(b[i+1]&0x3f)<<6|uint16(b[i+2]&0x3f))
			i += 3
		default:
			u = append(u, 0xfffd)
			i++
		}
	}
	return utf16ToString(u)
}

func utf16ToString(u []uint16) string {
	runes := make([]rune, 0, len(u))
	for i := 0; i < len(u); i++ {
		c := rune(u[i])
		if c >= 0xd800 && c < 0xdc00 && i+1 < len(u) && u[i+1] >= 0xdc00 && u[i+1] < 0xe000 {
			c = (c-0xd800)<<10 | (rune(u[i+1]) - 0xdc00) + 0x10000
			i++
		}
		runes = append(runes, c)
	}
	return string(runes)
}

// encodeModifiedUTF8 is the inverse of decodeModifiedUTF8.
func encodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r >= 0x10000 {
			r -= 0x10000
			out = appendUTF16Unit(out, 0xd800+(r>>10))
			out = appendUTF16Unit(out, 0xdc00+(r&0x3ff))
			continue
		}
		out = appendUTF16Unit(out, r)
	}
	return out
}

func appendUTF16Unit(out []byte, c rune) []byte {
	switch {
	case c != 0 && c < 0x80:
		return append(out, byte(c))
	case c < 0x800:
		return append(out, byte(0xc0|c>>6), byte(0x80|c&0x3f))
	default:
		return append(out, byte(0xe0|c>>12), byte(0x80|(c>>6)&0x3f), byte(0x80|c&0x3f))
	}
}
