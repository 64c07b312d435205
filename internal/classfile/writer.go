package classfile

import (
	"fmt"
	"math"
)

// WriteOptions controls how a class is serialized.
type WriteOptions struct {
	// ComputeFrames recomputes every stack map frame instead of re-encoding
	// the Frame pseudo instructions of each method.
	ComputeFrames bool
	// Hierarchy answers common super class queries while computing frames.
	// A nil hierarchy merges unrelated classes to java/lang/Object.
	Hierarchy Hierarchy
}

type classWriter struct {
	c        *Class
	opts     WriteOptions
	pool     *constantPool
	bsms     []bootstrapEntry
	bsmIndex map[string]uint16
}

type bootstrapEntry struct {
	handle uint16
	args   []uint16
}

// Write serializes c.
func Write(c *Class, opts WriteOptions) ([]byte, error) {
	w := &classWriter{c: c, opts: opts, bsmIndex: make(map[string]uint16)}
	if c.pool != nil {
		w.pool = c.pool.clone()
		for _, b := range c.bootstraps {
			w.seedBootstrap(b)
		}
	} else {
		w.pool = newConstantPool()
	}

	body := &byteWriter{}
	body.u2(c.Access)
	body.u2(w.pool.addClass(c.Name))
	if c.Super != "" {
		body.u2(w.pool.addClass(c.Super))
	} else {
		body.u2(0)
	}
	body.u2(uint16(len(c.Interfaces)))
	for _, i := range c.Interfaces {
		body.u2(w.pool.addClass(i))
	}

	body.u2(uint16(len(c.Fields)))
	for _, f := range c.Fields {
		if err := w.writeField(body, f); err != nil {
			return nil, err
		}
	}
	body.u2(uint16(len(c.Methods)))
	for _, m := range c.Methods {
		if err := w.writeMethod(body, m); err != nil {
			return nil, fmt.Errorf("method %s%s: %w", m.Name, m.Desc, err)
		}
	}
	if err := w.writeClassAttrs(body); err != nil {
		return nil, err
	}

	if w.pool.count() > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d entries", ErrTooManyConsts, w.pool.count())
	}
	out := &byteWriter{buf: make([]byte, 0, len(body.buf)+w.pool.count()*8)}
	out.u4(magic)
	out.u2(c.MinorVersion)
	out.u2(uint16(c.Version))
	w.writePool(out)
	out.bytes(body.buf)
	return out.buf, nil
}

func (w *classWriter) writePool(out *byteWriter) {
	out.u2(uint16(w.pool.count()))
	for i := 1; i < len(w.pool.entries); i++ {
		e := w.pool.entries[i]
		if e.tag == 0 {
			continue
		}
		out.u1(e.tag)
		switch e.tag {
		case tagUtf8:
			b := encodeModifiedUTF8(e.str)
			out.u2(uint16(len(b)))
			out.bytes(b)
		case tagInteger, tagFloat:
			out.u4(uint32(e.num))
		case tagLong, tagDouble:
			out.u8(e.num)
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			out.u2(e.ref1)
		case tagMethodHandle:
			out.u1(e.kind)
			out.u2(e.ref1)
		default:
			out.u2(e.ref1)
			out.u2(e.ref2)
		}
	}
}

// seedBootstrap appends a source bootstrap entry at its original index.
func (w *classWriter) seedBootstrap(b bootstrapMethod) {
	e, key := w.bootstrapEntry(b.handle, b.args)
	idx := uint16(len(w.bsms))
	w.bsms = append(w.bsms, e)
	if _, ok := w.bsmIndex[key]; !ok {
		w.bsmIndex[key] = idx
	}
}

func (w *classWriter) bootstrapEntry(h Handle, args []any) (bootstrapEntry, string) {
	e := bootstrapEntry{handle: w.pool.addHandle(h)}
	key := fmt.Sprint(e.handle)
	for _, a := range args {
		idx := w.constant(a)
		e.args = append(e.args, idx)
		key += fmt.Sprintf(",%d", idx)
	}
	return e, key
}

func (w *classWriter) bootstrap(h Handle, args []any) uint16 {
	e, key := w.bootstrapEntry(h, args)
	if idx, ok := w.bsmIndex[key]; ok {
		return idx
	}
	idx := uint16(len(w.bsms))
	w.bsms = append(w.bsms, e)
	w.bsmIndex[key] = idx
	return idx
}

// constant adds a loadable constant and returns its pool index.
func (w *classWriter) constant(v any) uint16 {
	switch c := v.(type) {
	case int32:
		return w.pool.addNum(tagInteger, uint64(uint32(c)))
	case int:
		return w.pool.addNum(tagInteger, uint64(uint32(int32(c))))
	case float32:
		return w.pool.addNum(tagFloat, uint64(math.Float32bits(c)))
	case int64:
		return w.pool.addNum(tagLong, uint64(c))
	case float64:
		return w.pool.addNum(tagDouble, math.Float64bits(c))
	case string:
		return w.pool.addString(c)
	case Type:
		if c.Sort == SortMethod {
			return w.pool.addMethodType(c.Descriptor())
		}
		return w.pool.addClass(c.InternalName())
	case Handle:
		return w.pool.addHandle(c)
	case *ConstantDynamic:
		bsm := w.bootstrap(c.Bootstrap, c.Args)
		return w.pool.addIndy(tagDynamic, bsm, c.Name, c.Desc)
	default:
		panic(fmt.Sprintf("classfile: unsupported constant %T", v))
	}
}

func isWideConstant(v any) bool {
	switch c := v.(type) {
	case int64, float64:
		return true
	case *ConstantDynamic:
		return c.Desc == "J" || c.Desc == "D"
	}
	return false
}

func (w *classWriter) attr(out *byteWriter, name string, data []byte) {
	out.u2(w.pool.addUtf8(name))
	out.u4(uint32(len(data)))
	out.bytes(data)
}

func (w *classWriter) u2Attr(out *byteWriter, name string, v uint16) {
	b := &byteWriter{}
	b.u2(v)
	w.attr(out, name, b.buf)
}

func (w *classWriter) classListAttr(out *byteWriter, name string, names []string) {
	b := &byteWriter{}
	b.u2(uint16(len(names)))
	for _, n := range names {
		b.u2(w.pool.addClass(n))
	}
	w.attr(out, name, b.buf)
}

func (w *classWriter) rawAttrs(out *byteWriter, attrs []Attribute) {
	for _, a := range attrs {
		w.attr(out, a.Name, a.Data)
	}
}

func (w *classWriter) writeField(out *byteWriter, f *Field) error {
	out.u2(f.Access)
	out.u2(w.pool.addUtf8(f.Name))
	out.u2(w.pool.addUtf8(f.Desc))
	n := len(f.Attributes)
	if f.Value != nil {
		n++
	}
	if f.Signature != "" {
		n++
	}
	out.u2(uint16(n))
	if f.Value != nil {
		w.u2Attr(out, "ConstantValue", w.constant(f.Value))
	}
	if f.Signature != "" {
		w.u2Attr(out, "Signature", w.pool.addUtf8(f.Signature))
	}
	w.rawAttrs(out, f.Attributes)
	return nil
}

func (w *classWriter) writeMethod(out *byteWriter, m *Method) error {
	out.u2(m.Access)
	out.u2(w.pool.addUtf8(m.Name))
	out.u2(w.pool.addUtf8(m.Desc))
	n := len(m.Attributes)
	if m.Code != nil {
		n++
	}
	if len(m.Exceptions) > 0 {
		n++
	}
	if m.Signature != "" {
		n++
	}
	out.u2(uint16(n))
	if m.Code != nil {
		data, err := w.encodeCode(m)
		if err != nil {
			return err
		}
		w.attr(out, "Code", data)
	}
	if len(m.Exceptions) > 0 {
		w.classListAttr(out, "Exceptions", m.Exceptions)
	}
	if m.Signature != "" {
		w.u2Attr(out, "Signature", w.pool.addUtf8(m.Signature))
	}
	w.rawAttrs(out, m.Attributes)
	return nil
}

func (w *classWriter) writeClassAttrs(out *byteWriter) error {
	c := w.c
	attrs := &byteWriter{}
	n := 0
	if c.SourceFile != "" {
		w.u2Attr(attrs, "SourceFile", w.pool.addUtf8(c.SourceFile))
		n++
	}
	if c.Signature != "" {
		w.u2Attr(attrs, "Signature", w.pool.addUtf8(c.Signature))
		n++
	}
	if c.OuterClass != "" {
		b := &byteWriter{}
		b.u2(w.pool.addClass(c.OuterClass))
		if c.OuterMethod != "" {
			b.u2(w.pool.addNameAndType(c.OuterMethod, c.OuterMethodDesc))
		} else {
			b.u2(0)
		}
		w.attr(attrs, "EnclosingMethod", b.buf)
		n++
	}
	if c.NestHost != "" {
		w.u2Attr(attrs, "NestHost", w.pool.addClass(c.NestHost))
		n++
	}
	if len(c.NestMembers) > 0 {
		w.classListAttr(attrs, "NestMembers", c.NestMembers)
		n++
	}
	if len(c.PermittedSubclasses) > 0 {
		w.classListAttr(attrs, "PermittedSubclasses", c.PermittedSubclasses)
		n++
	}
	if len(c.InnerClasses) > 0 {
		b := &byteWriter{}
		b.u2(uint16(len(c.InnerClasses)))
		for _, ic := range c.InnerClasses {
			b.u2(w.pool.addClass(ic.Name))
			if ic.Outer != "" {
				b.u2(w.pool.addClass(ic.Outer))
			} else {
				b.u2(0)
			}
			if ic.InnerName != "" {
				b.u2(w.pool.addUtf8(ic.InnerName))
			} else {
				b.u2(0)
			}
			b.u2(ic.Access)
		}
		w.attr(attrs, "InnerClasses", b.buf)
		n++
	}
	if c.Record {
		b := &byteWriter{}
		b.u2(uint16(len(c.RecordComponents)))
		for _, rc := range c.RecordComponents {
			b.u2(w.pool.addUtf8(rc.Name))
			b.u2(w.pool.addUtf8(rc.Desc))
			k := len(rc.Attributes)
			if rc.Signature != "" {
				k++
			}
			b.u2(uint16(k))
			if rc.Signature != "" {
				w.u2Attr(b, "Signature", w.pool.addUtf8(rc.Signature))
			}
			w.rawAttrs(b, rc.Attributes)
		}
		w.attr(attrs, "Record", b.buf)
		n++
	}
	w.rawAttrs(attrs, c.Attributes)
	n += len(c.Attributes)

	// last: code and constants above may still add bootstrap methods
	if len(w.bsms) > 0 {
		b := &byteWriter{}
		b.u2(uint16(len(w.bsms)))
		for _, e := range w.bsms {
			b.u2(e.handle)
			b.u2(uint16(len(e.args)))
			for _, a := range e.args {
				b.u2(a)
			}
		}
		w.attr(attrs, "BootstrapMethods", b.buf)
		n++
	}

	out.u2(uint16(n))
	out.bytes(attrs.buf)
	return nil
}

// codeLayout assigns offsets to every instruction of a method body.
type codeLayout struct {
	w       *classWriter
	insns   []Insn
	offsets []int
	ldcIdx  map[*LdcInsn]uint16
	wide    map[*JumpInsn]bool
	size    int
}

func (l *codeLayout) insnSize(in Insn, off int) int {
	switch i := in.(type) {
	case *SimpleInsn:
		return 1
	case *IntInsn:
		if i.Op == SIPUSH {
			return 3
		}
		return 2
	case *VarInsn:
		switch {
		case i.Var <= 3 && i.Op != RET:
			return 1
		case i.Var <= 255:
			return 2
		default:
			return 4
		}
	case *TypeInsn, *FieldInsn:
		return 3
	case *MethodInsn:
		if i.Op == INVOKEINTERFACE {
			return 5
		}
		return 3
	case *InvokeDynamicInsn:
		return 5
	case *JumpInsn:
		if l.wide[i] {
			return 5
		}
		return 3
	case *LdcInsn:
		idx, ok := l.ldcIdx[i]
		if !ok {
			idx = l.w.constant(i.Value)
			l.ldcIdx[i] = idx
		}
		if isWideConstant(i.Value) || idx > 255 {
			return 3
		}
		return 2
	case *IincInsn:
		if i.Var <= 255 && i.Incr >= math.MinInt8 && i.Incr <= math.MaxInt8 {
			return 3
		}
		return 6
	case *TableSwitchInsn:
		return 1 + pad(off) + 12 + 4*len(i.Labels)
	case *LookupSwitchInsn:
		return 1 + pad(off) + 8 + 8*len(i.Keys)
	case *MultiANewArrayInsn:
		return 4
	default:
		return 0
	}
}

func pad(off int) int { return (4 - (off+1)%4) % 4 }

func (l *codeLayout) layout() error {
	for {
		off := 0
		for idx, in := range l.insns {
			l.offsets[idx] = off
			if lbl, ok := in.(*Label); ok {
				lbl.offset = off
			}
			off += l.insnSize(in, off)
		}
		l.size = off
		if off > math.MaxUint16 {
			return fmt.Errorf("%w: %d bytes", ErrCodeTooLarge, off)
		}
		grew := false
		for idx, in := range l.insns {
			j, ok := in.(*JumpInsn)
			if !ok || l.wide[j] {
				continue
			}
			delta := j.Target.offset - l.offsets[idx]
			if delta < math.MinInt16 || delta > math.MaxInt16 {
				if j.Op != GOTO && j.Op != JSR {
					return fmt.Errorf("%w: %s by %d", ErrBranchOverflow, j.Op, delta)
				}
				l.wide[j] = true
				grew = true
			}
		}
		if !grew {
			return nil
		}
	}
}

func (w *classWriter) encodeCode(m *Method) ([]byte, error) {
	code := m.Code
	insns := code.Insns
	var frames map[*Label]*Frame
	if w.opts.ComputeFrames && w.c.Version >= V1_6 {
		var err error
		insns, frames, err = computeFrames(w.c.Name, m, w.opts.Hierarchy)
		if err != nil {
			return nil, err
		}
	}
	maxStack, maxLocals, err := computeMaxs(m, insns)
	if err != nil {
		return nil, err
	}

	l := &codeLayout{
		w:       w,
		insns:   insns,
		offsets: make([]int, len(insns)),
		ldcIdx:  make(map[*LdcInsn]uint16),
		wide:    make(map[*JumpInsn]bool),
	}
	resetLabels(code, insns)
	if err := l.layout(); err != nil {
		return nil, err
	}
	if err := checkTargets(insns); err != nil {
		return nil, err
	}

	out := &byteWriter{}
	out.u2(uint16(maxStack))
	out.u2(uint16(maxLocals))
	out.u4(uint32(l.size))
	start := out.len()
	for idx, in := range insns {
		w.emit(out, l, in, l.offsets[idx])
	}
	if out.len()-start != l.size {
		return nil, fmt.Errorf("%w: layout mismatch", ErrMalformedClass)
	}

	var handlers []TryCatchBlock
	for _, tc := range code.TryCatch {
		if tc.Start.offset >= 0 && tc.End.offset > tc.Start.offset && tc.Handler.offset >= 0 {
			handlers = append(handlers, tc)
		}
	}
	out.u2(uint16(len(handlers)))
	for _, tc := range handlers {
		out.u2(uint16(tc.Start.offset))
		out.u2(uint16(tc.End.offset))
		out.u2(uint16(tc.Handler.offset))
		if tc.Type != "" {
			out.u2(w.pool.addClass(tc.Type))
		} else {
			out.u2(0)
		}
	}

	attrs := &byteWriter{}
	n := 0
	if lines := w.lineTable(insns); lines != nil {
		w.attr(attrs, "LineNumberTable", lines)
		n++
	}
	if lv := w.localTable(code.LocalVars); lv != nil {
		w.attr(attrs, "LocalVariableTable", lv)
		n++
	}
	if lv := w.localTable(code.LocalVarTypes); lv != nil {
		w.attr(attrs, "LocalVariableTypeTable", lv)
		n++
	}
	if w.c.Version >= V1_6 {
		if smt := w.frameTable(m, insns, l, frames); smt != nil {
			w.attr(attrs, "StackMapTable", smt)
			n++
		}
	}
	out.u2(uint16(n))
	out.bytes(attrs.buf)
	return out.buf, nil
}

func (w *classWriter) emit(out *byteWriter, l *codeLayout, in Insn, off int) {
	switch i := in.(type) {
	case *SimpleInsn:
		out.u1(uint8(i.Op))
	case *IntInsn:
		out.u1(uint8(i.Op))
		if i.Op == SIPUSH {
			out.u2(uint16(int16(i.Operand)))
		} else {
			out.u1(uint8(int8(i.Operand)))
		}
	case *VarInsn:
		switch {
		case i.Var <= 3 && i.Op != RET:
			if i.Op < ISTORE {
				out.u1(uint8(iload0 + (i.Op-ILOAD)*4 + Opcode(i.Var)))
			} else {
				out.u1(uint8(istore0 + (i.Op-ISTORE)*4 + Opcode(i.Var)))
			}
		case i.Var <= 255:
			out.u1(uint8(i.Op))
			out.u1(uint8(i.Var))
		default:
			out.u1(uint8(WIDE))
			out.u1(uint8(i.Op))
			out.u2(uint16(i.Var))
		}
	case *TypeInsn:
		out.u1(uint8(i.Op))
		out.u2(w.pool.addClass(i.Type))
	case *FieldInsn:
		out.u1(uint8(i.Op))
		out.u2(w.pool.addField(i.Owner, i.Name, i.Desc))
	case *MethodInsn:
		out.u1(uint8(i.Op))
		out.u2(w.pool.addMethod(i.Owner, i.Name, i.Desc, i.Interface))
		if i.Op == INVOKEINTERFACE {
			out.u1(uint8(ArgumentsSize(i.Desc) + 1))
			out.u1(0)
		}
	case *InvokeDynamicInsn:
		bsm := w.bootstrap(i.Bootstrap, i.Args)
		out.u1(uint8(INVOKEDYNAMIC))
		out.u2(w.pool.addIndy(tagInvokeDynamic, bsm, i.Name, i.Desc))
		out.u2(0)
	case *JumpInsn:
		delta := i.Target.offset - off
		if l.wide[i] {
			if i.Op == GOTO {
				out.u1(uint8(GOTO_W))
			} else {
				out.u1(uint8(JSR_W))
			}
			out.u4(uint32(int32(delta)))
		} else {
			out.u1(uint8(i.Op))
			out.u2(uint16(int16(delta)))
		}
	case *LdcInsn:
		idx := l.ldcIdx[i]
		switch {
		case isWideConstant(i.Value):
			out.u1(uint8(LDC2_W))
			out.u2(idx)
		case idx > 255:
			out.u1(uint8(LDC_W))
			out.u2(idx)
		default:
			out.u1(uint8(LDC))
			out.u1(uint8(idx))
		}
	case *IincInsn:
		if i.Var <= 255 && i.Incr >= math.MinInt8 && i.Incr <= math.MaxInt8 {
			out.u1(uint8(IINC))
			out.u1(uint8(i.Var))
			out.u1(uint8(int8(i.Incr)))
		} else {
			out.u1(uint8(WIDE))
			out.u1(uint8(IINC))
			out.u2(uint16(i.Var))
			out.u2(uint16(int16(i.Incr)))
		}
	case *TableSwitchInsn:
		out.u1(uint8(TABLESWITCH))
		for k := 0; k < pad(off); k++ {
			out.u1(0)
		}
		out.u4(uint32(int32(i.Default.offset - off)))
		out.u4(uint32(i.Min))
		out.u4(uint32(i.Max))
		for _, lbl := range i.Labels {
			out.u4(uint32(int32(lbl.offset - off)))
		}
	case *LookupSwitchInsn:
		out.u1(uint8(LOOKUPSWITCH))
		for k := 0; k < pad(off); k++ {
			out.u1(0)
		}
		out.u4(uint32(int32(i.Default.offset - off)))
		out.u4(uint32(len(i.Keys)))
		for k, key := range i.Keys {
			out.u4(uint32(key))
			out.u4(uint32(int32(i.Labels[k].offset - off)))
		}
	case *MultiANewArrayInsn:
		out.u1(uint8(MULTIANEWARRAY))
		out.u2(w.pool.addClass(i.Desc))
		out.u1(uint8(i.Dims))
	}
}

func (w *classWriter) lineTable(insns []Insn) []byte {
	var lines []*LineNumber
	for _, in := range insns {
		if ln, ok := in.(*LineNumber); ok && ln.Start.offset >= 0 {
			lines = append(lines, ln)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	b := &byteWriter{}
	b.u2(uint16(len(lines)))
	for _, ln := range lines {
		b.u2(uint16(ln.Start.offset))
		b.u2(uint16(ln.Line))
	}
	return b.buf
}

func (w *classWriter) localTable(vars []LocalVar) []byte {
	var kept []LocalVar
	for _, lv := range vars {
		if lv.Start.offset >= 0 && lv.End.offset >= lv.Start.offset {
			kept = append(kept, lv)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	b := &byteWriter{}
	b.u2(uint16(len(kept)))
	for _, lv := range kept {
		b.u2(uint16(lv.Start.offset))
		b.u2(uint16(lv.End.offset - lv.Start.offset))
		b.u2(w.pool.addUtf8(lv.Name))
		b.u2(w.pool.addUtf8(lv.Desc))
		b.u2(uint16(lv.Index))
	}
	return b.buf
}

// resetLabels marks every referenced label unplaced so that labels missing
// from the instruction list are detected instead of keeping stale offsets.
func resetLabels(code *Code, insns []Insn) {
	for _, in := range insns {
		switch i := in.(type) {
		case *JumpInsn:
			i.Target.offset = -1
		case *TableSwitchInsn:
			i.Default.offset = -1
			for _, l := range i.Labels {
				l.offset = -1
			}
		case *LookupSwitchInsn:
			i.Default.offset = -1
			for _, l := range i.Labels {
				l.offset = -1
			}
		case *LineNumber:
			i.Start.offset = -1
		case *Frame:
			resetVTypes(i.Locals)
			resetVTypes(i.Stack)
		}
	}
	for _, tc := range code.TryCatch {
		tc.Start.offset, tc.End.offset, tc.Handler.offset = -1, -1, -1
	}
	for _, lv := range code.LocalVars {
		lv.Start.offset, lv.End.offset = -1, -1
	}
	for _, lv := range code.LocalVarTypes {
		lv.Start.offset, lv.End.offset = -1, -1
	}
}

func resetVTypes(vs []VType) {
	for _, v := range vs {
		if v.New != nil {
			v.New.offset = -1
		}
	}
}

func checkTargets(insns []Insn) error {
	check := func(l *Label) error {
		if l.offset < 0 {
			return fmt.Errorf("%w: branch to a label outside the method body", ErrMalformedClass)
		}
		return nil
	}
	for _, in := range insns {
		switch i := in.(type) {
		case *JumpInsn:
			if err := check(i.Target); err != nil {
				return err
			}
		case *TableSwitchInsn:
			for _, l := range append([]*Label{i.Default}, i.Labels...) {
				if err := check(l); err != nil {
					return err
				}
			}
		case *LookupSwitchInsn:
			for _, l := range append([]*Label{i.Default}, i.Labels...) {
				if err := check(l); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type placedFrame struct {
	off   int
	frame *Frame
}

// frameTable encodes either the computed frames (keyed by label) or the
// Frame pseudo instructions found in insns.
func (w *classWriter) frameTable(m *Method, insns []Insn, l *codeLayout, computed map[*Label]*Frame) []byte {
	var placed []placedFrame
	add := func(off int, f *Frame) {
		if off >= l.size {
			return
		}
		if n := len(placed); n > 0 && placed[n-1].off == off {
			placed[n-1].frame = f
			return
		}
		placed = append(placed, placedFrame{off, f})
	}
	for idx, in := range insns {
		switch i := in.(type) {
		case *Label:
			if computed != nil {
				if f, ok := computed[i]; ok {
					add(l.offsets[idx], f)
				}
			}
		case *Frame:
			if computed == nil {
				add(l.offsets[idx], i)
			}
		}
	}
	if len(placed) == 0 {
		return nil
	}

	b := &byteWriter{}
	b.u2(uint16(len(placed)))
	prev := InitialLocals(w.c.Name, m)
	prevOff := -1
	for _, p := range placed {
		delta := p.off - prevOff - 1
		w.encodeFrame(b, delta, prev, p.frame)
		prev = p.frame.Locals
		prevOff = p.off
	}
	return b.buf
}

func (w *classWriter) encodeFrame(b *byteWriter, delta int, prev []VType, f *Frame) {
	locals, stack := f.Locals, f.Stack
	sameLocals := vtypesEqual(prev, locals)
	switch {
	case sameLocals && len(stack) == 0:
		if delta < 64 {
			b.u1(uint8(delta))
		} else {
			b.u1(251)
			b.u2(uint16(delta))
		}
		return
	case sameLocals && len(stack) == 1:
		if delta < 64 {
			b.u1(uint8(64 + delta))
		} else {
			b.u1(247)
			b.u2(uint16(delta))
		}
		w.vtype(b, stack[0])
		return
	case len(stack) == 0 && len(locals) > len(prev) && len(locals)-len(prev) <= 3 &&
		vtypesEqual(prev, locals[:len(prev)]):
		k := len(locals) - len(prev)
		b.u1(uint8(251 + k))
		b.u2(uint16(delta))
		for _, v := range locals[len(prev):] {
			w.vtype(b, v)
		}
		return
	case len(stack) == 0 && len(locals) < len(prev) && len(prev)-len(locals) <= 3 &&
		vtypesEqual(prev[:len(locals)], locals):
		b.u1(uint8(251 - (len(prev) - len(locals))))
		b.u2(uint16(delta))
		return
	}
	b.u1(255)
	b.u2(uint16(delta))
	b.u2(uint16(len(locals)))
	for _, v := range locals {
		w.vtype(b, v)
	}
	b.u2(uint16(len(stack)))
	for _, v := range stack {
		w.vtype(b, v)
	}
}

func (w *classWriter) vtype(b *byteWriter, v VType) {
	b.u1(uint8(v.Kind))
	switch v.Kind {
	case VObject:
		b.u2(w.pool.addClass(v.Class))
	case VUninitialized:
		b.u2(uint16(v.New.offset))
	}
}

func vtypesEqual(a, b []VType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
