package classfile

import (
	"fmt"
	"strings"
)

const objectClass = "java/lang/Object"

// Hierarchy answers class hierarchy questions during frame computation.
// Implementations must be safe for concurrent use.
type Hierarchy interface {
	// SuperClass returns the direct super class of name ("" for java/lang/Object),
	// whether name is an interface, and false when the class is unknown.
	SuperClass(name string) (super string, isInterface bool, ok bool)
}

// state is the abstract machine state before an instruction. Locals hold one
// entry per slot (long/double followed by top); the stack holds one entry per value.
type state struct {
	locals []VType
	stack  []VType
}

func (s *state) clone() *state {
	return &state{
		locals: append([]VType(nil), s.locals...),
		stack:  append([]VType(nil), s.stack...),
	}
}

// Analysis is the result of Analyze: the state before every reachable instruction.
type Analysis struct {
	Insns  []Insn
	states []*state
}

// Reachable reports whether instruction i can execute.
func (a *Analysis) Reachable(i int) bool { return a.states[i] != nil }

// Stack returns the operand stack before instruction i, bottom first.
func (a *Analysis) Stack(i int) []VType {
	if a.states[i] == nil {
		return nil
	}
	return a.states[i].stack
}

// Locals returns the slot expanded locals before instruction i.
func (a *Analysis) Locals(i int) []VType {
	if a.states[i] == nil {
		return nil
	}
	return a.states[i].locals
}

type analyzer struct {
	owner  string
	m      *Method
	insns  []Insn
	labels map[*Label]int
	h      Hierarchy
	states []*state
	// labels placed before each NEW, by instruction index
	newLabels map[int]*Label
}

// Analyze runs a type inference data flow over the body of m, which must be a
// method of class owner. It fails when the code does not verify.
func Analyze(owner string, m *Method, h Hierarchy) (*Analysis, error) {
	if m.Code == nil {
		return &Analysis{}, nil
	}
	insns := withNewLabels(m.Code.Insns)
	if len(insns) == 0 {
		return &Analysis{Insns: insns}, nil
	}
	a := &analyzer{owner: owner, m: m, insns: insns, h: h}
	if err := a.run(); err != nil {
		return nil, err
	}
	return &Analysis{Insns: insns, states: a.states}, nil
}

// withNewLabels makes sure every NEW instruction directly follows a label so
// uninitialized values can refer to it.
func withNewLabels(insns []Insn) []Insn {
	out := make([]Insn, 0, len(insns))
	for i, in := range insns {
		if t, ok := in.(*TypeInsn); ok && t.Op == NEW {
			if i == 0 || !isLabel(insns[i-1]) {
				out = append(out, NewLabel())
			}
		}
		out = append(out, in)
	}
	return out
}

func isLabel(in Insn) bool {
	_, ok := in.(*Label)
	return ok
}

func (a *analyzer) run() error {
	a.labels = labelIndex(a.insns)
	a.states = make([]*state, len(a.insns))
	a.newLabels = make(map[int]*Label)
	for i, in := range a.insns {
		if t, ok := in.(*TypeInsn); ok && t.Op == NEW {
			a.newLabels[i] = a.insns[i-1].(*Label)
		}
	}

	init := &state{}
	for _, v := range InitialLocals(a.owner, a.m) {
		init.locals = append(init.locals, v)
		if v.Wide() {
			init.locals = append(init.locals, Top)
		}
	}
	maxLocals := len(init.locals)
	for _, in := range a.insns {
		switch i := in.(type) {
		case *VarInsn:
			if i.Var+2 > maxLocals {
				maxLocals = i.Var + 2
			}
		case *IincInsn:
			if i.Var+1 > maxLocals {
				maxLocals = i.Var + 1
			}
		}
	}
	for len(init.locals) < maxLocals {
		init.locals = append(init.locals, Top)
	}

	type handler struct {
		start, end, target int
		catch              VType
	}
	var handlers []handler
	for _, tc := range a.m.Code.TryCatch {
		s, ok1 := a.labels[tc.Start]
		e, ok2 := a.labels[tc.End]
		t, ok3 := a.labels[tc.Handler]
		if !ok1 || !ok2 || !ok3 {
			return fmt.Errorf("%w: try/catch label outside the method body", ErrAnalysis)
		}
		catch := ObjectVType("java/lang/Throwable")
		if tc.Type != "" {
			catch = ObjectVType(tc.Type)
		}
		handlers = append(handlers, handler{s, e, t, catch})
	}

	work := []int{0}
	a.states[0] = init
	inWork := map[int]bool{0: true}
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		inWork[i] = false
		in := a.states[i]
		out, err := a.execute(i, in.clone())
		if err != nil {
			return fmt.Errorf("%w at %s", err, Format(a.insns[i]))
		}
		push := func(j int, s *state) error {
			changed, err := a.merge(j, s)
			if err != nil {
				return err
			}
			if changed && !inWork[j] {
				inWork[j] = true
				work = append(work, j)
			}
			return nil
		}
		for _, hd := range handlers {
			if i < hd.start || i >= hd.end {
				continue
			}
			if _, ok := a.insns[i].(*Label); ok {
				continue
			}
			for _, locals := range [][]VType{in.locals, out.locals} {
				hs := &state{locals: append([]VType(nil), locals...), stack: []VType{hd.catch}}
				if err := push(hd.target, hs); err != nil {
					return err
				}
			}
		}
		next, err := successors(a.insns, a.labels, i)
		if err != nil {
			return err
		}
		for _, j := range next {
			if j >= len(a.insns) {
				continue
			}
			if err := push(j, out.clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *analyzer) merge(j int, s *state) (bool, error) {
	cur := a.states[j]
	if cur == nil {
		a.states[j] = s
		return true, nil
	}
	if len(cur.stack) != len(s.stack) {
		return false, fmt.Errorf("%w: inconsistent stack height %d != %d", ErrAnalysis, len(cur.stack), len(s.stack))
	}
	changed := false
	for k := range cur.stack {
		v, ok := a.mergeValue(cur.stack[k], s.stack[k])
		if !ok {
			return false, fmt.Errorf("%w: incompatible stack values %s and %s", ErrAnalysis, cur.stack[k], s.stack[k])
		}
		if v != cur.stack[k] {
			cur.stack[k] = v
			changed = true
		}
	}
	for k := range cur.locals {
		var other VType
		if k < len(s.locals) {
			other = s.locals[k]
		}
		v, ok := a.mergeValue(cur.locals[k], other)
		if !ok {
			v = Top
		}
		if v != cur.locals[k] {
			cur.locals[k] = v
			changed = true
		}
	}
	return changed, nil
}

func (a *analyzer) mergeValue(x, y VType) (VType, bool) {
	if x == y {
		return x, true
	}
	if x.Kind == VTop || y.Kind == VTop {
		return Top, false
	}
	xRef := x.Kind == VObject || x.Kind == VNull
	yRef := y.Kind == VObject || y.Kind == VNull
	if !xRef || !yRef {
		return Top, false
	}
	if x.Kind == VNull {
		return y, true
	}
	if y.Kind == VNull {
		return x, true
	}
	return ObjectVType(a.commonSuper(x.Class, y.Class)), true
}

func (a *analyzer) commonSuper(x, y string) string {
	if strings.HasPrefix(x, "[") || strings.HasPrefix(y, "[") || a.h == nil {
		return objectClass
	}
	seen := map[string]bool{}
	for c := x; c != ""; {
		seen[c] = true
		super, itf, ok := a.h.SuperClass(c)
		if !ok || itf {
			break
		}
		c = super
	}
	for c := y; c != ""; {
		if seen[c] {
			return c
		}
		super, itf, ok := a.h.SuperClass(c)
		if !ok || itf {
			break
		}
		c = super
	}
	return objectClass
}

func (a *analyzer) execute(i int, s *state) (*state, error) {
	pop := func() (VType, error) {
		if len(s.stack) == 0 {
			return VType{}, fmt.Errorf("%w: stack underflow", ErrAnalysis)
		}
		v := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		return v, nil
	}
	popN := func(n int) error {
		for k := 0; k < n; k++ {
			if _, err := pop(); err != nil {
				return err
			}
		}
		return nil
	}
	push := func(vs ...VType) { s.stack = append(s.stack, vs...) }
	// popSlots pops values covering exactly n slots.
	popSlots := func(n int) ([]VType, error) {
		var vs []VType
		for n > 0 {
			v, err := pop()
			if err != nil {
				return nil, err
			}
			n--
			if v.Wide() {
				n--
			}
			vs = append([]VType{v}, vs...)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: splits a long or double value", ErrAnalysis)
		}
		return vs, nil
	}

	switch in := a.insns[i].(type) {
	case *Label, *LineNumber, *Frame:
	case *SimpleInsn:
		return a.simple(in.Op, s, pop, popN, push, popSlots)
	case *IntInsn:
		if in.Op == NEWARRAY {
			if err := popN(1); err != nil {
				return nil, err
			}
			push(ObjectVType("[" + primitiveArrayDesc(in.Operand)))
		} else {
			push(Integer)
		}
	case *VarInsn:
		switch in.Op {
		case ILOAD:
			push(Integer)
		case LLOAD:
			push(Long)
		case FLOAD:
			push(Float)
		case DLOAD:
			push(Double)
		case ALOAD:
			v := s.locals[in.Var]
			if v.Kind != VObject && v.Kind != VNull && v.Kind != VUninitialized && v.Kind != VUninitializedThis {
				return nil, fmt.Errorf("%w: aload of %s from local %d", ErrAnalysis, v, in.Var)
			}
			push(v)
		case ISTORE, LSTORE, FSTORE, DSTORE, ASTORE:
			v, err := pop()
			if err != nil {
				return nil, err
			}
			a.store(s, in.Var, v)
		default:
			return nil, fmt.Errorf("%w: ret is not supported", ErrAnalysis)
		}
	case *TypeInsn:
		switch in.Op {
		case NEW:
			push(VType{Kind: VUninitialized, New: a.newLabels[i]})
		case ANEWARRAY:
			if err := popN(1); err != nil {
				return nil, err
			}
			push(ObjectVType("[" + ObjectType(in.Type).Descriptor()))
		case CHECKCAST:
			if err := popN(1); err != nil {
				return nil, err
			}
			push(ObjectVType(in.Type))
		case INSTANCEOF:
			if err := popN(1); err != nil {
				return nil, err
			}
			push(Integer)
		}
	case *FieldInsn:
		t := VTypeOf(ParseType(in.Desc))
		switch in.Op {
		case GETSTATIC:
			push(t)
		case PUTSTATIC:
			if err := popN(1); err != nil {
				return nil, err
			}
		case GETFIELD:
			if err := popN(1); err != nil {
				return nil, err
			}
			push(t)
		case PUTFIELD:
			if err := popN(2); err != nil {
				return nil, err
			}
		}
	case *MethodInsn:
		if err := popN(len(ArgumentTypes(in.Desc))); err != nil {
			return nil, err
		}
		if in.Op != INVOKESTATIC {
			recv, err := pop()
			if err != nil {
				return nil, err
			}
			if in.Op == INVOKESPECIAL && in.Name == "<init>" {
				a.initialize(s, recv, in.Owner)
			}
		}
		if ret := ReturnType(in.Desc); ret.Sort != SortVoid {
			push(VTypeOf(ret))
		}
	case *InvokeDynamicInsn:
		if err := popN(len(ArgumentTypes(in.Desc))); err != nil {
			return nil, err
		}
		if ret := ReturnType(in.Desc); ret.Sort != SortVoid {
			push(VTypeOf(ret))
		}
	case *JumpInsn:
		switch {
		case in.Op == GOTO:
		case in.Op == JSR:
			return nil, fmt.Errorf("%w: jsr is not supported", ErrAnalysis)
		case in.Op >= IF_ICMPEQ && in.Op <= IF_ACMPNE:
			if err := popN(2); err != nil {
				return nil, err
			}
		default:
			if err := popN(1); err != nil {
				return nil, err
			}
		}
	case *LdcInsn:
		push(constantVType(in.Value))
	case *IincInsn:
	case *TableSwitchInsn, *LookupSwitchInsn:
		if err := popN(1); err != nil {
			return nil, err
		}
	case *MultiANewArrayInsn:
		if err := popN(in.Dims); err != nil {
			return nil, err
		}
		push(ObjectVType(in.Desc))
	}
	return s, nil
}

func (a *analyzer) store(s *state, v int, val VType) {
	for len(s.locals) < v+2 {
		s.locals = append(s.locals, Top)
	}
	if v > 0 && s.locals[v-1].Wide() {
		s.locals[v-1] = Top
	}
	s.locals[v] = val
	if val.Wide() {
		s.locals[v+1] = Top
	}
}

// initialize replaces every occurrence of an uninitialized value once its
// constructor has been invoked.
func (a *analyzer) initialize(s *state, recv VType, owner string) {
	var inited VType
	switch recv.Kind {
	case VUninitializedThis:
		inited = ObjectVType(a.owner)
	case VUninitialized:
		t, ok := a.insns[a.labels[recv.New]+1].(*TypeInsn)
		if !ok {
			inited = ObjectVType(owner)
		} else {
			inited = ObjectVType(t.Type)
		}
	default:
		return
	}
	for k := range s.locals {
		if s.locals[k] == recv {
			s.locals[k] = inited
		}
	}
	for k := range s.stack {
		if s.stack[k] == recv {
			s.stack[k] = inited
		}
	}
}

func (a *analyzer) simple(op Opcode, s *state,
	pop func() (VType, error), popN func(int) error, push func(...VType),
	popSlots func(int) ([]VType, error),
) (*state, error) {
	binary := func(result VType) (*state, error) {
		if err := popN(2); err != nil {
			return nil, err
		}
		push(result)
		return s, nil
	}
	unary := func(result VType) (*state, error) {
		if err := popN(1); err != nil {
			return nil, err
		}
		push(result)
		return s, nil
	}
	arith := []VType{Integer, Long, Float, Double}

	switch {
	case op == NOP:
	case op == ACONST_NULL:
		push(Null)
	case op >= ICONST_M1 && op <= ICONST_5:
		push(Integer)
	case op == LCONST_0 || op == LCONST_1:
		push(Long)
	case op >= FCONST_0 && op <= FCONST_2:
		push(Float)
	case op == DCONST_0 || op == DCONST_1:
		push(Double)
	case op == IALOAD || op == BALOAD || op == CALOAD || op == SALOAD:
		return binary(Integer)
	case op == LALOAD:
		return binary(Long)
	case op == FALOAD:
		return binary(Float)
	case op == DALOAD:
		return binary(Double)
	case op == AALOAD:
		if err := popN(1); err != nil {
			return nil, err
		}
		arr, err := pop()
		if err != nil {
			return nil, err
		}
		push(elementVType(arr))
	case op >= IASTORE && op <= SASTORE:
		if err := popN(3); err != nil {
			return nil, err
		}
	case op == POP:
		if _, err := popSlots(1); err != nil {
			return nil, err
		}
	case op == POP2:
		if _, err := popSlots(2); err != nil {
			return nil, err
		}
	case op == DUP:
		v, err := popSlots(1)
		if err != nil {
			return nil, err
		}
		push(v...)
		push(v...)
	case op == DUP_X1:
		v1, err := popSlots(1)
		if err != nil {
			return nil, err
		}
		v2, err := popSlots(1)
		if err != nil {
			return nil, err
		}
		push(v1...)
		push(v2...)
		push(v1...)
	case op == DUP_X2:
		v1, err := popSlots(1)
		if err != nil {
			return nil, err
		}
		v2, err := popSlots(2)
		if err != nil {
			return nil, err
		}
		push(v1...)
		push(v2...)
		push(v1...)
	case op == DUP2:
		v, err := popSlots(2)
		if err != nil {
			return nil, err
		}
		push(v...)
		push(v...)
	case op == DUP2_X1:
		v1, err := popSlots(2)
		if err != nil {
			return nil, err
		}
		v2, err := popSlots(1)
		if err != nil {
			return nil, err
		}
		push(v1...)
		push(v2...)
		push(v1...)
	case op == DUP2_X2:
		v1, err := popSlots(2)
		if err != nil {
			return nil, err
		}
		v2, err := popSlots(2)
		if err != nil {
			return nil, err
		}
		push(v1...)
		push(v2...)
		push(v1...)
	case op == SWAP:
		v1, err := popSlots(1)
		if err != nil {
			return nil, err
		}
		v2, err := popSlots(1)
		if err != nil {
			return nil, err
		}
		push(v1...)
		push(v2...)
	case op >= IADD && op <= DREM:
		return binary(arith[(op-IADD)%4])
	case op >= INEG && op <= DNEG:
		return unary(arith[(op-INEG)%4])
	case op >= ISHL && op <= LUSHR:
		return binary(arith[(op-ISHL)%2])
	case op >= IAND && op <= LXOR:
		return binary(arith[(op-IAND)%2])
	case op >= I2L && op <= D2F:
		targets := []VType{Long, Float, Double, Integer, Float, Double, Integer, Long, Double, Integer, Long, Float}
		return unary(targets[op-I2L])
	case op >= I2B && op <= I2S:
		return unary(Integer)
	case op >= LCMP && op <= DCMPG:
		return binary(Integer)
	case op.isReturn():
		if op != RETURN {
			if err := popN(1); err != nil {
				return nil, err
			}
		}
	case op == ARRAYLENGTH:
		return unary(Integer)
	case op == ATHROW:
		if err := popN(1); err != nil {
			return nil, err
		}
	case op == MONITORENTER || op == MONITOREXIT:
		if err := popN(1); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unexpected opcode %s", ErrAnalysis, op)
	}
	return s, nil
}

func elementVType(arr VType) VType {
	if arr.Kind == VNull {
		return Null
	}
	if arr.Kind == VObject && strings.HasPrefix(arr.Class, "[") {
		return VTypeOf(ParseType(arr.Class[1:]))
	}
	return ObjectVType(objectClass)
}

func primitiveArrayDesc(t int) string {
	switch t {
	case T_BOOLEAN:
		return "Z"
	case T_CHAR:
		return "C"
	case T_FLOAT:
		return "F"
	case T_DOUBLE:
		return "D"
	case T_BYTE:
		return "B"
	case T_SHORT:
		return "S"
	case T_LONG:
		return "J"
	default:
		return "I"
	}
}

func constantVType(v any) VType {
	switch c := v.(type) {
	case int32, int:
		return Integer
	case float32:
		return Float
	case int64:
		return Long
	case float64:
		return Double
	case string:
		return ObjectVType("java/lang/String")
	case Type:
		if c.Sort == SortMethod {
			return ObjectVType("java/lang/invoke/MethodType")
		}
		return ObjectVType("java/lang/Class")
	case Handle:
		return ObjectVType("java/lang/invoke/MethodHandle")
	case *ConstantDynamic:
		return VTypeOf(ParseType(c.Desc))
	default:
		return Top
	}
}

// FrameAt returns the compressed frame before instruction i.
func (a *Analysis) FrameAt(i int) *Frame {
	s := a.states[i]
	if s == nil {
		return nil
	}
	return &Frame{Locals: compressLocals(s.locals), Stack: append([]VType(nil), s.stack...)}
}

func compressLocals(slots []VType) []VType {
	var out []VType
	for k := 0; k < len(slots); k++ {
		out = append(out, slots[k])
		if slots[k].Wide() {
			k++
		}
	}
	for len(out) > 0 && out[len(out)-1].Kind == VTop {
		out = out[:len(out)-1]
	}
	return out
}

// computeFrames analyzes m and returns its body without unreachable code
// together with the frame required at every branch target and handler.
func computeFrames(owner string, m *Method, h Hierarchy) ([]Insn, map[*Label]*Frame, error) {
	an, err := Analyze(owner, m, h)
	if err != nil {
		return nil, nil, err
	}
	insns := an.Insns
	labels := labelIndex(insns)

	targets := map[*Label]bool{}
	for i, in := range insns {
		if !an.Reachable(i) {
			continue
		}
		switch j := in.(type) {
		case *JumpInsn:
			targets[j.Target] = true
		case *TableSwitchInsn:
			targets[j.Default] = true
			for _, l := range j.Labels {
				targets[l] = true
			}
		case *LookupSwitchInsn:
			targets[j.Default] = true
			for _, l := range j.Labels {
				targets[l] = true
			}
		}
	}
	for _, tc := range m.Code.TryCatch {
		if i, ok := labels[tc.Handler]; ok && an.Reachable(i) {
			targets[tc.Handler] = true
		}
	}

	frames := make(map[*Label]*Frame, len(targets))
	for l := range targets {
		i := labels[l]
		// state of the first real instruction after the label
		for i < len(insns) && insns[i].Opcode() == Pseudo {
			i++
		}
		if i < len(insns) {
			if f := an.FrameAt(i); f != nil {
				frames[l] = f
			}
		}
	}

	out := make([]Insn, 0, len(insns))
	for i, in := range insns {
		switch in.(type) {
		case *Frame:
			continue
		case *Label, *LineNumber:
			out = append(out, in)
		default:
			if an.Reachable(i) {
				out = append(out, in)
			}
		}
	}
	return out, frames, nil
}
