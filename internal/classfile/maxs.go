package classfile

import "fmt"

// StackDelta returns the net change of the operand stack, in slots, caused
// by executing in. Pseudo instructions have no effect.
func StackDelta(in Insn) int {
	switch i := in.(type) {
	case *SimpleInsn:
		return simpleDelta(i.Op)
	case *IntInsn:
		if i.Op == NEWARRAY {
			return 0
		}
		return 1
	case *VarInsn:
		size := 1
		if i.Op == LLOAD || i.Op == DLOAD || i.Op == LSTORE || i.Op == DSTORE {
			size = 2
		}
		switch {
		case i.Op == RET:
			return 0
		case i.Op >= ISTORE:
			return -size
		default:
			return size
		}
	case *TypeInsn:
		if i.Op == NEW {
			return 1
		}
		return 0
	case *FieldInsn:
		size := ParseType(i.Desc).Size()
		switch i.Op {
		case GETSTATIC:
			return size
		case PUTSTATIC:
			return -size
		case GETFIELD:
			return size - 1
		default:
			return -size - 1
		}
	case *MethodInsn:
		d := ReturnType(i.Desc).Size() - ArgumentsSize(i.Desc)
		if i.Op != INVOKESTATIC {
			d--
		}
		return d
	case *InvokeDynamicInsn:
		return ReturnType(i.Desc).Size() - ArgumentsSize(i.Desc)
	case *JumpInsn:
		switch {
		case i.Op == GOTO:
			return 0
		case i.Op == JSR:
			return 1
		case i.Op >= IF_ICMPEQ && i.Op <= IF_ACMPNE:
			return -2
		default:
			return -1
		}
	case *LdcInsn:
		if isWideConstant(i.Value) {
			return 2
		}
		return 1
	case *TableSwitchInsn, *LookupSwitchInsn:
		return -1
	case *MultiANewArrayInsn:
		return 1 - i.Dims
	default:
		return 0
	}
}

func simpleDelta(op Opcode) int {
	switch {
	case op == NOP:
		return 0
	case op == ACONST_NULL, op >= ICONST_M1 && op <= ICONST_5, op == FCONST_0, op == FCONST_1, op == FCONST_2:
		return 1
	case op == LCONST_0, op == LCONST_1, op == DCONST_0, op == DCONST_1:
		return 2
	case op == LALOAD, op == DALOAD:
		return 0
	case op >= IALOAD && op <= SALOAD:
		return -1
	case op == LASTORE, op == DASTORE:
		return -4
	case op >= IASTORE && op <= SASTORE:
		return -3
	case op == POP:
		return -1
	case op == POP2:
		return -2
	case op == DUP, op == DUP_X1, op == DUP_X2:
		return 1
	case op == DUP2, op == DUP2_X1, op == DUP2_X2:
		return 2
	case op == SWAP:
		return 0
	case op >= IADD && op <= DREM:
		if (op-IADD)%2 == 1 {
			return -2 // long, double
		}
		return -1
	case op >= INEG && op <= DNEG:
		return 0
	case op >= ISHL && op <= LUSHR:
		return -1
	case op >= IAND && op <= LXOR:
		if (op-IAND)%2 == 1 {
			return -2
		}
		return -1
	case op == I2L, op == I2D, op == F2L, op == F2D:
		return 1
	case op == L2I, op == L2F, op == D2I, op == D2F:
		return -1
	case op >= I2L && op <= I2S:
		return 0
	case op == LCMP, op == DCMPL, op == DCMPG:
		return -3
	case op == FCMPL, op == FCMPG:
		return -1
	case op == IRETURN, op == FRETURN, op == ARETURN, op == ATHROW, op == MONITORENTER, op == MONITOREXIT:
		return -1
	case op == LRETURN, op == DRETURN:
		return -2
	default:
		return 0
	}
}

// labelIndex maps every label of insns to its position.
func labelIndex(insns []Insn) map[*Label]int {
	idx := make(map[*Label]int)
	for i, in := range insns {
		if l, ok := in.(*Label); ok {
			idx[l] = i
		}
	}
	return idx
}

// successors returns the instruction indices control may reach from insns[i],
// excluding exception edges.
func successors(insns []Insn, labels map[*Label]int, i int) ([]int, error) {
	target := func(l *Label) (int, error) {
		t, ok := labels[l]
		if !ok {
			return 0, fmt.Errorf("%w: branch to a label outside the method body", ErrAnalysis)
		}
		return t, nil
	}
	var next []int
	switch in := insns[i].(type) {
	case *JumpInsn:
		t, err := target(in.Target)
		if err != nil {
			return nil, err
		}
		next = append(next, t)
		if in.Op == GOTO {
			return next, nil
		}
	case *TableSwitchInsn:
		for _, l := range append([]*Label{in.Default}, in.Labels...) {
			t, err := target(l)
			if err != nil {
				return nil, err
			}
			next = append(next, t)
		}
		return next, nil
	case *LookupSwitchInsn:
		for _, l := range append([]*Label{in.Default}, in.Labels...) {
			t, err := target(l)
			if err != nil {
				return nil, err
			}
			next = append(next, t)
		}
		return next, nil
	case *SimpleInsn:
		if in.Op.isReturn() || in.Op == ATHROW {
			return nil, nil
		}
	case *VarInsn:
		if in.Op == RET {
			return nil, nil
		}
	}
	if i+1 < len(insns) {
		next = append(next, i+1)
	}
	return next, nil
}

// ComputeMaxs recomputes MaxStack and MaxLocals of m.
func ComputeMaxs(m *Method) error {
	if m.Code == nil {
		return nil
	}
	stack, locals, err := computeMaxs(m, m.Code.Insns)
	if err != nil {
		return err
	}
	m.Code.MaxStack, m.Code.MaxLocals = stack, locals
	return nil
}

func computeMaxs(m *Method, insns []Insn) (int, int, error) {
	maxLocals := ArgumentsSize(m.Desc)
	if !m.IsStatic() {
		maxLocals++
	}
	for _, in := range insns {
		switch i := in.(type) {
		case *VarInsn:
			size := 1
			if i.Op == LLOAD || i.Op == DLOAD || i.Op == LSTORE || i.Op == DSTORE {
				size = 2
			}
			if i.Var+size > maxLocals {
				maxLocals = i.Var + size
			}
		case *IincInsn:
			if i.Var+1 > maxLocals {
				maxLocals = i.Var + 1
			}
		}
	}

	labels := labelIndex(insns)
	depth := make([]int, len(insns))
	for i := range depth {
		depth[i] = -1
	}
	type item struct{ pos, depth int }
	work := []item{{0, 0}}
	for _, tc := range m.Code.TryCatch {
		if h, ok := labels[tc.Handler]; ok {
			work = append(work, item{h, 1})
		}
	}
	maxStack := 0
	for len(work) > 0 {
		it := work[len(work)-1]
		work = work[:len(work)-1]
		if it.pos >= len(insns) || depth[it.pos] >= it.depth {
			continue
		}
		depth[it.pos] = it.depth
		d := it.depth + StackDelta(insns[it.pos])
		if d < 0 {
			return 0, 0, fmt.Errorf("%w: stack underflow at %s", ErrAnalysis, Format(insns[it.pos]))
		}
		// values pushed before popping, e.g. dup_x2
		peak := it.depth + pushSize(insns[it.pos])
		if d > peak {
			peak = d
		}
		if peak > maxStack {
			maxStack = peak
		}
		next, err := successors(insns, labels, it.pos)
		if err != nil {
			return 0, 0, err
		}
		for _, n := range next {
			work = append(work, item{n, d})
		}
	}
	return maxStack, maxLocals, nil
}

// pushSize is a conservative bound of the transient growth of in, used so
// max stack is never underestimated for instructions that pop after pushing.
func pushSize(in Insn) int {
	if s, ok := in.(*SimpleInsn); ok {
		switch s.Op {
		case DUP, DUP_X1, DUP_X2:
			return 1
		case DUP2, DUP2_X1, DUP2_X2:
			return 2
		}
	}
	return 0
}
