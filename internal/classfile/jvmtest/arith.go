package jvmtest

import (
	"math"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
)

func (f *frame) arith(op cf.Opcode) error {
	switch op {
	case cf.INEG:
		f.push(-f.popInt())
		return nil
	case cf.LNEG:
		f.pushWide(-f.popLong())
		return nil
	case cf.FNEG:
		f.push(-f.popFloat())
		return nil
	case cf.DNEG:
		f.pushWide(-f.popDouble())
		return nil
	case cf.ISHL, cf.ISHR, cf.IUSHR:
		s := uint(f.popInt()) & 31
		v := f.popInt()
		switch op {
		case cf.ISHL:
			f.push(v << s)
		case cf.ISHR:
			f.push(v >> s)
		default:
			f.push(int32(uint32(v) >> s))
		}
		return nil
	case cf.LSHL, cf.LSHR, cf.LUSHR:
		s := uint(f.popInt()) & 63
		v := f.popLong()
		switch op {
		case cf.LSHL:
			f.pushWide(v << s)
		case cf.LSHR:
			f.pushWide(v >> s)
		default:
			f.pushWide(int64(uint64(v) >> s))
		}
		return nil
	}

	switch op {
	case cf.IADD, cf.ISUB, cf.IMUL, cf.IDIV, cf.IREM, cf.IAND, cf.IOR, cf.IXOR:
		b, a := f.popInt(), f.popInt()
		if (op == cf.IDIV || op == cf.IREM) && b == 0 {
			return f.vm.Throw("java/lang/ArithmeticException", "/ by zero")
		}
		f.push(intOp(op, a, b))
	case cf.LADD, cf.LSUB, cf.LMUL, cf.LDIV, cf.LREM, cf.LAND, cf.LOR, cf.LXOR:
		b, a := f.popLong(), f.popLong()
		if (op == cf.LDIV || op == cf.LREM) && b == 0 {
			return f.vm.Throw("java/lang/ArithmeticException", "/ by zero")
		}
		f.pushWide(intOp(op-1, a, b))
	case cf.FADD, cf.FSUB, cf.FMUL, cf.FDIV, cf.FREM:
		b, a := f.popFloat(), f.popFloat()
		f.push(float32(floatOp(op-2, float64(a), float64(b))))
	case cf.DADD, cf.DSUB, cf.DMUL, cf.DDIV, cf.DREM:
		b, a := f.popDouble(), f.popDouble()
		f.pushWide(floatOp(op-3, a, b))
	}
	return nil
}

// intOp applies the int opcode op; long opcodes are shifted onto it.
func intOp[T int32 | int64](op cf.Opcode, a, b T) T {
	switch op {
	case cf.IADD:
		return a + b
	case cf.ISUB:
		return a - b
	case cf.IMUL:
		return a * b
	case cf.IDIV:
		return a / b
	case cf.IREM:
		return a % b
	case cf.IAND:
		return a & b
	case cf.IOR:
		return a | b
	}
	return a ^ b
}

// floatOp applies the int opcode op to floating point operands.
func floatOp(op cf.Opcode, a, b float64) float64 {
	switch op {
	case cf.IADD:
		return a + b
	case cf.ISUB:
		return a - b
	case cf.IMUL:
		return a * b
	case cf.IDIV:
		return a / b
	}
	return math.Mod(a, b)
}

func (f *frame) convert(op cf.Opcode) {
	switch op {
	case cf.I2L:
		f.pushWide(int64(f.popInt()))
	case cf.I2F:
		f.push(float32(f.popInt()))
	case cf.I2D:
		f.pushWide(float64(f.popInt()))
	case cf.L2I:
		f.push(int32(f.popLong()))
	case cf.L2F:
		f.push(float32(f.popLong()))
	case cf.L2D:
		f.pushWide(float64(f.popLong()))
	case cf.F2I:
		f.push(int32(saturate(float64(f.popFloat()), math.MinInt32, math.MaxInt32)))
	case cf.F2L:
		f.pushWide(saturate(float64(f.popFloat()), math.MinInt64, math.MaxInt64))
	case cf.F2D:
		f.pushWide(float64(f.popFloat()))
	case cf.D2I:
		f.push(int32(saturate(f.popDouble(), math.MinInt32, math.MaxInt32)))
	case cf.D2L:
		f.pushWide(saturate(f.popDouble(), math.MinInt64, math.MaxInt64))
	case cf.D2F:
		f.push(float32(f.popDouble()))
	case cf.I2B:
		f.push(int32(int8(f.popInt())))
	case cf.I2C:
		f.push(int32(uint16(f.popInt())))
	case cf.I2S:
		f.push(int32(int16(f.popInt())))
	}
}

// saturate converts like the JVM: NaN is 0 and out of range values clamp.
func saturate(v float64, lo, hi int64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v <= float64(lo):
		return lo
	case v >= float64(hi):
		return hi
	}
	return int64(v)
}
