package classfile

// Opcode is a JVM instruction opcode.
type Opcode uint8

const (
	NOP Opcode = iota
	ACONST_NULL
	ICONST_M1
	ICONST_0
	ICONST_1
	ICONST_2
	ICONST_3
	ICONST_4
	ICONST_5
	LCONST_0
	LCONST_1
	FCONST_0
	FCONST_1
	FCONST_2
	DCONST_0
	DCONST_1
	BIPUSH
	SIPUSH
	LDC
	LDC_W
	LDC2_W
	ILOAD
	LLOAD
	FLOAD
	DLOAD
	ALOAD
)

const (
	IALOAD Opcode = 46 + iota
	LALOAD
	FALOAD
	DALOAD
	AALOAD
	BALOAD
	CALOAD
	SALOAD
	ISTORE
	LSTORE
	FSTORE
	DSTORE
	ASTORE
)

const (
	IASTORE Opcode = 79 + iota
	LASTORE
	FASTORE
	DASTORE
	AASTORE
	BASTORE
	CASTORE
	SASTORE
	POP
	POP2
	DUP
	DUP_X1
	DUP_X2
	DUP2
	DUP2_X1
	DUP2_X2
	SWAP
	IADD
	LADD
	FADD
	DADD
	ISUB
	LSUB
	FSUB
	DSUB
	IMUL
	LMUL
	FMUL
	DMUL
	IDIV
	LDIV
	FDIV
	DDIV
	IREM
	LREM
	FREM
	DREM
	INEG
	LNEG
	FNEG
	DNEG
	ISHL
	LSHL
	ISHR
	LSHR
	IUSHR
	LUSHR
	IAND
	LAND
	IOR
	LOR
	IXOR
	LXOR
	IINC
	I2L
	I2F
	I2D
	L2I
	L2F
	L2D
	F2I
	F2L
	F2D
	D2I
	D2L
	D2F
	I2B
	I2C
	I2S
	LCMP
	FCMPL
	FCMPG
	DCMPL
	DCMPG
	IFEQ
	IFNE
	IFLT
	IFGE
	IFGT
	IFLE
	IF_ICMPEQ
	IF_ICMPNE
	IF_ICMPLT
	IF_ICMPGE
	IF_ICMPGT
	IF_ICMPLE
	IF_ACMPEQ
	IF_ACMPNE
	GOTO
	JSR
	RET
	TABLESWITCH
	LOOKUPSWITCH
	IRETURN
	LRETURN
	FRETURN
	DRETURN
	ARETURN
	RETURN
	GETSTATIC
	PUTSTATIC
	GETFIELD
	PUTFIELD
	INVOKEVIRTUAL
	INVOKESPECIAL
	INVOKESTATIC
	INVOKEINTERFACE
	INVOKEDYNAMIC
	NEW
	NEWARRAY
	ANEWARRAY
	ARRAYLENGTH
	ATHROW
	CHECKCAST
	INSTANCEOF
	MONITORENTER
	MONITOREXIT
	WIDE
	MULTIANEWARRAY
	IFNULL
	IFNONNULL
	GOTO_W
	JSR_W
)

// short load/store forms (xload_<n>, xstore_<n>); only seen while decoding.
const (
	iload0  Opcode = 26
	aload3  Opcode = 45
	istore0 Opcode = 59
	astore3 Opcode = 78
)

// NEWARRAY operand values.
const (
	T_BOOLEAN = 4
	T_CHAR    = 5
	T_FLOAT   = 6
	T_DOUBLE  = 7
	T_BYTE    = 8
	T_SHORT   = 9
	T_INT     = 10
	T_LONG    = 11
)

// Access flags.
const (
	ACC_PUBLIC       = 0x0001
	ACC_PRIVATE      = 0x0002
	ACC_PROTECTED    = 0x0004
	ACC_STATIC       = 0x0008
	ACC_FINAL        = 0x0010
	ACC_SUPER        = 0x0020
	ACC_SYNCHRONIZED = 0x0020
	ACC_VOLATILE     = 0x0040
	ACC_BRIDGE       = 0x0040
	ACC_VARARGS      = 0x0080
	ACC_TRANSIENT    = 0x0080
	ACC_NATIVE       = 0x0100
	ACC_INTERFACE    = 0x0200
	ACC_ABSTRACT     = 0x0400
	ACC_STRICT       = 0x0800
	ACC_SYNTHETIC    = 0x1000
	ACC_ANNOTATION   = 0x2000
	ACC_ENUM         = 0x4000
	ACC_MODULE       = 0x8000
)

// Method handle kinds.
const (
	H_GETFIELD         = 1
	H_GETSTATIC        = 2
	H_PUTFIELD         = 3
	H_PUTSTATIC        = 4
	H_INVOKEVIRTUAL    = 5
	H_INVOKESTATIC     = 6
	H_INVOKESPECIAL    = 7
	H_NEWINVOKESPECIAL = 8
	H_INVOKEINTERFACE  = 9
)

var opcodeNames = [...]string{
	"nop", "aconst_null", "iconst_m1", "iconst_0", "iconst_1", "iconst_2", "iconst_3", "iconst_4",
	"iconst_5", "lconst_0", "lconst_1", "fconst_0", "fconst_1", "fconst_2", "dconst_0", "dconst_1",
	"bipush", "sipush", "ldc", "ldc_w", "ldc2_w", "iload", "lload", "fload", "dload", "aload",
	"iload_0", "iload_1", "iload_2", "iload_3", "lload_0", "lload_1", "lload_2", "lload_3",
	"fload_0", "fload_1", "fload_2", "fload_3", "dload_0", "dload_1", "dload_2", "dload_3",
	"aload_0", "aload_1", "aload_2", "aload_3", "iaload", "laload", "faload", "daload", "aaload",
	"baload", "caload", "saload", "istore", "lstore", "fstore", "dstore", "astore", "istore_0",
	"istore_1", "istore_2", "istore_3", "lstore_0", "lstore_1", "lstore_2", "lstore_3", "fstore_0",
	"fstore_1", "fstore_2", "fstore_3", "dstore_0", "dstore_1", "dstore_2", "dstore_3", "astore_0",
	"astore_1", "astore_2", "astore_3", "iastore", "lastore", "fastore", "dastore", "aastore",
	"bastore", "castore", "sastore", "pop", "pop2", "dup", "dup_x1", "dup_x2", "dup2", "dup2_x1",
	"dup2_x2", "swap", "iadd", "ladd", "fadd", "dadd", "isub", "lsub", "fsub", "dsub", "imul",
	"lmul", "fmul", "dmul", "idiv", "ldiv", "fdiv", "ddiv", "irem", "lrem", "frem", "drem", "ineg",
	"lneg", "fneg", "dneg", "ishl", "lshl", "ishr", "lshr", "iushr", "lushr", "iand", "land", "ior",
	"lor", "ixor", "lxor", "iinc", "i2l", "i2f", "i2d", "l2i", "l2f", "l2d", "f2i", "f2l", "f2d",
	"d2i", "d2l", "d2f", "i2b", "i2c", "i2s", "lcmp", "fcmpl", "fcmpg", "dcmpl", "dcmpg", "ifeq",
	"ifne", "iflt", "ifge", "ifgt", "ifle", "if_icmpeq", "if_icmpne", "if_icmplt", "if_icmpge",
	"if_icmpgt", "if_icmple", "if_acmpeq", "if_acmpne", "goto", "jsr", "ret", "tableswitch",
	"lookupswitch", "ireturn", "lreturn", "freturn", "dreturn", "areturn", "return", "getstatic",
	"putstatic", "getfield", "putfield", "invokevirtual", "invokespecial", "invokestatic",
	"invokeinterface", "invokedynamic", "new", "newarray", "anewarray", "arraylength", "athrow",
	"checkcast", "instanceof", "monitorenter", "monitorexit", "wide", "multianewarray", "ifnull",
	"ifnonnull", "goto_w", "jsr_w",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "invalid"
}

// isReturn reports whether op ends a method normally.
func (op Opcode) isReturn() bool {
	return op >= IRETURN && op <= RETURN
}
