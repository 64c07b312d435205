package replacers

import (
	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/rewrite"
	tt "github.com/gnolang/jdowngrader/internal/types"
)

const (
	ioException = "java/io/IOException"
	pathClass   = "java/nio/file/Path"
	filesClass  = "java/nio/file/Files"
	charsetDesc = "Ljava/nio/charset/Charset;"
	copyBuffer  = 8192
)

// copyLoop builds a helper copying everything from source (local 0) to sink
// (local 1) through an array of newArray, returning the number of elements
// copied.
func copyLoop(m *cf.Method, src, dst, arrDesc string, newArray cf.Insn) {
	loop, end := cf.NewLabel(), cf.NewLabel()
	m.Emit(cf.VarOp(cf.ALOAD, 1))
	m.Emit(requireNonNullMsg("out")...)
	m.Emit(
		cf.Op(cf.POP),
		cf.Op(cf.LCONST_0), cf.VarOp(cf.LSTORE, 2),
		cf.PushInt(copyBuffer), newArray, cf.VarOp(cf.ASTORE, 4),
		loop,
		cf.VarOp(cf.ALOAD, 0), cf.VarOp(cf.ALOAD, 4), cf.Op(cf.ICONST_0), cf.PushInt(copyBuffer),
		invokeVirtual(src, "read", "("+arrDesc+"II)I"),
		cf.Op(cf.DUP), cf.VarOp(cf.ISTORE, 5),
		cf.Jump(cf.IFLT, end),
		cf.VarOp(cf.ALOAD, 1), cf.VarOp(cf.ALOAD, 4), cf.Op(cf.ICONST_0), cf.VarOp(cf.ILOAD, 5),
		invokeVirtual(dst, "write", "("+arrDesc+"II)V"),
		cf.VarOp(cf.LLOAD, 2), cf.VarOp(cf.ILOAD, 5), cf.Op(cf.I2L), cf.Op(cf.LADD), cf.VarOp(cf.LSTORE, 2),
		cf.Jump(cf.GOTO, loop),
		end,
		cf.VarOp(cf.LLOAD, 2), cf.Op(cf.LRETURN),
	)
}

var streamTransfer = rewrite.HelperMethod{
	Name:       "transferTo",
	Desc:       "(Ljava/io/InputStream;Ljava/io/OutputStream;)J",
	Exceptions: []string{ioException},
	Build: func(_ *cf.Class, m *cf.Method) {
		copyLoop(m, "java/io/InputStream", "java/io/OutputStream", "[B", cf.NewArray(cf.T_BYTE))
	},
}

var inputTransferTo = rewrite.Helper{Methods: []rewrite.HelperMethod{streamTransfer}}

var inputReadAllBytes = rewrite.Helper{
	Methods: []rewrite.HelperMethod{streamTransfer},
	Emit: func(_ *rewrite.Context, calls []*cf.MethodInsn) ([]cf.Insn, error) {
		const baos = "java/io/ByteArrayOutputStream"
		return concat(newInit(baos), []cf.Insn{
			cf.Op(cf.DUP_X1),
			calls[0],
			cf.Op(cf.POP2),
			invokeVirtual(baos, "toByteArray", "()[B"),
		}), nil
	},
}

var readerTransferTo = rewrite.Helper{Methods: []rewrite.HelperMethod{{
	Name:       "readerTransferTo",
	Desc:       "(Ljava/io/Reader;Ljava/io/Writer;)J",
	Exceptions: []string{ioException},
	Build: func(_ *cf.Class, m *cf.Method) {
		copyLoop(m, "java/io/Reader", "java/io/Writer", "[C", cf.NewArray(cf.T_CHAR))
	},
}}}

// decodeString turns [bytes, charset] into a new String.
func decodeString() []cf.Insn {
	return []cf.Insn{
		cf.TypeOp(cf.NEW, "java/lang/String"),
		cf.Op(cf.DUP_X2),
		cf.Op(cf.DUP_X2),
		cf.Op(cf.POP),
		invokeSpecial("java/lang/String", "<init>", "([B"+charsetDesc+")V"),
	}
}

func utf8() *cf.FieldInsn {
	return cf.FieldOp(cf.GETSTATIC, "java/nio/charset/StandardCharsets", "UTF_8", charsetDesc)
}

func readAllBytes() *cf.MethodInsn {
	return invokeStatic(filesClass, "readAllBytes", "(Ljava/nio/file/Path;)[B")
}

func filesReadString(ctx *rewrite.Context) ([]cf.Insn, error) {
	switch len(ctx.Args()) {
	case 1:
		return concat([]cf.Insn{readAllBytes(), utf8()}, decodeString()), nil
	case 2:
		return concat([]cf.Insn{cf.Op(cf.SWAP), readAllBytes(), cf.Op(cf.SWAP)}, decodeString()), nil
	}
	return nil, ctx.Preconditionf("unexpected arguments")
}

func filesWriteString(ctx *rewrite.Context) ([]cf.Insn, error) {
	const write = "(Ljava/nio/file/Path;[B[Ljava/nio/file/OpenOption;)Ljava/nio/file/Path;"
	toString := invokeInterface("java/lang/CharSequence", "toString", "()Ljava/lang/String;")
	getBytes := invokeVirtual("java/lang/String", "getBytes", "("+charsetDesc+")[B")
	switch len(ctx.Args()) {
	case 3:
		return []cf.Insn{
			cf.Op(cf.SWAP), toString, utf8(), getBytes, cf.Op(cf.SWAP),
			invokeStatic(filesClass, "write", write),
		}, nil
	case 4:
		tmp := ctx.FreeLocal()
		return []cf.Insn{
			cf.VarOp(cf.ASTORE, tmp),
			cf.Op(cf.SWAP), toString, cf.Op(cf.SWAP), getBytes,
			cf.VarOp(cf.ALOAD, tmp),
			invokeStatic(filesClass, "write", write),
		}, nil
	}
	return nil, ctx.Preconditionf("unexpected arguments")
}

// writeBytes forwards write(byte[]) to write(byte[], 0, length).
func writeBytes(ctx *rewrite.Context) ([]cf.Insn, error) {
	return []cf.Insn{
		cf.Op(cf.DUP),
		cf.Op(cf.ARRAYLENGTH),
		cf.Op(cf.ICONST_0),
		cf.Op(cf.SWAP),
		invokeLike(ctx, "write", "([BII)V"),
	}, nil
}

const (
	byteBuffer = "java/nio/ByteBuffer"
	inflater   = "java/util/zip/Inflater"
)

// bufferRemaining replaces [buffer] by [buffer, byte[remaining]].
func bufferRemaining() []cf.Insn {
	return []cf.Insn{
		cf.Op(cf.DUP),
		invokeVirtual(byteBuffer, "remaining", "()I"),
		cf.NewArray(cf.T_BYTE),
	}
}

func inflaterSetInput() []cf.Insn {
	return concat(bufferRemaining(), []cf.Insn{
		cf.Op(cf.DUP_X1),
		invokeVirtual(byteBuffer, "get", "([B)Ljava/nio/ByteBuffer;"),
		cf.Op(cf.POP),
		invokeVirtual(inflater, "setInput", "([B)V"),
	})
}

func inflaterInflate() []cf.Insn {
	return concat(bufferRemaining(), []cf.Insn{
		cf.Op(cf.DUP2_X1),
		cf.Op(cf.POP2),
		cf.Op(cf.SWAP),
		cf.Op(cf.DUP_X1),
		invokeVirtual(inflater, "inflate", "([B)I"),
		cf.Op(cf.DUP_X2),
		cf.Op(cf.ICONST_0),
		cf.Op(cf.SWAP),
		invokeVirtual(byteBuffer, "put", "([BII)Ljava/nio/ByteBuffer;"),
		cf.Op(cf.POP),
	})
}

const fsProvider = "java/nio/file/spi/FileSystemProvider"

// tryProviders emits a loop over the iterator in local iter, returning the
// file system of the first provider accepting the path in local 0.
func tryProviders(m *cf.Method, iter, provider int) {
	loop, end := cf.NewLabel(), cf.NewLabel()
	start, stop, handler := cf.NewLabel(), cf.NewLabel(), cf.NewLabel()
	m.Code.TryCatch = append(m.Code.TryCatch, cf.TryCatchBlock{
		Start: start, End: stop, Handler: handler, Type: "java/lang/UnsupportedOperationException",
	})
	m.Emit(
		loop,
		cf.VarOp(cf.ALOAD, iter),
		invokeInterface("java/util/Iterator", "hasNext", "()Z"),
		cf.Jump(cf.IFEQ, end),
		cf.VarOp(cf.ALOAD, iter),
		invokeInterface("java/util/Iterator", "next", "()Ljava/lang/Object;"),
		cf.TypeOp(cf.CHECKCAST, fsProvider),
		cf.VarOp(cf.ASTORE, provider),
		start,
		cf.VarOp(cf.ALOAD, provider), cf.VarOp(cf.ALOAD, 0), cf.VarOp(cf.ALOAD, 1),
		invokeVirtual(fsProvider, "newFileSystem", "(Ljava/nio/file/Path;Ljava/util/Map;)Ljava/nio/file/FileSystem;"),
		cf.Op(cf.ARETURN),
		stop,
		handler,
		cf.Op(cf.POP),
		cf.Jump(cf.GOTO, loop),
		end,
	)
}

var newFileSystem = rewrite.HelperMethod{
	Name:       "newFileSystem",
	Desc:       "(Ljava/nio/file/Path;Ljava/util/Map;Ljava/lang/ClassLoader;)Ljava/nio/file/FileSystem;",
	Exceptions: []string{ioException},
	Build: func(_ *cf.Class, m *cf.Method) {
		notFound := cf.NewLabel()
		m.Emit(cf.VarOp(cf.ALOAD, 0), requireNonNull(), cf.Op(cf.POP))
		m.Emit(
			invokeStatic(fsProvider, "installedProviders", "()Ljava/util/List;"),
			invokeInterface(listClass, "iterator", "()Ljava/util/Iterator;"),
			cf.VarOp(cf.ASTORE, 3),
		)
		tryProviders(m, 3, 4)
		m.Emit(
			cf.VarOp(cf.ALOAD, 2),
			cf.Jump(cf.IFNULL, notFound),
			cf.Ldc(cf.ObjectType(fsProvider)),
			cf.VarOp(cf.ALOAD, 2),
			invokeStatic("java/util/ServiceLoader", "load", "(Ljava/lang/Class;Ljava/lang/ClassLoader;)Ljava/util/ServiceLoader;"),
			invokeVirtual("java/util/ServiceLoader", "iterator", "()Ljava/util/Iterator;"),
			cf.VarOp(cf.ASTORE, 3),
		)
		tryProviders(m, 3, 4)
		m.Emit(notFound)
		m.Emit(throwNew("java/nio/file/ProviderNotFoundException", "Provider not found")...)
	},
}

// fileSystemsNew pads the missing environment and class loader arguments
// before calling the shared helper.
var fileSystemsNew = rewrite.Helper{
	Methods: []rewrite.HelperMethod{newFileSystem},
	Emit: func(ctx *rewrite.Context, calls []*cf.MethodInsn) ([]cf.Insn, error) {
		arity := len(ctx.Args())
		var out []cf.Insn
		if arity < 2 {
			out = append(out, invokeStatic(collections, "emptyMap", "()Ljava/util/Map;"))
		}
		if arity < 3 {
			out = append(out, cf.Op(cf.ACONST_NULL))
		}
		return append(out, calls[0]), nil
	},
}

var pathsGet = rewrite.Redirect{Op: cf.INVOKESTATIC, Owner: "java/nio/file/Paths", Name: "get"}

// pathFromString emits this.getFileSystem().getPath(local 1) for the Path
// member bodies.
func pathFromString() []cf.Insn {
	return []cf.Insn{
		cf.VarOp(cf.ALOAD, 0),
		invokeInterface(pathClass, "getFileSystem", "()Ljava/nio/file/FileSystem;"),
		cf.VarOp(cf.ALOAD, 1),
		cf.Op(cf.ICONST_0),
		cf.TypeOp(cf.ANEWARRAY, "java/lang/String"),
		invokeVirtual("java/nio/file/FileSystem", "getPath", "(Ljava/lang/String;[Ljava/lang/String;)Ljava/nio/file/Path;"),
	}
}

// pathStringMember adds name(String) delegating to name(Path).
func pathStringMember(name, ret string) rewrite.Inserter {
	return rewrite.Inserter{
		Interface: pathClass,
		Name:      name,
		Desc:      "(Ljava/lang/String;)" + ret,
		Build: func(_ *cf.Class, m *cf.Method, _ tt.DepCollector) {
			m.Emit(cf.VarOp(cf.ALOAD, 0))
			m.Emit(pathFromString()...)
			m.Emit(
				invokeInterface(pathClass, name, "(Ljava/nio/file/Path;)"+ret),
				cf.Op(cf.ParseType(ret).Opcode(cf.IRETURN)),
			)
		},
	}
}

var pathToFile = rewrite.Inserter{
	Interface: pathClass,
	Name:      "toFile",
	Desc:      "()Ljava/io/File;",
	Build: func(_ *cf.Class, m *cf.Method, _ tt.DepCollector) {
		foreign := cf.NewLabel()
		m.Emit(
			cf.VarOp(cf.ALOAD, 0),
			invokeInterface(pathClass, "getFileSystem", "()Ljava/nio/file/FileSystem;"),
			invokeStatic("java/nio/file/FileSystems", "getDefault", "()Ljava/nio/file/FileSystem;"),
			cf.Jump(cf.IF_ACMPNE, foreign),
			cf.VarOp(cf.ALOAD, 0),
			invokeVirtual("java/lang/Object", "toString", "()Ljava/lang/String;"),
		)
		m.Emit(wrapNew("java/io/File", stringDesc)...)
		m.Emit(cf.Op(cf.ARETURN), foreign)
		m.Emit(throwNew("java/lang/UnsupportedOperationException", "Path not associated with default file system.")...)
	},
}
