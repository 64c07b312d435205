// Package jvmtest interprets method bodies against a small emulated JDK, so
// tests can check what rewritten bytecode computes instead of how it looks.
//
// Values follow the JVM: int, boolean, byte, char and short are int32, long
// is int64, float is float32, double is float64. References are nil, Go
// strings (java/lang/String), *Object, *Array or *ClassRef.
package jvmtest

import (
	"errors"
	"fmt"
	"math"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
)

// ErrUnsupported reports an instruction or JDK method the VM does not emulate.
var ErrUnsupported = errors.New("jvmtest: unsupported")

// ErrStepLimit stops runaway loops.
var ErrStepLimit = errors.New("jvmtest: step limit exceeded")

const maxSteps = 1 << 20

// Object is an instance of an interpreted class or of an emulated JDK class.
type Object struct {
	Class  string
	Fields map[string]any
	// Native holds the state of emulated JDK objects.
	Native any
	// ReadOnly marks unmodifiable collection views.
	ReadOnly bool
}

type Array struct {
	Desc  string
	Elems []any
}

// ClassRef is a java/lang/Class value.
type ClassRef struct{ Name string }

// Throw is a Java exception escaping interpreted code.
type Throw struct{ Obj *Object }

func (t *Throw) Error() string {
	return fmt.Sprintf("%s: %v", t.Obj.Class, t.Message())
}

// Message returns the detail message, or "" when there is none.
func (t *Throw) Message() string {
	s, _ := t.Obj.Fields["message"].(string)
	return s
}

// Thrown returns the class of the Java exception in err, or "".
func Thrown(err error) string {
	var t *Throw
	if errors.As(err, &t) {
		return t.Obj.Class
	}
	return ""
}

// Native emulates a JDK method. Instance methods get the receiver first.
// Constructors may return a value replacing the uninitialized reference.
type Native func(vm *VM, args []any) (any, error)

// wide fills the second slot of long and double values.
type wide struct{}

type VM struct {
	classes map[string]*cf.Class
	natives map[string]Native
	supers  map[string][]string
	statics map[string]any
	refs    map[string]*ClassRef
	labels  map[*cf.Method]map[*cf.Label]int
	ids     map[*Object]int32
	steps   int
}

// New returns a VM knowing the emulated JDK and the given classes.
func New(classes ...*cf.Class) *VM {
	vm := &VM{
		classes: make(map[string]*cf.Class),
		natives: make(map[string]Native),
		supers:  make(map[string][]string),
		statics: make(map[string]any),
		refs:    make(map[string]*ClassRef),
		labels:  make(map[*cf.Method]map[*cf.Label]int),
		ids:     make(map[*Object]int32),
	}
	installJDK(vm)
	for _, c := range classes {
		vm.Define(c)
	}
	return vm
}

// Define makes c available for interpretation.
func (vm *VM) Define(c *cf.Class) { vm.classes[c.Name] = c }

// Register installs a native for owner.name+desc.
func (vm *VM) Register(owner, name, desc string, fn Native) {
	vm.natives[owner+"."+name+desc] = fn
}

// Extends declares the direct supertypes of an emulated class.
func (vm *VM) Extends(class string, supers ...string) {
	vm.supers[class] = append(vm.supers[class], supers...)
}

// NewObject returns an instance of class with the given field values.
func (vm *VM) NewObject(class string, fields map[string]any) *Object {
	if fields == nil {
		fields = make(map[string]any)
	}
	return &Object{Class: class, Fields: fields}
}

// Invoke runs the static method owner.name+desc.
func (vm *VM) Invoke(owner, name, desc string, args ...any) (any, error) {
	vm.steps = 0
	return vm.call(cf.INVOKESTATIC, owner, name, desc, args)
}

// InvokeVirtual runs name+desc on recv.
func (vm *VM) InvokeVirtual(recv any, name, desc string, args ...any) (any, error) {
	vm.steps = 0
	return vm.call(cf.INVOKEVIRTUAL, vm.ClassOf(recv), name, desc, append([]any{recv}, args...))
}

// Throw builds a Java exception of class with message msg.
func (vm *VM) Throw(class, msg string) error {
	o := &Object{Class: class, Fields: map[string]any{}}
	if msg != "" {
		o.Fields["message"] = msg
	}
	return &Throw{Obj: o}
}

func (vm *VM) classRef(name string) *ClassRef {
	if r, ok := vm.refs[name]; ok {
		return r
	}
	r := &ClassRef{Name: name}
	vm.refs[name] = r
	return r
}

// ClassOf returns the runtime class of a reference value.
func (vm *VM) ClassOf(v any) string {
	switch v := v.(type) {
	case string:
		return "java/lang/String"
	case *Object:
		return v.Class
	case *Array:
		return v.Desc
	case *ClassRef:
		return "java/lang/Class"
	}
	return ""
}

// ancestors returns the supertypes of class, nearest first.
func (vm *VM) ancestors(class string) []string {
	var out []string
	seen := map[string]bool{class: true}
	queue := []string{class}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		var next []string
		if c, ok := vm.classes[cur]; ok {
			if c.Super != "" {
				next = append(next, c.Super)
			}
			next = append(next, c.Interfaces...)
		}
		next = append(next, vm.supers[cur]...)
		for _, n := range next {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
				queue = append(queue, n)
			}
		}
	}
	return out
}

// IsInstance reports whether v is a non-null instance of class.
func (vm *VM) IsInstance(v any, class string) bool {
	if v == nil {
		return false
	}
	if class == "java/lang/Object" {
		return true
	}
	rc := vm.ClassOf(v)
	if rc == class {
		return true
	}
	for _, a := range vm.ancestors(rc) {
		if a == class {
			return true
		}
	}
	return false
}

func (vm *VM) findMethod(class, name, desc string) (*cf.Class, *cf.Method) {
	for _, cur := range append([]string{class}, vm.ancestors(class)...) {
		c, ok := vm.classes[cur]
		if !ok {
			continue
		}
		if m := c.FindMethod(name, desc); m != nil && m.Code != nil {
			return c, m
		}
	}
	return nil, nil
}

func (vm *VM) native(class, owner, name, desc string) Native {
	candidates := append([]string{class}, vm.ancestors(class)...)
	if owner != class {
		candidates = append(candidates, owner)
		candidates = append(candidates, vm.ancestors(owner)...)
	}
	candidates = append(candidates, "java/lang/Object")
	for _, c := range candidates {
		if fn, ok := vm.natives[c+"."+name+desc]; ok {
			return fn
		}
	}
	return nil
}

func (vm *VM) call(op cf.Opcode, owner, name, desc string, args []any) (any, error) {
	lookup := owner
	if op == cf.INVOKEVIRTUAL || op == cf.INVOKEINTERFACE {
		if args[0] == nil {
			return nil, vm.Throw("java/lang/NullPointerException", "")
		}
		lookup = vm.ClassOf(args[0])
	}
	if c, m := vm.findMethod(lookup, name, desc); c != nil {
		return vm.run(c, m, args)
	}
	if fn := vm.native(lookup, owner, name, desc); fn != nil {
		return fn(vm, args)
	}
	return nil, fmt.Errorf("%w: method %s.%s%s", ErrUnsupported, owner, name, desc)
}

func (vm *VM) labelIndex(m *cf.Method) map[*cf.Label]int {
	if idx, ok := vm.labels[m]; ok {
		return idx
	}
	idx := make(map[*cf.Label]int)
	for i, in := range m.Code.Insns {
		if l, ok := in.(*cf.Label); ok {
			idx[l] = i
		}
	}
	vm.labels[m] = idx
	return idx
}

// frame is one activation of an interpreted method.
type frame struct {
	vm     *VM
	class  *cf.Class
	method *cf.Method
	labels map[*cf.Label]int
	locals []any
	stack  []any
}

func (f *frame) push(v any)     { f.stack = append(f.stack, v) }
func (f *frame) pushWide(v any) { f.stack = append(f.stack, v, wide{}) }

func (f *frame) pop() any {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) popWide() any {
	f.pop()
	return f.pop()
}

func (f *frame) popInt() int32      { return f.pop().(int32) }
func (f *frame) popLong() int64     { return f.popWide().(int64) }
func (f *frame) popFloat() float32  { return f.pop().(float32) }
func (f *frame) popDouble() float64 { return f.popWide().(float64) }

func (f *frame) pushValue(t cf.Type, v any) {
	if t.Size() == 2 {
		f.pushWide(v)
	} else {
		f.push(v)
	}
}

func (f *frame) popValue(t cf.Type) any {
	if t.Size() == 2 {
		return f.popWide()
	}
	return f.pop()
}

func (f *frame) setLocal(i int, v any) {
	for len(f.locals) <= i {
		f.locals = append(f.locals, nil)
	}
	f.locals[i] = v
}

func (f *frame) local(i int) any {
	if i >= len(f.locals) {
		return nil
	}
	return f.locals[i]
}

func (vm *VM) run(c *cf.Class, m *cf.Method, args []any) (any, error) {
	f := &frame{vm: vm, class: c, method: m, labels: vm.labelIndex(m)}
	slot := 0
	if !m.IsStatic() {
		f.setLocal(0, args[0])
		args = args[1:]
		slot = 1
	}
	for i, t := range cf.ArgumentTypes(m.Desc) {
		f.setLocal(slot, args[i])
		if t.Size() == 2 {
			f.setLocal(slot+1, wide{})
		}
		slot += t.Size()
	}

	insns := m.Code.Insns
	pc := 0
	for pc < len(insns) {
		vm.steps++
		if vm.steps > maxSteps {
			return nil, ErrStepLimit
		}
		next, ret, done, err := f.exec(pc, insns[pc])
		if err != nil {
			var t *Throw
			if !errors.As(err, &t) {
				return nil, err
			}
			handler, ok := f.handler(pc, t)
			if !ok {
				return nil, err
			}
			f.stack = []any{t.Obj}
			pc = handler
			continue
		}
		if done {
			return ret, nil
		}
		pc = next
	}
	return nil, fmt.Errorf("%w: fell off the end of %s.%s%s", ErrUnsupported, c.Name, m.Name, m.Desc)
}

func (f *frame) handler(pc int, t *Throw) (int, bool) {
	for _, tc := range f.method.Code.TryCatch {
		start, end := f.labels[tc.Start], f.labels[tc.End]
		if pc < start || pc >= end {
			continue
		}
		if tc.Type == "" || f.vm.IsInstance(t.Obj, tc.Type) {
			return f.labels[tc.Handler], true
		}
	}
	return 0, false
}

// exec runs one instruction and returns the next pc, or the return value
// when done is set.
func (f *frame) exec(pc int, in cf.Insn) (next int, ret any, done bool, err error) {
	next = pc + 1
	switch i := in.(type) {
	case *cf.Label, *cf.LineNumber, *cf.Frame:
	case *cf.SimpleInsn:
		return f.simple(next, i.Op)
	case *cf.IntInsn:
		switch i.Op {
		case cf.BIPUSH, cf.SIPUSH:
			f.push(int32(i.Operand))
		case cf.NEWARRAY:
			n := f.popInt()
			if n < 0 {
				return 0, nil, false, f.vm.Throw("java/lang/NegativeArraySizeException", "")
			}
			f.push(newPrimitiveArray(i.Operand, int(n)))
		}
	case *cf.VarInsn:
		switch i.Op {
		case cf.ILOAD, cf.FLOAD, cf.ALOAD:
			f.push(f.local(i.Var))
		case cf.LLOAD, cf.DLOAD:
			f.pushWide(f.local(i.Var))
		case cf.ISTORE, cf.FSTORE, cf.ASTORE:
			f.setLocal(i.Var, f.pop())
		case cf.LSTORE, cf.DSTORE:
			f.setLocal(i.Var, f.popWide())
			f.setLocal(i.Var+1, wide{})
		default:
			return 0, nil, false, fmt.Errorf("%w: %s", ErrUnsupported, i.Op)
		}
	case *cf.IincInsn:
		f.setLocal(i.Var, f.local(i.Var).(int32)+int32(i.Incr))
	case *cf.LdcInsn:
		switch v := i.Value.(type) {
		case int32, float32, string:
			f.push(v)
		case int64, float64:
			f.pushWide(v)
		case cf.Type:
			f.push(f.vm.classRef(v.InternalName()))
		default:
			return 0, nil, false, fmt.Errorf("%w: ldc %T", ErrUnsupported, v)
		}
	case *cf.TypeInsn:
		return next, nil, false, f.typeInsn(i)
	case *cf.FieldInsn:
		return next, nil, false, f.field(i)
	case *cf.MethodInsn:
		return next, nil, false, f.invoke(i)
	case *cf.JumpInsn:
		taken, err := f.branch(i.Op)
		if err != nil {
			return 0, nil, false, err
		}
		if taken {
			next = f.labels[i.Target]
		}
	case *cf.TableSwitchInsn:
		key := f.popInt()
		next = f.labels[i.Default]
		if key >= i.Min && key <= i.Max {
			next = f.labels[i.Labels[key-i.Min]]
		}
	case *cf.LookupSwitchInsn:
		key := f.popInt()
		next = f.labels[i.Default]
		for k, v := range i.Keys {
			if v == key {
				next = f.labels[i.Labels[k]]
				break
			}
		}
	default:
		return 0, nil, false, fmt.Errorf("%w: %s", ErrUnsupported, in.Opcode())
	}
	return next, nil, false, nil
}

func newPrimitiveArray(kind, n int) *Array {
	var (
		desc string
		zero any
	)
	switch kind {
	case cf.T_BOOLEAN:
		desc, zero = "[Z", int32(0)
	case cf.T_CHAR:
		desc, zero = "[C", int32(0)
	case cf.T_FLOAT:
		desc, zero = "[F", float32(0)
	case cf.T_DOUBLE:
		desc, zero = "[D", float64(0)
	case cf.T_BYTE:
		desc, zero = "[B", int32(0)
	case cf.T_SHORT:
		desc, zero = "[S", int32(0)
	case cf.T_LONG:
		desc, zero = "[J", int64(0)
	default:
		desc, zero = "[I", int32(0)
	}
	a := &Array{Desc: desc, Elems: make([]any, n)}
	for k := range a.Elems {
		a.Elems[k] = zero
	}
	return a
}

// zeroValue returns the default value of a field of type t.
func zeroValue(t cf.Type) any {
	switch t.Sort {
	case cf.SortBoolean, cf.SortByte, cf.SortChar, cf.SortShort, cf.SortInt:
		return int32(0)
	case cf.SortLong:
		return int64(0)
	case cf.SortFloat:
		return float32(0)
	case cf.SortDouble:
		return float64(0)
	}
	return nil
}

func (f *frame) typeInsn(i *cf.TypeInsn) error {
	switch i.Op {
	case cf.NEW:
		f.push(&Object{Class: i.Type, Fields: map[string]any{}})
	case cf.ANEWARRAY:
		n := f.popInt()
		if n < 0 {
			return f.vm.Throw("java/lang/NegativeArraySizeException", "")
		}
		desc := "[L" + i.Type + ";"
		if i.Type[0] == '[' {
			desc = "[" + i.Type
		}
		f.push(&Array{Desc: desc, Elems: make([]any, n)})
	case cf.CHECKCAST:
		v := f.stack[len(f.stack)-1]
		if v != nil && !f.vm.IsInstance(v, i.Type) {
			return f.vm.Throw("java/lang/ClassCastException", f.vm.ClassOf(v)+" cannot be cast to "+i.Type)
		}
	case cf.INSTANCEOF:
		f.push(boolInt(f.vm.IsInstance(f.pop(), i.Type)))
	}
	return nil
}

func (f *frame) field(i *cf.FieldInsn) error {
	t := cf.ParseType(i.Desc)
	key := i.Owner + "." + i.Name
	switch i.Op {
	case cf.GETSTATIC:
		v, ok := f.vm.statics[key]
		if !ok {
			if _, defined := f.vm.classes[i.Owner]; !defined {
				return fmt.Errorf("%w: static field %s", ErrUnsupported, key)
			}
			v = zeroValue(t)
		}
		f.pushValue(t, v)
	case cf.PUTSTATIC:
		f.vm.statics[key] = f.popValue(t)
	case cf.GETFIELD:
		obj, err := f.object(f.pop())
		if err != nil {
			return err
		}
		v, ok := obj.Fields[i.Name]
		if !ok {
			v = zeroValue(t)
		}
		f.pushValue(t, v)
	case cf.PUTFIELD:
		v := f.popValue(t)
		obj, err := f.object(f.pop())
		if err != nil {
			return err
		}
		obj.Fields[i.Name] = v
	}
	return nil
}

func (f *frame) object(v any) (*Object, error) {
	if v == nil {
		return nil, f.vm.Throw("java/lang/NullPointerException", "")
	}
	o, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("%w: field access on %T", ErrUnsupported, v)
	}
	return o, nil
}

func (f *frame) invoke(i *cf.MethodInsn) error {
	types := cf.ArgumentTypes(i.Desc)
	n := len(types)
	if i.Op != cf.INVOKESTATIC {
		n++
	}
	args := make([]any, n)
	for k := len(types) - 1; k >= 0; k-- {
		args[n-len(types)+k] = f.popValue(types[k])
	}
	if i.Op != cf.INVOKESTATIC {
		args[0] = f.pop()
	}
	ret, err := f.vm.call(i.Op, i.Owner, i.Name, i.Desc, args)
	if err != nil {
		return err
	}
	if i.Op == cf.INVOKESPECIAL && i.Name == "<init>" {
		if ret != nil {
			f.replace(args[0], ret)
		}
		return nil
	}
	if rt := cf.ReturnType(i.Desc); rt.Sort != cf.SortVoid {
		f.pushValue(rt, ret)
	}
	return nil
}

// replace swaps every copy of an uninitialized reference for the value its
// constructor produced.
func (f *frame) replace(old, v any) {
	for k, s := range f.stack {
		if s == old {
			f.stack[k] = v
		}
	}
	for k, l := range f.locals {
		if l == old {
			f.locals[k] = v
		}
	}
}

func (f *frame) branch(op cf.Opcode) (bool, error) {
	switch op {
	case cf.GOTO, cf.GOTO_W:
		return true, nil
	case cf.IFEQ:
		return f.popInt() == 0, nil
	case cf.IFNE:
		return f.popInt() != 0, nil
	case cf.IFLT:
		return f.popInt() < 0, nil
	case cf.IFGE:
		return f.popInt() >= 0, nil
	case cf.IFGT:
		return f.popInt() > 0, nil
	case cf.IFLE:
		return f.popInt() <= 0, nil
	case cf.IFNULL:
		return f.pop() == nil, nil
	case cf.IFNONNULL:
		return f.pop() != nil, nil
	case cf.IF_ACMPEQ, cf.IF_ACMPNE:
		b, a := f.pop(), f.pop()
		return (a == b) == (op == cf.IF_ACMPEQ), nil
	}
	b, a := f.popInt(), f.popInt()
	switch op {
	case cf.IF_ICMPEQ:
		return a == b, nil
	case cf.IF_ICMPNE:
		return a != b, nil
	case cf.IF_ICMPLT:
		return a < b, nil
	case cf.IF_ICMPGE:
		return a >= b, nil
	case cf.IF_ICMPGT:
		return a > b, nil
	case cf.IF_ICMPLE:
		return a <= b, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnsupported, op)
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (f *frame) array(v any, idx int32) (*Array, error) {
	if v == nil {
		return nil, f.vm.Throw("java/lang/NullPointerException", "")
	}
	a := v.(*Array)
	if idx < 0 || int(idx) >= len(a.Elems) {
		return nil, f.vm.Throw("java/lang/ArrayIndexOutOfBoundsException",
			fmt.Sprintf("Index %d out of bounds for length %d", idx, len(a.Elems)))
	}
	return a, nil
}

func (f *frame) simple(next int, op cf.Opcode) (int, any, bool, error) {
	vm := f.vm
	switch {
	case op == cf.NOP:
	case op == cf.ACONST_NULL:
		f.push(nil)
	case op >= cf.ICONST_M1 && op <= cf.ICONST_5:
		f.push(int32(op) - int32(cf.ICONST_0))
	case op == cf.LCONST_0 || op == cf.LCONST_1:
		f.pushWide(int64(op - cf.LCONST_0))
	case op >= cf.FCONST_0 && op <= cf.FCONST_2:
		f.push(float32(op - cf.FCONST_0))
	case op == cf.DCONST_0 || op == cf.DCONST_1:
		f.pushWide(float64(op - cf.DCONST_0))

	case op >= cf.IALOAD && op <= cf.SALOAD:
		idx := f.popInt()
		a, err := f.array(f.pop(), idx)
		if err != nil {
			return 0, nil, false, err
		}
		if op == cf.LALOAD || op == cf.DALOAD {
			f.pushWide(a.Elems[idx])
		} else {
			f.push(a.Elems[idx])
		}
	case op >= cf.IASTORE && op <= cf.SASTORE:
		var v any
		if op == cf.LASTORE || op == cf.DASTORE {
			v = f.popWide()
		} else {
			v = f.pop()
		}
		idx := f.popInt()
		a, err := f.array(f.pop(), idx)
		if err != nil {
			return 0, nil, false, err
		}
		switch op {
		case cf.BASTORE:
			v = int32(int8(v.(int32)))
		case cf.CASTORE:
			v = int32(uint16(v.(int32)))
		case cf.SASTORE:
			v = int32(int16(v.(int32)))
		}
		a.Elems[idx] = v
	case op == cf.ARRAYLENGTH:
		v := f.pop()
		if v == nil {
			return 0, nil, false, vm.Throw("java/lang/NullPointerException", "")
		}
		f.push(int32(len(v.(*Array).Elems)))

	case op >= cf.POP && op <= cf.SWAP:
		f.stackOp(op)

	case op >= cf.IADD && op <= cf.LXOR:
		if err := f.arith(op); err != nil {
			return 0, nil, false, err
		}
	case op >= cf.I2L && op <= cf.I2S:
		f.convert(op)
	case op == cf.LCMP:
		b, a := f.popLong(), f.popLong()
		f.push(cmp(a, b))
	case op == cf.FCMPL || op == cf.FCMPG:
		b, a := f.popFloat(), f.popFloat()
		f.push(fcmp(float64(a), float64(b), op == cf.FCMPG))
	case op == cf.DCMPL || op == cf.DCMPG:
		b, a := f.popDouble(), f.popDouble()
		f.push(fcmp(a, b, op == cf.DCMPG))

	case op == cf.IRETURN || op == cf.FRETURN || op == cf.ARETURN:
		return 0, f.pop(), true, nil
	case op == cf.LRETURN || op == cf.DRETURN:
		return 0, f.popWide(), true, nil
	case op == cf.RETURN:
		return 0, nil, true, nil
	case op == cf.ATHROW:
		v := f.pop()
		if v == nil {
			return 0, nil, false, vm.Throw("java/lang/NullPointerException", "")
		}
		return 0, nil, false, &Throw{Obj: v.(*Object)}
	case op == cf.MONITORENTER || op == cf.MONITOREXIT:
		f.pop()
	default:
		return 0, nil, false, fmt.Errorf("%w: %s", ErrUnsupported, op)
	}
	return next, nil, false, nil
}

func (f *frame) stackOp(op cf.Opcode) {
	s := f.stack
	n := len(s)
	switch op {
	case cf.POP:
		f.stack = s[:n-1]
	case cf.POP2:
		f.stack = s[:n-2]
	case cf.DUP:
		f.push(s[n-1])
	case cf.DUP_X1:
		f.stack = append(s[:n-2:n-2], s[n-1], s[n-2], s[n-1])
	case cf.DUP_X2:
		f.stack = append(s[:n-3:n-3], s[n-1], s[n-3], s[n-2], s[n-1])
	case cf.DUP2:
		f.stack = append(s, s[n-2], s[n-1])
	case cf.DUP2_X1:
		f.stack = append(s[:n-3:n-3], s[n-2], s[n-1], s[n-3], s[n-2], s[n-1])
	case cf.DUP2_X2:
		f.stack = append(s[:n-4:n-4], s[n-2], s[n-1], s[n-4], s[n-3], s[n-2], s[n-1])
	case cf.SWAP:
		s[n-1], s[n-2] = s[n-2], s[n-1]
	}
}

func cmp[T int64 | int32](a, b T) int32 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func fcmp(a, b float64, nanGreater bool) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		if nanGreater {
			return 1
		}
		return -1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
