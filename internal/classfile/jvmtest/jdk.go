package jvmtest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

const (
	objectDesc = "Ljava/lang/Object;"
	stringDesc = "Ljava/lang/String;"
	sbClass    = "java/lang/StringBuilder"
)

// List is the state of emulated java/util/List instances.
type List struct{ Elems []any }

// Set is the state of emulated java/util/Set instances, in insertion order.
type Set struct{ Elems []any }

// Map is the state of emulated java/util/Map instances, in insertion order.
type Map struct{ Keys, Values []any }

// Entry is the state of emulated java/util/Map$Entry instances.
type Entry struct{ Key, Value any }

// Box is the state of java/lang wrapper instances.
type Box struct{ Value any }

var builtinSupers = map[string][]string{
	"java/lang/String":                          {"java/lang/CharSequence"},
	"java/lang/StringBuilder":                   {"java/lang/CharSequence"},
	"java/lang/Integer":                         {"java/lang/Number"},
	"java/lang/Long":                            {"java/lang/Number"},
	"java/util/List":                            {"java/util/Collection"},
	"java/util/Set":                             {"java/util/Collection"},
	"java/util/ArrayList":                       {"java/util/List"},
	"java/util/Arrays$ArrayList":                {"java/util/List"},
	"java/util/Collections$UnmodifiableList":    {"java/util/List"},
	"java/util/HashSet":                         {"java/util/Set"},
	"java/util/Collections$UnmodifiableSet":     {"java/util/Set"},
	"java/util/HashMap":                         {"java/util/Map"},
	"java/util/Collections$UnmodifiableMap":     {"java/util/Map"},
	"java/util/AbstractMap$SimpleImmutableEntry": {"java/util/Map$Entry"},

	"java/lang/Exception":                       {"java/lang/Throwable"},
	"java/lang/RuntimeException":                {"java/lang/Exception"},
	"java/io/IOException":                       {"java/lang/Exception"},
	"java/lang/NullPointerException":            {"java/lang/RuntimeException"},
	"java/lang/IllegalArgumentException":        {"java/lang/RuntimeException"},
	"java/lang/IllegalStateException":           {"java/lang/RuntimeException"},
	"java/lang/UnsupportedOperationException":   {"java/lang/RuntimeException"},
	"java/lang/ClassCastException":              {"java/lang/RuntimeException"},
	"java/lang/ArithmeticException":             {"java/lang/RuntimeException"},
	"java/lang/NegativeArraySizeException":      {"java/lang/RuntimeException"},
	"java/lang/IndexOutOfBoundsException":       {"java/lang/RuntimeException"},
	"java/lang/ArrayIndexOutOfBoundsException":  {"java/lang/IndexOutOfBoundsException"},
	"java/lang/StringIndexOutOfBoundsException": {"java/lang/IndexOutOfBoundsException"},
	"java/lang/NumberFormatException":           {"java/lang/IllegalArgumentException"},
	"java/util/NoSuchElementException":          {"java/lang/RuntimeException"},
}

func installJDK(vm *VM) {
	for class, supers := range builtinSupers {
		vm.Extends(class, supers...)
	}
	installObject(vm)
	installThrowable(vm)
	installString(vm)
	installBuilder(vm)
	installNumbers(vm)
	installObjects(vm)
	installCollections(vm)
	installOptional(vm)
}

func installObject(vm *VM) {
	vm.Register("java/lang/Object", "<init>", "()V", func(*VM, []any) (any, error) { return nil, nil })
	vm.Register("java/lang/Object", "equals", "("+objectDesc+")Z", func(vm *VM, a []any) (any, error) {
		eq, err := vm.Equals(a[0], a[1])
		return boolInt(eq), err
	})
	vm.Register("java/lang/Object", "hashCode", "()I", func(vm *VM, a []any) (any, error) {
		return vm.HashCode(a[0])
	})
	vm.Register("java/lang/Object", "toString", "()"+stringDesc, func(vm *VM, a []any) (any, error) {
		return vm.String(a[0])
	})
	vm.Register("java/lang/Object", "getClass", "()Ljava/lang/Class;", func(vm *VM, a []any) (any, error) {
		return vm.classRef(vm.ClassOf(a[0])), nil
	})
	vm.Register("java/lang/Class", "getName", "()"+stringDesc, func(_ *VM, a []any) (any, error) {
		return strings.ReplaceAll(a[0].(*ClassRef).Name, "/", "."), nil
	})
	vm.Register("java/lang/Class", "getSimpleName", "()"+stringDesc, func(vm *VM, a []any) (any, error) {
		name := a[0].(*ClassRef).Name
		if c, ok := vm.classes[name]; ok {
			for _, ic := range c.InnerClasses {
				if ic.Name == name {
					return ic.InnerName, nil
				}
			}
		}
		name = name[strings.LastIndexByte(name, '/')+1:]
		return name[strings.LastIndexByte(name, '$')+1:], nil
	})
}

func installThrowable(vm *VM) {
	const t = "java/lang/Throwable"
	vm.Register(t, "<init>", "()V", func(*VM, []any) (any, error) { return nil, nil })
	vm.Register(t, "<init>", "("+stringDesc+")V", func(_ *VM, a []any) (any, error) {
		a[0].(*Object).Fields["message"] = a[1]
		return nil, nil
	})
	vm.Register(t, "<init>", "("+stringDesc+"Ljava/lang/Throwable;)V", func(_ *VM, a []any) (any, error) {
		o := a[0].(*Object)
		o.Fields["message"], o.Fields["cause"] = a[1], a[2]
		return nil, nil
	})
	vm.Register(t, "getMessage", "()"+stringDesc, func(_ *VM, a []any) (any, error) {
		return a[0].(*Object).Fields["message"], nil
	})
}

// units returns the UTF-16 code units of s.
func units(s string) []uint16 { return utf16.Encode([]rune(s)) }

func installString(vm *VM) {
	const s = "java/lang/String"
	vm.Register(s, "length", "()I", func(_ *VM, a []any) (any, error) {
		return int32(len(units(a[0].(string)))), nil
	})
	vm.Register(s, "isEmpty", "()Z", func(_ *VM, a []any) (any, error) {
		return boolInt(a[0].(string) == ""), nil
	})
	vm.Register(s, "charAt", "(I)C", func(vm *VM, a []any) (any, error) {
		u := units(a[0].(string))
		i := a[1].(int32)
		if i < 0 || int(i) >= len(u) {
			return nil, vm.Throw("java/lang/StringIndexOutOfBoundsException", fmt.Sprintf("index %d, length %d", i, len(u)))
		}
		return int32(u[i]), nil
	})
	vm.Register(s, "codePointAt", "(I)I", func(vm *VM, a []any) (any, error) {
		u := units(a[0].(string))
		i := a[1].(int32)
		if i < 0 || int(i) >= len(u) {
			return nil, vm.Throw("java/lang/StringIndexOutOfBoundsException", fmt.Sprintf("index %d, length %d", i, len(u)))
		}
		if utf16.IsSurrogate(rune(u[i])) && int(i)+1 < len(u) {
			if r := utf16.DecodeRune(rune(u[i]), rune(u[i+1])); r != unicode.ReplacementChar {
				return int32(r), nil
			}
		}
		return int32(u[i]), nil
	})
	subSequence := func(vm *VM, a []any) (any, error) {
		str, err := vm.String(a[0])
		if err != nil {
			return nil, err
		}
		u := units(str)
		from, to := a[1].(int32), a[2].(int32)
		if from < 0 || to > int32(len(u)) || from > to {
			return nil, vm.Throw("java/lang/StringIndexOutOfBoundsException",
				fmt.Sprintf("begin %d, end %d, length %d", from, to, len(u)))
		}
		return string(utf16.Decode(u[from:to])), nil
	}
	vm.Register(s, "subSequence", "(II)Ljava/lang/CharSequence;", subSequence)
	vm.Register("java/lang/CharSequence", "subSequence", "(II)Ljava/lang/CharSequence;", subSequence)
	vm.Register("java/lang/CharSequence", "toString", "()"+stringDesc, func(vm *VM, a []any) (any, error) {
		return vm.String(a[0])
	})
	vm.Register(s, "substring", "(II)"+stringDesc, subSequence)
	vm.Register(s, "toString", "()"+stringDesc, func(_ *VM, a []any) (any, error) { return a[0], nil })
	vm.Register(s, "<init>", "([C)V", func(_ *VM, a []any) (any, error) {
		arr := a[1].(*Array)
		u := make([]uint16, len(arr.Elems))
		for i, e := range arr.Elems {
			u[i] = uint16(e.(int32))
		}
		return string(utf16.Decode(u)), nil
	})
	vm.Register(s, "format", "("+stringDesc+"[Ljava/lang/Object;)"+stringDesc, func(vm *VM, a []any) (any, error) {
		var args []any
		if arr, ok := a[1].(*Array); ok {
			for _, e := range arr.Elems {
				if b, ok := e.(*Object); ok {
					if box, ok := b.Native.(*Box); ok {
						args = append(args, box.Value)
						continue
					}
				}
				args = append(args, e)
			}
		}
		return fmt.Sprintf(a[0].(string), args...), nil
	})
}

func builder(v any) *strings.Builder { return v.(*Object).Native.(*strings.Builder) }

func installBuilder(vm *VM) {
	for _, class := range []string{sbClass, "java/lang/StringBuffer"} {
		vm.Register(class, "<init>", "()V", func(_ *VM, a []any) (any, error) {
			a[0].(*Object).Native = &strings.Builder{}
			return nil, nil
		})
		vm.Register(class, "<init>", "(I)V", func(_ *VM, a []any) (any, error) {
			a[0].(*Object).Native = &strings.Builder{}
			return nil, nil
		})
		vm.Register(class, "<init>", "("+stringDesc+")V", func(_ *VM, a []any) (any, error) {
			b := &strings.Builder{}
			b.WriteString(a[1].(string))
			a[0].(*Object).Native = b
			return nil, nil
		})
		vm.Register(class, "toString", "()"+stringDesc, func(_ *VM, a []any) (any, error) {
			return builder(a[0]).String(), nil
		})
		vm.Register(class, "length", "()I", func(_ *VM, a []any) (any, error) {
			return int32(len(units(builder(a[0]).String()))), nil
		})
		ret := ")L" + class + ";"
		for _, d := range []string{"I", "J", "F", "D", "Z", "C", stringDesc, objectDesc, "Ljava/lang/CharSequence;", "Ljava/lang/StringBuffer;"} {
			d := d
			vm.Register(class, "append", "("+d+ret, func(vm *VM, a []any) (any, error) {
				s, err := vm.format(a[1], d)
				if err != nil {
					return nil, err
				}
				builder(a[0]).WriteString(s)
				return a[0], nil
			})
		}
	}
}

// format renders v of type desc the way String.valueOf does.
func (vm *VM) format(v any, desc string) (string, error) {
	switch desc {
	case "Z":
		return strconv.FormatBool(v.(int32) != 0), nil
	case "C":
		return string(utf16.Decode([]uint16{uint16(v.(int32))})), nil
	}
	return vm.String(v)
}

func javaFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e7:
		return strconv.FormatFloat(f, 'f', 1, bits)
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

func box(class string, v any) *Object {
	return &Object{Class: class, Fields: map[string]any{}, Native: &Box{Value: v}}
}

func installNumbers(vm *VM) {
	static := func(owner, name, desc string, fn func(a []any) any) {
		vm.Register(owner, name, desc, func(_ *VM, a []any) (any, error) { return fn(a), nil })
	}
	for class, desc := range map[string]string{
		"java/lang/Integer": "I", "java/lang/Long": "J", "java/lang/Boolean": "Z",
		"java/lang/Character": "C", "java/lang/Float": "F", "java/lang/Double": "D",
		"java/lang/Byte": "B", "java/lang/Short": "S",
	} {
		class, desc := class, desc
		static(class, "valueOf", "("+desc+")L"+class+";", func(a []any) any { return box(class, a[0]) })
		static(class, "hashCode", "("+desc+")I", func(a []any) any { return primitiveHash(a[0], desc) })
	}
	static("java/lang/Integer", "intValue", "()I", func(a []any) any { return a[0].(*Object).Native.(*Box).Value })
	static("java/lang/Long", "longValue", "()J", func(a []any) any { return a[0].(*Object).Native.(*Box).Value })
	static("java/lang/Integer", "signum", "(I)I", func(a []any) any { return cmp(a[0].(int32), 0) })
	static("java/lang/Integer", "toString", "(I)"+stringDesc, func(a []any) any {
		return strconv.FormatInt(int64(a[0].(int32)), 10)
	})
	static("java/lang/Float", "compare", "(FF)I", func(a []any) any {
		return floatCompare(float64(a[0].(float32)), float64(a[1].(float32)))
	})
	static("java/lang/Double", "compare", "(DD)I", func(a []any) any {
		return floatCompare(a[0].(float64), a[1].(float64))
	})
	static("java/lang/Math", "ceil", "(D)D", func(a []any) any { return math.Ceil(a[0].(float64)) })
	static("java/lang/Character", "isWhitespace", "(I)Z", func(a []any) any { return boolInt(isJavaWhitespace(rune(a[0].(int32)))) })
	static("java/lang/Character", "charCount", "(I)I", func(a []any) any {
		if a[0].(int32) >= 0x10000 {
			return int32(2)
		}
		return int32(1)
	})
	static("java/lang/Character", "toChars", "(I)[C", func(a []any) any {
		u := utf16.Encode([]rune{rune(a[0].(int32))})
		arr := &Array{Desc: "[C", Elems: make([]any, len(u))}
		for i, c := range u {
			arr.Elems[i] = int32(c)
		}
		return arr
	})

	parse := func(owner, name, ret string, bits int, unsigned bool) {
		vm.Register(owner, name, "("+stringDesc+"I)"+ret, func(vm *VM, a []any) (any, error) {
			s, radix := a[0].(string), int(a[1].(int32))
			var (
				v   int64
				err error
			)
			if unsigned {
				var u uint64
				u, err = strconv.ParseUint(strings.TrimPrefix(s, "+"), radix, bits)
				v = int64(u)
			} else {
				v, err = strconv.ParseInt(s, radix, bits)
			}
			if err != nil || s == "" {
				return nil, vm.Throw("java/lang/NumberFormatException", "For input string: \""+s+"\"")
			}
			if bits == 32 {
				return int32(v), nil
			}
			return v, nil
		})
	}
	parse("java/lang/Integer", "parseInt", "I", 32, false)
	parse("java/lang/Integer", "parseUnsignedInt", "I", 32, true)
	parse("java/lang/Long", "parseLong", "J", 64, false)
	parse("java/lang/Long", "parseUnsignedLong", "J", 64, true)
}

func floatCompare(a, b float64) int32 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	na, nb := math.IsNaN(a), math.IsNaN(b)
	switch {
	case na && nb:
		return 0
	case na:
		return 1
	case nb:
		return -1
	}
	return cmp(int64(math.Float64bits(a)), int64(math.Float64bits(b)))
}

func primitiveHash(v any, desc string) int32 {
	switch desc {
	case "J":
		l := v.(int64)
		return int32(l ^ int64(uint64(l)>>32))
	case "Z":
		if v.(int32) != 0 {
			return 1231
		}
		return 1237
	case "F":
		return int32(math.Float32bits(v.(float32)))
	case "D":
		bits := math.Float64bits(v.(float64))
		return int32(bits ^ bits>>32)
	}
	return v.(int32)
}

// isJavaWhitespace follows Character.isWhitespace.
func isJavaWhitespace(r rune) bool {
	switch r {
	case '\u00A0', '\u2007', '\u202F':
		return false
	case '\t', '\n', '\u000B', '\f', '\r', '\u001C', '\u001D', '\u001E', '\u001F':
		return true
	}
	return unicode.In(r, unicode.Zs, unicode.Zl, unicode.Zp)
}

func installObjects(vm *VM) {
	const o = "java/util/Objects"
	vm.Register(o, "requireNonNull", "("+objectDesc+")"+objectDesc, func(vm *VM, a []any) (any, error) {
		if a[0] == nil {
			return nil, vm.Throw("java/lang/NullPointerException", "")
		}
		return a[0], nil
	})
	vm.Register(o, "requireNonNull", "("+objectDesc+stringDesc+")"+objectDesc, func(vm *VM, a []any) (any, error) {
		if a[0] == nil {
			msg, _ := a[1].(string)
			return nil, vm.Throw("java/lang/NullPointerException", msg)
		}
		return a[0], nil
	})
	vm.Register(o, "equals", "("+objectDesc+objectDesc+")Z", func(vm *VM, a []any) (any, error) {
		if a[0] == nil || a[1] == nil {
			return boolInt(a[0] == a[1]), nil
		}
		eq, err := vm.Equals(a[0], a[1])
		return boolInt(eq), err
	})
	vm.Register(o, "hashCode", "("+objectDesc+")I", func(vm *VM, a []any) (any, error) {
		if a[0] == nil {
			return int32(0), nil
		}
		return vm.HashCode(a[0])
	})
}

// Equals calls equals on a, interpreting it when a's class defines it.
func (vm *VM) Equals(a, b any) (bool, error) {
	if a == nil {
		return false, vm.Throw("java/lang/NullPointerException", "")
	}
	if o, ok := a.(*Object); ok && o.Native == nil {
		if c, m := vm.findMethod(o.Class, "equals", "("+objectDesc+")Z"); c != nil {
			r, err := vm.run(c, m, []any{a, b})
			if err != nil {
				return false, err
			}
			return r.(int32) != 0, nil
		}
		return a == b, nil
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y, nil
	case *Object:
		y, ok := b.(*Object)
		if !ok {
			return false, nil
		}
		switch xs := x.Native.(type) {
		case *Box:
			ys, ok := y.Native.(*Box)
			return ok && x.Class == y.Class && xs.Value == ys.Value, nil
		case *List:
			ys, ok := y.Native.(*List)
			if !ok || len(xs.Elems) != len(ys.Elems) {
				return false, nil
			}
			for i := range xs.Elems {
				if eq, err := vm.nullableEquals(xs.Elems[i], ys.Elems[i]); err != nil || !eq {
					return false, err
				}
			}
			return true, nil
		case *Entry:
			ys, ok := y.Native.(*Entry)
			if !ok {
				return false, nil
			}
			k, err := vm.nullableEquals(xs.Key, ys.Key)
			if err != nil || !k {
				return false, err
			}
			return vm.nullableEquals(xs.Value, ys.Value)
		}
	}
	return a == b, nil
}

func (vm *VM) nullableEquals(a, b any) (bool, error) {
	if a == nil || b == nil {
		return a == b, nil
	}
	return vm.Equals(a, b)
}

// HashCode calls hashCode on v.
func (vm *VM) HashCode(v any) (int32, error) {
	switch x := v.(type) {
	case string:
		var h int32
		for _, u := range units(x) {
			h = 31*h + int32(u)
		}
		return h, nil
	case *Object:
		if x.Native == nil {
			if c, m := vm.findMethod(x.Class, "hashCode", "()I"); c != nil {
				r, err := vm.run(c, m, []any{v})
				if err != nil {
					return 0, err
				}
				return r.(int32), nil
			}
		}
		if b, ok := x.Native.(*Box); ok {
			return primitiveHash(b.Value, boxDesc(x.Class)), nil
		}
		id, ok := vm.ids[x]
		if !ok {
			id = int32(len(vm.ids) + 1)
			vm.ids[x] = id
		}
		return id, nil
	}
	return 0, nil
}

func boxDesc(class string) string {
	switch class {
	case "java/lang/Long":
		return "J"
	case "java/lang/Boolean":
		return "Z"
	case "java/lang/Character":
		return "C"
	case "java/lang/Float":
		return "F"
	case "java/lang/Double":
		return "D"
	}
	return "I"
}

// String calls toString on v, rendering null as "null".
func (vm *VM) String(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return x, nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float32:
		return javaFloat(float64(x), 32), nil
	case float64:
		return javaFloat(x, 64), nil
	case *ClassRef:
		return "class " + strings.ReplaceAll(x.Name, "/", "."), nil
	case *Array:
		return fmt.Sprintf("%s@%p", x.Desc, x), nil
	case *Object:
		switch n := x.Native.(type) {
		case nil:
			if c, m := vm.findMethod(x.Class, "toString", "()"+stringDesc); c != nil {
				r, err := vm.run(c, m, []any{v})
				if err != nil {
					return "", err
				}
				return vm.String(r)
			}
			h, _ := vm.HashCode(x)
			return fmt.Sprintf("%s@%x", strings.ReplaceAll(x.Class, "/", "."), h), nil
		case *Box:
			return vm.format(n.Value, boxDesc(x.Class))
		case *strings.Builder:
			return n.String(), nil
		case *List:
			return vm.join(n.Elems)
		case *Set:
			return vm.join(n.Elems)
		case *Entry:
			k, err := vm.String(n.Key)
			if err != nil {
				return "", err
			}
			val, err := vm.String(n.Value)
			return k + "=" + val, err
		case *Map:
			parts := make([]any, len(n.Keys))
			for i := range n.Keys {
				parts[i] = &Object{Class: "java/util/AbstractMap$SimpleImmutableEntry", Native: &Entry{n.Keys[i], n.Values[i]}}
			}
			s, err := vm.join(parts)
			return "{" + s[1:len(s)-1] + "}", err
		}
	}
	return fmt.Sprint(v), nil
}

func (vm *VM) join(elems []any) (string, error) {
	parts := make([]string, len(elems))
	for i, e := range elems {
		s, err := vm.String(e)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}
