package jvmtest

import "fmt"

const (
	collectionDesc = "Ljava/util/Collection;"
	mapDesc        = "Ljava/util/Map;"
	fixedList      = "java/util/Arrays$ArrayList"
)

// Elements returns the elements of an emulated List or Set, in order.
func Elements(v any) ([]any, bool) {
	o, ok := v.(*Object)
	if !ok {
		return nil, false
	}
	switch n := o.Native.(type) {
	case *List:
		return n.Elems, true
	case *Set:
		return n.Elems, true
	}
	return nil, false
}

// Entries returns the state of an emulated Map.
func Entries(v any) (*Map, bool) {
	o, ok := v.(*Object)
	if !ok {
		return nil, false
	}
	m, ok := o.Native.(*Map)
	return m, ok
}

// ReadOnly reports whether v is an unmodifiable collection view.
func ReadOnly(v any) bool {
	o, ok := v.(*Object)
	return ok && o.ReadOnly
}

func (vm *VM) indexOf(elems []any, v any) (int, error) {
	for i, e := range elems {
		eq, err := vm.nullableEquals(v, e)
		if err != nil {
			return 0, err
		}
		if eq {
			return i, nil
		}
	}
	return -1, nil
}

func (vm *VM) mutable(v any) (*Object, error) {
	o := v.(*Object)
	if o.ReadOnly {
		return nil, vm.Throw("java/lang/UnsupportedOperationException", "")
	}
	return o, nil
}

func (vm *VM) outOfBounds(i int32, n int) error {
	return vm.Throw("java/lang/IndexOutOfBoundsException", fmt.Sprintf("Index %d out of bounds for length %d", i, n))
}

func newList(class string, elems []any, readOnly bool) *Object {
	return &Object{Class: class, Fields: map[string]any{}, Native: &List{Elems: elems}, ReadOnly: readOnly}
}

func newSet(class string, readOnly bool) *Object {
	return &Object{Class: class, Fields: map[string]any{}, Native: &Set{}, ReadOnly: readOnly}
}

func newMap(class string, readOnly bool) *Object {
	return &Object{Class: class, Fields: map[string]any{}, Native: &Map{}, ReadOnly: readOnly}
}

func (vm *VM) setAdd(s *Set, v any) (bool, error) {
	i, err := vm.indexOf(s.Elems, v)
	if err != nil || i >= 0 {
		return false, err
	}
	s.Elems = append(s.Elems, v)
	return true, nil
}

func (vm *VM) mapPut(m *Map, k, v any) (any, error) {
	i, err := vm.indexOf(m.Keys, k)
	if err != nil {
		return nil, err
	}
	if i >= 0 {
		old := m.Values[i]
		m.Values[i] = v
		return old, nil
	}
	m.Keys = append(m.Keys, k)
	m.Values = append(m.Values, v)
	return nil, nil
}

func installCollections(vm *VM) {
	for _, c := range []string{"java/util/LinkedHashSet"} {
		vm.Extends(c, "java/util/HashSet")
	}
	vm.Extends("java/util/LinkedHashMap", "java/util/HashMap")
	vm.Extends("java/util/WeakHashMap", "java/util/Map")

	installListNatives(vm)
	installSetNatives(vm)
	installMapNatives(vm)
	installIterator(vm)

	const cs = "java/util/Collections"
	vm.Register(cs, "emptyList", "()Ljava/util/List;", func(*VM, []any) (any, error) {
		return newList("java/util/Collections$UnmodifiableList", nil, true), nil
	})
	vm.Register(cs, "singletonList", "("+objectDesc+")Ljava/util/List;", func(_ *VM, a []any) (any, error) {
		return newList("java/util/Collections$UnmodifiableList", []any{a[0]}, true), nil
	})
	vm.Register(cs, "unmodifiableList", "(Ljava/util/List;)Ljava/util/List;", func(vm *VM, a []any) (any, error) {
		if a[0] == nil {
			return nil, vm.Throw("java/lang/NullPointerException", "")
		}
		src := a[0].(*Object)
		return &Object{Class: "java/util/Collections$UnmodifiableList", Fields: map[string]any{}, Native: src.Native, ReadOnly: true}, nil
	})
	vm.Register(cs, "emptySet", "()Ljava/util/Set;", func(*VM, []any) (any, error) {
		return newSet("java/util/Collections$UnmodifiableSet", true), nil
	})
	vm.Register(cs, "singleton", "("+objectDesc+")Ljava/util/Set;", func(_ *VM, a []any) (any, error) {
		s := newSet("java/util/Collections$UnmodifiableSet", true)
		s.Native.(*Set).Elems = []any{a[0]}
		return s, nil
	})
	vm.Register(cs, "unmodifiableSet", "(Ljava/util/Set;)Ljava/util/Set;", func(vm *VM, a []any) (any, error) {
		if a[0] == nil {
			return nil, vm.Throw("java/lang/NullPointerException", "")
		}
		return &Object{Class: "java/util/Collections$UnmodifiableSet", Fields: map[string]any{}, Native: a[0].(*Object).Native, ReadOnly: true}, nil
	})
	vm.Register(cs, "emptyMap", "()"+mapDesc, func(*VM, []any) (any, error) {
		return newMap("java/util/Collections$UnmodifiableMap", true), nil
	})
	vm.Register(cs, "singletonMap", "("+objectDesc+objectDesc+")"+mapDesc, func(_ *VM, a []any) (any, error) {
		m := newMap("java/util/Collections$UnmodifiableMap", true)
		m.Native = &Map{Keys: []any{a[0]}, Values: []any{a[1]}}
		return m, nil
	})
	vm.Register(cs, "unmodifiableMap", "("+mapDesc+")"+mapDesc, func(vm *VM, a []any) (any, error) {
		if a[0] == nil {
			return nil, vm.Throw("java/lang/NullPointerException", "")
		}
		return &Object{Class: "java/util/Collections$UnmodifiableMap", Fields: map[string]any{}, Native: a[0].(*Object).Native, ReadOnly: true}, nil
	})

	vm.Register("java/util/Arrays", "asList", "([Ljava/lang/Object;)Ljava/util/List;", func(vm *VM, a []any) (any, error) {
		if a[0] == nil {
			return nil, vm.Throw("java/lang/NullPointerException", "")
		}
		return newList(fixedList, a[0].(*Array).Elems, false), nil
	})
	vm.Register("java/util/Arrays", "copyOf", "([Ljava/lang/Object;I)[Ljava/lang/Object;", func(vm *VM, a []any) (any, error) {
		if a[0] == nil {
			return nil, vm.Throw("java/lang/NullPointerException", "")
		}
		src, n := a[0].(*Array), int(a[1].(int32))
		if n < 0 {
			return nil, vm.Throw("java/lang/NegativeArraySizeException", "")
		}
		out := &Array{Desc: src.Desc, Elems: make([]any, n)}
		copy(out.Elems, src.Elems)
		return out, nil
	})
}

func installListNatives(vm *VM) {
	const l = "java/util/List"
	for _, class := range []string{"java/util/ArrayList"} {
		vm.Register(class, "<init>", "()V", func(_ *VM, a []any) (any, error) {
			a[0].(*Object).Native = &List{}
			return nil, nil
		})
		vm.Register(class, "<init>", "(I)V", func(vm *VM, a []any) (any, error) {
			if a[1].(int32) < 0 {
				return nil, vm.Throw("java/lang/IllegalArgumentException", "Illegal Capacity")
			}
			a[0].(*Object).Native = &List{}
			return nil, nil
		})
		vm.Register(class, "<init>", "("+collectionDesc+")V", func(vm *VM, a []any) (any, error) {
			elems, ok := Elements(a[1])
			if !ok {
				return nil, vm.Throw("java/lang/NullPointerException", "")
			}
			a[0].(*Object).Native = &List{Elems: append([]any(nil), elems...)}
			return nil, nil
		})
	}
	list := func(v any) *List { return v.(*Object).Native.(*List) }
	vm.Register(l, "size", "()I", func(_ *VM, a []any) (any, error) { return int32(len(list(a[0]).Elems)), nil })
	vm.Register(l, "isEmpty", "()Z", func(_ *VM, a []any) (any, error) { return boolInt(len(list(a[0]).Elems) == 0), nil })
	vm.Register(l, "get", "(I)"+objectDesc, func(vm *VM, a []any) (any, error) {
		e, i := list(a[0]).Elems, a[1].(int32)
		if i < 0 || int(i) >= len(e) {
			return nil, vm.outOfBounds(i, len(e))
		}
		return e[i], nil
	})
	vm.Register(l, "contains", "("+objectDesc+")Z", func(vm *VM, a []any) (any, error) {
		i, err := vm.indexOf(list(a[0]).Elems, a[1])
		return boolInt(i >= 0), err
	})
	vm.Register(l, "add", "("+objectDesc+")Z", func(vm *VM, a []any) (any, error) {
		o, err := vm.mutable(a[0])
		if err != nil {
			return nil, err
		}
		if o.Class == fixedList {
			return nil, vm.Throw("java/lang/UnsupportedOperationException", "")
		}
		l := list(o)
		l.Elems = append(l.Elems, a[1])
		return int32(1), nil
	})
	vm.Register(l, "add", "(I"+objectDesc+")V", func(vm *VM, a []any) (any, error) {
		o, err := vm.mutable(a[0])
		if err != nil {
			return nil, err
		}
		if o.Class == fixedList {
			return nil, vm.Throw("java/lang/UnsupportedOperationException", "")
		}
		l, i := list(o), a[1].(int32)
		if i < 0 || int(i) > len(l.Elems) {
			return nil, vm.outOfBounds(i, len(l.Elems))
		}
		l.Elems = append(l.Elems[:i], append([]any{a[2]}, l.Elems[i:]...)...)
		return nil, nil
	})
	vm.Register(l, "remove", "(I)"+objectDesc, func(vm *VM, a []any) (any, error) {
		o, err := vm.mutable(a[0])
		if err != nil {
			return nil, err
		}
		if o.Class == fixedList {
			return nil, vm.Throw("java/lang/UnsupportedOperationException", "")
		}
		l, i := list(o), a[1].(int32)
		if i < 0 || int(i) >= len(l.Elems) {
			return nil, vm.outOfBounds(i, len(l.Elems))
		}
		old := l.Elems[i]
		l.Elems = append(l.Elems[:i], l.Elems[i+1:]...)
		return old, nil
	})
	vm.Register(l, "set", "(I"+objectDesc+")"+objectDesc, func(vm *VM, a []any) (any, error) {
		o, err := vm.mutable(a[0])
		if err != nil {
			return nil, err
		}
		l, i := list(o), a[1].(int32)
		if i < 0 || int(i) >= len(l.Elems) {
			return nil, vm.outOfBounds(i, len(l.Elems))
		}
		old := l.Elems[i]
		l.Elems[i] = a[2]
		return old, nil
	})
}

func installSetNatives(vm *VM) {
	const s = "java/util/Set"
	for _, class := range []string{"java/util/HashSet", "java/util/LinkedHashSet"} {
		vm.Register(class, "<init>", "()V", func(_ *VM, a []any) (any, error) {
			a[0].(*Object).Native = &Set{}
			return nil, nil
		})
		vm.Register(class, "<init>", "(I)V", func(vm *VM, a []any) (any, error) {
			if a[1].(int32) < 0 {
				return nil, vm.Throw("java/lang/IllegalArgumentException", "Illegal initial capacity")
			}
			a[0].(*Object).Native = &Set{}
			return nil, nil
		})
		vm.Register(class, "<init>", "("+collectionDesc+")V", func(vm *VM, a []any) (any, error) {
			elems, ok := Elements(a[1])
			if !ok {
				return nil, vm.Throw("java/lang/NullPointerException", "")
			}
			set := &Set{}
			for _, e := range elems {
				if _, err := vm.setAdd(set, e); err != nil {
					return nil, err
				}
			}
			a[0].(*Object).Native = set
			return nil, nil
		})
	}
	set := func(v any) *Set { return v.(*Object).Native.(*Set) }
	vm.Register(s, "size", "()I", func(_ *VM, a []any) (any, error) { return int32(len(set(a[0]).Elems)), nil })
	vm.Register(s, "isEmpty", "()Z", func(_ *VM, a []any) (any, error) { return boolInt(len(set(a[0]).Elems) == 0), nil })
	vm.Register(s, "contains", "("+objectDesc+")Z", func(vm *VM, a []any) (any, error) {
		i, err := vm.indexOf(set(a[0]).Elems, a[1])
		return boolInt(i >= 0), err
	})
	vm.Register(s, "add", "("+objectDesc+")Z", func(vm *VM, a []any) (any, error) {
		o, err := vm.mutable(a[0])
		if err != nil {
			return nil, err
		}
		added, err := vm.setAdd(set(o), a[1])
		return boolInt(added), err
	})
}

func installMapNatives(vm *VM) {
	const m = "java/util/Map"
	for _, class := range []string{"java/util/HashMap", "java/util/LinkedHashMap", "java/util/WeakHashMap"} {
		vm.Register(class, "<init>", "()V", func(_ *VM, a []any) (any, error) {
			a[0].(*Object).Native = &Map{}
			return nil, nil
		})
		vm.Register(class, "<init>", "(I)V", func(vm *VM, a []any) (any, error) {
			if a[1].(int32) < 0 {
				return nil, vm.Throw("java/lang/IllegalArgumentException", "Illegal initial capacity")
			}
			a[0].(*Object).Native = &Map{}
			return nil, nil
		})
		vm.Register(class, "<init>", "("+mapDesc+")V", func(vm *VM, a []any) (any, error) {
			src, ok := Entries(a[1])
			if !ok {
				return nil, vm.Throw("java/lang/NullPointerException", "")
			}
			a[0].(*Object).Native = &Map{
				Keys:   append([]any(nil), src.Keys...),
				Values: append([]any(nil), src.Values...),
			}
			return nil, nil
		})
	}
	get := func(v any) *Map { return v.(*Object).Native.(*Map) }
	vm.Register(m, "size", "()I", func(_ *VM, a []any) (any, error) { return int32(len(get(a[0]).Keys)), nil })
	vm.Register(m, "isEmpty", "()Z", func(_ *VM, a []any) (any, error) { return boolInt(len(get(a[0]).Keys) == 0), nil })
	vm.Register(m, "containsKey", "("+objectDesc+")Z", func(vm *VM, a []any) (any, error) {
		i, err := vm.indexOf(get(a[0]).Keys, a[1])
		return boolInt(i >= 0), err
	})
	vm.Register(m, "get", "("+objectDesc+")"+objectDesc, func(vm *VM, a []any) (any, error) {
		mp := get(a[0])
		i, err := vm.indexOf(mp.Keys, a[1])
		if err != nil || i < 0 {
			return nil, err
		}
		return mp.Values[i], nil
	})
	vm.Register(m, "put", "("+objectDesc+objectDesc+")"+objectDesc, func(vm *VM, a []any) (any, error) {
		o, err := vm.mutable(a[0])
		if err != nil {
			return nil, err
		}
		return vm.mapPut(get(o), a[1], a[2])
	})

	const e = "java/util/Map$Entry"
	vm.Register("java/util/AbstractMap$SimpleImmutableEntry", "<init>", "("+objectDesc+objectDesc+")V", func(_ *VM, a []any) (any, error) {
		a[0].(*Object).Native = &Entry{Key: a[1], Value: a[2]}
		return nil, nil
	})
	vm.Register(e, "getKey", "()"+objectDesc, func(_ *VM, a []any) (any, error) {
		return a[0].(*Object).Native.(*Entry).Key, nil
	})
	vm.Register(e, "getValue", "()"+objectDesc, func(_ *VM, a []any) (any, error) {
		return a[0].(*Object).Native.(*Entry).Value, nil
	})
}

// iterator is the state of emulated java/util/Iterator instances.
type iterator struct {
	elems []any
	next  int
}

func installIterator(vm *VM) {
	const it = "java/util/Iterator"
	vm.Extends("java/util/Collection", "java/lang/Iterable")
	vm.Register("java/util/Collection", "iterator", "()Ljava/util/Iterator;", func(vm *VM, a []any) (any, error) {
		elems, _ := Elements(a[0])
		return &Object{Class: it, Fields: map[string]any{}, Native: &iterator{elems: elems}}, nil
	})
	vm.Register(it, "hasNext", "()Z", func(_ *VM, a []any) (any, error) {
		s := a[0].(*Object).Native.(*iterator)
		return boolInt(s.next < len(s.elems)), nil
	})
	vm.Register(it, "next", "()"+objectDesc, func(vm *VM, a []any) (any, error) {
		s := a[0].(*Object).Native.(*iterator)
		if s.next >= len(s.elems) {
			return nil, vm.Throw("java/util/NoSuchElementException", "")
		}
		s.next++
		return s.elems[s.next-1], nil
	})
}

// optional is the state of java/util/Optional instances; nil means empty.
type optional struct{ value any }

func installOptional(vm *VM) {
	const o = "java/util/Optional"
	const desc = "L" + o + ";"
	vm.Register(o, "of", "("+objectDesc+")"+desc, func(vm *VM, a []any) (any, error) {
		if a[0] == nil {
			return nil, vm.Throw("java/lang/NullPointerException", "")
		}
		return &Object{Class: o, Fields: map[string]any{}, Native: &optional{a[0]}}, nil
	})
	vm.Register(o, "empty", "()"+desc, func(*VM, []any) (any, error) {
		return &Object{Class: o, Fields: map[string]any{}, Native: &optional{}}, nil
	})
	vm.Register(o, "isPresent", "()Z", func(_ *VM, a []any) (any, error) {
		return boolInt(a[0].(*Object).Native.(*optional).value != nil), nil
	})
	vm.Register(o, "get", "()"+objectDesc, func(vm *VM, a []any) (any, error) {
		v := a[0].(*Object).Native.(*optional).value
		if v == nil {
			return nil, vm.Throw("java/util/NoSuchElementException", "No value present")
		}
		return v, nil
	})
}
