package classfile

import (
	"fmt"
	"math"
)

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

type cpEntry struct {
	tag  byte
	str  string // Utf8
	num  uint64 // Integer, Float, Long, Double raw bits
	ref1 uint16
	ref2 uint16
	kind byte // MethodHandle reference kind
}

type constantPool struct {
	entries []cpEntry // entries[0] unused, wide constants followed by an empty slot
	index   map[string]uint16
}

type bootstrapMethod struct {
	handle Handle
	args   []any
}

func newConstantPool() *constantPool {
	return &constantPool{entries: make([]cpEntry, 1), index: make(map[string]uint16)}
}

func (p *constantPool) count() int { return len(p.entries) }

func (p *constantPool) entry(i uint16, tags ...byte) (cpEntry, error) {
	if i == 0 || int(i) >= len(p.entries) {
		return cpEntry{}, fmt.Errorf("%w: constant pool index %d out of range", ErrMalformedClass, i)
	}
	e := p.entries[i]
	for _, t := range tags {
		if e.tag == t {
			return e, nil
		}
	}
	return cpEntry{}, fmt.Errorf("%w: constant pool index %d has tag %d, want %v", ErrMalformedClass, i, e.tag, tags)
}

func (p *constantPool) utf8(i uint16) (string, error) {
	e, err := p.entry(i, tagUtf8)
	return e.str, err
}

// optUtf8 resolves a possibly zero utf8 index.
func (p *constantPool) optUtf8(i uint16) (string, error) {
	if i == 0 {
		return "", nil
	}
	return p.utf8(i)
}

func (p *constantPool) className(i uint16) (string, error) {
	e, err := p.entry(i, tagClass)
	if err != nil {
		return "", err
	}
	return p.utf8(e.ref1)
}

func (p *constantPool) optClassName(i uint16) (string, error) {
	if i == 0 {
		return "", nil
	}
	return p.className(i)
}

func (p *constantPool) nameAndType(i uint16) (string, string, error) {
	e, err := p.entry(i, tagNameAndType)
	if err != nil {
		return "", "", err
	}
	name, err := p.utf8(e.ref1)
	if err != nil {
		return "", "", err
	}
	desc, err := p.utf8(e.ref2)
	return name, desc, err
}

// memberRef resolves a Fieldref, Methodref or InterfaceMethodref.
func (p *constantPool) memberRef(i uint16) (owner, name, desc string, itf bool, err error) {
	e, err := p.entry(i, tagFieldref, tagMethodref, tagInterfaceMethodref)
	if err != nil {
		return
	}
	if owner, err = p.className(e.ref1); err != nil {
		return
	}
	name, desc, err = p.nameAndType(e.ref2)
	itf = e.tag == tagInterfaceMethodref
	return
}

func (p *constantPool) handle(i uint16) (Handle, error) {
	e, err := p.entry(i, tagMethodHandle)
	if err != nil {
		return Handle{}, err
	}
	owner, name, desc, itf, err := p.memberRef(e.ref1)
	if err != nil {
		return Handle{}, err
	}
	return Handle{Kind: e.kind, Owner: owner, Name: name, Desc: desc, Interface: itf}, nil
}

// constant resolves a loadable constant. bsms resolves CONSTANT_Dynamic bootstraps.
func (p *constantPool) constant(i uint16, bsms []bootstrapMethod) (any, error) {
	e, err := p.entry(i, tagInteger, tagFloat, tagLong, tagDouble, tagString, tagClass,
		tagMethodHandle, tagMethodType, tagDynamic)
	if err != nil {
		return nil, err
	}
	switch e.tag {
	case tagInteger:
		return int32(uint32(e.num)), nil
	case tagFloat:
		return math.Float32frombits(uint32(e.num)), nil
	case tagLong:
		return int64(e.num), nil
	case tagDouble:
		return math.Float64frombits(e.num), nil
	case tagString:
		return p.utf8(e.ref1)
	case tagClass:
		name, err := p.utf8(e.ref1)
		if err != nil {
			return nil, err
		}
		return ObjectType(name), nil
	case tagMethodHandle:
		return p.handle(i)
	case tagMethodType:
		desc, err := p.utf8(e.ref1)
		return MethodType(desc), err
	default:
		name, desc, err := p.nameAndType(e.ref2)
		if err != nil {
			return nil, err
		}
		if int(e.ref1) >= len(bsms) {
			return nil, fmt.Errorf("%w: bootstrap method %d out of range", ErrMalformedClass, e.ref1)
		}
		bsm := bsms[e.ref1]
		return &ConstantDynamic{Name: name, Desc: desc, Bootstrap: bsm.handle, Args: bsm.args}, nil
	}
}

// key returns the deduplication key of entry i.
func (p *constantPool) key(i uint16) string {
	e := p.entries[i]
	switch e.tag {
	case tagUtf8:
		return "1:" + e.str
	case tagInteger, tagFloat, tagLong, tagDouble:
		return fmt.Sprintf("%d:%x", e.tag, e.num)
	case tagClass, tagString, tagMethodType, tagModule, tagPackage:
		return fmt.Sprintf("%d:%s", e.tag, p.key(e.ref1))
	case tagMethodHandle:
		return fmt.Sprintf("15:%d:%s", e.kind, p.key(e.ref1))
	case tagNameAndType:
		return "12:" + p.key(e.ref1) + ":" + p.key(e.ref2)
	case tagDynamic, tagInvokeDynamic:
		// bootstrap indices stay raw
		return fmt.Sprintf("%d:%d:%s", e.tag, e.ref1, p.key(e.ref2))
	default:
		return fmt.Sprintf("%d:%s:%s", e.tag, p.key(e.ref1), p.key(e.ref2))
	}
}

// clone copies the pool and indexes every entry for reuse by the writer.
func (p *constantPool) clone() *constantPool {
	c := &constantPool{
		entries: append([]cpEntry(nil), p.entries...),
		index:   make(map[string]uint16, len(p.entries)),
	}
	for i := 1; i < len(c.entries); i++ {
		if c.entries[i].tag == 0 {
			continue
		}
		k := c.key(uint16(i))
		if _, ok := c.index[k]; !ok {
			c.index[k] = uint16(i)
		}
	}
	return c
}

// Writer side.

func (p *constantPool) put(e cpEntry) uint16 {
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, e)
	if e.tag == tagLong || e.tag == tagDouble {
		p.entries = append(p.entries, cpEntry{})
	}
	p.index[p.key(idx)] = idx
	return idx
}

func (p *constantPool) lookupOrPut(e cpEntry, k string) uint16 {
	if idx, ok := p.index[k]; ok {
		return idx
	}
	return p.put(e)
}

func (p *constantPool) addUtf8(s string) uint16 {
	return p.lookupOrPut(cpEntry{tag: tagUtf8, str: s}, "1:"+s)
}

func (p *constantPool) addRef1(tag byte, s string) uint16 {
	u := p.addUtf8(s)
	return p.lookupOrPut(cpEntry{tag: tag, ref1: u}, fmt.Sprintf("%d:1:%s", tag, s))
}

func (p *constantPool) addClass(name string) uint16 { return p.addRef1(tagClass, name) }

func (p *constantPool) addString(s string) uint16 { return p.addRef1(tagString, s) }

func (p *constantPool) addMethodType(desc string) uint16 { return p.addRef1(tagMethodType, desc) }

func (p *constantPool) addNum(tag byte, bits uint64) uint16 {
	return p.lookupOrPut(cpEntry{tag: tag, num: bits}, fmt.Sprintf("%d:%x", tag, bits))
}

func (p *constantPool) addNameAndType(name, desc string) uint16 {
	n, d := p.addUtf8(name), p.addUtf8(desc)
	return p.lookupOrPut(cpEntry{tag: tagNameAndType, ref1: n, ref2: d}, "12:1:"+name+":1:"+desc)
}

func (p *constantPool) addMember(tag byte, owner, name, desc string) uint16 {
	c := p.addClass(owner)
	nt := p.addNameAndType(name, desc)
	e := cpEntry{tag: tag, ref1: c, ref2: nt}
	return p.lookupOrPut(e, fmt.Sprintf("%d:%s:%s", tag, p.key(c), p.key(nt)))
}

func (p *constantPool) addField(owner, name, desc string) uint16 {
	return p.addMember(tagFieldref, owner, name, desc)
}

func (p *constantPool) addMethod(owner, name, desc string, itf bool) uint16 {
	if itf {
		return p.addMember(tagInterfaceMethodref, owner, name, desc)
	}
	return p.addMember(tagMethodref, owner, name, desc)
}

func (p *constantPool) addHandle(h Handle) uint16 {
	var ref uint16
	if h.Kind <= H_PUTSTATIC {
		ref = p.addField(h.Owner, h.Name, h.Desc)
	} else {
		ref = p.addMethod(h.Owner, h.Name, h.Desc, h.Interface)
	}
	return p.lookupOrPut(cpEntry{tag: tagMethodHandle, kind: h.Kind, ref1: ref},
		fmt.Sprintf("15:%d:%s", h.Kind, p.key(ref)))
}

func (p *constantPool) addIndy(tag byte, bsm uint16, name, desc string) uint16 {
	nt := p.addNameAndType(name, desc)
	return p.lookupOrPut(cpEntry{tag: tag, ref1: bsm, ref2: nt},
		fmt.Sprintf("%d:%d:%s", tag, bsm, p.key(nt)))
}
