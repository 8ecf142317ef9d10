package classfile

import (
	"errors"
	"fmt"
	"math"
)

// ErrConstantPoolFull is recorded when an addition would exceed 65535 slots.
var ErrConstantPoolFull = errors.New("constant pool overflow")

// ConstPool is an append-only editor over a constant pool. It works on its
// own copy of the entries, so a failed edit can be dropped without touching
// the class the entries came from. Identical constants are shared.
type ConstPool struct {
	entries []ConstantPoolEntry
	index   map[string]uint16
	err     error
}

// NewConstPool returns an editor seeded with a copy of entries. An empty
// slice starts a fresh pool with the reserved slot 0.
func NewConstPool(entries []ConstantPoolEntry) *ConstPool {
	p := &ConstPool{index: make(map[string]uint16)}
	if len(entries) == 0 {
		p.entries = []ConstantPoolEntry{nil}
		return p
	}
	p.entries = append(make([]ConstantPoolEntry, 0, len(entries)+16), entries...)
	for i, e := range p.entries {
		if k, ok := p.key(e); ok {
			if _, seen := p.index[k]; !seen {
				p.index[k] = uint16(i)
			}
		}
	}
	return p
}

// Entries returns the edited pool. The slice is owned by the caller once the
// edit is committed.
func (p *ConstPool) Entries() []ConstantPoolEntry { return p.entries }

// Len returns the constant_pool_count the pool would be written with.
func (p *ConstPool) Len() int { return len(p.entries) }

// Err returns the first error recorded by an addition.
func (p *ConstPool) Err() error { return p.err }

func (p *ConstPool) key(e ConstantPoolEntry) (string, bool) {
	switch c := e.(type) {
	case *ConstantUtf8:
		return "u:" + c.Value, true
	case *ConstantInteger:
		return fmt.Sprintf("i:%d", c.Value), true
	case *ConstantFloat:
		return fmt.Sprintf("f:%x", math.Float32bits(c.Value)), true
	case *ConstantClass:
		return fmt.Sprintf("c:%d", c.NameIndex), true
	case *ConstantString:
		return fmt.Sprintf("s:%d", c.StringIndex), true
	case *ConstantNameAndType:
		return fmt.Sprintf("n:%d:%d", c.NameIndex, c.DescriptorIndex), true
	case *ConstantMethodref:
		return fmt.Sprintf("m:%d:%d", c.ClassIndex, c.NameAndTypeIndex), true
	case *ConstantInterfaceMethodref:
		return fmt.Sprintf("im:%d:%d", c.ClassIndex, c.NameAndTypeIndex), true
	case *ConstantFieldref:
		return fmt.Sprintf("fr:%d:%d", c.ClassIndex, c.NameAndTypeIndex), true
	}
	return "", false
}

func (p *ConstPool) add(e ConstantPoolEntry) uint16 {
	if p.err != nil {
		return 0
	}
	k, _ := p.key(e)
	if idx, ok := p.index[k]; ok {
		return idx
	}
	if len(p.entries) >= math.MaxUint16 {
		p.err = fmt.Errorf("%w: adding tag %d", ErrConstantPoolFull, e.Tag())
		return 0
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, e)
	p.index[k] = idx
	return idx
}

// Utf8 returns the index of a CONSTANT_Utf8 holding s.
func (p *ConstPool) Utf8(s string) uint16 {
	return p.add(&ConstantUtf8{Value: s})
}

// Integer returns the index of a CONSTANT_Integer holding v.
func (p *ConstPool) Integer(v int32) uint16 {
	return p.add(&ConstantInteger{Value: v})
}

// Class returns the index of a CONSTANT_Class for the internal name.
func (p *ConstPool) Class(internalName string) uint16 {
	return p.add(&ConstantClass{NameIndex: p.Utf8(internalName)})
}

// String returns the index of a CONSTANT_String holding s.
func (p *ConstPool) String(s string) uint16 {
	return p.add(&ConstantString{StringIndex: p.Utf8(s)})
}

// NameAndType returns the index of a CONSTANT_NameAndType.
func (p *ConstPool) NameAndType(name, descriptor string) uint16 {
	return p.add(&ConstantNameAndType{NameIndex: p.Utf8(name), DescriptorIndex: p.Utf8(descriptor)})
}

// Methodref returns the index of a CONSTANT_Methodref.
func (p *ConstPool) Methodref(class, name, descriptor string) uint16 {
	return p.add(&ConstantMethodref{ClassIndex: p.Class(class), NameAndTypeIndex: p.NameAndType(name, descriptor)})
}

// Fieldref returns the index of a CONSTANT_Fieldref.
func (p *ConstPool) Fieldref(class, name, descriptor string) uint16 {
	return p.add(&ConstantFieldref{ClassIndex: p.Class(class), NameAndTypeIndex: p.NameAndType(name, descriptor)})
}
