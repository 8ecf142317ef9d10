package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Write serializes cf in class-file format. Method Code attributes are
// re-encoded from MethodInfo.Code, so edits to the parsed code are written
// back; every other attribute is emitted as stored.
func Write(w io.Writer, cf *ClassFile) error {
	var buf bytes.Buffer
	if err := writeClass(&buf, cf); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Bytes returns the class-file encoding of cf.
func (cf *ClassFile) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeClass(&buf, cf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeClass(w *bytes.Buffer, cf *ClassFile) error {
	if len(cf.ConstantPool) > math.MaxUint16 {
		return fmt.Errorf("%w: %d entries", ErrConstantPoolFull, len(cf.ConstantPool))
	}
	put(w, uint32(classMagic))
	put(w, cf.MinorVersion)
	put(w, cf.MajorVersion)

	put(w, uint16(len(cf.ConstantPool)))
	if err := writeConstantPool(w, cf.ConstantPool); err != nil {
		return fmt.Errorf("writing constant pool: %w", err)
	}

	put(w, cf.AccessFlags)
	put(w, cf.ThisClass)
	put(w, cf.SuperClass)
	put(w, uint16(len(cf.Interfaces)))
	for _, i := range cf.Interfaces {
		put(w, i)
	}

	put(w, uint16(len(cf.Fields)))
	for _, f := range cf.Fields {
		put(w, f.AccessFlags)
		put(w, f.NameIndex)
		put(w, f.DescriptorIndex)
		writeAttributes(w, f.Attributes)
	}

	put(w, uint16(len(cf.Methods)))
	for i := range cf.Methods {
		m := &cf.Methods[i]
		put(w, m.AccessFlags)
		put(w, m.NameIndex)
		put(w, m.DescriptorIndex)
		attrs := m.Attributes
		if m.Code != nil {
			data, err := EncodeCodeAttribute(m.Code)
			if err != nil {
				return fmt.Errorf("encoding Code of method %s%s: %w", m.Name, m.Descriptor, err)
			}
			attrs = make([]AttributeInfo, len(m.Attributes))
			copy(attrs, m.Attributes)
			for j := range attrs {
				if attrs[j].Name == AttrCode {
					attrs[j].Data = data
				}
			}
		}
		writeAttributes(w, attrs)
	}

	writeAttributes(w, cf.Attributes)
	return nil
}

func writeConstantPool(w *bytes.Buffer, pool []ConstantPoolEntry) error {
	for i := 1; i < len(pool); i++ {
		entry := pool[i]
		if entry == nil {
			return fmt.Errorf("empty constant pool slot %d", i)
		}
		put(w, entry.Tag())
		switch c := entry.(type) {
		case *ConstantUtf8:
			if len(c.Value) > math.MaxUint16 {
				return fmt.Errorf("Utf8 at index %d too long: %d bytes", i, len(c.Value))
			}
			put(w, uint16(len(c.Value)))
			w.WriteString(c.Value)
		case *ConstantInteger:
			put(w, c.Value)
		case *ConstantFloat:
			put(w, math.Float32bits(c.Value))
		case *ConstantLong:
			put(w, c.Value)
			i++ // long takes 2 slots
		case *ConstantDouble:
			put(w, math.Float64bits(c.Value))
			i++ // double takes 2 slots
		case *ConstantClass:
			put(w, c.NameIndex)
		case *ConstantString:
			put(w, c.StringIndex)
		case *ConstantFieldref:
			put(w, c.ClassIndex)
			put(w, c.NameAndTypeIndex)
		case *ConstantMethodref:
			put(w, c.ClassIndex)
			put(w, c.NameAndTypeIndex)
		case *ConstantInterfaceMethodref:
			put(w, c.ClassIndex)
			put(w, c.NameAndTypeIndex)
		case *ConstantNameAndType:
			put(w, c.NameIndex)
			put(w, c.DescriptorIndex)
		case *ConstantRaw:
			w.Write(c.Data)
		default:
			return fmt.Errorf("unknown constant type %T at index %d", entry, i)
		}
	}
	return nil
}

// EncodeCodeAttribute returns the body of a Code attribute (without the
// attribute name and length header).
func EncodeCodeAttribute(c *CodeAttribute) ([]byte, error) {
	if len(c.Code) == 0 || len(c.Code) > math.MaxUint16 {
		return nil, fmt.Errorf("invalid code length %d", len(c.Code))
	}
	var buf bytes.Buffer
	put(&buf, c.MaxStack)
	put(&buf, c.MaxLocals)
	put(&buf, uint32(len(c.Code)))
	buf.Write(c.Code)
	put(&buf, uint16(len(c.ExceptionHandlers)))
	for _, h := range c.ExceptionHandlers {
		put(&buf, h.StartPC)
		put(&buf, h.EndPC)
		put(&buf, h.HandlerPC)
		put(&buf, h.CatchType)
	}
	writeAttributes(&buf, c.Attributes)
	return buf.Bytes(), nil
}

func writeAttributes(w *bytes.Buffer, attrs []AttributeInfo) {
	put(w, uint16(len(attrs)))
	for _, a := range attrs {
		put(w, a.NameIndex)
		put(w, uint32(len(a.Data)))
		w.Write(a.Data)
	}
}

// put writes a fixed-size big-endian value. Writes to a bytes.Buffer
// cannot fail.
func put(w *bytes.Buffer, v any) {
	_ = binary.Write(w, binary.BigEndian, v)
}
