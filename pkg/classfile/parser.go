package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// ParseBytes parses a .class file held in memory.
func ParseBytes(data []byte) (*ClassFile, error) {
	return Parse(bytes.NewReader(data))
}

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// classHeader is the fixed-size run that follows the constant pool.
type classHeader struct {
	AccessFlags     uint16
	ThisClass       uint16
	SuperClass      uint16
	InterfacesCount uint16
}

// memberHeader opens every field_info and method_info.
type memberHeader struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	AttributesCount uint16
}

// member is a field or method with its names resolved.
type member struct {
	memberHeader
	name, desc string
	attrs      []AttributeInfo
}

// Parse reads a .class file from the given reader and returns a ClassFile.
func Parse(r io.Reader) (*ClassFile, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("reading magic number: %w", err)
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	cf := &ClassFile{}
	var version [2]uint16
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	cf.MinorVersion, cf.MajorVersion = version[0], version[1]
	if err := CheckVersion(cf.MajorVersion, cf.MinorVersion); err != nil {
		return nil, err
	}

	cpCount, err := readCount(r, "constant pool")
	if err != nil {
		return nil, err
	}
	if cf.ConstantPool, err = parseConstantPool(r, cpCount); err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}

	var hdr classHeader
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("reading class header: %w", err)
	}
	cf.AccessFlags, cf.ThisClass, cf.SuperClass = hdr.AccessFlags, hdr.ThisClass, hdr.SuperClass
	cf.Interfaces = make([]uint16, hdr.InterfacesCount)
	if err := binary.Read(r, binary.BigEndian, cf.Interfaces); err != nil {
		return nil, fmt.Errorf("reading interfaces: %w", err)
	}

	fields, err := parseMembers(r, cf.ConstantPool, "field")
	if err != nil {
		return nil, err
	}
	cf.Fields = make([]FieldInfo, len(fields))
	for i, f := range fields {
		cf.Fields[i] = FieldInfo{
			AccessFlags:     f.AccessFlags,
			NameIndex:       f.NameIndex,
			DescriptorIndex: f.DescriptorIndex,
			Name:            f.name,
			Descriptor:      f.desc,
			Attributes:      f.attrs,
		}
	}

	methods, err := parseMembers(r, cf.ConstantPool, "method")
	if err != nil {
		return nil, err
	}
	cf.Methods = make([]MethodInfo, len(methods))
	for i, m := range methods {
		mi := MethodInfo{
			AccessFlags:     m.AccessFlags,
			NameIndex:       m.NameIndex,
			DescriptorIndex: m.DescriptorIndex,
			Name:            m.name,
			Descriptor:      m.desc,
			Attributes:      m.attrs,
		}
		for _, attr := range m.attrs {
			if attr.Name != AttrCode {
				continue
			}
			if mi.Code, err = parseCodeAttribute(attr.Data, cf.ConstantPool); err != nil {
				return nil, fmt.Errorf("parsing Code attribute for method %s: %w", m.name, err)
			}
			break
		}
		cf.Methods[i] = mi
	}

	if err := cf.parseClassAttributes(r); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}
	return cf, nil
}

func readCount(r io.Reader, what string) (uint16, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return 0, fmt.Errorf("reading %s count: %w", what, err)
	}
	return n, nil
}

// parseMembers reads a counted run of field_info or method_info.
func parseMembers(r io.Reader, pool []ConstantPoolEntry, kind string) ([]member, error) {
	count, err := readCount(r, kind+"s")
	if err != nil {
		return nil, err
	}
	out := make([]member, count)
	for i := range out {
		m := &out[i]
		if err := binary.Read(r, binary.BigEndian, &m.memberHeader); err != nil {
			return nil, fmt.Errorf("reading %s %d header: %w", kind, i, err)
		}
		if m.name, err = GetUtf8(pool, m.NameIndex); err != nil {
			return nil, fmt.Errorf("resolving %s %d name: %w", kind, i, err)
		}
		if m.desc, err = GetUtf8(pool, m.DescriptorIndex); err != nil {
			return nil, fmt.Errorf("resolving %s %d descriptor: %w", kind, i, err)
		}
		if m.attrs, err = parseAttributeInfos(r, pool, m.AttributesCount); err != nil {
			return nil, fmt.Errorf("parsing %s %s attributes: %w", kind, m.name, err)
		}
	}
	return out, nil
}

func parseAttributeInfos(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]AttributeInfo, error) {
	attrs := make([]AttributeInfo, count)
	for i := range attrs {
		var hdr struct {
			NameIndex uint16
			Length    uint32
		}
		if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
			return nil, fmt.Errorf("reading attribute %d header: %w", i, err)
		}
		data := make([]byte, hdr.Length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("reading attribute %d data: %w", i, err)
		}
		name, err := GetUtf8(pool, hdr.NameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		attrs[i] = AttributeInfo{NameIndex: hdr.NameIndex, Name: name, Data: data}
	}
	return attrs, nil
}

// parseCodeAttribute decodes a Code attribute body. Nested attributes such
// as LineNumberTable and StackMapTable are kept raw.
func parseCodeAttribute(data []byte, pool []ConstantPoolEntry) (*CodeAttribute, error) {
	r := bytes.NewReader(data)
	var hdr struct {
		MaxStack   uint16
		MaxLocals  uint16
		CodeLength uint32
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("reading Code header: %w", err)
	}
	if int64(hdr.CodeLength) > int64(r.Len()) {
		return nil, fmt.Errorf("Code attribute data too short for code_length %d", hdr.CodeLength)
	}
	code := make([]byte, hdr.CodeLength)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, fmt.Errorf("reading code: %w", err)
	}

	n, err := readCount(r, "exception table")
	if err != nil {
		return nil, err
	}
	handlers := make([]ExceptionHandler, n)
	if err := binary.Read(r, binary.BigEndian, handlers); err != nil {
		return nil, fmt.Errorf("reading exception table: %w", err)
	}

	n, err = readCount(r, "Code attributes")
	if err != nil {
		return nil, err
	}
	attrs, err := parseAttributeInfos(r, pool, n)
	if err != nil {
		return nil, fmt.Errorf("parsing Code attributes: %w", err)
	}

	return &CodeAttribute{
		MaxStack:          hdr.MaxStack,
		MaxLocals:         hdr.MaxLocals,
		Code:              code,
		ExceptionHandlers: handlers,
		Attributes:        attrs,
	}, nil
}

func (cf *ClassFile) parseClassAttributes(r io.Reader) error {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return err
	}
	attrs, err := parseAttributeInfos(r, cf.ConstantPool, count)
	if err != nil {
		return err
	}
	cf.Attributes = attrs
	for _, attr := range attrs {
		if attr.Name == AttrBootstrapMethods {
			cf.BootstrapMethods, err = parseBootstrapMethods(attr.Data)
			if err != nil {
				return fmt.Errorf("parsing BootstrapMethods: %w", err)
			}
		}
	}
	return nil
}

func parseBootstrapMethods(data []byte) ([]BootstrapMethod, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("BootstrapMethods data too short")
	}
	numMethods := binary.BigEndian.Uint16(data[0:2])
	offset := 2
	methods := make([]BootstrapMethod, numMethods)
	for i := uint16(0); i < numMethods; i++ {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("BootstrapMethods truncated at method %d", i)
		}
		methodRef := binary.BigEndian.Uint16(data[offset : offset+2])
		numArgs := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += 4
		args := make([]uint16, numArgs)
		for j := uint16(0); j < numArgs; j++ {
			if offset+2 > len(data) {
				return nil, fmt.Errorf("BootstrapMethods truncated at arg %d of method %d", j, i)
			}
			args[j] = binary.BigEndian.Uint16(data[offset : offset+2])
			offset += 2
		}
		methods[i] = BootstrapMethod{MethodRef: methodRef, BootstrapArguments: args}
	}
	return methods, nil
}

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// FindMethodsByName returns every method declared with the given name, in
// declaration order.
func (cf *ClassFile) FindMethodsByName(name string) []*MethodInfo {
	var out []*MethodInfo
	for i := range cf.Methods {
		if cf.Methods[i].Name == name {
			out = append(out, &cf.Methods[i])
		}
	}
	return out
}
