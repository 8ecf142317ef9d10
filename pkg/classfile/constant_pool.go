package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// parseConstantPool reads constant_pool_count-1 entries from the reader.
// The returned slice is 1-indexed: index 0 is nil.
func parseConstantPool(r io.Reader, count uint16) ([]ConstantPoolEntry, error) {
	pool := make([]ConstantPoolEntry, count)

	for i := uint16(1); i < count; i++ {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, fmt.Errorf("reading constant pool tag at index %d: %w", i, err)
		}
		entry, err := parseConstant(r, tag)
		if err != nil {
			return nil, fmt.Errorf("constant pool index %d: %w", i, err)
		}
		pool[i] = entry
		if tag == TagLong || tag == TagDouble {
			i++ // 8-byte constants take 2 slots
		}
	}

	return pool, nil
}

// parseConstant reads the body of one constant whose tag has been consumed.
func parseConstant(r io.Reader, tag uint8) (ConstantPoolEntry, error) {
	switch tag {
	case TagUtf8:
		var length uint16
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("reading Utf8 length: %w", err)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading Utf8 bytes: %w", err)
		}
		return &ConstantUtf8{Value: string(buf)}, nil

	case TagInteger, TagFloat:
		var bits uint32
		if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
			return nil, fmt.Errorf("reading 4-byte constant: %w", err)
		}
		if tag == TagFloat {
			return &ConstantFloat{Value: math.Float32frombits(bits)}, nil
		}
		return &ConstantInteger{Value: int32(bits)}, nil

	case TagLong, TagDouble:
		var bits uint64
		if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
			return nil, fmt.Errorf("reading 8-byte constant: %w", err)
		}
		if tag == TagDouble {
			return &ConstantDouble{Value: math.Float64frombits(bits)}, nil
		}
		return &ConstantLong{Value: int64(bits)}, nil

	case TagClass, TagString:
		var idx [1]uint16
		if err := binary.Read(r, binary.BigEndian, &idx); err != nil {
			return nil, fmt.Errorf("reading tag %d index: %w", tag, err)
		}
		if tag == TagString {
			return &ConstantString{StringIndex: idx[0]}, nil
		}
		return &ConstantClass{NameIndex: idx[0]}, nil

	case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType:
		var idx [2]uint16
		if err := binary.Read(r, binary.BigEndian, &idx); err != nil {
			return nil, fmt.Errorf("reading tag %d index pair: %w", tag, err)
		}
		switch tag {
		case TagFieldref:
			return &ConstantFieldref{ClassIndex: idx[0], NameAndTypeIndex: idx[1]}, nil
		case TagMethodref:
			return &ConstantMethodref{ClassIndex: idx[0], NameAndTypeIndex: idx[1]}, nil
		case TagInterfaceMethodref:
			return &ConstantInterfaceMethodref{ClassIndex: idx[0], NameAndTypeIndex: idx[1]}, nil
		}
		return &ConstantNameAndType{NameIndex: idx[0], DescriptorIndex: idx[1]}, nil

	case TagMethodHandle, TagMethodType, TagDynamic, TagInvokeDynamic, TagModule, TagPackage:
		data := make([]byte, rawConstantSize(tag))
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("reading constant tag %d: %w", tag, err)
		}
		return &ConstantRaw{RawTag: tag, Data: data}, nil
	}
	return nil, fmt.Errorf("unknown constant pool tag %d", tag)
}

// rawConstantSize returns the payload size of constants kept as raw bytes.
func rawConstantSize(tag uint8) int {
	switch tag {
	case TagMethodHandle:
		// reference_kind (u1) + reference_index (u2)
		return 3
	case TagMethodType, TagModule, TagPackage:
		return 2
	default:
		// bootstrap_method_attr_index (u2) + name_and_type_index (u2)
		return 4
	}
}

// GetUtf8 returns the Utf8 string at the given constant pool index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", index)
	}
	utf8, ok := pool[index].(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, pool[index].Tag())
	}
	return utf8.Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	if int(classIndex) >= len(pool) || pool[classIndex] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", classIndex)
	}
	class, ok := pool[classIndex].(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", classIndex)
	}
	return GetUtf8(pool, class.NameIndex)
}

// MethodRefInfo holds resolved method reference info.
type MethodRefInfo struct {
	ClassName  string
	MethodName string
	Descriptor string
}

// FieldRefInfo holds resolved field reference info.
type FieldRefInfo struct {
	ClassName  string
	FieldName  string
	Descriptor string
}

// ResolveMethodref resolves a CONSTANT_Methodref entry.
func ResolveMethodref(pool []ConstantPoolEntry, index uint16) (*MethodRefInfo, error) {
	class, name, desc, err := resolveMember(pool, index, TagMethodref)
	if err != nil {
		return nil, err
	}
	return &MethodRefInfo{ClassName: class, MethodName: name, Descriptor: desc}, nil
}

// ResolveInterfaceMethodref resolves a CONSTANT_InterfaceMethodref entry.
func ResolveInterfaceMethodref(pool []ConstantPoolEntry, index uint16) (*MethodRefInfo, error) {
	class, name, desc, err := resolveMember(pool, index, TagInterfaceMethodref)
	if err != nil {
		return nil, err
	}
	return &MethodRefInfo{ClassName: class, MethodName: name, Descriptor: desc}, nil
}

// ResolveFieldref resolves a CONSTANT_Fieldref entry.
func ResolveFieldref(pool []ConstantPoolEntry, index uint16) (*FieldRefInfo, error) {
	class, name, desc, err := resolveMember(pool, index, TagFieldref)
	if err != nil {
		return nil, err
	}
	return &FieldRefInfo{ClassName: class, FieldName: name, Descriptor: desc}, nil
}

// resolveMember follows a member reference of the given tag through its
// Class and NameAndType entries.
func resolveMember(pool []ConstantPoolEntry, index uint16, tag uint8) (class, name, desc string, err error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return "", "", "", fmt.Errorf("invalid constant pool index %d", index)
	}
	var classIndex, natIndex uint16
	switch ref := pool[index].(type) {
	case *ConstantFieldref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
	case *ConstantMethodref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
	case *ConstantInterfaceMethodref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
	}
	if pool[index].Tag() != tag {
		return "", "", "", fmt.Errorf("constant pool index %d has tag %d, want %d", index, pool[index].Tag(), tag)
	}

	if class, err = GetClassName(pool, classIndex); err != nil {
		return "", "", "", fmt.Errorf("resolving member class: %w", err)
	}
	if int(natIndex) >= len(pool) || pool[natIndex] == nil {
		return "", "", "", fmt.Errorf("invalid NameAndType index %d", natIndex)
	}
	nat, ok := pool[natIndex].(*ConstantNameAndType)
	if !ok {
		return "", "", "", fmt.Errorf("constant pool index %d is not NameAndType", natIndex)
	}
	if name, err = GetUtf8(pool, nat.NameIndex); err != nil {
		return "", "", "", fmt.Errorf("resolving member name: %w", err)
	}
	if desc, err = GetUtf8(pool, nat.DescriptorIndex); err != nil {
		return "", "", "", fmt.Errorf("resolving member descriptor: %w", err)
	}
	return class, name, desc, nil
}
