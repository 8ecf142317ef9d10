package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// LineNumber is one LineNumberTable entry.
type LineNumber struct {
	StartPC uint16
	Line    uint16
}

// ParseLineNumberTable decodes the body of a LineNumberTable attribute.
func ParseLineNumberTable(data []byte) ([]LineNumber, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("LineNumberTable too short")
	}
	n := int(binary.BigEndian.Uint16(data))
	if len(data) != 2+4*n {
		return nil, fmt.Errorf("LineNumberTable length mismatch: %d entries in %d bytes", n, len(data))
	}
	out := make([]LineNumber, n)
	for i := range out {
		off := 2 + 4*i
		out[i] = LineNumber{
			StartPC: binary.BigEndian.Uint16(data[off:]),
			Line:    binary.BigEndian.Uint16(data[off+2:]),
		}
	}
	return out, nil
}

// EncodeLineNumberTable is the inverse of ParseLineNumberTable.
func EncodeLineNumberTable(lines []LineNumber) []byte {
	var buf bytes.Buffer
	put(&buf, uint16(len(lines)))
	for _, l := range lines {
		put(&buf, l.StartPC)
		put(&buf, l.Line)
	}
	return buf.Bytes()
}

// LocalVariable is one LocalVariableTable (or LocalVariableTypeTable) entry.
// DescriptorIndex holds the signature index for the type table.
type LocalVariable struct {
	StartPC         uint16
	Length          uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Index           uint16
}

// ParseLocalVariableTable decodes a LocalVariableTable or
// LocalVariableTypeTable body.
func ParseLocalVariableTable(data []byte) ([]LocalVariable, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("LocalVariableTable too short")
	}
	n := int(binary.BigEndian.Uint16(data))
	if len(data) != 2+10*n {
		return nil, fmt.Errorf("LocalVariableTable length mismatch: %d entries in %d bytes", n, len(data))
	}
	out := make([]LocalVariable, n)
	for i := range out {
		off := 2 + 10*i
		out[i] = LocalVariable{
			StartPC:         binary.BigEndian.Uint16(data[off:]),
			Length:          binary.BigEndian.Uint16(data[off+2:]),
			NameIndex:       binary.BigEndian.Uint16(data[off+4:]),
			DescriptorIndex: binary.BigEndian.Uint16(data[off+6:]),
			Index:           binary.BigEndian.Uint16(data[off+8:]),
		}
	}
	return out, nil
}

// EncodeLocalVariableTable is the inverse of ParseLocalVariableTable.
func EncodeLocalVariableTable(vars []LocalVariable) []byte {
	var buf bytes.Buffer
	put(&buf, uint16(len(vars)))
	for _, v := range vars {
		put(&buf, v.StartPC)
		put(&buf, v.Length)
		put(&buf, v.NameIndex)
		put(&buf, v.DescriptorIndex)
		put(&buf, v.Index)
	}
	return buf.Bytes()
}
