package classfile

import (
	"fmt"
	"strings"
)

// MethodType is a parsed method descriptor.
type MethodType struct {
	Params []string // field descriptors, one per parameter
	Return string   // field descriptor or "V"
}

// ParseMethodDescriptor splits a method descriptor such as
// "(I[Ljava/lang/String;)J" into its parameter and return descriptors.
func ParseMethodDescriptor(descriptor string) (*MethodType, error) {
	if !strings.HasPrefix(descriptor, "(") {
		return nil, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}
	end := strings.IndexByte(descriptor, ')')
	if end == -1 {
		return nil, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}

	mt := &MethodType{}
	params := descriptor[1:end]
	for i := 0; i < len(params); {
		n, err := fieldDescriptorLen(params[i:])
		if err != nil {
			return nil, fmt.Errorf("%w in %s", err, descriptor)
		}
		mt.Params = append(mt.Params, params[i:i+n])
		i += n
	}

	ret := descriptor[end+1:]
	if ret != "V" {
		n, err := fieldDescriptorLen(ret)
		if err != nil || n != len(ret) {
			return nil, fmt.Errorf("invalid return type in %s", descriptor)
		}
	}
	mt.Return = ret
	return mt, nil
}

// ParamDescriptor returns the "(...)" part of a method descriptor.
func (mt *MethodType) ParamDescriptor() string {
	return "(" + strings.Join(mt.Params, "") + ")"
}

// ArgSlots returns the number of local-variable slots the parameters take,
// not counting the receiver.
func (mt *MethodType) ArgSlots() int {
	n := 0
	for _, p := range mt.Params {
		n += SlotSize(p)
	}
	return n
}

func fieldDescriptorLen(s string) (int, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return 0, fmt.Errorf("truncated type descriptor")
	}
	switch s[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1, nil
	case 'L':
		semi := strings.IndexByte(s[i:], ';')
		if semi == -1 {
			return 0, fmt.Errorf("unterminated class type descriptor")
		}
		return i + semi + 1, nil
	default:
		return 0, fmt.Errorf("invalid type descriptor char '%c'", s[i])
	}
}

// SlotSize returns 2 for long and double descriptors, 1 otherwise.
func SlotSize(fieldDescriptor string) int {
	if fieldDescriptor == "J" || fieldDescriptor == "D" {
		return 2
	}
	return 1
}

// IsReference reports whether the field descriptor is a class or array type.
func IsReference(fieldDescriptor string) bool {
	return fieldDescriptor != "" && (fieldDescriptor[0] == 'L' || fieldDescriptor[0] == '[')
}

var primitiveDescriptors = map[string]string{
	"boolean": "Z",
	"byte":    "B",
	"char":    "C",
	"short":   "S",
	"int":     "I",
	"long":    "J",
	"float":   "F",
	"double":  "D",
	"void":    "V",
}

// JavaTypeDescriptor converts a Java source type name ("int", "long[][]",
// "java.lang.String") to a field descriptor. The second result is the
// internal name of the element class for reference types, or "" for
// primitives and primitive arrays.
func JavaTypeDescriptor(javaName string) (descriptor, className string, err error) {
	name := strings.TrimSpace(javaName)
	dims := 0
	for strings.HasSuffix(name, "[]") {
		dims++
		name = strings.TrimSpace(strings.TrimSuffix(name, "[]"))
	}
	if name == "" {
		return "", "", fmt.Errorf("empty type name %q", javaName)
	}
	prefix := strings.Repeat("[", dims)
	if p, ok := primitiveDescriptors[name]; ok {
		if p == "V" && dims > 0 {
			return "", "", fmt.Errorf("invalid type %q", javaName)
		}
		return prefix + p, "", nil
	}
	internal := InternalName(name)
	return prefix + "L" + internal + ";", internal, nil
}

// InternalName converts a dotted binary name to its internal form.
func InternalName(dotted string) string {
	return strings.ReplaceAll(dotted, ".", "/")
}

// DottedName converts an internal name to its dotted binary form.
func DottedName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// JavaTypeName converts a field descriptor back to a Java source name.
func JavaTypeName(fieldDescriptor string) string {
	dims := 0
	for dims < len(fieldDescriptor) && fieldDescriptor[dims] == '[' {
		dims++
	}
	base := fieldDescriptor[dims:]
	name := base
	for k, v := range primitiveDescriptors {
		if v == base {
			name = k
		}
	}
	if strings.HasPrefix(base, "L") && strings.HasSuffix(base, ";") {
		name = DottedName(base[1 : len(base)-1])
	}
	return name + strings.Repeat("[]", dims)
}
