package native

// Boxed is implemented by the Go stand-ins for java.lang wrapper objects.
type Boxed interface {
	// Unbox returns the wrapped value as its Go type.
	Unbox() any
	// JavaClass returns the internal name of the wrapper class.
	JavaClass() string
}

// NativeInteger represents a java.lang.Integer.
type NativeInteger struct {
	Value int32
}

func (n *NativeInteger) Unbox() any        { return n.Value }
func (n *NativeInteger) JavaClass() string { return "java/lang/Integer" }

// NativeLong represents a java.lang.Long.
type NativeLong struct {
	Value int64
}

func (n *NativeLong) Unbox() any        { return n.Value }
func (n *NativeLong) JavaClass() string { return "java/lang/Long" }

// NativeFloat represents a java.lang.Float.
type NativeFloat struct {
	Value float32
}

func (n *NativeFloat) Unbox() any        { return n.Value }
func (n *NativeFloat) JavaClass() string { return "java/lang/Float" }

// NativeDouble represents a java.lang.Double.
type NativeDouble struct {
	Value float64
}

func (n *NativeDouble) Unbox() any        { return n.Value }
func (n *NativeDouble) JavaClass() string { return "java/lang/Double" }

// NativeBoolean represents a java.lang.Boolean.
type NativeBoolean struct {
	Value bool
}

func (n *NativeBoolean) Unbox() any        { return n.Value }
func (n *NativeBoolean) JavaClass() string { return "java/lang/Boolean" }

// NativeByte represents a java.lang.Byte.
type NativeByte struct {
	Value int8
}

func (n *NativeByte) Unbox() any        { return n.Value }
func (n *NativeByte) JavaClass() string { return "java/lang/Byte" }

// NativeShort represents a java.lang.Short.
type NativeShort struct {
	Value int16
}

func (n *NativeShort) Unbox() any        { return n.Value }
func (n *NativeShort) JavaClass() string { return "java/lang/Short" }

// NativeCharacter represents a java.lang.Character. Value is a UTF-16
// code unit.
type NativeCharacter struct {
	Value uint16
}

func (n *NativeCharacter) Unbox() any        { return n.Value }
func (n *NativeCharacter) JavaClass() string { return "java/lang/Character" }

// IntegerValueOf creates a NativeInteger (boxing).
func IntegerValueOf(v int32) *NativeInteger {
	return &NativeInteger{Value: v}
}

// IntegerIntValue returns the int32 value of a NativeInteger (unboxing).
func IntegerIntValue(ni *NativeInteger) int32 {
	return ni.Value
}

// ValueOf boxes a primitive held in the VM's int, long, float or double
// representation according to its field descriptor. ok is false for
// descriptors that are not primitive.
func ValueOf(descriptor string, i int32, l int64, f float32, d float64) (b Boxed, ok bool) {
	switch descriptor {
	case "I":
		return &NativeInteger{Value: i}, true
	case "Z":
		return &NativeBoolean{Value: i != 0}, true
	case "B":
		return &NativeByte{Value: int8(i)}, true
	case "S":
		return &NativeShort{Value: int16(i)}, true
	case "C":
		return &NativeCharacter{Value: uint16(i)}, true
	case "J":
		return &NativeLong{Value: l}, true
	case "F":
		return &NativeFloat{Value: f}, true
	case "D":
		return &NativeDouble{Value: d}, true
	}
	return nil, false
}

// WrapperDescriptors maps wrapper classes to the primitive they box.
var WrapperDescriptors = map[string]string{
	"java/lang/Integer":   "I",
	"java/lang/Boolean":   "Z",
	"java/lang/Byte":      "B",
	"java/lang/Short":     "S",
	"java/lang/Character": "C",
	"java/lang/Long":      "J",
	"java/lang/Float":     "F",
	"java/lang/Double":    "D",
}
