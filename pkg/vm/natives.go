package vm

import (
	"fmt"
	"math"
	"time"
	"unicode/utf16"

	"github.com/daimatz/jweave/pkg/classfile"
	"github.com/daimatz/jweave/pkg/native"
)

// causeField holds a throwable's cause.
const causeField = "cause"

// nativeMethod implements a method of a built-in class. For instance
// methods args[0] is the receiver.
type nativeMethod func(vm *VM, args []Value) (Value, error)

// natives is keyed by internal class name, method name and descriptor.
var natives map[string]nativeMethod

func init() {
	natives = map[string]nativeMethod{
		"java/lang/Object.<init>()V":                    noop,
		"java/lang/Object.hashCode()I":                  objectHashCode,
		"java/lang/Object.equals(Ljava/lang/Object;)Z":  objectEquals,
		"java/lang/Object.toString()Ljava/lang/String;": objectToString,

		"java/lang/Throwable.<init>()V":                                          noop,
		"java/lang/Throwable.<init>(Ljava/lang/String;)V":                        throwableInit,
		"java/lang/Throwable.<init>(Ljava/lang/String;Ljava/lang/Throwable;)V":   throwableInit,
		"java/lang/Throwable.<init>(Ljava/lang/Throwable;)V":                     throwableInitCause,
		"java/lang/Throwable.getMessage()Ljava/lang/String;":                     throwableField(messageField),
		"java/lang/Throwable.getLocalizedMessage()Ljava/lang/String;":            throwableField(messageField),
		"java/lang/Throwable.getCause()Ljava/lang/Throwable;":                    throwableField(causeField),
		"java/lang/Throwable.toString()Ljava/lang/String;":                       throwableToString,
		"java/lang/String.length()I":                                             stringLength,
		"java/lang/String.isEmpty()Z":                                            stringIsEmpty,
		"java/lang/String.concat(Ljava/lang/String;)Ljava/lang/String;":          stringConcat,
		"java/lang/String.valueOf(Ljava/lang/Object;)Ljava/lang/String;":         stringValueOf("Ljava/lang/Object;"),
		"java/lang/StringBuilder.<init>()V":                                      noop,
		"java/lang/StringBuilder.<init>(Ljava/lang/String;)V":                    builderInit,
		"java/lang/StringBuilder.toString()Ljava/lang/String;":                   builderToString,
		"java/lang/StringBuilder.length()I":                                      builderLength,
		"java/util/HashMap.<init>()V":                                            noop,
		"java/util/HashMap.put(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;": hashMapPut,
		"java/util/HashMap.get(Ljava/lang/Object;)Ljava/lang/Object;":                   hashMapGet,
		"java/util/HashMap.containsKey(Ljava/lang/Object;)Z":                            hashMapContainsKey,
		"java/util/HashMap.size()I":                                                     hashMapSize,
		"java/io/PrintStream.println()V":                                                printNewline,
		"java/lang/System.currentTimeMillis()J":                                         currentTimeMillis,
		"java/lang/System.nanoTime()J":                                                  nanoTime,
		"java/lang/Math.abs(I)I":                                                        mathAbs,
		"java/lang/Math.max(II)I":                                                       mathMax,
		"java/lang/Math.min(II)I":                                                       mathMin,
		"java/lang/Math.sqrt(D)D":                                                       mathSqrt,
	}

	for _, d := range []string{"I", "J", "F", "D", "Z", "C", "Ljava/lang/String;", "Ljava/lang/Object;"} {
		natives["java/io/PrintStream.println("+d+")V"] = printer(d, true)
		natives["java/io/PrintStream.print("+d+")V"] = printer(d, false)
		natives["java/lang/StringBuilder.append("+d+")Ljava/lang/StringBuilder;"] = appender(d)
		if d[0] != 'L' {
			natives["java/lang/String.valueOf("+d+")Ljava/lang/String;"] = stringValueOf(d)
		}
	}

	for class, d := range native.WrapperDescriptors {
		natives[class+".valueOf("+d+")L"+class+";"] = boxer(d)
	}
	for name, d := range map[string]string{
		"intValue": "I", "longValue": "J", "floatValue": "F", "doubleValue": "D",
		"byteValue": "B", "shortValue": "S",
	} {
		natives["java/lang/Number."+name+"()"+d] = unboxer(d)
	}
	natives["java/lang/Boolean.booleanValue()Z"] = unboxer("Z")
	natives["java/lang/Character.charValue()C"] = unboxer("C")
}

func noop(*VM, []Value) (Value, error) { return Value{}, nil }

func boolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

// goValue converts a value of the given field descriptor to the Go form the
// native package formats.
func goValue(descriptor string, v Value) any {
	switch descriptor[0] {
	case 'Z':
		return v.Int != 0
	case 'C':
		return &native.NativeCharacter{Value: uint16(v.Int)}
	case 'B', 'S', 'I':
		return v.Int
	case 'J':
		return v.Long
	case 'F':
		return v.Float
	case 'D':
		return v.Double
	}
	if v.IsNull() {
		return nil
	}
	return v.Ref
}

// display renders v like String.valueOf, calling toString on objects.
func (vm *VM) display(descriptor string, v Value) (string, error) {
	if obj, ok := v.Ref.(*JObject); ok && descriptor[0] == 'L' {
		r, err := vm.invokeVirtual(obj.ClassName, "toString", "()Ljava/lang/String;", []Value{v})
		if err != nil {
			return "", err
		}
		return native.Format(goValue("L", r)), nil
	}
	return native.Format(goValue(descriptor, v)), nil
}

// identityHash returns a stable per-object hash.
func (vm *VM) identityHash(ref any) int32 {
	h, ok := vm.hashes[ref]
	if !ok {
		h = int32(len(vm.hashes)+1) * 0x9e3779b
		vm.hashes[ref] = h
	}
	return h
}

func stringHash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(c)
	}
	return h
}

func objectHashCode(vm *VM, args []Value) (Value, error) {
	switch r := args[0].Ref.(type) {
	case string:
		return IntValue(stringHash(r)), nil
	case *native.NativeInteger:
		return IntValue(r.Value), nil
	case native.Boxed:
		return IntValue(stringHash(native.Format(r))), nil
	}
	return IntValue(vm.identityHash(args[0].Ref)), nil
}

// objectEquals compares strings and wrappers by value and everything else
// by identity.
func objectEquals(_ *VM, args []Value) (Value, error) {
	a, b := args[0], args[1]
	if b.IsNull() {
		return boolValue(false), nil
	}
	switch x := a.Ref.(type) {
	case string:
		y, ok := b.Ref.(string)
		return boolValue(ok && x == y), nil
	case native.Boxed:
		y, ok := b.Ref.(native.Boxed)
		return boolValue(ok && x.JavaClass() == y.JavaClass() && x.Unbox() == y.Unbox()), nil
	}
	return boolValue(a.Ref == b.Ref), nil
}

func objectToString(vm *VM, args []Value) (Value, error) {
	obj, ok := args[0].Ref.(*JObject)
	if !ok {
		return RefValue(native.Format(args[0].Ref)), nil
	}
	return RefValue(fmt.Sprintf("%s@%x", classfile.DottedName(obj.ClassName), uint32(vm.identityHash(obj)))), nil
}

func throwableInit(_ *VM, args []Value) (Value, error) {
	obj := args[0].Ref.(*JObject)
	obj.Fields[messageField] = args[1]
	if len(args) > 2 {
		obj.Fields[causeField] = args[2]
	}
	return Value{}, nil
}

func throwableInitCause(vm *VM, args []Value) (Value, error) {
	obj := args[0].Ref.(*JObject)
	cause := args[1]
	obj.Fields[causeField] = cause
	if !cause.IsNull() {
		msg, err := vm.display("L", cause)
		if err != nil {
			return Value{}, err
		}
		obj.Fields[messageField] = RefValue(msg)
	}
	return Value{}, nil
}

func throwableField(field string) nativeMethod {
	return func(_ *VM, args []Value) (Value, error) {
		v, ok := args[0].Ref.(*JObject).Fields[field]
		if !ok {
			return NullValue(), nil
		}
		return v, nil
	}
}

func throwableToString(_ *VM, args []Value) (Value, error) {
	return RefValue((&JavaException{Object: args[0].Ref.(*JObject)}).Error()), nil
}

func stringLength(_ *VM, args []Value) (Value, error) {
	s, _ := args[0].Ref.(string)
	return IntValue(int32(len(utf16.Encode([]rune(s))))), nil
}

func stringIsEmpty(_ *VM, args []Value) (Value, error) {
	s, _ := args[0].Ref.(string)
	return boolValue(s == ""), nil
}

func stringConcat(_ *VM, args []Value) (Value, error) {
	if args[1].IsNull() {
		return Value{}, NewJavaException("java/lang/NullPointerException")
	}
	a, _ := args[0].Ref.(string)
	b, _ := args[1].Ref.(string)
	return RefValue(a + b), nil
}

func stringValueOf(descriptor string) nativeMethod {
	return func(vm *VM, args []Value) (Value, error) {
		s, err := vm.display(descriptor, args[0])
		if err != nil {
			return Value{}, err
		}
		return RefValue(s), nil
	}
}

func builderInit(_ *VM, args []Value) (Value, error) {
	if args[1].IsNull() {
		return Value{}, NewJavaException("java/lang/NullPointerException")
	}
	args[0].Ref.(*native.StringBuilder).Append(args[1].Ref)
	return Value{}, nil
}

func appender(descriptor string) nativeMethod {
	return func(vm *VM, args []Value) (Value, error) {
		s, err := vm.display(descriptor, args[1])
		if err != nil {
			return Value{}, err
		}
		args[0].Ref.(*native.StringBuilder).Append(s)
		return args[0], nil
	}
}

func builderToString(_ *VM, args []Value) (Value, error) {
	return RefValue(args[0].Ref.(*native.StringBuilder).String()), nil
}

func builderLength(_ *VM, args []Value) (Value, error) {
	return IntValue(args[0].Ref.(*native.StringBuilder).Len()), nil
}

func hashMapPut(_ *VM, args []Value) (Value, error) {
	return RefValue(args[0].Ref.(*native.NativeHashMap).Put(args[1].Ref, args[2].Ref)), nil
}

func hashMapGet(_ *VM, args []Value) (Value, error) {
	return RefValue(args[0].Ref.(*native.NativeHashMap).Get(args[1].Ref)), nil
}

func hashMapContainsKey(_ *VM, args []Value) (Value, error) {
	return boolValue(args[0].Ref.(*native.NativeHashMap).ContainsKey(args[1].Ref)), nil
}

func hashMapSize(_ *VM, args []Value) (Value, error) {
	return IntValue(args[0].Ref.(*native.NativeHashMap).Size()), nil
}

func printNewline(_ *VM, args []Value) (Value, error) {
	args[0].Ref.(*native.PrintStream).Println()
	return Value{}, nil
}

func printer(descriptor string, newline bool) nativeMethod {
	return func(vm *VM, args []Value) (Value, error) {
		s, err := vm.display(descriptor, args[1])
		if err != nil {
			return Value{}, err
		}
		ps := args[0].Ref.(*native.PrintStream)
		if newline {
			ps.Println(s)
		} else {
			ps.Print(s)
		}
		return Value{}, nil
	}
}

func currentTimeMillis(*VM, []Value) (Value, error) {
	return LongValue(time.Now().UnixMilli()), nil
}

func nanoTime(*VM, []Value) (Value, error) {
	return LongValue(time.Now().UnixNano()), nil
}

func mathAbs(_ *VM, args []Value) (Value, error) {
	v := args[0].Int
	if v < 0 {
		v = -v
	}
	return IntValue(v), nil
}

func mathMax(_ *VM, args []Value) (Value, error) {
	return IntValue(max(args[0].Int, args[1].Int)), nil
}

func mathMin(_ *VM, args []Value) (Value, error) {
	return IntValue(min(args[0].Int, args[1].Int)), nil
}

func mathSqrt(_ *VM, args []Value) (Value, error) {
	return DoubleValue(math.Sqrt(args[0].Double)), nil
}

func boxer(descriptor string) nativeMethod {
	return func(_ *VM, args []Value) (Value, error) {
		v := args[0]
		b, ok := native.ValueOf(descriptor, v.Int, v.Long, v.Float, v.Double)
		if !ok {
			return Value{}, fmt.Errorf("no wrapper for %s", descriptor)
		}
		return RefValue(b), nil
	}
}

// unboxer converts the receiving wrapper to the primitive descriptor,
// narrowing or widening the way the xxxValue methods do.
func unboxer(descriptor string) nativeMethod {
	return func(_ *VM, args []Value) (Value, error) {
		b, ok := args[0].Ref.(native.Boxed)
		if !ok {
			return Value{}, fmt.Errorf("unboxing %T", args[0].Ref)
		}
		var (
			l       int64
			f       float64
			isFloat bool
		)
		switch x := b.Unbox().(type) {
		case bool:
			return boolValue(x), nil
		case uint16:
			return IntValue(int32(x)), nil
		case int8:
			l = int64(x)
		case int16:
			l = int64(x)
		case int32:
			l = int64(x)
		case int64:
			l = x
		case float32:
			f, isFloat = float64(x), true
		case float64:
			f, isFloat = x, true
		}
		if !isFloat {
			f = float64(l)
		}
		switch descriptor {
		case "J":
			if isFloat {
				return LongValue(f2l(f)), nil
			}
			return LongValue(l), nil
		case "F":
			return FloatValue(float32(f)), nil
		case "D":
			return DoubleValue(f), nil
		}
		i := int32(l)
		if isFloat {
			i = f2i(f)
		}
		switch descriptor {
		case "B":
			i = int32(int8(i))
		case "S":
			i = int32(int16(i))
		}
		return IntValue(i), nil
	}
}
