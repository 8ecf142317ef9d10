package vm

import (
	"fmt"

	"github.com/daimatz/jweave/pkg/bytecode"
	"github.com/daimatz/jweave/pkg/classfile"
	"github.com/daimatz/jweave/pkg/interceptor"
	"github.com/daimatz/jweave/pkg/native"
)

// resolveInvokeRef resolves the Methodref or InterfaceMethodref at index.
func resolveInvokeRef(pool []classfile.ConstantPoolEntry, index uint16) (*classfile.MethodRefInfo, error) {
	if int(index) < len(pool) {
		if _, ok := pool[index].(*classfile.ConstantInterfaceMethodref); ok {
			return classfile.ResolveInterfaceMethodref(pool, index)
		}
	}
	return classfile.ResolveMethodref(pool, index)
}

// popArgs pops the arguments of descriptor, plus the receiver when
// receiver is set, in declaration order.
func popArgs(frame *Frame, descriptor string, receiver bool) ([]Value, *classfile.MethodType, error) {
	mt, err := classfile.ParseMethodDescriptor(descriptor)
	if err != nil {
		return nil, nil, err
	}
	n := len(mt.Params)
	if receiver {
		n++
	}
	args := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = frame.Pop()
	}
	return args, mt, nil
}

// executeInvoke handles the four invoke instructions.
func (vm *VM) executeInvoke(frame *Frame, op bytecode.Opcode) (Value, bool, error) {
	index := frame.ReadU16()
	if op == bytecode.OpInvokeinterface {
		frame.ReadU16() // count, 0
	}

	ref, err := resolveInvokeRef(frame.Pool(), index)
	if err != nil {
		return Value{}, false, fmt.Errorf("%s: %w", op, err)
	}
	args, mt, err := popArgs(frame, ref.Descriptor, op != bytecode.OpInvokestatic)
	if err != nil {
		return Value{}, false, fmt.Errorf("%s: %w", op, err)
	}

	var ret Value
	switch op {
	case bytecode.OpInvokestatic:
		ret, err = vm.invokeStatic(ref.ClassName, ref.MethodName, ref.Descriptor, args)
	case bytecode.OpInvokespecial:
		ret, err = vm.invokeSpecial(ref.ClassName, ref.MethodName, ref.Descriptor, args)
	default:
		ret, err = vm.invokeVirtual(ref.ClassName, ref.MethodName, ref.Descriptor, args)
	}
	if err != nil {
		return Value{}, false, err
	}
	if mt.Return != "V" {
		frame.Push(ret)
	}
	return Value{}, false, nil
}

func (vm *VM) invokeStatic(className, name, descriptor string, args []Value) (Value, error) {
	if className == interceptor.BridgeClass {
		return vm.callHook(name, descriptor, args)
	}
	c, err := vm.LoadClass(className)
	if err != nil {
		return Value{}, err
	}
	if err := vm.initialize(c); err != nil {
		return Value{}, err
	}
	return vm.call(c, true, name, descriptor, args)
}

// invokeSpecial calls a constructor, private method or superclass method
// without virtual dispatch.
func (vm *VM) invokeSpecial(className, name, descriptor string, args []Value) (Value, error) {
	if args[0].IsNull() {
		return Value{}, NewJavaException("java/lang/NullPointerException")
	}
	c, err := vm.LoadClass(className)
	if err != nil {
		return Value{}, err
	}
	return vm.call(c, false, name, descriptor, args)
}

// invokeVirtual dispatches on the runtime class of the receiver in args[0].
func (vm *VM) invokeVirtual(className, name, descriptor string, args []Value) (Value, error) {
	recv := args[0]
	if recv.IsNull() {
		return Value{}, NewJavaExceptionMsg("java/lang/NullPointerException",
			fmt.Sprintf("cannot invoke %s.%s on null", classfile.DottedName(className), name))
	}
	runtime := refClassName(recv.Ref)
	if _, isArray := recv.Ref.(*JArray); isArray {
		runtime = "java/lang/Object"
	}
	c, err := vm.LoadClass(runtime)
	if err != nil {
		return Value{}, err
	}
	return vm.call(c, false, name, descriptor, args)
}

// call walks from c up the superclass chain and runs the first bytecode
// method or native that implements name and descriptor.
func (vm *VM) call(c *Class, static bool, name, descriptor string, args []Value) (Value, error) {
	for k := c; k != nil; k = k.Super {
		if k.File != nil {
			m := k.File.FindMethod(name, descriptor)
			if m == nil {
				continue
			}
			if m.IsStatic() != static {
				return Value{}, NewJavaExceptionMsg("java/lang/IncompatibleClassChangeError", classfile.DottedName(k.name)+"."+name)
			}
			return vm.executeMethod(k, m, args)
		}
		if fn, ok := natives[k.name+"."+name+descriptor]; ok {
			return fn(vm, args)
		}
	}
	return Value{}, NewJavaExceptionMsg("java/lang/NoSuchMethodError", c.Name()+"."+name+descriptor)
}

// executeGetstatic handles the getstatic instruction.
func (vm *VM) executeGetstatic(frame *Frame) (Value, bool, error) {
	ref, err := classfile.ResolveFieldref(frame.Pool(), frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("getstatic: %w", err)
	}

	if ref.ClassName == "java/lang/System" {
		switch ref.FieldName {
		case "out":
			frame.Push(RefValue(&native.PrintStream{Writer: vm.Stdout}))
			return Value{}, false, nil
		case "err":
			frame.Push(RefValue(&native.PrintStream{Writer: vm.Stderr}))
			return Value{}, false, nil
		}
	}

	owner, err := vm.staticOwner(ref)
	if err != nil {
		return Value{}, false, err
	}
	v, ok := owner.statics[ref.FieldName]
	if !ok {
		v = zeroValue(ref.Descriptor)
	}
	frame.Push(v)
	return Value{}, false, nil
}

// executePutstatic handles the putstatic instruction.
func (vm *VM) executePutstatic(frame *Frame) (Value, bool, error) {
	ref, err := classfile.ResolveFieldref(frame.Pool(), frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("putstatic: %w", err)
	}
	value := frame.Pop()
	owner, err := vm.staticOwner(ref)
	if err != nil {
		return Value{}, false, err
	}
	owner.statics[ref.FieldName] = value
	return Value{}, false, nil
}

func (vm *VM) staticOwner(ref *classfile.FieldRefInfo) (*Class, error) {
	c, err := vm.LoadClass(ref.ClassName)
	if err != nil {
		return nil, err
	}
	owner := c.declaringClass(ref.FieldName)
	if err := vm.initialize(owner); err != nil {
		return nil, err
	}
	return owner, nil
}

// executeGetfield handles the getfield instruction.
func (vm *VM) executeGetfield(frame *Frame) (Value, bool, error) {
	ref, err := classfile.ResolveFieldref(frame.Pool(), frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("getfield: %w", err)
	}
	obj, err := objectRef(frame.Pop(), "getfield")
	if err != nil {
		return Value{}, false, err
	}
	val, exists := obj.Fields[ref.FieldName]
	if !exists {
		val = zeroValue(ref.Descriptor)
	}
	frame.Push(val)
	return Value{}, false, nil
}

// executePutfield handles the putfield instruction.
func (vm *VM) executePutfield(frame *Frame) (Value, bool, error) {
	ref, err := classfile.ResolveFieldref(frame.Pool(), frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("putfield: %w", err)
	}
	value := frame.Pop()
	obj, err := objectRef(frame.Pop(), "putfield")
	if err != nil {
		return Value{}, false, err
	}
	obj.Fields[ref.FieldName] = value
	return Value{}, false, nil
}

func objectRef(v Value, op string) (*JObject, error) {
	if v.IsNull() {
		return nil, NewJavaException("java/lang/NullPointerException")
	}
	obj, ok := v.Ref.(*JObject)
	if !ok {
		return nil, fmt.Errorf("%s: receiver is a %T, not an object", op, v.Ref)
	}
	return obj, nil
}

// executeNew handles the new instruction.
func (vm *VM) executeNew(frame *Frame) (Value, bool, error) {
	className, err := classfile.GetClassName(frame.Pool(), frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("new: %w", err)
	}

	switch className {
	case "java/util/HashMap":
		frame.Push(RefValue(native.NewNativeHashMap()))
	case "java/lang/StringBuilder":
		frame.Push(RefValue(native.NewStringBuilder("")))
	default:
		c, err := vm.LoadClass(className)
		if err != nil {
			return Value{}, false, err
		}
		if err := vm.initialize(c); err != nil {
			return Value{}, false, err
		}
		frame.Push(RefValue(NewObject(className)))
	}
	return Value{}, false, nil
}
