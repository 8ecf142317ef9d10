package vm

import (
	"fmt"
	"math"

	"github.com/daimatz/jweave/pkg/bytecode"
	"github.com/daimatz/jweave/pkg/classfile"
)

// executeInstruction executes a single bytecode instruction.
// Returns (returnValue, hasReturn, error).
func (vm *VM) executeInstruction(frame *Frame, op bytecode.Opcode) (Value, bool, error) {
	switch op {
	case bytecode.OpNop:
		// do nothing

	// --- Constants ---
	case bytecode.OpAconstNull:
		frame.Push(NullValue())
	case bytecode.OpIconstM1, bytecode.OpIconst0, bytecode.OpIconst1, bytecode.OpIconst2,
		bytecode.OpIconst3, bytecode.OpIconst4, bytecode.OpIconst5:
		frame.Push(IntValue(int32(op) - int32(bytecode.OpIconst0)))
	case bytecode.OpLconst0, bytecode.OpLconst1:
		frame.Push(LongValue(int64(op - bytecode.OpLconst0)))
	case bytecode.OpFconst0, bytecode.OpFconst1, bytecode.OpFconst2:
		frame.Push(FloatValue(float32(op - bytecode.OpFconst0)))
	case bytecode.OpDconst0, bytecode.OpDconst1:
		frame.Push(DoubleValue(float64(op - bytecode.OpDconst0)))
	case bytecode.OpBipush:
		frame.Push(IntValue(int32(frame.ReadI8())))
	case bytecode.OpSipush:
		frame.Push(IntValue(int32(frame.ReadI16())))
	case bytecode.OpLdc:
		return vm.executeLdc(frame, uint16(frame.ReadU8()))
	case bytecode.OpLdcW, bytecode.OpLdc2W:
		return vm.executeLdc(frame, frame.ReadU16())

	// --- Locals ---
	case bytecode.OpIload, bytecode.OpLload, bytecode.OpFload, bytecode.OpDload, bytecode.OpAload:
		frame.Push(frame.GetLocal(int(frame.ReadU8())))
	case bytecode.OpIload0, bytecode.OpLload0, bytecode.OpFload0, bytecode.OpDload0, bytecode.OpAload0:
		frame.Push(frame.GetLocal(0))
	case bytecode.OpIload1, bytecode.OpLload1, bytecode.OpFload1, bytecode.OpDload1, bytecode.OpAload1:
		frame.Push(frame.GetLocal(1))
	case bytecode.OpIload2, bytecode.OpLload2, bytecode.OpFload2, bytecode.OpDload2, bytecode.OpAload2:
		frame.Push(frame.GetLocal(2))
	case bytecode.OpIload3, bytecode.OpLload3, bytecode.OpFload3, bytecode.OpDload3, bytecode.OpAload3:
		frame.Push(frame.GetLocal(3))

	case bytecode.OpIstore, bytecode.OpLstore, bytecode.OpFstore, bytecode.OpDstore, bytecode.OpAstore:
		frame.SetLocal(int(frame.ReadU8()), frame.Pop())
	case bytecode.OpIstore0, bytecode.OpLstore0, bytecode.OpFstore0, bytecode.OpDstore0, bytecode.OpAstore0:
		frame.SetLocal(0, frame.Pop())
	case bytecode.OpIstore1, bytecode.OpLstore1, bytecode.OpFstore1, bytecode.OpDstore1, bytecode.OpAstore1:
		frame.SetLocal(1, frame.Pop())
	case bytecode.OpIstore2, bytecode.OpLstore2, bytecode.OpFstore2, bytecode.OpDstore2, bytecode.OpAstore2:
		frame.SetLocal(2, frame.Pop())
	case bytecode.OpIstore3, bytecode.OpLstore3, bytecode.OpFstore3, bytecode.OpDstore3, bytecode.OpAstore3:
		frame.SetLocal(3, frame.Pop())

	case bytecode.OpIinc:
		index := int(frame.ReadU8())
		delta := int32(frame.ReadI8())
		v := frame.GetLocal(index)
		frame.SetLocal(index, IntValue(v.Int+delta))

	case bytecode.OpWide:
		return vm.executeWide(frame)

	// --- Arrays ---
	case bytecode.OpIaload, bytecode.OpLaload, bytecode.OpFaload, bytecode.OpDaload,
		bytecode.OpAaload, bytecode.OpBaload, bytecode.OpCaload, bytecode.OpSaload:
		index := frame.Pop().Int
		arr, err := vm.arrayElement(frame.Pop(), index)
		if err != nil {
			return Value{}, false, err
		}
		frame.Push(arr.Elements[index])

	case bytecode.OpIastore, bytecode.OpLastore, bytecode.OpFastore, bytecode.OpDastore,
		bytecode.OpAastore, bytecode.OpBastore, bytecode.OpCastore, bytecode.OpSastore:
		value := frame.Pop()
		index := frame.Pop().Int
		arr, err := vm.arrayElement(frame.Pop(), index)
		if err != nil {
			return Value{}, false, err
		}
		switch arr.Component {
		case "Z":
			value = IntValue(value.Int & 1)
		case "B":
			value = IntValue(int32(int8(value.Int)))
		case "C":
			value = IntValue(int32(uint16(value.Int)))
		case "S":
			value = IntValue(int32(int16(value.Int)))
		}
		arr.Elements[index] = value

	case bytecode.OpNewarray:
		atype := frame.ReadU8()
		component, ok := newarrayTypes[atype]
		if !ok {
			return Value{}, false, fmt.Errorf("newarray: invalid type %d", atype)
		}
		count := frame.Pop().Int
		if count < 0 {
			return Value{}, false, NewJavaExceptionMsg("java/lang/NegativeArraySizeException", fmt.Sprint(count))
		}
		frame.Push(RefValue(NewArray(component, int(count))))

	case bytecode.OpAnewarray:
		className, err := classfile.GetClassName(frame.Pool(), frame.ReadU16())
		if err != nil {
			return Value{}, false, fmt.Errorf("anewarray: %w", err)
		}
		count := frame.Pop().Int
		if count < 0 {
			return Value{}, false, NewJavaExceptionMsg("java/lang/NegativeArraySizeException", fmt.Sprint(count))
		}
		frame.Push(RefValue(NewArray(componentDescriptor(className), int(count))))

	case bytecode.OpMultianewarray:
		className, err := classfile.GetClassName(frame.Pool(), frame.ReadU16())
		if err != nil {
			return Value{}, false, fmt.Errorf("multianewarray: %w", err)
		}
		dims := make([]int32, frame.ReadU8())
		for i := len(dims) - 1; i >= 0; i-- {
			dims[i] = frame.Pop().Int
			if dims[i] < 0 {
				return Value{}, false, NewJavaExceptionMsg("java/lang/NegativeArraySizeException", fmt.Sprint(dims[i]))
			}
		}
		frame.Push(RefValue(newMultiArray(className[1:], dims)))

	case bytecode.OpArraylength:
		arrRef := frame.Pop()
		if arrRef.IsNull() {
			return Value{}, false, NewJavaException("java/lang/NullPointerException")
		}
		arr, ok := arrRef.Ref.(*JArray)
		if !ok {
			return Value{}, false, fmt.Errorf("arraylength: reference is not an array")
		}
		frame.Push(IntValue(int32(len(arr.Elements))))

	// --- Stack manipulation ---
	case bytecode.OpPop:
		frame.Pop()

	case bytecode.OpPop2:
		if v := frame.Pop(); !v.Wide() {
			frame.Pop()
		}

	case bytecode.OpDup:
		frame.Push(frame.Peek())

	case bytecode.OpDupX1:
		v1 := frame.Pop()
		v2 := frame.Pop()
		pushAll(frame, v1, v2, v1)

	case bytecode.OpDupX2:
		v1 := frame.Pop()
		v2 := frame.Pop()
		if v2.Wide() {
			pushAll(frame, v1, v2, v1)
		} else {
			v3 := frame.Pop()
			pushAll(frame, v1, v3, v2, v1)
		}

	case bytecode.OpDup2:
		v1 := frame.Pop()
		if v1.Wide() {
			pushAll(frame, v1, v1)
		} else {
			v2 := frame.Pop()
			pushAll(frame, v2, v1, v2, v1)
		}

	case bytecode.OpDup2X1:
		v1 := frame.Pop()
		v2 := frame.Pop()
		if v1.Wide() {
			pushAll(frame, v1, v2, v1)
		} else {
			v3 := frame.Pop()
			pushAll(frame, v2, v1, v3, v2, v1)
		}

	case bytecode.OpDup2X2:
		v1 := frame.Pop()
		v2 := frame.Pop()
		switch {
		case v1.Wide() && v2.Wide():
			pushAll(frame, v1, v2, v1)
		case v1.Wide():
			v3 := frame.Pop()
			pushAll(frame, v1, v3, v2, v1)
		default:
			v3 := frame.Pop()
			if v3.Wide() {
				pushAll(frame, v2, v1, v3, v2, v1)
			} else {
				v4 := frame.Pop()
				pushAll(frame, v2, v1, v4, v3, v2, v1)
			}
		}

	case bytecode.OpSwap:
		v1 := frame.Pop()
		v2 := frame.Pop()
		pushAll(frame, v1, v2)

	// --- Integer arithmetic ---
	case bytecode.OpIadd, bytecode.OpIsub, bytecode.OpImul, bytecode.OpIdiv, bytecode.OpIrem,
		bytecode.OpIshl, bytecode.OpIshr, bytecode.OpIushr, bytecode.OpIand, bytecode.OpIor, bytecode.OpIxor:
		v2 := frame.Pop().Int
		v1 := frame.Pop().Int
		r, err := intOp(op, v1, v2)
		if err != nil {
			return Value{}, false, err
		}
		frame.Push(IntValue(r))

	case bytecode.OpIneg:
		frame.Push(IntValue(-frame.Pop().Int))

	case bytecode.OpLadd, bytecode.OpLsub, bytecode.OpLmul, bytecode.OpLdiv, bytecode.OpLrem,
		bytecode.OpLand, bytecode.OpLor, bytecode.OpLxor:
		v2 := frame.Pop().Long
		v1 := frame.Pop().Long
		r, err := longOp(op, v1, v2)
		if err != nil {
			return Value{}, false, err
		}
		frame.Push(LongValue(r))

	case bytecode.OpLshl, bytecode.OpLshr, bytecode.OpLushr:
		s := frame.Pop().Int & 0x3f
		v := frame.Pop().Long
		switch op {
		case bytecode.OpLshl:
			frame.Push(LongValue(v << s))
		case bytecode.OpLshr:
			frame.Push(LongValue(v >> s))
		default:
			frame.Push(LongValue(int64(uint64(v) >> s)))
		}

	case bytecode.OpLneg:
		frame.Push(LongValue(-frame.Pop().Long))

	// --- Floating point arithmetic ---
	case bytecode.OpFadd, bytecode.OpFsub, bytecode.OpFmul, bytecode.OpFdiv, bytecode.OpFrem:
		v2 := frame.Pop().Float
		v1 := frame.Pop().Float
		frame.Push(FloatValue(float32(floatOp(op-bytecode.OpFadd, float64(v1), float64(v2)))))

	case bytecode.OpDadd, bytecode.OpDsub, bytecode.OpDmul, bytecode.OpDdiv, bytecode.OpDrem:
		v2 := frame.Pop().Double
		v1 := frame.Pop().Double
		frame.Push(DoubleValue(floatOp(op-bytecode.OpDadd, v1, v2)))

	case bytecode.OpFneg:
		frame.Push(FloatValue(-frame.Pop().Float))

	case bytecode.OpDneg:
		frame.Push(DoubleValue(-frame.Pop().Double))

	// --- Conversions ---
	case bytecode.OpI2l:
		frame.Push(LongValue(int64(frame.Pop().Int)))
	case bytecode.OpI2f:
		frame.Push(FloatValue(float32(frame.Pop().Int)))
	case bytecode.OpI2d:
		frame.Push(DoubleValue(float64(frame.Pop().Int)))
	case bytecode.OpL2i:
		frame.Push(IntValue(int32(frame.Pop().Long)))
	case bytecode.OpL2f:
		frame.Push(FloatValue(float32(frame.Pop().Long)))
	case bytecode.OpL2d:
		frame.Push(DoubleValue(float64(frame.Pop().Long)))
	case bytecode.OpF2i:
		frame.Push(IntValue(f2i(float64(frame.Pop().Float))))
	case bytecode.OpF2l:
		frame.Push(LongValue(f2l(float64(frame.Pop().Float))))
	case bytecode.OpF2d:
		frame.Push(DoubleValue(float64(frame.Pop().Float)))
	case bytecode.OpD2i:
		frame.Push(IntValue(f2i(frame.Pop().Double)))
	case bytecode.OpD2l:
		frame.Push(LongValue(f2l(frame.Pop().Double)))
	case bytecode.OpD2f:
		frame.Push(FloatValue(float32(frame.Pop().Double)))
	case bytecode.OpI2b:
		frame.Push(IntValue(int32(int8(frame.Pop().Int))))
	case bytecode.OpI2c:
		frame.Push(IntValue(int32(uint16(frame.Pop().Int))))
	case bytecode.OpI2s:
		frame.Push(IntValue(int32(int16(frame.Pop().Int))))

	// --- Comparisons ---
	case bytecode.OpLcmp:
		v2 := frame.Pop().Long
		v1 := frame.Pop().Long
		switch {
		case v1 > v2:
			frame.Push(IntValue(1))
		case v1 < v2:
			frame.Push(IntValue(-1))
		default:
			frame.Push(IntValue(0))
		}

	case bytecode.OpFcmpl, bytecode.OpFcmpg:
		v2 := frame.Pop().Float
		v1 := frame.Pop().Float
		frame.Push(IntValue(fcmp(float64(v1), float64(v2), op == bytecode.OpFcmpg)))

	case bytecode.OpDcmpl, bytecode.OpDcmpg:
		v2 := frame.Pop().Double
		v1 := frame.Pop().Double
		frame.Push(IntValue(fcmp(v1, v2, op == bytecode.OpDcmpg)))

	// --- Branches ---
	case bytecode.OpIfeq:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v == 0 })
	case bytecode.OpIfne:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v != 0 })
	case bytecode.OpIflt:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v < 0 })
	case bytecode.OpIfge:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v >= 0 })
	case bytecode.OpIfgt:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v > 0 })
	case bytecode.OpIfle:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v <= 0 })

	case bytecode.OpIfIcmpeq:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 == v2 })
	case bytecode.OpIfIcmpne:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 != v2 })
	case bytecode.OpIfIcmplt:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 < v2 })
	case bytecode.OpIfIcmpge:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 >= v2 })
	case bytecode.OpIfIcmpgt:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 > v2 })
	case bytecode.OpIfIcmple:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 <= v2 })

	case bytecode.OpIfAcmpeq, bytecode.OpIfAcmpne:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		v2 := frame.Pop()
		v1 := frame.Pop()
		if sameRef(v1, v2) == (op == bytecode.OpIfAcmpeq) {
			frame.PC = branchPC + int(offset)
		}

	case bytecode.OpIfnull, bytecode.OpIfnonnull:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		if frame.Pop().IsNull() == (op == bytecode.OpIfnull) {
			frame.PC = branchPC + int(offset)
		}

	case bytecode.OpGoto:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		frame.PC = branchPC + int(offset)

	case bytecode.OpGotoW:
		branchPC := frame.PC - 1
		offset := frame.ReadI32()
		frame.PC = branchPC + int(offset)

	case bytecode.OpTableswitch:
		opcodePC := frame.PC - 1
		for frame.PC%4 != 0 {
			frame.PC++
		}
		defaultOffset := frame.ReadI32()
		low := frame.ReadI32()
		high := frame.ReadI32()
		index := frame.Pop().Int
		if index < low || index > high {
			frame.PC = opcodePC + int(defaultOffset)
			break
		}
		frame.PC += int(index-low) * 4
		frame.PC = opcodePC + int(frame.ReadI32())

	case bytecode.OpLookupswitch:
		opcodePC := frame.PC - 1
		for frame.PC%4 != 0 {
			frame.PC++
		}
		defaultOffset := frame.ReadI32()
		npairs := frame.ReadI32()
		key := frame.Pop().Int
		target := opcodePC + int(defaultOffset)
		for i := int32(0); i < npairs; i++ {
			match := frame.ReadI32()
			offset := frame.ReadI32()
			if key == match {
				target = opcodePC + int(offset)
				break
			}
		}
		frame.PC = target

	case bytecode.OpJsr, bytecode.OpJsrW, bytecode.OpRet:
		return Value{}, false, fmt.Errorf("%s: subroutines are not supported", op)

	// --- Return ---
	case bytecode.OpIreturn, bytecode.OpLreturn, bytecode.OpFreturn, bytecode.OpDreturn, bytecode.OpAreturn:
		return frame.Pop(), true, nil

	case bytecode.OpReturn:
		return Value{}, true, nil

	// --- Fields and invocation ---
	case bytecode.OpGetstatic:
		return vm.executeGetstatic(frame)
	case bytecode.OpPutstatic:
		return vm.executePutstatic(frame)
	case bytecode.OpGetfield:
		return vm.executeGetfield(frame)
	case bytecode.OpPutfield:
		return vm.executePutfield(frame)

	case bytecode.OpInvokevirtual, bytecode.OpInvokespecial, bytecode.OpInvokestatic, bytecode.OpInvokeinterface:
		return vm.executeInvoke(frame, op)

	case bytecode.OpInvokedynamic:
		return Value{}, false, fmt.Errorf("invokedynamic is not supported")

	// --- Objects ---
	case bytecode.OpNew:
		return vm.executeNew(frame)

	case bytecode.OpAthrow:
		excRef := frame.Pop()
		if excRef.IsNull() {
			return Value{}, false, NewJavaException("java/lang/NullPointerException")
		}
		if obj, ok := excRef.Ref.(*JObject); ok {
			return Value{}, false, &JavaException{Object: obj}
		}
		return Value{}, false, fmt.Errorf("athrow: %T is not throwable", excRef.Ref)

	case bytecode.OpCheckcast:
		className, err := classfile.GetClassName(frame.Pool(), frame.ReadU16())
		if err != nil {
			return Value{}, false, fmt.Errorf("checkcast: %w", err)
		}
		val := frame.Peek()
		if !val.IsNull() && !vm.isInstanceOf(val.Ref, className) {
			return Value{}, false, NewJavaExceptionMsg("java/lang/ClassCastException",
				fmt.Sprintf("class %s cannot be cast to class %s",
					classfile.DottedName(refClassName(val.Ref)), classfile.DottedName(className)))
		}

	case bytecode.OpInstanceof:
		className, err := classfile.GetClassName(frame.Pool(), frame.ReadU16())
		if err != nil {
			return Value{}, false, fmt.Errorf("instanceof: %w", err)
		}
		ref := frame.Pop()
		frame.Push(boolValue(!ref.IsNull() && vm.isInstanceOf(ref.Ref, className)))

	case bytecode.OpMonitorenter, bytecode.OpMonitorexit:
		if frame.Pop().IsNull() {
			return Value{}, false, NewJavaException("java/lang/NullPointerException")
		}

	default:
		return Value{}, false, fmt.Errorf("unknown opcode: 0x%02X at PC=%d", byte(op), frame.PC-1)
	}

	return Value{}, false, nil
}

// executeLdc handles ldc, ldc_w and ldc2_w.
func (vm *VM) executeLdc(frame *Frame, index uint16) (Value, bool, error) {
	pool := frame.Pool()
	if int(index) >= len(pool) || pool[index] == nil {
		return Value{}, false, fmt.Errorf("ldc: invalid constant pool index %d", index)
	}

	switch c := pool[index].(type) {
	case *classfile.ConstantInteger:
		frame.Push(IntValue(c.Value))
	case *classfile.ConstantFloat:
		frame.Push(FloatValue(c.Value))
	case *classfile.ConstantLong:
		frame.Push(LongValue(c.Value))
	case *classfile.ConstantDouble:
		frame.Push(DoubleValue(c.Value))
	case *classfile.ConstantString:
		str, err := classfile.GetUtf8(pool, c.StringIndex)
		if err != nil {
			return Value{}, false, fmt.Errorf("ldc: resolving string: %w", err)
		}
		frame.Push(RefValue(str))
	default:
		return Value{}, false, fmt.Errorf("ldc: unsupported constant pool entry type at index %d (tag=%d)", index, c.Tag())
	}
	return Value{}, false, nil
}

// executeWide handles the wide prefix for local access and iinc.
func (vm *VM) executeWide(frame *Frame) (Value, bool, error) {
	op := bytecode.Opcode(frame.ReadU8())
	index := int(frame.ReadU16())
	switch op {
	case bytecode.OpIload, bytecode.OpLload, bytecode.OpFload, bytecode.OpDload, bytecode.OpAload:
		frame.Push(frame.GetLocal(index))
	case bytecode.OpIstore, bytecode.OpLstore, bytecode.OpFstore, bytecode.OpDstore, bytecode.OpAstore:
		frame.SetLocal(index, frame.Pop())
	case bytecode.OpIinc:
		delta := int32(frame.ReadI16())
		frame.SetLocal(index, IntValue(frame.GetLocal(index).Int+delta))
	default:
		return Value{}, false, fmt.Errorf("wide: unsupported opcode %s", op)
	}
	return Value{}, false, nil
}

// executeBranchUnary handles unary branch instructions (ifeq, ifne, etc.)
func (vm *VM) executeBranchUnary(frame *Frame, cond func(int32) bool) (Value, bool, error) {
	branchPC := frame.PC - 1 // PC of the branch instruction
	offset := frame.ReadI16()
	val := frame.Pop()
	if cond(val.Int) {
		frame.PC = branchPC + int(offset)
	}
	return Value{}, false, nil
}

// executeBranchBinary handles binary branch instructions (if_icmpeq, etc.)
func (vm *VM) executeBranchBinary(frame *Frame, cond func(int32, int32) bool) (Value, bool, error) {
	branchPC := frame.PC - 1 // PC of the branch instruction
	offset := frame.ReadI16()
	v2 := frame.Pop()
	v1 := frame.Pop()
	if cond(v1.Int, v2.Int) {
		frame.PC = branchPC + int(offset)
	}
	return Value{}, false, nil
}

// arrayElement checks that ref is a non-null array with index in bounds.
func (vm *VM) arrayElement(ref Value, index int32) (*JArray, error) {
	if ref.IsNull() {
		return nil, NewJavaException("java/lang/NullPointerException")
	}
	arr, ok := ref.Ref.(*JArray)
	if !ok {
		return nil, fmt.Errorf("array access on %T", ref.Ref)
	}
	if index < 0 || int(index) >= len(arr.Elements) {
		return nil, NewJavaExceptionMsg("java/lang/ArrayIndexOutOfBoundsException",
			fmt.Sprintf("Index %d out of bounds for length %d", index, len(arr.Elements)))
	}
	return arr, nil
}

func pushAll(frame *Frame, vs ...Value) {
	for _, v := range vs {
		frame.Push(v)
	}
}

func sameRef(v1, v2 Value) bool {
	if v1.IsNull() || v2.IsNull() {
		return v1.IsNull() && v2.IsNull()
	}
	return v1.Ref == v2.Ref
}

// newarrayTypes maps the newarray atype operand to a component descriptor.
var newarrayTypes = map[uint8]string{
	4: "Z", 5: "C", 6: "F", 7: "D", 8: "B", 9: "S", 10: "I", 11: "J",
}

// componentDescriptor returns the element descriptor for a class operand
// naming either a class or an array type.
func componentDescriptor(className string) string {
	if className[0] == '[' {
		return className
	}
	return "L" + className + ";"
}

func newMultiArray(component string, dims []int32) *JArray {
	arr := NewArray(component, int(dims[0]))
	if len(dims) > 1 {
		for i := range arr.Elements {
			arr.Elements[i] = RefValue(newMultiArray(component[1:], dims[1:]))
		}
	}
	return arr
}

func arithmeticException() error {
	return NewJavaExceptionMsg("java/lang/ArithmeticException", "/ by zero")
}

func intOp(op bytecode.Opcode, v1, v2 int32) (int32, error) {
	switch op {
	case bytecode.OpIadd:
		return v1 + v2, nil
	case bytecode.OpIsub:
		return v1 - v2, nil
	case bytecode.OpImul:
		return v1 * v2, nil
	case bytecode.OpIdiv:
		if v2 == 0 {
			return 0, arithmeticException()
		}
		return v1 / v2, nil
	case bytecode.OpIrem:
		if v2 == 0 {
			return 0, arithmeticException()
		}
		return v1 % v2, nil
	case bytecode.OpIshl:
		return v1 << (v2 & 0x1f), nil
	case bytecode.OpIshr:
		return v1 >> (v2 & 0x1f), nil
	case bytecode.OpIushr:
		return int32(uint32(v1) >> (v2 & 0x1f)), nil
	case bytecode.OpIand:
		return v1 & v2, nil
	case bytecode.OpIor:
		return v1 | v2, nil
	default:
		return v1 ^ v2, nil
	}
}

func longOp(op bytecode.Opcode, v1, v2 int64) (int64, error) {
	switch op {
	case bytecode.OpLadd:
		return v1 + v2, nil
	case bytecode.OpLsub:
		return v1 - v2, nil
	case bytecode.OpLmul:
		return v1 * v2, nil
	case bytecode.OpLdiv:
		if v2 == 0 {
			return 0, arithmeticException()
		}
		return v1 / v2, nil
	case bytecode.OpLrem:
		if v2 == 0 {
			return 0, arithmeticException()
		}
		return v1 % v2, nil
	case bytecode.OpLand:
		return v1 & v2, nil
	case bytecode.OpLor:
		return v1 | v2, nil
	default:
		return v1 ^ v2, nil
	}
}

// floatOp applies add, sub, mul, div or rem selected by the distance of the
// opcode from its add form; the typed opcodes are spaced four apart.
func floatOp(rel bytecode.Opcode, v1, v2 float64) float64 {
	switch rel {
	case 0:
		return v1 + v2
	case 4:
		return v1 - v2
	case 8:
		return v1 * v2
	case 12:
		return v1 / v2
	default:
		return math.Mod(v1, v2)
	}
}

func fcmp(v1, v2 float64, nanIsGreater bool) int32 {
	switch {
	case math.IsNaN(v1) || math.IsNaN(v2):
		if nanIsGreater {
			return 1
		}
		return -1
	case v1 > v2:
		return 1
	case v1 < v2:
		return -1
	}
	return 0
}

// f2i converts with the saturating semantics of f2i and d2i.
func f2i(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

// f2l converts with the saturating semantics of f2l and d2l.
func f2l(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v)
}
