package bytecode

import "math"

// kind maps a field descriptor to the offset of its typed opcode family:
// 0 int, 1 long, 2 float, 3 double, 4 reference.
func kind(descriptor string) int {
	switch descriptor[0] {
	case 'J':
		return 1
	case 'F':
		return 2
	case 'D':
		return 3
	case 'L', '[':
		return 4
	default:
		// Z, B, C, S and I all live in int slots.
		return 0
	}
}

// Load returns the instruction that pushes local slot onto the stack,
// choosing the short, plain or wide form.
func Load(descriptor string, slot int) *Insn {
	return local(OpIload, OpIload0, descriptor, slot)
}

// Store returns the instruction that pops the stack into local slot.
func Store(descriptor string, slot int) *Insn {
	return local(OpIstore, OpIstore0, descriptor, slot)
}

func local(base, short Opcode, descriptor string, slot int) *Insn {
	k := kind(descriptor)
	switch {
	case slot <= 3:
		return New(short + Opcode(4*k+slot))
	case slot <= math.MaxUint8:
		return New(base+Opcode(k), byte(slot))
	default:
		return New(OpWide, byte(base+Opcode(k)), byte(slot>>8), byte(slot))
	}
}

// Return returns the xreturn instruction for a return descriptor.
func Return(descriptor string) *Insn {
	if descriptor == "V" {
		return New(OpReturn)
	}
	return New(OpIreturn + Opcode(kind(descriptor)))
}

// PushInt returns the shortest instruction that pushes v. ldc supplies the
// constant-pool index of an Integer constant when no immediate form fits.
func PushInt(v int32, ldc func(int32) uint16) *Insn {
	switch {
	case v >= -1 && v <= 5:
		return New(OpIconst0 + Opcode(v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return New(OpBipush, byte(int8(v)))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return New(OpSipush, byte(uint16(int16(v))>>8), byte(int16(v)))
	default:
		return LoadConst(ldc(v))
	}
}

// LoadConst returns ldc or ldc_w for a single-slot constant.
func LoadConst(index uint16) *Insn {
	if index <= math.MaxUint8 {
		return New(OpLdc, byte(index))
	}
	return U16(OpLdcW, index)
}
