package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformed is returned for byte sequences that are not valid JVM code.
var ErrMalformed = errors.New("malformed bytecode")

// Listing is a decoded method body.
type Listing struct {
	Insns []*Insn
	at    map[int]*Insn
}

// At returns the instruction that started at offset in the decoded code.
func (l *Listing) At(offset int) *Insn {
	return l.at[offset]
}

// operandSizes lists fixed operand lengths; opcodes absent from the map
// take no operands. Switches and wide are sized while decoding.
var operandSizes = map[Opcode]int{
	OpBipush: 1, OpLdc: 1, OpIload: 1, OpLload: 1, OpFload: 1, OpDload: 1, OpAload: 1,
	OpIstore: 1, OpLstore: 1, OpFstore: 1, OpDstore: 1, OpAstore: 1, OpRet: 1, OpNewarray: 1,

	OpSipush: 2, OpLdcW: 2, OpLdc2W: 2, OpIinc: 2,
	OpGetstatic: 2, OpPutstatic: 2, OpGetfield: 2, OpPutfield: 2,
	OpInvokevirtual: 2, OpInvokespecial: 2, OpInvokestatic: 2,
	OpNew: 2, OpAnewarray: 2, OpCheckcast: 2, OpInstanceof: 2,

	OpMultianewarray: 3,
	OpInvokeinterface: 4, OpInvokedynamic: 4,
}

func validOpcode(op Opcode) bool {
	return op <= OpJsrW
}

// Decode parses a method body into instructions, resolving every branch
// and switch offset to the instruction it lands on.
func Decode(code []byte) (*Listing, error) {
	type pending struct {
		in      *Insn
		target  int
		def     int
		targets []int
	}
	l := &Listing{at: make(map[int]*Insn)}
	var fix []pending

	for pc := 0; pc < len(code); {
		op := Opcode(code[pc])
		if !validOpcode(op) {
			return nil, fmt.Errorf("%w: invalid opcode 0x%02X at %d", ErrMalformed, byte(op), pc)
		}
		in := &Insn{Op: op, Offset: pc}
		next := pc + 1

		switch {
		case op == OpTableswitch || op == OpLookupswitch:
			p := pending{in: in}
			sw := &Switch{}
			cur := pc + 1
			for cur%4 != 0 {
				cur++
			}
			read := func() (int32, error) {
				if cur+4 > len(code) {
					return 0, fmt.Errorf("%w: truncated %s at %d", ErrMalformed, op, pc)
				}
				v := int32(binary.BigEndian.Uint32(code[cur:]))
				cur += 4
				return v, nil
			}
			def, err := read()
			if err != nil {
				return nil, err
			}
			p.def = pc + int(def)
			if op == OpTableswitch {
				low, err := read()
				if err != nil {
					return nil, err
				}
				high, err := read()
				if err != nil {
					return nil, err
				}
				if high < low {
					return nil, fmt.Errorf("%w: tableswitch high < low at %d", ErrMalformed, pc)
				}
				sw.Low = low
				for k := int64(low); k <= int64(high); k++ {
					off, err := read()
					if err != nil {
						return nil, err
					}
					p.targets = append(p.targets, pc+int(off))
				}
			} else {
				npairs, err := read()
				if err != nil {
					return nil, err
				}
				if npairs < 0 {
					return nil, fmt.Errorf("%w: negative lookupswitch size at %d", ErrMalformed, pc)
				}
				sw.Keys = make([]int32, 0, npairs)
				for k := int32(0); k < npairs; k++ {
					key, err := read()
					if err != nil {
						return nil, err
					}
					off, err := read()
					if err != nil {
						return nil, err
					}
					sw.Keys = append(sw.Keys, key)
					p.targets = append(p.targets, pc+int(off))
				}
			}
			in.Switch = sw
			fix = append(fix, p)
			next = cur

		case op == OpWide:
			if pc+1 >= len(code) {
				return nil, fmt.Errorf("%w: truncated wide at %d", ErrMalformed, pc)
			}
			n := 3
			if Opcode(code[pc+1]) == OpIinc {
				n = 5
			}
			if pc+1+n > len(code) {
				return nil, fmt.Errorf("%w: truncated wide at %d", ErrMalformed, pc)
			}
			in.Operand = append([]byte(nil), code[pc+1:pc+1+n]...)
			next = pc + 1 + n

		case op == OpGotoW || op == OpJsrW:
			if pc+5 > len(code) {
				return nil, fmt.Errorf("%w: truncated %s at %d", ErrMalformed, op, pc)
			}
			fix = append(fix, pending{in: in, target: pc + int(int32(binary.BigEndian.Uint32(code[pc+1:])))})
			next = pc + 5

		case op.IsBranch():
			if pc+3 > len(code) {
				return nil, fmt.Errorf("%w: truncated %s at %d", ErrMalformed, op, pc)
			}
			fix = append(fix, pending{in: in, target: pc + int(int16(binary.BigEndian.Uint16(code[pc+1:])))})
			next = pc + 3

		default:
			n := operandSizes[op]
			if pc+1+n > len(code) {
				return nil, fmt.Errorf("%w: truncated %s at %d", ErrMalformed, op, pc)
			}
			if n > 0 {
				in.Operand = append([]byte(nil), code[pc+1:pc+1+n]...)
			}
			next = pc + 1 + n
		}

		l.Insns = append(l.Insns, in)
		l.at[pc] = in
		pc = next
	}

	resolve := func(from *Insn, off int) (*Insn, error) {
		t, ok := l.at[off]
		if !ok {
			return nil, fmt.Errorf("%w: %s at %d jumps to %d, not an instruction boundary", ErrMalformed, from.Op, from.Offset, off)
		}
		return t, nil
	}
	for _, p := range fix {
		var err error
		if p.in.Switch == nil {
			if p.in.Target, err = resolve(p.in, p.target); err != nil {
				return nil, err
			}
			continue
		}
		if p.in.Switch.Default, err = resolve(p.in, p.def); err != nil {
			return nil, err
		}
		for _, off := range p.targets {
			t, err := resolve(p.in, off)
			if err != nil {
				return nil, err
			}
			p.in.Switch.Targets = append(p.in.Switch.Targets, t)
		}
	}
	return l, nil
}
