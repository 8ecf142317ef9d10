package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrBranchTooFar is returned when a conditional branch cannot reach its
// target with a 16-bit offset.
var ErrBranchTooFar = errors.New("branch offset exceeds 16 bits")

// MaxCodeLength is the largest method body the class-file format allows.
const MaxCodeLength = math.MaxUint16

// Encoded is the result of assembling an instruction list.
type Encoded struct {
	Code    []byte
	offsets map[*Insn]int
}

// Offset returns where in was placed, or false if it is not part of the
// encoded body.
func (e *Encoded) Offset(in *Insn) (int, bool) {
	off, ok := e.offsets[in]
	return off, ok
}

// Encode assembles insns into bytecode. Offsets are recomputed from
// scratch: switch padding follows the new alignment, and goto/jsr whose
// target moved out of 16-bit range are widened in place to goto_w/jsr_w.
func Encode(insns []*Insn) (*Encoded, error) {
	offsets := make(map[*Insn]int, len(insns))
	for iter := 0; ; iter++ {
		if iter > len(insns)+1 {
			return nil, fmt.Errorf("%w: offsets did not converge", ErrMalformed)
		}
		pc := 0
		for _, in := range insns {
			offsets[in] = pc
			pc += size(in, pc)
		}
		if pc > MaxCodeLength {
			return nil, fmt.Errorf("%w: code length %d exceeds %d", ErrMalformed, pc, MaxCodeLength)
		}

		widened := false
		for _, in := range insns {
			if in.Target == nil || in.Op == OpGotoW || in.Op == OpJsrW {
				continue
			}
			to, ok := offsets[in.Target]
			if !ok {
				return nil, fmt.Errorf("%w: %s targets an instruction outside the body", ErrMalformed, in.Op)
			}
			d := to - offsets[in]
			if d >= math.MinInt16 && d <= math.MaxInt16 {
				continue
			}
			switch in.Op {
			case OpGoto:
				in.Op = OpGotoW
			case OpJsr:
				in.Op = OpJsrW
			default:
				return nil, fmt.Errorf("%w: %s at %d", ErrBranchTooFar, in.Op, offsets[in])
			}
			widened = true
		}
		if !widened {
			break
		}
	}

	code := make([]byte, 0, 64)
	for _, in := range insns {
		var err error
		if code, err = emit(code, in, offsets); err != nil {
			return nil, err
		}
	}
	return &Encoded{Code: code, offsets: offsets}, nil
}

func size(in *Insn, pc int) int {
	switch {
	case in.Switch != nil:
		pad := (4 - (pc+1)%4) % 4
		if in.Op == OpTableswitch {
			return 1 + pad + 12 + 4*len(in.Switch.Targets)
		}
		return 1 + pad + 8 + 8*len(in.Switch.Targets)
	case in.Op == OpGotoW || in.Op == OpJsrW:
		return 5
	case in.Target != nil:
		return 3
	default:
		return 1 + len(in.Operand)
	}
}

func emit(code []byte, in *Insn, offsets map[*Insn]int) ([]byte, error) {
	pc := offsets[in]
	rel := func(t *Insn) (int32, error) {
		to, ok := offsets[t]
		if !ok {
			return 0, fmt.Errorf("%w: %s at %d targets an instruction outside the body", ErrMalformed, in.Op, pc)
		}
		return int32(to - pc), nil
	}
	code = append(code, byte(in.Op))

	switch {
	case in.Switch != nil:
		for len(code)%4 != 0 {
			code = append(code, 0)
		}
		def, err := rel(in.Switch.Default)
		if err != nil {
			return nil, err
		}
		code = binary.BigEndian.AppendUint32(code, uint32(def))
		if in.Op == OpTableswitch {
			high := in.Switch.Low + int32(len(in.Switch.Targets)) - 1
			code = binary.BigEndian.AppendUint32(code, uint32(in.Switch.Low))
			code = binary.BigEndian.AppendUint32(code, uint32(high))
		} else {
			if len(in.Switch.Keys) != len(in.Switch.Targets) {
				return nil, fmt.Errorf("%w: lookupswitch at %d has %d keys for %d targets", ErrMalformed, pc, len(in.Switch.Keys), len(in.Switch.Targets))
			}
			code = binary.BigEndian.AppendUint32(code, uint32(len(in.Switch.Targets)))
		}
		for j, t := range in.Switch.Targets {
			off, err := rel(t)
			if err != nil {
				return nil, err
			}
			if in.Op == OpLookupswitch {
				code = binary.BigEndian.AppendUint32(code, uint32(in.Switch.Keys[j]))
			}
			code = binary.BigEndian.AppendUint32(code, uint32(off))
		}
	case in.Op == OpGotoW || in.Op == OpJsrW:
		off, err := rel(in.Target)
		if err != nil {
			return nil, err
		}
		code = binary.BigEndian.AppendUint32(code, uint32(off))
	case in.Target != nil:
		off, err := rel(in.Target)
		if err != nil {
			return nil, err
		}
		code = binary.BigEndian.AppendUint16(code, uint16(int16(off)))
	default:
		code = append(code, in.Operand...)
	}
	return code, nil
}
