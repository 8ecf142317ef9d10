package bytecode

import (
	"fmt"
	"strings"
)

// Insn is one instruction of a method body. Branch and switch targets are
// held as pointers to other instructions, so a body can be edited freely
// and re-encoded with fresh offsets.
type Insn struct {
	Op Opcode
	// Operand holds the raw operand bytes of instructions without code
	// offsets. For wide it starts with the widened opcode.
	Operand []byte
	Target  *Insn
	Switch  *Switch
	// Offset is where the instruction was decoded from, or -1.
	Offset int
}

// Switch is the payload of tableswitch and lookupswitch.
type Switch struct {
	Default *Insn
	Low     int32   // tableswitch only
	Keys    []int32 // lookupswitch only
	Targets []*Insn
}

// Key returns the match value of the j-th target.
func (s *Switch) Key(j int) int32 {
	if s.Keys != nil {
		return s.Keys[j]
	}
	return s.Low + int32(j)
}

// New returns an instruction that does not reference code offsets.
func New(op Opcode, operand ...byte) *Insn {
	return &Insn{Op: op, Operand: operand, Offset: -1}
}

// Jump returns a branch instruction to target.
func Jump(op Opcode, target *Insn) *Insn {
	return &Insn{Op: op, Target: target, Offset: -1}
}

// U16 returns a new instruction with a two-byte operand such as a
// constant-pool index.
func U16(op Opcode, v uint16) *Insn {
	return New(op, byte(v>>8), byte(v))
}

// IsBranch reports whether the instruction carries a single code offset.
func (op Opcode) IsBranch() bool {
	return (op >= OpIfeq && op <= OpJsr) || op == OpIfnull || op == OpIfnonnull || op == OpGotoW || op == OpJsrW
}

// IsReturn reports whether the opcode is one of the xreturn instructions.
func (op Opcode) IsReturn() bool {
	return op >= OpIreturn && op <= OpReturn
}

// String renders the instruction for diagnostics.
func (in *Insn) String() string {
	var b strings.Builder
	b.WriteString(in.Op.String())
	if in.Op == OpWide && len(in.Operand) > 0 {
		fmt.Fprintf(&b, " %s", Opcode(in.Operand[0]))
		for _, v := range in.Operand[1:] {
			fmt.Fprintf(&b, " %02x", v)
		}
		return b.String()
	}
	for _, v := range in.Operand {
		fmt.Fprintf(&b, " %02x", v)
	}
	return b.String()
}

// Disassemble renders a listing, one instruction per line, with branch
// targets shown by instruction index.
func Disassemble(insns []*Insn) string {
	pos := make(map[*Insn]int, len(insns))
	for i, in := range insns {
		pos[in] = i
	}
	ref := func(t *Insn) string {
		if i, ok := pos[t]; ok {
			return fmt.Sprintf("#%d", i)
		}
		return "#?"
	}
	var b strings.Builder
	for i, in := range insns {
		fmt.Fprintf(&b, "%4d: %s", i, in)
		if in.Target != nil {
			fmt.Fprintf(&b, " -> %s", ref(in.Target))
		}
		if in.Switch != nil {
			fmt.Fprintf(&b, " default -> %s", ref(in.Switch.Default))
			for j, t := range in.Switch.Targets {
				fmt.Fprintf(&b, ", %d -> %s", in.Switch.Key(j), ref(t))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
