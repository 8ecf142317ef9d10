package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"straight line", []byte{0x1A, 0x1B, 0x60, 0xAC}}, // iload_0 iload_1 iadd ireturn
		{"branch", []byte{
			0x1A,             // 0: iload_0
			0x99, 0x00, 0x05, // 1: ifeq +5 -> 6
			0x04, // 4: iconst_1
			0xAC, // 5: ireturn
			0x03, // 6: iconst_0
			0xAC, // 7: ireturn
		}},
		{"backward goto", []byte{
			0x84, 0x00, 0x01, // 0: iinc 0 1
			0xA7, 0xFF, 0xFD, // 3: goto -3 -> 0
		}},
		{"wide", []byte{
			0xC4, 0x15, 0x01, 0x00, // wide iload 256
			0xC4, 0x84, 0x01, 0x00, 0xFF, 0xFF, // wide iinc 256 -1
			0xAC,
		}},
		{"tableswitch", []byte{
			0x1A,             // 0: iload_0
			0xAA, 0x00, 0x00, // 1: tableswitch, 2 bytes padding
			0x00, 0x00, 0x00, 0x1B, // default -> 28
			0x00, 0x00, 0x00, 0x00, // low 0
			0x00, 0x00, 0x00, 0x01, // high 1
			0x00, 0x00, 0x00, 0x17, // 0 -> 24
			0x00, 0x00, 0x00, 0x19, // 1 -> 26
			0x04, 0xAC, // 24: iconst_1 ireturn
			0x05, 0xAC, // 26: iconst_2 ireturn
			0x03, 0xAC, // 28: iconst_0 ireturn
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Decode(tt.code)
			require.NoError(t, err)
			enc, err := Encode(l.Insns)
			require.NoError(t, err)
			assert.Equal(t, tt.code, enc.Code)
		})
	}
}

func TestDecodeResolvesTargets(t *testing.T) {
	code := []byte{0x1A, 0x99, 0x00, 0x05, 0x04, 0xAC, 0x03, 0xAC}
	l, err := Decode(code)
	require.NoError(t, err)

	br := l.At(1)
	require.NotNil(t, br)
	assert.Equal(t, OpIfeq, br.Op)
	assert.Same(t, l.At(6), br.Target)
	assert.Nil(t, l.At(2), "offset inside an instruction")
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"invalid opcode", []byte{0xCB}},
		{"truncated operand", []byte{0x10}},
		{"mid-instruction target", []byte{0xA7, 0x00, 0x01, 0xB1}},
		{"target past end", []byte{0xA7, 0x00, 0x10}},
		{"truncated wide", []byte{0xC4, 0x15, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.code)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestEncodeRepadsSwitch(t *testing.T) {
	code := []byte{
		0x1A,             // 0: iload_0
		0xAB, 0x00, 0x00, // 1: lookupswitch
		0x00, 0x00, 0x00, 0x17, // default -> 24
		0x00, 0x00, 0x00, 0x01, // npairs 1
		0x00, 0x00, 0x00, 0x07, 0x00, 0x00, 0x00, 0x15, // 7 -> 22
		0x00, 0x00, // 20..21 nops
		0x04, 0xAC, // 22: iconst_1 ireturn
		0x03, 0xAC, // 24: iconst_0 ireturn
	}
	l, err := Decode(code)
	require.NoError(t, err)

	// Shift the switch by one byte; padding must shrink from 2 to 1.
	insns := append([]*Insn{New(OpNop)}, l.Insns...)
	enc, err := Encode(insns)
	require.NoError(t, err)

	sw := l.At(1)
	off, ok := enc.Offset(sw)
	require.True(t, ok)
	assert.Equal(t, 2, off)
	assert.Equal(t, []byte{0x00, 0x1A, 0xAB, 0x00}, enc.Code[:4])

	again, err := Decode(enc.Code)
	require.NoError(t, err)
	got := again.At(2).Switch
	require.NotNil(t, got)
	assert.Equal(t, []int32{7}, got.Keys)
	def, _ := enc.Offset(l.At(24))
	assert.Same(t, again.At(def), got.Default)
}

func TestEncodeWidensGoto(t *testing.T) {
	end := New(OpReturn)
	jump := Jump(OpGoto, end)
	insns := []*Insn{jump}
	for i := 0; i < 40000; i++ {
		insns = append(insns, New(OpNop))
	}
	insns = append(insns, end)

	enc, err := Encode(insns)
	require.NoError(t, err)
	assert.Equal(t, OpGotoW, jump.Op)
	assert.Equal(t, byte(OpGotoW), enc.Code[0])
	off, _ := enc.Offset(end)
	assert.Equal(t, 5+40000, off)
}

func TestEncodeRejectsFarConditional(t *testing.T) {
	end := New(OpReturn)
	insns := []*Insn{New(OpIconst0), Jump(OpIfeq, end)}
	for i := 0; i < 40000; i++ {
		insns = append(insns, New(OpNop))
	}
	insns = append(insns, end)

	_, err := Encode(insns)
	assert.ErrorIs(t, err, ErrBranchTooFar)
}

func TestEncodeRejectsForeignTarget(t *testing.T) {
	_, err := Encode([]*Insn{Jump(OpGoto, New(OpNop))})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTypedHelpers(t *testing.T) {
	tests := []struct {
		name string
		in   *Insn
		want []byte
	}{
		{"iload_1", Load("I", 1), []byte{0x1B}},
		{"aload_0", Load("Ljava/lang/String;", 0), []byte{0x2A}},
		{"dload 7", Load("D", 7), []byte{0x18, 0x07}},
		{"wide lload", Load("J", 300), []byte{0xC4, 0x16, 0x01, 0x2C}},
		{"astore_3", Store("[I", 3), []byte{0x4E}},
		{"fstore 4", Store("F", 4), []byte{0x38, 0x04}},
		{"ireturn for boolean", Return("Z"), []byte{0xAC}},
		{"areturn", Return("[J"), []byte{0xB0}},
		{"return", Return("V"), []byte{0xB1}},
		{"iconst_m1", PushInt(-1, nil), []byte{0x02}},
		{"iconst_5", PushInt(5, nil), []byte{0x08}},
		{"bipush", PushInt(-100, nil), []byte{0x10, 0x9C}},
		{"sipush", PushInt(1000, nil), []byte{0x11, 0x03, 0xE8}},
		{"ldc", PushInt(1 << 20, func(int32) uint16 { return 9 }), []byte{0x12, 0x09}},
		{"ldc_w", PushInt(1 << 20, func(int32) uint16 { return 300 }), []byte{0x13, 0x01, 0x2C}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := Encode([]*Insn{tt.in})
			require.NoError(t, err)
			assert.Equal(t, tt.want, enc.Code)
		})
	}
}

func TestDisassemble(t *testing.T) {
	l, err := Decode([]byte{0x1A, 0x99, 0x00, 0x05, 0x04, 0xAC, 0x03, 0xAC})
	require.NoError(t, err)
	out := Disassemble(l.Insns)
	assert.Contains(t, out, "ifeq -> #4")
	assert.Contains(t, out, "iload_0")
}
