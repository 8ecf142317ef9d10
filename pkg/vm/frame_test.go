package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFramePushPop(t *testing.T) {
	t.Run("LIFO order", func(t *testing.T) {
		frame := NewFrame(0, 10, nil, nil)
		frame.Push(IntValue(10))
		frame.Push(IntValue(20))
		frame.Push(IntValue(30))

		assert.Equal(t, int32(30), frame.Pop().Int)
		assert.Equal(t, int32(20), frame.Pop().Int)
		assert.Equal(t, int32(10), frame.Pop().Int)
	})

	t.Run("peek does not pop", func(t *testing.T) {
		frame := NewFrame(0, 2, nil, nil)
		frame.Push(LongValue(7))
		assert.Equal(t, int64(7), frame.Peek().Long)
		assert.Equal(t, 1, frame.SP)
	})

	t.Run("overflow panics", func(t *testing.T) {
		frame := NewFrame(0, 1, nil, nil)
		frame.Push(IntValue(1))
		assert.Panics(t, func() { frame.Push(IntValue(2)) })
	})

	t.Run("underflow panics", func(t *testing.T) {
		frame := NewFrame(0, 1, nil, nil)
		assert.Panics(t, func() { frame.Pop() })
		assert.Panics(t, func() { frame.Peek() })
	})
}

func TestFrameLocals(t *testing.T) {
	frame := NewFrame(4, 0, nil, nil)
	frame.SetLocal(0, DoubleValue(1.5))
	frame.SetLocal(2, RefValue("s"))

	assert.Equal(t, 1.5, frame.GetLocal(0).Double)
	assert.Equal(t, "s", frame.GetLocal(2).Ref)
	assert.Panics(t, func() { frame.GetLocal(4) })
	assert.Panics(t, func() { frame.SetLocal(-1, IntValue(0)) })
}

func TestFrameOperands(t *testing.T) {
	frame := NewFrame(0, 0, []byte{0xFF, 0x80, 0x00, 0xFF, 0xFF, 0xFF, 0xFE}, nil)
	assert.Equal(t, int8(-1), frame.ReadI8())
	assert.Equal(t, uint16(0x8000), frame.ReadU16())
	frame.PC = 3
	assert.Equal(t, int32(-2), frame.ReadI32())
	assert.Equal(t, 7, frame.PC)
}

func TestValues(t *testing.T) {
	assert.True(t, NullValue().IsNull())
	assert.True(t, RefValue(nil).IsNull())
	assert.False(t, RefValue("x").IsNull())
	assert.True(t, LongValue(1).Wide())
	assert.True(t, DoubleValue(1).Wide())
	assert.False(t, FloatValue(1).Wide())

	tests := []struct {
		desc string
		want Value
	}{
		{"I", IntValue(0)},
		{"Z", IntValue(0)},
		{"J", LongValue(0)},
		{"F", FloatValue(0)},
		{"D", DoubleValue(0)},
		{"Ljava/lang/String;", NullValue()},
		{"[I", NullValue()},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, zeroValue(tt.desc), tt.desc)
	}
}

func TestArrays(t *testing.T) {
	arr := NewArray("J", 3)
	assert.Len(t, arr.Elements, 3)
	assert.Equal(t, LongValue(0), arr.Elements[2])

	multi := newMultiArray("[I", []int32{2, 3})
	assert.Equal(t, "[I", multi.Component)
	inner := multi.Elements[1].Ref.(*JArray)
	assert.Equal(t, "I", inner.Component)
	assert.Len(t, inner.Elements, 3)
}
