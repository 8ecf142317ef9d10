package native

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeHashMap(t *testing.T) {
	t.Run("put and get", func(t *testing.T) {
		hm := NewNativeHashMap()
		assert.Nil(t, hm.Put("key1", "value1"))
		assert.Equal(t, "value1", hm.Get("key1"))
	})

	t.Run("get missing key returns nil", func(t *testing.T) {
		hm := NewNativeHashMap()
		assert.Nil(t, hm.Get("nonexistent"))
	})

	t.Run("overwrite returns previous", func(t *testing.T) {
		hm := NewNativeHashMap()
		hm.Put("key", "old")
		assert.Equal(t, "old", hm.Put("key", "new"))
		assert.Equal(t, "new", hm.Get("key"))
		assert.Equal(t, int32(1), hm.Size())
	})

	t.Run("boxed keys compare by value", func(t *testing.T) {
		hm := NewNativeHashMap()
		hm.Put(IntegerValueOf(7), "seven")
		assert.Equal(t, "seven", hm.Get(IntegerValueOf(7)))
		assert.Equal(t, "seven", hm.Get(int32(7)))
		assert.Nil(t, hm.Get(&NativeLong{Value: 7}), "Long(7) is not Integer(7)")
	})

	t.Run("null values are still mapped", func(t *testing.T) {
		hm := NewNativeHashMap()
		hm.Put("k", nil)
		assert.True(t, hm.ContainsKey("k"))
		assert.False(t, hm.ContainsKey("other"))
	})
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		desc  string
		i     int32
		l     int64
		f     float32
		d     float64
		want  any
		class string
	}{
		{desc: "I", i: 42, want: int32(42), class: "java/lang/Integer"},
		{desc: "Z", i: 1, want: true, class: "java/lang/Boolean"},
		{desc: "B", i: -1, want: int8(-1), class: "java/lang/Byte"},
		{desc: "S", i: 300, want: int16(300), class: "java/lang/Short"},
		{desc: "C", i: 'x', want: uint16('x'), class: "java/lang/Character"},
		{desc: "J", l: 1 << 40, want: int64(1 << 40), class: "java/lang/Long"},
		{desc: "F", f: 1.5, want: float32(1.5), class: "java/lang/Float"},
		{desc: "D", d: 2.25, want: 2.25, class: "java/lang/Double"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			b, ok := ValueOf(tt.desc, tt.i, tt.l, tt.f, tt.d)
			require.True(t, ok)
			assert.Equal(t, tt.want, b.Unbox())
			assert.Equal(t, tt.class, b.JavaClass())
			assert.Equal(t, tt.desc, WrapperDescriptors[tt.class])
		})
	}

	_, ok := ValueOf("Ljava/lang/String;", 0, 0, 0, 0)
	assert.False(t, ok)
}

func TestNativeInteger(t *testing.T) {
	for _, v := range []int32{42, -100, 0} {
		assert.Equal(t, v, IntegerIntValue(IntegerValueOf(v)))
	}
	assert.NotSame(t, IntegerValueOf(10), IntegerValueOf(10))
}

func TestPrintStream(t *testing.T) {
	var buf bytes.Buffer
	ps := &PrintStream{Writer: &buf}

	ps.Println(int32(42))
	ps.Println("Hello, World!")
	ps.Println(IntegerValueOf(7))
	ps.Println(&NativeCharacter{Value: 'A'})
	ps.Println(true)
	ps.Println(nil)
	ps.Print("no newline")
	ps.Println()

	assert.Equal(t, "42\nHello, World!\n7\nA\ntrue\nnull\nno newline\n", buf.String())
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{in: float32(1), want: "1.0"},
		{in: 2.5, want: "2.5"},
		{in: 0.0, want: "0.0"},
		{in: 1e7, want: "1.0E7"},
		{in: 1.5e-4, want: "1.5E-4"},
		{in: &NativeFloat{Value: 0.25}, want: "0.25"},
		{in: &NativeBoolean{Value: false}, want: "false"},
		{in: int64(-9), want: "-9"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.in), "%#v", tt.in)
	}
}

func TestStringBuilder(t *testing.T) {
	sb := NewStringBuilder("total=")
	sb.Append(int32(50)).Append(", ok=").Append(true).Append(&NativeDouble{Value: 3})
	assert.Equal(t, "total=50, ok=true3.0", sb.String())
	assert.Equal(t, int32(len("total=50, ok=true3.0")), sb.Len())
}
