package classfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addClass builds the equivalent of
//
//	public class Add { static int add(int a, int b) { return a + b; } }
func addClass(t *testing.T) *ClassFile {
	t.Helper()
	b := NewBuilder("demo/Add", "java/lang/Object")
	p := b.Pool()
	b.AddField(AccPrivate|AccStatic, "calls", "I")
	b.AddMethod(AccPublic|AccStatic, "add", "(II)I", 2, 2, []byte{0x1A, 0x1B, 0x60, 0xAC})
	b.AddCodeAttribute(AttrLineNumberTable, EncodeLineNumberTable([]LineNumber{{StartPC: 0, Line: 3}}))
	b.AddAbstractMethod(AccPublic|AccAbstract, "apply", "(Ljava/lang/String;)V")
	p.Methodref("java/io/PrintStream", "println", "(I)V")
	cf, err := b.Build()
	require.NoError(t, err)
	return cf
}

func TestParseClassFile(t *testing.T) {
	data, err := addClass(t).Bytes()
	require.NoError(t, err)

	cf, err := ParseBytes(data)
	require.NoError(t, err)

	assert.Equal(t, uint16(DefaultMajorVersion), cf.MajorVersion)
	name, err := cf.ClassName()
	require.NoError(t, err)
	assert.Equal(t, "demo/Add", name)
	assert.Equal(t, "java/lang/Object", cf.SuperClassName())

	add := cf.FindMethod("add", "(II)I")
	require.NotNil(t, add)
	assert.True(t, add.IsStatic())
	require.NotNil(t, add.Code)
	assert.Equal(t, []byte{0x1A, 0x1B, 0x60, 0xAC}, add.Code.Code)
	assert.Equal(t, uint16(2), add.Code.MaxStack)
	assert.Equal(t, uint16(2), add.Code.MaxLocals)
	require.Len(t, add.Code.Attributes, 1)
	lines, err := ParseLineNumberTable(add.Code.Attributes[0].Data)
	require.NoError(t, err)
	assert.Equal(t, []LineNumber{{StartPC: 0, Line: 3}}, lines)

	apply := cf.FindMethod("apply", "(Ljava/lang/String;)V")
	require.NotNil(t, apply)
	assert.Nil(t, apply.Code)
	assert.Len(t, cf.FindMethodsByName("add"), 1)
	assert.Nil(t, cf.FindMethod("add", "(JJ)J"))
}

func TestRoundTrip(t *testing.T) {
	data, err := addClass(t).Bytes()
	require.NoError(t, err)

	cf, err := ParseBytes(data)
	require.NoError(t, err)
	again, err := cf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, again, "an unmodified class is written back byte for byte")

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cf))
	assert.Equal(t, data, buf.Bytes())

	path := filepath.Join(t.TempDir(), "Add.class")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	fromFile, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, fromFile.Methods, 2)
}

func TestParseErrors(t *testing.T) {
	data, err := addClass(t).Bytes()
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"bad magic", []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{"empty", nil},
		{"truncated", data[:len(data)/2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes(tt.data)
			assert.Error(t, err)
		})
	}

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.class"))
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	tests := []struct {
		major, minor uint16
		ok           bool
		stackMaps    bool
	}{
		{45, 3, true, false},
		{45, 0, false, false},
		{50, 0, true, false},
		{51, 0, true, true},
		{65, 0, true, true},
		{69, 0, true, true},
		{70, 0, false, true},
	}
	for _, tt := range tests {
		err := CheckVersion(tt.major, tt.minor)
		if tt.ok {
			assert.NoError(t, err, "%d.%d", tt.major, tt.minor)
		} else {
			assert.ErrorIs(t, err, ErrUnsupportedVersion, "%d.%d", tt.major, tt.minor)
		}
		assert.Equal(t, tt.stackMaps, RequiresStackMaps(tt.major, tt.minor), "%d.%d", tt.major, tt.minor)
	}
	assert.Equal(t, "52.0.0", FileVersion(52, 0).String())
}

func TestMethodDescriptors(t *testing.T) {
	tests := []struct {
		desc   string
		params []string
		ret    string
		slots  int
	}{
		{"()V", nil, "V", 0},
		{"(II)I", []string{"I", "I"}, "I", 2},
		{"(JD)J", []string{"J", "D"}, "J", 4},
		{"(I[Ljava/lang/String;[[B)Ljava/lang/Object;", []string{"I", "[Ljava/lang/String;", "[[B"}, "Ljava/lang/Object;", 3},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			mt, err := ParseMethodDescriptor(tt.desc)
			require.NoError(t, err)
			assert.Equal(t, tt.params, mt.Params)
			assert.Equal(t, tt.ret, mt.Return)
			assert.Equal(t, tt.slots, mt.ArgSlots())
		})
	}

	for _, bad := range []string{"I)V", "(I", "(Q)V", "(Ljava/lang/String)V", "()II"} {
		_, err := ParseMethodDescriptor(bad)
		assert.Error(t, err, bad)
	}
}

func TestJavaTypeNames(t *testing.T) {
	tests := []struct {
		java  string
		desc  string
		class string
	}{
		{"int", "I", ""},
		{"boolean", "Z", ""},
		{"long[]", "[J", ""},
		{"java.lang.String", "Ljava/lang/String;", "java/lang/String"},
		{"com.acme.Order[][]", "[[Lcom/acme/Order;", "com/acme/Order"},
	}
	for _, tt := range tests {
		t.Run(tt.java, func(t *testing.T) {
			desc, class, err := JavaTypeDescriptor(tt.java)
			require.NoError(t, err)
			assert.Equal(t, tt.desc, desc)
			assert.Equal(t, tt.class, class)
			assert.Equal(t, tt.java, JavaTypeName(desc))
		})
	}

	_, _, err := JavaTypeDescriptor("void[]")
	assert.Error(t, err)
	_, _, err = JavaTypeDescriptor(" ")
	assert.Error(t, err)

	assert.Equal(t, "com/acme/Order", InternalName("com.acme.Order"))
	assert.Equal(t, "com.acme.Order", DottedName("com/acme/Order"))
	assert.True(t, IsReference("[I"))
	assert.False(t, IsReference("J"))
	assert.Equal(t, 2, SlotSize("D"))
	assert.Equal(t, 1, SlotSize("Ljava/lang/Long;"))
}

func TestConstPool(t *testing.T) {
	p := NewConstPool(nil)
	assert.Equal(t, 1, p.Len(), "slot 0 is reserved")

	s := p.String("hello")
	assert.Equal(t, s, p.String("hello"), "identical constants are shared")
	m := p.Methodref("demo/Add", "add", "(II)I")
	assert.Equal(t, m, p.Methodref("demo/Add", "add", "(II)I"))
	assert.NotEqual(t, m, p.Methodref("demo/Add", "add", "(JJ)J"))

	ref, err := ResolveMethodref(p.Entries(), m)
	require.NoError(t, err)
	assert.Equal(t, MethodRefInfo{ClassName: "demo/Add", MethodName: "add", Descriptor: "(II)I"}, *ref)

	calls := p.Fieldref("demo/Add", "calls", "I")
	f, err := ResolveFieldref(p.Entries(), calls)
	require.NoError(t, err)
	assert.Equal(t, "calls", f.FieldName)

	_, err = ResolveFieldref(p.Entries(), m)
	assert.ErrorContains(t, err, "has tag 10, want 9")
	_, err = ResolveInterfaceMethodref(p.Entries(), m)
	assert.Error(t, err)
	_, err = ResolveMethodref(p.Entries(), s)
	assert.Error(t, err)
	_, err = ResolveMethodref(p.Entries(), uint16(p.Len()))
	assert.ErrorContains(t, err, "invalid constant pool index")

	seeded := NewConstPool(p.Entries())
	before := seeded.Len()
	assert.Equal(t, s, seeded.String("hello"), "seeded pools find existing constants")
	assert.Equal(t, before, seeded.Len())
	seeded.Integer(7)
	assert.Equal(t, before, len(p.Entries()), "the source entries are not touched")
	assert.NoError(t, seeded.Err())
}

func TestParseConstantPool(t *testing.T) {
	data := []byte{
		TagUtf8, 0x00, 0x02, 'H', 'i',
		TagInteger, 0xFF, 0xFF, 0xFF, 0xFE,
		TagFloat, 0x3F, 0xC0, 0x00, 0x00,
		TagLong, 0, 0, 0, 0, 0, 0, 0, 7,
		TagDouble, 0x40, 0, 0, 0, 0, 0, 0, 0,
		TagClass, 0x00, 0x01,
		TagMethodType, 0x00, 0x01,
	}
	pool, err := parseConstantPool(bytes.NewReader(data), 10)
	require.NoError(t, err)
	assert.Equal(t, []ConstantPoolEntry{
		nil,
		&ConstantUtf8{Value: "Hi"},
		&ConstantInteger{Value: -2},
		&ConstantFloat{Value: 1.5},
		&ConstantLong{Value: 7},
		nil,
		&ConstantDouble{Value: 2},
		nil,
		&ConstantClass{NameIndex: 1},
		&ConstantRaw{RawTag: TagMethodType, Data: []byte{0x00, 0x01}},
	}, pool)

	_, err = parseConstantPool(bytes.NewReader([]byte{2, 0, 0}), 2)
	assert.ErrorContains(t, err, "unknown constant pool tag 2")
	_, err = parseConstantPool(bytes.NewReader(data[:12]), 10)
	assert.ErrorContains(t, err, "constant pool index 3")
}

func TestLocalVariableTable(t *testing.T) {
	vars := []LocalVariable{
		{StartPC: 0, Length: 5, NameIndex: 3, DescriptorIndex: 4, Index: 0},
		{StartPC: 2, Length: 3, NameIndex: 5, DescriptorIndex: 6, Index: 1},
	}
	got, err := ParseLocalVariableTable(EncodeLocalVariableTable(vars))
	require.NoError(t, err)
	assert.Equal(t, vars, got)

	_, err = ParseLocalVariableTable([]byte{0x00, 0x02, 0x00})
	assert.Error(t, err)
}
