package weave

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/jweave/internal/fixture"
	"github.com/daimatz/jweave/pkg/bytecode"
	"github.com/daimatz/jweave/pkg/classfile"
)

func TestClassPool(t *testing.T) {
	pool := NewClassPool(fixture.Path())

	assert.True(t, pool.Contains(fixture.Order))
	assert.True(t, pool.Contains("java/lang/Throwable"), "core classes are built in")
	assert.False(t, pool.Contains("com/acme/Nowhere"))

	_, err := pool.Bytes("com/acme/Nowhere")
	assert.ErrorIs(t, err, ErrUnknownType)

	assert.True(t, pool.IsSubclass(fixture.Child, fixture.Base))
	assert.True(t, pool.IsSubclass(fixture.Child, "java/lang/Object"))
	assert.True(t, pool.IsSubclass("java/lang/ArithmeticException", "java/lang/Throwable"))
	assert.False(t, pool.IsSubclass(fixture.Base, fixture.Child))

	a, err := pool.Lookup(fixture.Order)
	require.NoError(t, err)
	b, err := pool.Lookup(fixture.Order)
	require.NoError(t, err)
	assert.Same(t, a, b, "lookups share one parse")

	edited, err := pool.load(fixture.Order)
	require.NoError(t, err)
	assert.NotSame(t, a, edited, "models get private copies")

	t.Run("insert shadows the class path", func(t *testing.T) {
		replacement := classfile.NewBuilder(fixture.Order, fixture.Base).MustBuild()
		require.NoError(t, pool.InsertClass(replacement))
		assert.True(t, pool.IsSubclass(fixture.Order, fixture.Base))
	})
}

func TestResolve(t *testing.T) {
	m, err := LoadModel(NewClassPool(fixture.Path()), "com.acme.Order", logr.Discard())
	require.NoError(t, err)
	assert.Equal(t, "Order", m.SimpleName())
	assert.Equal(t, fixture.Order, m.InternalName())

	tests := []struct {
		name     string
		method   string
		params   []string
		wantDesc string
		wantHook string
	}{
		{"by parameters", "total", []string{"int"}, "(I)I", "total"},
		{"second overload", "total", []string{"int", "int"}, "(II)I", "total"},
		{"unique name", "fail", nil, "(Ljava/lang/String;)V", "fail"},
		{"reference parameter", "fail", []string{"java.lang.String"}, "(Ljava/lang/String;)V", "fail"},
		{"constructor by simple name", "Order", []string{}, "()V", "Order"},
		{"constructor by init", "<init>", nil, "()V", "Order"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Resolve(m, tt.method, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDesc, h.Descriptor())
			assert.Equal(t, tt.wantHook, h.HookName())
		})
	}

	h, err := Resolve(m, "total", []string{"int"})
	require.NoError(t, err)
	assert.Equal(t, "com.acme.Order.total(int)", h.LongName())
	assert.False(t, h.IsStatic())
	assert.False(t, h.IsEmpty())
}

func TestResolveMethodNamedAfterClass(t *testing.T) {
	m, err := LoadModel(NewClassPool(fixture.Path()), fixture.Ledger, logr.Discard())
	require.NoError(t, err)

	tests := []struct {
		name     string
		method   string
		params   []string
		wantDesc string
		wantCtor bool
		wantErr  string
	}{
		{"method by parameters", "Ledger", []string{"long"}, "(J)J", false, ""},
		{"constructor by init", "<init>", nil, "()V", true, ""},
		{"name alone", "Ledger", nil, "", false, "3 candidates <init>()V ()I (J)J"},
		{"no arguments", "Ledger", []string{}, "", false, "2 candidates <init>()V ()I"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Resolve(m, tt.method, tt.params)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, ErrAmbiguousMethod)
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDesc, h.Descriptor())
			assert.Equal(t, tt.wantCtor, h.IsConstructor())
			assert.Equal(t, "Ledger", h.HookName())
		})
	}
}

func TestSuperCallIndex(t *testing.T) {
	m, err := LoadModel(NewClassPool(fixture.Path()), fixture.Child, logr.Discard())
	require.NoError(t, err)
	h, err := Resolve(m, "Child", nil)
	require.NoError(t, err)

	code := h.Code().Clone()
	l, err := bytecode.Decode(code.Code)
	require.NoError(t, err)
	idx, err := superCallIndex(l.Insns, m.cf.ConstantPool)
	require.NoError(t, err)
	call := l.Insns[idx]
	ref, err := classfile.ResolveMethodref(m.cf.ConstantPool, uint16(call.Operand[0])<<8|uint16(call.Operand[1]))
	require.NoError(t, err)
	assert.Equal(t, fixture.Base, ref.ClassName, "the StringBuilder constructor is skipped")
}
