package vm

import (
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/jweave/pkg/bytecode"
	"github.com/daimatz/jweave/pkg/classfile"
	"github.com/daimatz/jweave/pkg/interceptor"
	"github.com/daimatz/jweave/pkg/native"
)

// pingClass builds a class whose static ping(int) reports itself to
// interceptor id through the hook bridge, the way woven code does.
func pingClass(t *testing.T, id byte, descriptor string) []byte {
	t.Helper()
	b := classfile.NewBuilder("Ping", "java/lang/Object")
	p := b.Pool()
	code := assemble(t,
		bytecode.New(bytecode.OpBipush, id),
		bytecode.New(bytecode.OpAconstNull),
		bytecode.LoadConst(p.String("Ping")),
		bytecode.LoadConst(p.String("ping")),
		bytecode.New(bytecode.OpIconst1),
		bytecode.U16(bytecode.OpAnewarray, p.Class("java/lang/Object")),
		bytecode.New(bytecode.OpDup),
		bytecode.New(bytecode.OpIconst0),
		bytecode.New(bytecode.OpIload0),
		bytecode.U16(bytecode.OpInvokestatic, p.Methodref("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;")),
		bytecode.New(bytecode.OpAastore),
		bytecode.U16(bytecode.OpInvokestatic, p.Methodref(interceptor.BridgeClass, interceptor.BeforeMethod, descriptor)),
		bytecode.New(bytecode.OpReturn),
	)
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "ping", "(I)V", 8, 1, code)
	data, err := b.MustBuild().Bytes()
	require.NoError(t, err)
	return data
}

func TestHookBridge(t *testing.T) {
	type call struct {
		target any
		class  string
		method string
		args   []any
	}
	var calls []call
	reg := interceptor.NewRegistry(interceptor.WithLogger(testr.New(t)))
	id := reg.Register(interceptor.BeforeFunc(func(target any, className, methodName string, args []any) {
		calls = append(calls, call{target, className, methodName, args})
	}))

	v := NewVM(nil, WithHooks(reg), WithLogger(testr.New(t)))
	c, err := v.DefineClass("Ping", pingClass(t, byte(id), interceptor.BeforeDescriptor))
	require.NoError(t, err)

	_, err = c.Invoke("ping", "(I)V", IntValue(42))
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, call{nil, "Ping", "ping", []any{int32(42)}}, calls[0])
}

func TestHookBridgeFailures(t *testing.T) {
	t.Run("no registry", func(t *testing.T) {
		v := NewVM(nil)
		c, err := v.DefineClass("Ping", pingClass(t, 0, interceptor.BeforeDescriptor))
		require.NoError(t, err)
		_, err = c.Invoke("ping", "(I)V", IntValue(1))
		assert.ErrorContains(t, err, "no interceptor registry attached")
	})

	t.Run("unknown bridge method", func(t *testing.T) {
		v := NewVM(nil, WithHooks(interceptor.NewRegistry()))
		c, err := v.DefineClass("Ping", pingClass(t, 0, "()V"))
		require.NoError(t, err)
		_, err = c.Invoke("ping", "(I)V", IntValue(1))
		requireJavaException(t, err, "java/lang/NoSuchMethodError")
	})

	t.Run("interceptor errors are swallowed", func(t *testing.T) {
		reg := interceptor.NewRegistry(interceptor.WithLogger(testr.New(t)))
		id := reg.Register(interceptor.BeforeFunc(func(any, string, string, []any) {
			panic("broken interceptor")
		}))
		v := NewVM(nil, WithHooks(reg), WithLogger(testr.New(t)))

		c, err := v.DefineClass("Ping", pingClass(t, byte(id), interceptor.BeforeDescriptor))
		require.NoError(t, err)
		_, err = c.Invoke("ping", "(I)V", IntValue(1))
		assert.NoError(t, err)
	})

	t.Run("unknown id is swallowed", func(t *testing.T) {
		v := NewVM(nil, WithHooks(interceptor.NewRegistry()))
		c, err := v.DefineClass("Ping", pingClass(t, 9, interceptor.BeforeDescriptor))
		require.NoError(t, err)
		_, err = c.Invoke("ping", "(I)V", IntValue(1))
		assert.NoError(t, err)
	})
}

// exitClass builds a class whose static report(Throwable) passes its
// argument to the normal and the exceptional after hook in turn.
func exitClass(t *testing.T, id byte) []byte {
	t.Helper()
	b := classfile.NewBuilder("Exit", "java/lang/Object")
	p := b.Pool()
	var insns []*bytecode.Insn
	for _, method := range []string{interceptor.AfterMethod, interceptor.AfterThrowMethod} {
		insns = append(insns,
			bytecode.New(bytecode.OpBipush, id),
			bytecode.New(bytecode.OpAconstNull),
			bytecode.LoadConst(p.String("Exit")),
			bytecode.LoadConst(p.String("report")),
			bytecode.New(bytecode.OpIconst0),
			bytecode.U16(bytecode.OpAnewarray, p.Class("java/lang/Object")),
			bytecode.New(bytecode.OpAload0),
			bytecode.U16(bytecode.OpInvokestatic, p.Methodref(interceptor.BridgeClass, method, interceptor.AfterDescriptor)),
		)
	}
	insns = append(insns, bytecode.New(bytecode.OpReturn))
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "report", "(Ljava/lang/Throwable;)V", 8, 1, assemble(t, insns...))
	data, err := b.MustBuild().Bytes()
	require.NoError(t, err)
	return data
}

func TestHookBridgeExitPaths(t *testing.T) {
	var results []any
	reg := interceptor.NewRegistry(interceptor.WithLogger(testr.New(t)))
	id := reg.Register(interceptor.AfterFunc(func(_ any, _, _ string, _ []any, result any) {
		results = append(results, result)
	}))

	v := NewVM(nil, WithHooks(reg), WithLogger(testr.New(t)))
	c, err := v.DefineClass("Exit", exitClass(t, byte(id)))
	require.NoError(t, err)

	ex := NewObject("java/lang/IllegalStateException")
	_, err = c.Invoke("report", "(Ljava/lang/Throwable;)V", RefValue(ex))
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Same(t, ex, results[0], "a returned throwable is an ordinary object")
	thrown, ok := results[1].(*JavaException)
	require.True(t, ok, "a thrown object arrives as an error, got %T", results[1])
	assert.Same(t, ex, thrown.Object)
}

func TestToGo(t *testing.T) {
	v := NewVM(nil)
	plain := NewObject("com/acme/Order")
	thrown := NewObject("java/lang/IllegalStateException")
	arr := NewArray("Ljava/lang/Object;", 2)
	arr.Elements[0] = RefValue(&native.NativeLong{Value: 9})

	tests := []struct {
		name string
		in   Value
		want any
	}{
		{"int", IntValue(3), int32(3)},
		{"long", LongValue(3), int64(3)},
		{"float", FloatValue(0.5), float32(0.5)},
		{"double", DoubleValue(0.5), 0.5},
		{"null", NullValue(), nil},
		{"string", RefValue("s"), "s"},
		{"boxed", RefValue(&native.NativeInteger{Value: 7}), int32(7)},
		{"array", RefValue(arr), []any{int64(9), nil}},
		{"object", RefValue(plain), plain},
		{"throwable", RefValue(thrown), thrown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.toGo(tt.in))
		})
	}
}
