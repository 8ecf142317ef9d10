package weave

import (
	"github.com/daimatz/jweave/pkg/bytecode"
	"github.com/daimatz/jweave/pkg/classfile"
	"github.com/daimatz/jweave/pkg/interceptor"
)

const objectClass = "java/lang/Object"

// boxing maps primitive descriptors to the wrapper whose static valueOf
// boxes them.
var boxing = map[byte]string{
	'Z': "java/lang/Boolean",
	'B': "java/lang/Byte",
	'C': "java/lang/Character",
	'S': "java/lang/Short",
	'I': "java/lang/Integer",
	'J': "java/lang/Long",
	'F': "java/lang/Float",
	'D': "java/lang/Double",
}

// fragmentBuilder emits hook call sequences for one member. Constants are
// added to the session's pool copy; placement is decided by the weaver.
type fragmentBuilder struct {
	pool   *classfile.ConstPool
	id     int
	static bool
	class  string // dotted, as reported to interceptors
	method string
	mt     *classfile.MethodType
	insns  []*bytecode.Insn
}

func (f *fragmentBuilder) emit(in ...*bytecode.Insn) *fragmentBuilder {
	f.insns = append(f.insns, in...)
	return f
}

// take returns the instructions emitted so far and resets the builder.
func (f *fragmentBuilder) take() []*bytecode.Insn {
	out := f.insns
	f.insns = nil
	return out
}

func (f *fragmentBuilder) pushInt(v int32) *fragmentBuilder {
	return f.emit(bytecode.PushInt(v, f.pool.Integer))
}

func (f *fragmentBuilder) pushString(s string) *fragmentBuilder {
	return f.emit(bytecode.LoadConst(f.pool.String(s)))
}

// target pushes the receiver, or null for static members.
func (f *fragmentBuilder) target() *fragmentBuilder {
	if f.static {
		return f.emit(bytecode.New(bytecode.OpAconstNull))
	}
	return f.emit(bytecode.New(bytecode.OpAload0))
}

// box converts the value of the given descriptor on top of the stack into
// an object reference.
func (f *fragmentBuilder) box(desc string) *fragmentBuilder {
	wrapper, ok := boxing[desc[0]]
	if !ok || len(desc) != 1 {
		return f
	}
	ref := f.pool.Methodref(wrapper, "valueOf", "("+desc+")L"+wrapper+";")
	return f.emit(bytecode.U16(bytecode.OpInvokestatic, ref))
}

// args pushes an Object[] holding the boxed parameters.
func (f *fragmentBuilder) args() *fragmentBuilder {
	f.pushInt(int32(len(f.mt.Params)))
	f.emit(bytecode.U16(bytecode.OpAnewarray, f.pool.Class(objectClass)))
	slot := 0
	if !f.static {
		slot = 1
	}
	for i, p := range f.mt.Params {
		f.emit(bytecode.New(bytecode.OpDup))
		f.pushInt(int32(i))
		f.emit(bytecode.Load(p, slot))
		f.box(p)
		f.emit(bytecode.New(bytecode.OpAastore))
		slot += classfile.SlotSize(p)
	}
	return f
}

// header pushes the arguments shared by both bridge methods.
func (f *fragmentBuilder) header() *fragmentBuilder {
	return f.pushInt(int32(f.id)).
		target().
		pushString(f.class).
		pushString(f.method).
		args()
}

// before emits the entry hook call.
func (f *fragmentBuilder) before() []*bytecode.Insn {
	f.header()
	ref := f.pool.Methodref(interceptor.BridgeClass, interceptor.BeforeMethod, interceptor.BeforeDescriptor)
	f.emit(bytecode.U16(bytecode.OpInvokestatic, ref))
	return f.take()
}

// normalExit emits the shared epilogue every return jumps to: the value is
// parked in retSlot, reported boxed (null for void), reloaded and returned.
func (f *fragmentBuilder) normalExit(retSlot int) []*bytecode.Insn {
	ret := f.mt.Return
	if ret != "V" {
		f.emit(bytecode.Store(ret, retSlot))
	}
	f.header()
	if ret == "V" {
		f.emit(bytecode.New(bytecode.OpAconstNull))
	} else {
		f.emit(bytecode.Load(ret, retSlot))
		f.box(ret)
	}
	f.invokeAfter(interceptor.AfterMethod)
	if ret != "V" {
		f.emit(bytecode.Load(ret, retSlot))
	}
	f.emit(bytecode.Return(ret))
	return f.take()
}

// exceptionalExit emits the catch-all handler body: the throwable is
// reported as the result and rethrown unchanged.
func (f *fragmentBuilder) exceptionalExit(excSlot int) []*bytecode.Insn {
	f.emit(bytecode.Store("Ljava/lang/Throwable;", excSlot))
	f.header()
	f.emit(bytecode.Load("Ljava/lang/Throwable;", excSlot))
	f.invokeAfter(interceptor.AfterThrowMethod)
	f.emit(bytecode.Load("Ljava/lang/Throwable;", excSlot))
	f.emit(bytecode.New(bytecode.OpAthrow))
	return f.take()
}

func (f *fragmentBuilder) invokeAfter(method string) {
	ref := f.pool.Methodref(interceptor.BridgeClass, method, interceptor.AfterDescriptor)
	f.emit(bytecode.U16(bytecode.OpInvokestatic, ref))
}

// fragmentStack is the operand stack depth fragments add on top of what
// the original body needs: id, target, class, method, array, array, index
// and a two-slot value before boxing.
const fragmentStack = 9
