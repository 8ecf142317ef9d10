// Package fixture assembles the small class files the weaving and VM tests
// run against. Bodies are written with the bytecode assembler, so branch
// offsets and handler ranges come from real encoding.
package fixture

import (
	"fmt"

	"github.com/daimatz/jweave/pkg/bytecode"
	"github.com/daimatz/jweave/pkg/classfile"
	"github.com/daimatz/jweave/pkg/classpath"
)

// Internal names of the fixture classes.
const (
	Order  = "com/acme/Order"
	Calc   = "com/acme/Calc"
	Base   = "com/acme/Base"
	Child  = "com/acme/Child"
	Main   = "com/acme/Main"
	Ledger = "com/acme/Ledger"
)

// MainOutput is what Main prints when run unmodified.
const MainOutput = "50\n5\nchild-7\n"

// OrderTotalLines is the LineNumberTable of Order.total(I)I.
var OrderTotalLines = []classfile.LineNumber{{StartPC: 0, Line: 10}, {StartPC: 3, Line: 11}}

const (
	object = "java/lang/Object"
	str    = "Ljava/lang/String;"
	sb     = "java/lang/StringBuilder"
	ise    = "java/lang/IllegalStateException"
	out    = "java/io/PrintStream"
	noArgs = "()V"
)

// asm collects instructions for one method body.
type asm struct {
	pool  *classfile.ConstPool
	insns []*bytecode.Insn
}

func newAsm(b *classfile.Builder) *asm { return &asm{pool: b.Pool()} }

func (a *asm) add(in *bytecode.Insn) *bytecode.Insn {
	a.insns = append(a.insns, in)
	return in
}

func (a *asm) op(op bytecode.Opcode, operand ...byte) *bytecode.Insn {
	return a.add(bytecode.New(op, operand...))
}

func (a *asm) ref(op bytecode.Opcode, index uint16) *bytecode.Insn {
	return a.add(bytecode.U16(op, index))
}

func (a *asm) ldc(s string) *bytecode.Insn {
	return a.add(bytecode.LoadConst(a.pool.String(s)))
}

func (a *asm) encode() *bytecode.Encoded {
	enc, err := bytecode.Encode(a.insns)
	if err != nil {
		panic(fmt.Sprintf("fixture: %v", err))
	}
	return enc
}

func (a *asm) code() []byte { return a.encode().Code }

func superInit(b *classfile.Builder, super, descriptor string) []byte {
	a := newAsm(b)
	a.op(bytecode.OpAload0)
	a.ref(bytecode.OpInvokespecial, b.Pool().Methodref(super, "<init>", descriptor))
	a.op(bytecode.OpReturn)
	return a.code()
}

// OrderClass builds com.acme.Order:
//
//	public Order() {}
//	public int total(int qty) { return qty * 10; }
//	public int total(int qty, int price) { return qty * price; }
//	public void fail(String msg) { throw new IllegalStateException(msg); }
//	public int checked(int x) { try { return 100 / x; } catch (ArithmeticException e) { return -1; } }
func OrderClass() *classfile.ClassFile {
	b := classfile.NewBuilder(Order, object)
	p := b.Pool()
	b.AddMethod(classfile.AccPublic, "<init>", noArgs, 1, 1, superInit(b, object, noArgs))

	a := newAsm(b)
	a.op(bytecode.OpIload1)
	a.op(bytecode.OpBipush, 10)
	a.op(bytecode.OpImul)
	a.op(bytecode.OpIreturn)
	b.AddMethod(classfile.AccPublic, "total", "(I)I", 2, 2, a.code())
	b.AddCodeAttribute(classfile.AttrLineNumberTable, classfile.EncodeLineNumberTable(OrderTotalLines))
	b.AddCodeAttribute(classfile.AttrLocalVariableTable, classfile.EncodeLocalVariableTable([]classfile.LocalVariable{
		{StartPC: 0, Length: 5, NameIndex: p.Utf8("this"), DescriptorIndex: p.Utf8("L" + Order + ";"), Index: 0},
		{StartPC: 0, Length: 5, NameIndex: p.Utf8("qty"), DescriptorIndex: p.Utf8("I"), Index: 1},
	}))

	a = newAsm(b)
	a.op(bytecode.OpIload1)
	a.op(bytecode.OpIload2)
	a.op(bytecode.OpImul)
	a.op(bytecode.OpIreturn)
	b.AddMethod(classfile.AccPublic, "total", "(II)I", 2, 3, a.code())

	a = newAsm(b)
	a.ref(bytecode.OpNew, p.Class(ise))
	a.op(bytecode.OpDup)
	a.op(bytecode.OpAload1)
	a.ref(bytecode.OpInvokespecial, p.Methodref(ise, "<init>", "("+str+")V"))
	a.op(bytecode.OpAthrow)
	b.AddMethod(classfile.AccPublic, "fail", "("+str+")V", 3, 2, a.code())

	a = newAsm(b)
	start := a.op(bytecode.OpBipush, 100)
	a.op(bytecode.OpIload1)
	a.op(bytecode.OpIdiv)
	a.op(bytecode.OpIreturn)
	handler := a.op(bytecode.OpAstore2)
	a.op(bytecode.OpIconstM1)
	a.op(bytecode.OpIreturn)
	enc := a.encode()
	from, _ := enc.Offset(start)
	to, _ := enc.Offset(handler)
	b.AddMethod(classfile.AccPublic, "checked", "(I)I", 2, 3, enc.Code, classfile.ExceptionHandler{
		StartPC: uint16(from), EndPC: uint16(to), HandlerPC: uint16(to),
		CatchType: p.Class("java/lang/ArithmeticException"),
	})
	return b.MustBuild()
}

// CalcClass builds com.acme.Calc with static arithmetic overloads:
//
//	static int add(int a, int b)
//	static long add(long a, long b)
//	static double twice(double d)
//	static void reset()
func CalcClass() *classfile.ClassFile {
	b := classfile.NewBuilder(Calc, object)
	b.AddMethod(classfile.AccPublic, "<init>", noArgs, 1, 1, superInit(b, object, noArgs))

	a := newAsm(b)
	a.op(bytecode.OpIload0)
	a.op(bytecode.OpIload1)
	a.op(bytecode.OpIadd)
	a.op(bytecode.OpIreturn)
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "add", "(II)I", 2, 2, a.code())

	a = newAsm(b)
	a.op(bytecode.OpLload0)
	a.op(bytecode.OpLload2)
	a.op(bytecode.OpLadd)
	a.op(bytecode.OpLreturn)
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "add", "(JJ)J", 4, 4, a.code())

	a = newAsm(b)
	a.op(bytecode.OpDload0)
	a.op(bytecode.OpDload0)
	a.op(bytecode.OpDadd)
	a.op(bytecode.OpDreturn)
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "twice", "(D)D", 4, 2, a.code())

	a = newAsm(b)
	a.op(bytecode.OpReturn)
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "reset", "()V", 0, 0, a.code())
	return b.MustBuild()
}

// BaseClass builds com.acme.Base:
//
//	protected String label;
//	public Base(String label) { this.label = label; }
//	public String label() { return label; }
func BaseClass() *classfile.ClassFile {
	b := classfile.NewBuilder(Base, object)
	p := b.Pool()
	b.AddField(classfile.AccProtected, "label", str)

	a := newAsm(b)
	a.op(bytecode.OpAload0)
	a.ref(bytecode.OpInvokespecial, p.Methodref(object, "<init>", noArgs))
	a.op(bytecode.OpAload0)
	a.op(bytecode.OpAload1)
	a.ref(bytecode.OpPutfield, p.Fieldref(Base, "label", str))
	a.op(bytecode.OpReturn)
	b.AddMethod(classfile.AccPublic, "<init>", "("+str+")V", 2, 2, a.code())

	a = newAsm(b)
	a.op(bytecode.OpAload0)
	a.ref(bytecode.OpGetfield, p.Fieldref(Base, "label", str))
	a.op(bytecode.OpAreturn)
	b.AddMethod(classfile.AccPublic, "label", "()"+str, 1, 1, a.code())
	return b.MustBuild()
}

// ChildClass builds com.acme.Child. Its constructor allocates and
// initializes a StringBuilder before the superclass constructor runs:
//
//	private int n;
//	public Child(int n) { super(new StringBuilder().append("child-").append(n).toString()); this.n = n; }
func ChildClass() *classfile.ClassFile {
	b := classfile.NewBuilder(Child, Base)
	p := b.Pool()
	b.AddField(classfile.AccPrivate, "n", "I")

	a := newAsm(b)
	a.op(bytecode.OpAload0)
	a.ref(bytecode.OpNew, p.Class(sb))
	a.op(bytecode.OpDup)
	a.ref(bytecode.OpInvokespecial, p.Methodref(sb, "<init>", noArgs))
	a.ldc("child-")
	a.ref(bytecode.OpInvokevirtual, p.Methodref(sb, "append", "("+str+")L"+sb+";"))
	a.op(bytecode.OpIload1)
	a.ref(bytecode.OpInvokevirtual, p.Methodref(sb, "append", "(I)L"+sb+";"))
	a.ref(bytecode.OpInvokevirtual, p.Methodref(sb, "toString", "()"+str))
	a.ref(bytecode.OpInvokespecial, p.Methodref(Base, "<init>", "("+str+")V"))
	a.op(bytecode.OpAload0)
	a.op(bytecode.OpIload1)
	a.ref(bytecode.OpPutfield, p.Fieldref(Child, "n", "I"))
	a.op(bytecode.OpReturn)
	b.AddMethod(classfile.AccPublic, "<init>", "(I)V", 4, 2, a.code())
	return b.MustBuild()
}

// LedgerClass builds com.acme.Ledger, whose methods share the class name
// with its constructor:
//
//	public Ledger() {}
//	public int Ledger() { return 3; }
//	public long Ledger(long n) { return n + n; }
func LedgerClass() *classfile.ClassFile {
	b := classfile.NewBuilder(Ledger, object)
	b.AddMethod(classfile.AccPublic, "<init>", noArgs, 1, 1, superInit(b, object, noArgs))

	a := newAsm(b)
	a.op(bytecode.OpIconst3)
	a.op(bytecode.OpIreturn)
	b.AddMethod(classfile.AccPublic, "Ledger", "()I", 1, 1, a.code())

	a = newAsm(b)
	a.op(bytecode.OpLload1)
	a.op(bytecode.OpLload1)
	a.op(bytecode.OpLadd)
	a.op(bytecode.OpLreturn)
	b.AddMethod(classfile.AccPublic, "Ledger", "(J)J", 4, 3, a.code())
	return b.MustBuild()
}

// MainClass builds com.acme.Main, whose main prints new Order().total(5),
// Calc.add(2, 3) and new Child(7).label().
func MainClass() *classfile.ClassFile {
	b := classfile.NewBuilder(Main, object)
	p := b.Pool()
	sysOut := p.Fieldref("java/lang/System", "out", "L"+out+";")
	printTop := func(a *asm, descriptor string) {
		a.ref(bytecode.OpInvokevirtual, p.Methodref(out, "println", "("+descriptor+")V"))
	}

	a := newAsm(b)
	a.ref(bytecode.OpNew, p.Class(Order))
	a.op(bytecode.OpDup)
	a.ref(bytecode.OpInvokespecial, p.Methodref(Order, "<init>", noArgs))
	a.op(bytecode.OpAstore1)
	a.ref(bytecode.OpGetstatic, sysOut)
	a.op(bytecode.OpAload1)
	a.op(bytecode.OpIconst5)
	a.ref(bytecode.OpInvokevirtual, p.Methodref(Order, "total", "(I)I"))
	printTop(a, "I")

	a.ref(bytecode.OpGetstatic, sysOut)
	a.op(bytecode.OpIconst2)
	a.op(bytecode.OpIconst3)
	a.ref(bytecode.OpInvokestatic, p.Methodref(Calc, "add", "(II)I"))
	printTop(a, "I")

	a.ref(bytecode.OpGetstatic, sysOut)
	a.ref(bytecode.OpNew, p.Class(Child))
	a.op(bytecode.OpDup)
	a.op(bytecode.OpBipush, 7)
	a.ref(bytecode.OpInvokespecial, p.Methodref(Child, "<init>", "(I)V"))
	a.ref(bytecode.OpInvokevirtual, p.Methodref(Base, "label", "()"+str))
	printTop(a, str)
	a.op(bytecode.OpReturn)
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "main", "([Ljava/lang/String;)V", 4, 2, a.code())
	return b.MustBuild()
}

// Bytes encodes cf, panicking on failure.
func Bytes(cf *classfile.ClassFile) []byte {
	data, err := cf.Bytes()
	if err != nil {
		panic(fmt.Sprintf("fixture: %v", err))
	}
	return data
}

// Classes returns every fixture class keyed by internal name.
func Classes() classpath.Memory {
	return classpath.Memory{
		Order:  Bytes(OrderClass()),
		Calc:   Bytes(CalcClass()),
		Base:   Bytes(BaseClass()),
		Child:  Bytes(ChildClass()),
		Main:   Bytes(MainClass()),
		Ledger: Bytes(LedgerClass()),
	}
}

// Path returns a class path serving the fixture classes.
func Path() *classpath.Path {
	return classpath.New(Classes())
}
