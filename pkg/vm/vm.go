package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"

	"github.com/daimatz/jweave/pkg/bytecode"
	"github.com/daimatz/jweave/pkg/classfile"
	"github.com/daimatz/jweave/pkg/interceptor"
	"github.com/daimatz/jweave/pkg/native"
)

// maxFrameDepth is the maximum number of nested method calls.
const maxFrameDepth = 1024

// ClassLoader supplies class files by internal name.
type ClassLoader interface {
	LoadClass(name string) (*classfile.ClassFile, error)
}

// VM is the virtual machine that executes Java bytecode. A VM is not safe
// for concurrent use.
type VM struct {
	loader ClassLoader
	hooks  *interceptor.Registry
	logger logr.Logger

	Stdout io.Writer
	Stderr io.Writer

	classes    map[string]*Class
	hashes     map[any]int32
	frameDepth int
}

// Option configures a VM.
type Option func(*VM)

// WithHooks attaches the registry that serves calls into the hook bridge
// class emitted by the weaver.
func WithHooks(r *interceptor.Registry) Option {
	return func(vm *VM) { vm.hooks = r }
}

// WithStdout redirects System.out.
func WithStdout(w io.Writer) Option {
	return func(vm *VM) { vm.Stdout = w }
}

// WithLogger sets the logger for class loading and hook failures.
func WithLogger(l logr.Logger) Option {
	return func(vm *VM) { vm.logger = l }
}

// NewVM creates a new VM resolving classes through loader. loader may be
// nil when every class is supplied with DefineClass.
func NewVM(loader ClassLoader, opts ...Option) *VM {
	vm := &VM{
		loader:  loader,
		logger:  logr.Discard(),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		classes: make(map[string]*Class),
		hashes:  make(map[any]int32),
	}
	for _, o := range opts {
		o(vm)
	}
	return vm
}

// DefineClass parses data and links it as a new class. name, if not empty,
// must match the class the bytes declare. A class can be defined once.
func (vm *VM) DefineClass(name string, data []byte) (*Class, error) {
	cf, err := classfile.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("defining %s: %w", name, err)
	}
	internal, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("defining %s: %w", name, err)
	}
	if name != "" && classfile.InternalName(name) != internal {
		return nil, fmt.Errorf("defining %s: bytes declare %s", name, classfile.DottedName(internal))
	}
	if err := classfile.CheckVersion(cf.MajorVersion, cf.MinorVersion); err != nil {
		return nil, fmt.Errorf("defining %s: %w", classfile.DottedName(internal), err)
	}
	if _, ok := vm.classes[internal]; ok {
		return nil, fmt.Errorf("defining %s: class already loaded", classfile.DottedName(internal))
	}
	c, err := vm.link(internal, cf)
	if err != nil {
		return nil, err
	}
	vm.logger.V(1).Info("defined class", "class", c.Name(), "bytes", len(data))
	return c, nil
}

// LoadClass returns the named class, loading and linking it on first use.
// name may be dotted or internal.
func (vm *VM) LoadClass(name string) (*Class, error) {
	name = classfile.InternalName(name)
	if c, ok := vm.classes[name]; ok {
		return c, nil
	}
	if super, ok := builtinSupers[name]; ok {
		c := &Class{name: name, statics: make(map[string]Value), vm: vm, initialized: true}
		if super != "" {
			s, err := vm.LoadClass(super)
			if err != nil {
				return nil, err
			}
			c.Super = s
		}
		vm.classes[name] = c
		return c, nil
	}
	if vm.loader == nil {
		return nil, NewJavaExceptionMsg("java/lang/NoClassDefFoundError", name)
	}
	cf, err := vm.loader.LoadClass(name)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", classfile.DottedName(name), err)
	}
	c, err := vm.link(name, cf)
	if err != nil {
		return nil, err
	}
	vm.logger.V(1).Info("loaded class", "class", c.Name())
	return c, nil
}

func (vm *VM) link(name string, cf *classfile.ClassFile) (*Class, error) {
	c := &Class{name: name, File: cf, statics: make(map[string]Value), vm: vm}
	if superName := cf.SuperClassName(); superName != "" {
		super, err := vm.LoadClass(superName)
		if err != nil {
			return nil, fmt.Errorf("linking %s: %w", c.Name(), err)
		}
		c.Super = super
	}
	vm.classes[name] = c
	return c, nil
}

// initialize runs the static initializers of c and its superclasses once.
func (vm *VM) initialize(c *Class) error {
	if c.initialized {
		return nil
	}
	c.initialized = true
	if c.Super != nil {
		if err := vm.initialize(c.Super); err != nil {
			return err
		}
	}
	if m := c.File.FindMethod("<clinit>", "()V"); m != nil {
		if _, err := vm.executeMethod(c, m, nil); err != nil {
			return err
		}
	}
	return nil
}

// Execute finds and executes the main method of the named class.
func (vm *VM) Execute(className string) (err error) {
	defer vm.guard(&err)
	c, err := vm.LoadClass(className)
	if err != nil {
		return err
	}
	owner, method := c.FindMethod("main", "([Ljava/lang/String;)V")
	if method == nil || !method.IsStatic() {
		return fmt.Errorf("main method not found in %s", c.Name())
	}
	if err := vm.initialize(owner); err != nil {
		return err
	}
	args := []Value{RefValue(NewArray("Ljava/lang/String;", 0))}
	_, err = vm.executeMethod(owner, method, args)
	return err
}

// InvokeVirtual calls an instance method on obj with virtual dispatch.
func (vm *VM) InvokeVirtual(obj *JObject, name, descriptor string, args ...Value) (ret Value, err error) {
	defer vm.guard(&err)
	full := append([]Value{RefValue(obj)}, args...)
	return vm.invokeVirtual(obj.ClassName, name, descriptor, full)
}

// guard converts a panic raised by malformed code into an error.
func (vm *VM) guard(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("vm: %v", r)
	}
}

// executeMethod executes a method with the given arguments and returns its return value.
func (vm *VM) executeMethod(class *Class, method *classfile.MethodInfo, args []Value) (Value, error) {
	if method.Code == nil {
		return Value{}, NewJavaExceptionMsg("java/lang/AbstractMethodError", class.Name()+"."+method.Name+method.Descriptor)
	}

	vm.frameDepth++
	defer func() { vm.frameDepth-- }()
	if vm.frameDepth > maxFrameDepth {
		return Value{}, NewJavaException("java/lang/StackOverflowError")
	}

	frame := NewFrame(method.Code.MaxLocals, method.Code.MaxStack, method.Code.Code, class)
	frame.Method = method

	slot := 0
	for _, arg := range args {
		frame.SetLocal(slot, arg)
		slot++
		if arg.Wide() {
			slot++
		}
	}

	for frame.PC < len(frame.Code) {
		start := frame.PC
		op := bytecode.Opcode(frame.Code[frame.PC])
		frame.PC++

		retVal, hasReturn, err := vm.executeInstruction(frame, op)
		if err != nil {
			var jex *JavaException
			if !errors.As(err, &jex) {
				return Value{}, err
			}
			handler, ok := vm.findHandler(frame, start, jex)
			if !ok {
				return Value{}, jex
			}
			frame.SP = 0
			frame.Push(RefValue(jex.Object))
			frame.PC = handler
			continue
		}
		if hasReturn {
			return retVal, nil
		}
	}

	// Fell off the end of the method (implicit return for void methods)
	return Value{}, nil
}

// findHandler returns the first exception table entry covering pc whose
// catch type matches the thrown object.
func (vm *VM) findHandler(frame *Frame, pc int, jex *JavaException) (int, bool) {
	for _, eh := range frame.Method.Code.ExceptionHandlers {
		if pc < int(eh.StartPC) || pc >= int(eh.EndPC) {
			continue
		}
		if eh.CatchType == 0 {
			return int(eh.HandlerPC), true
		}
		name, err := classfile.GetClassName(frame.Pool(), eh.CatchType)
		if err != nil {
			continue
		}
		if vm.isInstanceOf(jex.Object, name) {
			return int(eh.HandlerPC), true
		}
	}
	return 0, false
}

// isInstanceOf reports whether ref can be assigned to the class or array
// type named target.
func (vm *VM) isInstanceOf(ref any, target string) bool {
	if target == "java/lang/Object" {
		return true
	}
	if arr, ok := ref.(*JArray); ok {
		component, isArray := strings.CutPrefix(target, "[")
		if !isArray {
			return false
		}
		if component == arr.Component {
			return true
		}
		return component == "Ljava/lang/Object;" && classfile.IsReference(arr.Component)
	}
	name := refClassName(ref)
	c, err := vm.LoadClass(name)
	if err != nil {
		return name == target
	}
	return c.IsSubclassOf(target)
}

// isThrowable reports whether className extends java/lang/Throwable.
func (vm *VM) isThrowable(className string) bool {
	c, err := vm.LoadClass(className)
	return err == nil && c.IsSubclassOf("java/lang/Throwable")
}

// refClassName returns the internal class name of a reference.
func refClassName(ref any) string {
	switch r := ref.(type) {
	case *JObject:
		return r.ClassName
	case string:
		return "java/lang/String"
	case native.Boxed:
		return r.JavaClass()
	case *JArray:
		return "[" + r.Component
	case *native.NativeHashMap:
		return "java/util/HashMap"
	case *native.PrintStream:
		return "java/io/PrintStream"
	case *native.StringBuilder:
		return "java/lang/StringBuilder"
	}
	return "java/lang/Object"
}
