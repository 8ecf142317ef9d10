package vm

import (
	"fmt"

	"github.com/daimatz/jweave/pkg/classfile"
)

// Class is a linked class. Built-in classes have no File; their behavior is
// provided by natives.
type Class struct {
	name    string
	File    *classfile.ClassFile
	Super   *Class
	statics map[string]Value
	vm      *VM

	initialized bool
}

// Name returns the dotted binary name of the class.
func (c *Class) Name() string { return classfile.DottedName(c.name) }

// InternalName returns the slash-separated class name.
func (c *Class) InternalName() string { return c.name }

// Builtin reports whether the class is provided by the VM itself.
func (c *Class) Builtin() bool { return c.File == nil }

// FindMethod looks up name and descriptor on c and then on its superclasses.
func (c *Class) FindMethod(name, descriptor string) (*Class, *classfile.MethodInfo) {
	for k := c; k != nil; k = k.Super {
		if k.File == nil {
			continue
		}
		if m := k.File.FindMethod(name, descriptor); m != nil {
			return k, m
		}
	}
	return nil, nil
}

// IsSubclassOf reports whether c is ancestor or extends it, directly or
// through interfaces declared by loaded classes.
func (c *Class) IsSubclassOf(ancestor string) bool {
	for k := c; k != nil; k = k.Super {
		if k.name == ancestor {
			return true
		}
		if k.File == nil {
			for _, iface := range builtinInterfaces[k.name] {
				if iface == ancestor {
					return true
				}
			}
			continue
		}
		for _, idx := range k.File.Interfaces {
			name, err := classfile.GetClassName(k.File.ConstantPool, idx)
			if err != nil {
				continue
			}
			if name == ancestor {
				return true
			}
			if iface, err := k.vm.LoadClass(name); err == nil && iface.IsSubclassOf(ancestor) {
				return true
			}
		}
	}
	return false
}

// declaringClass returns the class on the superclass chain that declares
// the named field, or c when none does.
func (c *Class) declaringClass(field string) *Class {
	for k := c; k != nil; k = k.Super {
		if k.File == nil {
			continue
		}
		for _, f := range k.File.Fields {
			if f.Name == field {
				return k
			}
		}
	}
	return c
}

// Invoke calls the static method name with the given descriptor.
func (c *Class) Invoke(name, descriptor string, args ...Value) (ret Value, err error) {
	defer c.vm.guard(&err)
	owner, m := c.FindMethod(name, descriptor)
	if m == nil || !m.IsStatic() {
		return Value{}, fmt.Errorf("static method %s.%s%s not found", c.Name(), name, descriptor)
	}
	if err := c.vm.initialize(owner); err != nil {
		return Value{}, err
	}
	return c.vm.executeMethod(owner, m, args)
}

// New allocates an instance and runs the constructor with the given
// descriptor on it.
func (c *Class) New(descriptor string, args ...Value) (obj *JObject, err error) {
	defer c.vm.guard(&err)
	if err := c.vm.initialize(c); err != nil {
		return nil, err
	}
	obj = NewObject(c.name)
	full := append([]Value{RefValue(obj)}, args...)
	if _, err := c.vm.invokeSpecial(c.name, "<init>", descriptor, full); err != nil {
		return nil, err
	}
	return obj, nil
}

// builtinSupers is the class hierarchy the VM provides without class files.
var builtinSupers = map[string]string{
	"java/lang/Object":                          "",
	"java/lang/String":                          "java/lang/Object",
	"java/lang/Number":                          "java/lang/Object",
	"java/lang/Integer":                         "java/lang/Number",
	"java/lang/Long":                            "java/lang/Number",
	"java/lang/Float":                           "java/lang/Number",
	"java/lang/Double":                          "java/lang/Number",
	"java/lang/Byte":                            "java/lang/Number",
	"java/lang/Short":                           "java/lang/Number",
	"java/lang/Boolean":                         "java/lang/Object",
	"java/lang/Character":                       "java/lang/Object",
	"java/lang/System":                          "java/lang/Object",
	"java/io/PrintStream":                       "java/lang/Object",
	"java/util/HashMap":                         "java/lang/Object",
	"java/lang/StringBuilder":                   "java/lang/Object",
	"java/lang/Math":                            "java/lang/Object",
	"java/lang/Throwable":                       "java/lang/Object",
	"java/lang/Exception":                       "java/lang/Throwable",
	"java/lang/Error":                           "java/lang/Throwable",
	"java/lang/RuntimeException":                "java/lang/Exception",
	"java/lang/IllegalStateException":           "java/lang/RuntimeException",
	"java/lang/IllegalArgumentException":        "java/lang/RuntimeException",
	"java/lang/ArithmeticException":             "java/lang/RuntimeException",
	"java/lang/NullPointerException":            "java/lang/RuntimeException",
	"java/lang/ClassCastException":              "java/lang/RuntimeException",
	"java/lang/UnsupportedOperationException":   "java/lang/RuntimeException",
	"java/lang/IndexOutOfBoundsException":       "java/lang/RuntimeException",
	"java/lang/ArrayIndexOutOfBoundsException":  "java/lang/IndexOutOfBoundsException",
	"java/lang/NegativeArraySizeException":      "java/lang/RuntimeException",
	"java/lang/VirtualMachineError":             "java/lang/Error",
	"java/lang/StackOverflowError":              "java/lang/VirtualMachineError",
	"java/lang/LinkageError":                    "java/lang/Error",
	"java/lang/NoClassDefFoundError":            "java/lang/LinkageError",
	"java/lang/IncompatibleClassChangeError":    "java/lang/LinkageError",
	"java/lang/AbstractMethodError":             "java/lang/IncompatibleClassChangeError",
	"java/lang/NoSuchMethodError":               "java/lang/IncompatibleClassChangeError",
	"java/lang/CloneNotSupportedException":      "java/lang/Exception",
	"java/lang/InterruptedException":            "java/lang/Exception",
	"java/lang/ReflectiveOperationException":    "java/lang/Exception",
	"java/lang/ClassNotFoundException":          "java/lang/ReflectiveOperationException",
	"java/lang/ArrayStoreException":             "java/lang/RuntimeException",
	"java/lang/StringIndexOutOfBoundsException": "java/lang/IndexOutOfBoundsException",
}

// builtinInterfaces lists the interfaces built-in classes answer to in
// checkcast and instanceof.
var builtinInterfaces = map[string][]string{
	"java/lang/String":        {"java/lang/CharSequence", "java/lang/Comparable", "java/io/Serializable"},
	"java/lang/StringBuilder": {"java/lang/CharSequence", "java/lang/Appendable", "java/io/Serializable"},
	"java/lang/Number":        {"java/io/Serializable"},
	"java/lang/Integer":       {"java/lang/Comparable"},
	"java/lang/Long":          {"java/lang/Comparable"},
	"java/lang/Float":         {"java/lang/Comparable"},
	"java/lang/Double":        {"java/lang/Comparable"},
	"java/lang/Byte":          {"java/lang/Comparable"},
	"java/lang/Short":         {"java/lang/Comparable"},
	"java/lang/Boolean":       {"java/lang/Comparable", "java/io/Serializable"},
	"java/lang/Character":     {"java/lang/Comparable", "java/io/Serializable"},
	"java/lang/Throwable":     {"java/io/Serializable"},
	"java/util/HashMap":       {"java/util/Map", "java/lang/Cloneable", "java/io/Serializable"},
}
