package weave

import (
	"fmt"
	"math"

	"github.com/daimatz/jweave/pkg/bytecode"
	"github.com/daimatz/jweave/pkg/classfile"
)

// LiveClass is a class defined in a running runtime.
type LiveClass interface {
	Name() string
}

// ClassDefiner delivers class bytes to a runtime. name is the dotted
// binary name.
type ClassDefiner interface {
	DefineClass(name string, data []byte) (LiveClass, error)
}

// DefinerFunc adapts a function to ClassDefiner.
type DefinerFunc func(name string, data []byte) (LiveClass, error)

func (f DefinerFunc) DefineClass(name string, data []byte) (LiveClass, error) {
	return f(name, data)
}

// ToBinary verifies the model and returns its class-file bytes. The model is
// frozen afterwards.
func ToBinary(m *ClassModel) ([]byte, error) {
	fail := func(err error) ([]byte, error) {
		return nil, &Error{Op: "materialize", Class: m.Name(), Err: err}
	}
	if m.frozen {
		return fail(ErrClassFrozen)
	}
	if err := verify(m.cf); err != nil {
		return fail(err)
	}

	major, minor := m.cf.MajorVersion, m.cf.MinorVersion
	if m.Woven() && major > classfile.MajorJava6 {
		if feature, ok := requiresStackMaps(m.cf); ok {
			return fail(fmt.Errorf("%w: woven methods carry no stack map frames and the class uses %s, which needs version %d or later",
				ErrMaterialization, feature, classfile.MajorJava7))
		}
		major, minor = classfile.MajorJava6, 0
	}

	saved := [2]uint16{m.cf.MajorVersion, m.cf.MinorVersion}
	m.cf.MajorVersion, m.cf.MinorVersion = major, minor
	data, err := m.cf.Bytes()
	if err != nil {
		m.cf.MajorVersion, m.cf.MinorVersion = saved[0], saved[1]
		return fail(fmt.Errorf("%w: %w", ErrMaterialization, err))
	}
	m.frozen = true
	m.logger.V(1).Info("materialized", "bytes", len(data), "version", classfile.FileVersion(major, minor).String())
	return data, nil
}

// ToLiveClass materializes the model and defines it through d.
func ToLiveClass(m *ClassModel, d ClassDefiner) (LiveClass, error) {
	data, err := ToBinary(m)
	if err != nil {
		return nil, err
	}
	lc, err := d.DefineClass(m.Name(), data)
	if err != nil {
		return nil, &Error{Op: "materialize", Class: m.Name(), Err: fmt.Errorf("%w: defining class: %w", ErrMaterialization, err)}
	}
	return lc, nil
}

// verify checks what the writer cannot: every body decodes, handler ranges
// sit on instruction boundaries and sizes fit the format.
func verify(cf *classfile.ClassFile) error {
	if len(cf.ConstantPool) > math.MaxUint16 {
		return fmt.Errorf("%w: constant pool has %d entries", ErrMaterialization, len(cf.ConstantPool))
	}
	for i := range cf.Methods {
		m := &cf.Methods[i]
		if m.Code == nil {
			continue
		}
		if len(m.Code.Code) == 0 || len(m.Code.Code) > bytecode.MaxCodeLength {
			return fmt.Errorf("%w: %s%s has code length %d", ErrMaterialization, m.Name, m.Descriptor, len(m.Code.Code))
		}
		l, err := bytecode.Decode(m.Code.Code)
		if err != nil {
			return fmt.Errorf("%w: %s%s: %w", ErrMaterialization, m.Name, m.Descriptor, err)
		}
		boundary := func(pc uint16, endOK bool) bool {
			return l.At(int(pc)) != nil || (endOK && int(pc) == len(m.Code.Code))
		}
		for _, eh := range m.Code.ExceptionHandlers {
			if !boundary(eh.StartPC, false) || !boundary(eh.EndPC, true) || !boundary(eh.HandlerPC, false) || eh.StartPC >= eh.EndPC {
				return fmt.Errorf("%w: %s%s has exception range [%d,%d)->%d off instruction boundaries",
					ErrMaterialization, m.Name, m.Descriptor, eh.StartPC, eh.EndPC, eh.HandlerPC)
			}
		}
	}
	return nil
}

// requiresStackMaps names a construct that only exists in class files of
// version 51 or later, which the type-inferring verifier rejects.
func requiresStackMaps(cf *classfile.ClassFile) (string, bool) {
	for _, e := range cf.ConstantPool {
		if e == nil {
			continue
		}
		switch e.Tag() {
		case classfile.TagMethodHandle, classfile.TagMethodType, classfile.TagDynamic, classfile.TagInvokeDynamic,
			classfile.TagModule, classfile.TagPackage:
			return fmt.Sprintf("constant tag %d", e.Tag()), true
		}
	}
	for _, a := range cf.Attributes {
		switch a.Name {
		case "NestHost", "NestMembers", "Record", "Module", "PermittedSubclasses", classfile.AttrBootstrapMethods:
			return a.Name + " attribute", true
		}
	}
	if cf.AccessFlags&classfile.AccInterface != 0 {
		for i := range cf.Methods {
			if cf.Methods[i].Code != nil && cf.Methods[i].Name != "<clinit>" {
				return "interface method bodies", true
			}
		}
	}
	for i := range cf.Methods {
		c := cf.Methods[i].Code
		if c == nil {
			continue
		}
		l, err := bytecode.Decode(c.Code)
		if err != nil {
			continue
		}
		for _, in := range l.Insns {
			if in.Op != bytecode.OpInvokestatic && in.Op != bytecode.OpInvokespecial {
				continue
			}
			idx := int(in.Operand[0])<<8 | int(in.Operand[1])
			if idx < len(cf.ConstantPool) {
				if _, ok := cf.ConstantPool[idx].(*classfile.ConstantInterfaceMethodref); ok {
					return "static or special calls through interface method references", true
				}
			}
		}
	}
	return "", false
}
