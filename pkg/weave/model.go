package weave

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/daimatz/jweave/pkg/classfile"
)

// ClassModel is the editable form of one class during a weaving session.
// It must not be woven from more than one goroutine at a time.
type ClassModel struct {
	pool     *ClassPool
	cf       *classfile.ClassFile
	internal string
	session  uuid.UUID
	logger   logr.Logger

	woven  map[int]bool
	frozen bool
}

// LoadModel parses a private copy of className (dotted or internal form)
// from pool.
func LoadModel(pool *ClassPool, className string, logger logr.Logger) (*ClassModel, error) {
	internal := classfile.InternalName(className)
	cf, err := pool.load(internal)
	if err != nil {
		return nil, &Error{Op: "load", Class: classfile.DottedName(internal), Err: err}
	}
	m := &ClassModel{
		pool:     pool,
		cf:       cf,
		internal: internal,
		session:  uuid.New(),
		woven:    make(map[int]bool),
	}
	m.logger = logger.WithValues("class", m.Name(), "session", m.session.String())
	return m, nil
}

// Name returns the dotted class name.
func (m *ClassModel) Name() string { return classfile.DottedName(m.internal) }

// InternalName returns the slash-separated class name.
func (m *ClassModel) InternalName() string { return m.internal }

// SimpleName returns the name without package or enclosing classes.
func (m *ClassModel) SimpleName() string {
	n := m.internal
	if i := strings.LastIndexByte(n, '/'); i >= 0 {
		n = n[i+1:]
	}
	if i := strings.LastIndexByte(n, '$'); i >= 0 {
		n = n[i+1:]
	}
	return n
}

// Session identifies the weaving session in logs and errors.
func (m *ClassModel) Session() uuid.UUID { return m.session }

// Pool returns the pool the model was loaded from.
func (m *ClassModel) Pool() *ClassPool { return m.pool }

// ClassFile exposes the class being edited. Callers must not modify it.
func (m *ClassModel) ClassFile() *classfile.ClassFile { return m.cf }

// Frozen reports whether the model was materialized.
func (m *ClassModel) Frozen() bool { return m.frozen }

// Woven reports whether any member received hooks.
func (m *ClassModel) Woven() bool { return len(m.woven) > 0 }

// Methods returns handles for every declared method and constructor, in
// class-file order.
func (m *ClassModel) Methods() []*MethodHandle {
	out := make([]*MethodHandle, len(m.cf.Methods))
	for i := range m.cf.Methods {
		out[i] = &MethodHandle{model: m, index: i}
	}
	return out
}

// MethodHandle designates one declared member of a ClassModel.
type MethodHandle struct {
	model *ClassModel
	index int
}

func (h *MethodHandle) info() *classfile.MethodInfo { return &h.model.cf.Methods[h.index] }

// Model returns the class the member belongs to.
func (h *MethodHandle) Model() *ClassModel { return h.model }

// Name returns the member name as declared ("<init>" for constructors).
func (h *MethodHandle) Name() string { return h.info().Name }

// Descriptor returns the JVM method descriptor.
func (h *MethodHandle) Descriptor() string { return h.info().Descriptor }

// IsStatic reports whether the member has no receiver.
func (h *MethodHandle) IsStatic() bool { return h.info().IsStatic() }

// IsConstructor reports whether the member is an instance initializer.
func (h *MethodHandle) IsConstructor() bool { return h.info().IsConstructor() }

// IsClassInitializer reports whether the member is <clinit>.
func (h *MethodHandle) IsClassInitializer() bool { return h.info().Name == "<clinit>" }

// IsEmpty reports whether the member has no body (abstract or native).
func (h *MethodHandle) IsEmpty() bool { return h.info().Code == nil }

// Code returns the member's body, or nil.
func (h *MethodHandle) Code() *classfile.CodeAttribute { return h.info().Code }

// HookName is the method name reported to interceptors: the declared name,
// or the simple class name for constructors.
func (h *MethodHandle) HookName() string {
	if h.IsConstructor() {
		return h.model.SimpleName()
	}
	return h.Name()
}

// LongName renders the member as Java source would name it, for example
// "com.acme.Order.total(int)".
func (h *MethodHandle) LongName() string {
	params := "?"
	if mt, err := classfile.ParseMethodDescriptor(h.Descriptor()); err == nil {
		names := make([]string, len(mt.Params))
		for i, p := range mt.Params {
			names[i] = classfile.JavaTypeName(p)
		}
		params = strings.Join(names, ",")
	}
	return fmt.Sprintf("%s.%s(%s)", h.model.Name(), h.HookName(), params)
}

func (h *MethodHandle) String() string { return h.LongName() }
