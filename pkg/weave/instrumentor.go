package weave

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/daimatz/jweave/pkg/classfile"
	"github.com/daimatz/jweave/pkg/interceptor"
)

// Factory creates the interceptor used for every member of a class in bulk
// weaving.
type Factory func(className string) any

// WeaveRequest names one member to intercept.
type WeaveRequest struct {
	ClassName  string
	MethodName string
	// ParamTypes are Java source type names; nil matches by name alone.
	ParamTypes []string
	Kind       interceptor.Kind
}

// Instrumentor is the entry point of the weaving API. It owns one model
// per class and the registry hooks are bound through. Distinct classes may
// be woven concurrently; calls for the same class must be serialized.
type Instrumentor struct {
	pool     *ClassPool
	registry *interceptor.Registry
	logger   logr.Logger

	mu     sync.Mutex
	models map[string]*ClassModel
}

// Option configures an Instrumentor.
type Option func(*Instrumentor)

// WithLogger sets the logger for weaving diagnostics.
func WithLogger(l logr.Logger) Option {
	return func(i *Instrumentor) { i.logger = l }
}

// NewInstrumentor returns an Instrumentor resolving classes from pool and
// registering interceptors in registry.
func NewInstrumentor(pool *ClassPool, registry *interceptor.Registry, opts ...Option) *Instrumentor {
	i := &Instrumentor{
		pool:     pool,
		registry: registry,
		logger:   logr.Discard(),
		models:   make(map[string]*ClassModel),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Registry returns the registry woven code is bound to.
func (i *Instrumentor) Registry() *interceptor.Registry { return i.registry }

// Model returns the session model of className, loading it on first use.
func (i *Instrumentor) Model(className string) (*ClassModel, error) {
	key := classfile.InternalName(className)
	i.mu.Lock()
	defer i.mu.Unlock()
	if m, ok := i.models[key]; ok {
		return m, nil
	}
	m, err := LoadModel(i.pool, key, i.logger)
	if err != nil {
		return nil, err
	}
	i.models[key] = m
	return m, nil
}

// AddInterceptor registers ic and weaves it into the member selected by
// methodName and paramTypes. Resolution and capability errors are reported
// before the interceptor is registered.
func (i *Instrumentor) AddInterceptor(className, methodName string, paramTypes []string, ic any, kind interceptor.Kind) error {
	err := i.addInterceptor(className, methodName, paramTypes, ic, kind)
	if err != nil {
		i.logger.Error(err, "interceptor not applied", "class", className, "method", methodName, "kind", kind.String())
	}
	return err
}

func (i *Instrumentor) addInterceptor(className, methodName string, paramTypes []string, ic any, kind interceptor.Kind) error {
	m, err := i.Model(className)
	if err != nil {
		return err
	}
	h, err := Resolve(m, methodName, paramTypes)
	if err != nil {
		return err
	}
	if _, err := interceptor.Reconcile(interceptor.Classify(ic), kind); err != nil {
		return &Error{Op: "weave", Class: m.Name(), Member: h.Name() + h.Descriptor(), Err: err}
	}
	if m.frozen {
		return &Error{Op: "weave", Class: m.Name(), Member: h.Name() + h.Descriptor(), Err: ErrClassFrozen}
	}
	id := i.registry.Register(ic)
	return Weave(h, i.registry, id, kind)
}

// Apply runs a WeaveRequest through AddInterceptor.
func (i *Instrumentor) Apply(req WeaveRequest, ic any) error {
	return i.AddInterceptor(req.ClassName, req.MethodName, req.ParamTypes, ic, req.Kind)
}

// WeaveAllDeclaredMethods weaves one interceptor from factory into every
// declared method of className that has a body. Constructors and the class
// initializer are left alone. Members that fail are reported together;
// the others stay woven.
func (i *Instrumentor) WeaveAllDeclaredMethods(className string, factory Factory) error {
	return i.weaveAll(className, factory, func(h *MethodHandle) bool {
		return !h.IsConstructor() && !h.IsClassInitializer()
	})
}

// WeaveAllDeclaredConstructors is WeaveAllDeclaredMethods for constructors.
func (i *Instrumentor) WeaveAllDeclaredConstructors(className string, factory Factory) error {
	return i.weaveAll(className, factory, (*MethodHandle).IsConstructor)
}

func (i *Instrumentor) weaveAll(className string, factory Factory, include func(*MethodHandle) bool) error {
	m, err := i.Model(className)
	if err != nil {
		return err
	}
	if m.frozen {
		return &Error{Op: "weave", Class: m.Name(), Err: ErrClassFrozen}
	}
	ic := factory(m.Name())
	if interceptor.Classify(ic) == interceptor.None {
		return &Error{Op: "weave", Class: m.Name(), Err: interceptor.ErrUnsupportedInterceptorKind}
	}
	id := i.registry.Register(ic)

	var errs []error
	woven := 0
	for _, h := range m.Methods() {
		if !include(h) {
			continue
		}
		if h.IsEmpty() {
			m.logger.V(1).Info("skipping member without body", "member", h.LongName())
			continue
		}
		if err := Weave(h, i.registry, id, interceptor.KindAuto); err != nil {
			i.logger.Error(err, "member not woven", "member", h.LongName())
			errs = append(errs, err)
			continue
		}
		woven++
	}
	m.logger.V(1).Info("bulk weave done", "id", id, "woven", woven, "failed", len(errs))
	return errors.Join(errs...)
}

// ToBinary materializes className. The class cannot be woven afterwards.
func (i *Instrumentor) ToBinary(className string) ([]byte, error) {
	m, err := i.Model(className)
	if err != nil {
		return nil, err
	}
	data, err := ToBinary(m)
	if err != nil {
		i.logger.Error(err, "materialization failed", "class", m.Name())
	}
	return data, err
}

// ToLiveClass materializes className and defines it through d.
func (i *Instrumentor) ToLiveClass(className string, d ClassDefiner) (LiveClass, error) {
	m, err := i.Model(className)
	if err != nil {
		return nil, err
	}
	lc, err := ToLiveClass(m, d)
	if err != nil {
		i.logger.Error(err, "materialization failed", "class", m.Name())
		return nil, err
	}
	return lc, nil
}

// Classes returns the names of the classes loaded into this session.
func (i *Instrumentor) Classes() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, 0, len(i.models))
	for k := range i.models {
		out = append(out, classfile.DottedName(k))
	}
	return out
}

func (r WeaveRequest) String() string {
	if r.ParamTypes == nil {
		return fmt.Sprintf("%s.%s [%s]", r.ClassName, r.MethodName, r.Kind)
	}
	return fmt.Sprintf("%s.%s(%v) [%s]", r.ClassName, r.MethodName, r.ParamTypes, r.Kind)
}
