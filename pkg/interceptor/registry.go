package interceptor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
)

var (
	// ErrUnknownInterceptorID is returned by lookups outside the table.
	ErrUnknownInterceptorID = errors.New("unknown interceptor id")
	// ErrHookPanic is reported when an interceptor panics inside a hook.
	ErrHookPanic = errors.New("interceptor panicked")
)

// The bridge is the static class woven code calls into. Generated fragments
// embed only the registry id; the runtime hosting the registry serves these
// methods by calling Registry.Before and Registry.After. AfterThrowMethod
// shares AfterDescriptor and is called from the catch-all handler, so the
// runtime can hand the thrown object to After as an error value while a
// throwable that is merely returned stays an ordinary object.
const (
	BridgeClass      = "jweave/runtime/Hooks"
	BeforeMethod     = "before"
	BeforeDescriptor = "(ILjava/lang/Object;Ljava/lang/String;Ljava/lang/String;[Ljava/lang/Object;)V"
	AfterMethod      = "after"
	AfterThrowMethod = "afterThrowing"
	AfterDescriptor  = "(ILjava/lang/Object;Ljava/lang/String;Ljava/lang/String;[Ljava/lang/Object;Ljava/lang/Object;)V"
)

// Entry is one registered interceptor. Entries are never mutated.
type Entry struct {
	ID          int
	Capability  Capability
	Interceptor any
}

// Registry maps monotonically assigned ids to interceptors. Register calls
// are serialized; Lookup reads an immutable snapshot and never blocks.
type Registry struct {
	mu      sync.Mutex
	entries atomic.Pointer[[]Entry]
	logger  logr.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report hook failures.
func WithLogger(l logr.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{logger: logr.Discard()}
	for _, o := range opts {
		o(r)
	}
	empty := make([]Entry, 0, 16)
	r.entries.Store(&empty)
	return r
}

// Register classifies ic, appends it and returns its id. Interceptors
// without a capability are accepted; weaving them fails later.
func (r *Registry) Register(ic any) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := *r.entries.Load()
	id := len(cur)
	// Appending never touches elements visible to existing snapshots.
	next := append(cur, Entry{ID: id, Capability: Classify(ic), Interceptor: ic})
	r.entries.Store(&next)
	return id
}

// Lookup returns the entry registered under id.
func (r *Registry) Lookup(id int) (Entry, error) {
	entries := *r.entries.Load()
	if id < 0 || id >= len(entries) {
		return Entry{}, fmt.Errorf("%w: %d (registry holds %d)", ErrUnknownInterceptorID, id, len(entries))
	}
	return entries[id], nil
}

// Len returns the number of registered interceptors.
func (r *Registry) Len() int {
	return len(*r.entries.Load())
}

// Before dispatches a before-hook call from woven code.
func (r *Registry) Before(id int, target any, className, methodName string, args []any) (err error) {
	e, err := r.Lookup(id)
	if err != nil {
		return err
	}
	ic, ok := e.Interceptor.(BeforeInterceptor)
	if !ok {
		return fmt.Errorf("%w: interceptor %d is %s", ErrCapabilityMismatch, id, e.Capability)
	}
	defer r.recoverHook(&err, id, "before", className, methodName)
	r.logger.V(2).Info("before hook", "id", id, "class", className, "method", methodName, "args", len(args))
	ic.Before(target, className, methodName, args)
	return nil
}

// After dispatches an after-hook call from woven code.
func (r *Registry) After(id int, target any, className, methodName string, args []any, result any) (err error) {
	e, err := r.Lookup(id)
	if err != nil {
		return err
	}
	ic, ok := e.Interceptor.(AfterInterceptor)
	if !ok {
		return fmt.Errorf("%w: interceptor %d is %s", ErrCapabilityMismatch, id, e.Capability)
	}
	defer r.recoverHook(&err, id, "after", className, methodName)
	r.logger.V(2).Info("after hook", "id", id, "class", className, "method", methodName, "args", len(args))
	ic.After(target, className, methodName, args, result)
	return nil
}

func (r *Registry) recoverHook(err *error, id int, hook, className, methodName string) {
	p := recover()
	if p == nil {
		return
	}
	*err = fmt.Errorf("%w: %s hook %d on %s.%s: %v", ErrHookPanic, hook, id, className, methodName, p)
	r.logger.Error(*err, "interceptor failed", "id", id, "class", className, "method", methodName)
}
