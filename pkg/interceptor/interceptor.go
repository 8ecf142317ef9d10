package interceptor

// BeforeInterceptor observes method entry. target is nil for static
// methods; args holds the boxed arguments in declaration order.
type BeforeInterceptor interface {
	Before(target any, className, methodName string, args []any)
}

// AfterInterceptor observes every method exit. result is the boxed return
// value (nil for void), or the thrown object when the method completes
// abruptly. Runtimes deliver a thrown object as an error value; a throwable
// returned normally arrives like any other object.
type AfterInterceptor interface {
	After(target any, className, methodName string, args []any, result any)
}

// BeforeFunc adapts a function to BeforeInterceptor.
type BeforeFunc func(target any, className, methodName string, args []any)

func (f BeforeFunc) Before(target any, className, methodName string, args []any) {
	f(target, className, methodName, args)
}

// AfterFunc adapts a function to AfterInterceptor.
type AfterFunc func(target any, className, methodName string, args []any, result any)

func (f AfterFunc) After(target any, className, methodName string, args []any, result any) {
	f(target, className, methodName, args, result)
}

type around struct {
	BeforeFunc
	AfterFunc
}

// NewAround combines two functions into an interceptor classified as Around.
func NewAround(before BeforeFunc, after AfterFunc) interface {
	BeforeInterceptor
	AfterInterceptor
} {
	return around{BeforeFunc: before, AfterFunc: after}
}
