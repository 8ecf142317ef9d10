package interceptor

import (
	"fmt"

	"github.com/go-logr/logr"
)

// LoggingInterceptor logs every call and exit of the methods it is woven
// into. It is the interceptor used for bulk "log every method" weaving.
type LoggingInterceptor struct {
	ClassName string
	Logger    logr.Logger
}

// NewLoggingInterceptor returns a LoggingInterceptor for className.
func NewLoggingInterceptor(className string, logger logr.Logger) *LoggingInterceptor {
	return &LoggingInterceptor{ClassName: className, Logger: logger.WithName("trace")}
}

func (l *LoggingInterceptor) Before(target any, className, methodName string, args []any) {
	l.Logger.Info("enter", "class", className, "method", methodName, "args", describe(args), "static", target == nil)
}

func (l *LoggingInterceptor) After(target any, className, methodName string, args []any, result any) {
	if err, ok := result.(error); ok {
		l.Logger.Info("throw", "class", className, "method", methodName, "args", describe(args), "error", err.Error())
		return
	}
	l.Logger.Info("exit", "class", className, "method", methodName, "args", describe(args), "result", fmt.Sprint(result))
}

func describe(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = fmt.Sprint(a)
	}
	return out
}
