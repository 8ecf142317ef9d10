package vm

import (
	"github.com/daimatz/jweave/pkg/classfile"
)

// messageField holds a throwable's detail message.
const messageField = "detailMessage"

// JavaException represents a JVM exception being thrown. It is the error
// returned to Go callers when a Java exception escapes.
type JavaException struct {
	Object *JObject
}

func (e *JavaException) Error() string {
	name := classfile.DottedName(e.Object.ClassName)
	if msg, ok := e.Message(); ok {
		return name + ": " + msg
	}
	return name
}

// Message returns the detail message, if one was set.
func (e *JavaException) Message() (string, bool) {
	v, ok := e.Object.Fields[messageField]
	if !ok || v.IsNull() {
		return "", false
	}
	s, ok := v.Ref.(string)
	return s, ok
}

// ClassName returns the internal name of the thrown object's class.
func (e *JavaException) ClassName() string { return e.Object.ClassName }

// NewJavaException creates a throwable of the given class without a message.
func NewJavaException(className string) *JavaException {
	return &JavaException{Object: NewObject(className)}
}

// NewJavaExceptionMsg creates a throwable with a detail message.
func NewJavaExceptionMsg(className, msg string) *JavaException {
	e := NewJavaException(className)
	e.Object.Fields[messageField] = RefValue(msg)
	return e
}
