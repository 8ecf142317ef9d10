package weave

import (
	"fmt"
	"strings"

	"github.com/daimatz/jweave/pkg/classfile"
)

// Resolve finds the single declared member of model named methodName whose
// parameters are paramTypes, given as Java source names ("int", "long[]",
// "java.lang.String"). A nil paramTypes matches by name alone; an empty,
// non-nil slice selects the no-argument overload. Constructors are named
// "<init>" or by the simple class name; a method declared with the simple
// class name competes with the constructors and never shadows them.
func Resolve(model *ClassModel, methodName string, paramTypes []string) (*MethodHandle, error) {
	member := methodName
	if paramTypes != nil {
		member = methodName + "(" + strings.Join(paramTypes, ",") + ")"
	}
	fail := func(err error) (*MethodHandle, error) {
		return nil, &Error{Op: "resolve", Class: model.Name(), Member: member, Err: err}
	}

	if methodName == "<clinit>" {
		return fail(fmt.Errorf("%w: class initializers cannot be intercepted", ErrMethodNotFound))
	}

	var wantParams string
	if paramTypes != nil {
		var b strings.Builder
		b.WriteByte('(')
		for _, t := range paramTypes {
			desc, class, err := classfile.JavaTypeDescriptor(t)
			if err != nil || desc == "V" {
				return fail(fmt.Errorf("%w: %q", ErrUnknownType, t))
			}
			if class != "" && !model.pool.Contains(class) {
				return fail(fmt.Errorf("%w: %s", ErrUnknownType, t))
			}
			b.WriteString(desc)
		}
		b.WriteByte(')')
		wantParams = b.String()
	}

	var found []*MethodHandle
	for _, h := range model.Methods() {
		if h.Name() != methodName && !(h.IsConstructor() && methodName == model.SimpleName()) {
			continue
		}
		if paramTypes != nil && !strings.HasPrefix(h.Descriptor(), wantParams) {
			continue
		}
		found = append(found, h)
	}

	switch len(found) {
	case 0:
		return fail(ErrMethodNotFound)
	case 1:
		return found[0], nil
	default:
		longNames := make([]string, len(found))
		for i, h := range found {
			longNames[i] = h.Descriptor()
			if h.IsConstructor() && methodName != "<init>" {
				longNames[i] = h.Name() + longNames[i]
			}
		}
		return fail(fmt.Errorf("%w: %d candidates %s", ErrAmbiguousMethod, len(found), strings.Join(longNames, " ")))
	}
}
