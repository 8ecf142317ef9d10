package vm

import (
	"fmt"

	"github.com/daimatz/jweave/pkg/interceptor"
	"github.com/daimatz/jweave/pkg/native"
)

// callHook serves invokestatic on the hook bridge class by handing the
// converted arguments to the registry. Interceptor failures are logged and
// never reach the woven method.
func (vm *VM) callHook(method, descriptor string, args []Value) (Value, error) {
	if vm.hooks == nil {
		return Value{}, fmt.Errorf("%s.%s: no interceptor registry attached", interceptor.BridgeClass, method)
	}

	var err error
	switch {
	case method == interceptor.BeforeMethod && descriptor == interceptor.BeforeDescriptor:
		id, target, class, name, params := vm.hookArgs(args)
		err = vm.hooks.Before(id, target, class, name, params)
	case method == interceptor.AfterMethod && descriptor == interceptor.AfterDescriptor:
		id, target, class, name, params := vm.hookArgs(args)
		err = vm.hooks.After(id, target, class, name, params, vm.toGo(args[5]))
	case method == interceptor.AfterThrowMethod && descriptor == interceptor.AfterDescriptor:
		id, target, class, name, params := vm.hookArgs(args)
		err = vm.hooks.After(id, target, class, name, params, vm.thrown(args[5]))
	default:
		return Value{}, NewJavaExceptionMsg("java/lang/NoSuchMethodError", interceptor.BridgeClass+"."+method+descriptor)
	}
	if err != nil {
		vm.logger.V(1).Info("interceptor failed", "hook", method, "error", err.Error())
	}
	return Value{}, nil
}

func (vm *VM) hookArgs(args []Value) (id int, target any, class, name string, params []any) {
	id = int(args[0].Int)
	target = vm.toGo(args[1])
	class, _ = args[2].Ref.(string)
	name, _ = args[3].Ref.(string)
	params, _ = vm.toGo(args[4]).([]any)
	return id, target, class, name, params
}

// thrown converts the object caught by a catch-all handler. Throwables
// become *JavaException so interceptors see an error.
func (vm *VM) thrown(v Value) any {
	if obj, ok := v.Ref.(*JObject); ok && vm.isThrowable(obj.ClassName) {
		return &JavaException{Object: obj}
	}
	return vm.toGo(v)
}

// toGo converts a VM value to what interceptors receive: primitives and
// wrappers as Go scalars, arrays as []any and objects as *JObject.
func (vm *VM) toGo(v Value) any {
	switch v.Type {
	case TypeInt:
		return v.Int
	case TypeLong:
		return v.Long
	case TypeFloat:
		return v.Float
	case TypeDouble:
		return v.Double
	case TypeNull:
		return nil
	}
	switch r := v.Ref.(type) {
	case nil:
		return nil
	case native.Boxed:
		return r.Unbox()
	case *JArray:
		out := make([]any, len(r.Elements))
		for i, e := range r.Elements {
			out[i] = vm.toGo(e)
		}
		return out
	default:
		return r
	}
}
