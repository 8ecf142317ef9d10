package vm

import "fmt"

// JObject represents a JVM object instance.
type JObject struct {
	ClassName string
	Fields    map[string]Value
}

// NewObject allocates an instance with no fields set.
func NewObject(className string) *JObject {
	return &JObject{ClassName: className, Fields: make(map[string]Value)}
}

func (o *JObject) String() string {
	return fmt.Sprintf("%s@%p", o.ClassName, o)
}

// JArray represents a JVM array. Component is the element descriptor.
type JArray struct {
	Component string
	Elements  []Value
}

// NewArray allocates an array filled with the component's default value.
func NewArray(component string, length int) *JArray {
	arr := &JArray{Component: component, Elements: make([]Value, length)}
	zero := zeroValue(component)
	for i := range arr.Elements {
		arr.Elements[i] = zero
	}
	return arr
}
