package native

// NativeHashMap represents a java.util.HashMap.
type NativeHashMap struct {
	Data map[any]any
}

// NewNativeHashMap creates a new NativeHashMap.
func NewNativeHashMap() *NativeHashMap {
	return &NativeHashMap{Data: make(map[any]any)}
}

// key makes boxed keys compare by value, as equals() does for wrappers.
func key(k any) any {
	if b, ok := k.(Boxed); ok {
		return b.Unbox()
	}
	return k
}

// Get returns the value for the given key.
func (m *NativeHashMap) Get(k any) any {
	return m.Data[key(k)]
}

// Put stores a key-value pair and returns the previous value.
func (m *NativeHashMap) Put(k, value any) any {
	mk := key(k)
	old := m.Data[mk]
	m.Data[mk] = value
	return old
}

// Size returns the number of mappings.
func (m *NativeHashMap) Size() int32 {
	return int32(len(m.Data))
}

// ContainsKey reports whether k is mapped, even to null.
func (m *NativeHashMap) ContainsKey(k any) bool {
	_, ok := m.Data[key(k)]
	return ok
}
