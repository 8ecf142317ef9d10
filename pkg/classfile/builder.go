package classfile

import "fmt"

// DefaultMajorVersion is the class-file version produced by Builder (Java 8).
const DefaultMajorVersion = 52

// Builder assembles a ClassFile in memory. Code is supplied as raw bytecode
// whose constant references are obtained from Pool().
type Builder struct {
	cf   *ClassFile
	pool *ConstPool
}

// NewBuilder starts a public class with the given internal name. An empty
// super name produces a class without a superclass (java/lang/Object itself).
func NewBuilder(name, super string) *Builder {
	b := &Builder{
		cf: &ClassFile{
			MajorVersion: DefaultMajorVersion,
			AccessFlags:  AccPublic | AccSuper,
		},
		pool: NewConstPool(nil),
	}
	b.cf.ThisClass = b.pool.Class(name)
	if super != "" {
		b.cf.SuperClass = b.pool.Class(super)
	}
	return b
}

// Pool exposes the constant pool being built.
func (b *Builder) Pool() *ConstPool { return b.pool }

// SetVersion overrides the class-file version.
func (b *Builder) SetVersion(major, minor uint16) *Builder {
	b.cf.MajorVersion, b.cf.MinorVersion = major, minor
	return b
}

// AddInterface declares an implemented interface.
func (b *Builder) AddInterface(name string) *Builder {
	b.cf.Interfaces = append(b.cf.Interfaces, b.pool.Class(name))
	return b
}

// AddField declares a field.
func (b *Builder) AddField(flags uint16, name, descriptor string) *Builder {
	b.cf.Fields = append(b.cf.Fields, FieldInfo{
		AccessFlags:     flags,
		NameIndex:       b.pool.Utf8(name),
		DescriptorIndex: b.pool.Utf8(descriptor),
		Name:            name,
		Descriptor:      descriptor,
	})
	return b
}

// AddMethod declares a method with a body.
func (b *Builder) AddMethod(flags uint16, name, descriptor string, maxStack, maxLocals uint16, code []byte, handlers ...ExceptionHandler) *Builder {
	codeAttr := &CodeAttribute{
		MaxStack:          maxStack,
		MaxLocals:         maxLocals,
		Code:              code,
		ExceptionHandlers: handlers,
	}
	b.cf.Methods = append(b.cf.Methods, MethodInfo{
		AccessFlags:     flags,
		NameIndex:       b.pool.Utf8(name),
		DescriptorIndex: b.pool.Utf8(descriptor),
		Name:            name,
		Descriptor:      descriptor,
		Attributes:      []AttributeInfo{{NameIndex: b.pool.Utf8(AttrCode), Name: AttrCode}},
		Code:            codeAttr,
	})
	return b
}

// AddAbstractMethod declares a method without a body (abstract or native,
// depending on flags).
func (b *Builder) AddAbstractMethod(flags uint16, name, descriptor string) *Builder {
	b.cf.Methods = append(b.cf.Methods, MethodInfo{
		AccessFlags:     flags,
		NameIndex:       b.pool.Utf8(name),
		DescriptorIndex: b.pool.Utf8(descriptor),
		Name:            name,
		Descriptor:      descriptor,
	})
	return b
}

// AddCodeAttribute attaches a raw nested attribute (e.g. LineNumberTable)
// to the most recently added method.
func (b *Builder) AddCodeAttribute(name string, data []byte) *Builder {
	if n := len(b.cf.Methods); n > 0 && b.cf.Methods[n-1].Code != nil {
		c := b.cf.Methods[n-1].Code
		c.Attributes = append(c.Attributes, AttributeInfo{NameIndex: b.pool.Utf8(name), Name: name, Data: data})
	}
	return b
}

// Build finalizes the class. The builder must not be used afterwards.
func (b *Builder) Build() (*ClassFile, error) {
	if err := b.pool.Err(); err != nil {
		return nil, fmt.Errorf("building class: %w", err)
	}
	b.cf.ConstantPool = b.pool.Entries()
	return b.cf, nil
}

// MustBuild is like Build but panics on error. Intended for fixtures.
func (b *Builder) MustBuild() *ClassFile {
	cf, err := b.Build()
	if err != nil {
		panic(err)
	}
	return cf
}

// U16 returns the big-endian operand bytes of a constant-pool index.
func U16(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}
