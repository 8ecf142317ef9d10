package weave

import (
	"fmt"
	"sync"

	"github.com/daimatz/jweave/pkg/classfile"
	"github.com/daimatz/jweave/pkg/classpath"
)

// ClassPool is the type-search context of a weaving session: user classes
// from a class path plus built-in stand-ins for core java.lang types. It is
// safe for concurrent use.
type ClassPool struct {
	mu     sync.Mutex
	path   *classpath.Path
	extra  map[string][]byte
	parsed map[string]*classfile.ClassFile
}

// NewClassPool returns a pool searching path (which may be nil) and then the
// built-in core classes.
func NewClassPool(path *classpath.Path) *ClassPool {
	return &ClassPool{
		path:   path,
		extra:  make(map[string][]byte),
		parsed: make(map[string]*classfile.ClassFile),
	}
}

// Insert makes a class available by internal name, shadowing the class path.
func (p *ClassPool) Insert(internalName string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extra[internalName] = data
	delete(p.parsed, internalName)
}

// InsertClass encodes cf and inserts it under its own name.
func (p *ClassPool) InsertClass(cf *classfile.ClassFile) error {
	name, err := cf.ClassName()
	if err != nil {
		return err
	}
	data, err := cf.Bytes()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	p.Insert(name, data)
	return nil
}

// Bytes returns the class-file bytes for an internal name.
func (p *ClassPool) Bytes(internalName string) ([]byte, error) {
	p.mu.Lock()
	data, ok := p.extra[internalName]
	p.mu.Unlock()
	if ok {
		return data, nil
	}
	if p.path != nil {
		data, err := p.path.ReadClass(internalName)
		if err == nil {
			return data, nil
		}
		if !classpath.IsNotFound(err) {
			return nil, err
		}
	}
	if data, ok := coreClasses()[internalName]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownType, classfile.DottedName(internalName))
}

// Contains reports whether the pool can supply the class.
func (p *ClassPool) Contains(internalName string) bool {
	_, err := p.Bytes(internalName)
	return err == nil
}

// Lookup returns a shared, read-only parse of the class.
func (p *ClassPool) Lookup(internalName string) (*classfile.ClassFile, error) {
	p.mu.Lock()
	cf, ok := p.parsed[internalName]
	p.mu.Unlock()
	if ok {
		return cf, nil
	}
	data, err := p.Bytes(internalName)
	if err != nil {
		return nil, err
	}
	cf, err = classfile.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", internalName, err)
	}
	p.mu.Lock()
	p.parsed[internalName] = cf
	p.mu.Unlock()
	return cf, nil
}

// IsSubclass reports whether class extends ancestor, directly or not.
func (p *ClassPool) IsSubclass(class, ancestor string) bool {
	for name := class; name != ""; {
		if name == ancestor {
			return true
		}
		cf, err := p.Lookup(name)
		if err != nil {
			return false
		}
		name = cf.SuperClassName()
	}
	return false
}

// load parses a private, editable copy of a class.
func (p *ClassPool) load(internalName string) (*classfile.ClassFile, error) {
	data, err := p.Bytes(internalName)
	if err != nil {
		return nil, err
	}
	return classfile.ParseBytes(data)
}

var (
	coreOnce  sync.Once
	coreBytes map[string][]byte
)

// coreHierarchy lists the built-in classes as name → superclass.
var coreHierarchy = [][2]string{
	{"java/lang/Object", ""},
	{"java/lang/String", "java/lang/Object"},
	{"java/lang/Number", "java/lang/Object"},
	{"java/lang/Boolean", "java/lang/Object"},
	{"java/lang/Character", "java/lang/Object"},
	{"java/lang/Byte", "java/lang/Number"},
	{"java/lang/Short", "java/lang/Number"},
	{"java/lang/Integer", "java/lang/Number"},
	{"java/lang/Long", "java/lang/Number"},
	{"java/lang/Float", "java/lang/Number"},
	{"java/lang/Double", "java/lang/Number"},
	{"java/lang/System", "java/lang/Object"},
	{"java/lang/Throwable", "java/lang/Object"},
	{"java/lang/Exception", "java/lang/Throwable"},
	{"java/lang/Error", "java/lang/Throwable"},
	{"java/lang/RuntimeException", "java/lang/Exception"},
	{"java/lang/IllegalStateException", "java/lang/RuntimeException"},
	{"java/lang/IllegalArgumentException", "java/lang/RuntimeException"},
	{"java/lang/ArithmeticException", "java/lang/RuntimeException"},
	{"java/lang/NullPointerException", "java/lang/RuntimeException"},
	{"java/lang/ClassCastException", "java/lang/RuntimeException"},
	{"java/lang/UnsupportedOperationException", "java/lang/RuntimeException"},
	{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/RuntimeException"},
}

// coreClasses returns member-less stand-ins for core java.lang types. They
// only carry names and the superclass chain.
func coreClasses() map[string][]byte {
	coreOnce.Do(func() {
		coreBytes = make(map[string][]byte, len(coreHierarchy))
		for _, c := range coreHierarchy {
			data, err := classfile.NewBuilder(c[0], c[1]).MustBuild().Bytes()
			if err != nil {
				panic(fmt.Sprintf("building %s: %v", c[0], err))
			}
			coreBytes[c[0]] = data
		}
	})
	return coreBytes
}
