// Package classpath locates class-file bytes by internal class name across
// directories, jar/jmod archives and in-memory sets.
package classpath

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/daimatz/jweave/pkg/classfile"
)

// ErrNotFound is returned when no entry holds the requested class.
var ErrNotFound = errors.New("class not found")

// Entry is one element of a class path.
type Entry interface {
	// ReadClass returns the bytes of the class with the given internal
	// name, or an error wrapping ErrNotFound.
	ReadClass(name string) ([]byte, error)
	String() string
}

// Dir is a directory laid out by package (com/acme/Order.class).
type Dir string

func (d Dir) ReadClass(name string) ([]byte, error) {
	path := filepath.Join(string(d), filepath.FromSlash(name)+".class")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "dir %s: %s", string(d), name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dir %s: reading %s", string(d), path)
	}
	return data, nil
}

func (d Dir) String() string { return string(d) }

// Archive is a jar or jmod file. Jmod files carry a 4-byte "JM" header in
// front of the zip data and keep classes under classes/.
type Archive struct {
	Path string

	once   sync.Once
	err    error
	prefix string
	files  map[string]*zip.File
}

// NewArchive returns an Entry reading from the jar or jmod at path. The
// archive is opened lazily on first use.
func NewArchive(path string) *Archive {
	return &Archive{Path: path}
}

func (a *Archive) open() error {
	a.once.Do(func() {
		data, err := os.ReadFile(a.Path)
		if err != nil {
			a.err = errors.Wrapf(err, "archive: reading %s", a.Path)
			return
		}
		if bytes.HasPrefix(data, []byte("JM")) {
			data = data[4:] // Skip "JM\x01\x00" header
			a.prefix = "classes/"
		}
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			a.err = errors.Wrapf(err, "archive: opening zip %s", a.Path)
			return
		}
		a.files = make(map[string]*zip.File, len(zr.File))
		for _, f := range zr.File {
			a.files[f.Name] = f
		}
	})
	return a.err
}

func (a *Archive) ReadClass(name string) ([]byte, error) {
	if err := a.open(); err != nil {
		return nil, err
	}
	f, ok := a.files[a.prefix+name+".class"]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "archive %s: %s", a.Path, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "archive %s: opening %s", a.Path, f.Name)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "archive %s: reading %s", a.Path, f.Name)
	}
	return data, nil
}

func (a *Archive) String() string { return a.Path }

// Memory holds class bytes keyed by internal name.
type Memory map[string][]byte

func (m Memory) ReadClass(name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "memory: %s", name)
	}
	return data, nil
}

func (m Memory) String() string { return "memory" }

// ParseEntry turns a class path element into an Entry: .jar and .jmod
// files become archives, anything else a directory.
func ParseEntry(p string) Entry {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".jar", ".jmod", ".zip":
		return NewArchive(p)
	default:
		return Dir(p)
	}
}

// Path is an ordered list of entries with a cache of parsed classes. It
// satisfies the VM's class loader contract and is safe for concurrent use.
type Path struct {
	mu      sync.Mutex
	entries []Entry
	cache   map[string]*classfile.ClassFile
}

// New returns a Path searching entries in order.
func New(entries ...Entry) *Path {
	return &Path{entries: entries, cache: make(map[string]*classfile.ClassFile)}
}

// Parse builds a Path from an OS list (colon separated on Unix).
func Parse(list string) *Path {
	var entries []Entry
	for _, p := range filepath.SplitList(list) {
		if p != "" {
			entries = append(entries, ParseEntry(p))
		}
	}
	return New(entries...)
}

// Append adds entries at the end of the search order.
func (p *Path) Append(entries ...Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entries...)
}

// ReadClass returns the raw bytes of the first entry holding name.
func (p *Path) ReadClass(name string) ([]byte, error) {
	p.mu.Lock()
	entries := append([]Entry(nil), p.entries...)
	p.mu.Unlock()

	for _, e := range entries {
		data, err := e.ReadClass(name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "classpath: %s", name)
}

// LoadClass returns the parsed class, caching the result. Callers must not
// modify the returned ClassFile; parse ReadClass output for an editable copy.
func (p *Path) LoadClass(name string) (*classfile.ClassFile, error) {
	p.mu.Lock()
	if cf, ok := p.cache[name]; ok {
		p.mu.Unlock()
		return cf, nil
	}
	p.mu.Unlock()

	data, err := p.ReadClass(name)
	if err != nil {
		return nil, err
	}
	cf, err := classfile.ParseBytes(data)
	if err != nil {
		return nil, errors.Wrapf(err, "classpath: parsing %s", name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cached, ok := p.cache[name]; ok {
		return cached, nil
	}
	p.cache[name] = cf
	return cf, nil
}

// IsNotFound reports whether err means a class is absent from the path.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
