// Package config loads weave plans: which classes to read, which members to
// intercept and where woven classes go.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/daimatz/jweave/pkg/classfile"
	"github.com/daimatz/jweave/pkg/classpath"
	"github.com/daimatz/jweave/pkg/interceptor"
	"github.com/daimatz/jweave/pkg/weave"
)

// DefaultOutput is the directory woven classes are written to when a plan
// names none.
const DefaultOutput = "woven"

// ErrInvalid is returned for plans that fail validation.
var ErrInvalid = errors.New("invalid weave plan")

// Format is the syntax of a plan file.
type Format string

const (
	YAML Format = "yaml"
	TOML Format = "toml"
)

// Target selects the members of one class to intercept.
type Target struct {
	Class  string `yaml:"class" toml:"class"`
	Method string `yaml:"method" toml:"method"`
	// Params are Java source type names. Absent means any overload.
	Params []string         `yaml:"params" toml:"params"`
	Kind   interceptor.Kind `yaml:"kind" toml:"kind"`
	// All weaves every declared method of Class.
	All bool `yaml:"all" toml:"all"`
}

// Request returns the weave request of a single-member target.
func (t Target) Request() weave.WeaveRequest {
	return weave.WeaveRequest{
		ClassName:  t.Class,
		MethodName: t.Method,
		ParamTypes: t.Params,
		Kind:       t.Kind,
	}
}

// Plan is a complete weave plan.
type Plan struct {
	ClassPath []string `yaml:"classpath" toml:"classpath"`
	Output    string   `yaml:"output" toml:"output"`
	Verbosity int      `yaml:"verbosity" toml:"verbosity"`
	Workers   int      `yaml:"workers" toml:"workers"`
	Targets   []Target `yaml:"targets" toml:"targets"`
}

// Load reads the plan at path. The format follows the extension: .yaml
// and .yml for YAML, .toml for TOML.
func Load(path string) (*Plan, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading weave plan")
	}
	p, err := Parse(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return p, nil
}

func formatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	default:
		return "", errors.Errorf("%s: unsupported weave plan format %q", path, filepath.Ext(path))
	}
}

// Parse decodes, defaults and validates a plan.
func Parse(data []byte, format Format) (*Plan, error) {
	var p Plan
	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return nil, errors.Wrap(err, "decoding yaml")
		}
	case TOML:
		md, err := toml.Decode(string(data), &p)
		if err != nil {
			return nil, errors.Wrap(err, "decoding toml")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Errorf("decoding toml: unknown key %s", undecoded[0])
		}
	default:
		return nil, errors.Errorf("unsupported weave plan format %q", format)
	}
	p.setDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Plan) setDefaults() {
	if p.Output == "" {
		p.Output = DefaultOutput
	}
	if p.Workers <= 0 {
		p.Workers = runtime.NumCPU()
	}
	for i := range p.Targets {
		p.Targets[i].Class = className(p.Targets[i].Class)
		if p.Targets[i].Kind == "" {
			p.Targets[i].Kind = interceptor.KindAuto
		}
	}
}

// Validate checks that the plan can be executed.
func (p *Plan) Validate() error {
	if len(p.ClassPath) == 0 {
		return errors.Wrap(ErrInvalid, "no class path entries")
	}
	if len(p.Targets) == 0 {
		return errors.Wrap(ErrInvalid, "no targets")
	}
	for i, t := range p.Targets {
		switch {
		case t.Class == "":
			return errors.Wrapf(ErrInvalid, "target %d: no class", i)
		case t.Method == "" && !t.All:
			return errors.Wrapf(ErrInvalid, "target %d (%s): needs a method or all", i, t.Class)
		case t.Method != "" && t.All:
			return errors.Wrapf(ErrInvalid, "target %d (%s): method and all are exclusive", i, t.Class)
		}
		if _, err := interceptor.ParseKind(string(t.Kind)); err != nil {
			return errors.Wrapf(ErrInvalid, "target %d (%s): %v", i, t.Class, err)
		}
	}
	return nil
}

// Path returns the plan's class path.
func (p *Plan) Path() *classpath.Path {
	entries := make([]classpath.Entry, len(p.ClassPath))
	for i, e := range p.ClassPath {
		entries[i] = classpath.ParseEntry(e)
	}
	return classpath.New(entries...)
}

// className folds the dotted and internal spellings of a class name into
// the dotted one, so that one class never reaches two workers.
func className(name string) string {
	return classfile.DottedName(classfile.InternalName(strings.TrimSpace(name)))
}

// Classes returns the distinct target classes in plan order, as dotted
// names.
func (p *Plan) Classes() []string {
	seen := make(map[string]bool, len(p.Targets))
	var out []string
	for _, t := range p.Targets {
		name := className(t.Class)
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// TargetsFor returns the targets naming class, in plan order. Either
// spelling of the name matches.
func (p *Plan) TargetsFor(class string) []Target {
	name := className(class)
	var out []Target
	for _, t := range p.Targets {
		if className(t.Class) == name {
			out = append(out, t)
		}
	}
	return out
}
