package weave

import (
	"errors"
	"strings"
)

var (
	// ErrMethodNotFound is returned when no declared member matches.
	ErrMethodNotFound = errors.New("method not found")
	// ErrAmbiguousMethod is returned when more than one member matches.
	ErrAmbiguousMethod = errors.New("ambiguous method")
	// ErrUnknownType is returned for parameter types missing from the pool.
	ErrUnknownType = errors.New("unknown type")
	// ErrFragmentGeneration is returned when hook code cannot be generated
	// or spliced into a method body.
	ErrFragmentGeneration = errors.New("fragment generation failed")
	// ErrMaterialization is returned when a class cannot be emitted.
	ErrMaterialization = errors.New("materialization failed")
	// ErrClassFrozen is returned for edits after a class was materialized.
	ErrClassFrozen = errors.New("class is frozen")
)

// Error records the operation and member a weaving failure belongs to.
type Error struct {
	Op     string // "resolve", "weave", "materialize"
	Class  string
	Member string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteByte(' ')
	b.WriteString(e.Class)
	if e.Member != "" {
		b.WriteByte('.')
		b.WriteString(e.Member)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }
