// Package interceptor defines the hook shapes a woven method reports to and
// the registry that binds generated code to live interceptors by integer id.
package interceptor

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedInterceptorKind is returned for interceptors that
	// implement neither BeforeInterceptor nor AfterInterceptor.
	ErrUnsupportedInterceptorKind = errors.New("unsupported interceptor kind")
	// ErrCapabilityMismatch is returned when an explicitly requested kind is
	// not covered by the interceptor's capability.
	ErrCapabilityMismatch = errors.New("interceptor capability mismatch")

	errInvalidKind = errors.New("invalid interceptor kind")
)

// Capability is the set of lifecycle points an interceptor observes.
type Capability uint8

const (
	None   Capability = 0
	Before Capability = 1 << 0
	After  Capability = 1 << 1
	Around            = Before | After
)

// Has reports whether every point of o is in c.
func (c Capability) Has(o Capability) bool { return o != None && c&o == o }

func (c Capability) String() string {
	switch c {
	case None:
		return "none"
	case Before:
		return "before"
	case After:
		return "after"
	case Around:
		return "around"
	default:
		return fmt.Sprintf("Capability(%d)", uint8(c))
	}
}

// Classify returns the richest capability ic exhibits.
func Classify(ic any) Capability {
	var c Capability
	if _, ok := ic.(BeforeInterceptor); ok {
		c |= Before
	}
	if _, ok := ic.(AfterInterceptor); ok {
		c |= After
	}
	return c
}

// Kind is the fragment shape a caller asks the weaver for.
type Kind string

const (
	// KindAuto weaves whatever the interceptor's capability covers.
	KindAuto   Kind = "auto"
	KindBefore Kind = "before"
	KindAfter  Kind = "after"
	KindAround Kind = "around"
)

// String returns the kind as a lowercase name.
func (k Kind) String() string {
	switch k {
	case KindAuto, KindBefore, KindAfter, KindAround:
		return string(k)
	case "":
		return string(KindAuto)
	default:
		return fmt.Sprintf("Kind(%s)", string(k))
	}
}

// UnmarshalText applies the Kind when the text names a valid one.
func (k *Kind) UnmarshalText(text []byte) error {
	*k = Kind(bytes.ToLower(bytes.TrimSpace(text)))
	return k.validate()
}

func (k *Kind) validate() error {
	if k == nil {
		return errors.New("nil Kind")
	}
	switch *k {
	case KindAuto, KindBefore, KindAfter, KindAround:
	case "":
		*k = KindAuto
	default:
		return fmt.Errorf("%w: %s", errInvalidKind, k.String())
	}
	return nil
}

// ParseKind returns the Kind named by text.
func ParseKind(text string) (Kind, error) {
	var k Kind
	err := k.UnmarshalText([]byte(text))
	return k, err
}

func (k Kind) capability() Capability {
	switch k {
	case KindBefore:
		return Before
	case KindAfter:
		return After
	case KindAround:
		return Around
	}
	return None
}

// Reconcile returns the fragments to weave for an interceptor of capability
// c when kind k is requested.
func Reconcile(c Capability, k Kind) (Capability, error) {
	if c == None {
		return None, ErrUnsupportedInterceptorKind
	}
	if k == KindAuto || k == "" {
		return c, nil
	}
	want := k.capability()
	if want == None {
		return None, fmt.Errorf("%w: %s", errInvalidKind, k)
	}
	if !c.Has(want) {
		return None, fmt.Errorf("%w: %s interceptor cannot serve %s", ErrCapabilityMismatch, c, k)
	}
	return want, nil
}
