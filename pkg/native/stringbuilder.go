package native

import "strings"

// StringBuilder represents a java.lang.StringBuilder.
type StringBuilder struct {
	buf strings.Builder
}

// NewStringBuilder returns a builder holding initial.
func NewStringBuilder(initial string) *StringBuilder {
	sb := &StringBuilder{}
	sb.buf.WriteString(initial)
	return sb
}

// Append adds the String.valueOf rendering of v.
func (sb *StringBuilder) Append(v any) *StringBuilder {
	sb.buf.WriteString(Format(v))
	return sb
}

// Len returns the length in bytes of the accumulated text.
func (sb *StringBuilder) Len() int32 { return int32(sb.buf.Len()) }

func (sb *StringBuilder) String() string { return sb.buf.String() }
