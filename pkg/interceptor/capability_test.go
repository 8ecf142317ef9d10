package interceptor

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	before := BeforeFunc(func(any, string, string, []any) {})
	after := AfterFunc(func(any, string, string, []any, any) {})

	tests := []struct {
		name string
		ic   any
		want Capability
	}{
		{"before", before, Before},
		{"after", after, After},
		{"around", NewAround(before, after), Around},
		{"logging", &LoggingInterceptor{}, Around},
		{"none", "not an interceptor", None},
		{"nil", nil, None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.ic))
		})
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name    string
		c       Capability
		k       Kind
		want    Capability
		wantErr error
	}{
		{"auto before", Before, KindAuto, Before, nil},
		{"auto around", Around, KindAuto, Around, nil},
		{"empty kind is auto", After, "", After, nil},
		{"around serves before", Around, KindBefore, Before, nil},
		{"around serves after", Around, KindAfter, After, nil},
		{"around serves around", Around, KindAround, Around, nil},
		{"before serves itself", Before, KindBefore, Before, nil},
		{"before cannot serve after", Before, KindAfter, None, ErrCapabilityMismatch},
		{"after cannot serve around", After, KindAround, None, ErrCapabilityMismatch},
		{"none auto", None, KindAuto, None, ErrUnsupportedInterceptorKind},
		{"none explicit", None, KindBefore, None, ErrUnsupportedInterceptorKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reconcile(tt.c, tt.k)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, text := range []string{"auto", "Before", " AFTER ", "around", ""} {
		k, err := ParseKind(text)
		require.NoError(t, err, text)
		assert.NotEqual(t, Kind(""), k)
	}

	_, err := ParseKind("sideways")
	assert.ErrorIs(t, err, errInvalidKind)
	assert.Equal(t, "Kind(sideways)", Kind("sideways").String())
}

func TestLoggingInterceptor(t *testing.T) {
	var lines []string
	logger := funcr.New(func(prefix, args string) {
		lines = append(lines, prefix+" "+args)
	}, funcr.Options{})

	li := NewLoggingInterceptor("Order", logger)
	li.Before(nil, "Order", "total", []any{int32(5)})
	li.After(nil, "Order", "total", []any{int32(5)}, int32(50))
	li.After(nil, "Order", "total", []any{int32(5)}, errors.New("boom"))

	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "trace "))
	assert.Contains(t, lines[0], `"msg"="enter"`)
	assert.Contains(t, lines[1], `"result"="50"`)
	assert.Contains(t, lines[2], `"msg"="throw"`)
	assert.Contains(t, lines[2], `"error"="boom"`)
}
