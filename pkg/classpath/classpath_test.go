package classpath_test

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/jweave/internal/fixture"
	"github.com/daimatz/jweave/pkg/classpath"
)

func writeZip(t *testing.T, path string, header []byte, files map[string][]byte) {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(header)
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestEntries(t *testing.T) {
	dir := t.TempDir()
	order := fixture.Bytes(fixture.OrderClass())
	calc := fixture.Bytes(fixture.CalcClass())

	classes := filepath.Join(dir, "classes")
	require.NoError(t, os.MkdirAll(filepath.Join(classes, "com", "acme"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(classes, "com", "acme", "Order.class"), order, 0o644))

	jar := filepath.Join(dir, "app.jar")
	writeZip(t, jar, nil, map[string][]byte{fixture.Calc + ".class": calc})

	jmod := filepath.Join(dir, "base.jmod")
	writeZip(t, jmod, []byte("JM\x01\x00"), map[string][]byte{"classes/" + fixture.Base + ".class": []byte{1}})

	tests := []struct {
		name  string
		entry classpath.Entry
		class string
		want  []byte
	}{
		{"directory", classpath.Dir(classes), fixture.Order, order},
		{"jar", classpath.ParseEntry(jar), fixture.Calc, calc},
		{"jmod", classpath.ParseEntry(jmod), fixture.Base, []byte{1}},
		{"memory", classpath.Memory{"A": {2}}, "A", []byte{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.entry.ReadClass(tt.class)
			require.NoError(t, err)
			assert.Equal(t, tt.want, data)

			_, err = tt.entry.ReadClass("com/acme/Nowhere")
			assert.True(t, classpath.IsNotFound(err), "got %v", err)
		})
	}

	t.Run("path", func(t *testing.T) {
		p := classpath.Parse(strings.Join([]string{classes, jar}, string(os.PathListSeparator)))
		cf, err := p.LoadClass(fixture.Calc)
		require.NoError(t, err)
		again, err := p.LoadClass(fixture.Calc)
		require.NoError(t, err)
		assert.Same(t, cf, again)

		_, err = p.ReadClass(fixture.Child)
		assert.True(t, classpath.IsNotFound(err))

		p.Append(classpath.Memory{fixture.Child: fixture.Bytes(fixture.ChildClass())})
		_, err = p.LoadClass(fixture.Child)
		assert.NoError(t, err)
	})
}

func TestBrokenEntries(t *testing.T) {
	dir := t.TempDir()

	_, err := classpath.NewArchive(filepath.Join(dir, "missing.jar")).ReadClass("A")
	require.Error(t, err)
	assert.False(t, classpath.IsNotFound(err), "an unreadable archive is not a missing class")

	notZip := filepath.Join(dir, "broken.jar")
	require.NoError(t, os.WriteFile(notZip, []byte("nope"), 0o644))
	_, err = classpath.New(classpath.ParseEntry(notZip)).ReadClass("A")
	assert.ErrorContains(t, err, "opening zip")

	_, err = classpath.New(classpath.Memory{"A": {0xCA}}).LoadClass("A")
	assert.ErrorContains(t, err, "classpath: parsing A")
}
