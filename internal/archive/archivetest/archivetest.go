// Package archivetest builds application packages for tests.
package archivetest

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// WriteAPK writes a zip package under dir/name holding files and returns its path.
func WriteAPK(tb testing.TB, dir, name string, files map[string]string) string {
	tb.Helper()

	p := filepath.Join(dir, name)
	require.NoError(tb, os.MkdirAll(filepath.Dir(p), 0o755))

	f, err := os.Create(p)
	require.NoError(tb, err)
	defer f.Close()

	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)

	zw := zip.NewWriter(f)
	for _, n := range names {
		w, err := zw.Create(n)
		require.NoError(tb, err)
		_, err = w.Write([]byte(files[n]))
		require.NoError(tb, err)
	}
	require.NoError(tb, zw.Close())
	return p
}
