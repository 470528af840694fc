//go:build !js

package ffi

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fakeVersion = []byte("1.4.0\x00")

// fakeLibrary binds symbols to Go funcs of the matching signature.
type fakeLibrary struct {
	symbols    map[string]any
	registered []string
}

func newFakeLibrary() *fakeLibrary {
	lib := &fakeLibrary{}
	lib.symbols = map[string]any{
		"centered_engine_version": func() uintptr {
			return uintptr(unsafe.Pointer(&fakeVersion[0]))
		},
		"centered_archive_register": func(path uintptr) int32 {
			lib.registered = append(lib.registered, GoString(path))
			return 0
		},
		"centered_engine_start": func() int32 { return 0 },
	}
	return lib
}

func (l *fakeLibrary) Bind(fptr any, symbol string) error {
	fn, ok := l.symbols[symbol]
	if !ok {
		return errors.Wrap(ErrMissingSymbol, symbol)
	}
	reflect.ValueOf(fptr).Elem().Set(reflect.ValueOf(fn))
	return nil
}

func countingOpener(lib Library, opens *int) Opener {
	return func(path string) (Library, error) {
		*opens++
		return lib, nil
	}
}

func TestEnsureLoadedOnce(t *testing.T) {
	lib := newFakeLibrary()
	var opens int
	l := &Loader{Open: countingOpener(lib, &opens)}

	mod1, err := l.EnsureLoaded("centered_engine")
	require.NoError(t, err)
	mod2, err := l.EnsureLoaded("centered_engine")
	require.NoError(t, err)

	assert.Same(t, mod1, mod2)
	assert.Equal(t, 1, opens)
	assert.True(t, l.Loaded())

	version, err := mod1.Version()
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", version)
}

func TestEnsureLoadedMismatch(t *testing.T) {
	var opens int
	l := &Loader{Open: countingOpener(newFakeLibrary(), &opens)}

	_, err := l.EnsureLoaded("centered_engine")
	require.NoError(t, err)

	_, err = l.EnsureLoaded("other_engine")
	assert.True(t, errors.Is(err, ErrModuleMismatch))
	assert.Equal(t, 1, opens)
}

func TestEnsureLoadedFailureIsSticky(t *testing.T) {
	var opens int
	l := &Loader{Open: func(path string) (Library, error) {
		opens++
		return nil, errors.New("cannot open shared object file")
	}}

	_, err := l.EnsureLoaded("missing_engine")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModuleLoad))
	assert.Contains(t, err.Error(), "missing_engine")

	_, err = l.EnsureLoaded("missing_engine")
	assert.True(t, errors.Is(err, ErrModuleLoad))
	assert.Equal(t, 1, opens)
	assert.False(t, l.Loaded())
}

func TestEnsureLoadedMissingRequiredSymbol(t *testing.T) {
	lib := newFakeLibrary()
	delete(lib.symbols, "centered_archive_register")
	var opens int
	l := &Loader{Open: countingOpener(lib, &opens)}

	_, err := l.EnsureLoaded("centered_engine")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModuleLoad))
	assert.Contains(t, err.Error(), "centered_archive_register")
}

func TestEnsureLoadedEmptyName(t *testing.T) {
	l := &Loader{Open: func(string) (Library, error) { return newFakeLibrary(), nil }}
	_, err := l.EnsureLoaded("")
	assert.True(t, errors.Is(err, ErrModuleLoad))
	assert.False(t, l.Loaded())
}

func TestModuleEntryPoints(t *testing.T) {
	lib := newFakeLibrary()
	var opens int
	l := &Loader{Open: countingOpener(lib, &opens)}
	mod, err := l.EnsureLoaded("centered_engine")
	require.NoError(t, err)

	code, err := mod.RegisterArchive("/data/app/com.example.demo-1/base.apk")
	require.NoError(t, err)
	assert.Equal(t, int32(0), code)
	assert.Equal(t, []string{"/data/app/com.example.demo-1/base.apk"}, lib.registered)

	code, err = mod.Start()
	require.NoError(t, err)
	assert.Equal(t, int32(0), code)

	// asset entry points are optional and absent here
	assert.False(t, mod.CanReadAssets())
	_, err = mod.AssetSize("gui/scene.json")
	assert.True(t, errors.Is(err, ErrNotLoaded))
}

func TestNilModuleIsNotLoaded(t *testing.T) {
	var mod *Module

	_, err := mod.RegisterArchive("/tmp/base.apk")
	assert.True(t, errors.Is(err, ErrNotLoaded))
	_, err = mod.Start()
	assert.True(t, errors.Is(err, ErrNotLoaded))
	_, err = mod.Version()
	assert.True(t, errors.Is(err, ErrNotLoaded))
}

func TestGoString(t *testing.T) {
	assert.Empty(t, GoString(0))

	b := cString("/data/app/com.example.demo-1/base.apk")
	assert.Equal(t, "/data/app/com.example.demo-1/base.apk", GoString(uintptr(unsafe.Pointer(&b[0]))))

	// terminator past the limit
	long := make([]byte, maxCStringLen+16)
	for i := range long {
		long[i] = 'a'
	}
	long[len(long)-1] = 0
	assert.Len(t, GoString(uintptr(unsafe.Pointer(&long[0]))), maxCStringLen)
}

func TestLibraryFileName(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"android", "libcentered_engine.so"},
		{"linux", "libcentered_engine.so"},
		{"darwin", "libcentered_engine.dylib"},
		{"ios", "libcentered_engine.dylib"},
		{"windows", "centered_engine.dll"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			assert.Equal(t, tt.want, LibraryFileName("centered_engine", tt.goos))
		})
	}
}

func TestLibraryPathSearch(t *testing.T) {
	t.Setenv(LibPathEnv, "")

	dir := t.TempDir()
	libFile := filepath.Join(dir, LibraryFileName("centered_engine", runtime.GOOS))
	require.NoError(t, os.WriteFile(libFile, []byte("ELF"), 0o644))

	l := &Loader{SearchPaths: []string{dir}}
	assert.Equal(t, libFile, l.libraryPath("centered_engine"))

	// unknown modules fall through to the bare name for the system loader
	assert.Equal(t, LibraryFileName("nowhere_engine", runtime.GOOS), l.libraryPath("nowhere_engine"))

	// explicit paths are used as is
	assert.Equal(t, "/opt/engine/libx.so", l.libraryPath("/opt/engine/libx.so"))
}

func TestLibraryPathEnvOverride(t *testing.T) {
	t.Setenv(LibPathEnv, "/custom/libcentered_engine.so")
	l := &Loader{}
	assert.Equal(t, "/custom/libcentered_engine.so", l.libraryPath("centered_engine"))
}
