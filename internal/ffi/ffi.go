//go:build !js

// Package ffi loads the native Centered engine module via purego and binds
// the entry points the bootstrap sequence needs.
// The module is loaded at most once per process and never unloaded.
package ffi

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultModuleName is the engine module deployed with every app.
const DefaultModuleName = "centered_engine"

// LibPathEnv overrides library lookup with an explicit file path.
const LibPathEnv = "CENTERED_LIB_PATH"

var (
	// ErrModuleLoad is returned when the native module cannot be opened or
	// lacks a required entry point.
	ErrModuleLoad = errors.New("native module load failed")
	// ErrModuleMismatch is returned when a different module than the one
	// already resident is requested. Modules cannot be swapped in-process.
	ErrModuleMismatch = errors.New("another native module is already loaded")
	// ErrNotLoaded is returned by entry point calls made before a successful load.
	ErrNotLoaded = errors.New("native module not loaded")
	// ErrMissingSymbol is returned by Library.Bind for unknown symbols.
	ErrMissingSymbol = errors.New("symbol not found")
)

// Library is an opened dynamic library.
type Library interface {
	// Bind resolves symbol and stores a callable Go function into fptr,
	// which must be a pointer to a func variable.
	Bind(fptr any, symbol string) error
}

// Opener opens the dynamic library at path.
type Opener func(path string) (Library, error)

// ============================================================================
// Library Loading
// ============================================================================

// Loader loads one native module for the lifetime of the process.
type Loader struct {
	// Open defaults to the platform dynamic loader.
	Open Opener
	// SearchPaths are checked before the built-in locations.
	SearchPaths []string

	once sync.Once
	name string
	mod  *Module
	err  error
}

// NewLoader returns a loader backed by the platform dynamic loader.
func NewLoader(searchPaths ...string) *Loader {
	return &Loader{Open: openLibrary, SearchPaths: searchPaths}
}

var (
	defaultLoader     *Loader
	defaultLoaderOnce sync.Once
)

// Default returns the process-wide loader.
func Default() *Loader {
	defaultLoaderOnce.Do(func() {
		defaultLoader = NewLoader()
	})
	return defaultLoader
}

// EnsureLoaded loads moduleName with the process-wide loader.
func EnsureLoaded(moduleName string) (*Module, error) {
	return Default().EnsureLoaded(moduleName)
}

// EnsureLoaded maps the named module into the process and binds its entry
// points. Only the first call does any work; a failure is sticky and a
// later request for a different module returns ErrModuleMismatch.
func (l *Loader) EnsureLoaded(moduleName string) (*Module, error) {
	if moduleName == "" {
		return nil, errors.Wrap(ErrModuleLoad, "empty module name")
	}

	l.once.Do(func() {
		l.name = moduleName
		l.mod, l.err = l.load(moduleName)
	})

	if l.name != moduleName {
		return nil, errors.Wrapf(ErrModuleMismatch, "resident %q, requested %q", l.name, moduleName)
	}
	return l.mod, l.err
}

// Loaded reports whether a module is resident.
func (l *Loader) Loaded() bool {
	return l.mod != nil
}

func (l *Loader) load(moduleName string) (*Module, error) {
	logger := zap.L().With(zap.String("module", moduleName))
	logger.Debug("Loading native module", zap.String("goos", runtime.GOOS), zap.String("goarch", runtime.GOARCH))

	open := l.Open
	if open == nil {
		open = openLibrary
	}

	libPath := l.libraryPath(moduleName)
	logger.Info("Opening native module", zap.String("path", libPath))

	lib, err := open(libPath)
	if err != nil {
		return nil, errors.Wrapf(ErrModuleLoad, "module %q from %s: %v", moduleName, libPath, err)
	}

	mod := &Module{Name: moduleName, Path: libPath}
	if err := mod.bind(lib); err != nil {
		return nil, errors.Wrapf(ErrModuleLoad, "module %q from %s: %v", moduleName, libPath, err)
	}

	logger.Info("Native module loaded", zap.String("version", mod.versionString()))
	return mod, nil
}

// LibraryFileName returns the platform file name for a module name.
func LibraryFileName(moduleName, goos string) string {
	switch goos {
	case "darwin", "ios":
		return "lib" + moduleName + ".dylib"
	case "windows":
		return moduleName + ".dll"
	default:
		return "lib" + moduleName + ".so"
	}
}

// isExplicitPath reports whether name already points at a library file.
func isExplicitPath(name string) bool {
	if strings.ContainsAny(name, `/\`) {
		return true
	}
	for _, ext := range []string{".so", ".dylib", ".dll"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// libraryPath returns the path handed to the dynamic loader.
func (l *Loader) libraryPath(moduleName string) string {
	if path := os.Getenv(LibPathEnv); path != "" {
		return path
	}
	if isExplicitPath(moduleName) {
		return moduleName
	}

	libName := LibraryFileName(moduleName, runtime.GOOS)

	var searchPaths []string
	for _, dir := range l.SearchPaths {
		searchPaths = append(searchPaths, filepath.Join(dir, libName))
	}
	searchPaths = append(searchPaths,
		libName,
		filepath.Join("engine", "target", "release", libName),
		filepath.Join("engine", "target", "debug", libName),
	)

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		searchPaths = append(searchPaths,
			filepath.Join(execDir, libName),
			filepath.Join(execDir, "..", "lib", libName),
		)
		if runtime.GOOS == "ios" || runtime.GOOS == "darwin" {
			searchPaths = append(searchPaths,
				filepath.Join(execDir, "Frameworks", libName),
				filepath.Join(execDir, "..", "Frameworks", libName),
			)
		}
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			if absPath, err := filepath.Abs(path); err == nil {
				return absPath
			}
			return path
		}
	}

	// On Android the library sits in the app's native library dir, which
	// only the system loader knows about.
	return libName
}

// ============================================================================
// Entry Points
// ============================================================================

// Module is a resident native engine module and its bound entry points.
type Module struct {
	Name string
	Path string

	fnEngineVersion   func() uintptr
	fnArchiveRegister func(path uintptr) int32
	fnEngineStart     func() int32

	// Optional entry points
	fnAssetSize func(name uintptr) int64
	fnAssetRead func(name uintptr, buf uintptr, capacity uint64) int64
}

func (m *Module) bind(lib Library) error {
	required := []struct {
		fn   any
		name string
	}{
		{&m.fnEngineVersion, "centered_engine_version"},
		{&m.fnArchiveRegister, "centered_archive_register"},
		{&m.fnEngineStart, "centered_engine_start"},
	}
	for _, sym := range required {
		if err := lib.Bind(sym.fn, sym.name); err != nil {
			return err
		}
	}

	bindOptional(lib, &m.fnAssetSize, "centered_asset_size")
	bindOptional(lib, &m.fnAssetRead, "centered_asset_read")
	return nil
}

// bindOptional attempts to bind a symbol, leaving fn nil if it is absent.
func bindOptional[T any](lib Library, fn *T, name string) {
	if err := lib.Bind(fn, name); err != nil {
		zap.L().Debug("Optional entry point unavailable", zap.String("symbol", name))
	}
}

// versionString reads the engine's static version string.
func (m *Module) versionString() string {
	return GoString(m.fnEngineVersion())
}

// Version returns the engine version string.
func (m *Module) Version() (string, error) {
	if m == nil {
		return "", ErrNotLoaded
	}
	return m.versionString(), nil
}

// RegisterArchive hands path to the engine's resource subsystem as an
// archive root. The returned code is 0 on success.
func (m *Module) RegisterArchive(path string) (int32, error) {
	if m == nil {
		return 0, ErrNotLoaded
	}
	b := cString(path)
	code := m.fnArchiveRegister(uintptr(unsafe.Pointer(&b[0])))
	runtime.KeepAlive(b)
	return code, nil
}

// Start runs the engine's own startup routine. The returned code is 0 on success.
func (m *Module) Start() (int32, error) {
	if m == nil {
		return 0, ErrNotLoaded
	}
	return m.fnEngineStart(), nil
}

// CanReadAssets reports whether the module exports the asset read entry points.
func (m *Module) CanReadAssets() bool {
	return m != nil && m.fnAssetSize != nil && m.fnAssetRead != nil
}

// AssetSize returns the size of a bundled asset, or a negative value if
// the engine cannot find it.
func (m *Module) AssetSize(name string) (int64, error) {
	if !m.CanReadAssets() {
		return 0, ErrNotLoaded
	}
	b := cString(name)
	size := m.fnAssetSize(uintptr(unsafe.Pointer(&b[0])))
	runtime.KeepAlive(b)
	return size, nil
}

// ReadAsset copies a bundled asset into buf and returns the number of bytes
// written, or a negative engine code.
func (m *Module) ReadAsset(name string, buf []byte) (int64, error) {
	if !m.CanReadAssets() {
		return 0, ErrNotLoaded
	}
	if len(buf) == 0 {
		return 0, nil
	}
	b := cString(name)
	n := m.fnAssetRead(uintptr(unsafe.Pointer(&b[0])), uintptr(unsafe.Pointer(&buf[0])), uint64(len(buf)))
	runtime.KeepAlive(b)
	runtime.KeepAlive(buf)
	return n, nil
}

// ============================================================================
// String Helpers for FFI
// ============================================================================

// cString returns s as a null-terminated byte slice.
func cString(s string) []byte {
	return append([]byte(s), 0)
}

// maxCStringLen bounds the scan for a terminator in engine-owned memory.
const maxCStringLen = 1 << 20

// GoString converts a C string pointer to a Go string. Strings longer than
// 1MB are truncated.
func GoString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	var length int
	for length < maxCStringLen {
		b := *(*byte)(unsafe.Pointer(ptr + uintptr(length)))
		if b == 0 {
			break
		}
		length++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), length))
}
