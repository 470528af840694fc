//go:build !js

// Package ffitest provides an in-process stand-in for the native engine
// module, bound through the same ffi.Library interface as the real one.
package ffitest

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/agiangrant/ctdboot/internal/archive"
	"github.com/agiangrant/ctdboot/internal/ffi"
	"github.com/pkg/errors"
)

var version = []byte("ffitest-1.0\x00")

// Engine implements the engine ABI over an archive registry.
type Engine struct {
	mu         sync.Mutex
	assets     *archive.Registry
	registered []string
	starts     int
	// RegisterCode, when non-zero, is returned by centered_archive_register.
	RegisterCode int32
	// Omit lists symbols the library pretends not to export.
	Omit map[string]bool
}

// New returns a fake engine.
func New() *Engine {
	return &Engine{assets: archive.New(), Omit: map[string]bool{}}
}

// Registered returns every path passed to centered_archive_register.
func (e *Engine) Registered() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.registered...)
}

// Starts returns how often centered_engine_start ran.
func (e *Engine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

// Close unmounts the fake's archives.
func (e *Engine) Close() error {
	return e.assets.Close()
}

// Opener returns an ffi.Opener that always opens this engine and counts opens.
func (e *Engine) Opener(opens *int) ffi.Opener {
	return func(path string) (ffi.Library, error) {
		if opens != nil {
			*opens++
		}
		return &library{e: e}, nil
	}
}

// MissingOpener fails like a dynamic loader that cannot find the library.
func MissingOpener(path string) (ffi.Library, error) {
	return nil, errors.Errorf("dlopen failed: library %q not found", path)
}

type library struct {
	e *Engine
}

func (l *library) Bind(fptr any, symbol string) error {
	if l.e.Omit[symbol] {
		return errors.Wrap(ffi.ErrMissingSymbol, symbol)
	}
	fn, ok := l.e.symbols()[symbol]
	if !ok {
		return errors.Wrap(ffi.ErrMissingSymbol, symbol)
	}
	reflect.ValueOf(fptr).Elem().Set(reflect.ValueOf(fn))
	return nil
}

func (e *Engine) symbols() map[string]any {
	return map[string]any{
		"centered_engine_version": func() uintptr {
			return uintptr(unsafe.Pointer(&version[0]))
		},
		"centered_archive_register": func(path uintptr) int32 {
			e.mu.Lock()
			defer e.mu.Unlock()
			p := ffi.GoString(path)
			e.registered = append(e.registered, p)
			if e.RegisterCode != 0 {
				return e.RegisterCode
			}
			if err := e.assets.Mount(p); err != nil {
				return -2
			}
			return 0
		},
		"centered_engine_start": func() int32 {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.starts++
			return 0
		},
		"centered_asset_size": func(name uintptr) int64 {
			data, err := e.assets.ReadFile(ffi.GoString(name))
			if err != nil {
				return -4
			}
			return int64(len(data))
		},
		"centered_asset_read": func(name uintptr, buf uintptr, capacity uint64) int64 {
			data, err := e.assets.ReadFile(ffi.GoString(name))
			if err != nil {
				return -4
			}
			dst := unsafe.Slice((*byte)(unsafe.Pointer(buf)), capacity)
			return int64(copy(dst, data))
		},
	}
}
