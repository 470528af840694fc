//go:build darwin || linux || ios || android || freebsd

package ffi

import (
	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
)

// dlLibrary is a library opened with dlopen.
type dlLibrary struct {
	handle uintptr
}

// openLibrary loads a dynamic library on Unix-like systems
func openLibrary(path string) (Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, err
	}
	return &dlLibrary{handle: handle}, nil
}

func (l *dlLibrary) Bind(fptr any, symbol string) error {
	sym, err := purego.Dlsym(l.handle, symbol)
	if err != nil {
		return errors.Wrapf(ErrMissingSymbol, "%s: %v", symbol, err)
	}
	purego.RegisterFunc(fptr, sym)
	return nil
}
