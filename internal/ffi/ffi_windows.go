//go:build windows

package ffi

import (
	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// dllLibrary is a library opened with LoadLibrary.
type dllLibrary struct {
	dll *windows.DLL
}

// openLibrary loads a dynamic library on Windows
func openLibrary(path string) (Library, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, errors.Wrap(err, "LoadDLL failed")
	}
	return &dllLibrary{dll: dll}, nil
}

func (l *dllLibrary) Bind(fptr any, symbol string) error {
	proc, err := l.dll.FindProc(symbol)
	if err != nil {
		return errors.Wrapf(ErrMissingSymbol, "%s: %v", symbol, err)
	}
	purego.RegisterFunc(fptr, proc.Addr())
	return nil
}
