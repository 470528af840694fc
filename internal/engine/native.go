package engine

import (
	"io/fs"

	"github.com/agiangrant/ctdboot/internal/ffi"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// Native drives an engine living in a native module.
type Native struct {
	mod     *ffi.Module
	started atomic.Bool
}

// NewNative wraps a loaded module. A nil module yields an engine whose
// calls all fail with ffi.ErrNotLoaded.
func NewNative(mod *ffi.Module) *Native {
	return &Native{mod: mod}
}

// Module returns the underlying native module.
func (n *Native) Module() *ffi.Module {
	return n.mod
}

func (n *Native) Version() string {
	v, err := n.mod.Version()
	if err != nil {
		return ""
	}
	return v
}

func (n *Native) RegisterArchive(path string) error {
	code, err := n.mod.RegisterArchive(path)
	if err != nil {
		return err
	}
	if code != 0 {
		return &CodeError{Op: "register archive " + path, Code: int64(code)}
	}
	return nil
}

func (n *Native) Start() error {
	if !n.started.CAS(false, true) {
		return ErrAlreadyRunning
	}
	code, err := n.mod.Start()
	if err == nil && code != 0 {
		err = &CodeError{Op: "engine start", Code: int64(code)}
	}
	if err != nil {
		n.started.Store(false)
		return err
	}
	return nil
}

func (n *Native) Started() bool {
	return n.started.Load()
}

func (n *Native) ReadAsset(name string) ([]byte, error) {
	if !n.mod.CanReadAssets() {
		return nil, errors.Wrapf(ffi.ErrNotLoaded, "module does not export asset reads (%s)", name)
	}

	size, err := n.mod.AssetSize(name)
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}

	buf := make([]byte, size)
	got, err := n.mod.ReadAsset(name, buf)
	if err != nil {
		return nil, err
	}
	if got < 0 {
		return nil, &CodeError{Op: "read asset " + name, Code: got}
	}
	return buf[:got], nil
}

// NativeLoader loads engines through an ffi loader.
type NativeLoader struct {
	FFI *ffi.Loader
}

func (l NativeLoader) Load(moduleName string) (Engine, error) {
	loader := l.FFI
	if loader == nil {
		loader = ffi.Default()
	}
	mod, err := loader.EnsureLoaded(moduleName)
	if err != nil {
		return nil, err
	}
	return NewNative(mod), nil
}
