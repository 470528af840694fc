// Package engine is the boundary between the bootstrap and the UI engine.
// The native implementation forwards to the engine module's entry points;
// the embedded implementation serves resources from in-process archive
// roots and backs desktop development and tests.
package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrAlreadyRunning is returned when Start is called on a running engine.
var ErrAlreadyRunning = errors.New("engine already running")

// Engine is the part of the UI engine the bootstrap talks to.
type Engine interface {
	// Version returns the engine version string.
	Version() string
	// RegisterArchive adds path as a source of bundled resources.
	// Registering the same path again has no further effect.
	RegisterArchive(path string) error
	// Start runs the engine's own startup, which may read bundled resources.
	Start() error
	// Started reports whether Start has run.
	Started() bool
	// ReadAsset returns a bundled asset. Missing assets return an error
	// matching fs.ErrNotExist.
	ReadAsset(name string) ([]byte, error)
}

// Loader makes the named engine module resident and returns its engine.
type Loader interface {
	Load(moduleName string) (Engine, error)
}

// CodeError is a non-zero status code returned by an engine entry point.
type CodeError struct {
	Op   string
	Code int64
}

func (e *CodeError) Error() string {
	var msg string
	switch e.Code {
	case -1:
		msg = "null argument"
	case -2:
		msg = "archive not readable"
	case -3:
		msg = "engine already started"
	case -4:
		msg = "not found"
	default:
		msg = "unknown error"
	}
	return fmt.Sprintf("%s: %s (code %d)", e.Op, msg, e.Code)
}
