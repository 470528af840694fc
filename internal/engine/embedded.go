package engine

import (
	"github.com/agiangrant/ctdboot/internal/archive"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Embedded is an in-process engine whose resource subsystem is an archive
// registry.
type Embedded struct {
	name    string
	assets  *archive.Registry
	started atomic.Bool
}

// NewEmbedded returns an engine named name backed by assets.
func NewEmbedded(name string, assets *archive.Registry) *Embedded {
	return &Embedded{name: name, assets: assets}
}

// Assets returns the engine's archive registry.
func (e *Embedded) Assets() *archive.Registry {
	return e.assets
}

func (e *Embedded) Version() string {
	return "embedded/" + e.name
}

func (e *Embedded) RegisterArchive(path string) error {
	return e.assets.Mount(path)
}

func (e *Embedded) Start() error {
	if !e.started.CAS(false, true) {
		return ErrAlreadyRunning
	}
	zap.L().Info("Embedded engine started",
		zap.String("module", e.name),
		zap.Strings("archives", e.assets.Roots()))
	return nil
}

func (e *Embedded) Started() bool {
	return e.started.Load()
}

func (e *Embedded) ReadAsset(name string) ([]byte, error) {
	return e.assets.ReadFile(name)
}

// Close unmounts every archive.
func (e *Embedded) Close() error {
	return e.assets.Close()
}

// EmbeddedLoader creates embedded engines.
type EmbeddedLoader struct {
	Prefixes []string
}

func (l EmbeddedLoader) Load(moduleName string) (Engine, error) {
	if moduleName == "" {
		return nil, errors.New("embedded engine: empty module name")
	}
	return NewEmbedded(moduleName, archive.New(l.Prefixes...)), nil
}
