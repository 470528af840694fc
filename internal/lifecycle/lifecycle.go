// Package lifecycle hooks native engine bootstrap into the host's start
// event: the engine module is made resident once per process, the
// installed package is registered as an archive root, and only then is
// the engine's own startup run.
package lifecycle

import (
	"sync"

	"github.com/agiangrant/ctdboot/internal/engine"
	"github.com/agiangrant/ctdboot/internal/ffi"
	"github.com/agiangrant/ctdboot/internal/hostctx"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	// ErrModuleNotLoaded is returned when a lifecycle step runs before the
	// engine module is resident.
	ErrModuleNotLoaded = errors.New("engine module not loaded")
	// ErrEngineStarted is returned when an archive is registered after the
	// engine has already run its startup and enumerated resources.
	ErrEngineStarted = errors.New("engine already started; archive registered too late")
	// ErrAlreadyStarted is returned by a second OnStart.
	ErrAlreadyStarted = errors.New("start event already handled")
)

// Process is the process-wide bootstrap state.
type Process struct {
	state atomic.Int32
	once  sync.Once
	name  string
	eng   engine.Engine
	err   error
}

// NewProcess returns a process in the Unloaded state.
func NewProcess() *Process {
	return &Process{}
}

var (
	defaultProcess     *Process
	defaultProcessOnce sync.Once
)

// Default returns the process-wide bootstrap state.
func Default() *Process {
	defaultProcessOnce.Do(func() {
		defaultProcess = NewProcess()
	})
	return defaultProcess
}

// Load makes the engine module resident. Only the first call loads; its
// result, success or failure, is returned to every later caller asking for
// the same module. Any other module name returns ffi.ErrModuleMismatch.
func (p *Process) Load(loader engine.Loader, moduleName string) (engine.Engine, error) {
	p.once.Do(func() {
		p.name = moduleName
		if loader == nil {
			p.err = errors.Wrap(ErrModuleNotLoaded, "no engine loader")
			return
		}
		eng, err := loader.Load(moduleName)
		if err != nil {
			p.err = err
			zap.L().Error("Engine module load failed", zap.String("module", moduleName), zap.Error(err))
			return
		}
		p.eng = eng
		p.advance(Unloaded, ModuleLoaded)
		zap.L().Info("Engine module resident", zap.String("module", moduleName), zap.String("version", eng.Version()))
	})
	if p.name != moduleName {
		return nil, errors.Wrapf(ffi.ErrModuleMismatch, "resident %q, requested %q", p.name, moduleName)
	}
	return p.eng, p.err
}

// State returns the current state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// Engine returns the loaded engine, or nil before a successful Load.
func (p *Process) Engine() engine.Engine {
	if p.State() == Unloaded {
		return nil
	}
	return p.eng
}

func (p *Process) advance(from, to State) bool {
	ok := p.state.CAS(int32(from), int32(to))
	if ok {
		zap.L().Debug("Bootstrap state", zap.Stringer("from", from), zap.Stringer("to", to))
	}
	return ok
}

// Base is the generic start behaviour the host would run without this shim.
type Base interface {
	OnStart(eng engine.Engine) error
}

// BaseFunc adapts a function to Base.
type BaseFunc func(eng engine.Engine) error

func (f BaseFunc) OnStart(eng engine.Engine) error {
	return f(eng)
}

// NopBase does nothing.
type NopBase struct{}

func (NopBase) OnStart(engine.Engine) error {
	return nil
}

// BridgeAttach is the base behaviour of targets whose platform bridge owns
// the package path: it caches the path from Source into Bridge, unless the
// host side already published one.
type BridgeAttach struct {
	Bridge *hostctx.Bridge
	Source hostctx.Provider
}

func (b BridgeAttach) OnStart(engine.Engine) error {
	if b.Bridge == nil {
		return errors.New("bridge attach: no bridge")
	}
	if b.Bridge.Published() {
		return nil
	}
	path, err := hostctx.Resolve(b.Source, hostctx.Options{})
	if err != nil {
		return errors.Wrap(err, "bridge attach")
	}
	b.Bridge.Publish(path)
	zap.L().Debug("Bridge cached package path", zap.String("path", path))
	return nil
}

// Options configure an Activity.
type Options struct {
	Ordering Ordering
	Paths    hostctx.Provider
	Resolve  hostctx.Options
	// Base defaults to NopBase.
	Base Base
}

// Activity handles the host start event for one process.
type Activity struct {
	proc     *Process
	paths    hostctx.Provider
	resolve  hostctx.Options
	base     Base
	ordering Ordering

	started atomic.Bool
	path    atomic.String
}

// NewActivity returns an activity bound to proc.
func NewActivity(proc *Process, opts Options) *Activity {
	base := opts.Base
	if base == nil {
		base = NopBase{}
	}
	return &Activity{
		proc:     proc,
		paths:    opts.Paths,
		resolve:  opts.Resolve,
		base:     base,
		ordering: opts.Ordering,
	}
}

// PackagePath returns the last registered archive path.
func (a *Activity) PackagePath() string {
	return a.path.Load()
}

// Ordering returns the configured ordering.
func (a *Activity) Ordering() Ordering {
	return a.ordering
}

// OnStart handles the start event. It runs at most once; the engine's own
// startup always runs after archive registration, whichever side of the
// base behaviour registration sits on.
func (a *Activity) OnStart() error {
	if !a.started.CAS(false, true) {
		return ErrAlreadyStarted
	}

	eng, err := a.engine()
	if err != nil {
		return err
	}

	logger := zap.L().With(zap.Stringer("ordering", a.ordering))
	logger.Debug("Start event")

	switch a.ordering {
	case RegisterAfterBase:
		if err := a.runBase(eng); err != nil {
			return err
		}
		if err := a.ResolveAndRegisterArchivePath(); err != nil {
			return err
		}
	default:
		if err := a.ResolveAndRegisterArchivePath(); err != nil {
			return err
		}
		if err := a.runBase(eng); err != nil {
			return err
		}
	}

	if err := eng.Start(); err != nil {
		return errors.Wrap(err, "engine start")
	}
	a.proc.advance(ArchiveRegistered, EngineRunning)
	logger.Info("Engine running", zap.String("archive", a.PackagePath()))
	return nil
}

func (a *Activity) runBase(eng engine.Engine) error {
	if err := a.base.OnStart(eng); err != nil {
		return errors.Wrap(err, "base start")
	}
	return nil
}

func (a *Activity) engine() (engine.Engine, error) {
	eng := a.proc.Engine()
	if eng == nil {
		return nil, ErrModuleNotLoaded
	}
	return eng, nil
}

// ResolveAndRegisterArchivePath registers the installed package with the
// engine as an archive root. It fails fast if the module is not resident,
// if the engine has already started, or if the host cannot supply a path.
// Registering the same path again leaves lookups unchanged.
func (a *Activity) ResolveAndRegisterArchivePath() error {
	eng, err := a.engine()
	if err != nil {
		return err
	}
	if eng.Started() {
		return ErrEngineStarted
	}

	path, err := hostctx.Resolve(a.paths, a.resolve)
	if err != nil {
		zap.L().Error("Package path unavailable", zap.Error(err))
		return err
	}

	if err := eng.RegisterArchive(path); err != nil {
		return errors.Wrapf(err, "register archive %s", path)
	}

	a.path.Store(path)
	a.proc.advance(ModuleLoaded, ArchiveRegistered)
	zap.L().Info("Archive registered", zap.String("path", path))
	return nil
}
