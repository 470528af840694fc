// Package ctdboot brings up the Centered native engine at process start.
//
// Boot runs the whole sequence: the engine module is made resident once per
// process, the installed application package is located and registered
// with the engine as an archive root, and the engine's own startup runs
// last. Which side of the platform's base start behaviour registration
// happens on is a per-target contract set in ctdboot.toml.
package ctdboot

import (
	"github.com/agiangrant/ctdboot/internal/config"
	"github.com/agiangrant/ctdboot/internal/engine"
	"github.com/agiangrant/ctdboot/internal/ffi"
	"github.com/agiangrant/ctdboot/internal/hostctx"
	"github.com/agiangrant/ctdboot/internal/lifecycle"
	"go.uber.org/zap"
)

// App is a booted application.
type App struct {
	platform Platform
	target   TargetConfig
	proc     *lifecycle.Process
	act      *lifecycle.Activity
}

type options struct {
	platform Platform
	process  *lifecycle.Process
	loader   engine.Loader
	paths    hostctx.Provider
	base     lifecycle.Base
	bridge   *hostctx.Bridge
}

// Option customizes Boot.
type Option func(*options)

// WithPlatform selects the target section instead of the running platform.
func WithPlatform(p Platform) Option {
	return func(o *options) { o.platform = p }
}

// WithProcess uses proc instead of the process-wide bootstrap state.
func WithProcess(proc *lifecycle.Process) Option {
	return func(o *options) { o.process = proc }
}

// WithLoader replaces the engine loader chosen by engine.backend.
func WithLoader(l engine.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithPathProvider replaces the provider chosen by the target's path_source.
func WithPathProvider(p hostctx.Provider) Option {
	return func(o *options) { o.paths = p }
}

// WithBase replaces the base start behaviour.
func WithBase(b lifecycle.Base) Option {
	return func(o *options) { o.base = b }
}

// WithBridge uses b instead of hostctx.SharedBridge. A nil b is ignored.
func WithBridge(b *hostctx.Bridge) Option {
	return func(o *options) {
		if b != nil {
			o.bridge = b
		}
	}
}

// Boot runs the bootstrap sequence. A module load failure returns before
// the start event is handled, so nothing is registered.
func Boot(cfg Config, opts ...Option) (*App, error) {
	o := options{
		platform: CurrentPlatform(),
		bridge:   hostctx.SharedBridge,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.process == nil {
		o.process = lifecycle.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	target := cfg.Target(string(o.platform))
	ordering, err := lifecycle.ParseOrdering(target.Ordering)
	if err != nil {
		return nil, err
	}

	logger := zap.L().With(zap.String("platform", string(o.platform)))
	logger.Info("Booting engine",
		zap.String("module", cfg.Engine.Module),
		zap.String("backend", cfg.Engine.Backend),
		zap.Stringer("ordering", ordering),
		zap.String("path_source", target.PathSource))

	loader := o.loader
	if loader == nil {
		loader = newLoader(cfg)
	}
	if _, err := o.process.Load(loader, cfg.Engine.Module); err != nil {
		return nil, err
	}

	paths := o.paths
	if paths == nil {
		paths = pathProvider(target, o.platform, o.bridge)
	}
	base := o.base
	if base == nil {
		base = baseFor(target, o.platform, o.bridge)
	}

	act := lifecycle.NewActivity(o.process, lifecycle.Options{
		Ordering: ordering,
		Paths:    paths,
		Resolve:  hostctx.Options{RequireExists: cfg.Archive.RequireExists},
		Base:     base,
	})
	if err := act.OnStart(); err != nil {
		return nil, err
	}

	return &App{platform: o.platform, target: target, proc: o.process, act: act}, nil
}

func newLoader(cfg Config) engine.Loader {
	if cfg.Engine.Backend == config.BackendEmbedded {
		return engine.EmbeddedLoader{Prefixes: cfg.Archive.Prefixes}
	}
	l := ffi.Default()
	if !l.Loaded() && len(cfg.Engine.SearchPaths) > 0 {
		l.SearchPaths = cfg.Engine.SearchPaths
	}
	return engine.NativeLoader{FFI: l}
}

// hostSources are the direct host queries available on p.
func hostSources(target TargetConfig, p Platform) hostctx.Chain {
	chain := hostctx.Chain{hostctx.Env{Key: target.EnvKey}}
	if p.MapsPackage() {
		chain = append(chain, hostctx.ProcMaps{})
	}
	return chain
}

func pathProvider(target TargetConfig, p Platform, bridge *hostctx.Bridge) hostctx.Provider {
	switch target.PathSource {
	case config.SourceStatic:
		return hostctx.Static(target.Path)
	case config.SourceEnv:
		return hostctx.Env{Key: target.EnvKey}
	case config.SourceProcMaps:
		return hostctx.ProcMaps{}
	case config.SourceBridge:
		return bridge
	default:
		return append(hostctx.Chain{bridge}, hostSources(target, p)...)
	}
}

func baseFor(target TargetConfig, p Platform, bridge *hostctx.Bridge) lifecycle.Base {
	if target.PathSource == config.SourceBridge {
		return lifecycle.BridgeAttach{Bridge: bridge, Source: hostSources(target, p)}
	}
	return lifecycle.NopBase{}
}

// Platform returns the platform whose target section was used.
func (a *App) Platform() Platform {
	return a.platform
}

// Target returns the bootstrap contract that was applied.
func (a *App) Target() TargetConfig {
	return a.target
}

// Ordering returns where archive registration ran relative to the base
// start behaviour.
func (a *App) Ordering() lifecycle.Ordering {
	return a.act.Ordering()
}

// State returns the bootstrap state.
func (a *App) State() lifecycle.State {
	return a.proc.State()
}

// Engine returns the running engine.
func (a *App) Engine() engine.Engine {
	return a.proc.Engine()
}

// PackagePath returns the registered archive path.
func (a *App) PackagePath() string {
	return a.act.PackagePath()
}

// ReadAsset reads a bundled asset through the engine.
func (a *App) ReadAsset(name string) ([]byte, error) {
	return a.proc.Engine().ReadAsset(name)
}

// ResolvePackagePath resolves the package path for cfg's target on p
// without loading anything.
func ResolvePackagePath(cfg Config, p Platform) (string, error) {
	target := cfg.Target(string(p))
	return hostctx.Resolve(pathProvider(target, p, hostctx.SharedBridge),
		hostctx.Options{RequireExists: cfg.Archive.RequireExists})
}

// ProcessState returns the state of the process-wide bootstrap.
func ProcessState() lifecycle.State {
	return lifecycle.Default().State()
}
