// Package config loads ctdboot.toml.
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agiangrant/ctdboot/internal/archive"
	"github.com/agiangrant/ctdboot/internal/ffi"
	"github.com/agiangrant/ctdboot/internal/hostctx"
	"github.com/agiangrant/ctdboot/internal/lifecycle"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "ctdboot.toml"

// ModuleEnv overrides the engine module name.
const ModuleEnv = "CENTERED_ENGINE_MODULE"

// Engine backends
const (
	BackendNative   = "native"
	BackendEmbedded = "embedded"
)

// Package path sources
const (
	SourceStatic   = "static"
	SourceEnv      = "env"
	SourceProcMaps = "procmaps"
	SourceBridge   = "bridge"
	SourceChain    = "chain"
)

// DefaultTarget is used for platforms without their own section.
const DefaultTarget = "default"

// Config represents the ctdboot.toml configuration file
type Config struct {
	Engine  EngineConfig            `toml:"engine"`
	Archive ArchiveConfig           `toml:"archive"`
	Targets map[string]TargetConfig `toml:"targets"`
}

type EngineConfig struct {
	// Native module name, without platform prefix or suffix
	Module string `toml:"module"`
	// native or embedded
	Backend string `toml:"backend"`
	// Directories searched for the module before the built-in locations
	SearchPaths []string `toml:"search_paths"`
}

type ArchiveConfig struct {
	// Prefixes tried inside each archive on lookup
	Prefixes []string `toml:"prefixes"`
	// Fail startup when the package path is not an existing file
	RequireExists bool `toml:"require_exists"`
}

// TargetConfig is the per-platform bootstrap contract. Ordering and path
// source must agree: a bridge is only populated by the base behaviour, so
// it can only be read after it.
type TargetConfig struct {
	// before or after
	Ordering string `toml:"ordering"`
	// static, env, procmaps, bridge or chain
	PathSource string `toml:"path_source"`
	// Package path for the static source
	Path string `toml:"path,omitempty"`
	// Variable for the env source
	EnvKey string `toml:"env_key,omitempty"`
}

// Default returns a sensible default configuration
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Module:  ffi.DefaultModuleName,
			Backend: BackendNative,
		},
		Archive: ArchiveConfig{
			Prefixes:      append([]string(nil), archive.DefaultPrefixes...),
			RequireExists: true,
		},
		Targets: map[string]TargetConfig{
			DefaultTarget: {Ordering: "before", PathSource: SourceEnv, EnvKey: hostctx.DefaultEnvKey},
			"android":     {Ordering: "after", PathSource: SourceBridge},
			"linux":       {Ordering: "before", PathSource: SourceEnv, EnvKey: hostctx.DefaultEnvKey},
			"darwin":      {Ordering: "before", PathSource: SourceEnv, EnvKey: hostctx.DefaultEnvKey},
			"windows":     {Ordering: "before", PathSource: SourceEnv, EnvKey: hostctx.DefaultEnvKey},
		},
	}
}

// Load reads the configuration at path. An empty path looks for FileName in
// the working directory and falls back to defaults when it is absent.
func Load(path string) (Config, error) {
	config := Default()

	if path == "" {
		if _, err := os.Stat(FileName); err != nil {
			applyEnv(&config)
			return config, config.Validate()
		}
		path = FileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrapf(err, "failed to read %s", path)
	}
	// Target sections in the file replace the defaults whole; decoding into
	// the default map would merge omitted fields back in.
	defaults := config.Targets
	config.Targets = nil
	if err := toml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrapf(err, "failed to parse %s", path)
	}
	if config.Targets == nil {
		config.Targets = make(map[string]TargetConfig, len(defaults))
	}
	for name, target := range defaults {
		if _, ok := config.Targets[name]; !ok {
			config.Targets[name] = target
		}
	}

	// Apply defaults for empty values
	if config.Engine.Module == "" {
		config.Engine.Module = ffi.DefaultModuleName
	}
	if config.Engine.Backend == "" {
		config.Engine.Backend = BackendNative
	}
	if len(config.Archive.Prefixes) == 0 {
		config.Archive.Prefixes = append([]string(nil), archive.DefaultPrefixes...)
	}
	applyEnv(&config)

	if err := config.Validate(); err != nil {
		return config, errors.Wrapf(err, "invalid %s", path)
	}
	return config, nil
}

func applyEnv(config *Config) {
	if m := os.Getenv(ModuleEnv); m != "" {
		config.Engine.Module = m
	}
}

// Save writes the configuration to path.
func (c Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// Target returns the section for platform, falling back to the default section.
func (c Config) Target(platform string) TargetConfig {
	if t, ok := c.Targets[platform]; ok {
		return t
	}
	if t, ok := c.Targets[DefaultTarget]; ok {
		return t
	}
	return TargetConfig{Ordering: "before", PathSource: SourceEnv}
}

// Validate checks that every target section describes a usable contract.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Engine.Module) == "" {
		return errors.New("engine.module is empty")
	}
	switch c.Engine.Backend {
	case BackendNative, BackendEmbedded:
	default:
		return errors.Errorf("engine.backend %q (want %s or %s)", c.Engine.Backend, BackendNative, BackendEmbedded)
	}

	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := c.Targets[name].Validate(); err != nil {
			return errors.Wrapf(err, "targets.%s", name)
		}
	}
	return nil
}

// Validate checks ordering, source and their combination.
func (t TargetConfig) Validate() error {
	ordering, err := lifecycle.ParseOrdering(t.Ordering)
	if err != nil {
		return err
	}

	switch t.PathSource {
	case SourceEnv, SourceProcMaps, SourceChain:
	case SourceStatic:
		if t.Path == "" {
			return errors.New("static path source needs path")
		}
	case SourceBridge:
		if ordering == lifecycle.RegisterBeforeBase {
			return errors.New("bridge path source is only populated by the base start; use ordering = \"after\"")
		}
	default:
		return errors.Errorf("unknown path_source %q", t.PathSource)
	}
	return nil
}
