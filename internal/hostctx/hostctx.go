// Package hostctx answers the one question the bootstrap asks the host
// platform: where is the running application's installed package.
package hostctx

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// ErrPathUnavailable is returned when the host cannot supply a usable
// package path.
var ErrPathUnavailable = errors.New("application package path unavailable")

// DefaultEnvKey is set by platform launchers that know the package path.
const DefaultEnvKey = "CENTERED_PACKAGE_PATH"

// Provider is a read-only source of the application package path.
type Provider interface {
	PackagePath() (string, error)
}

// Static always returns the same path.
type Static string

func (s Static) PackagePath() (string, error) {
	return string(s), nil
}

// Env reads the path from an environment variable.
type Env struct {
	Key string
}

func (e Env) PackagePath() (string, error) {
	key := e.Key
	if key == "" {
		key = DefaultEnvKey
	}
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", errors.Wrapf(ErrPathUnavailable, "%s not set", key)
	}
	return v, nil
}

// ProcMaps finds the package among the files mapped into this process.
// On Android the installed base.apk is always mapped.
type ProcMaps struct {
	// Path defaults to /proc/self/maps.
	Path string
	// Suffix defaults to .apk.
	Suffix string
}

func (p ProcMaps) PackagePath() (string, error) {
	mapsPath := p.Path
	if mapsPath == "" {
		mapsPath = "/proc/self/maps"
	}
	suffix := p.Suffix
	if suffix == "" {
		suffix = ".apk"
	}

	f, err := os.Open(mapsPath)
	if err != nil {
		return "", errors.Wrapf(ErrPathUnavailable, "open %s: %v", mapsPath, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		// address perms offset dev inode pathname
		fields := strings.Fields(sc.Text())
		if len(fields) < 6 {
			continue
		}
		name := strings.Join(fields[5:], " ")
		if strings.HasSuffix(name, suffix) {
			return name, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", errors.Wrapf(ErrPathUnavailable, "scan %s: %v", mapsPath, err)
	}
	return "", errors.Wrapf(ErrPathUnavailable, "no %s mapped in %s", suffix, mapsPath)
}

// Bridge holds a path published by a platform bridge, typically from the
// host side at process attach. It is written once and read afterwards.
type Bridge struct {
	path atomic.String
}

// SharedBridge is the bridge the mobile entry points publish to.
var SharedBridge = &Bridge{}

// Publish stores path. Later calls replace the stored value. Publishing to
// a nil bridge is a no-op.
func (b *Bridge) Publish(path string) {
	if b == nil {
		return
	}
	b.path.Store(path)
}

// Published reports whether a non-empty path has been published.
func (b *Bridge) Published() bool {
	return b != nil && b.path.Load() != ""
}

func (b *Bridge) PackagePath() (string, error) {
	if b == nil {
		return "", errors.Wrap(ErrPathUnavailable, "no bridge")
	}
	if p := b.path.Load(); p != "" {
		return p, nil
	}
	return "", errors.Wrap(ErrPathUnavailable, "bridge has not published a path")
}

// Chain returns the first valid path from its providers.
type Chain []Provider

func (c Chain) PackagePath() (string, error) {
	var errs error
	for _, p := range c {
		path, err := Resolve(p, Options{})
		if err == nil {
			return path, nil
		}
		errs = multierr.Append(errs, err)
	}
	if errs == nil {
		return "", errors.Wrap(ErrPathUnavailable, "no providers")
	}
	return "", errors.Wrap(ErrPathUnavailable, errs.Error())
}

// Options control path validation.
type Options struct {
	// RequireExists fails resolution when the path is not an existing file.
	RequireExists bool
}

// Resolve queries p and validates the result.
func Resolve(p Provider, opts Options) (string, error) {
	if p == nil {
		return "", errors.Wrap(ErrPathUnavailable, "no host context")
	}
	path, err := p.PackagePath()
	if err != nil {
		if errors.Is(err, ErrPathUnavailable) {
			return "", err
		}
		return "", errors.Wrapf(ErrPathUnavailable, "%v", err)
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.Wrap(ErrPathUnavailable, "host returned an empty path")
	}
	if !filepath.IsAbs(path) {
		return "", errors.Wrapf(ErrPathUnavailable, "path %q is not absolute", path)
	}
	path = filepath.Clean(path)

	if opts.RequireExists {
		info, err := os.Stat(path)
		if err != nil {
			return "", errors.Wrapf(ErrPathUnavailable, "stat %s: %v", path, err)
		}
		if info.IsDir() {
			return "", errors.Wrapf(ErrPathUnavailable, "%s is a directory", path)
		}
	}
	return path, nil
}
