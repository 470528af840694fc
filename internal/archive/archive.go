// Package archive mounts zip-based application packages as read-only
// resource roots and serves bundled assets out of them.
package archive

import (
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultPrefixes are tried for every lookup, in order. Android packages
// keep bundled assets under assets/.
var DefaultPrefixes = []string{"", "assets/"}

type root struct {
	path  string
	rc    *zip.ReadCloser
	files map[string]*zip.File
}

// Registry is the set of mounted archive roots.
// Lookups are safe to run concurrently with each other and with Mount.
type Registry struct {
	mu       sync.RWMutex
	prefixes []string
	roots    []*root
	byPath   map[string]*root
}

// New returns an empty registry that tries the given prefixes on lookup.
func New(prefixes ...string) *Registry {
	if len(prefixes) == 0 {
		prefixes = DefaultPrefixes
	}
	return &Registry{
		prefixes: append([]string(nil), prefixes...),
		byPath:   make(map[string]*root),
	}
}

// Mount opens the archive at p and adds it as a root. Mounting a path that
// is already mounted is a no-op.
func (r *Registry) Mount(p string) error {
	if p == "" {
		return errors.New("mount archive: empty path")
	}
	clean := filepath.Clean(p)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byPath[clean]; ok {
		zap.L().Debug("Archive already mounted", zap.String("path", clean))
		return nil
	}

	rc, err := zip.OpenReader(clean)
	if err != nil {
		return errors.Wrapf(err, "mount archive %s", clean)
	}

	rt := &root{
		path:  clean,
		rc:    rc,
		files: make(map[string]*zip.File, len(rc.File)),
	}
	for _, f := range rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		// first entry wins on duplicate names
		if _, dup := rt.files[f.Name]; !dup {
			rt.files[f.Name] = f
		}
	}

	r.roots = append(r.roots, rt)
	r.byPath[clean] = rt

	zap.L().Info("Archive mounted", zap.String("path", clean), zap.Int("entries", len(rt.files)))
	return nil
}

// Roots returns the mounted archive paths in mount order.
func (r *Registry) Roots() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.roots))
	for _, rt := range r.roots {
		paths = append(paths, rt.path)
	}
	return paths
}

func normalize(name string) (string, bool) {
	name = strings.ReplaceAll(name, `\`, "/")
	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	return clean, clean != ""
}

func (r *Registry) find(name string) (*zip.File, bool) {
	clean, ok := normalize(name)
	if !ok {
		return nil, false
	}
	for _, rt := range r.roots {
		for _, prefix := range r.prefixes {
			if f, ok := rt.files[prefix+clean]; ok {
				return f, true
			}
		}
	}
	return nil, false
}

// Has reports whether any root contains name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.find(name)
	return ok
}

// ReadFile returns the contents of a bundled asset. Missing assets return
// an error matching fs.ErrNotExist.
func (r *Registry) ReadFile(name string) ([]byte, error) {
	r.mu.RLock()
	f, ok := r.find(name)
	r.mu.RUnlock()

	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}

	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "open asset %s", name)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "read asset %s", name)
	}
	return data, nil
}

// Close unmounts every root.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for _, rt := range r.roots {
		err = multierr.Append(err, rt.rc.Close())
	}
	r.roots = nil
	r.byPath = make(map[string]*root)
	return err
}
