// Package engine ties the compiler, the on-disk cache and the runtime
// together. An Engine is the compiler's Environment: it owns the tag
// registry and decides where each template's unit is cached.
package engine

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/conneroisu/spoon/internal/cache"
	"github.com/conneroisu/spoon/internal/compiler"
	"github.com/conneroisu/spoon/internal/config"
	"github.com/conneroisu/spoon/internal/errors"
	"github.com/conneroisu/spoon/internal/logging"
	"github.com/conneroisu/spoon/internal/node"
	"github.com/conneroisu/spoon/internal/runtime"
)

// hashCacheSize bounds the memory used to memoise source checksums.
const hashCacheSize = 1 << 20

// Engine compiles, caches and renders templates.
type Engine struct {
	cfg      *config.Config
	fs       afero.Fs
	registry *node.Registry
	logger   logging.Logger
	hashes   *cache.HashProvider

	mu        sync.Mutex
	renderers map[string]loaded
}

type loaded struct {
	sum      string
	renderer runtime.Renderer
}

var _ compiler.Environment = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry replaces the default tag registry.
func WithRegistry(r *node.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithFs sets the filesystem templates and units live on.
func WithFs(fs afero.Fs) Option {
	return func(e *Engine) {
		e.fs = fs
	}
}

// New creates an engine for cfg.
func New(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		fs:        afero.NewOsFs(),
		registry:  node.DefaultRegistry(),
		logger:    logging.NewNop(),
		renderers: make(map[string]loaded),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("engine")
	e.hashes = cache.NewHashProvider(e.fs, cache.New(hashCacheSize, 0))
	return e
}

// Registry returns the tag registry used for compilation.
func (e *Engine) Registry() *node.Registry {
	return e.registry
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Lookup implements compiler.Environment.
func (e *Engine) Lookup(tag string) (node.Constructor, bool) {
	return e.registry.Lookup(tag)
}

// CacheDir implements compiler.Environment.
func (e *Engine) CacheDir() string {
	return e.cfg.Cache.Dir
}

// Autoescape implements compiler.Environment.
func (e *Engine) Autoescape() bool {
	return e.cfg.Render.Autoescape
}

// CacheFilename implements compiler.Environment. Sources under the template
// root keep their directory; the basename is identifier-encoded so distinct
// sources never share a unit. Sources outside the root are flattened into
// their encoded absolute path, which always contains an encoded separator
// and so cannot match an encoded basename.
func (e *Engine) CacheFilename(source string) string {
	rel, ok := e.relative(source)
	if !ok {
		if abs, err := filepath.Abs(source); err == nil {
			source = abs
		}
		return compiler.Ident(filepath.ToSlash(filepath.Clean(source))) + compiler.UnitExt
	}
	dir, base := filepath.Split(rel)
	return filepath.Join(dir, compiler.Ident(base)+compiler.UnitExt)
}

func (e *Engine) relative(source string) (string, bool) {
	root := e.cfg.Templates.Root
	if filepath.IsAbs(root) != filepath.IsAbs(source) {
		var err error
		if root, err = filepath.Abs(root); err != nil {
			return "", false
		}
		if source, err = filepath.Abs(source); err != nil {
			return "", false
		}
	}
	rel, err := filepath.Rel(root, source)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// Destination returns the path of source's cached unit.
func (e *Engine) Destination(source string) string {
	return filepath.Join(e.CacheDir(), e.CacheFilename(source))
}

func (e *Engine) newCompiler(source string) *compiler.Compiler {
	return compiler.New(e, source, compiler.WithFs(e.fs), compiler.WithLogger(e.logger))
}

// Compile compiles source and persists its unit, returning the unit path.
func (e *Engine) Compile(source string) (string, error) {
	return e.newCompiler(source).Write()
}

// IsStale reports whether source must be recompiled before rendering.
func (e *Engine) IsStale(source string) (bool, error) {
	if e.cfg.Cache.ForceCompile {
		return true, nil
	}

	dest := e.Destination(source)
	unit, err := afero.ReadFile(e.fs, dest)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, errors.NewIOError(errors.ErrCodeReadSource, dest, err)
	}
	if !e.cfg.Cache.AutoReload {
		return false, nil
	}

	recorded, ok := compiler.ReadChecksum(unit)
	if !ok {
		return true, nil
	}
	sum, err := e.hashes.Checksum(source)
	if err != nil {
		return false, errors.NewIOError(errors.ErrCodeReadSource, source, err)
	}
	return sum != recorded, nil
}

// Render displays source with vars, compiling it first when stale. If the
// cache cannot be written the freshly compiled unit is rendered uncached.
func (e *Engine) Render(ctx context.Context, source string, vars map[string]any) (string, error) {
	r, err := e.Load(ctx, source)
	if err != nil {
		return "", err
	}
	return r.Display(ctx, vars)
}

// Load returns the renderer for source, compiling it first when stale.
func (e *Engine) Load(ctx context.Context, source string) (runtime.Renderer, error) {
	stale, err := e.IsStale(source)
	if err != nil {
		return nil, err
	}

	dest := e.Destination(source)
	var unit []byte
	if stale {
		if unit, err = e.refresh(ctx, source, dest); err != nil {
			return nil, err
		}
	} else if unit, err = afero.ReadFile(e.fs, dest); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeReadSource, dest, err)
	}

	return e.load(source, dest, unit)
}

func (e *Engine) refresh(ctx context.Context, source, dest string) ([]byte, error) {
	src, err := afero.ReadFile(e.fs, source)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeReadSource, source, err)
	}
	code, err := e.newCompiler(source).Compile(src)
	if err != nil {
		return nil, err
	}

	if err := compiler.Persist(e.fs, dest, []byte(code)); err != nil {
		if !errors.IsCachePersistence(err) {
			return nil, err
		}
		e.logger.Warn(ctx, err, "Cache not writable, rendering uncached", "file", source, "dest", dest)
	} else {
		e.logger.Debug(ctx, "Recompiled stale template", "file", source, "dest", dest)
	}
	return []byte(code), nil
}

func (e *Engine) load(source, dest string, unit []byte) (runtime.Renderer, error) {
	sum := cache.Sum(unit)

	e.mu.Lock()
	defer e.mu.Unlock()
	if l, ok := e.renderers[dest]; ok && l.sum == sum {
		return l.renderer, nil
	}

	r, err := runtime.LoadUnit(dest, unit, e.CacheFilename(source))
	if err != nil {
		return nil, err
	}
	e.renderers[dest] = loaded{sum: sum, renderer: r}
	return r, nil
}

// Sources lists the template files under the root, sorted.
func (e *Engine) Sources() ([]string, error) {
	var sources []string
	root := e.cfg.Templates.Root
	err := afero.Walk(e.fs, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if e.IsTemplate(path) {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeReadSource, root, err)
	}
	slices.Sort(sources)
	return sources, nil
}

// IsTemplate reports whether path has one of the configured extensions.
func (e *Engine) IsTemplate(path string) bool {
	return slices.Contains(e.cfg.Templates.Extensions, filepath.Ext(path))
}
