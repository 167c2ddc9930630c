// Package bundle inlines included packages into a main script.
//
// A run is a straight pipeline: read the main file, scan it for include
// directives, resolve every package, then substitute package contents into
// a working copy of the main text. Any failure aborts the run before output
// exists, so callers never see a partial bundle.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/ndisidore/luabundle/internal/logging"
	"github.com/ndisidore/luabundle/pkg/directive"
	"github.com/ndisidore/luabundle/pkg/locator"
)

// DefaultMainFile is the entry script used when none is named.
const DefaultMainFile = "main.lua"

// Sentinel errors for bundling failures.
var (
	ErrMainFileNotFound = errors.New("main file not found")
	ErrPackageNotFound  = errors.New("package not found")
	ErrReadPackage      = errors.New("reading package")
)

// Finder resolves a package name to a path inside the bundler's FS.
type Finder interface {
	Find(ctx context.Context, name string) (path string, found bool, err error)
}

// Package is a resolved reference to an included file.
type Package struct {
	// Name is the identifier from the directive.
	Name string
	// Directive is the exact directive text that Path's contents replace.
	Directive string
	// Path is the package file relative to the project root.
	Path string
}

// Bundler produces single-file scripts from a project tree.
type Bundler struct {
	// FS is the project root. The main file and all packages live in it.
	FS fs.FS
	// Locator resolves package names. Nil means a default Locator over FS.
	Locator Finder
}

// New returns a Bundler over fsys with a default Locator.
func New(fsys fs.FS) *Bundler {
	return &Bundler{FS: fsys, Locator: &locator.Locator{FS: fsys}}
}

// BundleDir bundles mainFile from the project directory at root.
func BundleDir(ctx context.Context, root, mainFile string) (string, error) {
	return New(os.DirFS(root)).Bundle(ctx, mainFile)
}

func (b *Bundler) finder() Finder {
	if b.Locator != nil {
		return b.Locator
	}
	return &locator.Locator{FS: b.FS}
}

// Bundle reads mainFile from the project root and returns its text with
// every include directive replaced by the contents of the named package.
//
// Substitution replaces all occurrences of a directive's exact text in one
// step, one unique directive at a time in discovery order. Directives that
// only appear inside inlined package contents are not scanned, though a
// later replace-all step still rewrites identical directive text wherever
// it sits in the working copy.
func (b *Bundler) Bundle(ctx context.Context, mainFile string) (string, error) {
	text, err := b.ReadMain(mainFile)
	if err != nil {
		return "", err
	}

	pkgs, err := b.Resolve(ctx, text)
	if err != nil {
		return "", err
	}

	log := logging.FromContext(ctx)
	out := text
	for _, p := range pkgs {
		content, err := b.ReadPackage(p)
		if err != nil {
			return "", err
		}
		out = strings.ReplaceAll(out, p.Directive, content)
		log.LogAttrs(ctx, slog.LevelDebug, "inlined package",
			slog.String("package", p.Name),
			slog.String("path", p.Path),
			slog.Int("bytes", len(content)),
		)
	}

	log.LogAttrs(ctx, slog.LevelDebug, "bundle complete",
		slog.String("main", mainFile),
		slog.Int("packages", len(pkgs)),
		slog.String("digest", digest.FromString(out).String()),
	)
	return out, nil
}

// ReadMain returns the full text of the main file.
func (b *Bundler) ReadMain(mainFile string) (string, error) {
	data, err := fs.ReadFile(b.FS, mainFile)
	if err != nil {
		return "", fmt.Errorf("main file %q: %w: %w", mainFile, ErrMainFileNotFound, err)
	}
	return string(data), nil
}

// Resolve scans text for directives and resolves each unique one, in
// discovery order. The first package that cannot be found fails the whole
// resolution.
func (b *Bundler) Resolve(ctx context.Context, text string) ([]Package, error) {
	occs := directive.Unique(directive.Scan(text))
	if len(occs) == 0 {
		return nil, nil
	}

	log := logging.FromContext(ctx)
	finder := b.finder()
	pkgs := make([]Package, 0, len(occs))
	for _, o := range occs {
		path, found, err := finder.Find(ctx, o.Name)
		if err != nil {
			return nil, fmt.Errorf("package %q: %w", o.Name, err)
		}
		if !found {
			return nil, fmt.Errorf("package %q: %w", o.Name, ErrPackageNotFound)
		}
		log.LogAttrs(ctx, slog.LevelDebug, "resolved package",
			slog.String("package", o.Name), slog.String("path", path))
		pkgs = append(pkgs, Package{Name: o.Name, Directive: o.Text, Path: path})
	}
	return pkgs, nil
}

// ReadPackage returns the raw contents of a resolved package.
func (b *Bundler) ReadPackage(p Package) (string, error) {
	data, err := fs.ReadFile(b.FS, p.Path)
	if err != nil {
		return "", fmt.Errorf("%w %q from %s: %w", ErrReadPackage, p.Name, p.Path, err)
	}
	return string(data), nil
}
