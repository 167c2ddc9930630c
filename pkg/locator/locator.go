// Package locator finds package files by base name under a project tree.
package locator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ndisidore/luabundle/internal/logging"
)

// DefaultExt is the script extension appended to bare package names.
const DefaultExt = ".lua"

// Sentinel errors for locator failures.
var (
	ErrAmbiguousPackage = errors.New("ambiguous package")
	ErrInvalidPattern   = errors.New("invalid exclude pattern")
)

// Policy decides what happens when several files share a package's name.
type Policy int

const (
	// PolicyFirst picks the candidate with the lexicographically smallest
	// slash-separated path.
	PolicyFirst Policy = iota
	// PolicyStrict fails with ErrAmbiguousPackage.
	PolicyStrict
)

// String returns the flag spelling of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyFirst:
		return "first"
	case PolicyStrict:
		return "strict"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Locator searches FS recursively for regular files whose base name equals
// a normalized package name. Unreadable directories are skipped, never
// fatal.
type Locator struct {
	// FS is the project tree. Returned paths are relative to its root.
	FS fs.FS
	// Ext is appended to names lacking it. Empty means DefaultExt.
	Ext string
	// Exclude holds doublestar patterns matched against slash paths
	// relative to the root. A matching directory is not descended into.
	Exclude []string
	// Policy resolves multiple candidates.
	Policy Policy
}

// Normalize appends ext to name unless name already ends with it.
func Normalize(name, ext string) string {
	if strings.HasSuffix(name, ext) {
		return name
	}
	return name + ext
}

func (l *Locator) ext() string {
	if l.Ext == "" {
		return DefaultExt
	}
	return l.Ext
}

// Validate reports the first malformed exclude pattern.
func (l *Locator) Validate() error {
	for _, pat := range l.Exclude {
		if !doublestar.ValidatePattern(cleanPattern(pat)) {
			return fmt.Errorf("%q: %w", pat, ErrInvalidPattern)
		}
	}
	return nil
}

// Find returns the path of the file backing the named package. A missing
// package is reported as found == false with a nil error; errors are
// reserved for bad patterns and, under PolicyStrict, ambiguity.
func (l *Locator) Find(ctx context.Context, name string) (string, bool, error) {
	candidates, err := l.Candidates(ctx, name)
	if err != nil {
		return "", false, err
	}
	switch {
	case len(candidates) == 0:
		return "", false, nil
	case len(candidates) == 1:
		return candidates[0], true, nil
	case l.Policy == PolicyStrict:
		return "", false, fmt.Errorf(
			"%w: %q matches %s", ErrAmbiguousPackage, name, strings.Join(candidates, ", "),
		)
	default:
		logging.FromContext(ctx).LogAttrs(ctx, slog.LevelDebug, "ambiguous package, picking first",
			slog.String("package", name),
			slog.String("path", candidates[0]),
			slog.Int("candidates", len(candidates)),
		)
		return candidates[0], true, nil
	}
}

// Candidates returns every regular file under FS whose base name matches
// the normalized package name, sorted lexicographically.
func (l *Locator) Candidates(ctx context.Context, name string) ([]string, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	want := Normalize(name, l.ext())
	log := logging.FromContext(ctx)

	var found []string
	walkErr := fs.WalkDir(l.FS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			log.LogAttrs(ctx, slog.LevelDebug, "skipping unreadable entry",
				slog.String("path", p), slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if p != "." && l.excluded(p) {
			log.LogAttrs(ctx, slog.LevelDebug, "excluded", slog.String("path", p))
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && d.Name() == want {
			found = append(found, p)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walking for %s: %w", want, walkErr)
	}
	slices.SortFunc(found, strings.Compare)
	return found, nil
}

func (l *Locator) excluded(p string) bool {
	for _, pat := range l.Exclude {
		if ok, err := doublestar.Match(cleanPattern(pat), p); err == nil && ok {
			return true
		}
	}
	return false
}

// cleanPattern turns ignore-file spellings such as "./build/" into a slash
// pattern relative to the root.
func cleanPattern(pat string) string {
	pat = strings.TrimPrefix(strings.TrimSpace(pat), "./")
	pat = strings.TrimSuffix(pat, "/")
	if pat == "" {
		return pat
	}
	return path.Clean(pat)
}
