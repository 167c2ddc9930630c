package locator

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(content string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(content)}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		ext  string
		want string
	}{
		{name: "bare name", in: "utils", ext: ".lua", want: "utils.lua"},
		{name: "already suffixed", in: "utils.lua", ext: ".lua", want: "utils.lua"},
		{name: "other extension", in: "utils", ext: ".luau", want: "utils.luau"},
		{name: "suffix must be exact", in: "utilslua", ext: ".lua", want: "utilslua.lua"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in, tt.ext))
		})
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fsys      fstest.MapFS
		pkg       string
		policy    Policy
		exclude   []string
		wantPath  string
		wantFound bool
		wantErr   error
	}{
		{
			name:      "top level file",
			fsys:      fstest.MapFS{"utils.lua": file("x")},
			pkg:       "utils",
			wantPath:  "utils.lua",
			wantFound: true,
		},
		{
			name:      "nested file",
			fsys:      fstest.MapFS{"lib/deep/utils.lua": file("x")},
			pkg:       "utils",
			wantPath:  "lib/deep/utils.lua",
			wantFound: true,
		},
		{
			name:      "name with extension",
			fsys:      fstest.MapFS{"lib/utils.lua": file("x")},
			pkg:       "utils.lua",
			wantPath:  "lib/utils.lua",
			wantFound: true,
		},
		{
			name:      "missing package is not an error",
			fsys:      fstest.MapFS{"main.lua": file("x")},
			pkg:       "utils",
			wantFound: false,
		},
		{
			name:      "directory with matching name is skipped",
			fsys:      fstest.MapFS{"utils.lua/inner.lua": file("x")},
			pkg:       "utils",
			wantFound: false,
		},
		{
			name:      "base name must match exactly",
			fsys:      fstest.MapFS{"myutils.lua": file("x"), "utils.lua.bak": file("x")},
			pkg:       "utils",
			wantFound: false,
		},
		{
			name: "ambiguous picks lexicographic first",
			fsys: fstest.MapFS{
				"z/utils.lua":   file("z"),
				"a/b/utils.lua": file("ab"),
				"a.b/utils.lua": file("a.b"),
			},
			pkg:       "utils",
			wantPath:  "a.b/utils.lua",
			wantFound: true,
		},
		{
			name: "ambiguous fails under strict",
			fsys: fstest.MapFS{
				"a/utils.lua": file("a"),
				"b/utils.lua": file("b"),
			},
			pkg:     "utils",
			policy:  PolicyStrict,
			wantErr: ErrAmbiguousPackage,
		},
		{
			name:      "strict with single candidate",
			fsys:      fstest.MapFS{"a/utils.lua": file("a")},
			pkg:       "utils",
			policy:    PolicyStrict,
			wantPath:  "a/utils.lua",
			wantFound: true,
		},
		{
			name: "excluded directory is not searched",
			fsys: fstest.MapFS{
				"build/utils.lua": file("stale"),
				"src/utils.lua":   file("fresh"),
			},
			pkg:       "utils",
			exclude:   []string{"build/"},
			wantPath:  "src/utils.lua",
			wantFound: true,
		},
		{
			name: "doublestar exclude",
			fsys: fstest.MapFS{
				"vendor/x/y/utils.lua": file("v"),
			},
			pkg:       "utils",
			exclude:   []string{"**/y"},
			wantFound: false,
		},
		{
			name:      "excluded file",
			fsys:      fstest.MapFS{"lib/utils.lua": file("x")},
			pkg:       "utils",
			exclude:   []string{"lib/*.lua"},
			wantFound: false,
		},
		{
			name:    "invalid pattern",
			fsys:    fstest.MapFS{"utils.lua": file("x")},
			pkg:     "utils",
			exclude: []string{"[unterminated"},
			wantErr: ErrInvalidPattern,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := &Locator{FS: tt.fsys, Policy: tt.policy, Exclude: tt.exclude}
			got, found, err := l.Find(context.Background(), tt.pkg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantPath, got)
		})
	}
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	l := &Locator{FS: fstest.MapFS{
		"c/utils.lua":  file(""),
		"utils.lua":    file(""),
		"b/utils.lua":  file(""),
		"b/other.lua":  file(""),
		"b/utils.luau": file(""),
	}}
	got, err := l.Candidates(context.Background(), "utils")
	require.NoError(t, err)
	assert.Equal(t, []string{"b/utils.lua", "c/utils.lua", "utils.lua"}, got)
}

func TestCustomExt(t *testing.T) {
	t.Parallel()

	l := &Locator{FS: fstest.MapFS{"utils.lua": file(""), "src/utils.luau": file("")}, Ext: ".luau"}
	got, found, err := l.Find(context.Background(), "utils")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "src/utils.luau", got)
}

func TestFindSkipsUnreadableDirectory(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("chmod semantics differ on Windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	dir := t.TempDir()
	locked := filepath.Join(dir, "locked")
	require.NoError(t, os.MkdirAll(locked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(locked, "utils.lua"), []byte("hidden"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "open"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "open", "utils.lua"), []byte("ok"), 0o644))
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	l := &Locator{FS: os.DirFS(dir)}
	got, found, err := l.Find(context.Background(), "utils")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "open/utils.lua", got)
}

func TestFindIgnoresSymlinks(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on Windows")
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "real.lua")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "utils.lua")))

	l := &Locator{FS: os.DirFS(dir)}
	_, found, err := l.Find(context.Background(), "utils")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFindMissingRoot(t *testing.T) {
	t.Parallel()

	l := &Locator{FS: os.DirFS(filepath.Join(t.TempDir(), "nope"))}
	_, found, err := l.Find(context.Background(), "utils")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPolicyString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "first", PolicyFirst.String())
	assert.Equal(t, "strict", PolicyStrict.String())
	assert.Equal(t, "Policy(7)", Policy(7).String())
}
