// Package main provides the CLI entry point for luabundle.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/opencontainers/go-digest"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/ndisidore/luabundle/internal/ignore"
	"github.com/ndisidore/luabundle/internal/logging"
	"github.com/ndisidore/luabundle/pkg/bundle"
	"github.com/ndisidore/luabundle/pkg/locator"
)

var (
	_headerStyle  = lipgloss.NewStyle().Bold(true)
	_depPathStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // cyan
)

// errMissingProject indicates the project directory flag was not provided.
var errMissingProject = errors.New("missing required flag --project-path")

// errEmptyMainFile indicates the main file flag was set to an empty name.
var errEmptyMainFile = errors.New("main file name must not be empty")

// errMainFileOutside indicates a main file path that leaves the project directory.
var errMainFileOutside = errors.New("path must be relative to and inside the project directory")

// app bundles dependencies so CLI action handlers become testable methods.
type app struct {
	stdout    io.Writer
	stderr    io.Writer
	isTTY     bool
	format    string // resolved log format (pretty, json, text)
	writeFile func(name string, data []byte, perm fs.FileMode) error
}

func main() {
	a := &app{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		isTTY:     term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("CI") == "",
		writeFile: os.WriteFile,
	}

	if err := a.command().Run(context.Background(), os.Args); err != nil {
		os.Exit(1)
	}
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:      "luabundle",
		Usage:     "inline --#include(name) directives into a single Lua script",
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		Flags: append(projectFlags(),
			&cli.StringFlag{
				Name:    "format",
				Usage:   "log format (auto, pretty, json, text)",
				Value:   logging.FormatAuto,
				Sources: cli.EnvVars("LUABUNDLE_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LUABUNDLE_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "write the bundle to this file instead of stdout",
				Sources: cli.EnvVars("LUABUNDLE_OUTPUT"),
			},
		),
		Before: a.initLogger,
		Action: a.bundleAction,
		Commands: []*cli.Command{
			{
				Name:   "deps",
				Usage:  "list the packages the main file includes and where they resolve",
				Action: a.depsAction,
			},
		},
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if err != nil {
				_, _ = fmt.Fprintf(a.stderr, "error: %v\n", err)
			}
		},
	}
}

// projectFlags returns the flags that describe where and how to resolve a
// project. Subcommands inherit them from the root.
func projectFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "project-path",
			Aliases: []string{"p"},
			Usage:   "path to the project to be bundled",
			Sources: cli.EnvVars("LUABUNDLE_PROJECT_PATH"),
		},
		&cli.StringFlag{
			Name:    "main-file",
			Aliases: []string{"m"},
			Usage:   "main script, relative to the project path",
			Value:   bundle.DefaultMainFile,
			Sources: cli.EnvVars("LUABUNDLE_MAIN_FILE"),
		},
		&cli.StringFlag{
			Name:    "ext",
			Usage:   "script extension appended to package names",
			Value:   locator.DefaultExt,
			Sources: cli.EnvVars("LUABUNDLE_EXT"),
		},
		&cli.StringSliceFlag{
			Name:    "exclude",
			Usage:   "glob of project paths never searched for packages (repeatable)",
			Sources: cli.EnvVars("LUABUNDLE_EXCLUDE"),
		},
		&cli.BoolFlag{
			Name:    "strict",
			Usage:   "fail when a package name matches more than one file",
			Sources: cli.EnvVars("LUABUNDLE_STRICT"),
		},
	}
}

func (a *app) initLogger(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	a.format = logging.ResolveFormat(cmd.String("format"), a.isTTY)
	var level slog.Level
	if err := level.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
		return ctx, fmt.Errorf("invalid log level %q: %w", cmd.String("log-level"), err)
	}
	logger, err := logging.NewLogger(a.stderr, a.format, level)
	if err != nil {
		return ctx, fmt.Errorf("initializing logger: %w", err)
	}
	return logging.ContextWithLogger(ctx, logger), nil
}

// newBundler builds a Bundler from the project flags. Exclude patterns from
// the project's ignore file come first, then those given on the command line.
func (*app) newBundler(cmd *cli.Command) (*bundle.Bundler, string, error) {
	root := cmd.String("project-path")
	if root == "" {
		return nil, "", errMissingProject
	}
	mainFile, err := projectRelative(cmd.String("main-file"))
	if err != nil {
		return nil, "", err
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, "", fmt.Errorf("main file %q: %w: project %s is not a readable directory", mainFile, bundle.ErrMainFileNotFound, root)
	}

	fsys := os.DirFS(root)
	excludes, err := ignore.Load(fsys)
	if err != nil {
		return nil, "", fmt.Errorf("project %s: %w", root, err)
	}
	excludes = append(excludes, cmd.StringSlice("exclude")...)

	policy := locator.PolicyFirst
	if cmd.Bool("strict") {
		policy = locator.PolicyStrict
	}
	loc := &locator.Locator{
		FS:      fsys,
		Ext:     cmd.String("ext"),
		Exclude: excludes,
		Policy:  policy,
	}
	if err := loc.Validate(); err != nil {
		return nil, "", err
	}
	return &bundle.Bundler{FS: fsys, Locator: loc}, mainFile, nil
}

// projectRelative cleans a main file name into a slash path inside the
// project directory. Absolute paths and paths climbing out with ".." are
// rejected.
func projectRelative(name string) (string, error) {
	if name == "" {
		return "", errEmptyMainFile
	}
	if filepath.IsAbs(name) || path.IsAbs(filepath.ToSlash(name)) {
		return "", fmt.Errorf("main file %q: %w: %w", name, bundle.ErrMainFileNotFound, errMainFileOutside)
	}
	clean := path.Clean(filepath.ToSlash(name))
	if !fs.ValidPath(clean) {
		return "", fmt.Errorf("main file %q: %w: %w", name, bundle.ErrMainFileNotFound, errMainFileOutside)
	}
	return clean, nil
}

func (a *app) bundleAction(ctx context.Context, cmd *cli.Command) error {
	b, mainFile, err := a.newBundler(cmd)
	if err != nil {
		return err
	}

	logging.FromContext(ctx).LogAttrs(ctx, slog.LevelInfo, "bundling",
		slog.String("root", cmd.String("project-path")),
		slog.String("main", mainFile),
	)
	out, err := b.Bundle(ctx, mainFile)
	if err != nil {
		return err
	}

	if dest := cmd.String("output"); dest != "" {
		if err := a.writeFile(dest, []byte(out), 0o644); err != nil {
			return fmt.Errorf("writing bundle to %s: %w", dest, err)
		}
		logging.FromContext(ctx).LogAttrs(ctx, slog.LevelInfo, "bundle written",
			slog.String("path", dest), slog.Int("bytes", len(out)))
		return nil
	}
	_, err = io.WriteString(a.stdout, out)
	return err
}

func (a *app) depsAction(ctx context.Context, cmd *cli.Command) error {
	b, mainFile, err := a.newBundler(cmd)
	if err != nil {
		return err
	}

	text, err := b.ReadMain(mainFile)
	if err != nil {
		return err
	}
	pkgs, err := b.Resolve(ctx, text)
	if err != nil {
		return err
	}

	digests := make([]digest.Digest, len(pkgs))
	for i, p := range pkgs {
		content, err := b.ReadPackage(p)
		if err != nil {
			return err
		}
		digests[i] = digest.FromString(content)
	}

	pretty := a.format == logging.FormatPretty
	header := fmt.Sprintf("Main '%s' includes %d package(s)", mainFile, len(pkgs))
	if pretty {
		header = _headerStyle.Render(header)
	}
	_, _ = fmt.Fprintln(a.stdout, header)
	for i, p := range pkgs {
		pkgPath := p.Path
		if pretty {
			pkgPath = _depPathStyle.Render(pkgPath)
		}
		_, _ = fmt.Fprintf(a.stdout, "  - %s -> %s (%s)\n", p.Name, pkgPath, digests[i])
	}
	return nil
}
