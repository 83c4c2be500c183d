// Package cli implements the bnd command-line interface.
package cli

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/yarmol/bnd/pkg/buildinfo"
	"github.com/yarmol/bnd/pkg/cache"
	"github.com/yarmol/bnd/pkg/repository"
)

const (
	// appName is the application name used for directories and display.
	appName = "bnd"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "bnd resolves module capability graphs",
		Long:         `bnd resolves a set of requirements against capability repositories, reporting the modules a runtime needs and why each one was pulled in.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.repoCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// openRepositories builds a repository per source, preserving order. A
// source is a local index file unless it parses as an http(s) URL.
func (c *CLI) openRepositories(sources []string, noCache bool) ([]repository.Repository, error) {
	repos := make([]repository.Repository, 0, len(sources))
	for _, src := range sources {
		if isHTTPSource(src) {
			httpCache, err := newCache(noCache)
			if err != nil {
				return nil, err
			}
			repos = append(repos, repository.NewHTTPRepository(src, src,
				repository.WithCache(httpCache)))
			continue
		}
		repo, err := repository.LoadIndexFile(src)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

func isHTTPSource(src string) bool {
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/bnd/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{formatText}
	}
	return strings.Split(s, ",")
}
