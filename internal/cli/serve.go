package cli

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/yarmol/bnd/pkg/repository"
)

// serveCommand creates the index server command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve index files over HTTP",
		Long: `Serve index files over HTTP.

Every *.json file in dir is validated as an index and exposed under its
file name, so a served directory can back http(s) repository sources in
runfiles. Content referenced by relative locations in an index is served
from the same directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, args[0])
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8383", "listen address")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr, dir string) error {
	logger := loggerFromContext(ctx)

	indexes, err := indexFiles(dir)
	if err != nil {
		return err
	}
	for _, name := range indexes {
		if _, err := repository.LoadIndexFile(filepath.Join(dir, name)); err != nil {
			return err
		}
		logger.Info("serving index", "name", name)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           serveRouter(dir),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("listening", "addr", addr, "indexes", len(indexes))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// serveRouter builds the HTTP handler serving dir's files.
func serveRouter(dir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFileFS(w, req, os.DirFS(dir), chi.URLParam(req, "*"))
	})
	return r
}

// indexFiles lists the *.json files directly under dir.
func indexFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
