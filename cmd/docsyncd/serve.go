package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/local"
	"github.com/fishy/docsync/remote"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	config  string
	listen  string
	verbose bool
}

func newServeCommand() *cobra.Command {
	opts := new(serveOptions)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve collections over http",
		Long: `Serve in-memory collections over http.

Each collection listed in the config file is served at /{name}, seeded from
its optional JSON seed file. Everything is lost on exit.

Example:
  docsyncd serve --config docsyncd.yaml
  docsyncd serve --config docsyncd.yaml --listen localhost:9000 -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.config, "config", "c", "docsyncd.yaml", "path to the config file")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "listen address, overrides the config file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	return cmd
}

func serve(cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := LoadConfig(opts.config)
	if err != nil {
		return err
	}
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}
	level, _ := cfg.level()
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := openDB(ctx, cfg, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newMux(db, cfg.handlerOptions(logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		logger.Info(
			"serving",
			"listen", cfg.Listen,
			"collections", db.CollectionNames(),
		)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// openDB creates and seeds the configured collections.
func openDB(ctx context.Context, cfg *Config, logger *slog.Logger) (*docsync.Database, error) {
	db := local.NewDB(cfg.localOptions(logger))
	for _, c := range cfg.Collections {
		col, err := db.AddCollection(c.Name)
		if err != nil {
			return nil, err
		}
		if c.Seed == "" {
			continue
		}
		docs, err := readSeed(c.Seed)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", c.Name, err)
		}
		if err := col.(docsync.Local).Seed(ctx, docs); err != nil {
			return nil, fmt.Errorf("collection %q: %w", c.Name, err)
		}
		logger.Debug("seeded", "collection", c.Name, "docs", len(docs))
	}
	return db, nil
}

// readSeed reads a JSON array of documents.
func readSeed(path string) ([]docsync.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var docs []docsync.Document
	if err := gojson.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	for i, doc := range docs {
		if doc.ID() == "" {
			return nil, fmt.Errorf("seed file %s: document #%d has no %s", path, i, docsync.IDField)
		}
	}
	return docs, nil
}

// newMux serves every collection of db at /{name}.
func newMux(db *docsync.Database, opts remote.HandlerOptions) *http.ServeMux {
	mux := http.NewServeMux()
	for _, name := range db.CollectionNames() {
		col, _ := db.Collection(name)
		prefix := "/" + name
		handler := http.StripPrefix(prefix, remote.NewHandler(col, opts))
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
	}
	return mux
}
