package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/folio"
	"github.com/eringen/folio/blog"
	"github.com/eringen/folio/kv"
	"github.com/eringen/folio/logger"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe()
	case "export":
		path := ""
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		err = withStore(func(ctx context.Context, s *blog.Store) error {
			return runExport(ctx, s, path, os.Stdout)
		})
	case "import":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: folio import <file.json>")
			os.Exit(1)
		}
		err = withStore(func(ctx context.Context, s *blog.Store) error {
			n, err := runImport(ctx, s, os.Args[2])
			if err == nil {
				fmt.Printf("imported %d posts\n", n)
			}
			return err
		})
	case "version":
		fmt.Printf("folio %s\n", version)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `folio - portfolio and blog server

Usage:
  folio <command> [arguments]

Commands:
  serve            Start the web server
  export [file]    Write every post as JSON (stdout when no file is given)
  import <file>    Replace every post with the contents of a JSON export
  version          Print the folio version
  help             Show this help message

Configuration is read from the environment and from .env when present.
See KV_URL, ADMIN_PASSWORD, ADMIN_COOKIE_TOKEN and SPOTIFY_*.`)
}

func runServe() error {
	cfg, err := folio.LoadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogMode, cfg.LoggerOptions())
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := folio.New(ctx, cfg, folio.WithLogger(log))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- app.Start() }()

	select {
	case err := <-errCh:
		_ = app.Close()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
		return err
	}
	return nil
}

// withStore opens the configured backend for a one-off command.
func withStore(fn func(ctx context.Context, s *blog.Store) error) error {
	cfg, err := folio.LoadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	backend, err := kv.Open(ctx, cfg.KVURL, kv.Options{Prefix: cfg.KVPrefix})
	if err != nil {
		return fmt.Errorf("open kv: %w", err)
	}
	defer backend.Close()

	log := logger.New("debug", logger.Options{})
	return fn(ctx, blog.NewStore(backend, blog.WithKey(cfg.KVKey), blog.WithLogger(log)))
}

// snapshotter is the strict-read side of blog.Store.
type snapshotter interface {
	Snapshot(ctx context.Context) ([]blog.Post, error)
}

func runExport(ctx context.Context, s snapshotter, path string, stdout io.Writer) error {
	posts, err := s.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read posts: %w", err)
	}
	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// replacer is the bulk-write side of blog.Store.
type replacer interface {
	Replace(ctx context.Context, posts []blog.Post) error
}

func runImport(ctx context.Context, s replacer, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var posts []blog.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	if posts == nil {
		return 0, errors.New("import file must contain a JSON array of posts")
	}
	if err := blog.Validate(posts); err != nil {
		return 0, fmt.Errorf("invalid posts:\n%w", err)
	}
	if err := s.Replace(ctx, posts); err != nil {
		return 0, err
	}
	return len(posts), nil
}
