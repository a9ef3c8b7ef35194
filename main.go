package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"modcheck/internal/checker"
	"modcheck/internal/config"
	"modcheck/internal/handlers"
	"modcheck/internal/httpx"
	"modcheck/internal/logx"
	"modcheck/internal/source"
	"modcheck/internal/store"
	"modcheck/internal/watch"
	"modcheck/internal/workshop"

	_ "modernc.org/sqlite"
)

func resolveDBPath(p string) string {
	info, err := os.Stat(p)
	if err == nil && info.IsDir() {
		return filepath.Join(p, "modcheck.db")
	}
	return p
}

func ensureFile(p string) error {
	info, err := os.Stat(p)
	if err == nil {
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", p)
		}
		return nil
	}
	if os.IsNotExist(err) {
		f, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR, 0666)
		if err != nil {
			return err
		}
		return f.Close()
	}
	return err
}

func openDB(path string) (*sql.DB, error) {
	path = resolveDBPath(path)
	if err := ensureFile(path); err != nil {
		return nil, fmt.Errorf("create db file %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, err
	}
	if err := store.Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init db: %w", err)
	}
	applied, err := store.Migrate(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	for _, name := range applied {
		log.Info().Str("migration", name).Msg("applied migration")
	}
	return db, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := logx.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open db")
	}
	defer db.Close()

	client, err := workshop.NewClient(workshop.Options{
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.RequestTimeout,
		MaxRedirects: cfg.MaxRedirects,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("workshop client")
	}
	src, err := source.New(cfg, client)
	if err != nil {
		log.Fatal().Err(err).Msg("page source")
	}
	runner := checker.New(src, checker.Options{
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		PacingDelay: cfg.PacingDelay,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher := watch.New(db, runner)
	scheduler, err := watch.Schedule(ctx, watcher, cfg.WatchInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("schedule watchlists")
	}

	r := handlers.New(db, runner, watcher, handlers.Options{
		MaxBatch:         cfg.MaxBatch,
		BatchesPerMinute: cfg.BatchesPerMinute,
		AdminToken:       cfg.AdminToken,
	})
	var shuttingDown atomic.Bool
	handler := withShutdown(r, &shuttingDown)

	// Batches stream for minutes, so there is no write timeout.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shuttingDown.Store(true)
		if scheduler != nil {
			scheduler.Stop()
		}
		time.Sleep(200 * time.Millisecond)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().
		Str("addr", cfg.Addr).
		Str("source", src.Name()).
		Str("admin", logx.Secret(cfg.AdminToken)).
		Dur("watch_interval", cfg.WatchInterval).
		Msg("starting server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func withShutdown(next http.Handler, flag *atomic.Bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if flag.Load() {
			httpx.Write(w, r, httpx.Unavailable("server shutting down"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
