// Package main runs a Moodify session: it keeps the shared feed in sync with
// other clients and serves the local JSON API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"moodify/docstore"
	"moodify/feed"
	"moodify/journal"
	"moodify/localstore"
	"moodify/pkg/moodify"
	"moodify/server"
	"moodify/storage"
)

const flushTimeout = 30 * time.Second

func main() {
	envErr := godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Warn("Failed to load .env file", "error", envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, loadConfig(os.Getenv), logger); err != nil {
		logger.Error("Moodify stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	local, err := localstore.New(cfg.dataDir, logger)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}

	backend, closeBackend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	client := docstore.New(backend, logger, docstore.Options{})
	store := storage.New(local, client, logger)
	logger.Info("Starting Moodify", "mode", cfg.mode().String(), "data_dir", cfg.dataDir, "port", cfg.port)

	j := journal.New(store, logger, nil)
	user := profile(ctx, j, cfg, logger)

	session := feed.New(&feed.Config{
		Store:   store,
		History: j,
		Logger:  logger,
		User:    user,
		Mood:    j.Mood(ctx),
	})
	srv := server.New(&server.Config{
		Feed:    session,
		Journal: j,
		Logger:  logger,
		Shared:  store.SharedConfigured(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.port) })
	runErr := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := client.Close(flushCtx); err != nil {
		logger.Warn("Failed to flush shared document", "error", err)
	}
	logger.Info("Moodify stopped")
	return runErr
}

// newBackend picks the shared document backend from cfg. A nil backend
// means local-only mode. The returned func releases backend resources.
func newBackend(ctx context.Context, cfg config, logger *slog.Logger) (docstore.Backend, func(), error) {
	switch cfg.mode() {
	case modeJSONBin:
		logger.Info("Using JSONBin shared store", "bin", cfg.jsonbinBinID, "base_url", cfg.jsonbinBaseURL)
		return docstore.NewJSONBin(cfg.jsonbinBaseURL, cfg.jsonbinBinID, cfg.jsonbinAPIKey, nil, logger), func() {}, nil
	case modeGCS:
		gcsClient, err := docstore.NewGCSClient(ctx, cfg.googleCredentials)
		if err != nil {
			return nil, nil, fmt.Errorf("create storage client: %w", err)
		}
		logger.Info("Using Cloud Storage shared store", "bucket", cfg.bucket, "object", cfg.object)
		closeFn := func() {
			if err := gcsClient.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}
		return docstore.NewGCS(gcsClient, cfg.bucket, cfg.object, logger), closeFn, nil
	default:
		return nil, func() {}, nil
	}
}

// profile returns the stored profile, seeding it from the environment on
// first run.
func profile(ctx context.Context, j *journal.Journal, cfg config, logger *slog.Logger) moodify.User {
	if u, ok := j.Profile(ctx); ok {
		return u
	}
	if cfg.userName == "" {
		logger.Info("No profile yet, set one with PUT /profile before posting")
		return moodify.User{}
	}
	u, err := j.SaveProfile(ctx, moodify.User{Name: cfg.userName, Avatar: cfg.userAvatar})
	if err != nil {
		logger.Warn("Ignoring invalid MOODIFY_USER / MOODIFY_AVATAR", "error", err)
		return moodify.User{}
	}
	return u
}
