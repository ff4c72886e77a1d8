// Command streamlined-dev hosts the development application: the content
// API, the login and media popup pages, and key issuance.
//
// Usage:
//
//	streamlined-dev -addr :8787 -db dev.db -secret-file secret.key \
//	    -app app-1 -user author@example.com -password hunter2
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/StreamlinedCMS/client-sdk/devserver"
)

func main() {
	addr := flag.String("addr", ":8787", "listen address")
	dbPath := flag.String("db", "streamlined-dev.db", "sqlite database path")
	secretFile := flag.String("secret-file", "", "file holding the key-signing secret (generated if absent)")
	appID := flag.String("app", "", "application id to seed")
	user := flag.String("user", "", "author email to seed")
	password := flag.String("password", "", "author password to seed")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *addr, *dbPath, *secretFile, *appID, *user, *password); err != nil {
		logger.Error("streamlined-dev: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, addr, dbPath, secretFile, appID, user, password string) error {
	secret, err := loadSecret(secretFile)
	if err != nil {
		return err
	}

	store, err := devserver.OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if appID != "" && user != "" && password != "" {
		if err := store.AddUser(ctx, appID, user, password); err != nil {
			return err
		}
		logger.Info("streamlined-dev: seeded author", "app_id", appID, "email", user)
	}

	srv, err := devserver.New(store, devserver.Config{Secret: secret, Logger: logger})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	logger.Info("streamlined-dev: listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	}
}

// loadSecret reads the signing secret, generating and persisting a fresh one
// when the file does not exist yet. An empty path uses an ephemeral secret,
// which invalidates issued keys on restart.
func loadSecret(path string) ([]byte, error) {
	if path == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		return secret, nil
	}

	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read secret: %w", err)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	if err := os.WriteFile(path, secret, 0o600); err != nil {
		return nil, fmt.Errorf("persist secret: %w", err)
	}
	return secret, nil
}
