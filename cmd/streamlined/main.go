// Command streamlined runs the in-page editing session against a live page.
//
// Usage:
//
//	streamlined -config streamlined.yaml        # attach and edit
//	streamlined -scan page.html                 # audit static HTML markers
//	streamlined -export -config streamlined.yaml  # dump content as Markdown
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/StreamlinedCMS/client-sdk/content"
	"github.com/StreamlinedCMS/client-sdk/credstore"
	"github.com/StreamlinedCMS/client-sdk/editor"
	"github.com/StreamlinedCMS/client-sdk/export"
	"github.com/StreamlinedCMS/client-sdk/internal/dom"
	"github.com/StreamlinedCMS/client-sdk/staticscan"
)

func main() {
	configPath := flag.String("config", "", "path to streamlined.yaml config file")
	scanPath := flag.String("scan", "", "audit a static HTML file for editable markers and exit")
	doExport := flag.Bool("export", false, "write the application's content as Markdown to stdout and exit")
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

	if err := run(ctx, logger, *configPath, *scanPath, *doExport); err != nil {
		logger.Error("streamlined: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, scanPath string, doExport bool) error {
	if scanPath != "" {
		return runScan(scanPath, configPath)
	}

	if configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: streamlined -config <file> [-export] | -scan <file>")
		os.Exit(1)
	}

	cfg, err := editor.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if doExport {
		return runExport(ctx, logger, cfg)
	}
	return runEdit(ctx, logger, cfg)
}

func runScan(scanPath, configPath string) error {
	marker := editor.DefaultMarker
	if configPath != "" {
		cfg, err := editor.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		marker = cfg.Marker
	}

	f, err := os.Open(scanPath)
	if err != nil {
		return err
	}
	defer f.Close()

	rep, err := staticscan.Scan(f, marker)
	if err != nil {
		return err
	}

	fmt.Printf("%d marked element(s), %d distinct id(s)\n", len(rep.Elements), len(rep.IDs()))
	for id, n := range rep.Duplicates {
		fmt.Printf("duplicate id %q: %d occurrences (live scan keeps the last)\n", id, n)
	}
	if rep.Unnamed > 0 {
		fmt.Printf("%d element(s) with an empty marker value (live scan skips them)\n", rep.Unnamed)
	}
	if !rep.Clean() {
		os.Exit(2)
	}
	return nil
}

func runExport(ctx context.Context, logger *slog.Logger, cfg *editor.Config) error {
	client := content.New(content.Config{
		APIURL: cfg.APIURL,
		AppID:  cfg.AppID,
		Logger: logger,
	})
	records, err := client.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch content: %w", err)
	}
	return export.New().Write(os.Stdout, cfg.AppID, records)
}

func runEdit(ctx context.Context, logger *slog.Logger, cfg *editor.Config) error {
	if cfg.PageURL == "" {
		return fmt.Errorf("page_url is required to edit")
	}

	browser := dom.NewBrowser(dom.BrowserConfig{
		RemoteURL: cfg.Browser.Remote,
		Headless:  cfg.Browser.Headless,
		Logger:    logger,
	})
	if err := browser.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer browser.Close()

	doc, err := browser.OpenPage(ctx, cfg.PageURL)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}

	store, err := credstore.Open(cfg.StorePath, pageOrigin(cfg.PageURL),
		credstore.WithTTL(cfg.CredentialTTL),
		credstore.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer store.Close()

	client := content.New(content.Config{
		APIURL: cfg.APIURL,
		AppID:  cfg.AppID,
		Credential: func() (string, bool) {
			key, ok, err := store.Credential(cfg.AppID)
			if err != nil {
				logger.Warn("streamlined: credential read failed", "error", err)
				return "", false
			}
			return key, ok
		},
		Logger: logger,
	})

	ed := editor.New(doc, client, store, *cfg, editor.WithLogger(logger))
	if err := ed.Start(ctx); err != nil {
		return err
	}

	logger.Info("streamlined: editing session running", "page", cfg.PageURL)
	if err := ed.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// pageOrigin scopes the credential store to the edited page's origin.
func pageOrigin(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return pageURL
	}
	return u.Scheme + "://" + u.Host
}
