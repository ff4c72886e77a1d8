package dom

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// BrowserConfig configures the browser manager.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an already-running Chrome instance
	// (the site owner's browser with remote debugging enabled). Empty =
	// launch a local Chrome via launcher.
	RemoteURL string

	// Headless controls local launches. Remote connections ignore it.
	Headless bool

	// NavigateTimeout bounds page navigation. Default: 30s.
	NavigateTimeout time.Duration

	Logger *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser manages the Chrome connection the SDK drives pages through.
type Browser struct {
	cfg     BrowserConfig
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewBrowser creates a Browser. Call Start to connect.
func NewBrowser(cfg BrowserConfig) *Browser {
	cfg.defaults()
	return &Browser{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance).
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("dom: browser is closed")
	}

	log := b.cfg.Logger

	var wsURL string
	if b.cfg.RemoteURL != "" {
		wsURL = b.cfg.RemoteURL
		log.Info("dom: connecting to remote browser", "url", wsURL)
	} else {
		l := launcher.New().Headless(b.cfg.Headless)
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("dom: launch browser: %w", err)
		}
		wsURL = u
		b.lnch = l
		log.Info("dom: launched local chrome", "url", wsURL, "headless", b.cfg.Headless)
	}

	br := rod.New().ControlURL(wsURL)
	if err := br.Connect(); err != nil {
		return fmt.Errorf("dom: connect: %w", err)
	}
	b.browser = br
	return nil
}

// OpenPage navigates a fresh tab to pageURL and returns a Document bound to it.
func (b *Browser) OpenPage(ctx context.Context, pageURL string) (Document, error) {
	b.mu.Lock()
	br := b.browser
	b.mu.Unlock()
	if br == nil {
		return nil, fmt.Errorf("dom: browser not started")
	}

	page, err := br.Page(createTargetParams(pageURL))
	if err != nil {
		return nil, fmt.Errorf("dom: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).WaitLoad(); err != nil {
		b.cfg.Logger.Warn("dom: wait load timeout", "url", pageURL, "error", err)
	}

	return newRodDocument(b, page, b.cfg.Logger), nil
}

// FindPage locates an already-open tab whose URL starts with prefix and
// returns a Document bound to it. This is the attach path for a site owner
// editing in their own browser.
func (b *Browser) FindPage(ctx context.Context, prefix string) (Document, error) {
	b.mu.Lock()
	br := b.browser
	b.mu.Unlock()
	if br == nil {
		return nil, fmt.Errorf("dom: browser not started")
	}

	pages, err := br.Pages()
	if err != nil {
		return nil, fmt.Errorf("dom: list pages: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if strings.HasPrefix(info.URL, prefix) {
			return newRodDocument(b, p, b.cfg.Logger), nil
		}
	}
	return nil, fmt.Errorf("dom: no open page matching %q", prefix)
}

// Close shuts down the browser connection (and the local Chrome if this
// manager launched it).
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.browser != nil {
		b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return nil
}

func (b *Browser) rod() *rod.Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.browser
}
