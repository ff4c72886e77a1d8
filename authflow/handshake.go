// Package authflow implements the cross-window authentication handshake: a
// popup window is opened against the application host and the SDK waits for
// the popup to call back with a credential (login) or a media selection.
//
// The handshake is a small state machine over one popup lifecycle:
//
//	Opening → AwaitingResult → Resolved | Cancelled
//
// Three watchers can terminate it — the popup's callback, a liveness poll
// that detects the window being closed, and a deadline timer. Whichever
// fires first wins; the terminal transition is guarded so it runs exactly
// once and every path tears down the poll, the timer, the bindings and the
// window.
package authflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/StreamlinedCMS/client-sdk/idgen"
	"github.com/StreamlinedCMS/client-sdk/internal/dom"
)

// Kind selects the handshake variant.
type Kind int

const (
	// KindLogin opens {appUrl}/login and resolves with a credential key.
	KindLogin Kind = iota
	// KindMedia opens {appUrl}/media and resolves with a selected file.
	KindMedia
)

// Page-exposed callables the popup invokes.
const (
	bindingLoginComplete  = "__sc_login_complete"
	bindingMediaSelected  = "__sc_media_selected"
	bindingMediaCancelled = "__sc_media_cancelled"
)

// Defaults.
const (
	DefaultLoginTimeout = 5 * time.Minute
	DefaultMediaTimeout = 10 * time.Minute
	DefaultPollInterval = time.Second
	DefaultPopupWidth   = 480
	DefaultPopupHeight  = 640
)

// MediaFile is a file chosen in the media-picker popup.
type MediaFile struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

// Result is the terminal outcome of one handshake.
type Result struct {
	// Key is the credential delivered by a login handshake.
	Key string
	// File is the selection delivered by a media handshake.
	File *MediaFile
	// Cancelled covers every non-success terminal: popup refused, popup
	// closed, explicit cancel in the picker, or deadline reached. Callers
	// treat all of these identically.
	Cancelled bool
}

// CredentialSink receives the credential before the handshake resolves.
// *credstore.Store satisfies it.
type CredentialSink interface {
	SetCredential(appID, key string) error
}

// Config configures one handshake.
type Config struct {
	// AppURL is the application host the popup navigates to. Its origin is
	// the only origin whose callback invocations are accepted.
	AppURL string
	// AppID identifies the application.
	AppID string
	Kind  Kind

	// Store receives the credential on login success, before Run returns.
	// Ignored for media handshakes.
	Store CredentialSink

	PopupWidth   int
	PopupHeight  int
	PollInterval time.Duration
	// Timeout is the handshake deadline. Defaults depend on Kind: logins
	// get 5 minutes, media selection 10 (picking a file takes longer than
	// typing a password).
	Timeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.PopupWidth <= 0 {
		c.PopupWidth = DefaultPopupWidth
	}
	if c.PopupHeight <= 0 {
		c.PopupHeight = DefaultPopupHeight
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Timeout <= 0 {
		if c.Kind == KindMedia {
			c.Timeout = DefaultMediaTimeout
		} else {
			c.Timeout = DefaultLoginTimeout
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Run executes one handshake against the given document and blocks until a
// terminal outcome. A refused popup resolves Cancelled immediately; it is
// not an error.
func Run(ctx context.Context, doc dom.Document, cfg Config) (Result, error) {
	cfg.defaults()
	// Tag every log line of this run; concurrent handshakes stay tellable
	// apart in the output.
	cfg.Logger = cfg.Logger.With("handshake_id", idgen.New())
	log := cfg.Logger

	target, origin, err := cfg.targetURL()
	if err != nil {
		return Result{Cancelled: true}, err
	}

	// Opening.
	popup, err := doc.OpenPopup(ctx, target, cfg.PopupWidth, cfg.PopupHeight)
	if err != nil {
		log.Warn("authflow: popup blocked", "url", target, "error", err)
		return Result{Cancelled: true}, nil
	}

	h := &handshake{
		cfg:     cfg,
		origin:  origin,
		settled: make(chan Result, 1),
	}

	// hctx bounds the binding listeners and the watchers; cancelling it is
	// part of the idempotent teardown.
	hctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer popup.Close()

	// AwaitingResult: expose the result callables inside the popup.
	if err := h.expose(hctx, popup); err != nil {
		log.Warn("authflow: expose callables failed", "error", err)
		return Result{Cancelled: true}, nil
	}

	// Termination watches: liveness poll and deadline.
	go h.watch(hctx, popup)

	select {
	case res := <-h.settled:
		return res, nil
	case <-ctx.Done():
		h.settle(Result{Cancelled: true})
		return Result{Cancelled: true}, ctx.Err()
	}
}

// handshake holds the state for one run. settleOnce is the gate that makes
// the terminal transition execute at most once no matter which watcher fires.
type handshake struct {
	cfg        Config
	origin     string
	settleOnce sync.Once
	settled    chan Result
}

func (h *handshake) settle(res Result) {
	h.settleOnce.Do(func() {
		h.settled <- res
	})
}

// accept wraps a payload handler with the origin check. Calls from any
// origin other than the popup target's are dropped without being surfaced:
// they indicate spoofing, not user error.
func (h *handshake) accept(name string, fn func(payload string)) dom.BindingFunc {
	return func(payload, origin string) {
		if origin != h.origin {
			h.cfg.Logger.Warn("authflow: dropped cross-origin call",
				"callable", name, "origin", origin, "expected", h.origin)
			return
		}
		fn(payload)
	}
}

func (h *handshake) expose(ctx context.Context, popup dom.Popup) error {
	log := h.cfg.Logger

	if h.cfg.Kind == KindMedia {
		err := popup.Expose(ctx, bindingMediaSelected, h.accept(bindingMediaSelected, func(payload string) {
			var body struct {
				File *MediaFile `json:"file"`
			}
			if err := json.Unmarshal([]byte(payload), &body); err != nil || body.File == nil {
				log.Warn("authflow: malformed media payload", "error", err)
				return
			}
			h.settle(Result{File: body.File})
		}))
		if err != nil {
			return err
		}
		return popup.Expose(ctx, bindingMediaCancelled, h.accept(bindingMediaCancelled, func(string) {
			h.settle(Result{Cancelled: true})
		}))
	}

	return popup.Expose(ctx, bindingLoginComplete, h.accept(bindingLoginComplete, func(payload string) {
		var body struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal([]byte(payload), &body); err != nil || body.Key == "" {
			log.Warn("authflow: malformed login payload", "error", err)
			return
		}
		// Persist before settling so the store is populated by the time the
		// caller observes the result. A store failure is logged, not fatal:
		// the user did log in.
		if h.cfg.Store != nil {
			if err := h.cfg.Store.SetCredential(h.cfg.AppID, body.Key); err != nil {
				log.Error("authflow: persist credential failed", "error", err)
			}
		}
		h.settle(Result{Key: body.Key})
	}))
}

// watch runs the liveness poll and the deadline timer until the handshake
// settles. Both resolve Cancelled; the poll wins when the user closes the
// window, the timer wins when they walk away.
func (h *handshake) watch(ctx context.Context, popup dom.Popup) {
	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(h.cfg.Timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if popup.Closed() {
				h.cfg.Logger.Info("authflow: popup closed by user")
				h.settle(Result{Cancelled: true})
				return
			}
		case <-deadline.C:
			h.cfg.Logger.Info("authflow: deadline reached", "timeout", h.cfg.Timeout)
			h.settle(Result{Cancelled: true})
			return
		}
	}
}

// targetURL builds the popup URL and the origin calls must come from.
func (c *Config) targetURL() (target, origin string, err error) {
	base, err := url.Parse(c.AppURL)
	if err != nil {
		return "", "", fmt.Errorf("authflow: parse app url: %w", err)
	}

	path := "/login"
	if c.Kind == KindMedia {
		path = "/media"
	}
	u := *base
	u.Path = strings.TrimSuffix(base.Path, "/") + path
	u.RawQuery = url.Values{"appId": {c.AppID}}.Encode()

	return u.String(), base.Scheme + "://" + base.Host, nil
}
