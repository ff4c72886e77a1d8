package authflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/StreamlinedCMS/client-sdk/internal/dom/domtest"
)

const (
	testAppURL = "https://app.streamlinedcms.example"
	testOrigin = "https://app.streamlinedcms.example"
)

type recordingSink struct {
	mu    sync.Mutex
	appID string
	key   string
	err   error
}

func (s *recordingSink) SetCredential(appID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.appID, s.key = appID, key
	return nil
}

func (s *recordingSink) stored() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appID, s.key
}

func testConfig(kind Kind, store CredentialSink) Config {
	return Config{
		AppURL:       testAppURL,
		AppID:        "app-1",
		Kind:         kind,
		Store:        store,
		PollInterval: 5 * time.Millisecond,
		Timeout:      time.Minute,
	}
}

// runAsync starts the handshake and returns a channel with its outcome.
func runAsync(t *testing.T, doc *domtest.Document, cfg Config) <-chan Result {
	t.Helper()
	ch := make(chan Result, 1)
	go func() {
		res, err := Run(context.Background(), doc, cfg)
		if err != nil {
			t.Errorf("Run: %v", err)
		}
		ch <- res
	}()
	return ch
}

// invokeSoon retries the callable until the handshake has exposed it.
func invokeSoon(t *testing.T, p *domtest.Popup, name, payload, origin string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.Invoke(name, payload, origin) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("callable %s never exposed", name)
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("handshake did not settle")
		return Result{}
	}
}

func TestLoginResolvesAndPersists(t *testing.T) {
	doc := domtest.NewDocument()
	doc.Popup = domtest.NewPopup()
	sink := &recordingSink{}

	ch := runAsync(t, doc, testConfig(KindLogin, sink))
	invokeSoon(t, doc.Popup, bindingLoginComplete, `{"key":"cred-123"}`, testOrigin)

	res := waitResult(t, ch)
	if res.Cancelled || res.Key != "cred-123" {
		t.Fatalf("result: %+v, want key cred-123", res)
	}

	// Persisted before Run returned.
	appID, key := sink.stored()
	if appID != "app-1" || key != "cred-123" {
		t.Errorf("store: got (%q, %q), want (app-1, cred-123)", appID, key)
	}

	if got := doc.OpenedURL(); !strings.Contains(got, "/login?appId=app-1") {
		t.Errorf("popup URL: %q", got)
	}
}

func TestCrossOriginCallNeverDelivered(t *testing.T) {
	doc := domtest.NewDocument()
	doc.Popup = domtest.NewPopup()
	sink := &recordingSink{}

	ch := runAsync(t, doc, testConfig(KindLogin, sink))
	invokeSoon(t, doc.Popup, bindingLoginComplete, `{"key":"spoofed"}`, "https://evil.example")

	// The spoofed call must not settle the handshake; the legitimate one
	// still can.
	select {
	case res := <-ch:
		t.Fatalf("handshake settled on cross-origin call: %+v", res)
	case <-time.After(50 * time.Millisecond):
	}

	doc.Popup.Invoke(bindingLoginComplete, `{"key":"real"}`, testOrigin)
	res := waitResult(t, ch)
	if res.Key != "real" {
		t.Fatalf("result: %+v, want key real", res)
	}
	if _, key := sink.stored(); key != "real" {
		t.Errorf("store holds %q, spoofed payload must never land", key)
	}
}

func TestPopupClosedResolvesCancelled(t *testing.T) {
	doc := domtest.NewDocument()
	doc.Popup = domtest.NewPopup()

	ch := runAsync(t, doc, testConfig(KindLogin, &recordingSink{}))
	doc.Popup.UserClose()

	res := waitResult(t, ch)
	if !res.Cancelled {
		t.Fatalf("result: %+v, want Cancelled", res)
	}
}

func TestDeadlineResolvesCancelledWhilePopupOpen(t *testing.T) {
	doc := domtest.NewDocument()
	doc.Popup = domtest.NewPopup()

	cfg := testConfig(KindLogin, &recordingSink{})
	cfg.Timeout = 20 * time.Millisecond

	res := waitResult(t, runAsync(t, doc, cfg))
	if !res.Cancelled {
		t.Fatalf("result: %+v, want Cancelled at deadline", res)
	}
	if doc.Popup.Closed() != true {
		t.Error("popup not torn down after deadline")
	}
}

func TestPopupBlockedResolvesCancelled(t *testing.T) {
	doc := domtest.NewDocument()
	doc.OpenErr = errors.New("popup blocked")

	res, err := Run(context.Background(), doc, testConfig(KindLogin, &recordingSink{}))
	if err != nil {
		t.Fatalf("blocked popup must not be an error: %v", err)
	}
	if !res.Cancelled {
		t.Fatalf("result: %+v, want Cancelled", res)
	}
}

func TestFirstTerminalEventWins(t *testing.T) {
	doc := domtest.NewDocument()
	doc.Popup = domtest.NewPopup()
	sink := &recordingSink{}

	ch := runAsync(t, doc, testConfig(KindLogin, sink))
	invokeSoon(t, doc.Popup, bindingLoginComplete, `{"key":"first"}`, testOrigin)
	doc.Popup.Invoke(bindingLoginComplete, `{"key":"second"}`, testOrigin)

	res := waitResult(t, ch)
	if res.Key != "first" {
		t.Fatalf("result: %+v, want the first delivery", res)
	}
}

func TestMediaSelected(t *testing.T) {
	doc := domtest.NewDocument()
	doc.Popup = domtest.NewPopup()

	ch := runAsync(t, doc, testConfig(KindMedia, nil))
	invokeSoon(t, doc.Popup, bindingMediaSelected,
		`{"file":{"id":"f1","url":"https://cdn.example/f1.png","name":"f1.png","mimeType":"image/png"}}`,
		testOrigin)

	res := waitResult(t, ch)
	if res.Cancelled || res.File == nil || res.File.URL != "https://cdn.example/f1.png" {
		t.Fatalf("result: %+v, want selected file", res)
	}

	if got := doc.OpenedURL(); !strings.Contains(got, "/media?appId=app-1") {
		t.Errorf("popup URL: %q", got)
	}
}

func TestMediaCancelled(t *testing.T) {
	doc := domtest.NewDocument()
	doc.Popup = domtest.NewPopup()

	ch := runAsync(t, doc, testConfig(KindMedia, nil))
	invokeSoon(t, doc.Popup, bindingMediaCancelled, "", testOrigin)

	res := waitResult(t, ch)
	if !res.Cancelled {
		t.Fatalf("result: %+v, want Cancelled", res)
	}
}

func TestStoreFailureStillResolves(t *testing.T) {
	doc := domtest.NewDocument()
	doc.Popup = domtest.NewPopup()
	sink := &recordingSink{err: errors.New("disk full")}

	ch := runAsync(t, doc, testConfig(KindLogin, sink))
	invokeSoon(t, doc.Popup, bindingLoginComplete, `{"key":"cred-123"}`, testOrigin)

	res := waitResult(t, ch)
	if res.Cancelled || res.Key != "cred-123" {
		t.Fatalf("result: %+v, want resolved despite store failure", res)
	}
}
