package credstore

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "creds.db"), "https://example.com", opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCredentialRoundtrip(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.Credential("app-1"); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v, want absent", ok, err)
	}

	if err := s.SetCredential("app-1", "secret-key"); err != nil {
		t.Fatal(err)
	}
	key, ok, err := s.Credential("app-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || key != "secret-key" {
		t.Errorf("Credential: got (%q, %v), want (secret-key, true)", key, ok)
	}
}

func TestCredentialAppIDMismatchPurged(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetCredential("app-1", "secret-key"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Credential("other-app"); err != nil || ok {
		t.Fatalf("mismatched appID: ok=%v err=%v, want absent", ok, err)
	}
	// The purge on read removes the record for the original app too.
	if _, ok, _ := s.Credential("app-1"); ok {
		t.Error("mismatched credential was not purged on read")
	}
}

func TestCredentialExpiryPurged(t *testing.T) {
	now := time.Now()
	s := openTestStore(t, WithTTL(time.Hour), WithClock(func() time.Time { return now }))

	if err := s.SetCredential("app-1", "secret-key"); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Hour)
	if _, ok, err := s.Credential("app-1"); err != nil || ok {
		t.Fatalf("expired credential: ok=%v err=%v, want absent", ok, err)
	}
}

func TestRefreshExtendsExpiry(t *testing.T) {
	now := time.Now()
	s := openTestStore(t, WithTTL(time.Hour), WithClock(func() time.Time { return now }))

	if err := s.SetCredential("app-1", "secret-key"); err != nil {
		t.Fatal(err)
	}

	now = now.Add(50 * time.Minute)
	if err := s.Refresh("app-1"); err != nil {
		t.Fatal(err)
	}

	// 50 + 40 minutes is past the original expiry but inside the refreshed one.
	now = now.Add(40 * time.Minute)
	key, ok, err := s.Credential("app-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || key != "secret-key" {
		t.Errorf("after refresh: got (%q, %v), want (secret-key, true)", key, ok)
	}
}

func TestRefreshWithoutCredentialIsNoop(t *testing.T) {
	s := openTestStore(t)
	if err := s.Refresh("app-1"); err != nil {
		t.Errorf("Refresh on empty store: %v", err)
	}
}

func TestClearCredential(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetCredential("app-1", "secret-key"); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearCredential(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Credential("app-1"); ok {
		t.Error("credential survived ClearCredential")
	}
}

func TestNewCredentialOverwritesOld(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetCredential("app-1", "old-key"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCredential("app-1", "new-key"); err != nil {
		t.Fatal(err)
	}
	key, ok, err := s.Credential("app-1")
	if err != nil || !ok {
		t.Fatalf("Credential: ok=%v err=%v", ok, err)
	}
	if key != "new-key" {
		t.Errorf("Credential: got %q, want new-key", key)
	}
}

func TestModePreference(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.ModePreference("app-1"); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v, want absent", ok, err)
	}

	if err := s.SetModePreference("app-1", "author"); err != nil {
		t.Fatal(err)
	}
	mode, ok, err := s.ModePreference("app-1")
	if err != nil || !ok || mode != "author" {
		t.Errorf("ModePreference: got (%q, %v, %v), want (author, true, nil)", mode, ok, err)
	}

	// Preference for another app is not visible, but unlike credentials it
	// is not purged.
	if _, ok, _ := s.ModePreference("other-app"); ok {
		t.Error("mode preference leaked across app ids")
	}
	if mode, ok, _ := s.ModePreference("app-1"); !ok || mode != "author" {
		t.Error("mode preference lost after mismatched read")
	}
}

func TestModeIndependentOfCredential(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetModePreference("app-1", "viewer"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCredential("app-1", "k"); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearCredential(); err != nil {
		t.Fatal(err)
	}
	if mode, ok, _ := s.ModePreference("app-1"); !ok || mode != "viewer" {
		t.Error("mode preference should survive credential clear")
	}
}
