// Package credstore persists the editing credential and the editor-mode
// preference, scoped by site origin the way browser storage would be.
//
// Both records live in one SQLite key-value table under fixed storage names.
// Expiry and application-id checks happen on every read: a stale or
// mismatched credential is purged and reported as absent, so callers never
// observe an invalid credential.
package credstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Fixed storage names, one record per (origin, name).
const (
	nameCredential = "streamlinedcms.credential"
	nameMode       = "streamlinedcms.mode"
)

// DefaultTTL is how long a credential stays valid after being stored or
// refreshed.
const DefaultTTL = 14 * 24 * time.Hour

// credentialRecord is the persisted credential shape.
type credentialRecord struct {
	Key       string `json:"key"`
	AppID     string `json:"appId"`
	ExpiresAt int64  `json:"expiresAtEpochMs"`
}

// modeRecord is the persisted editor-mode preference.
type modeRecord struct {
	AppID string `json:"appId"`
	Mode  string `json:"mode"` // "author" | "viewer"
}

// Store is the credential and preference store for one origin.
type Store struct {
	db     *sql.DB
	origin string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the credential lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens (creating if needed) the store database at path, scoped to the
// given site origin.
func Open(path, origin string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("credstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("credstore: apply schema: %w", err)
	}
	s := &Store{
		db:     db,
		origin: origin,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Credential returns the stored key for appID, or ok=false when no valid
// credential exists. Expired or appID-mismatched records are purged.
func (s *Store) Credential(appID string) (key string, ok bool, err error) {
	raw, found, err := s.read(nameCredential)
	if err != nil || !found {
		return "", false, err
	}

	var rec credentialRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn("credstore: malformed credential record, purging", "error", err)
		return "", false, s.delete(nameCredential)
	}

	if rec.AppID != appID || rec.ExpiresAt <= s.now().UnixMilli() {
		s.logger.Debug("credstore: stale credential purged",
			"app_id", rec.AppID, "expires_at", rec.ExpiresAt)
		return "", false, s.delete(nameCredential)
	}
	return rec.Key, true, nil
}

// SetCredential stores a fresh credential for appID, replacing any previous
// record regardless of its appID.
func (s *Store) SetCredential(appID, key string) error {
	rec := credentialRecord{
		Key:       key,
		AppID:     appID,
		ExpiresAt: s.now().Add(s.ttl).UnixMilli(),
	}
	return s.write(nameCredential, rec)
}

// Refresh extends the expiry of the current credential for appID. A missing
// or invalid credential is a no-op: an active save by a signed-out user has
// nothing to refresh.
func (s *Store) Refresh(appID string) error {
	key, ok, err := s.Credential(appID)
	if err != nil || !ok {
		return err
	}
	return s.SetCredential(appID, key)
}

// ClearCredential removes the stored credential (sign-out).
func (s *Store) ClearCredential() error {
	return s.delete(nameCredential)
}

// ModePreference returns the stored editor mode for appID, or ok=false.
func (s *Store) ModePreference(appID string) (mode string, ok bool, err error) {
	raw, found, err := s.read(nameMode)
	if err != nil || !found {
		return "", false, err
	}
	var rec modeRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn("credstore: malformed mode record, purging", "error", err)
		return "", false, s.delete(nameMode)
	}
	if rec.AppID != appID {
		return "", false, nil
	}
	return rec.Mode, true, nil
}

// SetModePreference stores the editor-mode preference for appID.
func (s *Store) SetModePreference(appID, mode string) error {
	return s.write(nameMode, modeRecord{AppID: appID, Mode: mode})
}

func (s *Store) read(name string) (value string, found bool, err error) {
	err = s.db.QueryRow(
		`SELECT value FROM kv_records WHERE origin = ? AND name = ?`,
		s.origin, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("credstore: read %s: %w", name, err)
	}
	return value, true, nil
}

func (s *Store) write(name string, rec any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("credstore: marshal %s: %w", name, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO kv_records (origin, name, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(origin, name) DO UPDATE SET
			value = excluded.value, updated_at = excluded.updated_at`,
		s.origin, name, string(data), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("credstore: write %s: %w", name, err)
	}
	return nil
}

func (s *Store) delete(name string) error {
	_, err := s.db.Exec(
		`DELETE FROM kv_records WHERE origin = ? AND name = ?`, s.origin, name)
	if err != nil {
		return fmt.Errorf("credstore: delete %s: %w", name, err)
	}
	return nil
}
