package devserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/StreamlinedCMS/client-sdk/content"
	"github.com/StreamlinedCMS/client-sdk/idgen"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    app_id        TEXT NOT NULL,
    email         TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    PRIMARY KEY (app_id, email)
);

CREATE TABLE IF NOT EXISTS records (
    app_id     TEXT NOT NULL,
    element_id TEXT NOT NULL,
    content    TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (app_id, element_id)
);

CREATE TABLE IF NOT EXISTS media (
    id        TEXT PRIMARY KEY,
    app_id    TEXT NOT NULL,
    name      TEXT NOT NULL,
    url       TEXT NOT NULL,
    mime_type TEXT NOT NULL
);
`

// ErrBadCredentials is returned by Authenticate for an unknown user or a
// wrong password, indistinguishably.
var ErrBadCredentials = errors.New("devserver: bad credentials")

// MediaItem is one file in an application's media library.
type MediaItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
}

// Store is the dev server's sqlite backing store.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
	now   func() time.Time
}

// OpenStore opens (and migrates) the store at path. Use ":memory:" in tests.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("devserver: open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("devserver: migrate: %w", err)
	}
	return &Store{db: db, newID: idgen.Prefixed("med_", idgen.NanoID(12)), now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// AddUser creates an author account with a bcrypt-hashed password.
func (s *Store) AddUser(ctx context.Context, appID, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("devserver: hash password: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO users (app_id, email, password_hash) VALUES (?, ?, ?)`,
		appID, email, string(hash))
	if err != nil {
		return fmt.Errorf("devserver: add user: %w", err)
	}
	return nil
}

// Authenticate checks an author's password.
func (s *Store) Authenticate(ctx context.Context, appID, email, password string) error {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE app_id = ? AND email = ?`,
		appID, email).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBadCredentials
	}
	if err != nil {
		return fmt.Errorf("devserver: authenticate: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrBadCredentials
	}
	return nil
}

// Records returns all content records for an application.
func (s *Store) Records(ctx context.Context, appID string) ([]content.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT element_id, content, updated_at FROM records WHERE app_id = ? ORDER BY element_id`,
		appID)
	if err != nil {
		return nil, fmt.Errorf("devserver: records: %w", err)
	}
	defer rows.Close()

	records := []content.Record{}
	for rows.Next() {
		var rec content.Record
		if err := rows.Scan(&rec.ElementID, &rec.Content, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("devserver: scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PutRecord stores one element's content and returns the persisted record.
func (s *Store) PutRecord(ctx context.Context, appID, elementID, body string) (content.Record, error) {
	now := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (app_id, element_id, content, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (app_id, element_id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		appID, elementID, body, now)
	if err != nil {
		return content.Record{}, fmt.Errorf("devserver: put record: %w", err)
	}
	return content.Record{ElementID: elementID, Content: body, UpdatedAt: now}, nil
}

// AddMedia registers a file in the application's media library.
func (s *Store) AddMedia(ctx context.Context, appID, name, url, mimeType string) (MediaItem, error) {
	item := MediaItem{ID: s.newID(), Name: name, URL: url, MimeType: mimeType}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO media (id, app_id, name, url, mime_type) VALUES (?, ?, ?, ?, ?)`,
		item.ID, appID, name, url, mimeType)
	if err != nil {
		return MediaItem{}, fmt.Errorf("devserver: add media: %w", err)
	}
	return item, nil
}

// Media returns the application's media library.
func (s *Store) Media(ctx context.Context, appID string) ([]MediaItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, url, mime_type FROM media WHERE app_id = ? ORDER BY name`, appID)
	if err != nil {
		return nil, fmt.Errorf("devserver: media: %w", err)
	}
	defer rows.Close()

	items := []MediaItem{}
	for rows.Next() {
		var it MediaItem
		if err := rows.Scan(&it.ID, &it.Name, &it.URL, &it.MimeType); err != nil {
			return nil, fmt.Errorf("devserver: scan media: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
