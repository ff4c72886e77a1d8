// Package content talks to the remote content store: it fetches the
// published records for an application and writes per-element replacements.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// maxResponseBody caps the amount of response data read from the content
// API to prevent memory exhaustion (10 MiB).
const maxResponseBody int64 = 10 << 20

// Record is one element's persisted content.
type Record struct {
	ElementID string `json:"elementId"`
	Content   string `json:"content"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// CredentialFunc supplies the bearer credential, or ok=false when none is
// held. Writes are attempted either way; the server decides.
type CredentialFunc func() (key string, ok bool)

// Config configures a Client.
type Config struct {
	// APIURL is the content API base, e.g. https://api.streamlinedcms.example.
	APIURL string
	// AppID identifies the application whose content is addressed.
	AppID string

	// Credential supplies the bearer key per request. Nil = anonymous.
	Credential CredentialFunc

	// Timeout bounds each request. Default: 15s.
	Timeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client is the content API client.
type Client struct {
	cfg    Config
	http   *http.Client
	policy *bluemonday.Policy
	logger *slog.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		policy: bluemonday.UGCPolicy(),
		logger: cfg.Logger,
	}
}

// Sanitize strips unsafe markup from rich element content before it is
// written. Image sources pass through untouched (they are attribute values,
// not markup).
func (c *Client) Sanitize(html string) string {
	return c.policy.Sanitize(html)
}

// Fetch returns all published records for the application. Callers degrade
// to default page content on error; a missing remote store must never block
// rendering.
func (c *Client) Fetch(ctx context.Context) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.contentURL(""), nil)
	if err != nil {
		return nil, fmt.Errorf("content: create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content: fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("content: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("content: fetch status %d", resp.StatusCode)
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("content: decode records: %w", err)
	}
	return records, nil
}

// Put writes one element's content and returns the persisted record. Any
// non-2xx status or transport fault is an error for that element only;
// callers aggregate across elements.
func (c *Client) Put(ctx context.Context, elementID, content string) (Record, error) {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return Record{}, fmt.Errorf("content: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.contentURL(elementID), bytes.NewReader(payload))
	if err != nil {
		return Record{}, fmt.Errorf("content: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("content: put %s: %w", elementID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Record{}, fmt.Errorf("content: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Record{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("content: decode record: %w", err)
	}
	return rec, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.Credential == nil {
		return
	}
	if key, ok := c.cfg.Credential(); ok {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

func (c *Client) contentURL(elementID string) string {
	u := c.cfg.APIURL + "/apps/" + url.PathEscape(c.cfg.AppID) + "/content"
	if elementID != "" {
		u += "/" + url.PathEscape(elementID)
	}
	return u
}
