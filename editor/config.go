package editor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level SDK configuration.
type Config struct {
	// AppID identifies the application at the content store.
	AppID string `yaml:"app_id"`
	// APIURL is the content API base URL.
	APIURL string `yaml:"api_url"`
	// AppURL is the application host serving the login and media popups.
	AppURL string `yaml:"app_url"`
	// PageURL is the page to open (or attach to, see Browser.Remote).
	PageURL string `yaml:"page_url"`

	// Marker is the editable marker attribute. Default: data-sc-edit.
	Marker string `yaml:"marker"`
	// ToolbarSelector locates the host toolbar so pointer activity inside
	// it never ends an edit. Default: #sc-toolbar.
	ToolbarSelector string `yaml:"toolbar_selector"`

	// StorePath is the credential store database. Default: streamlinedcms.db.
	StorePath string `yaml:"store_path"`
	// CredentialTTL is the credential lifetime applied on store and refresh.
	CredentialTTL time.Duration `yaml:"credential_ttl"`

	Browser   BrowserConfig   `yaml:"browser"`
	Handshake HandshakeConfig `yaml:"handshake"`
}

// BrowserConfig controls how the SDK reaches Chrome.
type BrowserConfig struct {
	// Remote is the WebSocket URL of a running Chrome. Empty = launch one.
	Remote   string `yaml:"remote"`
	Headless bool   `yaml:"headless"`
}

// HandshakeConfig controls the popup handshakes.
type HandshakeConfig struct {
	LoginTimeout time.Duration `yaml:"login_timeout"`
	MediaTimeout time.Duration `yaml:"media_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PopupWidth   int           `yaml:"popup_width"`
	PopupHeight  int           `yaml:"popup_height"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Marker == "" {
		c.Marker = DefaultMarker
	}
	if c.ToolbarSelector == "" {
		c.ToolbarSelector = "#sc-toolbar"
	}
	if c.StorePath == "" {
		c.StorePath = "streamlinedcms.db"
	}
}

// Validate checks the required fields.
func (c *Config) Validate() error {
	if c.AppID == "" {
		return fmt.Errorf("editor: config: app_id is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("editor: config: api_url is required")
	}
	if c.AppURL == "" {
		return fmt.Errorf("editor: config: app_url is required")
	}
	return nil
}
