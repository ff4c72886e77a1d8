package editor

import (
	_ "embed"
	"fmt"

	"github.com/StreamlinedCMS/client-sdk/internal/dom"
)

//go:embed page.js
var pageScript string

// installScript seeds the page globals the script reads, then injects it.
// The script is idempotent, re-injecting after a navigation is safe.
func installScript(doc dom.Document, marker, toolbarSelector string) error {
	seed := fmt.Sprintf("window.__sc_marker = %q; window.__sc_toolbar = %q;", marker, toolbarSelector)
	if err := doc.Inject(seed); err != nil {
		return fmt.Errorf("editor: seed globals: %w", err)
	}
	if err := doc.Inject(pageScript); err != nil {
		return fmt.Errorf("editor: inject page script: %w", err)
	}
	return nil
}
