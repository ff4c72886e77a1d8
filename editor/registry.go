package editor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/StreamlinedCMS/client-sdk/internal/dom"
)

// DefaultMarker is the attribute flagging an element as editable; its value
// is the element's logical id.
const DefaultMarker = "data-sc-edit"

// Registry maps logical element ids to live nodes. Entries are updatable by
// id because node identity can change under us (image swap); nothing should
// cache an Element from the registry by reference.
type Registry struct {
	mu    sync.RWMutex
	elems map[string]dom.Element
}

// NewRegistry creates an empty Registry. Call Scan to fill it.
func NewRegistry() *Registry {
	return &Registry{elems: make(map[string]dom.Element)}
}

// Scan walks the document for elements bearing a non-empty marker value and
// replaces the mapping wholesale. Duplicate ids resolve last-write-wins in
// document order.
func (r *Registry) Scan(doc dom.Document, marker string) error {
	els, err := doc.Elements(marker)
	if err != nil {
		return fmt.Errorf("editor: scan: %w", err)
	}

	fresh := make(map[string]dom.Element, len(els))
	for _, el := range els {
		if el.ID() == "" {
			continue
		}
		fresh[el.ID()] = el
	}

	r.mu.Lock()
	r.elems = fresh
	r.mu.Unlock()
	return nil
}

// Get returns the live element for id.
func (r *Registry) Get(id string) (dom.Element, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	el, ok := r.elems[id]
	return el, ok
}

// Replace updates the entry for id to reference a fresh node. Unknown ids
// are ignored: a swap for an element the registry never held is a bug in
// the caller, not a new registration.
func (r *Registry) Replace(id string, el dom.Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.elems[id]; ok {
		r.elems[id] = el
	}
}

// IDs returns all registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.elems))
	for id := range r.elems {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered elements.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.elems)
}
