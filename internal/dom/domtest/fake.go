// Package domtest provides in-memory fakes of the dom interfaces so the
// session, handshake and content packages are tested without a browser.
package domtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/StreamlinedCMS/client-sdk/internal/dom"
)

// Element is a fake dom.Element backed by a string.
type Element struct {
	ElemID   string
	ElemKind dom.Kind

	mu       sync.Mutex
	content  string
	editable bool

	// ContentErr, when set, is returned by Content and SetContent.
	ContentErr error
}

// NewElement creates a rich fake element.
func NewElement(id, content string) *Element {
	return &Element{ElemID: id, content: content}
}

// NewImage creates an image fake element whose content is its source URL.
func NewImage(id, src string) *Element {
	return &Element{ElemID: id, ElemKind: dom.KindImage, content: src}
}

func (e *Element) ID() string     { return e.ElemID }
func (e *Element) Kind() dom.Kind { return e.ElemKind }

func (e *Element) Content() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ContentErr != nil {
		return "", e.ContentErr
	}
	return e.content, nil
}

func (e *Element) SetContent(content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ContentErr != nil {
		return e.ContentErr
	}
	e.content = content
	return nil
}

func (e *Element) SetEditable(editable bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.editable = editable
	return nil
}

// Editable reports the current affordance state (test hook).
func (e *Element) Editable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editable
}

// Popup is a fake dom.Popup. Tests deliver callback invocations with Invoke
// and close the window with UserClose.
type Popup struct {
	mu       sync.Mutex
	bindings map[string]dom.BindingFunc
	closed   bool
}

func NewPopup() *Popup {
	return &Popup{bindings: make(map[string]dom.BindingFunc)}
}

func (p *Popup) Expose(ctx context.Context, name string, fn dom.BindingFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bindings[name] = fn
	return nil
}

func (p *Popup) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Popup) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// UserClose simulates the user closing the window.
func (p *Popup) UserClose() { p.Close() }

// Invoke calls the named exposed callable as the popup page would. It
// reports whether the callable was registered.
func (p *Popup) Invoke(name, payload, origin string) bool {
	p.mu.Lock()
	fn, ok := p.bindings[name]
	p.mu.Unlock()
	if !ok {
		return false
	}
	fn(payload, origin)
	return true
}

// Event is one Emit recorded by the fake document.
type Event struct {
	Name    string
	Payload any
}

// Document is a fake dom.Document.
type Document struct {
	PageURL string
	Elems   []*Element

	// Popup is handed out by OpenPopup; OpenErr simulates a blocked popup.
	Popup   *Popup
	OpenErr error

	mu        sync.Mutex
	events    []Event
	bindings  map[string]dom.BindingFunc
	injected  []string
	openedURL string
}

func NewDocument(elems ...*Element) *Document {
	return &Document{
		PageURL:  "https://site.example.com/page",
		Elems:    elems,
		bindings: make(map[string]dom.BindingFunc),
	}
}

func (d *Document) URL() string { return d.PageURL }

func (d *Document) Elements(marker string) ([]dom.Element, error) {
	out := make([]dom.Element, 0, len(d.Elems))
	for _, e := range d.Elems {
		out = append(out, e)
	}
	return out, nil
}

func (d *Document) ReplaceImage(marker, id, src string) (dom.Element, error) {
	for i, e := range d.Elems {
		if e.ElemID == id && e.ElemKind == dom.KindImage {
			fresh := NewImage(id, src)
			d.Elems[i] = fresh
			return fresh, nil
		}
	}
	return nil, fmt.Errorf("domtest: no image element %q", id)
}

func (d *Document) Expose(ctx context.Context, name string, fn dom.BindingFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bindings[name] = fn
	return nil
}

func (d *Document) Inject(js string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.injected = append(d.injected, js)
	return nil
}

func (d *Document) Emit(event string, payload any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, Event{Name: event, Payload: payload})
	return nil
}

func (d *Document) OpenPopup(ctx context.Context, url string, width, height int) (dom.Popup, error) {
	d.mu.Lock()
	d.openedURL = url
	d.mu.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	if d.Popup == nil {
		d.Popup = NewPopup()
	}
	return d.Popup, nil
}

// Invoke calls a document-exposed callable (toolbar intents, pointer and
// input notifications). It reports whether the callable was registered.
func (d *Document) Invoke(name, payload, origin string) bool {
	d.mu.Lock()
	fn, ok := d.bindings[name]
	d.mu.Unlock()
	if !ok {
		return false
	}
	fn(payload, origin)
	return true
}

// Injected returns a copy of the scripts passed to Inject, in order.
func (d *Document) Injected() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.injected...)
}

// Events returns a copy of the recorded Emit calls.
func (d *Document) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// OpenedURL returns the URL the last popup was opened with.
func (d *Document) OpenedURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openedURL
}

// Element returns the fake element with the given id (test hook).
func (d *Document) Element(id string) *Element {
	for _, e := range d.Elems {
		if e.ElemID == id {
			return e
		}
	}
	return nil
}
