// Package dom is the document abstraction the editing session operates on.
//
// The concrete implementation drives a live page over CDP (Rod); tests use
// in-memory fakes. Nothing above this package imports Rod directly, which
// keeps the session, registry and handshake testable without a browser.
package dom

import "context"

// Kind distinguishes how an element's content is read and written.
type Kind int

const (
	// KindRich elements carry HTML content (innerHTML).
	KindRich Kind = iota
	// KindImage elements carry a media source (src attribute). Changing the
	// source swaps the node rather than mutating it in place.
	KindImage
)

func (k Kind) String() string {
	if k == KindImage {
		return "image"
	}
	return "rich"
}

// Element is a live reference to one editable node on the page.
//
// Handles can go stale when the underlying node is replaced (image swap);
// callers that replace nodes must refresh their references through
// Document.ReplaceImage and never cache an Element elsewhere by value.
type Element interface {
	// ID is the value of the editable marker attribute.
	ID() string
	Kind() Kind
	// Content returns the element's current content: innerHTML for rich
	// elements, the src attribute for images.
	Content() (string, error)
	SetContent(content string) error
	// SetEditable toggles the edit affordance (contenteditable plus the
	// editing marker attribute the injected stylesheet keys on).
	SetEditable(editable bool) error
}

// BindingFunc receives a payload from a page-exposed callable together with
// the origin of the document that invoked it. Origin is computed at delivery
// time, not at expose time.
type BindingFunc func(payload string, origin string)

// Document is one page the SDK is attached to.
type Document interface {
	// URL returns the page's current URL.
	URL() string
	// Elements returns all elements bearing a non-empty marker attribute,
	// in document order.
	Elements(marker string) ([]Element, error)
	// ReplaceImage swaps the image node carrying marker=id for a fresh node
	// with the given src, preserving the other attributes, and returns a
	// live reference to the replacement.
	ReplaceImage(marker, id, src string) (Element, error)
	// Expose registers a callable on the page under the given name.
	Expose(ctx context.Context, name string, fn BindingFunc) error
	// Inject evaluates a complete standalone script in the page, statements
	// and IIFEs included; implementations must not assume a single
	// expression or a function body.
	Inject(js string) error
	// Emit dispatches a CustomEvent on the page's document with the payload
	// marshalled as the event detail. This is the UI collaborator channel:
	// the toolbar renders from these events and never touches session state.
	Emit(event string, payload any) error
	// OpenPopup opens a popup window of the given size centered on this
	// page's window. A refused popup returns an error.
	OpenPopup(ctx context.Context, url string, width, height int) (Popup, error)
}

// Popup is a window opened by OpenPopup. The handshake is the only consumer.
type Popup interface {
	// Expose registers a callable inside the popup. The BindingFunc's origin
	// argument is the popup document's origin when the call arrives, which
	// is the trust boundary the handshake enforces.
	Expose(ctx context.Context, name string, fn BindingFunc) error
	// Closed reports whether the popup has been closed.
	Closed() bool
	Close() error
}
