package dom

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

func createTargetParams(pageURL string) proto.TargetCreateTarget {
	return proto.TargetCreateTarget{URL: pageURL}
}

// rodDocument implements Document over a Rod page.
type rodDocument struct {
	browser *Browser
	page    *rod.Page
	logger  *slog.Logger
}

func newRodDocument(b *Browser, page *rod.Page, logger *slog.Logger) *rodDocument {
	if logger == nil {
		logger = slog.Default()
	}
	return &rodDocument{browser: b, page: page, logger: logger}
}

func (d *rodDocument) URL() string {
	info, err := d.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (d *rodDocument) Elements(marker string) ([]Element, error) {
	els, err := d.page.Elements(fmt.Sprintf("[%s]", marker))
	if err != nil {
		return nil, fmt.Errorf("dom: query %s: %w", marker, err)
	}

	out := make([]Element, 0, len(els))
	for _, el := range els {
		id, err := el.Attribute(marker)
		if err != nil || id == nil || strings.TrimSpace(*id) == "" {
			continue
		}
		tag, err := el.Eval(`() => this.tagName.toLowerCase()`)
		if err != nil {
			d.logger.Warn("dom: read tag failed", "id", *id, "error", err)
			continue
		}
		kind := KindRich
		if tag.Value.Str() == "img" {
			kind = KindImage
		}
		out = append(out, &rodElement{el: el, id: *id, kind: kind})
	}
	return out, nil
}

func (d *rodDocument) ReplaceImage(marker, id, src string) (Element, error) {
	sel := selectorFor(marker, id)
	el, err := d.page.Element(sel)
	if err != nil {
		return nil, fmt.Errorf("dom: replace image %s: %w", id, err)
	}

	// Build a fresh node carrying the old attributes and the new source, and
	// swap it in. The old handle is stale after this.
	_, err = el.Eval(`(src) => {
		const img = document.createElement('img');
		for (const a of this.attributes) img.setAttribute(a.name, a.value);
		img.setAttribute('src', src);
		this.replaceWith(img);
	}`, src)
	if err != nil {
		return nil, fmt.Errorf("dom: swap image %s: %w", id, err)
	}

	fresh, err := d.page.Element(sel)
	if err != nil {
		return nil, fmt.Errorf("dom: requery image %s: %w", id, err)
	}
	return &rodElement{el: fresh, id: id, kind: KindImage}, nil
}

func (d *rodDocument) Expose(ctx context.Context, name string, fn BindingFunc) error {
	return exposeBinding(ctx, d.page, name, d.logger, fn)
}

// Inject evaluates a whole script. Rod's Eval wraps its payload in a
// function call, which breaks multi-statement scripts and IIFEs, so this
// goes through Runtime.evaluate directly.
func (d *rodDocument) Inject(js string) error {
	res, err := proto.RuntimeEvaluate{Expression: js}.Call(d.page)
	if err != nil {
		return fmt.Errorf("dom: inject: %w", err)
	}
	if res.ExceptionDetails != nil {
		return fmt.Errorf("dom: inject: %s", res.ExceptionDetails.Text)
	}
	return nil
}

func (d *rodDocument) Emit(event string, payload any) error {
	_, err := d.page.Eval(
		`(name, detail) => document.dispatchEvent(new CustomEvent(name, { detail }))`,
		event, payload)
	if err != nil {
		return fmt.Errorf("dom: emit %s: %w", event, err)
	}
	return nil
}

// rodElement implements Element over a Rod element handle.
type rodElement struct {
	el   *rod.Element
	id   string
	kind Kind
}

func (e *rodElement) ID() string { return e.id }
func (e *rodElement) Kind() Kind { return e.kind }

func (e *rodElement) Content() (string, error) {
	if e.kind == KindImage {
		src, err := e.el.Attribute("src")
		if err != nil {
			return "", fmt.Errorf("dom: read src of %s: %w", e.id, err)
		}
		if src == nil {
			return "", nil
		}
		return *src, nil
	}
	res, err := e.el.Eval(`() => this.innerHTML`)
	if err != nil {
		return "", fmt.Errorf("dom: read content of %s: %w", e.id, err)
	}
	return res.Value.Str(), nil
}

func (e *rodElement) SetContent(content string) error {
	var err error
	if e.kind == KindImage {
		_, err = e.el.Eval(`(src) => this.setAttribute('src', src)`, content)
	} else {
		_, err = e.el.Eval(`(html) => { this.innerHTML = html }`, content)
	}
	if err != nil {
		return fmt.Errorf("dom: set content of %s: %w", e.id, err)
	}
	return nil
}

func (e *rodElement) SetEditable(editable bool) error {
	var js string
	switch {
	case editable && e.kind == KindRich:
		js = `() => {
			this.setAttribute('contenteditable', 'true');
			this.setAttribute('data-sc-editing', 'true');
			this.focus();
		}`
	case editable:
		js = `() => this.setAttribute('data-sc-editing', 'true')`
	default:
		js = `() => {
			this.removeAttribute('contenteditable');
			this.removeAttribute('data-sc-editing');
		}`
	}
	if _, err := e.el.Eval(js); err != nil {
		return fmt.Errorf("dom: set editable on %s: %w", e.id, err)
	}
	return nil
}

// exposeBinding registers a CDP binding on the page and starts a listener
// that delivers payloads together with the calling document's origin.
func exposeBinding(ctx context.Context, page *rod.Page, name string, logger *slog.Logger, fn BindingFunc) error {
	err := proto.RuntimeAddBinding{Name: name}.Call(page)
	if err != nil {
		// Re-adding an existing binding is harmless.
		logger.Debug("dom: add binding", "name", name, "error", err)
	}

	go page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != name {
			return
		}
		fn(e.Payload, pageOrigin(page))
	})()

	return nil
}

// pageOrigin returns scheme://host of the page's current document, computed
// at call time so navigations inside the window are reflected.
func pageOrigin(page *rod.Page) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	u, err := url.Parse(info.URL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func selectorFor(marker, id string) string {
	return fmt.Sprintf("[%s=%q]", marker, id)
}
