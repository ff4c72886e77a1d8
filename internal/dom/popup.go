package dom

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// OpenPopup opens a new browser window of the given size, centered relative
// to this page's window, and navigates it to url. Window creation failures
// surface as errors; the caller treats them as a refused popup. Positioning
// failures do not: the window is usable wherever it landed.
func (d *rodDocument) OpenPopup(ctx context.Context, popURL string, width, height int) (Popup, error) {
	res, err := proto.TargetCreateTarget{
		URL:       popURL,
		Width:     &width,
		Height:    &height,
		NewWindow: true,
	}.Call(d.browser.rod())
	if err != nil {
		return nil, fmt.Errorf("dom: open popup: %w", err)
	}

	page, err := d.browser.rod().PageFromTarget(res.TargetID)
	if err != nil {
		return nil, fmt.Errorf("dom: attach popup: %w", err)
	}

	// Target.createTarget carries no window coordinates; centering goes
	// through the Browser domain's window bounds.
	left, top := d.centerFor(width, height)
	if err := d.moveWindow(res.TargetID, left, top, width, height); err != nil {
		d.logger.Debug("dom: position popup", "error", err)
	}

	return &rodPopup{page: page, logger: d.logger}, nil
}

func (d *rodDocument) moveWindow(targetID proto.TargetTargetID, left, top, width, height int) error {
	win, err := proto.BrowserGetWindowForTarget{TargetID: targetID}.Call(d.browser.rod())
	if err != nil {
		return err
	}
	return proto.BrowserSetWindowBounds{
		WindowID: win.WindowID,
		Bounds: &proto.BrowserBounds{
			Left:   &left,
			Top:    &top,
			Width:  &width,
			Height: &height,
		},
	}.Call(d.browser.rod())
}

// centerFor computes popup screen coordinates centered on the parent window.
// Falls back to (0,0) when the parent geometry cannot be read.
func (d *rodDocument) centerFor(width, height int) (left, top int) {
	res, err := d.page.Eval(`() => ({
		x: window.screenX, y: window.screenY,
		w: window.outerWidth, h: window.outerHeight,
	})`)
	if err != nil {
		d.logger.Debug("dom: parent geometry unavailable", "error", err)
		return 0, 0
	}
	x := res.Value.Get("x").Int()
	y := res.Value.Get("y").Int()
	w := res.Value.Get("w").Int()
	h := res.Value.Get("h").Int()

	left = x + (w-width)/2
	top = y + (h-height)/2
	if left < 0 {
		left = 0
	}
	if top < 0 {
		top = 0
	}
	return left, top
}

type rodPopup struct {
	page   *rod.Page
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func (p *rodPopup) Expose(ctx context.Context, name string, fn BindingFunc) error {
	return exposeBinding(ctx, p.page, name, p.logger, fn)
}

func (p *rodPopup) Closed() bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return true
	}
	p.mu.Unlock()

	// Target gone = user closed the window.
	if _, err := p.page.Info(); err != nil {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		return true
	}
	return false
}

func (p *rodPopup) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.page.Close()
}
