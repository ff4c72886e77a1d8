package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/StreamlinedCMS/client-sdk/authflow"
	"github.com/StreamlinedCMS/client-sdk/content"
	"github.com/StreamlinedCMS/client-sdk/internal/dom"
)

// ContentClient is the remote content store surface the editor drives.
// *content.Client satisfies it.
type ContentClient interface {
	Fetch(ctx context.Context) ([]content.Record, error)
	Put(ctx context.Context, elementID, content string) (content.Record, error)
	Sanitize(html string) string
}

// CredentialStore is the persistence surface the editor drives.
// *credstore.Store satisfies it.
type CredentialStore interface {
	Credential(appID string) (key string, ok bool, err error)
	SetCredential(appID, key string) error
	Refresh(appID string) error
	ClearCredential() error
	ModePreference(appID string) (mode string, ok bool, err error)
	SetModePreference(appID, mode string) error
}

// inputKind routes one page callback through the single processing loop.
type inputKind int

const (
	inputPointer inputKind = iota
	inputEdited
	inputIntent
)

type pageInput struct {
	kind    inputKind
	payload string
}

// Editor wires one page to the editing session: it scans the document,
// applies the published content, installs the page script and bindings,
// and runs the intent loop. All page callbacks funnel through one channel
// and are processed one at a time, so every transition completes and its
// events are emitted before the next input is looked at.
type Editor struct {
	cfg    Config
	doc    dom.Document
	client ContentClient
	store  CredentialStore
	logger *slog.Logger

	reg  *Registry
	sess *Session

	// handshake is swappable in tests.
	handshake func(ctx context.Context, doc dom.Document, cfg authflow.Config) (authflow.Result, error)

	inputs chan pageInput
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// New creates an Editor over an attached document. Call Start before Run.
func New(doc dom.Document, client ContentClient, store CredentialStore, cfg Config, opts ...Option) *Editor {
	cfg.ApplyDefaults()
	e := &Editor{
		cfg:       cfg,
		doc:       doc,
		client:    client,
		store:     store,
		logger:    slog.Default(),
		reg:       NewRegistry(),
		handshake: authflow.Run,
		inputs:    make(chan pageInput, 64),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Session exposes the underlying session, mainly for tests and the CLI.
func (e *Editor) Session() *Session { return e.sess }

// Start prepares the page: scans for editable elements, applies the
// published content, installs the script and bindings, and restores the
// session mode from the credential store. A content fetch failure degrades
// to the page's default content with a warning; it never blocks startup.
func (e *Editor) Start(ctx context.Context) error {
	if err := e.reg.Scan(e.doc, e.cfg.Marker); err != nil {
		return fmt.Errorf("editor: start: %w", err)
	}
	e.logger.Info("editor: scanned page", "url", e.doc.URL(), "elements", e.reg.Len())

	if records, err := e.client.Fetch(ctx); err != nil {
		e.logger.Warn("editor: content fetch failed, using page defaults", "error", err)
	} else {
		content.Populate(e.doc, e.cfg.Marker, e.reg, records, e.logger)
	}

	e.sess = NewSession(e.reg,
		WithNotify(e.onSessionEvent),
		WithSessionLogger(e.logger),
	)

	if err := installScript(e.doc, e.cfg.Marker, e.cfg.ToolbarSelector); err != nil {
		return err
	}
	if err := e.exposeBindings(ctx); err != nil {
		return err
	}

	if e.initialMode() == ModeAuthor {
		e.sess.EnterAuthorMode()
	} else {
		// NewSession starts in viewer mode; emit it so the toolbar renders.
		e.emitMode(ModeViewer)
	}
	return nil
}

// Run processes page inputs until ctx is cancelled.
func (e *Editor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-e.inputs:
			e.dispatch(ctx, in)
		}
	}
}

// initialMode decides the starting mode: author when a valid credential is
// held and the stored preference does not say otherwise, viewer in every
// other case.
func (e *Editor) initialMode() Mode {
	_, ok, err := e.store.Credential(e.cfg.AppID)
	if err != nil {
		e.logger.Warn("editor: credential lookup failed", "error", err)
		return ModeViewer
	}
	if !ok {
		return ModeViewer
	}
	pref, has, err := e.store.ModePreference(e.cfg.AppID)
	if err != nil {
		e.logger.Warn("editor: mode preference lookup failed", "error", err)
	}
	if has && Mode(pref) == ModeViewer {
		return ModeViewer
	}
	return ModeAuthor
}

func (e *Editor) exposeBindings(ctx context.Context) error {
	bind := func(name string, kind inputKind) error {
		return e.doc.Expose(ctx, name, func(payload, _ string) {
			select {
			case e.inputs <- pageInput{kind: kind, payload: payload}:
			default:
				e.logger.Warn("editor: input dropped, queue full", "binding", name)
			}
		})
	}
	if err := bind(bindingPointer, inputPointer); err != nil {
		return fmt.Errorf("editor: expose %s: %w", bindingPointer, err)
	}
	if err := bind(bindingInput, inputEdited); err != nil {
		return fmt.Errorf("editor: expose %s: %w", bindingInput, err)
	}
	if err := bind(bindingIntent, inputIntent); err != nil {
		return fmt.Errorf("editor: expose %s: %w", bindingIntent, err)
	}
	return nil
}

func (e *Editor) dispatch(ctx context.Context, in pageInput) {
	switch in.kind {
	case inputPointer:
		e.onPointer(in.payload)
	case inputEdited:
		e.onInput(in.payload)
	case inputIntent:
		e.onIntent(ctx, in.payload)
	}
}

// onPointer implements the click rules: pointer activity inside the toolbar
// never changes edit state, a click on an editable element starts editing
// it, and a click anywhere else ends the current edit.
func (e *Editor) onPointer(payload string) {
	var body struct {
		ElementID string `json:"elementId"`
		InToolbar bool   `json:"inToolbar"`
	}
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		e.logger.Warn("editor: malformed pointer payload", "error", err)
		return
	}
	if body.InToolbar {
		return
	}
	if e.sess.State().Mode != ModeAuthor {
		return
	}

	if body.ElementID == "" {
		e.sess.StopEditing()
		return
	}
	if err := e.sess.StartEditing(body.ElementID); err != nil {
		e.logger.Warn("editor: start editing", "id", body.ElementID, "error", err)
	}
}

// onInput re-derives dirtiness after the user typed into an element.
func (e *Editor) onInput(payload string) {
	var body struct {
		ElementID string `json:"elementId"`
	}
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		e.logger.Warn("editor: malformed input payload", "error", err)
		return
	}
	e.emitDirty()
}

func (e *Editor) onIntent(ctx context.Context, payload string) {
	var body struct {
		Name    string          `json:"name"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		e.logger.Warn("editor: malformed intent payload", "error", err)
		return
	}

	switch body.Name {
	case IntentSave:
		e.handleSave(ctx)
	case IntentReset:
		if err := e.sess.Reset(); err != nil {
			e.logger.Warn("editor: reset", "error", err)
		}
	case IntentEditHTML:
		e.handleEditHTML()
	case IntentApplyHTML:
		e.handleApplyHTML(body.Payload)
	case IntentPickMedia:
		e.handlePickMedia(ctx)
	case IntentSignIn:
		e.handleSignIn(ctx)
	case IntentSignOut:
		e.handleSignOut()
	default:
		e.logger.Warn("editor: unknown intent", "name", body.Name)
	}
}

// handleSave runs the batched save. Rich content is sanitized at the write
// boundary; image sources pass through. The credential's expiry is renewed
// after any batch that actually ran, success or failure, because either
// proves the author is active.
func (e *Editor) handleSave(ctx context.Context) {
	put := func(ctx context.Context, id, body string) error {
		if el, ok := e.reg.Get(id); ok && el.Kind() == dom.KindRich {
			body = e.client.Sanitize(body)
		}
		_, err := e.client.Put(ctx, id, body)
		return err
	}

	res, err := e.sess.Save(ctx, put)
	if err != nil {
		if errors.Is(err, ErrSaveInFlight) {
			e.logger.Warn("editor: save already in flight")
			return
		}
		e.logger.Warn("editor: save", "error", err)
		return
	}
	if len(res.SavedIDs) == 0 && len(res.Errors) == 0 {
		return
	}

	if err := e.store.Refresh(e.cfg.AppID); err != nil {
		e.logger.Warn("editor: credential refresh failed", "error", err)
	}

	e.emitSaveResult(res)
}

// handleEditHTML hands the edited element's current markup to the toolbar's
// raw-HTML dialog.
func (e *Editor) handleEditHTML() {
	id := e.sess.State().EditingID
	if id == "" {
		return
	}
	el, ok := e.reg.Get(id)
	if !ok {
		return
	}
	body, err := el.Content()
	if err != nil {
		e.logger.Warn("editor: read content failed", "id", id, "error", err)
		return
	}
	e.emitEvent(PageEventEditHTML, map[string]string{"elementId": id, "content": body})
}

// handleApplyHTML writes dialog-edited markup back into the edited element.
func (e *Editor) handleApplyHTML(raw json.RawMessage) {
	var body struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		e.logger.Warn("editor: malformed apply-html payload", "error", err)
		return
	}

	id := e.sess.State().EditingID
	if id == "" {
		return
	}
	el, ok := e.reg.Get(id)
	if !ok {
		return
	}
	if err := el.SetContent(body.Content); err != nil {
		e.logger.Warn("editor: apply html failed", "id", id, "error", err)
		return
	}
	e.emitDirty()
}

// handlePickMedia runs the media handshake for the edited image element and
// swaps its source on selection. The swap changes node identity, so the
// registry entry is updated to the replacement.
func (e *Editor) handlePickMedia(ctx context.Context) {
	id := e.sess.State().EditingID
	if id == "" {
		return
	}
	el, ok := e.reg.Get(id)
	if !ok || el.Kind() != dom.KindImage {
		e.logger.Warn("editor: pick-media outside image edit", "id", id)
		return
	}

	res, err := e.handshake(ctx, e.doc, authflow.Config{
		AppURL:       e.cfg.AppURL,
		AppID:        e.cfg.AppID,
		Kind:         authflow.KindMedia,
		PopupWidth:   e.cfg.Handshake.PopupWidth,
		PopupHeight:  e.cfg.Handshake.PopupHeight,
		PollInterval: e.cfg.Handshake.PollInterval,
		Timeout:      e.cfg.Handshake.MediaTimeout,
		Logger:       e.logger,
	})
	if err != nil {
		e.logger.Warn("editor: media handshake", "error", err)
		return
	}
	if res.Cancelled || res.File == nil {
		return
	}

	fresh, err := e.doc.ReplaceImage(e.cfg.Marker, id, res.File.URL)
	if err != nil {
		e.logger.Warn("editor: image swap failed", "id", id, "error", err)
		return
	}
	e.reg.Replace(id, fresh)
	e.emitDirty()
}

// handleSignIn runs the login handshake. The credential is persisted by the
// handshake itself before it resolves; success records the author's mode
// preference and activates author mode.
func (e *Editor) handleSignIn(ctx context.Context) {
	res, err := e.handshake(ctx, e.doc, authflow.Config{
		AppURL:       e.cfg.AppURL,
		AppID:        e.cfg.AppID,
		Kind:         authflow.KindLogin,
		Store:        e.store,
		PopupWidth:   e.cfg.Handshake.PopupWidth,
		PopupHeight:  e.cfg.Handshake.PopupHeight,
		PollInterval: e.cfg.Handshake.PollInterval,
		Timeout:      e.cfg.Handshake.LoginTimeout,
		Logger:       e.logger,
	})
	if err != nil {
		e.logger.Warn("editor: login handshake", "error", err)
		return
	}
	if res.Cancelled || res.Key == "" {
		return
	}

	if err := e.store.SetModePreference(e.cfg.AppID, string(ModeAuthor)); err != nil {
		e.logger.Warn("editor: store mode preference failed", "error", err)
	}
	e.sess.EnterAuthorMode()
}

// handleSignOut drops the credential and returns to viewer mode.
func (e *Editor) handleSignOut() {
	if err := e.store.ClearCredential(); err != nil {
		e.logger.Warn("editor: clear credential failed", "error", err)
	}
	if err := e.store.SetModePreference(e.cfg.AppID, string(ModeViewer)); err != nil {
		e.logger.Warn("editor: store mode preference failed", "error", err)
	}
	e.sess.EnterViewerMode()
}

// onSessionEvent mirrors session transitions onto the page as CustomEvents
// for the toolbar.
func (e *Editor) onSessionEvent(ev Event) {
	switch ev.Type {
	case EventModeChanged:
		e.emitMode(ev.Mode)
	case EventEditingChanged:
		e.emitEvent(PageEventEditing, map[string]string{"editingId": ev.EditingID})
	case EventDirtyChanged:
		e.emitEvent(PageEventDirty, map[string]bool{"dirty": ev.Dirty})
	}
}

func (e *Editor) emitMode(mode Mode) {
	e.emitEvent(PageEventMode, map[string]string{"mode": string(mode)})
}

func (e *Editor) emitDirty() {
	e.emitEvent(PageEventDirty, map[string]bool{"dirty": e.sess.HasDirty()})
}

func (e *Editor) emitSaveResult(res SaveResult) {
	saved := res.SavedIDs
	if saved == nil {
		saved = []string{}
	}
	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}
	e.emitEvent(PageEventSaveResult, map[string]any{"savedIds": saved, "errors": errs})
}

func (e *Editor) emitEvent(event string, payload any) {
	if err := e.doc.Emit(event, payload); err != nil {
		e.logger.Warn("editor: emit event failed", "event", event, "error", err)
	}
}
