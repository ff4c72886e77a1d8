package editor

// CDP bindings the injected page script calls into the SDK.
const (
	bindingPointer = "__sc_pointer"
	bindingInput   = "__sc_input"
	bindingIntent  = "__sc_intent_binding"
)

// CustomEvents dispatched on the page's document for the toolbar to render
// from. Payload shapes are fixed; the toolbar never mutates session state.
const (
	PageEventMode       = "streamlinedcms:mode"        // {mode}
	PageEventEditing    = "streamlinedcms:editing"     // {editingId}
	PageEventDirty      = "streamlinedcms:dirty"       // {dirty}
	PageEventSaveResult = "streamlinedcms:save-result" // {savedIds, errors}
	PageEventEditHTML   = "streamlinedcms:edit-html"   // {elementId, content}
)

// User-intent names arriving through the intent binding.
const (
	IntentSave      = "save"
	IntentReset     = "reset"
	IntentEditHTML  = "edit-html"
	IntentApplyHTML = "apply-html"
	IntentPickMedia = "pick-media"
	IntentSignIn    = "sign-in"
	IntentSignOut   = "sign-out"
)
