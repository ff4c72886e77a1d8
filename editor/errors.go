package editor

import "errors"

var (
	// ErrElementNotFound is returned when an operation references an id
	// absent from the registry. Logged and ignored by callers; the page
	// stays interactive.
	ErrElementNotFound = errors.New("editor: element not found")

	// ErrNotAuthor is returned when an edit is attempted outside author mode.
	ErrNotAuthor = errors.New("editor: not in author mode")

	// ErrNotEditing is returned by Reset when no element is being edited.
	ErrNotEditing = errors.New("editor: no element being edited")

	// ErrSaveInFlight is returned when a save is requested while another
	// batch is still settling.
	ErrSaveInFlight = errors.New("editor: save already in flight")
)
