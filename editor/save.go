package editor

import (
	"context"
	"fmt"
	"sync"
)

// PutFunc writes one element's content to the remote store. The error
// message becomes the per-element entry in the save report, so transport
// implementations keep it short ("status 502", "connection refused").
type PutFunc func(ctx context.Context, id, content string) error

// SaveResult aggregates one batched save.
type SaveResult struct {
	// SavedIDs are the elements whose writes succeeded; their snapshots are
	// committed so they are no longer dirty.
	SavedIDs []string
	// Errors holds one "<id>: <statusOrMessage>" entry per failed write, in
	// initiation (sorted-id) order. Failed elements keep their snapshots
	// and stay dirty, eligible for retry on the next save.
	Errors []string
}

// Save writes every dirty element concurrently and waits for all writes to
// settle, succeed or fail. It returns ErrSaveInFlight while a previous
// batch is still running and a zero result when nothing is dirty. A fully
// successful save also ends the current edit (successful save deselects);
// a partial failure leaves editing state alone so the user can retry.
func (s *Session) Save(ctx context.Context, put PutFunc) (SaveResult, error) {
	ids, contents, err := s.beginSave()
	if err != nil {
		return SaveResult{}, err
	}
	if len(ids) == 0 {
		return SaveResult{}, nil
	}
	// The saving flag is held until every request has settled, on every
	// exit path.
	defer s.endSave()

	type outcome struct {
		id      string
		content string
		err     error
	}

	// One write per dirty element, all in flight at once. Initiation
	// follows sorted-id order; completion order is irrelevant because
	// outcomes land in their initiation slot.
	outcomes := make([]outcome, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id, content string) {
			defer wg.Done()
			outcomes[i] = outcome{id: id, content: content, err: put(ctx, id, content)}
		}(i, id, contents[i])
	}
	wg.Wait()

	var res SaveResult
	s.mu.Lock()
	for _, o := range outcomes {
		if o.err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", o.id, o.err))
			continue
		}
		s.snapshots[o.id] = o.content
		res.SavedIDs = append(res.SavedIDs, o.id)
	}
	s.mu.Unlock()

	if len(res.Errors) == 0 {
		s.StopEditing()
	}
	s.emit(Event{Type: EventDirtyChanged, Mode: ModeAuthor, Dirty: s.HasDirty()})

	return res, nil
}

// Saving reports whether a batch is in flight.
func (s *Session) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// beginSave acquires the saving flag and collects the dirty entries: the
// sorted dirty ids and each element's live content at save time. The flag
// is taken in the same critical section as the check, so a second caller
// can never slip in while the dirty set is being read; an empty batch
// releases it before returning.
func (s *Session) beginSave() (ids []string, contents []string, err error) {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return nil, nil, ErrSaveInFlight
	}
	s.saving = true
	s.mu.Unlock()

	dirty := s.DirtyIDs()
	for _, id := range dirty {
		el, ok := s.reg.Get(id)
		if !ok {
			continue
		}
		contentNow, cerr := el.Content()
		if cerr != nil {
			s.logger.Warn("editor: read for save failed", "id", id, "error", cerr)
			continue
		}
		ids = append(ids, id)
		contents = append(contents, contentNow)
	}
	if len(ids) == 0 {
		s.endSave()
		return nil, nil, nil
	}
	return ids, contents, nil
}

func (s *Session) endSave() {
	s.mu.Lock()
	s.saving = false
	s.mu.Unlock()
}
