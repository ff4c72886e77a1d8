package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/StreamlinedCMS/client-sdk/internal/dom"
	"github.com/StreamlinedCMS/client-sdk/internal/dom/domtest"
)

// dirtySession builds an author-mode session where every listed element has
// been edited and mutated, so the whole set is dirty.
func dirtySession(t *testing.T, elems ...*domtest.Element) *Session {
	t.Helper()
	doc := domtest.NewDocument(elems...)
	reg := NewRegistry()
	if err := reg.Scan(doc, DefaultMarker); err != nil {
		t.Fatalf("scan: %v", err)
	}
	sess := NewSession(reg)
	sess.EnterAuthorMode()
	for _, el := range elems {
		if err := sess.StartEditing(el.ElemID); err != nil {
			t.Fatalf("start %s: %v", el.ElemID, err)
		}
		if err := el.SetContent(el.ElemID + "-edited"); err != nil {
			t.Fatalf("mutate %s: %v", el.ElemID, err)
		}
	}
	return sess
}

func TestSaveNothingDirty(t *testing.T) {
	sess, _ := newTestSession(t, domtest.NewElement("a", "alpha"))

	called := false
	res, err := sess.Save(context.Background(), func(context.Context, string, string) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if called {
		t.Error("put called with nothing dirty")
	}
	if len(res.SavedIDs) != 0 || len(res.Errors) != 0 {
		t.Errorf("result: got %+v, want zero", res)
	}
}

func TestSaveFullSuccess(t *testing.T) {
	a := domtest.NewElement("a", "alpha")
	b := domtest.NewElement("b", "beta")
	sess := dirtySession(t, a, b)

	var mu sync.Mutex
	saved := map[string]string{}
	res, err := sess.Save(context.Background(), func(_ context.Context, id, content string) error {
		mu.Lock()
		saved[id] = content
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if len(res.SavedIDs) != 2 || res.SavedIDs[0] != "a" || res.SavedIDs[1] != "b" {
		t.Errorf("saved ids: got %v, want [a b]", res.SavedIDs)
	}
	if len(res.Errors) != 0 {
		t.Errorf("errors: got %v, want none", res.Errors)
	}
	if saved["a"] != "a-edited" || saved["b"] != "b-edited" {
		t.Errorf("persisted contents: got %v", saved)
	}

	// Full success commits snapshots and ends the edit.
	if sess.HasDirty() {
		t.Error("elements still dirty after full success")
	}
	if got := sess.State().EditingID; got != "" {
		t.Errorf("editing id after full success: got %q, want empty", got)
	}
	if snap, _ := sess.Snapshot("a"); snap != "a-edited" {
		t.Errorf("snapshot after save: got %q, want %q", snap, "a-edited")
	}
}

func TestSavePartialFailure(t *testing.T) {
	a := domtest.NewElement("a", "alpha")
	b := domtest.NewElement("b", "beta")
	sess := dirtySession(t, a, b)

	res, err := sess.Save(context.Background(), func(_ context.Context, id, _ string) error {
		if id == "a" {
			return fmt.Errorf("status 502")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if len(res.SavedIDs) != 1 || res.SavedIDs[0] != "b" {
		t.Errorf("saved ids: got %v, want [b]", res.SavedIDs)
	}
	if len(res.Errors) != 1 || res.Errors[0] != "a: status 502" {
		t.Errorf("errors: got %v, want [\"a: status 502\"]", res.Errors)
	}

	// The failed element keeps its snapshot and stays dirty for retry; the
	// succeeded one is clean. A partial failure does not end the edit.
	if !sess.Dirty("a") {
		t.Error("failed element no longer dirty")
	}
	if sess.Dirty("b") {
		t.Error("saved element still dirty")
	}
	if got := sess.State().EditingID; got != "b" {
		t.Errorf("editing id after partial failure: got %q, want %q", got, "b")
	}
}

func TestSaveErrorsInInitiationOrder(t *testing.T) {
	elems := []*domtest.Element{
		domtest.NewElement("c", "3"),
		domtest.NewElement("a", "1"),
		domtest.NewElement("b", "2"),
	}
	sess := dirtySession(t, elems...)

	res, err := sess.Save(context.Background(), func(_ context.Context, id, _ string) error {
		return errors.New("unreachable")
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	want := []string{"a: unreachable", "b: unreachable", "c: unreachable"}
	if len(res.Errors) != len(want) {
		t.Fatalf("errors: got %v, want %v", res.Errors, want)
	}
	for i := range want {
		if res.Errors[i] != want[i] {
			t.Fatalf("errors: got %v, want %v", res.Errors, want)
		}
	}
}

func TestSaveRequestsAreConcurrent(t *testing.T) {
	const n = 4
	elems := make([]*domtest.Element, n)
	for i := range elems {
		elems[i] = domtest.NewElement(fmt.Sprintf("e%d", i), "x")
	}
	sess := dirtySession(t, elems...)

	// Every put blocks until all n have started. Sequential writes would
	// deadlock here; a timeout fails the test instead of hanging it.
	var barrier sync.WaitGroup
	barrier.Add(n)
	done := make(chan SaveResult, 1)
	go func() {
		res, _ := sess.Save(context.Background(), func(context.Context, string, string) error {
			barrier.Done()
			barrier.Wait()
			return nil
		})
		done <- res
	}()

	select {
	case res := <-done:
		if len(res.SavedIDs) != n {
			t.Errorf("saved ids: got %d, want %d", len(res.SavedIDs), n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("save did not run the writes concurrently")
	}
}

func TestSaveRejectsOverlap(t *testing.T) {
	a := domtest.NewElement("a", "alpha")
	sess := dirtySession(t, a)

	entered := make(chan struct{})
	release := make(chan struct{})
	go sess.Save(context.Background(), func(context.Context, string, string) error {
		close(entered)
		<-release
		return nil
	})

	<-entered
	if !sess.Saving() {
		t.Error("saving flag not set while batch in flight")
	}
	if _, err := sess.Save(context.Background(), nil); !errors.Is(err, ErrSaveInFlight) {
		t.Errorf("overlapping save: got %v, want ErrSaveInFlight", err)
	}
	close(release)

	deadline := time.After(5 * time.Second)
	for sess.Saving() {
		select {
		case <-deadline:
			t.Fatal("saving flag never released")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// gatedElement blocks the first armed Content read until released, holding
// a save inside its dirty-set collection phase.
type gatedElement struct {
	dom.Element
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedElement) Content() (string, error) {
	if g.armed.Load() {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.Element.Content()
}

func TestSaveOverlapDuringCollection(t *testing.T) {
	base := domtest.NewElement("a", "alpha")
	g := &gatedElement{
		Element: base,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	reg := NewRegistry()
	reg.elems = map[string]dom.Element{"a": g}
	sess := NewSession(reg)
	sess.EnterAuthorMode()
	if err := sess.StartEditing("a"); err != nil {
		t.Fatalf("start a: %v", err)
	}
	if err := base.SetContent("alpha2"); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	g.armed.Store(true)

	var puts atomic.Int64
	put := func(context.Context, string, string) error {
		puts.Add(1)
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := sess.Save(context.Background(), put)
		done <- err
	}()

	// The first save is still reading the dirty set; a second save must be
	// refused, not run a second batch alongside it.
	<-g.entered
	if _, err := sess.Save(context.Background(), put); !errors.Is(err, ErrSaveInFlight) {
		t.Errorf("save during collection: got %v, want ErrSaveInFlight", err)
	}
	close(g.release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first save: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first save never finished")
	}
	if n := puts.Load(); n != 1 {
		t.Errorf("puts: got %d, want 1 (a single batch)", n)
	}
}

func TestSaveReleasesFlagOnFailure(t *testing.T) {
	a := domtest.NewElement("a", "alpha")
	sess := dirtySession(t, a)

	if _, err := sess.Save(context.Background(), func(context.Context, string, string) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if sess.Saving() {
		t.Error("saving flag held after a failed batch")
	}
}
