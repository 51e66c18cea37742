package collection

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/movieflix/internal/client"
	"github.com/iliyamo/movieflix/internal/model"
)

// fakeAPI serves entries newest first.  When gate is non-nil every list
// call blocks on it (or on ctx).
type fakeAPI struct {
	mu        sync.Mutex
	entries   []model.Entry
	nextID    uint64
	calls     int
	gate      chan struct{}
	listErr   error
	mutateErr error
	entered   chan struct{}
	release   chan struct{}
}

func newFakeAPI(n int) *fakeAPI {
	f := &fakeAPI{}
	for i := 0; i < n; i++ {
		f.nextID++
		f.entries = append([]model.Entry{{ID: f.nextID, Title: "Entry"}}, f.entries...)
	}
	return f
}

func (f *fakeAPI) ListEntries(ctx context.Context, page, limit int) (*client.Page, error) {
	f.mu.Lock()
	f.calls++
	gate, listErr := f.gate, f.listErr
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if listErr != nil {
		return nil, listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	start := (page - 1) * limit
	if start > len(f.entries) {
		start = len(f.entries)
	}
	end := start + limit
	if end > len(f.entries) {
		end = len(f.entries)
	}
	return &client.Page{Data: append([]model.Entry(nil), f.entries[start:end]...), Page: page, Limit: limit}, nil
}

func (f *fakeAPI) mutation(ctx context.Context) error {
	if f.entered != nil {
		f.entered <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutateErr
}

func (f *fakeAPI) CreateEntry(ctx context.Context, in client.EntryInput) (*model.Entry, error) {
	if err := f.mutation(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e := model.Entry{ID: f.nextID, Title: in.Title}
	f.entries = append([]model.Entry{e}, f.entries...)
	return &e, nil
}

func (f *fakeAPI) UpdateEntry(ctx context.Context, id uint64, in client.EntryInput) (*model.Entry, error) {
	if err := f.mutation(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries[i].Title = in.Title
			e := f.entries[i]
			return &e, nil
		}
	}
	return nil, &client.APIError{Status: http.StatusNotFound, Message: "Entry not found"}
}

func (f *fakeAPI) DeleteEntry(ctx context.Context, id uint64) (*model.Entry, error) {
	if err := f.mutation(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].ID == id {
			e := f.entries[i]
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return &e, nil
		}
	}
	return nil, &client.APIError{Status: http.StatusNotFound, Message: "Entry not found"}
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestControllerLoadsPages(t *testing.T) {
	api := newFakeAPI(45)
	c := NewController(api)
	defer c.Close()

	c.LoadMore()
	if err := c.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if api.callCount() != 0 {
		t.Fatalf("fetched before session: %d calls", api.callCount())
	}

	c.SessionReady()
	if err := c.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	s := c.State()
	if len(s.Entries) != 20 || s.Phase != Idle || s.Entries[0].ID != 45 {
		t.Fatalf("after first page: phase %v, %d entries", s.Phase, len(s.Entries))
	}

	if err := c.LoadAll(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	s = c.State()
	if len(s.Entries) != 45 || s.Phase != Exhausted || s.Page != 3 {
		t.Fatalf("after LoadAll: phase %v page %d, %d entries", s.Phase, s.Page, len(s.Entries))
	}
	if api.callCount() != 3 {
		t.Errorf("calls = %d, want 3", api.callCount())
	}
}

func TestControllerDropsConcurrentFetches(t *testing.T) {
	api := newFakeAPI(45)
	api.gate = make(chan struct{})
	c := NewController(api)
	defer c.Close()

	c.SessionReady()
	for i := 0; i < 5; i++ {
		c.LoadMore()
	}
	close(api.gate)
	if err := c.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if api.callCount() != 1 {
		t.Errorf("calls = %d, want 1", api.callCount())
	}
	if s := c.State(); s.Page != 1 {
		t.Errorf("page = %d", s.Page)
	}
}

func TestControllerFetchFailure(t *testing.T) {
	api := newFakeAPI(5)
	api.listErr = errors.New("offline")
	c := NewController(api)
	defer c.Close()

	c.SessionReady()
	if err := c.LoadAll(waitCtx(t)); err == nil || err.Error() != "offline" {
		t.Fatalf("LoadAll = %v", err)
	}
	s := c.State()
	if s.Phase != Idle || s.Err == nil || len(s.Entries) != 0 {
		t.Errorf("state = %+v", s)
	}
}

func TestControllerMutations(t *testing.T) {
	ctx := waitCtx(t)

	t.Run("success reloads from page one", func(t *testing.T) {
		api := newFakeAPI(30)
		var mu sync.Mutex
		var seen []State
		c := NewController(api, WithOnChange(func(s State) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		}))
		defer c.Close()

		c.SessionReady()
		if err := c.LoadAll(ctx); err != nil {
			t.Fatal(err)
		}
		e, err := c.Create(ctx, client.EntryInput{Title: "Dune"})
		if err != nil || e.Title != "Dune" {
			t.Fatalf("Create = %+v, %v", e, err)
		}
		if err := c.Wait(ctx); err != nil {
			t.Fatal(err)
		}
		s := c.State()
		if s.Generation != 1 || s.Page != 1 || len(s.Entries) != 20 || s.Entries[0].Title != "Dune" || s.Submitting {
			t.Fatalf("after create: gen %d page %d, first %q", s.Generation, s.Page, s.Entries[0].Title)
		}

		mu.Lock()
		defer mu.Unlock()
		submitting := false
		for _, st := range seen {
			submitting = submitting || st.Submitting
		}
		if !submitting {
			t.Error("submitting flag never observed")
		}
	})

	t.Run("failure keeps state and reports message", func(t *testing.T) {
		api := newFakeAPI(3)
		c := NewController(api)
		defer c.Close()
		c.SessionReady()
		if err := c.Wait(ctx); err != nil {
			t.Fatal(err)
		}
		before := c.State()

		api.mu.Lock()
		api.mutateErr = errors.New("connection reset")
		api.mu.Unlock()
		cases := []struct {
			name string
			run  func() error
			want string
		}{
			{"create", func() error { _, err := c.Create(ctx, client.EntryInput{}); return err }, MsgCreateFailed},
			{"update", func() error { _, err := c.Update(ctx, 1, client.EntryInput{}); return err }, MsgUpdateFailed},
			{"delete", func() error { _, err := c.Delete(ctx, 1); return err }, MsgDeleteFailed},
		}
		for _, tc := range cases {
			err := tc.run()
			var me *MutationError
			if !errors.As(err, &me) || me.Message != tc.want {
				t.Errorf("%s: err = %v, want %q", tc.name, err, tc.want)
			}
		}

		api.mu.Lock()
		api.mutateErr = nil
		api.mu.Unlock()
		_, err := c.Update(ctx, 999, client.EntryInput{Title: "x"})
		if err == nil || err.Error() != "Entry not found" || client.StatusOf(err) != http.StatusNotFound {
			t.Errorf("update missing = %v", err)
		}

		after := c.State()
		if after.Generation != before.Generation || len(after.Entries) != len(before.Entries) || after.Submitting {
			t.Errorf("state changed: %+v", after)
		}
	})

	t.Run("one mutation at a time", func(t *testing.T) {
		api := newFakeAPI(0)
		api.entered = make(chan struct{})
		api.release = make(chan struct{})
		c := NewController(api)
		defer c.Close()

		done := make(chan error, 1)
		go func() {
			_, err := c.Delete(ctx, 1)
			done <- err
		}()
		<-api.entered
		if _, err := c.Create(ctx, client.EntryInput{}); !errors.Is(err, ErrSubmitting) {
			t.Errorf("second mutation = %v", err)
		}
		close(api.release)
		if err := <-done; client.StatusOf(err) != http.StatusNotFound {
			t.Errorf("first mutation = %v", err)
		}
	})
}

func TestControllerClose(t *testing.T) {
	api := newFakeAPI(5)
	api.gate = make(chan struct{})
	c := NewController(api)
	c.SessionReady()

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not cancel the in-flight fetch")
	}

	if s := c.State(); s.Phase != Loading || s.Err != nil {
		t.Errorf("state changed after Close: %+v", s)
	}
	c.SessionReady()
	c.LoadMore()
	if api.callCount() != 1 {
		t.Errorf("calls after Close = %d", api.callCount())
	}
	if _, err := c.Create(context.Background(), client.EntryInput{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Create after Close = %v", err)
	}
}

func TestControllerWaitTimeoutThenReuse(t *testing.T) {
	api := newFakeAPI(45)
	api.gate = make(chan struct{})
	c := NewController(api)
	defer c.Close()

	c.SessionReady()
	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Wait(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want deadline exceeded", err)
	}

	close(api.gate)
	if err := c.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		c.LoadMore()
		if err := c.Wait(waitCtx(t)); err != nil {
			t.Fatal(err)
		}
	}
	if s := c.State(); s.Phase != Exhausted || len(s.Entries) != 45 {
		t.Errorf("phase %v, %d entries", s.Phase, len(s.Entries))
	}
}
