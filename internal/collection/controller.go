package collection

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/iliyamo/movieflix/internal/client"
	"github.com/iliyamo/movieflix/internal/model"
)

// Fallback messages for failed mutations whose response carried none.
const (
	MsgCreateFailed = "Failed to add entry"
	MsgUpdateFailed = "Failed to update entry"
	MsgDeleteFailed = "Failed to delete entry"
)

var (
	// ErrClosed is returned by mutations after Close.
	ErrClosed = errors.New("collection: controller closed")
	// ErrSubmitting is returned when a mutation is started while another
	// one is still in flight.
	ErrSubmitting = errors.New("collection: a change is already being saved")
)

// EntryAPI is the part of the API the controller needs.  *client.Client
// implements it.
type EntryAPI interface {
	ListEntries(ctx context.Context, page, limit int) (*client.Page, error)
	CreateEntry(ctx context.Context, in client.EntryInput) (*model.Entry, error)
	UpdateEntry(ctx context.Context, id uint64, in client.EntryInput) (*model.Entry, error)
	DeleteEntry(ctx context.Context, id uint64) (*model.Entry, error)
}

// MutationError is a failed create, update or delete.  Message is the
// server's message when it sent one, otherwise the operation's fallback.
type MutationError struct {
	Message string
	Err     error
}

func (e *MutationError) Error() string { return e.Message }
func (e *MutationError) Unwrap() error { return e.Err }

// Controller owns one list State.  Every transition goes through Reduce
// under mu; fetches run on their own goroutine and report back as events.
type Controller struct {
	api      EntryAPI
	log      *log.Logger
	onChange func(State)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	closed   bool
	inflight int
	idle     chan struct{} // closed while inflight is zero
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for fetch and mutation failures.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithOnChange registers fn to receive every new state.  fn is called
// without the controller lock held.
func WithOnChange(fn func(State)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// NewController creates a controller for api.  Nothing is fetched until
// SessionReady.
func NewController(api EntryAPI, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	c := &Controller{api: api, ctx: ctx, cancel: cancel, idle: idle}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Entries = append([]model.Entry(nil), c.state.Entries...)
	return s
}

// SessionReady signals that the session is resolved and starts the first
// page.
func (c *Controller) SessionReady() { c.Dispatch(SessionReady{}) }

// LoadMore requests the next page.  It is a no-op while a page is loading,
// once the list is exhausted, or before the session is ready.
func (c *Controller) LoadMore() { c.Dispatch(SentinelVisible{}) }

// Dispatch feeds ev to the reducer and starts the fetch it asks for.
// Events arriving after Close are ignored.
func (c *Controller) Dispatch(ev Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	next, fetch := Reduce(c.state, ev)
	c.state = next
	if fetch != nil {
		if c.inflight == 0 {
			c.idle = make(chan struct{})
		}
		c.inflight++
	}
	c.mu.Unlock()

	c.notify(next)
	if fetch != nil {
		go c.runFetch(*fetch)
	}
}

func (c *Controller) runFetch(f Fetch) {
	defer c.fetchDone()
	page, err := c.api.ListEntries(c.ctx, f.Page, PageSize)
	if err != nil {
		if c.ctx.Err() == nil && c.log != nil {
			c.log.Warn("fetch entries failed", "page", f.Page, "err", err)
		}
		c.Dispatch(FetchFailed{Generation: f.Generation, Err: err})
		return
	}
	c.Dispatch(FetchResolved{Generation: f.Generation, Page: f.Page, Entries: page.Data})
}

func (c *Controller) fetchDone() {
	c.mu.Lock()
	c.inflight--
	if c.inflight == 0 {
		close(c.idle)
	}
	c.mu.Unlock()
}

func (c *Controller) idleCh() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idle
}

// Wait blocks until no fetch is outstanding or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	select {
	case <-c.idleCh():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadAll keeps loading pages until the list is exhausted, a fetch fails
// or ctx is done.
func (c *Controller) LoadAll(ctx context.Context) error {
	for {
		if err := c.Wait(ctx); err != nil {
			return err
		}
		s := c.State()
		switch {
		case s.Err != nil:
			return s.Err
		case !s.Ready || s.Phase == Exhausted:
			return nil
		}
		c.LoadMore()
	}
}

// Close cancels in-flight requests.  Their results, and any later event,
// are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	<-c.idleCh()
}

// Create adds an entry and reloads the list from page 1.
func (c *Controller) Create(ctx context.Context, in client.EntryInput) (*model.Entry, error) {
	return c.mutate(ctx, MsgCreateFailed, func(ctx context.Context) (*model.Entry, error) {
		return c.api.CreateEntry(ctx, in)
	})
}

// Update replaces an entry and reloads the list from page 1.
func (c *Controller) Update(ctx context.Context, id uint64, in client.EntryInput) (*model.Entry, error) {
	return c.mutate(ctx, MsgUpdateFailed, func(ctx context.Context) (*model.Entry, error) {
		return c.api.UpdateEntry(ctx, id, in)
	})
}

// Delete removes an entry and reloads the list from page 1.
func (c *Controller) Delete(ctx context.Context, id uint64) (*model.Entry, error) {
	return c.mutate(ctx, MsgDeleteFailed, func(ctx context.Context) (*model.Entry, error) {
		return c.api.DeleteEntry(ctx, id)
	})
}

// mutate runs call with the submitting flag set.  On failure the list is
// left as it was.
func (c *Controller) mutate(ctx context.Context, fallback string, call func(context.Context) (*model.Entry, error)) (*model.Entry, error) {
	if err := c.setSubmitting(true); err != nil {
		return nil, err
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-c.ctx.Done():
			stop()
		case <-ctx.Done():
		}
	}()

	e, err := call(ctx)
	_ = c.setSubmitting(false)
	if err != nil {
		if c.log != nil {
			c.log.Warn(fallback, "err", err)
		}
		return nil, &MutationError{Message: messageOf(err, fallback), Err: err}
	}
	c.Dispatch(MutationSucceeded{})
	return e, nil
}

func (c *Controller) setSubmitting(on bool) error {
	c.mu.Lock()
	switch {
	case on && c.closed:
		c.mu.Unlock()
		return ErrClosed
	case on && c.state.Submitting:
		c.mu.Unlock()
		return ErrSubmitting
	}
	c.state.Submitting = on
	s := c.state
	c.mu.Unlock()
	c.notify(s)
	return nil
}

func (c *Controller) notify(s State) {
	if c.onChange != nil {
		c.onChange(s)
	}
}

func messageOf(err error, fallback string) string {
	var ae *client.APIError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return fallback
}
