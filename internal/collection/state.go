// Package collection drives the infinite-scroll view of a user's entries.
// State changes only through Reduce; the Controller performs the fetches
// and mutations Reduce asks for and feeds their outcome back as events.
package collection

import "github.com/iliyamo/movieflix/internal/model"

// PageSize is the number of entries requested per page.  A shorter page
// means the list is exhausted.
const PageSize = 20

// Phase is the pagination phase of the list.
type Phase int

const (
	Idle      Phase = iota // ready to load the next page
	Loading                // a page fetch is outstanding
	Exhausted              // the last page was short; nothing more to load
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// State is a snapshot of the list.  The zero value is a list waiting for
// its session.
type State struct {
	Ready      bool // session resolved
	Phase      Phase
	Page       int // last page loaded; 0 means nothing loaded
	Entries    []model.Entry
	Generation uint64 // bumped on every reset; older fetch results are dropped
	Err        error  // last fetch error, cleared by the next successful page
	Submitting bool   // a mutation is in flight
}

// HasMore reports whether another page may exist.
func (s State) HasMore() bool { return s.Phase != Exhausted }

// Event is an input to Reduce.
type Event interface{ event() }

// SessionReady marks the session as resolved.
type SessionReady struct{}

// SentinelVisible asks for the next page, typically because the end of the
// rendered list came into view.
type SentinelVisible struct{}

// MutationSucceeded resets the list after a create, update or delete.
type MutationSucceeded struct{}

// FetchResolved delivers the entries of page fetched under Generation.
type FetchResolved struct {
	Generation uint64
	Page       int
	Entries    []model.Entry
}

// FetchFailed reports a failed fetch started under Generation.
type FetchFailed struct {
	Generation uint64
	Err        error
}

func (SessionReady) event()      {}
func (SentinelVisible) event()   {}
func (MutationSucceeded) event() {}
func (FetchResolved) event()     {}
func (FetchFailed) event()       {}

// Fetch is the effect returned by Reduce when a page must be requested.
type Fetch struct {
	Generation uint64
	Page       int
}

// Reduce applies ev to s.  It returns the next state and, when a page has
// to be loaded, the fetch to perform.  Reduce never mutates s.Entries in
// place.
func Reduce(s State, ev Event) (State, *Fetch) {
	switch ev := ev.(type) {
	case SessionReady:
		s.Ready = true
		if s.Phase == Idle && s.Page == 0 {
			return startFetch(s, 1)
		}

	case SentinelVisible:
		// dropped, not queued, while loading, exhausted or signed out
		if s.Ready && s.Phase == Idle {
			return startFetch(s, s.Page+1)
		}

	case MutationSucceeded:
		s.Generation++
		s.Page = 0
		s.Err = nil
		s.Phase = Idle
		if s.Ready {
			return startFetch(s, 1)
		}

	case FetchResolved:
		if ev.Generation != s.Generation || s.Phase != Loading {
			return s, nil
		}
		if ev.Page == 1 {
			s.Entries = append([]model.Entry(nil), ev.Entries...)
		} else {
			merged := make([]model.Entry, 0, len(s.Entries)+len(ev.Entries))
			s.Entries = append(append(merged, s.Entries...), ev.Entries...)
		}
		s.Page = ev.Page
		s.Err = nil
		if len(ev.Entries) < PageSize {
			s.Phase = Exhausted
		} else {
			s.Phase = Idle
		}

	case FetchFailed:
		if ev.Generation != s.Generation || s.Phase != Loading {
			return s, nil
		}
		s.Phase = Idle
		s.Err = ev.Err
	}
	return s, nil
}

func startFetch(s State, page int) (State, *Fetch) {
	s.Phase = Loading
	return s, &Fetch{Generation: s.Generation, Page: page}
}
