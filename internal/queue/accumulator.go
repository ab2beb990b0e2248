// internal/queue/accumulator.go
//
// The accumulator owns the ordered, deduplicated, ever-growing list of
// parts across pages of the pending queue. It is single-writer state: every
// mutation happens on the event loop, and the begin/apply/fail split keeps
// exactly one page fetch in flight at a time.

package queue

import (
	"errors"
	"fmt"
)

// LoadState reports which kind of page fetch, if any, is in flight.
type LoadState int

const (
	LoadIdle LoadState = iota
	LoadFirstPage
	LoadNextPage
)

func (s LoadState) String() string {
	switch s {
	case LoadFirstPage:
		return "loading first page"
	case LoadNextPage:
		return "loading next page"
	default:
		return "idle"
	}
}

var (
	// ErrLoadInFlight is returned when a page load begins while another is
	// still pending. At most one fetch is outstanding at a time.
	ErrLoadInFlight = errors.New("queue: page load already in flight")

	// ErrNoMorePages is returned when a next-page load begins after the
	// server reported the final page.
	ErrNoMorePages = errors.New("queue: no more pages")
)

// Accumulator holds the part sequence plus the paging cursor. Pages are
// loaded strictly in increasing order; page 1 replaces the sequence,
// later pages append.
type Accumulator struct {
	parts   []*Part
	byKey   map[string]*Part
	page    int
	hasMore bool
	loading LoadState
	pending int
}

// NewAccumulator returns an empty accumulator positioned before page 1.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		byKey:   make(map[string]*Part),
		hasMore: true,
	}
}

// BeginLoad marks a fetch for the given page as in flight. Only page 1 or
// the page immediately after the last applied one may be requested, and
// only while nothing else is pending.
func (a *Accumulator) BeginLoad(page int) error {
	if a.loading != LoadIdle {
		return ErrLoadInFlight
	}
	if page == 1 {
		a.loading = LoadFirstPage
		a.pending = 1
		return nil
	}
	if page != a.page+1 {
		return fmt.Errorf("queue: page %d requested out of order (have %d)", page, a.page)
	}
	if !a.hasMore {
		return ErrNoMorePages
	}
	a.loading = LoadNextPage
	a.pending = page
	return nil
}

// NextPage returns the page number a load-more request should fetch.
func (a *Accumulator) NextPage() int {
	return a.page + 1
}

// ApplyPage splits the fetched submissions and merges the resulting parts
// into the sequence: page 1 replaces it, later pages append in response
// order. Parts whose key is already present are dropped, keeping the
// first-seen position. Returns the applied page's part keys in order,
// plus whether the page was applied at all: a response for a page that is
// no longer pending is dropped without touching the sequence.
func (a *Accumulator) ApplyPage(page int, subs []Submission, hasMore bool, limit int) ([]string, bool) {
	if page != a.pending {
		return nil, false
	}
	if page == 1 {
		a.parts = nil
		a.byKey = make(map[string]*Part)
	}
	var keys []string
	for _, sub := range subs {
		for _, part := range Split(sub, limit) {
			if _, dup := a.byKey[part.Key]; dup {
				continue
			}
			p := part
			a.parts = append(a.parts, &p)
			a.byKey[p.Key] = &p
			keys = append(keys, p.Key)
		}
	}
	a.page = page
	a.hasMore = hasMore
	a.loading = LoadIdle
	a.pending = 0
	return keys, true
}

// FailLoad clears the in-flight marker after a failed fetch. The sequence,
// page cursor, and has-more flag are left exactly as they were.
func (a *Accumulator) FailLoad() {
	a.loading = LoadIdle
	a.pending = 0
}

// Reset clears the sequence and repositions before page 1. Used when the
// active account changes or on explicit refresh.
func (a *Accumulator) Reset() {
	a.parts = nil
	a.byKey = make(map[string]*Part)
	a.page = 0
	a.hasMore = true
	a.loading = LoadIdle
	a.pending = 0
}

// RemoveMediaItem drops one media item from the named part. When the last
// item goes, the part itself is removed from the sequence and pruned is
// true. Unknown keys and absent items are silent no-ops: a racing
// duplicate delete notification is expected, not an error.
func (a *Accumulator) RemoveMediaItem(key, item string) (shrunk, pruned bool) {
	part, ok := a.byKey[key]
	if !ok {
		return false, false
	}
	idx := -1
	for i, id := range part.Media {
		if id == item {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, false
	}
	part.Media = append(part.Media[:idx], part.Media[idx+1:]...)
	if len(part.Media) > 0 {
		return true, false
	}
	delete(a.byKey, key)
	for i, p := range a.parts {
		if p.Key == key {
			a.parts = append(a.parts[:i], a.parts[i+1:]...)
			break
		}
	}
	return true, true
}

// Part returns the part for a key, if present.
func (a *Accumulator) Part(key string) (*Part, bool) {
	p, ok := a.byKey[key]
	return p, ok
}

// Parts returns the current sequence. The slice is a copy; the parts are
// shared.
func (a *Accumulator) Parts() []*Part {
	return append([]*Part(nil), a.parts...)
}

// Keys returns the part keys in sequence order.
func (a *Accumulator) Keys() []string {
	keys := make([]string, len(a.parts))
	for i, p := range a.parts {
		keys[i] = p.Key
	}
	return keys
}

// Len returns the number of parts currently held.
func (a *Accumulator) Len() int { return len(a.parts) }

// Page returns the last successfully applied page number, 0 before any.
func (a *Accumulator) Page() int { return a.page }

// HasMore reports whether the server indicated further pages.
func (a *Accumulator) HasMore() bool { return a.hasMore }

// Loading returns the in-flight state.
func (a *Accumulator) Loading() LoadState { return a.loading }
