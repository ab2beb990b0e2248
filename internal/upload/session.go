// internal/upload/session.go
//
// One upload session exists per part key and tracks that part's publish
// lifecycle: idle -> submitting -> (succeeded | failed | canceled). The
// session owns the cancellation token for the in-flight gateway call and
// nothing else; canceling one session never touches its siblings.

package upload

import (
	"context"
	"errors"
)

// State is the session's position in the publish lifecycle.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCanceled:
		return "canceled"
	default:
		return "idle"
	}
}

// Validation failures reported by Begin. These never reach the gateway.
var (
	ErrInFlight    = errors.New("upload: publish already in flight")
	ErrNoSelection = errors.New("upload: select at least one media item")
	ErrNoFlair     = errors.New("upload: select a flair before publishing")
)

const canceledReason = "publish canceled"

// Metadata carries the user-entered publish fields for one part.
type Metadata struct {
	Caption string
	FlairID string
	NSFW    bool
}

// Session is the per-part publish state machine. It is event-loop state:
// all methods are called from the single writer that owns the part.
type Session struct {
	state  State
	reason string
	url    string
	cancel context.CancelFunc
}

// NewSession returns an idle session.
func NewSession() *Session {
	return &Session{}
}

// Begin validates the submit attempt and, if it is allowed, moves the
// session to submitting and returns the context the gateway call must run
// under. Validation failures are synchronous and leave the state alone, so
// a rejected attempt can be retried immediately after the user fixes the
// input.
func (s *Session) Begin(parent context.Context, selected int, meta Metadata) (context.Context, error) {
	if s.state == StateSubmitting {
		return nil, ErrInFlight
	}
	if selected == 0 {
		return nil, ErrNoSelection
	}
	if meta.FlairID == "" {
		return nil, ErrNoFlair
	}
	ctx, cancel := context.WithCancel(parent)
	s.state = StateSubmitting
	s.reason = ""
	s.url = ""
	s.cancel = cancel
	return ctx, nil
}

// Cancel aborts the in-flight gateway call and marks the session canceled.
// It is a no-op unless the session is submitting. The aborted call will
// still complete with a cancellation error; Finish swallows it.
func (s *Session) Cancel() bool {
	if s.state != StateSubmitting {
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = StateCanceled
	s.reason = canceledReason
	return true
}

// Finish records the gateway call's outcome. Completions that arrive after
// a cancel (including the canceled call's own error) are dropped so the
// canceled state is not overwritten. A cancellation error on a session that
// was not explicitly canceled still lands in the canceled state rather than
// failed: user-initiated aborts are not failures.
func (s *Session) Finish(url string, err error) {
	if s.state != StateSubmitting {
		return
	}
	s.release()
	switch {
	case err == nil:
		s.state = StateSucceeded
		s.url = url
	case errors.Is(err, context.Canceled):
		s.state = StateCanceled
		s.reason = canceledReason
	default:
		s.state = StateFailed
		s.reason = err.Error()
	}
}

// Teardown cancels any in-flight call without recording an outcome. Used
// when the owning part disappears while the session still exists.
func (s *Session) Teardown() {
	s.release()
}

func (s *Session) release() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// InFlight reports whether a gateway call is outstanding.
func (s *Session) InFlight() bool {
	return s.state == StateSubmitting
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Reason returns the failure or cancellation message, empty otherwise.
func (s *Session) Reason() string { return s.reason }

// URL returns the published post's URL after a success.
func (s *Session) URL() string { return s.url }
