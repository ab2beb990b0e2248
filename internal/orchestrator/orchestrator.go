// internal/orchestrator/orchestrator.go
//
// The orchestrator coordinates the batch surface: it owns the selected
// account, the flair catalog, the page accumulator, and the per-part
// selection sets and upload sessions. It is pure event-loop state: the
// network lives with the caller, which begins an operation here, performs
// the call, and reports the outcome back. All mutation happens on the
// single writer that drives the UI, so no mutation is ever observed
// half-applied.

package orchestrator

import (
	"context"
	"errors"

	"github.com/kingrea/postdeck/internal/api"
	"github.com/kingrea/postdeck/internal/logbook"
	"github.com/kingrea/postdeck/internal/queue"
	"github.com/kingrea/postdeck/internal/upload"
)

var (
	// ErrUploadInFlight gates refresh, pagination, and account changes
	// while any part is publishing.
	ErrUploadInFlight = errors.New("orchestrator: publish in progress")

	// ErrNoAccount is returned when an operation needs an account before
	// one has been selected.
	ErrNoAccount = errors.New("orchestrator: no account selected")

	// ErrUnknownPart is returned for operations on a part key that is no
	// longer in the accumulator.
	ErrUnknownPart = errors.New("orchestrator: unknown part")

	// ErrUnknownAccount is returned when selecting an account the server
	// never reported.
	ErrUnknownAccount = errors.New("orchestrator: unknown account")
)

// Entry is one row of the surface: a part with its selection set and
// upload session.
type Entry struct {
	Part      *queue.Part
	Selection *queue.Selection
	Session   *upload.Session
}

// PublishJob is a publish operation the orchestrator has admitted. The
// caller runs the gateway call under Ctx and reports back through
// FinishPublish.
type PublishJob struct {
	Ctx   context.Context
	Key   string
	Owner string
	Media []string
	Meta  upload.Metadata
}

// Orchestrator holds all surface state for one staging server connection.
type Orchestrator struct {
	acc        *queue.Accumulator
	selections map[string]*queue.Selection
	sessions   map[string]*upload.Session

	accounts []string
	account  string
	flairs   []api.Flair

	pageSize int
	limit    int
	lastErr  string
	log      *logbook.Logbook
}

// New builds an orchestrator with the given paging parameters.
func New(pageSize, galleryLimit int, log *logbook.Logbook) *Orchestrator {
	return &Orchestrator{
		acc:        queue.NewAccumulator(),
		selections: make(map[string]*queue.Selection),
		sessions:   make(map[string]*upload.Session),
		pageSize:   pageSize,
		limit:      galleryLimit,
		log:        log,
	}
}

// PageSize returns the configured submissions-per-page.
func (o *Orchestrator) PageSize() int { return o.pageSize }

// SetAccounts records the account catalog and selects the preferred
// account when present, otherwise the first one. Returns the selection.
func (o *Orchestrator) SetAccounts(accounts []string, preferred string) string {
	o.accounts = append([]string(nil), accounts...)
	o.account = ""
	if len(o.accounts) == 0 {
		return ""
	}
	o.account = o.accounts[0]
	for _, acc := range o.accounts {
		if acc == preferred {
			o.account = acc
			break
		}
	}
	return o.account
}

// Accounts returns the account catalog.
func (o *Orchestrator) Accounts() []string { return o.accounts }

// Account returns the selected account, empty before SetAccounts.
func (o *Orchestrator) Account() string { return o.account }

// SelectAccount switches the active account and clears everything scoped
// to the old one: the part sequence, selections, sessions, flairs, and any
// displayed error. The caller follows up with a page-1 load and a flair
// fetch. Rejected while a publish or a page fetch is in flight; resetting
// mid-fetch would let the old account's response land on the new board.
func (o *Orchestrator) SelectAccount(name string) error {
	if o.IsUploading() {
		return ErrUploadInFlight
	}
	if o.acc.Loading() != queue.LoadIdle {
		return queue.ErrLoadInFlight
	}
	found := false
	for _, acc := range o.accounts {
		if acc == name {
			found = true
			break
		}
	}
	if !found {
		return ErrUnknownAccount
	}
	o.account = name
	o.flairs = nil
	o.lastErr = ""
	o.acc.Reset()
	o.clearArenas()
	o.log.Info("account switched to %s", name)
	return nil
}

// SetFlairs replaces the flair catalog for the active account.
func (o *Orchestrator) SetFlairs(flairs []api.Flair) {
	o.flairs = append([]api.Flair(nil), flairs...)
}

// Flairs returns the flair catalog.
func (o *Orchestrator) Flairs() []api.Flair { return o.flairs }

// FailCatalog records a failed account or flair fetch. The flair list is
// cleared so stale flairs from another account are never submitted.
func (o *Orchestrator) FailCatalog(err error) {
	o.flairs = nil
	o.lastErr = err.Error()
	o.log.Error("catalog fetch failed: %v", err)
}

// BeginRefresh clears the sequence and admits a page-1 load. Rejected
// while a publish or another page load is in flight.
func (o *Orchestrator) BeginRefresh() (int, error) {
	if o.IsUploading() {
		return 0, ErrUploadInFlight
	}
	if o.account == "" {
		return 0, ErrNoAccount
	}
	if o.acc.Loading() != queue.LoadIdle {
		return 0, queue.ErrLoadInFlight
	}
	o.acc.Reset()
	o.clearArenas()
	o.lastErr = ""
	if err := o.acc.BeginLoad(1); err != nil {
		return 0, err
	}
	return 1, nil
}

// BeginReload admits a page-1 load without clearing the current sequence;
// the existing parts stay visible until the response replaces them. Used
// after a publish succeeds to reflect server-side state truthfully.
func (o *Orchestrator) BeginReload() (int, error) {
	if o.account == "" {
		return 0, ErrNoAccount
	}
	if err := o.acc.BeginLoad(1); err != nil {
		return 0, err
	}
	return 1, nil
}

// BeginLoadMore admits a fetch of the next page. Rejected while a publish
// or another page load is in flight, and once the server reported the
// final page.
func (o *Orchestrator) BeginLoadMore() (int, error) {
	if o.IsUploading() {
		return 0, ErrUploadInFlight
	}
	if o.account == "" {
		return 0, ErrNoAccount
	}
	page := o.acc.NextPage()
	if err := o.acc.BeginLoad(page); err != nil {
		return 0, err
	}
	return page, nil
}

// ApplyPage merges a fetched page and reconciles the selection/session
// arenas: every part of a replacing page gets a fresh full selection,
// newly appended parts get new arenas, and arenas whose part vanished are
// torn down. Returns false when the page is no longer pending; a dropped
// page leaves the board, the selections, and any displayed error alone.
func (o *Orchestrator) ApplyPage(page int, subs []queue.Submission, hasMore bool) bool {
	if _, applied := o.acc.ApplyPage(page, subs, hasMore, o.limit); !applied {
		return false
	}
	o.lastErr = ""

	live := make(map[string]struct{})
	for _, part := range o.acc.Parts() {
		live[part.Key] = struct{}{}
		if sel, ok := o.selections[part.Key]; ok {
			if page == 1 {
				// A replacing page recreates every part; selections are
				// re-derived to the full media list, not carried over.
				sel.Rederive(part.Media)
			}
			continue
		}
		o.selections[part.Key] = queue.NewSelection(part.Media)
		o.sessions[part.Key] = upload.NewSession()
	}
	for key, sess := range o.sessions {
		if _, ok := live[key]; ok {
			continue
		}
		sess.Teardown()
		delete(o.sessions, key)
		delete(o.selections, key)
	}
	o.log.Info("page %d applied: %d part(s) on the board", page, o.acc.Len())
	return true
}

// FailLoad clears the in-flight marker and surfaces the fetch error. The
// part sequence and paging cursor are untouched, so the user can retry.
func (o *Orchestrator) FailLoad(page int, err error) {
	o.acc.FailLoad()
	o.lastErr = err.Error()
	o.log.Error("page %d fetch failed: %v", page, err)
}

// Entries returns the board rows in accumulator order.
func (o *Orchestrator) Entries() []Entry {
	parts := o.acc.Parts()
	entries := make([]Entry, 0, len(parts))
	for _, part := range parts {
		entries = append(entries, Entry{
			Part:      part,
			Selection: o.selections[part.Key],
			Session:   o.sessions[part.Key],
		})
	}
	return entries
}

// Entry returns one board row by part key.
func (o *Orchestrator) Entry(key string) (Entry, bool) {
	part, ok := o.acc.Part(key)
	if !ok {
		return Entry{}, false
	}
	return Entry{Part: part, Selection: o.selections[key], Session: o.sessions[key]}, true
}

// ToggleMedia flips one media item's membership in its part's selection.
func (o *Orchestrator) ToggleMedia(key, item string) {
	if sel, ok := o.selections[key]; ok {
		sel.Toggle(item)
	}
}

// BeginPublish validates and admits a publish of the part's selected
// media. Validation failures (empty selection, missing flair, a publish
// already running for this part) are synchronous and reach no gateway.
func (o *Orchestrator) BeginPublish(parent context.Context, key string, meta upload.Metadata) (PublishJob, error) {
	if o.account == "" {
		return PublishJob{}, ErrNoAccount
	}
	entry, ok := o.Entry(key)
	if !ok || entry.Session == nil || entry.Selection == nil {
		return PublishJob{}, ErrUnknownPart
	}
	ctx, err := entry.Session.Begin(parent, entry.Selection.Count(), meta)
	if err != nil {
		return PublishJob{}, err
	}
	media := entry.Selection.Items()
	o.log.Info("publishing %s: %d item(s)", key, len(media))
	return PublishJob{
		Ctx:   ctx,
		Key:   key,
		Owner: entry.Part.Owner,
		Media: media,
		Meta:  meta,
	}, nil
}

// CancelPublish aborts the part's in-flight publish. Returns true when a
// publish was actually running and is now canceled.
func (o *Orchestrator) CancelPublish(key string) bool {
	sess, ok := o.sessions[key]
	if !ok {
		return false
	}
	if !sess.Cancel() {
		return false
	}
	o.log.Warn("publish of %s canceled", key)
	return true
}

// FinishPublish records a publish outcome. Returns true when the publish
// succeeded and the caller should reload page 1. Outcomes for parts that
// have since been torn down are dropped.
func (o *Orchestrator) FinishPublish(key, url string, err error) bool {
	sess, ok := o.sessions[key]
	if !ok {
		return false
	}
	sess.Finish(url, err)
	switch sess.State() {
	case upload.StateSucceeded:
		o.log.Info("published %s: %s", key, url)
		return true
	case upload.StateFailed:
		o.log.Error("publish of %s failed: %s", key, sess.Reason())
	}
	return false
}

// MediaDeleted applies a gateway-confirmed delete: the item leaves its
// part, an emptied part leaves the board with its arenas, and a surviving
// part's selection is re-derived from the remaining media. Unknown keys
// are a no-op; a racing duplicate notification is expected.
func (o *Orchestrator) MediaDeleted(key, item string) {
	shrunk, pruned := o.acc.RemoveMediaItem(key, item)
	if !shrunk {
		return
	}
	if pruned {
		if sess, ok := o.sessions[key]; ok {
			sess.Teardown()
		}
		delete(o.sessions, key)
		delete(o.selections, key)
		o.log.Info("deleted %s; part %s emptied and removed", item, key)
		return
	}
	part, ok := o.acc.Part(key)
	if !ok {
		return
	}
	if sel, exists := o.selections[key]; exists {
		sel.Rederive(part.Media)
	}
	o.log.Info("deleted %s from %s", item, key)
}

// IsUploading reports whether any part's publish is in flight. While
// true, refresh, pagination, and account changes are blocked.
func (o *Orchestrator) IsUploading() bool {
	for _, sess := range o.sessions {
		if sess.InFlight() {
			return true
		}
	}
	return false
}

// Loading reports the accumulator's in-flight fetch state.
func (o *Orchestrator) Loading() queue.LoadState { return o.acc.Loading() }

// HasMore reports whether further pages are available.
func (o *Orchestrator) HasMore() bool { return o.acc.HasMore() }

// Page returns the last applied page number.
func (o *Orchestrator) Page() int { return o.acc.Page() }

// Len returns the number of parts on the board.
func (o *Orchestrator) Len() int { return o.acc.Len() }

// Err returns the page-level error message shown on the board, if any.
func (o *Orchestrator) Err() string { return o.lastErr }

func (o *Orchestrator) clearArenas() {
	for _, sess := range o.sessions {
		sess.Teardown()
	}
	o.selections = make(map[string]*queue.Selection)
	o.sessions = make(map[string]*upload.Session)
}
