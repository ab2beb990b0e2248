package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/kingrea/postdeck/internal/api"
	"github.com/kingrea/postdeck/internal/queue"
	"github.com/kingrea/postdeck/internal/upload"
)

func newOrch(t *testing.T) *Orchestrator {
	t.Helper()
	o := New(10, 20, nil)
	o.SetAccounts([]string{"main", "backup"}, "")
	o.SetFlairs([]api.Flair{{ID: "f1", Label: "Daily"}})
	return o
}

func sub(name string, n int) queue.Submission {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf("%s_%d.jpg", name, i)
	}
	return queue.Submission{Username: name, TitlePreview: `"` + name + `"`, MediaItems: items, MediaCount: n}
}

func loadPage(t *testing.T, o *Orchestrator, begin func() (int, error), subs []queue.Submission, hasMore bool) {
	t.Helper()
	page, err := begin()
	if err != nil {
		t.Fatalf("begin load: %v", err)
	}
	o.ApplyPage(page, subs, hasMore)
}

func TestSetAccountsPrefersConfiguredDefault(t *testing.T) {
	o := New(10, 20, nil)
	if got := o.SetAccounts([]string{"main", "backup"}, "backup"); got != "backup" {
		t.Fatalf("expected preferred account, got %q", got)
	}
	if got := o.SetAccounts([]string{"main", "backup"}, "ghost"); got != "main" {
		t.Fatalf("unknown preference must fall back to the first account, got %q", got)
	}
}

func TestRefreshBuildsBoard(t *testing.T) {
	o := newOrch(t)
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("anna", 45), sub("ben", 2)}, true)
	entries := o.Entries()
	if len(entries) != 4 {
		t.Fatalf("expected 4 parts (3 split + 1 whole), got %d", len(entries))
	}
	for _, e := range entries {
		if e.Selection == nil || e.Session == nil {
			t.Fatalf("every part must get a selection and a session")
		}
		if e.Selection.Count() != len(e.Part.Media) {
			t.Fatalf("new selections must choose everything")
		}
		if e.Session.State() != upload.StateIdle {
			t.Fatalf("new sessions must be idle")
		}
	}
}

func TestLoadMoreSingleFlight(t *testing.T) {
	o := newOrch(t)
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("anna", 1)}, true)
	page, err := o.BeginLoadMore()
	if err != nil || page != 2 {
		t.Fatalf("expected page 2 admitted, got page=%d err=%v", page, err)
	}
	// A second load-more before the first resolves must not start another
	// fetch.
	if _, err := o.BeginLoadMore(); !errors.Is(err, queue.ErrLoadInFlight) {
		t.Fatalf("expected ErrLoadInFlight, got %v", err)
	}
	o.ApplyPage(2, []queue.Submission{sub("ben", 1)}, false)
	keys := make([]string, 0)
	for _, e := range o.Entries() {
		keys = append(keys, e.Part.Key)
	}
	if !reflect.DeepEqual(keys, []string{"anna", "ben"}) {
		t.Fatalf("expected exactly pages 1..2 without duplicates, got %v", keys)
	}
}

func TestFailedLoadKeepsBoardAndSurfacesError(t *testing.T) {
	o := newOrch(t)
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("anna", 1)}, true)
	page, err := o.BeginLoadMore()
	if err != nil {
		t.Fatal(err)
	}
	o.FailLoad(page, &api.FetchError{Status: 502, Message: "Failed to fetch posts: Bad Gateway"})
	if o.Len() != 1 || o.Page() != 1 || !o.HasMore() {
		t.Fatalf("failed fetch must leave the board untouched")
	}
	if o.Err() != "Failed to fetch posts: Bad Gateway" {
		t.Fatalf("error message must surface verbatim, got %q", o.Err())
	}
	if _, err := o.BeginLoadMore(); err != nil {
		t.Fatalf("retry after failure must be admitted: %v", err)
	}
}

func TestPublishLifecycle(t *testing.T) {
	o := newOrch(t)
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("anna", 2)}, false)
	job, err := o.BeginPublish(context.Background(), "anna", upload.Metadata{FlairID: "f1"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(job.Media, []string{"anna_0.jpg", "anna_1.jpg"}) {
		t.Fatalf("job must carry the selected media in order, got %v", job.Media)
	}
	if !o.IsUploading() {
		t.Fatalf("isUploading must be true while submitting")
	}
	if _, err := o.BeginRefresh(); !errors.Is(err, ErrUploadInFlight) {
		t.Fatalf("refresh must be blocked while uploading, got %v", err)
	}
	if _, err := o.BeginLoadMore(); !errors.Is(err, ErrUploadInFlight) {
		t.Fatalf("load-more must be blocked while uploading, got %v", err)
	}
	if err := o.SelectAccount("backup"); !errors.Is(err, ErrUploadInFlight) {
		t.Fatalf("account change must be blocked while uploading, got %v", err)
	}

	reload := o.FinishPublish("anna", "https://example.com/p/1", nil)
	if !reload {
		t.Fatalf("success must request a page-1 reload")
	}
	if o.IsUploading() {
		t.Fatalf("isUploading must clear after completion")
	}
	entry, _ := o.Entry("anna")
	if entry.Session.State() != upload.StateSucceeded || entry.Session.URL() == "" {
		t.Fatalf("session must record the success")
	}
}

func TestPublishRejectedWithoutSelection(t *testing.T) {
	o := newOrch(t)
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("anna", 1)}, false)
	o.ToggleMedia("anna", "anna_0.jpg")
	if _, err := o.BeginPublish(context.Background(), "anna", upload.Metadata{FlairID: "f1"}); !errors.Is(err, upload.ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
	if o.IsUploading() {
		t.Fatalf("a rejected publish must not flip isUploading")
	}
}

func TestPublishRejectedWithoutFlair(t *testing.T) {
	o := newOrch(t)
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("anna", 1)}, false)
	if _, err := o.BeginPublish(context.Background(), "anna", upload.Metadata{}); !errors.Is(err, upload.ErrNoFlair) {
		t.Fatalf("expected ErrNoFlair, got %v", err)
	}
}

func TestCancelLeavesBoardUnchanged(t *testing.T) {
	o := newOrch(t)
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("anna", 2), sub("ben", 1)}, true)
	before := make([]string, 0)
	for _, e := range o.Entries() {
		before = append(before, e.Part.Key)
	}
	job, err := o.BeginPublish(context.Background(), "anna", upload.Metadata{FlairID: "f1"})
	if err != nil {
		t.Fatal(err)
	}
	o.CancelPublish("anna")
	if !errors.Is(job.Ctx.Err(), context.Canceled) {
		t.Fatalf("cancel must fire the job's context")
	}
	if o.IsUploading() {
		t.Fatalf("isUploading must be false after cancel")
	}
	after := make([]string, 0)
	for _, e := range o.Entries() {
		after = append(after, e.Part.Key)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("cancel must not add or remove parts: %v vs %v", before, after)
	}
	// The aborted gateway call reports back; the canceled state stands.
	o.FinishPublish("anna", "", context.Canceled)
	entry, _ := o.Entry("anna")
	if entry.Session.State() != upload.StateCanceled {
		t.Fatalf("expected canceled, got %v", entry.Session.State())
	}
}

func TestConcurrentPublishesAreIndependent(t *testing.T) {
	o := newOrch(t)
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("anna", 1), sub("ben", 1)}, false)
	jobA, err := o.BeginPublish(context.Background(), "anna", upload.Metadata{FlairID: "f1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.BeginPublish(context.Background(), "ben", upload.Metadata{FlairID: "f1"}); err != nil {
		t.Fatalf("a second part may publish while the first is in flight: %v", err)
	}
	o.CancelPublish("ben")
	if jobA.Ctx.Err() != nil {
		t.Fatalf("canceling one session must not abort another")
	}
	if !o.IsUploading() {
		t.Fatalf("isUploading must stay true while any session is submitting")
	}
}

func TestMediaDeletedShrinksAndRederives(t *testing.T) {
	o := newOrch(t)
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("anna", 3)}, false)
	o.ToggleMedia("anna", "anna_2.jpg")
	o.MediaDeleted("anna", "anna_1.jpg")
	entry, ok := o.Entry("anna")
	if !ok {
		t.Fatalf("part must survive a non-emptying delete")
	}
	if !reflect.DeepEqual(entry.Part.Media, []string{"anna_0.jpg", "anna_2.jpg"}) {
		t.Fatalf("unexpected media after delete: %v", entry.Part.Media)
	}
	// The shrink re-derives the selection, clearing the prior de-selection
	// of anna_2.jpg.
	if !entry.Selection.Selected("anna_2.jpg") {
		t.Fatalf("selection must be recomputed to all remaining items")
	}
}

func TestMediaDeletedPrunesEmptiedPart(t *testing.T) {
	o := newOrch(t)
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("anna", 1), sub("ben", 1)}, false)
	o.MediaDeleted("anna", "anna_0.jpg")
	if _, ok := o.Entry("anna"); ok {
		t.Fatalf("emptied part must leave the board")
	}
	if len(o.Entries()) != 1 {
		t.Fatalf("sibling parts must be untouched")
	}
	// A racing duplicate notification is a silent no-op.
	o.MediaDeleted("anna", "anna_0.jpg")
}

func TestAccountChangeBlockedWhileLoading(t *testing.T) {
	o := newOrch(t)
	if _, err := o.BeginRefresh(); err != nil {
		t.Fatal(err)
	}
	// Switching mid-fetch would reset the in-flight marker and let the
	// old account's response land on the new account's board.
	if err := o.SelectAccount("backup"); !errors.Is(err, queue.ErrLoadInFlight) {
		t.Fatalf("account change must wait for the fetch, got %v", err)
	}
	if got := o.Account(); got != "main" {
		t.Fatalf("rejected switch must keep the account, got %q", got)
	}
	o.ApplyPage(1, []queue.Submission{sub("anna", 1)}, true)
	if err := o.SelectAccount("backup"); err != nil {
		t.Fatalf("switch must be admitted once the fetch resolves: %v", err)
	}
	if err := o.SelectAccount("main"); err != nil {
		t.Fatal(err)
	}
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("ben", 1)}, false)
	keys := make([]string, 0)
	for _, e := range o.Entries() {
		keys = append(keys, e.Part.Key)
	}
	if !reflect.DeepEqual(keys, []string{"ben"}) {
		t.Fatalf("board must reflect the latest fetch only, got %v", keys)
	}
}

func TestStalePageIsDroppedWithoutSideEffects(t *testing.T) {
	o := newOrch(t)
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("anna", 2)}, true)
	o.ToggleMedia("anna", "anna_1.jpg")
	page, err := o.BeginLoadMore()
	if err != nil {
		t.Fatal(err)
	}
	o.FailLoad(page, &api.FetchError{Status: 502, Message: "Failed to fetch posts: Bad Gateway"})

	// A response for a page that is no longer pending arrives late.
	if o.ApplyPage(1, []queue.Submission{sub("zoe", 1)}, false) {
		t.Fatalf("a page with no pending fetch must be dropped")
	}
	if _, ok := o.Entry("zoe"); ok {
		t.Fatalf("dropped page must not reach the board")
	}
	entry, _ := o.Entry("anna")
	if entry.Selection.Selected("anna_1.jpg") {
		t.Fatalf("dropped page must not re-derive selections")
	}
	if o.Err() == "" {
		t.Fatalf("dropped page must not clear the displayed error")
	}
	if o.Page() != 1 || !o.HasMore() {
		t.Fatalf("dropped page must not move the paging cursor")
	}
}

func TestAccountChangeClearsEverything(t *testing.T) {
	o := newOrch(t)
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("anna", 1)}, true)
	if err := o.SelectAccount("backup"); err != nil {
		t.Fatal(err)
	}
	if o.Len() != 0 || len(o.Flairs()) != 0 {
		t.Fatalf("account change must clear parts and flairs")
	}
	if o.Account() != "backup" {
		t.Fatalf("expected backup selected, got %q", o.Account())
	}
	if _, err := o.BeginRefresh(); err != nil {
		t.Fatalf("fresh account must accept a refresh: %v", err)
	}
}

func TestReloadReconcilesArenas(t *testing.T) {
	o := newOrch(t)
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("anna", 2), sub("ben", 1)}, false)
	o.ToggleMedia("anna", "anna_1.jpg")

	// ben was published meanwhile; the reload drops it and re-derives
	// anna's selection.
	loadPage(t, o, o.BeginReload, []queue.Submission{sub("anna", 2)}, false)
	if _, ok := o.Entry("ben"); ok {
		t.Fatalf("vanished part must lose its arenas")
	}
	entry, _ := o.Entry("anna")
	if entry.Selection.Count() != 2 {
		t.Fatalf("replacing page must re-derive selections to full, got %d", entry.Selection.Count())
	}
}

func TestFinishPublishForTornDownPartIsDropped(t *testing.T) {
	o := newOrch(t)
	loadPage(t, o, o.BeginRefresh, []queue.Submission{sub("anna", 1)}, false)
	if _, err := o.BeginPublish(context.Background(), "anna", upload.Metadata{FlairID: "f1"}); err != nil {
		t.Fatal(err)
	}
	o.MediaDeleted("anna", "anna_0.jpg")
	if reload := o.FinishPublish("anna", "", context.Canceled); reload {
		t.Fatalf("a stale completion must not trigger a reload")
	}
}
