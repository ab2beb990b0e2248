// internal/tui/app.go
//
// This is the main TUI for Postdeck. It uses bubbletea, which follows
// The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen
//
// All mutation happens inside Update on bubbletea's single goroutine.
// Network calls run inside tea.Cmd closures that only touch the stateless
// gateway client and deliver their outcome back as a typed message.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kingrea/postdeck/internal/api"
	"github.com/kingrea/postdeck/internal/config"
	"github.com/kingrea/postdeck/internal/logbook"
	"github.com/kingrea/postdeck/internal/orchestrator"
	"github.com/kingrea/postdeck/internal/queue"
	"github.com/kingrea/postdeck/internal/upload"
)

// appState represents which "screen" we're on
type appState int

const (
	statePartBoard     appState = iota // The pending-parts board (default)
	stateAccountPicker                 // Account selection list
	stateDeleteConfirm                 // Confirm deleting one media item
	stateHelp                          // Key reference
)

type boardFocus int

const (
	focusParts boardFocus = iota
	focusCaption
)

const captionCharLimit = 300

// Gateway is the slice of the staging API the TUI drives. *api.Client
// satisfies it; tests substitute a fake.
type Gateway interface {
	Accounts(ctx context.Context) ([]string, error)
	Flairs(ctx context.Context, account string) ([]api.Flair, error)
	PendingPage(ctx context.Context, page, size int) ([]queue.Submission, bool, error)
	PublishPart(ctx context.Context, in api.PublishInput) (string, error)
	DeleteMedia(ctx context.Context, item string) error
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithGateway overrides the staging API client used by the TUI.
func WithGateway(g Gateway) AppOption {
	return func(a *App) {
		if g != nil {
			a.gateway = g
		}
	}
}

// Messages delivered back into Update by tea.Cmd closures.

type accountsMsg struct {
	accounts []string
	err      error
}

type flairsMsg struct {
	account string
	flairs  []api.Flair
	err     error
}

type pageMsg struct {
	page    int
	subs    []queue.Submission
	hasMore bool
	err     error
}

type publishDoneMsg struct {
	key string
	url string
	err error
}

type deleteDoneMsg struct {
	key  string
	item string
	err  error
}

// partDraft holds the per-part publish form: caption text, the cursor
// into the flair catalog, and the NSFW flag. Drafts live outside the
// orchestrator because they are presentation state, not queue state.
type partDraft struct {
	caption  textinput.Model
	flairIdx int
	nsfw     bool
}

// accountItem implements list.Item for the account picker.
type accountItem string

func (i accountItem) Title() string       { return string(i) }
func (i accountItem) Description() string { return "publish as this account" }
func (i accountItem) FilterValue() string { return string(i) }

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state   appState
	config  *config.Config
	orch    *orchestrator.Orchestrator
	gateway Gateway
	logbook *logbook.Logbook

	accountMenu list.Model
	spin        spinner.Model
	drafts      map[string]*partDraft

	boardFocus  boardFocus
	partCursor  int
	mediaCursor int

	// Pending delete confirmation target.
	deleteKey  string
	deleteItem string

	statusMsg     string
	lastLogStatus string

	width  int
	height int
}

// NewApp creates a new App instance rooted at projectDir.
func NewApp(projectDir string, opts ...AppOption) (*App, error) {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	logPath := filepath.Join(cfg.LogsDir(), "postdeck.log")
	lb, err := logbook.New(logPath)
	if err == nil {
		lb.Info("Session opened · %s · kind=%s", cfg.BaseURL(), cfg.MediaKind())
	}

	kind := api.KindImages
	limit := cfg.GalleryLimit()
	if cfg.MediaKind() == string(api.KindVideos) {
		kind = api.KindVideos
		// The platform takes one video per post.
		limit = 1
	}
	client, err := api.New(cfg.BaseURL(), api.WithKind(kind))
	if err != nil {
		return nil, err
	}

	accountMenu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	accountMenu.Title = "Select Account"
	accountMenu.SetShowStatusBar(false)
	accountMenu.SetFilteringEnabled(false)

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	app := &App{
		state:       statePartBoard,
		config:      cfg,
		orch:        orchestrator.New(cfg.PageSize(), limit, lb),
		gateway:     client,
		logbook:     lb,
		accountMenu: accountMenu,
		spin:        spin,
		drafts:      map[string]*partDraft{},
		boardFocus:  focusParts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app, nil
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

func (a *App) setStatus(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	a.statusMsg = message
	if message != a.lastLogStatus {
		a.lastLogStatus = message
		a.logInfo(message)
	}
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spin.Tick, a.fetchAccounts())
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.accountMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case accountsMsg:
		return a.handleAccounts(msg)

	case flairsMsg:
		return a.handleFlairs(msg)

	case pageMsg:
		return a.handlePage(msg)

	case publishDoneMsg:
		return a.handlePublishDone(msg)

	case deleteDoneMsg:
		return a.handleDeleteDone(msg)

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}
	switch a.state {
	case stateAccountPicker:
		return a.handleAccountPickerKey(msg)
	case stateDeleteConfirm:
		return a.handleDeleteConfirmKey(msg)
	case stateHelp:
		switch msg.String() {
		case "esc", "q", "?":
			a.state = statePartBoard
		}
		return a, nil
	}
	if a.boardFocus == focusCaption {
		return a.handleCaptionKey(msg)
	}
	return a.handleBoardKey(msg)
}

func (a *App) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := a.orch.Entries()
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "?":
		a.state = stateHelp
	case "up", "k":
		if a.partCursor > 0 {
			a.partCursor--
			a.mediaCursor = 0
		}
	case "down", "j":
		if a.partCursor < len(entries)-1 {
			a.partCursor++
			a.mediaCursor = 0
		}
	case "left", "h":
		if a.mediaCursor > 0 {
			a.mediaCursor--
		}
	case "right", "l":
		if entry, ok := a.focusedEntry(); ok && a.mediaCursor < len(entry.Part.Media)-1 {
			a.mediaCursor++
		}
	case " ":
		if entry, ok := a.focusedEntry(); ok && a.mediaCursor < len(entry.Part.Media) {
			a.orch.ToggleMedia(entry.Part.Key, entry.Part.Media[a.mediaCursor])
		}
	case "x":
		if entry, ok := a.focusedEntry(); ok && a.mediaCursor < len(entry.Part.Media) {
			a.deleteKey = entry.Part.Key
			a.deleteItem = entry.Part.Media[a.mediaCursor]
			a.state = stateDeleteConfirm
		}
	case "enter":
		return a, a.publishFocused()
	case "c":
		if entry, ok := a.focusedEntry(); ok {
			if a.orch.CancelPublish(entry.Part.Key) {
				a.setStatus(fmt.Sprintf("Canceled publish of %s", entry.Part.Key))
			}
		}
	case "r":
		return a, a.beginRefresh()
	case "m":
		return a, a.beginLoadMore()
	case "a":
		return a.openAccountPicker()
	case "f":
		a.cycleFlair()
	case "n":
		if draft, ok := a.focusedDraft(); ok {
			draft.nsfw = !draft.nsfw
		}
	case "tab":
		if draft, ok := a.focusedDraft(); ok {
			a.boardFocus = focusCaption
			draft.caption.Focus()
			return a, textinput.Blink
		}
	}
	return a, nil
}

func (a *App) handleCaptionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	draft, ok := a.focusedDraft()
	if !ok {
		a.boardFocus = focusParts
		return a, nil
	}
	switch msg.String() {
	case "esc", "tab":
		draft.caption.Blur()
		a.boardFocus = focusParts
		return a, nil
	case "enter":
		draft.caption.Blur()
		a.boardFocus = focusParts
		return a, a.publishFocused()
	}
	var cmd tea.Cmd
	draft.caption, cmd = draft.caption.Update(msg)
	return a, cmd
}

func (a *App) handleAccountPickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.state = statePartBoard
		return a, nil
	case "enter":
		item, ok := a.accountMenu.SelectedItem().(accountItem)
		if !ok {
			return a, nil
		}
		return a.selectAccount(string(item))
	}
	var cmd tea.Cmd
	a.accountMenu, cmd = a.accountMenu.Update(msg)
	return a, cmd
}

func (a *App) handleDeleteConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		key, item := a.deleteKey, a.deleteItem
		a.deleteKey, a.deleteItem = "", ""
		a.state = statePartBoard
		a.setStatus(fmt.Sprintf("Deleting %s…", item))
		return a, a.deleteMedia(key, item)
	case "n", "esc":
		a.deleteKey, a.deleteItem = "", ""
		a.state = statePartBoard
	}
	return a, nil
}

// --- message handlers ---

func (a *App) handleAccounts(msg accountsMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.setStatus(fmt.Sprintf("Accounts unavailable: %v", msg.err))
		a.logError("Fetch accounts: %v", msg.err)
		return a, nil
	}
	selected := a.orch.SetAccounts(msg.accounts, a.config.DefaultAccount())
	items := make([]list.Item, len(msg.accounts))
	for i, name := range msg.accounts {
		items[i] = accountItem(name)
	}
	a.accountMenu.SetItems(items)
	if selected == "" {
		a.setStatus("No accounts configured on the server")
		return a, nil
	}
	a.setStatus(fmt.Sprintf("Account %s", selected))
	return a, a.beginRefresh()
}

func (a *App) handleFlairs(msg flairsMsg) (tea.Model, tea.Cmd) {
	// A stale catalog for a previously selected account is dropped.
	if msg.account != a.orch.Account() {
		return a, nil
	}
	if msg.err != nil {
		a.orch.FailCatalog(msg.err)
		a.setStatus(fmt.Sprintf("Flairs unavailable: %v", msg.err))
		return a, nil
	}
	a.orch.SetFlairs(msg.flairs)
	for _, draft := range a.drafts {
		if draft.flairIdx >= len(msg.flairs) {
			draft.flairIdx = -1
		}
	}
	return a, nil
}

func (a *App) handlePage(msg pageMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.orch.FailLoad(msg.page, msg.err)
		a.setStatus(a.orch.Err())
		return a, nil
	}
	if !a.orch.ApplyPage(msg.page, msg.subs, msg.hasMore) {
		return a, nil
	}
	a.reconcileDrafts()
	a.clampCursors()
	a.setStatus(fmt.Sprintf("Page %d · %d part(s)", a.orch.Page(), a.orch.Len()))
	return a, nil
}

func (a *App) handlePublishDone(msg publishDoneMsg) (tea.Model, tea.Cmd) {
	reload := a.orch.FinishPublish(msg.key, msg.url, msg.err)
	switch {
	case reload:
		a.setStatus(fmt.Sprintf("Published %s · %s", msg.key, msg.url))
		a.logInfo("Published %s · %s", msg.key, msg.url)
		return a, a.beginReload()
	case msg.err != nil && !errors.Is(msg.err, context.Canceled):
		a.setStatus(fmt.Sprintf("Publish %s failed: %v", msg.key, msg.err))
		a.logError("Publish %s: %v", msg.key, msg.err)
	}
	return a, nil
}

func (a *App) handleDeleteDone(msg deleteDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.setStatus(fmt.Sprintf("Delete %s failed: %v", msg.item, msg.err))
		a.logError("Delete %s: %v", msg.item, msg.err)
		return a, nil
	}
	a.orch.MediaDeleted(msg.key, msg.item)
	a.reconcileDrafts()
	a.clampCursors()
	a.setStatus(fmt.Sprintf("Deleted %s", msg.item))
	return a, nil
}

// --- operations ---

func (a *App) beginRefresh() tea.Cmd {
	page, err := a.orch.BeginRefresh()
	if err != nil {
		a.setStatus(gateMessage(err))
		return nil
	}
	a.partCursor, a.mediaCursor = 0, 0
	a.setStatus("Refreshing…")
	return tea.Batch(a.fetchPage(page), a.fetchFlairs(a.orch.Account()))
}

// beginReload re-fetches page 1 after a publish without clearing the board,
// so the surviving parts stay visible until the fresh page lands.
func (a *App) beginReload() tea.Cmd {
	page, err := a.orch.BeginReload()
	if err != nil {
		return nil
	}
	return a.fetchPage(page)
}

func (a *App) beginLoadMore() tea.Cmd {
	page, err := a.orch.BeginLoadMore()
	if err != nil {
		a.setStatus(gateMessage(err))
		return nil
	}
	a.setStatus(fmt.Sprintf("Loading page %d…", page))
	return a.fetchPage(page)
}

func (a *App) openAccountPicker() (tea.Model, tea.Cmd) {
	if len(a.orch.Accounts()) == 0 {
		a.setStatus("No accounts to choose from")
		return a, nil
	}
	a.state = stateAccountPicker
	if a.width > 0 && a.height > 0 {
		a.accountMenu.SetSize(max(0, a.width-6), max(0, a.height-10))
	}
	return a, nil
}

func (a *App) selectAccount(name string) (tea.Model, tea.Cmd) {
	if err := a.orch.SelectAccount(name); err != nil {
		a.setStatus(gateMessage(err))
		a.state = statePartBoard
		return a, nil
	}
	a.state = statePartBoard
	a.drafts = map[string]*partDraft{}
	a.partCursor, a.mediaCursor = 0, 0
	a.setStatus(fmt.Sprintf("Account %s", name))
	a.logInfo("Account switched to %s", name)
	return a, a.beginRefresh()
}

func (a *App) publishFocused() tea.Cmd {
	entry, ok := a.focusedEntry()
	if !ok {
		return nil
	}
	draft := a.ensureDraft(entry.Part)
	meta := upload.Metadata{
		Caption: strings.TrimSpace(draft.caption.Value()),
		FlairID: a.flairID(draft),
		NSFW:    draft.nsfw,
	}
	job, err := a.orch.BeginPublish(context.Background(), entry.Part.Key, meta)
	if err != nil {
		a.setStatus(gateMessage(err))
		return nil
	}
	a.setStatus(fmt.Sprintf("Publishing %s…", job.Key))
	in := api.PublishInput{
		Account: a.orch.Account(),
		Owner:   job.Owner,
		Caption: meta.Caption,
		FlairID: meta.FlairID,
		NSFW:    meta.NSFW,
		Media:   job.Media,
	}
	gw := a.gateway
	return func() tea.Msg {
		url, err := gw.PublishPart(job.Ctx, in)
		return publishDoneMsg{key: job.Key, url: url, err: err}
	}
}

func (a *App) fetchAccounts() tea.Cmd {
	gw := a.gateway
	return func() tea.Msg {
		accounts, err := gw.Accounts(context.Background())
		return accountsMsg{accounts: accounts, err: err}
	}
}

func (a *App) fetchFlairs(account string) tea.Cmd {
	if account == "" {
		return nil
	}
	gw := a.gateway
	return func() tea.Msg {
		flairs, err := gw.Flairs(context.Background(), account)
		return flairsMsg{account: account, flairs: flairs, err: err}
	}
}

func (a *App) fetchPage(page int) tea.Cmd {
	gw := a.gateway
	size := a.orch.PageSize()
	return func() tea.Msg {
		subs, hasMore, err := gw.PendingPage(context.Background(), page, size)
		return pageMsg{page: page, subs: subs, hasMore: hasMore, err: err}
	}
}

func (a *App) deleteMedia(key, item string) tea.Cmd {
	gw := a.gateway
	return func() tea.Msg {
		err := gw.DeleteMedia(context.Background(), item)
		return deleteDoneMsg{key: key, item: item, err: err}
	}
}

// --- drafts and cursors ---

func (a *App) focusedEntry() (orchestrator.Entry, bool) {
	entries := a.orch.Entries()
	if a.partCursor < 0 || a.partCursor >= len(entries) {
		return orchestrator.Entry{}, false
	}
	return entries[a.partCursor], true
}

func (a *App) focusedDraft() (*partDraft, bool) {
	entry, ok := a.focusedEntry()
	if !ok {
		return nil, false
	}
	return a.ensureDraft(entry.Part), true
}

func (a *App) ensureDraft(part *queue.Part) *partDraft {
	if draft, ok := a.drafts[part.Key]; ok {
		return draft
	}
	ti := textinput.New()
	ti.Placeholder = strings.Trim(part.TitlePreview, `"`)
	ti.CharLimit = captionCharLimit
	ti.Width = 48
	draft := &partDraft{caption: ti, flairIdx: -1}
	a.drafts[part.Key] = draft
	return draft
}

// reconcileDrafts drops drafts whose part left the board. Drafts for new
// parts are created lazily when the part gains focus.
func (a *App) reconcileDrafts() {
	for key := range a.drafts {
		if _, ok := a.orch.Entry(key); !ok {
			delete(a.drafts, key)
		}
	}
}

func (a *App) clampCursors() {
	n := a.orch.Len()
	if a.partCursor >= n {
		a.partCursor = max(0, n-1)
	}
	if entry, ok := a.focusedEntry(); ok {
		if a.mediaCursor >= len(entry.Part.Media) {
			a.mediaCursor = max(0, len(entry.Part.Media)-1)
		}
	} else {
		a.mediaCursor = 0
	}
}

func (a *App) cycleFlair() {
	draft, ok := a.focusedDraft()
	if !ok {
		return
	}
	flairs := a.orch.Flairs()
	if len(flairs) == 0 {
		a.setStatus("No flairs for this account")
		return
	}
	draft.flairIdx = (draft.flairIdx + 1) % len(flairs)
}

func (a *App) flairID(draft *partDraft) string {
	flairs := a.orch.Flairs()
	if draft.flairIdx < 0 || draft.flairIdx >= len(flairs) {
		return ""
	}
	return flairs[draft.flairIdx].ID
}

func gateMessage(err error) string {
	switch {
	case errors.Is(err, orchestrator.ErrUploadInFlight):
		return "Blocked: a publish is in progress"
	case errors.Is(err, orchestrator.ErrNoAccount):
		return "Select an account first"
	case errors.Is(err, queue.ErrLoadInFlight):
		return "Already loading"
	case errors.Is(err, queue.ErrNoMorePages):
		return "No more pages"
	case errors.Is(err, upload.ErrNoSelection):
		return "Nothing selected to publish"
	case errors.Is(err, upload.ErrNoFlair):
		return "Pick a flair first (f)"
	case errors.Is(err, upload.ErrInFlight):
		return "This part is already publishing"
	default:
		return err.Error()
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
