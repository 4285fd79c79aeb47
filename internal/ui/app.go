package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/dropwatch/internal/feed"
	"github.com/abelbrown/dropwatch/internal/render"
)

// Notice lifetimes.
const (
	SuccessNoticeTTL = 3 * time.Second
	ErrorNoticeTTL   = 5 * time.Second
)

// AppConfig holds the operations the App calls into. All of them are
// optional. Filter, Sort and Lookup are synchronous and never touch the
// network; Reload returns a command that starts a snapshot load.
type AppConfig struct {
	Filter func(term string) []feed.Post
	Sort   func(mode feed.SortMode) []feed.Post
	Lookup func(id string) (feed.Post, bool)
	Reload func() tea.Cmd

	Author   string          // card author label, DefaultAuthor when empty
	Renderer render.Renderer // link targets, render.Default when zero
	Now      func() time.Time
}

type toast struct {
	id   int
	kind NoticeKind
	text string
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the post store. It receives views via
// messages and via the AppConfig operations.
type App struct {
	cfg     AppConfig
	keys    keyMap
	help    help.Model
	search  textinput.Model
	spinner spinner.Model
	detail  viewport.Model

	posts    []feed.Post
	stats    feed.Stats
	hasStats bool
	cursor   int
	sortMode feed.SortMode // empty until a sort is applied after the last reset

	online   bool
	lastSync time.Time
	loading  bool

	searching  bool
	detailOpen bool
	detailID   string

	notice    *toast
	noticeSeq int

	width  int
	height int
	ready  bool
}

// NewApp creates an App wired to cfg.
func NewApp(cfg AppConfig) App {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search content or keywords"
	ti.CharLimit = 200

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SelectedMarker

	return App{
		cfg:     cfg,
		keys:    keys,
		help:    help.New(),
		search:  ti,
		spinner: s,
		detail:  viewport.New(0, 0),
		loading: true,
	}
}

// Init starts the spinner.
func (a App) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.help.Width = msg.Width
		a.search.Width = max(10, msg.Width-24)
		a.detail.Width = max(20, msg.Width-4)
		a.detail.Height = max(3, msg.Height-8)
		if a.detailOpen {
			a.refreshDetail()
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case ViewChanged:
		posts := msg.Posts
		if msg.Reset {
			a.search.SetValue("")
			a.sortMode = ""
			a.cursor = 0
			// Keys handled since the load committed may have narrowed the
			// store's view; reset it so the next sort starts from all posts.
			if a.cfg.Filter != nil {
				posts = a.cfg.Filter("")
			}
		}
		a.setPosts(posts)
		if a.detailOpen {
			a.refreshDetail()
		}
		return a, nil

	case StatsLoaded:
		a.stats = msg.Stats
		a.hasStats = true
		return a, nil

	case ConnectionChanged:
		a.online = msg.Online
		a.lastSync = time.Time{}
		return a, nil

	case LastSync:
		a.lastSync = msg.At
		return a, nil

	case LoadStarted:
		a.loading = true
		return a, nil

	case LoadFinished:
		a.loading = false
		return a, nil

	case Notice:
		return a, a.showNotice(msg)

	case noticeExpired:
		if a.notice != nil && a.notice.id == msg.id {
			a.notice = nil
		}
		return a, nil
	}

	return a, nil
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return a, tea.Quit
	}
	if a.detailOpen {
		return a.handleDetailKey(msg)
	}
	if a.searching {
		return a.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll

	case key.Matches(msg, a.keys.Search):
		a.searching = true
		return a, a.search.Focus()

	case key.Matches(msg, a.keys.Clear):
		if a.search.Value() != "" {
			a.search.SetValue("")
			a.applyFilter()
		}

	case key.Matches(msg, a.keys.Sort):
		a.applySort(nextSortMode(a.sortMode))
	case key.Matches(msg, a.keys.Newest):
		a.applySort(feed.SortNewest)
	case key.Matches(msg, a.keys.Popular):
		a.applySort(feed.SortPopular)
	case key.Matches(msg, a.keys.Recent):
		a.applySort(feed.SortRecent)

	case key.Matches(msg, a.keys.Down):
		if a.cursor < len(a.posts)-1 {
			a.cursor++
		}
	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(msg, a.keys.Top):
		a.cursor = 0
	case key.Matches(msg, a.keys.Bottom):
		if len(a.posts) > 0 {
			a.cursor = len(a.posts) - 1
		}

	case key.Matches(msg, a.keys.Open):
		if len(a.posts) > 0 {
			a.OpenDetail(a.posts[a.cursor].ID)
		}

	case key.Matches(msg, a.keys.Reload):
		if a.cfg.Reload != nil {
			a.loading = true
			return a, a.cfg.Reload()
		}
	}

	return a, nil
}

// handleSearchKey feeds keys to the search box. Every edit re-filters.
func (a App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyEnter:
		a.searching = false
		a.search.Blur()
		return a, nil
	}

	prev := a.search.Value()
	var cmd tea.Cmd
	a.search, cmd = a.search.Update(msg)
	if a.search.Value() != prev {
		a.applyFilter()
	}
	return a, cmd
}

func (a App) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter", "q", "backspace":
		a.detailOpen = false
		a.detailID = ""
		return a, nil
	}
	var cmd tea.Cmd
	a.detail, cmd = a.detail.Update(msg)
	return a, cmd
}

// OpenDetail opens the detail panel for id. The post is looked up in the
// full collection, so it need not be in the current view. An unknown id is
// ignored. Reports whether the panel opened.
func (a *App) OpenDetail(id string) bool {
	if a.cfg.Lookup == nil {
		return false
	}
	p, ok := a.cfg.Lookup(id)
	if !ok {
		return false
	}
	a.detailOpen = true
	a.detailID = p.ID
	a.detail.SetContent(RenderDetail(p, a.detail.Width, a.cardOptions()))
	a.detail.GotoTop()
	return true
}

// refreshDetail re-renders the open panel, closing it if the post is gone.
func (a *App) refreshDetail() {
	if a.cfg.Lookup == nil {
		return
	}
	p, ok := a.cfg.Lookup(a.detailID)
	if !ok {
		a.detailOpen = false
		a.detailID = ""
		return
	}
	a.detail.SetContent(RenderDetail(p, a.detail.Width, a.cardOptions()))
}

func (a *App) applyFilter() {
	if a.cfg.Filter == nil {
		return
	}
	a.setPosts(a.cfg.Filter(a.search.Value()))
	a.sortMode = ""
	a.cursor = 0
}

func (a *App) applySort(mode feed.SortMode) {
	if a.cfg.Sort == nil {
		return
	}
	a.setPosts(a.cfg.Sort(mode))
	a.sortMode = mode
	a.cursor = 0
}

func (a *App) setPosts(posts []feed.Post) {
	a.posts = posts
	if a.cursor >= len(a.posts) {
		a.cursor = max(0, len(a.posts)-1)
	}
}

func (a *App) showNotice(n Notice) tea.Cmd {
	a.noticeSeq++
	id := a.noticeSeq
	a.notice = &toast{id: id, kind: n.Kind, text: n.Text}

	ttl := SuccessNoticeTTL
	if n.Kind == NoticeError {
		ttl = ErrorNoticeTTL
	}
	return tea.Tick(ttl, func(time.Time) tea.Msg {
		return noticeExpired{id: id}
	})
}

// nextSortMode cycles newest, popular, recent.
func nextSortMode(m feed.SortMode) feed.SortMode {
	for i, mode := range feed.SortModes {
		if mode == m {
			return feed.SortModes[(i+1)%len(feed.SortModes)]
		}
	}
	return feed.SortModes[0]
}

func (a App) cardOptions() CardOptions {
	return CardOptions{Author: a.cfg.Author, Now: a.cfg.Now(), Renderer: a.cfg.Renderer}
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	top := strings.Join([]string{a.renderHeader(), " " + a.renderStats(), a.renderSearchLine()}, "\n")
	footer := a.renderFooter()

	bodyHeight := max(1, a.height-lipgloss.Height(top)-lipgloss.Height(footer))
	var body string
	if a.detailOpen {
		body = DetailFrame.Render(a.detail.View())
	} else {
		body = RenderList(a.posts, a.cursor, a.width, bodyHeight, a.cardOptions())
	}

	return top + "\n" + fitHeight(body, bodyHeight) + "\n" + footer
}

func (a App) renderHeader() string {
	title := Header.Render("dropwatch")
	if a.loading {
		title += a.spinner.View() + MetaItem.Render(" syncing")
	}
	status := RenderConnectionStatus(a.online, a.lastSync)
	gap := max(1, a.width-lipgloss.Width(title)-lipgloss.Width(status)-1)
	return title + strings.Repeat(" ", gap) + status
}

func (a App) renderStats() string {
	if !a.hasStats {
		return MetaItem.Render("stats pending")
	}
	return RenderStats(a.stats)
}

func (a App) renderSearchLine() string {
	count := FilterBarCount.Render(" " + RenderCount(len(a.posts)))
	if a.searching || a.search.Value() != "" {
		return FilterBar.Width(a.width).Render(a.search.View() + count)
	}
	return MetaItem.Render(" press / to search")
}

func (a App) renderFooter() string {
	var lines []string
	if a.notice != nil {
		style := SuccessToast
		if a.notice.kind == NoticeError {
			style = ErrorToast
		}
		lines = append(lines, style.Render(a.notice.text))
	}
	lines = append(lines, RenderStatusBar(len(a.posts), a.sortMode, a.help.ShortHelpView(a.keys.ShortHelp()), a.width))
	if a.help.ShowAll {
		lines = append(lines, a.help.FullHelpView(a.keys.FullHelp()))
	}
	return strings.Join(lines, "\n")
}

// fitHeight pads or cuts s to exactly h lines.
func fitHeight(s string, h int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > h {
		lines = lines[:h]
	}
	for len(lines) < h {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// Posts returns the current view (for testing).
func (a App) Posts() []feed.Post { return a.posts }

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int { return a.cursor }

// SortMode returns the active sort, empty after a reset.
func (a App) SortMode() feed.SortMode { return a.sortMode }

// SearchTerm returns the search box contents.
func (a App) SearchTerm() string { return a.search.Value() }

// Searching reports whether the search box has focus.
func (a App) Searching() bool { return a.searching }

// Online reports the connection indicator state.
func (a App) Online() bool { return a.online }

// LastSyncTime returns the last push time shown, zero if none.
func (a App) LastSyncTime() time.Time { return a.lastSync }

// Loading reports whether a load is in progress.
func (a App) Loading() bool { return a.loading }

// DetailID returns the id shown in the detail panel, empty when closed.
func (a App) DetailID() string { return a.detailID }

// NoticeText returns the visible toast, if any.
func (a App) NoticeText() (string, NoticeKind, bool) {
	if a.notice == nil {
		return "", 0, false
	}
	return a.notice.text, a.notice.kind, true
}
