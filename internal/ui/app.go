package ui

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/lantern/internal/filter"
	"github.com/five82/lantern/internal/format"
	"github.com/five82/lantern/internal/prefs"
	"github.com/five82/lantern/internal/session"
	"github.com/five82/lantern/internal/state"
)

// chromeLines is the number of rows taken by the header and status bar.
const chromeLines = 2

// inputMode selects which text input, if any, has focus.
type inputMode int

const (
	inputNone inputMode = iota
	inputFilter
	inputSearch
)

// Options configures the UI.
type Options struct {
	Context   context.Context
	Session   *session.Session
	PollTick  time.Duration
	Prefs     prefs.Prefs
	PrefsPath string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx       context.Context
	session   *session.Session
	store     *state.Store
	prefs     prefs.Prefs
	prefsPath string
	pollTick  time.Duration
	keys      keyMap

	theme    Theme
	width    int
	height   int
	ready    bool
	showHelp bool

	snapshot    state.Snapshot
	lastUpdated time.Time

	// Line pane
	pane    viewport.Model
	offset  int
	follow  bool
	total   int
	lines   []format.ParsedLine
	summary filter.Summary
	loadErr error
	loadSeq uint64

	// Filters
	exprSpec   filter.Spec
	exprText   string
	levelField string
	level      string
	filterErr  string

	// Search
	searchRegex *regexp.Regexp
	searchQuery string
	searchNote  string
	matchLine   int

	input       inputMode
	filterInput textinput.Model
	searchInput textinput.Model
}

// New creates the viewer model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = time.Second
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	fi := textinput.New()
	fi.Prompt = "filter: "
	fi.Placeholder = "level=ERROR,WARN msg~timeout"
	fi.CharLimit = 200

	si := textinput.New()
	si.Prompt = "/"
	si.Placeholder = "regex"
	si.CharLimit = 100

	var store *state.Store
	if opts.Session != nil {
		store = opts.Session.Store()
	}

	return Model{
		ctx:         ctx,
		session:     opts.Session,
		store:       store,
		prefs:       opts.Prefs,
		prefsPath:   prefsPath,
		pollTick:    pollTick,
		keys:        defaultKeyMap(),
		theme:       GetTheme(opts.Prefs.Theme),
		offset:      1,
		follow:      opts.Prefs.Follow,
		filterInput: fi,
		searchInput: si,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.pane = viewport.New(m.width, m.rows())
		m.ready = true
		return m, m.reload()

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		prevTotal := m.snapshot.Status.TotalLines
		m.snapshot = state.Snapshot(msg)
		m.lastUpdated = time.Now()
		if m.snapshot.Status.TotalLines != prevTotal {
			m.refreshLevelField()
			return m, m.reload()
		}
		return m, nil

	case windowMsg:
		if msg.seq != m.loadSeq {
			return m, nil
		}
		m.loadErr = msg.err
		if msg.err == nil {
			m.offset = msg.offset
			m.total = msg.total
			m.lines = msg.lines
			m.summary = msg.summary
		}
		m.renderPane()
		return m, nil

	case searchMsg:
		switch {
		case msg.err != nil:
			m.searchNote = msg.err.Error()
		case !msg.found:
			m.searchNote = "no more matches"
		default:
			m.searchNote = ""
			m.matchLine = msg.line
			m.follow = false
			m.offset = max(1, msg.line-m.rows()/2)
			return m, m.reload()
		}
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.pane.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) rows() int {
	return max(1, m.height-chromeLines)
}

// spec combines the expression filter with the level filter.
func (m Model) spec() filter.Spec {
	if m.level == "" || m.levelField == "" {
		return m.exprSpec
	}
	spec := filter.Spec{}
	maps.Copy(spec, m.exprSpec)
	spec[m.levelField] = filter.OneOf{Values: []string{m.level}}
	return spec
}

// reload requests the current window. Responses to earlier requests are
// dropped when they arrive.
func (m *Model) reload() tea.Cmd {
	if m.session == nil || !m.ready {
		return nil
	}
	m.loadSeq++
	return loadWindowCmd(m.ctx, m.session, windowQuery{
		seq:    m.loadSeq,
		offset: m.offset,
		rows:   m.rows(),
		follow: m.follow,
		spec:   m.spec(),
	})
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	switch m.input {
	case inputFilter:
		return m.handleFilterInput(msg)
	case inputSearch:
		return m.handleSearchInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		m.renderPane()
		return m, nil

	case key.Matches(msg, m.keys.ToggleFollow):
		m.follow = !m.follow
		m.prefs.Follow = m.follow
		m.savePrefs()
		return m, m.reload()

	case key.Matches(msg, m.keys.Filter):
		m.input = inputFilter
		m.filterInput.SetValue(m.exprText)
		m.filterInput.CursorEnd()
		return m, m.filterInput.Focus()

	case key.Matches(msg, m.keys.CycleLevel):
		m.cycleLevel()
		return m, m.reload()

	case key.Matches(msg, m.keys.Search):
		m.input = inputSearch
		m.searchInput.SetValue("")
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.NextMatch):
		return m, m.searchFrom(true)

	case key.Matches(msg, m.keys.PrevMatch):
		return m, m.searchFrom(false)

	case key.Matches(msg, m.keys.Escape):
		m.clearFilters()
		return m, m.reload()
	}

	return m.handleScrollKey(msg)
}

func (m Model) handleScrollKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.rows()
	switch {
	case key.Matches(msg, m.keys.Down):
		m.offset = m.nextOffset(1)
	case key.Matches(msg, m.keys.Up):
		m.offset--
	case key.Matches(msg, m.keys.PageDown):
		m.offset = m.nextOffset(rows)
	case key.Matches(msg, m.keys.PageUp):
		m.offset -= rows
	case key.Matches(msg, m.keys.HalfPageDown):
		m.offset = m.nextOffset(rows / 2)
	case key.Matches(msg, m.keys.HalfPageUp):
		m.offset -= rows / 2
	case key.Matches(msg, m.keys.Top):
		m.offset = 1
	case key.Matches(msg, m.keys.Bottom):
		m.follow = true
		return m, m.reload()
	default:
		return m, nil
	}
	m.offset = max(1, m.offset)
	m.follow = false
	return m, m.reload()
}

// nextOffset moves down by n visible lines. With a filter active the raw
// line numbers are not contiguous, so the target comes from the loaded window.
func (m Model) nextOffset(n int) int {
	n = max(n, 1)
	if len(m.lines) == 0 {
		return m.offset + n
	}
	if n < len(m.lines) {
		return m.lines[n].Number
	}
	return m.lines[len(m.lines)-1].Number + 1
}

func (m Model) handleFilterInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		text := strings.TrimSpace(m.filterInput.Value())
		spec, err := filter.ParseSpec(strings.Fields(text))
		if err != nil {
			m.filterErr = err.Error()
			return m, nil
		}
		m.exprSpec = spec
		m.exprText = text
		m.filterErr = ""
		m.input = inputNone
		m.filterInput.Blur()
		return m, m.reload()

	case key.Matches(msg, m.keys.Escape):
		m.input = inputNone
		m.filterErr = ""
		m.filterInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

func (m Model) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		query := m.searchInput.Value()
		m.input = inputNone
		m.searchInput.Blur()
		if query == "" {
			m.searchRegex = nil
			m.searchQuery = ""
			m.renderPane()
			return m, nil
		}
		re, err := regexp.Compile("(?i)" + query)
		if err != nil {
			m.searchNote = fmt.Sprintf("invalid search: %v", err)
			return m, nil
		}
		m.searchRegex = re
		m.searchQuery = query
		m.searchNote = ""
		m.matchLine = 0
		m.renderPane()
		return m, m.searchFrom(true)

	case key.Matches(msg, m.keys.Escape):
		m.input = inputNone
		m.searchInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// searchFrom looks for the next match after the last one found, or from the
// top of the pane when there is none yet.
func (m Model) searchFrom(forward bool) tea.Cmd {
	if m.searchRegex == nil || m.session == nil {
		return nil
	}
	from := m.matchLine
	if from == 0 {
		from = m.offset
		if forward {
			from--
		}
	}
	return searchCmd(m.ctx, m.session, m.searchRegex, from, forward)
}

func (m *Model) clearFilters() {
	m.exprSpec = nil
	m.exprText = ""
	m.level = ""
	m.filterErr = ""
	m.searchRegex = nil
	m.searchQuery = ""
	m.searchNote = ""
	m.matchLine = 0
}

// refreshLevelField picks the field the level filter applies to: a field
// named like a severity with enumerated values.
func (m *Model) refreshLevelField() {
	m.levelField = ""
	if m.session == nil {
		return
	}
	id := m.session.FormatID()
	if id == "" {
		return
	}
	for _, f := range m.session.Registry().Fields(id) {
		switch strings.ToLower(f.Name) {
		case "level", "severity", "loglevel", "priority":
			if len(f.Enum) > 0 {
				m.levelField = f.Name
				return
			}
		}
	}
}

// levels returns the values the level filter cycles through.
func (m Model) levels() []string {
	if m.session == nil || m.levelField == "" {
		return nil
	}
	def, ok := m.session.Registry().Get(m.session.FormatID())
	if !ok {
		return nil
	}
	f, ok := def.Field(m.levelField)
	if !ok {
		return nil
	}
	return f.Enum
}

func (m *Model) cycleLevel() {
	if m.levelField == "" {
		m.refreshLevelField()
	}
	levels := m.levels()
	if len(levels) == 0 {
		m.level = ""
		return
	}
	i := slices.Index(levels, m.level)
	if i == len(levels)-1 {
		m.level = ""
		return
	}
	m.level = levels[i+1]
}

func (m Model) handleTick() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	_ = prefs.Save(m.prefsPath, m.prefs)
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(opts Options) error {
	m := New(opts)
	m.refreshLevelField()
	ctx := m.ctx
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
