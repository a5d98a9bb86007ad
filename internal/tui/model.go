package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ziadkadry99/treewatch/internal/session"
	"github.com/ziadkadry99/treewatch/internal/store"
	"github.com/ziadkadry99/treewatch/internal/tree"
)

// Source is the session the viewer reads from and drives.
type Source interface {
	State() store.State
	Hierarchy() *tree.Hierarchy
	Node(id string) (tree.Node, bool)
	Select(id string) error
	Selected() (string, bool)
	Run(ctx context.Context, question string, ro session.RunOptions) (session.Ticket, error)
	Compare(ctx context.Context, question string, ro session.RunOptions) (session.Ticket, error)
}

// refreshMsg tells the model the session changed.
type refreshMsg struct{}

// runStartedMsg carries the outcome of a run request typed into the viewer.
type runStartedMsg struct {
	ticket session.Ticket
	err    error
}

type inputMode int

const (
	inputNone inputMode = iota
	inputRun
	inputCompare
)

// Model is the viewer state.
type Model struct {
	src     Source
	changes <-chan struct{}
	done    <-chan struct{}

	keys   KeyMap
	styles Styles
	help   help.Model
	input  textinput.Model
	detail viewport.Model

	width  int
	height int
	ready  bool

	state    store.State
	lines    []Line
	cursor   int
	cursorID string

	mode     inputMode
	notice   string
	showHelp bool
}

// NewModel creates a viewer over src. It refreshes whenever bridge
// signals a change.
func NewModel(src Source, bridge *Bridge) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask the tree search a question"
	ti.CharLimit = 1024
	ti.Width = 60

	m := Model{
		src:    src,
		keys:   DefaultKeyMap(),
		styles: DefaultStyles(),
		help:   help.New(),
		input:  ti,
		detail: viewport.New(40, 10),
	}
	if bridge != nil {
		m.changes = bridge.changed
		m.done = bridge.done
	}
	return m.refresh()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.waitForChange()
}

func (m Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	changes, done := m.changes, m.done
	return func() tea.Msg {
		select {
		case <-changes:
			return refreshMsg{}
		case <-done:
			return nil
		}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		return m.resize(), nil

	case refreshMsg:
		return m.refresh(), m.waitForChange()

	case runStartedMsg:
		if msg.err != nil {
			m.notice = "run failed: " + msg.err.Error()
		} else {
			m.notice = "started " + msg.ticket.Request.RequestID
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m.resize(), nil

	case key.Matches(msg, m.keys.Up):
		return m.moveCursor(m.cursor - 1), nil

	case key.Matches(msg, m.keys.Down):
		return m.moveCursor(m.cursor + 1), nil

	case key.Matches(msg, m.keys.Top):
		return m.moveCursor(0), nil

	case key.Matches(msg, m.keys.Bottom):
		return m.moveCursor(len(m.lines) - 1), nil

	case key.Matches(msg, m.keys.Select):
		if m.cursorID == "" {
			return m, nil
		}
		if err := m.src.Select(m.cursorID); err != nil {
			m.notice = err.Error()
		}
		return m.updateDetail(), nil

	case key.Matches(msg, m.keys.Run):
		m.mode = inputRun
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Compare):
		m.mode = inputCompare
		cmd := m.input.Focus()
		return m, cmd
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = inputNone
		m.input.Blur()
		m.input.Reset()
		return m, nil

	case tea.KeyEnter:
		question := m.input.Value()
		compare := m.mode == inputCompare
		m.mode = inputNone
		m.input.Blur()
		m.input.Reset()
		return m, m.startRun(question, compare)

	case tea.KeyCtrlC:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) startRun(question string, compare bool) tea.Cmd {
	src := m.src
	return func() tea.Msg {
		var (
			t   session.Ticket
			err error
		)
		if compare {
			t, err = src.Compare(context.Background(), question, session.RunOptions{})
		} else {
			t, err = src.Run(context.Background(), question, session.RunOptions{})
		}
		return runStartedMsg{ticket: t, err: err}
	}
}

// refresh re-reads the session and keeps the cursor on the same node when
// it still exists.
func (m Model) refresh() Model {
	m.state = m.src.State()
	m.lines = Lines(m.src.Hierarchy())

	idx := 0
	for i, l := range m.lines {
		if l.Vertex.ID == m.cursorID {
			idx = i
			break
		}
	}
	return m.moveCursor(idx)
}

func (m Model) moveCursor(idx int) Model {
	if idx >= len(m.lines) {
		idx = len(m.lines) - 1
	}
	if idx < 0 {
		idx = 0
	}
	m.cursor = idx
	m.cursorID = ""
	if idx < len(m.lines) {
		m.cursorID = m.lines[idx].Vertex.ID
	}
	return m.updateDetail()
}

// updateDetail shows the selected node, or the node under the cursor when
// nothing is selected.
func (m Model) updateDetail() Model {
	id, ok := m.src.Selected()
	if !ok {
		id = m.cursorID
	}
	if n, found := m.src.Node(id); found {
		m.detail.SetContent(detailText(n))
	} else {
		m.detail.SetContent(m.styles.Muted.Render("Nothing selected."))
	}
	return m
}

func (m Model) layout() (treeWidth, bodyHeight int) {
	treeWidth = m.width * 3 / 5
	bodyHeight = m.height - 2 - 2 // status line, footer, pane borders
	if showsComparison(m.state) {
		bodyHeight -= 6
	} else if m.state.Result != nil || m.state.Provisional != nil {
		bodyHeight -= 5
	}
	if m.showHelp {
		bodyHeight -= 3
	}
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	return treeWidth, bodyHeight
}

func (m Model) resize() Model {
	treeWidth, bodyHeight := m.layout()
	m.detail.Width = m.width - treeWidth - 4
	m.detail.Height = bodyHeight
	return m
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	treeWidth, bodyHeight := m.layout()
	header := m.styles.Title.Render("treewatch") + "  " + m.statusLine()

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.styles.Pane.Width(treeWidth-4).Height(bodyHeight).Render(m.treeView(bodyHeight)),
		m.styles.Pane.Width(m.width-treeWidth-4).Height(bodyHeight).Render(m.detail.View()),
	)

	parts := []string{header, body}
	if showsComparison(m.state) {
		parts = append(parts, m.comparisonView(m.width))
	} else if r := m.resultView(m.width); r != "" {
		parts = append(parts, r)
	}

	switch m.mode {
	case inputRun:
		parts = append(parts, "Run: "+m.input.View())
	case inputCompare:
		parts = append(parts, "Compare: "+m.input.View())
	default:
		parts = append(parts, m.help.View(m.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
