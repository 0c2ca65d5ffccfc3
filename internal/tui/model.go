// Package tui is a terminal viewer for the feed: one column at a time,
// scrolled with the keyboard, with optimistic likes and a comment panel.
//
// The bubbletea Update loop is the event loop. Collaborator calls run as
// commands through Dispatcher and their completions re-enter Update.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pawelekbyra/gridfeed/internal/feed"
	"github.com/pawelekbyra/gridfeed/internal/model"
)

const defaultRows = 10

// Model is the viewer state. Use it through a pointer.
type Model struct {
	ctl    *feed.Controller
	disp   *Dispatcher
	extent int

	position     int
	width        int
	height       int
	showComments bool
	status       string
	err          error
	unsubscribe  func()
}

// NewModel creates a viewer for ctl. disp must be the dispatcher ctl was
// built with. extent is the scroll distance of one item.
func NewModel(ctl *feed.Controller, disp *Dispatcher, extent int) *Model {
	if extent <= 0 {
		extent = 1
	}
	m := &Model{ctl: ctl, disp: disp, extent: extent}
	m.unsubscribe = ctl.Subscribe(m.onEvent)
	return m
}

// Run starts a full-screen program for m and blocks until it exits.
func Run(m *Model) error {
	defer m.unsubscribe()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// Init requests the column list.
func (m *Model) Init() tea.Cmd {
	m.ctl.LoadColumns()
	m.status = "loading columns"
	return m.disp.Flush()
}

// Update handles keys and call completions.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case callDoneMsg:
		msg.done(msg.err)
		if m.ctl.Active() < 0 {
			if cols := m.ctl.Columns(); len(cols) > 0 {
				m.selectColumn(cols[0])
			}
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "down", "j":
			m.scrollTo(m.position + m.extent)
		case "up", "k":
			m.scrollTo(m.position - m.extent)
		case "right", "l":
			m.stepColumn(1)
		case "left", "h":
			m.stepColumn(-1)
		case " ", "enter":
			m.like()
		case "c":
			m.toggleComments()
		case "r":
			if m.ctl.Active() >= 0 {
				m.ctl.Reload(m.ctl.Active())
				m.position = 0
				m.status = "reloading"
			}
		}
	}
	return m, m.disp.Flush()
}

func (m *Model) onEvent(ev feed.Event) {
	switch ev.Kind {
	case feed.EventColumnsLoaded:
		m.status = fmt.Sprintf("%d columns", ev.Count)
	case feed.EventColumnsFailed, feed.EventFetchFailed, feed.EventCommentsFailed:
		m.err = ev.Err
	case feed.EventPageMerged:
		m.err = nil
	case feed.EventLooped:
		if ev.Column == m.ctl.Active() {
			m.position = ev.Position
			m.status = fmt.Sprintf("looping %d items", ev.Count)
		}
	case feed.EventMutation:
		if ev.Err != nil {
			m.err = ev.Err
		}
	}
}

func (m *Model) selectColumn(column int) {
	// Reset first: re-entering a looped column emits EventLooped with the
	// new position from inside SelectColumn.
	m.position = 0
	if err := m.ctl.SelectColumn(column); err != nil {
		m.err = err
		return
	}
	if pos, looped := m.ctl.Measure(m.extent); looped {
		m.position = pos
	}
	m.status = fmt.Sprintf("column %d", column)
}

func (m *Model) stepColumn(delta int) {
	cols := m.ctl.Columns()
	if len(cols) == 0 {
		return
	}
	idx := 0
	for i, c := range cols {
		if c == m.ctl.Active() {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(cols)) % len(cols)
	m.selectColumn(cols[idx])
}

func (m *Model) scrollTo(position int) {
	if position < 0 {
		position = 0
	}
	if n := len(m.ctl.RenderSequence()); n > 0 && position > (n-1)*m.extent {
		position = (n - 1) * m.extent
	}
	m.position = position
	if jump, ok := m.ctl.OnScroll(position); ok {
		m.position = jump.To
	}
}

// current returns the item under the cursor.
func (m *Model) current() (model.GridItem, bool) {
	seq := m.ctl.RenderSequence()
	idx := m.position / m.extent
	if idx < 0 || idx >= len(seq) {
		return model.GridItem{}, false
	}
	return seq[idx], true
}

func (m *Model) like() {
	item, ok := m.current()
	if !ok {
		return
	}
	if err := m.ctl.ToggleLike(item.ID); err != nil {
		m.err = err
	}
}

func (m *Model) toggleComments() {
	m.showComments = !m.showComments
	if !m.showComments {
		return
	}
	if item, ok := m.current(); ok {
		if err := m.ctl.LoadComments(item.ID); err != nil {
			m.err = err
		}
	}
}

func (m *Model) rows() int {
	if m.height > 6 {
		return m.height - 5
	}
	return defaultRows
}

// View renders the active column around the cursor.
func (m *Model) View() string {
	var b strings.Builder

	active := m.ctl.Active()
	if active < 0 {
		b.WriteString(titleStyle.Render("feedgrid") + "\n")
		b.WriteString(mutedStyle.Render(m.status) + "\n")
		m.footer(&b)
		return b.String()
	}

	st := m.ctl.State(active)
	header := fmt.Sprintf("feedgrid  column %d", active)
	b.WriteString(titleStyle.Render(header))
	b.WriteString("  " + stateStyle.Render(st.State))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d loaded", st.Loaded)))
	if st.Fetching {
		b.WriteString(pendingStyle.Render("  fetching"))
	}
	b.WriteString("\n")

	seq := m.ctl.RenderSequence()
	if len(seq) == 0 {
		b.WriteString(mutedStyle.Render("  (no items yet)") + "\n")
	}
	cur := m.position / m.extent
	start := cur - 1
	if start < 0 {
		start = 0
	}
	end := start + m.rows()
	if end > len(seq) {
		end = len(seq)
	}
	for i := start; i < end; i++ {
		line := renderItem(seq[i])
		if i == cur {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	if m.showComments {
		m.comments(&b)
	}
	m.footer(&b)
	return b.String()
}

func renderItem(it model.GridItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s row %-4d %-5s", it.ID, it.Coordinate.Row, it.Kind)
	likes := fmt.Sprintf("likes %d", it.LikeCount)
	if it.LikedByViewer {
		likes = likedStyle.Render(likes + " *")
	}
	b.WriteString("  " + likes)
	fmt.Fprintf(&b, "  comments %d", it.CommentCount)
	if it.Access == model.AccessSecret {
		b.WriteString("  " + secretStyle.Render("[secret]"))
	}
	return b.String()
}

func (m *Model) comments(b *strings.Builder) {
	item, ok := m.current()
	if !ok {
		return
	}
	b.WriteString(titleStyle.Render("comments on "+item.ID) + "\n")
	list := m.ctl.Comments(item.ID)
	if len(list) == 0 {
		b.WriteString(mutedStyle.Render("  (none loaded)") + "\n")
	}
	for _, c := range list {
		line := fmt.Sprintf("  %s: %s  (%d)", c.Author.DisplayName, c.Text, c.LikeCount())
		if c.Pending {
			line = pendingStyle.Render(line + " sending")
		}
		b.WriteString(line + "\n")
		for _, r := range c.Replies {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("    %s: %s", r.Author.DisplayName, r.Text)) + "\n")
		}
	}
}

func (m *Model) footer(b *strings.Builder) {
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString(mutedStyle.Render(m.status) + "\n")
	}
	if n := m.ctl.Pending(); n > 0 {
		b.WriteString(pendingStyle.Render(fmt.Sprintf("%d pending", n)) + "\n")
	}
	b.WriteString(mutedStyle.Render("j/k scroll  h/l column  space like  c comments  r reload  q quit"))
}
