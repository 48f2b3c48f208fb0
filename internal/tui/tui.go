package tui

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/portwatch/portwatch/internal/config"
	"github.com/portwatch/portwatch/internal/engine"
	"github.com/portwatch/portwatch/internal/output"
	"github.com/portwatch/portwatch/internal/source"
	"github.com/portwatch/portwatch/pkg/model"
	"github.com/rs/zerolog/log"
)

// Backend is the part of the engine the UI drives.
type Backend interface {
	Subscribe() (<-chan engine.Update, func())
	View() model.View
	SetView(model.View)
	TerminateProcess(ctx context.Context, pid int) model.ActionResult
	StopContainer(ctx context.Context, id string) model.ActionResult
	RestartContainer(ctx context.Context, id string) model.ActionResult
}

// Inspector looks up process details for the details panel.
type Inspector interface {
	Ancestry(ctx context.Context, pid int) []model.ProcessInfo
	Details(ctx context.Context, pid int) (model.ProcessInfo, error)
}

const (
	messageTTL    = 3 * time.Second
	actionTimeout = 15 * time.Second
)

type (
	tickMsg   time.Time
	updateMsg engine.Update
	actionMsg model.ActionResult
	// closedMsg means the engine stopped publishing.
	closedMsg struct{}
)

type detailsMsg struct {
	pid   int
	chain []model.ProcessInfo
	info  model.ProcessInfo
	err   error
}

type tuiModel struct {
	backend   Backend
	inspector Inspector
	cfg       *config.Config
	updates   <-chan engine.Update

	tab         tab
	table       table.Model
	filterInput textinput.Model
	filtering   bool
	rangeInput  textinput.Model
	editRange   bool
	theme       theme

	current model.View
	latest  engine.Update
	rows    []model.DisplayRow // visible rows, same order as the table
	paused  bool

	sortColumn int
	sortAsc    bool

	confirmingKill bool
	killRow        model.DisplayRow
	killWarning    string

	detailsKey   model.PortKey
	detailsText  string
	detailsChain []model.ProcessInfo

	message     string
	messageTime time.Time
	width       int
	height      int
}

func newModel(b Backend, in Inspector, cfg *config.Config, updates <-chan engine.Update) tuiModel {
	ti := textinput.New()
	ti.Placeholder = "port:8080 pid:42 proc:nginx docker:web proto:udp"
	ti.CharLimit = 64
	ti.Width = 48

	ri := textinput.New()
	ri.Placeholder = "1-1024"
	ri.CharLimit = 11
	ri.Width = 16

	m := tuiModel{
		backend:     b,
		inspector:   in,
		cfg:         cfg,
		updates:     updates,
		filterInput: ti,
		rangeInput:  ri,
		theme:       themeFor(cfg.Dark()),
		current:     b.View(),
		sortAsc:     true,
		height:      30,
	}
	m.initTable()
	return m
}

func (m *tuiModel) initTable() {
	widths := []int{6, 7, 24, 12, 8, 18, 22, 22, 7}
	columns := make([]table.Column, len(output.Columns))
	for i, title := range output.Columns {
		columns[i] = table.Column{Title: title, Width: widths[i]}
	}
	if m.sortColumn < len(columns) {
		indicator := " ↑"
		if !m.sortAsc {
			indicator = " ↓"
		}
		columns[m.sortColumn].Title += indicator
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(m.tableHeight()),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(m.theme.muted).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(m.theme.selectedFg).
		Background(m.theme.accent).
		Bold(true)
	t.SetStyles(s)

	m.table = t
	m.updateRows()
}

func (m tuiModel) tableHeight() int {
	if h := m.height - 14; h > 5 {
		return h
	}
	return 5
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(tick(), waitForUpdate(m.updates))
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForUpdate(ch <-chan engine.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return updateMsg(u)
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case updateMsg:
		if !m.paused {
			m.latest = engine.Update(msg)
			m.current = msg.View
			m.updateRows()
		}
		return m, waitForUpdate(m.updates)
	case closedMsg:
		return m, nil
	case actionMsg:
		m.setMessage(msg.Message)
		return m, nil
	case detailsMsg:
		m.applyDetails(msg)
		return m, nil
	case tickMsg:
		return m, tick()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(m.tableHeight())
		return m, nil
	}

	if m.confirmingKill {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "y", "Y":
				pid := m.killRow.PID
				m.confirmingKill = false
				m.killWarning = ""
				return m, m.runAction(func(ctx context.Context) model.ActionResult {
					return m.backend.TerminateProcess(ctx, pid)
				})
			case "n", "N", "esc":
				m.confirmingKill = false
				m.killWarning = ""
				return m, nil
			}
		}
		return m, nil
	}

	if m.editRange {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "esc":
				m.editRange = false
				m.rangeInput.Blur()
				return m, nil
			case "enter":
				from, to, err := config.ParseRange(m.rangeInput.Value())
				if err != nil {
					m.setMessage("Invalid range: " + err.Error())
					return m, nil
				}
				m.editRange = false
				m.rangeInput.Blur()
				m.current.From, m.current.To = from, to
				return m, m.setView(m.current)
			}
		}
		m.rangeInput, cmd = m.rangeInput.Update(msg)
		return m, cmd
	}

	if m.filtering {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "enter", "esc":
				m.filtering = false
				m.filterInput.Blur()
				m.updateRows()
				return m, nil
			}
		}
		m.filterInput, cmd = m.filterInput.Update(msg)
		m.updateRows()
		return m, cmd
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "1", "2", "3", "4":
			m.switchTab(tab(key.String()[0] - '1'))
			return m, nil
		case "tab":
			m.switchTab((m.tab + 1) % tab(len(tabNames)))
			return m, nil
		case "up", "down", "j", "k", "pgup", "pgdown", "home", "end":
			m.clearDetails()
		case "esc":
			m.clearDetails()
			return m, nil
		case "p":
			m.paused = !m.paused
			return m, nil
		case "/":
			m.filtering = true
			m.filterInput.Focus()
			return m, textinput.Blink
		case "s":
			m.sortColumn = (m.sortColumn + 1) % len(output.Columns)
			m.sortAsc = true
			m.initTable()
			return m, nil
		case "r":
			m.sortAsc = !m.sortAsc
			m.initTable()
			return m, nil
		case "u":
			m.current.OnlyUsed = !m.current.OnlyUsed
			used := m.current.OnlyUsed
			m.persistUI(func(u *config.UI) { u.OnlyUsed = used })
			return m, m.setView(m.current)
		case "d":
			m.current.OnlyDocker = !m.current.OnlyDocker
			docker := m.current.OnlyDocker
			m.persistUI(func(u *config.UI) { u.OnlyDocker = docker })
			return m, m.setView(m.current)
		case "g":
			m.editRange = true
			m.rangeInput.SetValue(fmt.Sprintf("%d-%d", m.current.From, m.current.To))
			m.rangeInput.CursorEnd()
			m.rangeInput.Focus()
			return m, textinput.Blink
		case "t":
			m.toggleTheme()
			return m, nil
		case "E":
			m.saveSnapshot()
			return m, nil
		case "o":
			if row, ok := m.selected(); ok {
				return m, openURL(output.URL(row.LocalPort))
			}
			return m, nil
		case "x":
			if row, ok := m.selected(); ok {
				if row.PID <= 0 {
					m.setMessage("No process owns this port.")
					return m, nil
				}
				m.confirmingKill = true
				m.killRow = row
				var chain []model.ProcessInfo
				if m.detailsKey == row.Key() {
					chain = m.detailsChain
				}
				m.killWarning = source.KillWarning(row, chain)
			}
			return m, nil
		case "S", "R":
			row, ok := m.selected()
			if !ok {
				return m, nil
			}
			if row.ContainerID == "" {
				m.setMessage("No container publishes this port.")
				return m, nil
			}
			id, restart := row.ContainerID, key.String() == "R"
			return m, m.runAction(func(ctx context.Context) model.ActionResult {
				if restart {
					return m.backend.RestartContainer(ctx, id)
				}
				return m.backend.StopContainer(ctx, id)
			})
		case "enter":
			if row, ok := m.selected(); ok {
				m.detailsKey = row.Key()
				m.detailsText = containerDetails(row)
				m.detailsChain = nil
				if row.PID > 0 {
					return m, m.loadDetails(row.PID)
				}
			}
			return m, nil
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *tuiModel) switchTab(t tab) {
	m.tab = t
	m.sortColumn = 0
	m.sortAsc = true
	m.clearDetails()
	m.initTable()
}

func (m *tuiModel) clearDetails() {
	m.detailsKey = model.PortKey{}
	m.detailsText = ""
	m.detailsChain = nil
}

func (m *tuiModel) setMessage(s string) {
	m.message = s
	m.messageTime = time.Now()
}

func (m tuiModel) selected() (model.DisplayRow, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return model.DisplayRow{}, false
	}
	return m.rows[i], true
}

func (m *tuiModel) updateRows() {
	rows, cells := visibleRows(m.latest.Rows, m.tab, parseFilter(m.filterInput.Value()), m.sortColumn, m.sortAsc)
	m.rows = rows
	tableRows := make([]table.Row, len(cells))
	for i, c := range cells {
		tableRows[i] = table.Row(c)
	}
	m.table.SetRows(tableRows)
	if m.table.Cursor() >= len(tableRows) && len(tableRows) > 0 {
		m.table.SetCursor(len(tableRows) - 1)
	}
}

// setView hands the new selection to the backend off the UI goroutine; the
// resulting row-set arrives as an updateMsg.
func (m tuiModel) setView(v model.View) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		b.SetView(v)
		return nil
	}
}

func openURL(url string) tea.Cmd {
	return func() tea.Msg {
		if err := openBrowser(url); err != nil {
			log.Warn().Err(err).Msg("open browser")
			return actionMsg{Message: "Could not open browser: " + err.Error()}
		}
		return actionMsg{OK: true, Message: "Opened " + url}
	}
}

func (m *tuiModel) persistUI(fn func(*config.UI)) {
	if err := m.cfg.UpdateUI(fn); err != nil {
		log.Warn().Err(err).Msg("saving settings")
		m.setMessage("Saving settings failed: " + err.Error())
	}
}

func (m tuiModel) runAction(do func(ctx context.Context) model.ActionResult) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionMsg(do(ctx))
	}
}

func (m tuiModel) loadDetails(pid int) tea.Cmd {
	in := m.inspector
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		info, err := in.Details(ctx, pid)
		return detailsMsg{pid: pid, chain: in.Ancestry(ctx, pid), info: info, err: err}
	}
}

func (m *tuiModel) applyDetails(msg detailsMsg) {
	row, ok := m.selected()
	if !ok || row.Key() != m.detailsKey || row.PID != msg.pid {
		return
	}
	m.detailsChain = msg.chain

	var b strings.Builder
	if msg.err != nil {
		b.WriteString("Process " + fmt.Sprint(msg.pid) + ": " + output.SanitizeLine(msg.err.Error()))
	} else {
		b.WriteString(output.FormatTree(msg.chain))
		if msg.info.Cmdline != "" {
			b.WriteString("\n\ncmd: " + output.SanitizeLine(msg.info.Cmdline))
		}
	}
	if c := containerDetails(row); c != "" {
		b.WriteString("\n\n" + c)
	}
	m.detailsText = b.String()
}

func containerDetails(row model.DisplayRow) string {
	if !row.HasContainer() {
		return ""
	}
	s := fmt.Sprintf("container: %s (%s)\nimage: %s\nports: %d -> %d/%s",
		output.SanitizeLine(row.ContainerLabel()), row.ContainerID, output.SanitizeLine(row.Image),
		row.LocalPort, row.ContainerPort, strings.ToLower(string(row.Protocol)))
	return s
}

func (m *tuiModel) toggleTheme() {
	next := config.ThemeLight
	if !m.cfg.Dark() {
		next = config.ThemeDark
	}
	err := m.cfg.UpdateUI(func(u *config.UI) { u.Theme = next })
	m.theme = themeFor(m.cfg.Dark())
	m.initTable()
	if err != nil {
		log.Warn().Err(err).Msg("saving theme")
		m.setMessage("Theme changed, but saving settings failed: " + err.Error())
		return
	}
	m.setMessage("Theme: " + m.cfg.UI.Theme)
}

func (m *tuiModel) saveSnapshot() {
	now := time.Now()
	filename := output.SnapshotFilename(now)

	var buf bytes.Buffer
	err := output.WriteMarkdown(&buf, output.Export{
		Title:   m.tab.String(),
		TakenAt: now,
		Status:  m.latest.Status(),
		Rows:    m.rows,
		Details: m.detailsText,
	})
	if err == nil {
		err = os.WriteFile(filename, buf.Bytes(), 0o644)
	}
	if err != nil {
		m.setMessage("Error saving snapshot: " + err.Error())
		return
	}
	m.setMessage("Snapshot saved to " + filename)
}

func (m tuiModel) View() string {
	var b strings.Builder
	th := m.theme

	title := "portwatch"
	if m.paused {
		title += " (PAUSED)"
	}
	b.WriteString(lipgloss.NewStyle().Foreground(th.accent).Bold(true).Render(title))
	b.WriteString(lipgloss.NewStyle().Foreground(th.muted).Render(fmt.Sprintf("  ports %d-%d", m.current.From, m.current.To)) + "\n\n")

	for i, name := range tabNames {
		style := lipgloss.NewStyle().Padding(0, 1)
		if tab(i) == m.tab {
			style = style.Foreground(th.selectedFg).Background(th.accent).Bold(true)
		} else {
			style = style.Foreground(th.muted)
		}
		b.WriteString(style.Render(fmt.Sprintf("[%d] %s", i+1, name)) + " ")
	}
	muted := lipgloss.NewStyle().Foreground(th.muted)
	b.WriteString(muted.Render(fmt.Sprintf("  [u] only used: %s  [d] only docker: %s", onOff(m.current.OnlyUsed), onOff(m.current.OnlyDocker))))
	if m.sortColumn < len(output.Columns) {
		b.WriteString(muted.Render("  Sort: [s] " + output.Columns[m.sortColumn]))
	}
	b.WriteString("\n\n")

	if m.editRange {
		b.WriteString(lipgloss.NewStyle().Foreground(th.accent).Render(" ports ") + m.rangeInput.View() + muted.Render("  enter: apply • esc: cancel") + "\n")
	} else if m.filtering {
		b.WriteString(lipgloss.NewStyle().Foreground(th.accent).Render(" / ") + m.filterInput.View() + "\n")
	} else if m.filterInput.Value() != "" {
		b.WriteString(muted.Render(" Filter: "+m.filterInput.Value()) + "\n")
	} else {
		b.WriteString("\n")
	}

	b.WriteString(th.base.Render(m.table.View()) + "\n")
	b.WriteString(muted.Render(" "+m.latest.Status()) + "\n")

	if m.message != "" && time.Since(m.messageTime) < messageTTL {
		b.WriteString("\n" + lipgloss.NewStyle().
			Foreground(th.selectedFg).
			Background(th.accent).
			Padding(0, 1).
			Render(output.SanitizeLine(m.message)) + "\n")
	}

	if m.confirmingKill {
		prompt := fmt.Sprintf("Terminate %s (PID %d)? [y/n]", output.SanitizeLine(m.killRow.Process), m.killRow.PID)
		if m.killWarning != "" {
			prompt = output.SanitizeLine(m.killWarning) + "\n" + prompt
		}
		b.WriteString("\n" + lipgloss.NewStyle().
			Foreground(th.selectedFg).
			Background(th.danger).
			Bold(true).
			Padding(0, 1).
			Render(prompt) + "\n")
	}

	if m.detailsText != "" && !m.confirmingKill {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(th.accent).Bold(true).Render(" Details: ") + "\n" + m.detailsText + "\n")
	}

	help := "\n  q: quit • 1-4: tabs • /: filter • s: sort • r: reverse • g: port range • u/d: only used/docker • t: theme • enter: details • x: kill • S/R: stop/restart container • o: open in browser • E: export • p: pause"
	if m.detailsText != "" {
		help += " • esc: close details"
	}
	b.WriteString(muted.Render(help) + "\n")

	return b.String()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Run starts the interactive UI and blocks until the user quits.
func Run(b Backend, in Inspector, cfg *config.Config) error {
	updates, cancel := b.Subscribe()
	defer cancel()

	p := tea.NewProgram(newModel(b, in, cfg, updates), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
