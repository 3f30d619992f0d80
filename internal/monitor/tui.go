package monitor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/policydeck/internal/policy"
)

var (
	riskStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // dim gray

	headerStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	detailStyle    = lipgloss.NewStyle().Padding(0, 1)
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// fetchDoneMsg carries a completed fetch back into the update loop.
type fetchDoneMsg struct {
	snap policy.Snapshot
	err  error
}

// Model is the BubbleTea model for the policy dashboard.
type Model struct {
	fetcher     Fetcher
	endpoint    string
	state       ViewState
	allPolicies []policy.Record // full set
	policies    []policy.Record // current view (may be filtered)
	table       table.Model
	width       int
	height      int
	quitting    bool
	searching   bool
	searchInput textinput.Model
}

// NewModel creates a dashboard model. The first fetch fires from Init.
func NewModel(fetcher Fetcher, endpoint string) *Model {
	cols := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "APP", Width: 28},
		{Title: "PROTO", Width: 7},
		{Title: "PORT", Width: 6},
		{Title: "ACTION", Width: 7},
		{Title: "STATUS", Width: 18},
	}

	s := table.DefaultStyles()
	s.Header = s.Header.Bold(true).BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240"))
	s.Selected = s.Selected.Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("57"))

	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithStyles(s),
	)

	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.CharLimit = 64

	return &Model{
		fetcher:     fetcher,
		endpoint:    endpoint,
		table:       t,
		width:       80,
		height:      24,
		searchInput: ti,
	}
}

// fetchCmd issues one read against the endpoint. A second command may race
// an earlier one; the last response to land wins, which is acceptable for
// a read-only display.
func (m *Model) fetchCmd() tea.Cmd {
	fetcher := m.fetcher
	return func() tea.Msg {
		snap, err := fetcher.Fetch(context.Background())
		return fetchDoneMsg{snap: snap, err: err}
	}
}

// Init satisfies tea.Model and kicks off the initial load.
func (m *Model) Init() tea.Cmd {
	m.state.ApplyLoading()
	return m.fetchCmd()
}

// Update handles key events and fetch completions.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if done, ok := msg.(fetchDoneMsg); ok {
		m.state.ApplyResult(done.snap, done.err)
		m.allPolicies = m.state.Snapshot.Policies
		m.applyFilter()
		return m, nil
	}

	if m.searching {
		return m.updateSearch(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc":
			if m.searchInput.Value() != "" {
				m.searchInput.SetValue("")
				m.applyFilter()
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.state.ApplyLoading()
			return m, m.fetchCmd()
		case "/":
			m.searching = true
			return m, m.searchInput.Focus()
		case "g":
			m.table.GotoTop()
			return m, nil
		case "G":
			m.table.GotoBottom()
			return m, nil
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			n := int(msg.String()[0] - '0')
			if n <= len(m.policies) {
				m.table.SetCursor(n - 1)
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(m.tableHeight())
		m.table.SetWidth(m.width)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.searching = false
			m.searchInput.Blur()
			return m, nil
		case "esc":
			m.searching = false
			m.searchInput.SetValue("")
			m.searchInput.Blur()
			m.applyFilter()
			return m, nil
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(m.tableHeight())
		m.table.SetWidth(m.width)
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.applyFilter()
	return m, cmd
}

// View renders the full TUI.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteByte('\n')
	b.WriteString(m.bodyView())
	b.WriteByte('\n')
	b.WriteString(separatorStyle.Render(strings.Repeat("─", m.width)))
	b.WriteByte('\n')
	b.WriteString(m.detailView())
	b.WriteByte('\n')
	b.WriteString(m.footerView())
	return b.String()
}

func (m *Model) bodyView() string {
	switch m.state.Phase {
	case PhaseFailed:
		return detailStyle.Render(riskStyle.Render("Fetch failed: " + m.state.Err))
	case PhaseReady, PhaseLoading:
		if len(m.allPolicies) == 0 && m.state.Phase == PhaseReady {
			return detailStyle.Render("No policies.")
		}
		return m.table.View()
	default:
		return m.table.View()
	}
}

func (m *Model) headerView() string {
	var highRisk, unidentified, active int
	for i := range m.policies {
		switch policy.Classify(m.policies[i]) {
		case policy.BadgeHighRisk:
			highRisk++
		case policy.BadgeUnidentified:
			unidentified++
		default:
			active++
		}
	}

	status := ""
	switch m.state.Phase {
	case PhaseLoading:
		status = " · refreshing..."
	case PhaseFailed:
		status = " · " + riskStyle.Render("ERROR")
	}

	when := ""
	if !m.state.Snapshot.At.IsZero() {
		when = " · " + m.state.Snapshot.At.UTC().Format("2006-01-02 15:04:05 UTC")
	}

	title := headerStyle.Render(fmt.Sprintf("policydeck · %s%s%s", m.endpoint, when, status))

	totalStr := fmt.Sprintf("Total: %d", len(m.policies))
	if len(m.policies) != len(m.allPolicies) {
		totalStr = fmt.Sprintf("Showing: %d/%d", len(m.policies), len(m.allPolicies))
	}

	counts := headerStyle.Render(fmt.Sprintf(
		"%s  %s  %s  %s",
		riskStyle.Render(fmt.Sprintf("High risk: %d", highRisk)),
		warnStyle.Render(fmt.Sprintf("Unidentified: %d", unidentified)),
		fmt.Sprintf("Active: %d", active),
		totalStr,
	))

	return title + "\n" + counts
}

func (m *Model) detailView() string {
	if m.state.Phase == PhaseFailed {
		return detailStyle.Render(dimStyle.Render("Press r to retry."))
	}
	if len(m.policies) == 0 {
		if m.searchInput.Value() != "" {
			return detailStyle.Render(dimStyle.Render("No matches."))
		}
		return detailStyle.Render(dimStyle.Render("(no selection)"))
	}

	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.policies) {
		return ""
	}

	p := &m.policies[idx]
	lines := []string{
		fmt.Sprintf("App: %s", p.AppName),
		fmt.Sprintf("Rule: %s %s port %d", p.Action, p.Protocol, p.Port),
		fmt.Sprintf("Status: %s", string(policy.Classify(*p))),
	}
	return detailStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) footerView() string {
	if m.searching {
		return " /" + m.searchInput.View()
	}
	help := " q quit · r refresh · ↑↓/jk navigate · g/G top/bottom · 1-9 jump · / search"
	if m.searchInput.Value() != "" {
		help += " · esc clear"
	}
	return dimStyle.Render(help)
}

func (m *Model) tableHeight() int {
	// Reserve space for header, table chrome, separator, detail panel, and footer.
	reserved := 12
	h := m.height - reserved
	if h < 3 {
		h = 3
	}
	return h
}

func (m *Model) applyFilter() {
	query := strings.ToLower(m.searchInput.Value())
	if query == "" {
		m.policies = m.allPolicies
	} else {
		var filtered []policy.Record
		for i := range m.allPolicies {
			p := &m.allPolicies[i]
			hay := strings.ToLower(p.AppName + " " + p.Protocol + " " + p.Action + " " + strconv.Itoa(p.Port))
			if strings.Contains(hay, query) {
				filtered = append(filtered, m.allPolicies[i])
			}
		}
		m.policies = filtered
	}
	m.rebuildRows()
}

func (m *Model) rebuildRows() {
	rows := make([]table.Row, len(m.policies))
	for i := range m.policies {
		rows[i] = recordToRow(&m.policies[i])
	}
	m.table.SetRows(rows)
}

// recordToRow converts a record to a table row with plain text (no ANSI).
// Embedding ANSI in cells makes the table miscalculate column widths and
// bleed color into adjacent cells.
func recordToRow(p *policy.Record) table.Row {
	port := strconv.Itoa(p.Port)
	if p.Port == 0 {
		port = "-"
	}
	return table.Row{
		strconv.Itoa(p.ID),
		p.AppName,
		p.Protocol,
		port,
		p.Action,
		string(policy.Classify(*p)),
	}
}
