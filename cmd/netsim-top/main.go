package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/icsrange/netsim/pkg/gateway"
	"github.com/icsrange/netsim/pkg/server"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 2).
			MarginLeft(1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#005FAF")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true).
			MarginLeft(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			MarginLeft(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginLeft(1).
			MarginTop(1)
)

type view int

const (
	listenersView view = iota
	sessionsView
)

type keyMap struct {
	Tab  key.Binding
	Kill key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "switch view"),
	),
	Kill: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "kill session"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

type model struct {
	client        *apiClient
	currentView   view
	listenerTable table.Model
	sessionTable  table.Model
	summary       server.SummaryResponse
	sessions      []gateway.SessionInfo
	message       string
	messageErr    bool
	width         int
}

type tickMsg time.Time

type summaryMsg server.SummaryResponse

type sessionsMsg []gateway.SessionInfo

type killedMsg struct {
	sessionID string
	killed    bool
}

type errMsg struct{ err error }

// apiClient talks to the netsim status server
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 3 * time.Second},
	}
}

func (c *apiClient) getJSON(path string, out any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) killSession(id string) (bool, error) {
	resp, err := c.http.Post(c.baseURL+"/api/v1/sessions/"+id+"/kill", "application/json", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	var kr server.KillResponse
	if err := json.NewDecoder(resp.Body).Decode(&kr); err != nil {
		return false, err
	}
	return kr.Killed, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) fetchSummary() tea.Cmd {
	return func() tea.Msg {
		var s server.SummaryResponse
		if err := m.client.getJSON("/api/v1/summary", &s); err != nil {
			return errMsg{err}
		}
		return summaryMsg(s)
	}
}

func (m model) fetchSessions() tea.Cmd {
	return func() tea.Msg {
		var sessions []gateway.SessionInfo
		if err := m.client.getJSON("/api/v1/sessions", &sessions); err != nil {
			return errMsg{err}
		}
		return sessionsMsg(sessions)
	}
}

func (m model) killSelected() tea.Cmd {
	row := m.sessionTable.SelectedRow()
	if row == nil {
		return nil
	}
	sessionID := row[0]
	return func() tea.Msg {
		killed, err := m.client.killSession(sessionID)
		if err != nil {
			return errMsg{err}
		}
		return killedMsg{sessionID: sessionID, killed: killed}
	}
}

func initialModel(client *apiClient) model {
	listenerColumns := []table.Column{
		{Title: "Device", Width: 14},
		{Title: "Network", Width: 14},
		{Title: "Port", Width: 6},
		{Title: "Internal", Width: 8},
		{Title: "Proto", Width: 10},
		{Title: "State", Width: 9},
		{Title: "Total", Width: 7},
		{Title: "Denied", Width: 7},
		{Title: "Active", Width: 7},
	}
	sessionColumns := []table.Column{
		{Title: "Session", Width: 36},
		{Title: "Peer", Width: 21},
		{Title: "Network", Width: 14},
		{Title: "Device", Width: 14},
		{Title: "Proto", Width: 10},
		{Title: "Port", Width: 6},
	}

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#005FAF"))

	lt := table.New(
		table.WithColumns(listenerColumns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	lt.SetStyles(styles)

	st := table.New(
		table.WithColumns(sessionColumns),
		table.WithHeight(10),
	)
	st.SetStyles(styles)

	return model{
		client:        client,
		currentView:   listenersView,
		listenerTable: lt,
		sessionTable:  st,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetchSummary(), m.fetchSessions(), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchSummary(), m.fetchSessions(), tickCmd())

	case summaryMsg:
		m.summary = server.SummaryResponse(msg)
		rows := make([]table.Row, 0, len(m.summary.Gateway.Listeners))
		for _, l := range m.summary.Gateway.Listeners {
			rows = append(rows, table.Row{
				l.Device,
				l.Network,
				fmt.Sprintf("%d", l.Port),
				fmt.Sprintf("%d", l.InternalPort),
				l.Protocol,
				l.State,
				fmt.Sprintf("%d", l.Total),
				fmt.Sprintf("%d", l.Denied),
				fmt.Sprintf("%d", l.Active),
			})
		}
		m.listenerTable.SetRows(rows)
		m.messageErr = false
		return m, nil

	case sessionsMsg:
		m.sessions = msg
		rows := make([]table.Row, 0, len(m.sessions))
		for _, s := range m.sessions {
			rows = append(rows, table.Row{
				s.ID,
				s.Peer,
				s.SourceNetwork,
				s.Device,
				s.Protocol,
				fmt.Sprintf("%d", s.Port),
			})
		}
		m.sessionTable.SetRows(rows)
		return m, nil

	case killedMsg:
		if msg.killed {
			m.message = "killed session " + msg.sessionID
			m.messageErr = false
		} else {
			m.message = "session already gone: " + msg.sessionID
			m.messageErr = true
		}
		return m, m.fetchSessions()

	case errMsg:
		m.message = msg.err.Error()
		m.messageErr = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Tab):
			if m.currentView == listenersView {
				m.currentView = sessionsView
				m.listenerTable.Blur()
				m.sessionTable.Focus()
			} else {
				m.currentView = listenersView
				m.sessionTable.Blur()
				m.listenerTable.Focus()
			}
			return m, nil
		case key.Matches(msg, keys.Kill):
			if m.currentView == sessionsView {
				return m, m.killSelected()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.currentView == listenersView {
		m.listenerTable, cmd = m.listenerTable.Update(msg)
	} else {
		m.sessionTable, cmd = m.sessionTable.Update(msg)
	}
	return m, cmd
}

func (m model) View() string {
	title := titleStyle.Render("netsim " + m.summary.Version + " / virtual network status")

	stats := statsBoxStyle.Render(fmt.Sprintf(
		"networks %d  devices %d  services %d  |  conns %d  denied %d  active %d  |  security events %d",
		m.summary.Topology.NetworkCount,
		m.summary.Topology.DeviceCount,
		m.summary.Topology.ServiceCount,
		m.summary.Gateway.Total,
		m.summary.Gateway.Denied,
		m.summary.Gateway.Active,
		m.summary.SecurityEvents,
	))

	var tabs string
	if m.currentView == listenersView {
		tabs = activeTabStyle.Render("Listeners") + inactiveTabStyle.Render("Sessions")
	} else {
		tabs = inactiveTabStyle.Render("Listeners") + activeTabStyle.Render("Sessions")
	}

	var body string
	if m.currentView == listenersView {
		body = m.listenerTable.View()
	} else {
		body = m.sessionTable.View()
	}

	var message string
	if m.message != "" {
		if m.messageErr {
			message = errorStyle.Render(m.message)
		} else {
			message = statusStyle.Render(m.message)
		}
	}

	help := helpStyle.Render("tab: switch view  x: kill session  q: quit")

	return lipgloss.JoinVertical(lipgloss.Left, title, stats, tabs, body, message, help)
}

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8080", "netsim status server address")
	flag.Parse()

	m := initialModel(newAPIClient(*addr))
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "netsim-top: %v\n", err)
		os.Exit(1)
	}
}
