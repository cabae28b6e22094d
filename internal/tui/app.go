// Package tui provides the live fleet dashboard for caretaker.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/caretaker/internal/controlplane"
	"github.com/fentz26/caretaker/internal/fleet"
	"github.com/fentz26/caretaker/internal/models"
)

// DefaultRefresh is how often the dashboard polls the control plane.
const DefaultRefresh = 5 * time.Second

type mode int

const (
	modeList mode = iota
	modeDetail
)

type fleetLoadedMsg struct {
	fleet *controlplane.FleetResponse
}

type accountLoadedMsg struct {
	detail *AccountDetail
}

type errMsg struct{ err error }

type tickMsg time.Time

// App is the dashboard model.
type App struct {
	client   *Client
	refresh  time.Duration
	list     list.Model
	viewport viewport.Model
	mode     mode
	stats    fleet.Stats
	account  models.AccountID
	err      error
	width    int
	height   int
	now      func() time.Time
}

// New creates a dashboard polling the control plane at apiAddr.
func New(apiAddr string, refresh time.Duration) *App {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 80, 20)
	l.Title = "Fleet"
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(true)

	return &App{
		client:   NewClient(apiAddr),
		refresh:  refresh,
		list:     l,
		viewport: viewport.New(80, 20),
		now:      time.Now,
	}
}

// Run starts the dashboard.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.fetchFleet(), a.tick())
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.list.SetSize(msg.Width, msg.Height-2)
		a.viewport.Width = msg.Width
		a.viewport.Height = msg.Height - 3
		return a, nil

	case tickMsg:
		return a, tea.Batch(a.reload(), a.tick())

	case fleetLoadedMsg:
		a.err = nil
		a.stats = msg.fleet.Stats
		now := a.now()
		items := make([]list.Item, len(msg.fleet.Monitors))
		for i, m := range msg.fleet.Monitors {
			items[i] = MonitorItem{MonitorInfo: m, now: now}
		}
		return a, a.list.SetItems(items)

	case accountLoadedMsg:
		a.err = nil
		if a.mode == modeDetail && msg.detail.AccountID == a.account {
			a.viewport.SetContent(renderAccount(msg.detail))
		}
		return a, nil

	case errMsg:
		a.err = msg.err
		return a, nil

	case tea.KeyMsg:
		if a.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "r":
			return a, a.reload()
		case "esc":
			if a.mode == modeDetail {
				a.mode = modeList
				a.account = ""
				return a, a.fetchFleet()
			}
		case "enter":
			if a.mode == modeList {
				if item, ok := a.list.SelectedItem().(MonitorItem); ok {
					a.mode = modeDetail
					a.account = item.AccountID
					a.viewport.SetContent("Loading...")
					return a, a.fetchAccount(item.AccountID)
				}
			}
		}
	}

	var cmd tea.Cmd
	if a.mode == modeDetail {
		a.viewport, cmd = a.viewport.Update(msg)
	} else {
		a.list, cmd = a.list.Update(msg)
	}
	return a, cmd
}

// View implements tea.Model
func (a *App) View() string {
	var body string
	if a.mode == modeDetail {
		body = titleStyle.Render("Account "+string(a.account)) + "\n" + a.viewport.View()
	} else {
		body = a.list.View()
	}
	return body + "\n" + a.statusBar()
}

func (a *App) statusBar() string {
	if a.err != nil {
		return statusBarStyle.Render(badStyle.Render("● offline") + "  " + a.err.Error())
	}
	text := fmt.Sprintf("%d/%d monitors", a.stats.Running, a.stats.MaxMonitors)
	if a.stats.Stopping > 0 {
		text += fmt.Sprintf(", %d stopping", a.stats.Stopping)
	}
	if a.stats.LastError != "" {
		text += "  registry: " + a.stats.LastError
	}
	help := "enter: details • r: refresh • q: quit"
	if a.mode == modeDetail {
		help = "esc: back • r: refresh • q: quit"
	}
	return statusBarStyle.Render(text) + "  " + helpStyle.Render(help)
}

func (a *App) reload() tea.Cmd {
	if a.mode == modeDetail {
		return a.fetchAccount(a.account)
	}
	return a.fetchFleet()
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(a.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) fetchFleet() tea.Cmd {
	return func() tea.Msg {
		f, err := a.client.Fleet()
		if err != nil {
			return errMsg{err}
		}
		return fleetLoadedMsg{f}
	}
}

func (a *App) fetchAccount(id models.AccountID) tea.Cmd {
	return func() tea.Msg {
		d, err := a.client.Account(id)
		if err != nil {
			return errMsg{err}
		}
		return accountLoadedMsg{d}
	}
}
