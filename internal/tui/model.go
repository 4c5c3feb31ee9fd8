// Package tui is the terminal root shell. Mounting it starts session
// hydration; until hydration completes the shell shows a spinner and never
// a signed-out screen.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	novels "github.com/zxckotee/novels-sub001"
	"github.com/zxckotee/novels-sub001/roles"
	"github.com/zxckotee/novels-sub001/session"
)

type hydratedMsg struct{ err error }

type sessionMsg session.Snapshot

type actionDoneMsg struct {
	action string
	err    error
}

// Model is the bubbletea model of the shell.
type Model struct {
	ctx     context.Context
	client  *novels.Client
	keys    KeyMap
	spinner spinner.Model

	snap    session.Snapshot
	status  string
	failed  bool
	updates chan session.Snapshot
	stop    func()
}

// New returns the shell for client. It subscribes to the session right away
// so no change between construction and Init is missed.
func New(ctx context.Context, client *novels.Client) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorMagenta)

	updates := make(chan session.Snapshot, 1)
	stop := client.Subscribe(func(_, next session.Snapshot) {
		// Keep only the latest snapshot.
		for {
			select {
			case updates <- next:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})

	return Model{
		ctx:     ctx,
		client:  client,
		keys:    DefaultKeyMap(),
		spinner: sp,
		snap:    client.Snapshot(),
		updates: updates,
		stop:    stop,
	}
}

// Init mounts the client, which starts hydration.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.mountCmd(), m.listenCmd())
}

func (m Model) mountCmd() tea.Cmd {
	return func() tea.Msg {
		return hydratedMsg{err: m.client.WaitHydrated(m.ctx)}
	}
}

func (m Model) listenCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-m.updates:
			return sessionMsg(s)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) actionCmd(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn(m.ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case hydratedMsg:
		m.snap = m.client.Snapshot()
		if msg.err != nil {
			m.status, m.failed = "hydration interrupted: "+msg.err.Error(), true
		}
		return m, nil

	case sessionMsg:
		m.snap = session.Snapshot(msg)
		return m, m.listenCmd()

	case actionDoneMsg:
		m.snap = m.client.Snapshot()
		if msg.err != nil {
			m.status, m.failed = msg.action+" failed: "+msg.err.Error(), true
		} else {
			m.status, m.failed = msg.action+" done", false
		}
		return m, nil

	case spinner.TickMsg:
		if !m.snap.IsLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.stop != nil {
			m.stop()
		}
		return m, tea.Quit
	}

	// Actions wait for hydration.
	if m.snap.IsLoading || m.snap.User == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Logout):
		m.status = "logging out..."
		return m, m.actionCmd("logout", m.client.Logout)
	case key.Matches(msg, m.keys.Refresh):
		m.status = "refreshing token..."
		return m, m.actionCmd("refresh", m.client.RefreshToken)
	case key.Matches(msg, m.keys.Reload):
		m.status = "reloading profile..."
		return m, m.actionCmd("reload", func(ctx context.Context) error {
			_, err := m.client.CurrentUser(ctx)
			return err
		})
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("novels"))
	b.WriteString("\n\n")

	switch {
	case m.snap.IsLoading:
		b.WriteString(fmt.Sprintf(" %s restoring session...\n", m.spinner.View()))
	case m.snap.User == nil:
		b.WriteString(cardStyle.Render(warnStyle.Render("Signed out.") + "\n" + valueStyle.Render("Run `novelsctl login` to sign in.")))
		b.WriteString("\n")
	default:
		b.WriteString(cardStyle.Render(userCard(m.snap.User)))
		b.WriteString("\n")
	}

	if m.status != "" {
		style := okStyle
		if m.failed {
			style = adminStyle
		}
		b.WriteString(" " + style.Render(m.status) + "\n")
	}

	var help []string
	for _, k := range m.keys.ShortHelp() {
		h := k.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(helpStyle.Render(strings.Join(help, " • ")))
	return b.String()
}

func userCard(u *session.User) string {
	name := u.DisplayName
	if name == "" {
		name = u.Email
	}
	if roles.IsAdmin(u) {
		name += " " + adminStyle.Render("[admin]")
	}

	rs := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		rs = append(rs, roleStyle.Render(r))
	}
	if len(rs) == 0 {
		rs = append(rs, valueStyle.Render("-"))
	}

	rows := []string{
		labelStyle.Render("user") + valueStyle.Render(name),
		labelStyle.Render("email") + valueStyle.Render(u.Email),
		labelStyle.Render("id") + valueStyle.Render(u.ID),
		labelStyle.Render("roles") + strings.Join(rs, ", "),
	}
	return strings.Join(rows, "\n")
}

// Run starts the shell on the terminal and blocks until it exits.
func Run(ctx context.Context, client *novels.Client) error {
	m := New(ctx, client)
	defer m.stop()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
