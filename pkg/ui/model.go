// Package ui is the terminal chat program. It renders controller snapshots and routes user
// input back to the controller; it never mutates conversation state itself.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/localmind/pkg/chatclient"
)

// Chat is the part of the controller the program drives.
type Chat interface {
	State() chatclient.State
	Send(text string) bool
	Activate(ctx context.Context, sessionID string) error
	Subscribe(fn func(chatclient.State)) (cancel func())
}

var _ Chat = (*chatclient.Controller)(nil)

// StateChangedMsg carries a controller snapshot into the program.
type StateChangedMsg struct {
	State chatclient.State
}

type activatedMsg struct {
	sessionID string
	err       error
}

type sentMsg struct {
	ok bool
}

type copiedMsg struct {
	err error
}

const (
	headerHeight = 1
	footerHeight = 3
	minWrap      = 20
)

type Model struct {
	ctx       context.Context
	chat      Chat
	sessionID string

	state    chatclient.State
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	copy   func(string) error
	notice string

	width  int
	height int
	ready  bool
}

func NewModel(ctx context.Context, chat Chat, sessionID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Connecting..."
	ti.CharLimit = 8192

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:       ctx,
		chat:      chat,
		sessionID: sessionID,
		state:     chat.State(),
		viewport:  viewport.New(80, 20),
		input:     ti,
		spinner:   sp,
		copy:      clipboard.WriteAll,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.activate())
}

// activate runs off the event loop because the controller notifies subscribers while
// activating, and those notifications are delivered back through the program.
func (m Model) activate() tea.Cmd {
	ctx, chat, id := m.ctx, m.chat, m.sessionID
	return func() tea.Msg {
		return activatedMsg{sessionID: id, err: chat.Activate(ctx, id)}
	}
}

func (m Model) send(text string) tea.Cmd {
	chat := m.chat
	return func() tea.Msg {
		return sentMsg{ok: chat.Send(text)}
	}
}

func (m Model) copyLastReply() tea.Cmd {
	var reply string
	for i := len(m.state.Turns) - 1; i >= 0; i-- {
		if m.state.Turns[i].Role == chatclient.RoleAssistant {
			reply = m.state.Turns[i].Content
			break
		}
	}
	if reply == "" {
		return func() tea.Msg { return copiedMsg{err: errNothingToCopy} }
	}
	copyFn := m.copy
	return func() tea.Msg { return copiedMsg{err: copyFn(reply)} }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := m.input.Value()
			if strings.TrimSpace(text) == "" || m.state.Connectivity != chatclient.StatusConnected {
				return m, nil
			}
			m.input.Reset()
			m.notice = ""
			return m, m.send(text)
		case "ctrl+y":
			return m, m.copyLastReply()
		case "ctrl+r":
			m.notice = "reconnecting..."
			return m, m.activate()
		case "pgup", "pgdown", "ctrl+u", "ctrl+d":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.refresh()

	case StateChangedMsg:
		if msg.State.Version < m.state.Version {
			return m, nil
		}
		m.state = msg.State
		m.syncInput()
		m.refresh()

	case activatedMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("activate %s: %v", msg.sessionID, msg.err)
			log.Warn().Err(msg.err).Str("session_id", msg.sessionID).Msg("activation failed")
		} else {
			m.notice = ""
		}

	case sentMsg:
		if !msg.ok {
			m.notice = "not sent: connection is down"
		}

	case copiedMsg:
		if msg.err != nil {
			m.notice = "copy failed: " + msg.err.Error()
		} else {
			m.notice = "copied last reply"
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) syncInput() {
	switch m.state.Connectivity {
	case chatclient.StatusConnected:
		m.input.Placeholder = "Type a message..."
		m.input.Focus()
	case chatclient.StatusConnecting:
		m.input.Placeholder = "Connecting..."
		m.input.Blur()
	default:
		m.input.Placeholder = "Disconnected, press ctrl+r to reconnect"
		m.input.Blur()
	}
}

func (m *Model) resize() {
	bw, bh := transcriptPane.GetFrameSize()
	w := m.width - bw
	if w < minWrap {
		w = minWrap
	}
	h := m.height - headerHeight - footerHeight - bh
	if h < 1 {
		h = 1
	}
	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - lipgloss.Width(m.input.Prompt) - 1

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(w-2),
	)
	if err != nil {
		log.Debug().Err(err).Msg("markdown renderer unavailable")
		r = nil
	}
	m.renderer = r
}

func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.transcript())
	if atBottom || m.state.AwaitingReply {
		m.viewport.GotoBottom()
	}
}

func (m Model) transcript() string {
	if len(m.state.Turns) == 0 {
		return emptyStyle.Render("No messages yet.")
	}
	var sb strings.Builder
	for i, turn := range m.state.Turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch turn.Role {
		case chatclient.RoleUser:
			sb.WriteString(userLabelStyle.Render("You"))
			sb.WriteString("\n")
			sb.WriteString(userTextStyle.Width(m.viewport.Width).Render(turn.Content))
			sb.WriteString("\n")
		default:
			sb.WriteString(assistantLabelStyle.Render("Assistant"))
			sb.WriteString("\n")
			sb.WriteString(m.renderMarkdown(turn.Content))
		}
	}
	return sb.String()
}

func (m Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content + "\n"
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content + "\n"
	}
	return out
}

func (m Model) statusBadge() string {
	switch m.state.Connectivity {
	case chatclient.StatusConnected:
		return connectedStyle.Render("● connected")
	case chatclient.StatusConnecting:
		return connectingStyle.Render("● connecting")
	default:
		return disconnectedStyle.Render("● disconnected")
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	session := m.state.SessionID
	if session == "" {
		session = m.sessionID
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("localmind"),
		infoStyle.Render(session),
		infoStyle.Render(m.statusBadge()),
	)

	var activity string
	switch {
	case m.state.AwaitingReply:
		activity = m.spinner.View() + " thinking..."
	case m.notice != "":
		activity = noticeStyle.Render(m.notice)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		transcriptPane.Render(m.viewport.View()),
		activity,
		m.input.View(),
		helpStyle.Render("enter send • ctrl+y copy reply • ctrl+r reconnect • pgup/pgdown scroll • esc quit"),
	)
}

// State returns the snapshot the program last rendered.
func (m Model) State() chatclient.State {
	return m.state
}

// Notice is the transient status line shown under the transcript.
func (m Model) Notice() string {
	return m.notice
}

var errNothingToCopy = errors.New("no assistant reply to copy")

// ForwardStateFunc returns a subscriber that forwards controller snapshots into p.
func ForwardStateFunc(p *tea.Program) func(chatclient.State) {
	return func(s chatclient.State) {
		p.Send(StateChangedMsg{State: s})
	}
}

// Run starts the full-screen program, activates sessionID and blocks until the user quits
// or ctx is cancelled.
func Run(ctx context.Context, chat Chat, sessionID string) error {
	m := NewModel(ctx, chat, sessionID)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	cancel := chat.Subscribe(ForwardStateFunc(p))
	defer cancel()

	start := time.Now()
	_, err := p.Run()
	log.Debug().Dur("elapsed", time.Since(start)).Str("session_id", sessionID).Msg("chat ui exited")
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return errors.Wrap(err, "run chat ui")
}
