// Package tui is the interactive terminal chat screen.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Kenmaaa05/EchoChamber/internal/models"
	"github.com/Kenmaaa05/EchoChamber/internal/session"
)

const (
	headerHeight = 2
	inputHeight  = 3
	footerHeight = 1
)

// Chat is the part of a session the screen drives.
type Chat interface {
	Name() string
	Start(ctx context.Context) error
	Submit(ctx context.Context, input string) (session.Result, error)
	Clear(ctx context.Context) error
}

// ViewMsg carries a new merged view into the program.
type ViewMsg struct {
	Messages  []models.Message
	Alternate bool
}

// SyncErrMsg reports a subscription failure. The last view stays on screen.
type SyncErrMsg struct {
	Err error
}

type startedMsg struct{ err error }

type submitDoneMsg struct {
	res session.Result
	err error
}

type clearDoneMsg struct{ err error }

// Model is the bubbletea model for the chat screen.
type Model struct {
	ctx  context.Context
	chat Chat
	name string

	messages  []models.Message
	alternate bool
	styles    styles

	input    textinput.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	busy   bool
	status string
	failed bool
}

// NewModel creates the chat screen for chat.
func NewModel(ctx context.Context, chat Chat) Model {
	ti := textinput.New()
	ti.Placeholder = "Say something... (Enter to send, Ctrl+X to wipe, Esc to quit)"
	ti.CharLimit = models.MaxTextBytes
	ti.Focus()

	return Model{
		ctx:    ctx,
		chat:   chat,
		name:   chat.Name(),
		styles: newStyles(Synth),
		input:  ti,
		status: "connecting...",
	}
}

// Init subscribes the session and starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.start())
}

func (m Model) start() tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: m.chat.Start(m.ctx)}
	}
}

func (m Model) submit(input string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.chat.Submit(m.ctx, input)
		return submitDoneMsg{res: res, err: err}
	}
}

func (m Model) clear() tea.Cmd {
	return func() tea.Msg {
		return clearDoneMsg{err: m.chat.Clear(m.ctx)}
	}
}

// Update handles keys, window resizes and session events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if m.busy || strings.TrimSpace(m.input.Value()) == "" {
				return m, nil
			}
			m.busy = true
			return m, m.submit(m.input.Value())

		case tea.KeyCtrlX:
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.setStatus("wiping the timeline...", false)
			return m, m.clear()

		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

		if !m.busy {
			m.input, tiCmd = m.input.Update(msg)
		}
		return m, tiCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - headerHeight - inputHeight - footerHeight
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 4
		m.refresh()

	case ViewMsg:
		m.messages = msg.Messages
		if msg.Alternate != m.alternate {
			m.alternate = msg.Alternate
			m.styles = newStyles(ThemeFor(m.alternate))
		}
		m.refresh()

	case startedMsg:
		if msg.err != nil {
			m.setStatus("could not connect: "+msg.err.Error(), true)
		} else {
			m.setStatus("connected as "+m.name, false)
		}

	case SyncErrMsg:
		m.setStatus("connection trouble, showing last known messages: "+msg.Err.Error(), true)

	case submitDoneMsg:
		m.busy = false
		if msg.err != nil {
			// The input stays so the user can retry.
			m.setStatus(describe(msg.err), true)
			break
		}
		if msg.res.ClearInput {
			m.input.Reset()
		}
		m.setStatus("", false)

	case clearDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.setStatus(describe(msg.err), true)
			break
		}
		m.setStatus("everything has been wiped from the timeline", false)
	}

	// Cursor blinks and other input bookkeeping
	m.input, tiCmd = m.input.Update(msg)
	return m, tiCmd
}

func (m *Model) setStatus(status string, failed bool) {
	m.status = status
	m.failed = failed
}

// refresh re-renders the message list and keeps it scrolled to the bottom.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "\n  loading..."
	}

	theme := ThemeFor(m.alternate)
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		m.styles.title.Render("EchoChamber"),
		m.styles.muted.Render(fmt.Sprintf("  %s · %s", m.name, theme.Name)),
	)

	footer := m.styles.status.Render(m.status)
	if m.failed {
		footer = m.styles.failure.Render(m.status)
	}

	return m.styles.app.Render(lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		m.viewport.View(),
		m.styles.input.Width(max(m.width-2, 1)).Render(m.input.View()),
		footer,
	))
}

// renderMessages draws the view oldest first. The user's own stored messages
// sit on the right; everyone else, and every ephemeral message, on the left.
func (m Model) renderMessages() string {
	if len(m.messages) == 0 {
		return m.styles.muted.Render("No messages yet.")
	}

	width := m.viewport.Width
	bubble := width * 3 / 4
	if bubble < 10 {
		bubble = width
	}

	blocks := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		own := !msg.IsEphemeral() && msg.Author == m.name

		author := m.styles.other
		switch {
		case msg.IsEphemeral():
			author = m.styles.system
		case own:
			author = m.styles.own
		}

		header := author.Render(msg.Author) + m.styles.muted.Render(" · "+formatTime(msg.Timestamp))

		body := m.styles.text.Render(msg.Text)
		if msg.Link != "" {
			body = m.styles.link.Render(msg.Text) + " " + m.styles.muted.Render("<"+msg.Link+">")
		}
		if lipgloss.Width(body) > bubble {
			body = lipgloss.NewStyle().Width(bubble).Render(body)
		}

		align := lipgloss.Left
		if own {
			align = lipgloss.Right
		}
		block := lipgloss.JoinVertical(align, header, body)
		blocks = append(blocks, lipgloss.PlaceHorizontal(width, align, block))
	}

	return strings.Join(blocks, "\n\n")
}

func formatTime(ts int64) string {
	if ts <= 0 {
		return "--:--"
	}
	return time.UnixMilli(ts).Format("15:04")
}

// describe turns a session failure into a status line.
func describe(err error) string {
	var sessErr *session.Error
	if !errors.As(err, &sessErr) {
		return err.Error()
	}
	switch sessErr.Kind {
	case session.PersistFailure:
		return "message not sent: " + sessErr.Err.Error()
	case session.ClearFailure:
		return "could not wipe the timeline: " + sessErr.Err.Error()
	default:
		return sessErr.Error()
	}
}
