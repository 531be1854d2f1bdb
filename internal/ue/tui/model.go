package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"cellsim/internal/ue"
	"cellsim/pkg/types"
)

// Session is the part of ue.Session the model drives.
type Session interface {
	HandleUiAction(index *int)
	HandleUiBack()
	Address() types.Address
}

var menuEntries = []string{"Write message", "Messages", "Call"}

// changedMsg tells the model the UI state has moved on.
type changedMsg struct{}

// Model is the bubbletea model of the phone screen.
type Model struct {
	ui      *UI
	session Session
	view    snapshot

	menuCursor int
	listCursor int

	to           textinput.Model
	body         textinput.Model
	composeFocus int
	number       textinput.Model
	say          textinput.Model

	width int
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Width = 40
	return ti
}

// New returns a model showing ui and sending intents to session.
func New(ui *UI, session Session) Model {
	return Model{
		ui:      ui,
		session: session,
		view:    ui.snapshot(),
		to:      newInput("recipient number", 3),
		body:    newInput("message", 512),
		number:  newInput("number to call", 3),
		say:     newInput("say something", 512),
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

// Init starts listening for session notifications.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.ui.changed), textinput.Blink)
}

// action and back run on a command goroutine so the event loop never waits
// on the session lock.
func (m Model) action(index *int) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		s.HandleUiAction(index)
		return nil
	}
}

func (m Model) back() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		s.HandleUiBack()
		return nil
	}
}

// Update processes messages and returns the updated model plus any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case changedMsg:
		prev := m.view.screen
		m.view = m.ui.snapshot()
		if m.view.screen != prev {
			m.enter(m.view.screen)
		}
		if m.listCursor >= len(m.view.list) {
			m.listCursor = max(0, len(m.view.list)-1)
		}
		return m, waitForChange(m.ui.changed)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}
	return m, nil
}

// enter resets the inputs belonging to a screen that just opened.
func (m *Model) enter(sc screen) {
	m.to.Blur()
	m.body.Blur()
	m.number.Blur()
	m.say.Blur()

	switch sc {
	case screenCompose:
		m.to.Reset()
		m.body.Reset()
		m.composeFocus = 0
		m.to.Focus()
	case screenDialing:
		m.number.Reset()
		m.number.Focus()
	case screenTalking:
		m.say.Reset()
		m.say.Focus()
	case screenSmsList:
		m.listCursor = 0
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch m.view.screen {
	case screenNotConnected, screenConnecting:
		if key == "q" {
			return m, tea.Quit
		}

	case screenMenu:
		switch key {
		case "q":
			return m, tea.Quit
		case "up", "k":
			m.menuCursor = (m.menuCursor + len(menuEntries) - 1) % len(menuEntries)
		case "down", "j":
			m.menuCursor = (m.menuCursor + 1) % len(menuEntries)
		case "1", "2", "3":
			idx := int(key[0] - '1')
			m.menuCursor = idx
			return m, m.action(&idx)
		case "enter":
			idx := m.menuCursor
			return m, m.action(&idx)
		}

	case screenCompose:
		switch key {
		case "esc":
			return m, m.back()
		case "tab", "shift+tab":
			m.toggleComposeFocus()
			return m, nil
		case "enter":
			if m.composeFocus == 0 {
				m.toggleComposeFocus()
				return m, nil
			}
			m.ui.setSms(parseAddress(m.to.Value()), m.body.Value())
			return m, m.action(nil)
		}
		var cmd tea.Cmd
		if m.composeFocus == 0 {
			m.to, cmd = m.to.Update(msg)
		} else {
			m.body, cmd = m.body.Update(msg)
		}
		return m, cmd

	case screenSmsList:
		switch key {
		case "esc", "q":
			return m, m.back()
		case "up", "k":
			if m.listCursor > 0 {
				m.listCursor--
			}
		case "down", "j":
			if m.listCursor < len(m.view.list)-1 {
				m.listCursor++
			}
		case "enter":
			idx := m.listCursor
			return m, m.action(&idx)
		}

	case screenSms:
		switch key {
		case "esc", "enter", "backspace", "q":
			return m, m.back()
		}

	case screenDialing:
		switch key {
		case "esc":
			return m, m.back()
		case "enter":
			m.ui.setDialed(parseAddress(m.number.Value()))
			return m, m.action(nil)
		}
		var cmd tea.Cmd
		m.number, cmd = m.number.Update(msg)
		return m, cmd

	case screenCalling:
		if key == "esc" {
			return m, m.back()
		}

	case screenIncoming:
		switch key {
		case "enter", "a", "y":
			return m, m.action(nil)
		case "esc", "r", "n":
			return m, m.back()
		}

	case screenTalking:
		switch key {
		case "esc":
			return m, m.back()
		case "enter":
			text := m.say.Value()
			m.ui.setCallText(text)
			if t := ue.NormalizeText(text); t != "" {
				m.ui.recordOwnText(m.session.Address(), t)
			}
			m.say.Reset()
			return m, m.action(nil)
		}
		var cmd tea.Cmd
		m.say, cmd = m.say.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) toggleComposeFocus() {
	if m.composeFocus == 0 {
		m.composeFocus = 1
		m.to.Blur()
		m.body.Focus()
		return
	}
	m.composeFocus = 0
	m.body.Blur()
	m.to.Focus()
}

// parseAddress maps unparsable input to the invalid address so the session
// reports it.
func parseAddress(s string) types.Address {
	a, err := types.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return types.InvalidAddress
	}
	return a
}

// View renders the phone screen.
func (m Model) View() string {
	var sb strings.Builder

	header := fmt.Sprintf(" Phone %s  |  %s ", m.session.Address(), m.view.screen.title())
	sb.WriteString(titleStyle.Render(header))
	if m.view.unread {
		sb.WriteString(" ")
		sb.WriteString(unreadStyle.Render("new message"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(m.renderScreen())
	sb.WriteString("\n")

	if m.view.notice != "" {
		sb.WriteString(noticeStyle.Render(m.view.notice))
		sb.WriteString("\n")
	}
	if m.view.err != "" {
		sb.WriteString(errorStyle.Render("Error: " + m.view.err))
		sb.WriteString("\n")
	}
	sb.WriteString(helpStyle.Render(m.help()))
	return sb.String()
}

func (m Model) renderScreen() string {
	v := m.view
	switch v.screen {
	case screenNotConnected:
		return dimStyle.Render("Searching for a base station...")
	case screenConnecting:
		return dimStyle.Render("Registering with the network...")
	case screenMenu:
		var lines []string
		for i, e := range menuEntries {
			label := fmt.Sprintf("%d. %s", i+1, e)
			if i == m.menuCursor {
				lines = append(lines, selectedStyle.Render("> "+label))
			} else {
				lines = append(lines, rowStyle.Render("  "+label))
			}
		}
		return strings.Join(lines, "\n")
	case screenCompose:
		return "To:\n" + m.to.View() + "\n\nMessage:\n" + m.body.View()
	case screenSmsList:
		return m.renderSmsList()
	case screenSms:
		r := v.sms
		dir := "From"
		if r.Direction == ue.SmsSent {
			dir = "To"
		}
		return fmt.Sprintf("%s: %s\n%s\n\n%s", dir, r.Peer, dimStyle.Render(r.Time.Format("2006-01-02 15:04:05")), r.Text)
	case screenDialing:
		return "Number:\n" + m.number.View()
	case screenCalling:
		return fmt.Sprintf("Calling %s...", v.peer)
	case screenIncoming:
		return selectedStyle.Render(fmt.Sprintf("%s is calling", v.peer))
	case screenTalking:
		var lines []string
		for _, l := range v.talk {
			who := l.from.String()
			if l.from == m.session.Address() {
				who = "me"
			}
			lines = append(lines, fmt.Sprintf("%s %s: %s", dimStyle.Render(l.at.Format("15:04:05")), who, l.text))
		}
		lines = append(lines, "", m.say.View())
		return strings.Join(lines, "\n")
	default:
		return ""
	}
}

func (m Model) renderSmsList() string {
	if len(m.view.list) == 0 {
		return dimStyle.Render("No messages")
	}
	var lines []string
	for i, r := range m.view.list {
		marker := " "
		if !r.IsRead() {
			marker = "*"
		}
		arrow := "<-"
		if r.Direction == ue.SmsSent {
			arrow = "->"
		}
		text := r.Text
		if runes := []rune(text); len(runes) > 30 {
			text = string(runes[:30]) + "..."
		}
		line := fmt.Sprintf("%s %s %-4s %-8s %s", marker, arrow, r.Peer, r.Status, text)
		if i == m.listCursor {
			lines = append(lines, selectedStyle.Render("> "+line))
		} else if i%2 == 1 {
			lines = append(lines, altRowStyle.Render("  "+line))
		} else {
			lines = append(lines, rowStyle.Render("  "+line))
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) help() string {
	switch m.view.screen {
	case screenMenu:
		return "1-3/enter: select  q: quit"
	case screenCompose:
		return "tab: switch field  enter: send  esc: cancel"
	case screenSmsList:
		return "up/down: move  enter: open  esc: back"
	case screenSms:
		return "esc: back"
	case screenDialing:
		return "enter: call  esc: cancel"
	case screenCalling:
		return "esc: hang up"
	case screenIncoming:
		return "a: answer  r: reject"
	case screenTalking:
		return "enter: send  esc: hang up"
	default:
		return "q: quit"
	}
}
