package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellsim/internal/ue"
	"cellsim/pkg/types"
)

type recordingSession struct {
	actions []*int
	backs   int
}

func (s *recordingSession) HandleUiAction(index *int) { s.actions = append(s.actions, index) }
func (s *recordingSession) HandleUiBack()             { s.backs++ }
func (s *recordingSession) Address() types.Address    { return 100 }

func newTestModel() (Model, *UI, *recordingSession) {
	ui := NewUI()
	s := &recordingSession{}
	return New(ui, s), ui, s
}

// refresh delivers the pending change notification the way the program
// would.
func refresh(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(changedMsg{})
	return next.(Model)
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEscape}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, c := m.Update(msg)
		m = next.(Model)
		cmd = c
	}
	return m, cmd
}

func run(cmd tea.Cmd) {
	if cmd != nil {
		cmd()
	}
}

func TestUI_ShowSignalsChange(t *testing.T) {
	ui := NewUI()
	ui.ShowConnected()
	ui.ShowNewSms(true)

	select {
	case <-ui.changed:
	default:
		t.Fatal("expected change notification")
	}
	snap := ui.snapshot()
	assert.Equal(t, screenMenu, snap.screen)
	assert.True(t, snap.unread)
}

func TestModel_MenuSelection(t *testing.T) {
	m, ui, s := newTestModel()
	ui.ShowConnected()
	m = refresh(t, m)

	m, cmd := press(t, m, "2")
	run(cmd)
	require.Len(t, s.actions, 1)
	require.NotNil(t, s.actions[0])
	assert.Equal(t, ue.MenuViewSms, *s.actions[0])

	m, cmd = press(t, m, "down", "enter")
	run(cmd)
	require.Len(t, s.actions, 2)
	assert.Equal(t, ue.MenuDial, *s.actions[1])
	assert.Contains(t, m.View(), "Menu")
}

func TestModel_ComposeSendsEnteredValues(t *testing.T) {
	m, ui, s := newTestModel()
	ui.ShowSmsCompose()
	m = refresh(t, m)

	m, _ = press(t, m, "1", "2", "3", "enter", "h", "i")
	_, cmd := press(t, m, "enter")
	run(cmd)

	require.Len(t, s.actions, 1)
	assert.Nil(t, s.actions[0])
	assert.Equal(t, types.Address(123), ui.SmsRecipient())
	assert.Equal(t, "hi", ui.SmsText())
}

func TestModel_DialInvalidNumberPassesInvalidAddress(t *testing.T) {
	m, ui, s := newTestModel()
	ui.ShowDialing()
	m = refresh(t, m)

	m, _ = press(t, m, "x")
	_, cmd := press(t, m, "enter")
	run(cmd)

	assert.Len(t, s.actions, 1)
	assert.Equal(t, types.InvalidAddress, ui.DialedAddress())
}

func TestModel_IncomingCallKeys(t *testing.T) {
	m, ui, s := newTestModel()
	ui.ShowIncomingCall(55)
	m = refresh(t, m)
	assert.Contains(t, m.View(), "55 is calling")

	_, cmd := press(t, m, "a")
	run(cmd)
	assert.Len(t, s.actions, 1)

	_, cmd = press(t, m, "r")
	run(cmd)
	assert.Equal(t, 1, s.backs)
}

func TestModel_TalkingTranscript(t *testing.T) {
	m, ui, s := newTestModel()
	ui.ShowTalking(55)
	m = refresh(t, m)

	m, _ = press(t, m, "y", "o")
	m, cmd := press(t, m, "enter")
	run(cmd)
	assert.Equal(t, "yo", ui.CallText())
	assert.Len(t, s.actions, 1)

	ui.ShowCallText(55, "hey")
	m = refresh(t, m)
	view := m.View()
	assert.Contains(t, view, "me: yo")
	assert.Contains(t, view, "55: hey")
}

func TestModel_SmsListNavigation(t *testing.T) {
	m, ui, s := newTestModel()
	ui.ShowSmsList([]ue.SmsRecord{
		{Peer: 1, Text: "first"},
		{Peer: 2, Text: "second", Status: ue.SmsRead},
	})
	m = refresh(t, m)
	assert.Contains(t, m.View(), "first")

	m, cmd := press(t, m, "down", "down", "enter")
	run(cmd)
	require.Len(t, s.actions, 1)
	assert.Equal(t, 1, *s.actions[0])

	_, cmd = press(t, m, "esc")
	run(cmd)
	assert.Equal(t, 1, s.backs)
}

func TestModel_ShowsErrorsAndNotices(t *testing.T) {
	m, ui, _ := newTestModel()
	ui.ShowConnected()
	ui.ShowPeerUnavailable(9)
	ui.ShowError("invalid number")
	m = refresh(t, m)

	view := m.View()
	assert.Contains(t, view, "9 is not available")
	assert.Contains(t, view, "invalid number")
}
