// Package tui is the interactive terminal front end of a simulated phone.
// UI receives notifications from the session and publishes screen
// snapshots; Model renders them with bubbletea and turns key presses into
// session intents.
package tui

import (
	"fmt"
	"sync"
	"time"

	"cellsim/internal/ue"
	"cellsim/pkg/types"
)

type screen int

const (
	screenNotConnected screen = iota
	screenConnecting
	screenMenu
	screenCompose
	screenSmsList
	screenSms
	screenDialing
	screenCalling
	screenIncoming
	screenTalking
)

func (s screen) title() string {
	switch s {
	case screenNotConnected:
		return "No service"
	case screenConnecting:
		return "Connecting"
	case screenMenu:
		return "Menu"
	case screenCompose:
		return "New message"
	case screenSmsList:
		return "Messages"
	case screenSms:
		return "Message"
	case screenDialing:
		return "Dial"
	case screenCalling:
		return "Calling"
	case screenIncoming:
		return "Incoming call"
	case screenTalking:
		return "In call"
	default:
		return ""
	}
}

const maxTalkLines = 50

type talkLine struct {
	from types.Address
	text string
	at   time.Time
}

// snapshot is an immutable copy of what the screen should show.
type snapshot struct {
	screen screen
	peer   types.Address
	unread bool
	list   []ue.SmsRecord
	sms    ue.SmsRecord
	talk   []talkLine
	notice string
	err    string
}

// UI implements ue.UserPort. Show methods only record state and signal the
// model, so they never block the session.
type UI struct {
	mu      sync.Mutex
	state   snapshot
	changed chan struct{}

	recipient types.Address
	smsText   string
	dialed    types.Address
	callText  string
}

var _ ue.UserPort = (*UI)(nil)

func NewUI() *UI {
	return &UI{changed: make(chan struct{}, 1)}
}

func (u *UI) update(fn func(s *snapshot)) {
	u.mu.Lock()
	fn(&u.state)
	u.mu.Unlock()

	select {
	case u.changed <- struct{}{}:
	default:
	}
}

func (u *UI) show(sc screen, peer types.Address) {
	u.update(func(s *snapshot) {
		s.screen = sc
		s.peer = peer
		s.err = ""
	})
}

func (u *UI) snapshot() snapshot {
	u.mu.Lock()
	defer u.mu.Unlock()
	s := u.state
	s.list = append([]ue.SmsRecord(nil), u.state.list...)
	s.talk = append([]talkLine(nil), u.state.talk...)
	return s
}

func (u *UI) ShowNotConnected() { u.show(screenNotConnected, types.InvalidAddress) }
func (u *UI) ShowConnecting()   { u.show(screenConnecting, types.InvalidAddress) }
func (u *UI) ShowConnected()    { u.show(screenMenu, types.InvalidAddress) }
func (u *UI) ShowSmsCompose()   { u.show(screenCompose, types.InvalidAddress) }
func (u *UI) ShowDialing()      { u.show(screenDialing, types.InvalidAddress) }

func (u *UI) ShowNewSms(unread bool) {
	u.update(func(s *snapshot) { s.unread = unread })
}

func (u *UI) ShowSmsList(list []ue.SmsRecord) {
	u.update(func(s *snapshot) {
		s.screen = screenSmsList
		s.list = list
		s.err = ""
	})
}

func (u *UI) ShowSms(rec ue.SmsRecord) {
	u.update(func(s *snapshot) {
		s.screen = screenSms
		s.sms = rec
		s.err = ""
	})
}

func (u *UI) ShowCalling(to types.Address) { u.show(screenCalling, to) }

func (u *UI) ShowIncomingCall(from types.Address) { u.show(screenIncoming, from) }

func (u *UI) ShowTalking(peer types.Address) {
	u.update(func(s *snapshot) {
		s.screen = screenTalking
		s.peer = peer
		s.talk = nil
		s.err = ""
	})
}

func (u *UI) ShowCallText(from types.Address, text string) {
	u.update(func(s *snapshot) {
		s.talk = append(s.talk, talkLine{from: from, text: text, at: time.Now()})
		if len(s.talk) > maxTalkLines {
			s.talk = s.talk[len(s.talk)-maxTalkLines:]
		}
	})
}

func (u *UI) ShowCallEnded(peer types.Address) {
	u.update(func(s *snapshot) { s.notice = fmt.Sprintf("Call with %s ended", peer) })
}

func (u *UI) ShowPeerUnavailable(peer types.Address) {
	u.update(func(s *snapshot) { s.notice = fmt.Sprintf("%s is not available", peer) })
}

func (u *UI) ShowError(msg string) {
	u.update(func(s *snapshot) { s.err = msg })
}

// recordOwnText adds a line the local user said to the call transcript.
func (u *UI) recordOwnText(self types.Address, text string) {
	u.ShowCallText(self, text)
}

func (u *UI) setSms(to types.Address, text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.recipient, u.smsText = to, text
}

func (u *UI) setDialed(to types.Address) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.dialed = to
}

func (u *UI) setCallText(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.callText = text
}

func (u *UI) SmsRecipient() types.Address {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.recipient
}

func (u *UI) SmsText() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.smsText
}

func (u *UI) DialedAddress() types.Address {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dialed
}

func (u *UI) CallText() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.callText
}
