package ue

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"cellsim/internal/codec"
	"cellsim/pkg/types"
)

// Session is the state machine of one terminal. Network frames, timer
// expiries, user actions and disconnects are all processed under the
// session lock, so at most one transition runs at a time.
type Session struct {
	address   types.Address
	transport Transport
	timer     Timer
	ui        UserPort
	sms       *SmsStore
	timeouts  Timeouts
	log       *log.Entry

	mu         sync.Mutex
	state      state
	generation uint64
	bts        types.BtsID

	timerArmed      bool
	timerEpoch      uint64
	timerGeneration uint64
}

// NewSession creates a session for the terminal with the given address.
// Call Start before delivering events.
func NewSession(address types.Address, transport Transport, timer Timer, ui UserPort, timeouts Timeouts) *Session {
	return &Session{
		address:   address,
		transport: transport,
		timer:     timer,
		ui:        ui,
		sms:       NewSmsStore(),
		timeouts:  timeouts,
		log:       log.WithFields(log.Fields{"component": "ue", "address": address}),
	}
}

// Start enters the initial state.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != nil {
		return
	}
	s.setState(&notConnectedState{})
}

// Address returns the terminal's phone number.
func (s *Session) Address() types.Address {
	return s.address
}

// Sms returns the terminal's message store.
func (s *Session) Sms() *SmsStore {
	return s.sms
}

// StateName returns the name of the current state.
func (s *Session) StateName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return ""
	}
	return s.state.name()
}

// BtsID returns the base station last announced to this terminal.
func (s *Session) BtsID() types.BtsID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bts
}

// HandleMessage processes one frame received from the base station.
// Malformed frames are logged and dropped.
func (s *Session) HandleMessage(data []byte) {
	m, err := codec.Decode(data)
	if err != nil {
		s.log.WithError(err).WithField("bytes", len(data)).Warn("Failed to decode frame, dropping")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return
	}
	s.log.WithFields(log.Fields{"msg": m.String(), "state": s.state.name()}).Debug("Received frame")

	if m.ID == codec.SystemInfoBroadcast {
		if _, idle := s.state.(*notConnectedState); !idle {
			s.bts = m.Bts
			return
		}
	}
	s.state.handleMessage(s, m)
}

// HandleTimeout processes an expiry of the session timer. Expiries that do
// not belong to the currently armed timer are ignored.
func (s *Session) HandleTimeout(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil || !s.timerArmed || epoch != s.timerEpoch || s.timerGeneration != s.generation {
		s.log.WithField("epoch", epoch).Debug("Ignoring stale timeout")
		return
	}
	s.timerArmed = false
	s.state.handleTimeout(s)
}

// HandleUiAction processes the user's confirm action. index selects a list
// entry or menu option when the current screen offers one.
func (s *Session) HandleUiAction(index *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return
	}
	s.state.handleUiAction(s, index)
}

// HandleUiBack processes the user's back or reject action.
func (s *Session) HandleUiBack() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return
	}
	s.state.handleUiBack(s)
}

// HandleDisconnected forces the session back to not connected from any
// state. It is handled here rather than per state so no state can miss it.
func (s *Session) HandleDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return
	}
	if _, idle := s.state.(*notConnectedState); idle {
		s.log.Debug("Disconnected while not connected")
		return
	}
	s.log.WithField("state", s.state.name()).Warn("Disconnected from base station")
	s.setState(&notConnectedState{})
}

// setState tears the current state down and enters next. The timer armed
// by the old state is stopped before next's entry runs.
func (s *Session) setState(next state) {
	s.stopTimer()
	prev := "none"
	if s.state != nil {
		prev = s.state.name()
	}
	s.generation++
	s.state = next
	s.log.WithFields(log.Fields{"from": prev, "to": next.name()}).Debug("State transition")
	next.enter(s)
}

func (s *Session) armTimer(d timerDuration) {
	if s.timerArmed {
		s.timer.StopTimer()
	}
	if d.redirect {
		s.timer.StartRedirectTimer(d.d)
	} else {
		s.timer.StartTimer(d.d)
	}
	s.timerArmed = true
	s.timerEpoch = s.timer.Epoch()
	s.timerGeneration = s.generation
}

func (s *Session) stopTimer() {
	if !s.timerArmed {
		return
	}
	s.timer.StopTimer()
	s.timerArmed = false
}

// send encodes and queues a frame. A failed send is logged and reported to
// the caller; it is never retried.
func (s *Session) send(m codec.Message) bool {
	data, err := codec.Encode(m)
	if err != nil {
		s.log.WithError(err).Error("Failed to encode frame")
		return false
	}
	if !s.transport.SendMessage(data) {
		s.log.WithField("msg", m.String()).Error("Failed to send frame")
		return false
	}
	s.log.WithField("msg", m.String()).Debug("Sent frame")
	return true
}

func (s *Session) unexpected(event string) {
	s.log.WithFields(log.Fields{"state": s.state.name(), "event": event}).Warn("Unexpected event, ignoring")
}

func (s *Session) unexpectedMessage(m codec.Message) {
	s.unexpected(m.String())
}

// receiveSms stores an inbound message. notify refreshes the indicator.
func (s *Session) receiveSms(m codec.Message, notify bool) {
	s.sms.AddReceived(m.Source, m.Text)
	s.log.WithField("from", m.Source).Info("SMS received")
	if notify {
		s.ui.ShowNewSms(true)
	}
}

// undeliveredSms handles an UnknownRecipient answer to an SMS in any state.
func (s *Session) undeliveredSms(m codec.Message) bool {
	if m.ID != codec.UnknownRecipient || m.Failed.ID != codec.Sms {
		return false
	}
	s.sms.MarkLastSentFailed(m.Failed.Destination)
	s.ui.ShowError("SMS to " + m.Failed.Destination.String() + " could not be delivered")
	return true
}

// rejectCall answers a call request the terminal cannot take.
func (s *Session) rejectCall(from types.Address) {
	s.log.WithField("from", from).Info("Rejecting call request, busy")
	s.send(codec.NewCallDropped(s.address, from))
}
