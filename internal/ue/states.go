package ue

import (
	"time"

	"cellsim/internal/codec"
	"cellsim/pkg/types"
)

// state is one variant of the session state machine. Every variant handles
// every event kind; events a variant has no transition for are logged as
// unexpected and leave the state unchanged. States never keep a reference
// to the session; it is passed in on each call.
type state interface {
	name() string
	enter(s *Session)
	handleMessage(s *Session, m codec.Message)
	handleTimeout(s *Session)
	handleUiAction(s *Session, index *int)
	handleUiBack(s *Session)
}

type timerDuration struct {
	d        time.Duration
	redirect bool
}

func regular(d time.Duration) timerDuration  { return timerDuration{d: d} }
func redirect(d time.Duration) timerDuration { return timerDuration{d: d, redirect: true} }

// notConnectedState waits for system information from a base station.
type notConnectedState struct{}

func (*notConnectedState) name() string { return "NotConnected" }

func (*notConnectedState) enter(s *Session) {
	s.ui.ShowNotConnected()
}

func (*notConnectedState) handleMessage(s *Session, m codec.Message) {
	switch m.ID {
	case codec.SystemInfoBroadcast:
		s.bts = m.Bts
		s.setState(&connectingState{})
	default:
		s.unexpectedMessage(m)
	}
}

func (*notConnectedState) handleTimeout(s *Session) { s.unexpected("timeout") }

func (*notConnectedState) handleUiAction(s *Session, _ *int) { s.unexpected("ui action") }

func (*notConnectedState) handleUiBack(s *Session) { s.unexpected("ui back") }

// connectingState has sent an attach request and waits for the answer.
type connectingState struct{}

func (*connectingState) name() string { return "Connecting" }

func (*connectingState) enter(s *Session) {
	s.ui.ShowConnecting()
	s.send(codec.NewAttachRequest(s.address, types.InvalidAddress, s.bts))
	s.armTimer(regular(s.timeouts.Attach))
}

func (*connectingState) handleMessage(s *Session, m codec.Message) {
	switch m.ID {
	case codec.AttachResponse:
		if m.Accept {
			s.log.WithField("bts", s.bts).Info("Attached")
			s.setState(&connectedState{})
			return
		}
		s.log.WithField("bts", s.bts).Warn("Attach rejected")
		s.setState(&notConnectedState{})
	default:
		s.unexpectedMessage(m)
	}
}

func (*connectingState) handleTimeout(s *Session) {
	s.log.WithField("bts", s.bts).Warn("Attach timed out")
	s.setState(&notConnectedState{})
}

func (*connectingState) handleUiAction(s *Session, _ *int) { s.unexpected("ui action") }

func (*connectingState) handleUiBack(s *Session) { s.unexpected("ui back") }

// connectedState is the attached idle state showing the main menu.
type connectedState struct{}

func (*connectedState) name() string { return "Connected" }

func (*connectedState) enter(s *Session) {
	s.ui.ShowConnected()
	s.ui.ShowNewSms(s.sms.HasUnread())
}

func (*connectedState) handleMessage(s *Session, m codec.Message) {
	switch m.ID {
	case codec.Sms:
		s.receiveSms(m, true)
	case codec.CallRequest:
		s.setState(&receivingCallState{caller: m.Source})
	default:
		if !s.undeliveredSms(m) {
			s.unexpectedMessage(m)
		}
	}
}

func (*connectedState) handleTimeout(s *Session) { s.unexpected("timeout") }

func (*connectedState) handleUiAction(s *Session, index *int) {
	if index == nil {
		s.unexpected("ui action without menu selection")
		return
	}
	switch *index {
	case MenuComposeSms:
		s.setState(&composingSmsState{})
	case MenuViewSms:
		s.setState(&viewingSmsListState{})
	case MenuDial:
		s.setState(&dialingState{})
	default:
		s.ui.ShowError("unknown menu option")
	}
}

func (*connectedState) handleUiBack(s *Session) { s.unexpected("ui back") }
