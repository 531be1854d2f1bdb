package ue

import (
	log "github.com/sirupsen/logrus"

	"cellsim/internal/codec"
	"cellsim/pkg/types"
)

// dialingState collects the number to call and then waits for the callee.
// It is entered twice: first to show the dial screen, then with
// requestSent set once a CallRequest is on its way.
type dialingState struct {
	target      types.Address
	requestSent bool
}

func (*dialingState) name() string { return "Dialing" }

func (st *dialingState) enter(s *Session) {
	if !st.requestSent {
		s.ui.ShowDialing()
		return
	}
	s.ui.ShowCalling(st.target)
	s.log.WithField("to", st.target).Info("Calling")
	if !s.send(codec.NewCallRequest(s.address, st.target)) {
		s.ui.ShowError("failed to send call request")
		s.setState(&connectedState{})
		return
	}
	s.armTimer(regular(s.timeouts.CallRequest))
}

func (st *dialingState) handleMessage(s *Session, m codec.Message) {
	switch m.ID {
	case codec.CallAccepted:
		if !st.requestSent || m.Source != st.target {
			s.unexpectedMessage(m)
			return
		}
		s.log.WithField("peer", st.target).Info("Call established")
		s.setState(&talkingState{peer: st.target, lastOutbound: true})
	case codec.CallDropped:
		if !st.requestSent || m.Source != st.target {
			s.unexpectedMessage(m)
			return
		}
		st.peerUnavailable(s)
	case codec.UnknownRecipient:
		if st.requestSent && m.Failed.ID == codec.CallRequest && m.Failed.Destination == st.target {
			st.peerUnavailable(s)
			return
		}
		if !s.undeliveredSms(m) {
			s.unexpectedMessage(m)
		}
	case codec.CallRequest:
		if st.requestSent {
			s.log.WithFields(log.Fields{"target": st.target, "caller": m.Source}).Info("Incoming call while dialing, dropping outgoing call")
			s.send(codec.NewCallDropped(s.address, st.target))
		}
		s.setState(&receivingCallState{caller: m.Source, redirected: true})
	case codec.Sms:
		s.receiveSms(m, true)
	default:
		s.unexpectedMessage(m)
	}
}

func (st *dialingState) handleTimeout(s *Session) {
	s.log.WithField("to", st.target).Info("Call request timed out")
	st.peerUnavailable(s)
}

func (st *dialingState) peerUnavailable(s *Session) {
	s.ui.ShowPeerUnavailable(st.target)
	s.setState(&connectedState{})
}

func (st *dialingState) handleUiAction(s *Session, _ *int) {
	if st.requestSent {
		s.unexpected("ui action while calling")
		return
	}
	to := s.ui.DialedAddress()
	if !to.IsValid() {
		s.ui.ShowError("invalid number")
		return
	}
	if to == s.address {
		s.ui.ShowError("cannot call own number")
		return
	}
	s.setState(&dialingState{target: to, requestSent: true})
}

func (st *dialingState) handleUiBack(s *Session) {
	if st.requestSent {
		s.log.WithField("to", st.target).Info("Call cancelled")
		s.send(codec.NewCallDropped(s.address, st.target))
	}
	s.setState(&connectedState{})
}

// receivingCallState rings until the user answers, rejects or the call
// response timer expires. A call that interrupted another screen runs on
// the redirect timer.
type receivingCallState struct {
	caller     types.Address
	redirected bool
}

func (*receivingCallState) name() string { return "ReceivingCall" }

func (st *receivingCallState) enter(s *Session) {
	s.log.WithField("from", st.caller).Info("Incoming call")
	s.ui.ShowIncomingCall(st.caller)
	if st.redirected {
		s.armTimer(redirect(s.timeouts.CallResponse))
	} else {
		s.armTimer(regular(s.timeouts.CallResponse))
	}
}

func (st *receivingCallState) handleMessage(s *Session, m codec.Message) {
	switch m.ID {
	case codec.CallRequest:
		if m.Source == st.caller {
			s.unexpectedMessage(m)
			return
		}
		s.log.WithFields(log.Fields{"previous": st.caller, "caller": m.Source}).Info("Newer call request replaces ringing call")
		s.send(codec.NewCallDropped(s.address, st.caller))
		s.setState(&receivingCallState{caller: m.Source, redirected: st.redirected})
	case codec.CallDropped:
		if m.Source != st.caller {
			s.unexpectedMessage(m)
			return
		}
		s.ui.ShowCallEnded(st.caller)
		s.setState(&connectedState{})
	case codec.Sms:
		s.receiveSms(m, true)
	default:
		if !s.undeliveredSms(m) {
			s.unexpectedMessage(m)
		}
	}
}

func (st *receivingCallState) handleTimeout(s *Session) {
	s.log.WithField("from", st.caller).Info("Incoming call not answered")
	st.reject(s)
}

func (st *receivingCallState) handleUiAction(s *Session, _ *int) {
	if !s.send(codec.NewCallAccepted(s.address, st.caller)) {
		s.ui.ShowError("failed to answer call")
		s.setState(&connectedState{})
		return
	}
	s.log.WithField("peer", st.caller).Info("Call established")
	s.setState(&talkingState{peer: st.caller, lastOutbound: true})
}

func (st *receivingCallState) handleUiBack(s *Session) {
	st.reject(s)
}

func (st *receivingCallState) reject(s *Session) {
	s.send(codec.NewCallDropped(s.address, st.caller))
	s.setState(&connectedState{})
}

// talkingState exchanges text with the peer. lastOutbound records the
// direction of the most recent traffic and decides who hangs up on
// inactivity.
type talkingState struct {
	peer         types.Address
	lastOutbound bool
}

func (*talkingState) name() string { return "Talking" }

func (st *talkingState) enter(s *Session) {
	s.ui.ShowTalking(st.peer)
	s.armTimer(regular(s.timeouts.TalkInactivity))
}

func (st *talkingState) handleMessage(s *Session, m codec.Message) {
	switch m.ID {
	case codec.CallTalk:
		if m.Source != st.peer {
			s.log.WithFields(log.Fields{"from": m.Source, "peer": st.peer}).Warn("Call text from a party not in the call, ignoring")
			return
		}
		s.ui.ShowCallText(m.Source, m.Text)
		st.lastOutbound = false
		s.armTimer(regular(s.timeouts.TalkInactivity))
	case codec.CallDropped:
		if m.Source != st.peer {
			s.unexpectedMessage(m)
			return
		}
		s.log.WithField("peer", st.peer).Info("Peer ended the call")
		st.end(s)
	case codec.UnknownRecipient:
		if m.Failed.ID.IsCallMessage() && m.Failed.Destination == st.peer {
			s.log.WithField("peer", st.peer).Warn("Peer no longer reachable")
			st.end(s)
			return
		}
		if !s.undeliveredSms(m) {
			s.unexpectedMessage(m)
		}
	case codec.CallRequest:
		if m.Source == st.peer {
			s.unexpectedMessage(m)
			return
		}
		s.rejectCall(m.Source)
	case codec.Sms:
		s.receiveSms(m, true)
	default:
		s.unexpectedMessage(m)
	}
}

func (st *talkingState) handleTimeout(s *Session) {
	s.log.WithFields(log.Fields{"peer": st.peer, "last_outbound": st.lastOutbound}).Info("Call inactive, ending")
	if st.lastOutbound {
		s.send(codec.NewCallDropped(s.address, st.peer))
	}
	st.end(s)
}

func (st *talkingState) handleUiAction(s *Session, _ *int) {
	text := NormalizeText(s.ui.CallText())
	if text == "" {
		s.ui.ShowError("nothing to say")
		return
	}
	if !s.send(codec.NewCallTalk(s.address, st.peer, text)) {
		s.ui.ShowError("failed to send")
		return
	}
	st.lastOutbound = true
	s.armTimer(regular(s.timeouts.TalkInactivity))
}

func (st *talkingState) handleUiBack(s *Session) {
	s.log.WithField("peer", st.peer).Info("Hanging up")
	s.send(codec.NewCallDropped(s.address, st.peer))
	st.end(s)
}

func (st *talkingState) end(s *Session) {
	s.ui.ShowCallEnded(st.peer)
	s.setState(&connectedState{})
}
