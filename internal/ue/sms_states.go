package ue

import (
	"cellsim/internal/codec"
)

// composingSmsState shows the compose screen until the user sends or
// cancels.
type composingSmsState struct{}

func (*composingSmsState) name() string { return "ComposingSms" }

func (*composingSmsState) enter(s *Session) {
	s.ui.ShowSmsCompose()
}

func (*composingSmsState) handleMessage(s *Session, m codec.Message) {
	switch m.ID {
	case codec.Sms:
		s.receiveSms(m, false)
	case codec.CallRequest:
		s.setState(&receivingCallState{caller: m.Source, redirected: true})
	default:
		if !s.undeliveredSms(m) {
			s.unexpectedMessage(m)
		}
	}
}

func (*composingSmsState) handleTimeout(s *Session) { s.unexpected("timeout") }

func (*composingSmsState) handleUiAction(s *Session, _ *int) {
	to := s.ui.SmsRecipient()
	text := NormalizeText(s.ui.SmsText())
	if !to.IsValid() {
		s.ui.ShowError("invalid recipient")
		return
	}
	if text == "" {
		s.ui.ShowError("message is empty")
		return
	}

	s.sms.AddSent(to, text)
	if !s.send(codec.NewSms(s.address, to, text)) {
		s.sms.MarkLastSentFailed(to)
		s.ui.ShowError("failed to send SMS")
	} else {
		s.log.WithField("to", to).Info("SMS sent")
	}
	s.setState(&connectedState{})
}

func (*composingSmsState) handleUiBack(s *Session) {
	s.setState(&connectedState{})
}

// viewingSmsListState shows every stored message.
type viewingSmsListState struct{}

func (*viewingSmsListState) name() string { return "ViewingSmsList" }

func (*viewingSmsListState) enter(s *Session) {
	s.ui.ShowSmsList(s.sms.List())
	s.ui.ShowNewSms(s.sms.HasUnread())
}

func (*viewingSmsListState) handleMessage(s *Session, m codec.Message) {
	switch m.ID {
	case codec.Sms:
		s.receiveSms(m, true)
		s.ui.ShowSmsList(s.sms.List())
	case codec.CallRequest:
		s.setState(&receivingCallState{caller: m.Source, redirected: true})
	default:
		if !s.undeliveredSms(m) {
			s.unexpectedMessage(m)
			return
		}
		s.ui.ShowSmsList(s.sms.List())
	}
}

func (*viewingSmsListState) handleTimeout(s *Session) { s.unexpected("timeout") }

func (*viewingSmsListState) handleUiAction(s *Session, index *int) {
	if index == nil {
		s.ui.ShowError("no message selected")
		return
	}
	if _, ok := s.sms.Get(*index); !ok {
		s.ui.ShowError("no such message")
		return
	}
	s.setState(&viewingSmsState{index: *index})
}

func (*viewingSmsListState) handleUiBack(s *Session) {
	s.setState(&connectedState{})
}

// viewingSmsState shows one message.
type viewingSmsState struct {
	index int
}

func (*viewingSmsState) name() string { return "ViewingSms" }

func (st *viewingSmsState) enter(s *Session) {
	rec, ok := s.sms.MarkRead(st.index)
	if !ok {
		s.ui.ShowError("no such message")
		s.setState(&viewingSmsListState{})
		return
	}
	s.ui.ShowSms(rec)
	s.ui.ShowNewSms(s.sms.HasUnread())
}

func (*viewingSmsState) handleMessage(s *Session, m codec.Message) {
	switch m.ID {
	case codec.Sms:
		s.receiveSms(m, true)
	case codec.CallRequest:
		s.setState(&receivingCallState{caller: m.Source, redirected: true})
	default:
		if !s.undeliveredSms(m) {
			s.unexpectedMessage(m)
		}
	}
}

func (*viewingSmsState) handleTimeout(s *Session) { s.unexpected("timeout") }

func (*viewingSmsState) handleUiAction(s *Session, _ *int) { s.unexpected("ui action") }

func (*viewingSmsState) handleUiBack(s *Session) {
	s.setState(&viewingSmsListState{})
}
