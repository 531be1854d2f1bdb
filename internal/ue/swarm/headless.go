package swarm

import (
	log "github.com/sirupsen/logrus"

	"cellsim/internal/ue"
	"cellsim/pkg/types"
)

// answerer is the session call the headless UI makes on its own.
type answerer interface {
	HandleUiAction(index *int)
}

// headlessUI logs what a phone screen would show. With autoAnswer set it
// picks up every incoming call.
type headlessUI struct {
	log        *log.Entry
	autoAnswer bool
	counters   *Counters
	session    answerer
}

var _ ue.UserPort = (*headlessUI)(nil)

func newHeadlessUI(addr types.Address, autoAnswer bool, counters *Counters) *headlessUI {
	return &headlessUI{
		log:        log.WithFields(log.Fields{"component": "swarm", "address": addr}),
		autoAnswer: autoAnswer,
		counters:   counters,
	}
}

func (h *headlessUI) ShowNotConnected() { h.log.Debug("Not connected") }
func (h *headlessUI) ShowConnecting()   { h.log.Debug("Connecting") }

func (h *headlessUI) ShowConnected() {
	h.counters.Attached.Add(1)
	h.log.Debug("Connected")
}

func (h *headlessUI) ShowNewSms(unread bool) {
	if unread {
		h.counters.SmsReceived.Add(1)
	}
}

func (h *headlessUI) ShowSmsList(list []ue.SmsRecord) {}
func (h *headlessUI) ShowSms(rec ue.SmsRecord)        {}
func (h *headlessUI) ShowSmsCompose()                 {}
func (h *headlessUI) ShowDialing()                    {}
func (h *headlessUI) ShowCalling(to types.Address)    {}

// ShowIncomingCall runs under the session lock, so the answer is sent from
// a new goroutine.
func (h *headlessUI) ShowIncomingCall(from types.Address) {
	h.counters.CallsReceived.Add(1)
	h.log.WithField("from", from).Info("Incoming call")
	if h.autoAnswer && h.session != nil {
		h.counters.CallsAnswered.Add(1)
		go h.session.HandleUiAction(nil)
	}
}

func (h *headlessUI) ShowTalking(peer types.Address) {
	h.log.WithField("peer", peer).Info("Talking")
}

func (h *headlessUI) ShowCallText(from types.Address, text string) {
	h.log.WithFields(log.Fields{"from": from, "text": text}).Info("Call text")
}

func (h *headlessUI) ShowCallEnded(peer types.Address) {
	h.counters.CallsEnded.Add(1)
	h.log.WithField("peer", peer).Info("Call ended")
}

func (h *headlessUI) ShowPeerUnavailable(peer types.Address) {
	h.log.WithField("peer", peer).Info("Peer unavailable")
}

func (h *headlessUI) ShowError(msg string) {
	h.counters.Errors.Add(1)
	h.log.WithField("error", msg).Warn("Terminal error")
}

func (h *headlessUI) SmsRecipient() types.Address  { return types.InvalidAddress }
func (h *headlessUI) SmsText() string              { return "" }
func (h *headlessUI) DialedAddress() types.Address { return types.InvalidAddress }
func (h *headlessUI) CallText() string             { return "" }
