package ue

import (
	"time"

	"cellsim/pkg/types"
)

// Transport sends encoded frames towards the base station. SendMessage must
// not block; it reports whether the frame was queued.
type Transport interface {
	SendMessage(data []byte) bool
}

// Timer is the single-shot timer owned by a session. Epoch identifies the
// most recent start or stop so an expiry can be matched to the arm that
// caused it.
type Timer interface {
	StartTimer(d time.Duration)
	StartRedirectTimer(d time.Duration)
	StopTimer()
	Epoch() uint64
}

// UserPort is the terminal's user interface. Show methods are called while
// the session lock is held and must not call back into the session
// synchronously. The getters return the data the user entered for the
// current action.
type UserPort interface {
	ShowNotConnected()
	ShowConnecting()
	ShowConnected()
	ShowNewSms(unread bool)
	ShowSmsList(list []SmsRecord)
	ShowSms(rec SmsRecord)
	ShowSmsCompose()
	ShowDialing()
	ShowCalling(to types.Address)
	ShowIncomingCall(from types.Address)
	ShowTalking(peer types.Address)
	ShowCallText(from types.Address, text string)
	ShowCallEnded(peer types.Address)
	ShowPeerUnavailable(peer types.Address)
	ShowError(msg string)

	SmsRecipient() types.Address
	SmsText() string
	DialedAddress() types.Address
	CallText() string
}

// Main menu entries offered in the connected state.
const (
	MenuComposeSms = 0
	MenuViewSms    = 1
	MenuDial       = 2
)

// Timeouts configures the session timers.
type Timeouts struct {
	Attach         time.Duration
	CallRequest    time.Duration
	CallResponse   time.Duration
	TalkInactivity time.Duration
}

// DefaultTimeouts returns the reference timer values.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Attach:         500 * time.Millisecond,
		CallRequest:    62 * time.Second,
		CallResponse:   30 * time.Second,
		TalkInactivity: 2 * time.Minute,
	}
}
