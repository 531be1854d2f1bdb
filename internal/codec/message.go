package codec

import (
	"fmt"

	"cellsim/pkg/types"
)

// MessageID identifies the kind of a frame. The numeric values are part of
// the wire format and must never be renumbered.
type MessageID uint8

const (
	SystemInfoBroadcast MessageID = 0x01
	AttachRequest       MessageID = 0x02
	AttachResponse      MessageID = 0x03
	Sms                 MessageID = 0x10
	CallRequest         MessageID = 0x20
	CallAccepted        MessageID = 0x21
	CallDropped         MessageID = 0x22
	CallTalk            MessageID = 0x23
	UnknownRecipient    MessageID = 0x30
	UnknownSender       MessageID = 0x31
)

// MessageIDs lists every known message id in wire order.
var MessageIDs = []MessageID{
	SystemInfoBroadcast,
	AttachRequest,
	AttachResponse,
	Sms,
	CallRequest,
	CallAccepted,
	CallDropped,
	CallTalk,
	UnknownRecipient,
	UnknownSender,
}

// IsValid reports whether id is one of the known message ids.
func (id MessageID) IsValid() bool {
	switch id {
	case SystemInfoBroadcast, AttachRequest, AttachResponse, Sms,
		CallRequest, CallAccepted, CallDropped, CallTalk,
		UnknownRecipient, UnknownSender:
		return true
	default:
		return false
	}
}

// String returns a human-readable name for a message id.
func (id MessageID) String() string {
	switch id {
	case SystemInfoBroadcast:
		return "SystemInfoBroadcast"
	case AttachRequest:
		return "AttachRequest"
	case AttachResponse:
		return "AttachResponse"
	case Sms:
		return "Sms"
	case CallRequest:
		return "CallRequest"
	case CallAccepted:
		return "CallAccepted"
	case CallDropped:
		return "CallDropped"
	case CallTalk:
		return "CallTalk"
	case UnknownRecipient:
		return "UnknownRecipient"
	case UnknownSender:
		return "UnknownSender"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(id))
	}
}

// IsCallMessage returns true for the messages that belong to call setup or
// an established call.
func (id MessageID) IsCallMessage() bool {
	switch id {
	case CallRequest, CallAccepted, CallDropped, CallTalk:
		return true
	default:
		return false
	}
}

// Header is the fixed part every frame starts with.
type Header struct {
	ID          MessageID
	Source      types.Address
	Destination types.Address
}

// HeaderSize is the encoded size of a Header in bytes.
const HeaderSize = 3

// Frame is one wire message with its message-specific fields still encoded.
// The relay routes on the header alone and forwards the raw bytes.
type Frame struct {
	Header
	Payload []byte
}

// Message is a fully decoded frame. Only the fields belonging to ID are
// meaningful; the rest stay at their zero value.
type Message struct {
	Header

	// Bts is carried by SystemInfoBroadcast and AttachRequest.
	Bts types.BtsID
	// Accept is carried by AttachResponse.
	Accept bool
	// Text is carried by Sms and CallTalk.
	Text string
	// Failed is the header of the frame that could not be delivered,
	// carried by UnknownRecipient and UnknownSender.
	Failed Header
}

func (m Message) String() string {
	return fmt.Sprintf("%s %s->%s", m.ID, m.Source, m.Destination)
}

func NewSystemInfoBroadcast(src, dst types.Address, bts types.BtsID) Message {
	return Message{Header: Header{ID: SystemInfoBroadcast, Source: src, Destination: dst}, Bts: bts}
}

func NewAttachRequest(src, dst types.Address, bts types.BtsID) Message {
	return Message{Header: Header{ID: AttachRequest, Source: src, Destination: dst}, Bts: bts}
}

func NewAttachResponse(src, dst types.Address, accept bool) Message {
	return Message{Header: Header{ID: AttachResponse, Source: src, Destination: dst}, Accept: accept}
}

func NewSms(src, dst types.Address, text string) Message {
	return Message{Header: Header{ID: Sms, Source: src, Destination: dst}, Text: text}
}

func NewCallRequest(src, dst types.Address) Message {
	return Message{Header: Header{ID: CallRequest, Source: src, Destination: dst}}
}

func NewCallAccepted(src, dst types.Address) Message {
	return Message{Header: Header{ID: CallAccepted, Source: src, Destination: dst}}
}

func NewCallDropped(src, dst types.Address) Message {
	return Message{Header: Header{ID: CallDropped, Source: src, Destination: dst}}
}

func NewCallTalk(src, dst types.Address, text string) Message {
	return Message{Header: Header{ID: CallTalk, Source: src, Destination: dst}, Text: text}
}

// NewUnknownRecipient answers src about a frame whose destination is not attached.
func NewUnknownRecipient(src, dst types.Address, failed Header) Message {
	return Message{Header: Header{ID: UnknownRecipient, Source: src, Destination: dst}, Failed: failed}
}

// NewUnknownSender answers a connection that sent a frame from an address it
// is not attached as.
func NewUnknownSender(src, dst types.Address, failed Header) Message {
	return Message{Header: Header{ID: UnknownSender, Source: src, Destination: dst}, Failed: failed}
}
