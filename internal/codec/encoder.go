package codec

import (
	"encoding/binary"
	"fmt"

	"cellsim/pkg/types"
)

// Writer appends fixed-width fields to a frame buffer.
type Writer struct {
	buf []byte
}

// NewWriter starts a frame with its header already written.
func NewWriter(h Header) *Writer {
	w := &Writer{buf: make([]byte, 0, 32)}
	return w.WriteHeader(h)
}

func (w *Writer) WriteHeader(h Header) *Writer {
	w.buf = append(w.buf, byte(h.ID), byte(h.Source), byte(h.Destination))
	return w
}

func (w *Writer) WriteBtsID(id types.BtsID) *Writer {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(id))
	return w
}

func (w *Writer) WriteBool(v bool) *Writer {
	b := byte(0)
	if v {
		b = 1
	}
	w.buf = append(w.buf, b)
	return w
}

// WriteText appends text without a length prefix; it must be the last field.
func (w *Writer) WriteText(s string) *Writer {
	w.buf = append(w.buf, s...)
	return w
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

// Encode serializes a message to bytes.
func Encode(m Message) ([]byte, error) {
	if !m.ID.IsValid() {
		return nil, fmt.Errorf("failed to encode message: %w (%d)", ErrUnknownMessageID, uint8(m.ID))
	}

	w := NewWriter(m.Header)
	switch m.ID {
	case SystemInfoBroadcast, AttachRequest:
		w.WriteBtsID(m.Bts)
	case AttachResponse:
		w.WriteBool(m.Accept)
	case Sms, CallTalk:
		w.WriteText(m.Text)
	case UnknownRecipient, UnknownSender:
		w.WriteHeader(m.Failed)
	case CallRequest, CallAccepted, CallDropped:
	}
	return w.Bytes(), nil
}

// EncodeFrame serializes a frame whose payload is already encoded.
func EncodeFrame(f Frame) []byte {
	w := NewWriter(f.Header)
	w.buf = append(w.buf, f.Payload...)
	return w.Bytes()
}
