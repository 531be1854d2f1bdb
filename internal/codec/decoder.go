package codec

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"cellsim/pkg/types"
)

// Reader consumes fixed-width fields from a frame buffer.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, r.Remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ReadHeader reads a header and rejects unknown message ids.
func (r *Reader) ReadHeader() (Header, error) {
	b, err := r.take(HeaderSize)
	if err != nil {
		return Header{}, err
	}
	h := Header{
		ID:          MessageID(b[0]),
		Source:      types.Address(b[1]),
		Destination: types.Address(b[2]),
	}
	if !h.ID.IsValid() {
		return Header{}, fmt.Errorf("%w (%d)", ErrUnknownMessageID, b[0])
	}
	return h, nil
}

func (r *Reader) ReadBtsID() (types.BtsID, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return types.BtsID(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: %d", ErrInvalidBool, b[0])
	}
}

// ReadText consumes the rest of the buffer as UTF-8 text.
func (r *Reader) ReadText() (string, error) {
	b := r.buf[r.off:]
	if !utf8.Valid(b) {
		return "", ErrInvalidText
	}
	r.off = len(r.buf)
	return string(b), nil
}

// Done validates that every byte has been consumed.
func (r *Reader) Done() error {
	if n := r.Remaining(); n > 0 {
		return fmt.Errorf("%w: %d bytes", ErrTrailingData, n)
	}
	return nil
}

// DecodeFrame parses the header and keeps the payload encoded. The payload
// is copied so the frame does not alias the transport's buffer.
func DecodeFrame(data []byte) (Frame, error) {
	r := NewReader(data)
	h, err := r.ReadHeader()
	if err != nil {
		return Frame{}, err
	}
	payload := make([]byte, r.Remaining())
	copy(payload, data[HeaderSize:])
	return Frame{Header: h, Payload: payload}, nil
}

// Decode parses raw bytes into a message, requiring every byte to belong to
// a field.
func Decode(data []byte) (Message, error) {
	r := NewReader(data)
	h, err := r.ReadHeader()
	if err != nil {
		return Message{}, err
	}
	m := Message{Header: h}

	switch h.ID {
	case SystemInfoBroadcast, AttachRequest:
		m.Bts, err = r.ReadBtsID()
	case AttachResponse:
		m.Accept, err = r.ReadBool()
	case Sms, CallTalk:
		m.Text, err = r.ReadText()
	case UnknownRecipient, UnknownSender:
		m.Failed, err = r.readFailedHeader()
	case CallRequest, CallAccepted, CallDropped:
	}
	if err != nil {
		return Message{}, fmt.Errorf("failed to decode %s: %w", h.ID, err)
	}
	if err := r.Done(); err != nil {
		return Message{}, fmt.Errorf("failed to decode %s: %w", h.ID, err)
	}
	return m, nil
}

// Message decodes the frame's payload into a full message.
func (f Frame) Message() (Message, error) {
	return Decode(EncodeFrame(f))
}

// The embedded header of a rejection notice may name any id, including one
// this build does not know, so it is read without id validation.
func (r *Reader) readFailedHeader() (Header, error) {
	b, err := r.take(HeaderSize)
	if err != nil {
		return Header{}, err
	}
	return Header{
		ID:          MessageID(b[0]),
		Source:      types.Address(b[1]),
		Destination: types.Address(b[2]),
	}, nil
}
