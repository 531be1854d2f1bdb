package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellsim/pkg/types"
)

func sampleMessages() []Message {
	return []Message{
		NewSystemInfoBroadcast(types.InvalidAddress, types.Address(7), types.BtsID(1024)),
		NewAttachRequest(types.Address(7), types.InvalidAddress, types.BtsID(0xDEADBEEF)),
		NewAttachResponse(types.InvalidAddress, types.Address(7), true),
		NewAttachResponse(types.InvalidAddress, types.Address(7), false),
		NewSms(types.Address(123), types.Address(7), "hi"),
		NewSms(types.Address(123), types.Address(7), ""),
		NewSms(types.Address(1), types.Address(255), "zażółć gęślą jaźń ✓"),
		NewCallRequest(types.Address(1), types.Address(2)),
		NewCallAccepted(types.Address(2), types.Address(1)),
		NewCallDropped(types.Address(2), types.Address(1)),
		NewCallTalk(types.Address(1), types.Address(2), "hello there"),
		NewUnknownRecipient(types.InvalidAddress, types.Address(1),
			Header{ID: CallRequest, Source: types.Address(1), Destination: types.Address(9)}),
		NewUnknownSender(types.InvalidAddress, types.Address(4),
			Header{ID: Sms, Source: types.Address(4), Destination: types.Address(5)}),
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, m := range sampleMessages() {
		data, err := Encode(m)
		require.NoError(t, err, m.String())

		got, err := Decode(data)
		require.NoError(t, err, m.String())
		assert.Equal(t, m, got)
	}
}

func TestCodec_FieldLayout(t *testing.T) {
	data, err := Encode(NewAttachRequest(types.Address(7), types.Address(0), types.BtsID(1024)))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 7, 0, 0x00, 0x00, 0x04, 0x00}, data)

	data, err = Encode(NewSms(types.Address(123), types.Address(7), "hi"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 123, 7, 'h', 'i'}, data)

	data, err = Encode(NewAttachResponse(0, 7, true))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0, 7, 1}, data)
}

func TestDecode_TruncatedPrefixes(t *testing.T) {
	fixed := []Message{
		NewSystemInfoBroadcast(0, 7, 1024),
		NewAttachRequest(7, 0, 99),
		NewAttachResponse(0, 7, true),
		NewCallRequest(1, 2),
		NewUnknownRecipient(0, 1, Header{ID: CallTalk, Source: 1, Destination: 2}),
	}
	for _, m := range fixed {
		data, err := Encode(m)
		require.NoError(t, err)
		for n := 0; n < len(data); n++ {
			_, err := Decode(data[:n])
			assert.True(t, errors.Is(err, ErrTruncated), "%s prefix %d: %v", m.ID, n, err)
		}
	}
}

func TestDecode_TextPrefixesStillDecode(t *testing.T) {
	data, err := Encode(NewCallTalk(1, 2, "abc"))
	require.NoError(t, err)

	_, err = Decode(data[:2])
	assert.ErrorIs(t, err, ErrTruncated)

	m, err := Decode(data[:HeaderSize+1])
	require.NoError(t, err)
	assert.Equal(t, "a", m.Text)
}

func TestDecode_TrailingData(t *testing.T) {
	data, err := Encode(NewCallAccepted(2, 1))
	require.NoError(t, err)

	_, err = Decode(append(data, 0xFF))
	assert.ErrorIs(t, err, ErrTrailingData)

	data, err = Encode(NewAttachResponse(0, 7, false))
	require.NoError(t, err)
	_, err = Decode(append(data, 0x00, 0x01))
	assert.ErrorIs(t, err, ErrTrailingData)
}

func TestDecode_UnknownMessageID(t *testing.T) {
	_, err := Decode([]byte{0x7F, 1, 2})
	assert.ErrorIs(t, err, ErrUnknownMessageID)

	_, err = DecodeFrame([]byte{0x00, 1, 2, 3})
	assert.ErrorIs(t, err, ErrUnknownMessageID)

	_, err = Encode(Message{Header: Header{ID: MessageID(0x99)}})
	assert.ErrorIs(t, err, ErrUnknownMessageID)
}

func TestDecode_InvalidFieldValues(t *testing.T) {
	_, err := Decode([]byte{byte(AttachResponse), 0, 7, 2})
	assert.ErrorIs(t, err, ErrInvalidBool)

	_, err = Decode([]byte{byte(Sms), 1, 2, 0xFF, 0xFE})
	assert.ErrorIs(t, err, ErrInvalidText)
}

func TestDecodeFrame_KeepsPayloadAndCopies(t *testing.T) {
	data, err := Encode(NewSms(3, 4, "payload"))
	require.NoError(t, err)

	f, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, Sms, f.ID)
	assert.Equal(t, types.Address(3), f.Source)
	assert.Equal(t, types.Address(4), f.Destination)
	assert.Equal(t, []byte("payload"), f.Payload)

	data[HeaderSize] = 'X'
	assert.Equal(t, []byte("payload"), f.Payload)
	assert.Equal(t, append([]byte{byte(Sms), 3, 4}, "payload"...), EncodeFrame(f))

	m, err := f.Message()
	require.NoError(t, err)
	assert.Equal(t, "payload", m.Text)
}

func TestMessageID_Names(t *testing.T) {
	for _, id := range MessageIDs {
		assert.True(t, id.IsValid())
		assert.NotContains(t, id.String(), "Unknown(")
	}
	assert.Equal(t, "Unknown(200)", MessageID(200).String())
	assert.True(t, CallTalk.IsCallMessage())
	assert.False(t, Sms.IsCallMessage())
}
