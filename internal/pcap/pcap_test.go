package pcap

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellsim/internal/codec"
	"cellsim/pkg/types"
)

func encode(t *testing.T, m codec.Message) []byte {
	t.Helper()
	data, err := codec.Encode(m)
	require.NoError(t, err)
	return data
}

func TestWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.pcap")
	w, err := Create(path)
	require.NoError(t, err)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return start }

	w.Trace(false, 1, encode(t, codec.NewSystemInfoBroadcast(types.InvalidAddress, types.InvalidAddress, 9)))
	w.Trace(true, 1, encode(t, codec.NewAttachRequest(10, types.InvalidAddress, 9)))
	w.Trace(true, 300, encode(t, codec.NewSms(20, 10, "hello")))
	w.Trace(true, 2, []byte{0xEE, 1, 2})
	assert.Equal(t, 4, w.Count())
	require.NoError(t, w.Close())

	records, err := NewParser().Parse(path)
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.False(t, records[0].Inbound)
	assert.Equal(t, uint64(1), records[0].ConnID)
	assert.Equal(t, codec.SystemInfoBroadcast, records[0].Message.ID)
	assert.True(t, start.Equal(records[0].Timestamp))

	assert.True(t, records[1].Inbound)
	assert.Equal(t, types.Address(10), records[1].Message.Source)

	assert.Equal(t, uint64(300), records[2].ConnID)
	assert.Equal(t, "hello", records[2].Message.Text)

	assert.ErrorIs(t, records[3].Err, codec.ErrUnknownMessageID)
	assert.Equal(t, []byte{0xEE, 1, 2}, records[3].Data)
}

func TestParser_CountMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.pcap")
	w, err := Create(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			w.Trace(true, id, encode(t, codec.NewCallTalk(1, 2, "x")))
		}(uint64(i + 1))
	}
	wg.Wait()
	w.Trace(false, 1, []byte{byte(codec.Sms)})
	require.NoError(t, w.Close())

	counts, err := NewParser().CountMessages(path)
	require.NoError(t, err)
	assert.Equal(t, 10, counts[codec.CallTalk.String()])
	assert.Equal(t, 1, counts["malformed"])
}

func TestWriter_IgnoresFramesAfterClose(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "trace.pcap"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w.Trace(true, 1, []byte{1, 2, 3})
	assert.Equal(t, 0, w.Count())
	assert.NoError(t, w.Close())
}

func TestParser_MissingFile(t *testing.T) {
	_, err := NewParser().Parse(filepath.Join(t.TempDir(), "missing.pcap"))
	assert.Error(t, err)
}

func TestWriter_OversizedFrameIsTruncatedAndLaterFramesSurvive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.pcap")
	w, err := Create(path)
	require.NoError(t, err)

	big := encode(t, codec.NewSms(10, 20, strings.Repeat("a", 64*1024-3)))
	require.Len(t, big, 64*1024)
	w.Trace(true, 1, big)
	w.Trace(true, 1, encode(t, codec.NewSms(10, 20, "hi")))
	require.NoError(t, w.Close())

	records, err := NewParser().Parse(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.True(t, records[0].Truncated)
	assert.Len(t, records[0].Data, MaxTracedPayload)
	assert.Equal(t, big[:MaxTracedPayload], records[0].Data)
	require.NoError(t, records[0].Err)
	assert.Equal(t, codec.Sms, records[0].Message.ID)

	assert.False(t, records[1].Truncated)
	require.NoError(t, records[1].Err)
	assert.Equal(t, "hi", records[1].Message.Text)
}

func TestWriter_LargestWholeFrameIsNotTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.pcap")
	w, err := Create(path)
	require.NoError(t, err)

	frame := encode(t, codec.NewCallTalk(1, 2, strings.Repeat("b", MaxTracedPayload-codec.HeaderSize)))
	w.Trace(false, 7, frame)
	require.NoError(t, w.Close())

	records, err := NewParser().Parse(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Truncated)
	assert.Equal(t, frame, records[0].Data)
	assert.Equal(t, uint64(7), records[0].ConnID)
}

func TestParser_ReportsDamagedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.pcap")
	w, err := Create(path)
	require.NoError(t, err)
	w.Trace(true, 1, encode(t, codec.NewCallRequest(1, 2)))
	require.NoError(t, w.Close())

	// A record header promising more bytes than the file holds.
	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[8:], 100)
	binary.LittleEndian.PutUint32(hdr[12:], 100)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(append(hdr[:], make([]byte, 10)...))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	records, err := NewParser().Parse(path)
	assert.Error(t, err)
	assert.Nil(t, records)
}
