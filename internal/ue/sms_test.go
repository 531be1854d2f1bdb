package ue

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSmsStore_ReadTracking(t *testing.T) {
	s := NewSmsStore()
	assert.False(t, s.HasUnread())

	s.AddReceived(5, "first")
	s.AddSent(6, "reply")
	assert.True(t, s.HasUnread())

	rec, ok := s.MarkRead(0)
	require.True(t, ok)
	assert.True(t, rec.IsRead())
	assert.False(t, s.HasUnread())

	rec, ok = s.MarkRead(1)
	require.True(t, ok)
	assert.Equal(t, SmsDelivered, rec.Status, "sent messages keep their status")

	_, ok = s.MarkRead(2)
	assert.False(t, ok)
	_, ok = s.Get(-1)
	assert.False(t, ok)
}

func TestSmsStore_MarkLastSentFailed(t *testing.T) {
	s := NewSmsStore()
	s.AddSent(7, "a")
	s.AddSent(8, "b")
	s.AddSent(7, "c")

	assert.True(t, s.MarkLastSentFailed(7))
	list := s.List()
	assert.Equal(t, SmsDelivered, list[0].Status)
	assert.Equal(t, SmsFailed, list[2].Status)

	assert.True(t, s.MarkLastSentFailed(7))
	assert.Equal(t, SmsFailed, s.List()[0].Status)
	assert.False(t, s.MarkLastSentFailed(7))
	assert.False(t, s.MarkLastSentFailed(9))
}

func TestSmsStore_ListIsCopy(t *testing.T) {
	s := NewSmsStore()
	s.AddReceived(1, "x")

	list := s.List()
	list[0].Text = "changed"

	rec, _ := s.Get(0)
	assert.Equal(t, "x", rec.Text)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "hello", NormalizeText("  hello\n"))
	assert.Equal(t, "", NormalizeText(" \t "))
	// e followed by a combining acute accent composes to a single rune
	assert.Equal(t, "caf\u00e9", NormalizeText("cafe\u0301"))
}

func TestSmsStore_Export(t *testing.T) {
	s := NewSmsStore()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	s.AddReceived(12, "hi")
	s.AddSent(12, "hello")

	path := filepath.Join(t.TempDir(), "sms.yaml")
	require.NoError(t, s.Export(100, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got exportedInbox
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, uint8(100), got.Owner)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "received", got.Messages[0].Direction)
	assert.Equal(t, "unread", got.Messages[0].Status)
	assert.Equal(t, "sent", got.Messages[1].Direction)
	assert.True(t, fixed.Equal(got.Messages[1].Time))
}

func TestSmsStore_ExportBadPath(t *testing.T) {
	s := NewSmsStore()
	err := s.Export(1, filepath.Join(t.TempDir(), "missing", "sms.yaml"))
	assert.Error(t, err)
}
