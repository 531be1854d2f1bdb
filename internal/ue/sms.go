package ue

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"cellsim/pkg/types"
)

// SmsDirection tells whether a message was received or sent.
type SmsDirection int

const (
	SmsReceived SmsDirection = iota
	SmsSent
)

func (d SmsDirection) String() string {
	if d == SmsSent {
		return "sent"
	}
	return "received"
}

// SmsStatus is the lifecycle state of a stored message.
type SmsStatus int

const (
	SmsUnread SmsStatus = iota
	SmsRead
	SmsDelivered
	SmsFailed
)

func (s SmsStatus) String() string {
	switch s {
	case SmsUnread:
		return "unread"
	case SmsRead:
		return "read"
	case SmsDelivered:
		return "sent"
	case SmsFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SmsRecord is one stored message.
type SmsRecord struct {
	Peer      types.Address
	Text      string
	Direction SmsDirection
	Status    SmsStatus
	Time      time.Time
}

// IsRead reports whether a received message has been viewed. Sent messages
// always count as read.
func (r SmsRecord) IsRead() bool {
	return r.Status != SmsUnread
}

// SmsStore keeps a terminal's received and sent messages in arrival order.
type SmsStore struct {
	mu      sync.Mutex
	records []SmsRecord
	now     func() time.Time
}

func NewSmsStore() *SmsStore {
	return &SmsStore{now: time.Now}
}

// NormalizeText prepares user-entered text for sending.
func NormalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// AddReceived stores an inbound message as unread.
func (s *SmsStore) AddReceived(from types.Address, text string) SmsRecord {
	return s.add(SmsRecord{Peer: from, Text: text, Direction: SmsReceived, Status: SmsUnread})
}

// AddSent stores an outbound message.
func (s *SmsStore) AddSent(to types.Address, text string) SmsRecord {
	return s.add(SmsRecord{Peer: to, Text: text, Direction: SmsSent, Status: SmsDelivered})
}

func (s *SmsStore) add(r SmsRecord) SmsRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Time = s.now()
	s.records = append(s.records, r)
	return r
}

// Get returns the message at index.
func (s *SmsStore) Get(index int) (SmsRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.records) {
		return SmsRecord{}, false
	}
	return s.records[index], true
}

// MarkRead marks the message at index as read and returns it.
func (s *SmsStore) MarkRead(index int) (SmsRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.records) {
		return SmsRecord{}, false
	}
	if s.records[index].Status == SmsUnread {
		s.records[index].Status = SmsRead
	}
	return s.records[index], true
}

// MarkLastSentFailed flags the newest message sent to an address as failed.
func (s *SmsStore) MarkLastSentFailed(to types.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		r := &s.records[i]
		if r.Direction == SmsSent && r.Peer == to && r.Status == SmsDelivered {
			r.Status = SmsFailed
			return true
		}
	}
	return false
}

// HasUnread reports whether any received message is unread.
func (s *SmsStore) HasUnread() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Status == SmsUnread {
			return true
		}
	}
	return false
}

// List returns a copy of all messages.
func (s *SmsStore) List() []SmsRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SmsRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *SmsStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type exportedSms struct {
	Peer      uint8     `yaml:"peer"`
	Direction string    `yaml:"direction"`
	Status    string    `yaml:"status"`
	Time      time.Time `yaml:"time"`
	Text      string    `yaml:"text"`
}

type exportedInbox struct {
	Owner    uint8         `yaml:"owner"`
	Messages []exportedSms `yaml:"messages"`
}

// Export writes the store to a YAML file.
func (s *SmsStore) Export(owner types.Address, path string) error {
	inbox := exportedInbox{Owner: uint8(owner)}
	for _, r := range s.List() {
		inbox.Messages = append(inbox.Messages, exportedSms{
			Peer:      uint8(r.Peer),
			Direction: r.Direction.String(),
			Status:    r.Status.String(),
			Time:      r.Time,
			Text:      r.Text,
		})
	}

	data, err := yaml.Marshal(inbox)
	if err != nil {
		return fmt.Errorf("failed to marshal SMS store: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write SMS store %s: %w", path, err)
	}
	return nil
}
