package stats

import (
	"sync"
	"time"
)

// MessageTypeStats holds per-message-type statistics.
type MessageTypeStats struct {
	Received         uint64
	Routed           uint64
	Broadcast        uint64
	Dropped          uint64
	UnknownRecipient uint64
}

// Collector aggregates relay statistics.
type Collector struct {
	StartTime time.Time
	EndTime   time.Time

	MessageStats map[string]*MessageTypeStats

	Connections    uint64
	Disconnections uint64
	Attaches       uint64
	AttachRejects  uint64
	Superseded     uint64
	UnknownSenders uint64
	DecodeFailures uint64
	SendFailures   uint64

	mu sync.Mutex
}

// NewCollector creates a new statistics collector.
func NewCollector() *Collector {
	return &Collector{
		StartTime:    time.Now(),
		MessageStats: make(map[string]*MessageTypeStats),
	}
}

func (c *Collector) getOrCreate(msgType string) *MessageTypeStats {
	if _, ok := c.MessageStats[msgType]; !ok {
		c.MessageStats[msgType] = &MessageTypeStats{}
	}
	return c.MessageStats[msgType]
}

// RecordReceived records a frame arriving from a terminal.
func (c *Collector) RecordReceived(msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getOrCreate(msgType).Received++
}

// RecordRouted records a frame delivered to its destination.
func (c *Collector) RecordRouted(msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getOrCreate(msgType).Routed++
}

// RecordBroadcast records a frame sent to every connection.
func (c *Collector) RecordBroadcast(msgType string, recipients int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getOrCreate(msgType).Broadcast += uint64(recipients)
}

// RecordDropped records a frame discarded by the relay.
func (c *Collector) RecordDropped(msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getOrCreate(msgType).Dropped++
}

// RecordUnknownRecipient records a frame whose destination was not attached.
func (c *Collector) RecordUnknownRecipient(msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getOrCreate(msgType).UnknownRecipient++
}

func (c *Collector) RecordConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Connections++
}

func (c *Collector) RecordDisconnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Disconnections++
}

// RecordAttach records an accepted attach; superseded is true when it
// replaced an older connection of the same address.
func (c *Collector) RecordAttach(superseded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Attaches++
	if superseded {
		c.Superseded++
	}
}

func (c *Collector) RecordAttachReject() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AttachRejects++
}

func (c *Collector) RecordUnknownSender() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.UnknownSenders++
}

func (c *Collector) RecordDecodeFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DecodeFailures++
}

func (c *Collector) RecordSendFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SendFailures++
}

// Finish marks the end of the collection period.
func (c *Collector) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.EndTime = time.Now()
}

// Duration returns the elapsed time.
func (c *Collector) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.EndTime.IsZero() {
		return time.Since(c.StartTime)
	}
	return c.EndTime.Sub(c.StartTime)
}

// TotalReceived returns the number of frames received from terminals.
func (c *Collector) TotalReceived() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total uint64
	for _, s := range c.MessageStats {
		total += s.Received
	}
	return total
}

// Snapshot returns a copy of the current statistics (thread-safe).
func (c *Collector) Snapshot() *Collector {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := &Collector{
		StartTime:      c.StartTime,
		EndTime:        c.EndTime,
		MessageStats:   make(map[string]*MessageTypeStats),
		Connections:    c.Connections,
		Disconnections: c.Disconnections,
		Attaches:       c.Attaches,
		AttachRejects:  c.AttachRejects,
		Superseded:     c.Superseded,
		UnknownSenders: c.UnknownSenders,
		DecodeFailures: c.DecodeFailures,
		SendFailures:   c.SendFailures,
	}

	for k, v := range c.MessageStats {
		s := *v
		snap.MessageStats[k] = &s
	}

	return snap
}
