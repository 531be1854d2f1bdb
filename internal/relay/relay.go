package relay

import (
	"net"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"cellsim/internal/codec"
	"cellsim/internal/stats"
	"cellsim/pkg/types"
)

// Connection is the relay's view of one terminal's transport.
type Connection interface {
	SendMessage(data []byte) bool
	RemoteAddr() net.Addr
}

// Tracer observes every frame crossing the relay.
type Tracer interface {
	Trace(inbound bool, connID uint64, data []byte)
}

// Terminal describes an attached connection.
type Terminal struct {
	ID         ConnID
	Address    types.Address
	Remote     string
	AttachedAt time.Time
}

type entry struct {
	id         ConnID
	conn       Connection
	address    types.Address
	attached   bool
	attachedAt time.Time
}

// Relay tracks terminal connections, their attach state, and routes frames
// between attached terminals by destination address.
type Relay struct {
	btsID  types.BtsID
	stats  *stats.Collector
	ids    *IDAllocator
	tracer Tracer
	log    *log.Entry

	mu       sync.Mutex
	conns    map[ConnID]*entry
	attached map[types.Address]ConnID
}

// New creates a relay serving the given base station.
func New(btsID types.BtsID, collector *stats.Collector) *Relay {
	if collector == nil {
		collector = stats.NewCollector()
	}
	return &Relay{
		btsID:    btsID,
		stats:    collector,
		ids:      NewIDAllocator(),
		log:      log.WithFields(log.Fields{"component": "relay", "bts": btsID}),
		conns:    make(map[ConnID]*entry),
		attached: make(map[types.Address]ConnID),
	}
}

// SetTracer installs a frame tracer. It must be called before connections
// are added.
func (r *Relay) SetTracer(t Tracer) {
	r.tracer = t
}

// BtsID returns the identity announced in system information.
func (r *Relay) BtsID() types.BtsID {
	return r.btsID
}

// Add registers a new, not yet attached connection and sends it the system
// information it needs to attach.
func (r *Relay) Add(conn Connection) ConnID {
	id := r.ids.Allocate()

	r.mu.Lock()
	r.conns[id] = &entry{id: id, conn: conn}
	r.mu.Unlock()

	r.stats.RecordConnection()
	r.log.WithFields(log.Fields{"conn": id, "remote": conn.RemoteAddr()}).Info("Terminal connected")

	sib := codec.NewSystemInfoBroadcast(types.InvalidAddress, types.InvalidAddress, r.btsID)
	if r.send(id, conn, sib) {
		r.stats.RecordBroadcast(codec.SystemInfoBroadcast.String(), 1)
	}
	return id
}

// Remove forgets a connection after its transport went away. Other
// connections are unaffected.
func (r *Relay) Remove(id ConnID) {
	r.mu.Lock()
	e, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, id)
	if e.attached && r.attached[e.address] == id {
		delete(r.attached, e.address)
	}
	r.mu.Unlock()

	r.ids.Release(id)
	r.stats.RecordDisconnection()
	r.log.WithFields(log.Fields{
		"conn":     id,
		"address":  e.address,
		"attached": e.attached,
	}).Info("Terminal disconnected")
}

// HandleFrame processes one frame received on a connection. Malformed frames
// are logged and dropped without affecting the connection.
func (r *Relay) HandleFrame(id ConnID, data []byte) {
	if r.tracer != nil {
		r.tracer.Trace(true, uint64(id), data)
	}

	m, err := codec.Decode(data)
	if err != nil {
		r.stats.RecordDecodeFailure()
		r.log.WithError(err).WithFields(log.Fields{"conn": id, "bytes": len(data)}).Warn("Failed to decode frame, dropping")
		return
	}
	r.stats.RecordReceived(m.ID.String())
	r.log.WithFields(log.Fields{"conn": id, "msg": m.String()}).Debug("Received frame")

	switch m.ID {
	case codec.AttachRequest:
		r.handleAttach(id, m)
	case codec.Sms, codec.CallRequest, codec.CallAccepted, codec.CallDropped, codec.CallTalk:
		r.forward(id, m, data)
	case codec.SystemInfoBroadcast, codec.AttachResponse, codec.UnknownRecipient, codec.UnknownSender:
		r.stats.RecordDropped(m.ID.String())
		r.log.WithFields(log.Fields{"conn": id, "msg": m.String()}).Warn("Terminal sent a network-only message, dropping")
	}
}

func (r *Relay) handleAttach(id ConnID, m codec.Message) {
	accept := m.Source.IsValid() && m.Bts == r.btsID

	r.mu.Lock()
	e, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if !accept {
		r.mu.Unlock()
		r.stats.RecordAttachReject()
		r.log.WithFields(log.Fields{
			"conn":    id,
			"address": m.Source,
			"req_bts": m.Bts,
		}).Warn("Rejecting attach request")
		r.send(id, e.conn, codec.NewAttachResponse(types.InvalidAddress, m.Source, false))
		return
	}

	if e.attached && e.address != m.Source && r.attached[e.address] == id {
		delete(r.attached, e.address)
	}

	superseded := false
	if prevID, ok := r.attached[m.Source]; ok && prevID != id {
		if prev, ok := r.conns[prevID]; ok {
			prev.attached = false
			prev.address = types.InvalidAddress
		}
		superseded = true
		r.log.WithFields(log.Fields{
			"address":  m.Source,
			"old_conn": prevID,
			"new_conn": id,
		}).Warn("Attach supersedes existing connection for address")
	}

	r.attached[m.Source] = id
	e.address = m.Source
	e.attached = true
	e.attachedAt = time.Now()
	conn := e.conn
	r.mu.Unlock()

	r.stats.RecordAttach(superseded)
	r.log.WithFields(log.Fields{"conn": id, "address": m.Source}).Info("Terminal attached")
	r.send(id, conn, codec.NewAttachResponse(types.InvalidAddress, m.Source, true))
}

// forward routes a terminal's frame. The sender check and both lookups
// happen under one lock so a concurrent attach cannot redirect the reply.
func (r *Relay) forward(id ConnID, m codec.Message, data []byte) {
	r.mu.Lock()
	e, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	sender := *e
	valid := e.attached && e.address.Matches(m.Source)
	var target entry
	found := false
	if valid {
		target, found = r.attachedEntryLocked(m.Destination)
	}
	r.mu.Unlock()

	if !valid {
		r.stats.RecordUnknownSender()
		r.stats.RecordDropped(m.ID.String())
		r.log.WithFields(log.Fields{"conn": id, "msg": m.String()}).Warn("Frame from unattached sender")
		r.send(id, sender.conn, codec.NewUnknownSender(types.InvalidAddress, m.Source, m.Header))
		return
	}
	if !found {
		r.stats.RecordUnknownRecipient(m.ID.String())
		r.log.WithField("msg", m.String()).Warn("Destination not attached, answering UnknownRecipient")
		r.send(id, sender.conn, codec.NewUnknownRecipient(types.InvalidAddress, m.Source, m.Header))
		return
	}
	if r.sendRaw(target.id, target.conn, data) {
		r.stats.RecordRouted(m.ID.String())
	}
}

// Route delivers a message originated by the base station itself, such as an
// operator-initiated call. SystemInfoBroadcast goes to every connection.
func (r *Relay) Route(m codec.Message) bool {
	if m.ID == codec.SystemInfoBroadcast {
		return r.Broadcast(m) > 0
	}
	data, err := codec.Encode(m)
	if err != nil {
		r.log.WithError(err).Error("Failed to encode frame for routing")
		return false
	}
	return r.route(m, data)
}

func (r *Relay) route(m codec.Message, data []byte) bool {
	r.mu.Lock()
	target, found := r.attachedEntryLocked(m.Destination)
	sender, senderFound := r.attachedEntryLocked(m.Source)
	r.mu.Unlock()

	if !found {
		r.stats.RecordUnknownRecipient(m.ID.String())
		r.log.WithField("msg", m.String()).Warn("Destination not attached, answering UnknownRecipient")
		if senderFound {
			r.send(sender.id, sender.conn, codec.NewUnknownRecipient(types.InvalidAddress, m.Source, m.Header))
		}
		return false
	}

	if r.sendRaw(target.id, target.conn, data) {
		r.stats.RecordRouted(m.ID.String())
		return true
	}
	return false
}

func (r *Relay) attachedEntryLocked(addr types.Address) (entry, bool) {
	if !addr.IsValid() {
		return entry{}, false
	}
	id, ok := r.attached[addr]
	if !ok {
		return entry{}, false
	}
	e, ok := r.conns[id]
	if !ok {
		return entry{}, false
	}
	return *e, true
}

// Broadcast sends a message to every connection regardless of attach state
// and returns the number of connections it was queued for.
func (r *Relay) Broadcast(m codec.Message) int {
	data, err := codec.Encode(m)
	if err != nil {
		r.log.WithError(err).Error("Failed to encode broadcast frame")
		return 0
	}

	r.mu.Lock()
	targets := make([]entry, 0, len(r.conns))
	for _, e := range r.conns {
		targets = append(targets, *e)
	}
	r.mu.Unlock()

	sent := 0
	for _, e := range targets {
		if r.sendRaw(e.id, e.conn, data) {
			sent++
		}
	}
	r.stats.RecordBroadcast(m.ID.String(), sent)
	return sent
}

// BroadcastSystemInfo announces this base station to every connection.
func (r *Relay) BroadcastSystemInfo() int {
	return r.Broadcast(codec.NewSystemInfoBroadcast(types.InvalidAddress, types.InvalidAddress, r.btsID))
}

// Attached returns the attached terminals ordered by address.
func (r *Relay) Attached() []Terminal {
	var out []Terminal
	r.ForEachAttached(func(t Terminal) {
		out = append(out, t)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// ForEachAttached calls fn for every attached terminal. fn runs without the
// relay lock held and sees a snapshot.
func (r *Relay) ForEachAttached(fn func(Terminal)) {
	r.mu.Lock()
	snapshot := make([]Terminal, 0, len(r.attached))
	for addr, id := range r.attached {
		e := r.conns[id]
		if e == nil {
			continue
		}
		snapshot = append(snapshot, Terminal{
			ID:         id,
			Address:    addr,
			Remote:     e.conn.RemoteAddr().String(),
			AttachedAt: e.attachedAt,
		})
	}
	r.mu.Unlock()

	for _, t := range snapshot {
		fn(t)
	}
}

// Lookup returns the attached terminal with the given address.
func (r *Relay) Lookup(addr types.Address) (Terminal, bool) {
	r.mu.Lock()
	e, ok := r.attachedEntryLocked(addr)
	r.mu.Unlock()
	if !ok {
		return Terminal{}, false
	}
	return Terminal{ID: e.id, Address: addr, Remote: e.conn.RemoteAddr().String(), AttachedAt: e.attachedAt}, true
}

// Counts returns the number of attached and not attached connections.
func (r *Relay) Counts() (attached, notAttached int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attached = len(r.attached)
	return attached, len(r.conns) - attached
}

func (r *Relay) send(id ConnID, conn Connection, m codec.Message) bool {
	data, err := codec.Encode(m)
	if err != nil {
		r.log.WithError(err).Error("Failed to encode frame")
		return false
	}
	return r.sendRaw(id, conn, data)
}

func (r *Relay) sendRaw(id ConnID, conn Connection, data []byte) bool {
	if r.tracer != nil {
		r.tracer.Trace(false, uint64(id), data)
	}
	if !conn.SendMessage(data) {
		r.stats.RecordSendFailure()
		r.log.WithField("conn", id).Error("Failed to send frame")
		return false
	}
	return true
}
