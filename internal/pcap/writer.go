// Package pcap records relay frames to capture files and reads them back.
// Each frame is wrapped in synthetic Ethernet/IPv4/UDP headers so standard
// tools can open the trace. The base station is 10.0.0.1 and terminal
// connection N is 10.1.x.y, where x.y holds the low 16 bits of N.
package pcap

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"
)

// TracePort is the UDP port frames are written with.
const TracePort = 4729

const (
	snapLen = 65535
	// wrapOverhead is the Ethernet, IPv4 and UDP header bytes added to
	// every frame.
	wrapOverhead = 14 + 20 + 8
	// MaxTracedPayload is the longest frame stored whole. Longer frames are
	// cut to this size and keep their original length in the record.
	MaxTracedPayload = snapLen - wrapOverhead
)

var (
	btsIP  = net.IPv4(10, 0, 0, 1).To4()
	btsMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
)

func terminalIP(connID uint64) net.IP {
	return net.IPv4(10, 1, byte(connID>>8), byte(connID)).To4()
}

func terminalMAC(connID uint64) net.HardwareAddr {
	return net.HardwareAddr{0x02, 0x01, 0x00, 0x00, byte(connID >> 8), byte(connID)}
}

// connIDFromIP reverses terminalIP.
func connIDFromIP(ip net.IP) uint64 {
	ip = ip.To4()
	if ip == nil {
		return 0
	}
	return uint64(ip[2])<<8 | uint64(ip[3])
}

// Writer appends frames to a pcap file. It is safe for concurrent use and
// satisfies relay.Tracer.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	w      *pcapgo.Writer
	now    func() time.Time
	count  int
	failed bool
}

// Create opens path for writing and writes the file header.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file %s: %w", path, err)
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write trace header: %w", err)
	}
	log.WithField("file", path).Info("Frame trace enabled")
	return &Writer{f: f, w: w, now: time.Now}, nil
}

// Trace records one frame. inbound frames travel from the terminal to the
// base station.
func (t *Writer) Trace(inbound bool, connID uint64, data []byte) {
	payload := data
	if len(payload) > MaxTracedPayload {
		log.WithFields(log.Fields{
			"conn":  connID,
			"bytes": len(data),
			"kept":  MaxTracedPayload,
		}).Warn("Traced frame exceeds capture limit, truncating")
		payload = payload[:MaxTracedPayload]
	}

	srcIP, dstIP := btsIP, terminalIP(connID)
	srcMAC, dstMAC := btsMAC, terminalMAC(connID)
	if inbound {
		srcIP, dstIP = dstIP, srcIP
		srcMAC, dstMAC = dstMAC, srcMAC
	}

	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	udp := &layers.UDP{
		SrcPort: TracePort,
		DstPort: TracePort,
	}
	udp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		log.WithError(err).Warn("Failed to serialize traced frame")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     t.now(),
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()) + len(data) - len(payload),
	}
	if err := t.w.WritePacket(ci, buf.Bytes()); err != nil {
		if !t.failed {
			log.WithError(err).Error("Failed to write frame trace, further errors suppressed")
			t.failed = true
		}
		return
	}
	t.count++
}

// Count returns the number of frames written.
func (t *Writer) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Close flushes and closes the file. Later frames are ignored.
func (t *Writer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	log.WithField("frames", t.count).Info("Frame trace closed")
	return err
}
