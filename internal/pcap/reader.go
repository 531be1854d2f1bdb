package pcap

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"

	"cellsim/internal/codec"
)

// Record is one frame read back from a trace.
type Record struct {
	Timestamp time.Time
	Inbound   bool
	ConnID    uint64
	Data      []byte
	// Truncated is set when the frame was longer than MaxTracedPayload and
	// Data holds only its beginning.
	Truncated bool
	Message   codec.Message
	// Err is set when Data does not decode as a frame.
	Err error
}

// Parser reads frame traces.
type Parser struct{}

// NewParser creates a new trace parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads a trace file and returns its frames in order.
func (p *Parser) Parse(filename string) ([]Record, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file %s: %w", filename, err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace header of %s: %w", filename, err)
	}
	linkType := r.LinkType()
	log.WithField("link_type", linkType.String()).Debug("Trace link type detected")

	packetSource := gopacket.NewPacketSource(r, linkType)
	packetSource.DecodeOptions.Lazy = true
	packetSource.DecodeOptions.NoCopy = true

	var records []Record
	totalPackets := 0
	malformed := 0

	for {
		packet, err := packetSource.NextPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read packet %d of %s: %w", totalPackets+1, filename, err)
		}
		totalPackets++

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || (udp.SrcPort != TracePort && udp.DstPort != TracePort) {
			continue
		}
		ipLayer := packet.Layer(layers.LayerTypeIPv4)
		if ipLayer == nil {
			continue
		}
		ip, _ := ipLayer.(*layers.IPv4)

		data := make([]byte, len(udp.Payload))
		copy(data, udp.Payload)

		md := packet.Metadata()
		rec := Record{
			Timestamp: md.Timestamp,
			Inbound:   ip.DstIP.Equal(btsIP),
			Data:      data,
			Truncated: md.Length > md.CaptureLength,
		}
		if rec.Inbound {
			rec.ConnID = connIDFromIP(ip.SrcIP)
		} else {
			rec.ConnID = connIDFromIP(ip.DstIP)
		}

		rec.Message, rec.Err = codec.Decode(data)
		if rec.Err != nil {
			malformed++
			log.WithError(rec.Err).WithField("packet", totalPackets).Debug("Traced frame does not decode")
		}
		records = append(records, rec)
	}

	log.WithFields(log.Fields{
		"total_packets": totalPackets,
		"frames":        len(records),
		"malformed":     malformed,
	}).Info("Trace parsing complete")

	return records, nil
}

// CountMessages returns the number of frames per message type in a trace.
// Frames that do not decode are counted as "malformed".
func (p *Parser) CountMessages(filename string) (map[string]int, error) {
	records, err := p.Parse(filename)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, r := range records {
		if r.Err != nil {
			counts["malformed"]++
			continue
		}
		counts[r.Message.ID.String()]++
	}
	return counts, nil
}
