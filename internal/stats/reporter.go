package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Reporter outputs statistics to the log and/or a file.
type Reporter struct {
	collector   *Collector
	intervalSec int
	exportFile  string
}

// NewReporter creates a new statistics reporter.
func NewReporter(collector *Collector, intervalSec int, exportFile string) *Reporter {
	return &Reporter{
		collector:   collector,
		intervalSec: intervalSec,
		exportFile:  exportFile,
	}
}

// StartPeriodicReport begins periodic statistics reporting in a goroutine.
// Reports go to the log so they do not interleave with the operator console.
func (r *Reporter) StartPeriodicReport(ctx context.Context) {
	if r.intervalSec <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(time.Duration(r.intervalSec) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Info(r.FormatReport())
			}
		}
	}()
}

// PrintFinalReport prints the final statistics summary.
func (r *Reporter) PrintFinalReport() {
	r.collector.Finish()
	fmt.Println(r.FormatReport())
}

// ExportJSON exports statistics to a JSON file.
func (r *Reporter) ExportJSON() error {
	if r.exportFile == "" {
		return nil
	}

	data, err := json.MarshalIndent(r.exportMap(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats JSON: %w", err)
	}

	if err := os.WriteFile(r.exportFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write stats file %s: %w", r.exportFile, err)
	}

	log.WithField("file", r.exportFile).Info("Statistics exported to JSON")
	return nil
}

func (r *Reporter) exportMap() map[string]interface{} {
	snap := r.collector.Snapshot()

	export := map[string]interface{}{
		"start_time":   snap.StartTime.Format(time.RFC3339),
		"end_time":     snap.EndTime.Format(time.RFC3339),
		"duration_sec": snap.Duration().Seconds(),
		"messages":     map[string]interface{}{},
		"connections": map[string]interface{}{
			"opened":          snap.Connections,
			"closed":          snap.Disconnections,
			"attaches":        snap.Attaches,
			"attach_rejects":  snap.AttachRejects,
			"superseded":      snap.Superseded,
			"unknown_senders": snap.UnknownSenders,
		},
		"decode_failures": snap.DecodeFailures,
		"send_failures":   snap.SendFailures,
	}

	msgs := export["messages"].(map[string]interface{})
	for name, s := range snap.MessageStats {
		msgs[name] = map[string]interface{}{
			"received":          s.Received,
			"routed":            s.Routed,
			"broadcast":         s.Broadcast,
			"dropped":           s.Dropped,
			"unknown_recipient": s.UnknownRecipient,
		}
	}
	return export
}

// FormatReport generates a formatted statistics report string.
func (r *Reporter) FormatReport() string {
	snap := r.collector.Snapshot()
	elapsed := snap.Duration()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n=== BTS Statistics (elapsed: %s) ===\n", elapsed.Round(time.Second)))
	sb.WriteString("Messages:\n")

	// Sort message types for consistent output
	typeNames := make([]string, 0, len(snap.MessageStats))
	for name := range snap.MessageStats {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	for _, name := range typeNames {
		s := snap.MessageStats[name]
		sb.WriteString(fmt.Sprintf("  %-22s recv=%-5d routed=%-5d bcast=%-5d dropped=%-5d unknown=%-5d\n",
			name+":", s.Received, s.Routed, s.Broadcast, s.Dropped, s.UnknownRecipient))
	}

	sb.WriteString("Connections:\n")
	sb.WriteString(fmt.Sprintf("  Opened: %d  |  Closed: %d  |  Attached: %d  |  Rejected: %d  |  Superseded: %d\n",
		snap.Connections, snap.Disconnections, snap.Attaches, snap.AttachRejects, snap.Superseded))
	sb.WriteString(fmt.Sprintf("  Unknown senders: %d  |  Decode failures: %d  |  Send failures: %d\n",
		snap.UnknownSenders, snap.DecodeFailures, snap.SendFailures))

	total := snap.TotalReceived()
	if elapsed.Seconds() > 0 {
		sb.WriteString("Throughput:\n")
		sb.WriteString(fmt.Sprintf("  %.1f frames/s\n", float64(total)/elapsed.Seconds()))
	}

	sb.WriteString("========================================\n")
	return sb.String()
}
