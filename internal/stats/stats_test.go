package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_CountsPerMessageType(t *testing.T) {
	c := NewCollector()
	c.RecordReceived("Sms")
	c.RecordReceived("Sms")
	c.RecordRouted("Sms")
	c.RecordUnknownRecipient("Sms")
	c.RecordBroadcast("SystemInfoBroadcast", 3)

	snap := c.Snapshot()
	assert.Equal(t, uint64(2), snap.MessageStats["Sms"].Received)
	assert.Equal(t, uint64(1), snap.MessageStats["Sms"].Routed)
	assert.Equal(t, uint64(1), snap.MessageStats["Sms"].UnknownRecipient)
	assert.Equal(t, uint64(3), snap.MessageStats["SystemInfoBroadcast"].Broadcast)
	assert.Equal(t, uint64(2), c.TotalReceived())
}

func TestCollector_SnapshotIsIndependent(t *testing.T) {
	c := NewCollector()
	c.RecordReceived("CallTalk")
	snap := c.Snapshot()
	c.RecordReceived("CallTalk")

	assert.Equal(t, uint64(1), snap.MessageStats["CallTalk"].Received)
	assert.Equal(t, uint64(2), c.Snapshot().MessageStats["CallTalk"].Received)
}

func TestCollector_AttachCounters(t *testing.T) {
	c := NewCollector()
	c.RecordAttach(false)
	c.RecordAttach(true)
	c.RecordAttachReject()

	snap := c.Snapshot()
	assert.Equal(t, uint64(2), snap.Attaches)
	assert.Equal(t, uint64(1), snap.Superseded)
	assert.Equal(t, uint64(1), snap.AttachRejects)
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordReceived("Sms")
			c.RecordDecodeFailure()
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, uint64(100), snap.MessageStats["Sms"].Received)
	assert.Equal(t, uint64(100), snap.DecodeFailures)
}

func TestReporter_FormatAndExport(t *testing.T) {
	c := NewCollector()
	c.RecordReceived("AttachRequest")
	c.RecordAttach(false)

	file := filepath.Join(t.TempDir(), "stats.json")
	r := NewReporter(c, 0, file)

	report := r.FormatReport()
	assert.Contains(t, report, "AttachRequest:")
	assert.Contains(t, report, "Attached: 1")

	c.Finish()
	require.NoError(t, r.ExportJSON())

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Contains(t, parsed, "messages")
	assert.Equal(t, float64(1), parsed["connections"].(map[string]interface{})["attaches"])
}

func TestReporter_ExportDisabled(t *testing.T) {
	r := NewReporter(NewCollector(), 0, "")
	assert.NoError(t, r.ExportJSON())
}
