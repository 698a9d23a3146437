package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.ObserveRequest(200, 10*time.Millisecond)
	m.ObserveRequest(0, time.Millisecond)
	m.MessageEmitted("SCHEMA")
	m.MessageEmitted("RECORD")
	m.MessageEmitted("RECORD")
	m.SyncFinished(true, time.Unix(1700000000, 0))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesEmitted.WithLabelValues("RECORD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncSuccess))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastSyncTime))

	path := filepath.Join(t.TempDir(), "tap.prom")
	require.NoError(t, m.WriteTextfile(path))

	bs, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(bs), `tap_fred_messages_emitted_total{type="RECORD"} 2`)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest(500, time.Second)
		m.MessageEmitted("RECORD")
		m.SyncFinished(false, time.Now())
		assert.NoError(t, m.WriteTextfile("unused"))
	})
}
