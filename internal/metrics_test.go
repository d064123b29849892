package internal_test

import (
	"encoding/json"
	"testing"

	"github.com/koopa0/system-design/14-group-chat/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := internal.NewMetrics()
	m.ConnectionsTotal.Add(3)
	m.ConnectionsActive.Add(2)
	m.Approvals.Add(1)
	m.EventsDropped.Add(4)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.ConnectionsTotal)
	assert.Equal(t, int64(2), snap.ConnectionsActive)
	assert.Equal(t, int64(1), snap.Approvals)
	assert.Equal(t, int64(4), snap.EventsDropped)
	assert.Zero(t, snap.Rejections)
	assert.GreaterOrEqual(t, snap.UptimeSeconds, int64(0))
	assert.LessOrEqual(t, snap.UptimeSeconds, int64(m.Uptime().Seconds()), "快照的運行時間來自 Uptime")
	assert.Positive(t, m.Uptime())

	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, float64(3), fields["connections_total"])
	assert.Equal(t, float64(4), fields["events_dropped"])
}
