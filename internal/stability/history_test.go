package stability

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goahead/predtracker/internal/contracts"
)

func TestHistoryLog_CapDropsOldest(t *testing.T) {
	log := NewHistoryLog(filepath.Join(t.TempDir(), "history.json"), 1000, time.UTC, zerolog.Nop())

	batch := make([]contracts.HistoryEntry, 0, 600)
	for i := 0; i < 600; i++ {
		batch = append(batch, contracts.HistoryEntry{Symbol: fmt.Sprintf("S%04d", i), Action: contracts.ActionStable})
	}
	require.NoError(t, log.Append(batch, t0))

	batch = batch[:0]
	for i := 600; i < 1250; i++ {
		batch = append(batch, contracts.HistoryEntry{Symbol: fmt.Sprintf("S%04d", i), Action: contracts.ActionUpdated})
	}
	require.NoError(t, log.Append(batch, t0))

	entries := log.Load()
	require.Len(t, entries, 1000)
	assert.Equal(t, "S0250", entries[0].Symbol)
	assert.Equal(t, "S1249", entries[999].Symbol)
}

func TestHistoryLog_NormalizesShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrapped", `{"last_updated": "2026-10-12T09:00:00", "predictions": [{"symbol": "SBIN", "timestamp": "2026-10-12T09:00:00.123456", "pred_1mo": 8.8, "action": "updated"}]}`},
		{"bare array", `[{"symbol": "SBIN", "timestamp": "2026-10-12T09:00:00.123456Z", "pred_1mo": 8.8, "action": "updated"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "history.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			entries := NewHistoryLog(path, 1000, time.UTC, zerolog.Nop()).Load()
			require.Len(t, entries, 1)
			assert.Equal(t, "SBIN", entries[0].Symbol)
			assert.Equal(t, 8.8, entries[0].Pred1Mo)
			assert.Equal(t, contracts.ActionUpdated, entries[0].Action)
			assert.Equal(t, time.Date(2026, 10, 12, 9, 0, 0, 123456000, time.UTC), entries[0].Timestamp)
		})
	}
}

func TestHistoryLog_AppendUpgradesBareArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"symbol": "SBIN", "timestamp": "2026-10-12T09:00:00Z", "action": "updated"}]`), 0o644))

	log := NewHistoryLog(path, 1000, time.UTC, zerolog.Nop())
	require.NoError(t, log.Append([]contracts.HistoryEntry{{Symbol: "INFY", Action: contracts.ActionStable}}, t0))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"predictions"`)
	assert.Len(t, log.Load(), 2)
}

func TestSignalStore_LegacyTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stable.json")
	body := `{"SBIN": {"pred_1mo": 8.8, "last_updated": "2026-10-12T14:30:00.5", "lock_reason": "new_prediction"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	ist := time.FixedZone("IST", 5*3600+30*60)
	signals := NewSignalStore(path, ist, zerolog.Nop()).Load()
	require.Contains(t, signals, "SBIN")
	assert.Equal(t, "SBIN", signals["SBIN"].Symbol)
	assert.True(t, signals["SBIN"].LastUpdated.Equal(time.Date(2026, 10, 12, 9, 0, 0, 500000000, time.UTC)))
}
