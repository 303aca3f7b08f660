package tracking

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goahead/predtracker/internal/contracts"
)

func TestSeries_Unlocked(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tracker.Initialize(sbin()))

	s, err := h.tracker.Series("SBIN", contracts.Horizon5D)
	require.NoError(t, err)

	assert.Equal(t, []float64{815.25, 820.14, 825.03, 829.92, 834.82}, s.Predicted)
	assert.Equal(t, []string{"Oct 12", "Oct 13", "Oct 14", "Oct 15", "Oct 16"}, s.Labels)
	assert.False(t, s.Locked)
	assert.Empty(t, s.LockStartDate)
	require.NotNil(t, s.Actual[0])
	assert.Equal(t, 815.25, *s.Actual[0])
	assert.Nil(t, s.Updated[0])
}

func TestSeries_LockedLabelsFollowAnchor(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tracker.Initialize(sbin()))
	require.True(t, h.tracker.Lock("SBIN", contracts.Horizon30D, true).Success)
	h.clock.AdvanceTradingDays(2)

	s, err := h.tracker.Series("SBIN", contracts.Horizon30D)
	require.NoError(t, err)

	assert.True(t, s.Locked)
	assert.True(t, s.Persistent)
	assert.Equal(t, "2026-10-12", s.LockStartDate)
	require.Len(t, s.Labels, 30)
	assert.Equal(t, "Oct 12", s.Labels[0])
	assert.Equal(t, "Oct 19", s.Labels[5])
	assert.Len(t, s.Predicted, 30)
}

func TestSeries_Missing(t *testing.T) {
	h := newHarness(t)

	_, err := h.tracker.Series("NOPE", contracts.Horizon5D)
	assert.ErrorIs(t, err, contracts.ErrMissingRecord)
}

func TestBackupLocked(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	path, err := h.tracker.BackupLocked(dir)
	require.NoError(t, err)
	assert.Empty(t, path)

	require.NoError(t, h.tracker.Initialize(sbin()))
	require.True(t, h.tracker.Lock("SBIN", contracts.Horizon5D, true).Success)
	require.True(t, h.tracker.Lock("SBIN", contracts.Horizon30D, false).Success)

	path, err = h.tracker.BackupLocked(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "locked_predictions_20261012.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var backup LockedBackup
	require.NoError(t, json.Unmarshal(data, &backup))
	assert.Equal(t, 2, backup.TotalLocked)
	require.Len(t, backup.LockedPredictions, 2)
	assert.Equal(t, "5d", backup.LockedPredictions[0].Horizon)
	assert.True(t, backup.LockedPredictions[0].Persistent)
	assert.Equal(t, 2.4, backup.LockedPredictions[0].OriginalPct)
	assert.Equal(t, 8.8, backup.LockedPredictions[1].OriginalPct)
	assert.Equal(t, "2026-10-12", backup.LockedPredictions[1].LockStartDate)
}
