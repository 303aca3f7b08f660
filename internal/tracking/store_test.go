package tracking

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goahead/predtracker/internal/calendar"
	"github.com/goahead/predtracker/internal/contracts"
	"github.com/goahead/predtracker/internal/policy"
	"github.com/goahead/predtracker/pkg/fileutil"
)

func sampleRecords(t *testing.T) contracts.Records {
	t.Helper()
	h := newHarness(t)
	require.NoError(t, h.tracker.Initialize(sbin()))
	return h.tracker.All()
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "tracking.json"), ist, zerolog.Nop())
	assert.Empty(t, s.Load())
}

func TestFileStore_SaveWritesBackupOfPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.json")
	s := NewFileStore(path, ist, zerolog.Nop())
	records := sampleRecords(t)

	require.NoError(t, s.Save(records))
	_, err := os.Stat(fileutil.BackupPath(path))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.Save(records))
	_, err = os.Stat(fileutil.BackupPath(path))
	assert.NoError(t, err)

	loaded := s.Load()
	require.Contains(t, loaded, "SBIN")
	assert.Equal(t, 815.25, loaded["SBIN"].CurrentPrice)
}

func TestFileStore_CorruptPrimaryFallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.json")
	s := NewFileStore(path, ist, zerolog.Nop())
	records := sampleRecords(t)

	require.NoError(t, s.Save(records))
	require.NoError(t, s.Save(records))
	require.NoError(t, os.WriteFile(path, []byte(`{"SBIN": {"symbol": `), 0o644))

	loaded := s.Load()
	require.Contains(t, loaded, "SBIN")
	assert.Len(t, loaded["SBIN"].Track30D.Predicted, 30)
}

func TestFileStore_CorruptBothIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	require.NoError(t, os.WriteFile(fileutil.BackupPath(path), []byte("[]"), 0o644))

	s := NewFileStore(path, ist, zerolog.Nop())
	assert.Empty(t, s.Load())
}

func TestFileStore_KeyFillsMissingSymbol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.json")
	body := `{"TCS": {"start_date": "2026-10-12", "current_price": 3900, "predicted_5d": [3900, 3910]}, "GONE": null}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	loaded := NewFileStore(path, ist, zerolog.Nop()).Load()
	require.Len(t, loaded, 1)
	assert.Equal(t, "TCS", loaded["TCS"].Symbol)
	assert.Equal(t, []float64{3900, 3910, 3910, 3910, 3910}, loaded["TCS"].Track5D.Predicted)
}

// mixedFile holds a normal record, a legacy lock-only record without start date,
// a zone-less last_updated and one record that is not an object at all.
const mixedFile = `{
  "SBIN": {"symbol": "SBIN", "start_date": "2026-10-12", "current_price": 815.25,
           "predicted_5d": [815.25, 820], "last_updated": "2026-10-12T10:00:00.123456"},
  "TCS": {"locked_5d": true, "lock_start_date_5d": "2026-10-10"},
  "WIPRO": {"symbol": "WIPRO", "start_date": "12/10/2026", "current_price": 540},
  "BAD": 5
}`

func TestFileStore_BadRecordsDoNotFailLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.json")
	require.NoError(t, os.WriteFile(path, []byte(mixedFile), 0o644))

	loaded := NewFileStore(path, ist, zerolog.Nop()).Load()
	require.Len(t, loaded, 3)
	assert.NotContains(t, loaded, "BAD")

	good := loaded["SBIN"]
	require.NotNil(t, good)
	assert.Equal(t, "2026-10-12", good.StartDate.Format(contracts.DateLayout))
	assert.True(t, good.LastUpdated.Equal(time.Date(2026, 10, 12, 10, 0, 0, 123456000, ist)))

	tcs := loaded["TCS"]
	require.NotNil(t, tcs)
	assert.Equal(t, "TCS", tcs.Symbol)
	assert.True(t, tcs.StartDate.IsZero())
	assert.Equal(t, contracts.LockTemporary, tcs.Track5D.Lock.Kind)

	assert.True(t, loaded["WIPRO"].StartDate.IsZero())
	assert.Equal(t, 540.0, loaded["WIPRO"].CurrentPrice)
}

func TestFileStore_SavesKeepRecordsWithoutStartDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.json")
	require.NoError(t, os.WriteFile(path, []byte(mixedFile), 0o644))

	clock := &fakeClock{now: monday}
	cal := calendar.New(ist, calendar.WithClock(clock.Now))
	tr := New(NewFileStore(path, ist, zerolog.Nop()), cal, policy.Default(), zerolog.Nop())

	require.True(t, tr.Lock("INFY", contracts.Horizon5D, false).Success)
	require.True(t, tr.Lock("INFY", contracts.Horizon5D, false).Success)

	for _, p := range []string{path, fileutil.BackupPath(path)} {
		loaded := NewFileStore(p, ist, zerolog.Nop()).Load()
		assert.Contains(t, loaded, "SBIN", p)
		assert.Contains(t, loaded, "TCS", p)
		assert.Contains(t, loaded, "WIPRO", p)
		assert.Contains(t, loaded, "INFY", p)
	}
}

func TestFileStore_MissingPrimaryUsesBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.json")
	s := NewFileStore(path, ist, zerolog.Nop())
	records := sampleRecords(t)

	require.NoError(t, s.Save(records))
	require.NoError(t, s.Save(records))
	require.NoError(t, os.Remove(path))

	loaded := s.Load()
	require.Contains(t, loaded, "SBIN")
	assert.Equal(t, 815.25, loaded["SBIN"].CurrentPrice)
}

func TestMemoryStore_InjectedFailures(t *testing.T) {
	s := NewMemoryStore()
	s.FailNextSaves(1)

	err := s.Save(contracts.Records{})
	assert.ErrorIs(t, err, contracts.ErrTransientIO)
	assert.NoError(t, s.Save(contracts.Records{}))
	assert.Equal(t, 1, s.Saves())
}
