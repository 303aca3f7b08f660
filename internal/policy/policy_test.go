package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)

	p, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, p.Storage.SaveAttempts)
	assert.Equal(t, 500*time.Millisecond, p.Storage.SaveBackoff)
	assert.Equal(t, 1000, p.Stability.HistoryCap)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeFile(t, `
market:
  close_time: "16:00"
stability:
  min_age: 12h
  min_change_pct: 2.5
  history_cap: 50
`)

	p, err := Load(path)
	require.NoError(t, err)

	h, m, err := p.CloseHourMinute()
	require.NoError(t, err)
	assert.Equal(t, 16, h)
	assert.Equal(t, 0, m)
	assert.Equal(t, 12*time.Hour, p.Stability.MinAge)
	assert.Equal(t, 2.5, p.Stability.MinChangePct)
	assert.Equal(t, 50, p.Stability.HistoryCap)
	// untouched sections keep defaults
	assert.Equal(t, 35, p.Tracking.RetentionDays)
	assert.Equal(t, []string{".NS", ".BO"}, p.Market.TickerSuffixes)
}

func TestLoad_UnknownFieldFails(t *testing.T) {
	path := writeFile(t, `
tracking:
  retention_dayz: 10
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Policy)
	}{
		{"bad close time", func(p *Policy) { p.Market.CloseTime = "25:99" }},
		{"zero attempts", func(p *Policy) { p.Storage.SaveAttempts = 0 }},
		{"zero history cap", func(p *Policy) { p.Stability.HistoryCap = 0 }},
		{"non-positive fallback price", func(p *Policy) { p.Fallback.CurrentPrice = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(p)
			assert.Error(t, p.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestFallbackSnapshot(t *testing.T) {
	snap := Default().FallbackSnapshot("XYZ")
	assert.Equal(t, "XYZ", snap.Symbol)
	assert.Equal(t, 100.0, snap.CurrentPrice)
	assert.Equal(t, 2.0, snap.Pred5D)
	assert.Equal(t, 8.0, snap.Pred1Mo)
	assert.Equal(t, 75.0, snap.Confidence)
	assert.Equal(t, 65.0, snap.Score)
}
