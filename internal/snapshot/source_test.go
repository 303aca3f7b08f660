package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goahead/predtracker/internal/contracts"
)

const top10 = `{
  "timestamp": "2026-10-12T09:00:00",
  "stocks": [
    {"symbol": "SBIN", "current_price": 815.25, "pred_5d": 2.4, "pred_1mo": 8.8, "confidence": 82, "score": 71, "technical": {"rsi": 55}},
    {"symbol": "", "current_price": 1},
    {"symbol": "INFY", "current_price": 1500, "pred_5d": 1.1, "pred_1mo": 4.2, "confidence": 70, "score": 64},
    {"symbol": "TCS", "current_price": 3900, "pred_5d": -0.5, "pred_1mo": 2.0, "confidence": 66, "score": 60}
  ]
}`

func writeSnapshot(t *testing.T, body string) *FileSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "top10.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return NewFileSource(path, zerolog.Nop())
}

func TestFileSource_Latest(t *testing.T) {
	src := writeSnapshot(t, top10)

	snap, err := src.Latest("SBIN")
	require.NoError(t, err)
	assert.Equal(t, contracts.ScoredSnapshot{
		Symbol: "SBIN", CurrentPrice: 815.25, Pred5D: 2.4, Pred1Mo: 8.8, Confidence: 82, Score: 71,
	}, snap)

	_, err = src.Latest("WIPRO")
	assert.ErrorIs(t, err, contracts.ErrMissingRecord)
}

func TestFileSource_Top(t *testing.T) {
	src := writeSnapshot(t, top10)

	top, err := src.Top(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "SBIN", top[0].Symbol)
	assert.Equal(t, "INFY", top[1].Symbol)

	all, err := src.Top(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFileSource_CandidatesKeepPayload(t *testing.T) {
	src := writeSnapshot(t, top10)

	cands, err := src.Candidates()
	require.NoError(t, err)
	assert.JSONEq(t, `{"rsi": 55}`, string(cands[0].Technical))
}

func TestFileSource_Errors(t *testing.T) {
	_, err := writeSnapshot(t, "{broken").Top(5)
	assert.ErrorIs(t, err, contracts.ErrCorruptState)

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing.json"), zerolog.Nop()).Latest("SBIN")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
