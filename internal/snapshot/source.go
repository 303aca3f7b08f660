package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/goahead/predtracker/internal/contracts"
)

// FileSource 스크리너 산출 파일 ({"stocks": [...]}) 기반 스냅샷 공급자
// The file is re-read on every call; the screener rewrites it between runs.
type FileSource struct {
	path string
	log  zerolog.Logger
}

// NewFileSource creates a source over the screener output file
func NewFileSource(path string, log zerolog.Logger) *FileSource {
	return &FileSource{
		path: path,
		log:  log.With().Str("component", "snapshot.source").Str("path", path).Logger(),
	}
}

type screenerFile struct {
	Stocks []contracts.Candidate `json:"stocks"`
}

// Candidates returns every listed stock in rank order
func (s *FileSource) Candidates() ([]contracts.Candidate, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var f screenerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %v", contracts.ErrCorruptState, s.path, err)
	}

	out := f.Stocks[:0]
	for _, c := range f.Stocks {
		if c.Symbol == "" {
			s.log.Warn().Msg("snapshot entry without symbol skipped")
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Latest returns the snapshot for symbol, or ErrMissingRecord when it is not listed
func (s *FileSource) Latest(symbol string) (contracts.ScoredSnapshot, error) {
	all, err := s.Candidates()
	if err != nil {
		return contracts.ScoredSnapshot{}, err
	}
	for _, c := range all {
		if c.Symbol == symbol {
			return scored(c), nil
		}
	}
	return contracts.ScoredSnapshot{}, fmt.Errorf("%w: %s not in snapshot", contracts.ErrMissingRecord, symbol)
}

// Top returns up to n snapshots in rank order
func (s *FileSource) Top(n int) ([]contracts.ScoredSnapshot, error) {
	all, err := s.Candidates()
	if err != nil {
		return nil, err
	}
	if n > 0 && n < len(all) {
		all = all[:n]
	}

	out := make([]contracts.ScoredSnapshot, len(all))
	for i, c := range all {
		out[i] = scored(c)
	}
	return out, nil
}

func scored(c contracts.Candidate) contracts.ScoredSnapshot {
	return contracts.ScoredSnapshot{
		Symbol:       c.Symbol,
		CurrentPrice: c.CurrentPrice,
		Pred5D:       c.Pred5D,
		Pred1Mo:      c.Pred1Mo,
		Confidence:   c.Confidence,
		Score:        c.Score,
	}
}
