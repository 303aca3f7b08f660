package stability

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/goahead/predtracker/internal/contracts"
	"github.com/goahead/predtracker/pkg/fileutil"
)

// Signals 종목 → 마지막 채택 예측
type Signals map[string]contracts.StableSignal

// Clone returns a copy of the mapping
func (s Signals) Clone() Signals {
	out := make(Signals, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SignalStore 안정 예측 파일 저장소
type SignalStore struct {
	path string
	loc  *time.Location
	log  zerolog.Logger
}

// NewSignalStore creates a store for the stable prediction file
func NewSignalStore(path string, loc *time.Location, log zerolog.Logger) *SignalStore {
	if loc == nil {
		loc = time.UTC
	}
	return &SignalStore{
		path: path,
		loc:  loc,
		log:  log.With().Str("component", "stability.signals").Str("path", path).Logger(),
	}
}

type signalJSON struct {
	contracts.StableSignal
	LastUpdated string `json:"last_updated"`
}

// Load reads the stable prediction file; corrupt files fall back to the backup, then to empty
func (s *SignalStore) Load() Signals {
	var signals Signals
	usedBackup, err := fileutil.ReadJSONWithBackup(s.path, func(data []byte) error {
		decoded, err := s.decode(data)
		if err != nil {
			return err
		}
		signals = decoded
		return nil
	})

	switch {
	case errors.Is(err, os.ErrNotExist):
		return Signals{}
	case err != nil:
		s.log.Warn().Err(err).Msg("stable prediction file unreadable, starting empty")
		return Signals{}
	case usedBackup:
		s.log.Warn().Int("signals", len(signals)).Msg("stable prediction file corrupt, restored from backup")
	}
	return signals
}

func (s *SignalStore) decode(data []byte) (Signals, error) {
	raw := make(map[string]signalJSON)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrCorruptState, err)
	}

	out := make(Signals, len(raw))
	for symbol, r := range raw {
		sig := r.StableSignal
		if sig.Symbol == "" {
			sig.Symbol = symbol
		}
		ts, err := contracts.ParseTimestamp(r.LastUpdated, s.loc)
		if err != nil {
			// 시각을 알 수 없으면 즉시 갱신 가능한 상태로 취급
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("stable signal without valid timestamp")
		}
		sig.LastUpdated = ts
		out[symbol] = sig
	}
	return out, nil
}

// Save writes the mapping atomically
func (s *SignalStore) Save(signals Signals) error {
	err := fileutil.WriteJSONAtomic(s.path, signals, func(data []byte) error {
		_, err := s.decode(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: save %s: %v", contracts.ErrTransientIO, s.path, err)
	}
	return nil
}
