package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goahead/predtracker/internal/contracts"
	"github.com/goahead/predtracker/pkg/fileutil"
)

// Store 추적 레코드 저장소
// ⭐ SSOT: 원자적 쓰기 + 백업 + 손상 복구 계약
//   - Load never fails: corrupt primary → backup → empty mapping, each with a warning
//   - Save is all-or-nothing; a failed Save leaves the previous file intact
type Store interface {
	Load() contracts.Records
	Save(records contracts.Records) error
}

// FileStore JSON 파일 기반 저장소
type FileStore struct {
	path string
	loc  *time.Location
	log  zerolog.Logger
}

// NewFileStore creates a file-backed store at path.
// Zone-less timestamps in the file are read in loc (market timezone).
func NewFileStore(path string, loc *time.Location, log zerolog.Logger) *FileStore {
	if loc == nil {
		loc = time.UTC
	}
	return &FileStore{
		path: path,
		loc:  loc,
		log:  log.With().Str("component", "tracking.store").Str("path", path).Logger(),
	}
}

// Path returns the primary file path
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the tracking file, falling back to the backup and then to an empty mapping
func (s *FileStore) Load() contracts.Records {
	var records contracts.Records
	usedBackup, err := fileutil.ReadJSONWithBackup(s.path, func(data []byte) error {
		decoded, err := decodeRecords(data, s.loc, s.log)
		if err != nil {
			return err
		}
		records = decoded
		return nil
	})

	switch {
	case errors.Is(err, os.ErrNotExist):
		s.log.Debug().Msg("tracking file not found, starting empty")
		return contracts.Records{}
	case err != nil:
		s.log.Warn().Err(err).Msg("tracking file and backup unreadable, starting empty")
		return contracts.Records{}
	case usedBackup:
		s.log.Warn().Int("records", len(records)).Msg("tracking file corrupt, restored from backup")
	default:
		s.log.Debug().Int("records", len(records)).Msg("tracking file loaded")
	}
	return records
}

// Save writes the whole mapping atomically
func (s *FileStore) Save(records contracts.Records) error {
	err := fileutil.WriteJSONAtomic(s.path, records, func(data []byte) error {
		_, err := decodeRecords(data, s.loc, zerolog.Nop())
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: save %s: %v", contracts.ErrTransientIO, s.path, err)
	}
	return nil
}

// decodeRecords parses and normalizes a tracking file body record by record.
// Only an unreadable top-level object fails; a malformed record is dropped with a warning
// and a record without a valid start date is kept for date-based operations to skip.
func decodeRecords(data []byte, loc *time.Location, log zerolog.Logger) (contracts.Records, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrCorruptState, err)
	}

	records := make(contracts.Records, len(raw))
	for symbol, body := range raw {
		if len(body) == 0 || string(body) == "null" {
			continue
		}

		rec, err := contracts.DecodeRecord(body, loc)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("malformed tracking record skipped")
			continue
		}
		if rec.Symbol == "" {
			rec.Symbol = symbol
		}
		if rec.StartDate.IsZero() {
			log.Warn().Str("symbol", symbol).Msg("tracking record without valid start date kept")
		}
		records[symbol] = rec
	}
	return records, nil
}

// MemoryStore 테스트용 인메모리 저장소
// Records round-trip through the file encoding so reloads see exactly what a file would hold.
type MemoryStore struct {
	mu       sync.Mutex
	data     []byte
	failNext int
	saves    int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FailNextSaves makes the next n Save calls fail with ErrTransientIO
func (s *MemoryStore) FailNextSaves(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// Saves returns the number of successful saves
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Load returns the last saved mapping
func (s *MemoryStore) Load() contracts.Records {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return contracts.Records{}
	}
	records, err := decodeRecords(s.data, time.UTC, zerolog.Nop())
	if err != nil {
		return contracts.Records{}
	}
	return records
}

// Save stores the encoded mapping unless a failure was injected
func (s *MemoryStore) Save(records contracts.Records) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext > 0 {
		s.failNext--
		return fmt.Errorf("%w: injected save failure", contracts.ErrTransientIO)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("%w: %v", contracts.ErrTransientIO, err)
	}
	s.data = data
	s.saves++
	return nil
}
