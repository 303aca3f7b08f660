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

// HistoryLog 사이클별 판정 기록 (FIFO 상한)
// ⭐ SSOT: 이력 파일 스키마 정규화는 Load에서 한 번만
// Accepted shapes: {last_updated, predictions: [...]} or a bare [...] array.
type HistoryLog struct {
	path string
	cap  int
	loc  *time.Location
	log  zerolog.Logger
}

// NewHistoryLog creates a history log capped at limit entries
func NewHistoryLog(path string, limit int, loc *time.Location, log zerolog.Logger) *HistoryLog {
	if loc == nil {
		loc = time.UTC
	}
	return &HistoryLog{
		path: path,
		cap:  limit,
		loc:  loc,
		log:  log.With().Str("component", "stability.history").Str("path", path).Logger(),
	}
}

type historyFile struct {
	LastUpdated time.Time                `json:"last_updated"`
	Predictions []contracts.HistoryEntry `json:"predictions"`
}

type entryJSON struct {
	contracts.HistoryEntry
	Timestamp string `json:"timestamp"`
}

// Load returns all entries, oldest first
func (h *HistoryLog) Load() []contracts.HistoryEntry {
	var entries []contracts.HistoryEntry
	usedBackup, err := fileutil.ReadJSONWithBackup(h.path, func(data []byte) error {
		decoded, err := h.decode(data)
		if err != nil {
			return err
		}
		entries = decoded
		return nil
	})

	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		h.log.Warn().Err(err).Msg("history file unreadable, starting empty")
		return nil
	case usedBackup:
		h.log.Warn().Int("entries", len(entries)).Msg("history file corrupt, restored from backup")
	}
	return entries
}

func (h *HistoryLog) decode(data []byte) ([]contracts.HistoryEntry, error) {
	var raw []entryJSON

	var wrapped struct {
		Predictions []entryJSON `json:"predictions"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		raw = wrapped.Predictions
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: history: %v", contracts.ErrCorruptState, err)
	}

	out := make([]contracts.HistoryEntry, 0, len(raw))
	for _, r := range raw {
		e := r.HistoryEntry
		if ts, err := contracts.ParseTimestamp(r.Timestamp, h.loc); err == nil {
			e.Timestamp = ts
		}
		out = append(out, e)
	}
	return out, nil
}

// Append adds entries and drops the oldest beyond the cap
func (h *HistoryLog) Append(entries []contracts.HistoryEntry, now time.Time) error {
	if len(entries) == 0 {
		return nil
	}

	all := append(h.Load(), entries...)
	if h.cap > 0 && len(all) > h.cap {
		all = all[len(all)-h.cap:]
	}

	body := historyFile{LastUpdated: now, Predictions: all}
	err := fileutil.WriteJSONAtomic(h.path, body, func(data []byte) error {
		_, err := h.decode(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: save history: %v", contracts.ErrTransientIO, err)
	}
	return nil
}
