package tracking

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/goahead/predtracker/internal/contracts"
	"github.com/goahead/predtracker/pkg/fileutil"
)

// LockedPrediction 잠긴 예측 백업 항목
type LockedPrediction struct {
	Symbol        string     `json:"symbol"`
	Horizon       string     `json:"horizon"`
	Persistent    bool       `json:"persistent"`
	LockStartDate string     `json:"lock_start_date"`
	LockedAt      time.Time  `json:"locked_at"`
	OriginalPct   float64    `json:"original_pct"`
	Predicted     []float64  `json:"predicted"`
	Actual        []*float64 `json:"actual"`
	Updated       []*float64 `json:"updated"`
	ChangedOn     *int       `json:"changed_on"`
}

// LockedBackup 잠긴 예측 백업 파일
type LockedBackup struct {
	BackupTime        time.Time          `json:"backup_time"`
	TotalLocked       int                `json:"total_locked"`
	LockedPredictions []LockedPrediction `json:"locked_predictions"`
}

// BackupLocked writes every validly locked horizon to locked_predictions_<YYYYMMDD>.json in dir.
// It returns the written path, or "" when nothing is locked.
func (t *Tracker) BackupLocked(dir string) (string, error) {
	if _, err := t.RefreshLocks(); err != nil {
		t.log.Warn().Err(err).Msg("lock refresh before backup failed")
	}

	now := t.cal.Now()
	today := t.cal.Today()
	backup := LockedBackup{BackupTime: now}

	for _, symbol := range t.Symbols() {
		rec, ok := t.Get(symbol)
		if !ok {
			continue
		}
		for _, h := range contracts.Horizons {
			track := rec.Track(h)
			if !track.Lock.IsLocked() || lockExpired(track.Lock, h, today) {
				continue
			}
			pct := rec.Pred5D
			if h == contracts.Horizon30D {
				pct = rec.Pred1Mo
			}
			backup.LockedPredictions = append(backup.LockedPredictions, LockedPrediction{
				Symbol:        symbol,
				Horizon:       string(h),
				Persistent:    track.Lock.IsPersistent(),
				LockStartDate: track.Lock.Anchor.Format(contracts.DateLayout),
				LockedAt:      track.Lock.LockedAt,
				OriginalPct:   pct,
				Predicted:     track.Predicted,
				Actual:        track.Actual,
				Updated:       track.Updated,
				ChangedOn:     track.ChangedOn,
			})
		}
	}
	backup.TotalLocked = len(backup.LockedPredictions)

	if backup.TotalLocked == 0 {
		t.log.Info().Msg("no locked predictions to back up")
		return "", nil
	}

	path := filepath.Join(dir, fmt.Sprintf("locked_predictions_%s.json", now.Format("20060102")))
	if err := fileutil.WriteJSONAtomic(path, backup, nil); err != nil {
		return "", fmt.Errorf("%w: locked backup: %v", contracts.ErrTransientIO, err)
	}

	t.log.Info().Str("path", path).Int("locked", backup.TotalLocked).Msg("locked predictions backed up")
	return path, nil
}
