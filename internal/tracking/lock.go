package tracking

import (
	"fmt"
	"time"

	"github.com/goahead/predtracker/internal/calendar"
	"github.com/goahead/predtracker/internal/contracts"
)

// 잠금 상태 전이
//
//	Unlocked ──lock(p)──▶ Temporary{today} | Persistent{today}
//	any      ──lock(p)──▶ re-anchored at today (not idempotent)
//	any      ──unlock──▶ Unlocked
//	Temporary{a} ──(trading_days(a, today) ≥ H, on read)──▶ Unlocked
//
// Persistent locks never expire.

// Lock locks the horizon for symbol, auto-initializing tracking when needed
func (t *Tracker) Lock(symbol string, h contracts.Horizon, persistent bool) contracts.LockAck {
	if !h.Valid() {
		return t.ack(false, fmt.Sprintf("unknown horizon %q", h))
	}

	snap := t.pendingSnapshot(symbol)
	var anchor string

	err := t.mutate("lock", func(records contracts.Records) (bool, error) {
		rec, err := t.ensureRecord(records, symbol, snap)
		if err != nil {
			return false, err
		}

		now := t.cal.Now()
		today := calendar.DateOf(now)
		track := rec.Track(h)
		if persistent {
			track.Lock = contracts.PersistentLock(today, now)
		} else {
			track.Lock = contracts.TemporaryLock(today, now)
		}
		rec.LastUpdated = now
		anchor = today.Format(contracts.DateLayout)
		return true, nil
	})
	if err != nil {
		return t.ack(false, fmt.Sprintf("failed to lock %s %s: %v", symbol, h, err))
	}

	kind := contracts.LockTemporary
	if persistent {
		kind = contracts.LockPersistent
	}
	t.metrics.RecordLockEvent(string(h), "lock_"+string(kind))
	t.log.Info().
		Str("symbol", symbol).
		Str("horizon", string(h)).
		Str("kind", string(kind)).
		Str("anchor", anchor).
		Msg("prediction locked")

	return t.ack(true, fmt.Sprintf("%s %s prediction locked (%s) from %s", symbol, h, kind, anchor))
}

// Unlock clears the lock on the horizon. Unlocking an unlocked horizon succeeds without a write.
func (t *Tracker) Unlock(symbol string, h contracts.Horizon) contracts.LockAck {
	if !h.Valid() {
		return t.ack(false, fmt.Sprintf("unknown horizon %q", h))
	}

	snap := t.pendingSnapshot(symbol)
	wasLocked := false

	err := t.mutate("unlock", func(records contracts.Records) (bool, error) {
		_, existed := records[symbol]
		rec, err := t.ensureRecord(records, symbol, snap)
		if err != nil {
			return false, err
		}

		track := rec.Track(h)
		wasLocked = track.Lock.IsLocked()
		if !wasLocked {
			return !existed, nil
		}

		track.Lock = contracts.Unlocked()
		rec.LastUpdated = t.cal.Now()
		return true, nil
	})
	if err != nil {
		return t.ack(false, fmt.Sprintf("failed to unlock %s %s: %v", symbol, h, err))
	}

	if !wasLocked {
		return t.ack(true, fmt.Sprintf("%s %s prediction already unlocked", symbol, h))
	}

	t.metrics.RecordLockEvent(string(h), "unlock")
	t.log.Info().Str("symbol", symbol).Str("horizon", string(h)).Msg("prediction unlocked")
	return t.ack(true, fmt.Sprintf("%s %s prediction unlocked", symbol, h))
}

// LockState returns the horizon's lock after the lazy validity check.
// An expired temporary lock is cleared and persisted as a side effect.
func (t *Tracker) LockState(symbol string, h contracts.Horizon) (contracts.LockState, error) {
	if !h.Valid() {
		return contracts.Unlocked(), fmt.Errorf("%w: unknown horizon %q", contracts.ErrInvalidInput, h)
	}
	t.checkLocks(symbol)

	rec, ok := t.Get(symbol)
	if !ok {
		return contracts.Unlocked(), fmt.Errorf("%w: %s", contracts.ErrMissingRecord, symbol)
	}
	state := rec.Track(h).Lock
	if lockExpired(state, h, t.cal.Today()) {
		return contracts.Unlocked(), nil
	}
	return state, nil
}

// IsLocked reports whether the horizon is validly locked
func (t *Tracker) IsLocked(symbol string, h contracts.Horizon) bool {
	state, err := t.LockState(symbol, h)
	if err != nil {
		return false
	}
	return state.IsLocked()
}

// LockedDateLabels returns one "Jan 02" label per trading-day index,
// anchored at the lock date. Empty when unlocked or expired.
func (t *Tracker) LockedDateLabels(symbol string, h contracts.Horizon) []string {
	state, err := t.LockState(symbol, h)
	if err != nil || !state.IsLocked() {
		return []string{}
	}
	return calendar.Labels(state.Anchor, h.Length())
}

// RefreshLocks runs the lazy validity check over every record and returns
// the number of temporary locks that expired
func (t *Tracker) RefreshLocks() (int, error) {
	expired := 0
	err := t.mutate("refresh_locks", func(records contracts.Records) (bool, error) {
		expired = 0
		for _, rec := range records {
			expired += t.expireLocks(rec)
		}
		return expired > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}

// checkLocks runs the lazy validity check for one symbol
// A failed save is logged; the expiry is retried on the next read.
func (t *Tracker) checkLocks(symbol string) {
	err := t.mutate("expire_locks", func(records contracts.Records) (bool, error) {
		rec, ok := records[symbol]
		if !ok {
			return false, nil
		}
		return t.expireLocks(rec) > 0, nil
	})
	if err != nil {
		t.log.Warn().Err(err).Str("symbol", symbol).Msg("persisting lock expiry failed")
	}
}

// expireLocks clears temporary locks that reached the horizon length
func (t *Tracker) expireLocks(rec *contracts.TrackingRecord) int {
	today := t.cal.Today()
	expired := 0
	for _, h := range contracts.Horizons {
		track := rec.Track(h)
		if !lockExpired(track.Lock, h, today) {
			continue
		}
		anchor := track.Lock.Anchor
		track.Lock = contracts.Unlocked()
		expired++
		t.metrics.RecordLockEvent(string(h), "expired")
		t.log.Info().
			Str("symbol", rec.Symbol).
			Str("horizon", string(h)).
			Str("anchor", anchor.Format(contracts.DateLayout)).
			Msg("temporary lock expired")
	}
	return expired
}

// lockExpired reports whether a temporary lock has run its horizon length
func lockExpired(s contracts.LockState, h contracts.Horizon, today time.Time) bool {
	switch s.Kind {
	case contracts.LockTemporary:
		return calendar.TradingDays(s.Anchor, today) >= h.Length()
	case contracts.LockPersistent, contracts.LockUnlocked:
		return false
	default:
		return false
	}
}

// pendingSnapshot fetches the init snapshot outside the lock when symbol is untracked
func (t *Tracker) pendingSnapshot(symbol string) *contracts.ScoredSnapshot {
	if t.Exists(symbol) {
		return nil
	}
	snap := t.snapshotFor(symbol)
	return &snap
}

// ensureRecord returns the record for symbol, creating it from snap if missing
func (t *Tracker) ensureRecord(records contracts.Records, symbol string, snap *contracts.ScoredSnapshot) (*contracts.TrackingRecord, error) {
	if rec, ok := records[symbol]; ok {
		return rec, nil
	}
	if snap == nil {
		fb := t.policy.FallbackSnapshot(symbol)
		snap = &fb
	}

	rec, err := t.newRecord(*snap)
	if err != nil {
		return nil, err
	}
	records[symbol] = rec
	t.log.Info().Str("symbol", symbol).Msg("tracking auto-initialized")
	return rec, nil
}

func (t *Tracker) ack(ok bool, msg string) contracts.LockAck {
	return contracts.LockAck{
		Success:   ok,
		Message:   msg,
		Timestamp: t.cal.Now(),
	}
}
