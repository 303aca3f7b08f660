package tracking

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goahead/predtracker/internal/calendar"
	"github.com/goahead/predtracker/internal/contracts"
	"github.com/goahead/predtracker/internal/policy"
	"github.com/goahead/predtracker/pkg/metrics"
)

// SnapshotSource 스크리너의 최신 점수 스냅샷 공급자
type SnapshotSource interface {
	// Latest returns the snapshot for symbol, or ErrMissingRecord when it is not listed
	Latest(symbol string) (contracts.ScoredSnapshot, error)
	// Top returns up to n snapshots in rank order
	Top(n int) ([]contracts.ScoredSnapshot, error)
}

// Tracker 추적 레코드의 단일 소유자
// ⭐ SSOT: 메모리 상의 추적 상태는 이 구조체 하나뿐 (전역 캐시 없음)
// Every load-mutate-save sequence runs under mu; the retry backoff sleeps outside it.
type Tracker struct {
	mu      sync.Mutex
	records contracts.Records

	store     Store
	cal       *calendar.Calendar
	policy    *policy.Policy
	snapshots SnapshotSource
	metrics   *metrics.Recorder
	sleep     func(time.Duration)
	log       zerolog.Logger
}

// Option configures a Tracker
type Option func(*Tracker)

// WithSnapshots sets the scored snapshot source used for auto-initialization
func WithSnapshots(src SnapshotSource) Option {
	return func(t *Tracker) {
		t.snapshots = src
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m *metrics.Recorder) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithSleep overrides the retry backoff sleep
func WithSleep(sleep func(time.Duration)) Option {
	return func(t *Tracker) {
		t.sleep = sleep
	}
}

// New creates a tracker and loads the current mapping from store
func New(store Store, cal *calendar.Calendar, pol *policy.Policy, log zerolog.Logger, opts ...Option) *Tracker {
	if pol == nil {
		pol = policy.Default()
	}
	t := &Tracker{
		store:  store,
		cal:    cal,
		policy: pol,
		sleep:  time.Sleep,
		log:    log.With().Str("component", "tracking.tracker").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.records = store.Load()
	t.metrics.SetTrackedSymbols(len(t.records))
	return t
}

// Calendar returns the trading calendar in use
func (t *Tracker) Calendar() *calendar.Calendar {
	return t.cal
}

// Get returns a copy of the record for symbol
func (t *Tracker) Get(symbol string) (*contracts.TrackingRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[symbol]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Exists reports whether symbol is tracked
func (t *Tracker) Exists(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.records[symbol]
	return ok
}

// All returns a copy of every record
func (t *Tracker) All() contracts.Records {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.records.Clone()
}

// Symbols returns the tracked symbols in sorted order
func (t *Tracker) Symbols() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	symbols := make([]string, 0, len(t.records))
	for s := range t.records {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// mutate applies fn to the live mapping and persists it.
// fn reports whether anything changed; nothing is saved otherwise.
// On a save failure the mapping is rolled back to its pre-mutation snapshot and
// the whole sequence is retried up to the configured attempts.
func (t *Tracker) mutate(op string, fn func(records contracts.Records) (bool, error)) error {
	attempts := t.policy.Storage.SaveAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		t.mu.Lock()
		before := t.records.Clone()

		changed, err := fn(t.records)
		if err != nil {
			t.records = before
			t.mu.Unlock()
			return err
		}
		if !changed {
			t.mu.Unlock()
			return nil
		}

		saveErr := t.store.Save(t.records)
		if saveErr == nil {
			n := len(t.records)
			t.mu.Unlock()
			t.metrics.SetTrackedSymbols(n)
			return nil
		}

		t.records = before
		t.mu.Unlock()

		lastErr = saveErr
		t.metrics.RecordSaveFailure("tracking")
		t.log.Warn().
			Err(saveErr).
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("save failed, rolled back")

		if attempt < attempts {
			t.sleep(t.policy.Storage.SaveBackoff)
		}
	}

	t.log.Error().Err(lastErr).Str("op", op).Msg("save failed after retries")
	if errors.Is(lastErr, contracts.ErrTransientIO) {
		return fmt.Errorf("%s: %w", op, lastErr)
	}
	return fmt.Errorf("%s: %w: %v", op, contracts.ErrTransientIO, lastErr)
}

// Initialize starts (or restarts) tracking for symbol from a scored snapshot.
// A non-positive price or non-finite percentages fall back to the policy defaults.
func (t *Tracker) Initialize(snap contracts.ScoredSnapshot) error {
	if snap.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", contracts.ErrInvalidInput)
	}

	err := t.mutate("initialize", func(records contracts.Records) (bool, error) {
		rec, err := t.newRecord(snap)
		if err != nil {
			return false, err
		}
		records[snap.Symbol] = rec
		return true, nil
	})
	if err != nil {
		return err
	}

	t.log.Info().
		Str("symbol", snap.Symbol).
		Float64("current_price", snap.CurrentPrice).
		Float64("pred_5d", snap.Pred5D).
		Float64("pred_1mo", snap.Pred1Mo).
		Msg("tracking initialized")
	return nil
}

// EnsureTracked initializes the top-n snapshot symbols that are not yet tracked.
// It returns the symbols that were added.
func (t *Tracker) EnsureTracked(n int) ([]string, error) {
	if t.snapshots == nil {
		return nil, nil
	}
	if n <= 0 {
		n = t.policy.Tracking.AutoTrackTopN
	}

	top, err := t.snapshots.Top(n)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	var added []string
	for _, snap := range top {
		if snap.Symbol == "" || t.Exists(snap.Symbol) {
			continue
		}
		if err := t.Initialize(snap); err != nil {
			t.log.Warn().Err(err).Str("symbol", snap.Symbol).Msg("auto-initialize failed")
			continue
		}
		added = append(added, snap.Symbol)
	}
	return added, nil
}

// snapshotFor returns the latest snapshot for symbol, or the policy fallback
func (t *Tracker) snapshotFor(symbol string) contracts.ScoredSnapshot {
	if t.snapshots != nil {
		snap, err := t.snapshots.Latest(symbol)
		if err == nil {
			snap.Symbol = symbol
			return snap
		}
		if !errors.Is(err, contracts.ErrMissingRecord) {
			t.log.Warn().Err(err).Str("symbol", symbol).Msg("snapshot lookup failed")
		}
	}
	t.log.Warn().Str("symbol", symbol).Msg("no snapshot for symbol, using fallback initialization")
	return t.policy.FallbackSnapshot(symbol)
}

// newRecord builds a fresh record anchored today
func (t *Tracker) newRecord(snap contracts.ScoredSnapshot) (*contracts.TrackingRecord, error) {
	snap = t.sanitize(snap)

	traj, err := GenerateTrajectories(snap.CurrentPrice, snap.Pred5D, snap.Pred1Mo)
	if err != nil {
		return nil, err
	}

	now := t.cal.Now()
	rec := &contracts.TrackingRecord{
		Symbol:       snap.Symbol,
		StartDate:    calendar.DateOf(now),
		CurrentPrice: snap.CurrentPrice,
		Confidence:   snap.Confidence,
		Score:        snap.Score,
		Pred5D:       snap.Pred5D,
		Pred1Mo:      snap.Pred1Mo,
		Track5D:      newTrack(traj.Predicted5D, snap.CurrentPrice),
		Track30D:     newTrack(traj.Predicted30D, snap.CurrentPrice),
		LastUpdated:  now,
	}
	return rec, nil
}

func newTrack(predicted []float64, base float64) contracts.HorizonTrack {
	actual := make([]*float64, len(predicted))
	b := base
	actual[0] = &b
	return contracts.HorizonTrack{
		Predicted: predicted,
		Actual:    actual,
		Updated:   make([]*float64, len(predicted)),
		Lock:      contracts.Unlocked(),
	}
}

// sanitize substitutes policy defaults for invalid snapshot fields
func (t *Tracker) sanitize(snap contracts.ScoredSnapshot) contracts.ScoredSnapshot {
	fb := t.policy.Fallback
	if !validPositive(snap.CurrentPrice) {
		t.log.Warn().Str("symbol", snap.Symbol).Float64("current_price", snap.CurrentPrice).Msg("invalid price, using fallback")
		snap.CurrentPrice = fb.CurrentPrice
		snap.Pred5D = fb.Pred5D
		snap.Pred1Mo = fb.Pred1Mo
	}
	if !finite(snap.Pred5D) {
		snap.Pred5D = fb.Pred5D
	}
	if !finite(snap.Pred1Mo) {
		snap.Pred1Mo = fb.Pred1Mo
	}
	if !finite(snap.Confidence) {
		snap.Confidence = fb.Confidence
	}
	if !finite(snap.Score) {
		snap.Score = fb.Score
	}
	return snap
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validPositive(v float64) bool {
	return finite(v) && v > 0
}

// Cleanup removes records whose start date is older than the retention window
func (t *Tracker) Cleanup() ([]string, error) {
	today := t.cal.Today()
	maxAge := t.policy.Tracking.RetentionDays

	var removed []string
	err := t.mutate("cleanup", func(records contracts.Records) (bool, error) {
		removed = removed[:0]
		for symbol, rec := range records {
			if rec.StartDate.IsZero() {
				t.log.Warn().Str("symbol", symbol).Msg("record without start date, skipped")
				continue
			}
			age := int(today.Sub(calendar.DateOf(rec.StartDate)).Hours() / 24)
			if age > maxAge {
				delete(records, symbol)
				removed = append(removed, symbol)
			}
		}
		return len(removed) > 0, nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(removed)
	if len(removed) > 0 {
		t.log.Info().Strs("symbols", removed).Int("retention_days", maxAge).Msg("old tracking records removed")
	}
	return removed, nil
}

// Summary returns tracking statistics after expiring stale temporary locks
func (t *Tracker) Summary() contracts.TrackingSummary {
	if _, err := t.RefreshLocks(); err != nil {
		t.log.Warn().Err(err).Msg("lock refresh failed")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := contracts.TrackingSummary{
		TotalStocks: len(t.records),
		LastUpdated: t.cal.Now(),
	}
	for _, rec := range t.records {
		if rec.Track5D.Lock.IsLocked() {
			s.Locked5D++
		}
		if rec.Track30D.Lock.IsLocked() {
			s.Locked30D++
		}
		if rec.DaysTracked > 0 {
			s.ActiveTracking++
		}
	}
	return s
}
