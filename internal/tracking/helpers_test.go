package tracking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goahead/predtracker/internal/calendar"
	"github.com/goahead/predtracker/internal/contracts"
	"github.com/goahead/predtracker/internal/policy"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

// monday 2026-10-12 10:00 IST
var monday = time.Date(2026, 10, 12, 10, 0, 0, 0, ist)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// AdvanceTradingDays moves the clock forward n weekdays, keeping the time of day
func (c *fakeClock) AdvanceTradingDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n > 0 {
		c.now = c.now.AddDate(0, 0, 1)
		if calendar.IsTradingDay(c.now) {
			n--
		}
	}
}

type fakeSnapshots struct {
	stocks []contracts.ScoredSnapshot
}

func (f *fakeSnapshots) Latest(symbol string) (contracts.ScoredSnapshot, error) {
	for _, s := range f.stocks {
		if s.Symbol == symbol {
			return s, nil
		}
	}
	return contracts.ScoredSnapshot{}, contracts.ErrMissingRecord
}

func (f *fakeSnapshots) Top(n int) ([]contracts.ScoredSnapshot, error) {
	if n > len(f.stocks) {
		n = len(f.stocks)
	}
	return f.stocks[:n], nil
}

type fakeFetcher struct {
	prices map[string]float64
	errs   map[string]error
	calls  []string
}

func (f *fakeFetcher) ClosingPrice(_ context.Context, symbol string, _ time.Time) (float64, error) {
	f.calls = append(f.calls, symbol)
	if err, ok := f.errs[symbol]; ok {
		return 0, err
	}
	if p, ok := f.prices[symbol]; ok {
		return p, nil
	}
	return 0, contracts.ErrPriceUnavailable
}

type harness struct {
	tracker *Tracker
	store   *MemoryStore
	clock   *fakeClock
	sleeps  []time.Duration
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		store: NewMemoryStore(),
		clock: &fakeClock{now: monday},
	}
	cal := calendar.New(ist, calendar.WithClock(h.clock.Now))
	opts = append([]Option{WithSleep(func(d time.Duration) { h.sleeps = append(h.sleeps, d) })}, opts...)
	h.tracker = New(h.store, cal, policy.Default(), zerolog.Nop(), opts...)
	return h
}

func sbin() contracts.ScoredSnapshot {
	return contracts.ScoredSnapshot{
		Symbol:       "SBIN",
		CurrentPrice: 815.25,
		Pred5D:       2.4,
		Pred1Mo:      8.8,
		Confidence:   82,
		Score:        71,
	}
}
