package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goahead/predtracker/internal/calendar"
	"github.com/goahead/predtracker/internal/contracts"
)

// PriceFetcher 실제 종가 공급자
type PriceFetcher interface {
	// ClosingPrice returns the close for symbol on the session date.
	// ErrPriceUnavailable when the provider has no price, ErrFetchFailed on transport errors.
	ClosingPrice(ctx context.Context, symbol string, session time.Time) (float64, error)
}

// Update writes an observed price at a trading-day index into both horizons.
// Index 0 is the baseline and cannot be overwritten.
func (t *Tracker) Update(symbol string, dayIndex int, price float64) error {
	maxIndex := contracts.Horizon30D.Length()
	if dayIndex < 1 || dayIndex >= maxIndex {
		return fmt.Errorf("%w: day index %d outside [1, %d)", contracts.ErrInvalidInput, dayIndex, maxIndex)
	}
	if !validPositive(price) {
		return fmt.Errorf("%w: price %v", contracts.ErrInvalidInput, price)
	}

	err := t.mutate("update_actual", func(records contracts.Records) (bool, error) {
		rec, ok := records[symbol]
		if !ok {
			return false, fmt.Errorf("%w: %s", contracts.ErrMissingRecord, symbol)
		}

		for _, h := range contracts.Horizons {
			if dayIndex < h.Length() {
				p := price
				rec.Track(h).Actual[dayIndex] = &p
			}
		}
		rec.DaysTracked = max(rec.DaysTracked, dayIndex+1)
		rec.LastUpdated = t.cal.Now()
		return true, nil
	})
	if err != nil {
		return err
	}

	t.log.Debug().Str("symbol", symbol).Int("day", dayIndex).Float64("price", price).Msg("actual price recorded")
	return nil
}

// BatchResult 일일 배치 집계
type BatchResult struct {
	Session time.Time         `json:"session"`
	Updated int               `json:"updated"`
	Skipped int               `json:"skipped"`
	Failed  int               `json:"failed"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// RunDaily fills in the closing price of the last completed session for every tracked symbol.
// Per-symbol failures are counted and logged; only context cancellation stops the batch.
func (t *Tracker) RunDaily(ctx context.Context, fetcher PriceFetcher) (*BatchResult, error) {
	result := &BatchResult{Errors: make(map[string]string)}

	if !t.cal.MarketClosed() {
		t.log.Info().Time("next_close", t.cal.NextMarketClose()).Msg("market still open, actual price update deferred")
		return result, nil
	}

	session := t.cal.LastSessionDate()
	result.Session = session
	horizonEnd := contracts.Horizon30D.Length()

	for _, symbol := range t.Symbols() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rec, ok := t.Get(symbol)
		if !ok {
			continue
		}

		if rec.StartDate.IsZero() {
			result.Skipped++
			t.metrics.RecordBatchOutcome("skipped")
			t.log.Warn().Str("symbol", symbol).Msg("record without start date, actual price skipped")
			continue
		}

		elapsed := calendar.TradingDays(rec.StartDate, session)
		if elapsed <= 0 || elapsed >= horizonEnd || rec.Track30D.Actual[elapsed] != nil {
			result.Skipped++
			t.metrics.RecordBatchOutcome("skipped")
			continue
		}

		start := time.Now()
		price, err := fetcher.ClosingPrice(ctx, symbol, session)
		t.metrics.ObserveFetch(time.Since(start).Seconds())
		if err == nil {
			err = t.Update(symbol, elapsed, price)
		}
		if err != nil {
			result.Failed++
			result.Errors[symbol] = err.Error()
			t.metrics.RecordBatchOutcome("failed")

			ev := t.log.Warn()
			if errors.Is(err, contracts.ErrPriceUnavailable) {
				ev = t.log.Info()
			}
			ev.Err(err).Str("symbol", symbol).Int("day", elapsed).Msg("actual price update skipped")
			continue
		}

		result.Updated++
		t.metrics.RecordBatchOutcome("updated")
	}

	t.log.Info().
		Str("session", session.Format(contracts.DateLayout)).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("daily actual price update completed")
	return result, nil
}
