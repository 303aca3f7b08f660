package tracking

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/goahead/predtracker/internal/calendar"
	"github.com/goahead/predtracker/internal/contracts"
)

// chartPlaces 차트 값 소수 자릿수
const chartPlaces = 2

// Series returns the chart-ready series for (symbol, horizon).
// The lazy lock check runs first; labels follow the lock anchor when locked
// and start at today otherwise.
func (t *Tracker) Series(symbol string, h contracts.Horizon) (*contracts.ChartSeries, error) {
	state, err := t.LockState(symbol, h)
	if err != nil {
		return nil, err
	}

	rec, ok := t.Get(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", contracts.ErrMissingRecord, symbol)
	}
	track := rec.Track(h)

	anchor := t.cal.Today()
	if state.IsLocked() {
		anchor = state.Anchor
	}

	out := &contracts.ChartSeries{
		Symbol:      symbol,
		Horizon:     h,
		Labels:      calendar.Labels(anchor, h.Length()),
		Predicted:   roundAll(track.Predicted),
		Actual:      roundNullable(track.Actual),
		Updated:     roundNullable(track.Updated),
		Locked:      state.IsLocked(),
		Persistent:  state.IsPersistent(),
		ChangedOn:   track.ChangedOn,
		DaysTracked: rec.DaysTracked,
	}
	if state.IsLocked() {
		out.LockStartDate = state.Anchor.Format(contracts.DateLayout)
	}
	return out, nil
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(chartPlaces).Float64()
	return f
}

func roundAll(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = round2(v)
	}
	return out
}

func roundNullable(in []*float64) []*float64 {
	out := make([]*float64, len(in))
	for i, p := range in {
		if p != nil {
			v := round2(*p)
			out[i] = &v
		}
	}
	return out
}
