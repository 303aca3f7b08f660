package tracking

import (
	"fmt"
	"math"

	"github.com/goahead/predtracker/internal/contracts"
)

// Revise records a mid-course revision of the horizon's trajectory.
// It is applied only when the series has the horizon's length, the horizon is not
// validly locked, and some point moves more than the revision threshold away from
// the original prediction. Points from changeDay onward are written to the updated
// trajectory and changed_on is stamped. Reports whether a revision was recorded.
func (t *Tracker) Revise(symbol string, h contracts.Horizon, series []float64, changeDay int) (bool, error) {
	if !h.Valid() {
		return false, fmt.Errorf("%w: unknown horizon %q", contracts.ErrInvalidInput, h)
	}
	if len(series) != h.Length() {
		return false, fmt.Errorf("%w: %s series has %d points, want %d", contracts.ErrInvalidInput, h, len(series), h.Length())
	}
	if changeDay < 0 || changeDay >= h.Length() {
		return false, fmt.Errorf("%w: change day %d", contracts.ErrInvalidInput, changeDay)
	}

	if t.IsLocked(symbol, h) {
		t.log.Info().Str("symbol", symbol).Str("horizon", string(h)).Msg("revision ignored, horizon locked")
		return false, nil
	}

	threshold := t.policy.Tracking.RevisionThreshold
	revised := false

	err := t.mutate("revise", func(records contracts.Records) (bool, error) {
		revised = false
		rec, ok := records[symbol]
		if !ok {
			return false, fmt.Errorf("%w: %s", contracts.ErrMissingRecord, symbol)
		}

		track := rec.Track(h)
		if !significantChange(track.Predicted, series, threshold) {
			return false, nil
		}

		for i := changeDay; i < len(series); i++ {
			if !finite(series[i]) {
				continue
			}
			v := series[i]
			track.Updated[i] = &v
		}
		day := changeDay
		track.ChangedOn = &day
		rec.LastUpdated = t.cal.Now()
		revised = true
		return true, nil
	})
	if err != nil {
		return false, err
	}

	if revised {
		t.log.Info().Str("symbol", symbol).Str("horizon", string(h)).Int("change_day", changeDay).Msg("prediction revised")
	}
	return revised, nil
}

// significantChange reports whether any point differs by more than threshold (fraction)
func significantChange(original, revised []float64, threshold float64) bool {
	for i := 0; i < len(original) && i < len(revised); i++ {
		orig, next := original[i], revised[i]
		if orig == 0 || !finite(next) {
			continue
		}
		if math.Abs((next-orig)/orig) > threshold {
			return true
		}
	}
	return false
}
