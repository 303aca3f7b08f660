package stability

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goahead/predtracker/internal/contracts"
	"github.com/goahead/predtracker/internal/policy"
	"github.com/goahead/predtracker/pkg/metrics"
)

// 판정 사유
const (
	ReasonNewSymbol     = "new_symbol"
	ReasonNewPrediction = "new_prediction"
	ReasonTooRecent     = "within_stability_period"
	ReasonSmallChange   = "change_below_threshold"
)

// Decision 후보 하나에 대한 게이트 판정 결과
type Decision struct {
	Prediction contracts.Candidate  `json:"prediction"`
	Action     contracts.GateAction `json:"action"`
	Reason     string               `json:"reason"`
}

// Status 게이트 상태 요약
type Status struct {
	Total      int            `json:"total_stable_predictions"`
	Locked     int            `json:"locked_predictions"`
	Updateable int            `json:"updateable_predictions"`
	ByAge      map[string]int `json:"predictions_by_age"`
}

// Gate 안정성 게이트
// A candidate replaces the stored signal only when the signal is at least MinAge old
// AND pred_1mo moved by at least MinChangePct points. Both conditions are required.
type Gate struct {
	mu      sync.Mutex
	signals Signals

	store   *SignalStore
	history *HistoryLog
	policy  policy.StabilityPolicy
	now     func() time.Time
	metrics *metrics.Recorder
	log     zerolog.Logger
}

// NewGate creates a gate and loads the stored signals
func NewGate(store *SignalStore, history *HistoryLog, pol policy.StabilityPolicy, now func() time.Time, rec *metrics.Recorder, log zerolog.Logger) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{
		signals: store.Load(),
		store:   store,
		history: history,
		policy:  pol,
		now:     now,
		metrics: rec,
		log:     log.With().Str("component", "stability.gate").Logger(),
	}
}

// Signal returns the stored signal for symbol
func (g *Gate) Signal(symbol string) (contracts.StableSignal, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.signals[symbol]
	return s, ok
}

// ShouldUpdate reports whether cand may replace the stored signal, with the reason
func (g *Gate) ShouldUpdate(symbol string, cand contracts.Candidate) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.decide(g.signals, symbol, cand, g.now())
}

func (g *Gate) decide(signals Signals, symbol string, cand contracts.Candidate, now time.Time) (bool, string) {
	prev, ok := signals[symbol]
	if !ok {
		return true, ReasonNewSymbol
	}
	if now.Sub(prev.LastUpdated) < g.policy.MinAge {
		return false, ReasonTooRecent
	}
	if math.Abs(cand.Pred1Mo-prev.Pred1Mo) < g.policy.MinChangePct {
		return false, ReasonSmallChange
	}
	return true, ReasonNewPrediction
}

// Stabilize applies the gate to every candidate, persists the stored signals and
// appends one history entry per decision. A failed signal save leaves the stored
// signals unchanged, drops the "updated" history entries and is returned alongside the decisions.
func (g *Gate) Stabilize(candidates []contracts.Candidate) ([]Decision, error) {
	g.mu.Lock()
	now := g.now()
	next := g.signals.Clone()

	decisions := make([]Decision, 0, len(candidates))
	entries := make([]contracts.HistoryEntry, 0, len(candidates))

	for _, cand := range candidates {
		if cand.Symbol == "" {
			g.log.Warn().Msg("candidate without symbol skipped")
			continue
		}

		accept, reason := g.decide(next, cand.Symbol, cand, now)
		if accept {
			next[cand.Symbol] = signalFrom(cand, now)
			decisions = append(decisions, Decision{Prediction: cand, Action: contracts.ActionUpdated, Reason: reason})
			entries = append(entries, historyFrom(cand, contracts.ActionUpdated, reason, now))
			g.log.Info().Str("symbol", cand.Symbol).Str("reason", reason).Msg("prediction updated")
			continue
		}

		prev := next[cand.Symbol]
		prev.Score = cand.Score
		prev.CurrentPrice = cand.CurrentPrice
		next[cand.Symbol] = prev

		out := frozen(prev, cand)
		decisions = append(decisions, Decision{Prediction: out, Action: contracts.ActionStable, Reason: reason})
		entries = append(entries, historyFrom(out, contracts.ActionStable, reason, now))
		g.log.Info().
			Str("symbol", cand.Symbol).
			Str("reason", reason).
			Dur("age", now.Sub(prev.LastUpdated)).
			Msg("stable prediction kept")
	}

	var saveErr error
	if err := g.store.Save(next); err != nil {
		saveErr = err
		g.metrics.RecordSaveFailure("stability")
		g.log.Error().Err(err).Msg("stable predictions not saved")
		entries = stableOnly(entries)
	} else {
		g.signals = next
	}
	g.mu.Unlock()

	for _, d := range decisions {
		g.metrics.RecordGateDecision(string(d.Action))
	}

	if err := g.history.Append(entries, now); err != nil {
		g.metrics.RecordSaveFailure("history")
		g.log.Warn().Err(err).Msg("prediction history not saved")
	}

	if saveErr != nil {
		return decisions, fmt.Errorf("stabilize: %w", saveErr)
	}
	return decisions, nil
}

// stableOnly keeps the entries that describe the stored signals as they still are
func stableOnly(entries []contracts.HistoryEntry) []contracts.HistoryEntry {
	kept := entries[:0]
	for _, e := range entries {
		if e.Action == contracts.ActionStable {
			kept = append(kept, e)
		}
	}
	return kept
}

// Status summarizes stored signals by age
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	st := Status{Total: len(g.signals), ByAge: make(map[string]int)}
	for _, s := range g.signals {
		age := now.Sub(s.LastUpdated)
		if age < g.policy.MinAge {
			st.Locked++
		} else {
			st.Updateable++
		}
		st.ByAge[ageBucket(age)]++
	}
	return st
}

// Symbols returns the symbols with a stored signal, sorted
func (g *Gate) Symbols() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]string, 0, len(g.signals))
	for s := range g.signals {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ageBucket groups ages into 6-hour buckets ("0-6h", "6-12h", ...)
func ageBucket(age time.Duration) string {
	if age < 0 {
		age = 0
	}
	start := int(age.Hours()/6) * 6
	return fmt.Sprintf("%d-%dh", start, start+6)
}

func signalFrom(c contracts.Candidate, now time.Time) contracts.StableSignal {
	return contracts.StableSignal{
		Symbol:         c.Symbol,
		Pred24H:        c.Pred24H,
		Pred5D:         c.Pred5D,
		Pred1Mo:        c.Pred1Mo,
		PredictedPrice: c.PredictedPrice,
		CurrentPrice:   c.CurrentPrice,
		Confidence:     c.Confidence,
		Score:          c.Score,
		LastUpdated:    now,
		LockReason:     ReasonNewPrediction,
	}
}

// frozen keeps the stored prediction numbers and passes the live fields through
func frozen(prev contracts.StableSignal, live contracts.Candidate) contracts.Candidate {
	return contracts.Candidate{
		Symbol:         live.Symbol,
		Pred24H:        prev.Pred24H,
		Pred5D:         prev.Pred5D,
		Pred1Mo:        prev.Pred1Mo,
		PredictedPrice: prev.PredictedPrice,
		Confidence:     prev.Confidence,
		CurrentPrice:   live.CurrentPrice,
		Score:          live.Score,
		Technical:      live.Technical,
		Fundamentals:   live.Fundamentals,
	}
}

func historyFrom(c contracts.Candidate, action contracts.GateAction, reason string, now time.Time) contracts.HistoryEntry {
	return contracts.HistoryEntry{
		Symbol:         c.Symbol,
		Timestamp:      now,
		Pred24H:        c.Pred24H,
		Pred5D:         c.Pred5D,
		Pred1Mo:        c.Pred1Mo,
		PredictedPrice: c.PredictedPrice,
		CurrentPrice:   c.CurrentPrice,
		Confidence:     c.Confidence,
		Score:          c.Score,
		Action:         action,
		Reason:         reason,
	}
}
