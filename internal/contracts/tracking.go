package contracts

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout 저장 파일의 날짜 형식 (start_date, lock_start_date)
const DateLayout = "2006-01-02"

// HorizonTrack 호라이즌 하나의 예측/실제/수정 궤적과 잠금 상태
type HorizonTrack struct {
	Predicted []float64  `json:"predicted"`
	Actual    []*float64 `json:"actual"`  // nil until observed
	Updated   []*float64 `json:"updated"` // nil unless revised
	ChangedOn *int       `json:"changed_on,omitempty"`
	Lock      LockState  `json:"lock"`
}

// TrackingRecord 종목별 추적 레코드
// ⭐ SSOT: 추적 파일의 스키마는 이 타입의 MarshalJSON/UnmarshalJSON에서만 정의
type TrackingRecord struct {
	Symbol       string
	StartDate    time.Time
	CurrentPrice float64
	Confidence   float64
	Score        float64
	Pred5D       float64 // original percentage forecasts
	Pred1Mo      float64
	Track5D      HorizonTrack
	Track30D     HorizonTrack
	LastUpdated  time.Time
	DaysTracked  int
}

// Track returns the horizon track for h, or nil for an unknown horizon
func (r *TrackingRecord) Track(h Horizon) *HorizonTrack {
	switch h {
	case Horizon5D:
		return &r.Track5D
	case Horizon30D:
		return &r.Track30D
	default:
		return nil
	}
}

// Clone returns a deep copy
func (r *TrackingRecord) Clone() *TrackingRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Track5D = r.Track5D.clone()
	c.Track30D = r.Track30D.clone()
	return &c
}

func (t HorizonTrack) clone() HorizonTrack {
	c := t
	c.Predicted = append([]float64(nil), t.Predicted...)
	c.Actual = cloneNullable(t.Actual)
	c.Updated = cloneNullable(t.Updated)
	if t.ChangedOn != nil {
		v := *t.ChangedOn
		c.ChangedOn = &v
	}
	return c
}

func cloneNullable(in []*float64) []*float64 {
	if in == nil {
		return nil
	}
	out := make([]*float64, len(in))
	for i, p := range in {
		if p != nil {
			v := *p
			out[i] = &v
		}
	}
	return out
}

// Records 종목 → 추적 레코드 매핑 (저장 단위)
type Records map[string]*TrackingRecord

// Clone returns a deep copy of the whole mapping
func (m Records) Clone() Records {
	out := make(Records, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

// recordJSON is the on-disk shape: flat per-horizon fields
type recordJSON struct {
	Symbol       string  `json:"symbol"`
	StartDate    string  `json:"start_date"`
	CurrentPrice float64 `json:"current_price"`
	Confidence   float64 `json:"confidence"`
	Score        float64 `json:"score"`
	Pred5D       float64 `json:"pred_5d"`
	Pred1Mo      float64 `json:"pred_1mo"`

	Predicted5D         []float64  `json:"predicted_5d"`
	Predicted30D        []float64  `json:"predicted_30d"`
	ActualProgress5D    []*float64 `json:"actual_progress_5d"`
	ActualProgress30D   []*float64 `json:"actual_progress_30d"`
	UpdatedPrediction5D []*float64 `json:"updated_prediction_5d"`
	UpdatedPred30D      []*float64 `json:"updated_prediction_30d"`
	ChangedOn5D         *int       `json:"changed_on_5d"`
	ChangedOn30D        *int       `json:"changed_on_30d"`

	Locked5D          bool    `json:"locked_5d"`
	Locked30D         bool    `json:"locked_30d"`
	PersistentLock5D  *bool   `json:"persistent_lock_5d"`
	PersistentLock30D *bool   `json:"persistent_lock_30d"`
	LockStartDate5D   *string `json:"lock_start_date_5d"`
	LockStartDate30D  *string `json:"lock_start_date_30d"`
	LockDate5D        *string `json:"lock_date_5d"`
	LockDate30D       *string `json:"lock_date_30d"`

	LastUpdated string `json:"last_updated"`
	DaysTracked int    `json:"days_tracked"`
}

// MarshalJSON writes the flat file schema
func (r TrackingRecord) MarshalJSON() ([]byte, error) {
	startDate := ""
	if !r.StartDate.IsZero() {
		startDate = r.StartDate.Format(DateLayout)
	}

	w := recordJSON{
		Symbol:              r.Symbol,
		StartDate:           startDate,
		CurrentPrice:        r.CurrentPrice,
		Confidence:          r.Confidence,
		Score:               r.Score,
		Pred5D:              r.Pred5D,
		Pred1Mo:             r.Pred1Mo,
		Predicted5D:         r.Track5D.Predicted,
		Predicted30D:        r.Track30D.Predicted,
		ActualProgress5D:    r.Track5D.Actual,
		ActualProgress30D:   r.Track30D.Actual,
		UpdatedPrediction5D: r.Track5D.Updated,
		UpdatedPred30D:      r.Track30D.Updated,
		ChangedOn5D:         r.Track5D.ChangedOn,
		ChangedOn30D:        r.Track30D.ChangedOn,
		LastUpdated:         FormatTimestamp(r.LastUpdated),
		DaysTracked:         r.DaysTracked,
	}
	w.Locked5D, w.PersistentLock5D, w.LockStartDate5D, w.LockDate5D = flattenLock(r.Track5D.Lock)
	w.Locked30D, w.PersistentLock30D, w.LockStartDate30D, w.LockDate30D = flattenLock(r.Track30D.Lock)
	return json.Marshal(w)
}

// UnmarshalJSON reads the flat file schema, reading zone-less timestamps as UTC.
// Stores use DecodeRecord with the market location instead.
func (r *TrackingRecord) UnmarshalJSON(data []byte) error {
	rec, err := DecodeRecord(data, time.UTC)
	if err != nil {
		return err
	}
	*r = *rec
	return nil
}

// DecodeRecord reads one record of the flat file schema and normalizes it:
// arrays are forced to the horizon length, actual[0] is pinned to the baseline,
// and the lock fields collapse into a single LockState per horizon.
// Zone-less timestamps are read in loc. A missing or unparseable start_date or
// last_updated leaves the zero time so the record survives; only malformed JSON fails.
func DecodeRecord(data []byte, loc *time.Location) (*TrackingRecord, error) {
	var w recordJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	var start time.Time
	if d, err := time.Parse(DateLayout, strings.TrimSpace(w.StartDate)); err == nil {
		start = d
	}

	var lastUpdated time.Time
	if w.LastUpdated != "" {
		if t, err := ParseTimestamp(w.LastUpdated, loc); err == nil {
			lastUpdated = t
		}
	}

	r := &TrackingRecord{
		Symbol:       w.Symbol,
		StartDate:    start,
		CurrentPrice: w.CurrentPrice,
		Confidence:   w.Confidence,
		Score:        w.Score,
		Pred5D:       w.Pred5D,
		Pred1Mo:      w.Pred1Mo,
		LastUpdated:  lastUpdated,
		DaysTracked:  w.DaysTracked,
		Track5D: HorizonTrack{
			Predicted: fitPredicted(w.Predicted5D, Horizon5D.Length(), w.CurrentPrice),
			Actual:    fitNullable(w.ActualProgress5D, Horizon5D.Length()),
			Updated:   fitNullable(w.UpdatedPrediction5D, Horizon5D.Length()),
			ChangedOn: w.ChangedOn5D,
			Lock:      collapseLock(w.Locked5D, w.PersistentLock5D, w.LockStartDate5D, w.LockDate5D, loc),
		},
		Track30D: HorizonTrack{
			Predicted: fitPredicted(w.Predicted30D, Horizon30D.Length(), w.CurrentPrice),
			Actual:    fitNullable(w.ActualProgress30D, Horizon30D.Length()),
			Updated:   fitNullable(w.UpdatedPred30D, Horizon30D.Length()),
			ChangedOn: w.ChangedOn30D,
			Lock:      collapseLock(w.Locked30D, w.PersistentLock30D, w.LockStartDate30D, w.LockDate30D, loc),
		},
	}

	base := r.CurrentPrice
	r.Track5D.Actual[0] = &base
	base30 := r.CurrentPrice
	r.Track30D.Actual[0] = &base30

	return r, nil
}

func flattenLock(s LockState) (locked bool, persistent *bool, startDate, lockDate *string) {
	p := false
	switch s.Kind {
	case LockTemporary, LockPersistent:
		p = s.Kind == LockPersistent
		sd := s.Anchor.Format(DateLayout)
		ld := s.LockedAt.Format(time.RFC3339Nano)
		return true, &p, &sd, &ld
	default:
		return false, &p, nil, nil
	}
}

func collapseLock(locked bool, persistent *bool, startDate, lockDate *string, loc *time.Location) LockState {
	if !locked || startDate == nil || *startDate == "" {
		return Unlocked()
	}

	anchor, err := time.Parse(DateLayout, *startDate)
	if err != nil {
		return Unlocked()
	}

	var at time.Time
	if lockDate != nil {
		if t, err := ParseTimestamp(*lockDate, loc); err == nil {
			at = t
		}
	}

	// 오래된 파일은 persistent 플래그가 없음 → 영구 잠금으로 간주
	if persistent == nil || *persistent {
		return PersistentLock(anchor, at)
	}
	return TemporaryLock(anchor, at)
}

func fitPredicted(in []float64, n int, base float64) []float64 {
	out := make([]float64, n)
	last := base
	for i := 0; i < n; i++ {
		if i < len(in) {
			last = in[i]
		}
		out[i] = last
	}
	return out
}

func fitNullable(in []*float64, n int) []*float64 {
	out := make([]*float64, n)
	for i := 0; i < n && i < len(in); i++ {
		out[i] = in[i]
	}
	return out
}
