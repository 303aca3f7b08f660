package contracts

import (
	"encoding/json"
	"time"
)

// ScoredSnapshot 스크리너가 산출한 종목별 최신 점수 스냅샷
type ScoredSnapshot struct {
	Symbol       string  `json:"symbol"`
	CurrentPrice float64 `json:"current_price"`
	Pred5D       float64 `json:"pred_5d"`  // %
	Pred1Mo      float64 `json:"pred_1mo"` // %
	Confidence   float64 `json:"confidence"`
	Score        float64 `json:"score"`
}

// Candidate 안정성 게이트에 제출되는 신규 예측
// Technical/Fundamentals are passed through untouched.
type Candidate struct {
	Symbol         string          `json:"symbol"`
	Pred24H        float64         `json:"pred_24h"`
	Pred5D         float64         `json:"pred_5d"`
	Pred1Mo        float64         `json:"pred_1mo"`
	PredictedPrice float64         `json:"predicted_price"`
	CurrentPrice   float64         `json:"current_price"`
	Confidence     float64         `json:"confidence"`
	Score          float64         `json:"score"`
	Technical      json.RawMessage `json:"technical,omitempty"`
	Fundamentals   json.RawMessage `json:"fundamentals,omitempty"`
}

// StableSignal 안정성 게이트가 마지막으로 채택한 예측
type StableSignal struct {
	Symbol         string    `json:"symbol"`
	Pred24H        float64   `json:"pred_24h"`
	Pred5D         float64   `json:"pred_5d"`
	Pred1Mo        float64   `json:"pred_1mo"`
	PredictedPrice float64   `json:"predicted_price"`
	CurrentPrice   float64   `json:"current_price"`
	Confidence     float64   `json:"confidence"`
	Score          float64   `json:"score"`
	LastUpdated    time.Time `json:"last_updated"`
	LockReason     string    `json:"lock_reason"`
}

// GateAction 게이트 판정
type GateAction string

const (
	ActionUpdated GateAction = "updated"
	ActionStable  GateAction = "stable"
)

// HistoryEntry 사이클별 판정 기록 (append-only)
type HistoryEntry struct {
	Symbol         string     `json:"symbol"`
	Timestamp      time.Time  `json:"timestamp"`
	Pred24H        float64    `json:"pred_24h"`
	Pred5D         float64    `json:"pred_5d"`
	Pred1Mo        float64    `json:"pred_1mo"`
	PredictedPrice float64    `json:"predicted_price"`
	CurrentPrice   float64    `json:"current_price"`
	Confidence     float64    `json:"confidence"`
	Score          float64    `json:"score"`
	Action         GateAction `json:"action"`
	Reason         string     `json:"reason,omitempty"`
}

// ChartSeries 대시보드용 (symbol, horizon) 시계열
type ChartSeries struct {
	Symbol        string     `json:"symbol"`
	Horizon       Horizon    `json:"horizon"`
	Labels        []string   `json:"labels"`
	Predicted     []float64  `json:"predicted"`
	Actual        []*float64 `json:"actual"`
	Updated       []*float64 `json:"updated"`
	Locked        bool       `json:"locked"`
	Persistent    bool       `json:"persistent"`
	LockStartDate string     `json:"lock_start_date,omitempty"`
	ChangedOn     *int       `json:"changed_on"`
	DaysTracked   int        `json:"days_tracked"`
}

// TrackingSummary 추적 요약 통계
type TrackingSummary struct {
	TotalStocks    int       `json:"total_stocks"`
	Locked5D       int       `json:"locked_5d"`
	Locked30D      int       `json:"locked_30d"`
	ActiveTracking int       `json:"active_tracking"`
	LastUpdated    time.Time `json:"last_updated"`
}
