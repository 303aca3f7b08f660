package policy

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goahead/predtracker/internal/contracts"
)

// Policy 추적/잠금/안정성 게이트 운영 파라미터
// 호라이즌 길이(5/30)는 불변이므로 여기에 없음
type Policy struct {
	Market    MarketPolicy    `yaml:"market"`
	Storage   StoragePolicy   `yaml:"storage"`
	Tracking  TrackingPolicy  `yaml:"tracking"`
	Stability StabilityPolicy `yaml:"stability"`
	Fallback  FallbackPolicy  `yaml:"fallback"`
}

// MarketPolicy 장마감 시각과 티커 접미사
type MarketPolicy struct {
	CloseTime      string   `yaml:"close_time"` // "15:30"
	TickerSuffixes []string `yaml:"ticker_suffixes"`
}

// StoragePolicy 저장 재시도 정책
type StoragePolicy struct {
	SaveAttempts int           `yaml:"save_attempts"`
	SaveBackoff  time.Duration `yaml:"save_backoff"`
}

// TrackingPolicy 보존 기간, 수정 임계값, 자동 추적 개수
type TrackingPolicy struct {
	RetentionDays     int     `yaml:"retention_days"`
	RevisionThreshold float64 `yaml:"revision_threshold"` // fraction, 0.03 = 3%
	AutoTrackTopN     int     `yaml:"auto_track_top_n"`
}

// StabilityPolicy 안정성 게이트 임계값
type StabilityPolicy struct {
	MinAge       time.Duration `yaml:"min_age"`
	MinChangePct float64       `yaml:"min_change_pct"` // percentage points of pred_1mo
	HistoryCap   int           `yaml:"history_cap"`
}

// FallbackPolicy 스냅샷이 없을 때 사용하는 기본 예측
type FallbackPolicy struct {
	CurrentPrice float64 `yaml:"current_price"`
	Pred5D       float64 `yaml:"pred_5d"`
	Pred1Mo      float64 `yaml:"pred_1mo"`
	Confidence   float64 `yaml:"confidence"`
	Score        float64 `yaml:"score"`
}

// Default returns the production defaults
func Default() *Policy {
	return &Policy{
		Market: MarketPolicy{
			CloseTime:      "15:30",
			TickerSuffixes: []string{".NS", ".BO"},
		},
		Storage: StoragePolicy{
			SaveAttempts: 3,
			SaveBackoff:  500 * time.Millisecond,
		},
		Tracking: TrackingPolicy{
			RetentionDays:     35,
			RevisionThreshold: 0.03,
			AutoTrackTopN:     10,
		},
		Stability: StabilityPolicy{
			MinAge:       24 * time.Hour,
			MinChangePct: 5.0,
			HistoryCap:   1000,
		},
		Fallback: FallbackPolicy{
			CurrentPrice: 100,
			Pred5D:       2,
			Pred1Mo:      8,
			Confidence:   75,
			Score:        65,
		},
	}
}

// Load reads a YAML policy file over the defaults.
// An empty path or a missing file yields the defaults.
// KnownFields(true): 오타/미사용 필드는 즉시 실패
func Load(path string) (*Policy, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return nil, fmt.Errorf("read policy: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate rejects values that would break the tracking invariants
func (p *Policy) Validate() error {
	if _, _, err := p.CloseHourMinute(); err != nil {
		return err
	}
	if p.Storage.SaveAttempts < 1 {
		return fmt.Errorf("storage.save_attempts must be >= 1")
	}
	if p.Storage.SaveBackoff < 0 {
		return fmt.Errorf("storage.save_backoff must be >= 0")
	}
	if p.Tracking.RetentionDays < 1 {
		return fmt.Errorf("tracking.retention_days must be >= 1")
	}
	if p.Tracking.RevisionThreshold <= 0 {
		return fmt.Errorf("tracking.revision_threshold must be > 0")
	}
	if p.Stability.MinAge < 0 || p.Stability.MinChangePct < 0 {
		return fmt.Errorf("stability thresholds must be >= 0")
	}
	if p.Stability.HistoryCap < 1 {
		return fmt.Errorf("stability.history_cap must be >= 1")
	}
	if p.Fallback.CurrentPrice <= 0 {
		return fmt.Errorf("fallback.current_price must be > 0")
	}
	return nil
}

// CloseHourMinute parses market.close_time
func (p *Policy) CloseHourMinute() (int, int, error) {
	t, err := time.Parse("15:04", p.Market.CloseTime)
	if err != nil {
		return 0, 0, fmt.Errorf("market.close_time %q: %w", p.Market.CloseTime, err)
	}
	return t.Hour(), t.Minute(), nil
}

// FallbackSnapshot returns the documented fallback as a scored snapshot
func (p *Policy) FallbackSnapshot(symbol string) contracts.ScoredSnapshot {
	return contracts.ScoredSnapshot{
		Symbol:       symbol,
		CurrentPrice: p.Fallback.CurrentPrice,
		Pred5D:       p.Fallback.Pred5D,
		Pred1Mo:      p.Fallback.Pred1Mo,
		Confidence:   p.Fallback.Confidence,
		Score:        p.Fallback.Score,
	}
}
