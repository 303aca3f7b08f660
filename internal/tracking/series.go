package tracking

import (
	"fmt"
	"math"

	"github.com/goahead/predtracker/internal/contracts"
)

// GenerateSeries 스칼라 % 예측을 고정 길이 선형 궤적으로 확장
//
//	day[0]   = currentPrice
//	day[H-1] = currentPrice * (1 + pct/100)
//	day[i]   = day[0] + (day[H-1] - day[0]) * i/(H-1)
//
// Deterministic, no noise. currentPrice <= 0 or a non-finite pct is ErrInvalidInput.
func GenerateSeries(currentPrice, pct float64, length int) ([]float64, error) {
	if length < 1 {
		return nil, fmt.Errorf("%w: series length %d", contracts.ErrInvalidInput, length)
	}
	if currentPrice <= 0 || math.IsNaN(currentPrice) || math.IsInf(currentPrice, 0) {
		return nil, fmt.Errorf("%w: current price %v", contracts.ErrInvalidInput, currentPrice)
	}
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return nil, fmt.Errorf("%w: percentage %v", contracts.ErrInvalidInput, pct)
	}

	series := make([]float64, length)
	series[0] = currentPrice
	if length == 1 {
		return series, nil
	}

	final := currentPrice * (1 + pct/100)
	steps := float64(length - 1)
	for i := 1; i < length-1; i++ {
		series[i] = currentPrice + (final-currentPrice)*float64(i)/steps
	}
	series[length-1] = final

	return series, nil
}

// Trajectories 5일/30일 예측 궤적
type Trajectories struct {
	Predicted5D  []float64
	Predicted30D []float64
}

// GenerateTrajectories expands a snapshot's pred_5d / pred_1mo into both horizons
func GenerateTrajectories(currentPrice, pct5D, pct30D float64) (*Trajectories, error) {
	p5, err := GenerateSeries(currentPrice, pct5D, contracts.Horizon5D.Length())
	if err != nil {
		return nil, err
	}
	p30, err := GenerateSeries(currentPrice, pct30D, contracts.Horizon30D.Length())
	if err != nil {
		return nil, err
	}
	return &Trajectories{Predicted5D: p5, Predicted30D: p30}, nil
}
