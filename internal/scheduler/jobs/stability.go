package jobs

import (
	"context"

	"github.com/goahead/predtracker/internal/contracts"
	"github.com/goahead/predtracker/internal/stability"
	"github.com/goahead/predtracker/pkg/logger"
)

// CandidateSource provides the latest screener candidates
type CandidateSource interface {
	Candidates() ([]contracts.Candidate, error)
}

// StabilityRefreshJob runs the screener output through the stability gate
type StabilityRefreshJob struct {
	gate   *stability.Gate
	source CandidateSource
	logger *logger.Logger
}

// NewStabilityRefreshJob creates a new stability refresh job
func NewStabilityRefreshJob(gate *stability.Gate, source CandidateSource, log *logger.Logger) *StabilityRefreshJob {
	return &StabilityRefreshJob{
		gate:   gate,
		source: source,
		logger: log,
	}
}

// Name returns the job name
func (j *StabilityRefreshJob) Name() string {
	return "stability_refresh"
}

// Schedule returns the cron schedule (hourly on weekdays)
func (j *StabilityRefreshJob) Schedule() string {
	return "0 0 * * * 1-5"
}

// Run executes the gate over the current candidates
func (j *StabilityRefreshJob) Run(ctx context.Context) error {
	candidates, err := j.source.Candidates()
	if err != nil {
		return err
	}

	decisions, err := j.gate.Stabilize(candidates)
	if err != nil {
		return err
	}

	updated := 0
	for _, d := range decisions {
		if d.Action == contracts.ActionUpdated {
			updated++
		}
	}
	j.logger.WithFields(map[string]interface{}{
		"candidates": len(decisions),
		"updated":    updated,
	}).Info("Stability gate applied")
	return nil
}
