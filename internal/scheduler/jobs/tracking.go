package jobs

import (
	"context"
	"fmt"

	"github.com/goahead/predtracker/internal/tracking"
	"github.com/goahead/predtracker/pkg/logger"
)

// ActualPricesJob fills in the closing price of the last session for every tracked symbol
type ActualPricesJob struct {
	tracker *tracking.Tracker
	fetcher tracking.PriceFetcher
	logger  *logger.Logger
}

// NewActualPricesJob creates a new actual price job
func NewActualPricesJob(tracker *tracking.Tracker, fetcher tracking.PriceFetcher, log *logger.Logger) *ActualPricesJob {
	return &ActualPricesJob{
		tracker: tracker,
		fetcher: fetcher,
		logger:  log,
	}
}

// Name returns the job name
func (j *ActualPricesJob) Name() string {
	return "actual_prices"
}

// Schedule returns the cron schedule (weekdays 15:45, after close)
func (j *ActualPricesJob) Schedule() string {
	return "0 45 15 * * 1-5"
}

// Run executes the daily batch.
// Every attempted fetch failing is reported so the scheduler retries; filled days are skipped on retry.
func (j *ActualPricesJob) Run(ctx context.Context) error {
	res, err := j.tracker.RunDaily(ctx, j.fetcher)
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"updated": res.Updated,
		"skipped": res.Skipped,
		"failed":  res.Failed,
	}).Info("Actual price update finished")

	if res.Failed > 0 && res.Updated == 0 {
		return fmt.Errorf("all %d price fetches failed", res.Failed)
	}
	return nil
}

// TrackingCleanupJob removes tracking records past the retention window
type TrackingCleanupJob struct {
	tracker *tracking.Tracker
	logger  *logger.Logger
}

// NewTrackingCleanupJob creates a new cleanup job
func NewTrackingCleanupJob(tracker *tracking.Tracker, log *logger.Logger) *TrackingCleanupJob {
	return &TrackingCleanupJob{
		tracker: tracker,
		logger:  log,
	}
}

// Name returns the job name
func (j *TrackingCleanupJob) Name() string {
	return "tracking_cleanup"
}

// Schedule returns the cron schedule (daily 02:00)
func (j *TrackingCleanupJob) Schedule() string {
	return "0 0 2 * * *"
}

// Run executes the cleanup
func (j *TrackingCleanupJob) Run(ctx context.Context) error {
	removed, err := j.tracker.Cleanup()
	if err != nil {
		return err
	}

	if len(removed) > 0 {
		j.logger.WithField("removed", len(removed)).Info("Tracking cleanup completed")
	}
	return nil
}

// LockedBackupJob snapshots every locked prediction to the backup directory
type LockedBackupJob struct {
	tracker *tracking.Tracker
	dir     string
	logger  *logger.Logger
}

// NewLockedBackupJob creates a new locked backup job
func NewLockedBackupJob(tracker *tracking.Tracker, dir string, log *logger.Logger) *LockedBackupJob {
	return &LockedBackupJob{
		tracker: tracker,
		dir:     dir,
		logger:  log,
	}
}

// Name returns the job name
func (j *LockedBackupJob) Name() string {
	return "locked_backup"
}

// Schedule returns the cron schedule (weekdays 16:00)
func (j *LockedBackupJob) Schedule() string {
	return "0 0 16 * * 1-5"
}

// Run executes the backup
func (j *LockedBackupJob) Run(ctx context.Context) error {
	path, err := j.tracker.BackupLocked(j.dir)
	if err != nil {
		return err
	}
	if path != "" {
		j.logger.WithField("path", path).Info("Locked predictions backed up")
	}
	return nil
}

// SnapshotTrackingJob starts tracking the top-N screener symbols
type SnapshotTrackingJob struct {
	tracker *tracking.Tracker
	topN    int
	logger  *logger.Logger
}

// NewSnapshotTrackingJob creates a new snapshot tracking job
func NewSnapshotTrackingJob(tracker *tracking.Tracker, topN int, log *logger.Logger) *SnapshotTrackingJob {
	return &SnapshotTrackingJob{
		tracker: tracker,
		topN:    topN,
		logger:  log,
	}
}

// Name returns the job name
func (j *SnapshotTrackingJob) Name() string {
	return "snapshot_tracking"
}

// Schedule returns the cron schedule (weekdays 09:30)
func (j *SnapshotTrackingJob) Schedule() string {
	return "0 30 9 * * 1-5"
}

// Run executes the auto-tracking
func (j *SnapshotTrackingJob) Run(ctx context.Context) error {
	added, err := j.tracker.EnsureTracked(j.topN)
	if err != nil {
		return err
	}
	if len(added) > 0 {
		j.logger.WithField("symbols", added).Info("Started tracking new symbols")
	}
	return nil
}
