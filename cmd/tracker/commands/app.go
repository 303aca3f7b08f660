package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/goahead/predtracker/internal/calendar"
	"github.com/goahead/predtracker/internal/external/yahoo"
	"github.com/goahead/predtracker/internal/policy"
	"github.com/goahead/predtracker/internal/snapshot"
	"github.com/goahead/predtracker/internal/stability"
	"github.com/goahead/predtracker/internal/tracking"
	"github.com/goahead/predtracker/pkg/config"
	"github.com/goahead/predtracker/pkg/httputil"
	"github.com/goahead/predtracker/pkg/logger"
	"github.com/goahead/predtracker/pkg/metrics"
	"github.com/goahead/predtracker/pkg/redis"
)

// redisPrefix 캐시/레이트리밋 키 접두사
const redisPrefix = "predtracker"

// app holds the wired components shared by every command
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	policy    *policy.Policy
	calendar  *calendar.Calendar
	snapshots *snapshot.FileSource
	tracker   *tracking.Tracker
	metrics   *metrics.Recorder
	redis     *redis.Client
}

// newApp loads configuration and wires the tracker
func newApp() (*app, error) {
	if configFile != "" {
		if err := godotenv.Overload(configFile); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
	}

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if policyFile != "" {
		cfg.PolicyFile = policyFile
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load policy
	pol, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	hour, minute, err := pol.CloseHourMinute()
	if err != nil {
		return nil, err
	}

	// 4. Market calendar
	cal := calendar.New(cfg.Location(), calendar.WithMarketClose(hour, minute))

	// 5. Redis (optional)
	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rc = redis.Disabled()
	}

	// 6. Tracker
	rec := metrics.New()
	zl := log.Zerolog()
	src := snapshot.NewFileSource(cfg.Storage.SnapshotFile, zl)
	tracker := tracking.New(
		tracking.NewFileStore(cfg.Storage.TrackingFile, cal.Location(), zl),
		cal, pol, zl,
		tracking.WithSnapshots(src),
		tracking.WithMetrics(rec),
	)

	log.WithFields(map[string]interface{}{
		"tracking_file": cfg.Storage.TrackingFile,
		"timezone":      cfg.Market.Timezone,
		"tracked":       len(tracker.Symbols()),
		"redis":         rc.Enabled(),
	}).Debug("Tracker initialized")

	return &app{
		cfg:       cfg,
		log:       log,
		policy:    pol,
		calendar:  cal,
		snapshots: src,
		tracker:   tracker,
		metrics:   rec,
		redis:     rc,
	}, nil
}

// fetcher builds the market-data client shared by update commands and jobs
func (a *app) fetcher() *yahoo.Client {
	httpClient := httputil.New(a.cfg, a.log).
		WithLimiter(a.cfg.Market.RequestsPS).
		WithRateLimiter(redis.NewRateLimiter(a.redis, redisPrefix), redis.YahooRateLimit)

	var cache *redis.Cache
	if a.redis.Enabled() {
		cache = redis.NewCache(a.redis, redisPrefix)
	}

	return yahoo.NewClient(httpClient, yahoo.Config{
		BaseURL:  a.cfg.Market.DataBaseURL,
		Suffixes: a.policy.Market.TickerSuffixes,
		Location: a.calendar.Location(),
	}, cache, a.log.Zerolog())
}

// gate builds the stability gate over the configured files
func (a *app) gate() *stability.Gate {
	zl := a.log.Zerolog()
	loc := a.calendar.Location()
	return stability.NewGate(
		stability.NewSignalStore(a.cfg.Storage.StableFile, loc, zl),
		stability.NewHistoryLog(a.cfg.Storage.HistoryFile, a.policy.Stability.HistoryCap, loc, zl),
		a.policy.Stability,
		time.Now,
		a.metrics,
		zl,
	)
}

func (a *app) close() {
	if err := a.redis.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "redis close: %v\n", err)
	}
}
