package worker

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/Maristella28/Bms-111725-sub004/internal/pkg/distlock"
	"github.com/Maristella28/Bms-111725-sub004/internal/pkg/logger"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/survey"
)

// DefaultExpirySweepSpec runs the sweep nightly, shortly past midnight,
// so surveys expire on the day boundary residents were told about.
const DefaultExpirySweepSpec = "30 0 * * *"

// ExpirySweeper closes out survey instances that passed their deadline
// without a submission. Lazy coercion on reads already hides overdue
// instances from residents; the sweep makes the terminal state durable
// for reporting.
type ExpirySweeper struct {
	surveys     *survey.Service
	db          *sql.DB
	redisClient *redis.Client

	spec string
	cron *cron.Cron

	swept int64
	runs  int64
}

// NewExpirySweeper creates a sweeper on the given cron spec. An empty
// spec falls back to the nightly default.
func NewExpirySweeper(surveys *survey.Service, db *sql.DB, spec string) *ExpirySweeper {
	if spec == "" {
		spec = DefaultExpirySweepSpec
	}
	return &ExpirySweeper{
		surveys: surveys,
		db:      db,
		spec:    spec,
	}
}

// SetRedisClient sets the Redis client for distributed locking.
func (e *ExpirySweeper) SetRedisClient(client *redis.Client) {
	e.redisClient = client
}

// Start schedules the sweep. Returns an error if the cron spec is invalid.
func (e *ExpirySweeper) Start() error {
	e.cron = cron.New()
	if _, err := e.cron.AddFunc(e.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := e.RunSweep(ctx, time.Now().UTC()); err != nil {
			logger.Error("expiry sweep failed", "error", err.Error())
		}
	}); err != nil {
		return fmt.Errorf("invalid expiry sweep spec %q: %w", e.spec, err)
	}
	e.cron.Start()
	logger.Info("expiry sweeper started", "spec", e.spec)
	return nil
}

// Stop halts the sweep and waits for a running sweep to finish.
func (e *ExpirySweeper) Stop() {
	if e.cron == nil {
		return
	}
	<-e.cron.Stop().Done()
	logger.Info("expiry sweeper stopped",
		"runs", fmt.Sprintf("%d", atomic.LoadInt64(&e.runs)),
		"swept", fmt.Sprintf("%d", atomic.LoadInt64(&e.swept)))
}

// RunSweep expires every overdue instance as of now. Exposed so the worker
// binary and tests can trigger sweeps directly.
func (e *ExpirySweeper) RunSweep(ctx context.Context, now time.Time) (int64, error) {
	lock := distlock.ForSweep(e.redisClient, e.db)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquiring sweep lock: %w", err)
	}
	if !acquired {
		logger.Debug("expiry sweep already running elsewhere")
		return 0, nil
	}
	defer lock.Release(ctx)

	n, err := e.surveys.ExpireOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("expiring overdue surveys: %w", err)
	}

	atomic.AddInt64(&e.runs, 1)
	atomic.AddInt64(&e.swept, n)
	if n > 0 {
		logger.Info("expired overdue surveys", "count", fmt.Sprintf("%d", n))
	}
	return n, nil
}
