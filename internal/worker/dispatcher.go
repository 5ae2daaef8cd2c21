package worker

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/Maristella28/Bms-111725-sub004/internal/notify"
	"github.com/Maristella28/Bms-111725-sub004/internal/pkg/distlock"
	"github.com/Maristella28/Bms-111725-sub004/internal/pkg/logger"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/schedule"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/survey"
)

// =============================================================================
// SURVEY DISPATCHER WORKER
// =============================================================================
// This worker polls for schedules whose next_run_at has elapsed, claims each
// one, resolves the target households, issues a tokened survey instance per
// household, and delivers the access link over the schedule's notification
// channel.
//
// Claiming is a compare-and-swap on next_run_at so concurrent ticks (or a
// second worker process) fire each due schedule exactly once. A distributed
// lock narrows the race window further but the CAS is the correctness
// guarantee.

const (
	// DefaultPollInterval is how often to check for due schedules.
	DefaultPollInterval = 60 * time.Second

	// DefaultBatchLimit caps how many due schedules one tick picks up.
	DefaultBatchLimit = 10

	// DefaultSendWorkers is the per-schedule notification concurrency.
	DefaultSendWorkers = 4
)

// SurveyDispatcher polls for due survey schedules and fires them.
type SurveyDispatcher struct {
	schedules schedule.Repository
	resolver  *schedule.TargetResolver
	directory schedule.Directory
	surveys   *survey.Service
	notifier  *notify.Dispatcher

	db          *sql.DB
	redisClient *redis.Client // optional; nil falls back to PG advisory locks

	workerID     string
	pollInterval time.Duration
	batchLimit   int
	sendWorkers  int

	// Stats
	schedulesProcessed int64
	surveysIssued      int64
	surveysSent        int64
	sendFailures       int64
	errors             int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewSurveyDispatcher creates a dispatcher over the given collaborators.
func NewSurveyDispatcher(
	schedules schedule.Repository,
	directory schedule.Directory,
	surveys *survey.Service,
	notifier *notify.Dispatcher,
	db *sql.DB,
) *SurveyDispatcher {
	return &SurveyDispatcher{
		schedules:    schedules,
		resolver:     schedule.NewTargetResolver(directory),
		directory:    directory,
		surveys:      surveys,
		notifier:     notifier,
		db:           db,
		workerID:     fmt.Sprintf("dispatcher-%s-%d", getHostname(), time.Now().UnixNano()%10000),
		pollInterval: DefaultPollInterval,
		batchLimit:   DefaultBatchLimit,
		sendWorkers:  DefaultSendWorkers,
	}
}

// SetRedisClient sets the Redis client for distributed locking.
// If set, schedule claims are guarded by Redis locks; otherwise the
// dispatcher falls back to PostgreSQL advisory locks.
func (d *SurveyDispatcher) SetRedisClient(client *redis.Client) {
	d.redisClient = client
}

// SetPollInterval overrides the default tick cadence.
func (d *SurveyDispatcher) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		d.pollInterval = interval
	}
}

// SetBatchLimit overrides how many due schedules one tick picks up.
func (d *SurveyDispatcher) SetBatchLimit(limit int) {
	if limit > 0 {
		d.batchLimit = limit
	}
}

// SetSendWorkers overrides the per-schedule notification concurrency.
func (d *SurveyDispatcher) SetSendWorkers(n int) {
	if n > 0 {
		d.sendWorkers = n
	}
}

// Start begins the dispatcher polling loop.
func (d *SurveyDispatcher) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	d.running = true
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.mu.Unlock()

	logger.Info("survey dispatcher starting",
		"worker_id", d.workerID,
		"poll_interval", d.pollInterval.String())

	d.wg.Add(1)
	go d.dispatchLoop()

	d.wg.Add(1)
	go d.statsLoop()

	return nil
}

// Stop gracefully stops the dispatcher.
func (d *SurveyDispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	logger.Info("survey dispatcher stopped",
		"schedules_processed", atomic.LoadInt64(&d.schedulesProcessed),
		"surveys_sent", atomic.LoadInt64(&d.surveysSent))
}

func (d *SurveyDispatcher) dispatchLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(d.ctx, 2*time.Minute)
			if err := d.RunTick(ctx, time.Now().UTC()); err != nil {
				logger.Error("dispatch tick failed", "error", err.Error())
				atomic.AddInt64(&d.errors, 1)
			}
			cancel()
		}
	}
}

func (d *SurveyDispatcher) statsLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			s := d.Stats()
			logger.Debug("dispatcher heartbeat",
				"worker_id", d.workerID,
				"schedules_processed", fmt.Sprintf("%d", s.SchedulesProcessed),
				"surveys_issued", fmt.Sprintf("%d", s.SurveysIssued),
				"surveys_sent", fmt.Sprintf("%d", s.SurveysSent),
				"send_failures", fmt.Sprintf("%d", s.SendFailures),
				"errors", fmt.Sprintf("%d", s.Errors))
		}
	}
}

// RunTick processes every schedule due at now. Exposed so the worker binary
// and tests can drive ticks at explicit instants.
func (d *SurveyDispatcher) RunTick(ctx context.Context, now time.Time) error {
	d.recoverStalled(ctx, now)

	due, err := d.schedules.ListDue(ctx, now, d.batchLimit)
	if err != nil {
		return fmt.Errorf("listing due schedules: %w", err)
	}

	for i := range due {
		d.processSchedule(ctx, &due[i], now)
	}
	return nil
}

// processSchedule claims one due schedule and fires it. A lost claim means
// another tick got there first; that is normal operation, not an error.
func (d *SurveyDispatcher) processSchedule(ctx context.Context, s *domain.SurveySchedule, now time.Time) {
	if s.NextRunAt == nil {
		return
	}

	lock := distlock.ForSchedule(d.redisClient, d.db, s.ID)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		logger.Error("lock acquire failed", "schedule_id", s.ID.String(), "error", err.Error())
		atomic.AddInt64(&d.errors, 1)
		return
	}
	if !acquired {
		return
	}
	defer lock.Release(ctx)

	claimed, err := d.schedules.Claim(ctx, s.ID, *s.NextRunAt)
	if err != nil {
		logger.Error("claim failed", "schedule_id", s.ID.String(), "error", err.Error())
		atomic.AddInt64(&d.errors, 1)
		return
	}
	if !claimed {
		logger.Debug("schedule already claimed", "schedule_id", s.ID.String())
		return
	}

	sent := d.fireSchedule(ctx, s, now)

	// Anchor the next occurrence on this run before recomputing.
	fired := *s
	fired.LastRunAt = &now
	next := schedule.NextRun(&fired, now)

	if err := d.schedules.CompleteRun(ctx, s.ID, now, next, sent); err != nil {
		logger.Error("complete run failed", "schedule_id", s.ID.String(), "error", err.Error())
		atomic.AddInt64(&d.errors, 1)
		return
	}

	atomic.AddInt64(&d.schedulesProcessed, 1)
	logger.Info("schedule fired",
		"schedule_id", s.ID.String(),
		"survey_type", string(s.SurveyType),
		"sent", fmt.Sprintf("%d", sent))
}

// fireSchedule issues and dispatches one survey per target household.
// Per-household failures are logged and counted; one bad household never
// aborts the rest of the batch.
func (d *SurveyDispatcher) fireSchedule(ctx context.Context, s *domain.SurveySchedule, now time.Time) int {
	households, err := d.resolver.Resolve(ctx, s)
	if err != nil {
		logger.Error("target resolution failed", "schedule_id", s.ID.String(), "error", err.Error())
		atomic.AddInt64(&d.errors, 1)
		return 0
	}
	if len(households) == 0 {
		logger.Warn("schedule has no target households", "schedule_id", s.ID.String())
		return 0
	}

	var sent int64
	sem := make(chan struct{}, d.sendWorkers)
	var wg sync.WaitGroup

	for _, h := range households {
		wg.Add(1)
		sem <- struct{}{}
		go func(h domain.Household) {
			defer wg.Done()
			defer func() { <-sem }()
			if d.dispatchToHousehold(ctx, s, h, now) {
				atomic.AddInt64(&sent, 1)
			}
		}(h)
	}
	wg.Wait()

	return int(atomic.LoadInt64(&sent))
}

func (d *SurveyDispatcher) dispatchToHousehold(ctx context.Context, s *domain.SurveySchedule, h domain.Household, now time.Time) bool {
	si, err := d.surveys.Issue(ctx, survey.IssueInput{
		HouseholdID:        h.ID,
		ScheduleID:         &s.ID,
		SurveyType:         s.SurveyType,
		NotificationMethod: s.NotificationMethod,
		CustomMessage:      s.CustomMessage,
		IssuedBy:           &s.CreatedBy,
	}, now)
	if err != nil {
		logger.Error("survey issue failed",
			"schedule_id", s.ID.String(),
			"household_id", h.ID.String(),
			"error", err.Error())
		atomic.AddInt64(&d.errors, 1)
		return false
	}
	atomic.AddInt64(&d.surveysIssued, 1)

	if err := d.notifier.Dispatch(ctx, h, si); err != nil {
		// The instance stays pending; RecoverPending retries delivery later.
		logger.Warn("notification failed",
			"survey_id", si.ID.String(),
			"household_id", h.ID.String(),
			"error", err.Error())
		atomic.AddInt64(&d.sendFailures, 1)
		return false
	}

	if err := d.surveys.MarkSent(ctx, si.ID, now); err != nil {
		logger.Error("mark sent failed", "survey_id", si.ID.String(), "error", err.Error())
		atomic.AddInt64(&d.errors, 1)
		return false
	}
	atomic.AddInt64(&d.surveysSent, 1)
	return true
}

// recoverStalled restores visibility for schedules a dead worker left
// claimed: active but with a null next_run_at. A fire genuinely in flight
// still holds its schedule lock, so a grabbable lock plus a null next run
// means the claiming worker is gone. The missed occurrence is skipped
// rather than refired; instances it already issued are re-delivered by
// RecoverPending.
func (d *SurveyDispatcher) recoverStalled(ctx context.Context, now time.Time) {
	stalled, err := d.schedules.ListStalled(ctx, d.batchLimit)
	if err != nil {
		logger.Error("stalled schedule scan failed", "error", err.Error())
		atomic.AddInt64(&d.errors, 1)
		return
	}

	for i := range stalled {
		s := &stalled[i]

		lock := distlock.ForSchedule(d.redisClient, d.db, s.ID)
		acquired, err := lock.Acquire(ctx)
		if err != nil {
			atomic.AddInt64(&d.errors, 1)
			continue
		}
		if !acquired {
			// Still being dispatched; not stalled.
			continue
		}

		next := schedule.NextRun(s, now)
		if next == nil {
			lock.Release(ctx)
			continue
		}
		restored, err := d.schedules.Reschedule(ctx, s.ID, *next)
		lock.Release(ctx)
		if err != nil {
			logger.Error("reschedule failed", "schedule_id", s.ID.String(), "error", err.Error())
			atomic.AddInt64(&d.errors, 1)
			continue
		}
		if restored {
			logger.Warn("recovered stalled schedule",
				"schedule_id", s.ID.String(),
				"next_run_at", next.Format(time.RFC3339))
		}
	}
}

// RunNow fires a schedule immediately, outside its recurrence. The run is
// bookkept like any other fire (last_run_at and the counters advance) but
// next_run_at is left untouched so the regular cadence is unaffected.
func (d *SurveyDispatcher) RunNow(ctx context.Context, id uuid.UUID, now time.Time) (int, error) {
	s, err := d.schedules.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	lock := distlock.ForSchedule(d.redisClient, d.db, s.ID)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquiring schedule lock: %w", err)
	}
	if !acquired {
		return 0, fmt.Errorf("schedule %s is being dispatched", s.ID)
	}
	defer lock.Release(ctx)

	sent := d.fireSchedule(ctx, s, now)
	if err := d.schedules.RecordRun(ctx, s.ID, now, sent); err != nil {
		return sent, fmt.Errorf("recording run: %w", err)
	}
	logger.Info("schedule fired on demand", "schedule_id", s.ID.String(), "sent", fmt.Sprintf("%d", sent))
	return sent, nil
}

// RecoverPending retries delivery for instances that were issued but never
// notified, typically after a crash between Issue and Dispatch.
func (d *SurveyDispatcher) RecoverPending(ctx context.Context, limit int, now time.Time) (int, error) {
	pending, err := d.surveys.ListPendingDispatch(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("listing pending instances: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(pending))
	for _, si := range pending {
		ids = append(ids, si.HouseholdID)
	}
	households, err := d.directory.GetByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("looking up households: %w", err)
	}
	byID := make(map[uuid.UUID]domain.Household, len(households))
	for _, h := range households {
		byID[h.ID] = h
	}

	recovered := 0
	for i := range pending {
		si := &pending[i]
		h, ok := byID[si.HouseholdID]
		if !ok {
			logger.Warn("pending survey has no household", "survey_id", si.ID.String())
			continue
		}
		if err := d.notifier.Dispatch(ctx, h, si); err != nil {
			atomic.AddInt64(&d.sendFailures, 1)
			continue
		}
		if err := d.surveys.MarkSent(ctx, si.ID, now); err != nil {
			atomic.AddInt64(&d.errors, 1)
			continue
		}
		recovered++
	}

	if recovered > 0 {
		logger.Info("recovered pending dispatches", "count", fmt.Sprintf("%d", recovered))
	}
	return recovered, nil
}

// Stats is a point-in-time snapshot of dispatcher counters.
type Stats struct {
	SchedulesProcessed int64 `json:"schedules_processed"`
	SurveysIssued      int64 `json:"surveys_issued"`
	SurveysSent        int64 `json:"surveys_sent"`
	SendFailures       int64 `json:"send_failures"`
	Errors             int64 `json:"errors"`
}

// Stats returns the dispatcher's counters.
func (d *SurveyDispatcher) Stats() Stats {
	return Stats{
		SchedulesProcessed: atomic.LoadInt64(&d.schedulesProcessed),
		SurveysIssued:      atomic.LoadInt64(&d.surveysIssued),
		SurveysSent:        atomic.LoadInt64(&d.surveysSent),
		SendFailures:       atomic.LoadInt64(&d.sendFailures),
		Errors:             atomic.LoadInt64(&d.errors),
	}
}

func getHostname() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}
