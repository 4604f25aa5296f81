package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla/internal/service"
)

// ErrSweepInProgress is returned by RunOnce while another sweep is running.
var ErrSweepInProgress = errors.New("sla sweep already in progress")

// Sweeper runs one SLA sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// SweepWorker runs the SLA sweep on a cron schedule evaluated in the
// business calendar's timezone. Overlapping runs are skipped, whether they
// come from the schedule or from RunOnce.
type SweepWorker struct {
	cron    *cron.Cron
	sweepID cron.EntryID
	sweeper Sweeper
	logger  *zap.Logger
	running atomic.Bool

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSweepWorker schedules sweeps. The schedule uses the standard five
// field cron syntax or descriptors such as @every 5m. An empty schedule
// runs no periodic sweep; RunOnce and jobs added with AddJob still work.
func NewSweepWorker(sweeper Sweeper, schedule string, loc *time.Location, logger *zap.Logger) (*SweepWorker, error) {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &SweepWorker{
		sweeper: sweeper,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	cl := cronLogger{logger: logger.Sugar()}
	w.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	if schedule == "" {
		return w, nil
	}
	id, err := w.cron.AddFunc(schedule, w.scheduled)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	w.sweepID = id
	return w, nil
}

// AddJob schedules an extra maintenance job, such as a calendar reload, on
// the same cron instance.
func (w *SweepWorker) AddJob(schedule, name string, fn func() error) error {
	_, err := w.cron.AddFunc(schedule, func() {
		if err := fn(); err != nil {
			w.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		w.logger.Info("scheduled job finished", zap.String("job", name))
	})
	if err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", name, schedule, err)
	}
	return nil
}

// Start begins running scheduled jobs in the background.
func (w *SweepWorker) Start() {
	w.cron.Start()
	w.logger.Info("sla sweep worker started", zap.Int("jobs", len(w.cron.Entries())))
}

// Stop cancels a sweep in flight and waits for running jobs to return, or
// for ctx to expire.
func (w *SweepWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	w.cancel()
	w.mu.Unlock()

	done := w.cron.Stop()
	select {
	case <-done.Done():
		w.logger.Info("sla sweep worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce triggers a sweep immediately.
func (w *SweepWorker) RunOnce(ctx context.Context) (service.SweepResult, error) {
	if !w.running.CompareAndSwap(false, true) {
		return service.SweepResult{}, ErrSweepInProgress
	}
	defer w.running.Store(false)
	return w.sweeper.Sweep(ctx)
}

// Next returns when the sweep is next due, zero before Start or when no
// sweep is scheduled.
func (w *SweepWorker) Next() time.Time {
	if w.sweepID == 0 {
		return time.Time{}
	}
	return w.cron.Entry(w.sweepID).Next
}

func (w *SweepWorker) scheduled() {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()

	// Sweep logs its own failures.
	if _, err := w.RunOnce(ctx); errors.Is(err, ErrSweepInProgress) {
		w.logger.Warn("skipping sla sweep, previous run still active")
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
