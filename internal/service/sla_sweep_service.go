package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla/internal/calendar"
	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/observability"
	"github.com/spec-kit/ticket-sla/internal/repository"
	"github.com/spec-kit/ticket-sla/internal/sla"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util/errorutil"
)

const defaultSweepBatchSize = 200

// SweepResult summarises one sweep over the unanswered tickets.
type SweepResult struct {
	StartedAt time.Time
	Duration  time.Duration
	Checked   int
	Changed   int
	Failed    int
	Counts    map[sla.Status]int
}

// SLASummary is the dashboard view served from the status mirror.
type SLASummary struct {
	Counts  map[sla.Status]int64
	PastDue []string
}

// SweepService re-evaluates the SLA of every ticket still awaiting a first
// response and persists status transitions.
type SweepService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	cache      repository.SLAStatusCache
	calendar   calendar.Source
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	batchSize  int
}

// SweepDependencies bundles collaborators for the sweep.
type SweepDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	StatusCache repository.SLAStatusCache
	Calendar    calendar.Source
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Now         func() time.Time
	BatchSize   int
}

// NewSweepService constructs the service.
func NewSweepService(deps SweepDependencies) *SweepService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &SweepService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		cache:      deps.StatusCache,
		calendar:   deps.Calendar,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        now,
		batchSize:  batch,
	}
}

// Sweep evaluates every unanswered ticket against a single instant and
// calendar snapshot. A failure on one ticket is logged and counted, it never
// aborts the sweep. Only listing failures and cancellation return an error,
// together with the partial result.
func (s *SweepService) Sweep(ctx context.Context) (SweepResult, error) {
	started := time.Now()
	now := s.now()
	cal := s.calendar.Current()
	result := SweepResult{
		StartedAt: now,
		Counts:    map[sla.Status]int{},
	}

	var sweepErr error
	// keyset paging, so tickets answered mid-sweep do not shift later pages
	var cursor *repository.SweepCursor
	for {
		if err := ctx.Err(); err != nil {
			sweepErr = err
			break
		}
		batch, err := s.tickets.ListAwaitingFirstResponse(ctx, cursor, s.batchSize)
		if err != nil {
			sweepErr = err
			break
		}
		for i := range batch {
			s.sweepTicket(ctx, &batch[i], now, cal, &result)
		}
		if len(batch) < s.batchSize {
			break
		}
		cursor = repository.CursorAfter(batch[len(batch)-1])
	}

	result.Duration = time.Since(started)
	s.metrics.RecordSweep(result.Checked, result.Changed, result.Failed, result.Duration, sweepErr)
	if sweepErr == nil {
		s.metrics.SetStatusCounts(result.Counts)
	}

	fields := []zap.Field{
		zap.Int("checked", result.Checked),
		zap.Int("changed", result.Changed),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	}
	if sweepErr != nil {
		s.logger.Error("sla sweep aborted", append(fields, zap.Error(sweepErr))...)
		return result, sweepErr
	}
	s.logger.Info("sla sweep finished", fields...)
	return result, nil
}

func (s *SweepService) sweepTicket(ctx context.Context, ticket *domain.Ticket, now time.Time, cal sla.CalendarConfig, result *SweepResult) {
	result.Checked++
	log := s.logger.With(zap.String("ticket_id", ticket.ID))

	reading, err := sla.Evaluate(ticket.FirstResponseDueAt, now, cal)
	if err != nil {
		result.Failed++
		s.metrics.RecordEvaluationError("evaluate")
		log.Error("sla evaluation failed", zap.Error(err))
		return
	}
	result.Counts[reading.Status]++

	if reading.Status != ticket.SLAStatus {
		changed, err := s.tickets.UpdateSLAStatus(ctx, ticket.ID, ticket.SLAStatus, reading.Status)
		if err != nil {
			result.Failed++
			log.Error("persist sla status failed", zap.Error(err))
			return
		}
		if changed {
			result.Changed++
			s.recordTransition(ctx, ticket, reading, log)
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, ticket.ID, reading.Status, ticket.FirstResponseDueAt); err != nil {
			log.Warn("sla cache update failed", zap.Error(err))
		}
	}
}

func (s *SweepService) recordTransition(ctx context.Context, ticket *domain.Ticket, reading sla.Reading, log *zap.Logger) {
	old := ticket.SLAStatus
	ticket.SLAStatus = reading.Status

	if s.history != nil {
		entry := &domain.TicketHistory{
			TicketID:      ticket.ID,
			ChangedByType: domain.AuthorTypeSystem,
			ChangeType:    domain.ChangeTypeSLAStatus,
			OldValue:      map[string]any{"sla_status": old},
			NewValue: map[string]any{
				"sla_status":        reading.Status,
				"remaining_minutes": reading.RemainingMinutes,
			},
		}
		if err := s.history.Create(ctx, entry); err != nil {
			log.Error("record sla history failed", zap.Error(err))
		}
	}
	publishEvent(ctx, s.dispatcher, s.logger, s.now, events.Event{
		Type:     events.EventTicketSLAStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.SystemActor,
		Payload: events.TicketSLAStatusChangedPayload{
			OldStatus:        old,
			NewStatus:        reading.Status,
			RemainingMinutes: reading.RemainingMinutes,
			Critical:         reading.Critical,
			DueAt:            reading.Deadline,
		},
	})
	log.Info("sla status changed",
		zap.String("from", string(old)),
		zap.String("to", string(reading.Status)),
		zap.Int("remaining_minutes", reading.RemainingMinutes))
}

// Summary reads the status mirror.
func (s *SweepService) Summary(ctx context.Context) (*SLASummary, error) {
	if s.cache == nil {
		return nil, apperrors.NewServiceUnavailable("sla status cache not configured")
	}
	counts, err := s.cache.Counts(ctx)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable("sla status cache unavailable")
	}
	pastDue, err := s.cache.DueBefore(ctx, s.now(), 50)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable("sla status cache unavailable")
	}
	return &SLASummary{Counts: counts, PastDue: pastDue}, nil
}
