package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla/internal/calendar"
	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/observability"
	"github.com/spec-kit/ticket-sla/internal/repository"
	"github.com/spec-kit/ticket-sla/internal/sla"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows and stamps the first response
// SLA on them.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	history    repository.TicketHistoryRepository
	cache      repository.SLAStatusCache
	calendar   calendar.Source
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service. Cache,
// Dispatcher, Metrics and Now are optional.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	HistoryRepo repository.TicketHistoryRepository
	StatusCache repository.SLAStatusCache
	Calendar    calendar.Source
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Now         func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Tags        []string
}

// SLAView is the live first response SLA of a ticket. Available is false
// when the engine could not evaluate it; the rest of the ticket is still
// served in that case.
type SLAView struct {
	Available        bool
	Answered         bool
	Status           sla.Status
	RemainingMinutes int
	Critical         bool
	DueAt            time.Time
	RespondedAt      *time.Time
}

// TicketView is a ticket with its thread and SLA.
type TicketView struct {
	Ticket   *domain.Ticket
	Messages []domain.TicketMessage
	History  []domain.TicketHistory
	SLA      SLAView
}

// DeadlinePreview answers "when would a ticket created at CreatedAt be due".
type DeadlinePreview struct {
	CreatedAt time.Time
	DueAt     time.Time
	Reading   sla.Reading
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		history:    deps.HistoryRepo,
		cache:      deps.StatusCache,
		calendar:   deps.Calendar,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        now,
	}
}

// CreateTicket creates a ticket for a user with its first response deadline.
func (s *TicketService) CreateTicket(ctx context.Context, userID string, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !validPriority(priority) {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	createdAt := s.now().UTC()
	cal := s.calendar.Current()
	dueAt, err := sla.ComputeDeadline(createdAt, cal)
	if err != nil {
		s.metrics.RecordEvaluationError("deadline")
		s.logger.Error("sla deadline computation failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	reading, err := sla.Evaluate(dueAt, createdAt, cal)
	if err != nil {
		s.metrics.RecordEvaluationError("evaluate")
		s.logger.Error("sla evaluation failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}

	ticket := &domain.Ticket{
		ExternalKey:        generateTicketKey(),
		RequesterID:        userID,
		Title:              title,
		Description:        description,
		Status:             domain.TicketStatusOpen,
		Priority:           priority,
		Tags:               input.Tags,
		CreatedAt:          createdAt,
		FirstResponseDueAt: dueAt,
		SLAStatus:          reading.Status,
	}
	if ticket.Tags == nil {
		ticket.Tags = []string{}
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.mirrorStatus(ctx, ticket.ID, reading.Status, dueAt)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    userActor(userID),
		Payload: events.TicketCreatedPayload{
			ExternalKey:        ticket.ExternalKey,
			Priority:           ticket.Priority,
			Title:              ticket.Title,
			FirstResponseDueAt: dueAt,
			SLAStatus:          reading.Status,
		},
	})
	return ticket, nil
}

// GetTicket returns the ticket with its thread and live SLA. Users only see
// their own tickets and never see internal notes.
func (s *TicketService) GetTicket(ctx context.Context, principal domain.Principal, ticketID string) (*TicketView, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := canAccess(principal, ticket); err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !principal.IsStaff() {
		msgs = publicMessages(msgs)
	}

	view := &TicketView{Ticket: ticket, Messages: msgs, SLA: s.slaView(ticket)}
	if principal.IsStaff() && s.history != nil {
		history, err := s.history.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		view.History = history
	}
	return view, nil
}

// AddMessage appends a message to a ticket. The first public staff reply
// stops the SLA clock.
func (s *TicketService) AddMessage(ctx context.Context, principal domain.Principal, ticketID string, messageType domain.TicketMessageType, body string) (*domain.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := canAccess(principal, ticket); err != nil {
		return nil, err
	}

	msg := &domain.TicketMessage{
		TicketID:    ticket.ID,
		MessageType: messageType,
		Body:        body,
	}
	switch principal.Subject {
	case domain.SubjectTypeUser:
		if messageType != domain.MessageTypePublicReply {
			return nil, apperrors.NewValidationError("users can only post public replies", nil)
		}
		msg.AuthorType = domain.AuthorTypeUser
	case domain.SubjectTypeStaff:
		if messageType != domain.MessageTypePublicReply && messageType != domain.MessageTypeInternalNote {
			return nil, apperrors.NewValidationError("invalid message type for staff", nil)
		}
		msg.AuthorType = domain.AuthorTypeStaff
	default:
		return nil, apperrors.NewForbidden("unknown actor")
	}
	authorID := principal.SubjectID
	msg.AuthorID = &authorID

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}

	if msg.CountsAsFirstResponse() && ticket.FirstResponseAt == nil {
		if err := s.recordFirstResponse(ctx, ticket, msg, principal.SubjectID); err != nil {
			return nil, err
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    actorFromSubject(principal.Subject, principal.SubjectID),
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			MessageType: msg.MessageType,
			AuthorType:  msg.AuthorType,
			AuthorID:    msg.AuthorID,
			BodyPreview: stringPreview(msg.Body, 120),
		},
	})
	return msg, nil
}

// PreviewDeadline evaluates the deadline a ticket created at createdAt
// would get under the current calendar.
func (s *TicketService) PreviewDeadline(createdAt time.Time) (*DeadlinePreview, error) {
	cal := s.calendar.Current()
	dueAt, err := sla.ComputeDeadline(createdAt, cal)
	if err != nil {
		s.metrics.RecordEvaluationError("deadline")
		return nil, apperrors.NewInternalError(err)
	}
	reading, err := sla.Evaluate(dueAt, s.now(), cal)
	if err != nil {
		s.metrics.RecordEvaluationError("evaluate")
		return nil, apperrors.NewInternalError(err)
	}
	return &DeadlinePreview{CreatedAt: createdAt.UTC(), DueAt: dueAt, Reading: reading}, nil
}

func (s *TicketService) recordFirstResponse(ctx context.Context, ticket *domain.Ticket, msg *domain.TicketMessage, staffID string) error {
	respondedAt := msg.CreatedAt
	if respondedAt.IsZero() {
		respondedAt = s.now()
	}
	respondedAt = respondedAt.UTC()

	marked, err := s.tickets.MarkFirstResponse(ctx, ticket.ID, respondedAt)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !marked {
		// another reply won the race
		return nil
	}
	ticket.FirstResponseAt = &respondedAt
	breached := respondedAt.After(ticket.FirstResponseDueAt)

	if s.history != nil {
		entry := &domain.TicketHistory{
			TicketID:      ticket.ID,
			ChangedByType: domain.AuthorTypeStaff,
			ChangedByID:   &staffID,
			ChangeType:    domain.ChangeTypeFirstResponse,
			OldValue:      map[string]any{"sla_status": ticket.SLAStatus},
			NewValue: map[string]any{
				"responded_at": respondedAt,
				"due_at":       ticket.FirstResponseDueAt,
				"breached":     breached,
			},
		}
		if err := s.history.Create(ctx, entry); err != nil {
			s.logger.Error("record first response history", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, ticket.ID); err != nil {
			s.logger.Warn("sla cache delete failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketFirstResponse,
		TicketID: ticket.ID,
		Actor:    staffActor(staffID),
		Payload: events.TicketFirstResponsePayload{
			RespondedAt: respondedAt,
			DueAt:       ticket.FirstResponseDueAt,
			Breached:    breached,
		},
	})
	return nil
}

func (s *TicketService) slaView(ticket *domain.Ticket) SLAView {
	view := SLAView{
		DueAt:       ticket.FirstResponseDueAt,
		RespondedAt: ticket.FirstResponseAt,
		Answered:    ticket.FirstResponseAt != nil,
		Status:      ticket.SLAStatus,
	}
	if !ticket.AwaitingFirstResponse() {
		view.Available = true
		return view
	}
	reading, err := sla.Evaluate(ticket.FirstResponseDueAt, s.now(), s.calendar.Current())
	if err != nil {
		s.metrics.RecordEvaluationError("evaluate")
		s.logger.Warn("sla unavailable", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return SLAView{DueAt: ticket.FirstResponseDueAt}
	}
	view.Available = true
	view.Status = reading.Status
	view.RemainingMinutes = reading.RemainingMinutes
	view.Critical = reading.Critical
	return view
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) mirrorStatus(ctx context.Context, ticketID string, status sla.Status, dueAt time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, ticketID, status, dueAt); err != nil {
		s.logger.Warn("sla cache update failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, s.logger, s.now, event)
}

func canAccess(principal domain.Principal, ticket *domain.Ticket) error {
	switch principal.Subject {
	case domain.SubjectTypeStaff:
		return nil
	case domain.SubjectTypeUser:
		if ticket.RequesterID == principal.SubjectID {
			return nil
		}
		// do not leak existence
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
	default:
		return apperrors.NewForbidden("access denied")
	}
}

func publicMessages(msgs []domain.TicketMessage) []domain.TicketMessage {
	filtered := make([]domain.TicketMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.MessageType == domain.MessageTypeInternalNote {
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered
}

func validPriority(p domain.TicketPriority) bool {
	switch p {
	case domain.TicketPriorityLow, domain.TicketPriorityMedium, domain.TicketPriorityHigh, domain.TicketPriorityUrgent:
		return true
	}
	return false
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, now func() time.Time, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now().UTC()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func userActor(userID string) events.Actor {
	return events.Actor{
		Type:   domain.SubjectTypeUser,
		UserID: &userID,
	}
}

func staffActor(staffID string) events.Actor {
	return events.Actor{
		Type:    domain.SubjectTypeStaff,
		StaffID: &staffID,
	}
}

func actorFromSubject(subject domain.SubjectType, id string) events.Actor {
	switch subject {
	case domain.SubjectTypeStaff:
		return staffActor(id)
	default:
		return userActor(id)
	}
}

// stringPreview shortens body to at most max runes.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
