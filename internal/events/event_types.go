package events

import (
	"time"

	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/sla"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated          EventType = "ticket_created"
	EventTicketMessageAdded     EventType = "ticket_message_added"
	EventTicketFirstResponse    EventType = "ticket_first_response"
	EventTicketSLAStatusChanged EventType = "ticket_sla_status_changed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.SubjectType `json:"type"`
	UserID  *string            `json:"user_id,omitempty"`
	StaffID *string            `json:"staff_id,omitempty"`
}

// SystemActor marks events raised by background jobs.
var SystemActor = Actor{Type: domain.SubjectTypeSystem}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ExternalKey        string                `json:"external_key"`
	Priority           domain.TicketPriority `json:"priority"`
	Title              string                `json:"title"`
	FirstResponseDueAt time.Time             `json:"first_response_due_at"`
	SLAStatus          sla.Status            `json:"sla_status"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID   string                   `json:"message_id"`
	MessageType domain.TicketMessageType `json:"message_type"`
	AuthorType  domain.MessageAuthorType `json:"author_type"`
	AuthorID    *string                  `json:"author_id,omitempty"`
	BodyPreview string                   `json:"body_preview"`
}

// TicketFirstResponsePayload payload.
type TicketFirstResponsePayload struct {
	RespondedAt time.Time `json:"responded_at"`
	DueAt       time.Time `json:"due_at"`
	// Breached is set when the response came after the deadline.
	Breached bool `json:"breached"`
}

// TicketSLAStatusChangedPayload payload.
type TicketSLAStatusChangedPayload struct {
	OldStatus        sla.Status `json:"old_status"`
	NewStatus        sla.Status `json:"new_status"`
	RemainingMinutes int        `json:"remaining_minutes"`
	Critical         bool       `json:"critical"`
	DueAt            time.Time  `json:"due_at"`
}
