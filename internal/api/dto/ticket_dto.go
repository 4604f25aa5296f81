package dto

import (
	"time"

	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/sla"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Tags        []string              `json:"tags"`
}

// TicketSummary response.
type TicketSummary struct {
	ID                 string                `json:"id"`
	ExternalKey        string                `json:"external_key"`
	Title              string                `json:"title"`
	Status             domain.TicketStatus   `json:"status"`
	Priority           domain.TicketPriority `json:"priority"`
	Tags               []string              `json:"tags"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
	FirstResponseDueAt time.Time             `json:"first_response_due_at"`
	SLAStatus          sla.Status            `json:"sla_status"`
}

// SLAResponse is the live first response SLA. Only Available is set when
// the SLA could not be computed.
type SLAResponse struct {
	Available        bool       `json:"available"`
	Answered         bool       `json:"answered,omitempty"`
	Status           sla.Status `json:"status,omitempty"`
	RemainingMinutes *int       `json:"remaining_minutes,omitempty"`
	Critical         bool       `json:"critical,omitempty"`
	DueAt            *time.Time `json:"due_at,omitempty"`
	RespondedAt      *time.Time `json:"responded_at,omitempty"`
	Message          string     `json:"message,omitempty"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID          string                  `json:"id"`
	ExternalKey string                  `json:"external_key"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Status      domain.TicketStatus     `json:"status"`
	Priority    domain.TicketPriority   `json:"priority"`
	Tags        []string                `json:"tags"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	ClosedAt    *time.Time              `json:"closed_at"`
	SLA         SLAResponse             `json:"sla"`
	Messages    []TicketMessageResponse `json:"messages"`
	History     []TicketHistoryResponse `json:"history,omitempty"`
}

// TicketMessageResponse represents thread message.
type TicketMessageResponse struct {
	ID          string                   `json:"id"`
	MessageType domain.TicketMessageType `json:"message_type"`
	AuthorType  domain.MessageAuthorType `json:"author_type"`
	AuthorID    *string                  `json:"author_id"`
	Body        string                   `json:"body"`
	CreatedAt   time.Time                `json:"created_at"`
}

// TicketHistoryResponse is an audit entry.
type TicketHistoryResponse struct {
	ID            string                   `json:"id"`
	ChangeType    domain.TicketChangeType  `json:"change_type"`
	ChangedByType domain.MessageAuthorType `json:"changed_by_type"`
	ChangedByID   *string                  `json:"changed_by_id,omitempty"`
	OldValue      map[string]any           `json:"old_value,omitempty"`
	NewValue      map[string]any           `json:"new_value,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
}

// CreateMessageRequest payload. MessageType defaults to a public reply.
type CreateMessageRequest struct {
	Body        string                    `json:"body"`
	MessageType *domain.TicketMessageType `json:"message_type,omitempty"`
}
