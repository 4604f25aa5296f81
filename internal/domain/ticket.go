package domain

import (
	"time"

	"github.com/spec-kit/ticket-sla/internal/sla"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen        TicketStatus = "OPEN"
	TicketStatusInProgress  TicketStatus = "IN_PROGRESS"
	TicketStatusPendingUser TicketStatus = "PENDING_USER"
	TicketStatusResolved    TicketStatus = "RESOLVED"
	TicketStatusClosed      TicketStatus = "CLOSED"
	TicketStatusCancelled   TicketStatus = "CANCELLED"
)

// IsTerminal reports whether no further SLA tracking applies.
func (s TicketStatus) IsTerminal() bool {
	switch s {
	case TicketStatusResolved, TicketStatusClosed, TicketStatusCancelled:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	ExternalKey string
	RequesterID string
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time

	// FirstResponseDueAt is fixed at creation and never recomputed, even if
	// the business calendar changes later.
	FirstResponseDueAt time.Time
	// FirstResponseAt is set by the first public staff reply. Once set the
	// ticket leaves SLA tracking.
	FirstResponseAt *time.Time
	// SLAStatus is the last status persisted by creation or a sweep.
	SLAStatus sla.Status
}

// AwaitingFirstResponse reports whether the ticket is still on the clock.
func (t *Ticket) AwaitingFirstResponse() bool {
	return t.FirstResponseAt == nil && !t.Status.IsTerminal()
}
