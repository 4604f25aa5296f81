package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/sla"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error)
	// ListAwaitingFirstResponse pages over open tickets that have not been
	// answered yet, earliest deadline first. A nil cursor starts at the
	// beginning; otherwise only tickets ordered after it are returned.
	ListAwaitingFirstResponse(ctx context.Context, after *SweepCursor, limit int) ([]domain.Ticket, error)
	// UpdateSLAStatus moves a ticket from one SLA status to another. It
	// reports false when the stored status no longer equals from.
	UpdateSLAStatus(ctx context.Context, id string, from, to sla.Status) (bool, error)
	// MarkFirstResponse records the first response time. It reports false
	// when the ticket was already answered.
	MarkFirstResponse(ctx context.Context, id string, at time.Time) (bool, error)
}

// SweepCursor is the keyset position of the last ticket of a page.
type SweepCursor struct {
	DueAt time.Time
	ID    string
}

// CursorAfter returns the cursor positioned on ticket.
func CursorAfter(ticket domain.Ticket) *SweepCursor {
	return &SweepCursor{DueAt: ticket.FirstResponseDueAt, ID: ticket.ID}
}

// Covers reports whether ticket sorts on or before the cursor. A nil cursor
// covers nothing.
func (c *SweepCursor) Covers(ticket domain.Ticket) bool {
	if c == nil {
		return false
	}
	if !ticket.FirstResponseDueAt.Equal(c.DueAt) {
		return ticket.FirstResponseDueAt.Before(c.DueAt)
	}
	return ticket.ID <= c.ID
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, requester_user_id, title, description, status, priority, tags,
               created_at, updated_at, closed_at, first_response_due_at, first_response_at, sla_status`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, requester_user_id, title, description, status, priority, tags,
            created_at, first_response_due_at, sla_status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.RequesterID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Tags,
		ticket.CreatedAt,
		ticket.FirstResponseDueAt,
		ticket.SLAStatus,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE external_key=$1`, key)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListAwaitingFirstResponse(ctx context.Context, after *SweepCursor, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	args := []any{
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
		domain.TicketStatusCancelled,
		limit,
	}
	keyset := ""
	if after != nil {
		keyset = ` AND (first_response_due_at, id) > ($5, $6::uuid)`
		args = append(args, after.DueAt, after.ID)
	}
	query := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE first_response_at IS NULL AND status NOT IN ($1,$2,$3)` + keyset + `
        ORDER BY first_response_due_at ASC, id ASC
        LIMIT $4`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateSLAStatus(ctx context.Context, id string, from, to sla.Status) (bool, error) {
	const query = `UPDATE tickets SET sla_status=$1, updated_at=NOW() WHERE id=$2 AND sla_status=$3`
	cmd, err := r.pool.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) MarkFirstResponse(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE tickets SET first_response_at=$1, updated_at=NOW() WHERE id=$2 AND first_response_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.RequesterID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Tags,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
		&ticket.FirstResponseDueAt,
		&ticket.FirstResponseAt,
		&ticket.SLAStatus,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
