package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-sla/internal/calendar"
	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/repository"
	"github.com/spec-kit/ticket-sla/internal/sla"
)

var la = mustLocation("America/Los_Angeles")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func laTime(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, la)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func defaultCalendar() calendar.Source {
	return calendar.Static(sla.MustCalendarConfig(sla.DefaultOptions()))
}

// brokenCalendar is never valid, so every engine call fails.
func brokenCalendar() calendar.Source {
	return calendar.Static(sla.CalendarConfig{})
}

type fakeTickets struct {
	mu         sync.Mutex
	byID       map[string]*domain.Ticket
	listErr    error
	updateErrs map[string]error
	createErr  error
	listCalls  int
	afterList  func(call int)
}

func newFakeTickets(seed ...domain.Ticket) *fakeTickets {
	f := &fakeTickets{byID: map[string]*domain.Ticket{}, updateErrs: map[string]error{}}
	for i := range seed {
		t := seed[i]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		f.byID[t.ID] = &t
	}
	return f
}

func (f *fakeTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	ticket.ID = uuid.NewString()
	ticket.UpdatedAt = ticket.CreatedAt
	cp := *ticket
	f.byID[ticket.ID] = &cp
	return nil
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTickets) GetByExternalKey(_ context.Context, key string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byID {
		if t.ExternalKey == key {
			cp := *t
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTickets) ListAwaitingFirstResponse(_ context.Context, after *repository.SweepCursor, limit int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var all []domain.Ticket
	for _, t := range f.byID {
		if t.AwaitingFirstResponse() && !after.Covers(*t) {
			all = append(all, *t)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].FirstResponseDueAt.Equal(all[j].FirstResponseDueAt) {
			return all[i].FirstResponseDueAt.Before(all[j].FirstResponseDueAt)
		}
		return all[i].ID < all[j].ID
	})
	out := all[:min(limit, len(all))]
	if f.afterList != nil {
		f.afterList(f.listCalls)
	}
	return out, nil
}

func (f *fakeTickets) UpdateSLAStatus(_ context.Context, id string, from, to sla.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErrs[id]; err != nil {
		return false, err
	}
	t, ok := f.byID[id]
	if !ok || t.SLAStatus != from {
		return false, nil
	}
	t.SLAStatus = to
	return true, nil
}

func (f *fakeTickets) MarkFirstResponse(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok || t.FirstResponseAt != nil {
		return false, nil
	}
	t.FirstResponseAt = &at
	return true, nil
}

func (f *fakeTickets) get(id string) domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.byID[id]
}

type fakeMessages struct {
	mu   sync.Mutex
	msgs []domain.TicketMessage
	at   time.Time
}

func (f *fakeMessages) Create(_ context.Context, msg *domain.TicketMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = uuid.NewString()
	msg.CreatedAt = f.at
	f.msgs = append(f.msgs, *msg)
	return nil
}

func (f *fakeMessages) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TicketMessage
	for _, m := range f.msgs {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (f *fakeHistory) Create(_ context.Context, h *domain.TicketHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h.ID = uuid.NewString()
	f.entries = append(f.entries, *h)
	return nil
}

func (f *fakeHistory) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range f.entries {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeHistory) ofType(ct domain.TicketChangeType) []domain.TicketHistory {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range f.entries {
		if h.ChangeType == ct {
			out = append(out, h)
		}
	}
	return out
}

type cacheEntry struct {
	status   sla.Status
	deadline time.Time
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	err     error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]cacheEntry{}}
}

func (f *fakeCache) Set(_ context.Context, id string, status sla.Status, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries[id] = cacheEntry{status: status, deadline: deadline}
	return nil
}

func (f *fakeCache) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeCache) Counts(context.Context) (map[sla.Status]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := map[sla.Status]int64{sla.StatusNormal: 0, sla.StatusWarn: 0, sla.StatusOverdue: 0}
	for _, e := range f.entries {
		out[e.status]++
	}
	return out, nil
}

func (f *fakeCache) DueBefore(_ context.Context, t time.Time, limit int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var ids []string
	for id, e := range f.entries {
		if !e.deadline.After(t) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if int64(len(ids)) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, e events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) ofType(et events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}
