package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/repository"
)

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	nextID  int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]*domain.Ticket{}, nextID: 1}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.ID = strconv.Itoa(r.nextID)
	r.nextID++
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		if filter.AssignedTo != nil {
			if ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo {
				continue
			}
		}
		if len(filter.Statuses) > 0 {
			matched := false
			for _, status := range filter.Statuses {
				if ticket.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, *ticket)
	}
	return out, nil
}

// Claim mimics the conditional UPDATE: only a pending, unassigned row moves.
func (r *fakeTicketRepo) Claim(_ context.Context, ticketID, engineerID string, now time.Time) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.Status != domain.TicketStatusPending || ticket.AssignedTo != nil {
		return nil, pgx.ErrNoRows
	}
	ticket.Status = domain.TicketStatusAssigned
	ticket.AssignedTo = &engineerID
	if ticket.AssignedAt == nil {
		ticket.AssignedAt = &now
	}
	ticket.UpdatedAt = now
	copied := *ticket
	return &copied, nil
}

type fakeEngineerRepo struct {
	mu        sync.Mutex
	engineers map[string]*domain.Engineer
}

func newFakeEngineerRepo(engineers ...*domain.Engineer) *fakeEngineerRepo {
	repo := &fakeEngineerRepo{engineers: map[string]*domain.Engineer{}}
	for _, engineer := range engineers {
		copied := *engineer
		repo.engineers[engineer.ID] = &copied
	}
	return repo
}

func (r *fakeEngineerRepo) Create(_ context.Context, engineer *domain.Engineer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *engineer
	r.engineers[engineer.ID] = &copied
	return nil
}

func (r *fakeEngineerRepo) Update(_ context.Context, engineer *domain.Engineer) error {
	return r.Create(context.Background(), engineer)
}

func (r *fakeEngineerRepo) GetByID(_ context.Context, id string) (*domain.Engineer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	engineer, ok := r.engineers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *engineer
	return &copied, nil
}

func (r *fakeEngineerRepo) GetByEmail(_ context.Context, email string) (*domain.Engineer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, engineer := range r.engineers {
		if engineer.Email == email {
			copied := *engineer
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeEngineerRepo) List(_ context.Context, _ repository.EngineerFilter) ([]domain.Engineer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Engineer, 0, len(r.engineers))
	for _, engineer := range r.engineers {
		out = append(out, *engineer)
	}
	return out, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (r *fakeHistoryRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *history)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.TicketHistory{}
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.WorkSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*domain.WorkSession{}}
}

func sessionKey(engineerID string, day time.Time) string {
	return engineerID + "|" + day.Format("2006-01-02")
}

func (r *fakeSessionRepo) GetForDay(_ context.Context, engineerID string, day time.Time) (*domain.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionKey(engineerID, day)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) Upsert(_ context.Context, session *domain.WorkSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.UpdatedAt = time.Now()
	copied := *session
	r.sessions[sessionKey(session.EngineerID, session.WorkDate)] = &copied
	return nil
}

func (r *fakeSessionRepo) ListCheckedIn(_ context.Context) ([]domain.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.WorkSession{}
	for _, session := range r.sessions {
		if session.IsCheckedIn {
			out = append(out, *session)
		}
	}
	return out, nil
}

type fakeClaimGuard struct {
	mu     sync.Mutex
	owners map[string]string
	deny   bool
}

func (g *fakeClaimGuard) TryClaim(_ context.Context, key, owner string, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deny {
		return false, nil
	}
	if g.owners == nil {
		g.owners = map[string]string{}
	}
	if _, taken := g.owners[key]; taken {
		return false, nil
	}
	g.owners[key] = owner
	return true, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(_ events.EventType, _ events.EventHandler) {}

func (d *recordingDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []events.Event{}
	for _, event := range d.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}
