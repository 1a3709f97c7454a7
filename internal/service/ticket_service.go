package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/repository"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// ClaimGuard is a fast-path lock for the take-ticket race. The conditional
// UPDATE in the ticket repository remains the authority; the guard only
// short-circuits obvious losers.
type ClaimGuard interface {
	TryClaim(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
}

const claimTTL = 10 * time.Second

// TicketService owns the ticket lifecycle: every legal status/assignment
// transition is validated here before any mutation.
type TicketService struct {
	tickets    repository.TicketRepository
	engineers  repository.EngineerRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	claims     ClaimGuard
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	EngineerRepo repository.EngineerRepository
	HistoryRepo  repository.TicketHistoryRepository
	Dispatcher   events.Dispatcher
	ClaimGuard   ClaimGuard
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	DisplayCode string
	CustomerID  string
	MachineID   *string
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	CustomerID  *string
	AssignedTo  *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		engineers:  deps.EngineerRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		claims:     deps.ClaimGuard,
	}
}

// CreateTicket registers a new pending ticket. Creation always starts
// unassigned; assignment is a separate transition.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.CustomerID) == "" || strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewValidationError("customer_id and title required", nil)
	}

	ticket := &domain.Ticket{
		DisplayCode: strings.TrimSpace(input.DisplayCode),
		CustomerID:  input.CustomerID,
		MachineID:   input.MachineID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusPending,
		Priority:    input.Priority,
		WorkStatus:  domain.WorkStatusPending,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// GetTicket fetches a single ticket.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.loadTicket(ctx, ticketID)
}

// ListTickets returns tickets matching the filter.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		CustomerID:  filter.CustomerID,
		AssignedTo:  filter.AssignedTo,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Assign moves a ticket to ASSIGNED for the given engineer. Legal from
// PENDING, or as a manager reassignment from ASSIGNED/IN_PROGRESS. Terminal
// tickets reject with InvalidTransition.
func (s *TicketService) Assign(ctx context.Context, actor *domain.Engineer, ticketID, engineerID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("engineer required")
	}
	if !actor.CanAssignOthers() {
		return nil, apperrors.NewNotAuthorized("only managers may assign tickets")
	}

	assignee, err := s.engineers.GetByID(ctx, engineerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("engineer", map[string]any{"engineer_id": engineerID})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.Active {
		return nil, apperrors.NewConflict("engineer inactive", map[string]any{"engineer_id": engineerID})
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusResolved || ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusAssigned), nil)
	}

	now := time.Now()
	oldStatus := ticket.Status
	oldAssignee := ticket.AssignedTo
	ticket.Status = domain.TicketStatusAssigned
	ticket.AssignedTo = &assignee.ID
	if ticket.AssignedAt == nil {
		ticket.AssignedAt = &now
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordAssigneeChange(ctx, actor.ID, ticket.ID, oldAssignee, ticket.AssignedTo)
	if oldStatus != ticket.Status {
		s.recordStatusChange(ctx, actor.ID, ticket.ID, oldStatus, ticket.Status, "assigned")
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventTicketAssigned,
		TicketID:   ticket.ID,
		EngineerID: assignee.ID,
		ActorID:    actor.ID,
		Payload:    events.TicketAssignedPayload{AssignedTo: assignee.ID},
	})
	return ticket, nil
}

// TakeTicket lets an engineer claim a pending, unassigned ticket for
// themselves. When two engineers race, the repository's conditional update
// decides: the loser gets Conflict and must refetch.
func (s *TicketService) TakeTicket(ctx context.Context, actor *domain.Engineer, ticketID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("engineer required")
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusResolved || ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusAssigned), nil)
	}
	if ticket.Status != domain.TicketStatusPending || ticket.AssignedTo != nil {
		return nil, apperrors.NewConflict("ticket already assigned", map[string]any{"ticket_id": ticketID})
	}

	if s.claims != nil {
		ok, err := s.claims.TryClaim(ctx, "ticket:claim:"+ticketID, actor.ID, claimTTL)
		if err == nil && !ok {
			return nil, apperrors.NewConflict("ticket already assigned", map[string]any{"ticket_id": ticketID})
		}
	}

	claimed, err := s.tickets.Claim(ctx, ticketID, actor.ID, time.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewConflict("ticket already assigned", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	s.recordAssigneeChange(ctx, actor.ID, claimed.ID, nil, claimed.AssignedTo)
	s.recordStatusChange(ctx, actor.ID, claimed.ID, domain.TicketStatusPending, claimed.Status, "self_taken")
	s.publishEvent(ctx, events.Event{
		Type:       events.EventTicketAssigned,
		TicketID:   claimed.ID,
		EngineerID: actor.ID,
		ActorID:    actor.ID,
		Payload:    events.TicketAssignedPayload{AssignedTo: actor.ID, SelfTaken: true},
	})
	return claimed, nil
}

// CancelAssignment returns a ticket to PENDING, clearing the assignee but
// keeping the assignment timestamp for history. Used for manager unassignment
// and engineer self-pause alike.
func (s *TicketService) CancelAssignment(ctx context.Context, actor *domain.Engineer, ticketID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("engineer required")
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusAssigned && ticket.Status != domain.TicketStatusInProgress {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusPending), nil)
	}
	if !actor.CanAssignOthers() && !isAssignedTo(ticket, actor.ID) {
		return nil, apperrors.NewNotAuthorized("only the assigned engineer or a manager may cancel an assignment")
	}

	oldStatus := ticket.Status
	oldAssignee := ticket.AssignedTo
	ticket.Status = domain.TicketStatusPending
	ticket.AssignedTo = nil
	ticket.WorkStatus = domain.WorkStatusPending
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordAssigneeChange(ctx, actor.ID, ticket.ID, oldAssignee, nil)
	s.recordStatusChange(ctx, actor.ID, ticket.ID, oldStatus, ticket.Status, "assignment_cancelled")
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssignmentCancelled,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
		},
	})
	return ticket, nil
}

// StartWork moves an ASSIGNED ticket to IN_PROGRESS. Only the assigned
// engineer may start work.
func (s *TicketService) StartWork(ctx context.Context, actor *domain.Engineer, ticketID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("engineer required")
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusAssigned {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusInProgress), nil)
	}
	if !isAssignedTo(ticket, actor.ID) {
		return nil, apperrors.NewNotAuthorized("only the assigned engineer may start work")
	}

	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusInProgress
	ticket.WorkStatus = domain.WorkStatusWorking
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordStatusChange(ctx, actor.ID, ticket.ID, oldStatus, ticket.Status, "work_started")
	s.publishStatusChanged(ctx, actor.ID, ticket, oldStatus, "work_started")
	return ticket, nil
}

// Complete resolves an IN_PROGRESS ticket. Solution notes are mandatory and
// validated before any state is touched.
func (s *TicketService) Complete(ctx context.Context, actor *domain.Engineer, ticketID, solutionNotes, sparesUsed string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("engineer required")
	}
	if strings.TrimSpace(solutionNotes) == "" {
		return nil, apperrors.NewValidationError("solution notes required", nil)
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusInProgress {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusResolved), nil)
	}
	if !actor.CanAssignOthers() && !isAssignedTo(ticket, actor.ID) {
		return nil, apperrors.NewNotAuthorized("only the assigned engineer may complete this ticket")
	}

	now := time.Now()
	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusResolved
	ticket.WorkStatus = domain.WorkStatusCompleted
	ticket.SolutionNotes = strings.TrimSpace(solutionNotes)
	ticket.SparesUsed = strings.TrimSpace(sparesUsed)
	if ticket.ResolvedAt == nil {
		ticket.ResolvedAt = &now
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordStatusChange(ctx, actor.ID, ticket.ID, oldStatus, ticket.Status, "completed")
	s.publishStatusChanged(ctx, actor.ID, ticket, oldStatus, "completed")
	return ticket, nil
}

// Close closes a ticket from IN_PROGRESS (abandonment path) or RESOLVED.
// Notes are mandatory on both paths. The assignee is preserved for
// attribution.
func (s *TicketService) Close(ctx context.Context, actor *domain.Engineer, ticketID, notes string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("engineer required")
	}
	if strings.TrimSpace(notes) == "" {
		return nil, apperrors.NewValidationError("close notes required", nil)
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusInProgress && ticket.Status != domain.TicketStatusResolved {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusClosed), nil)
	}
	if !actor.CanAssignOthers() && !isAssignedTo(ticket, actor.ID) {
		return nil, apperrors.NewNotAuthorized("only the assigned engineer or a manager may close this ticket")
	}

	now := time.Now()
	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusClosed
	ticket.CloseNotes = strings.TrimSpace(notes)
	if ticket.ClosedAt == nil {
		ticket.ClosedAt = &now
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordStatusChange(ctx, actor.ID, ticket.ID, oldStatus, ticket.Status, "closed")
	s.publishStatusChanged(ctx, actor.ID, ticket, oldStatus, "closed")
	return ticket, nil
}

// ListHistory returns the audit trail for a ticket.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func isAssignedTo(ticket *domain.Ticket, engineerID string) bool {
	return ticket.AssignedTo != nil && *ticket.AssignedTo == engineerID
}

func (s *TicketService) publishStatusChanged(ctx context.Context, actorID string, ticket *domain.Ticket, oldStatus domain.TicketStatus, comment string) {
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
			Comment:   comment,
		},
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *TicketService) recordStatusChange(ctx context.Context, actorID, ticketID string, oldStatus, newStatus domain.TicketStatus, comment string) {
	if s.history == nil {
		return
	}
	_ = s.history.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: &actorID,
		ChangeType:  domain.ChangeTypeStatus,
		OldValue: map[string]any{
			"status": oldStatus,
		},
		NewValue: map[string]any{
			"status":  newStatus,
			"comment": comment,
		},
	})
}

func (s *TicketService) recordAssigneeChange(ctx context.Context, actorID, ticketID string, oldAssignee, newAssignee *string) {
	if s.history == nil {
		return
	}
	_ = s.history.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: &actorID,
		ChangeType:  domain.ChangeTypeAssignee,
		OldValue: map[string]any{
			"assigned_to": oldAssignee,
		},
		NewValue: map[string]any{
			"assigned_to": newAssignee,
		},
	})
}
