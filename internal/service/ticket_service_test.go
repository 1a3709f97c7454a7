package service

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

var (
	manager  = &domain.Engineer{ID: "mgr-1", Name: "Dana", Role: domain.RoleManager, Active: true}
	engineer = &domain.Engineer{ID: "eng-7", Name: "Rami", Role: domain.RoleEngineer, Active: true}
	other    = &domain.Engineer{ID: "eng-9", Name: "Lena", Role: domain.RoleEngineer, Active: true}
)

func newTicketFixture(t *testing.T) (*TicketService, *fakeTicketRepo, *recordingDispatcher) {
	t.Helper()
	tickets := newFakeTicketRepo()
	dispatcher := &recordingDispatcher{}
	svc := NewTicketService(TicketDependencies{
		TicketRepo:   tickets,
		EngineerRepo: newFakeEngineerRepo(manager, engineer, other),
		HistoryRepo:  &fakeHistoryRepo{},
		Dispatcher:   dispatcher,
		ClaimGuard:   &fakeClaimGuard{},
	})
	return svc, tickets, dispatcher
}

func createPending(t *testing.T, svc *TicketService) *domain.Ticket {
	t.Helper()
	ticket, err := svc.CreateTicket(context.Background(), TicketCreateInput{
		CustomerID: "cust-1",
		Title:      "printer jam",
		Priority:   domain.TicketPriorityHigh,
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	return ticket
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %T: %v", err, err)
	}
	if domainErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, domainErr.Code, domainErr.Message)
	}
}

func TestTicketLifecycle(t *testing.T) {
	svc, _, dispatcher := newTicketFixture(t)
	ctx := context.Background()

	ticket := createPending(t, svc)
	if ticket.Status != domain.TicketStatusPending || ticket.AssignedTo != nil {
		t.Fatalf("new ticket should be pending and unassigned, got %s", ticket.Status)
	}

	ticket, err := svc.Assign(ctx, manager, ticket.ID, engineer.ID)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if ticket.Status != domain.TicketStatusAssigned || ticket.AssignedTo == nil || *ticket.AssignedTo != engineer.ID {
		t.Fatalf("assign result wrong: status=%s assignee=%v", ticket.Status, ticket.AssignedTo)
	}
	if ticket.AssignedAt == nil {
		t.Fatal("AssignedAt should be set on first assignment")
	}

	ticket, err = svc.StartWork(ctx, engineer, ticket.ID)
	if err != nil {
		t.Fatalf("StartWork: %v", err)
	}
	if ticket.Status != domain.TicketStatusInProgress || ticket.WorkStatus != domain.WorkStatusWorking {
		t.Fatalf("start result wrong: status=%s work=%s", ticket.Status, ticket.WorkStatus)
	}

	ticket, err = svc.Complete(ctx, engineer, ticket.ID, "replaced fuser unit", "fuser-kit-1")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if ticket.Status != domain.TicketStatusResolved || ticket.WorkStatus != domain.WorkStatusCompleted {
		t.Fatalf("complete result wrong: status=%s work=%s", ticket.Status, ticket.WorkStatus)
	}
	if ticket.ResolvedAt == nil || ticket.SolutionNotes != "replaced fuser unit" {
		t.Fatal("resolution metadata missing")
	}
	if ticket.AssignedTo == nil || *ticket.AssignedTo != engineer.ID {
		t.Fatal("assignee must be preserved through resolution")
	}

	_, err = svc.Close(ctx, engineer, ticket.ID, "")
	assertErrorCode(t, err, "VALIDATION_FAILED")

	ticket, err = svc.Close(ctx, engineer, ticket.ID, "customer confirmed fix")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if ticket.Status != domain.TicketStatusClosed || ticket.ClosedAt == nil {
		t.Fatalf("close result wrong: status=%s", ticket.Status)
	}
	if ticket.AssignedTo == nil || *ticket.AssignedTo != engineer.ID {
		t.Fatal("assignee must be preserved after close")
	}

	if got := len(dispatcher.byType(events.EventTicketStatusChanged)); got != 3 {
		t.Errorf("expected 3 status-changed events, got %d", got)
	}
	if got := len(dispatcher.byType(events.EventTicketAssigned)); got != 1 {
		t.Errorf("expected 1 assigned event, got %d", got)
	}
}

func TestAssignAuthorization(t *testing.T) {
	svc, _, _ := newTicketFixture(t)
	ctx := context.Background()
	ticket := createPending(t, svc)

	_, err := svc.Assign(ctx, engineer, ticket.ID, other.ID)
	assertErrorCode(t, err, "NOT_AUTHORIZED")

	_, err = svc.Assign(ctx, manager, ticket.ID, "missing")
	assertErrorCode(t, err, "NOT_FOUND")
}

func TestAssignTerminalTicketRejected(t *testing.T) {
	svc, _, _ := newTicketFixture(t)
	ctx := context.Background()
	ticket := createPending(t, svc)

	if _, err := svc.Assign(ctx, manager, ticket.ID, engineer.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := svc.StartWork(ctx, engineer, ticket.ID); err != nil {
		t.Fatalf("StartWork: %v", err)
	}
	if _, err := svc.Complete(ctx, engineer, ticket.ID, "done", ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	_, err := svc.Assign(ctx, manager, ticket.ID, other.ID)
	assertErrorCode(t, err, "INVALID_TRANSITION")

	_, err = svc.TakeTicket(ctx, other, ticket.ID)
	assertErrorCode(t, err, "INVALID_TRANSITION")
}

func TestTakeTicket(t *testing.T) {
	svc, _, dispatcher := newTicketFixture(t)
	ctx := context.Background()
	ticket := createPending(t, svc)

	taken, err := svc.TakeTicket(ctx, engineer, ticket.ID)
	if err != nil {
		t.Fatalf("TakeTicket: %v", err)
	}
	if taken.Status != domain.TicketStatusAssigned || taken.AssignedTo == nil || *taken.AssignedTo != engineer.ID {
		t.Fatalf("take result wrong: status=%s assignee=%v", taken.Status, taken.AssignedTo)
	}

	// Second taker must lose and be told to refetch.
	_, err = svc.TakeTicket(ctx, other, ticket.ID)
	assertErrorCode(t, err, "CONFLICT")

	assigned := dispatcher.byType(events.EventTicketAssigned)
	if len(assigned) != 1 {
		t.Fatalf("expected 1 assigned event, got %d", len(assigned))
	}
	payload, ok := assigned[0].Payload.(events.TicketAssignedPayload)
	if !ok || !payload.SelfTaken {
		t.Error("take-ticket event should carry the self-taken flag")
	}
}

func TestTakeTicketRace(t *testing.T) {
	tickets := newFakeTicketRepo()
	svc := NewTicketService(TicketDependencies{
		TicketRepo:   tickets,
		EngineerRepo: newFakeEngineerRepo(manager, engineer, other),
		Dispatcher:   &recordingDispatcher{},
	})
	ctx := context.Background()
	ticket := createPending(t, svc)

	// Simulate the loser: the row was claimed between the read and the
	// conditional update.
	if _, err := tickets.Claim(ctx, ticket.ID, other.ID, ticket.CreatedAt); err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	tickets.mu.Lock()
	snapshot := *tickets.tickets[ticket.ID]
	tickets.mu.Unlock()

	_, err := svc.TakeTicket(ctx, engineer, ticket.ID)
	assertErrorCode(t, err, "CONFLICT")

	tickets.mu.Lock()
	after := *tickets.tickets[ticket.ID]
	tickets.mu.Unlock()
	if after.AssignedTo == nil || *after.AssignedTo != *snapshot.AssignedTo {
		t.Error("losing take must not disturb the winner's assignment")
	}
}

func TestTakeTicketClaimGuardDenies(t *testing.T) {
	svc := NewTicketService(TicketDependencies{
		TicketRepo:   newFakeTicketRepo(),
		EngineerRepo: newFakeEngineerRepo(manager, engineer),
		Dispatcher:   &recordingDispatcher{},
		ClaimGuard:   &fakeClaimGuard{deny: true},
	})
	ctx := context.Background()
	ticket := createPending(t, svc)

	_, err := svc.TakeTicket(ctx, engineer, ticket.ID)
	assertErrorCode(t, err, "CONFLICT")
}

func TestStartWorkRequiresAssignee(t *testing.T) {
	svc, _, _ := newTicketFixture(t)
	ctx := context.Background()
	ticket := createPending(t, svc)

	_, err := svc.StartWork(ctx, engineer, ticket.ID)
	assertErrorCode(t, err, "INVALID_TRANSITION")

	if _, err := svc.Assign(ctx, manager, ticket.ID, engineer.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	_, err = svc.StartWork(ctx, other, ticket.ID)
	assertErrorCode(t, err, "NOT_AUTHORIZED")

	// Even a manager may not start work on someone else's ticket.
	_, err = svc.StartWork(ctx, manager, ticket.ID)
	assertErrorCode(t, err, "NOT_AUTHORIZED")
}

func TestCompleteValidatesNotesBeforeState(t *testing.T) {
	svc, tickets, _ := newTicketFixture(t)
	ctx := context.Background()
	ticket := createPending(t, svc)
	if _, err := svc.Assign(ctx, manager, ticket.ID, engineer.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := svc.StartWork(ctx, engineer, ticket.ID); err != nil {
		t.Fatalf("StartWork: %v", err)
	}

	_, err := svc.Complete(ctx, engineer, ticket.ID, "   ", "")
	assertErrorCode(t, err, "VALIDATION_FAILED")

	stored, err := tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != domain.TicketStatusInProgress {
		t.Errorf("failed complete must not change status, got %s", stored.Status)
	}

	_, err = svc.Complete(ctx, engineer, ticket.ID, "done", "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	_, err = svc.Complete(ctx, engineer, ticket.ID, "again", "")
	assertErrorCode(t, err, "INVALID_TRANSITION")
}

func TestCancelAssignment(t *testing.T) {
	svc, _, _ := newTicketFixture(t)
	ctx := context.Background()
	ticket := createPending(t, svc)

	_, err := svc.CancelAssignment(ctx, manager, ticket.ID)
	assertErrorCode(t, err, "INVALID_TRANSITION")

	if _, err := svc.Assign(ctx, manager, ticket.ID, engineer.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := svc.StartWork(ctx, engineer, ticket.ID); err != nil {
		t.Fatalf("StartWork: %v", err)
	}

	_, err = svc.CancelAssignment(ctx, other, ticket.ID)
	assertErrorCode(t, err, "NOT_AUTHORIZED")

	ticket, err = svc.CancelAssignment(ctx, engineer, ticket.ID)
	if err != nil {
		t.Fatalf("CancelAssignment: %v", err)
	}
	if ticket.Status != domain.TicketStatusPending || ticket.AssignedTo != nil {
		t.Fatalf("cancel result wrong: status=%s assignee=%v", ticket.Status, ticket.AssignedTo)
	}
	if ticket.WorkStatus != domain.WorkStatusPending {
		t.Errorf("cancel must reset work status, got %s", ticket.WorkStatus)
	}

	// The ticket can be taken again by anyone.
	if _, err := svc.TakeTicket(ctx, other, ticket.ID); err != nil {
		t.Fatalf("retake after cancel: %v", err)
	}
}

func TestCloseFromInProgress(t *testing.T) {
	svc, _, _ := newTicketFixture(t)
	ctx := context.Background()
	ticket := createPending(t, svc)
	if _, err := svc.Assign(ctx, manager, ticket.ID, engineer.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := svc.StartWork(ctx, engineer, ticket.ID); err != nil {
		t.Fatalf("StartWork: %v", err)
	}

	ticket, err := svc.Close(ctx, manager, ticket.ID, "customer cancelled the visit")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if ticket.Status != domain.TicketStatusClosed {
		t.Fatalf("expected closed, got %s", ticket.Status)
	}
	if ticket.ResolvedAt != nil {
		t.Error("abandonment close must not fabricate a resolution timestamp")
	}
}

func TestCreateTicketValidation(t *testing.T) {
	svc, _, _ := newTicketFixture(t)

	_, err := svc.CreateTicket(context.Background(), TicketCreateInput{Title: "no customer"})
	assertErrorCode(t, err, "VALIDATION_FAILED")

	ticket, err := svc.CreateTicket(context.Background(), TicketCreateInput{CustomerID: "cust-2", Title: "x"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.Priority != domain.TicketPriorityMedium {
		t.Errorf("default priority should be MEDIUM, got %s", ticket.Priority)
	}
}
