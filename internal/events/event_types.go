package events

import (
	"time"

	"github.com/spec-kit/field-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketAssigned            EventType = "ticket_assigned"
	EventTicketAssignmentCancelled EventType = "ticket_assignment_cancelled"
	EventTicketStatusChanged       EventType = "ticket_status_changed"
	EventEngineerCheckedIn         EventType = "engineer_checked_in"
	EventEngineerCheckedOut        EventType = "engineer_checked_out"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	TicketID   string      `json:"ticket_id,omitempty"`
	EngineerID string      `json:"engineer_id,omitempty"`
	ActorID    string      `json:"actor_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssignedTo string `json:"assigned_to"`
	SelfTaken  bool   `json:"self_taken"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// CheckedInPayload payload.
type CheckedInPayload struct {
	At               time.Time `json:"at"`
	BaseDailyMinutes int       `json:"base_daily_minutes"`
}

// CheckedOutPayload payload. Automatic marks the scheduled end-of-shift
// checkout; the accounting is identical either way.
type CheckedOutPayload struct {
	At                time.Time `json:"at"`
	DailyTotalMinutes int       `json:"daily_total_minutes"`
	Automatic         bool      `json:"automatic"`
}
