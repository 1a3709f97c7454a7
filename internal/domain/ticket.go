package domain

import "time"

// TicketStatus enumerates lifecycle states for service tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusAssigned   TicketStatus = "ASSIGNED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// TicketWorkStatus is the secondary engineer-facing status, tracked
// independently of the lifecycle status.
type TicketWorkStatus string

const (
	WorkStatusPending   TicketWorkStatus = "PENDING"
	WorkStatusWorking   TicketWorkStatus = "WORKING"
	WorkStatusCompleted TicketWorkStatus = "COMPLETED"
)

// Ticket is the aggregate for customer service requests.
type Ticket struct {
	ID            string
	DisplayCode   string
	CustomerID    string
	MachineID     *string
	Title         string
	Description   string
	Status        TicketStatus
	Priority      TicketPriority
	WorkStatus    TicketWorkStatus
	AssignedTo    *string
	SolutionNotes string
	SparesUsed    string
	CloseNotes    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	AssignedAt    *time.Time
	ResolvedAt    *time.Time
	ClosedAt      *time.Time
}

// DisplayID returns the human-assigned code when present, otherwise a
// derived TKT-<id> identifier.
func (t *Ticket) DisplayID() string {
	if t.DisplayCode != "" {
		return t.DisplayCode
	}
	return "TKT-" + t.ID
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusPending:    {TicketStatusAssigned},
	TicketStatusAssigned:   {TicketStatusInProgress, TicketStatusPending},
	TicketStatusInProgress: {TicketStatusResolved, TicketStatusClosed, TicketStatusAssigned, TicketStatusPending},
	TicketStatusResolved:   {TicketStatusClosed},
	TicketStatusClosed:     {},
}

// CanTransition reports whether a status change is legal.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
