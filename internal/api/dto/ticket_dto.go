package dto

import (
	"time"

	"github.com/spec-kit/field-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	DisplayCode string                `json:"display_code"`
	CustomerID  string                `json:"customer_id"`
	MachineID   *string               `json:"machine_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	EngineerID string `json:"engineer_id"`
}

// CompleteTicketRequest payload.
type CompleteTicketRequest struct {
	SolutionNotes string `json:"solution_notes"`
	SparesUsed    string `json:"spares_used"`
}

// CloseTicketRequest payload.
type CloseTicketRequest struct {
	Notes string `json:"notes"`
}

// TicketResponse carries the full updated ticket so clients can replace
// their speculative copy with ground truth.
type TicketResponse struct {
	ID            string                  `json:"id"`
	DisplayID     string                  `json:"display_id"`
	CustomerID    string                  `json:"customer_id"`
	MachineID     *string                 `json:"machine_id"`
	Title         string                  `json:"title"`
	Description   string                  `json:"description"`
	Status        domain.TicketStatus     `json:"status"`
	Priority      domain.TicketPriority   `json:"priority"`
	WorkStatus    domain.TicketWorkStatus `json:"work_status"`
	AssignedTo    *string                 `json:"assigned_to"`
	SolutionNotes string                  `json:"solution_notes,omitempty"`
	SparesUsed    string                  `json:"spares_used,omitempty"`
	CloseNotes    string                  `json:"close_notes,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
	AssignedAt    *time.Time              `json:"assigned_at"`
	ResolvedAt    *time.Time              `json:"resolved_at"`
	ClosedAt      *time.Time              `json:"closed_at"`
}

// TicketHistoryResponse represents one audit entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *string                 `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}
