package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
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

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// Claim atomically assigns a pending, unassigned ticket. The conditional
	// UPDATE is the authority for the take-ticket race: zero rows affected
	// means another engineer already holds the ticket.
	Claim(ctx context.Context, ticketID, engineerID string, now time.Time) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, display_code, customer_id, machine_id, title, description,
       status, priority, work_status, assigned_to, solution_notes, spares_used, close_notes,
       created_at, updated_at, assigned_at, resolved_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (display_code, customer_id, machine_id, title, description, status, priority, work_status, assigned_to)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.DisplayCode,
		ticket.CustomerID,
		ticket.MachineID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.WorkStatus,
		ticket.AssignedTo,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, priority=$2, work_status=$3, assigned_to=$4,
            solution_notes=$5, spares_used=$6, close_notes=$7,
            assigned_at=$8, resolved_at=$9, closed_at=$10, updated_at=NOW()
        WHERE id=$11`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Status,
		ticket.Priority,
		ticket.WorkStatus,
		ticket.AssignedTo,
		ticket.SolutionNotes,
		ticket.SparesUsed,
		ticket.CloseNotes,
		ticket.AssignedAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) Claim(ctx context.Context, ticketID, engineerID string, now time.Time) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET status=$1, assigned_to=$2, assigned_at=$3, updated_at=NOW()
        WHERE id=$4 AND status=$5 AND assigned_to IS NULL
        RETURNING ` + ticketColumns
	var ticket domain.Ticket
	row := r.pool.QueryRow(ctx, query,
		domain.TicketStatusAssigned,
		engineerID,
		now,
		ticketID,
		domain.TicketStatusPending,
	)
	if err := scanTicket(row, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.DisplayCode,
		&ticket.CustomerID,
		&ticket.MachineID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.WorkStatus,
		&ticket.AssignedTo,
		&ticket.SolutionNotes,
		&ticket.SparesUsed,
		&ticket.CloseNotes,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.AssignedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
	)
}
