package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// EngineerRepository handles persistence for engineers.
type EngineerRepository interface {
	Create(ctx context.Context, engineer *domain.Engineer) error
	Update(ctx context.Context, engineer *domain.Engineer) error
	GetByID(ctx context.Context, id string) (*domain.Engineer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Engineer, error)
	List(ctx context.Context, filter EngineerFilter) ([]domain.Engineer, error)
}

// EngineerFilter defines query params for engineer listing.
type EngineerFilter struct {
	Role   *domain.EngineerRole
	Active *bool
	Limit  int
	Offset int
}

type engineerRepository struct {
	pool *pgxpool.Pool
}

// NewEngineerRepository instantiates the repository.
func NewEngineerRepository(pool *pgxpool.Pool) EngineerRepository {
	return &engineerRepository{pool: pool}
}

func (r *engineerRepository) Create(ctx context.Context, engineer *domain.Engineer) error {
	const query = `
        INSERT INTO engineers (name, email, password_hash, role, active_flag)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		engineer.Name,
		engineer.Email,
		engineer.PasswordHash,
		engineer.Role,
		engineer.Active,
	).Scan(&engineer.ID, &engineer.CreatedAt, &engineer.UpdatedAt)
}

func (r *engineerRepository) Update(ctx context.Context, engineer *domain.Engineer) error {
	const query = `
        UPDATE engineers
        SET name=$1, email=$2, password_hash=$3, role=$4, active_flag=$5, updated_at=NOW()
        WHERE id=$6`

	cmd, err := r.pool.Exec(ctx, query,
		engineer.Name,
		engineer.Email,
		engineer.PasswordHash,
		engineer.Role,
		engineer.Active,
		engineer.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *engineerRepository) GetByID(ctx context.Context, id string) (*domain.Engineer, error) {
	const query = `
        SELECT id, name, email, password_hash, role, active_flag, created_at, updated_at
        FROM engineers WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *engineerRepository) GetByEmail(ctx context.Context, email string) (*domain.Engineer, error) {
	const query = `
        SELECT id, name, email, password_hash, role, active_flag, created_at, updated_at
        FROM engineers WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *engineerRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Engineer, error) {
	var engineer domain.Engineer
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&engineer.ID,
		&engineer.Name,
		&engineer.Email,
		&engineer.PasswordHash,
		&engineer.Role,
		&engineer.Active,
		&engineer.CreatedAt,
		&engineer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &engineer, nil
}

func (r *engineerRepository) List(ctx context.Context, filter EngineerFilter) ([]domain.Engineer, error) {
	query := `
        SELECT id, name, email, password_hash, role, active_flag, created_at, updated_at
        FROM engineers`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Engineer
	for rows.Next() {
		var engineer domain.Engineer
		if err := rows.Scan(
			&engineer.ID,
			&engineer.Name,
			&engineer.Email,
			&engineer.PasswordHash,
			&engineer.Role,
			&engineer.Active,
			&engineer.CreatedAt,
			&engineer.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, engineer)
	}
	return result, rows.Err()
}
