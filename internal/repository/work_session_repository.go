package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// WorkSessionRepository persists per-day engineer work sessions.
type WorkSessionRepository interface {
	GetForDay(ctx context.Context, engineerID string, day time.Time) (*domain.WorkSession, error)
	Upsert(ctx context.Context, session *domain.WorkSession) error
	// ListCheckedIn returns every session with an open check-in, for the
	// automatic cutoff sweep.
	ListCheckedIn(ctx context.Context) ([]domain.WorkSession, error)
}

type workSessionRepository struct {
	pool *pgxpool.Pool
}

// NewWorkSessionRepository instantiates the repository.
func NewWorkSessionRepository(pool *pgxpool.Pool) WorkSessionRepository {
	return &workSessionRepository{pool: pool}
}

func (r *workSessionRepository) GetForDay(ctx context.Context, engineerID string, day time.Time) (*domain.WorkSession, error) {
	const query = `
        SELECT engineer_id, work_date, checked_in, last_check_in, base_daily_minutes, daily_total_minutes, updated_at
        FROM work_sessions WHERE engineer_id=$1 AND work_date=$2`

	var session domain.WorkSession
	if err := r.pool.QueryRow(ctx, query, engineerID, day).Scan(
		&session.EngineerID,
		&session.WorkDate,
		&session.IsCheckedIn,
		&session.LastCheckIn,
		&session.BaseDailyMinutes,
		&session.DailyTotalMinutes,
		&session.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *workSessionRepository) Upsert(ctx context.Context, session *domain.WorkSession) error {
	const query = `
        INSERT INTO work_sessions (engineer_id, work_date, checked_in, last_check_in, base_daily_minutes, daily_total_minutes, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,NOW())
        ON CONFLICT (engineer_id, work_date)
        DO UPDATE SET checked_in=$3, last_check_in=$4, base_daily_minutes=$5, daily_total_minutes=$6, updated_at=NOW()
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		session.EngineerID,
		session.WorkDate,
		session.IsCheckedIn,
		session.LastCheckIn,
		session.BaseDailyMinutes,
		session.DailyTotalMinutes,
	).Scan(&session.UpdatedAt)
}

func (r *workSessionRepository) ListCheckedIn(ctx context.Context) ([]domain.WorkSession, error) {
	const query = `
        SELECT engineer_id, work_date, checked_in, last_check_in, base_daily_minutes, daily_total_minutes, updated_at
        FROM work_sessions WHERE checked_in`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkSession
	for rows.Next() {
		var session domain.WorkSession
		if err := rows.Scan(
			&session.EngineerID,
			&session.WorkDate,
			&session.IsCheckedIn,
			&session.LastCheckIn,
			&session.BaseDailyMinutes,
			&session.DailyTotalMinutes,
			&session.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, session)
	}
	return result, rows.Err()
}
