package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/config"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/repository"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// WorkTimeService accumulates per-engineer worked minutes for the current
// calendar day. Minutes never accrue past the configured cutoff, no matter
// how late the checkout lands.
type WorkTimeService struct {
	sessions   repository.WorkSessionRepository
	engineers  repository.EngineerRepository
	dispatcher events.Dispatcher
	workday    config.WorkdayConfig
	logger     *zap.Logger
	now        func() time.Time
}

// WorkTimeDependencies bundles collaborators for the work-time service.
type WorkTimeDependencies struct {
	SessionRepo  repository.WorkSessionRepository
	EngineerRepo repository.EngineerRepository
	Dispatcher   events.Dispatcher
}

// NewWorkTimeService constructs the service.
func NewWorkTimeService(deps WorkTimeDependencies, workday config.WorkdayConfig, logger *zap.Logger) *WorkTimeService {
	return &WorkTimeService{
		sessions:   deps.SessionRepo,
		engineers:  deps.EngineerRepo,
		dispatcher: deps.Dispatcher,
		workday:    workday,
		logger:     logger,
		now:        time.Now,
	}
}

// CheckIn opens a work session. Check-in is only accepted inside the work
// window; the base snapshot taken here prevents double counting when the
// session is later folded in.
func (s *WorkTimeService) CheckIn(ctx context.Context, engineerID string) (*domain.WorkSession, error) {
	if _, err := s.loadEngineer(ctx, engineerID); err != nil {
		return nil, err
	}

	now := s.now().In(s.workday.Location())
	open := s.workday.OpenAt(now)
	cutoff := s.workday.CutoffAt(now)
	if now.Before(open) {
		return nil, apperrors.NewOutOfWindow(fmt.Sprintf("check-in opens at %02d:00", s.workday.OpenHour))
	}
	if !now.Before(cutoff) {
		return nil, apperrors.NewOutOfWindow(fmt.Sprintf("work day ended at %02d:00", s.workday.CutoffHour))
	}

	session, err := s.sessionForDay(ctx, engineerID, now)
	if err != nil {
		return nil, err
	}
	if session.IsCheckedIn {
		return nil, apperrors.NewAlreadyCheckedIn(engineerID)
	}

	session.IsCheckedIn = true
	session.LastCheckIn = &now
	session.BaseDailyMinutes = session.DailyTotalMinutes
	if err := s.sessions.Upsert(ctx, session); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventEngineerCheckedIn,
		EngineerID: engineerID,
		Payload: events.CheckedInPayload{
			At:               now,
			BaseDailyMinutes: session.BaseDailyMinutes,
		},
	})
	return session, nil
}

// CheckOut closes the open session and folds elapsed minutes, capped at the
// cutoff, into the daily total. The automatic flag only affects messaging;
// the arithmetic is identical.
func (s *WorkTimeService) CheckOut(ctx context.Context, engineerID string, automatic bool) (*domain.WorkSession, error) {
	now := s.now().In(s.workday.Location())
	session, err := s.sessionForDay(ctx, engineerID, now)
	if err != nil {
		return nil, err
	}
	if !session.IsCheckedIn || session.LastCheckIn == nil {
		return nil, apperrors.NewNotCheckedIn(engineerID)
	}

	s.foldSession(session, now)
	if err := s.sessions.Upsert(ctx, session); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventEngineerCheckedOut,
		EngineerID: engineerID,
		Payload: events.CheckedOutPayload{
			At:                now,
			DailyTotalMinutes: session.DailyTotalMinutes,
			Automatic:         automatic,
		},
	})
	return session, nil
}

// Projection returns the session plus the display-only projected total for
// an open session. Nothing is persisted here.
func (s *WorkTimeService) Projection(ctx context.Context, engineerID string) (*domain.WorkSession, int, error) {
	now := s.now().In(s.workday.Location())
	session, err := s.sessionForDay(ctx, engineerID, now)
	if err != nil {
		return nil, 0, err
	}
	projected := session.ProjectedTotalMinutes(now, s.workday.CutoffAt(now))
	return session, projected, nil
}

// SweepAutoCheckout checks every open session against its day's cutoff and
// checks out the ones past it. Safe to invoke repeatedly: a swept session is
// no longer checked in, so a second pass is a no-op.
func (s *WorkTimeService) SweepAutoCheckout(ctx context.Context) (int, error) {
	now := s.now().In(s.workday.Location())
	open, err := s.sessions.ListCheckedIn(ctx)
	if err != nil {
		return 0, apperrors.MapError(err)
	}

	swept := 0
	for i := range open {
		session := &open[i]
		cutoff := s.workday.CutoffAt(session.WorkDate)
		if now.Before(cutoff) || session.LastCheckIn == nil {
			continue
		}
		s.foldSession(session, now)
		if err := s.sessions.Upsert(ctx, session); err != nil {
			s.logger.Error("auto checkout failed",
				zap.String("engineer_id", session.EngineerID), zap.Error(err))
			continue
		}
		s.publishEvent(ctx, events.Event{
			Type:       events.EventEngineerCheckedOut,
			EngineerID: session.EngineerID,
			Payload: events.CheckedOutPayload{
				At:                cutoff,
				DailyTotalMinutes: session.DailyTotalMinutes,
				Automatic:         true,
			},
		})
		swept++
	}
	if swept > 0 {
		s.logger.Info("auto checkout sweep", zap.Int("sessions", swept))
	}
	return swept, nil
}

// foldSession finalizes an open session at now, capping elapsed time at the
// cutoff of the session's own day.
func (s *WorkTimeService) foldSession(session *domain.WorkSession, now time.Time) {
	cutoff := s.workday.CutoffAt(session.WorkDate)
	elapsed := domain.ElapsedMinutes(*session.LastCheckIn, now, cutoff)
	session.DailyTotalMinutes = session.BaseDailyMinutes + elapsed
	session.IsCheckedIn = false
	session.LastCheckIn = nil
}

func (s *WorkTimeService) sessionForDay(ctx context.Context, engineerID string, now time.Time) (*domain.WorkSession, error) {
	day := dayOf(now)
	session, err := s.sessions.GetForDay(ctx, engineerID, day)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.WorkSession{EngineerID: engineerID, WorkDate: day}, nil
		}
		return nil, apperrors.MapError(err)
	}
	return session, nil
}

func (s *WorkTimeService) loadEngineer(ctx context.Context, engineerID string) (*domain.Engineer, error) {
	engineer, err := s.engineers.GetByID(ctx, engineerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("engineer", map[string]any{"engineer_id": engineerID})
		}
		return nil, apperrors.MapError(err)
	}
	return engineer, nil
}

func (s *WorkTimeService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
