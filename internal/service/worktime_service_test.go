package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/config"
	"github.com/spec-kit/field-service/internal/events"
)

var testWorkday = config.WorkdayConfig{
	OpenHour:     9,
	CutoffHour:   19,
	Timezone:     "UTC",
	SweepSeconds: 60,
}

func clockAt(hour, minute int) time.Time {
	return time.Date(2026, time.March, 10, hour, minute, 0, 0, time.UTC)
}

func newWorkTimeFixture(t *testing.T) (*WorkTimeService, *fakeSessionRepo, *recordingDispatcher, *time.Time) {
	t.Helper()
	sessions := newFakeSessionRepo()
	dispatcher := &recordingDispatcher{}
	svc := NewWorkTimeService(WorkTimeDependencies{
		SessionRepo:  sessions,
		EngineerRepo: newFakeEngineerRepo(engineer, other),
		Dispatcher:   dispatcher,
	}, testWorkday, zap.NewNop())

	current := clockAt(9, 0)
	svc.now = func() time.Time { return current }
	return svc, sessions, dispatcher, &current
}

func TestCheckInWindow(t *testing.T) {
	svc, _, _, clock := newWorkTimeFixture(t)
	ctx := context.Background()

	*clock = clockAt(8, 0)
	_, err := svc.CheckIn(ctx, engineer.ID)
	assertErrorCode(t, err, "OUT_OF_WINDOW")

	*clock = clockAt(19, 0)
	_, err = svc.CheckIn(ctx, engineer.ID)
	assertErrorCode(t, err, "OUT_OF_WINDOW")

	*clock = clockAt(9, 0)
	session, err := svc.CheckIn(ctx, engineer.ID)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if !session.IsCheckedIn || session.LastCheckIn == nil {
		t.Fatal("session should be open after check-in")
	}

	_, err = svc.CheckIn(ctx, engineer.ID)
	assertErrorCode(t, err, "ALREADY_CHECKED_IN")
}

func TestCheckInUnknownEngineer(t *testing.T) {
	svc, _, _, _ := newWorkTimeFixture(t)
	_, err := svc.CheckIn(context.Background(), "ghost")
	assertErrorCode(t, err, "NOT_FOUND")
}

func TestCheckOutWithoutCheckIn(t *testing.T) {
	svc, _, _, _ := newWorkTimeFixture(t)
	_, err := svc.CheckOut(context.Background(), engineer.ID, false)
	assertErrorCode(t, err, "NOT_CHECKED_IN")
}

func TestWorkTimeAccumulation(t *testing.T) {
	svc, _, _, clock := newWorkTimeFixture(t)
	ctx := context.Background()

	*clock = clockAt(15, 30)
	if _, err := svc.CheckIn(ctx, engineer.ID); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	*clock = clockAt(17, 30)
	session, err := svc.CheckOut(ctx, engineer.ID, false)
	if err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if session.DailyTotalMinutes != 120 {
		t.Fatalf("first segment total = %d, want 120", session.DailyTotalMinutes)
	}

	// Second segment of the same day builds on the folded base.
	if _, err := svc.CheckIn(ctx, engineer.ID); err != nil {
		t.Fatalf("second CheckIn: %v", err)
	}

	*clock = clockAt(18, 0)
	session, projected, err := svc.Projection(ctx, engineer.ID)
	if err != nil {
		t.Fatalf("Projection: %v", err)
	}
	if projected != 150 {
		t.Errorf("projection at 18:00 = %d, want 150", projected)
	}
	if session.DailyTotalMinutes != 120 {
		t.Errorf("projection must not persist, stored total = %d", session.DailyTotalMinutes)
	}

	// Projecting past the cutoff caps at 19:00.
	*clock = clockAt(19, 30)
	_, projected, err = svc.Projection(ctx, engineer.ID)
	if err != nil {
		t.Fatalf("Projection: %v", err)
	}
	if projected != 210 {
		t.Errorf("projection at 19:30 = %d, want 210", projected)
	}

	// A late manual checkout folds the same capped total.
	session, err = svc.CheckOut(ctx, engineer.ID, false)
	if err != nil {
		t.Fatalf("late CheckOut: %v", err)
	}
	if session.DailyTotalMinutes != 210 {
		t.Errorf("late checkout total = %d, want 210", session.DailyTotalMinutes)
	}
	if session.IsCheckedIn || session.LastCheckIn != nil {
		t.Error("checkout must close the session")
	}
}

func TestSweepAutoCheckout(t *testing.T) {
	svc, sessions, dispatcher, clock := newWorkTimeFixture(t)
	ctx := context.Background()

	*clock = clockAt(17, 30)
	if _, err := svc.CheckIn(ctx, engineer.ID); err != nil {
		t.Fatalf("CheckIn eng: %v", err)
	}
	if _, err := svc.CheckIn(ctx, other.ID); err != nil {
		t.Fatalf("CheckIn other: %v", err)
	}

	// Before the cutoff the sweep leaves open sessions alone.
	*clock = clockAt(18, 59)
	swept, err := svc.SweepAutoCheckout(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 0 {
		t.Fatalf("pre-cutoff sweep closed %d sessions", swept)
	}

	// One engineer checks out manually after the cutoff, the sweep catches
	// the other. Both end with the same capped total.
	*clock = clockAt(19, 30)
	manual, err := svc.CheckOut(ctx, engineer.ID, false)
	if err != nil {
		t.Fatalf("manual CheckOut: %v", err)
	}

	swept, err = svc.SweepAutoCheckout(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Fatalf("sweep closed %d sessions, want 1", swept)
	}

	auto, err := sessions.GetForDay(ctx, other.ID, clockAt(0, 0))
	if err != nil {
		t.Fatalf("GetForDay: %v", err)
	}
	if auto.DailyTotalMinutes != manual.DailyTotalMinutes {
		t.Errorf("auto total %d != manual total %d", auto.DailyTotalMinutes, manual.DailyTotalMinutes)
	}
	if auto.DailyTotalMinutes != 90 {
		t.Errorf("swept total = %d, want 90", auto.DailyTotalMinutes)
	}
	if auto.IsCheckedIn {
		t.Error("swept session must be closed")
	}

	// Idempotent: a second pass finds nothing open.
	swept, err = svc.SweepAutoCheckout(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if swept != 0 {
		t.Errorf("second sweep closed %d sessions, want 0", swept)
	}

	checkedOut := dispatcher.byType(events.EventEngineerCheckedOut)
	if len(checkedOut) != 2 {
		t.Fatalf("expected 2 checked-out events, got %d", len(checkedOut))
	}
	automaticSeen := false
	for _, event := range checkedOut {
		payload, ok := event.Payload.(events.CheckedOutPayload)
		if !ok {
			t.Fatal("checked-out event payload type wrong")
		}
		if payload.Automatic {
			automaticSeen = true
		}
	}
	if !automaticSeen {
		t.Error("sweep checkout should be flagged automatic")
	}
}

func TestBaseSnapshotPreventsDoubleCounting(t *testing.T) {
	svc, _, _, clock := newWorkTimeFixture(t)
	ctx := context.Background()

	*clock = clockAt(9, 0)
	if _, err := svc.CheckIn(ctx, engineer.ID); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	*clock = clockAt(10, 0)
	if _, err := svc.CheckOut(ctx, engineer.ID, false); err != nil {
		t.Fatalf("CheckOut: %v", err)
	}

	*clock = clockAt(11, 0)
	session, err := svc.CheckIn(ctx, engineer.ID)
	if err != nil {
		t.Fatalf("re-CheckIn: %v", err)
	}
	if session.BaseDailyMinutes != 60 {
		t.Fatalf("base snapshot = %d, want 60", session.BaseDailyMinutes)
	}

	*clock = clockAt(11, 30)
	session, err = svc.CheckOut(ctx, engineer.ID, false)
	if err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if session.DailyTotalMinutes != 90 {
		t.Errorf("total = %d, want 90", session.DailyTotalMinutes)
	}
}
