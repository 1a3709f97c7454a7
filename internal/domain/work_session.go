package domain

import "time"

// WorkSession tracks one engineer's worked minutes for a single calendar day.
// BaseDailyMinutes is snapshotted at check-in so an open session never double
// counts time already folded into DailyTotalMinutes.
type WorkSession struct {
	EngineerID        string
	WorkDate          time.Time
	IsCheckedIn       bool
	LastCheckIn       *time.Time
	BaseDailyMinutes  int
	DailyTotalMinutes int
	UpdatedAt         time.Time
}

// ElapsedMinutes computes worked minutes between check-in and now, capped at
// the daily cutoff. Fractional minutes are floored, never rounded up, and
// negative spans (clock skew) clamp to zero.
func ElapsedMinutes(lastCheckIn, now, cutoff time.Time) int {
	end := now
	if end.After(cutoff) {
		end = cutoff
	}
	elapsed := end.Sub(lastCheckIn)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / time.Minute)
}

// ProjectedTotalMinutes derives the display-only daily total for an open
// session. It never mutates the session; persisting the total is CheckOut's job.
func (s *WorkSession) ProjectedTotalMinutes(now, cutoff time.Time) int {
	if !s.IsCheckedIn || s.LastCheckIn == nil {
		return s.DailyTotalMinutes
	}
	return s.BaseDailyMinutes + ElapsedMinutes(*s.LastCheckIn, now, cutoff)
}
