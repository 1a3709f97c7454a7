package dto

import "time"

// WorkSessionResponse carries the full updated session state.
type WorkSessionResponse struct {
	EngineerID        string     `json:"engineer_id"`
	WorkDate          string     `json:"work_date"`
	IsCheckedIn       bool       `json:"is_checked_in"`
	LastCheckIn       *time.Time `json:"last_check_in"`
	BaseDailyMinutes  int        `json:"base_daily_minutes"`
	DailyTotalMinutes int        `json:"daily_total_minutes"`
	AutoCheckout      bool       `json:"auto_checkout,omitempty"`
}

// CheckOutRequest payload.
type CheckOutRequest struct {
	Automatic bool `json:"automatic"`
}

// WorkTimeProjectionResponse is the display-only live total; it is never
// persisted server-side.
type WorkTimeProjectionResponse struct {
	EngineerID        string `json:"engineer_id"`
	IsCheckedIn       bool   `json:"is_checked_in"`
	DailyTotalMinutes int    `json:"daily_total_minutes"`
}
