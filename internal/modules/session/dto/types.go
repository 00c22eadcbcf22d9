package dto

import (
	"time"

	apperrors "devtrack/internal/platform/errors"
)

// Session is the wire shape of a stored session.
type Session struct {
	ID        string   `json:"id"`
	Project   string   `json:"project"`
	StartTime string   `json:"startTime"`
	EndTime   *string  `json:"endTime"`
	Duration  *float64 `json:"duration"`
	Notes     string   `json:"notes"`
}

type StartInput struct {
	Project string
}

type StartOutput struct {
	Session   Session
	StartedAt time.Time
}

type StopOutput struct {
	Session   Session
	StartedAt time.Time
	EndedAt   time.Time
	Minutes   int
}

type StatusOutput struct {
	Active         bool
	Session        Session
	StartedAt      time.Time
	ElapsedSeconds int64
	// TodaySeconds counts completed sessions only.
	TodaySeconds float64
	// TodayMinutes includes the running session.
	TodayMinutes     int
	DailyGoal        float64
	Progress         float64
	RemainingMinutes int
	GoalAchieved     bool
}

type ReportInput struct {
	Today bool
}

type ReportLine struct {
	Project   string
	Notes     string
	StartedAt time.Time
	EndedAt   time.Time
	Seconds   float64
}

type ReportOutput struct {
	Today        bool
	Lines        []ReportLine
	Count        int
	TotalSeconds float64
	DailyGoal    float64
}

type ProjectTotal struct {
	Project      string
	Sessions     int
	TotalSeconds float64
}

type ProjectReportOutput struct {
	Projects []ProjectTotal
}

type ConfigEntry struct {
	Key   string
	Value string
}

type ConfigSetInput struct {
	Key   string
	Value string
}

type CreateSessionInput struct {
	Fields map[string]any
}

type UpdateSessionInput struct {
	ID     string
	Fields map[string]any
}

type ReindexOutput struct {
	Sessions int
}

type ExportInput struct {
	Dir string
}

type ExportOutput struct {
	Paths []string
}

// ActiveSessionError reports the session that blocked a start.
type ActiveSessionError struct {
	Session   Session
	StartedAt time.Time
}

func (e *ActiveSessionError) Error() string {
	return apperrors.ErrActiveSessionExists.Error() + ": " + e.Session.ID
}

func (e *ActiveSessionError) Unwrap() error {
	return apperrors.ErrActiveSessionExists
}
