package models

import "time"

// Timer is one work session owned by a user.
type Timer struct {
	ID              string     `json:"id" db:"id"`
	UserID          string     `json:"userId" db:"user_id"`
	Task            string     `json:"task" db:"task"`
	Client          string     `json:"client,omitempty" db:"client"`
	Project         string     `json:"project,omitempty" db:"project"`
	Note            string     `json:"note,omitempty" db:"note"`
	StartTime       time.Time  `json:"startTime" db:"start_time"`
	EndTime         *time.Time `json:"endTime,omitempty" db:"end_time"`
	IsActive        bool       `json:"isActive" db:"is_active"`
	IsPaused        bool       `json:"isPaused" db:"is_paused"`
	PauseTime       *time.Time `json:"pauseTime,omitempty" db:"pause_time"`
	TotalPausedTime int64      `json:"totalPausedTime" db:"total_paused_time"` // seconds
	Duration        *int64     `json:"duration,omitempty" db:"duration"`       // seconds, set on stop
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
}

// ActiveDuration is the stopped duration minus accumulated pauses. It is nil
// while the timer is still active.
func (t *Timer) ActiveDuration() *int64 {
	if t.Duration == nil {
		return nil
	}
	active := *t.Duration - t.TotalPausedTime
	if active < 0 {
		active = 0
	}
	return &active
}

// TimerView is the JSON shape returned by the API.
type TimerView struct {
	*Timer
	ActiveDuration *int64 `json:"activeDuration,omitempty"`
}

// View wraps t with derived fields.
func (t *Timer) View() TimerView {
	return TimerView{Timer: t, ActiveDuration: t.ActiveDuration()}
}

// Views converts a slice of timers.
func Views(timers []Timer) []TimerView {
	out := make([]TimerView, 0, len(timers))
	for i := range timers {
		out = append(out, timers[i].View())
	}
	return out
}

// TimerHistory is an append-only snapshot of a timer taken before a mutation.
type TimerHistory struct {
	ID              string     `json:"id" db:"id"`
	TimerID         string     `json:"timerId" db:"timer_id"`
	UserID          string     `json:"userId" db:"user_id"`
	Action          string     `json:"action" db:"action"`
	Task            string     `json:"task" db:"task"`
	Client          string     `json:"client,omitempty" db:"client"`
	Project         string     `json:"project,omitempty" db:"project"`
	Note            string     `json:"note,omitempty" db:"note"`
	StartTime       time.Time  `json:"startTime" db:"start_time"`
	EndTime         *time.Time `json:"endTime,omitempty" db:"end_time"`
	IsActive        bool       `json:"isActive" db:"is_active"`
	IsPaused        bool       `json:"isPaused" db:"is_paused"`
	PauseTime       *time.Time `json:"pauseTime,omitempty" db:"pause_time"`
	TotalPausedTime int64      `json:"totalPausedTime" db:"total_paused_time"`
	Duration        *int64     `json:"duration,omitempty" db:"duration"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
}

// StartTimerRequest is the body of POST /timers/start.
type StartTimerRequest struct {
	Task    string `json:"task" validate:"required,max=255"`
	Client  string `json:"client" validate:"max=255"`
	Project string `json:"project" validate:"max=255"`
	Note    string `json:"note" validate:"max=2000"`
}

// UpdateTimerNoteRequest is the body of PUT /timers/{timerId}.
type UpdateTimerNoteRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

// EditTimerRequest is the body of PATCH /timers/{timerId}.
type EditTimerRequest struct {
	Task    string `json:"task" validate:"required,max=255"`
	Client  string `json:"client" validate:"max=255"`
	Project string `json:"project" validate:"max=255"`
	Note    string `json:"note" validate:"max=2000"`
}
