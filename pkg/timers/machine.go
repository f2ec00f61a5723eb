// Package timers implements the timer lifecycle (running, paused, stopped)
// and the service that applies it to storage.
package timers

import (
	"errors"
	"strings"
	"time"

	"timetrack-backend/pkg/models"
)

// State of a single timer.
type State string

const (
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// History actions.
const (
	ActionStop       = "stop"
	ActionUpdateNote = "update_note"
	ActionDeleteNote = "delete_note"
	ActionEdit       = "edit"
	ActionDelete     = "delete"
)

var (
	ErrNotRunning       = errors.New("timer is not running")
	ErrNotPaused        = errors.New("timer is not paused")
	ErrNotActive        = errors.New("timer is not active")
	ErrPauseTimeMissing = errors.New("paused timer has no pause time")
)

// StateOf derives the lifecycle state from the stored flags.
func StateOf(t *models.Timer) State {
	switch {
	case !t.IsActive:
		return StateStopped
	case t.IsPaused:
		return StatePaused
	default:
		return StateRunning
	}
}

// New returns a running timer for userID started at now.
func New(userID string, req models.StartTimerRequest, now time.Time) *models.Timer {
	return &models.Timer{
		UserID:    userID,
		Task:      strings.TrimSpace(req.Task),
		Client:    strings.TrimSpace(req.Client),
		Project:   strings.TrimSpace(req.Project),
		Note:      req.Note,
		StartTime: now.UTC(),
		IsActive:  true,
	}
}

// Pause moves a running timer to paused.
func Pause(t *models.Timer, now time.Time) error {
	if StateOf(t) != StateRunning {
		return ErrNotRunning
	}
	now = now.UTC()
	t.IsPaused = true
	t.PauseTime = &now
	return nil
}

// Resume moves a paused timer back to running and accumulates the pause.
func Resume(t *models.Timer, now time.Time) error {
	if StateOf(t) != StatePaused {
		return ErrNotPaused
	}
	if t.PauseTime == nil {
		return ErrPauseTimeMissing
	}
	t.TotalPausedTime += elapsedSeconds(*t.PauseTime, now)
	t.IsPaused = false
	t.PauseTime = nil
	return nil
}

// Stop ends an active timer. Duration is wall-clock seconds since start; an
// open pause is folded into TotalPausedTime first.
func Stop(t *models.Timer, now time.Time) error {
	if StateOf(t) == StateStopped {
		return ErrNotActive
	}
	if t.IsPaused && t.PauseTime != nil {
		t.TotalPausedTime += elapsedSeconds(*t.PauseTime, now)
	}
	now = now.UTC()
	duration := elapsedSeconds(t.StartTime, now)
	t.EndTime = &now
	t.Duration = &duration
	t.IsActive = false
	t.IsPaused = false
	t.PauseTime = nil
	return nil
}

// Snapshot captures t as a history row before a mutation.
func Snapshot(t *models.Timer, action string) *models.TimerHistory {
	h := &models.TimerHistory{
		TimerID:         t.ID,
		UserID:          t.UserID,
		Action:          action,
		Task:            t.Task,
		Client:          t.Client,
		Project:         t.Project,
		Note:            t.Note,
		StartTime:       t.StartTime,
		IsActive:        t.IsActive,
		IsPaused:        t.IsPaused,
		TotalPausedTime: t.TotalPausedTime,
	}
	if t.EndTime != nil {
		end := *t.EndTime
		h.EndTime = &end
	}
	if t.PauseTime != nil {
		p := *t.PauseTime
		h.PauseTime = &p
	}
	if t.Duration != nil {
		d := *t.Duration
		h.Duration = &d
	}
	return h
}

func elapsedSeconds(from, to time.Time) int64 {
	d := int64(to.Sub(from) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}
