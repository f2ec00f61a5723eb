package timers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/models"
	"timetrack-backend/pkg/notify"
	"timetrack-backend/pkg/permissions"
)

// Store is the persistence the service needs.
type Store interface {
	permissions.TeamStore

	CreateTimer(ctx context.Context, t *models.Timer) error
	GetTimer(ctx context.Context, id string) (*models.Timer, error)
	GetActiveTimer(ctx context.Context, userID string) (*models.Timer, error)
	UpdateTimer(ctx context.Context, t *models.Timer) error
	DeleteTimer(ctx context.Context, id string) error
	ListTimers(ctx context.Context, f database.TimerFilter) ([]models.Timer, int, error)
	CreateTimerHistory(ctx context.Context, h *models.TimerHistory) error
	ListTimerHistory(ctx context.Context, timerID string) ([]models.TimerHistory, error)
}

// Service applies timer transitions to storage and announces them. Callers
// are expected to have passed the ownership gate already.
type Service struct {
	store    Store
	notifier notify.Notifier
	now      func() time.Time
	log      zerolog.Logger
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, notifier notify.Notifier, log zerolog.Logger, opts ...Option) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	s := &Service{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		log:      log.With().Str("component", "timers").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates a running timer. An existing active timer yields a Conflict
// carrying that timer.
func (s *Service) Start(ctx context.Context, userID string, req models.StartTimerRequest) (*models.Timer, error) {
	if strings.TrimSpace(req.Task) == "" {
		return nil, apperr.BadRequest("task is required")
	}

	if active, err := s.store.GetActiveTimer(ctx, userID); err == nil {
		return nil, activeConflict(active)
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, apperr.Internal("failed to check active timer", err)
	}

	t := New(userID, req, s.now())
	if err := s.store.CreateTimer(ctx, t); err != nil {
		if errors.Is(err, database.ErrActiveTimerExists) {
			// Lost a race with a concurrent start.
			active, getErr := s.store.GetActiveTimer(ctx, userID)
			if getErr != nil {
				return nil, apperr.Conflict("an active timer already exists")
			}
			return nil, activeConflict(active)
		}
		return nil, apperr.Internal("failed to start timer", err)
	}

	s.log.Info().Str("timer_id", t.ID).Str("user_id", userID).Msg("timer started")
	s.notifier.BroadcastToUser(ctx, userID, notify.EventTimerStarted, t.View())
	return t, nil
}

func activeConflict(active *models.Timer) error {
	return apperr.Conflict("an active timer already exists").WithData("timer", active.View())
}

// Pause moves a running timer to paused.
func (s *Service) Pause(ctx context.Context, timerID string) (*models.Timer, error) {
	t, err := s.Get(ctx, timerID)
	if err != nil {
		return nil, err
	}
	if err := Pause(t, s.now()); err != nil {
		return nil, apperr.NotFound("no running timer found")
	}
	if err := s.store.UpdateTimer(ctx, t); err != nil {
		return nil, storeError("failed to pause timer", err)
	}

	s.notifier.BroadcastToUser(ctx, t.UserID, notify.EventTimerPaused, t.View())
	return t, nil
}

// Resume moves a paused timer back to running.
func (s *Service) Resume(ctx context.Context, timerID string) (*models.Timer, error) {
	t, err := s.Get(ctx, timerID)
	if err != nil {
		return nil, err
	}
	switch err := Resume(t, s.now()); {
	case errors.Is(err, ErrPauseTimeMissing):
		s.log.Error().Str("timer_id", t.ID).Msg("paused timer without pause time")
		return nil, apperr.Internal("timer pause time is missing", err)
	case err != nil:
		return nil, apperr.NotFound("no paused timer found")
	}
	if err := s.store.UpdateTimer(ctx, t); err != nil {
		return nil, storeError("failed to resume timer", err)
	}

	s.notifier.BroadcastToUser(ctx, t.UserID, notify.EventTimerResumed, t.View())
	return t, nil
}

// Stop ends an active timer after recording its pre-stop state.
func (s *Service) Stop(ctx context.Context, timerID string) (*models.Timer, error) {
	t, err := s.Get(ctx, timerID)
	if err != nil {
		return nil, err
	}
	if StateOf(t) == StateStopped {
		return nil, apperr.NotFound("no active timer found")
	}
	if err := s.snapshot(ctx, t, ActionStop); err != nil {
		return nil, err
	}
	if err := Stop(t, s.now()); err != nil {
		return nil, apperr.NotFound("no active timer found")
	}
	if err := s.store.UpdateTimer(ctx, t); err != nil {
		return nil, storeError("failed to stop timer", err)
	}

	s.log.Info().Str("timer_id", t.ID).Int64("duration", *t.Duration).Msg("timer stopped")
	s.notifier.BroadcastToUser(ctx, t.UserID, notify.EventTimerStopped, t.View())
	return t, nil
}

// UpdateNote replaces the note.
func (s *Service) UpdateNote(ctx context.Context, timerID, note string) (*models.Timer, error) {
	return s.mutate(ctx, timerID, ActionUpdateNote, func(t *models.Timer) error {
		t.Note = note
		return nil
	})
}

// DeleteNote clears the note.
func (s *Service) DeleteNote(ctx context.Context, timerID string) (*models.Timer, error) {
	return s.mutate(ctx, timerID, ActionDeleteNote, func(t *models.Timer) error {
		t.Note = ""
		return nil
	})
}

// Edit replaces the descriptive fields of a timer.
func (s *Service) Edit(ctx context.Context, timerID string, req models.EditTimerRequest) (*models.Timer, error) {
	task := strings.TrimSpace(req.Task)
	if task == "" {
		return nil, apperr.BadRequest("task is required")
	}
	return s.mutate(ctx, timerID, ActionEdit, func(t *models.Timer) error {
		t.Task = task
		t.Client = strings.TrimSpace(req.Client)
		t.Project = strings.TrimSpace(req.Project)
		t.Note = req.Note
		return nil
	})
}

// Delete removes a timer after recording it.
func (s *Service) Delete(ctx context.Context, timerID string) error {
	t, err := s.Get(ctx, timerID)
	if err != nil {
		return err
	}
	if err := s.snapshot(ctx, t, ActionDelete); err != nil {
		return err
	}
	if err := s.store.DeleteTimer(ctx, t.ID); err != nil {
		return storeError("failed to delete timer", err)
	}
	s.log.Info().Str("timer_id", t.ID).Msg("timer deleted")
	return nil
}

// Get loads one timer.
func (s *Service) Get(ctx context.Context, timerID string) (*models.Timer, error) {
	t, err := s.store.GetTimer(ctx, timerID)
	if err != nil {
		return nil, storeError("failed to load timer", err)
	}
	return t, nil
}

// OwnerOf returns the owning user id of a timer.
func (s *Service) OwnerOf(ctx context.Context, timerID string) (string, error) {
	t, err := s.Get(ctx, timerID)
	if err != nil {
		return "", err
	}
	return t.UserID, nil
}

// GetActive returns the user's active timer, or nil when there is none.
func (s *Service) GetActive(ctx context.Context, userID string) (*models.Timer, error) {
	t, err := s.store.GetActiveTimer(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to load active timer", err)
	}
	return t, nil
}

// History lists snapshots of a timer, newest first.
func (s *Service) History(ctx context.Context, timerID string) ([]models.TimerHistory, error) {
	history, err := s.store.ListTimerHistory(ctx, timerID)
	if err != nil {
		return nil, apperr.Internal("failed to load timer history", err)
	}
	return history, nil
}

// List returns a page of the caller's timers. With includeOthers the owner
// set widens to the members of organizations the caller owns.
func (s *Service) List(ctx context.Context, userID string, includeOthers bool, q ListQuery) (*Page, error) {
	owners := []string{userID}
	if includeOthers {
		var err error
		if owners, err = permissions.VisibleOwners(ctx, s.store, userID); err != nil {
			return nil, apperr.Internal("failed to resolve team", err)
		}
	}

	timers, total, err := s.store.ListTimers(ctx, database.TimerFilter{
		UserIDs:    owners,
		From:       q.From,
		To:         q.To,
		SortColumn: q.SortBy,
		Desc:       q.Desc,
		Limit:      q.Limit,
		Offset:     q.Offset(),
	})
	if err != nil {
		return nil, apperr.Internal("failed to list timers", err)
	}

	return &Page{
		Timers:      models.Views(timers),
		Total:       total,
		CurrentPage: q.Page,
		TotalPages:  totalPages(total, q.Limit),
		Limit:       q.Limit,
	}, nil
}

// mutate snapshots the timer, applies fn and saves it. A failed snapshot
// aborts the change.
func (s *Service) mutate(ctx context.Context, timerID, action string, fn func(*models.Timer) error) (*models.Timer, error) {
	t, err := s.Get(ctx, timerID)
	if err != nil {
		return nil, err
	}
	if err := s.snapshot(ctx, t, action); err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTimer(ctx, t); err != nil {
		return nil, storeError("failed to update timer", err)
	}
	return t, nil
}

func (s *Service) snapshot(ctx context.Context, t *models.Timer, action string) error {
	if err := s.store.CreateTimerHistory(ctx, Snapshot(t, action)); err != nil {
		return apperr.Internal("failed to record timer history", err)
	}
	return nil
}

func storeError(msg string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return apperr.NotFound("timer not found")
	}
	return apperr.Internal(msg, err)
}
