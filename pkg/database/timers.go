package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"timetrack-backend/pkg/models"
)

const timerColumns = `id, user_id, task, client, project, note, start_time, end_time, is_active,
	is_paused, pause_time, total_paused_time, duration, created_at, updated_at`

func scanTimer(row rowScanner) (*models.Timer, error) {
	var t models.Timer
	var endTime, pauseTime sql.NullTime
	var duration sql.NullInt64
	if err := row.Scan(&t.ID, &t.UserID, &t.Task, &t.Client, &t.Project, &t.Note, &t.StartTime, &endTime,
		&t.IsActive, &t.IsPaused, &pauseTime, &t.TotalPausedTime, &duration, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.StartTime = t.StartTime.UTC()
	t.EndTime = timePtr(endTime)
	t.PauseTime = timePtr(pauseTime)
	t.Duration = intPtr(duration)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

// CreateTimer 创建计时器
// The active check and the insert share one transaction. The partial unique
// index on (user_id) WHERE is_active catches concurrent inserts.
func (s *SQLDatabase) CreateTimer(ctx context.Context, t *models.Timer) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := ts(time.Now())
	t.StartTime = ts(t.StartTime)
	t.CreatedAt, t.UpdatedAt = now, now

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if t.IsActive {
			var existing string
			err := s.queryRow(ctx, tx, `SELECT id FROM timers WHERE user_id = $1 AND is_active = $2`,
				t.UserID, true).Scan(&existing)
			switch {
			case err == nil:
				return ErrActiveTimerExists
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("failed to check active timer: %w", err)
			}
		}
		_, err := s.exec(ctx, tx, `
			INSERT INTO timers (`+timerColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			t.ID, t.UserID, t.Task, t.Client, t.Project, t.Note, t.StartTime, nullTime(t.EndTime), t.IsActive,
			t.IsPaused, nullTime(t.PauseTime), t.TotalPausedTime, nullInt(t.Duration), t.CreatedAt, t.UpdatedAt)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrActiveTimerExists) || isActiveTimerViolation(err):
			return ErrActiveTimerExists
		case isUniqueViolation(err):
			return fmt.Errorf("%w: timer %s", ErrDuplicate, t.ID)
		}
		return fmt.Errorf("failed to create timer: %w", err)
	}
	return nil
}

func (s *SQLDatabase) GetTimer(ctx context.Context, id string) (*models.Timer, error) {
	t, err := scanTimer(s.queryRow(ctx, s.db, `SELECT `+timerColumns+` FROM timers WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "failed to get timer")
	}
	return t, nil
}

// GetActiveTimer returns the caller's running or paused timer.
func (s *SQLDatabase) GetActiveTimer(ctx context.Context, userID string) (*models.Timer, error) {
	t, err := scanTimer(s.queryRow(ctx, s.db,
		`SELECT `+timerColumns+` FROM timers WHERE user_id = $1 AND is_active = $2`, userID, true))
	if err != nil {
		return nil, notFoundOr(err, "failed to get active timer")
	}
	return t, nil
}

func (s *SQLDatabase) UpdateTimer(ctx context.Context, t *models.Timer) error {
	t.UpdatedAt = ts(time.Now())
	res, err := s.exec(ctx, s.db, `
		UPDATE timers
		SET task = $1, client = $2, project = $3, note = $4, start_time = $5, end_time = $6,
			is_active = $7, is_paused = $8, pause_time = $9, total_paused_time = $10, duration = $11,
			updated_at = $12
		WHERE id = $13`,
		t.Task, t.Client, t.Project, t.Note, ts(t.StartTime), nullTime(t.EndTime),
		t.IsActive, t.IsPaused, nullTime(t.PauseTime), t.TotalPausedTime, nullInt(t.Duration),
		t.UpdatedAt, t.ID)
	if err != nil && isActiveTimerViolation(err) {
		return ErrActiveTimerExists
	}
	return expectOne(res, err, "failed to update timer")
}

func (s *SQLDatabase) DeleteTimer(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM timers WHERE id = $1`, id)
	return expectOne(res, err, "failed to delete timer")
}

// ListTimers returns one page of timers and the total number matching f.
func (s *SQLDatabase) ListTimers(ctx context.Context, f TimerFilter) ([]models.Timer, int, error) {
	if len(f.UserIDs) == 0 {
		return []models.Timer{}, 0, nil
	}
	where := []string{"user_id IN (" + inClause(1, len(f.UserIDs)) + ")"}
	args := stringArgs(f.UserIDs)
	if f.From != nil {
		args = append(args, ts(*f.From))
		where = append(where, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, ts(*f.To))
		where = append(where, fmt.Sprintf("start_time <= $%d", len(args)))
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := s.queryRow(ctx, s.db, `SELECT COUNT(*) FROM timers WHERE `+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count timers: %w", err)
	}

	col, ok := TimerSortColumn(f.SortColumn)
	if !ok {
		col = "start_time"
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit, f.Offset)
	q := fmt.Sprintf(`SELECT %s FROM timers WHERE %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		timerColumns, whereSQL, col, dir, dir, len(args)-1, len(args))

	rows, err := s.query(ctx, s.db, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list timers: %w", err)
	}
	defer rows.Close()

	timers := []models.Timer{}
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan timer: %w", err)
		}
		timers = append(timers, *t)
	}
	return timers, total, rows.Err()
}

const historyColumns = `id, timer_id, user_id, action, task, client, project, note, start_time, end_time,
	is_active, is_paused, pause_time, total_paused_time, duration, created_at`

// CreateTimerHistory 记录计时器快照
func (s *SQLDatabase) CreateTimerHistory(ctx context.Context, h *models.TimerHistory) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	h.CreatedAt = ts(time.Now())
	_, err := s.exec(ctx, s.db, `
		INSERT INTO timer_history (`+historyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		h.ID, h.TimerID, h.UserID, h.Action, h.Task, h.Client, h.Project, h.Note, ts(h.StartTime),
		nullTime(h.EndTime), h.IsActive, h.IsPaused, nullTime(h.PauseTime), h.TotalPausedTime,
		nullInt(h.Duration), h.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create timer history: %w", err)
	}
	return nil
}

func (s *SQLDatabase) ListTimerHistory(ctx context.Context, timerID string) ([]models.TimerHistory, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT `+historyColumns+` FROM timer_history
		WHERE timer_id = $1 ORDER BY created_at DESC, id DESC`, timerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list timer history: %w", err)
	}
	defer rows.Close()

	history := []models.TimerHistory{}
	for rows.Next() {
		var h models.TimerHistory
		var endTime, pauseTime sql.NullTime
		var duration sql.NullInt64
		if err := rows.Scan(&h.ID, &h.TimerID, &h.UserID, &h.Action, &h.Task, &h.Client, &h.Project, &h.Note,
			&h.StartTime, &endTime, &h.IsActive, &h.IsPaused, &pauseTime, &h.TotalPausedTime, &duration,
			&h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan timer history: %w", err)
		}
		h.StartTime = h.StartTime.UTC()
		h.EndTime = timePtr(endTime)
		h.PauseTime = timePtr(pauseTime)
		h.Duration = intPtr(duration)
		h.CreatedAt = h.CreatedAt.UTC()
		history = append(history, h)
	}
	return history, rows.Err()
}
