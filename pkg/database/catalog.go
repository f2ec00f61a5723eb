package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"timetrack-backend/pkg/models"
)

func stamp(id *string, createdAt, updatedAt *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	now := ts(time.Now())
	*createdAt, *updatedAt = now, now
}

// 客户

func (s *SQLDatabase) CreateClient(ctx context.Context, c *models.Client) error {
	stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	_, err := s.exec(ctx, s.db, `
		INSERT INTO clients (id, user_id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.UserID, c.Name, c.Email, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (s *SQLDatabase) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var c models.Client
	err := s.queryRow(ctx, s.db, `
		SELECT id, user_id, name, email, created_at, updated_at FROM clients WHERE id = $1`, id).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "failed to get client")
	}
	return &c, nil
}

func (s *SQLDatabase) ListClients(ctx context.Context, userIDs []string) ([]models.Client, error) {
	clients := []models.Client{}
	if len(userIDs) == 0 {
		return clients, nil
	}
	rows, err := s.query(ctx, s.db, `
		SELECT id, user_id, name, email, created_at, updated_at FROM clients
		WHERE user_id IN (`+inClause(1, len(userIDs))+`) ORDER BY name, id`, stringArgs(userIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *SQLDatabase) UpdateClient(ctx context.Context, c *models.Client) error {
	c.UpdatedAt = ts(time.Now())
	res, err := s.exec(ctx, s.db, `UPDATE clients SET name = $1, email = $2, updated_at = $3 WHERE id = $4`,
		c.Name, c.Email, c.UpdatedAt, c.ID)
	return expectOne(res, err, "failed to update client")
}

func (s *SQLDatabase) DeleteClient(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM clients WHERE id = $1`, id)
	return expectOne(res, err, "failed to delete client")
}

// 项目

func (s *SQLDatabase) CreateProject(ctx context.Context, p *models.Project) error {
	stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	_, err := s.exec(ctx, s.db, `
		INSERT INTO projects (id, user_id, client_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.UserID, p.ClientID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (s *SQLDatabase) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := s.queryRow(ctx, s.db, `
		SELECT id, user_id, client_id, name, description, created_at, updated_at FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.UserID, &p.ClientID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "failed to get project")
	}
	return &p, nil
}

func (s *SQLDatabase) ListProjects(ctx context.Context, userIDs []string) ([]models.Project, error) {
	projects := []models.Project{}
	if len(userIDs) == 0 {
		return projects, nil
	}
	rows, err := s.query(ctx, s.db, `
		SELECT id, user_id, client_id, name, description, created_at, updated_at FROM projects
		WHERE user_id IN (`+inClause(1, len(userIDs))+`) ORDER BY name, id`, stringArgs(userIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.ClientID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLDatabase) UpdateProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = ts(time.Now())
	res, err := s.exec(ctx, s.db, `
		UPDATE projects SET client_id = $1, name = $2, description = $3, updated_at = $4 WHERE id = $5`,
		p.ClientID, p.Name, p.Description, p.UpdatedAt, p.ID)
	return expectOne(res, err, "failed to update project")
}

func (s *SQLDatabase) DeleteProject(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM projects WHERE id = $1`, id)
	return expectOne(res, err, "failed to delete project")
}

// 任务

func (s *SQLDatabase) CreateTask(ctx context.Context, t *models.Task) error {
	stamp(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if t.Status == "" {
		t.Status = models.TaskTodo
	}
	_, err := s.exec(ctx, s.db, `
		INSERT INTO tasks (id, user_id, project_id, name, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.UserID, t.ProjectID, t.Name, t.Description, string(t.Status), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var status string
	if err := row.Scan(&t.ID, &t.UserID, &t.ProjectID, &t.Name, &t.Description, &status,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	return &t, nil
}

func (s *SQLDatabase) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(s.queryRow(ctx, s.db, `
		SELECT id, user_id, project_id, name, description, status, created_at, updated_at
		FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "failed to get task")
	}
	return t, nil
}

func (s *SQLDatabase) ListTasks(ctx context.Context, userIDs []string) ([]models.Task, error) {
	tasks := []models.Task{}
	if len(userIDs) == 0 {
		return tasks, nil
	}
	rows, err := s.query(ctx, s.db, `
		SELECT id, user_id, project_id, name, description, status, created_at, updated_at FROM tasks
		WHERE user_id IN (`+inClause(1, len(userIDs))+`) ORDER BY created_at, id`, stringArgs(userIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *SQLDatabase) UpdateTask(ctx context.Context, t *models.Task) error {
	t.UpdatedAt = ts(time.Now())
	res, err := s.exec(ctx, s.db, `
		UPDATE tasks SET project_id = $1, name = $2, description = $3, status = $4, updated_at = $5
		WHERE id = $6`,
		t.ProjectID, t.Name, t.Description, string(t.Status), t.UpdatedAt, t.ID)
	return expectOne(res, err, "failed to update task")
}

func (s *SQLDatabase) DeleteTask(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM tasks WHERE id = $1`, id)
	return expectOne(res, err, "failed to delete task")
}
