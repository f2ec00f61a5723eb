package models

import "time"

// Client is a customer work is done for.
type Client struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Project optionally belongs to a client.
type Project struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	ClientID    string    `json:"clientId,omitempty" db:"client_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Task optionally belongs to a project.
type Task struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"userId" db:"user_id"`
	ProjectID   string     `json:"projectId,omitempty" db:"project_id"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description,omitempty" db:"description"`
	Status      TaskStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// ClientRequest creates or replaces a client.
type ClientRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"omitempty,email"`
}

// ProjectRequest creates or replaces a project.
type ProjectRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	ClientID    string `json:"clientId"`
	Description string `json:"description" validate:"max=2000"`
}

// TaskRequest creates or replaces a task.
type TaskRequest struct {
	Name        string     `json:"name" validate:"required,max=255"`
	ProjectID   string     `json:"projectId"`
	Description string     `json:"description" validate:"max=2000"`
	Status      TaskStatus `json:"status" validate:"omitempty,oneof=todo in_progress done"`
}
