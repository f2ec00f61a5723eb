package database

import (
	"context"
	"time"

	"timetrack-backend/pkg/models"
)

// DatabaseInterface 定义数据库访问接口
type DatabaseInterface interface {
	// 用户管理
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	// Organizations & team members
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, orgID string) (*models.Organization, error)
	ListOrganizationsByOwner(ctx context.Context, ownerID string) ([]models.Organization, error)
	CreateTeamMember(ctx context.Context, m *models.TeamMember) error
	GetTeamMember(ctx context.Context, id string) (*models.TeamMember, error)
	// GetActiveTeamMemberByUserID returns the non-archived membership of a
	// user, or ErrNotFound.
	GetActiveTeamMemberByUserID(ctx context.Context, userID string) (*models.TeamMember, error)
	ListTeamMembers(ctx context.Context, orgIDs []string) ([]models.TeamMember, error)
	UpdateTeamMember(ctx context.Context, m *models.TeamMember) error
	// GetPendingTeamMemberByEmail returns a pending invitation for email in
	// any organization, or ErrNotFound.
	GetPendingTeamMemberByEmail(ctx context.Context, email string) (*models.TeamMember, error)
	// ActivatePendingMemberships links the oldest pending invitation for email
	// to userID, marks it active and archives the other pending invitations.
	ActivatePendingMemberships(ctx context.Context, userID, email string) (int64, error)

	// Permissions
	GetPermissionByName(ctx context.Context, name models.PermissionName) (*models.Permission, error)
	ListPermissions(ctx context.Context) ([]models.Permission, error)
	CreatePermission(ctx context.Context, p *models.Permission) error
	UpdatePermission(ctx context.Context, p *models.Permission) error

	// Timers
	// CreateTimer inserts an active timer. It returns ErrActiveTimerExists
	// when the owner already has one.
	CreateTimer(ctx context.Context, t *models.Timer) error
	GetTimer(ctx context.Context, id string) (*models.Timer, error)
	GetActiveTimer(ctx context.Context, userID string) (*models.Timer, error)
	UpdateTimer(ctx context.Context, t *models.Timer) error
	DeleteTimer(ctx context.Context, id string) error
	ListTimers(ctx context.Context, f TimerFilter) ([]models.Timer, int, error)
	CreateTimerHistory(ctx context.Context, h *models.TimerHistory) error
	ListTimerHistory(ctx context.Context, timerID string) ([]models.TimerHistory, error)

	// Clients / projects / tasks
	CreateClient(ctx context.Context, c *models.Client) error
	GetClient(ctx context.Context, id string) (*models.Client, error)
	ListClients(ctx context.Context, userIDs []string) ([]models.Client, error)
	UpdateClient(ctx context.Context, c *models.Client) error
	DeleteClient(ctx context.Context, id string) error

	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context, userIDs []string) ([]models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error

	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, userIDs []string) ([]models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, id string) error

	// OTP
	CreateOtp(ctx context.Context, o *models.Otp) error
	GetLatestOtp(ctx context.Context, userID, purpose string) (*models.Otp, error)
	UpdateOtp(ctx context.Context, o *models.Otp) error

	// 迁移、健康检查与关闭
	Migrate(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// TimerFilter selects timers for ListTimers.
type TimerFilter struct {
	UserIDs []string
	From    *time.Time // inclusive lower bound on start_time
	To      *time.Time // inclusive upper bound on start_time
	// SortColumn must be one of the keys accepted by TimerSortColumn.
	SortColumn string
	Desc       bool
	Limit      int
	Offset     int
}

var timerSortColumns = map[string]string{
	"startTime": "start_time",
	"endTime":   "end_time",
	"duration":  "duration",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"task":      "task",
	"client":    "client",
	"project":   "project",
}

// TimerSortColumn maps a timer JSON field onto its column.
func TimerSortColumn(field string) (string, bool) {
	col, ok := timerSortColumns[field]
	return col, ok
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	PostgresDSN string
	SQLitePath  string
	Debug       bool
}
