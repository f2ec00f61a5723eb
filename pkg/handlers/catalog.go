package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/middleware"
	"timetrack-backend/pkg/models"
	"timetrack-backend/pkg/permissions"
	"timetrack-backend/pkg/utils"
)

// CatalogHandler serves clients, projects and tasks.
type CatalogHandler struct {
	config   *config.Config
	db       database.DatabaseInterface
	resolver *permissions.Resolver
}

func NewCatalogHandler(cfg *config.Config, db database.DatabaseInterface, resolver *permissions.Resolver) *CatalogHandler {
	return &CatalogHandler{config: cfg, db: db, resolver: resolver}
}

type crud struct {
	create, list, get, update, remove http.HandlerFunc
}

func crudRoutes(gate *middleware.Gate, create, read, update, remove permissions.Scoped, owner middleware.OwnerLookup, h crud) chi.Router {
	r := chi.NewRouter()
	r.With(gate.RequirePermission(create.Own)).Post("/", h.create)
	r.With(gate.RequirePermission(read.Own)).Get("/", h.list)
	r.With(gate.RequireOwnership(read, "id", owner)).Get("/{id}", h.get)
	r.With(gate.RequireOwnership(update, "id", owner)).Put("/{id}", h.update)
	r.With(gate.RequireOwnership(remove, "id", owner)).Delete("/{id}", h.remove)
	return r
}

// ClientRoutes mounts /clients.
func (h *CatalogHandler) ClientRoutes(gate *middleware.Gate) chi.Router {
	return crudRoutes(gate, permissions.CreateClient, permissions.ReadClient, permissions.UpdateClient, permissions.DeleteClient,
		h.clientOwner, crud{h.CreateClient, h.ListClients, h.GetClient, h.UpdateClient, h.DeleteClient})
}

// ProjectRoutes mounts /projects.
func (h *CatalogHandler) ProjectRoutes(gate *middleware.Gate) chi.Router {
	return crudRoutes(gate, permissions.CreateProject, permissions.ReadProject, permissions.UpdateProject, permissions.DeleteProject,
		h.projectOwner, crud{h.CreateProject, h.ListProjects, h.GetProject, h.UpdateProject, h.DeleteProject})
}

// TaskRoutes mounts /tasks.
func (h *CatalogHandler) TaskRoutes(gate *middleware.Gate) chi.Router {
	return crudRoutes(gate, permissions.CreateTask, permissions.ReadTask, permissions.UpdateTask, permissions.DeleteTask,
		h.taskOwner, crud{h.CreateTask, h.ListTasks, h.GetTask, h.UpdateTask, h.DeleteTask})
}

func (h *CatalogHandler) clientOwner(ctx context.Context, id string) (string, error) {
	c, err := h.db.GetClient(ctx, id)
	if err != nil {
		return "", lookupError("client", err)
	}
	return c.UserID, nil
}

func (h *CatalogHandler) projectOwner(ctx context.Context, id string) (string, error) {
	p, err := h.db.GetProject(ctx, id)
	if err != nil {
		return "", lookupError("project", err)
	}
	return p.UserID, nil
}

func (h *CatalogHandler) taskOwner(ctx context.Context, id string) (string, error) {
	t, err := h.db.GetTask(ctx, id)
	if err != nil {
		return "", lookupError("task", err)
	}
	return t.UserID, nil
}

// visibleOwners is the caller alone, or the caller and their team when they
// hold others.
func (h *CatalogHandler) visibleOwners(ctx context.Context, id permissions.Identity, others models.PermissionName) ([]string, error) {
	ok, err := h.resolver.HasPermission(ctx, id, others)
	if err != nil {
		return nil, apperr.Internal("failed to check permission", err)
	}
	if !ok {
		return []string{id.UserID}, nil
	}
	owners, err := permissions.VisibleOwners(ctx, h.db, id.UserID)
	if err != nil {
		return nil, apperr.Internal("failed to resolve team", err)
	}
	return owners, nil
}

// requireRef rejects references to rows that do not exist.
func requireRef(what string, id string, get func() error) error {
	if id == "" {
		return nil
	}
	if err := get(); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return apperr.BadRequest(what + " does not exist")
		}
		return apperr.Internal("failed to load "+what, err)
	}
	return nil
}

// ==== clients ====

// CreateClient POST /clients
func (h *CatalogHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	var req models.ClientRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}
	c := &models.Client{UserID: id.UserID, Name: strings.TrimSpace(req.Name), Email: req.Email}
	if err := h.db.CreateClient(r.Context(), c); err != nil {
		fail(h.config, w, r, apperr.Internal("failed to create client", err))
		return
	}
	utils.WriteCreated(w, "client created", utils.Fields{"client": c})
}

// ListClients GET /clients
func (h *CatalogHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	owners, err := h.visibleOwners(r.Context(), id, permissions.ReadClient.Others)
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	clients, err := h.db.ListClients(r.Context(), owners)
	if err != nil {
		fail(h.config, w, r, apperr.Internal("failed to list clients", err))
		return
	}
	if clients == nil {
		clients = []models.Client{}
	}
	utils.WriteOK(w, "", utils.Fields{"clients": clients})
}

// GetClient GET /clients/{id}
func (h *CatalogHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.db.GetClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(h.config, w, r, lookupError("client", err))
		return
	}
	utils.WriteOK(w, "", utils.Fields{"client": c})
}

// UpdateClient PUT /clients/{id}
func (h *CatalogHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req models.ClientRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}
	c, err := h.db.GetClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(h.config, w, r, lookupError("client", err))
		return
	}
	c.Name, c.Email = strings.TrimSpace(req.Name), req.Email
	if err := h.db.UpdateClient(r.Context(), c); err != nil {
		fail(h.config, w, r, lookupError("client", err))
		return
	}
	utils.WriteOK(w, "client updated", utils.Fields{"client": c})
}

// DeleteClient DELETE /clients/{id}
func (h *CatalogHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteClient(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(h.config, w, r, lookupError("client", err))
		return
	}
	utils.WriteOK(w, "client deleted", nil)
}

// ==== projects ====

// CreateProject POST /projects
func (h *CatalogHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	var req models.ProjectRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}
	if err := h.checkClientRef(r.Context(), req.ClientID); err != nil {
		fail(h.config, w, r, err)
		return
	}
	p := &models.Project{
		UserID:      id.UserID,
		ClientID:    req.ClientID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	}
	if err := h.db.CreateProject(r.Context(), p); err != nil {
		fail(h.config, w, r, apperr.Internal("failed to create project", err))
		return
	}
	utils.WriteCreated(w, "project created", utils.Fields{"project": p})
}

func (h *CatalogHandler) checkClientRef(ctx context.Context, clientID string) error {
	return requireRef("client", clientID, func() error {
		_, err := h.db.GetClient(ctx, clientID)
		return err
	})
}

// ListProjects GET /projects
func (h *CatalogHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	owners, err := h.visibleOwners(r.Context(), id, permissions.ReadProject.Others)
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	projects, err := h.db.ListProjects(r.Context(), owners)
	if err != nil {
		fail(h.config, w, r, apperr.Internal("failed to list projects", err))
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	utils.WriteOK(w, "", utils.Fields{"projects": projects})
}

// GetProject GET /projects/{id}
func (h *CatalogHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.db.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(h.config, w, r, lookupError("project", err))
		return
	}
	utils.WriteOK(w, "", utils.Fields{"project": p})
}

// UpdateProject PUT /projects/{id}
func (h *CatalogHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req models.ProjectRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}
	if err := h.checkClientRef(r.Context(), req.ClientID); err != nil {
		fail(h.config, w, r, err)
		return
	}
	p, err := h.db.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(h.config, w, r, lookupError("project", err))
		return
	}
	p.Name, p.ClientID, p.Description = strings.TrimSpace(req.Name), req.ClientID, req.Description
	if err := h.db.UpdateProject(r.Context(), p); err != nil {
		fail(h.config, w, r, lookupError("project", err))
		return
	}
	utils.WriteOK(w, "project updated", utils.Fields{"project": p})
}

// DeleteProject DELETE /projects/{id}
func (h *CatalogHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(h.config, w, r, lookupError("project", err))
		return
	}
	utils.WriteOK(w, "project deleted", nil)
}

// ==== tasks ====

// CreateTask POST /tasks
func (h *CatalogHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	var req models.TaskRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}
	if err := h.checkProjectRef(r.Context(), req.ProjectID); err != nil {
		fail(h.config, w, r, err)
		return
	}
	t := &models.Task{
		UserID:      id.UserID,
		ProjectID:   req.ProjectID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Status:      req.Status,
	}
	if err := h.db.CreateTask(r.Context(), t); err != nil {
		fail(h.config, w, r, apperr.Internal("failed to create task", err))
		return
	}
	utils.WriteCreated(w, "task created", utils.Fields{"task": t})
}

func (h *CatalogHandler) checkProjectRef(ctx context.Context, projectID string) error {
	return requireRef("project", projectID, func() error {
		_, err := h.db.GetProject(ctx, projectID)
		return err
	})
}

// ListTasks GET /tasks
func (h *CatalogHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	owners, err := h.visibleOwners(r.Context(), id, permissions.ReadTask.Others)
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	tasks, err := h.db.ListTasks(r.Context(), owners)
	if err != nil {
		fail(h.config, w, r, apperr.Internal("failed to list tasks", err))
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	utils.WriteOK(w, "", utils.Fields{"tasks": tasks})
}

// GetTask GET /tasks/{id}
func (h *CatalogHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.db.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(h.config, w, r, lookupError("task", err))
		return
	}
	utils.WriteOK(w, "", utils.Fields{"task": t})
}

// UpdateTask PUT /tasks/{id}
func (h *CatalogHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req models.TaskRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}
	if err := h.checkProjectRef(r.Context(), req.ProjectID); err != nil {
		fail(h.config, w, r, err)
		return
	}
	t, err := h.db.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(h.config, w, r, lookupError("task", err))
		return
	}
	t.Name, t.ProjectID, t.Description = strings.TrimSpace(req.Name), req.ProjectID, req.Description
	if req.Status != "" {
		t.Status = req.Status
	}
	if err := h.db.UpdateTask(r.Context(), t); err != nil {
		fail(h.config, w, r, lookupError("task", err))
		return
	}
	utils.WriteOK(w, "task updated", utils.Fields{"task": t})
}

// DeleteTask DELETE /tasks/{id}
func (h *CatalogHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(h.config, w, r, lookupError("task", err))
		return
	}
	utils.WriteOK(w, "task deleted", nil)
}
