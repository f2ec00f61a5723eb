package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/middleware"
	"timetrack-backend/pkg/models"
	"timetrack-backend/pkg/permissions"
	"timetrack-backend/pkg/timers"
	"timetrack-backend/pkg/utils"
)

// TimerHandler serves /timers. Permission and ownership checks run in route
// middleware before these handlers.
type TimerHandler struct {
	config   *config.Config
	service  *timers.Service
	resolver *permissions.Resolver
}

func NewTimerHandler(cfg *config.Config, service *timers.Service, resolver *permissions.Resolver) *TimerHandler {
	return &TimerHandler{config: cfg, service: service, resolver: resolver}
}

// Routes mounts the timer endpoints.
func (h *TimerHandler) Routes(gate *middleware.Gate) chi.Router {
	r := chi.NewRouter()
	owner := h.service.OwnerOf

	r.With(gate.RequirePermission(permissions.CreateTimer.Own)).Post("/start", h.Start)
	r.With(gate.RequirePermission(permissions.ReadTimer.Own)).Get("/active", h.Active)
	r.With(gate.RequirePermission(permissions.ReadTimer.Own)).Get("/", h.List)

	update := gate.RequireOwnership(permissions.UpdateTimer, "timerId", owner)
	r.With(update).Put("/stop/{timerId}", h.Stop)
	r.With(update).Put("/pause/{timerId}", h.Pause)
	r.With(update).Put("/resume/{timerId}", h.Resume)

	r.Route("/{timerId}", func(r chi.Router) {
		read := gate.RequireOwnership(permissions.ReadTimer, "timerId", owner)
		r.With(read).Get("/", h.Get)
		r.With(read).Get("/history", h.History)
		r.With(update).Put("/", h.UpdateNote)
		r.With(update).Patch("/", h.Edit)
		r.With(gate.RequireOwnership(permissions.DeleteTimer, "timerId", owner)).Delete("/", h.Delete)
		r.With(gate.RequireOwnership(permissions.DeleteTimerNote, "timerId", owner)).Delete("/note", h.DeleteNote)
	})
	return r
}

// Start POST /timers/start
func (h *TimerHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	var req models.StartTimerRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}

	t, err := h.service.Start(r.Context(), id.UserID, req)
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	utils.WriteCreated(w, "timer started", utils.Fields{"timer": t.View()})
}

// Active GET /timers/active
func (h *TimerHandler) Active(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	t, err := h.service.GetActive(r.Context(), id.UserID)
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	if t == nil {
		utils.WriteOK(w, "no active timer", utils.Fields{"timer": nil})
		return
	}
	utils.WriteOK(w, "", utils.Fields{"timer": t.View()})
}

// List GET /timers?page=&limit=&startDate=&endDate=&sortBy=&sortOrder=
// Callers holding READ_TIMER_OTHERS also see their team's timers.
func (h *TimerHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	q, err := timers.ParseListQuery(r.URL.Query())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}

	includeOthers, err := h.resolver.HasPermission(r.Context(), id, permissions.ReadTimer.Others)
	if err != nil {
		fail(h.config, w, r, apperr.Internal("failed to check permission", err))
		return
	}

	page, err := h.service.List(r.Context(), id.UserID, includeOthers, q)
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	utils.WriteOK(w, "", utils.Fields{
		"timers":      page.Timers,
		"total":       page.Total,
		"currentPage": page.CurrentPage,
		"totalPages":  page.TotalPages,
		"limit":       page.Limit,
	})
}

// Get GET /timers/{timerId}
func (h *TimerHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.Get(r.Context(), chi.URLParam(r, "timerId"))
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	utils.WriteOK(w, "", utils.Fields{"timer": t.View()})
}

// History GET /timers/{timerId}/history
func (h *TimerHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context(), chi.URLParam(r, "timerId"))
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	utils.WriteOK(w, "", utils.Fields{"history": history})
}

// Stop PUT /timers/stop/{timerId}
func (h *TimerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "timer stopped", h.service.Stop)
}

// Pause PUT /timers/pause/{timerId}
func (h *TimerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "timer paused", h.service.Pause)
}

// Resume PUT /timers/resume/{timerId}
func (h *TimerHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "timer resumed", h.service.Resume)
}

// DeleteNote DELETE /timers/{timerId}/note
func (h *TimerHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "note deleted", h.service.DeleteNote)
}

type timerOp func(ctx context.Context, timerID string) (*models.Timer, error)

func (h *TimerHandler) transition(w http.ResponseWriter, r *http.Request, message string, op timerOp) {
	t, err := op(r.Context(), chi.URLParam(r, "timerId"))
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	utils.WriteOK(w, message, utils.Fields{"timer": t.View()})
}

// UpdateNote PUT /timers/{timerId}
func (h *TimerHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateTimerNoteRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}
	t, err := h.service.UpdateNote(r.Context(), chi.URLParam(r, "timerId"), req.Note)
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	utils.WriteOK(w, "note updated", utils.Fields{"timer": t.View()})
}

// Edit PATCH /timers/{timerId}
func (h *TimerHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req models.EditTimerRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}
	t, err := h.service.Edit(r.Context(), chi.URLParam(r, "timerId"), req)
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	utils.WriteOK(w, "timer updated", utils.Fields{"timer": t.View()})
}

// Delete DELETE /timers/{timerId}
func (h *TimerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "timerId")); err != nil {
		fail(h.config, w, r, err)
		return
	}
	utils.WriteOK(w, "timer deleted", nil)
}
