package handlers

import (
	"context"
	"net/http"
	"time"

	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/utils"
)

// HealthHandler 健康检查
type HealthHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewHealthHandler(cfg *config.Config, db database.DatabaseInterface) *HealthHandler {
	return &HealthHandler{config: cfg, db: db}
}

// Health GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	healthy := h.db.HealthCheck(ctx) == nil
	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	body := map[string]interface{}{
		"success":     healthy,
		"status":      status,
		"environment": h.config.Environment,
		"serverless":  database.IsServerless(),
		"timestamp":   time.Now().UTC(),
	}
	if h.config.IsDevelopment() {
		body["database"] = database.GetConnectionStats()
	}
	utils.WriteJSONResponse(w, code, body)
}
