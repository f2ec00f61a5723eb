package handlers

import (
	"errors"
	"net/http"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/utils"
)

func fail(cfg *config.Config, w http.ResponseWriter, r *http.Request, err error) {
	utils.WriteError(w, r, err, cfg.IsDevelopment())
}

// lookupError maps storage errors from single-row reads onto API errors.
func lookupError(what string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return apperr.NotFound(what + " not found")
	}
	return apperr.Internal("failed to load "+what, err)
}
