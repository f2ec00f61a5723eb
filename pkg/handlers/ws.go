package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"

	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/middleware"
	"timetrack-backend/pkg/notify"
)

// WSHandler upgrades authenticated requests and hands them to the hub.
type WSHandler struct {
	config   *config.Config
	hub      *notify.Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(cfg *config.Config, hub *notify.Hub) *WSHandler {
	return &WSHandler{
		config: cfg,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(cfg, r.Header.Get("Origin"))
			},
		},
	}
}

// Connect GET /ws
// Blocks for the lifetime of the connection.
func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		hlog.FromRequest(r).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.hub.Register(r.Context(), id.UserID, conn)
}
