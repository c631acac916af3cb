package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/realtime"
)

// WebsocketHandler upgrades authenticated requests and joins the socket to the caller's user
// and tenant rooms.
type WebsocketHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewWebsocketHandler(hub *realtime.Hub, allowedOrigins []string, logger zerolog.Logger) *WebsocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebsocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
		logger: logger.With().Str("handler", "websocket").Logger(),
	}
}

func (h *WebsocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := identity(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	realtime.NewClient(h.hub, conn).Serve(realtime.UserRoom(userID), realtime.TenantRoom(tenantID))
}
