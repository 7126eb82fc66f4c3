package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/logging"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/metrics"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/notify"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// WebSocketHandlers streams notification events to connected clients
type WebSocketHandlers struct {
	hub    *notify.Hub
	logger *logging.Logger
}

// NewWebSocketHandlers creates new websocket handlers
func NewWebSocketHandlers(hub *notify.Hub, logger *logging.Logger) *WebSocketHandlers {
	return &WebSocketHandlers{hub: hub, logger: logger}
}

// Events upgrades the connection and forwards hub events until the client
// disconnects
func (h *WebSocketHandlers) Events(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", err, nil)
		return
	}
	defer conn.Close()

	orgID := ""
	if claims.OrganizationID != nil {
		orgID = *claims.OrganizationID
	}

	sub := h.hub.Subscribe(claims.UserID, orgID)
	defer sub.Close()

	metrics.SetActiveConnections("websocket", float64(h.hub.ConnectionCount()))
	defer func() {
		metrics.SetActiveConnections("websocket", float64(h.hub.ConnectionCount()))
	}()

	conn.WriteJSON(map[string]interface{}{
		"type":    "connected",
		"user_id": claims.UserID,
	})

	// Drain client messages so close frames are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev := <-sub.C:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteJSON(map[string]interface{}{"type": "ping"}); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// Status reports hub connection counts
func (h *WebSocketHandlers) Status(w http.ResponseWriter, r *http.Request) {
	users, orgs := h.hub.ChannelCounts()
	WriteSuccess(w, map[string]interface{}{
		"connections":           h.hub.ConnectionCount(),
		"user_channels":         users,
		"organization_channels": orgs,
	}, http.StatusOK)
}
