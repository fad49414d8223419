package handler

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/robaro12345/SafeTalk/internal/hub"
	"github.com/robaro12345/SafeTalk/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer in front of the router.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebsocketHandler upgrades authenticated handshakes into hub clients.
type WebsocketHandler struct {
	hub  *hub.Hub
	auth service.IAuthService
}

// NewWebsocketHandler creates a new WebsocketHandler.
func NewWebsocketHandler(h *hub.Hub, auth service.IAuthService) *WebsocketHandler {
	return &WebsocketHandler{hub: h, auth: auth}
}

// HandleConnection handles GET /ws?token=<session token>. The token is
// resolved to an identity before the upgrade; an invalid token never gets a
// socket.
func (h *WebsocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	user, err := h.auth.Authenticate(token)
	if err != nil {
		http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade error: %v", err)
		return
	}

	h.hub.ServeWs(conn, user)
}
