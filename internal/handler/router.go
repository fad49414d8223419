package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/robaro12345/SafeTalk/internal/service"
)

// NewRouter assembles the HTTP surface: websocket upgrade plus the REST API,
// wrapped in CORS for the browser client.
func NewRouter(
	ws *WebsocketHandler,
	auth *AuthHandler,
	messages *MessageHandler,
	users *UserHandler,
	authService service.IAuthService,
	allowedOrigins []string,
) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/ws", ws.HandleConnection).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", auth.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", auth.Login).Methods(http.MethodPost)

	api.HandleFunc("/users/{id}", requireAuth(authService, users.GetUser)).Methods(http.MethodGet)

	api.HandleFunc("/messages/send", requireAuth(authService, messages.SendMessage)).Methods(http.MethodPost)
	api.HandleFunc("/messages/conversation/{userID}", requireAuth(authService, messages.GetConversation)).Methods(http.MethodGet)
	api.HandleFunc("/messages/conversations", requireAuth(authService, messages.GetConversations)).Methods(http.MethodGet)
	api.HandleFunc("/messages/{id}", requireAuth(authService, messages.DeleteMessage)).Methods(http.MethodDelete)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}
