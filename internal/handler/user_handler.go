package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/robaro12345/SafeTalk/internal/service"
)

// UserHandler serves user lookups; clients fetch a counterparty's public key
// here before encrypting for them.
type UserHandler struct {
	users service.IUserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users service.IUserService) *UserHandler {
	return &UserHandler{users: users}
}

// GetUser handles GET /api/users/{id}.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.users.GetUserByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil || !user.IsActive {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]interface{}{"user": user}})
}
