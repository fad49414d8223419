package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/robaro12345/SafeTalk/internal/domain"
	"github.com/robaro12345/SafeTalk/internal/service"
)

type contextKey string

const userContextKey contextKey = "authenticatedUser"

// requireAuth resolves the Bearer token and stores the user on the request
// context. Requests without a valid token get 401.
func requireAuth(auth service.IAuthService, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "authentication token required")
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		user, err := auth.Authenticate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid authentication token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// userFrom returns the authenticated user placed by requireAuth.
func userFrom(r *http.Request) *domain.User {
	user, _ := r.Context().Value(userContextKey).(*domain.User)
	return user
}
