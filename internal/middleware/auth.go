package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// HeaderAuth is the demo authentication: the Authorization header carries a
// bare user name from a fixed list. "Bearer <name>" is accepted too.
type HeaderAuth struct {
	users map[string]struct{}
	hint  string
}

func NewHeaderAuth(users []string) *HeaderAuth {
	allowed := make(map[string]struct{}, len(users))
	for _, u := range users {
		allowed[u] = struct{}{}
	}
	return &HeaderAuth{
		users: allowed,
		hint:  fmt.Sprintf("Unauthorized. Use Authorization header with: %s", joinUsers(users)),
	}
}

// Middleware checks the Authorization header and attaches the user to the
// request context.
func (a *HeaderAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get("Authorization"))
		if name, ok := strings.CutPrefix(user, "Bearer "); ok {
			user = strings.TrimSpace(name)
		}

		if _, ok := a.users[user]; !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", a.hint, r)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the authenticated user from request context
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

// joinUsers renders "a, b, or c".
func joinUsers(users []string) string {
	switch len(users) {
	case 0:
		return ""
	case 1:
		return users[0]
	case 2:
		return users[0] + " or " + users[1]
	}
	return strings.Join(users[:len(users)-1], ", ") + ", or " + users[len(users)-1]
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
