package server

import (
	"net/http"
	"strings"
)

const (
	// RoleAdmin gates the label-generation and triage endpoints.
	RoleAdmin = "admin"
	// RoleUser gates the read-only shipment and tracking endpoints.
	RoleUser = "user"
)

// Identity is the resolved caller of an authenticated request.
type Identity struct {
	UserID string
	Role   string
}

// Verifier resolves an opaque bearer token to an identity. Session
// mechanics live in the external auth system; this service only checks
// tokens it was handed.
type Verifier interface {
	Verify(token string) (Identity, bool)
}

// StaticVerifier resolves tokens from configured token->user maps.
type StaticVerifier struct {
	admins map[string]string
	users  map[string]string
}

// NewStaticVerifier builds a verifier from configured token maps.
func NewStaticVerifier(admins, users map[string]string) *StaticVerifier {
	return &StaticVerifier{admins: admins, users: users}
}

func (v *StaticVerifier) Verify(token string) (Identity, bool) {
	if userID, ok := v.admins[token]; ok {
		return Identity{UserID: userID, Role: RoleAdmin}, true
	}
	if userID, ok := v.users[token]; ok {
		return Identity{UserID: userID, Role: RoleUser}, true
	}
	return Identity{}, false
}

// requireRole wraps a handler with a bearer-token check. Admins pass
// every gate; RoleUser endpoints accept any valid token.
func (s *Server) requireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, messageResponse{Success: false, Message: "missing bearer token"})
			return
		}

		identity, ok := s.verifier.Verify(token)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, messageResponse{Success: false, Message: "invalid token"})
			return
		}
		if role == RoleAdmin && identity.Role != RoleAdmin {
			writeJSON(w, http.StatusForbidden, messageResponse{Success: false, Message: "admin access required"})
			return
		}

		next(w, r)
	}
}
