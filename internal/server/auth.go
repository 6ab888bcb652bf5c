package server

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Credentials guard the admin routes. An empty PasswordHash locks them.
type Credentials struct {
	User         string
	PasswordHash string
}

func (c Credentials) valid(username, password string) bool {
	if c.PasswordHash == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(c.User)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || !s.admin.valid(username, password) {
			if ok {
				s.log.Warn("admin authentication failed", zap.String("user", username))
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}
