package api

import (
	"log"
	"net/http"

	"github.com/vrsandeep/oilspill-go/internal/auth"
	"github.com/vrsandeep/oilspill-go/internal/processing"
)

// MachineMiddleware injects m into the request's context so handlers can
// reach it through processing.FromContext.
func MachineMiddleware(m *processing.Machine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := processing.NewContext(r.Context(), m)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// machineFromRequest returns the request's machine. When there is none it
// writes a 500 and returns nil.
func machineFromRequest(w http.ResponseWriter, r *http.Request) *processing.Machine {
	m, err := processing.FromContext(r.Context())
	if err != nil {
		log.Printf("api: %s %s: %v", r.Method, r.URL.Path, err)
		RespondWithError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	return m
}

// AdminOnlyMiddleware requires HTTP basic auth as "admin" when an admin
// password hash is configured.
func (s *Server) AdminOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := s.app.Config().Admin.PasswordHash
		if hash == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, password, ok := r.BasicAuth()
		if !ok || user != "admin" || !auth.CheckPasswordHash(password, hash) {
			w.Header().Set("WWW-Authenticate", `Basic realm="oilspill admin"`)
			RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
