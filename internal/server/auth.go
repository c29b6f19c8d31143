package server

import (
	"log"
	"net/http"

	"jnsite/internal/services"
)

// requireAdmin lets the request through only when the session marker is
// the admin username; everyone else is redirected to the login page.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticated(r) {
			http.Redirect(w, r, loginPath, http.StatusFound)
			return
		}
		next(w, r)
	}
}

func (s *Server) authenticated(r *http.Request) bool {
	token := s.deps.Sessions.TokenFromRequest(r)
	if token == "" {
		return false
	}
	sess, err := s.deps.Sessions.Resolve(r.Context(), token)
	if err != nil {
		return false
	}
	return sess.Username == s.deps.Auth.AdminUsername()
}

const maxLoginBody = 1 << 16

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	s.views.render(w, http.StatusOK, "login", page{Title: s.deps.Locale.T(services.MsgAdminLogin)})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r, maxLoginBody); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if !s.deps.Auth.VerifyCredentials(r.Context(), username, password) {
		s.views.render(w, http.StatusUnauthorized, "login", page{
			Title: s.deps.Locale.T(services.MsgAdminLogin),
			Error: s.deps.Locale.T(services.MsgInvalidCredentials),
		})
		return
	}

	// Drop any session the client already had before issuing a new one.
	if old := s.deps.Sessions.TokenFromRequest(r); old != "" {
		if err := s.deps.Sessions.Destroy(r.Context(), old); err != nil {
			log.Printf("[AUTH] Failed to drop previous session: %v", err)
		}
	}

	_, token, err := s.deps.Sessions.Create(r.Context(), username)
	if err != nil {
		log.Printf("[AUTH] Login failed: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.deps.Sessions.SetCookie(w, token)
	http.Redirect(w, r, adminPath, http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Destroy(r.Context(), s.deps.Sessions.TokenFromRequest(r)); err != nil {
		log.Printf("[AUTH] Logout: %v", err)
	}
	s.deps.Sessions.ClearCookie(w)
	log.Printf("[AUTH] Logout")
	http.Redirect(w, r, loginPath, http.StatusFound)
}
