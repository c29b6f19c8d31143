package server

import (
	"errors"
	"log"
	"net/http"

	"jnsite/internal/services"
)

const maxEditorBody = 10 << 20

func (s *Server) adminPage(nav, title string, data interface{}) page {
	return page{
		Title:         title,
		Nav:           nav,
		Authenticated: true,
		Data:          data,
	}
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Stats.Dashboard(r.Context())
	if err != nil {
		log.Printf("[API] Dashboard failed: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.views.render(w, http.StatusOK, "dashboard", s.adminPage("dashboard", s.deps.Locale.T(services.MsgDashboard), d))
}

func (s *Server) submissionsView(w http.ResponseWriter, r *http.Request) {
	subs, err := s.deps.Stats.Submissions(r.Context())
	if err != nil {
		log.Printf("[API] Submissions view failed: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.views.render(w, http.StatusOK, "submissions", s.adminPage("submissions", s.deps.Locale.T(services.MsgSubmissions), subs))
}

func (s *Server) visitsView(w http.ResponseWriter, r *http.Request) {
	visits, err := s.deps.Stats.Visits(r.Context())
	if err != nil {
		log.Printf("[API] Visits view failed: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.views.render(w, http.StatusOK, "visits", s.adminPage("visits", s.deps.Locale.T(services.MsgVisits), visits))
}

func (s *Server) editorView(w http.ResponseWriter, r *http.Request) {
	content := s.deps.Content.Read()
	s.views.render(w, http.StatusOK, "editor", s.adminPage("editor", s.deps.Locale.T(services.MsgEditor), content))
}

// parseForm reads urlencoded and multipart bodies alike; ParseForm alone
// leaves PostForm empty for multipart requests.
func parseForm(r *http.Request, maxMemory int64) error {
	if err := r.ParseMultipartForm(maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return err
	}
	return nil
}

func (s *Server) saveEditor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEditorBody)
	if err := parseForm(r, maxEditorBody); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := s.deps.Content.Write(r.PostFormValue("content")); err != nil {
		log.Printf("[CONTENT] Save failed: %v", err)
		http.Error(w, "failed to save content", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, editorPath, http.StatusFound)
}
