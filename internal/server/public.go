package server

import (
	"errors"
	"io/fs"
	"log"
	"net/http"
)

// landing serves the current landing page file
func (s *Server) landing(w http.ResponseWriter, r *http.Request) {
	content, err := s.deps.Content.Load()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("[CONTENT] Failed to read landing page: %v", err)
		}
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(content))
}

// static serves files under STATIC_DIR at /static/
func (s *Server) static() http.HandlerFunc {
	fileServer := http.StripPrefix("/static/", http.FileServer(noDirFS{http.Dir(s.cfg.Site.StaticDir)}))
	return fileServer.ServeHTTP
}

// noDirFS hides directory listings
type noDirFS struct {
	fs http.FileSystem
}

func (n noDirFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if stat.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
