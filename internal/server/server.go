package server

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goahttp "goa.design/goa/v3/http"
	"goa.design/goa/v3/http/middleware"

	"jnsite/internal/config"
	"jnsite/internal/metrics"
	"jnsite/internal/services"
)

const (
	healthPath  = "/api/health"
	metricsPath = "/api/metrics"
	loginPath   = "/admin/login"
	adminPath   = "/admin"
	editorPath  = "/admin/editor"
)

// Deps are the services the HTTP layer is built from
type Deps struct {
	Auth        *services.AuthService
	Sessions    *services.SessionService
	Visits      *services.VisitService
	Submissions *services.SubmissionService
	Stats       *services.StatsService
	Content     *services.ContentService
	Health      *services.HealthService
	Locale      *services.Locale
}

// Server routes requests to the public site, the admin area and the API
type Server struct {
	cfg   *config.Config
	deps  Deps
	views *views
	mux   goahttp.ResolverMuxer
}

// New builds the server and mounts every route
func New(cfg *config.Config, deps Deps) (*Server, error) {
	v, err := loadViews(deps.Locale)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:   cfg,
		deps:  deps,
		views: v,
		mux:   goahttp.NewMuxer(),
	}
	s.mount()
	return s, nil
}

func (s *Server) mount() {
	// Public
	s.handle(http.MethodGet, "/", s.landing)
	s.mux.Handle(http.MethodGet, "/static/{*filepath}", s.static())

	// Admin
	s.handle(http.MethodGet, loginPath, s.loginForm)
	s.handle(http.MethodPost, loginPath, s.login)
	s.handle(http.MethodPost, "/admin/logout", s.requireAdmin(s.logout))
	s.handle(http.MethodGet, adminPath, s.requireAdmin(s.dashboard))
	s.handle(http.MethodGet, "/admin/submissions", s.requireAdmin(s.submissionsView))
	s.handle(http.MethodGet, "/admin/visits", s.requireAdmin(s.visitsView))
	s.handle(http.MethodGet, editorPath, s.requireAdmin(s.editorView))
	s.handle(http.MethodPost, editorPath, s.requireAdmin(s.saveEditor))

	// API
	s.handle(http.MethodPost, "/api/submit", s.submit)
	s.handle(http.MethodGet, "/api/stats", s.requireAdmin(s.visitStats))
	s.handle(http.MethodGet, healthPath, s.healthCheck)
	s.handle(http.MethodGet, metricsPath, promhttp.Handler().ServeHTTP)
}

// handle mounts a route and adds its path to the metrics endpoint labels.
func (s *Server) handle(method, path string, h http.HandlerFunc) {
	metrics.RegisterEndpoint(path)
	s.mux.Handle(method, path, h)
}

// Handler returns the full middleware chain:
// RequestID -> context -> security -> CORS -> logging -> metrics -> visits -> mux
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.deps.Visits.Recorder(h)
	h = metrics.PrometheusMiddleware(h)
	h = requestLogging(h)
	h = cors(h, s.cfg)
	h = securityHeaders(h, s.cfg)
	h = middleware.PopulateRequestContext()(h)
	h = middleware.RequestID(middleware.UseXRequestIDHeaderOption(true))(h)
	return h
}

// encodeJSON writes v with the given status using goa's response encoder.
// The content type is pinned so browser Accept headers do not select a
// text encoder.
func encodeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	ctx = context.WithValue(ctx, goahttp.ContentTypeKey, "application/json")
	enc := goahttp.ResponseEncoder(ctx, w)
	w.WriteHeader(status)
	if err := enc.Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}
