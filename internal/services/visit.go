package services

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"jnsite/internal/domain"
	"jnsite/internal/metrics"
)

const unknown = "unknown"

// VisitService records page visits
type VisitService struct {
	db *gorm.DB
}

// NewVisitService creates a new visit service
func NewVisitService(db *gorm.DB) *VisitService {
	return &VisitService{db: db}
}

// Record inserts a single visit row
func (s *VisitService) Record(ctx context.Context, v *domain.Visit) error {
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("failed to record visit: %w", err)
	}
	return nil
}

// Recorder returns middleware that stores a visit for every tracked path
// before calling next. Insert failures are logged and the request is still
// served.
func (s *VisitService) Recorder(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsTracked(r.URL.Path) {
			visit := &domain.Visit{
				IP:        ClientIP(r),
				UserAgent: UserAgent(r),
				Path:      r.URL.Path,
			}
			if err := s.Record(r.Context(), visit); err != nil {
				log.Printf("[VISIT] Failed to record visit path=%s ip=%s: %v", visit.Path, visit.IP, err)
				metrics.RecordVisit(false)
			} else {
				metrics.RecordVisit(true)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// IsTracked reports whether a request path counts as a visit.
func IsTracked(path string) bool {
	return !strings.HasPrefix(path, "/admin") && !strings.HasPrefix(path, "/api")
}

// ClientIP returns the first X-Forwarded-For entry, else the socket
// address host, else "unknown".
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}
	return unknown
}

// UserAgent returns the request user agent or "unknown".
func UserAgent(r *http.Request) string {
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return unknown
}
