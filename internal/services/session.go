package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"jnsite/internal/config"
	"jnsite/internal/domain"
	"jnsite/internal/metrics"
)

var (
	ErrInvalidToken    = errors.New("invalid session token")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// SessionService stores admin sessions in the database. The client holds
// a signed token whose ID claim is the session row's key.
type SessionService struct {
	db  *gorm.DB
	cfg *config.SessionConfig
	now func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(db *gorm.DB, cfg *config.SessionConfig) *SessionService {
	return &SessionService{
		db:  db,
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a session marked with username and returns it together
// with the signed cookie value.
func (s *SessionService) Create(ctx context.Context, username string) (*domain.Session, string, error) {
	now := s.now()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		Username:  username,
		ExpiresAt: now.Add(s.cfg.TTL),
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.sign(sess.ID, now)
	if err != nil {
		return nil, "", err
	}
	log.Printf("[SESSION] Created session for user '%s'", username)
	return sess, token, nil
}

// Resolve returns the live session for token and pushes its expiry
// forward by the configured TTL.
func (s *SessionService) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	id, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	var sess domain.Session
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	now := s.now()
	if sess.IsExpired(now) {
		if err := s.db.WithContext(ctx).Delete(&domain.Session{}, "id = ?", sess.ID).Error; err != nil {
			log.Printf("[SESSION] Failed to delete expired session: %v", err)
		}
		return nil, ErrSessionExpired
	}

	expires := now.Add(s.cfg.TTL)
	if err := s.db.WithContext(ctx).Model(&sess).Update("expires_at", expires).Error; err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	sess.ExpiresAt = expires
	return &sess, nil
}

// Destroy removes the session behind token. Unknown or malformed tokens
// are not an error.
func (s *SessionService) Destroy(ctx context.Context, token string) error {
	id, err := s.parse(token)
	if err != nil {
		return nil
	}
	if err := s.db.WithContext(ctx).Delete(&domain.Session{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// PurgeExpired deletes every session whose expiry has passed.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", s.now()).Delete(&domain.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.RecordSessionsPurged(res.RowsAffected)
		log.Printf("[SESSION] Purged %d expired sessions", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// RunCleaner purges expired sessions every cleanup interval until ctx ends.
func (s *SessionService) RunCleaner(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeExpired(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[SESSION] Cleanup failed: %v", err)
			}
		}
	}
}

// TokenFromRequest returns the session cookie value, if any.
func (s *SessionService) TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(s.cfg.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetCookie writes the session cookie
func (s *SessionService) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on the client
func (s *SessionService) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *SessionService) sign(id string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:       id,
		IssuedAt: jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

func (s *SessionService) parse(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}
