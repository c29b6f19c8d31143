package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jnsite/internal/config"
	"jnsite/internal/domain"
	"jnsite/internal/metrics"
)

// AuthService checks admin credentials against the stored row
type AuthService struct {
	db  *gorm.DB
	cfg *config.AdminConfig
}

// NewAuthService creates a new auth service
func NewAuthService(db *gorm.DB, cfg *config.AdminConfig) *AuthService {
	return &AuthService{db: db, cfg: cfg}
}

// AdminUsername is the only username the auth gate accepts.
func (s *AuthService) AdminUsername() string {
	return s.cfg.Username
}

// EnsureAdmin upserts the configured admin credential, replacing any
// existing password for that username.
func (s *AuthService) EnsureAdmin(ctx context.Context) error {
	cred := &domain.AdminCredential{
		Username: s.cfg.Username,
		Password: s.cfg.Password,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"password", "updated_at"}),
	}).Create(cred).Error
	if err != nil {
		return fmt.Errorf("failed to upsert admin credential: %w", err)
	}
	log.Printf("[AUTH] Admin credential ensured for user '%s'", s.cfg.Username)
	return nil
}

// VerifyCredentials looks up the credential by username and compares the
// password by exact equality. Lookup errors count as a mismatch.
func (s *AuthService) VerifyCredentials(ctx context.Context, username, password string) bool {
	var cred domain.AdminCredential
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[AUTH] Login failed: user '%s' not found", username)
		} else {
			log.Printf("[AUTH] Login failed: database error for user '%s': %v", username, err)
		}
		metrics.RecordAuthAttempt(false)
		return false
	}

	if cred.Password != password {
		log.Printf("[AUTH] Login failed: invalid password for user '%s'", username)
		metrics.RecordAuthAttempt(false)
		return false
	}

	log.Printf("[AUTH] Login successful for user '%s'", username)
	metrics.RecordAuthAttempt(true)
	return true
}
