package domain

import (
	"time"

	"gorm.io/gorm"
)

// Session is server-side login state keyed by the id carried in the
// client's signed cookie. Username is the authenticated marker.
type Session struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Username  string    `gorm:"not null;index" json:"username"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Session
func (Session) TableName() string {
	return "sessions"
}

// BeforeCreate hook
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// IsExpired reports whether the inactivity window has elapsed at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
