package domain

import (
	"time"

	"gorm.io/gorm"
)

// Submission represents a contact form entry
type Submission struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"not null" json:"name"`
	Phone          string    `gorm:"not null" json:"phone"`
	Email          string    `gorm:"not null" json:"email"`
	Services       string    `gorm:"type:text;not null" json:"services"` // comma-joined selection
	Message        string    `gorm:"type:text;not null" json:"message"`
	CustomerNumber string    `gorm:"column:customer_number;not null;index" json:"customerNumber"`
	SubmissionDate string    `gorm:"column:submission_date;not null" json:"submissionDate"`
	CreatedAt      time.Time `gorm:"index" json:"createdAt"`
}

// TableName specifies the table name for Submission
func (Submission) TableName() string {
	return "submissions"
}

// BeforeCreate hook
func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return nil
}
