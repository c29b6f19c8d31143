package domain

import (
	"time"

	"gorm.io/gorm"
)

// Visit represents one logged request to a public path
type Visit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	IP        string    `gorm:"column:ip;size:64;not null" json:"ip"`
	UserAgent string    `gorm:"type:text;not null" json:"userAgent"`
	Path      string    `gorm:"type:text;not null;index" json:"path"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// TableName specifies the table name for Visit
func (Visit) TableName() string {
	return "visits"
}

// BeforeCreate hook
func (v *Visit) BeforeCreate(tx *gorm.DB) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	return nil
}
