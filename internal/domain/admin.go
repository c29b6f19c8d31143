package domain

import (
	"time"
)

// AdminCredential is the single stored admin login. The password is kept
// as plain text and compared by equality.
type AdminCredential struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for AdminCredential
func (AdminCredential) TableName() string {
	return "admin_credentials"
}
