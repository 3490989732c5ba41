package models

import "time"

// Roles recognised by the API.
const (
	RoleAdmin     = "admin"
	RoleInspector = "inspector"
)

// User is an account that can be assigned jobs or administer the system.
type User struct {
	BaseModel

	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	Email       string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password    string     `gorm:"type:varchar(255)" json:"-"`
	Role        string     `gorm:"type:varchar(32);index;not null" json:"role"`
	IsActive    bool       `gorm:"not null" json:"is_active"`
	IsApproved  bool       `gorm:"not null" json:"is_approved"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	SuspendedAt *time.Time `json:"suspended_at,omitempty"`
}
