package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a user in the system, identified by phone number
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Phone string `gorm:"type:varchar(50);uniqueIndex" json:"phone"`
	Name  string `gorm:"type:varchar(255)" json:"name"`
	Email string `gorm:"type:varchar(255)" json:"email"`

	// Relationships
	Events       []Event       `gorm:"foreignKey:CreatorID" json:"events,omitempty"`
	Participants []Participant `gorm:"foreignKey:UserID" json:"participants,omitempty"`
	Payments     []Payment     `gorm:"foreignKey:UserID" json:"payments,omitempty"`
}
