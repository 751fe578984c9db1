package models

import (
	"time"

	"gorm.io/gorm"
)

// BankAccount stores a user's linked bank account: the Plaid item it came
// from and the Stripe bank token charges are made against. One account per
// user; re-linking replaces the previous record.
type BankAccount struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID          uint   `gorm:"uniqueIndex" json:"user_id"`
	PlaidItemID     string `gorm:"type:varchar(100)" json:"plaid_item_id"`
	StripeBankToken string `gorm:"type:varchar(100)" json:"-"`
	AccountMask     string `gorm:"type:varchar(10)" json:"account_mask"`
	InstitutionName string `gorm:"type:varchar(255)" json:"institution_name"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
