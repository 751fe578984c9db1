package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus represents the per-participant payment state
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// paymentTransitions: pending -> processing -> completed | failed, with
// failed -> processing permitted on retry. Completed is terminal.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusFailed:     {PaymentStatusProcessing},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Participant represents a user's membership in one event. The money
// fields are derived: recomputed from claims on every change, never
// mutated independently.
type Participant struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	EventID  uint   `gorm:"index;uniqueIndex:idx_participants_event_user" json:"event_id"`
	UserID   uint   `gorm:"index;uniqueIndex:idx_participants_event_user" json:"user_id"`
	UserName string `gorm:"type:varchar(255)" json:"user_name"`

	Subtotal  decimal.Decimal `gorm:"type:decimal(15,4)" json:"subtotal"`
	TaxAmount decimal.Decimal `gorm:"type:decimal(15,4)" json:"tax_amount"`
	TipAmount decimal.Decimal `gorm:"type:decimal(15,4)" json:"tip_amount"`
	TotalOwed decimal.Decimal `gorm:"type:decimal(15,4)" json:"total_owed"`

	PaymentStatus   PaymentStatus `gorm:"type:varchar(20);default:'pending'" json:"payment_status"`
	PaymentIntentID *string       `gorm:"type:varchar(100)" json:"payment_intent_id,omitempty"`

	// Relationships
	Event Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
	User  User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
