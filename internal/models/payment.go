package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment records one participant's charge for one event. Created in
// `processing` when the charge is reserved, before the external result is
// known; a row with an empty StripeChargeID was reserved but never
// submitted. One payment per (event, user); never deleted.
type Payment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	EventID        uint            `gorm:"index;uniqueIndex:idx_payments_event_user" json:"event_id"`
	UserID         uint            `gorm:"index;uniqueIndex:idx_payments_event_user" json:"user_id"`
	StripeChargeID string          `gorm:"type:varchar(100)" json:"stripe_charge_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount"`
	Status         PaymentStatus   `gorm:"type:varchar(20)" json:"status"`

	// IdempotencyKey is sent to the processor with the charge. It survives
	// a crashed attempt so a resubmission replays the original outcome
	// instead of moving money twice; it is cleared on a definitive failure
	// so a deliberate retry issues a fresh charge.
	IdempotencyKey string `gorm:"type:varchar(64)" json:"-"`

	// Relationships
	Event Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
	User  User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
