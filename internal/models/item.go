package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Item is a single line on the parsed receipt. Who claimed it lives in
// Claim rows, not here; IsSharedByTable marks items split evenly across
// all participants regardless of claims.
type Item struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	EventID         uint            `gorm:"index" json:"event_id"`
	Name            string          `gorm:"type:varchar(255)" json:"name"`
	Price           decimal.Decimal `gorm:"type:decimal(15,2)" json:"price"`
	Quantity        int             `gorm:"default:1" json:"quantity"`
	IsSharedByTable bool            `gorm:"default:false" json:"is_shared_by_table"`
}

// LineAmount returns unit price times quantity.
func (i Item) LineAmount() decimal.Decimal {
	qty := i.Quantity
	if qty < 1 {
		qty = 1
	}
	return i.Price.Mul(decimal.NewFromInt(int64(qty)))
}
