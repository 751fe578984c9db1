package models

import (
	"time"

	"gorm.io/gorm"
)

// Claim is a participant's declaration of which items they are responsible
// for. One row per (event, user); upserting replaces the whole item set,
// so a user's latest claim call always wins over their earlier ones.
type Claim struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	EventID   uint      `gorm:"index;uniqueIndex:idx_claims_event_user" json:"event_id"`
	UserID    uint      `gorm:"index;uniqueIndex:idx_claims_event_user" json:"user_id"`
	ItemIDs   []uint    `gorm:"serializer:json" json:"item_ids"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// Claims reports whether the claim covers the given item.
func (c Claim) Claims(itemID uint) bool {
	for _, id := range c.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}
