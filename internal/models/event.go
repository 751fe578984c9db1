package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EventStatus represents the lifecycle state of an event
type EventStatus string

const (
	EventStatusDraft                EventStatus = "draft"
	EventStatusAwaitingParticipants EventStatus = "awaiting_participants"
	EventStatusItemsClaimed         EventStatus = "items_claimed"
	EventStatusPaymentPending       EventStatus = "payment_pending"
	EventStatusCompleted            EventStatus = "completed"
	EventStatusFailed               EventStatus = "failed"
)

// eventTransitions defines the forward-only lifecycle. Terminal states have
// no outgoing edges.
var eventTransitions = map[EventStatus][]EventStatus{
	EventStatusDraft:                {EventStatusAwaitingParticipants},
	EventStatusAwaitingParticipants: {EventStatusItemsClaimed},
	EventStatusItemsClaimed:         {EventStatusPaymentPending},
	EventStatusPaymentPending:       {EventStatusCompleted, EventStatusFailed},
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle transition.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	for _, allowed := range eventTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transitions leave this state.
func (s EventStatus) IsTerminal() bool {
	return len(eventTransitions[s]) == 0
}

// Event represents one bill-splitting session tied to a single restaurant
// visit. Participants join by Code, claim items, and pay individually;
// once everyone has paid the event settles to the merchant via a virtual
// card and completes.
type Event struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	CreatorID      uint            `gorm:"index" json:"creator_id"`
	Name           string          `gorm:"type:varchar(255)" json:"name"`
	RestaurantName string          `gorm:"type:varchar(255)" json:"restaurant_name"`
	Code           string          `gorm:"type:varchar(10);uniqueIndex" json:"code"`
	Tax            decimal.Decimal `gorm:"type:decimal(15,2)" json:"tax"`
	TipPercentage  int             `json:"tip_percentage"`
	Status         EventStatus     `gorm:"type:varchar(30);default:'draft';index" json:"status"`

	// Settled is the single-winner settlement guard: flipped false->true by
	// a compare-and-set before the merchant payment is issued.
	Settled       bool    `gorm:"default:false" json:"settled"`
	VirtualCardID *string `gorm:"type:varchar(100)" json:"virtual_card_id,omitempty"`

	// Relationships
	Items        []Item        `gorm:"foreignKey:EventID" json:"items,omitempty"`
	Participants []Participant `gorm:"foreignKey:EventID" json:"participants,omitempty"`
	Creator      User          `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
}

// Subtotal returns the sum of all item line amounts.
func (e *Event) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range e.Items {
		total = total.Add(item.LineAmount())
	}
	return total
}
