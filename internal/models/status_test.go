package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to EventStatus
		allowed  bool
	}{
		{EventStatusDraft, EventStatusAwaitingParticipants, true},
		{EventStatusAwaitingParticipants, EventStatusItemsClaimed, true},
		{EventStatusItemsClaimed, EventStatusPaymentPending, true},
		{EventStatusPaymentPending, EventStatusCompleted, true},
		{EventStatusPaymentPending, EventStatusFailed, true},

		// No skipping forward.
		{EventStatusDraft, EventStatusItemsClaimed, false},
		{EventStatusAwaitingParticipants, EventStatusPaymentPending, false},

		// No moving backward.
		{EventStatusItemsClaimed, EventStatusAwaitingParticipants, false},
		{EventStatusPaymentPending, EventStatusItemsClaimed, false},

		// Terminal states never move.
		{EventStatusCompleted, EventStatusFailed, false},
		{EventStatusFailed, EventStatusPaymentPending, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestEventStatusIsTerminal(t *testing.T) {
	assert.True(t, EventStatusCompleted.IsTerminal())
	assert.True(t, EventStatusFailed.IsTerminal())
	assert.False(t, EventStatusDraft.IsTerminal())
	assert.False(t, EventStatusPaymentPending.IsTerminal())
}

func TestPaymentStatusTransitions(t *testing.T) {
	assert.True(t, PaymentStatusPending.CanTransitionTo(PaymentStatusProcessing))
	assert.True(t, PaymentStatusProcessing.CanTransitionTo(PaymentStatusCompleted))
	assert.True(t, PaymentStatusProcessing.CanTransitionTo(PaymentStatusFailed))
	assert.True(t, PaymentStatusFailed.CanTransitionTo(PaymentStatusProcessing))

	// Completed payments are immutable.
	assert.False(t, PaymentStatusCompleted.CanTransitionTo(PaymentStatusProcessing))
	assert.False(t, PaymentStatusCompleted.CanTransitionTo(PaymentStatusFailed))
	assert.False(t, PaymentStatusPending.CanTransitionTo(PaymentStatusCompleted))
}

func TestClaimClaims(t *testing.T) {
	claim := Claim{ItemIDs: []uint{1, 3}}
	assert.True(t, claim.Claims(1))
	assert.True(t, claim.Claims(3))
	assert.False(t, claim.Claims(2))
}
