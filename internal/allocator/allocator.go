// Package allocator computes each participant's share of an event's bill.
// All functions are pure: same inputs always produce the same breakdown,
// and nothing here touches storage or providers.
package allocator

import (
	"github.com/shopspring/decimal"

	"community_capital/internal/models"
)

var oneHundred = decimal.NewFromInt(100)

// Share is one participant's breakdown of the bill. Amounts keep full
// precision; round only at presentation or charge time via Round.
type Share struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Tip      decimal.Decimal `json:"tip"`
	Total    decimal.Decimal `json:"total"`
}

// Round returns the share rounded to cents.
func (s Share) Round() Share {
	return Share{
		Subtotal: s.Subtotal.Round(2),
		Tax:      s.Tax.Round(2),
		Tip:      s.Tip.Round(2),
		Total:    s.Total.Round(2),
	}
}

// Cents returns the total owed in cents, rounded, for the charge request.
func (s Share) Cents() int64 {
	return s.Total.Mul(oneHundred).Round(0).IntPart()
}

// ComputeShares maps each participant's user ID to their share of the
// event given the current claims.
//
// Allocation rules:
//   - A table-shared item's line amount is split evenly across all current
//     participants; its claims are ignored.
//   - Any other item's line amount is split evenly among its claimants.
//     An item claimed by nobody contributes to the event subtotal but to
//     no participant's share, so the sum of participant subtotals can be
//     less than the event subtotal.
//   - Tax is allocated proportionally to each participant's subtotal; tip
//     is tipPercentage of the participant's subtotal.
func ComputeShares(event *models.Event, claims []models.Claim, participants []models.Participant) map[uint]Share {
	shares := make(map[uint]Share, len(participants))
	if len(participants) == 0 {
		return shares
	}

	subtotals := make(map[uint]decimal.Decimal, len(participants))
	for _, p := range participants {
		subtotals[p.UserID] = decimal.Zero
	}

	participantCount := decimal.NewFromInt(int64(len(participants)))

	for _, item := range event.Items {
		amount := item.LineAmount()

		if item.IsSharedByTable {
			perHead := amount.Div(participantCount)
			for userID := range subtotals {
				subtotals[userID] = subtotals[userID].Add(perHead)
			}
			continue
		}

		claimants := claimantsOf(item.ID, claims, subtotals)
		if len(claimants) == 0 {
			continue
		}

		perClaimant := amount.Div(decimal.NewFromInt(int64(len(claimants))))
		for _, userID := range claimants {
			subtotals[userID] = subtotals[userID].Add(perClaimant)
		}
	}

	eventSubtotal := event.Subtotal()
	tipRate := decimal.NewFromInt(int64(event.TipPercentage)).Div(oneHundred)

	for userID, subtotal := range subtotals {
		var taxShare decimal.Decimal
		if eventSubtotal.IsPositive() {
			taxShare = subtotal.Div(eventSubtotal).Mul(event.Tax)
		}
		tipShare := subtotal.Mul(tipRate)

		shares[userID] = Share{
			Subtotal: subtotal,
			Tax:      taxShare,
			Tip:      tipShare,
			Total:    subtotal.Add(taxShare).Add(tipShare),
		}
	}

	return shares
}

// claimantsOf returns the users claiming the item, restricted to current
// participants so claims from users who left the event are ignored.
func claimantsOf(itemID uint, claims []models.Claim, participants map[uint]decimal.Decimal) []uint {
	var claimants []uint
	for _, claim := range claims {
		if _, ok := participants[claim.UserID]; !ok {
			continue
		}
		if claim.Claims(itemID) {
			claimants = append(claimants, claim.UserID)
		}
	}
	return claimants
}
