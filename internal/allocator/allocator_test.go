package allocator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community_capital/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func participants(userIDs ...uint) []models.Participant {
	ps := make([]models.Participant, 0, len(userIDs))
	for _, id := range userIDs {
		ps = append(ps, models.Participant{UserID: id, EventID: 1})
	}
	return ps
}

func TestComputeShares_BurgerAndFries(t *testing.T) {
	event := &models.Event{
		Tax:           dec("1.50"),
		TipPercentage: 18,
		Items: []models.Item{
			{ID: 1, Name: "Burger", Price: dec("12.99"), Quantity: 1},
			{ID: 2, Name: "Fries", Price: dec("4.99"), Quantity: 1},
		},
	}
	claims := []models.Claim{
		{EventID: 1, UserID: 10, ItemIDs: []uint{1}},
		{EventID: 1, UserID: 20, ItemIDs: []uint{2}},
	}

	shares := ComputeShares(event, claims, participants(10, 20))
	require.Len(t, shares, 2)

	p1 := shares[10]
	assert.True(t, p1.Subtotal.Equal(dec("12.99")), "p1 subtotal = %s", p1.Subtotal)
	// 1.50 * 12.99 / 17.98
	assert.InDelta(t, 1.0836, p1.Tax.InexactFloat64(), 0.001)
	assert.True(t, p1.Tip.Equal(dec("2.3382")), "p1 tip = %s", p1.Tip)
	assert.InDelta(t, 16.41, p1.Total.Round(2).InexactFloat64(), 0.005)

	p2 := shares[20]
	assert.True(t, p2.Subtotal.Equal(dec("4.99")), "p2 subtotal = %s", p2.Subtotal)
	// 4.99 + 1.50*4.99/17.98 + 4.99*0.18
	assert.InDelta(t, 6.30, p2.Total.Round(2).InexactFloat64(), 0.005)

	// Sum of totals covers the whole bill: subtotal + tax + 18% tip.
	wantGrand := dec("17.98").Add(dec("1.50")).Add(dec("17.98").Mul(dec("0.18")))
	grand := p1.Total.Add(p2.Total)
	assert.InDelta(t, wantGrand.InexactFloat64(), grand.InexactFloat64(), 0.01)
}

func TestComputeShares_TableSharedSplitsEvenly(t *testing.T) {
	event := &models.Event{
		Tax:           decimal.Zero,
		TipPercentage: 0,
		Items: []models.Item{
			{ID: 1, Name: "Nachos", Price: dec("15.00"), Quantity: 1, IsSharedByTable: true},
		},
	}

	shares := ComputeShares(event, nil, participants(1, 2, 3))
	require.Len(t, shares, 3)

	each := dec("15.00").Div(decimal.NewFromInt(3))
	for userID, share := range shares {
		assert.True(t, share.Subtotal.Equal(each), "user %d subtotal = %s", userID, share.Subtotal)
	}
}

func TestComputeShares_TableSharedIgnoresClaims(t *testing.T) {
	event := &models.Event{
		Items: []models.Item{
			{ID: 1, Price: dec("9.00"), Quantity: 1, IsSharedByTable: true},
		},
	}
	// One participant claims the shared item; the split is unaffected.
	claims := []models.Claim{{UserID: 1, ItemIDs: []uint{1}}}

	shares := ComputeShares(event, claims, participants(1, 2, 3))
	for _, share := range shares {
		assert.True(t, share.Subtotal.Equal(dec("3")), "subtotal = %s", share.Subtotal)
	}
}

func TestComputeShares_UnclaimedItemAllocatedToNobody(t *testing.T) {
	event := &models.Event{
		Tax:           dec("2.00"),
		TipPercentage: 20,
		Items: []models.Item{
			{ID: 1, Price: dec("10.00"), Quantity: 1},
			{ID: 2, Price: dec("10.00"), Quantity: 1},
		},
	}
	claims := []models.Claim{{UserID: 1, ItemIDs: []uint{1}}}

	shares := ComputeShares(event, claims, participants(1, 2))

	sum := decimal.Zero
	for _, share := range shares {
		sum = sum.Add(share.Subtotal)
	}
	// Item 2 is unclaimed: participant subtotals sum below the event
	// subtotal, which is accepted behavior.
	assert.True(t, sum.LessThan(event.Subtotal()), "sum %s, event subtotal %s", sum, event.Subtotal())
	assert.True(t, shares[1].Subtotal.Equal(dec("10.00")))
	assert.True(t, shares[2].Subtotal.IsZero())
	// Tax remains proportional to the claimed subtotal only.
	assert.True(t, shares[1].Tax.Equal(dec("1.00")), "tax = %s", shares[1].Tax)
}

func TestComputeShares_OverlappingClaimsSplitEvenly(t *testing.T) {
	event := &models.Event{
		Items: []models.Item{
			{ID: 1, Price: dec("10.00"), Quantity: 1},
		},
	}
	claims := []models.Claim{
		{UserID: 1, ItemIDs: []uint{1}},
		{UserID: 2, ItemIDs: []uint{1}},
	}

	shares := ComputeShares(event, claims, participants(1, 2))
	assert.True(t, shares[1].Subtotal.Equal(dec("5")))
	assert.True(t, shares[2].Subtotal.Equal(dec("5")))
}

func TestComputeShares_QuantityMultipliesPrice(t *testing.T) {
	event := &models.Event{
		Items: []models.Item{
			{ID: 1, Price: dec("3.50"), Quantity: 2},
		},
	}
	claims := []models.Claim{{UserID: 1, ItemIDs: []uint{1}}}

	shares := ComputeShares(event, claims, participants(1))
	assert.True(t, shares[1].Subtotal.Equal(dec("7.00")), "subtotal = %s", shares[1].Subtotal)
}

func TestComputeShares_ZeroSubtotalYieldsZeroTax(t *testing.T) {
	event := &models.Event{
		Tax:           dec("5.00"),
		TipPercentage: 18,
	}

	shares := ComputeShares(event, nil, participants(1))
	require.Len(t, shares, 1)
	assert.True(t, shares[1].Tax.IsZero())
	assert.True(t, shares[1].Total.IsZero())
}

func TestComputeShares_TotalIsSumOfParts(t *testing.T) {
	event := &models.Event{
		Tax:           dec("3.37"),
		TipPercentage: 18,
		Items: []models.Item{
			{ID: 1, Price: dec("12.99"), Quantity: 1},
			{ID: 2, Price: dec("4.99"), Quantity: 3},
			{ID: 3, Price: dec("21.10"), Quantity: 1, IsSharedByTable: true},
		},
	}
	claims := []models.Claim{
		{UserID: 1, ItemIDs: []uint{1, 2}},
		{UserID: 2, ItemIDs: []uint{2}},
	}

	shares := ComputeShares(event, claims, participants(1, 2, 3))
	for userID, share := range shares {
		want := share.Subtotal.Add(share.Tax).Add(share.Tip)
		assert.True(t, share.Total.Equal(want), "user %d: total %s != %s", userID, share.Total, want)
	}

	// Deterministic: recomputation yields identical results.
	again := ComputeShares(event, claims, participants(1, 2, 3))
	for userID, share := range shares {
		assert.True(t, share.Total.Equal(again[userID].Total))
	}
}

func TestComputeShares_ReplacedClaimDropsOldItems(t *testing.T) {
	event := &models.Event{
		Items: []models.Item{
			{ID: 1, Price: dec("10.00"), Quantity: 1},
			{ID: 2, Price: dec("6.00"), Quantity: 1},
		},
	}

	before := ComputeShares(event, []models.Claim{{UserID: 1, ItemIDs: []uint{1, 2}}}, participants(1))
	assert.True(t, before[1].Subtotal.Equal(dec("16.00")))

	// The upsert replaced the claim set entirely; no stale accumulation.
	after := ComputeShares(event, []models.Claim{{UserID: 1, ItemIDs: []uint{2}}}, participants(1))
	assert.True(t, after[1].Subtotal.Equal(dec("6.00")), "subtotal = %s", after[1].Subtotal)
}

func TestComputeShares_IgnoresClaimsFromNonParticipants(t *testing.T) {
	event := &models.Event{
		Items: []models.Item{{ID: 1, Price: dec("10.00"), Quantity: 1}},
	}
	claims := []models.Claim{
		{UserID: 1, ItemIDs: []uint{1}},
		{UserID: 99, ItemIDs: []uint{1}}, // left the event
	}

	shares := ComputeShares(event, claims, participants(1))
	assert.True(t, shares[1].Subtotal.Equal(dec("10.00")))
}

func TestShare_Cents(t *testing.T) {
	share := Share{Total: dec("16.4118")}
	assert.Equal(t, int64(1641), share.Cents())

	share = Share{Total: dec("5.575")}
	assert.Equal(t, int64(558), share.Cents())
}
