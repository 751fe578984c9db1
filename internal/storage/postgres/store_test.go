package postgres

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"community_capital/internal/models"
	"community_capital/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.BankAccount{},
		&models.Event{},
		&models.Item{},
		&models.Participant{},
		&models.Claim{},
		&models.Payment{},
	))
	return New(db)
}

func TestSaveBankAccount_ReplacesOnRelink(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := &models.BankAccount{
		UserID:          1,
		PlaidItemID:     "item_old",
		StripeBankToken: "btok_old",
		AccountMask:     "1111",
	}
	require.NoError(t, store.SaveBankAccount(ctx, first))

	second := &models.BankAccount{
		UserID:          1,
		PlaidItemID:     "item_new",
		StripeBankToken: "btok_new",
		AccountMask:     "2222",
	}
	require.NoError(t, store.SaveBankAccount(ctx, second), "re-linking must replace the old account")

	got, err := store.BankAccountByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "item_new", got.PlaidItemID)
	assert.Equal(t, "btok_new", got.StripeBankToken)
	assert.Equal(t, "2222", got.AccountMask)
}

func TestUpdateEventStatus_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	event := &models.Event{Code: "AAA111", Status: models.EventStatusDraft}
	require.NoError(t, store.CreateEvent(ctx, event))

	won, err := store.UpdateEventStatus(ctx, event.ID, models.EventStatusDraft, models.EventStatusAwaitingParticipants)
	require.NoError(t, err)
	assert.True(t, won)

	// The row moved on; replaying the same CAS loses.
	won, err = store.UpdateEventStatus(ctx, event.ID, models.EventStatusDraft, models.EventStatusAwaitingParticipants)
	require.NoError(t, err)
	assert.False(t, won)

	// Illegal transitions never touch the row.
	won, err = store.UpdateEventStatus(ctx, event.ID, models.EventStatusAwaitingParticipants, models.EventStatusCompleted)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestClaimSettlement_SingleWinner(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	event := &models.Event{Code: "BBB222", Status: models.EventStatusPaymentPending}
	require.NoError(t, store.CreateEvent(ctx, event))

	won, err := store.ClaimSettlement(ctx, event.ID)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = store.ClaimSettlement(ctx, event.ID)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestCreatePayment_DuplicateSurfacesSentinel(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := &models.Payment{EventID: 1, UserID: 2, Amount: decimal.NewFromInt(10), Status: models.PaymentStatusProcessing}
	require.NoError(t, store.CreatePayment(ctx, first))

	dup := &models.Payment{EventID: 1, UserID: 2, Amount: decimal.NewFromInt(10), Status: models.PaymentStatusProcessing}
	err := store.CreatePayment(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrDuplicatePayment)
}

func TestUpsertClaim_ReplacesItemSet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.UpsertClaim(ctx, 1, 2, []uint{1, 2}))
	require.NoError(t, store.UpsertClaim(ctx, 1, 2, []uint{3}))

	claims, err := store.ClaimsByEvent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, []uint{3}, claims[0].ItemIDs)
}
