// Package storage defines the persistence interface for events, claims,
// participants and payments. The postgres subpackage implements it; tests
// substitute in-memory fakes.
package storage

import (
	"context"
	"errors"
	"time"

	"community_capital/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicatePayment is returned when a payment row already exists
	// for the (event, user) pair. Callers treat it as "charge already in
	// flight", not as a failure.
	ErrDuplicatePayment = errors.New("payment already exists for participant")
)

// Store is the persistence boundary for the API and the payment worker.
// Event status moves use compare-and-set semantics so concurrent callers
// race safely: the update applies only if the row is still in the expected
// state.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	UserByPhone(ctx context.Context, phone string) (*models.User, error)
	UserByID(ctx context.Context, id uint) (*models.User, error)

	// Bank accounts
	SaveBankAccount(ctx context.Context, account *models.BankAccount) error
	BankAccountByUser(ctx context.Context, userID uint) (*models.BankAccount, error)

	// Events
	CreateEvent(ctx context.Context, event *models.Event) error
	EventByID(ctx context.Context, id uint) (*models.Event, error)
	EventByCode(ctx context.Context, code string) (*models.Event, error)

	// UpdateEventStatus moves the event from `from` to `to` and reports
	// whether this call won the move.
	UpdateEventStatus(ctx context.Context, eventID uint, from, to models.EventStatus) (bool, error)

	// ClaimSettlement flips the event's settled flag false->true and
	// reports whether this call won. Exactly one caller per event ever
	// wins.
	ClaimSettlement(ctx context.Context, eventID uint) (bool, error)

	// CompleteEvent records the settlement reference and moves the event
	// to completed.
	CompleteEvent(ctx context.Context, eventID uint, virtualCardID string) error

	// FailEvent moves the event to failed.
	FailEvent(ctx context.Context, eventID uint) error

	// Participants
	AddParticipant(ctx context.Context, participant *models.Participant) error
	ParticipantsByEvent(ctx context.Context, eventID uint) ([]models.Participant, error)
	ParticipantByEventUser(ctx context.Context, eventID, userID uint) (*models.Participant, error)
	UpdateParticipantShares(ctx context.Context, participants []models.Participant) error
	UpdateParticipantPayment(ctx context.Context, eventID, userID uint, status models.PaymentStatus, intentID *string) error

	// Claims
	UpsertClaim(ctx context.Context, eventID, userID uint, itemIDs []uint) error
	ClaimsByEvent(ctx context.Context, eventID uint) ([]models.Claim, error)

	// Payments
	CreatePayment(ctx context.Context, payment *models.Payment) error
	PaymentByEventUser(ctx context.Context, eventID, userID uint) (*models.Payment, error)
	PaymentsByEvent(ctx context.Context, eventID uint) ([]models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID uint, status models.PaymentStatus, chargeID string) error

	// SetPaymentIdempotencyKey stores (or clears, with "") the processor
	// idempotency key for the payment.
	SetPaymentIdempotencyKey(ctx context.Context, paymentID uint, key string) error

	// StaleReservedPayments returns payments still in processing with no
	// charge id created before the cutoff: reserved but never submitted,
	// typically because a worker died between the two phases.
	StaleReservedPayments(ctx context.Context, cutoff time.Time) ([]models.Payment, error)
}
