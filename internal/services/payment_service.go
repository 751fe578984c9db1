package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"community_capital/internal/allocator"
	"community_capital/internal/models"
	"community_capital/internal/notify"
	"community_capital/internal/queue"
	"community_capital/internal/storage"
)

// Validation failures surfaced to the initiating caller. Never retried.
var (
	ErrNoBankAccount   = errors.New("no linked bank account")
	ErrNothingOwed     = errors.New("participant owes nothing")
	ErrEventNotPayable = errors.New("event is not accepting payments")
	ErrNotParticipant  = errors.New("user is not a participant of this event")
)

// Charger is the payment processor boundary: one ACH debit per
// participant, one virtual card per settlement.
type Charger interface {
	CreateACHCharge(amountCents int64, bankToken, idempotencyKey string, metadata map[string]string) (*ChargeResult, error)
	CreateVirtualCard(amountCents int64, metadata map[string]string) (*VirtualCard, error)
}

// Locker scopes mutual exclusion to an event during the settlement check.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// RetryPolicy governs external charge attempts: transient failures are
// retried with exponential backoff, permanent failures never are.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// DefaultRetryPolicy is 3 attempts with backoff starting at 2 seconds,
// doubling each attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: 2 * time.Second}
}

// PaymentService drives each participant's payment attempt and triggers
// merchant settlement once every participant has paid. All collaborators
// are injected; the service holds no globals.
type PaymentService struct {
	store    storage.Store
	charger  Charger
	notifier notify.Notifier
	locks    Locker
	retry    RetryPolicy
}

func NewPaymentService(store storage.Store, charger Charger, notifier notify.Notifier, locks Locker, retry RetryPolicy) *PaymentService {
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryPolicy()
	}
	return &PaymentService{
		store:    store,
		charger:  charger,
		notifier: notifier,
		locks:    locks,
		retry:    retry,
	}
}

// ValidateCharge runs the synchronous preconditions for a charge request
// and moves the event into payment_pending. Called by the API before
// enqueueing; the worker revalidates, so a stale job is harmless.
func (s *PaymentService) ValidateCharge(ctx context.Context, eventID, userID uint) error {
	event, participants, shares, err := ComputeEventShares(ctx, s.store, eventID)
	if err != nil {
		return err
	}

	switch event.Status {
	case models.EventStatusItemsClaimed, models.EventStatusPaymentPending:
	default:
		return ErrEventNotPayable
	}

	if !isParticipant(participants, userID) {
		return ErrNotParticipant
	}

	if _, err := s.store.BankAccountByUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoBankAccount
		}
		return err
	}

	share := shares[userID]
	if share.Cents() <= 0 {
		return ErrNothingOwed
	}

	// First charge request moves the event forward; losing the race to
	// another participant is fine.
	if event.Status == models.EventStatusItemsClaimed {
		if _, err := s.store.UpdateEventStatus(ctx, eventID, models.EventStatusItemsClaimed, models.EventStatusPaymentPending); err != nil {
			return err
		}
	}

	return nil
}

// ProcessCharge is the worker entry point for one charge job. Exactly one
// external charge is issued per logical attempt: an existing processing or
// completed payment short-circuits without touching the processor, and the
// unique payment row backstops concurrent duplicates.
func (s *PaymentService) ProcessCharge(ctx context.Context, job queue.ChargeJob) error {
	event, err := s.store.EventByID(ctx, job.EventID)
	if err != nil {
		return err
	}
	if event.Status.IsTerminal() {
		slog.Info("skipping charge for finished event", "event_id", job.EventID, "status", event.Status)
		return nil
	}

	payment, err := s.reservePayment(ctx, job)
	if err != nil {
		return err
	}
	if payment == nil {
		// Already processing or completed elsewhere.
		return nil
	}

	// The participant enters processing before any precondition that can
	// fail the attempt, so the failure path is always processing -> failed.
	if err := s.store.UpdateParticipantPayment(ctx, job.EventID, job.UserID, models.PaymentStatusProcessing, nil); err != nil {
		return err
	}
	s.publish(ctx, notify.Message{
		Type:    notify.TypePaymentProcessing,
		EventID: job.EventID,
		UserID:  job.UserID,
	})

	bank, err := s.store.BankAccountByUser(ctx, job.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.releasePayment(ctx, job, payment, ErrNoBankAccount)
		}
		return err
	}

	result, err := s.chargeWithRetry(ctx, payment, bank.StripeBankToken, job)
	if err != nil {
		return s.releasePayment(ctx, job, payment, err)
	}

	if err := s.confirmPayment(ctx, job, payment, result.ChargeID); err != nil {
		return err
	}

	return s.SettleIfComplete(ctx, job.EventID)
}

// reservePayment creates (or revives) the participant's payment row in
// processing state before the external result is known. Returns nil when
// a charge is already in flight or done.
func (s *PaymentService) reservePayment(ctx context.Context, job queue.ChargeJob) (*models.Payment, error) {
	existing, err := s.store.PaymentByEventUser(ctx, job.EventID, job.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		switch existing.Status {
		case models.PaymentStatusProcessing, models.PaymentStatusCompleted:
			slog.Info("charge already in flight, skipping",
				"event_id", job.EventID, "user_id", job.UserID, "status", existing.Status)
			return nil, nil
		case models.PaymentStatusFailed:
			// Retry after failure reuses the row. A key left over from a
			// crashed attempt is kept so the processor replays the original
			// outcome; a definitive failure cleared it, so a fresh key means
			// a fresh charge.
			if existing.IdempotencyKey == "" {
				existing.IdempotencyKey = uuid.NewString()
				if err := s.store.SetPaymentIdempotencyKey(ctx, existing.ID, existing.IdempotencyKey); err != nil {
					return nil, err
				}
			}
			if err := s.store.UpdatePaymentStatus(ctx, existing.ID, models.PaymentStatusProcessing, ""); err != nil {
				return nil, err
			}
			existing.Status = models.PaymentStatusProcessing
			return existing, nil
		}
	}

	amount, err := s.participantAmount(ctx, job)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		EventID:        job.EventID,
		UserID:         job.UserID,
		Amount:         amount,
		Status:         models.PaymentStatusProcessing,
		IdempotencyKey: uuid.NewString(),
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, storage.ErrDuplicatePayment) {
			// Lost the insert race to a concurrent worker.
			return nil, nil
		}
		return nil, err
	}
	return payment, nil
}

func (s *PaymentService) participantAmount(ctx context.Context, job queue.ChargeJob) (decimal.Decimal, error) {
	_, participants, shares, err := ComputeEventShares(ctx, s.store, job.EventID)
	if err != nil {
		return decimal.Zero, err
	}
	if !isParticipant(participants, job.UserID) {
		return decimal.Zero, ErrNotParticipant
	}

	share := shares[job.UserID]
	if share.Cents() <= 0 {
		return decimal.Zero, ErrNothingOwed
	}
	return share.Total.Round(2), nil
}

// chargeWithRetry submits the ACH charge, retrying transient failures up
// to the policy's attempt budget with doubling backoff. Every attempt
// carries the payment's idempotency key, so an ambiguous failure (the
// request reached the processor, the response did not come back) cannot
// debit twice.
func (s *PaymentService) chargeWithRetry(ctx context.Context, payment *models.Payment, bankToken string, job queue.ChargeJob) (*ChargeResult, error) {
	metadata := map[string]string{
		"event_id": strconv.FormatUint(uint64(job.EventID), 10),
		"user_id":  strconv.FormatUint(uint64(job.UserID), 10),
	}
	cents := allocator.Share{Total: payment.Amount}.Cents()

	backoff := s.retry.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		result, err := s.charger.CreateACHCharge(cents, bankToken, payment.IdempotencyKey, metadata)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}
		if attempt == s.retry.MaxAttempts {
			break
		}

		slog.Warn("transient charge failure, backing off",
			"event_id", job.EventID, "user_id", job.UserID,
			"attempt", attempt, "backoff", backoff, "error", err)
		if err := sleepCtx(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("charge failed after %d attempts: %w", s.retry.MaxAttempts, lastErr)
}

func (s *PaymentService) confirmPayment(ctx context.Context, job queue.ChargeJob, payment *models.Payment, chargeID string) error {
	if err := s.store.UpdatePaymentStatus(ctx, payment.ID, models.PaymentStatusCompleted, chargeID); err != nil {
		return err
	}
	if err := s.store.UpdateParticipantPayment(ctx, job.EventID, job.UserID, models.PaymentStatusCompleted, &chargeID); err != nil {
		return err
	}

	s.publish(ctx, notify.Message{
		Type:    notify.TypePaymentCompleted,
		EventID: job.EventID,
		UserID:  job.UserID,
		Payload: map[string]interface{}{"charge_id": chargeID},
	})
	return nil
}

// releasePayment records a terminal charge failure. Only the failing
// participant is affected: the event stays open and everyone else can
// still pay. The idempotency key is cleared because the outcome is
// known: the next attempt is a new charge, not a replay.
func (s *PaymentService) releasePayment(ctx context.Context, job queue.ChargeJob, payment *models.Payment, cause error) error {
	if err := s.store.UpdatePaymentStatus(ctx, payment.ID, models.PaymentStatusFailed, ""); err != nil {
		return err
	}
	if err := s.store.SetPaymentIdempotencyKey(ctx, payment.ID, ""); err != nil {
		return err
	}
	if err := s.store.UpdateParticipantPayment(ctx, job.EventID, job.UserID, models.PaymentStatusFailed, nil); err != nil {
		return err
	}

	s.publish(ctx, notify.Message{
		Type:    notify.TypePaymentFailed,
		EventID: job.EventID,
		UserID:  job.UserID,
		Payload: map[string]interface{}{"reason": cause.Error()},
	})
	return fmt.Errorf("payment failed for user %d on event %d: %w", job.UserID, job.EventID, cause)
}

// CheckAllParticipantsPaid reports whether every current participant of
// the event has a completed payment, and the settlement total.
func (s *PaymentService) CheckAllParticipantsPaid(ctx context.Context, eventID uint) (bool, decimal.Decimal, error) {
	participants, err := s.store.ParticipantsByEvent(ctx, eventID)
	if err != nil {
		return false, decimal.Zero, err
	}
	if len(participants) == 0 {
		return false, decimal.Zero, nil
	}

	payments, err := s.store.PaymentsByEvent(ctx, eventID)
	if err != nil {
		return false, decimal.Zero, err
	}

	completed := make(map[uint]decimal.Decimal, len(payments))
	for _, p := range payments {
		if p.Status == models.PaymentStatusCompleted {
			completed[p.UserID] = p.Amount
		}
	}

	total := decimal.Zero
	for _, participant := range participants {
		amount, ok := completed[participant.UserID]
		if !ok {
			return false, decimal.Zero, nil
		}
		total = total.Add(amount)
	}
	return true, total, nil
}

// SettleIfComplete runs the fan-in check and, exactly once per event,
// issues the merchant settlement. The event-scoped lock keeps concurrent
// checks from interleaving; the settled-flag compare-and-set is the hard
// guarantee, so even two processes missing each other's lock cannot both
// settle. Losing callers no-op.
func (s *PaymentService) SettleIfComplete(ctx context.Context, eventID uint) error {
	lockKey := fmt.Sprintf("settlement:%d", eventID)
	locked, err := s.locks.AcquireLock(ctx, lockKey, time.Minute)
	if err != nil {
		return err
	}
	if !locked {
		return nil
	}
	defer func() {
		if err := s.locks.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
			slog.Warn("failed to release settlement lock", "event_id", eventID, "error", err)
		}
	}()

	allPaid, total, err := s.CheckAllParticipantsPaid(ctx, eventID)
	if err != nil {
		return err
	}
	if !allPaid {
		return nil
	}

	won, err := s.store.ClaimSettlement(ctx, eventID)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	event, err := s.store.EventByID(ctx, eventID)
	if err != nil {
		return err
	}

	card, err := s.charger.CreateVirtualCard(
		allocator.Share{Total: total}.Cents(),
		map[string]string{
			"event_id":      strconv.FormatUint(uint64(eventID), 10),
			"merchant_name": event.RestaurantName,
		},
	)
	if err != nil {
		// Merchant-side failure is event-fatal, unlike a participant's
		// charge failure.
		if failErr := s.store.FailEvent(ctx, eventID); failErr != nil {
			slog.Error("failed to mark event failed after settlement error",
				"event_id", eventID, "error", failErr)
		}
		s.publish(ctx, notify.Message{
			Type:    notify.TypeSettlementFailed,
			EventID: eventID,
			Payload: map[string]interface{}{"reason": err.Error()},
		})
		return fmt.Errorf("settlement failed for event %d: %w", eventID, err)
	}

	if err := s.store.CompleteEvent(ctx, eventID, card.ID); err != nil {
		return err
	}

	slog.Info("event settled",
		"event_id", eventID, "total", total, "virtual_card", card.ID)
	s.publish(ctx, notify.Message{
		Type:    notify.TypeSettlementCompleted,
		EventID: eventID,
		Payload: map[string]interface{}{
			"card_last4":   card.Last4,
			"total_amount": total.Round(2).String(),
		},
	})
	return nil
}

func (s *PaymentService) publish(ctx context.Context, msg notify.Message) {
	if err := s.notifier.Publish(ctx, msg); err != nil {
		slog.Warn("notification publish failed", "type", msg.Type, "error", err)
	}
}

func isParticipant(participants []models.Participant, userID uint) bool {
	for _, p := range participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
