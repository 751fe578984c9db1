package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"community_capital/internal/models"
	"community_capital/internal/storage"
)

// CreatePayment inserts the payment reservation. The unique (event, user)
// index backstops the orchestrator's idempotency check: a concurrent
// duplicate insert surfaces as ErrDuplicatePayment instead of a second
// real-money charge.
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(payment).Error
	if err != nil {
		return err
	}
	if payment.ID == 0 {
		return storage.ErrDuplicatePayment
	}
	return nil
}

// PaymentByEventUser returns the participant's payment row, if any.
func (s *Store) PaymentByEventUser(ctx context.Context, eventID, userID uint) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// PaymentsByEvent returns all payment rows for the event.
func (s *Store) PaymentsByEvent(ctx context.Context, eventID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Find(&payments).Error
	return payments, err
}

// UpdatePaymentStatus confirms or releases a reservation.
func (s *Store) UpdatePaymentStatus(ctx context.Context, paymentID uint, status models.PaymentStatus, chargeID string) error {
	updates := map[string]interface{}{"status": status}
	if chargeID != "" {
		updates["stripe_charge_id"] = chargeID
	}
	return s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Updates(updates).Error
}

// SetPaymentIdempotencyKey stores or clears the processor idempotency key.
func (s *Store) SetPaymentIdempotencyKey(ctx context.Context, paymentID uint, key string) error {
	return s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Update("idempotency_key", key).Error
}

// StaleReservedPayments finds reservations that never reached submission:
// still processing, no charge id, created before the cutoff.
func (s *Store) StaleReservedPayments(ctx context.Context, cutoff time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("status = ? AND (stripe_charge_id IS NULL OR stripe_charge_id = '') AND created_at < ?",
			models.PaymentStatusProcessing, cutoff).
		Find(&payments).Error
	return payments, err
}
