package postgres

import (
	"context"

	"gorm.io/gorm"

	"community_capital/internal/models"
)

// CreateEvent persists the event together with its items.
func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	return s.db.WithContext(ctx).Create(event).Error
}

// EventByID fetches an event with its items preloaded.
func (s *Store) EventByID(ctx context.Context, id uint) (*models.Event, error) {
	var event models.Event
	err := s.db.WithContext(ctx).Preload("Items").First(&event, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &event, nil
}

// EventByCode fetches an event by its join code.
func (s *Store) EventByCode(ctx context.Context, code string) (*models.Event, error) {
	var event models.Event
	err := s.db.WithContext(ctx).Preload("Items").Where("code = ?", code).First(&event).Error
	if err != nil {
		return nil, translate(err)
	}
	return &event, nil
}

// UpdateEventStatus applies a compare-and-set status move. The update only
// lands if the row is still in `from`, so concurrent movers race safely
// and the loser simply reports false.
func (s *Store) UpdateEventStatus(ctx context.Context, eventID uint, from, to models.EventStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ? AND status = ?", eventID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimSettlement flips the settled flag false->true. The WHERE clause is
// the single-winner guard: only one concurrent caller ever sees a row
// affected.
func (s *Store) ClaimSettlement(ctx context.Context, eventID uint) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ? AND settled = ?", eventID, false).
		Update("settled", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CompleteEvent records the virtual card reference and marks the event
// completed.
func (s *Store) CompleteEvent(ctx context.Context, eventID uint, virtualCardID string) error {
	return s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"virtual_card_id": virtualCardID,
			"status":          models.EventStatusCompleted,
		}).Error
}

// FailEvent marks the event failed.
func (s *Store) FailEvent(ctx context.Context, eventID uint) error {
	return s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", eventID).
		Update("status", models.EventStatusFailed).Error
}

// AddParticipant inserts the membership row. The unique (event, user)
// index makes joining idempotent; a second join is a no-op.
func (s *Store) AddParticipant(ctx context.Context, participant *models.Participant) error {
	return s.db.WithContext(ctx).
		Where(models.Participant{EventID: participant.EventID, UserID: participant.UserID}).
		Attrs(models.Participant{UserName: participant.UserName, PaymentStatus: models.PaymentStatusPending}).
		FirstOrCreate(participant).Error
}

// ParticipantsByEvent returns all current participants of the event.
func (s *Store) ParticipantsByEvent(ctx context.Context, eventID uint) ([]models.Participant, error) {
	var participants []models.Participant
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id").Find(&participants).Error
	return participants, err
}

// ParticipantByEventUser returns one participant row.
func (s *Store) ParticipantByEventUser(ctx context.Context, eventID, userID uint) (*models.Participant, error) {
	var participant models.Participant
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&participant).Error
	if err != nil {
		return nil, translate(err)
	}
	return &participant, nil
}

// UpdateParticipantShares writes the recomputed money breakdowns.
func (s *Store) UpdateParticipantShares(ctx context.Context, participants []models.Participant) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range participants {
			p := &participants[i]
			err := tx.Model(&models.Participant{}).
				Where("event_id = ? AND user_id = ?", p.EventID, p.UserID).
				Updates(map[string]interface{}{
					"subtotal":   p.Subtotal,
					"tax_amount": p.TaxAmount,
					"tip_amount": p.TipAmount,
					"total_owed": p.TotalOwed,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateParticipantPayment moves the participant's payment status and
// optionally records the external intent reference.
func (s *Store) UpdateParticipantPayment(ctx context.Context, eventID, userID uint, status models.PaymentStatus, intentID *string) error {
	updates := map[string]interface{}{"payment_status": status}
	if intentID != nil {
		updates["payment_intent_id"] = *intentID
	}
	return s.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Updates(updates).Error
}
