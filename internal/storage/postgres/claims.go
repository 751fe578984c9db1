package postgres

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"community_capital/internal/models"
)

// UpsertClaim replaces the claimed-item set for the (event, user) pair.
// The replacement is whole, not additive: a user's claim call always
// overwrites whatever they claimed before. Rows for different users are
// independent, so concurrent claims by different users never clobber each
// other; same-user races are last write wins.
func (s *Store) UpsertClaim(ctx context.Context, eventID, userID uint, itemIDs []uint) error {
	claim := models.Claim{
		EventID:   eventID,
		UserID:    userID,
		ItemIDs:   itemIDs,
		ClaimedAt: time.Now(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"item_ids", "claimed_at", "updated_at"}),
		}).
		Create(&claim).Error
}

// ClaimsByEvent returns all claims for the event.
func (s *Store) ClaimsByEvent(ctx context.Context, eventID uint) ([]models.Claim, error) {
	var claims []models.Claim
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Find(&claims).Error
	return claims, err
}
