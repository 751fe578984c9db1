package services

import (
	"context"

	"community_capital/internal/allocator"
	"community_capital/internal/models"
	"community_capital/internal/storage"
)

// ComputeEventShares loads the event, its claims and participants, and
// returns every participant's current share. This is the single path from
// stored claims to money: handlers and the payment worker both go through
// it so a participant's breakdown can never drift between surfaces.
func ComputeEventShares(ctx context.Context, store storage.Store, eventID uint) (*models.Event, []models.Participant, map[uint]allocator.Share, error) {
	event, err := store.EventByID(ctx, eventID)
	if err != nil {
		return nil, nil, nil, err
	}

	claims, err := store.ClaimsByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, nil, err
	}

	participants, err := store.ParticipantsByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, nil, err
	}

	shares := allocator.ComputeShares(event, claims, participants)
	return event, participants, shares, nil
}
