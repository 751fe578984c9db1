package services

import (
	"context"
	"fmt"
	"log/slog"

	"community_capital/internal/models"
	"community_capital/internal/notify"
	"community_capital/internal/storage"
)

// EmailSender delivers one receipt email.
type EmailSender interface {
	Configured() bool
	SendEmail(to []string, subject, body string) error
}

// ReceiptService emails each participant their final breakdown once an
// event settles. Receipts are best effort: a delivery failure is logged
// and never affects the settlement itself.
type ReceiptService struct {
	store storage.Store
	email EmailSender
}

func NewReceiptService(store storage.Store, email EmailSender) *ReceiptService {
	return &ReceiptService{store: store, email: email}
}

// Run consumes the notification stream until the context is canceled,
// reacting only to settlement completions.
func (s *ReceiptService) Run(ctx context.Context, messages <-chan notify.Message) {
	if !s.email.Configured() {
		slog.Info("SMTP not configured, settlement receipts disabled")
		return
	}

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg.Type != notify.TypeSettlementCompleted {
				continue
			}
			if err := s.SendReceipts(ctx, msg.EventID); err != nil {
				slog.Error("failed to send settlement receipts", "event_id", msg.EventID, "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// SendReceipts emails every participant of the settled event who has an
// email address on file.
func (s *ReceiptService) SendReceipts(ctx context.Context, eventID uint) error {
	event, err := s.store.EventByID(ctx, eventID)
	if err != nil {
		return err
	}

	participants, err := s.store.ParticipantsByEvent(ctx, eventID)
	if err != nil {
		return err
	}

	for _, participant := range participants {
		user, err := s.store.UserByID(ctx, participant.UserID)
		if err != nil {
			slog.Warn("skipping receipt for unknown user", "user_id", participant.UserID, "error", err)
			continue
		}
		if user.Email == "" {
			continue
		}

		subject := fmt.Sprintf("Receipt for %s", event.Name)
		body := receiptBody(event, participant)
		if err := s.email.SendEmail([]string{user.Email}, subject, body); err != nil {
			slog.Warn("receipt delivery failed", "user_id", user.ID, "event_id", eventID, "error", err)
		}
	}
	return nil
}

func receiptBody(event *models.Event, p models.Participant) string {
	return fmt.Sprintf(
		"Your bill for %s at %s is settled.\r\n\r\n"+
			"Subtotal: $%s\r\n"+
			"Tax: $%s\r\n"+
			"Tip: $%s\r\n"+
			"Total charged: $%s\r\n",
		event.Name,
		event.RestaurantName,
		p.Subtotal.Round(2).StringFixed(2),
		p.TaxAmount.Round(2).StringFixed(2),
		p.TipAmount.Round(2).StringFixed(2),
		p.TotalOwed.Round(2).StringFixed(2),
	)
}
