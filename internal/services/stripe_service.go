package services

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// TransientError marks a provider failure worth retrying (timeouts, 5xx,
// rate limits). Anything else is permanent and must not be retried.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether the error is retriable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ChargeResult is the outcome of a submitted ACH charge.
type ChargeResult struct {
	ChargeID string
}

// VirtualCard is the merchant settlement instrument.
type VirtualCard struct {
	ID    string
	Last4 string
}

// StripeService wraps the Stripe API for ACH charges and Issuing virtual
// cards.
type StripeService struct {
	api          *client.API
	cardholderID string
}

// NewStripeService creates a Stripe client from the secret key.
func NewStripeService(secretKey, cardholderID string) *StripeService {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeService{
		api:          api,
		cardholderID: cardholderID,
	}
}

// CreateACHCharge submits one ACH debit against the given bank token.
// amountCents is the charge amount in cents. The idempotency key makes a
// resubmission of the same logical charge replay Stripe's original
// outcome rather than debit again. Failures are classified so the
// orchestrator's retry policy only retries what is worth retrying.
func (s *StripeService) CreateACHCharge(amountCents int64, bankToken, idempotencyKey string, metadata map[string]string) (*ChargeResult, error) {
	params := &stripe.ChargeParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	if err := params.SetSource(bankToken); err != nil {
		return nil, fmt.Errorf("invalid charge source: %w", err)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	ch, err := s.api.Charges.New(params)
	if err != nil {
		return nil, classify(err)
	}

	return &ChargeResult{ChargeID: ch.ID}, nil
}

// CreateVirtualCard creates an Issuing virtual card capped at the
// settlement amount for the merchant payment.
func (s *StripeService) CreateVirtualCard(amountCents int64, metadata map[string]string) (*VirtualCard, error) {
	params := &stripe.IssuingCardParams{
		Cardholder: stripe.String(s.cardholderID),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		Type:       stripe.String(string(stripe.IssuingCardTypeVirtual)),
		Status:     stripe.String(string(stripe.IssuingCardStatusActive)),
		SpendingControls: &stripe.IssuingCardSpendingControlsParams{
			SpendingLimits: []*stripe.IssuingCardSpendingControlsSpendingLimitParams{
				{
					Amount:   stripe.Int64(amountCents),
					Interval: stripe.String(string(stripe.IssuingCardSpendingControlsSpendingLimitIntervalAllTime)),
				},
			},
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	card, err := s.api.IssuingCards.New(params)
	if err != nil {
		return nil, classify(err)
	}

	return &VirtualCard{ID: card.ID, Last4: card.Last4}, nil
}

// classify maps Stripe error types onto the transient/permanent split.
// Card and invalid-request errors (insufficient funds, bad source) are
// permanent; API errors, rate limits and transport failures are
// transient.
func classify(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
			return err
		default:
			return &TransientError{Err: err}
		}
	}
	// Not a structured Stripe error: network-level failure.
	return &TransientError{Err: err}
}
