package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"community_capital/internal/middleware"
	"community_capital/internal/models"
	"community_capital/internal/queue"
	"community_capital/internal/services"
	"community_capital/internal/storage"
)

// PaymentHandler manages bank linking and charge initiation.
type PaymentHandler struct {
	store    storage.Store
	plaid    *services.PlaidService
	payments *services.PaymentService
	jobs     queue.Queue
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(store storage.Store, plaid *services.PlaidService, payments *services.PaymentService, jobs queue.Queue) *PaymentHandler {
	return &PaymentHandler{
		store:    store,
		plaid:    plaid,
		payments: payments,
		jobs:     jobs,
	}
}

// LinkBank exchanges the Plaid public token and stores the resulting bank
// account against the caller. Re-linking replaces the previous account.
func (h *PaymentHandler) LinkBank(c echo.Context) error {
	var req LinkBankRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	linked, err := h.plaid.ExchangePublicToken(ctx, req.PublicToken)
	if err != nil {
		slog.Error("bank link failed", "user_id", userID, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "Bank account linking failed")
	}

	account := &models.BankAccount{
		UserID:          userID,
		PlaidItemID:     linked.PlaidItemID,
		StripeBankToken: linked.StripeBankToken,
		AccountMask:     linked.AccountMask,
		InstitutionName: linked.InstitutionName,
	}
	if err := h.store.SaveBankAccount(ctx, account); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"bankAccount": map[string]interface{}{
			"mask":        account.AccountMask,
			"institution": account.InstitutionName,
		},
	})
}

// Charge validates the caller's payment preconditions and enqueues the
// charge for asynchronous processing. The response acknowledges the
// queued job, not the charge outcome; clients follow progress over the
// WebSocket.
func (h *PaymentHandler) Charge(c echo.Context) error {
	var req ChargeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	if err := h.payments.ValidateCharge(ctx, req.EventID, userID); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Event not found")
		case errors.Is(err, services.ErrNotParticipant):
			return echo.NewHTTPError(http.StatusForbidden, "You are not a participant of this event")
		case errors.Is(err, services.ErrEventNotPayable):
			return echo.NewHTTPError(http.StatusConflict, "Event is not accepting payments")
		case errors.Is(err, services.ErrNoBankAccount):
			return echo.NewHTTPError(http.StatusBadRequest, "Link a bank account before paying")
		case errors.Is(err, services.ErrNothingOwed):
			return echo.NewHTTPError(http.StatusBadRequest, "You have nothing to pay on this event")
		default:
			return err
		}
	}

	job := queue.ChargeJob{
		EventID:    req.EventID,
		UserID:     userID,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := h.jobs.Enqueue(ctx, job); err != nil {
		return err
	}

	slog.Info("charge queued", "event_id", req.EventID, "user_id", userID)
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "Payment is being processed",
	})
}

// MyPayment returns the caller's payment record for the event, if any.
func (h *PaymentHandler) MyPayment(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	payment, err := h.store.PaymentByEventUser(ctx, eventID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "No payment found for this event")
	} else if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"payment": payment,
	})
}
