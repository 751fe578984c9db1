package handlers

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"community_capital/internal/middleware"
	"community_capital/internal/models"
	"community_capital/internal/notify"
	"community_capital/internal/services"
	"community_capital/internal/storage"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// EventHandler manages event creation, joining and item claims.
type EventHandler struct {
	store    storage.Store
	notifier notify.Notifier
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(store storage.Store, notifier notify.Notifier) *EventHandler {
	return &EventHandler{store: store, notifier: notifier}
}

// Create creates an event with its receipt items and joins the creator as
// the first participant. The event opens for joining immediately.
func (h *EventHandler) Create(c echo.Context) error {
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	for _, item := range req.Items {
		if item.Price.IsNegative() {
			return echo.NewHTTPError(http.StatusBadRequest, "Item price cannot be negative")
		}
	}
	if req.Tax.IsNegative() {
		return echo.NewHTTPError(http.StatusBadRequest, "Tax cannot be negative")
	}

	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	user, err := h.store.UserByID(ctx, userID)
	if err != nil {
		return err
	}

	items := make([]models.Item, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, models.Item{
			Name:            item.Name,
			Price:           item.Price,
			Quantity:        item.Quantity,
			IsSharedByTable: item.IsSharedByTable,
		})
	}

	event := &models.Event{
		CreatorID:      userID,
		Name:           req.Name,
		RestaurantName: req.Restaurant,
		Tax:            req.Tax,
		TipPercentage:  req.TipPercentage,
		Status:         models.EventStatusDraft,
		Items:          items,
	}

	// Codes collide rarely; retry a few times rather than coordinating.
	for attempt := 0; ; attempt++ {
		code, err := generateEventCode()
		if err != nil {
			return err
		}
		event.Code = code

		if err := h.store.CreateEvent(ctx, event); err != nil {
			if attempt < 3 {
				continue
			}
			return err
		}
		break
	}

	creator := &models.Participant{
		EventID:  event.ID,
		UserID:   userID,
		UserName: user.Name,
	}
	if err := h.store.AddParticipant(ctx, creator); err != nil {
		return err
	}

	if _, err := h.store.UpdateEventStatus(ctx, event.ID, models.EventStatusDraft, models.EventStatusAwaitingParticipants); err != nil {
		return err
	}
	event.Status = models.EventStatusAwaitingParticipants

	h.publish(c, notify.Message{
		Type:    notify.TypeEventCreated,
		EventID: event.ID,
		Payload: map[string]interface{}{"code": event.Code, "name": event.Name},
	})

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"event":   event,
	})
}

// Join adds the caller to the event identified by its share code.
func (h *EventHandler) Join(c echo.Context) error {
	var req JoinEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	event, err := h.store.EventByCode(ctx, req.Code)
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Event not found")
	} else if err != nil {
		return err
	}

	if event.Status.IsTerminal() || event.Status == models.EventStatusPaymentPending {
		return echo.NewHTTPError(http.StatusConflict, "Event is no longer accepting participants")
	}

	user, err := h.store.UserByID(ctx, userID)
	if err != nil {
		return err
	}

	participant := &models.Participant{
		EventID:  event.ID,
		UserID:   userID,
		UserName: user.Name,
	}
	if err := h.store.AddParticipant(ctx, participant); err != nil {
		return err
	}

	h.publish(c, notify.Message{
		Type:    notify.TypeParticipantJoined,
		EventID: event.ID,
		Payload: map[string]interface{}{"user_id": userID, "user_name": user.Name},
	})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"event":   event,
	})
}

// Get returns the event with items, participants and the current totals.
// Only participants may view an event.
func (h *EventHandler) Get(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	if _, err := h.store.ParticipantByEventUser(ctx, eventID, userID); errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusForbidden, "You are not a participant of this event")
	} else if err != nil {
		return err
	}

	event, participants, shares, err := services.ComputeEventShares(ctx, h.store, eventID)
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Event not found")
	} else if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":      true,
		"event":        event,
		"participants": participants,
		"totals":       toTotalsResponse(shares),
	})
}

// Claim replaces the caller's claimed items with the submitted set and
// recomputes every participant's share.
func (h *EventHandler) Claim(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}

	var req ClaimRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	event, err := h.store.EventByID(ctx, eventID)
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Event not found")
	} else if err != nil {
		return err
	}

	if event.Status != models.EventStatusAwaitingParticipants && event.Status != models.EventStatusItemsClaimed {
		return echo.NewHTTPError(http.StatusConflict, "Claims are closed for this event")
	}

	if _, err := h.store.ParticipantByEventUser(ctx, eventID, userID); errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusForbidden, "You are not a participant of this event")
	} else if err != nil {
		return err
	}

	eventItems := make(map[uint]bool, len(event.Items))
	for _, item := range event.Items {
		eventItems[item.ID] = true
	}
	for _, itemID := range req.Items {
		if !eventItems[itemID] {
			return echo.NewHTTPError(http.StatusBadRequest, "Item does not belong to this event")
		}
	}

	if err := h.store.UpsertClaim(ctx, eventID, userID, req.Items); err != nil {
		return err
	}

	// The first claim opens the claiming phase; losing the race just means
	// someone else already opened it.
	if event.Status == models.EventStatusAwaitingParticipants {
		if _, err := h.store.UpdateEventStatus(ctx, eventID, models.EventStatusAwaitingParticipants, models.EventStatusItemsClaimed); err != nil {
			return err
		}
	}

	_, participants, shares, err := services.ComputeEventShares(ctx, h.store, eventID)
	if err != nil {
		return err
	}

	for i := range participants {
		share := shares[participants[i].UserID]
		participants[i].Subtotal = share.Subtotal
		participants[i].TaxAmount = share.Tax
		participants[i].TipAmount = share.Tip
		participants[i].TotalOwed = share.Total
	}
	if err := h.store.UpdateParticipantShares(ctx, participants); err != nil {
		return err
	}

	totals := toTotalsResponse(shares)
	h.publish(c, notify.Message{
		Type:    notify.TypeItemsClaimed,
		EventID: eventID,
		Payload: map[string]interface{}{"user_id": userID, "totals": totals},
	})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"totals":  totals,
	})
}

// MyShare returns the caller's current breakdown for the event.
func (h *EventHandler) MyShare(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	if _, err := h.store.ParticipantByEventUser(ctx, eventID, userID); errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusForbidden, "You are not a participant of this event")
	} else if err != nil {
		return err
	}

	_, _, shares, err := services.ComputeEventShares(ctx, h.store, eventID)
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Event not found")
	} else if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"share":   toShareResponse(shares[userID]),
	})
}

func (h *EventHandler) publish(c echo.Context, msg notify.Message) {
	ctx, cancel := contextWithTimeout(c)
	defer cancel()
	if err := h.notifier.Publish(ctx, msg); err != nil {
		slog.Warn("failed to publish notification", "type", msg.Type, "event_id", msg.EventID, "error", err)
	}
}

func contextWithTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 2*time.Second)
}

func eventIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid event id")
	}
	return uint(id), nil
}

func generateEventCode() (string, error) {
	code := make([]byte, 6)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
