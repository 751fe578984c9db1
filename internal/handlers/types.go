package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"community_capital/internal/allocator"
)

// CustomValidator adapts go-playground/validator to Echo's binding flow.
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

type RegisterRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,e164"`
}

type VerifyRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,e164"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
}

type ItemRequest struct {
	Name            string          `json:"name" validate:"required"`
	Price           decimal.Decimal `json:"price"`
	Quantity        int             `json:"quantity"`
	IsSharedByTable bool            `json:"isSharedByTable"`
}

type CreateEventRequest struct {
	Name          string          `json:"name" validate:"required"`
	Restaurant    string          `json:"restaurant" validate:"required"`
	Items         []ItemRequest   `json:"items" validate:"required,min=1,dive"`
	Tax           decimal.Decimal `json:"tax"`
	TipPercentage int             `json:"tipPercentage" validate:"gte=0,lte=100"`
}

type JoinEventRequest struct {
	Code string `json:"code" validate:"required,len=6"`
}

// ClaimRequest replaces the caller's claimed-item set entirely. An empty
// list withdraws all claims.
type ClaimRequest struct {
	Items []uint `json:"items"`
}

type LinkBankRequest struct {
	PublicToken string `json:"publicToken" validate:"required"`
}

type ChargeRequest struct {
	EventID uint `json:"eventId" validate:"required"`
}

// ShareResponse is a participant's breakdown, rounded to cents for
// display.
type ShareResponse struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Tip      string `json:"tip"`
	Total    string `json:"total"`
}

func toShareResponse(share allocator.Share) ShareResponse {
	rounded := share.Round()
	return ShareResponse{
		Subtotal: rounded.Subtotal.StringFixed(2),
		Tax:      rounded.Tax.StringFixed(2),
		Tip:      rounded.Tip.StringFixed(2),
		Total:    rounded.Total.StringFixed(2),
	}
}

func toTotalsResponse(shares map[uint]allocator.Share) map[uint]ShareResponse {
	totals := make(map[uint]ShareResponse, len(shares))
	for userID, share := range shares {
		totals[userID] = toShareResponse(share)
	}
	return totals
}
