package handlers

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"community_capital/internal/models"
	"community_capital/internal/storage"
)

// SMSSender delivers a message to a phone number.
type SMSSender interface {
	SendSMS(to, body string) error
}

// CodeStore is the OTP persistence surface the handler needs from Redis.
type CodeStore interface {
	SetOTP(ctx context.Context, phone, code string) error
	GetOTP(ctx context.Context, phone string) (string, error)
	DeleteOTP(ctx context.Context, phone string) error
}

// AuthHandler handles phone-OTP registration and verification.
type AuthHandler struct {
	store     storage.Store
	codes     CodeStore
	sms       SMSSender
	jwtSecret string
	jwtTTL    time.Duration
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store storage.Store, codes CodeStore, sms SMSSender, jwtSecret string, jwtTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		store:     store,
		codes:     codes,
		sms:       sms,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
	}
}

// Register sends a one-time code to the given phone number.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	otp, err := generateOTP()
	if err != nil {
		return err
	}

	if err := h.codes.SetOTP(c.Request().Context(), req.PhoneNumber, otp); err != nil {
		return fmt.Errorf("failed to store OTP: %w", err)
	}

	if err := h.sms.SendSMS(req.PhoneNumber, "Your Community Capital code is: "+otp); err != nil {
		return fmt.Errorf("failed to send OTP: %w", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "OTP sent successfully",
	})
}

// Verify checks the one-time code, creating the user on first login, and
// returns a signed JWT.
func (h *AuthHandler) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	stored, err := h.codes.GetOTP(c.Request().Context(), req.PhoneNumber)
	if err != nil {
		return err
	}
	if stored == "" || stored != req.Code {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired OTP")
	}

	ctx := c.Request().Context()
	user, err := h.store.UserByPhone(ctx, req.PhoneNumber)
	if errors.Is(err, storage.ErrNotFound) {
		user = &models.User{Phone: req.PhoneNumber}
		if err := h.store.CreateUser(ctx, user); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"phone":   user.Phone,
		"exp":     time.Now().Add(h.jwtTTL).Unix(),
	})
	signed, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		return err
	}

	_ = h.codes.DeleteOTP(ctx, req.PhoneNumber)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   signed,
		"user": map[string]interface{}{
			"id":          user.ID,
			"phoneNumber": user.Phone,
			"name":        user.Name,
			"email":       user.Email,
		},
	})
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
