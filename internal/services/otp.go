package services

import (
	"context"
	"time"
)

const otpTTL = 5 * time.Minute

// OTPStore keeps one-time login codes in Redis, expiring them after five
// minutes.
type OTPStore struct {
	cache *RedisCache
}

func NewOTPStore(cache *RedisCache) *OTPStore {
	return &OTPStore{cache: cache}
}

func (s *OTPStore) SetOTP(ctx context.Context, phone, code string) error {
	return s.cache.SetString(ctx, "otp:"+phone, code, otpTTL)
}

// GetOTP returns the stored code, or empty string when none exists.
func (s *OTPStore) GetOTP(ctx context.Context, phone string) (string, error) {
	return s.cache.GetString(ctx, "otp:"+phone)
}

func (s *OTPStore) DeleteOTP(ctx context.Context, phone string) error {
	return s.cache.Delete(ctx, "otp:"+phone)
}
