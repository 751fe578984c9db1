// Package postgres implements storage.Store on top of GORM.
package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"community_capital/internal/models"
	"community_capital/internal/storage"
)

// Store is the GORM-backed implementation of storage.Store.
type Store struct {
	db *gorm.DB
}

// New wraps an initialized gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateUser persists a new user.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

// UserByPhone looks a user up by phone number.
func (s *Store) UserByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// UserByID looks a user up by primary key.
func (s *Store) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// SaveBankAccount stores the user's linked account, replacing any
// previous link. The old row is hard-deleted: a soft delete would keep
// occupying the unique user_id index and block the re-link.
func (s *Store) SaveBankAccount(ctx context.Context, account *models.BankAccount) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ?", account.UserID).Delete(&models.BankAccount{}).Error; err != nil {
			return err
		}
		return tx.Create(account).Error
	})
}

// BankAccountByUser returns the user's linked account.
func (s *Store) BankAccountByUser(ctx context.Context, userID uint) (*models.BankAccount, error) {
	var account models.BankAccount
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}
