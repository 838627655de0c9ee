// Package accounts - service.go содержит бизнес-логику аккаунтов.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/config"
	"studyhub.dev/portal-bot/internal/features/ranks"
)

// Store - хранилище аккаунтов.
type Store interface {
	GetAccount(ctx context.Context, id int64) (*Account, error)
	GetAccountByTelegramID(ctx context.Context, telegramID int64) (*Account, error)
	// CreateAccount создаёт аккаунт и заполняет ID. Если Telegram ID уже
	// занят, возвращает существующий аккаунт.
	CreateAccount(ctx context.Context, a *Account) (*Account, error)
}

// Service управляет аккаунтами.
type Service struct {
	store Store
	ranks *ranks.Table
	cfg   *config.Config
}

// NewService создаёт сервис аккаунтов.
func NewService(store Store, table *ranks.Table, cfg *config.Config) *Service {
	return &Service{store: store, ranks: table, cfg: cfg}
}

// EnsureAccount гарантирует, что пользователь Telegram есть в базе.
// Новый пользователь попадает в класс по умолчанию с нулевым балансом.
func (s *Service) EnsureAccount(ctx context.Context, telegramID int64, username, fullName string) (*Account, error) {
	existing, err := s.store.GetAccountByTelegramID(ctx, telegramID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	role := RoleStudent
	if s.cfg.IsAdmin(telegramID) {
		role = RoleAdmin
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		fullName = username
	}

	acc, err := s.store.CreateAccount(ctx, &Account{
		TelegramID:      telegramID,
		Username:        username,
		FullName:        fullName,
		ClassInstanceID: s.cfg.DefaultClassInstanceID,
		Role:            role,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка регистрации аккаунта: %w", err)
	}

	log.WithFields(log.Fields{
		"account_id":  acc.ID,
		"telegram_id": telegramID,
		"role":        role,
	}).Info("Новый аккаунт зарегистрирован")
	return acc, nil
}

// Get возвращает аккаунт по ID.
func (s *Service) Get(ctx context.Context, id int64) (*Account, error) {
	return s.store.GetAccount(ctx, id)
}

// GetByTelegramID возвращает аккаунт по Telegram ID.
func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (*Account, error) {
	return s.store.GetAccountByTelegramID(ctx, telegramID)
}

// Profile перечитывает баланс из хранилища и считает звание.
// Баланс нигде не кэшируется: каждый показ идёт через этот метод.
func (s *Service) Profile(ctx context.Context, accountID int64) (*Profile, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		Account:  acc,
		Rank:     s.ranks.Resolve(acc.Points),
		Progress: s.ranks.ProgressToNext(acc.Points),
	}, nil
}
