// Package leaderboard строит рейтинг класса по очкам.
package leaderboard

import (
	"context"
	"fmt"
	"strings"

	"studyhub.dev/portal-bot/internal/features/accounts"
	"studyhub.dev/portal-bot/internal/features/points"
	"studyhub.dev/portal-bot/internal/features/ranks"
)

// Store - запросы рейтинга.
type Store interface {
	// TopAccounts - аккаунты класса по убыванию очков, при равенстве по ID.
	TopAccounts(ctx context.Context, classID int64, limit int) ([]*accounts.Account, error)
	// CountAccountsAbove - сколько аккаунтов класса имеют строго больше очков.
	CountAccountsAbove(ctx context.Context, classID int64, p points.Points) (int, error)
}

// Entry - строка рейтинга.
type Entry struct {
	Position int
	Account  *accounts.Account
	Rank     ranks.Rank
}

// Service строит рейтинг.
type Service struct {
	store Store
	ranks *ranks.Table
}

// NewService создаёт сервис рейтинга.
func NewService(store Store, table *ranks.Table) *Service {
	return &Service{store: store, ranks: table}
}

// Top возвращает первые limit аккаунтов класса. Равные балансы делят место.
func (s *Service) Top(ctx context.Context, classID int64, limit int) ([]Entry, error) {
	list, err := s.store.TopAccounts(ctx, classID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рейтинга: %w", err)
	}

	entries := make([]Entry, 0, len(list))
	for i, acc := range list {
		pos := i + 1
		if i > 0 && acc.Points == list[i-1].Points {
			pos = entries[i-1].Position
		}
		entries = append(entries, Entry{
			Position: pos,
			Account:  acc,
			Rank:     s.ranks.Resolve(acc.Points),
		})
	}
	return entries, nil
}

// Position возвращает место аккаунта в классе (с 1).
func (s *Service) Position(ctx context.Context, acc *accounts.Account) (int, error) {
	above, err := s.store.CountAccountsAbove(ctx, acc.ClassInstanceID, acc.Points)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта места: %w", err)
	}
	return above + 1, nil
}

// Format форматирует рейтинг для сообщения.
func Format(title string, entries []Entry) string {
	if len(entries) == 0 {
		return title + "\n\nNo points earned yet. Share something useful!"
	}

	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%d. %s — %s pts (%s)\n",
			e.Position, e.Account.DisplayName(), e.Account.Points, e.Rank.Title))
	}
	return strings.TrimRight(sb.String(), "\n")
}
