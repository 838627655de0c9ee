// Package memory - хранилище в памяти процесса.
// Используется в тестах и при STORE_DRIVER=memory (локальный запуск без Postgres).
// Транзакция пишет в буфер; буфер применяется целиком при фиксации
// или выбрасывается при ошибке и отмене контекста.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/features/accounts"
	"studyhub.dev/portal-bot/internal/features/content"
	"studyhub.dev/portal-bot/internal/features/leaderboard"
	"studyhub.dev/portal-bot/internal/features/points"
	"studyhub.dev/portal-bot/internal/features/reactions"
)

type reactionKey struct {
	itemID    int64
	accountID int64
}

// Store - хранилище в памяти.
type Store struct {
	locks *keyLocks
	now   func() time.Time

	mu            sync.RWMutex
	nextAccountID int64
	nextItemID    int64
	accounts      map[int64]*accounts.Account
	byTelegram    map[int64]int64
	items         map[int64]*content.Item
	reactions     map[reactionKey]*reactions.Reaction
	comments      map[uuid.UUID]*content.Comment
	events        map[string]points.Event
	eventOrder    []string
	requests      map[string]bool
}

var (
	_ content.Store     = (*Store)(nil)
	_ accounts.Store    = (*Store)(nil)
	_ leaderboard.Store = (*Store)(nil)
)

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		locks:      newKeyLocks(),
		now:        time.Now,
		accounts:   make(map[int64]*accounts.Account),
		byTelegram: make(map[int64]int64),
		items:      make(map[int64]*content.Item),
		reactions:  make(map[reactionKey]*reactions.Reaction),
		comments:   make(map[uuid.UUID]*content.Comment),
		events:     make(map[string]points.Event),
		requests:   make(map[string]bool),
	}
}

// InTx выполняет fn под блокировками keys.
func (s *Store) InTx(ctx context.Context, keys []content.LockKey, fn func(ctx context.Context, tx content.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var held []content.LockKey
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			s.locks.unlock(held[i])
		}
	}()
	for _, k := range content.SortKeys(keys) {
		if err := s.locks.lock(ctx, k); err != nil {
			return err
		}
		held = append(held, k)
	}

	t := newTx(s)
	if err := fn(ctx, t); err != nil {
		return err
	}
	// отмена до фиксации - откат
	if err := ctx.Err(); err != nil {
		return err
	}
	t.commit()
	return nil
}

// --- accounts.Store ---

// GetAccount возвращает копию аккаунта.
func (s *Store) GetAccount(_ context.Context, id int64) (*accounts.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

// GetAccountByTelegramID ищет аккаунт по Telegram ID.
func (s *Store) GetAccountByTelegramID(ctx context.Context, telegramID int64) (*accounts.Account, error) {
	s.mu.RLock()
	id, ok := s.byTelegram[telegramID]
	s.mu.RUnlock()
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	return s.GetAccount(ctx, id)
}

// CreateAccount добавляет аккаунт. Занятый Telegram ID возвращает существующий.
func (s *Store) CreateAccount(_ context.Context, a *accounts.Account) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.TelegramID != 0 {
		if id, ok := s.byTelegram[a.TelegramID]; ok {
			cp := *s.accounts[id]
			return &cp, nil
		}
	}

	s.nextAccountID++
	cp := *a
	cp.ID = s.nextAccountID
	if cp.Role == "" {
		cp.Role = accounts.RoleStudent
	}
	now := s.now()
	cp.CreatedAt, cp.UpdatedAt = now, now

	s.accounts[cp.ID] = &cp
	if cp.TelegramID != 0 {
		s.byTelegram[cp.TelegramID] = cp.ID
	}
	out := cp
	return &out, nil
}

// --- leaderboard.Store ---

// TopAccounts возвращает аккаунты класса по убыванию очков, при равенстве по ID.
func (s *Store) TopAccounts(_ context.Context, classID int64, limit int) ([]*accounts.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*accounts.Account
	for _, a := range s.accounts {
		if a.ClassInstanceID == classID {
			cp := *a
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Points != list[j].Points {
			return list[i].Points > list[j].Points
		}
		return list[i].ID < list[j].ID
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// CountAccountsAbove считает аккаунты класса со строго большим балансом.
func (s *Store) CountAccountsAbove(_ context.Context, classID int64, p points.Points) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.accounts {
		if a.ClassInstanceID == classID && a.Points > p {
			n++
		}
	}
	return n, nil
}

// --- вспомогательное ---

// SeedItem кладёт материал без начисления за загрузку.
// Нужен для материалов, созданных вне бота.
func (s *Store) SeedItem(item content.Item) *content.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextItemID++
	item.ID = s.nextItemID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
		item.UpdatedAt = item.CreatedAt
	}
	s.items[item.ID] = &item
	out := item
	return &out
}

// Events возвращает журнал начислений аккаунта в порядке записи.
func (s *Store) Events(accountID int64) []points.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []points.Event
	for _, key := range s.eventOrder {
		if ev := s.events[key]; ev.AccountID == accountID {
			out = append(out, ev)
		}
	}
	return out
}

// Reaction возвращает строку реакции или nil.
func (s *Store) Reaction(itemID, accountID int64) *reactions.Reaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reactions[reactionKey{itemID, accountID}]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

// CorruptCounts перезаписывает счётчики материала в обход журнала.
func (s *Store) CorruptCounts(itemID int64, likes, dislikes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[itemID]
	if !ok {
		return fmt.Errorf("item %d: %w", itemID, common.ErrItemNotFound)
	}
	it.Likes, it.Dislikes = likes, dislikes
	return nil
}
