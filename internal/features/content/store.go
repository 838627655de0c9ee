// Package content - store.go описывает транзакционное хранилище фасада.
package content

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"studyhub.dev/portal-bot/internal/features/accounts"
	"studyhub.dev/portal-bot/internal/features/points"
	"studyhub.dev/portal-bot/internal/features/reactions"
)

// LockKey - ключ блокировки внутри транзакции.
type LockKey string

// ItemKey - агрегат материала (счётчики, кэш очков, удаление).
func ItemKey(itemID int64) LockKey {
	return LockKey(fmt.Sprintf("item:%d", itemID))
}

// ReactionKey - строка реакции пары (материал, пользователь).
func ReactionKey(itemID, accountID int64) LockKey {
	return LockKey(fmt.Sprintf("reaction:%d:%d", itemID, accountID))
}

// CommentKey - комментарий с заданным ID.
func CommentKey(id uuid.UUID) LockKey {
	return LockKey("comment:" + id.String())
}

// ToggleRequestKey - ключ обработанного нажатия кнопки реакции.
func ToggleRequestKey(requestKey string) string {
	return "toggle:" + requestKey
}

// SortKeys убирает дубли и сортирует ключи. Все хранилища берут
// блокировки в этом порядке, поэтому транзакции не ждут друг друга по кругу.
func SortKeys(keys []LockKey) []LockKey {
	seen := make(map[LockKey]bool, len(keys))
	out := make([]LockKey, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Tx - операции, доступные внутри одной транзакции.
type Tx interface {
	reactions.Store
	points.Store

	GetAccount(ctx context.Context, id int64) (*accounts.Account, error)

	GetItem(ctx context.Context, id int64) (*Item, error)
	// InsertItem заполняет ID и CreatedAt.
	InsertItem(ctx context.Context, item *Item) error
	// DeleteItem удаляет материал вместе с реакциями и комментариями.
	DeleteItem(ctx context.Context, id int64) error
	ListItemIDs(ctx context.Context) ([]int64, error)

	AdjustReactionCounts(ctx context.Context, itemID int64, likes, dislikes int) error
	CountReactions(ctx context.Context, itemID int64) (likes, dislikes int, err error)
	SetReactionCounts(ctx context.Context, itemID int64, likes, dislikes int) error

	GetComment(ctx context.Context, id uuid.UUID) (*Comment, error)
	InsertComment(ctx context.Context, c *Comment) error
	DeleteComment(ctx context.Context, id uuid.UUID) error
	CountComments(ctx context.Context, itemID int64) (int, error)

	// ClaimRequest отмечает запрос клиента обработанным.
	// false - запрос с таким ключом уже был зафиксирован.
	ClaimRequest(ctx context.Context, key string) (bool, error)
}

// Store выполняет fn атомарно: все записи fn фиксируются вместе или никакие.
// Ключи блокируются в порядке сортировки на время транзакции.
// Отмена ctx до фиксации откатывает транзакцию.
type Store interface {
	InTx(ctx context.Context, keys []LockKey, fn func(ctx context.Context, tx Tx) error) error
}
