// Package postgres - store.go реализует транзакции фасада и запросы
// аккаунтов и рейтинга.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/features/accounts"
	"studyhub.dev/portal-bot/internal/features/content"
	"studyhub.dev/portal-bot/internal/features/leaderboard"
	"studyhub.dev/portal-bot/internal/features/points"
)

// Store - хранилище поверх пула соединений.
type Store struct {
	db *pgxpool.Pool
}

var (
	_ content.Store     = (*Store)(nil)
	_ accounts.Store    = (*Store)(nil)
	_ leaderboard.Store = (*Store)(nil)
)

// NewStore создаёт хранилище.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// InTx открывает транзакцию READ COMMITTED и берёт advisory-блокировки
// на ключи в порядке сортировки. Блокировки снимаются при COMMIT/ROLLBACK.
// Сериализационные сбои и дедлоки возвращаются как common.ErrConflict.
func (s *Store) InTx(ctx context.Context, keys []content.LockKey, fn func(ctx context.Context, tx content.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapError(fmt.Errorf("ошибка начала транзакции: %w", err), nil)
	}
	// После Commit откат ничего не делает
	defer tx.Rollback(ctx)

	for _, k := range content.SortKeys(keys) {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, string(k)); err != nil {
			return mapError(fmt.Errorf("блокировка %s: %w", k, err), nil)
		}
	}

	if err := fn(ctx, &txRepo{q: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("ошибка фиксации: %w", err), nil)
	}
	return nil
}

// GetAccount возвращает аккаунт по ID.
func (s *Store) GetAccount(ctx context.Context, id int64) (*accounts.Account, error) {
	return getAccount(ctx, s.db, `WHERE id = $1`, id)
}

// GetAccountByTelegramID возвращает аккаунт по Telegram ID.
func (s *Store) GetAccountByTelegramID(ctx context.Context, telegramID int64) (*accounts.Account, error) {
	return getAccount(ctx, s.db, `WHERE telegram_id = $1`, telegramID)
}

// CreateAccount создаёт аккаунт. Если Telegram ID уже занят - возвращает существующий.
func (s *Store) CreateAccount(ctx context.Context, a *accounts.Account) (*accounts.Account, error) {
	role := a.Role
	if role == "" {
		role = accounts.RoleStudent
	}
	var telegramID *int64
	if a.TelegramID != 0 {
		telegramID = &a.TelegramID
	}

	query := `
		INSERT INTO accounts (telegram_id, username, full_name, class_instance_id, role, points)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (telegram_id) DO NOTHING
		RETURNING ` + accountColumns
	acc, err := scanAccount(s.db.QueryRow(ctx, query,
		telegramID, a.Username, a.FullName, a.ClassInstanceID, role, int64(a.Points),
	))
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ошибка создания аккаунта: %w", err)
	}
	// Гонка регистраций: аккаунт создал параллельный запрос
	return s.GetAccountByTelegramID(ctx, a.TelegramID)
}

// TopAccounts возвращает аккаунты класса по убыванию очков.
func (s *Store) TopAccounts(ctx context.Context, classID int64, limit int) ([]*accounts.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE class_instance_id = $1
		ORDER BY points DESC, id
		LIMIT $2`
	rows, err := s.db.Query(ctx, query, classID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рейтинга: %w", err)
	}
	defer rows.Close()

	var list []*accounts.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, acc)
	}
	return list, rows.Err()
}

// CountAccountsAbove считает аккаунты класса со строго большим балансом.
func (s *Store) CountAccountsAbove(ctx context.Context, classID int64, p points.Points) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM accounts WHERE class_instance_id = $1 AND points > $2`,
		classID, int64(p),
	).Scan(&n)
	return n, err
}

const accountColumns = `id, COALESCE(telegram_id, 0), username, full_name, class_instance_id, role, points, created_at, updated_at`

func getAccount(ctx context.Context, q querier, where string, arg any) (*accounts.Account, error) {
	acc, err := scanAccount(q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts `+where, arg))
	if err != nil {
		return nil, mapError(err, common.ErrAccountNotFound)
	}
	return acc, nil
}

func scanAccount(row pgx.Row) (*accounts.Account, error) {
	var (
		a   accounts.Account
		pts int64
	)
	err := row.Scan(
		&a.ID, &a.TelegramID, &a.Username, &a.FullName, &a.ClassInstanceID,
		&a.Role, &pts, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Points = points.Points(pts)
	return &a, nil
}
