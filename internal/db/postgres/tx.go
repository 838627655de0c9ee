package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/features/accounts"
	"studyhub.dev/portal-bot/internal/features/content"
	"studyhub.dev/portal-bot/internal/features/points"
	"studyhub.dev/portal-bot/internal/features/reactions"
)

// txRepo - операции внутри транзакции Store.InTx.
type txRepo struct {
	q querier
}

var _ content.Tx = (*txRepo)(nil)

const itemColumns = `id, class_instance_id, unit_name, title, description, content_type,
	file_path, url, owner_id, points_earned, like_count, dislike_count, deadline, created_at, updated_at`

func scanItem(row pgx.Row) (*content.Item, error) {
	var (
		it     content.Item
		typ    string
		earned int64
	)
	err := row.Scan(
		&it.ID, &it.ClassInstanceID, &it.UnitName, &it.Title, &it.Description, &typ,
		&it.FilePath, &it.URL, &it.OwnerID, &earned, &it.Likes, &it.Dislikes,
		&it.Deadline, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	it.Type = content.ContentType(typ)
	it.PointsEarned = points.Points(earned)
	return &it, nil
}

// --- материалы ---

func (r *txRepo) GetItem(ctx context.Context, id int64) (*content.Item, error) {
	it, err := scanItem(r.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM content_items WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, common.ErrItemNotFound)
	}
	return it, nil
}

func (r *txRepo) ItemExists(ctx context.Context, itemID int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM content_items WHERE id = $1)`, itemID).Scan(&exists)
	return exists, mapError(err, nil)
}

func (r *txRepo) InsertItem(ctx context.Context, item *content.Item) error {
	query := `
		INSERT INTO content_items
			(class_instance_id, unit_name, title, description, content_type, file_path, url, owner_id, deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query,
		item.ClassInstanceID, item.UnitName, item.Title, item.Description, string(item.Type),
		item.FilePath, item.URL, item.OwnerID, item.Deadline,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	return mapError(err, nil)
}

// DeleteItem удаляет материал. Реакции и комментарии удаляет ON DELETE CASCADE.
func (r *txRepo) DeleteItem(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM content_items WHERE id = $1`, id)
	if err != nil {
		return mapError(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrItemNotFound
	}
	return nil
}

func (r *txRepo) ListItemIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM content_items ORDER BY id`)
	if err != nil {
		return nil, mapError(err, nil)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	return ids, mapError(err, nil)
}

func (r *txRepo) AdjustReactionCounts(ctx context.Context, itemID int64, likes, dislikes int) error {
	return r.updateItem(ctx, `
		UPDATE content_items
		SET like_count = like_count + $2, dislike_count = dislike_count + $3, updated_at = NOW()
		WHERE id = $1
	`, itemID, likes, dislikes)
}

func (r *txRepo) SetReactionCounts(ctx context.Context, itemID int64, likes, dislikes int) error {
	return r.updateItem(ctx, `
		UPDATE content_items
		SET like_count = $2, dislike_count = $3, updated_at = NOW()
		WHERE id = $1
	`, itemID, likes, dislikes)
}

func (r *txRepo) updateItem(ctx context.Context, query string, itemID int64, args ...any) error {
	tag, err := r.q.Exec(ctx, query, append([]any{itemID}, args...)...)
	if err != nil {
		return mapError(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrItemNotFound
	}
	return nil
}

func (r *txRepo) CountReactions(ctx context.Context, itemID int64) (likes, dislikes int, err error) {
	err = r.q.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE state = 'like'),
			COUNT(*) FILTER (WHERE state = 'dislike')
		FROM reactions WHERE item_id = $1
	`, itemID).Scan(&likes, &dislikes)
	return likes, dislikes, mapError(err, nil)
}

// --- реакции ---

func (r *txRepo) GetReaction(ctx context.Context, itemID, accountID int64) (*reactions.Reaction, error) {
	var (
		re    reactions.Reaction
		state string
	)
	err := r.q.QueryRow(ctx, `
		SELECT item_id, account_id, state, version, updated_at
		FROM reactions WHERE item_id = $1 AND account_id = $2
	`, itemID, accountID).Scan(&re.ItemID, &re.AccountID, &state, &re.Version, &re.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, nil)
	}
	re.State = reactions.State(state)
	return &re, nil
}

func (r *txRepo) PutReaction(ctx context.Context, re *reactions.Reaction) error {
	updatedAt := re.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO reactions (item_id, account_id, state, version, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id, account_id) DO UPDATE
		SET state = EXCLUDED.state, version = EXCLUDED.version, updated_at = EXCLUDED.updated_at
	`, re.ItemID, re.AccountID, string(re.State), re.Version, updatedAt)
	return mapError(err, nil)
}

// --- запросы клиентов ---

// ClaimRequest записывает ключ обработанного запроса.
func (r *txRepo) ClaimRequest(ctx context.Context, key string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO processed_requests (request_key)
		VALUES ($1)
		ON CONFLICT (request_key) DO NOTHING
	`, key)
	if err != nil {
		return false, mapError(err, nil)
	}
	return tag.RowsAffected() == 1, nil
}

// --- очки ---

// ClaimAward вставляет событие; конфликт ключа означает, что оно уже учтено.
func (r *txRepo) ClaimAward(ctx context.Context, ev points.Event) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO award_events (event_key, account_id, item_id, delta, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_key) DO NOTHING
	`, ev.Key, ev.AccountID, ev.ItemID, int64(ev.Delta), ev.Reason)
	if err != nil {
		return false, mapError(err, nil)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *txRepo) AccountPoints(ctx context.Context, accountID int64) (points.Points, error) {
	var pts int64
	err := r.q.QueryRow(ctx, `SELECT points FROM accounts WHERE id = $1`, accountID).Scan(&pts)
	if err != nil {
		return 0, mapError(err, common.ErrAccountNotFound)
	}
	return points.Points(pts), nil
}

func (r *txRepo) AddAccountPoints(ctx context.Context, accountID int64, delta points.Points) (points.Points, error) {
	var pts int64
	err := r.q.QueryRow(ctx, `
		UPDATE accounts SET points = points + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING points
	`, accountID, int64(delta)).Scan(&pts)
	if err != nil {
		return 0, mapError(err, common.ErrAccountNotFound)
	}
	return points.Points(pts), nil
}

func (r *txRepo) AddItemPointsEarned(ctx context.Context, itemID int64, delta points.Points) (points.Points, error) {
	var pts int64
	err := r.q.QueryRow(ctx, `
		UPDATE content_items SET points_earned = points_earned + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING points_earned
	`, itemID, int64(delta)).Scan(&pts)
	if err != nil {
		return 0, mapError(err, common.ErrItemNotFound)
	}
	return points.Points(pts), nil
}

func (r *txRepo) GetAccount(ctx context.Context, id int64) (*accounts.Account, error) {
	return getAccount(ctx, r.q, `WHERE id = $1`, id)
}

// --- комментарии ---

func (r *txRepo) GetComment(ctx context.Context, id uuid.UUID) (*content.Comment, error) {
	var (
		c   content.Comment
		raw string
	)
	err := r.q.QueryRow(ctx, `
		SELECT id::text, item_id, author_id, text, created_at
		FROM comments WHERE id = $1::uuid
	`, id.String()).Scan(&raw, &c.ItemID, &c.AuthorID, &c.Text, &c.CreatedAt)
	if err != nil {
		return nil, mapError(err, common.ErrCommentNotFound)
	}
	if c.ID, err = uuid.Parse(raw); err != nil {
		return nil, fmt.Errorf("некорректный ID комментария %q: %w", raw, err)
	}
	return &c, nil
}

func (r *txRepo) InsertComment(ctx context.Context, c *content.Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO comments (id, item_id, author_id, text, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5)
	`, c.ID.String(), c.ItemID, c.AuthorID, c.Text, c.CreatedAt)
	return mapError(err, nil)
}

func (r *txRepo) DeleteComment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM comments WHERE id = $1::uuid`, id.String())
	if err != nil {
		return mapError(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrCommentNotFound
	}
	return nil
}

func (r *txRepo) CountComments(ctx context.Context, itemID int64) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE item_id = $1`, itemID).Scan(&n)
	return n, mapError(err, nil)
}
