package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/config"
	"studyhub.dev/portal-bot/internal/features/accounts"
	"studyhub.dev/portal-bot/internal/features/content"
	"studyhub.dev/portal-bot/internal/features/points"
	"studyhub.dev/portal-bot/internal/features/reactions"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil, common.ErrItemNotFound))

	err := mapError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"}, nil)
	assert.ErrorIs(t, err, common.ErrConflict)

	err = mapError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"}, nil)
	assert.ErrorIs(t, err, common.ErrConflict)

	other := &pgconn.PgError{Code: "23505"}
	assert.Equal(t, other, mapError(other, nil))
}

// newTestStore подключается к TEST_DATABASE_URL и чистит таблицы.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL не задан")
	}

	ctx := context.Background()
	pool, err := newPool(ctx, dsn, 10, 0)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE processed_requests, award_events, comments, reactions, content_items, accounts RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return NewStore(pool)
}

func testConfig() *config.Config {
	return &config.Config{
		CommentMaxLength:    2000,
		LedgerMaxRetries:    5,
		LedgerRetryInterval: 10 * time.Millisecond,
	}
}

func TestStoreToggleAndComment(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	owner, err := st.CreateAccount(ctx, &accounts.Account{TelegramID: 1, FullName: "Owner", ClassInstanceID: 1})
	require.NoError(t, err)
	viewer, err := st.CreateAccount(ctx, &accounts.Account{TelegramID: 2, FullName: "Viewer", ClassInstanceID: 1})
	require.NoError(t, err)

	again, err := st.CreateAccount(ctx, &accounts.Account{TelegramID: 1, FullName: "Other"})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, again.ID)

	svc := content.NewService(st, reactions.NewLedger(), points.NewAwarder(points.FlatPolicy{}), testConfig())

	up, err := svc.PublishItem(ctx, content.NewItem{Title: "Week 1", Type: content.TypeNote, OwnerID: owner.ID})
	require.NoError(t, err)
	itemID := up.Item.ID

	res, err := svc.ToggleReaction(ctx, content.ToggleRequest{ItemID: itemID, AccountID: viewer.ID, Desired: reactions.Like})
	require.NoError(t, err)
	assert.Equal(t, reactions.Like, res.State)
	assert.Equal(t, 1, res.Likes)

	res, err = svc.ToggleReaction(ctx, content.ToggleRequest{ItemID: itemID, AccountID: viewer.ID, Desired: reactions.Dislike})
	require.NoError(t, err)
	assert.Equal(t, reactions.Dislike, res.State)
	assert.Equal(t, 0, res.Likes)
	assert.Equal(t, 1, res.Dislikes)

	_, err = svc.PostComment(ctx, content.CommentRequest{ItemID: itemID, AuthorID: viewer.ID, Text: "thanks"})
	require.NoError(t, err)

	// upload +5, like +1, switch −2, comment +1
	o, err := st.GetAccount(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, points.Whole(5), o.Points)

	v, err := st.GetAccount(ctx, viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, points.Whole(1), v.Points)

	top, err := st.TopAccounts(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, owner.ID, top[0].ID)

	above, err := st.CountAccountsAbove(ctx, 1, v.Points)
	require.NoError(t, err)
	assert.Equal(t, 1, above)

	require.NoError(t, svc.DeleteItem(ctx, itemID, owner.ID))
	_, err = svc.GetItem(ctx, itemID, viewer.ID)
	assert.ErrorIs(t, err, common.ErrItemNotFound)
}

func TestStoreClaimRequestOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	claim := func(key string) bool {
		var fresh bool
		require.NoError(t, st.InTx(ctx, nil, func(ctx context.Context, tx content.Tx) error {
			var err error
			fresh, err = tx.ClaimRequest(ctx, content.ToggleRequestKey(key))
			return err
		}))
		return fresh
	}
	assert.True(t, claim("cbq-1"))
	assert.False(t, claim("cbq-1"))
	assert.True(t, claim("cbq-2"))
}

func TestStoreConcurrentLikes(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	owner, err := st.CreateAccount(ctx, &accounts.Account{TelegramID: 10, FullName: "Owner", ClassInstanceID: 1})
	require.NoError(t, err)
	svc := content.NewService(st, reactions.NewLedger(), points.NewAwarder(points.FlatPolicy{}), testConfig())

	var item *content.Item
	require.NoError(t, st.InTx(ctx, nil, func(ctx context.Context, tx content.Tx) error {
		item = &content.Item{ClassInstanceID: 1, Title: "Lab", Type: content.TypeAssignment, OwnerID: owner.ID}
		return tx.InsertItem(ctx, item)
	}))

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		acc, err := st.CreateAccount(ctx, &accounts.Account{TelegramID: int64(100 + i), FullName: "S", ClassInstanceID: 1})
		require.NoError(t, err)
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := svc.ToggleReaction(ctx, content.ToggleRequest{ItemID: item.ID, AccountID: id, Desired: reactions.Like})
			errs <- err
		}(acc.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	o, err := st.GetAccount(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, points.Whole(n), o.Points)

	view, err := svc.GetItem(ctx, item.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, n, view.Item.Likes)
}

func TestStoreCancelledTxRollsBack(t *testing.T) {
	st := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	acc, err := st.CreateAccount(context.Background(), &accounts.Account{TelegramID: 7, FullName: "A", ClassInstanceID: 1})
	require.NoError(t, err)

	err = st.InTx(ctx, nil, func(ctx context.Context, tx content.Tx) error {
		if _, err := tx.AddAccountPoints(ctx, acc.ID, points.Whole(3)); err != nil {
			return err
		}
		cancel()
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	got, err := st.GetAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, points.Points(0), got.Points)
}
