package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/features/accounts"
	"studyhub.dev/portal-bot/internal/features/content"
	"studyhub.dev/portal-bot/internal/features/points"
	"studyhub.dev/portal-bot/internal/features/reactions"
)

func seed(t *testing.T) (*Store, *accounts.Account, *content.Item) {
	t.Helper()
	st := New()
	acc, err := st.CreateAccount(context.Background(), &accounts.Account{TelegramID: 1, ClassInstanceID: 1})
	require.NoError(t, err)
	item := st.SeedItem(content.Item{ClassInstanceID: 1, Title: "notes", Type: content.TypeNote, OwnerID: acc.ID})
	return st, acc, item
}

func TestCreateAccountReturnsExisting(t *testing.T) {
	st := New()
	ctx := context.Background()

	a, err := st.CreateAccount(ctx, &accounts.Account{TelegramID: 7, Username: "first"})
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleStudent, a.Role)

	b, err := st.CreateAccount(ctx, &accounts.Account{TelegramID: 7, Username: "second"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "first", b.Username)

	_, err = st.GetAccountByTelegramID(ctx, 8)
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestInTxRollsBackOnError(t *testing.T) {
	st, acc, item := seed(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.InTx(ctx, []content.LockKey{content.ItemKey(item.ID)}, func(ctx context.Context, tx content.Tx) error {
		_, err := tx.AddAccountPoints(ctx, acc.ID, points.Whole(3))
		require.NoError(t, err)
		require.NoError(t, tx.PutReaction(ctx, &reactions.Reaction{ItemID: item.ID, AccountID: acc.ID, State: reactions.Like, Version: 1}))
		require.NoError(t, tx.AdjustReactionCounts(ctx, item.ID, 1, 0))
		require.NoError(t, tx.InsertComment(ctx, &content.Comment{ID: uuid.New(), ItemID: item.ID, AuthorID: acc.ID, Text: "x"}))
		fresh, err := tx.ClaimAward(ctx, points.Event{Key: "k", AccountID: acc.ID, Delta: points.Whole(3)})
		require.NoError(t, err)
		require.True(t, fresh)

		// внутри транзакции записи видны
		bal, err := tx.AccountPoints(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, points.Whole(3), bal)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := st.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, points.Points(0), got.Points)
	assert.Nil(t, st.Reaction(item.ID, acc.ID))
	assert.Empty(t, st.Events(acc.ID))

	err = st.InTx(ctx, nil, func(ctx context.Context, tx content.Tx) error {
		it, err := tx.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, it.Likes)
		n, err := tx.CountComments(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		return nil
	})
	require.NoError(t, err)
}

func TestClaimAwardOnce(t *testing.T) {
	st, acc, _ := seed(t)
	ctx := context.Background()
	ev := points.Event{Key: "upload:1", AccountID: acc.ID, Delta: points.Whole(5)}

	claim := func() bool {
		var fresh bool
		require.NoError(t, st.InTx(ctx, nil, func(ctx context.Context, tx content.Tx) error {
			var err error
			fresh, err = tx.ClaimAward(ctx, ev)
			return err
		}))
		return fresh
	}
	assert.True(t, claim())
	assert.False(t, claim())
	assert.Len(t, st.Events(acc.ID), 1)
}

func TestLockWaitHonoursContext(t *testing.T) {
	st, _, item := seed(t)
	key := []content.LockKey{content.ItemKey(item.ID)}

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- st.InTx(context.Background(), key, func(context.Context, content.Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := st.InTx(ctx, key, func(context.Context, content.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)

	close(release)
	require.NoError(t, <-done)

	// блокировка освобождена
	require.NoError(t, st.InTx(context.Background(), key, func(context.Context, content.Tx) error { return nil }))
	assert.Empty(t, st.locks.locks)
}

func TestDeleteItemCascades(t *testing.T) {
	st, acc, item := seed(t)
	ctx := context.Background()
	other := st.SeedItem(content.Item{ClassInstanceID: 1, Title: "other", Type: content.TypeNote, OwnerID: acc.ID})
	commentID := uuid.New()

	require.NoError(t, st.InTx(ctx, nil, func(ctx context.Context, tx content.Tx) error {
		require.NoError(t, tx.PutReaction(ctx, &reactions.Reaction{ItemID: item.ID, AccountID: acc.ID, State: reactions.Like, Version: 1}))
		require.NoError(t, tx.PutReaction(ctx, &reactions.Reaction{ItemID: other.ID, AccountID: acc.ID, State: reactions.Like, Version: 1}))
		return tx.InsertComment(ctx, &content.Comment{ID: commentID, ItemID: item.ID, AuthorID: acc.ID, Text: "hi"})
	}))

	require.NoError(t, st.InTx(ctx, nil, func(ctx context.Context, tx content.Tx) error {
		return tx.DeleteItem(ctx, item.ID)
	}))

	assert.Nil(t, st.Reaction(item.ID, acc.ID))
	assert.NotNil(t, st.Reaction(other.ID, acc.ID))

	err := st.InTx(ctx, nil, func(ctx context.Context, tx content.Tx) error {
		_, err := tx.GetItem(ctx, item.ID)
		assert.ErrorIs(t, err, common.ErrItemNotFound)
		_, err = tx.GetComment(ctx, commentID)
		assert.ErrorIs(t, err, common.ErrCommentNotFound)
		ids, err := tx.ListItemIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{other.ID}, ids)
		return nil
	})
	require.NoError(t, err)
}

func TestTopAccountsOrder(t *testing.T) {
	st := New()
	ctx := context.Background()
	balances := []int64{3, 7, 3, 0}
	var ids []int64
	for i, b := range balances {
		a, err := st.CreateAccount(ctx, &accounts.Account{TelegramID: int64(100 + i), ClassInstanceID: 1})
		require.NoError(t, err)
		require.NoError(t, st.InTx(ctx, nil, func(ctx context.Context, tx content.Tx) error {
			_, err := tx.AddAccountPoints(ctx, a.ID, points.Whole(b))
			return err
		}))
		ids = append(ids, a.ID)
	}
	_, err := st.CreateAccount(ctx, &accounts.Account{TelegramID: 999, ClassInstanceID: 2})
	require.NoError(t, err)

	top, err := st.TopAccounts(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []int64{ids[1], ids[0], ids[2]}, []int64{top[0].ID, top[1].ID, top[2].ID})

	n, err := st.CountAccountsAbove(ctx, 1, points.Whole(3))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
