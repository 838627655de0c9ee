package accounts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/config"
	"studyhub.dev/portal-bot/internal/db/memory"
	"studyhub.dev/portal-bot/internal/features/accounts"
	"studyhub.dev/portal-bot/internal/features/content"
	"studyhub.dev/portal-bot/internal/features/points"
	"studyhub.dev/portal-bot/internal/features/ranks"
)

func newService(st *memory.Store) *accounts.Service {
	cfg := &config.Config{DefaultClassInstanceID: 3, AdminIDs: []int64{42}}
	return accounts.NewService(st, ranks.DefaultTable(), cfg)
}

func addPoints(t *testing.T, st *memory.Store, id int64, p points.Points) {
	t.Helper()
	require.NoError(t, st.InTx(context.Background(), nil, func(ctx context.Context, tx content.Tx) error {
		_, err := tx.AddAccountPoints(ctx, id, p)
		return err
	}))
}

func TestEnsureAccount(t *testing.T) {
	st := memory.New()
	svc := newService(st)
	ctx := context.Background()

	acc, err := svc.EnsureAccount(ctx, 10, "amina", "  ")
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleStudent, acc.Role)
	assert.Equal(t, int64(3), acc.ClassInstanceID)
	assert.Equal(t, "amina", acc.FullName)
	assert.Equal(t, points.Points(0), acc.Points)

	again, err := svc.EnsureAccount(ctx, 10, "renamed", "Amina W")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, again.ID)

	admin, err := svc.EnsureAccount(ctx, 42, "", "Class Rep")
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleAdmin, admin.Role)
	assert.True(t, admin.IsAdmin())
	assert.Equal(t, "Class Rep", admin.DisplayName())
}

func TestProfileReadsCurrentBalance(t *testing.T) {
	st := memory.New()
	svc := newService(st)
	ctx := context.Background()

	acc, err := svc.EnsureAccount(ctx, 10, "amina", "")
	require.NoError(t, err)

	p, err := svc.Profile(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Novice", p.Rank.Title)
	require.NotNil(t, p.Progress.Next)
	assert.Equal(t, "Knowledge Keeper", p.Progress.Next.Title)
	assert.Equal(t, points.Whole(5), p.Progress.PointsNeeded)

	addPoints(t, st, acc.ID, points.Whole(26))
	p, err = svc.Profile(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, points.Whole(26), p.Account.Points)
	assert.Equal(t, "Insight Voyager", p.Rank.Title)
	assert.Equal(t, "Wisdom Weaver", p.Progress.Next.Title)
	assert.Equal(t, points.Whole(4), p.Progress.PointsNeeded)

	_, err = svc.Profile(ctx, 999)
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}
