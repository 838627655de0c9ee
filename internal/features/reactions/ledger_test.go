package reactions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub.dev/portal-bot/internal/common"
)

type key struct{ item, account int64 }

// fakeStore - журнал в map без транзакций.
type fakeStore struct {
	items   map[int64]bool
	rows    map[key]Reaction
	failPut error
}

func newFakeStore(items ...int64) *fakeStore {
	s := &fakeStore{items: map[int64]bool{}, rows: map[key]Reaction{}}
	for _, id := range items {
		s.items[id] = true
	}
	return s
}

func (s *fakeStore) ItemExists(_ context.Context, itemID int64) (bool, error) {
	return s.items[itemID], nil
}

func (s *fakeStore) GetReaction(_ context.Context, itemID, accountID int64) (*Reaction, error) {
	r, ok := s.rows[key{itemID, accountID}]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *fakeStore) PutReaction(_ context.Context, r *Reaction) error {
	if s.failPut != nil {
		return s.failPut
	}
	s.rows[key{r.ItemID, r.AccountID}] = *r
	return nil
}

func TestNext(t *testing.T) {
	tests := []struct {
		current, desired, want State
	}{
		{None, Like, Like},
		{None, Dislike, Dislike},
		{Like, Like, None},
		{Like, Dislike, Dislike},
		{Dislike, Dislike, None},
		{Dislike, Like, Like},
	}
	for _, tt := range tests {
		t.Run(string(tt.current)+"+"+string(tt.desired), func(t *testing.T) {
			got, err := Next(tt.current, tt.desired)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Next(None, None)
	assert.ErrorIs(t, err, common.ErrUnknownReaction)
	_, err = Next(State("love"), Like)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestTransitionDeltas(t *testing.T) {
	tests := []struct {
		from, to        State
		likes, dislikes int
		score           int
	}{
		{None, Like, 1, 0, 1},
		{Like, None, -1, 0, -1},
		{None, Dislike, 0, 1, -1},
		{Dislike, None, 0, -1, 1},
		{Like, Dislike, -1, 1, -2},
		{Dislike, Like, 1, -1, 2},
	}
	for _, tt := range tests {
		tr := Transition{From: tt.from, To: tt.to}
		likes, dislikes := tr.CountDeltas()
		assert.Equal(t, tt.likes, likes, "%s→%s likes", tt.from, tt.to)
		assert.Equal(t, tt.dislikes, dislikes, "%s→%s dislikes", tt.from, tt.to)
		assert.Equal(t, tt.score, tr.ScoreDelta(), "%s→%s score", tt.from, tt.to)
	}
}

func TestLedgerApply(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore(1)
	l := NewLedger()

	cur, err := l.Current(ctx, st, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, None, cur)

	tr, err := l.Apply(ctx, st, 1, 7, Like)
	require.NoError(t, err)
	assert.Equal(t, Transition{ItemID: 1, AccountID: 7, From: None, To: Like, Version: 1}, tr)

	tr, err = l.Apply(ctx, st, 1, 7, Like)
	require.NoError(t, err)
	assert.Equal(t, None, tr.To)
	assert.Equal(t, int64(2), tr.Version)

	// строка остаётся после снятия реакции
	row := st.rows[key{1, 7}]
	assert.Equal(t, None, row.State)
	assert.Equal(t, int64(2), row.Version)

	tr, err = l.Apply(ctx, st, 1, 7, Dislike)
	require.NoError(t, err)
	assert.Equal(t, int64(3), tr.Version)
}

func TestLedgerApplyErrors(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	_, err := l.Apply(ctx, newFakeStore(), 1, 7, Like)
	assert.ErrorIs(t, err, common.ErrItemNotFound)

	_, err = l.Apply(ctx, newFakeStore(1), 1, 7, None)
	assert.ErrorIs(t, err, common.ErrUnknownReaction)

	st := newFakeStore(1)
	st.failPut = errors.New("disk full")
	_, err = l.Apply(ctx, st, 1, 7, Like)
	assert.Error(t, err)
	assert.Empty(t, st.rows)
}

func TestParseDesired(t *testing.T) {
	st, err := ParseDesired(" LIKE ")
	require.NoError(t, err)
	assert.Equal(t, Like, st)

	_, err = ParseDesired("none")
	assert.ErrorIs(t, err, common.ErrUnknownReaction)
	_, err = ParseDesired("meh")
	assert.ErrorIs(t, err, common.ErrUnknownReaction)
}
