package points

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/features/reactions"
)

// fakeStore - балансы и журнал событий в map.
type fakeStore struct {
	balances map[int64]Points
	earned   map[int64]Points
	events   map[string]Event
	failAdd  error
}

func newFakeStore(accounts ...int64) *fakeStore {
	s := &fakeStore{
		balances: map[int64]Points{},
		earned:   map[int64]Points{},
		events:   map[string]Event{},
	}
	for _, id := range accounts {
		s.balances[id] = 0
	}
	return s
}

func (s *fakeStore) ClaimAward(_ context.Context, ev Event) (bool, error) {
	if _, ok := s.events[ev.Key]; ok {
		return false, nil
	}
	s.events[ev.Key] = ev
	return true, nil
}

func (s *fakeStore) AccountPoints(_ context.Context, id int64) (Points, error) {
	p, ok := s.balances[id]
	if !ok {
		return 0, common.ErrAccountNotFound
	}
	return p, nil
}

func (s *fakeStore) AddAccountPoints(_ context.Context, id int64, delta Points) (Points, error) {
	if s.failAdd != nil {
		return 0, s.failAdd
	}
	if _, ok := s.balances[id]; !ok {
		return 0, common.ErrAccountNotFound
	}
	s.balances[id] += delta
	return s.balances[id], nil
}

func (s *fakeStore) AddItemPointsEarned(_ context.Context, itemID int64, delta Points) (Points, error) {
	s.earned[itemID] += delta
	return s.earned[itemID], nil
}

func TestPointsString(t *testing.T) {
	tests := []struct {
		p      Points
		str    string
		signed string
	}{
		{Whole(5), "5", "+5"},
		{Whole(-1), "-1", "-1"},
		{Tenths(1), "0.1", "+0.1"},
		{Tenths(125), "12.5", "+12.5"},
		{Tenths(-3), "-0.3", "-0.3"},
		{0, "0", "+0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.str, tt.p.String())
		assert.Equal(t, tt.signed, tt.p.Signed())
	}
}

func TestEventKeys(t *testing.T) {
	assert.Equal(t, "upload:3", UploadEventKey(3))
	assert.Equal(t, "comment:abc:author", CommentEventKey("abc", false))
	assert.Equal(t, "comment:abc:owner", CommentEventKey("abc", true))
	assert.Equal(t, "reaction:3:9:2", ReactionEventKey(3, 9, 2))
}

func TestPolicies(t *testing.T) {
	flat, err := PolicyByName("")
	require.NoError(t, err)
	assert.Equal(t, PolicyFlat, flat.Name())
	assert.Equal(t, Whole(5), flat.UploadAward("note"))
	c, o := flat.CommentAwards()
	assert.Equal(t, Whole(1), c)
	assert.Equal(t, Whole(1), o)

	typed, err := PolicyByName(PolicyTyped)
	require.NoError(t, err)
	assert.Equal(t, Whole(10), typed.UploadAward("assignment"))
	assert.Equal(t, Whole(30), typed.UploadAward("note"))
	assert.Equal(t, Whole(25), typed.UploadAward("pastPaper"))
	assert.Equal(t, Points(0), typed.UploadAward("video"))
	c, o = typed.CommentAwards()
	assert.Equal(t, Tenths(1), c)
	assert.Equal(t, Points(0), o)

	_, err = PolicyByName("lavish")
	assert.Error(t, err)
}

func TestReactionDeltaTable(t *testing.T) {
	p := FlatPolicy{}
	tests := []struct {
		from, to reactions.State
		want     Points
	}{
		{reactions.None, reactions.Like, Whole(1)},
		{reactions.Like, reactions.None, Whole(-1)},
		{reactions.None, reactions.Dislike, Whole(-1)},
		{reactions.Dislike, reactions.None, Whole(1)},
		{reactions.Like, reactions.Dislike, Whole(-2)},
		{reactions.Dislike, reactions.Like, Whole(2)},
	}
	for _, tt := range tests {
		got := p.ReactionDelta(reactions.Transition{From: tt.from, To: tt.to})
		assert.Equal(t, tt.want, got, "%s→%s", tt.from, tt.to)
	}
}

func TestAwardIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore(1)
	a := NewAwarder(FlatPolicy{})

	ev := Event{Key: "upload:1", AccountID: 1, ItemID: 1, Delta: Whole(5), Reason: ReasonUpload}
	aw, err := a.Award(ctx, st, ev)
	require.NoError(t, err)
	assert.True(t, aw.Applied)
	assert.Equal(t, Whole(5), aw.Balance)

	aw, err = a.Award(ctx, st, ev)
	require.NoError(t, err)
	assert.False(t, aw.Applied)
	assert.Equal(t, Whole(5), aw.Balance)
	assert.Equal(t, Whole(5), st.balances[1])

	_, err = a.Award(ctx, st, Event{AccountID: 1, Delta: Whole(1)})
	assert.ErrorIs(t, err, common.ErrMissingEventKey)
}

func TestAwardUnknownAccount(t *testing.T) {
	a := NewAwarder(nil)
	_, err := a.AwardUpload(context.Background(), newFakeStore(), Item{ID: 1, OwnerID: 42})
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestAwardForTransition(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore(1, 2)
	a := NewAwarder(FlatPolicy{})
	item := Item{ID: 10, OwnerID: 1}

	aw, err := a.AwardForTransition(ctx, st, item, reactions.Transition{
		ItemID: 10, AccountID: 2, From: reactions.None, To: reactions.Like, Version: 1,
	})
	require.NoError(t, err)
	assert.True(t, aw.Applied)
	assert.Equal(t, Whole(1), st.balances[1])
	assert.Equal(t, Whole(1), st.earned[10])

	aw, err = a.AwardForTransition(ctx, st, item, reactions.Transition{
		ItemID: 10, AccountID: 2, From: reactions.Like, To: reactions.Dislike, Version: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, Whole(-2), aw.Delta)
	assert.Equal(t, Whole(-1), st.balances[1])
	assert.Equal(t, Whole(-1), st.earned[10])

	// повтор того же перехода
	aw, err = a.AwardForTransition(ctx, st, item, reactions.Transition{
		ItemID: 10, AccountID: 2, From: reactions.Like, To: reactions.Dislike, Version: 2,
	})
	require.NoError(t, err)
	assert.False(t, aw.Applied)
	assert.Equal(t, Whole(-1), st.balances[1])
}

func TestAwardForOwnReactionIsSuppressed(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore(1)
	a := NewAwarder(FlatPolicy{})

	aw, err := a.AwardForTransition(ctx, st, Item{ID: 10, OwnerID: 1}, reactions.Transition{
		ItemID: 10, AccountID: 1, From: reactions.None, To: reactions.Like, Version: 1,
	})
	require.NoError(t, err)
	assert.False(t, aw.Applied)
	assert.Equal(t, Points(0), st.balances[1])
	assert.Empty(t, st.events)
}

func TestAwardComment(t *testing.T) {
	ctx := context.Background()
	a := NewAwarder(FlatPolicy{})

	st := newFakeStore(1, 2)
	awards, err := a.AwardComment(ctx, st, Item{ID: 10, OwnerID: 1}, 2, "c1")
	require.NoError(t, err)
	require.Len(t, awards, 2)
	assert.Equal(t, int64(2), awards[0].AccountID)
	assert.Equal(t, int64(1), awards[1].AccountID)
	assert.Equal(t, Whole(1), st.balances[1])
	assert.Equal(t, Whole(1), st.balances[2])
	assert.Equal(t, Whole(1), st.earned[10])

	// владелец комментирует свой материал: только начисление комментатору
	st = newFakeStore(1)
	awards, err = a.AwardComment(ctx, st, Item{ID: 10, OwnerID: 1}, 1, "c2")
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, Whole(1), st.balances[1])
	assert.Equal(t, Points(0), st.earned[10])
}

func TestAwardCommentStoreFailure(t *testing.T) {
	st := newFakeStore(1, 2)
	st.failAdd = errors.New("connection reset")
	_, err := NewAwarder(FlatPolicy{}).AwardComment(context.Background(), st, Item{ID: 10, OwnerID: 1}, 2, "c1")
	assert.Error(t, err)
}
