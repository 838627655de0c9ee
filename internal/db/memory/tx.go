package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/features/accounts"
	"studyhub.dev/portal-bot/internal/features/content"
	"studyhub.dev/portal-bot/internal/features/points"
	"studyhub.dev/portal-bot/internal/features/reactions"
)

type counts struct {
	likes    int
	dislikes int
	absolute bool // SetReactionCounts: значения заменяют сохранённые
}

// tx - буфер изменений поверх Store. Чтения видят собственные записи.
type tx struct {
	s *Store

	reactions       map[reactionKey]*reactions.Reaction
	accountDeltas   map[int64]points.Points
	earnedDeltas    map[int64]points.Points
	counts          map[int64]*counts
	newItems        map[int64]*content.Item
	deletedItems    map[int64]bool
	comments        map[uuid.UUID]*content.Comment
	deletedComments map[uuid.UUID]bool
	events          map[string]points.Event
	eventOrder      []string
	requests        map[string]bool
}

func newTx(s *Store) *tx {
	return &tx{
		s:               s,
		reactions:       make(map[reactionKey]*reactions.Reaction),
		accountDeltas:   make(map[int64]points.Points),
		earnedDeltas:    make(map[int64]points.Points),
		counts:          make(map[int64]*counts),
		newItems:        make(map[int64]*content.Item),
		deletedItems:    make(map[int64]bool),
		comments:        make(map[uuid.UUID]*content.Comment),
		deletedComments: make(map[uuid.UUID]bool),
		events:          make(map[string]points.Event),
		requests:        make(map[string]bool),
	}
}

var _ content.Tx = (*tx)(nil)

// --- материалы ---

func (t *tx) GetItem(_ context.Context, id int64) (*content.Item, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.itemLocked(id)
}

func (t *tx) itemLocked(id int64) (*content.Item, error) {
	if t.deletedItems[id] {
		return nil, common.ErrItemNotFound
	}
	base, ok := t.newItems[id]
	if !ok {
		base, ok = t.s.items[id]
	}
	if !ok {
		return nil, common.ErrItemNotFound
	}

	cp := *base
	cp.PointsEarned += t.earnedDeltas[id]
	if c := t.counts[id]; c != nil {
		if c.absolute {
			cp.Likes, cp.Dislikes = c.likes, c.dislikes
		} else {
			cp.Likes += c.likes
			cp.Dislikes += c.dislikes
		}
	}
	return &cp, nil
}

func (t *tx) ItemExists(ctx context.Context, itemID int64) (bool, error) {
	_, err := t.GetItem(ctx, itemID)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *tx) InsertItem(_ context.Context, item *content.Item) error {
	t.s.mu.Lock()
	t.s.nextItemID++
	item.ID = t.s.nextItemID
	t.s.mu.Unlock()

	if item.CreatedAt.IsZero() {
		item.CreatedAt = t.s.now()
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}
	cp := *item
	t.newItems[item.ID] = &cp
	return nil
}

func (t *tx) DeleteItem(ctx context.Context, id int64) error {
	if _, err := t.GetItem(ctx, id); err != nil {
		return err
	}
	t.deletedItems[id] = true
	return nil
}

func (t *tx) ListItemIDs(_ context.Context) ([]int64, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	ids := make([]int64, 0, len(t.s.items)+len(t.newItems))
	for id := range t.s.items {
		if !t.deletedItems[id] {
			ids = append(ids, id)
		}
	}
	for id := range t.newItems {
		if !t.deletedItems[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (t *tx) AdjustReactionCounts(ctx context.Context, itemID int64, likes, dislikes int) error {
	if _, err := t.GetItem(ctx, itemID); err != nil {
		return err
	}
	c := t.counts[itemID]
	if c == nil {
		c = &counts{}
		t.counts[itemID] = c
	}
	c.likes += likes
	c.dislikes += dislikes
	return nil
}

func (t *tx) SetReactionCounts(ctx context.Context, itemID int64, likes, dislikes int) error {
	if _, err := t.GetItem(ctx, itemID); err != nil {
		return err
	}
	t.counts[itemID] = &counts{likes: likes, dislikes: dislikes, absolute: true}
	return nil
}

func (t *tx) CountReactions(_ context.Context, itemID int64) (likes, dislikes int, err error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	merged := make(map[reactionKey]reactions.State)
	for k, r := range t.s.reactions {
		if k.itemID == itemID {
			merged[k] = r.State
		}
	}
	for k, r := range t.reactions {
		if k.itemID == itemID {
			merged[k] = r.State
		}
	}
	for _, st := range merged {
		switch st {
		case reactions.Like:
			likes++
		case reactions.Dislike:
			dislikes++
		}
	}
	return likes, dislikes, nil
}

// --- реакции ---

func (t *tx) GetReaction(_ context.Context, itemID, accountID int64) (*reactions.Reaction, error) {
	k := reactionKey{itemID, accountID}
	if r, ok := t.reactions[k]; ok {
		cp := *r
		return &cp, nil
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	if t.deletedItems[itemID] {
		return nil, nil
	}
	r, ok := t.s.reactions[k]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (t *tx) PutReaction(_ context.Context, r *reactions.Reaction) error {
	cp := *r
	t.reactions[reactionKey{r.ItemID, r.AccountID}] = &cp
	return nil
}

// --- запросы клиентов ---

func (t *tx) ClaimRequest(_ context.Context, key string) (bool, error) {
	if t.requests[key] {
		return false, nil
	}
	t.s.mu.RLock()
	seen := t.s.requests[key]
	t.s.mu.RUnlock()
	if seen {
		return false, nil
	}
	t.requests[key] = true
	return true, nil
}

// --- очки ---

func (t *tx) ClaimAward(_ context.Context, ev points.Event) (bool, error) {
	if _, ok := t.events[ev.Key]; ok {
		return false, nil
	}
	t.s.mu.RLock()
	_, ok := t.s.events[ev.Key]
	t.s.mu.RUnlock()
	if ok {
		return false, nil
	}

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = t.s.now()
	}
	t.events[ev.Key] = ev
	t.eventOrder = append(t.eventOrder, ev.Key)
	return true, nil
}

func (t *tx) AccountPoints(_ context.Context, accountID int64) (points.Points, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	a, ok := t.s.accounts[accountID]
	if !ok {
		return 0, common.ErrAccountNotFound
	}
	return a.Points + t.accountDeltas[accountID], nil
}

func (t *tx) AddAccountPoints(ctx context.Context, accountID int64, delta points.Points) (points.Points, error) {
	if _, err := t.AccountPoints(ctx, accountID); err != nil {
		return 0, err
	}
	t.accountDeltas[accountID] += delta
	return t.AccountPoints(ctx, accountID)
}

func (t *tx) AddItemPointsEarned(ctx context.Context, itemID int64, delta points.Points) (points.Points, error) {
	if _, err := t.GetItem(ctx, itemID); err != nil {
		return 0, err
	}
	t.earnedDeltas[itemID] += delta
	item, err := t.GetItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	return item.PointsEarned, nil
}

func (t *tx) GetAccount(_ context.Context, id int64) (*accounts.Account, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	a, ok := t.s.accounts[id]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	cp := *a
	cp.Points += t.accountDeltas[id]
	return &cp, nil
}

// --- комментарии ---

func (t *tx) GetComment(_ context.Context, id uuid.UUID) (*content.Comment, error) {
	if t.deletedComments[id] {
		return nil, common.ErrCommentNotFound
	}
	if c, ok := t.comments[id]; ok {
		cp := *c
		return &cp, nil
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	c, ok := t.s.comments[id]
	if !ok || t.deletedItems[c.ItemID] {
		return nil, common.ErrCommentNotFound
	}
	cp := *c
	return &cp, nil
}

func (t *tx) InsertComment(ctx context.Context, c *content.Comment) error {
	if _, err := t.GetComment(ctx, c.ID); err == nil {
		return fmt.Errorf("comment %s already exists", c.ID)
	}
	if _, err := t.GetItem(ctx, c.ItemID); err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = t.s.now()
	}
	cp := *c
	t.comments[c.ID] = &cp
	delete(t.deletedComments, c.ID)
	return nil
}

func (t *tx) DeleteComment(ctx context.Context, id uuid.UUID) error {
	if _, err := t.GetComment(ctx, id); err != nil {
		return err
	}
	delete(t.comments, id)
	t.deletedComments[id] = true
	return nil
}

func (t *tx) CountComments(_ context.Context, itemID int64) (int, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	if t.deletedItems[itemID] {
		return 0, nil
	}
	n := 0
	for id, c := range t.s.comments {
		if c.ItemID == itemID && !t.deletedComments[id] {
			if _, dup := t.comments[id]; !dup {
				n++
			}
		}
	}
	for _, c := range t.comments {
		if c.ItemID == itemID {
			n++
		}
	}
	return n, nil
}

// commit применяет буфер одним шагом под мьютексом хранилища.
func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	for id, it := range t.newItems {
		s.items[id] = it
	}
	for id, d := range t.earnedDeltas {
		if it, ok := s.items[id]; ok {
			it.PointsEarned += d
			it.UpdatedAt = now
		}
	}
	for id, c := range t.counts {
		it, ok := s.items[id]
		if !ok {
			continue
		}
		if c.absolute {
			it.Likes, it.Dislikes = c.likes, c.dislikes
		} else {
			it.Likes += c.likes
			it.Dislikes += c.dislikes
		}
		it.UpdatedAt = now
	}
	for k, r := range t.reactions {
		s.reactions[k] = r
	}
	for id, c := range t.comments {
		s.comments[id] = c
	}
	for id := range t.deletedComments {
		delete(s.comments, id)
	}
	for id := range t.deletedItems {
		delete(s.items, id)
		for k := range s.reactions {
			if k.itemID == id {
				delete(s.reactions, k)
			}
		}
		for cid, c := range s.comments {
			if c.ItemID == id {
				delete(s.comments, cid)
			}
		}
	}
	for id, d := range t.accountDeltas {
		if a, ok := s.accounts[id]; ok {
			a.Points += d
			a.UpdatedAt = now
		}
	}
	for _, key := range t.eventOrder {
		s.events[key] = t.events[key]
		s.eventOrder = append(s.eventOrder, key)
	}
	for key := range t.requests {
		s.requests[key] = true
	}
}
