// Package reactions - ledger.go содержит правила переходов реакций.
// Журнал не трогает очки: начисления делает points.Awarder через фасад.
package reactions

import (
	"context"
	"fmt"
	"time"

	"studyhub.dev/portal-bot/internal/common"
)

// Store - то, что журналу нужно от хранилища внутри транзакции.
type Store interface {
	ItemExists(ctx context.Context, itemID int64) (bool, error)
	// GetReaction возвращает nil, nil если строки ещё нет.
	GetReaction(ctx context.Context, itemID, accountID int64) (*Reaction, error)
	PutReaction(ctx context.Context, r *Reaction) error
}

// Ledger - единственный источник истины о том, кто как отреагировал.
type Ledger struct {
	now func() time.Time
}

// NewLedger создаёт журнал реакций.
func NewLedger() *Ledger {
	return &Ledger{now: time.Now}
}

// Next вычисляет новое состояние по текущему и желаемому.
//
//	NONE    + LIKE    → LIKE
//	LIKE    + LIKE    → NONE (снять лайк)
//	LIKE    + DISLIKE → DISLIKE (переключить)
//
// Для DISLIKE всё симметрично.
func Next(current, desired State) (State, error) {
	if desired != Like && desired != Dislike {
		return None, common.ErrUnknownReaction
	}
	if !current.Valid() {
		return None, fmt.Errorf("%w: stored state %q", common.ErrUnknownReaction, current)
	}
	if current == desired {
		return None, nil
	}
	return desired, nil
}

// Current возвращает текущую реакцию пользователя, по умолчанию None.
func (l *Ledger) Current(ctx context.Context, st Store, itemID, accountID int64) (State, error) {
	r, err := l.load(ctx, st, itemID, accountID)
	if err != nil {
		return None, err
	}
	return r.State, nil
}

// Apply вычисляет и сохраняет переход. Вызывается только внутри транзакции,
// которая держит блокировку на пару (материал, пользователь).
func (l *Ledger) Apply(ctx context.Context, st Store, itemID, accountID int64, desired State) (Transition, error) {
	r, err := l.load(ctx, st, itemID, accountID)
	if err != nil {
		return Transition{}, err
	}

	next, err := Next(r.State, desired)
	if err != nil {
		return Transition{}, err
	}

	tr := Transition{
		ItemID:    itemID,
		AccountID: accountID,
		From:      r.State,
		To:        next,
		Version:   r.Version + 1,
	}

	r.State = next
	r.Version = tr.Version
	r.UpdatedAt = l.now()
	if err := st.PutReaction(ctx, r); err != nil {
		return Transition{}, fmt.Errorf("save reaction: %w", err)
	}
	return tr, nil
}

func (l *Ledger) load(ctx context.Context, st Store, itemID, accountID int64) (*Reaction, error) {
	ok, err := st.ItemExists(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrItemNotFound
	}

	r, err := st.GetReaction(ctx, itemID, accountID)
	if err != nil {
		return nil, fmt.Errorf("load reaction: %w", err)
	}
	if r == nil {
		r = &Reaction{ItemID: itemID, AccountID: accountID, State: None}
	}
	return r, nil
}
