// Package points - awarder.go применяет дельты к балансам.
// Все методы вызываются внутри транзакции фасада: запись реакции/комментария
// и начисление фиксируются вместе или не фиксируются вовсе.
package points

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/features/reactions"
)

// Store - операции хранилища, которые нужны начислятору.
type Store interface {
	// ClaimAward записывает событие. false - событие с таким ключом уже есть.
	ClaimAward(ctx context.Context, ev Event) (bool, error)
	AccountPoints(ctx context.Context, accountID int64) (Points, error)
	// AddAccountPoints атомарно прибавляет дельту и возвращает новый баланс.
	AddAccountPoints(ctx context.Context, accountID int64, delta Points) (Points, error)
	AddItemPointsEarned(ctx context.Context, itemID int64, delta Points) (Points, error)
}

// Awarder переводит события в начисления по выбранной политике.
type Awarder struct {
	policy Policy
}

// NewAwarder создаёт начислятор.
func NewAwarder(policy Policy) *Awarder {
	if policy == nil {
		policy = FlatPolicy{}
	}
	return &Awarder{policy: policy}
}

// Policy возвращает активную политику.
func (a *Awarder) Policy() Policy { return a.policy }

// Award применяет одно событие. Событие с уже учтённым ключом не меняет баланс.
func (a *Awarder) Award(ctx context.Context, st Store, ev Event) (Award, error) {
	if ev.Key == "" {
		return Award{}, common.ErrMissingEventKey
	}

	fresh, err := st.ClaimAward(ctx, ev)
	if err != nil {
		return Award{}, fmt.Errorf("claim award %s: %w", ev.Key, err)
	}
	if !fresh {
		balance, err := st.AccountPoints(ctx, ev.AccountID)
		if err != nil {
			return Award{}, err
		}
		log.WithField("event", ev.Key).Debug("Начисление уже учтено, пропускаем")
		return Award{Event: ev, Applied: false, Balance: balance}, nil
	}

	balance, err := st.AddAccountPoints(ctx, ev.AccountID, ev.Delta)
	if err != nil {
		return Award{}, fmt.Errorf("apply award %s: %w", ev.Key, err)
	}
	return Award{Event: ev, Applied: true, Balance: balance}, nil
}

// AwardForTransition начисляет автору материала дельту перехода реакции
// и двигает счётчик "очки за материал" на ту же величину.
// Реакция владельца на свой материал ничего не начисляет.
func (a *Awarder) AwardForTransition(ctx context.Context, st Store, item Item, t reactions.Transition) (Award, error) {
	ev := Event{
		Key:       ReactionEventKey(item.ID, t.AccountID, t.Version),
		AccountID: item.OwnerID,
		ItemID:    item.ID,
		Reason:    ReasonReaction,
	}
	if t.AccountID == item.OwnerID {
		return Award{Event: ev}, nil
	}

	ev.Delta = a.policy.ReactionDelta(t)
	if ev.Delta == 0 {
		return Award{Event: ev}, nil
	}

	aw, err := a.Award(ctx, st, ev)
	if err != nil {
		return Award{}, err
	}
	if aw.Applied {
		if _, err := st.AddItemPointsEarned(ctx, item.ID, ev.Delta); err != nil {
			return Award{}, fmt.Errorf("update item points: %w", err)
		}
	}
	return aw, nil
}

// AwardComment начисляет комментатору и, если это не он сам, владельцу.
// Возвращает начисления в порядке: комментатор, владелец.
func (a *Awarder) AwardComment(ctx context.Context, st Store, item Item, commenterID int64, commentID string) ([]Award, error) {
	commenterDelta, ownerDelta := a.policy.CommentAwards()

	author, err := a.Award(ctx, st, Event{
		Key:       CommentEventKey(commentID, false),
		AccountID: commenterID,
		ItemID:    item.ID,
		Delta:     commenterDelta,
		Reason:    ReasonComment,
	})
	if err != nil {
		return nil, err
	}
	awards := []Award{author}

	if commenterID == item.OwnerID {
		return awards, nil
	}

	owner, err := a.Award(ctx, st, Event{
		Key:       CommentEventKey(commentID, true),
		AccountID: item.OwnerID,
		ItemID:    item.ID,
		Delta:     ownerDelta,
		Reason:    ReasonCommentOwner,
	})
	if err != nil {
		return nil, err
	}
	if owner.Applied && ownerDelta != 0 {
		if _, err := st.AddItemPointsEarned(ctx, item.ID, ownerDelta); err != nil {
			return nil, fmt.Errorf("update item points: %w", err)
		}
	}
	return append(awards, owner), nil
}

// AwardUpload начисляет владельцу за загрузку один раз на материал.
func (a *Awarder) AwardUpload(ctx context.Context, st Store, item Item) (Award, error) {
	return a.Award(ctx, st, Event{
		Key:       UploadEventKey(item.ID),
		AccountID: item.OwnerID,
		ItemID:    item.ID,
		Delta:     a.policy.UploadAward(item.ContentType),
		Reason:    ReasonUpload,
	})
}
