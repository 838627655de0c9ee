// Package content - service.go объединяет журнал реакций и начисления
// в атомарные операции: реакция, комментарий, загрузка.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/config"
	"studyhub.dev/portal-bot/internal/features/points"
	"studyhub.dev/portal-bot/internal/features/reactions"
)

// Service - фасад взаимодействия с материалами.
type Service struct {
	store   Store
	ledger  *reactions.Ledger
	awarder *points.Awarder
	cfg     *config.Config
	now     func() time.Time
}

// NewService создаёт фасад.
func NewService(store Store, ledger *reactions.Ledger, awarder *points.Awarder, cfg *config.Config) *Service {
	return &Service{
		store:   store,
		ledger:  ledger,
		awarder: awarder,
		cfg:     cfg,
		now:     time.Now,
	}
}

// ToggleReaction применяет like/dislike и начисление автору одной транзакцией.
// Повтор уже выполненного запроса с тем же Expected ничего не меняет.
func (s *Service) ToggleReaction(ctx context.Context, req ToggleRequest) (*ToggleResult, error) {
	if req.Desired != reactions.Like && req.Desired != reactions.Dislike {
		return nil, common.ErrUnknownReaction
	}
	if req.Expected != nil && !req.Expected.Valid() {
		return nil, common.ErrUnknownReaction
	}

	var res *ToggleResult
	keys := []LockKey{ItemKey(req.ItemID), ReactionKey(req.ItemID, req.AccountID)}

	err := s.inTx(ctx, keys, func(ctx context.Context, tx Tx) error {
		item, err := tx.GetItem(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if _, err := tx.GetAccount(ctx, req.AccountID); err != nil {
			return err
		}

		current, err := s.ledger.Current(ctx, tx, item.ID, req.AccountID)
		if err != nil {
			return err
		}
		unchanged := &ToggleResult{
			ItemID:   item.ID,
			State:    current,
			Likes:    item.Likes,
			Dislikes: item.Dislikes,
		}
		if req.Expected != nil && *req.Expected != current {
			res = unchanged
			return nil
		}
		if req.RequestKey != "" {
			fresh, err := tx.ClaimRequest(ctx, ToggleRequestKey(req.RequestKey))
			if err != nil {
				return fmt.Errorf("claim request: %w", err)
			}
			if !fresh {
				res = unchanged
				return nil
			}
		}

		tr, err := s.ledger.Apply(ctx, tx, item.ID, req.AccountID, req.Desired)
		if err != nil {
			return err
		}

		likes, dislikes := tr.CountDeltas()
		if err := tx.AdjustReactionCounts(ctx, item.ID, likes, dislikes); err != nil {
			return fmt.Errorf("update reaction counts: %w", err)
		}

		award, err := s.awarder.AwardForTransition(ctx, tx, item.Ref(), tr)
		if err != nil {
			return err
		}

		res = &ToggleResult{
			ItemID:     item.ID,
			State:      tr.To,
			Likes:      item.Likes + likes,
			Dislikes:   item.Dislikes + dislikes,
			Applied:    true,
			Transition: tr,
		}
		if award.Applied {
			res.CreatorDelta = award.Delta
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"item_id":    req.ItemID,
		"account_id": req.AccountID,
		"state":      res.State,
		"applied":    res.Applied,
		"delta":      res.CreatorDelta.String(),
	}).Debug("Реакция обработана")
	return res, nil
}

// PostComment создаёт комментарий и начисляет комментатору и владельцу.
// Повтор с тем же ID возвращает уже созданный комментарий без начислений.
func (s *Service) PostComment(ctx context.Context, req CommentRequest) (*CommentResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, common.ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > s.cfg.CommentMaxLength {
		return nil, common.ErrCommentTooLong
	}

	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var res *CommentResult
	keys := []LockKey{ItemKey(req.ItemID), CommentKey(id)}

	err := s.inTx(ctx, keys, func(ctx context.Context, tx Tx) error {
		item, err := tx.GetItem(ctx, req.ItemID)
		if err != nil {
			return err
		}
		author, err := tx.GetAccount(ctx, req.AuthorID)
		if err != nil {
			return err
		}

		existing, err := tx.GetComment(ctx, id)
		switch {
		case err == nil:
			if existing.ItemID != req.ItemID || existing.AuthorID != req.AuthorID || existing.Text != text {
				return common.ErrCommentIDReused
			}
			res = &CommentResult{Comment: existing, Duplicate: true}
			return nil
		case !errors.Is(err, common.ErrNotFound):
			return err
		}

		c := &Comment{
			ID:        id,
			ItemID:    item.ID,
			AuthorID:  author.ID,
			Text:      text,
			CreatedAt: s.now(),
		}
		if err := tx.InsertComment(ctx, c); err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}

		awards, err := s.awarder.AwardComment(ctx, tx, item.Ref(), author.ID, id.String())
		if err != nil {
			return err
		}
		res = &CommentResult{Comment: c, Awards: awards}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"comment_id": res.Comment.ID,
		"item_id":    req.ItemID,
		"author_id":  req.AuthorID,
		"duplicate":  res.Duplicate,
	}).Info("Комментарий добавлен")
	return res, nil
}

// RecordUpload начисляет владельцу за уже созданный материал.
// Начисление происходит один раз на материал, сколько бы раз ни повторяли вызов.
func (s *Service) RecordUpload(ctx context.Context, itemID, ownerID int64) (*UploadResult, error) {
	var res *UploadResult

	err := s.inTx(ctx, []LockKey{ItemKey(itemID)}, func(ctx context.Context, tx Tx) error {
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.OwnerID != ownerID {
			return common.ErrNotOwner
		}

		award, err := s.awarder.AwardUpload(ctx, tx, item.Ref())
		if err != nil {
			return err
		}
		res = &UploadResult{Item: item, Award: award}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"item_id":  itemID,
		"owner_id": ownerID,
		"applied":  res.Award.Applied,
		"delta":    res.Award.Delta.String(),
	}).Info("Загрузка учтена")
	return res, nil
}

// PublishItem создаёт материал и начисляет за загрузку одной транзакцией.
// Файл (если есть) к этому моменту уже должен лежать в хранилище.
func (s *Service) PublishItem(ctx context.Context, n NewItem) (*UploadResult, error) {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return nil, common.ErrEmptyTitle
	}
	if _, err := ParseContentType(string(n.Type)); err != nil {
		return nil, err
	}

	var res *UploadResult
	err := s.inTx(ctx, nil, func(ctx context.Context, tx Tx) error {
		owner, err := tx.GetAccount(ctx, n.OwnerID)
		if err != nil {
			return err
		}

		classID := n.ClassInstanceID
		if classID == 0 {
			classID = owner.ClassInstanceID
		}
		now := s.now()
		item := &Item{
			ClassInstanceID: classID,
			UnitName:        strings.TrimSpace(n.UnitName),
			Title:           n.Title,
			Description:     strings.TrimSpace(n.Description),
			Type:            n.Type,
			FilePath:        n.FilePath,
			URL:             strings.TrimSpace(n.URL),
			OwnerID:         owner.ID,
			Deadline:        n.Deadline,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.InsertItem(ctx, item); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}

		award, err := s.awarder.AwardUpload(ctx, tx, item.Ref())
		if err != nil {
			return err
		}
		res = &UploadResult{Item: item, Award: award}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"item_id":  res.Item.ID,
		"owner_id": n.OwnerID,
		"type":     n.Type,
		"delta":    res.Award.Delta.String(),
	}).Info("Материал опубликован")
	return res, nil
}

// DeleteItem удаляет материал с реакциями и комментариями.
// Удалять может владелец или админ того же класса. Очки не возвращаются.
func (s *Service) DeleteItem(ctx context.Context, itemID, actorID int64) error {
	err := s.inTx(ctx, []LockKey{ItemKey(itemID)}, func(ctx context.Context, tx Tx) error {
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		actor, err := tx.GetAccount(ctx, actorID)
		if err != nil {
			return err
		}
		if actor.ID != item.OwnerID && !(actor.IsAdmin() && actor.ClassInstanceID == item.ClassInstanceID) {
			return common.ErrNotOwner
		}
		return tx.DeleteItem(ctx, itemID)
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"item_id": itemID, "actor_id": actorID}).Info("Материал удалён")
	return nil
}

// DeleteComment удаляет комментарий. Удалять может автор или админ.
// Начисления за комментарий остаются.
func (s *Service) DeleteComment(ctx context.Context, commentID uuid.UUID, actorID int64) error {
	err := s.inTx(ctx, []LockKey{CommentKey(commentID)}, func(ctx context.Context, tx Tx) error {
		c, err := tx.GetComment(ctx, commentID)
		if err != nil {
			return err
		}
		actor, err := tx.GetAccount(ctx, actorID)
		if err != nil {
			return err
		}
		if actor.ID != c.AuthorID && !actor.IsAdmin() {
			return common.ErrNotOwner
		}
		return tx.DeleteComment(ctx, commentID)
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"comment_id": commentID, "actor_id": actorID}).Info("Комментарий удалён")
	return nil
}

// GetItem возвращает материал, число комментариев и реакцию зрителя.
func (s *Service) GetItem(ctx context.Context, itemID, viewerID int64) (*ItemView, error) {
	var view *ItemView
	err := s.inTx(ctx, nil, func(ctx context.Context, tx Tx) error {
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		state, err := s.ledger.Current(ctx, tx, itemID, viewerID)
		if err != nil {
			return err
		}
		comments, err := tx.CountComments(ctx, itemID)
		if err != nil {
			return err
		}
		view = &ItemView{Item: item, Comments: comments, ViewerReaction: state}
		return nil
	})
	return view, err
}

// ReconcileCounts пересчитывает счётчики лайков/дизлайков по строкам реакций
// и исправляет расхождения. Возвращает число исправленных материалов.
func (s *Service) ReconcileCounts(ctx context.Context) (int, error) {
	var ids []int64
	err := s.inTx(ctx, nil, func(ctx context.Context, tx Tx) error {
		var err error
		ids, err = tx.ListItemIDs(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, id := range ids {
		changed := false
		err := s.inTx(ctx, []LockKey{ItemKey(id)}, func(ctx context.Context, tx Tx) error {
			changed = false
			item, err := tx.GetItem(ctx, id)
			if err != nil {
				return err
			}
			likes, dislikes, err := tx.CountReactions(ctx, id)
			if err != nil {
				return err
			}
			if likes == item.Likes && dislikes == item.Dislikes {
				return nil
			}

			log.WithFields(log.Fields{
				"item_id":         id,
				"likes_cached":    item.Likes,
				"likes_actual":    likes,
				"dislikes_cached": item.Dislikes,
				"dislikes_actual": dislikes,
			}).Warn("Расхождение счётчиков реакций, исправляем")
			changed = true
			return tx.SetReactionCounts(ctx, id, likes, dislikes)
		})
		if errors.Is(err, common.ErrNotFound) {
			continue // удалили между выборкой и проверкой
		}
		if err != nil {
			return fixed, err
		}
		if changed {
			fixed++
		}
	}
	return fixed, nil
}

// inTx выполняет транзакцию, повторяя её при ErrConflict.
// Остальные ошибки (NotFound, InvalidInput, Unauthorized, отмена) возвращаются сразу.
func (s *Service) inTx(ctx context.Context, keys []LockKey, fn func(ctx context.Context, tx Tx) error) error {
	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		err := s.store.InTx(ctx, keys, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if common.IsTerminal(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		log.WithError(err).WithField("attempt", attempt).Debug("Конфликт транзакции, повторяем")
		return struct{}{}, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.LedgerRetryInterval

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.cfg.LedgerMaxRetries),
	)
	return err
}
