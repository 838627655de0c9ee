// Package points - единственный писатель балансов очков.
// models.go описывает тип очков и событие начисления.
package points

import (
	"fmt"
	"time"
)

// Points - очки с точностью до десятой. Хранятся в десятых долях:
// Points(10) == 1 очко. Баланс может быть отрицательным из-за дизлайков.
type Points int64

// Scale - число десятых в одном очке.
const Scale = 10

// Whole создаёт целое число очков.
func Whole(n int64) Points { return Points(n * Scale) }

// Tenths создаёт очки из десятых долей.
func Tenths(n int64) Points { return Points(n) }

// String форматирует очки: "5", "-1", "0.1", "12.5".
func (p Points) String() string {
	v := int64(p)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	if v%Scale == 0 {
		return fmt.Sprintf("%s%d", sign, v/Scale)
	}
	return fmt.Sprintf("%s%d.%d", sign, v/Scale, v%Scale)
}

// Signed форматирует дельту со знаком: "+1", "-2", "+0.1".
func (p Points) Signed() string {
	if p >= 0 {
		return "+" + p.String()
	}
	return p.String()
}

// Причины начислений (колонка award_events.reason)
const (
	ReasonUpload       = "upload"
	ReasonComment      = "comment"
	ReasonCommentOwner = "comment_owner"
	ReasonReaction     = "reaction"
)

// Event - одно начисление. Key уникален для логического события:
// повторная попытка с тем же ключом не меняет баланс.
type Event struct {
	Key       string    `db:"event_key"`
	AccountID int64     `db:"account_id"`
	ItemID    int64     `db:"item_id"` // 0, если событие не связано с материалом
	Delta     Points    `db:"delta"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}

// Award - итог начисления.
type Award struct {
	Event
	Applied bool   // false, если событие уже было учтено
	Balance Points // баланс получателя после начисления
}

// Item - то, что начислятору нужно знать о материале.
type Item struct {
	ID          int64
	OwnerID     int64
	ContentType string
}

// Ключи событий. Для реакций ключ включает версию строки реакции,
// поэтому каждый переход начисляется не более одного раза.

func UploadEventKey(itemID int64) string {
	return fmt.Sprintf("upload:%d", itemID)
}

func CommentEventKey(commentID string, owner bool) string {
	if owner {
		return fmt.Sprintf("comment:%s:owner", commentID)
	}
	return fmt.Sprintf("comment:%s:author", commentID)
}

func ReactionEventKey(itemID, accountID, version int64) string {
	return fmt.Sprintf("reaction:%d:%d:%d", itemID, accountID, version)
}
