// Package content - фасад взаимодействия с материалами: реакции, комментарии, загрузки.
// models.go описывает материал, комментарий и запросы/ответы фасада.
package content

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/features/points"
	"studyhub.dev/portal-bot/internal/features/reactions"
)

// ContentType - тип материала.
type ContentType string

const (
	TypeAssignment ContentType = "assignment"
	TypeNote       ContentType = "note"
	TypePastPaper  ContentType = "pastPaper"
)

// ParseContentType разбирает тип материала без учёта регистра.
func ParseContentType(s string) (ContentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "assignment":
		return TypeAssignment, nil
	case "note", "notes":
		return TypeNote, nil
	case "pastpaper", "past_paper", "past-paper":
		return TypePastPaper, nil
	}
	return "", common.ErrUnknownContentType
}

// Item - загруженный файл или ссылка в юните класса.
type Item struct {
	ID              int64         `db:"id"`
	ClassInstanceID int64         `db:"class_instance_id"`
	UnitName        string        `db:"unit_name"`
	Title           string        `db:"title"`
	Description     string        `db:"description"`
	Type            ContentType   `db:"content_type"`
	FilePath        string        `db:"file_path"`
	URL             string        `db:"url"`
	OwnerID         int64         `db:"owner_id"`
	PointsEarned    points.Points `db:"points_earned"` // кэш начислений автору от реакций и комментариев
	Likes           int           `db:"like_count"`
	Dislikes        int           `db:"dislike_count"`
	Deadline        *time.Time    `db:"deadline"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

// Ref возвращает представление материала для начислятора.
func (i *Item) Ref() points.Item {
	return points.Item{ID: i.ID, OwnerID: i.OwnerID, ContentType: string(i.Type)}
}

// Comment - комментарий к материалу. ID задаёт клиент (ключ идемпотентности)
// или генерирует фасад.
type Comment struct {
	ID        uuid.UUID `db:"id"`
	ItemID    int64     `db:"item_id"`
	AuthorID  int64     `db:"author_id"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
}

// ToggleRequest - нажатие кнопки like/dislike.
// Expected - состояние, которое видел клиент. Если журнал уже в другом
// состоянии, запрос устарел (повтор доставки) и ничего не меняет.
// RequestKey - идентификатор нажатия (ID callback query). Повтор с тем же
// ключом ничего не меняет, даже без Expected.
type ToggleRequest struct {
	ItemID     int64
	AccountID  int64
	Desired    reactions.State
	Expected   *reactions.State
	RequestKey string
}

// ToggleResult - новое состояние реакции вызывающего и счётчики материала.
type ToggleResult struct {
	ItemID       int64
	State        reactions.State
	Likes        int
	Dislikes     int
	Applied      bool // false - запрос устарел, ничего не записано
	Transition   reactions.Transition
	CreatorDelta points.Points
}

// CommentRequest - новый комментарий.
type CommentRequest struct {
	ID       uuid.UUID // uuid.Nil - сгенерировать
	ItemID   int64
	AuthorID int64
	Text     string
}

// CommentResult - созданный комментарий и начисления.
type CommentResult struct {
	Comment   *Comment
	Duplicate bool // комментарий с этим ID уже был создан раньше
	Awards    []points.Award
}

// NewItem - данные для публикации материала.
type NewItem struct {
	ClassInstanceID int64 // 0 - класс владельца
	UnitName        string
	Title           string
	Description     string
	Type            ContentType
	FilePath        string
	URL             string
	OwnerID         int64
	Deadline        *time.Time
}

// UploadResult - материал и начисление за загрузку.
type UploadResult struct {
	Item  *Item
	Award points.Award
}

// ItemView - материал глазами конкретного пользователя.
type ItemView struct {
	Item           *Item
	Comments       int
	ViewerReaction reactions.State
}
