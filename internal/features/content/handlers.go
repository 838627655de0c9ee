// Package content - handlers.go обрабатывает команды материалов и inline-кнопки реакций.
package content

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/features/accounts"
	"studyhub.dev/portal-bot/internal/features/reactions"
)

// callbackPrefix - префикс callback data кнопок реакций.
const callbackPrefix = "r"

// AccountLookup - откуда брать имя владельца для карточки.
type AccountLookup interface {
	Get(ctx context.Context, id int64) (*accounts.Account, error)
}

// Handler обрабатывает команды материалов.
type Handler struct {
	service  *Service
	accounts AccountLookup
	bot      *telego.Bot
}

// NewHandler создаёт обработчик материалов.
func NewHandler(service *Service, accounts AccountLookup, bot *telego.Bot) *Handler {
	return &Handler{service: service, accounts: accounts, bot: bot}
}

// HandleItem - /item <id>. В личке кнопки несут состояние зрителя.
func (h *Handler) HandleItem(ctx context.Context, chatID, accountID int64, private bool, args []string) {
	itemID, err := ParseItemID(args)
	if err != nil {
		h.sendMessage(ctx, chatID, "Usage: /item <id>")
		return
	}
	view, err := h.service.GetItem(ctx, itemID, accountID)
	if err != nil {
		h.replyError(ctx, chatID, err, "Ошибка получения материала")
		return
	}

	var viewer *reactions.State
	if private {
		viewer = &view.ViewerReaction
	}
	msg := tu.Message(tu.ID(chatID), FormatItem(view, h.ownerName(ctx, view.Item.OwnerID))).
		WithReplyMarkup(ItemKeyboard(view.Item.ID, view.Item.Likes, view.Item.Dislikes, viewer))
	if _, err := h.bot.SendMessage(ctx, msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки карточки материала")
	}
}

// HandleComment - /comment <id> <текст>.
// ID комментария выводится из сообщения, поэтому повторная доставка
// того же апдейта не создаёт второй комментарий.
func (h *Handler) HandleComment(ctx context.Context, chatID int64, messageID int, accountID int64, args []string) {
	itemID, err := ParseItemID(args)
	if err != nil || len(args) < 2 {
		h.sendMessage(ctx, chatID, "Usage: /comment <id> <text>")
		return
	}

	res, err := h.service.PostComment(ctx, CommentRequest{
		ID:       CommentIDFromMessage(chatID, messageID),
		ItemID:   itemID,
		AuthorID: accountID,
		Text:     strings.Join(args[1:], " "),
	})
	if err != nil {
		h.replyError(ctx, chatID, err, "Ошибка добавления комментария")
		return
	}

	text := "💬 Comment added"
	if len(res.Awards) > 0 && res.Awards[0].Applied && res.Awards[0].Delta != 0 {
		text += fmt.Sprintf(" (%s pts)", res.Awards[0].Delta.Signed())
	}
	h.sendMessage(ctx, chatID, text+"\nID: "+res.Comment.ID.String())
}

// HandleUncomment - /uncomment <comment-id>.
func (h *Handler) HandleUncomment(ctx context.Context, chatID, accountID int64, args []string) {
	if len(args) == 0 {
		h.sendMessage(ctx, chatID, "Usage: /uncomment <comment-id>")
		return
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		h.sendMessage(ctx, chatID, "❌ Not a comment ID")
		return
	}
	if err := h.service.DeleteComment(ctx, id, accountID); err != nil {
		h.replyError(ctx, chatID, err, "Ошибка удаления комментария")
		return
	}
	h.sendMessage(ctx, chatID, "🗑 Comment deleted")
}

// HandleShare - /share <тип> <название> [| ссылка].
func (h *Handler) HandleShare(ctx context.Context, chatID, accountID int64, args []string) {
	n, err := ParseShareArgs(args)
	if err != nil {
		h.sendMessage(ctx, chatID, "Usage: /share <assignment|note|pastPaper> <title> [| link]")
		return
	}
	n.OwnerID = accountID

	res, err := h.service.PublishItem(ctx, n)
	if err != nil {
		h.replyError(ctx, chatID, err, "Ошибка публикации материала")
		return
	}
	h.sendMessage(ctx, chatID, fmt.Sprintf("✅ Shared as #%d (%s pts)", res.Item.ID, res.Award.Delta.Signed()))
}

// HandleClaim - /claim <id>: начисление за материал, созданный вне бота.
func (h *Handler) HandleClaim(ctx context.Context, chatID, accountID int64, args []string) {
	itemID, err := ParseItemID(args)
	if err != nil {
		h.sendMessage(ctx, chatID, "Usage: /claim <id>")
		return
	}
	res, err := h.service.RecordUpload(ctx, itemID, accountID)
	if err != nil {
		h.replyError(ctx, chatID, err, "Ошибка начисления за загрузку")
		return
	}
	if !res.Award.Applied {
		h.sendMessage(ctx, chatID, "Upload already counted")
		return
	}
	h.sendMessage(ctx, chatID, fmt.Sprintf("✅ Upload counted: %s pts", res.Award.Delta.Signed()))
}

// HandleDelete - /delete <id>.
func (h *Handler) HandleDelete(ctx context.Context, chatID, accountID int64, args []string) {
	itemID, err := ParseItemID(args)
	if err != nil {
		h.sendMessage(ctx, chatID, "Usage: /delete <id>")
		return
	}
	if err := h.service.DeleteItem(ctx, itemID, accountID); err != nil {
		h.replyError(ctx, chatID, err, "Ошибка удаления материала")
		return
	}
	h.sendMessage(ctx, chatID, fmt.Sprintf("🗑 Material #%d deleted", itemID))
}

// HandleCallback обрабатывает нажатие 👍/👎 и обновляет кнопки под сообщением.
func (h *Handler) HandleCallback(ctx context.Context, query *telego.CallbackQuery, accountID int64) {
	req, err := ParseReactionCallback(query.Data)
	if err != nil {
		h.answer(ctx, query.ID, "Unknown button")
		return
	}
	req.AccountID = accountID
	req.RequestKey = query.ID

	res, err := h.service.ToggleReaction(ctx, req)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			log.WithError(err).WithField("data", query.Data).Error("Ошибка обработки реакции")
		}
		h.answer(ctx, query.ID, common.UserMessage(err))
		return
	}

	h.answer(ctx, query.ID, ReactionNotice(res))

	if query.Message == nil || !query.Message.IsAccessible() {
		return
	}
	chat := query.Message.GetChat()
	var viewer *reactions.State
	if chat.Type == telego.ChatTypePrivate {
		viewer = &res.State
	}
	_, err = h.bot.EditMessageReplyMarkup(ctx, &telego.EditMessageReplyMarkupParams{
		ChatID:      tu.ID(chat.ID),
		MessageID:   query.Message.GetMessageID(),
		ReplyMarkup: ItemKeyboard(res.ItemID, res.Likes, res.Dislikes, viewer),
	})
	if err != nil {
		// "message is not modified" при устаревшем нажатии - это нормально
		log.WithError(err).Debug("Не удалось обновить кнопки")
	}
}

// commentNamespace - пространство имён UUID для комментариев из Telegram.
var commentNamespace = uuid.MustParse("5b0d3c8e-2f47-4c1a-9e61-7a9d04b2c3f5")

// CommentIDFromMessage - детерминированный ID комментария для сообщения чата.
func CommentIDFromMessage(chatID int64, messageID int) uuid.UUID {
	return uuid.NewSHA1(commentNamespace, []byte(fmt.Sprintf("%d:%d", chatID, messageID)))
}

// IsReactionCallback сообщает, что callback data принадлежит кнопкам реакций.
func IsReactionCallback(data string) bool {
	return strings.HasPrefix(data, callbackPrefix+":")
}

// ParseItemID берёт ID материала из первого аргумента ("12" или "#12").
func ParseItemID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, common.ErrInvalidInput
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad item id %q", common.ErrInvalidInput, args[0])
	}
	return id, nil
}

// ParseShareArgs разбирает "<тип> <название> [| ссылка]".
func ParseShareArgs(args []string) (NewItem, error) {
	if len(args) < 2 {
		return NewItem{}, common.ErrInvalidInput
	}
	typ, err := ParseContentType(args[0])
	if err != nil {
		return NewItem{}, err
	}

	rest := strings.Join(args[1:], " ")
	title, link, _ := strings.Cut(rest, "|")
	n := NewItem{
		Type:  typ,
		Title: strings.TrimSpace(title),
		URL:   strings.TrimSpace(link),
	}
	if n.Title == "" {
		return NewItem{}, common.ErrEmptyTitle
	}
	return n, nil
}

// stateCode - короткое имя состояния для callback data (лимит Telegram 64 байта).
var stateCode = map[reactions.State]string{
	reactions.None:    "n",
	reactions.Like:    "l",
	reactions.Dislike: "d",
}

func stateFromCode(code string) (reactions.State, bool) {
	for st, c := range stateCode {
		if c == code {
			return st, true
		}
	}
	return reactions.None, false
}

// ReactionCallbackData - "r:<item>:<желаемое>[:<ожидаемое>]".
func ReactionCallbackData(itemID int64, desired reactions.State, expected *reactions.State) string {
	data := fmt.Sprintf("%s:%d:%s", callbackPrefix, itemID, stateCode[desired])
	if expected != nil {
		data += ":" + stateCode[*expected]
	}
	return data
}

// ParseReactionCallback разбирает callback data кнопки реакции.
// AccountID вызывающий заполняет сам.
func ParseReactionCallback(data string) (ToggleRequest, error) {
	parts := strings.Split(data, ":")
	if len(parts) < 3 || len(parts) > 4 || parts[0] != callbackPrefix {
		return ToggleRequest{}, fmt.Errorf("%w: callback %q", common.ErrInvalidInput, data)
	}
	itemID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ToggleRequest{}, fmt.Errorf("%w: callback %q", common.ErrInvalidInput, data)
	}
	desired, ok := stateFromCode(parts[2])
	if !ok || desired == reactions.None {
		return ToggleRequest{}, common.ErrUnknownReaction
	}

	req := ToggleRequest{ItemID: itemID, Desired: desired}
	if len(parts) == 4 {
		expected, ok := stateFromCode(parts[3])
		if !ok {
			return ToggleRequest{}, common.ErrUnknownReaction
		}
		req.Expected = &expected
	}
	return req, nil
}

// ItemKeyboard строит кнопки 👍/👎 со счётчиками.
// viewer != nil - кнопки для одного зрителя (личка), в data кладётся его состояние.
func ItemKeyboard(itemID int64, likes, dislikes int, viewer *reactions.State) *telego.InlineKeyboardMarkup {
	likeText := fmt.Sprintf("👍 %d", likes)
	dislikeText := fmt.Sprintf("👎 %d", dislikes)
	if viewer != nil {
		switch *viewer {
		case reactions.Like:
			likeText = "✅ " + likeText
		case reactions.Dislike:
			dislikeText = "✅ " + dislikeText
		}
	}
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(likeText).WithCallbackData(ReactionCallbackData(itemID, reactions.Like, viewer)),
			tu.InlineKeyboardButton(dislikeText).WithCallbackData(ReactionCallbackData(itemID, reactions.Dislike, viewer)),
		),
	)
}

var typeIcons = map[ContentType]string{
	TypeAssignment: "📝",
	TypeNote:       "📒",
	TypePastPaper:  "📜",
}

// FormatItem - текст карточки материала.
func FormatItem(view *ItemView, owner string) string {
	it := view.Item
	var sb strings.Builder

	icon := typeIcons[it.Type]
	if icon == "" {
		icon = "📄"
	}
	fmt.Fprintf(&sb, "%s #%d %s (%s)\n", icon, it.ID, it.Title, it.Type)
	if it.UnitName != "" {
		fmt.Fprintf(&sb, "Unit: %s\n", it.UnitName)
	}
	if it.Description != "" {
		sb.WriteString(common.TruncateText(it.Description, 300) + "\n")
	}
	if it.URL != "" {
		sb.WriteString("🔗 " + it.URL + "\n")
	}
	if it.Deadline != nil {
		fmt.Fprintf(&sb, "⏰ Due %s\n", it.Deadline.Format("2006-01-02 15:04"))
	}
	if owner != "" {
		fmt.Fprintf(&sb, "👤 %s · ", owner)
	}
	fmt.Fprintf(&sb, "🏅 %s pts earned\n", it.PointsEarned)
	fmt.Fprintf(&sb, "👍 %d  👎 %d  💬 %s",
		it.Likes, it.Dislikes, common.FormatCount(int64(view.Comments), "comment", "comments"))
	return sb.String()
}

// ReactionNotice - всплывающий ответ на нажатие кнопки.
func ReactionNotice(res *ToggleResult) string {
	if !res.Applied {
		return "Already counted"
	}
	switch res.State {
	case reactions.Like:
		return "👍 Liked"
	case reactions.Dislike:
		return "👎 Disliked"
	}
	return "Reaction removed"
}

func (h *Handler) ownerName(ctx context.Context, ownerID int64) string {
	if h.accounts == nil {
		return ""
	}
	acc, err := h.accounts.Get(ctx, ownerID)
	if err != nil {
		return ""
	}
	return acc.DisplayName()
}

func (h *Handler) answer(ctx context.Context, queryID, text string) {
	if err := h.bot.AnswerCallbackQuery(ctx, tu.CallbackQuery(queryID).WithText(text)); err != nil {
		log.WithError(err).Debug("Не удалось ответить на нажатие")
	}
}

func (h *Handler) replyError(ctx context.Context, chatID int64, err error, logMsg string) {
	if errors.Is(err, common.ErrInvalidInput) || errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrUnauthorized) {
		log.WithError(err).Debug(logMsg)
	} else {
		log.WithError(err).Error(logMsg)
	}
	h.sendMessage(ctx, chatID, common.UserMessage(err))
}

func (h *Handler) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := h.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
