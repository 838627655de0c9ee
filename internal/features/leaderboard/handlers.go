// Package leaderboard - handlers.go обрабатывает /top.
package leaderboard

import (
	"context"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"studyhub.dev/portal-bot/internal/common"
)

// Title - заголовок рейтинга класса.
const Title = "🏆 Class leaderboard"

// Handler обрабатывает команду рейтинга.
type Handler struct {
	service *Service
	bot     *telego.Bot
	limit   int
}

// NewHandler создаёт обработчик рейтинга.
func NewHandler(service *Service, bot *telego.Bot, limit int) *Handler {
	return &Handler{service: service, bot: bot, limit: limit}
}

// HandleTop - /top: первые места класса.
func (h *Handler) HandleTop(ctx context.Context, chatID, classID int64) {
	entries, err := h.service.Top(ctx, classID, h.limit)
	text := Format(Title, entries)
	if err != nil {
		log.WithError(err).WithField("class_id", classID).Error("Ошибка получения рейтинга")
		text = common.UserMessage(err)
	}
	if _, err := h.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
