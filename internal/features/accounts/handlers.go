// Package accounts - handlers.go обрабатывает /start и /points.
package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"studyhub.dev/portal-bot/internal/common"
)

// PositionSource считает место аккаунта в классе.
type PositionSource interface {
	Position(ctx context.Context, acc *Account) (int, error)
}

// Handler обрабатывает команды профиля.
type Handler struct {
	service   *Service
	positions PositionSource
	bot       *telego.Bot
}

// NewHandler создаёт обработчик профиля.
func NewHandler(service *Service, positions PositionSource, bot *telego.Bot) *Handler {
	return &Handler{service: service, positions: positions, bot: bot}
}

// HandleStart - приветствие и список команд.
func (h *Handler) HandleStart(ctx context.Context, chatID int64, acc *Account) {
	h.sendMessage(ctx, chatID, HelpText(acc))
}

// HandlePoints - /points: баланс, звание и место в классе.
func (h *Handler) HandlePoints(ctx context.Context, chatID, accountID int64) {
	profile, err := h.service.Profile(ctx, accountID)
	if err != nil {
		log.WithError(err).WithField("account_id", accountID).Error("Ошибка получения профиля")
		h.sendMessage(ctx, chatID, common.UserMessage(err))
		return
	}
	if h.positions != nil {
		pos, err := h.positions.Position(ctx, profile.Account)
		if err != nil {
			log.WithError(err).Warn("Не удалось посчитать место в классе")
		} else {
			profile.Position = pos
		}
	}
	h.sendMessage(ctx, chatID, FormatProfile(profile))
}

// HelpText - список команд.
func HelpText(acc *Account) string {
	name := "there"
	if acc != nil && acc.FullName != "" {
		name = acc.FullName
	}
	lines := []string{
		fmt.Sprintf("👋 Hi %s! Earn points by sharing useful material with your class.", name),
		"",
		"/share <assignment|note|pastPaper> <title> [| link] — share material",
		"/item <id> — show material with 👍/👎 buttons",
		"/comment <id> <text> — comment on material",
		"/uncomment <comment-id> — delete your comment",
		"/delete <id> — delete your material",
		"/claim <id> — count an upload made on the web portal",
		"/points — your balance and rank",
		"/top — class leaderboard",
	}
	if acc != nil && acc.IsAdmin() {
		lines = append(lines, "", "/reconcile — repair reaction counters (admins, private chat)")
	}
	return strings.Join(lines, "\n")
}

var rankIcons = map[string]string{
	"Crown":  "👑",
	"Fire":   "🔥",
	"Shield": "🛡",
	"Star":   "⭐",
	"Award":  "🏅",
}

// RankIcon переводит имя иконки звания в эмодзи.
func RankIcon(name string) string {
	if icon, ok := rankIcons[name]; ok {
		return icon
	}
	return rankIcons["Award"]
}

// FormatProfile - текст профиля.
func FormatProfile(p *Profile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", RankIcon(p.Rank.Icon), p.Account.DisplayName())
	fmt.Fprintf(&sb, "Points: %s\n", p.Account.Points)
	fmt.Fprintf(&sb, "Rank: %s", p.Rank.Title)
	if p.Progress.Next != nil {
		fmt.Fprintf(&sb, "\nNext: %s in %s pts", p.Progress.Next.Title, p.Progress.PointsNeeded)
	} else {
		sb.WriteString("\nTop rank reached 🎉")
	}
	if p.Position > 0 {
		fmt.Fprintf(&sb, "\nClass position: #%d", p.Position)
	}
	return sb.String()
}

func (h *Handler) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := h.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
