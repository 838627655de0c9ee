// Package admin - команды админов класса в личке с ботом.
// Доступ определяется ролью аккаунта (ADMIN_IDS при регистрации).
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/features/accounts"
)

// Reconciler пересчитывает счётчики реакций.
type Reconciler interface {
	ReconcileCounts(ctx context.Context) (int, error)
}

// Handler обрабатывает админ-команды.
type Handler struct {
	reconciler Reconciler
	bot        *telego.Bot
}

// NewHandler создаёт обработчик админ-команд.
func NewHandler(reconciler Reconciler, bot *telego.Bot) *Handler {
	return &Handler{reconciler: reconciler, bot: bot}
}

// HandleReconcile - /reconcile: сверка счётчиков вне расписания.
func (h *Handler) HandleReconcile(ctx context.Context, chatID int64, acc *accounts.Account) {
	if !acc.IsAdmin() {
		log.WithField("account_id", acc.ID).Warn("Попытка админ-команды без прав")
		h.sendMessage(ctx, chatID, DeniedText)
		return
	}

	start := time.Now()
	fixed, err := h.reconciler.ReconcileCounts(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка ручной сверки счётчиков")
		h.sendMessage(ctx, chatID, common.UserMessage(err))
		return
	}

	log.WithFields(log.Fields{
		"account_id": acc.ID,
		"fixed":      fixed,
		"took":       time.Since(start).String(),
	}).Info("Ручная сверка счётчиков завершена")
	h.sendMessage(ctx, chatID, ReconcileReport(fixed))
}

// DeniedText - ответ на админ-команду от обычного пользователя.
const DeniedText = "⛔ This command is for class admins"

// ReconcileReport - итог сверки для админа.
func ReconcileReport(fixed int) string {
	if fixed == 0 {
		return "✅ All reaction counters match the ledger"
	}
	return fmt.Sprintf("🔧 Repaired counters on %s", common.FormatCount(int64(fixed), "material", "materials"))
}

func (h *Handler) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := h.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
