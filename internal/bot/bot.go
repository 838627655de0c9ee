// Package bot содержит главный модуль бота - запуск polling, маршрутизацию
// команд и нажатий кнопок, остановку.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"studyhub.dev/portal-bot/internal/bot/filters"
	"studyhub.dev/portal-bot/internal/bot/middleware"
	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/config"
	"studyhub.dev/portal-bot/internal/features/accounts"
	"studyhub.dev/portal-bot/internal/features/admin"
	"studyhub.dev/portal-bot/internal/features/content"
	"studyhub.dev/portal-bot/internal/features/leaderboard"
)

// Bot - главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *telego.Bot
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	accountService     *accounts.Service
	accountHandler     *accounts.Handler
	contentHandler     *content.Handler
	leaderboardHandler *leaderboard.Handler
	adminHandler       *admin.Handler

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
	wg       sync.WaitGroup
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *telego.Bot,
	cfg *config.Config,
	accountService *accounts.Service,
	accountHandler *accounts.Handler,
	contentHandler *content.Handler,
	leaderboardHandler *leaderboard.Handler,
	adminHandler *admin.Handler,
	chatFilter *filters.ChatFilter,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:                api,
		cfg:                cfg,
		chatFilter:         chatFilter,
		rateLimiter:        middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		accountService:     accountService,
		accountHandler:     accountHandler,
		contentHandler:     contentHandler,
		leaderboardHandler: leaderboardHandler,
		adminHandler:       adminHandler,
		parser:             NewCommandParser(),
		inflight:           make(chan struct{}, maxInFlight),
	}
}

// Start запускает long polling и блокируется до отмены ctx.
// Перед возвратом дожидается обработки уже принятых апдейтов.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        b.cfg.BotUpdateTimeoutSeconds,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	if err != nil {
		return fmt.Errorf("ошибка запуска long polling: %w", err)
	}

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return nil
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			b.wg.Add(1)
			go func(upd telego.Update) {
				defer func() {
					<-b.inflight
					b.wg.Done()
				}()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// Close освобождает фоновые ресурсы бота.
func (b *Bot) Close() {
	b.rateLimiter.Close()
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic(update.UpdateID)

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *telego.Message) {
	middleware.LogMessage(message)
	if message.From == nil {
		return
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	if !b.chatFilter.CheckAccess(ctx, chatID, message.Chat.Type, userID) {
		return
	}
	if !b.rateLimiter.Allow(userID) {
		log.WithField("user_id", userID).Debug("rate limited")
		return
	}

	acc, err := b.ensureAccount(ctx, *message.From)
	if err != nil {
		b.sendMessage(ctx, chatID, common.UserMessage(err))
		return
	}

	log.WithFields(log.Fields{
		"cmd":        cmd,
		"args":       args,
		"account_id": acc.ID,
	}).Debug("routing command")
	b.routeCommand(ctx, message, acc, cmd, args)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, message *telego.Message, acc *accounts.Account, cmd string, args []string) {
	chatID := message.Chat.ID
	private := message.Chat.Type == telego.ChatTypePrivate

	switch cmd {
	case "start", "help":
		b.accountHandler.HandleStart(ctx, chatID, acc)

	case "points", "me":
		b.accountHandler.HandlePoints(ctx, chatID, acc.ID)

	case "top":
		b.leaderboardHandler.HandleTop(ctx, chatID, acc.ClassInstanceID)

	case "item":
		b.contentHandler.HandleItem(ctx, chatID, acc.ID, private, args)

	case "comment":
		b.contentHandler.HandleComment(ctx, chatID, message.MessageID, acc.ID, args)

	case "uncomment":
		b.contentHandler.HandleUncomment(ctx, chatID, acc.ID, args)

	case "share":
		if !b.cfg.FeatureSharingEnabled {
			b.sendMessage(ctx, chatID, "📵 Sharing through the bot is turned off")
			return
		}
		b.contentHandler.HandleShare(ctx, chatID, acc.ID, args)

	case "claim":
		b.contentHandler.HandleClaim(ctx, chatID, acc.ID, args)

	case "delete":
		b.contentHandler.HandleDelete(ctx, chatID, acc.ID, args)

	case "reconcile":
		if !private {
			return // админ-команды только в личке
		}
		b.adminHandler.HandleReconcile(ctx, chatID, acc)
	}
}

// handleCallback обрабатывает нажатия inline-кнопок.
func (b *Bot) handleCallback(ctx context.Context, query *telego.CallbackQuery) {
	middleware.LogCallback(query)

	if !content.IsReactionCallback(query.Data) {
		return
	}
	if !b.chatFilter.CheckCallback(ctx, query) {
		b.answerCallback(ctx, query.ID, "⛔ Buttons work only for members of the class")
		return
	}
	if !b.rateLimiter.Allow(query.From.ID) {
		b.answerCallback(ctx, query.ID, "⏳ Slow down a little")
		return
	}

	acc, err := b.ensureAccount(ctx, query.From)
	if err != nil {
		b.answerCallback(ctx, query.ID, common.UserMessage(err))
		return
	}
	b.contentHandler.HandleCallback(ctx, query, acc.ID)
}

// ensureAccount регистрирует пользователя при первом обращении.
func (b *Bot) ensureAccount(ctx context.Context, user telego.User) (*accounts.Account, error) {
	fullName := strings.TrimSpace(user.FirstName + " " + user.LastName)
	acc, err := b.accountService.EnsureAccount(ctx, user.ID, user.Username, fullName)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("EnsureAccount failed")
		return nil, err
	}
	return acc, nil
}

func (b *Bot) answerCallback(ctx context.Context, queryID, text string) {
	if err := b.api.AnswerCallbackQuery(ctx, tu.CallbackQuery(queryID).WithText(text)); err != nil {
		log.WithError(err).Debug("Не удалось ответить на нажатие")
	}
}

// sendMessage - утилита для отправки сообщений.
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	if err := b.SendMessageToChat(ctx, chatID, text); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// SendMessageToChat отправляет сообщение в чат (для дайджеста по расписанию).
func (b *Bot) SendMessageToChat(ctx context.Context, chatID int64, text string) error {
	_, err := b.api.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	return err
}

// CommandParser парсит команды с префиксами !, . и /
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"/", "!", "."},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Суффикс "@имя_бота" у команды отбрасывается.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command, _, _ := strings.Cut(strings.ToLower(parts[0]), "@")
	if command == "" {
		return "", nil, false
	}
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return command, args, true
}
