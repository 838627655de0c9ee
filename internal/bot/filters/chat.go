// Package filters решает, в каких чатах бот отвечает.
package filters

import (
	"context"
	"errors"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/features/accounts"
)

// AccountLookup - поиск зарегистрированного аккаунта.
type AccountLookup interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*accounts.Account, error)
}

// ChatFilter пускает чат класса и личку участников класса.
type ChatFilter struct {
	classChatID int64
	accounts    AccountLookup
	bot         *telego.Bot

	// isMember проверяет членство в чате класса через Telegram
	isMember func(ctx context.Context, userID int64) (bool, error)
}

func NewChatFilter(classChatID int64, accounts AccountLookup, bot *telego.Bot) *ChatFilter {
	f := &ChatFilter{
		classChatID: classChatID,
		accounts:    accounts,
		bot:         bot,
	}
	f.isMember = f.telegramMember
	return f
}

// CheckAccess возвращает true, если сообщение из этого чата надо обрабатывать.
// Без CLASS_CHAT_ID бот отвечает в любой личке (локальный запуск).
func (f *ChatFilter) CheckAccess(ctx context.Context, chatID int64, chatType string, userID int64) bool {
	logger := log.WithFields(log.Fields{
		"component":     "ChatFilter",
		"chat_id":       chatID,
		"chat_type":     chatType,
		"user_id":       userID,
		"class_chat_id": f.classChatID,
	})

	// 1) Чат класса
	if f.classChatID != 0 && chatID == f.classChatID {
		return true
	}

	if chatType != telego.ChatTypePrivate {
		logger.Debug("deny: not class chat and not private")
		return false
	}
	if f.classChatID == 0 {
		return true
	}

	// 2) Личка: сначала по БД
	_, err := f.accounts.GetByTelegramID(ctx, userID)
	if err == nil {
		return true
	}
	if !errors.Is(err, common.ErrNotFound) {
		logger.WithError(err).Error("account check failed (db)")
		return false
	}

	// 2.1) БД не знает пользователя: проверяем членство в чате класса
	ok, err := f.isMember(ctx, userID)
	if err != nil {
		logger.WithError(err).Error("member check failed (telegram GetChatMember)")
		return false
	}
	if !ok {
		logger.Info("deny: private (not a class chat member)")
		f.deny(ctx, chatID)
		return false
	}
	logger.Info("allow: private (class chat member)")
	return true
}

// CheckCallback применяет те же правила к нажатию кнопки: решает чат,
// где висит сообщение с кнопкой, а не чат, откуда пришёл пользователь.
// Кнопки inline-режима (без сообщения) не принимаются.
func (f *ChatFilter) CheckCallback(ctx context.Context, query *telego.CallbackQuery) bool {
	if query.Message == nil {
		log.WithField("user_id", query.From.ID).Debug("deny: callback without message")
		return false
	}
	chat := query.Message.GetChat()
	return f.CheckAccess(ctx, chat.ID, chat.Type, query.From.ID)
}

func (f *ChatFilter) telegramMember(ctx context.Context, userID int64) (bool, error) {
	cm, err := f.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.ID(f.classChatID),
		UserID: userID,
	})
	if err != nil {
		return false, err
	}
	switch cm.MemberStatus() {
	case "creator", "administrator", "member", "restricted":
		return true, nil
	}
	return false, nil
}

func (f *ChatFilter) deny(ctx context.Context, chatID int64) {
	if f.bot == nil {
		return
	}
	msg := tu.Message(tu.ID(chatID), "❌ This bot only works for members of the class chat")
	if _, err := f.bot.SendMessage(ctx, msg); err != nil {
		log.WithError(err).Warn("failed to send deny message")
	}
}
