// Package app инициализирует все компоненты приложения.
// app.go - точка сборки: создаёт хранилище, сервисы, обработчики,
// фильтры и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"studyhub.dev/portal-bot/internal/bot"
	"studyhub.dev/portal-bot/internal/bot/filters"
	"studyhub.dev/portal-bot/internal/config"
	"studyhub.dev/portal-bot/internal/db/memory"
	"studyhub.dev/portal-bot/internal/db/postgres"
	"studyhub.dev/portal-bot/internal/features/accounts"
	"studyhub.dev/portal-bot/internal/features/admin"
	"studyhub.dev/portal-bot/internal/features/content"
	"studyhub.dev/portal-bot/internal/features/leaderboard"
	"studyhub.dev/portal-bot/internal/features/points"
	"studyhub.dev/portal-bot/internal/features/ranks"
	"studyhub.dev/portal-bot/internal/features/reactions"
	"studyhub.dev/portal-bot/internal/jobs"
)

// Storage - всё, что сервисам нужно от хранилища.
type Storage interface {
	content.Store
	accounts.Store
	leaderboard.Store
}

// Services - доменные сервисы без транспорта.
type Services struct {
	Accounts    *accounts.Service
	Content     *content.Service
	Leaderboard *leaderboard.Service
}

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	Services  *Services
	DB        *pgxpool.Pool // nil при STORE_DRIVER=memory
	BotAPI    *telego.Bot
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен - компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Хранилище ===
	store, pool, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closeDB := func() {
		if pool != nil {
			pool.Close()
		}
	}

	// === 2. Сервисы ===
	services, err := NewServices(cfg, store)
	if err != nil {
		closeDB()
		return nil, err
	}

	// === 3. Telegram Bot API ===
	var opts []telego.BotOption
	if cfg.AppEnv == "development" {
		opts = append(opts, telego.WithDefaultDebugLogger())
	}
	botAPI, err := telego.NewBot(cfg.TelegramBotToken, opts...)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	me, err := botAPI.GetMe(ctx)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("ошибка авторизации в Telegram: %w", err)
	}
	log.Infof("Авторизован как @%s", me.Username)

	// === 4. Обработчики ===
	accountHandler := accounts.NewHandler(services.Accounts, services.Leaderboard, botAPI)
	contentHandler := content.NewHandler(services.Content, services.Accounts, botAPI)
	leaderboardHandler := leaderboard.NewHandler(services.Leaderboard, botAPI, cfg.LeaderboardSize)
	adminHandler := admin.NewHandler(services.Content, botAPI)

	// === 5. Фильтры ===
	chatFilter := filters.NewChatFilter(cfg.ClassChatID, services.Accounts, botAPI)

	// === 6. Собираем бота ===
	b := bot.New(
		botAPI, cfg,
		services.Accounts, accountHandler,
		contentHandler,
		leaderboardHandler,
		adminHandler,
		chatFilter,
	)

	// === 7. Планировщик задач ===
	scheduler := jobs.NewScheduler(cfg, services.Leaderboard, services.Content, b.SendMessageToChat)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		Services:  services,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}

// Close освобождает ресурсы приложения.
func (a *App) Close() {
	a.Bot.Close()
	if a.DB != nil {
		a.DB.Close()
	}
}

// NewServices собирает доменные сервисы поверх хранилища:
// таблицу званий, политику начислений, журнал реакций и фасад.
func NewServices(cfg *config.Config, store Storage) (*Services, error) {
	table, err := ranks.ParseTable(cfg.RankTableRaw)
	if err != nil {
		return nil, fmt.Errorf("ошибка таблицы званий: %w", err)
	}
	policy, err := points.PolicyByName(cfg.PointsAwardPolicy)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"policy": policy.Name(),
		"ranks":  len(table.Ranks()),
	}).Info("Правила начислений загружены")

	return &Services{
		Accounts:    accounts.NewService(store, table, cfg),
		Content:     content.NewService(store, reactions.NewLedger(), points.NewAwarder(policy), cfg),
		Leaderboard: leaderboard.NewService(store, table),
	}, nil
}

// openStorage открывает хранилище по STORE_DRIVER и применяет миграции.
func openStorage(ctx context.Context, cfg *config.Config) (Storage, *pgxpool.Pool, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("STORE_DRIVER=memory: данные не переживут перезапуск")
		return memory.New(), nil, nil
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ошибка миграций: %w", err)
	}
	return postgres.NewStore(pool), pool, nil
}
