// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: еженедельный дайджест рейтинга
// в чат класса и ночную сверку счётчиков реакций.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"studyhub.dev/portal-bot/internal/common"
	"studyhub.dev/portal-bot/internal/config"
	"studyhub.dev/portal-bot/internal/features/leaderboard"
)

// Reconciler пересчитывает денормализованные счётчики.
type Reconciler interface {
	ReconcileCounts(ctx context.Context) (int, error)
}

// SendFunc отправляет текст в чат.
type SendFunc func(ctx context.Context, chatID int64, text string) error

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron        *cron.Cron
	loc         *time.Location
	cfg         *config.Config
	leaderboard *leaderboard.Service
	reconciler  Reconciler
	sendFunc    SendFunc
}

// NewScheduler создаёт планировщик в часовом поясе APP_TIMEZONE.
func NewScheduler(cfg *config.Config, board *leaderboard.Service, reconciler Reconciler, sendFunc SendFunc) *Scheduler {
	loc := common.LoadLocation(cfg.AppTimezone)
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(loc)),
		loc:         loc,
		cfg:         cfg,
		leaderboard: board,
		reconciler:  reconciler,
		sendFunc:    sendFunc,
	}
}

// Start регистрирует включённые задачи и запускает cron.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.FeatureDigestEnabled && s.cfg.ClassChatID != 0 {
		if _, err := s.cron.AddFunc(s.cfg.JobDigestSpec, func() {
			log.Info("[CRON] Дайджест рейтинга")
			if err := s.RunDigest(ctx); err != nil {
				log.WithError(err).Error("[CRON] Ошибка дайджеста")
			}
		}); err != nil {
			return fmt.Errorf("расписание дайджеста %q: %w", s.cfg.JobDigestSpec, err)
		}
	}

	if s.cfg.FeatureReconcileEnabled {
		if _, err := s.cron.AddFunc(s.cfg.JobReconcileSpec, func() {
			log.Debug("[CRON] Сверка счётчиков реакций")
			if _, err := s.RunReconcile(ctx); err != nil {
				log.WithError(err).Error("[CRON] Ошибка сверки")
			}
		}); err != nil {
			return fmt.Errorf("расписание сверки %q: %w", s.cfg.JobReconcileSpec, err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"jobs":     len(s.cron.Entries()),
		"timezone": s.cfg.AppTimezone,
	}).Info("Планировщик задач запущен")
	return nil
}

// RunDigest публикует рейтинг класса по умолчанию в чат класса.
func (s *Scheduler) RunDigest(ctx context.Context) error {
	entries, err := s.leaderboard.Top(ctx, s.cfg.DefaultClassInstanceID, s.cfg.LeaderboardSize)
	if err != nil {
		return err
	}
	title := "📊 Weekly leaderboard · " + common.FormatDateTime(time.Now(), s.loc)
	text := leaderboard.Format(title, entries)
	if err := s.sendFunc(ctx, s.cfg.ClassChatID, text); err != nil {
		return fmt.Errorf("ошибка отправки дайджеста: %w", err)
	}
	log.WithField("entries", len(entries)).Info("Дайджест отправлен")
	return nil
}

// RunReconcile сверяет счётчики и возвращает число исправленных материалов.
func (s *Scheduler) RunReconcile(ctx context.Context) (int, error) {
	fixed, err := s.reconciler.ReconcileCounts(ctx)
	if err != nil {
		return fixed, err
	}
	log.WithField("fixed", fixed).Info("Сверка счётчиков завершена")
	return fixed, nil
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
