// Package config загружает конфигурацию бота портала из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Драйверы хранилища
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Чат класса: туда уходит еженедельный дайджест. 0 - дайджест выключен.
	ClassChatID int64 `envconfig:"CLASS_CHAT_ID" default:"0"`
	// Telegram ID админов класса (через запятую)
	AdminIDsRaw string  `envconfig:"ADMIN_IDS" default:""`
	AdminIDs    []int64 `envconfig:"-"` // заполним вручную

	// --- Class ---
	// Класс, в который регистрируются новые пользователи бота
	DefaultClassInstanceID int64 `envconfig:"DEFAULT_CLASS_INSTANCE_ID" default:"1"`

	// --- Storage ---
	// postgres - боевой режим, memory - локальная разработка без БД
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`

	// --- Database ---
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"portal"`
	DBPassword string `envconfig:"DB_PASSWORD" default:""`
	DBName     string `envconfig:"DB_NAME" default:"class_portal"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Africa/Nairobi"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Ledger ---
	// flat (+5 загрузка, +1 комментарий) или typed (+10/+30/+25, +0.1)
	PointsAwardPolicy string `envconfig:"POINTS_AWARD_POLICY" default:"flat"`
	// Переопределение таблицы званий: "400:Celestial Champion,100:Cosmic Intellect,0:Novice"
	RankTableRaw string `envconfig:"RANK_TABLE" default:""`
	// Сколько раз фасад повторяет транзакцию при конфликте
	LedgerMaxRetries    uint          `envconfig:"LEDGER_MAX_RETRIES" default:"3"`
	LedgerRetryInterval time.Duration `envconfig:"LEDGER_RETRY_INTERVAL" default:"25ms"`
	CommentMaxLength    int           `envconfig:"COMMENT_MAX_LENGTH" default:"2000"`

	// --- Leaderboard ---
	LeaderboardSize int `envconfig:"LEADERBOARD_SIZE" default:"10"`

	// --- Jobs ---
	JobDigestSpec    string `envconfig:"JOB_DIGEST_SPEC" default:"0 9 * * 1"`
	JobReconcileSpec string `envconfig:"JOB_RECONCILE_SPEC" default:"30 3 * * *"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureDigestEnabled    bool `envconfig:"FEATURE_DIGEST_ENABLED" default:"true"`
	FeatureReconcileEnabled bool `envconfig:"FEATURE_RECONCILE_ENABLED" default:"true"`
	FeatureSharingEnabled   bool `envconfig:"FEATURE_SHARING_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// IsAdmin проверяет, входит ли Telegram ID в ADMIN_IDS.
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		return fmt.Errorf("STORE_DRIVER должен быть postgres или memory, получено %q", c.StoreDriver)
	}
	if c.StoreDriver == StoreDriverPostgres {
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD не задан")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	}
	if c.DefaultClassInstanceID <= 0 {
		return fmt.Errorf("DEFAULT_CLASS_INSTANCE_ID должен быть > 0")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.PointsAwardPolicy != "flat" && c.PointsAwardPolicy != "typed" {
		return fmt.Errorf("POINTS_AWARD_POLICY должен быть flat или typed, получено %q", c.PointsAwardPolicy)
	}
	if c.LedgerMaxRetries == 0 {
		return fmt.Errorf("LEDGER_MAX_RETRIES должен быть > 0")
	}
	if c.CommentMaxLength <= 0 {
		return fmt.Errorf("COMMENT_MAX_LENGTH должен быть > 0")
	}
	if c.LeaderboardSize <= 0 || c.LeaderboardSize > 100 {
		return fmt.Errorf("LEADERBOARD_SIZE должен быть в диапазоне 1..100")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS и RATE_LIMIT_WINDOW должны быть > 0")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
