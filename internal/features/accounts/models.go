// Package accounts управляет аккаунтами студентов: регистрацией, ролями, профилем.
// models.go описывает аккаунт и профиль со званием.
package accounts

import (
	"time"

	"studyhub.dev/portal-bot/internal/features/points"
	"studyhub.dev/portal-bot/internal/features/ranks"
)

// Роли в классе
const (
	RoleStudent    = "student"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Account - пользователь портала и его баланс очков.
// Баланс меняет только points.Awarder.
type Account struct {
	ID              int64         `db:"id"`
	TelegramID      int64         `db:"telegram_id"`
	Username        string        `db:"username"`
	FullName        string        `db:"full_name"`
	ClassInstanceID int64         `db:"class_instance_id"`
	Role            string        `db:"role"`
	Points          points.Points `db:"points"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

// IsAdmin - админ или суперадмин класса.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSuperAdmin
}

// DisplayName возвращает @username или полное имя.
func (a *Account) DisplayName() string {
	if a.Username != "" {
		return "@" + a.Username
	}
	return a.FullName
}

// Profile - баланс и звание, вычисленные при чтении.
type Profile struct {
	Account  *Account
	Rank     ranks.Rank
	Progress ranks.Progress
	Position int // место в классе, 0 если не считали
}
