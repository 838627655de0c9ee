// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: работа с часовым поясом, форматирование дат и текста.
package common

import (
	"time"
	"unicode/utf8"
)

// LoadLocation загружает часовой пояс по имени.
// Если tzdata недоступна - возвращает UTC+3 (Восточная Африка), как в проде.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04".
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}

// TruncateText обрезает текст до max рун и добавляет "...".
// Используется для логов и превью комментариев.
func TruncateText(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + "..."
}
