// Package common - pluralize.go склоняет английские существительные
// для сообщений бота ("1 like", "3 likes").
package common

import "fmt"

// Pluralize возвращает one для n == ±1 и many для остальных чисел.
//
// Примеры:
//
//	Pluralize(1, "like", "likes")  → "like"
//	Pluralize(0, "like", "likes")  → "likes"
func Pluralize(n int64, one, many string) string {
	if n == 1 || n == -1 {
		return one
	}
	return many
}

// FormatCount создаёт строку вида "3 comments".
func FormatCount(n int64, one, many string) string {
	return fmt.Sprintf("%d %s", n, Pluralize(n, one, many))
}
