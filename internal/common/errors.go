// Package common - errors.go определяет таксономию ошибок ядра репутации.
// Четыре базовых вида: NotFound, InvalidInput, Conflict, Unauthorized.
// Конкретные ошибки оборачивают базовые, поэтому вызывающий код
// проверяет вид через errors.Is, а пользователю показывает конкретный текст.
package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Базовые виды ошибок
var (
	// ErrNotFound - материал, аккаунт или комментарий не существует
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput - пустой текст, неизвестная реакция и т.п.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict - конкурентная транзакция не прошла, повторы исчерпаны
	ErrConflict = errors.New("conflict, please retry")
	// ErrUnauthorized - у пользователя нет прав на действие
	ErrUnauthorized = errors.New("not allowed")
)

// Ошибки поиска
var (
	ErrItemNotFound    = fmt.Errorf("material %w", ErrNotFound)
	ErrAccountNotFound = fmt.Errorf("account %w", ErrNotFound)
	ErrCommentNotFound = fmt.Errorf("comment %w", ErrNotFound)
)

// Ошибки валидации
var (
	// ErrEmptyComment - комментарий без текста
	ErrEmptyComment = fmt.Errorf("%w: comment text is empty", ErrInvalidInput)
	// ErrCommentTooLong - комментарий длиннее лимита из конфига
	ErrCommentTooLong = fmt.Errorf("%w: comment text is too long", ErrInvalidInput)
	// ErrUnknownReaction - реакция не like/dislike
	ErrUnknownReaction = fmt.Errorf("%w: unknown reaction", ErrInvalidInput)
	// ErrUnknownContentType - тип материала не assignment/note/pastPaper
	ErrUnknownContentType = fmt.Errorf("%w: unknown content type", ErrInvalidInput)
	// ErrEmptyTitle - материал без названия
	ErrEmptyTitle = fmt.Errorf("%w: title is empty", ErrInvalidInput)
	// ErrCommentIDReused - тот же ID комментария пришёл с другим содержимым
	ErrCommentIDReused = fmt.Errorf("%w: comment id already used for another comment", ErrInvalidInput)
	// ErrMissingEventKey - начисление без ключа события нельзя дедуплицировать
	ErrMissingEventKey = fmt.Errorf("%w: award event key is empty", ErrInvalidInput)
)

// Ошибки прав
var (
	// ErrNotOwner - действие доступно только автору или админу класса
	ErrNotOwner = fmt.Errorf("%w: only the owner or a class admin can do this", ErrUnauthorized)
)

// IsTerminal сообщает, что ошибку бессмысленно повторять.
// Повторяется только ErrConflict.
func IsTerminal(err error) bool {
	return err != nil && !errors.Is(err, ErrConflict)
}

// UserMessage переводит ошибку в короткий текст для пользователя бота.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrItemNotFound):
		return "❌ Material not found"
	case errors.Is(err, ErrAccountNotFound):
		return "❌ You are not registered yet, send /start first"
	case errors.Is(err, ErrCommentNotFound):
		return "❌ Comment not found"
	case errors.Is(err, ErrInvalidInput):
		return "❌ " + strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": ")
	case errors.Is(err, ErrUnauthorized):
		return "⛔ Only the owner or a class admin can do this"
	case errors.Is(err, ErrConflict):
		return "⏳ Too many people at once, please try again"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "⏳ Timed out, please try again"
	}
	return "❌ Something went wrong"
}
