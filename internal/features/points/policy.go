// Package points - policy.go описывает расписания начислений.
// В исходном портале жили два расписания: плоское (+5 за загрузку, +1 за комментарий)
// и типовое (+10/+30/+25 по типу материала, +0.1 за комментарий).
// Оба доступны по имени, выбирается через POINTS_AWARD_POLICY.
package points

import (
	"fmt"

	"studyhub.dev/portal-bot/internal/features/reactions"
)

// Имена политик
const (
	PolicyFlat  = "flat"
	PolicyTyped = "typed"
)

// Policy переводит доменные события в дельты очков.
type Policy interface {
	Name() string
	// UploadAward - начисление автору за загрузку материала данного типа.
	UploadAward(contentType string) Points
	// CommentAwards - начисления комментатору и владельцу материала.
	CommentAwards() (commenter, owner Points)
	// ReactionDelta - изменение очков автора материала при переходе реакции.
	ReactionDelta(t reactions.Transition) Points
}

// FlatPolicy - каноническое расписание.
type FlatPolicy struct{}

func (FlatPolicy) Name() string { return PolicyFlat }

func (FlatPolicy) UploadAward(string) Points { return Whole(5) }

func (FlatPolicy) CommentAwards() (Points, Points) { return Whole(1), Whole(1) }

func (FlatPolicy) ReactionDelta(t reactions.Transition) Points {
	return Whole(int64(t.ScoreDelta()))
}

// TypedPolicy - расписание по типу материала.
// Владелец материала за чужой комментарий ничего не получает.
type TypedPolicy struct {
	Uploads map[string]Points
}

// NewTypedPolicy создаёт типовую политику с таблицей загрузок по умолчанию.
func NewTypedPolicy() TypedPolicy {
	return TypedPolicy{Uploads: map[string]Points{
		"assignment": Whole(10),
		"note":       Whole(30),
		"pastPaper":  Whole(25),
	}}
}

func (TypedPolicy) Name() string { return PolicyTyped }

func (p TypedPolicy) UploadAward(contentType string) Points {
	return p.Uploads[contentType]
}

func (TypedPolicy) CommentAwards() (Points, Points) { return Tenths(1), 0 }

func (TypedPolicy) ReactionDelta(t reactions.Transition) Points {
	return Whole(int64(t.ScoreDelta()))
}

// PolicyByName возвращает политику по имени из конфига.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case PolicyFlat, "":
		return FlatPolicy{}, nil
	case PolicyTyped:
		return NewTypedPolicy(), nil
	}
	return nil, fmt.Errorf("unknown award policy %q", name)
}
