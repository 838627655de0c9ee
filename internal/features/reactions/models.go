// Package reactions реализует журнал реакций (like/dislike) на материалы.
// models.go описывает состояния реакции, строку реакции и переход.
package reactions

import (
	"strings"
	"time"

	"studyhub.dev/portal-bot/internal/common"
)

// State - состояние реакции пользователя на материал.
type State string

const (
	None    State = "none"
	Like    State = "like"
	Dislike State = "dislike"
)

// ParseState разбирает состояние, включая None.
func ParseState(s string) (State, error) {
	switch State(strings.ToLower(strings.TrimSpace(s))) {
	case None, "":
		return None, nil
	case Like:
		return Like, nil
	case Dislike:
		return Dislike, nil
	}
	return None, common.ErrUnknownReaction
}

// ParseDesired разбирает желаемую реакцию. None не допускается:
// снять реакцию можно только повторным нажатием той же кнопки.
func ParseDesired(s string) (State, error) {
	st, err := ParseState(s)
	if err != nil {
		return None, err
	}
	if st == None {
		return None, common.ErrUnknownReaction
	}
	return st, nil
}

// Valid проверяет, что состояние одно из трёх известных.
func (s State) Valid() bool {
	return s == None || s == Like || s == Dislike
}

// Score - вклад состояния в очки автора: like +1, dislike −1.
func (s State) Score() int {
	switch s {
	case Like:
		return 1
	case Dislike:
		return -1
	}
	return 0
}

// Reaction - строка журнала. На пару (материал, пользователь) ровно одна строка.
// После снятия реакции строка остаётся с состоянием None, чтобы Version
// продолжал расти и ключи начислений не повторялись.
type Reaction struct {
	ItemID    int64     `db:"item_id"`
	AccountID int64     `db:"account_id"`
	State     State     `db:"state"`
	Version   int64     `db:"version"` // номер последнего перехода
	UpdatedAt time.Time `db:"updated_at"`
}

// Transition - результат повторного выражения реакции.
type Transition struct {
	ItemID    int64
	AccountID int64
	From      State
	To        State
	Version   int64 // версия строки после перехода
}

// CountDeltas возвращает изменение счётчиков лайков и дизлайков материала.
func (t Transition) CountDeltas() (likes, dislikes int) {
	switch t.From {
	case Like:
		likes--
	case Dislike:
		dislikes--
	}
	switch t.To {
	case Like:
		likes++
	case Dislike:
		dislikes++
	}
	return likes, dislikes
}

// ScoreDelta - изменение суммарного вклада реакции: to − from.
// Даёт ровно таблицу начислений: NONE→LIKE +1, LIKE→DISLIKE −2 и т.д.
func (t Transition) ScoreDelta() int {
	return t.To.Score() - t.From.Score()
}
