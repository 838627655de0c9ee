// Package ranks превращает баланс очков в звание.
// Таблица неизменяемая, поиск - чистая функция: без состояния и блокировок.
package ranks

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"studyhub.dev/portal-bot/internal/features/points"
)

// DefaultTitle - звание для баланса ниже всех порогов.
const DefaultTitle = "Novice"

// Rank - порог и звание.
type Rank struct {
	Title     string
	MinPoints points.Points
	Icon      string
	Color     string
}

// Progress - сколько осталось до следующего звания.
// Next == nil означает, что текущее звание высшее.
type Progress struct {
	Next         *Rank
	PointsNeeded points.Points
}

// Table - упорядоченный по убыванию список порогов, последний всегда 0.
type Table struct {
	ranks []Rank
}

// NewTable проверяет и сортирует пороги. Если нулевого порога нет,
// добавляет звание по умолчанию.
func NewTable(ranks []Rank) (*Table, error) {
	sorted := make([]Rank, 0, len(ranks)+1)
	seen := make(map[points.Points]bool, len(ranks))
	hasZero := false

	for _, r := range ranks {
		r.Title = strings.TrimSpace(r.Title)
		if r.Title == "" {
			return nil, errors.New("rank title is empty")
		}
		if r.MinPoints < 0 {
			return nil, fmt.Errorf("rank %q: negative threshold", r.Title)
		}
		if seen[r.MinPoints] {
			return nil, fmt.Errorf("duplicate threshold %s", r.MinPoints)
		}
		seen[r.MinPoints] = true
		if r.MinPoints == 0 {
			hasZero = true
		}
		if r.Icon == "" {
			r.Icon = "Award"
		}
		sorted = append(sorted, r)
	}
	if !hasZero {
		sorted = append(sorted, Rank{Title: DefaultTitle, MinPoints: 0, Icon: "Award", Color: "text-gray-500"})
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinPoints > sorted[j].MinPoints })
	return &Table{ranks: sorted}, nil
}

// DefaultTable - звания портала.
func DefaultTable() *Table {
	t, err := NewTable([]Rank{
		{Title: "Celestial Champion", MinPoints: points.Whole(400), Icon: "Crown", Color: "text-yellow-500"},
		{Title: "Phoenix Prodigy", MinPoints: points.Whole(250), Icon: "Fire", Color: "text-red-500"},
		{Title: "Eternal Guardian", MinPoints: points.Whole(150), Icon: "Shield", Color: "text-blue-500"},
		{Title: "Cosmic Intellect", MinPoints: points.Whole(100), Icon: "Star", Color: "text-purple-500"},
		{Title: "Galactic Sage", MinPoints: points.Whole(75), Icon: "Award", Color: "text-green-500"},
		{Title: "Truth Hunter", MinPoints: points.Whole(50), Icon: "Award", Color: "text-teal-500"},
		{Title: "Wisdom Weaver", MinPoints: points.Whole(30), Icon: "Award", Color: "text-indigo-500"},
		{Title: "Insight Voyager", MinPoints: points.Whole(15), Icon: "Award", Color: "text-pink-500"},
		{Title: "Knowledge Keeper", MinPoints: points.Whole(5), Icon: "Award", Color: "text-orange-500"},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTable разбирает таблицу из строки конфига:
//
//	"400:Celestial Champion,100:Cosmic Intellect,0:Novice"
//
// Пороги - целые очки.
func ParseTable(raw string) (*Table, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultTable(), nil
	}

	var ranks []Rank
	for _, part := range strings.Split(raw, ",") {
		threshold, title, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("bad rank entry %q, want points:title", part)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(threshold), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad rank threshold %q: %w", threshold, err)
		}
		ranks = append(ranks, Rank{Title: title, MinPoints: points.Whole(n)})
	}
	return NewTable(ranks)
}

// Ranks возвращает копию порогов по убыванию.
func (t *Table) Ranks() []Rank {
	out := make([]Rank, len(t.ranks))
	copy(out, t.ranks)
	return out
}

// Resolve возвращает звание для баланса: первый порог, не превышающий p.
// Отрицательный баланс получает низшее звание.
func (t *Table) Resolve(p points.Points) Rank {
	return t.ranks[t.index(p)]
}

// ProgressToNext возвращает следующее звание и неотрицательный разрыв до него.
func (t *Table) ProgressToNext(p points.Points) Progress {
	i := t.index(p)
	if i == 0 {
		return Progress{}
	}
	next := t.ranks[i-1]
	return Progress{Next: &next, PointsNeeded: next.MinPoints - p}
}

func (t *Table) index(p points.Points) int {
	for i, r := range t.ranks {
		if p >= r.MinPoints {
			return i
		}
	}
	return len(t.ranks) - 1
}
