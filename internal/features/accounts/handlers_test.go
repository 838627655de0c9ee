package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"studyhub.dev/portal-bot/internal/features/points"
	"studyhub.dev/portal-bot/internal/features/ranks"
)

func TestFormatProfile(t *testing.T) {
	table := ranks.DefaultTable()

	acc := &Account{Username: "amina", Points: points.Tenths(261)}
	p := &Profile{
		Account:  acc,
		Rank:     table.Resolve(acc.Points),
		Progress: table.ProgressToNext(acc.Points),
		Position: 2,
	}
	assert.Equal(t, "🏅 @amina\nPoints: 26.1\nRank: Insight Voyager\nNext: Wisdom Weaver in 3.9 pts\nClass position: #2", FormatProfile(p))

	top := &Account{FullName: "Top Student", Points: points.Whole(500)}
	p = &Profile{Account: top, Rank: table.Resolve(top.Points), Progress: table.ProgressToNext(top.Points)}
	text := FormatProfile(p)
	assert.Contains(t, text, "👑 Top Student")
	assert.Contains(t, text, "Top rank reached 🎉")
	assert.NotContains(t, text, "Class position")
}

func TestRankIcon(t *testing.T) {
	assert.Equal(t, "🔥", RankIcon("Fire"))
	assert.Equal(t, "🏅", RankIcon("Award"))
	assert.Equal(t, "🏅", RankIcon("Unknown"))
}

func TestHelpText(t *testing.T) {
	assert.Contains(t, HelpText(nil), "Hi there!")
	assert.Contains(t, HelpText(&Account{FullName: "Amina"}), "Hi Amina!")
	assert.Contains(t, HelpText(nil), "/share")
	assert.NotContains(t, HelpText(&Account{Role: RoleStudent}), "/reconcile")
	assert.Contains(t, HelpText(&Account{Role: RoleAdmin}), "/reconcile")
}
