package ranks

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub.dev/portal-bot/internal/features/points"
)

func threeRanks(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable([]Rank{
		{Title: "Novice", MinPoints: 0},
		{Title: "Celestial", MinPoints: points.Whole(400)},
		{Title: "Cosmic", MinPoints: points.Whole(100)},
	})
	require.NoError(t, err)
	return table
}

func TestResolve(t *testing.T) {
	table := threeRanks(t)

	assert.Equal(t, "Novice", table.Resolve(points.Whole(99)).Title)
	assert.Equal(t, "Cosmic", table.Resolve(points.Whole(100)).Title)
	assert.Equal(t, "Cosmic", table.Resolve(points.Tenths(3999)).Title)
	assert.Equal(t, "Celestial", table.Resolve(points.Whole(400)).Title)
	assert.Equal(t, "Novice", table.Resolve(points.Whole(-7)).Title)
}

func TestProgressToNext(t *testing.T) {
	table := threeRanks(t)

	p := table.ProgressToNext(points.Whole(150))
	require.NotNil(t, p.Next)
	assert.Equal(t, "Celestial", p.Next.Title)
	assert.Equal(t, points.Whole(250), p.PointsNeeded)

	p = table.ProgressToNext(points.Whole(-3))
	require.NotNil(t, p.Next)
	assert.Equal(t, "Cosmic", p.Next.Title)
	assert.Equal(t, points.Whole(103), p.PointsNeeded)

	p = table.ProgressToNext(points.Whole(1000))
	assert.Nil(t, p.Next)
	assert.Equal(t, points.Points(0), p.PointsNeeded)
}

func TestNewTable(t *testing.T) {
	table, err := NewTable([]Rank{{Title: "Pro", MinPoints: points.Whole(10)}})
	require.NoError(t, err)
	ranks := table.Ranks()
	require.Len(t, ranks, 2)
	assert.Equal(t, DefaultTitle, ranks[1].Title)
	assert.Equal(t, points.Points(0), ranks[1].MinPoints)

	_, err = NewTable([]Rank{{Title: " ", MinPoints: 1}})
	assert.Error(t, err)
	_, err = NewTable([]Rank{{Title: "A", MinPoints: -1}})
	assert.Error(t, err)
	_, err = NewTable([]Rank{{Title: "A", MinPoints: 5}, {Title: "B", MinPoints: 5}})
	assert.Error(t, err)
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	ranks := table.Ranks()
	require.Len(t, ranks, 10)
	assert.Equal(t, "Celestial Champion", ranks[0].Title)
	assert.Equal(t, DefaultTitle, ranks[len(ranks)-1].Title)
	assert.Equal(t, "Knowledge Keeper", table.Resolve(points.Whole(5)).Title)
	assert.Equal(t, "Crown", table.Resolve(points.Whole(401)).Icon)
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable("400:Celestial, 100:Cosmic ,0:Novice")
	require.NoError(t, err)
	assert.Equal(t, "Cosmic", table.Resolve(points.Whole(100)).Title)

	table, err = ParseTable("")
	require.NoError(t, err)
	assert.Len(t, table.Ranks(), 10)

	_, err = ParseTable("Celestial")
	assert.Error(t, err)
	_, err = ParseTable("x:Celestial")
	assert.Error(t, err)
}

func TestResolveIsMonotonic(t *testing.T) {
	table := DefaultTable()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("rank threshold never decreases as points grow", prop.ForAll(
		func(a, b int64) bool {
			lo, hi := points.Points(a), points.Points(b)
			if lo > hi {
				lo, hi = hi, lo
			}
			return table.Resolve(lo).MinPoints <= table.Resolve(hi).MinPoints
		},
		gen.Int64Range(-10000, 10000),
		gen.Int64Range(-10000, 10000),
	))

	properties.Property("progress gap is non-negative and reaches the next rank", prop.ForAll(
		func(a int64) bool {
			p := points.Points(a)
			pr := table.ProgressToNext(p)
			if pr.Next == nil {
				return pr.PointsNeeded == 0 && table.Resolve(p).MinPoints == table.Ranks()[0].MinPoints
			}
			return pr.PointsNeeded > 0 && table.Resolve(p+pr.PointsNeeded).Title == pr.Next.Title
		},
		gen.Int64Range(-10000, 10000),
	))

	properties.TestingRun(t)
}
