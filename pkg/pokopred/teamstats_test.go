package pokopred

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStatsEngine(t *testing.T) (*StatsEngine, *MatchStore) {
	t.Helper()
	store := newTestStore(t)
	ms, err := NewMatchStore(store)
	require.NoError(t, err)
	engine, err := NewStatsEngine(store, ms, DefaultConfig())
	require.NoError(t, err)
	return engine, ms
}

func TestUpdateFormDataRollingWindow(t *testing.T) {
	form := 0
	for _, result := range []int{3, 2, 1} {
		form = UpdateFormData(form, result, 5)
	}
	// Most recent result is the leading quaternary digit; the zero seed
	// leaves a trailing 0 until the window fills
	assert.Equal(t, "1230", Quaternary(form))

	for _, result := range []int{3, 3, 3} {
		form = UpdateFormData(form, result, 5)
	}
	assert.Equal(t, "33312", Quaternary(form))

	// A seventh result pushes the oldest out of the window
	form = UpdateFormData(form, 1, 5)
	assert.Equal(t, "13331", Quaternary(form))
}

func TestFormPercentage(t *testing.T) {
	form := 0
	for _, result := range []int{3, 3, 3, 3, 3} {
		form = UpdateFormData(form, result, 5)
	}
	assert.InDelta(t, 100.0, FormPercentage(form), 1e-9)

	form = 0
	for _, result := range []int{1, 1, 1, 1, 1} {
		form = UpdateFormData(form, result, 5)
	}
	assert.InDelta(t, 0.0, FormPercentage(form), 1e-9)

	form = UpdateFormData(0, 2, 5)
	assert.InDelta(t, 100.0/3.0, FormPercentage(form), 1e-9)
}

func TestSnapshotCausality(t *testing.T) {
	engine, ms := newTestStatsEngine(t)

	rows := []*Match{
		playedMatch("E0", "2023/2024", day(2023, 8, 12), "Arsenal", "Everton", 2, 0),
		playedMatch("E0", "2023/2024", day(2023, 8, 19), "Fulham", "Arsenal", 1, 3),
		playedMatch("E0", "2023/2024", day(2023, 8, 26), "Arsenal", "Fulham", 1, 1),
	}
	_, _, errs := ms.UpsertMatches(rows)
	require.Empty(t, errs)

	_, err := engine.RecomputeAll()
	require.NoError(t, err)

	// The snapshot at a match date must exclude that match
	atFirst, err := engine.SnapshotAsOf("Arsenal", "E0", "2023/2024", day(2023, 8, 12))
	require.NoError(t, err)
	require.NotNil(t, atFirst)
	assert.Equal(t, 0, atFirst.GamesPlayed)
	assert.Equal(t, 0, atFirst.Points)

	atSecond, err := engine.SnapshotAsOf("Arsenal", "E0", "2023/2024", day(2023, 8, 19))
	require.NoError(t, err)
	require.NotNil(t, atSecond)
	assert.Equal(t, 1, atSecond.GamesPlayed)
	assert.Equal(t, 3, atSecond.Points)
	assert.Equal(t, 2, atSecond.HomeGoals)

	atThird, err := engine.SnapshotAsOf("Arsenal", "E0", "2023/2024", day(2023, 8, 26))
	require.NoError(t, err)
	require.NotNil(t, atThird)
	assert.Equal(t, 2, atThird.GamesPlayed)
	assert.Equal(t, 6, atThird.Points)

	// A future fixture resolves against the complete history
	future, err := engine.SnapshotAsOf("Arsenal", "E0", "2023/2024", day(2024, 5, 19))
	require.NoError(t, err)
	require.NotNil(t, future)
	assert.Equal(t, 3, future.GamesPlayed)
	assert.Equal(t, 7, future.Points)

	// An unknown team has no snapshots at all
	none, err := engine.SnapshotAsOf("Chelsea", "E0", "2023/2024", day(2024, 5, 19))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLaterMatchDoesNotChangeEarlierSnapshots(t *testing.T) {
	engine, ms := newTestStatsEngine(t)

	_, _, errs := ms.UpsertMatches([]*Match{
		playedMatch("E0", "2023/2024", day(2023, 8, 12), "Arsenal", "Everton", 2, 0),
		playedMatch("E0", "2023/2024", day(2023, 8, 19), "Fulham", "Arsenal", 1, 3),
	})
	require.Empty(t, errs)
	_, err := engine.RecomputeAll()
	require.NoError(t, err)

	before, err := engine.SnapshotAsOf("Arsenal", "E0", "2023/2024", day(2023, 8, 19))
	require.NoError(t, err)
	require.NotNil(t, before)

	// Add a later match and recompute
	_, _, errs = ms.UpsertMatches([]*Match{
		playedMatch("E0", "2023/2024", day(2023, 8, 26), "Arsenal", "Fulham", 0, 4),
	})
	require.Empty(t, errs)
	_, err = engine.RecomputeAll()
	require.NoError(t, err)

	after, err := engine.SnapshotAsOf("Arsenal", "E0", "2023/2024", day(2023, 8, 19))
	require.NoError(t, err)
	require.NotNil(t, after)

	assert.Equal(t, before.GamesPlayed, after.GamesPlayed)
	assert.Equal(t, before.Points, after.Points)
	assert.Equal(t, before.Form, after.Form)
	assert.Equal(t, before.AsOf, after.AsOf)
}

func TestIncrementalMatchesFullRecompute(t *testing.T) {
	engine, ms := newTestStatsEngine(t)

	initial := []*Match{
		playedMatch("E0", "2023/2024", day(2023, 8, 12), "Arsenal", "Everton", 2, 0),
		playedMatch("E0", "2023/2024", day(2023, 8, 19), "Fulham", "Arsenal", 1, 3),
		playedMatch("E0", "2023/2024", day(2023, 8, 19), "Everton", "Spurs", 2, 2),
	}
	_, _, errs := ms.UpsertMatches(initial)
	require.Empty(t, errs)
	_, err := engine.RecomputeAll()
	require.NoError(t, err)

	newer := []*Match{
		playedMatch("E0", "2023/2024", day(2023, 9, 2), "Arsenal", "Spurs", 1, 1),
		playedMatch("E0", "2023/2024", day(2023, 9, 2), "Everton", "Fulham", 0, 1),
	}
	_, _, errs = ms.UpsertMatches(newer)
	require.Empty(t, errs)

	_, err = engine.UpdateIncremental(day(2023, 9, 1))
	require.NoError(t, err)
	incremental := collectSnapshots(t, engine, "E0", "2023/2024")

	_, err = engine.RecomputeAll()
	require.NoError(t, err)
	full := collectSnapshots(t, engine, "E0", "2023/2024")

	require.Equal(t, len(full), len(incremental))
	for key, f := range full {
		i, ok := incremental[key]
		require.True(t, ok, "missing snapshot %s", key)
		assert.Equal(t, f.GamesPlayed, i.GamesPlayed, key)
		assert.Equal(t, f.Points, i.Points, key)
		assert.Equal(t, f.Form, i.Form, key)
		assert.Equal(t, f.HomeGoals, i.HomeGoals, key)
		assert.Equal(t, f.AwayGoals, i.AwayGoals, key)
		assert.Equal(t, f.HomeConceded, i.HomeConceded, key)
		assert.Equal(t, f.AwayConceded, i.AwayConceded, key)
	}
}

func collectSnapshots(t *testing.T, engine *StatsEngine, league, season string) map[string]*TeamStats {
	t.Helper()
	rows, err := engine.store.FindWhere(&TeamStats{},
		"WHERE league = ? AND season = ?", league, season)
	require.NoError(t, err)

	out := make(map[string]*TeamStats, len(rows))
	for _, row := range rows {
		ts := row.(*TeamStats)
		out[ts.Team+"|"+ts.AsOf.UTC().Format(time.RFC3339)] = ts
	}
	return out
}
