package pokopred

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evaluatedRecord(home, away, original, final string, converted bool) *PredictionRecord {
	return &PredictionRecord{
		Model:                    ModelName,
		GameDate:                 truncateToDay(day(2023, 9, 9)),
		HomeTeam:                 home,
		AwayTeam:                 away,
		League:                   "E0",
		Season:                   "2023/2024",
		OriginalPrediction:       original,
		PredictedResultWithDraws: final,
		ConversionApplied:        converted,
	}
}

func TestEvaluatePredictions(t *testing.T) {
	store := newTestStore(t)
	ms, err := NewMatchStore(store)
	require.NoError(t, err)

	_, _, errs := ms.UpsertMatches([]*Match{
		playedMatch("E0", "2023/2024", day(2023, 9, 9), "Arsenal", "Everton", 1, 1),
		playedMatch("E0", "2023/2024", day(2023, 9, 9), "Fulham", "Spurs", 0, 2),
		playedMatch("E0", "2023/2024", day(2023, 9, 9), "Leeds", "Hull", 3, 0),
		NewMatch("E0", "2023/2024", day(2023, 9, 16), "Wolves", "Brentford"),
	})
	require.Empty(t, errs)

	records := []*PredictionRecord{
		// Converted to draw and the match drew
		evaluatedRecord("Arsenal", "Everton", "H", "D", true),
		// Kept the away call and it landed
		evaluatedRecord("Fulham", "Spurs", "A", "A", false),
		// Home call missed
		evaluatedRecord("Leeds", "Hull", "A", "A", false),
		// Fixture not yet played is skipped
		{
			Model:                    ModelName,
			GameDate:                 truncateToDay(day(2023, 9, 16)),
			HomeTeam:                 "Wolves",
			AwayTeam:                 "Brentford",
			OriginalPrediction:       "H",
			PredictedResultWithDraws: "H",
			League:                   "E0",
			Season:                   "2023/2024",
		},
	}

	report, err := EvaluatePredictions(records, ms)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Evaluated)
	assert.Equal(t, 2, report.ResultCorrect)
	assert.InDelta(t, 200.0/3.0, report.ResultAccuracy, 1e-9)

	// Without conversion the Arsenal record would have missed
	assert.Equal(t, 1, report.OriginalCorrect)
	assert.InDelta(t, 100.0/3.0, report.OriginalAccuracy, 1e-9)

	assert.Equal(t, 1, report.Conversions)
	assert.Equal(t, 1, report.ConversionsCorrect)
	assert.InDelta(t, 100.0, report.ConversionAccuracy, 1e-9)
}

func TestEvaluatePredictionsEmpty(t *testing.T) {
	store := newTestStore(t)
	ms, err := NewMatchStore(store)
	require.NoError(t, err)

	report, err := EvaluatePredictions(nil, ms)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Evaluated)
	assert.Equal(t, 0.0, report.ResultAccuracy)
}
