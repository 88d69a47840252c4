package pokopred

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func predictionRecord(date time.Time, home string) *PredictionRecord {
	return &PredictionRecord{
		Model:                    ModelName,
		GameDate:                 date,
		HomeTeam:                 home,
		AwayTeam:                 "Everton",
		League:                   "E0",
		Season:                   "2023/2024",
		OriginalPrediction:       "H",
		HAConfidence:             6.0,
		DrawProbability:          0.3,
		PredictedResultWithDraws: "H",
		SessionID:                "session-1",
	}
}

func TestUpsertPredictionsPartialFailure(t *testing.T) {
	store := newTestStore(t)
	ps, err := NewPredictionStore(store)
	require.NoError(t, err)

	records := make([]*PredictionRecord, 0, 10)
	for i := 0; i < 10; i++ {
		records = append(records, predictionRecord(day(2024, 5, 19), fmt.Sprintf("Team %d", i)))
	}
	records[3].HomeTeam = ""

	ok, total, errs := ps.UpsertPredictions(records)
	assert.Equal(t, 9, ok)
	assert.Equal(t, 10, total)
	require.Len(t, errs, 1)

	var uerr *UpsertError
	require.ErrorAs(t, errs[0], &uerr)
	assert.Contains(t, uerr.Reason, "missing home team")

	got, err := ps.GetPredictions(PredictionFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 9)
}

func TestUpsertPredictionsIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ps, err := NewPredictionStore(store)
	require.NoError(t, err)

	records := []*PredictionRecord{
		predictionRecord(day(2024, 5, 19), "Arsenal"),
		predictionRecord(day(2024, 5, 19), "Fulham"),
	}
	_, _, errs := ps.UpsertPredictions(records)
	require.Empty(t, errs)

	// Re-running the session replaces rows instead of duplicating them
	records[0].PredictedResultWithDraws = "D"
	records[0].ConversionApplied = true
	ok, total, errs := ps.UpsertPredictions(records)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 2, total)
	require.Empty(t, errs)

	got, err := ps.GetPredictions(PredictionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, r := range got {
		if r.HomeTeam == "Arsenal" {
			assert.Equal(t, "D", r.PredictedResultWithDraws)
			assert.True(t, r.ConversionApplied)
		}
	}
}

func TestUpsertPredictionsRejectsInvalidResult(t *testing.T) {
	store := newTestStore(t)
	ps, err := NewPredictionStore(store)
	require.NoError(t, err)

	bad := predictionRecord(day(2024, 5, 19), "Arsenal")
	bad.PredictedResultWithDraws = "X"

	ok, total, errs := ps.UpsertPredictions([]*PredictionRecord{bad})
	assert.Equal(t, 0, ok)
	assert.Equal(t, 1, total)
	require.Len(t, errs, 1)

	var uerr *UpsertError
	require.ErrorAs(t, errs[0], &uerr)
	assert.Contains(t, uerr.Reason, "invalid predicted result")
}

func TestGetPredictionsOrdersNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ps, err := NewPredictionStore(store)
	require.NoError(t, err)

	records := []*PredictionRecord{
		predictionRecord(day(2024, 5, 5), "Arsenal"),
		predictionRecord(day(2024, 5, 19), "Fulham"),
		predictionRecord(day(2024, 5, 12), "Spurs"),
	}
	_, _, errs := ps.UpsertPredictions(records)
	require.Empty(t, errs)

	got, err := ps.GetPredictions(PredictionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Fulham", got[0].HomeTeam)
	assert.Equal(t, "Spurs", got[1].HomeTeam)
	assert.Equal(t, "Arsenal", got[2].HomeTeam)
}

func TestGetPredictionsFilters(t *testing.T) {
	store := newTestStore(t)
	ps, err := NewPredictionStore(store)
	require.NoError(t, err)

	a := predictionRecord(day(2024, 5, 5), "Arsenal")
	b := predictionRecord(day(2024, 5, 12), "Fulham")
	b.SessionID = "session-2"
	c := predictionRecord(day(2024, 5, 19), "Leeds")
	c.Model = "other-model"
	c.League = "E1"

	_, _, errs := ps.UpsertPredictions([]*PredictionRecord{a, b, c})
	require.Empty(t, errs)

	byModel, err := ps.GetPredictions(PredictionFilter{Model: ModelName})
	require.NoError(t, err)
	assert.Len(t, byModel, 2)

	bySession, err := ps.GetPredictions(PredictionFilter{SessionID: "session-2"})
	require.NoError(t, err)
	require.Len(t, bySession, 1)
	assert.Equal(t, "Fulham", bySession[0].HomeTeam)

	byLeague, err := ps.GetPredictions(PredictionFilter{League: "E1"})
	require.NoError(t, err)
	require.Len(t, byLeague, 1)
	assert.Equal(t, "Leeds", byLeague[0].HomeTeam)

	windowed, err := ps.GetPredictions(PredictionFilter{
		DateFrom: day(2024, 5, 10),
		DateTo:   day(2024, 5, 15),
	})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "Fulham", windowed[0].HomeTeam)

	limited, err := ps.GetPredictions(PredictionFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGameDateIsStoredAtDayGranularity(t *testing.T) {
	store := newTestStore(t)
	ps, err := NewPredictionStore(store)
	require.NoError(t, err)

	record := predictionRecord(time.Date(2024, 5, 19, 16, 30, 0, 0, time.UTC), "Arsenal")
	_, _, errs := ps.UpsertPredictions([]*PredictionRecord{record})
	require.Empty(t, errs)

	got, err := ps.GetPredictions(PredictionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC), got[0].GameDate.UTC())
}
