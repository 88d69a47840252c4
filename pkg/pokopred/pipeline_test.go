package pokopred

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, cfg *Config) *Pipeline {
	t.Helper()
	store := newTestStore(t)
	p, err := NewPipeline(cfg, store)
	require.NoError(t, err)
	return p
}

// seedSeason loads a short run of decisive results plus one upcoming fixture
func seedSeason(t *testing.T, p *Pipeline) *Match {
	t.Helper()
	history := []*Match{
		playedMatch("E0", "2023/2024", day(2023, 8, 12), "Arsenal", "Everton", 2, 0),
		playedMatch("E0", "2023/2024", day(2023, 8, 12), "Fulham", "Spurs", 0, 1),
		playedMatch("E0", "2023/2024", day(2023, 8, 19), "Everton", "Fulham", 2, 1),
		playedMatch("E0", "2023/2024", day(2023, 8, 19), "Spurs", "Arsenal", 0, 3),
		playedMatch("E0", "2023/2024", day(2023, 8, 26), "Arsenal", "Fulham", 4, 1),
		playedMatch("E0", "2023/2024", day(2023, 8, 26), "Everton", "Spurs", 0, 2),
		playedMatch("E0", "2023/2024", day(2023, 9, 2), "Fulham", "Everton", 1, 0),
		playedMatch("E0", "2023/2024", day(2023, 9, 2), "Spurs", "Arsenal", 1, 2),
	}
	_, _, errs := p.Matches().UpsertMatches(history)
	require.Empty(t, errs)

	fixture := NewMatch("E0", "2023/2024", day(2023, 9, 9), "Arsenal", "Everton")
	_, _, errs = p.Matches().UpsertMatches([]*Match{fixture})
	require.Empty(t, errs)
	return fixture
}

func TestPipelineRunEndToEnd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTrainingRows = 4
	cfg.MaxModelConfidence = 6.0
	cfg.MinDrawProbability = 0.05

	p := newTestPipeline(t, cfg)
	seedSeason(t, p)

	// Fixed-probability members make the soft vote arithmetic exact:
	// (0.9 + 0.2) / 2 favours home at 0.55
	p.ensemble = &Ensemble{
		members: []Classifier{
			&stubClassifier{name: "a", pHome: 0.9},
			&stubClassifier{name: "b", pHome: 0.2},
		},
		cfg: cfg,
	}
	p.converter = NewDrawConverter(cfg)

	summary, err := p.Run(time.Time{})
	require.NoError(t, err)
	assert.NotEmpty(t, summary.SessionID)
	assert.Greater(t, summary.SnapshotsComputed, 0)
	assert.Equal(t, []string{"a", "b"}, summary.TrainedMembers)
	assert.Equal(t, 1, summary.PredictionsStored)
	assert.Equal(t, 1, summary.PredictionsTotal)

	got, err := p.Predictions().GetPredictions(PredictionFilter{SessionID: summary.SessionID})
	require.NoError(t, err)
	require.Len(t, got, 1)

	record := got[0]
	assert.Equal(t, ModelName, record.Model)
	assert.Equal(t, "Arsenal", record.HomeTeam)
	assert.Equal(t, "Everton", record.AwayTeam)
	assert.Equal(t, day(2023, 9, 9).Truncate(24*time.Hour), record.GameDate.UTC())

	// The soft vote landed at 5.5, under the 6.0 threshold, and the Poisson
	// draw mass clears the floor, so the home call converts to a draw with
	// the original preserved
	assert.Equal(t, "H", record.OriginalPrediction)
	assert.InDelta(t, 5.5, record.HAConfidence, 1e-9)
	assert.Greater(t, record.DrawProbability, 0.05)
	assert.Equal(t, "D", record.PredictedResultWithDraws)
	assert.True(t, record.ConversionApplied)
	assert.InDelta(t, 6.0, record.MaxModelConfidence, 1e-9)
	assert.InDelta(t, 0.05, record.MinDrawProbability, 1e-9)
}

func TestPipelineRunConfidentPredictionStays(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTrainingRows = 4
	cfg.MaxModelConfidence = 5.0
	cfg.MinDrawProbability = 0.05

	p := newTestPipeline(t, cfg)
	seedSeason(t, p)

	p.ensemble = &Ensemble{
		members: []Classifier{&stubClassifier{name: "strong", pHome: 0.55}},
		cfg:     cfg,
	}
	p.converter = NewDrawConverter(cfg)

	summary, err := p.Run(time.Time{})
	require.NoError(t, err)

	got, err := p.Predictions().GetPredictions(PredictionFilter{SessionID: summary.SessionID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "H", got[0].PredictedResultWithDraws)
	assert.False(t, got[0].ConversionApplied)
}

func TestPipelineRunFailsWhenNoMemberTrains(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTrainingRows = 4

	p := newTestPipeline(t, cfg)
	seedSeason(t, p)

	p.ensemble = &Ensemble{
		members: []Classifier{
			&stubClassifier{name: "a", fitErr: errors.New("diverged")},
			&stubClassifier{name: "b", fitErr: errors.New("diverged")},
		},
		cfg: cfg,
	}

	_, err := p.Run(time.Time{})
	var eua *EnsembleUnavailableError
	require.ErrorAs(t, err, &eua)
}

func TestPipelineRunWithTooLittleHistory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTrainingRows = 50

	p := newTestPipeline(t, cfg)
	seedSeason(t, p)

	_, err := p.Run(time.Time{})
	var ide *InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 50, ide.Required)
}

func TestPipelineRunWithoutFixturesStoresNothing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTrainingRows = 4

	p := newTestPipeline(t, cfg)
	_, _, errs := p.Matches().UpsertMatches([]*Match{
		playedMatch("E0", "2023/2024", day(2023, 8, 12), "Arsenal", "Everton", 2, 0),
		playedMatch("E0", "2023/2024", day(2023, 8, 19), "Everton", "Arsenal", 0, 1),
		playedMatch("E0", "2023/2024", day(2023, 8, 26), "Arsenal", "Everton", 3, 1),
		playedMatch("E0", "2023/2024", day(2023, 9, 2), "Everton", "Arsenal", 2, 1),
	})
	require.Empty(t, errs)

	p.ensemble = &Ensemble{
		members: []Classifier{&stubClassifier{name: "a", pHome: 0.6}},
		cfg:     cfg,
	}

	summary, err := p.Run(time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.PredictionsStored)
	assert.Equal(t, 0, summary.PredictionsTotal)
}

func TestPipelineIncrementalRunRefreshesPredictions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTrainingRows = 4
	cfg.MaxModelConfidence = 6.0
	cfg.MinDrawProbability = 0.05

	p := newTestPipeline(t, cfg)
	seedSeason(t, p)
	p.ensemble = &Ensemble{
		members: []Classifier{&stubClassifier{name: "a", pHome: 0.55}},
		cfg:     cfg,
	}
	p.converter = NewDrawConverter(cfg)

	first, err := p.Run(time.Time{})
	require.NoError(t, err)

	// New results arrive, then an incremental refresh re-predicts the fixture
	_, _, errs := p.Matches().UpsertMatches([]*Match{
		playedMatch("E0", "2023/2024", day(2023, 9, 5), "Fulham", "Spurs", 2, 0),
	})
	require.Empty(t, errs)

	second, err := p.Run(day(2023, 9, 4))
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, second.PredictionsStored)

	// The key is (model, game_date, home_team), so the refresh replaced the
	// earlier row rather than adding one
	all, err := p.Predictions().GetPredictions(PredictionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, second.SessionID, all[0].SessionID)
}
