package pokopred

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertThresholdsAreInclusive(t *testing.T) {
	dc := &DrawConverter{MaxModelConfidence: 7.0, MinDrawProbability: 0.35}
	match := NewMatch("E0", "2023/2024", day(2024, 5, 19), "Arsenal", "Everton")

	cases := []struct {
		name       string
		confidence float64
		drawProb   float64
		converted  bool
	}{
		{"both exactly at threshold", 7.0, 0.35, true},
		{"confidence just over", 7.01, 0.35, false},
		{"draw probability just under", 7.0, 0.349, false},
		{"both comfortably inside", 6.9, 0.36, true},
		{"high confidence high draw", 9.5, 0.6, false},
		{"low confidence low draw", 5.0, 0.1, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pred := &EnsemblePrediction{Label: "H", Confidence: tc.confidence}
			record := dc.Convert("poko-ensemble", match, pred, tc.drawProb, "session-1")

			assert.Equal(t, tc.converted, record.ConversionApplied)
			if tc.converted {
				assert.Equal(t, "D", record.PredictedResultWithDraws)
			} else {
				assert.Equal(t, "H", record.PredictedResultWithDraws)
			}
		})
	}
}

func TestConvertPreservesProvenance(t *testing.T) {
	dc := &DrawConverter{MaxModelConfidence: 7.0, MinDrawProbability: 0.35}
	match := NewMatch("E0", "2023/2024", day(2024, 5, 19), "Arsenal", "Everton")
	pred := &EnsemblePrediction{Label: "A", Confidence: 5.2, ProbHome: 0.48, ProbAway: 0.52}

	record := dc.Convert("poko-ensemble", match, pred, 0.4, "session-xyz")

	assert.Equal(t, "poko-ensemble", record.Model)
	assert.Equal(t, "Arsenal", record.HomeTeam)
	assert.Equal(t, "Everton", record.AwayTeam)
	assert.Equal(t, "E0", record.League)
	assert.Equal(t, "2023/2024", record.Season)
	assert.Equal(t, "session-xyz", record.SessionID)

	// The pre-conversion label and the thresholds in force are always kept
	assert.Equal(t, "A", record.OriginalPrediction)
	assert.Equal(t, "D", record.PredictedResultWithDraws)
	assert.True(t, record.ConversionApplied)
	assert.InDelta(t, 5.2, record.HAConfidence, 1e-9)
	assert.InDelta(t, 0.4, record.DrawProbability, 1e-9)
	assert.InDelta(t, 7.0, record.MaxModelConfidence, 1e-9)
	assert.InDelta(t, 0.35, record.MinDrawProbability, 1e-9)
}

func TestConvertTruncatesGameDate(t *testing.T) {
	dc := NewDrawConverter(DefaultConfig())
	kickoff := time.Date(2024, 5, 19, 16, 30, 0, 0, time.UTC)
	match := NewMatch("E0", "2023/2024", kickoff, "Arsenal", "Everton")
	pred := &EnsemblePrediction{Label: "H", Confidence: 8.0}

	record := dc.Convert("poko-ensemble", match, pred, 0.2, "s")
	assert.Equal(t, time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC), record.GameDate)
}

func TestNewDrawConverterReadsConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxModelConfidence = 6.5
	cfg.MinDrawProbability = 0.3

	dc := NewDrawConverter(cfg)
	require.NotNil(t, dc)
	assert.InDelta(t, 6.5, dc.MaxModelConfidence, 1e-9)
	assert.InDelta(t, 0.3, dc.MinDrawProbability, 1e-9)
}
