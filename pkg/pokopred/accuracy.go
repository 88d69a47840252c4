package pokopred

import "time"

// AccuracyReport aggregates how stored predictions fared against played
// results
type AccuracyReport struct {
	Evaluated int

	ResultCorrect  int
	ResultAccuracy float64 // percentage over evaluated records

	// Draw conversion breakdown
	Conversions        int
	ConversionsCorrect int
	ConversionAccuracy float64 // percentage over converted records

	// What the original labels would have scored without conversion
	OriginalCorrect  int
	OriginalAccuracy float64
}

// EvaluatePredictions compares prediction records against the played matches
// in the store. Fixtures without a result yet are skipped.
func EvaluatePredictions(records []*PredictionRecord, matches *MatchStore) (*AccuracyReport, error) {
	report := &AccuracyReport{}

	for _, r := range records {
		played, err := matches.GetMatches(MatchFilter{
			League:     r.League,
			Season:     r.Season,
			Team:       r.HomeTeam,
			DateFrom:   r.GameDate,
			DateTo:     r.GameDate.Add(24 * time.Hour),
			OnlyPlayed: true,
		})
		if err != nil {
			return nil, err
		}

		var actual string
		for _, m := range played {
			if m.HomeTeam == r.HomeTeam && m.AwayTeam == r.AwayTeam {
				actual = m.Result()
				break
			}
		}
		if actual == "" {
			continue
		}

		report.Evaluated++
		if r.PredictedResultWithDraws == actual {
			report.ResultCorrect++
		}
		if r.OriginalPrediction == actual {
			report.OriginalCorrect++
		}
		if r.ConversionApplied {
			report.Conversions++
			if actual == "D" {
				report.ConversionsCorrect++
			}
		}
	}

	if report.Evaluated > 0 {
		report.ResultAccuracy = float64(report.ResultCorrect) / float64(report.Evaluated) * 100.0
		report.OriginalAccuracy = float64(report.OriginalCorrect) / float64(report.Evaluated) * 100.0
	}
	if report.Conversions > 0 {
		report.ConversionAccuracy = float64(report.ConversionsCorrect) / float64(report.Conversions) * 100.0
	}

	return report, nil
}
