package pokopred

import (
	"fmt"
	"time"

	"github.com/DantesRevengeReloaded/pokopred/internal/logger"
	"github.com/google/uuid"
)

// ModelName identifies the soft-voting ensemble in stored prediction rows
const ModelName = "poko-ensemble"

// RunSummary reports what one pipeline session did
type RunSummary struct {
	SessionID         string
	MatchesIngested   int
	MatchesTotal      int
	SnapshotsComputed int
	TrainedMembers    []string
	PredictionsStored int
	PredictionsTotal  int
}

// Pipeline wires the stages in dependency order: ingest, statistics,
// features, ensemble, draw conversion, storage. Stages never run out of
// order; parallelism lives inside the stages.
type Pipeline struct {
	cfg         *Config
	store       *Store
	matches     *MatchStore
	stats       *StatsEngine
	features    *FeatureBuilder
	ensemble    *Ensemble
	estimator   *DrawEstimator
	converter   *DrawConverter
	predictions *PredictionStore
	datasource  *Datasource
}

// NewPipeline creates the tables and wires the stages over one store handle
func NewPipeline(cfg *Config, store *Store) (*Pipeline, error) {
	matches, err := NewMatchStore(store)
	if err != nil {
		return nil, err
	}
	stats, err := NewStatsEngine(store, matches, cfg)
	if err != nil {
		return nil, err
	}
	predictions, err := NewPredictionStore(store)
	if err != nil {
		return nil, err
	}
	ensemble, err := NewEnsemble(cfg)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:         cfg,
		store:       store,
		matches:     matches,
		stats:       stats,
		features:    NewFeatureBuilder(stats, cfg),
		ensemble:    ensemble,
		estimator:   NewDrawEstimator(cfg),
		converter:   NewDrawConverter(cfg),
		predictions: predictions,
		datasource:  NewDatasource(cfg),
	}, nil
}

// Matches exposes the raw match store for callers that ingest their own rows
func (p *Pipeline) Matches() *MatchStore {
	return p.matches
}

// Predictions exposes the enhanced prediction store
func (p *Pipeline) Predictions() *PredictionStore {
	return p.predictions
}

// Ingest downloads and upserts the configured league seasons plus the
// upcoming fixtures. Per-row failures are logged and counted, a failing
// league/season download aborts the stage.
func (p *Pipeline) Ingest() (int, int, error) {
	saved, total := 0, 0

	for _, league := range p.cfg.Leagues {
		for _, season := range p.cfg.Seasons {
			csvData, err := p.datasource.FetchSeasonCSV(league, season)
			if err != nil {
				return saved, total, fmt.Errorf("ingest %s/%s: %w", league, season, err)
			}
			rows, err := p.datasource.ParseMatchCSV(csvData, league, season)
			if err != nil {
				return saved, total, fmt.Errorf("ingest %s/%s: %w", league, season, err)
			}
			s, t, rowErrs := p.matches.UpsertMatches(rows)
			saved += s
			total += t
			for _, re := range rowErrs {
				logger.Warn("Ingestion row error", re)
			}
		}
	}

	// Fixtures are best effort: a missing fixtures page should not sink a
	// historical run
	if len(p.cfg.Seasons) == 0 {
		return saved, total, fmt.Errorf("no seasons configured")
	}
	currentSeason := p.cfg.Seasons[len(p.cfg.Seasons)-1]
	fixtures, err := p.datasource.FetchUpcomingFixtures(currentSeason)
	if err != nil {
		logger.Warn("Could not fetch upcoming fixtures", err)
	} else {
		s, t, _ := p.matches.UpsertMatches(fixtures)
		saved += s
		total += t
	}

	return saved, total, nil
}

// Run executes the prediction stages over the store contents. A zero `since`
// fully recomputes the statistics, otherwise they are refreshed
// incrementally. The returned error is non-nil when the run produced nothing
// usable: no trained members or no stored predictions.
func (p *Pipeline) Run(since time.Time) (*RunSummary, error) {
	summary := &RunSummary{SessionID: uuid.NewString()}
	logger.Info("Starting prediction session", summary.SessionID)

	// Statistics
	var snapshots int
	var err error
	if since.IsZero() {
		snapshots, err = p.stats.RecomputeAll()
	} else {
		snapshots, err = p.stats.UpdateIncremental(since)
	}
	if err != nil {
		return summary, err
	}
	summary.SnapshotsComputed = snapshots

	// Training
	played, err := p.matches.GetMatches(MatchFilter{OnlyPlayed: true})
	if err != nil {
		return summary, err
	}
	trainingRows, err := p.features.BuildFeatures(played)
	if err != nil {
		return summary, err
	}
	if err := p.ensemble.Fit(trainingRows); err != nil {
		return summary, err
	}
	summary.TrainedMembers = p.ensemble.TrainedMembers()
	if len(summary.TrainedMembers) == 0 {
		return summary, &EnsembleUnavailableError{}
	}

	// Prediction over unplayed fixtures
	all, err := p.matches.GetMatches(MatchFilter{})
	if err != nil {
		return summary, err
	}
	var upcoming []*Match
	for _, m := range all {
		if !m.HasBeenPlayed() {
			upcoming = append(upcoming, m)
		}
	}

	fixtureRows, err := p.features.BuildFeatures(upcoming)
	if err != nil {
		return summary, err
	}

	records := make([]*PredictionRecord, 0, len(fixtureRows))
	for i, row := range fixtureRows {
		pred, err := p.ensemble.Predict(row)
		if err != nil {
			return summary, err
		}
		drawProb := p.estimator.EstimateDrawProbability(row.HomeStats, row.AwayStats)
		records = append(records, p.converter.Convert(ModelName, upcoming[i], pred, drawProb, summary.SessionID))
	}

	stored, totalRecords, recordErrs := p.predictions.UpsertPredictions(records)
	summary.PredictionsStored = stored
	summary.PredictionsTotal = totalRecords
	for _, re := range recordErrs {
		logger.Warn("Prediction record error", re)
	}

	if totalRecords > 0 && stored == 0 {
		return summary, fmt.Errorf("no predictions stored (0 of %d)", totalRecords)
	}

	logger.Info("Session complete", summary.SessionID,
		"stored", summary.PredictionsStored, "of", summary.PredictionsTotal)
	return summary, nil
}
