package pokopred

import (
	"time"
)

// FeatureRow is a derived view of one match joined with both teams' causal
// snapshots. It is rebuilt on demand and never persisted.
type FeatureRow struct {
	League    string
	Season    string
	MatchDate time.Time
	HomeTeam  string
	AwayTeam  string

	Features []float64

	// Label is "H" or "A" for a played non-draw match, "D" for a played
	// draw, empty for an upcoming fixture
	Label string

	// Snapshots kept for the draw probability estimator; nil when a team
	// has no history yet
	HomeStats *TeamStats
	AwayStats *TeamStats
}

// FeatureNames returns the feature vector layout, index-aligned with
// FeatureRow.Features
func FeatureNames() []string {
	return []string{
		"home_goals_per_game",
		"home_conceded_per_game",
		"away_goals_per_game",
		"away_conceded_per_game",
		"form_diff",
		"home_form_pct",
		"away_form_pct",
		"points_per_game_diff",
		"goal_diff_per_game_diff",
		"home_win_rate",
		"away_win_rate",
		"shots_ratio_diff",
	}
}

// FeatureBuilder assembles feature rows for training and prediction through
// one shared code path, so the two feature spaces cannot drift apart.
type FeatureBuilder struct {
	stats *StatsEngine
	cfg   *Config
}

// NewFeatureBuilder returns a builder over the given snapshot engine
func NewFeatureBuilder(stats *StatsEngine, cfg *Config) *FeatureBuilder {
	return &FeatureBuilder{stats: stats, cfg: cfg}
}

// BuildFeatures resolves both team snapshots as-of each match date and
// derives the feature vector. Matches whose snapshots are missing entirely
// still produce a row, filled with the documented neutral defaults.
func (fb *FeatureBuilder) BuildFeatures(matches []*Match) ([]*FeatureRow, error) {
	rows := make([]*FeatureRow, 0, len(matches))
	for _, m := range matches {
		row, err := fb.buildRow(m)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (fb *FeatureBuilder) buildRow(m *Match) (*FeatureRow, error) {
	home, err := fb.stats.SnapshotAsOf(m.HomeTeam, m.League, m.Season, m.MatchDate)
	if err != nil {
		return nil, err
	}
	away, err := fb.stats.SnapshotAsOf(m.AwayTeam, m.League, m.Season, m.MatchDate)
	if err != nil {
		return nil, err
	}

	row := &FeatureRow{
		League:    m.League,
		Season:    m.Season,
		MatchDate: m.MatchDate,
		HomeTeam:  m.HomeTeam,
		AwayTeam:  m.AwayTeam,
		Label:     m.Result(),
		HomeStats: home,
		AwayStats: away,
		Features:  fb.deriveFeatures(home, away),
	}
	return row, nil
}

// deriveFeatures computes the vector from two snapshots. Neutral defaults
// when a snapshot is missing or a team has no games yet: scoring rates fall
// back to the league-neutral priors from Config, all rate differentials to 0
// ("no observed edge") and win rates to 0.5.
func (fb *FeatureBuilder) deriveFeatures(home, away *TeamStats) []float64 {
	homeGPG := fb.cfg.DefaultHomeGoalsPerGame
	homeCPG := fb.cfg.DefaultAwayGoalsPerGame
	awayGPG := fb.cfg.DefaultAwayGoalsPerGame
	awayCPG := fb.cfg.DefaultHomeGoalsPerGame

	formDiff := 0.0
	homeFormPct := 50.0
	awayFormPct := 50.0
	ppgDiff := 0.0
	gdpgDiff := 0.0
	homeWinRate := 0.5
	awayWinRate := 0.5
	shotsRatioDiff := 0.0

	if home != nil && home.HomeGamesPlayed > 0 {
		homeGPG = float64(home.HomeGoals) / float64(home.HomeGamesPlayed)
		homeCPG = float64(home.HomeConceded) / float64(home.HomeGamesPlayed)
		homeWinRate = float64(home.HomeWins) / float64(home.HomeGamesPlayed)
	}
	if away != nil && away.AwayGamesPlayed > 0 {
		awayGPG = float64(away.AwayGoals) / float64(away.AwayGamesPlayed)
		awayCPG = float64(away.AwayConceded) / float64(away.AwayGamesPlayed)
		awayWinRate = float64(away.AwayWins) / float64(away.AwayGamesPlayed)
	}

	if home != nil && home.GamesPlayed > 0 {
		homeFormPct = FormPercentage(home.Form)
	}
	if away != nil && away.GamesPlayed > 0 {
		awayFormPct = FormPercentage(away.Form)
	}
	if home != nil && away != nil && home.GamesPlayed > 0 && away.GamesPlayed > 0 {
		formDiff = homeFormPct - awayFormPct
		ppgDiff = pointsPerGame(home) - pointsPerGame(away)
		gdpgDiff = goalDiffPerGame(home) - goalDiffPerGame(away)
		shotsRatioDiff = shotsRatio(home) - shotsRatio(away)
	}

	return []float64{
		homeGPG,
		homeCPG,
		awayGPG,
		awayCPG,
		formDiff,
		homeFormPct,
		awayFormPct,
		ppgDiff,
		gdpgDiff,
		homeWinRate,
		awayWinRate,
		shotsRatioDiff,
	}
}

func pointsPerGame(ts *TeamStats) float64 {
	if ts.GamesPlayed == 0 {
		return 0.0
	}
	return float64(ts.Points) / float64(ts.GamesPlayed)
}

func goalDiffPerGame(ts *TeamStats) float64 {
	if ts.GamesPlayed == 0 {
		return 0.0
	}
	scored := ts.HomeGoals + ts.AwayGoals
	conceded := ts.HomeConceded + ts.AwayConceded
	return float64(scored-conceded) / float64(ts.GamesPlayed)
}

// shotsRatio is the share of on-target shots the team produced in its games
func shotsRatio(ts *TeamStats) float64 {
	total := ts.ShotsOnTargetFor + ts.ShotsOnTargetAgainst
	if total == 0 {
		return 0.5
	}
	return float64(ts.ShotsOnTargetFor) / float64(total)
}
