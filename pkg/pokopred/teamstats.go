package pokopred

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DantesRevengeReloaded/pokopred/internal/logger"
)

// Compile-time check to ensure TeamStats implements Persistable interface
var _ Persistable = (*TeamStats)(nil)

// TeamStats is a causal snapshot of a team's cumulative season statistics.
// A snapshot with as_of date D reflects only matches dated strictly before D.
type TeamStats struct {
	// Compound primary key fields
	Team   string    `json:"team" column:"team" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	League string    `json:"league" column:"league" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	Season string    `json:"season" column:"season" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	AsOf   time.Time `json:"asOf" column:"as_of" dbtype:"DATETIME NOT NULL" primary:"true" index:"true"`

	// Statistical fields
	GamesPlayed     int `json:"gamesPlayed" column:"games_played" dbtype:"INTEGER DEFAULT 0"`
	HomeGamesPlayed int `json:"homeGamesPlayed" column:"home_games_played" dbtype:"INTEGER DEFAULT 0"`
	AwayGamesPlayed int `json:"awayGamesPlayed" column:"away_games_played" dbtype:"INTEGER DEFAULT 0"`

	HomeWins   int `json:"homeWins" column:"home_wins" dbtype:"INTEGER DEFAULT 0"`
	HomeDraws  int `json:"homeDraws" column:"home_draws" dbtype:"INTEGER DEFAULT 0"`
	HomeLosses int `json:"homeLosses" column:"home_losses" dbtype:"INTEGER DEFAULT 0"`
	AwayWins   int `json:"awayWins" column:"away_wins" dbtype:"INTEGER DEFAULT 0"`
	AwayDraws  int `json:"awayDraws" column:"away_draws" dbtype:"INTEGER DEFAULT 0"`
	AwayLosses int `json:"awayLosses" column:"away_losses" dbtype:"INTEGER DEFAULT 0"`

	HomeGoals    int `json:"homeGoals" column:"home_goals" dbtype:"INTEGER DEFAULT 0"`
	HomeConceded int `json:"homeConceded" column:"home_conceded" dbtype:"INTEGER DEFAULT 0"`
	AwayGoals    int `json:"awayGoals" column:"away_goals" dbtype:"INTEGER DEFAULT 0"`
	AwayConceded int `json:"awayConceded" column:"away_conceded" dbtype:"INTEGER DEFAULT 0"`

	ShotsOnTargetFor     int `json:"shotsOnTargetFor" column:"shots_on_target_for" dbtype:"INTEGER DEFAULT 0"`
	ShotsOnTargetAgainst int `json:"shotsOnTargetAgainst" column:"shots_on_target_against" dbtype:"INTEGER DEFAULT 0"`

	// Calculated averages, derived in BeforeSave
	HomeGoalsPerGame         float64 `json:"homeGoalsPerGame" column:"home_goals_per_game" dbtype:"REAL DEFAULT 0.0"`
	HomeGoalsConcededPerGame float64 `json:"homeGoalsConcededPerGame" column:"home_goals_conceded_per_game" dbtype:"REAL DEFAULT 0.0"`
	AwayGoalsPerGame         float64 `json:"awayGoalsPerGame" column:"away_goals_per_game" dbtype:"REAL DEFAULT 0.0"`
	AwayGoalsConcededPerGame float64 `json:"awayGoalsConcededPerGame" column:"away_goals_conceded_per_game" dbtype:"REAL DEFAULT 0.0"`

	// Form data (encoded as integers using quaternary system)
	Form     int `json:"form" column:"form" dbtype:"INTEGER DEFAULT 0"`
	HomeForm int `json:"homeForm" column:"home_form" dbtype:"INTEGER DEFAULT 0"`
	AwayForm int `json:"awayForm" column:"away_form" dbtype:"INTEGER DEFAULT 0"`

	// Form percentages, derived in BeforeSave
	FormPercentage     float64 `json:"formPercentage" column:"form_percentage" dbtype:"REAL DEFAULT 0.0"`
	HomeFormPercentage float64 `json:"homeFormPercentage" column:"home_form_percentage" dbtype:"REAL DEFAULT 0.0"`
	AwayFormPercentage float64 `json:"awayFormPercentage" column:"away_form_percentage" dbtype:"REAL DEFAULT 0.0"`

	Points int `json:"points" column:"points" dbtype:"INTEGER DEFAULT 0"`

	// Metadata
	CreatedAt time.Time `json:"createdAt" column:"created_at" dbtype:"DATETIME"`
	UpdatedAt time.Time `json:"updatedAt" column:"updated_at" dbtype:"DATETIME"`
}

/////////////////////////////////////////////////////////////////////////
////// Persistable Interface Implementation
/////////////////////////////////////////////////////////////////////////

// GetTableName returns the table name for team stats
func (ts *TeamStats) GetTableName() string {
	return "team_stats"
}

// GetPrimaryKey returns the compound primary key as a map
func (ts *TeamStats) GetPrimaryKey() map[string]any {
	return map[string]any{
		"team":   ts.Team,
		"league": ts.League,
		"season": ts.Season,
		"as_of":  ts.AsOf,
	}
}

// BeforeSave derives the per-game averages and form percentages
func (ts *TeamStats) BeforeSave() error {
	if ts.HomeGamesPlayed > 0 {
		ts.HomeGoalsPerGame = float64(ts.HomeGoals) / float64(ts.HomeGamesPlayed)
		ts.HomeGoalsConcededPerGame = float64(ts.HomeConceded) / float64(ts.HomeGamesPlayed)
	}
	if ts.AwayGamesPlayed > 0 {
		ts.AwayGoalsPerGame = float64(ts.AwayGoals) / float64(ts.AwayGamesPlayed)
		ts.AwayGoalsConcededPerGame = float64(ts.AwayConceded) / float64(ts.AwayGamesPlayed)
	}

	ts.FormPercentage = FormPercentage(ts.Form)
	ts.HomeFormPercentage = FormPercentage(ts.HomeForm)
	ts.AwayFormPercentage = FormPercentage(ts.AwayForm)

	now := time.Now().UTC()
	if ts.CreatedAt.IsZero() {
		ts.CreatedAt = now
	}
	ts.UpdatedAt = now
	return nil
}

/////////////////////////////////////////////////////////////////////////
////// Form Calculation Functions
/////////////////////////////////////////////////////////////////////////

// UpdateFormData prepends a result (win=3, draw=2, loss=1) to the rolling
// form window using quaternary encoding
func UpdateFormData(previousForm, result, window int) int {
	s := Quaternary(previousForm)
	s = fmt.Sprintf("%d%s", result, s)

	// Keep only the most recent results
	if len(s) > window {
		s = s[:window]
	}

	// Convert back to decimal for storage
	ret := 0
	multiplier := 1
	for i := len(s) - 1; i >= 0; i-- {
		digit := int(s[i] - '0')
		ret += digit * multiplier
		multiplier *= 4
	}
	return ret
}

// Quaternary converts decimal to quaternary (base-4) string
func Quaternary(n int) string {
	if n == 0 {
		return "0"
	}
	var sb strings.Builder
	var digits []byte
	for n > 0 {
		digits = append(digits, byte('0'+n%4))
		n = n / 4
	}
	for i := len(digits) - 1; i >= 0; i-- {
		sb.WriteByte(digits[i])
	}
	return sb.String()
}

// FormPercentage scores an encoded form window as a fraction of the maximum
// attainable points (win=3, draw=1, loss=0)
func FormPercentage(form int) float64 {
	if form == 0 {
		return 0.0
	}
	s := Quaternary(form)
	points := 0
	games := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '3':
			points += 3
		case '2':
			points += 1
		case '1':
			// loss scores nothing
		default:
			continue
		}
		games++
	}
	if games == 0 {
		return 0.0
	}
	return float64(points) / float64(games*3) * 100.0
}

/////////////////////////////////////////////////////////////////////////
////// Statistics Engine
/////////////////////////////////////////////////////////////////////////

// StatsEngine folds played matches into causal TeamStats snapshots. Each team
// is folded independently in date order; no state is shared across teams, so
// (league, season) partitions can run concurrently.
type StatsEngine struct {
	store   *Store
	matches *MatchStore
	cfg     *Config
}

// NewStatsEngine ensures the team_stats table exists and returns the engine
func NewStatsEngine(store *Store, matches *MatchStore, cfg *Config) (*StatsEngine, error) {
	if err := store.CreateTable(&TeamStats{}); err != nil {
		return nil, err
	}
	return &StatsEngine{store: store, matches: matches, cfg: cfg}, nil
}

// RecomputeAll wipes the snapshot table and rebuilds it from every played
// match in the store. Returns the number of snapshots written.
func (e *StatsEngine) RecomputeAll() (int, error) {
	if err := e.store.DeleteWhere(&TeamStats{}, ""); err != nil {
		return 0, err
	}
	return e.rebuild(time.Time{})
}

// UpdateIncremental refreshes snapshots affected by matches at or after the
// given time. Each team accumulator is seeded from its latest snapshot at or
// before `since` and newer matches are replayed, producing output identical
// to a full recompute.
func (e *StatsEngine) UpdateIncremental(since time.Time) (int, error) {
	return e.rebuild(since.UTC())
}

// rebuild folds every partition. A zero `since` means a full rebuild.
func (e *StatsEngine) rebuild(since time.Time) (int, error) {
	partitions, err := e.matches.Partitions()
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	results := make([]int, len(partitions))
	errs := make([]error, len(partitions))

	for i, part := range partitions {
		wg.Add(1)
		go func(i int, part Partition) {
			defer wg.Done()
			results[i], errs[i] = e.rebuildPartition(part.League, part.Season, since)
		}(i, part)
	}
	wg.Wait()

	written := 0
	for i := range partitions {
		if errs[i] != nil {
			return written, fmt.Errorf("stats rebuild failed for %s/%s: %w",
				partitions[i].League, partitions[i].Season, errs[i])
		}
		written += results[i]
	}

	logger.Info("Team statistics rebuilt", written, "snapshots across", len(partitions), "partitions")
	return written, nil
}

// rebuildPartition folds every team of one (league, season) partition
func (e *StatsEngine) rebuildPartition(league, season string, since time.Time) (int, error) {
	teams, err := e.matches.Teams(league, season)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, team := range teams {
		seed := &TeamStats{Team: team, League: league, Season: season}
		if !since.IsZero() {
			prior, err := e.SnapshotAsOf(team, league, season, since)
			if err != nil {
				return written, err
			}
			if prior != nil {
				seed = prior
				// Drop the seed row and everything after it; the replay
				// regenerates them from the seed state
				if err := e.store.DeleteWhere(&TeamStats{},
					"team = ? AND league = ? AND season = ? AND as_of >= ?",
					team, league, season, seed.AsOf); err != nil {
					return written, err
				}
			}
		}

		matches, err := e.matches.GetMatches(MatchFilter{
			League: league, Season: season, Team: team,
			DateFrom: seed.AsOf, OnlyPlayed: true,
		})
		if err != nil {
			return written, err
		}

		snapshots := foldTeam(seed, team, matches, e.cfg.FormWindow)
		persistables := make([]Persistable, len(snapshots))
		for i, s := range snapshots {
			persistables[i] = s
		}
		if err := e.store.BulkSave(persistables); err != nil {
			return written, err
		}
		written += len(snapshots)
	}

	return written, nil
}

// foldTeam replays a team's matches over a seed accumulator in date order.
// Before applying each match the pre-match state is emitted as the snapshot
// for that date, so a snapshot at date D never includes the match at D.
// A terminal snapshot one day after the last match resolves lookups for
// future fixtures against the full history.
func foldTeam(seed *TeamStats, team string, matches []*Match, formWindow int) []*TeamStats {
	acc := *seed
	acc.Team = team

	var snapshots []*TeamStats
	var lastApplied time.Time

	// The seed row was deleted before the replay. When there is nothing to
	// apply it must be restored as-is; otherwise the fold regenerates the
	// snapshot sequence from the seed state, exactly as a full recompute
	// would produce it.
	if !seed.AsOf.IsZero() && !hasPlayed(matches) {
		snap := acc
		snap.AsOf = seed.AsOf
		snapshots = append(snapshots, &snap)
	}

	for _, m := range matches {
		if !m.HasBeenPlayed() {
			continue
		}
		date := m.MatchDate.UTC()

		// One snapshot per date; a second same-day match keeps the first
		// pre-match emission so the strictly-before invariant holds
		if len(snapshots) == 0 || !snapshots[len(snapshots)-1].AsOf.Equal(date) {
			snap := acc
			snap.AsOf = date
			snapshots = append(snapshots, &snap)
		}

		applyMatch(&acc, m, m.HomeTeam == team, formWindow)
		lastApplied = date
	}

	if !lastApplied.IsZero() {
		terminal := acc
		terminal.AsOf = lastApplied.Add(24 * time.Hour)
		snapshots = append(snapshots, &terminal)
	}

	return snapshots
}

func hasPlayed(matches []*Match) bool {
	for _, m := range matches {
		if m.HasBeenPlayed() {
			return true
		}
	}
	return false
}

// applyMatch folds one played match into the accumulator
func applyMatch(acc *TeamStats, m *Match, home bool, formWindow int) {
	acc.GamesPlayed++

	goalsFor, goalsAgainst := m.HomeGoals, m.AwayGoals
	if !home {
		goalsFor, goalsAgainst = m.AwayGoals, m.HomeGoals
	}

	if m.HomeShotsOnTarget >= 0 && m.AwayShotsOnTarget >= 0 {
		if home {
			acc.ShotsOnTargetFor += m.HomeShotsOnTarget
			acc.ShotsOnTargetAgainst += m.AwayShotsOnTarget
		} else {
			acc.ShotsOnTargetFor += m.AwayShotsOnTarget
			acc.ShotsOnTargetAgainst += m.HomeShotsOnTarget
		}
	}

	var result int // quaternary digit: win=3, draw=2, loss=1
	switch {
	case goalsFor > goalsAgainst:
		result = 3
		acc.Points += 3
	case goalsFor == goalsAgainst:
		result = 2
		acc.Points += 1
	default:
		result = 1
	}

	acc.Form = UpdateFormData(acc.Form, result, formWindow)

	if home {
		acc.HomeGamesPlayed++
		acc.HomeGoals += goalsFor
		acc.HomeConceded += goalsAgainst
		acc.HomeForm = UpdateFormData(acc.HomeForm, result, formWindow)
		switch result {
		case 3:
			acc.HomeWins++
		case 2:
			acc.HomeDraws++
		default:
			acc.HomeLosses++
		}
	} else {
		acc.AwayGamesPlayed++
		acc.AwayGoals += goalsFor
		acc.AwayConceded += goalsAgainst
		acc.AwayForm = UpdateFormData(acc.AwayForm, result, formWindow)
		switch result {
		case 3:
			acc.AwayWins++
		case 2:
			acc.AwayDraws++
		default:
			acc.AwayLosses++
		}
	}
}

// SnapshotAsOf returns the latest snapshot for a team dated at or before the
// given time, or nil when the team has no history yet
func (e *StatsEngine) SnapshotAsOf(team, league, season string, date time.Time) (*TeamStats, error) {
	rows, err := e.store.FindWhere(&TeamStats{},
		"WHERE team = ? AND league = ? AND season = ? AND as_of <= ? ORDER BY as_of DESC LIMIT 1",
		team, league, season, date.UTC())
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].(*TeamStats), nil
}
