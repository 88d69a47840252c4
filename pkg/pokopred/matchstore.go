package pokopred

import (
	"fmt"
	"sort"
	"time"

	"github.com/DantesRevengeReloaded/pokopred/internal/logger"
)

// MatchStore is the raw match persistence layer. Rows are keyed by the
// natural key (league, season, date, home, away); re-ingesting a row
// replaces it.
type MatchStore struct {
	store *Store
}

// NewMatchStore ensures the match table exists and returns the store
func NewMatchStore(store *Store) (*MatchStore, error) {
	if err := store.CreateTable(&Match{}); err != nil {
		return nil, err
	}
	return &MatchStore{store: store}, nil
}

// UpsertMatches validates and writes a batch of raw match rows. Malformed
// rows are skipped and reported; valid rows are written regardless. Returns
// (saved, total, rowErrors).
func (ms *MatchStore) UpsertMatches(matches []*Match) (int, int, []error) {
	total := len(matches)
	var rowErrors []error
	valid := make([]Persistable, 0, total)

	for _, m := range matches {
		if ierr := m.Validate(); ierr != nil {
			logger.Warn("Skipping malformed match row", ierr)
			rowErrors = append(rowErrors, ierr)
			continue
		}
		m.MatchDate = m.MatchDate.UTC()
		valid = append(valid, m)
	}

	if err := ms.store.BulkSave(valid); err != nil {
		// The transaction failed as a whole, nothing was written
		return 0, total, append(rowErrors, fmt.Errorf("match batch write failed: %w", err))
	}

	logger.Info("Upserted matches", len(valid), "of", total)
	return len(valid), total, rowErrors
}

// Partition identifies a disjoint (league, season) slice of the match table
type Partition struct {
	League string
	Season string
}

// Partitions returns the distinct (league, season) pairs present in the store
func (ms *MatchStore) Partitions() ([]Partition, error) {
	rows, err := ms.store.DB().Query("SELECT DISTINCT league, season FROM match ORDER BY league, season")
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	defer rows.Close()

	var parts []Partition
	for rows.Next() {
		var p Partition
		if err := rows.Scan(&p.League, &p.Season); err != nil {
			return nil, fmt.Errorf("failed to scan partition: %w", err)
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// Teams returns the distinct team names appearing in played matches of a
// partition, sorted for deterministic iteration
func (ms *MatchStore) Teams(league, season string) ([]string, error) {
	query := `SELECT home_team FROM match WHERE league = ? AND season = ? AND home_goals >= 0
		UNION SELECT away_team FROM match WHERE league = ? AND season = ? AND away_goals >= 0
		ORDER BY 1`
	rows, err := ms.store.DB().Query(query, league, season, league, season)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// MatchFilter narrows a GetMatches query. Zero values mean "no constraint".
type MatchFilter struct {
	League     string
	Season     string
	Team       string // matches where the team played home or away
	DateFrom   time.Time
	DateTo     time.Time
	OnlyPlayed bool
}

// GetMatches returns matches satisfying the filter, ordered by date ascending
func (ms *MatchStore) GetMatches(filter MatchFilter) ([]*Match, error) {
	var conditions []string
	var args []any

	if filter.League != "" {
		conditions = append(conditions, "league = ?")
		args = append(args, filter.League)
	}
	if filter.Season != "" {
		season, err := ParseSeason(filter.Season)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, "season = ?")
		args = append(args, season)
	}
	if filter.Team != "" {
		conditions = append(conditions, "(home_team = ? OR away_team = ?)")
		args = append(args, filter.Team, filter.Team)
	}
	if !filter.DateFrom.IsZero() {
		conditions = append(conditions, "match_date >= ?")
		args = append(args, filter.DateFrom.UTC())
	}
	if !filter.DateTo.IsZero() {
		conditions = append(conditions, "match_date <= ?")
		args = append(args, filter.DateTo.UTC())
	}
	if filter.OnlyPlayed {
		conditions = append(conditions, "home_goals >= 0 AND away_goals >= 0")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = "WHERE " + conditions[0]
		for _, c := range conditions[1:] {
			clause += " AND " + c
		}
	}
	clause += " ORDER BY match_date ASC"

	rows, err := ms.store.FindWhere(&Match{}, clause, args...)
	if err != nil {
		return nil, err
	}

	matches := make([]*Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, row.(*Match))
	}

	// Stable tiebreak for same-day fixtures so downstream folds are deterministic
	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].MatchDate.Equal(matches[j].MatchDate) {
			return matches[i].MatchDate.Before(matches[j].MatchDate)
		}
		if matches[i].HomeTeam != matches[j].HomeTeam {
			return matches[i].HomeTeam < matches[j].HomeTeam
		}
		return matches[i].AwayTeam < matches[j].AwayTeam
	})

	return matches, nil
}
