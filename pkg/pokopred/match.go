package pokopred

import (
	"fmt"
	"time"
)

// Compile-time check to ensure Match implements Persistable interface
var _ Persistable = (*Match)(nil)

// Match represents a raw football match row with database persistence annotations.
// Numeric fields default to -1 to distinguish "unknown" from a valid zero.
type Match struct {
	// Natural key
	League    string    `json:"league" column:"league" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	Season    string    `json:"season" column:"season" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	MatchDate time.Time `json:"matchDate" column:"match_date" dbtype:"DATETIME NOT NULL" primary:"true" index:"true"`
	HomeTeam  string    `json:"homeTeam" column:"home_team" dbtype:"TEXT NOT NULL" primary:"true"`
	AwayTeam  string    `json:"awayTeam" column:"away_team" dbtype:"TEXT NOT NULL" primary:"true"`

	Status string `json:"status" column:"status" dbtype:"TEXT"` // "finished", "scheduled", "in_progress"

	// Final score
	HomeGoals int `json:"homeGoals" column:"home_goals" dbtype:"INTEGER DEFAULT -1"`
	AwayGoals int `json:"awayGoals" column:"away_goals" dbtype:"INTEGER DEFAULT -1"`

	// Action
	HomeShotsOnTarget int `json:"homeShotsOnTarget,omitempty" column:"home_shots_on_target" dbtype:"INTEGER DEFAULT -1"`
	AwayShotsOnTarget int `json:"awayShotsOnTarget,omitempty" column:"away_shots_on_target" dbtype:"INTEGER DEFAULT -1"`

	// Average bookmaker odds (from football-data.co.uk)
	AvgHomeOdds float64 `json:"avgHomeOdds,omitempty" column:"avg_home_odds" dbtype:"REAL DEFAULT -1.0"`
	AvgDrawOdds float64 `json:"avgDrawOdds,omitempty" column:"avg_draw_odds" dbtype:"REAL DEFAULT -1.0"`
	AvgAwayOdds float64 `json:"avgAwayOdds,omitempty" column:"avg_away_odds" dbtype:"REAL DEFAULT -1.0"`

	// Metadata
	CreatedAt time.Time `json:"createdAt" column:"created_at" dbtype:"DATETIME"`
	UpdatedAt time.Time `json:"updatedAt" column:"updated_at" dbtype:"DATETIME"`
}

// NewMatch creates a new Match with default values for numeric fields
func NewMatch(league, season string, date time.Time, home, away string) *Match {
	return &Match{
		League:            league,
		Season:            season,
		MatchDate:         date.UTC(),
		HomeTeam:          home,
		AwayTeam:          away,
		HomeGoals:         -1,
		AwayGoals:         -1,
		HomeShotsOnTarget: -1,
		AwayShotsOnTarget: -1,
		AvgHomeOdds:       -1.0,
		AvgDrawOdds:       -1.0,
		AvgAwayOdds:       -1.0,
	}
}

/////////////////////////////////////////////////////////////////////////
////// Persistable Interface Implementation
/////////////////////////////////////////////////////////////////////////

// GetTableName returns the table name for matches
func (m *Match) GetTableName() string {
	return "match"
}

// GetPrimaryKey returns the natural key as a map
func (m *Match) GetPrimaryKey() map[string]any {
	return map[string]any{
		"league":     m.League,
		"season":     m.Season,
		"match_date": m.MatchDate,
		"home_team":  m.HomeTeam,
		"away_team":  m.AwayTeam,
	}
}

// BeforeSave derives status and stamps timestamps
func (m *Match) BeforeSave() error {
	m.deriveStatus()
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	return nil
}

// deriveStatus sets a simple status based on the match data
func (m *Match) deriveStatus() {
	if m.HasBeenPlayed() {
		m.Status = "finished"
	} else if m.MatchDate.Before(time.Now()) {
		m.Status = "in_progress"
	} else {
		m.Status = "scheduled"
	}
}

/////////////////////////////////////////////////////////////////////////
////// Status Query Methods
/////////////////////////////////////////////////////////////////////////

// HasBeenPlayed determines if the match has a final score
func (m *Match) HasBeenPlayed() bool {
	return m.HomeGoals >= 0 && m.AwayGoals >= 0
}

// Result returns "H", "D" or "A" for a played match, empty string otherwise
func (m *Match) Result() string {
	if !m.HasBeenPlayed() {
		return ""
	}
	switch {
	case m.HomeGoals > m.AwayGoals:
		return "H"
	case m.HomeGoals < m.AwayGoals:
		return "A"
	default:
		return "D"
	}
}

// Key returns a human readable rendition of the natural key for log lines
func (m *Match) Key() string {
	return fmt.Sprintf("%s/%s %s %s vs %s",
		m.League, m.Season, m.MatchDate.Format("2006-01-02"), m.HomeTeam, m.AwayTeam)
}

// Validate checks the row is ingestible. A nil return means the row is valid.
// A finished match must carry both goals; a scheduled one must carry neither.
func (m *Match) Validate() *IngestionError {
	fail := func(reason string) *IngestionError {
		return &IngestionError{
			League:   m.League,
			Season:   m.Season,
			HomeTeam: m.HomeTeam,
			AwayTeam: m.AwayTeam,
			Reason:   reason,
		}
	}
	if m.League == "" {
		return fail("missing league")
	}
	if _, err := ParseSeason(m.Season); err != nil {
		return fail(err.Error())
	}
	if m.MatchDate.IsZero() {
		return fail("missing match date")
	}
	if m.HomeTeam == "" || m.AwayTeam == "" {
		return fail("missing team name")
	}
	if m.HomeTeam == m.AwayTeam {
		return fail("home and away teams are the same")
	}
	if (m.HomeGoals >= 0) != (m.AwayGoals >= 0) {
		return fail("partial score")
	}
	return nil
}
