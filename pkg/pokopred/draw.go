package pokopred

import (
	"time"

	"github.com/DantesRevengeReloaded/pokopred/internal/logger"
)

// Compile-time check to ensure PredictionRecord implements Persistable interface
var _ Persistable = (*PredictionRecord)(nil)

// PredictionRecord is one enhanced prediction with full conversion
// provenance. Keyed by (model, game_date, home_team); re-running a session
// over the same fixtures replaces the rows.
type PredictionRecord struct {
	// Compound primary key fields
	Model    string    `json:"model" column:"model" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	GameDate time.Time `json:"gameDate" column:"game_date" dbtype:"DATETIME NOT NULL" primary:"true" index:"true"`
	HomeTeam string    `json:"homeTeam" column:"home_team" dbtype:"TEXT NOT NULL" primary:"true"`

	AwayTeam string `json:"awayTeam" column:"away_team" dbtype:"TEXT"`
	League   string `json:"league" column:"league" dbtype:"TEXT" index:"true"`
	Season   string `json:"season" column:"season" dbtype:"TEXT" index:"true"`

	// Model output before conversion
	OriginalPrediction string  `json:"originalPrediction" column:"original_prediction" dbtype:"TEXT"`
	HAConfidence       float64 `json:"haConfidence" column:"ha_confidence" dbtype:"REAL DEFAULT -1.0"`
	DrawProbability    float64 `json:"drawProbability" column:"draw_probability" dbtype:"REAL DEFAULT -1.0"`

	// Conversion outcome and the thresholds that were in force
	PredictedResultWithDraws string  `json:"predictedResultWithDraws" column:"predicted_result_with_draws" dbtype:"TEXT"`
	ConversionApplied        bool    `json:"conversionApplied" column:"conversion_applied" dbtype:"INTEGER DEFAULT 0"`
	MaxModelConfidence       float64 `json:"maxModelConfidence" column:"max_model_confidence" dbtype:"REAL DEFAULT -1.0"`
	MinDrawProbability       float64 `json:"minDrawProbability" column:"min_draw_probability" dbtype:"REAL DEFAULT -1.0"`

	SessionID string `json:"sessionId" column:"session_id" dbtype:"TEXT" index:"true"`

	// Metadata
	CreatedAt time.Time `json:"createdAt" column:"created_at" dbtype:"DATETIME"`
	UpdatedAt time.Time `json:"updatedAt" column:"updated_at" dbtype:"DATETIME"`
}

// GetTableName returns the table name for enhanced predictions
func (pr *PredictionRecord) GetTableName() string {
	return "enhanced_predictions"
}

// GetPrimaryKey returns the compound primary key as a map
func (pr *PredictionRecord) GetPrimaryKey() map[string]any {
	return map[string]any{
		"model":     pr.Model,
		"game_date": pr.GameDate,
		"home_team": pr.HomeTeam,
	}
}

// BeforeSave stamps timestamps
func (pr *PredictionRecord) BeforeSave() error {
	now := time.Now().UTC()
	if pr.CreatedAt.IsZero() {
		pr.CreatedAt = now
	}
	pr.UpdatedAt = now
	return nil
}

// DrawConverter rewrites low-confidence home/away predictions to draws.
// A prediction converts exactly when both inclusive conditions hold:
// confidence at or below MaxModelConfidence and draw probability at or
// above MinDrawProbability.
type DrawConverter struct {
	MaxModelConfidence float64
	MinDrawProbability float64
}

// NewDrawConverter reads the thresholds from the run configuration
func NewDrawConverter(cfg *Config) *DrawConverter {
	return &DrawConverter{
		MaxModelConfidence: cfg.MaxModelConfidence,
		MinDrawProbability: cfg.MinDrawProbability,
	}
}

// Convert applies the draw rule to one ensemble output and assembles the
// audit record. The original label is always preserved alongside the final
// one, with the thresholds that were used.
func (dc *DrawConverter) Convert(model string, match *Match, pred *EnsemblePrediction, drawProbability float64, sessionID string) *PredictionRecord {
	record := &PredictionRecord{
		Model:    model,
		GameDate: truncateToDay(match.MatchDate),
		HomeTeam: match.HomeTeam,
		AwayTeam: match.AwayTeam,
		League:   match.League,
		Season:   match.Season,

		OriginalPrediction: pred.Label,
		HAConfidence:       pred.Confidence,
		DrawProbability:    drawProbability,

		PredictedResultWithDraws: pred.Label,
		MaxModelConfidence:       dc.MaxModelConfidence,
		MinDrawProbability:       dc.MinDrawProbability,

		SessionID: sessionID,
	}

	if pred.Confidence <= dc.MaxModelConfidence && drawProbability >= dc.MinDrawProbability {
		record.PredictedResultWithDraws = "D"
		record.ConversionApplied = true
		logger.Debug("Converted prediction to draw",
			match.Key(), "confidence", pred.Confidence, "drawProb", drawProbability)
	}

	return record
}

// truncateToDay reduces a timestamp to its UTC calendar date, the
// granularity of the prediction store key
func truncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
