package pokopred

import (
	"fmt"
	"time"

	"github.com/DantesRevengeReloaded/pokopred/internal/logger"
)

// PredictionStore persists enhanced prediction records
type PredictionStore struct {
	store *Store
}

// NewPredictionStore ensures the enhanced_predictions table exists
func NewPredictionStore(store *Store) (*PredictionStore, error) {
	if err := store.CreateTable(&PredictionRecord{}); err != nil {
		return nil, err
	}
	return &PredictionStore{store: store}, nil
}

// validateRecord rejects records that cannot form a valid key
func validateRecord(r *PredictionRecord) *UpsertError {
	fail := func(reason string) *UpsertError {
		return &UpsertError{
			Table:  r.GetTableName(),
			Key:    fmt.Sprintf("%s/%s/%s", r.Model, r.GameDate.Format("2006-01-02"), r.HomeTeam),
			Reason: reason,
		}
	}
	if r.Model == "" {
		return fail("missing model")
	}
	if r.GameDate.IsZero() {
		return fail("missing game date")
	}
	if r.HomeTeam == "" {
		return fail("missing home team")
	}
	switch r.PredictedResultWithDraws {
	case "H", "D", "A":
	default:
		return fail(fmt.Sprintf("invalid predicted result %q", r.PredictedResultWithDraws))
	}
	return nil
}

// UpsertPredictions writes a batch of records, skipping and logging the
// malformed ones so one bad record never sinks the batch. Returns
// (successful, total, recordErrors).
func (ps *PredictionStore) UpsertPredictions(records []*PredictionRecord) (int, int, []error) {
	total := len(records)
	var recordErrors []error
	valid := make([]Persistable, 0, total)

	for _, r := range records {
		if uerr := validateRecord(r); uerr != nil {
			logger.Warn("Skipping malformed prediction record", uerr)
			recordErrors = append(recordErrors, uerr)
			continue
		}
		r.GameDate = truncateToDay(r.GameDate)
		valid = append(valid, r)
	}

	if err := ps.store.BulkSave(valid); err != nil {
		return 0, total, append(recordErrors, fmt.Errorf("prediction batch write failed: %w", err))
	}

	logger.Info("Stored predictions", len(valid), "of", total)
	return len(valid), total, recordErrors
}

// PredictionFilter narrows a GetPredictions query. Zero values mean "no
// constraint".
type PredictionFilter struct {
	Model     string
	League    string
	SessionID string
	DateFrom  time.Time
	DateTo    time.Time
	Limit     int
}

// GetPredictions returns records satisfying the filter, newest game first
func (ps *PredictionStore) GetPredictions(filter PredictionFilter) ([]*PredictionRecord, error) {
	var conditions []string
	var args []any

	if filter.Model != "" {
		conditions = append(conditions, "model = ?")
		args = append(args, filter.Model)
	}
	if filter.League != "" {
		conditions = append(conditions, "league = ?")
		args = append(args, filter.League)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if !filter.DateFrom.IsZero() {
		conditions = append(conditions, "game_date >= ?")
		args = append(args, truncateToDay(filter.DateFrom))
	}
	if !filter.DateTo.IsZero() {
		conditions = append(conditions, "game_date <= ?")
		args = append(args, truncateToDay(filter.DateTo))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = "WHERE " + conditions[0]
		for _, c := range conditions[1:] {
			clause += " AND " + c
		}
	}
	clause += " ORDER BY game_date DESC, model ASC, home_team ASC"
	if filter.Limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := ps.store.FindWhere(&PredictionRecord{}, clause, args...)
	if err != nil {
		return nil, err
	}

	records := make([]*PredictionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.(*PredictionRecord))
	}
	return records, nil
}
