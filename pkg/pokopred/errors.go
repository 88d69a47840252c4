package pokopred

import (
	"fmt"
	"strings"
)

// IngestionError reports a single malformed raw match row. Ingestion of the
// remaining rows in the batch continues; the error carries enough of the
// natural key to locate the offending record.
type IngestionError struct {
	League   string
	Season   string
	HomeTeam string
	AwayTeam string
	Reason   string
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion: %s/%s %s vs %s: %s",
		e.League, e.Season, e.HomeTeam, e.AwayTeam, e.Reason)
}

// InsufficientDataError is fatal to a training run: fewer labelled rows were
// available than the configured minimum.
type InsufficientDataError struct {
	Rows     int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("training: %d labelled rows available, %d required", e.Rows, e.Required)
}

// EnsembleUnavailableError means no member model trained successfully, so the
// ensemble refuses to produce predictions.
type EnsembleUnavailableError struct {
	Failures []string
}

func (e *EnsembleUnavailableError) Error() string {
	if len(e.Failures) == 0 {
		return "ensemble: no trained members"
	}
	return fmt.Sprintf("ensemble: no trained members (%s)", strings.Join(e.Failures, "; "))
}

// ClassImbalanceWarning is non-fatal: one outcome class has near-zero
// representation in the training rows. It is logged, never raised.
type ClassImbalanceWarning struct {
	Label string
	Count int
	Total int
}

func (w *ClassImbalanceWarning) Error() string {
	return fmt.Sprintf("training: class %q has %d of %d rows", w.Label, w.Count, w.Total)
}

// UpsertError reports a single record that could not be written during a
// batched upsert. The batch continues; counts are reported to the caller.
type UpsertError struct {
	Table  string
	Key    string
	Reason string
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert %s [%s]: %s", e.Table, e.Key, e.Reason)
}
