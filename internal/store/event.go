package store

import (
	"context"
	"fmt"

	"github.com/dnscp/dnscp/internal/model"
)

// placeholder appends the next "$N" positional argument to a query clause
// and advances argN, keeping the hand-written filter queries below in sync
// with the args slice they build alongside the SQL string.
func placeholder(clause string, argN *int) string {
	out := " " + fmt.Sprintf(clause, *argN)
	*argN++
	return out
}

// EventFilter narrows list_events (spec §4.1 "list_events(filter)").
type EventFilter struct {
	Types      []model.EventType
	Categories []model.Category
	Since      *int64 // unix seconds, nil = unbounded
	Limit      int
}

// InsertEvent persists an event that was marked Persist (spec §9 open
// question 4: not every event is durable — only ones the publisher flags).
func (s *Store) InsertEvent(ctx context.Context, tx DBTX, ev model.Event) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO events (id, type, category, severity, priority, source, data,
			correlation_id, trace_id, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		ev.ID, ev.Type, ev.Category, int(ev.Severity), ev.Priority, ev.Source, ev.Data,
		ev.CorrelationID, ev.TraceID, nullableOutcome(ev.Outcome), ev.CreatedAt,
	)
	if err != nil {
		return mapErr(err, "event", string(ev.Type))
	}
	return nil
}

// ListEvents returns persisted events matching filter, most recent first.
func (s *Store) ListEvents(ctx context.Context, tx DBTX, filter EventFilter) ([]model.Event, error) {
	query := `SELECT id, type, category, severity, priority, source, data, correlation_id,
		trace_id, outcome, created_at FROM events WHERE true`
	args := []any{}
	argN := 1

	if len(filter.Types) > 0 {
		query += placeholder("AND type = ANY($%d)", &argN)
		args = append(args, filter.Types)
	}
	if len(filter.Categories) > 0 {
		query += placeholder("AND category = ANY($%d)", &argN)
		args = append(args, filter.Categories)
	}
	if filter.Since != nil {
		query += placeholder("AND created_at >= to_timestamp($%d)", &argN)
		args = append(args, *filter.Since)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += placeholder("LIMIT $%d", &argN)
		args = append(args, filter.Limit)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "event", "")
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var ev model.Event
		var severity int
		var outcome *string
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Category, &severity, &ev.Priority,
			&ev.Source, &ev.Data, &ev.CorrelationID, &ev.TraceID, &outcome, &ev.CreatedAt); err != nil {
			return nil, mapErr(err, "event", "")
		}
		ev.Severity = model.Severity(severity)
		if outcome != nil {
			ev.Outcome = model.Outcome(*outcome)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// nullableOutcome converts an empty Outcome to a nil parameter so it's
// stored as SQL NULL rather than an empty string.
func nullableOutcome(o model.Outcome) *string {
	if o == "" {
		return nil
	}
	s := string(o)
	return &s
}
