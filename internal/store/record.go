package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dnscp/dnscp/internal/dnsvalidate"
	"github.com/dnscp/dnscp/internal/model"
)

// CreateRecord inserts a new record under its zone.
func (s *Store) CreateRecord(ctx context.Context, tx DBTX, r model.Record) (model.Record, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO records (zone_id, name, type, value, ttl, active, priority, weight, port)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, zone_id, name, type, value, ttl, active, priority, weight, port,
			created_at, updated_at`,
		r.ZoneID, r.Name, r.Type, r.Value, r.TTL, r.Active, r.Priority, r.Weight, r.Port,
	)
	out, err := scanRecord(row)
	if err != nil {
		return model.Record{}, mapErr(err, "record", r.Name)
	}
	return out, nil
}

// GetRecord fetches a record by ID.
func (s *Store) GetRecord(ctx context.Context, tx DBTX, id int64) (model.Record, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, zone_id, name, type, value, ttl, active, priority, weight, port,
			created_at, updated_at
		FROM records WHERE id = $1`, id)
	out, err := scanRecord(row)
	if err != nil {
		return model.Record{}, mapErr(err, "record", "")
	}
	return out, nil
}

// ListRecords returns every record in a zone, optionally restricted to
// active ones. Always ordered by (name, type) to match the renderer's
// expectations (spec §4.4).
func (s *Store) ListRecords(ctx context.Context, tx DBTX, zoneID int64, activeOnly bool) ([]model.Record, error) {
	query := `SELECT id, zone_id, name, type, value, ttl, active, priority, weight, port,
		created_at, updated_at FROM records WHERE zone_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY name, type`

	rows, err := tx.Query(ctx, query, zoneID)
	if err != nil {
		return nil, mapErr(err, "record", "")
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		r, err := scanRecordRow(rows)
		if err != nil {
			return nil, mapErr(err, "record", "")
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// UpdateRecord persists changes to an existing record, identified by ID.
func (s *Store) UpdateRecord(ctx context.Context, tx DBTX, r model.Record) (model.Record, error) {
	row := tx.QueryRow(ctx, `
		UPDATE records SET name = $2, type = $3, value = $4, ttl = $5, active = $6,
			priority = $7, weight = $8, port = $9, updated_at = now()
		WHERE id = $1
		RETURNING id, zone_id, name, type, value, ttl, active, priority, weight, port,
			created_at, updated_at`,
		r.ID, r.Name, r.Type, r.Value, r.TTL, r.Active, r.Priority, r.Weight, r.Port,
	)
	out, err := scanRecord(row)
	if err != nil {
		return model.Record{}, mapErr(err, "record", r.Name)
	}
	return out, nil
}

// DeleteRecord removes a record by ID.
func (s *Store) DeleteRecord(ctx context.Context, tx DBTX, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "record", "")
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "record", "")
	}
	return nil
}

// BulkUpsertRecords applies rows one at a time inside the caller's
// transaction, matching on the record's identity tuple, and reports per-row
// outcomes without aborting on a single bad row (spec §4.1 "bulk_upsert"). A
// row that fails §C2 validation is counted as Skipped with its reason
// recorded, never written. A row whose resubmitted values are identical to
// what's already stored is also counted as Skipped, not Updated, so a
// repeated bulk_upsert of the same input is a no-op (spec §8 round-trip law).
func (s *Store) BulkUpsertRecords(ctx context.Context, tx DBTX, zoneID int64, rows []model.Record) model.BulkOutcome {
	var out model.BulkOutcome
	for i, r := range rows {
		r.ZoneID = zoneID
		if err := dnsvalidate.ValidateRecord(r); err != nil {
			out.Skipped++
			out.Errors = append(out.Errors, model.BulkRowError{Row: i, Reason: err.Error()})
			continue
		}

		var inserted bool
		row := tx.QueryRow(ctx, `
			INSERT INTO records (zone_id, name, type, value, ttl, active, priority, weight, port)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (zone_id, name, type, value) DO UPDATE SET
				ttl = EXCLUDED.ttl, active = EXCLUDED.active, priority = EXCLUDED.priority,
				weight = EXCLUDED.weight, port = EXCLUDED.port, updated_at = now()
			WHERE records.ttl IS DISTINCT FROM EXCLUDED.ttl
				OR records.active IS DISTINCT FROM EXCLUDED.active
				OR records.priority IS DISTINCT FROM EXCLUDED.priority
				OR records.weight IS DISTINCT FROM EXCLUDED.weight
				OR records.port IS DISTINCT FROM EXCLUDED.port
			RETURNING (xmax = 0)`,
			r.ZoneID, r.Name, r.Type, r.Value, r.TTL, r.Active, r.Priority, r.Weight, r.Port,
		)
		if err := row.Scan(&inserted); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Conflict matched but WHERE excluded it: the stored row is
				// already identical to the incoming one.
				out.Skipped++
				continue
			}
			out.Skipped++
			out.Errors = append(out.Errors, model.BulkRowError{Row: i, Reason: err.Error()})
			continue
		}
		if inserted {
			out.Added++
		} else {
			out.Updated++
		}
	}
	return out
}

func scanRecord(row pgx.Row) (model.Record, error) {
	var r model.Record
	err := row.Scan(&r.ID, &r.ZoneID, &r.Name, &r.Type, &r.Value, &r.TTL, &r.Active,
		&r.Priority, &r.Weight, &r.Port, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func scanRecordRow(rows pgx.Rows) (model.Record, error) {
	var r model.Record
	err := rows.Scan(&r.ID, &r.ZoneID, &r.Name, &r.Type, &r.Value, &r.TTL, &r.Active,
		&r.Priority, &r.Weight, &r.Port, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}
