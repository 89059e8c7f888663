package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/dnscp/dnscp/internal/model"
)

// CreateForwarder inserts a new conditional forwarder. Servers is stored as
// JSONB — it has no natural Postgres array-of-composite representation
// without a declared composite type, so it round-trips through encoding/json
// like the teacher's Labels/Annotations columns.
func (s *Store) CreateForwarder(ctx context.Context, tx DBTX, f model.Forwarder) (model.Forwarder, error) {
	servers, err := json.Marshal(f.Servers)
	if err != nil {
		return model.Forwarder{}, err
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO forwarders (name, domains, forwarder_type, servers, health_check_enabled, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, domains, forwarder_type, servers, health_check_enabled, active,
			created_at, updated_at`,
		f.Name, f.Domains, f.Type, servers, f.HealthCheckEnabled, f.Active,
	)
	out, err := scanForwarder(row)
	if err != nil {
		return model.Forwarder{}, mapErr(err, "forwarder", f.Name)
	}
	return out, nil
}

// GetForwarder fetches a forwarder by ID.
func (s *Store) GetForwarder(ctx context.Context, tx DBTX, id int64) (model.Forwarder, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, name, domains, forwarder_type, servers, health_check_enabled, active,
			created_at, updated_at
		FROM forwarders WHERE id = $1`, id)
	out, err := scanForwarder(row)
	if err != nil {
		return model.Forwarder{}, mapErr(err, "forwarder", "")
	}
	return out, nil
}

// ListForwarders returns every forwarder, optionally restricted to active ones.
func (s *Store) ListForwarders(ctx context.Context, tx DBTX, activeOnly bool) ([]model.Forwarder, error) {
	query := `SELECT id, name, domains, forwarder_type, servers, health_check_enabled, active,
		created_at, updated_at FROM forwarders`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, mapErr(err, "forwarder", "")
	}
	defer rows.Close()

	var out []model.Forwarder
	for rows.Next() {
		f, err := scanForwarderRow(rows)
		if err != nil {
			return nil, mapErr(err, "forwarder", "")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateForwarder persists changes to an existing forwarder, identified by ID.
func (s *Store) UpdateForwarder(ctx context.Context, tx DBTX, f model.Forwarder) (model.Forwarder, error) {
	servers, err := json.Marshal(f.Servers)
	if err != nil {
		return model.Forwarder{}, err
	}
	row := tx.QueryRow(ctx, `
		UPDATE forwarders SET name = $2, domains = $3, forwarder_type = $4, servers = $5,
			health_check_enabled = $6, active = $7, updated_at = now()
		WHERE id = $1
		RETURNING id, name, domains, forwarder_type, servers, health_check_enabled, active,
			created_at, updated_at`,
		f.ID, f.Name, f.Domains, f.Type, servers, f.HealthCheckEnabled, f.Active,
	)
	out, err := scanForwarder(row)
	if err != nil {
		return model.Forwarder{}, mapErr(err, "forwarder", f.Name)
	}
	return out, nil
}

// DeleteForwarder removes a forwarder by ID.
func (s *Store) DeleteForwarder(ctx context.Context, tx DBTX, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM forwarders WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "forwarder", "")
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "forwarder", "")
	}
	return nil
}

func scanForwarder(row pgx.Row) (model.Forwarder, error) {
	var f model.Forwarder
	var servers []byte
	err := row.Scan(&f.ID, &f.Name, &f.Domains, &f.Type, &servers, &f.HealthCheckEnabled,
		&f.Active, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(servers, &f.Servers); err != nil {
		return f, err
	}
	return f, nil
}

func scanForwarderRow(rows pgx.Rows) (model.Forwarder, error) {
	var f model.Forwarder
	var servers []byte
	err := rows.Scan(&f.ID, &f.Name, &f.Domains, &f.Type, &servers, &f.HealthCheckEnabled,
		&f.Active, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(servers, &f.Servers); err != nil {
		return f, err
	}
	return f, nil
}
