package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dnscp/dnscp/internal/model"
)

// CreateZone inserts a new zone and returns the stored row.
func (s *Store) CreateZone(ctx context.Context, tx DBTX, z model.Zone) (model.Zone, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO zones (name, type, active, serial, refresh, retry, expire, minimum,
			admin_email, master_servers, forwarder_ips)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, name, type, active, serial, refresh, retry, expire, minimum,
			admin_email, master_servers, forwarder_ips, created_at, updated_at`,
		z.Name, z.Type, z.Active, z.Serial, z.Refresh, z.Retry, z.Expire, z.Minimum,
		z.Email, z.MasterServers, z.ForwarderIPs,
	)
	out, err := scanZone(row)
	if err != nil {
		return model.Zone{}, mapErr(err, "zone", z.Name)
	}
	return out, nil
}

// GetZone fetches a zone by name.
func (s *Store) GetZone(ctx context.Context, tx DBTX, name string) (model.Zone, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, name, type, active, serial, refresh, retry, expire, minimum,
			admin_email, master_servers, forwarder_ips, created_at, updated_at
		FROM zones WHERE name = $1`, name)
	out, err := scanZone(row)
	if err != nil {
		return model.Zone{}, mapErr(err, "zone", name)
	}
	return out, nil
}

// ListZones returns every zone, optionally restricted to active ones.
func (s *Store) ListZones(ctx context.Context, tx DBTX, activeOnly bool) ([]model.Zone, error) {
	query := `SELECT id, name, type, active, serial, refresh, retry, expire, minimum,
		admin_email, master_servers, forwarder_ips, created_at, updated_at FROM zones`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, mapErr(err, "zone", "")
	}
	defer rows.Close()

	var zones []model.Zone
	for rows.Next() {
		z, err := scanZoneRow(rows)
		if err != nil {
			return nil, mapErr(err, "zone", "")
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// UpdateZone persists changes to an existing zone, identified by ID.
func (s *Store) UpdateZone(ctx context.Context, tx DBTX, z model.Zone) (model.Zone, error) {
	row := tx.QueryRow(ctx, `
		UPDATE zones SET type = $2, active = $3, serial = $4, refresh = $5, retry = $6,
			expire = $7, minimum = $8, admin_email = $9, master_servers = $10,
			forwarder_ips = $11, updated_at = now()
		WHERE id = $1
		RETURNING id, name, type, active, serial, refresh, retry, expire, minimum,
			admin_email, master_servers, forwarder_ips, created_at, updated_at`,
		z.ID, z.Type, z.Active, z.Serial, z.Refresh, z.Retry, z.Expire, z.Minimum,
		z.Email, z.MasterServers, z.ForwarderIPs,
	)
	out, err := scanZone(row)
	if err != nil {
		return model.Zone{}, mapErr(err, "zone", z.Name)
	}
	return out, nil
}

// DeleteZone removes a zone by ID. The caller is responsible for rejecting
// deletes of zones that still own active records (spec §4.5 "detect
// inter-change conflicts").
func (s *Store) DeleteZone(ctx context.Context, tx DBTX, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM zones WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "zone", "")
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "zone", "")
	}
	return nil
}

func scanZone(row pgx.Row) (model.Zone, error) {
	var z model.Zone
	err := row.Scan(&z.ID, &z.Name, &z.Type, &z.Active, &z.Serial, &z.Refresh, &z.Retry,
		&z.Expire, &z.Minimum, &z.Email, &z.MasterServers, &z.ForwarderIPs,
		&z.CreatedAt, &z.UpdatedAt)
	return z, err
}

func scanZoneRow(rows pgx.Rows) (model.Zone, error) {
	var z model.Zone
	err := rows.Scan(&z.ID, &z.Name, &z.Type, &z.Active, &z.Serial, &z.Refresh, &z.Retry,
		&z.Expire, &z.Minimum, &z.Email, &z.MasterServers, &z.ForwarderIPs,
		&z.CreatedAt, &z.UpdatedAt)
	return z, err
}
