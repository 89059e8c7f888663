package store

import (
	"context"

	"github.com/dnscp/dnscp/internal/model"
)

// RecordHealthCheck inserts one probe result. ForwarderHealth rows are
// insert-only (spec §3 "ForwarderHealth").
func (s *Store) RecordHealthCheck(ctx context.Context, tx DBTX, h model.ForwarderHealth) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO forwarder_health (forwarder_id, server_ip, status, response_time_ms,
			error_message, checked_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		h.ForwarderID, h.ServerIP, h.Status, h.ResponseTimeMs, h.ErrorMessage,
	)
	if err != nil {
		return mapErr(err, "forwarder_health", h.ServerIP)
	}
	return nil
}

// ListHealthSince returns up to limit of a forwarder's most recent probe
// results, most recent first — the window the health tracker's
// aggregation (spec §4.6) classifies over. It applies no time bound.
func (s *Store) ListHealthSince(ctx context.Context, tx DBTX, forwarderID int64, limit int) ([]model.ForwarderHealth, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, forwarder_id, server_ip, status, response_time_ms, error_message, checked_at
		FROM forwarder_health WHERE forwarder_id = $1
		ORDER BY checked_at DESC LIMIT $2`, forwarderID, limit)
	if err != nil {
		return nil, mapErr(err, "forwarder_health", "")
	}
	defer rows.Close()

	var out []model.ForwarderHealth
	for rows.Next() {
		var h model.ForwarderHealth
		if err := rows.Scan(&h.ID, &h.ForwarderID, &h.ServerIP, &h.Status,
			&h.ResponseTimeMs, &h.ErrorMessage, &h.CheckedAt); err != nil {
			return nil, mapErr(err, "forwarder_health", "")
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
