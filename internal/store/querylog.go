package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dnscp/dnscp/internal/model"
)

// RecordQueryLogBatch inserts a batch of parsed query log rows in a single
// round trip via pgx's COPY protocol (spec §4.1 "record_query_log_batch").
func (s *Store) RecordQueryLogBatch(ctx context.Context, tx pgx.Tx, rows []model.QueryLogRow) (int64, error) {
	source := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		r := rows[i]
		return []any{
			r.Timestamp, r.ClientIP, r.ClientPort, r.QueryName, r.QueryType,
			r.ResponseCode, r.Blocked, r.RPZZone, r.RPZAction, r.ResponseTimeMs, r.CacheHit,
		}, nil
	})
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"query_log"}, []string{
		"timestamp", "client_ip", "client_port", "query_name", "query_type",
		"response_code", "blocked", "rpz_zone", "rpz_action", "response_time_ms", "cache_hit",
	}, source)
	if err != nil {
		return 0, mapErr(err, "query_log", "")
	}
	return n, nil
}
