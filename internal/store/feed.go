package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dnscp/dnscp/internal/model"
)

// CreateFeed registers a new threat feed.
func (s *Store) CreateFeed(ctx context.Context, tx DBTX, f model.ThreatFeed) (model.ThreatFeed, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO threat_feeds (name, url, feed_type, format, update_frequency,
			last_update_status, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, name, url, feed_type, format, update_frequency, last_update_at,
			last_update_status, rules_count, active`,
		f.Name, f.URL, f.FeedType, f.Format, f.UpdateFrequency, model.FeedStatusNever, f.Active,
	)
	out, err := scanFeed(row)
	if err != nil {
		return model.ThreatFeed{}, mapErr(err, "threat_feed", f.Name)
	}
	return out, nil
}

// ListFeeds returns every threat feed, optionally restricted to active ones.
func (s *Store) ListFeeds(ctx context.Context, tx DBTX, activeOnly bool) ([]model.ThreatFeed, error) {
	query := `SELECT id, name, url, feed_type, format, update_frequency, last_update_at,
		last_update_status, rules_count, active FROM threat_feeds`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, mapErr(err, "threat_feed", "")
	}
	defer rows.Close()

	var out []model.ThreatFeed
	for rows.Next() {
		f, err := scanFeedRow(rows)
		if err != nil {
			return nil, mapErr(err, "threat_feed", "")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateFeedStatus records the outcome of a refresh attempt (spec §4.7).
func (s *Store) UpdateFeedStatus(ctx context.Context, tx DBTX, id int64, status model.FeedStatus, rulesCount int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE threat_feeds SET last_update_at = now(), last_update_status = $2, rules_count = $3
		WHERE id = $1`, id, status, rulesCount)
	if err != nil {
		return mapErr(err, "threat_feed", "")
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "threat_feed", "")
	}
	return nil
}

// DeleteFeed removes a threat feed by ID.
func (s *Store) DeleteFeed(ctx context.Context, tx DBTX, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM threat_feeds WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "threat_feed", "")
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "threat_feed", "")
	}
	return nil
}

func scanFeed(row pgx.Row) (model.ThreatFeed, error) {
	var f model.ThreatFeed
	err := row.Scan(&f.ID, &f.Name, &f.URL, &f.FeedType, &f.Format, &f.UpdateFrequency,
		&f.LastUpdateAt, &f.LastUpdateStatus, &f.RulesCount, &f.Active)
	return f, err
}

func scanFeedRow(rows pgx.Rows) (model.ThreatFeed, error) {
	var f model.ThreatFeed
	err := rows.Scan(&f.ID, &f.Name, &f.URL, &f.FeedType, &f.Format, &f.UpdateFrequency,
		&f.LastUpdateAt, &f.LastUpdateStatus, &f.RulesCount, &f.Active)
	return f, err
}
