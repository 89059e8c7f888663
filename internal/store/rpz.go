package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dnscp/dnscp/internal/dnsvalidate"
	"github.com/dnscp/dnscp/internal/model"
)

// CreateRPZRule inserts a new rule.
func (s *Store) CreateRPZRule(ctx context.Context, tx DBTX, r model.RPZRule) (model.RPZRule, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO rpz_rules (rpz_zone, domain, action, redirect_target, source, description, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, rpz_zone, domain, action, redirect_target, source, description, active,
			created_at, updated_at`,
		r.RPZZone, r.Domain, r.Action, r.RedirectTo, r.Source, r.Description, r.Active,
	)
	out, err := scanRPZRule(row)
	if err != nil {
		return model.RPZRule{}, mapErr(err, "rpz_rule", r.Domain)
	}
	return out, nil
}

// ListRPZRules returns every rule in a zone, optionally restricted to active ones.
func (s *Store) ListRPZRules(ctx context.Context, tx DBTX, rpzZone string, activeOnly bool) ([]model.RPZRule, error) {
	query := `SELECT id, rpz_zone, domain, action, redirect_target, source, description, active,
		created_at, updated_at FROM rpz_rules WHERE rpz_zone = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY domain`

	rows, err := tx.Query(ctx, query, rpzZone)
	if err != nil {
		return nil, mapErr(err, "rpz_rule", "")
	}
	defer rows.Close()

	var out []model.RPZRule
	for rows.Next() {
		r, err := scanRPZRuleRow(rows)
		if err != nil {
			return nil, mapErr(err, "rpz_rule", "")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRPZRule persists changes to an existing rule, identified by ID.
func (s *Store) UpdateRPZRule(ctx context.Context, tx DBTX, r model.RPZRule) (model.RPZRule, error) {
	row := tx.QueryRow(ctx, `
		UPDATE rpz_rules SET domain = $2, action = $3, redirect_target = $4, source = $5,
			description = $6, active = $7, updated_at = now()
		WHERE id = $1
		RETURNING id, rpz_zone, domain, action, redirect_target, source, description, active,
			created_at, updated_at`,
		r.ID, r.Domain, r.Action, r.RedirectTo, r.Source, r.Description, r.Active,
	)
	out, err := scanRPZRule(row)
	if err != nil {
		return model.RPZRule{}, mapErr(err, "rpz_rule", r.Domain)
	}
	return out, nil
}

// DeleteRPZRule removes a rule by ID.
func (s *Store) DeleteRPZRule(ctx context.Context, tx DBTX, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM rpz_rules WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "rpz_rule", "")
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "rpz_rule", "")
	}
	return nil
}

// BulkUpsertRPZRules applies rows one at a time, matching on (rpz_zone,
// domain), and never aborts the whole batch on a single bad row (spec §4.7
// "bulk_upsert via store"). A row that fails §C2 validation is counted as
// Skipped with its reason recorded, never written. A row whose resubmitted
// values are identical to what's already stored is also counted as Skipped,
// not Updated, so a repeated bulk_upsert of the same input is a no-op (spec
// §8 round-trip law).
func (s *Store) BulkUpsertRPZRules(ctx context.Context, tx DBTX, rpzZone string, rows []model.RPZRule) model.BulkOutcome {
	var out model.BulkOutcome
	for i, r := range rows {
		r.RPZZone = rpzZone
		if err := dnsvalidate.ValidateRPZRule(r); err != nil {
			out.Skipped++
			out.Errors = append(out.Errors, model.BulkRowError{Row: i, Reason: err.Error()})
			continue
		}

		var inserted bool
		row := tx.QueryRow(ctx, `
			INSERT INTO rpz_rules (rpz_zone, domain, action, redirect_target, source, description, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (rpz_zone, domain) DO UPDATE SET
				action = EXCLUDED.action, redirect_target = EXCLUDED.redirect_target,
				source = EXCLUDED.source, description = EXCLUDED.description,
				active = EXCLUDED.active, updated_at = now()
			WHERE rpz_rules.action IS DISTINCT FROM EXCLUDED.action
				OR rpz_rules.redirect_target IS DISTINCT FROM EXCLUDED.redirect_target
				OR rpz_rules.source IS DISTINCT FROM EXCLUDED.source
				OR rpz_rules.description IS DISTINCT FROM EXCLUDED.description
				OR rpz_rules.active IS DISTINCT FROM EXCLUDED.active
			RETURNING (xmax = 0)`,
			r.RPZZone, r.Domain, r.Action, r.RedirectTo, r.Source, r.Description, r.Active,
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

// BulkDeleteRPZRules deactivates every rule in rpzZone whose source matches
// (e.g. a retired threat feed) and domain is not in keepDomains, used when a
// feed refresh drops entries from its upstream list.
func (s *Store) BulkDeleteRPZRules(ctx context.Context, tx DBTX, rpzZone, source string, keepDomains []string) (int, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE rpz_rules SET active = false, updated_at = now()
		WHERE rpz_zone = $1 AND source = $2 AND active AND NOT (domain = ANY($3))`,
		rpzZone, source, keepDomains,
	)
	if err != nil {
		return 0, mapErr(err, "rpz_rule", "")
	}
	return int(tag.RowsAffected()), nil
}

func scanRPZRule(row pgx.Row) (model.RPZRule, error) {
	var r model.RPZRule
	err := row.Scan(&r.ID, &r.RPZZone, &r.Domain, &r.Action, &r.RedirectTo, &r.Source,
		&r.Description, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func scanRPZRuleRow(rows pgx.Rows) (model.RPZRule, error) {
	var r model.RPZRule
	err := rows.Scan(&r.ID, &r.RPZZone, &r.Domain, &r.Action, &r.RedirectTo, &r.Source,
		&r.Description, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}
