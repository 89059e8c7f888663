// Package feed is the RPZ/Threat-Feed Pipeline (C7, spec §4.7): periodic
// fetch, format-specific parsing, diffing against existing rules, and
// bulk_upsert/bulk_delete through the store, followed by a request to the
// Projection Engine to re-render the affected RPZ zone. Manual bulk import
// shares the same parsers. Fetch timeout handling follows the teacher's
// plain net/http-with-context idiom; no retry library is warranted here
// since a failed fetch is simply retried on the next scheduled tick.
package feed

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.yaml.in/yaml/v2"

	"github.com/dnscp/dnscp/internal/apperrors"
	"github.com/dnscp/dnscp/internal/model"
	"github.com/dnscp/dnscp/internal/store"
	"github.com/dnscp/dnscp/internal/telemetry"
)

// Rerenderer is the subset of the Projection Engine the pipeline needs:
// requesting a re-render of the RPZ zones touched by a feed refresh or bulk
// import (spec §4.7 "request §C5 to render the affected RPZ zones").
type Rerenderer interface {
	RerenderRPZ(ctx context.Context, rpzZone string) error
}

// Pipeline fetches, parses, and diffs threat feeds into RPZ rules.
type Pipeline struct {
	store      *store.Store
	rerender   Rerenderer
	logger     *slog.Logger
	httpClient *http.Client
	rpzZone    string // the RPZ zone threat-feed rules are written into
}

// New creates a Pipeline. fetchTimeout bounds a single feed fetch.
func New(s *store.Store, rerender Rerenderer, logger *slog.Logger, fetchTimeout time.Duration, rpzZone string) *Pipeline {
	return &Pipeline{
		store:      s,
		rerender:   rerender,
		logger:     logger,
		httpClient: &http.Client{Timeout: fetchTimeout},
		rpzZone:    rpzZone,
	}
}

// RefreshAll refreshes every active threat feed whose update_frequency has
// elapsed since its last update (driven by the scheduler's
// feed_refresh_tick).
func (p *Pipeline) RefreshAll(ctx context.Context) error {
	feeds, err := p.store.ListFeeds(ctx, p.store.Pool(), true)
	if err != nil {
		return err
	}
	for _, f := range feeds {
		if f.LastUpdateAt != nil && time.Since(*f.LastUpdateAt) < time.Duration(f.UpdateFrequency)*time.Second {
			continue
		}
		if err := p.RefreshOne(ctx, f); err != nil {
			p.logger.Error("feed refresh failed", "feed", f.Name, "error", err)
		}
	}
	return nil
}

// RefreshOne fetches, parses, and diffs a single feed (spec §4.7).
func (p *Pipeline) RefreshOne(ctx context.Context, f model.ThreatFeed) error {
	domains, err := p.fetch(ctx, f)
	outcome := "ok"
	if err != nil {
		outcome = "failed"
		telemetry.FeedRefreshTotal.WithLabelValues(f.Name, outcome).Inc()
		_ = p.store.UpdateFeedStatus(context.Background(), p.store.Pool(), f.ID, model.FeedStatusFailed, f.RulesCount)
		return apperrors.Wrap(apperrors.KindValidation, fmt.Sprintf("fetching feed %s", f.Name), err)
	}

	source := model.ThreatFeedSource(f.Name)
	rules := make([]model.RPZRule, 0, len(domains))
	for _, d := range domains {
		rules = append(rules, model.RPZRule{
			RPZZone: p.rpzZone,
			Domain:  d,
			Action:  model.RPZBlock,
			Source:  source,
			Active:  true,
		})
	}

	var outcomeResult model.BulkOutcome
	var removed int
	txErr := p.store.WithTx(ctx, func(tx pgx.Tx) error {
		outcomeResult = p.store.BulkUpsertRPZRules(ctx, tx, p.rpzZone, rules)
		removed, err = p.store.BulkDeleteRPZRules(ctx, tx, p.rpzZone, source, domains)
		return err
	})
	if txErr != nil {
		outcome = "partial"
		telemetry.FeedRefreshTotal.WithLabelValues(f.Name, outcome).Inc()
		_ = p.store.UpdateFeedStatus(context.Background(), p.store.Pool(), f.ID, model.FeedStatusPartial, f.RulesCount)
		return txErr
	}

	status := model.FeedStatusOK
	if len(outcomeResult.Errors) > 0 {
		status = model.FeedStatusPartial
		outcome = "partial"
	}
	telemetry.FeedRefreshTotal.WithLabelValues(f.Name, outcome).Inc()

	if err := p.store.UpdateFeedStatus(ctx, p.store.Pool(), f.ID, status, len(domains)); err != nil {
		return err
	}

	p.logger.Info("feed refreshed", "feed", f.Name, "added", outcomeResult.Added,
		"updated", outcomeResult.Updated, "removed", removed, "skipped", outcomeResult.Skipped)

	return p.rerender.RerenderRPZ(ctx, p.rpzZone)
}

func (p *Pipeline) fetch(ctx context.Context, f model.ThreatFeed) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", f.Name, resp.StatusCode)
	}
	return ParseFeed(resp.Body, f.Format)
}

// ParseFeed normalises a feed body of the given format into a flat list of
// domains, tolerant of blank lines and comments (spec §4.7 "parse
// according to format").
func ParseFeed(r io.Reader, format model.FeedFormat) ([]string, error) {
	switch format {
	case model.FeedFormatDomains:
		return parseLines(r, false)
	case model.FeedFormatHosts:
		return parseLines(r, true)
	case model.FeedFormatJSON:
		return parseJSON(r)
	case model.FeedFormatCSV:
		return parseCSV(r)
	case model.FeedFormatYAML:
		return parseYAML(r)
	default:
		return nil, fmt.Errorf("unknown feed format %q", format)
	}
}

// parseLines handles both plain domain-per-line and hosts-file formats
// ("0.0.0.0 domain" / "127.0.0.1 domain"), skipping blanks and # comments.
func parseLines(r io.Reader, hostsFormat bool) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if hostsFormat {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			out = append(out, fields[1])
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}

// parseJSON accepts either a flat array of domain strings or an array of
// {"domain": "..."} objects (spec §4.7 "JSON (array of strings or objects)").
func parseJSON(r io.Reader) ([]string, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}
	var out []string
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Domain string `json:"domain"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.Domain != "" {
			out = append(out, obj.Domain)
		}
	}
	return out, nil
}

// parseCSV takes the first column of every row as the domain.
func parseCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	var out []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		if len(rec) == 0 {
			continue
		}
		domain := strings.TrimSpace(rec[0])
		if domain == "" || strings.HasPrefix(domain, "#") {
			continue
		}
		out = append(out, domain)
	}
	return out, nil
}

// yamlManifest is the bootstrap document shape accepted alongside a bare
// list: a top-level "domains:" key, or entries with their own per-domain
// "domain:" field so a manifest can be hand-annotated.
type yamlManifest struct {
	Domains []string `yaml:"domains"`
	Entries []struct {
		Domain string `yaml:"domain"`
	} `yaml:"entries"`
}

// parseYAML accepts a bare YAML list of domain strings or a manifest with
// "domains:"/"entries:" keys (spec §4.7 YAML bulk-import/bootstrap format).
func parseYAML(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var flat []string
	if err := yaml.Unmarshal(data, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	var manifest yamlManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing yaml feed: %w", err)
	}
	out := append([]string{}, manifest.Domains...)
	for _, e := range manifest.Entries {
		if e.Domain != "" {
			out = append(out, e.Domain)
		}
	}
	return out, nil
}

// BulkImport parses text in the given format and upserts every valid domain
// as a bulk_import block rule, tolerating per-row errors (spec §4.7
// "Manual bulk import").
func (p *Pipeline) BulkImport(ctx context.Context, rpzZone string, r io.Reader, format model.FeedFormat) (model.BulkOutcome, error) {
	domains, err := ParseFeed(r, format)
	if err != nil {
		return model.BulkOutcome{}, apperrors.Wrap(apperrors.KindValidation, "parsing bulk import", err)
	}

	rules := make([]model.RPZRule, 0, len(domains))
	for _, d := range domains {
		rules = append(rules, model.RPZRule{
			RPZZone: rpzZone,
			Domain:  d,
			Action:  model.RPZBlock,
			Source:  model.RPZSourceBulkImport,
			Active:  true,
		})
	}

	var outcome model.BulkOutcome
	err = p.store.WithTx(ctx, func(tx pgx.Tx) error {
		outcome = p.store.BulkUpsertRPZRules(ctx, tx, rpzZone, rules)
		return nil
	})
	if err != nil {
		return outcome, err
	}

	return outcome, p.rerender.RerenderRPZ(ctx, rpzZone)
}
