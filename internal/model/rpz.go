package model

import "time"

// RPZAction is the action an RPZ rule tells the resolver to take.
type RPZAction string

const (
	RPZBlock     RPZAction = "block"
	RPZRedirect  RPZAction = "redirect"
	RPZPassthru  RPZAction = "passthru"
)

// RPZSource records who/what authored a rule.
type RPZSource string

const (
	RPZSourceManual      RPZSource = "manual"
	RPZSourceBulkImport  RPZSource = "bulk_import"
	// RPZSourceThreatFeedPrefix is a prefix: "threat_feed:<name>".
	RPZSourceThreatFeedPrefix = "threat_feed:"
)

// ThreatFeedSource returns the canonical source value for rules ingested
// from a named threat feed.
func ThreatFeedSource(feedName string) string {
	return RPZSourceThreatFeedPrefix + feedName
}

// RPZRule is one domain-matching rule in an RPZ zone (spec §3 "RPZRule").
type RPZRule struct {
	ID            int64     `json:"id"`
	RPZZone       string    `json:"rpz_zone"`
	Domain        string    `json:"domain"`
	Action        RPZAction `json:"action"`
	RedirectTo    string    `json:"redirect_target,omitempty"`
	Source        string    `json:"source"`
	Description   string    `json:"description,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FeedFormat is the wire format a threat feed publishes its list in.
type FeedFormat string

const (
	FeedFormatDomains FeedFormat = "domains"
	FeedFormatHosts   FeedFormat = "hosts"
	FeedFormatJSON    FeedFormat = "json"
	FeedFormatCSV     FeedFormat = "csv"
	FeedFormatYAML    FeedFormat = "yaml"
)

// FeedStatus is the outcome of the most recent update attempt.
type FeedStatus string

const (
	FeedStatusOK      FeedStatus = "ok"
	FeedStatusPartial FeedStatus = "partial"
	FeedStatusFailed  FeedStatus = "failed"
	FeedStatusNever   FeedStatus = "never"
)

// ThreatFeed is an externally hosted malicious-domain list (spec §3 "ThreatFeed").
type ThreatFeed struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	URL              string     `json:"url"`
	FeedType         string     `json:"feed_type"`
	Format           FeedFormat `json:"format"`
	UpdateFrequency  int64      `json:"update_frequency"` // seconds
	LastUpdateAt     *time.Time `json:"last_update_at,omitempty"`
	LastUpdateStatus FeedStatus `json:"last_update_status"`
	RulesCount       int        `json:"rules_count"`
	Active           bool       `json:"active"`
}

// BulkOutcome is returned by bulk_upsert / bulk_import operations across
// C1 and C7 (spec §4.1, §4.7). A bad row never aborts the whole batch.
type BulkOutcome struct {
	Added   int               `json:"added"`
	Updated int               `json:"updated"`
	Skipped int               `json:"skipped"`
	Errors  []BulkRowError    `json:"errors,omitempty"`
}

// BulkRowError names the row index and reason a single row was rejected.
type BulkRowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
