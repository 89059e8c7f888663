package model

import "time"

// QueryLogRow is one parsed line from the resolver's query log
// (spec §3 "QueryLogRow"). Insert-only.
type QueryLogRow struct {
	Timestamp      time.Time `json:"timestamp"`
	ClientIP       string    `json:"client_ip"`
	ClientPort     uint16    `json:"client_port"`
	QueryName      string    `json:"query_name"`
	QueryType      string    `json:"query_type"`
	ResponseCode   string    `json:"response_code"`
	Blocked        bool      `json:"blocked"`
	RPZZone        *string   `json:"rpz_zone,omitempty"`
	RPZAction      *string   `json:"rpz_action,omitempty"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	CacheHit       bool      `json:"cache_hit"`
}
