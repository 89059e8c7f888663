package model

import "time"

// ForwarderType enumerates the purpose of a conditional forwarder.
type ForwarderType string

const (
	ForwarderActiveDirectory ForwarderType = "active_directory"
	ForwarderIntranet        ForwarderType = "intranet"
	ForwarderPublic          ForwarderType = "public"
)

// Server is one upstream endpoint owned by a Forwarder.
type Server struct {
	IP       string `json:"ip"`
	Port     uint16 `json:"port"`
	Priority uint8  `json:"priority"` // 1..10
}

// Forwarder sends queries for a domain set to an ordered list of upstream
// DNS servers (spec §3 "Forwarder").
type Forwarder struct {
	ID                  int64         `json:"id"`
	Name                string        `json:"name"`
	Domains             []string      `json:"domains"`
	Type                ForwarderType `json:"forwarder_type"`
	Servers             []Server      `json:"servers"`
	HealthCheckEnabled  bool          `json:"health_check_enabled"`
	Active              bool          `json:"active"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// HealthStatus is the classification of a single probe result (spec §4.6).
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthTimeout   HealthStatus = "timeout"
	HealthError     HealthStatus = "error"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthUnknown   HealthStatus = "unknown"
)

// ForwarderStatus is the aggregated status of a forwarder across its servers.
type ForwarderStatus string

const (
	ForwarderStatusHealthy  ForwarderStatus = "healthy"
	ForwarderStatusDegraded ForwarderStatus = "degraded"
	ForwarderStatusUnhealthy ForwarderStatus = "unhealthy"
	ForwarderStatusUnknown  ForwarderStatus = "unknown"
)

// ForwarderHealth is one insert-only probe result row (spec §3 "ForwarderHealth").
type ForwarderHealth struct {
	ID             int64        `json:"id"`
	ForwarderID    int64        `json:"forwarder_id"`
	ServerIP       string       `json:"server_ip"`
	Status         HealthStatus `json:"status"`
	ResponseTimeMs *int64       `json:"response_time_ms,omitempty"`
	ErrorMessage   *string      `json:"error_message,omitempty"`
	CheckedAt      time.Time    `json:"checked_at"`
}
