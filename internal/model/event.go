package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the discriminant of the Event tagged union
// (spec §9 "Dynamic types / JSON metadata").
type EventType string

const (
	EventZoneCreated           EventType = "zone_created"
	EventZoneUpdated           EventType = "zone_updated"
	EventZoneDeleted           EventType = "zone_deleted"
	EventRecordCreated         EventType = "record_created"
	EventRecordUpdated         EventType = "record_updated"
	EventRecordDeleted         EventType = "record_deleted"
	EventConfigChange          EventType = "config_change"
	EventForwarderStatusChange EventType = "forwarder_status_change"
	EventRPZRuleChanged        EventType = "rpz_rule_changed"
	EventFeedUpdated           EventType = "feed_updated"
	EventQueryLog              EventType = "query_log"
	EventSecurityAlert         EventType = "security_alert"
	EventSystemFatal           EventType = "system_fatal"
	EventBulkImportCompleted   EventType = "bulk_import_completed"
	EventConnectionOpened      EventType = "connection_opened"
	EventConnectionClosed      EventType = "connection_closed"
)

// Category groups event types for subscription filtering (spec §3 "Event").
type Category string

const (
	CategoryHealth     Category = "health"
	CategoryDNS        Category = "dns"
	CategorySecurity   Category = "security"
	CategorySystem     Category = "system"
	CategoryUser       Category = "user"
	CategoryAudit      Category = "audit"
	CategoryConnection Category = "connection"
	CategoryBulk       Category = "bulk"
	CategoryError      Category = "error"
)

// Severity orders events for the subscription filter's min_severity check.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "debug":
		return SeverityDebug, true
	case "info":
		return SeverityInfo, true
	case "warning":
		return SeverityWarning, true
	case "error":
		return SeverityError, true
	case "critical":
		return SeverityCritical, true
	}
	return 0, false
}

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	}
	return "unknown"
}

// Outcome records how the transaction behind a ConfigChange event concluded
// (spec §8 scenario S3). Empty for event types that don't carry an outcome.
type Outcome string

const (
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
)

// Priority governs delivery treatment: critical/urgent bypass batching
// (spec §4.9 "Priority bypass").
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
	PriorityUrgent   Priority = "urgent"
)

// IsBypass reports whether this priority skips batching entirely.
func (p Priority) IsBypass() bool {
	return p == PriorityCritical || p == PriorityUrgent
}

// Event is a value with no ownership — it is copied into subscriber queues
// (spec §3 "Event").
type Event struct {
	ID            uuid.UUID       `json:"id"`
	Type          EventType       `json:"type"`
	Category      Category        `json:"category"`
	Severity      Severity        `json:"severity"`
	Priority      Priority        `json:"priority"`
	Source        string          `json:"source"`
	Data          json.RawMessage `json:"data"`
	CorrelationID *string         `json:"correlation_id,omitempty"`
	TraceID       *string         `json:"trace_id,omitempty"`
	Outcome       Outcome         `json:"outcome,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Persist       bool            `json:"-"` // per-event persistence flag (spec §9 open question 4)
}

// DeliveryState is the lifecycle of an optional EventDelivery row
// (spec §4.9 "Delivery tracking").
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryFailed    DeliveryState = "failed"
)

// EventDelivery tracks one attempt to deliver an Event to one subscriber.
type EventDelivery struct {
	EventID      uuid.UUID     `json:"event_id"`
	SubscriberID string        `json:"subscriber_id"`
	State        DeliveryState `json:"state"`
	Attempts     int           `json:"attempts"`
	LastError    string        `json:"last_error,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
