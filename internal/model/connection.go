package model

import "time"

// Permission is a coarse capability a Session may hold. The authentication
// primitives that produce a Session are out of this system's scope (spec
// §1 Non-goals); only the contract downstream components consume is
// modelled here.
type Permission string

const (
	PermAdmin          Permission = "admin"
	PermViewSensitive  Permission = "view_sensitive"
	PermSubmitTx       Permission = "submit_transaction"
	PermManageFeeds    Permission = "manage_feeds"
)

// Session is the pre-authenticated identity/permission snapshot attached to
// a Connection when it subscribes to the event bus or submits a transaction.
type Session struct {
	UserID      string       `json:"user_id"`
	Permissions []Permission `json:"permissions"`
}

// Has reports whether the session carries the given permission, or is admin.
func (s Session) Has(p Permission) bool {
	for _, have := range s.Permissions {
		if have == PermAdmin || have == p {
			return true
		}
	}
	return false
}

// ConnectionStatus is the lifecycle state of a Connection (spec §3 "Connection").
type ConnectionStatus string

const (
	ConnConnected  ConnectionStatus = "connected"
	ConnRecovering ConnectionStatus = "recovering"
	ConnClosing    ConnectionStatus = "closing"
	ConnClosed     ConnectionStatus = "closed"
)

// EventFilter is a subscription's matching predicate (spec §4.9 "Subscription
// filter matching").
type EventFilter struct {
	EventTypes  []EventType // empty = open (matches any type)
	Categories  []Category  // empty = open
	MinSeverity Severity
	Tags        []string
	UserFilters map[string]string
}

// Matches reports whether ev satisfies the filter.
func (f EventFilter) Matches(ev Event) bool {
	if len(f.EventTypes) > 0 && !containsType(f.EventTypes, ev.Type) {
		return false
	}
	if len(f.Categories) > 0 && !containsCategory(f.Categories, ev.Category) {
		return false
	}
	if ev.Severity < f.MinSeverity {
		return false
	}
	return true
}

func containsType(types []EventType, t EventType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func containsCategory(cats []Category, c Category) bool {
	for _, x := range cats {
		if x == c {
			return true
		}
	}
	return false
}

// Subscription is a stateful filter a Connection attaches to the bus
// (spec §3 "EventSubscription").
type Subscription struct {
	ID        string
	Filter    EventFilter
	CreatedAt time.Time
	ExpiresAt *time.Time
	Active    bool
}
