package projection

import "github.com/dnscp/dnscp/internal/model"

// ChangeOp is the operation a single change in a Transaction performs.
type ChangeOp string

const (
	OpCreate ChangeOp = "create"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// ZoneChange is one zone-category change in a Transaction.
type ZoneChange struct {
	Op   ChangeOp
	Zone model.Zone
}

// RecordChange is one record-category change in a Transaction.
type RecordChange struct {
	Op       ChangeOp
	ZoneName string
	Record   model.Record
}

// ForwarderChange is one forwarder-category change in a Transaction.
type ForwarderChange struct {
	Op        ChangeOp
	Forwarder model.Forwarder
}

// RPZRuleChange is one rpz_rules-category change in a Transaction.
type RPZRuleChange struct {
	Op   ChangeOp
	Rule model.RPZRule
}

// Transaction is an ordered set of changes grouped by category, the unit
// the Projection Engine accepts (spec §4.5).
type Transaction struct {
	Zones       []ZoneChange
	Records     []RecordChange
	Forwarders  []ForwarderChange
	RPZRules    []RPZRuleChange
	DryRun      bool
	Description string
	ForceBackup bool
	Submitter   string // session user ID, for the pre-transaction audit entry
	TraceID     string // request ID the transaction arrived under, for event correlation (spec §8 event.trace_id)
}

func (t Transaction) touchesAnyZone() bool {
	return len(t.Zones) > 0 || len(t.Records) > 0
}

func (t Transaction) touchesAnyRPZ() bool {
	return len(t.RPZRules) > 0
}
