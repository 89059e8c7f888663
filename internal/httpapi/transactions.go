package httpapi

import (
	"net/http"

	"github.com/dnscp/dnscp/internal/httpserver"
	"github.com/dnscp/dnscp/internal/model"
	"github.com/dnscp/dnscp/internal/projection"
)

type zoneChangeRequest struct {
	Op   string     `json:"op" validate:"required,oneof=create update delete"`
	Zone model.Zone `json:"zone" validate:"required"`
}

type recordChangeRequest struct {
	Op       string       `json:"op" validate:"required,oneof=create update delete"`
	ZoneName string       `json:"zone_name" validate:"required"`
	Record   model.Record `json:"record" validate:"required"`
}

type forwarderChangeRequest struct {
	Op        string          `json:"op" validate:"required,oneof=create update delete"`
	Forwarder model.Forwarder `json:"forwarder" validate:"required"`
}

type rpzRuleChangeRequest struct {
	Op   string        `json:"op" validate:"required,oneof=create update delete"`
	Rule model.RPZRule `json:"rule" validate:"required"`
}

// transactionRequest is the wire shape of submit_transaction's tx argument
// (spec §6 "submit_transaction(tx) → TxResult").
type transactionRequest struct {
	Zones       []zoneChangeRequest      `json:"zones"`
	Records     []recordChangeRequest    `json:"records"`
	Forwarders  []forwarderChangeRequest `json:"forwarders"`
	RPZRules    []rpzRuleChangeRequest   `json:"rpz_rules"`
	DryRun      bool                     `json:"dry_run"`
	Description string                   `json:"description"`
	ForceBackup bool                     `json:"force_backup"`
}

func (req transactionRequest) toTransaction(submitter, traceID string) projection.Transaction {
	txn := projection.Transaction{
		DryRun:      req.DryRun,
		Description: req.Description,
		ForceBackup: req.ForceBackup,
		Submitter:   submitter,
		TraceID:     traceID,
	}
	for _, z := range req.Zones {
		txn.Zones = append(txn.Zones, projection.ZoneChange{Op: projection.ChangeOp(z.Op), Zone: z.Zone})
	}
	for _, rc := range req.Records {
		txn.Records = append(txn.Records, projection.RecordChange{
			Op: projection.ChangeOp(rc.Op), ZoneName: rc.ZoneName, Record: rc.Record,
		})
	}
	for _, f := range req.Forwarders {
		txn.Forwarders = append(txn.Forwarders, projection.ForwarderChange{Op: projection.ChangeOp(f.Op), Forwarder: f.Forwarder})
	}
	for _, rr := range req.RPZRules {
		txn.RPZRules = append(txn.RPZRules, projection.RPZRuleChange{Op: projection.ChangeOp(rr.Op), Rule: rr.Rule})
	}
	return txn
}

type transactionResponse struct {
	Phase             string                  `json:"phase"`
	ValidationErrors  []projection.FieldError `json:"validation_errors,omitempty"`
	RollbackSucceeded bool                    `json:"rollback_succeeded,omitempty"`
	BackupID          string                  `json:"backup_id,omitempty"`
	Error             string                  `json:"error,omitempty"`
}

func toTransactionResponse(res projection.Result) transactionResponse {
	resp := transactionResponse{
		Phase:             string(res.Phase),
		ValidationErrors:  res.ValidationErrors,
		RollbackSucceeded: res.RollbackSucceeded,
		BackupID:          res.BackupID,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp
}

func (h *Handler) submitTransaction(w http.ResponseWriter, r *http.Request) {
	session := sessionFromRequest(r)
	if !requirePermission(w, session, model.PermSubmitTx) {
		return
	}

	var req transactionRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	result := h.engine.Submit(r.Context(), req.toTransaction(session.UserID, httpserver.RequestIDFromContext(r.Context())))

	status := http.StatusOK
	switch result.Phase {
	case projection.PhaseFailed:
		status = http.StatusUnprocessableEntity
	case projection.PhaseRolledBack:
		status = http.StatusConflict
	case projection.PhaseFatal:
		status = http.StatusInternalServerError
	}
	httpserver.Respond(w, status, toTransactionResponse(result))
}
