// Package projection is the Projection Engine (C5, spec §4.5): the
// transactional core that turns a batch of model changes into rendered
// resolver files, asks the resolver to reload and verify them, and rolls
// back on any failure. Grounded on the teacher's pkg/escalation.Engine for
// its background-worker shape, generalized here into a synchronous,
// mutex-serialized request/response engine instead of a ticker loop.
package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dnscp/dnscp/internal/apperrors"
	"github.com/dnscp/dnscp/internal/audit"
	"github.com/dnscp/dnscp/internal/backupstore"
	"github.com/dnscp/dnscp/internal/dnsvalidate"
	"github.com/dnscp/dnscp/internal/model"
	"github.com/dnscp/dnscp/internal/render"
	"github.com/dnscp/dnscp/internal/resolverctl"
	"github.com/dnscp/dnscp/internal/store"
	"github.com/dnscp/dnscp/internal/telemetry"
)

// EventPublisher is the subset of the Event Bus the engine needs: emitting
// the ConfigChange event on commit and the escalated event on fatal
// rollback failure (spec §4.5 step 7, step 6).
type EventPublisher interface {
	Publish(ctx context.Context, ev model.Event)
}

// FatalNotifier is the outbound escalation the engine calls when rollback
// itself fails (spec §7 "Fatal ... escalates as a critical event"). The
// event bus record alone isn't enough here since the whole point is
// reaching someone outside the system that just broke.
type FatalNotifier interface {
	NotifyFatal(ctx context.Context, backupID string, failedPhase string, cause error) error
}

// AuditLogger is the pre-transaction audit sink every Model Store Gateway
// mutation is required to write to (spec §4.1 "emits a pre-transaction
// audit entry"). nil disables audit logging.
type AuditLogger interface {
	Log(entry audit.Entry)
}

// Config is the engine's static configuration.
type Config struct {
	BindEtc        string
	ReloadTimeout  time.Duration
	VerifyTimeout  time.Duration
	OptionsConfig  render.OptionsConfig
}

// Engine is the transactional core. Only one transaction runs at a time,
// serialized by mu — concurrent Submit calls queue on it (spec §4.5
// "Only one transaction runs at a time").
type Engine struct {
	mu sync.Mutex

	store    *store.Store
	backups  *backupstore.Store
	resolver *resolverctl.Controller
	events   EventPublisher
	notifier FatalNotifier
	auditor  AuditLogger
	logger   *slog.Logger
	cfg      Config
}

// New creates a Projection Engine. notifier may be nil, in which case a
// fatal rollback failure is still published as an event but no outbound
// notification is sent. auditor may be nil, disabling the pre-transaction
// audit entry.
func New(s *store.Store, backups *backupstore.Store, resolver *resolverctl.Controller, events EventPublisher, notifier FatalNotifier, auditor AuditLogger, logger *slog.Logger, cfg Config) *Engine {
	return &Engine{store: s, backups: backups, resolver: resolver, events: events, notifier: notifier, auditor: auditor, logger: logger, cfg: cfg}
}

func (e *Engine) zoneFilePath(name string) string {
	return filepath.Join(e.cfg.BindEtc, "zones", "db."+name)
}

func (e *Engine) rpzFilePath(rpzZone string) string {
	return filepath.Join(e.cfg.BindEtc, "rpz", "db.rpz."+rpzZone)
}

func (e *Engine) optionsPath() string { return filepath.Join(e.cfg.BindEtc, "named.conf.options") }
func (e *Engine) localPath() string   { return filepath.Join(e.cfg.BindEtc, "named.conf.local") }

// Submit runs tx through the full validate → backup → write → reload →
// verify → commit state machine, rolling back on any failure after backup.
func (e *Engine) Submit(ctx context.Context, txn Transaction) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	result := e.run(ctx, txn)
	telemetry.ProjectionDuration.Observe(time.Since(start).Seconds())
	telemetry.ProjectionsTotal.WithLabelValues(string(result.Phase)).Inc()
	return result
}

func (e *Engine) run(ctx context.Context, txn Transaction) Result {
	if errs := e.validate(txn); len(errs) > 0 {
		return Result{Phase: PhaseFailed, ValidationErrors: errs}
	}
	if txn.DryRun {
		return Result{Phase: PhaseValidating}
	}

	e.logAudit(txn)

	affected := e.affectedFiles(txn)
	backupID, err := e.backups.Create(affected, model.BackupFullConfig, txn.Description)
	if err != nil {
		return Result{Phase: PhaseFailed, Err: apperrors.Wrap(apperrors.KindBackupFailed, "pre-write backup", err)}
	}

	dbtx, err := e.store.Begin(ctx)
	if err != nil {
		return Result{Phase: PhaseFailed, BackupID: backupID, Err: err}
	}
	rollbackTx := true
	defer func() {
		if rollbackTx {
			dbtx.Rollback(ctx)
		}
	}()

	if err := e.applyChanges(ctx, dbtx, txn); err != nil {
		return e.rollback(ctx, txn, backupID, PhaseFailed, err)
	}

	if err := e.writeFiles(ctx, dbtx, txn); err != nil {
		return e.rollback(ctx, txn, backupID, PhaseFailed, err)
	}

	if err := e.resolver.Reload(ctx, e.cfg.ReloadTimeout); err != nil {
		return e.rollback(ctx, txn, backupID, PhaseFailed, err)
	}

	if err := e.resolver.CheckConfig(ctx, e.optionsPath()); err != nil {
		return e.rollback(ctx, txn, backupID, PhaseFailed, err)
	}

	if err := dbtx.Commit(ctx); err != nil {
		return e.rollback(ctx, txn, backupID, PhaseFailed, apperrors.Wrap(apperrors.KindStoreUnavailable, "committing transaction", err))
	}
	rollbackTx = false

	e.publishConfigChange(ctx, txn, model.OutcomeCommitted)
	return Result{Phase: PhaseCommitted, BackupID: backupID}
}

// rollback restores the pre-write backup and re-verifies the resolver
// accepts it (spec §4.5 step 6). On an ordinary (non-fatal) rollback it
// publishes a ConfigChange event with outcome rolled_back, same as a commit
// publishes one with outcome committed (spec §8 scenario S3).
func (e *Engine) rollback(ctx context.Context, txn Transaction, backupID string, failedPhase Phase, cause error) Result {
	e.logger.Error("projection transaction failed, rolling back", "phase", failedPhase, "error", cause)

	restoreErr := e.backups.Restore(backupID)
	reloadErr := e.resolver.Reload(ctx, e.cfg.ReloadTimeout)
	var verifyErr error
	if restoreErr == nil && reloadErr == nil {
		verifyErr = e.resolver.CheckConfig(ctx, e.optionsPath())
	}

	if restoreErr != nil || reloadErr != nil || verifyErr != nil {
		e.logger.Error("rollback itself failed", "restore_error", restoreErr, "reload_error", reloadErr, "verify_error", verifyErr)
		e.events.Publish(ctx, e.fatalEvent(cause))
		if e.notifier != nil {
			if err := e.notifier.NotifyFatal(ctx, backupID, string(failedPhase), cause); err != nil {
				e.logger.Error("fatal escalation notification failed", "error", err)
			}
		}
		return Result{Phase: PhaseFatal, BackupID: backupID, Err: cause}
	}

	e.publishConfigChange(ctx, txn, model.OutcomeRolledBack)
	return Result{Phase: PhaseRolledBack, BackupID: backupID, RollbackSucceeded: true, Err: cause}
}

// RerenderRPZ re-renders and reloads a single RPZ zone's file from the
// rules currently in the store, without running the full transaction state
// machine — the feed pipeline has already written the rule rows itself and
// only needs the resolver-facing file brought up to date (spec §4.7
// "request §C5 to render the affected RPZ zones").
func (e *Engine) RerenderRPZ(ctx context.Context, rpzZone string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	path := e.rpzFilePath(rpzZone)
	backupID, err := e.backups.Create([]string{path}, model.BackupFullConfig, "rpz refresh: "+rpzZone)
	if err != nil {
		return apperrors.Wrap(apperrors.KindBackupFailed, "pre-write backup", err)
	}

	rules, err := e.store.ListRPZRules(ctx, e.store.Pool(), rpzZone, false)
	if err != nil {
		return err
	}

	rerenderTxn := Transaction{RPZRules: []RPZRuleChange{{Rule: model.RPZRule{RPZZone: rpzZone}}}}

	serial := render.NextSerial(0, time.Now())
	if err := atomicWrite(path, render.RPZFile(rpzZone, rules, serial)); err != nil {
		result := e.rollback(ctx, rerenderTxn, backupID, PhaseFailed, apperrors.Wrap(apperrors.KindFilesystemFailed, "writing rpz file", err))
		return result.Err
	}

	if err := e.resolver.Reload(ctx, e.cfg.ReloadTimeout); err != nil {
		result := e.rollback(ctx, rerenderTxn, backupID, PhaseFailed, err)
		return result.Err
	}
	if err := e.resolver.CheckConfig(ctx, e.optionsPath()); err != nil {
		result := e.rollback(ctx, rerenderTxn, backupID, PhaseFailed, err)
		return result.Err
	}
	return nil
}

// logAudit records one audit entry per change carried by txn, before any
// store write happens (spec §4.1 "emits a pre-transaction audit entry").
func (e *Engine) logAudit(txn Transaction) {
	if e.auditor == nil {
		return
	}
	for _, zc := range txn.Zones {
		e.auditLogEntry(txn.Submitter, string(zc.Op), "zone", zc.Zone.Name)
	}
	for _, rc := range txn.Records {
		e.auditLogEntry(txn.Submitter, string(rc.Op), "record", fmt.Sprintf("%s/%s", rc.ZoneName, rc.Record.Name))
	}
	for _, fc := range txn.Forwarders {
		e.auditLogEntry(txn.Submitter, string(fc.Op), "forwarder", fc.Forwarder.Name)
	}
	for _, rr := range txn.RPZRules {
		e.auditLogEntry(txn.Submitter, string(rr.Op), "rpz_rule", fmt.Sprintf("%s/%s", rr.Rule.RPZZone, rr.Rule.Domain))
	}
}

func (e *Engine) auditLogEntry(userID, action, resource, resourceID string) {
	detail, _ := json.Marshal(map[string]any{})
	e.auditor.Log(audit.Entry{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Detail:     detail,
	})
}

func (e *Engine) fatalEvent(cause error) model.Event {
	data, _ := json.Marshal(map[string]string{"cause": cause.Error()})
	return model.Event{
		ID:        uuid.New(),
		Type:      model.EventSystemFatal,
		Category:  model.CategorySystem,
		Severity:  model.SeverityCritical,
		Priority:  model.PriorityUrgent,
		Source:    "projection",
		Data:      data,
		CreatedAt: time.Now(),
		Persist:   true,
	}
}

func (e *Engine) publishConfigChange(ctx context.Context, txn Transaction, outcome model.Outcome) {
	data, _ := json.Marshal(map[string]any{
		"zones": len(txn.Zones), "records": len(txn.Records),
		"forwarders": len(txn.Forwarders), "rpz_rules": len(txn.RPZRules),
		"outcome": outcome,
	})
	ev := model.Event{
		ID:        uuid.New(),
		Type:      model.EventConfigChange,
		Category:  model.CategoryDNS,
		Severity:  model.SeverityInfo,
		Priority:  model.PriorityNormal,
		Source:    "projection",
		Data:      data,
		Outcome:   outcome,
		CreatedAt: time.Now(),
		Persist:   true,
	}
	if txn.TraceID != "" {
		ev.TraceID = &txn.TraceID
	}
	e.events.Publish(ctx, ev)
}

// validate runs §C2 on every touched entity and detects inter-change
// conflicts (spec §4.5 step 1).
func (e *Engine) validate(txn Transaction) []FieldError {
	var errs []FieldError
	addErr := func(field, reason, suggestion string) {
		errs = append(errs, FieldError{Field: field, Reason: reason, Suggestion: suggestion})
	}

	seenRecords := map[string]bool{}
	deletedZones := map[string]bool{}

	for _, zc := range txn.Zones {
		if err := dnsvalidate.ValidateZone(zc.Zone); err != nil {
			addField(&errs, err)
		}
		if zc.Op == OpDelete {
			deletedZones[zc.Zone.Name] = true
		}
	}

	for _, rc := range txn.Records {
		if err := dnsvalidate.ValidateRecord(rc.Record); err != nil {
			addField(&errs, err)
		}
		key := rc.ZoneName + "\x00" + rc.Record.IdentityKey()
		if seenRecords[key] {
			addErr("record", fmt.Sprintf("duplicate change for %s in zone %s", rc.Record.Name, rc.ZoneName),
				"submit at most one change per record identity per transaction")
		}
		seenRecords[key] = true
		if deletedZones[rc.ZoneName] {
			addErr("zone", fmt.Sprintf("zone %s is being deleted but has a pending record change", rc.ZoneName),
				"remove the record change or drop the zone deletion")
		}
	}

	for _, fc := range txn.Forwarders {
		if err := dnsvalidate.ValidateForwarder(fc.Forwarder); err != nil {
			addField(&errs, err)
		}
	}

	for _, rc := range txn.RPZRules {
		if err := dnsvalidate.ValidateRPZRule(rc.Rule); err != nil {
			addField(&errs, err)
		}
	}

	return errs
}

func addField(errs *[]FieldError, err error) {
	var ae *apperrors.Error
	if e, ok := err.(*apperrors.Error); ok {
		ae = e
	} else {
		*errs = append(*errs, FieldError{Reason: err.Error()})
		return
	}
	*errs = append(*errs, FieldError{Field: ae.Field, Reason: ae.Reason, Suggestion: ae.Suggestion})
}

// applyChanges performs every store mutation inside dbtx (spec §4.5 step 3
// precursor — the in-memory model changes that step renders from).
func (e *Engine) applyChanges(ctx context.Context, dbtx pgx.Tx, txn Transaction) error {
	for _, zc := range txn.Zones {
		var err error
		switch zc.Op {
		case OpCreate:
			_, err = e.store.CreateZone(ctx, dbtx, zc.Zone)
		case OpUpdate:
			_, err = e.store.UpdateZone(ctx, dbtx, zc.Zone)
		case OpDelete:
			err = e.store.DeleteZone(ctx, dbtx, zc.Zone.ID)
		}
		if err != nil {
			return err
		}
	}
	for _, rc := range txn.Records {
		var err error
		switch rc.Op {
		case OpCreate:
			_, err = e.store.CreateRecord(ctx, dbtx, rc.Record)
		case OpUpdate:
			_, err = e.store.UpdateRecord(ctx, dbtx, rc.Record)
		case OpDelete:
			err = e.store.DeleteRecord(ctx, dbtx, rc.Record.ID)
		}
		if err != nil {
			return err
		}
	}
	for _, fc := range txn.Forwarders {
		var err error
		switch fc.Op {
		case OpCreate:
			_, err = e.store.CreateForwarder(ctx, dbtx, fc.Forwarder)
		case OpUpdate:
			_, err = e.store.UpdateForwarder(ctx, dbtx, fc.Forwarder)
		case OpDelete:
			err = e.store.DeleteForwarder(ctx, dbtx, fc.Forwarder.ID)
		}
		if err != nil {
			return err
		}
	}
	for _, rc := range txn.RPZRules {
		var err error
		switch rc.Op {
		case OpCreate:
			_, err = e.store.CreateRPZRule(ctx, dbtx, rc.Rule)
		case OpUpdate:
			_, err = e.store.UpdateRPZRule(ctx, dbtx, rc.Rule)
		case OpDelete:
			err = e.store.DeleteRPZRule(ctx, dbtx, rc.Rule.ID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// affectedFiles lists every resolver file the transaction will rewrite.
func (e *Engine) affectedFiles(txn Transaction) []string {
	var files []string
	zones := map[string]bool{}
	for _, zc := range txn.Zones {
		zones[zc.Zone.Name] = true
	}
	for _, rc := range txn.Records {
		zones[rc.ZoneName] = true
	}
	for z := range zones {
		files = append(files, e.zoneFilePath(z))
	}

	rpzZones := map[string]bool{}
	for _, rc := range txn.RPZRules {
		rpzZones[rc.Rule.RPZZone] = true
	}
	for z := range rpzZones {
		files = append(files, e.rpzFilePath(z))
	}

	if txn.touchesAnyZone() || txn.touchesAnyRPZ() {
		files = append(files, e.optionsPath(), e.localPath())
	}
	return files
}

// writeFiles renders and atomically writes every resolver file touched by
// txn, zone/RPZ files first, then the referencing config files (spec §4.5
// step 3).
func (e *Engine) writeFiles(ctx context.Context, dbtx pgx.Tx, txn Transaction) error {
	zoneNames := map[string]bool{}
	for _, zc := range txn.Zones {
		zoneNames[zc.Zone.Name] = true
	}
	for _, rc := range txn.Records {
		zoneNames[rc.ZoneName] = true
	}

	allZones, err := e.store.ListZones(ctx, dbtx, false)
	if err != nil {
		return err
	}

	for _, z := range allZones {
		if !zoneNames[z.Name] || z.Type != model.ZoneMaster {
			continue
		}
		records, err := e.store.ListRecords(ctx, dbtx, z.ID, false)
		if err != nil {
			return err
		}
		z.Serial = render.NextSerial(z.Serial, time.Now())
		if _, err := e.store.UpdateZone(ctx, dbtx, z); err != nil {
			return err
		}
		if err := atomicWrite(e.zoneFilePath(z.Name), render.ZoneFile(z, records)); err != nil {
			return apperrors.Wrap(apperrors.KindFilesystemFailed, "writing zone file", err)
		}
	}

	rpzZones := map[string]bool{}
	for _, rc := range txn.RPZRules {
		rpzZones[rc.Rule.RPZZone] = true
	}
	for rz := range rpzZones {
		rules, err := e.store.ListRPZRules(ctx, dbtx, rz, false)
		if err != nil {
			return err
		}
		serial := render.NextSerial(0, time.Now())
		if err := atomicWrite(e.rpzFilePath(rz), render.RPZFile(rz, rules, serial)); err != nil {
			return apperrors.Wrap(apperrors.KindFilesystemFailed, "writing rpz file", err)
		}
	}

	if txn.touchesAnyZone() || txn.touchesAnyRPZ() {
		var allRPZZones []string
		for rz := range rpzZones {
			allRPZZones = append(allRPZZones, rz)
		}
		if err := atomicWrite(e.optionsPath(), render.Options(e.cfg.OptionsConfig, allRPZZones)); err != nil {
			return apperrors.Wrap(apperrors.KindFilesystemFailed, "writing options config", err)
		}
		if err := atomicWrite(e.localPath(), render.Local(allZones, allRPZZones)); err != nil {
			return apperrors.Wrap(apperrors.KindFilesystemFailed, "writing local config", err)
		}
	}

	return nil
}

// atomicWrite writes data to a sibling temp path, fsyncs, then renames into
// place (spec §4.5 step 3).
func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
