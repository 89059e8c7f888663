// Package health is the Forwarder Health Tracker (C6, spec §4.6): concurrent
// upstream DNS probing, per-server and per-forwarder status classification,
// and ForwarderStatusChange event emission. Circuit breaking per server is
// grounded on r3e-network-service_layer/infrastructure/resilience's
// sony/gobreaker adapter; probing uses miekg/dns directly.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/miekg/dns"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/dnscp/dnscp/internal/model"
	"github.com/dnscp/dnscp/internal/store"
	"github.com/dnscp/dnscp/internal/telemetry"
)

// malformedResponseError marks a response that parsed but failed DNS-level
// validation (e.g. an unexpected RCODE), distinct from a transport/network
// failure reaching the server at all (spec §4.6 "Result classification":
// unhealthy is for malformed responses, error is for everything else).
type malformedResponseError struct{ reason string }

func (e *malformedResponseError) Error() string { return e.reason }

// EventPublisher is the subset of the Event Bus the tracker needs.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.Event)
}

// Config tunes probe cadence and concurrency (spec §4.6 defaults).
type Config struct {
	ProbeTimeout   time.Duration // per-query timeout, default 5s
	TotalTimeout   time.Duration // total timeout across a forwarder's servers, default 10s
	WorkerCount    int           // bounded parallelism across forwarders
	FallbackDomain string        // used when a forwarder owns no domains
}

func (c *Config) setDefaults() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 8
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.TotalTimeout <= 0 {
		c.TotalTimeout = 10 * time.Second
	}
	if c.FallbackDomain == "" {
		c.FallbackDomain = "example.com."
	}
}

// ServerResult is one server's outcome within a forwarder probe.
type ServerResult struct {
	IP             string
	Domain         string
	Status         model.HealthStatus
	ResponseTimeMs int64
	Err            error
}

// Tracker probes every health_check_enabled Forwarder on demand (driven by
// the scheduler's health_probe_tick) and tracks aggregate status transitions
// in memory to detect when a ForwarderStatusChange event is due.
type Tracker struct {
	store  *store.Store
	events EventPublisher
	logger *slog.Logger
	cfg    Config
	client *dns.Client
	sem    chan struct{}

	mu         sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker
	lastStatus map[int64]model.ForwarderStatus
}

// New creates a Tracker.
func New(s *store.Store, events EventPublisher, logger *slog.Logger, cfg Config) *Tracker {
	cfg.setDefaults()
	return &Tracker{
		store:      s,
		events:     events,
		logger:     logger,
		cfg:        cfg,
		client:     &dns.Client{Timeout: cfg.ProbeTimeout},
		sem:        make(chan struct{}, cfg.WorkerCount),
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
		lastStatus: make(map[int64]model.ForwarderStatus),
	}
}

// breaker returns (creating if needed) the circuit breaker guarding probes
// to a single server, keyed by "forwarderID/ip:port".
func (t *Tracker) breaker(key string) *gobreaker.CircuitBreaker {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cb, ok := t.breakers[key]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			telemetry.CircuitBreakerStateChanges.WithLabelValues(name, to.String()).Inc()
		},
	})
	t.breakers[key] = cb
	return cb
}

// ProbeAll probes every active, health_check_enabled forwarder, bounded to
// cfg.WorkerCount concurrent forwarders (spec §4.6 "may run in parallel up
// to a bounded worker count").
func (t *Tracker) ProbeAll(ctx context.Context) error {
	all, err := t.store.ListForwarders(ctx, t.store.Pool(), true)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range all {
		if !f.HealthCheckEnabled {
			continue
		}
		f := f
		g.Go(func() error {
			select {
			case t.sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-t.sem }()
			t.probeForwarder(gctx, f)
			return nil
		})
	}
	return g.Wait()
}

// probeForwarder probes every server of f in parallel, persists a
// ForwarderHealth row per server, and emits a ForwarderStatusChange event on
// an aggregate status transition (spec §4.6).
func (t *Tracker) probeForwarder(ctx context.Context, f model.Forwarder) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.TotalTimeout)
	defer cancel()

	domain := t.cfg.FallbackDomain
	if len(f.Domains) > 0 {
		domain = dns.Fqdn(f.Domains[0])
	}

	results := make([]ServerResult, len(f.Servers))
	var wg sync.WaitGroup
	for i, srv := range f.Servers {
		i, srv := i, srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = t.probeServer(ctx, f.ID, srv, domain)
		}()
	}
	wg.Wait()

	for _, r := range results {
		h := model.ForwarderHealth{
			ForwarderID: f.ID,
			ServerIP:    r.IP,
			Status:      r.Status,
			CheckedAt:   time.Now(),
		}
		if r.ResponseTimeMs > 0 {
			ms := r.ResponseTimeMs
			h.ResponseTimeMs = &ms
		}
		if r.Err != nil {
			msg := r.Err.Error()
			h.ErrorMessage = &msg
		}
		if err := t.store.RecordHealthCheck(ctx, t.store.Pool(), h); err != nil {
			t.logger.Error("recording health check", "forwarder_id", f.ID, "server_ip", r.IP, "error", err)
		}
		telemetry.ForwarderHealthChecksTotal.WithLabelValues(fmt.Sprint(f.ID), string(r.Status)).Inc()
	}

	status := aggregateStatus(results)
	t.mu.Lock()
	prev, known := t.lastStatus[f.ID]
	t.lastStatus[f.ID] = status
	t.mu.Unlock()

	if !known || prev != status {
		t.publishStatusChange(ctx, f, prev, status)
	}
}

// probeServer issues one DNS query against srv through its circuit breaker
// and classifies the outcome (spec §4.6 "Result classification").
func (t *Tracker) probeServer(ctx context.Context, forwarderID int64, srv model.Server, domain string) ServerResult {
	key := fmt.Sprintf("%d/%s:%d", forwarderID, srv.IP, srv.Port)
	cb := t.breaker(key)

	start := time.Now()
	res, err := cb.Execute(func() (interface{}, error) {
		msg := new(dns.Msg)
		msg.SetQuestion(domain, dns.TypeA)
		addr := net.JoinHostPort(srv.IP, fmt.Sprint(srv.Port))
		resp, _, exchangeErr := t.client.ExchangeContext(ctx, msg, addr)
		if exchangeErr != nil {
			return nil, exchangeErr
		}
		if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
			return nil, &malformedResponseError{reason: fmt.Sprintf("unexpected rcode %s", dns.RcodeToString[resp.Rcode])}
		}
		return resp, nil
	})
	elapsed := time.Since(start)

	var malformed *malformedResponseError
	out := ServerResult{IP: srv.IP, Domain: domain, ResponseTimeMs: elapsed.Milliseconds()}
	switch {
	case err == nil:
		out.Status = model.HealthHealthy
	case ctx.Err() != nil:
		out.Status = model.HealthTimeout
		out.Err = ctx.Err()
	case errors.As(err, &malformed):
		out.Status = model.HealthUnhealthy
		out.Err = err
	default:
		// Includes gobreaker.ErrOpenState/ErrTooManyRequests: the circuit
		// being open is a connectivity failure, not a malformed response.
		out.Status = model.HealthError
		out.Err = err
	}
	_ = res
	return out
}

// aggregateStatus classifies a forwarder's overall status from its servers'
// individual outcomes (spec §4.6 "Aggregated forwarder status").
func aggregateStatus(results []ServerResult) model.ForwarderStatus {
	if len(results) == 0 {
		return model.ForwarderStatusUnknown
	}
	healthy := 0
	for _, r := range results {
		if r.Status == model.HealthHealthy {
			healthy++
		}
	}
	switch {
	case healthy == len(results):
		return model.ForwarderStatusHealthy
	case healthy == 0:
		return model.ForwarderStatusUnhealthy
	default:
		return model.ForwarderStatusDegraded
	}
}

func (t *Tracker) publishStatusChange(ctx context.Context, f model.Forwarder, prev, next model.ForwarderStatus) {
	data := fmt.Sprintf(`{"forwarder_id":%d,"forwarder_name":%q,"previous":%q,"current":%q}`,
		f.ID, f.Name, prev, next)
	severity := model.SeverityInfo
	if next == model.ForwarderStatusUnhealthy {
		severity = model.SeverityError
	} else if next == model.ForwarderStatusDegraded {
		severity = model.SeverityWarning
	}
	t.events.Publish(ctx, model.Event{
		ID:        uuid.New(),
		Type:      model.EventForwarderStatusChange,
		Category:  model.CategoryHealth,
		Severity:  severity,
		Priority:  model.PriorityNormal,
		Source:    "health",
		Data:      []byte(data),
		CreatedAt: time.Now(),
		Persist:   true,
	})
}

// ForwarderSummary is one row of the health summary exposed to external
// collaborators through get_health_summary (spec §6).
type ForwarderSummary struct {
	ForwarderID   int64                 `json:"forwarder_id"`
	ForwarderName string                `json:"forwarder_name"`
	Status        model.ForwarderStatus `json:"status"`
}

// Summary returns the most recently observed aggregate status for every
// active forwarder, as computed by the last ProbeAll run. A forwarder that
// has never been probed reports "unknown" rather than being omitted.
func (t *Tracker) Summary(ctx context.Context) ([]ForwarderSummary, error) {
	forwarders, err := t.store.ListForwarders(ctx, t.store.Pool(), true)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ForwarderSummary, 0, len(forwarders))
	for _, f := range forwarders {
		status, ok := t.lastStatus[f.ID]
		if !ok {
			status = model.ForwarderStatusUnknown
		}
		out = append(out, ForwarderSummary{ForwarderID: f.ID, ForwarderName: f.Name, Status: status})
	}
	return out, nil
}

// TestResult is the outcome of one on-demand test query.
type TestResult struct {
	ServerIP       string
	Domain         string
	Success        bool
	ResponseTimeMs int64
	Error          string
}

// TestForwarder runs an ad-hoc probe against every server of f for every
// domain in testDomains, without persisting any rows (spec §4.6 "On-demand
// test").
func (t *Tracker) TestForwarder(ctx context.Context, f model.Forwarder, testDomains []string) ([]TestResult, float64) {
	if len(testDomains) == 0 {
		testDomains = []string{t.cfg.FallbackDomain}
	}
	var out []TestResult
	success := 0
	total := 0
	for _, srv := range f.Servers {
		for _, d := range testDomains {
			total++
			r := t.probeServer(ctx, f.ID, srv, dns.Fqdn(d))
			tr := TestResult{ServerIP: srv.IP, Domain: d, ResponseTimeMs: r.ResponseTimeMs}
			if r.Status == model.HealthHealthy {
				tr.Success = true
				success++
			} else if r.Err != nil {
				tr.Error = r.Err.Error()
			}
			out = append(out, tr)
		}
	}
	rate := 0.0
	if total > 0 {
		rate = float64(success) / float64(total)
	}
	return out, rate
}
