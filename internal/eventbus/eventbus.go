// Package eventbus is the Event Bus (C9, spec §4.9): a typed event model
// fanned out to per-subscriber queues with filter matching, permission
// redaction, hybrid batching, priority bypass, backpressure, and
// cross-process fanout over Redis pub/sub. Delivery retries use
// cenkalti/backoff the way the teacher's outbound integrations retry
// webhook delivery.
package eventbus

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dnscp/dnscp/internal/model"
	"github.com/dnscp/dnscp/internal/store"
	"github.com/dnscp/dnscp/internal/telemetry"
)

const redisChannel = "dnscp:events"

// BatchConfig tunes the hybrid flush policy (spec §4.9 "Batching"). The
// limits stay fixed for the life of the Bus; batch size is not adapted at
// runtime.
type BatchConfig struct {
	MaxItems          int
	MaxBytes          int
	Timeout           time.Duration
	CompressionMinLen int
	QueueCapacity     int
}

func (c *BatchConfig) setDefaults() {
	if c.MaxItems <= 0 {
		c.MaxItems = 50
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 64 * 1024
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.CompressionMinLen <= 0 {
		c.CompressionMinLen = 8 * 1024
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 1000
	}
}

// Sender is how a Subscriber actually ships bytes to its remote end (an
// external WebSocket collaborator). Implementations must be safe to call
// from the bus's delivery goroutine.
type Sender interface {
	Send(ctx context.Context, payload []byte, compressed bool) error
}

// Bus is one logical event bus with per-subscriber queues.
type Bus struct {
	store  *store.Store
	redis  *redis.Client
	logger *slog.Logger
	cfg    BatchConfig

	mu   sync.RWMutex
	subs map[string]*Subscriber
}

// New creates a Bus. redisClient may be nil, disabling cross-process fanout.
func New(s *store.Store, redisClient *redis.Client, logger *slog.Logger, cfg BatchConfig) *Bus {
	cfg.setDefaults()
	return &Bus{store: s, redis: redisClient, logger: logger, cfg: cfg, subs: make(map[string]*Subscriber)}
}

// Subscriber is one connection's outbound event path.
type Subscriber struct {
	ID      string
	Session model.Session
	sender  Sender
	logger  *slog.Logger
	cfg     BatchConfig

	mu            sync.Mutex
	subscriptions map[string]model.Subscription
	queue         []queued
	status        model.ConnectionStatus
	consecutiveErrors int

	flushTimer *time.Timer
}

type queued struct {
	ev       model.Event
	enqueued time.Time
}

// Register attaches a new subscriber backed by sender, replacing any prior
// subscriber with the same ID (spec §3 "a new successful handshake replaces
// the prior one").
func (b *Bus) Register(id string, session model.Session, sender Sender) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prior, ok := b.subs[id]; ok {
		prior.close()
	}
	s := &Subscriber{
		ID:            id,
		Session:       session,
		sender:        sender,
		logger:        b.logger,
		cfg:           b.cfg,
		subscriptions: make(map[string]model.Subscription),
		status:        model.ConnConnected,
	}
	b.subs[id] = s
	return s
}

// Unregister removes a subscriber entirely, closing its connection.
func (b *Bus) Unregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subs[id]; ok {
		s.close()
		delete(b.subs, id)
	}
}

// Subscribe adds a filtered subscription to an existing connection (spec
// §4.9 "subscribe(filter)").
func (b *Bus) Subscribe(connID string, filter model.EventFilter) (model.Subscription, error) {
	b.mu.RLock()
	sub, ok := b.subs[connID]
	b.mu.RUnlock()
	if !ok {
		return model.Subscription{}, fmt.Errorf("no connection %s registered", connID)
	}
	s := model.Subscription{ID: uuid.NewString(), Filter: filter, CreatedAt: time.Now(), Active: true}
	sub.mu.Lock()
	sub.subscriptions[s.ID] = s
	sub.mu.Unlock()
	return s, nil
}

// Unsubscribe deactivates a subscription by ID (spec §4.9 "unsubscribe(filter)").
func (b *Bus) Unsubscribe(connID, subID string) error {
	b.mu.RLock()
	sub, ok := b.subs[connID]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no connection %s registered", connID)
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if _, ok := sub.subscriptions[subID]; !ok {
		return fmt.Errorf("no subscription %s on connection %s", subID, connID)
	}
	delete(sub.subscriptions, subID)
	return nil
}

// GetSubscriptions lists a connection's active subscriptions (spec §4.9
// "get_subscriptions()").
func (b *Bus) GetSubscriptions(connID string) []model.Subscription {
	b.mu.RLock()
	sub, ok := b.subs[connID]
	b.mu.RUnlock()
	if !ok {
		return nil
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	out := make([]model.Subscription, 0, len(sub.subscriptions))
	for _, s := range sub.subscriptions {
		out = append(out, s)
	}
	return out
}

// Publish offers ev to every local subscriber whose filters match, persists
// it if flagged, and republishes it to Redis for other process instances to
// fan out to their own local subscribers (spec §4.9 "emit(event)").
func (b *Bus) Publish(ctx context.Context, ev model.Event) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	telemetry.EventsPublishedTotal.WithLabelValues(string(ev.Type)).Inc()

	if ev.Persist {
		if err := b.store.InsertEvent(ctx, b.store.Pool(), ev); err != nil {
			b.logger.Error("persisting event", "event_id", ev.ID, "error", err)
		}
	}

	b.deliverLocal(ctx, ev)

	if b.redis != nil {
		if payload, err := json.Marshal(ev); err == nil {
			if err := b.redis.Publish(ctx, redisChannel, payload).Err(); err != nil {
				b.logger.Error("publishing event to redis", "error", err)
			}
		}
	}
}

// Subscribe to the redis fanout channel; call from a background goroutine so
// events published by other processes reach this process's local subscribers.
func (b *Bus) RunRedisSubscriber(ctx context.Context) error {
	if b.redis == nil {
		return nil
	}
	pubsub := b.redis.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev model.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			b.deliverLocal(ctx, ev)
		}
	}
}

func (b *Bus) deliverLocal(ctx context.Context, ev model.Event) {
	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if s.matches(ev) {
			s.offer(ctx, ev)
		}
	}
}

func (s *Subscriber) matches(ev model.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscriptions {
		if sub.Active && sub.Filter.Matches(ev) {
			return true
		}
	}
	return false
}

// close stops the subscriber's flush timer; its queue is discarded.
func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = model.ConnClosed
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}
	s.queue = nil
}

// offer enqueues ev for delivery, applying priority bypass and backpressure
// (spec §4.9 "Priority bypass", "Backpressure").
func (s *Subscriber) offer(ctx context.Context, ev model.Event) {
	redacted := redact(ev, s.Session)

	if redacted.Priority.IsBypass() {
		s.deliverImmediate(ctx, redacted)
		return
	}

	s.mu.Lock()
	if s.status == model.ConnClosed || s.status == model.ConnClosing {
		s.mu.Unlock()
		return
	}

	if len(s.queue) >= s.cfg.QueueCapacity {
		if !s.dropOldestLowPriorityLocked() {
			telemetry.EventsDroppedTotal.WithLabelValues(s.ID).Inc()
			s.mu.Unlock()
			return
		}
	}
	s.queue = append(s.queue, queued{ev: redacted, enqueued: time.Now()})
	shouldFlush := s.shouldFlushLocked()
	if s.flushTimer == nil {
		s.flushTimer = time.AfterFunc(s.cfg.Timeout, func() { s.flush(context.Background()) })
	}
	s.mu.Unlock()

	if shouldFlush {
		s.flush(ctx)
	}
}

// dropOldestLowPriorityLocked drops the oldest low-priority queued event to
// make room, returning false if every queued event is critical (the
// subscriber is saturated and must be marked recovering instead).
func (s *Subscriber) dropOldestLowPriorityLocked() bool {
	for i, q := range s.queue {
		if !q.ev.Priority.IsBypass() {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			telemetry.EventsDroppedTotal.WithLabelValues(s.ID).Inc()
			return true
		}
	}
	s.status = model.ConnRecovering
	go s.closeAfterRecoveryTimeout()
	return false
}

func (s *Subscriber) closeAfterRecoveryTimeout() {
	time.Sleep(30 * time.Second)
	s.mu.Lock()
	stillRecovering := s.status == model.ConnRecovering
	s.mu.Unlock()
	if stillRecovering {
		s.close()
	}
}

func (s *Subscriber) shouldFlushLocked() bool {
	if len(s.queue) >= s.cfg.MaxItems {
		return true
	}
	size := 0
	for _, q := range s.queue {
		size += len(q.ev.Data)
	}
	return size >= s.cfg.MaxBytes
}

// flush sends the accumulated batch, compressing it first if it exceeds the
// configured threshold (spec §4.9 "Batching", compression).
func (s *Subscriber) flush(ctx context.Context) {
	s.mu.Lock()
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	batch := make([]model.Event, len(s.queue))
	for i, q := range s.queue {
		batch[i] = q.ev
	}
	s.queue = nil
	s.mu.Unlock()

	payload, err := json.Marshal(batch)
	if err != nil {
		s.logger.Error("marshaling event batch", "subscriber", s.ID, "error", err)
		return
	}

	compressed := false
	if len(payload) >= s.cfg.CompressionMinLen {
		if gz, err := gzipBytes(payload); err == nil {
			payload = gz
			compressed = true
		}
	}

	s.deliverWithRetry(ctx, payload, compressed)
}

func (s *Subscriber) deliverImmediate(ctx context.Context, ev model.Event) {
	payload, err := json.Marshal([]model.Event{ev})
	if err != nil {
		return
	}
	s.deliverWithRetry(ctx, payload, false)
}

// deliverWithRetry sends payload, retrying with exponential backoff on
// transient send errors and tracking an EventDelivery-style error count
// (spec §4.9 "Delivery tracking").
func (s *Subscriber) deliverWithRetry(ctx context.Context, payload []byte, compressed bool) {
	op := func() (struct{}, error) {
		return struct{}{}, s.sender.Send(ctx, payload, compressed)
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(4),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.consecutiveErrors++
		s.logger.Error("delivering event batch", "subscriber", s.ID, "error", err, "consecutive_errors", s.consecutiveErrors)
		if s.consecutiveErrors >= 5 {
			s.status = model.ConnRecovering
			go s.closeAfterRecoveryTimeout()
		}
		return
	}
	s.consecutiveErrors = 0
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
