// Package logingest is the Query-Log Ingestor (C8, spec §4.8): tails the
// resolver's query log in append-follow mode, resuming from the last read
// offset and re-opening on rotation (inode change), parses each line into a
// QueryLogRow, batches to the store, and publishes a sampled stream to the
// Event Bus. Rotation detection uses fsnotify, the same library the pack's
// config-reload watchers use.
package logingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/dnscp/dnscp/internal/model"
	"github.com/dnscp/dnscp/internal/store"
	"github.com/dnscp/dnscp/internal/telemetry"
)

// EventPublisher is the subset of the Event Bus the ingestor needs.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.Event)
}

// Config tunes batching and sampling (spec §4.8 defaults).
type Config struct {
	Path          string
	FlushInterval time.Duration // default 5s
	FlushBatch    int           // default 100
	SampleEvery   int           // publish every Nth parsed row; 1 means every row
}

func (c *Config) setDefaults() {
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	if c.FlushBatch <= 0 {
		c.FlushBatch = 100
	}
	if c.SampleEvery <= 0 {
		c.SampleEvery = 1
	}
}

// Ingestor tails Config.Path and feeds parsed rows into the store.
type Ingestor struct {
	store  *store.Store
	events EventPublisher
	logger *slog.Logger
	cfg    Config

	mu      sync.Mutex
	buf     []model.QueryLogRow
	seen    int64
	file    *os.File
	reader  *bufio.Reader
	ino     uint64
	offset  int64
}

// New creates an Ingestor.
func New(s *store.Store, events EventPublisher, logger *slog.Logger, cfg Config) *Ingestor {
	cfg.setDefaults()
	return &Ingestor{store: s, events: events, logger: logger, cfg: cfg}
}

// Run opens the log file, resuming from the persisted offset when the
// inode matches, and tails it until ctx is cancelled.
func (i *Ingestor) Run(ctx context.Context) error {
	if err := i.openAndSeek(); err != nil {
		return err
	}
	defer i.file.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := parentDir(i.cfg.Path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	flushTicker := time.NewTicker(i.cfg.FlushInterval)
	defer flushTicker.Stop()

	rotateCheck := time.NewTicker(30 * time.Second)
	defer rotateCheck.Stop()

	for {
		select {
		case <-ctx.Done():
			i.flush(context.Background())
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != i.cfg.Path {
				continue
			}
			if ev.Op&(fsnotify.Write) != 0 {
				i.readAvailable(ctx)
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
				i.reopenOnRotation()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			i.logger.Error("log watcher error", "error", err)

		case <-rotateCheck.C:
			i.reopenOnRotation()

		case <-flushTicker.C:
			i.flush(ctx)
		}
	}
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func (i *Ingestor) openAndSeek() error {
	f, err := os.Open(i.cfg.Path)
	if err != nil {
		return fmt.Errorf("opening query log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	i.file = f
	i.ino = inodeOf(info)

	saved, ok := loadOffset(i.offsetPath())
	if ok && saved.Inode == i.ino {
		if _, err := f.Seek(saved.Offset, io.SeekStart); err != nil {
			return err
		}
	} else {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return err
		}
	}
	i.offset = mustTell(f)
	i.reader = bufio.NewReader(f)
	return nil
}

func (i *Ingestor) offsetPath() string { return i.cfg.Path + ".offset" }

// persistOffset records the current read position so a restart resumes
// from it instead of re-tailing from the end (spec §4.8 "resumes from last
// position on restart").
func (i *Ingestor) persistOffset() {
	saveOffset(i.offsetPath(), offsetState{Inode: i.ino, Offset: i.offset})
}

// reopenOnRotation re-opens the log file if its inode has changed since it
// was last opened (spec §4.8 "handles rotation by re-opening on inode
// change").
func (i *Ingestor) reopenOnRotation() {
	info, err := os.Stat(i.cfg.Path)
	if err != nil {
		return
	}
	if inodeOf(info) == i.ino {
		return
	}
	i.logger.Info("query log rotated, reopening", "path", i.cfg.Path)
	i.file.Close()
	f, err := os.Open(i.cfg.Path)
	if err != nil {
		i.logger.Error("reopening rotated query log", "error", err)
		return
	}
	i.file = f
	i.ino = inodeOf(info)
	i.offset = 0
	i.reader = bufio.NewReader(f)
}

func (i *Ingestor) readAvailable(ctx context.Context) {
	for {
		line, err := i.reader.ReadString('\n')
		if len(line) > 0 {
			i.offset += int64(len(line))
			i.ingestLine(ctx, line)
		}
		if err != nil {
			break
		}
	}
	i.persistOffset()
}

func (i *Ingestor) ingestLine(ctx context.Context, line string) {
	row, err := ParseLine(line)
	if err != nil {
		telemetry.QueryLogParseErrorsTotal.Inc()
		return
	}
	telemetry.QueryLogLinesIngestedTotal.Inc()

	i.mu.Lock()
	i.buf = append(i.buf, row)
	full := len(i.buf) >= i.cfg.FlushBatch
	i.mu.Unlock()

	i.seen++
	if i.seen%int64(i.cfg.SampleEvery) == 0 {
		i.publishSample(ctx, row)
	}

	if full {
		i.flush(ctx)
	}
}

func (i *Ingestor) flush(ctx context.Context) {
	i.mu.Lock()
	if len(i.buf) == 0 {
		i.mu.Unlock()
		return
	}
	batch := i.buf
	i.buf = nil
	i.mu.Unlock()

	dbtx, err := i.store.Begin(ctx)
	if err != nil {
		i.logger.Error("beginning query log flush transaction", "error", err)
		return
	}
	if _, err := i.store.RecordQueryLogBatch(ctx, dbtx, batch); err != nil {
		i.logger.Error("recording query log batch", "rows", len(batch), "error", err)
		dbtx.Rollback(ctx)
		return
	}
	if err := dbtx.Commit(ctx); err != nil {
		i.logger.Error("committing query log batch", "error", err)
	}
}

func (i *Ingestor) publishSample(ctx context.Context, row model.QueryLogRow) {
	data, err := json.Marshal(row)
	if err != nil {
		return
	}
	i.events.Publish(ctx, model.Event{
		ID:        uuid.New(),
		Type:      model.EventQueryLog,
		Category:  model.CategoryDNS,
		Severity:  model.SeverityDebug,
		Priority:  model.PriorityLow,
		Source:    "logingest",
		Data:      data,
		CreatedAt: time.Now(),
	})
}

// queryLinePattern matches a BIND-style named query log line, e.g.:
// 06-Jan-2026 10:15:23.123 client 192.168.1.5#52341: query: example.com IN A +E (10.0.0.1)
var queryLinePattern = regexp.MustCompile(
	`^(\d{2}-\w{3}-\d{4} \d{2}:\d{2}:\d{2}\.\d{3}).*?client(?:-i/o)?:? ` +
		`([0-9a-fA-F.:]+)#(\d+).*?query: (\S+) (?:IN|CH|HS) (\S+)(?: ([+\-A-Z]+))?`)

// ParseLine parses one query log line into a QueryLogRow (spec §4.8
// "Parses each line"). Response metadata BIND doesn't carry on the query
// line itself (response_code, response_time_ms) default to their zero
// values; cache_hit is set when the flags contain C. The RPZ fields
// (blocked, rpz_zone, rpz_action) are not set.
func ParseLine(line string) (model.QueryLogRow, error) {
	m := queryLinePattern.FindStringSubmatch(line)
	if m == nil {
		return model.QueryLogRow{}, fmt.Errorf("line did not match query log pattern")
	}

	ts, err := time.Parse("02-Jan-2006 15:04:05.000", m[1])
	if err != nil {
		return model.QueryLogRow{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	port, err := strconv.ParseUint(m[3], 10, 16)
	if err != nil {
		return model.QueryLogRow{}, fmt.Errorf("parsing client port: %w", err)
	}

	row := model.QueryLogRow{
		Timestamp:  ts,
		ClientIP:   m[2],
		ClientPort: uint16(port),
		QueryName:  m[4],
		QueryType:  m[5],
		CacheHit:   false,
	}

	flags := m[6]
	for _, c := range flags {
		switch c {
		case 'C':
			row.CacheHit = true
		case 'E':
			// EDNS present; no field to carry in QueryLogRow.
		}
	}
	return row, nil
}

func mustTell(f *os.File) int64 {
	off, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	return off
}
