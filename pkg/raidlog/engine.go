package raidlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raidframer/raidlog-go/internal/aggregate"
	"github.com/raidframer/raidlog-go/internal/filter"
	"github.com/raidframer/raidlog-go/internal/locator"
	"github.com/raidframer/raidlog-go/internal/segment"
	"github.com/raidframer/raidlog-go/internal/tailer"
)

// Engine locates, tails, parses, segments and aggregates a combat log.
//
// All ingestion runs on one goroutine at a fixed cadence, so events are
// processed strictly in file order. The query methods may be called from any
// goroutine; they read published snapshots and never block ingestion.
type Engine struct {
	cfg    *config
	log    *slog.Logger
	parser Parser
	seg    *segment.Segmenter
	agg    *aggregate.Aggregator

	signals chan Signal

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc // cancel func to stop the goroutine
	doneCh  chan struct{}      // signals when goroutine has exited

	subMu      sync.Mutex
	subs       map[uint64]chan EncounterStats
	nextSub    uint64
	subsClosed bool

	// Owned by the ingestion goroutine.
	handle      *tailer.Handle
	opened      bool
	searched    bool // a locate failed before the first open
	lastCheck   time.Time
	lastLocErr  string
	lastReadErr string
	notify      bool

	running atomic.Bool
	source  atomic.Pointer[Source]
	counts  struct {
		lines, events, skips, rotations, locFails, readErrs, sealed atomic.Uint64
		signalsDropped, notificationsDropped                      atomic.Uint64
	}
}

// New creates an engine.
// Validates options, compiles filter rules and loads the grammar.
// Does NOT start goroutines or touch the log (cheap to call).
func New(opts ...Option) (*Engine, error) {
	cfg := applyOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	p, err := cfg.buildParser()
	if err != nil {
		return nil, fmt.Errorf("loading grammar: %w", err)
	}
	rules, err := cfg.compileRules()
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		cfg:    cfg,
		log:    logger,
		parser: p,
		seg:    segment.New(cfg.segmentConfig()),
		agg: aggregate.New(aggregate.Config{
			HistorySize: cfg.historySize,
			MergePets:   cfg.mergePets,
			Filter:      rules,
		}),
		signals: make(chan Signal, cfg.signalBuffer),
		subs:    make(map[uint64]chan EncounterStats),
	}, nil
}

// Start begins locating and polling on a background goroutine.
// The engine stops when ctx is cancelled or Stop is called.
// Start can only be called once per Engine instance.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrStopped
	}
	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.doneCh = make(chan struct{})
	e.running.Store(true)

	go e.run(ctx)
	return nil
}

// Stop halts polling and releases the log file.
// Safe to call multiple times. Blocks until the goroutine has exited.
// Everything already ingested stays queryable; the active encounter is left
// as it was.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	cancel, doneCh := e.cancel, e.doneCh
	if cancel == nil {
		e.doneCh = make(chan struct{})
		close(e.doneCh)
	}
	e.mu.Unlock()

	if cancel == nil {
		// Never started.
		e.shutdown()
		return nil
	}
	cancel()
	<-doneCh
	return nil
}

// Done returns a channel closed once the ingestion goroutine has exited, or
// once Stop is called on an engine that was never started. It is nil before
// Start or Stop.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doneCh
}

// Signals returns the side-signal channel. Signals are dropped, never
// queued, when the channel is full. The channel is closed after the engine
// stops.
func (e *Engine) Signals() <-chan Signal {
	return e.signals
}

// Subscribe returns a channel receiving the current snapshot whenever it
// changes, and a func to unsubscribe. The channel holds only the latest
// snapshot: a slow reader skips intermediate ones and never stalls
// ingestion. The channel is closed by unsubscribe or when the engine stops.
func (e *Engine) Subscribe() (<-chan EncounterStats, func()) {
	ch := make(chan EncounterStats, 1)

	e.subMu.Lock()
	defer e.subMu.Unlock()
	if e.subsClosed {
		close(ch)
		return ch, func() {}
	}

	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	if cur, ok := e.agg.Current(); ok {
		ch <- cur
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			defer e.subMu.Unlock()
			if c, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(c)
			}
		})
	}
}

// CurrentSnapshot returns the active encounter, or the most recently sealed
// one when none is active. ok is false before the first encounter.
func (e *Engine) CurrentSnapshot() (EncounterStats, bool) {
	return e.agg.Current()
}

// Snapshot returns the encounter with the given ID if it is still retained.
func (e *Engine) Snapshot(id string) (EncounterStats, bool) {
	return e.agg.Get(id)
}

// History returns sealed encounters, most recent first.
func (e *Engine) History() []EncounterStats {
	return e.agg.History()
}

// SetFilterRules replaces the actor filter. Only events ingested afterwards
// are affected; existing totals are not recomputed.
func (e *Engine) SetFilterRules(rules []FilterRule) error {
	set, err := filter.Compile(rules)
	if err != nil {
		return err
	}
	e.agg.SetFilter(set)
	e.log.Debug("filter rules updated", "rules", len(rules))
	return nil
}

// FilterRules returns the rules in effect.
func (e *Engine) FilterRules() []FilterRule {
	return e.agg.Filter().Rules()
}

// Diagnostics returns the engine's counters.
func (e *Engine) Diagnostics() Diagnostics {
	d := Diagnostics{
		Running:              e.running.Load(),
		LinesRead:            e.counts.lines.Load(),
		EventsParsed:         e.counts.events.Load(),
		ParseSkips:           e.counts.skips.Load(),
		Rotations:            e.counts.rotations.Load(),
		LocatorFailures:      e.counts.locFails.Load(),
		ReadErrors:           e.counts.readErrs.Load(),
		EncountersSealed:     e.counts.sealed.Load(),
		SignalsDropped:       e.counts.signalsDropped.Load(),
		NotificationsDropped: e.counts.notificationsDropped.Load(),
	}
	if src := e.source.Load(); src != nil {
		d.Source = *src
	}
	return d
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.doneCh) // Signal that goroutine has exited
	defer e.shutdown()

	e.log.Debug("engine started",
		"poll", e.cfg.pollInterval,
		"timeout", e.cfg.timeout,
		"search_everywhere", e.cfg.locate.SearchEverywhere)

	ticker := time.NewTicker(e.cfg.pollInterval)
	defer ticker.Stop()

	e.tick()
	for {
		select {
		case <-ctx.Done():
			e.log.Debug("engine stopping")
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick is one ingestion step: locate or recheck, poll, parse, segment,
// aggregate, expire, publish.
func (e *Engine) tick() {
	now := e.cfg.now()

	if e.handle == nil {
		e.open(now)
	} else if e.cfg.recheckInterval > 0 && now.Sub(e.lastCheck) >= e.cfg.recheckInterval {
		e.recheck(now)
	}

	if e.handle != nil {
		e.poll(now)
	}

	if sealed, ok := e.agg.Seal(e.seg.Expire(now)); ok {
		e.sealed(sealed, now, "inactivity")
	}
	e.publish()
}

func (e *Engine) open(now time.Time) {
	e.lastCheck = now
	cand, err := locator.Resolve(e.cfg.locate)
	if err != nil {
		e.counts.locFails.Add(1)
		e.searched = true
		if reason := err.Error(); reason != e.lastLocErr {
			e.lastLocErr = reason
			e.log.Warn("combat log not found", "reason", reason)
			e.signal(Signal{Kind: SignalLocatorFailed, Time: now, Reason: reason})
		}
		return
	}
	e.lastLocErr = ""

	// Only a log that already existed at startup honours the start-at-end
	// default. A file that appeared while searching, or any file after the
	// first, is unseen content from its first byte.
	fromStart := e.cfg.fromStart || !e.cfg.since.IsZero() || e.opened || e.searched
	h, err := tailer.Open(cand.Path, tailer.WithFromStart(fromStart), tailer.WithMaxRead(e.cfg.maxRead))
	if err != nil {
		e.readFailed(cand.Path, err, now)
		return
	}
	if e.opened {
		e.rotate(cand.Path, "log file reopened", now)
	}
	e.opened = true
	e.attach(h, now)
}

// recheck switches to a newer log file when the locator now prefers one.
func (e *Engine) recheck(now time.Time) {
	e.lastCheck = now
	cand, err := locator.Resolve(e.cfg.locate)
	if err != nil {
		// The open handle reports its own problems on poll.
		return
	}
	current := e.handle.Source().Path
	if filepath.Clean(cand.Path) == filepath.Clean(current) {
		return
	}

	h, err := tailer.Open(cand.Path, tailer.WithFromStart(true), tailer.WithMaxRead(e.cfg.maxRead))
	if err != nil {
		e.readFailed(cand.Path, err, now)
		return
	}
	e.log.Info("newer combat log found", "path", cand.Path, "previous", current)
	e.closeHandle()
	e.rotate(cand.Path, "newer log file", now)
	e.attach(h, now)
}

func (e *Engine) attach(h *tailer.Handle, now time.Time) {
	e.handle = h
	e.lastReadErr = ""
	src := h.Source()
	e.source.Store(&src)
	e.log.Info("combat log opened", "path", src.Path, "offset", src.Offset)
	e.signal(Signal{Kind: SignalSourceOpened, Time: now, Path: src.Path})
}

func (e *Engine) poll(now time.Time) {
	path := e.handle.Source().Path
	batch, err := e.handle.Poll()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Game restarts remove the log; resolve again next tick.
			e.log.Warn("combat log disappeared", "path", path)
			e.closeHandle()
			return
		}
		e.readFailed(path, err, now)
		return
	}
	e.lastReadErr = ""

	if batch.Rotated {
		e.rotate(path, "log file truncated or replaced", now)
	}
	for _, line := range batch.Lines {
		e.ingest(line, now)
	}

	src := e.handle.Source()
	e.source.Store(&src)
}

func (e *Engine) ingest(line RawLine, now time.Time) {
	e.counts.lines.Add(1)

	ev := e.parser.Parse(line)
	if !ev.Recognized() {
		e.counts.skips.Add(1)
		return
	}
	e.counts.events.Add(1)
	if !e.cfg.since.IsZero() && ev.Timestamp.Before(e.cfg.since) {
		return
	}

	if sealed, ok := e.agg.Ingest(ev, e.seg.Observe(ev, now)); ok {
		e.sealed(sealed, now, "inactivity")
	}
}

// rotate seals the active encounter so nothing read before a rotation
// leaks into the encounters read after it.
func (e *Engine) rotate(path, reason string, now time.Time) {
	e.counts.rotations.Add(1)
	if sealed, ok := e.agg.Seal(e.seg.Reset()); ok {
		e.sealed(sealed, now, "rotation")
	}
	e.log.Info("log rotation detected", "path", path, "reason", reason)
	e.signal(Signal{Kind: SignalRotationDetected, Time: now, Path: path, Reason: reason})
}

func (e *Engine) sealed(s EncounterStats, now time.Time, reason string) {
	e.counts.sealed.Add(1)
	e.notify = true
	e.log.Info("encounter sealed",
		"encounter", s.ID,
		"reason", reason,
		"duration", s.Duration,
		"damage", s.TotalDamage,
		"healing", s.TotalHealing)
	e.signal(Signal{Kind: SignalEncounterSealed, Time: now, EncounterID: s.ID, Reason: reason})
}

func (e *Engine) readFailed(path string, err error, now time.Time) {
	e.counts.readErrs.Add(1)
	if reason := err.Error(); reason != e.lastReadErr {
		e.lastReadErr = reason
		e.log.Warn("combat log unreadable", "path", path, "err", err)
		e.signal(Signal{Kind: SignalUnreadable, Time: now, Path: path, Reason: reason})
	}
}

func (e *Engine) publish() {
	changed := e.agg.Publish()
	if !changed && !e.notify {
		return
	}
	e.notify = false
	if cur, ok := e.agg.Current(); ok {
		e.broadcast(cur)
	}
}

// broadcast replaces whatever a subscriber has not read yet with s.
func (e *Engine) broadcast(s EncounterStats) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
			e.counts.notificationsDropped.Add(1)
		default:
		}
		select {
		case ch <- s:
		default:
			e.counts.notificationsDropped.Add(1)
		}
	}
}

// signal sends non-blocking.
func (e *Engine) signal(s Signal) {
	select {
	case e.signals <- s:
	default:
		// Drop signal if channel is full
		e.counts.signalsDropped.Add(1)
	}
}

func (e *Engine) closeHandle() {
	if e.handle == nil {
		return
	}
	if err := e.handle.Close(); err != nil {
		e.log.Debug("closing combat log", "err", err)
	}
	e.handle = nil
}

// shutdown releases the file and closes every outgoing channel.
func (e *Engine) shutdown() {
	e.closeHandle()
	e.running.Store(false)

	e.subMu.Lock()
	e.subsClosed = true
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
	e.subMu.Unlock()

	close(e.signals)
}
