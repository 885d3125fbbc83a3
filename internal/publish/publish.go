// Package publish mirrors encounter snapshots and engine signals to NATS.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/raidframer/raidlog-go/pkg/raidlog"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "raidlog"

// Subject suffixes below the prefix.
const (
	suffixCurrent = "encounter.current"
	suffixSealed  = "encounter.sealed"
	suffixSignal  = "signal"
)

// CurrentSubject carries every changed snapshot of the current encounter.
func CurrentSubject(prefix string) string {
	return subject(prefix, suffixCurrent)
}

// SealedSubject carries each encounter once, when it seals.
func SealedSubject(prefix string) string {
	return subject(prefix, suffixSealed)
}

// SignalSubject carries engine signals of one kind.
func SignalSubject(prefix string, kind raidlog.SignalKind) string {
	return subject(prefix, suffixSignal+"."+string(kind))
}

func subject(prefix, suffix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "." + suffix
}

// Conn is the part of a NATS connection the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Connect dials NATS with reconnects enabled.
func Connect(url, token string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts := []nats.Option{
		nats.Name("raidlog"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// Lookup resolves a retained encounter by ID.
type Lookup func(id string) (raidlog.EncounterStats, bool)

// Publisher publishes snapshots and signals as JSON.
type Publisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
}

func New(conn Conn, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// PublishSnapshot publishes s on the current-encounter subject.
func (p *Publisher) PublishSnapshot(s raidlog.EncounterStats) error {
	return p.publish(CurrentSubject(p.prefix), s)
}

// PublishSignal publishes sig. A sealed-encounter signal also publishes the
// sealed snapshot when lookup still retains it.
func (p *Publisher) PublishSignal(sig raidlog.Signal, lookup Lookup) error {
	if err := p.publish(SignalSubject(p.prefix, sig.Kind), sig); err != nil {
		return err
	}
	if sig.Kind != raidlog.SignalEncounterSealed || lookup == nil {
		return nil
	}
	snap, ok := lookup(sig.EncounterID)
	if !ok {
		return nil
	}
	return p.publish(SealedSubject(p.prefix), snap)
}

// Run publishes every snapshot received on updates until ctx is done or
// updates is closed. Publish failures are logged, not returned.
func (p *Publisher) Run(ctx context.Context, updates <-chan raidlog.EncounterStats) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			if err := p.PublishSnapshot(s); err != nil {
				p.logger.Warn("publish snapshot failed", "encounter", s.ID, "err", err)
			}
		}
	}
}

func (p *Publisher) publish(subject string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
