// Package segment splits an ordered event stream into encounters using an
// inactivity timeout.
//
// The segmenter is a two-state machine (Idle, Active). It owns no encounter
// data; it only decides, per event, whether the current encounter must be
// sealed, whether a new one opens, and whether the event belongs to it. The
// caller applies the decision in that order. Given the same event sequence the
// decisions are identical, which makes replay deterministic.
package segment

import (
	"time"

	"github.com/raidframer/raidlog-go/pkg/raidlog/event"
)

// DefaultTimeout is the inactivity window after which an encounter seals.
const DefaultTimeout = 30 * time.Second

// State is the segmenter state.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Config configures a Segmenter.
type Config struct {
	// Timeout is the inactivity window. Zero means DefaultTimeout.
	Timeout time.Duration

	// Extends reports whether an event kind opens or extends an encounter.
	// Nil means event.Event.Qualifies.
	Extends func(event.Kind) bool
}

// ExtendOn returns an Extends func accepting exactly the given kinds.
// Unrecognized and death are never accepted.
func ExtendOn(kinds ...event.Kind) func(event.Kind) bool {
	set := make(map[event.Kind]bool, len(kinds))
	for _, k := range kinds {
		if k != event.Unrecognized && k != event.Death {
			set[k] = true
		}
	}
	return func(k event.Kind) bool { return set[k] }
}

// Decision tells the caller how to apply one step.
type Decision struct {
	// Seal closes the active encounter. SealAt is its last qualifying
	// timestamp; the encounter never ends before it.
	Seal   bool
	SealAt time.Time

	// Open starts a new encounter at the event's timestamp.
	Open bool

	// Attach adds the event to the (possibly just opened) encounter.
	Attach bool
}

// IsZero reports whether the decision changes nothing.
func (d Decision) IsZero() bool {
	return !d.Seal && !d.Open && !d.Attach
}

// Segmenter is not safe for concurrent use.
type Segmenter struct {
	timeout time.Duration
	extends func(event.Kind) bool

	state State
	// lastEvent is the timestamp of the last qualifying event.
	lastEvent time.Time
	// lastSeen is the wall-clock time that event was observed.
	lastSeen time.Time
}

// New returns an idle Segmenter.
func New(cfg Config) *Segmenter {
	s := &Segmenter{timeout: cfg.Timeout, extends: cfg.Extends}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.extends == nil {
		s.extends = func(k event.Kind) bool { return event.Event{Kind: k}.Qualifies() }
	}
	return s
}

// State returns the current state.
func (s *Segmenter) State() State { return s.state }

// Timeout returns the configured inactivity window.
func (s *Segmenter) Timeout() time.Duration { return s.timeout }

// LastEvent returns the timestamp of the last qualifying event, zero when idle.
func (s *Segmenter) LastEvent() time.Time {
	if s.state == Idle {
		return time.Time{}
	}
	return s.lastEvent
}

// Observe feeds one event in file order. now is the wall-clock time the event
// was read and only feeds Expire.
func (s *Segmenter) Observe(ev event.Event, now time.Time) Decision {
	if !ev.Recognized() {
		return Decision{}
	}

	var d Decision
	if s.state == Active && ev.Timestamp.Sub(s.lastEvent) > s.timeout {
		d.Seal = true
		d.SealAt = s.lastEvent
		s.state = Idle
	}

	qualifies := s.extends(ev.Kind)
	switch s.state {
	case Idle:
		if !qualifies {
			return d
		}
		s.state = Active
		d.Open = true
		d.Attach = true
	case Active:
		d.Attach = true
	}

	// Out-of-order timestamps never move the deadline backwards.
	if d.Open || (qualifies && ev.Timestamp.After(s.lastEvent)) {
		s.lastEvent = ev.Timestamp
	}
	if qualifies {
		s.lastSeen = now
	}
	return d
}

// Expire seals the active encounter when no qualifying event was observed
// for longer than the timeout of wall-clock time. The seal time is still the
// last event's timestamp.
func (s *Segmenter) Expire(now time.Time) Decision {
	if s.state != Active || now.Sub(s.lastSeen) <= s.timeout {
		return Decision{}
	}
	s.state = Idle
	return Decision{Seal: true, SealAt: s.lastEvent}
}

// Reset forces the segmenter idle, sealing any active encounter. It is used
// when the underlying log is rotated or replaced.
func (s *Segmenter) Reset() Decision {
	if s.state != Active {
		return Decision{}
	}
	s.state = Idle
	return Decision{Seal: true, SealAt: s.lastEvent}
}
