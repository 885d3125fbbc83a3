// Package parser turns raw combat-log lines into typed events.
//
// Every grammar implements Parser. Parsing never fails: a line that cannot be
// classified becomes an event of kind event.Unrecognized, so malformed or
// future-format lines never halt ingestion.
package parser

import (
	"time"

	"github.com/raidframer/raidlog-go/pkg/raidlog/event"
)

// Parser converts a raw line into a combat event.
// Implementations must be safe for concurrent use and keep no per-line state.
type Parser interface {
	Parse(line event.RawLine) event.Event
}

// Chain tries parsers in order and returns the first recognized event.
type Chain []Parser

// Parse implements Parser.
func (c Chain) Parse(line event.RawLine) event.Event {
	for _, p := range c {
		if ev := p.Parse(line); ev.Recognized() {
			return ev
		}
	}
	return event.Unrecognize(line)
}

// Option configures the built-in grammars.
type Option func(*options)

type options struct {
	selfName string
	loc      *time.Location
}

func defaultOptions() options {
	return options{selfName: "You", loc: time.Local}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithSelfName sets the name substituted for "You"/"Your" in first-person lines.
func WithSelfName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.selfName = name
		}
	}
}

// WithLocation sets the time zone of timestamps written without an offset.
// Default: time.Local.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}
