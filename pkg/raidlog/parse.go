package raidlog

import (
	"bufio"
	"context"
	"errors"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/raidframer/raidlog-go/internal/aggregate"
	"github.com/raidframer/raidlog-go/internal/parser"
	"github.com/raidframer/raidlog-go/internal/segment"
)

// defaultParser is the grammar used by ParseLine.
var defaultParser = parser.NewText()

// ParseLine parses a single combat log line with the built-in grammar.
// It never fails: a line the grammar does not recognize yields an event of
// kind KindUnrecognized carrying the raw text.
//
// Example:
//
//	ev := raidlog.ParseLine("2024-01-15 20:00:00 Alice hits Ogre for 100")
//	if ev.Kind == raidlog.KindDamage {
//	    fmt.Printf("%s dealt %d\n", ev.Source.Name, ev.Amount)
//	}
func ParseLine(line string) Event {
	return defaultParser.Parse(RawLine{Text: line})
}

// ParseFile parses a combat log file and returns an iterator over events.
// The file is opened lazily on first iteration, so the returned iterator
// is cheap to create but must be consumed to release resources.
//
// Lines are numbered like the live tailer numbers them: blank lines are
// skipped and do not consume a sequence number. Unrecognized lines are
// skipped unless WithParseIncludeUnrecognized is set.
//
// The iterator yields (Event, error) pairs. When an error occurs:
//   - File open errors: yields (Event{}, error) once and stops
//   - Context cancellation: yields (Event{}, ctx.Err()) and stops
//
// Example:
//
//	for ev, err := range raidlog.ParseFile(ctx, "CombatLog.txt") {
//	    if err != nil {
//	        log.Printf("error: %v", err)
//	        break
//	    }
//	    fmt.Printf("event: %+v\n", ev)
//	}
func ParseFile(ctx context.Context, path string, opts ...ParseOption) iter.Seq2[Event, error] {
	// Validate path upfront
	if path == "" {
		return func(yield func(Event, error) bool) {
			yield(Event{}, errors.New("raidlog: path required"))
		}
	}

	cfg := applyParseOptions(opts)

	return func(yield func(Event, error) bool) {
		for line, err := range scanLines(ctx, path) {
			if err != nil {
				yield(Event{}, err)
				return
			}

			ev := cfg.parser.Parse(line)
			if !cfg.keeps(ev) {
				continue
			}
			if !yield(ev, nil) {
				return // Consumer requested stop (break)
			}
		}
	}
}

// ParseFileAll is a convenience function that parses a log file and collects
// all events into a slice. Stops on first error and returns events collected so far.
//
// For large files, consider using ParseFile directly to avoid loading all events
// into memory at once.
func ParseFileAll(ctx context.Context, path string, opts ...ParseOption) ([]Event, error) {
	seq := ParseFile(ctx, path, opts...)
	events := make([]Event, 0, 256)

	for ev, err := range seq {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// Replay segments and aggregates a whole log file offline, the same way the
// engine does live, and returns every encounter oldest first. The last
// encounter is still active when the file ends inside it.
//
// Options that only affect live reading (locator, poll cadence, history
// size) are ignored; every encounter is returned. WithReplaySince drops
// events before its time here too. The result depends only
// on the file content, so replaying the same file twice yields identical
// statistics and encounter IDs.
func Replay(ctx context.Context, path string, opts ...Option) ([]EncounterStats, error) {
	cfg := applyOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p, err := cfg.buildParser()
	if err != nil {
		return nil, err
	}
	rules, err := cfg.compileRules()
	if err != nil {
		return nil, err
	}

	seg := segment.New(cfg.segmentConfig())
	agg := aggregate.New(aggregate.Config{HistorySize: 1, MergePets: cfg.mergePets, Filter: rules})

	var out []EncounterStats
	for ev, err := range ParseFile(ctx, path, WithParseParser(p), WithParseSince(cfg.since)) {
		if err != nil {
			return out, err
		}
		// Wall-clock expiry never runs offline, so the clock argument is unused.
		if sealed, ok := agg.Ingest(ev, seg.Observe(ev, time.Time{})); ok {
			out = append(out, sealed)
		}
	}

	if agg.Publish() || agg.Active() {
		if cur, ok := agg.Current(); ok && cur.Active() {
			out = append(out, cur)
		}
	}
	return out, nil
}

// maxLineSize bounds a single line in offline parsing.
const maxLineSize = 1 << 20

// scanLines yields the non-blank lines of a file, numbered from 1, with
// CRLF endings and invalid UTF-8 normalized the way the tailer does.
func scanLines(ctx context.Context, path string) iter.Seq2[RawLine, error] {
	return func(yield func(RawLine, error) bool) {
		// Lazy file open
		file, err := os.Open(path)
		if err != nil {
			yield(RawLine{}, err)
			return
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		// Increase buffer size for long lines
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, maxLineSize)

		var seq uint64
		for scanner.Scan() {
			// Context cancellation check
			if err := ctx.Err(); err != nil {
				yield(RawLine{}, err)
				return
			}

			text := strings.ToValidUTF8(strings.TrimRight(scanner.Text(), "\r"), "�")
			if strings.TrimSpace(text) == "" {
				continue
			}
			seq++
			if !yield(RawLine{Seq: seq, Text: text}, nil) {
				return
			}
		}

		// Check for scanner errors
		if err := scanner.Err(); err != nil {
			yield(RawLine{}, err)
		}
	}
}
