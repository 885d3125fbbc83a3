package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raidframer/raidlog-go/internal/config"
	"github.com/raidframer/raidlog-go/internal/locator"
	"github.com/raidframer/raidlog-go/internal/parser"
	"github.com/raidframer/raidlog-go/internal/tailer"
	"github.com/raidframer/raidlog-go/pkg/raidlog"
)

var (
	// events flags
	eventsFormat       string
	eventsIncludeKinds []string
	eventsExcludeKinds []string
	eventsSince        string
	eventsUntil        string
	eventsFollow       bool
	eventsFromStart    bool
	eventsUnrecognized bool
	eventsSelfName     string
	eventsGrammar      string
)

var eventsCmd = &cobra.Command{
	Use:   "events [file]",
	Short: "Print parsed combat events",
	Long: `Parse a combat log and print one event per line.

Events are output as JSON Lines by default (one JSON object per line),
which makes it easy to process with tools like jq. Without a file argument
the log is resolved from the config file (selected_path or
search_everywhere).

Examples:
  # Parse a finished log
  raidlog events CombatLog.txt

  # Only damage and deaths
  raidlog events CombatLog.txt --include-kinds damage,death

  # Follow the active log like tail -F
  raidlog events --follow --format pretty

  # Also show lines the grammar did not recognize
  raidlog events CombatLog.txt --unrecognized

  # Pipe to jq for filtering
  raidlog events CombatLog.txt | jq 'select(.critical)'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().StringVarP(&eventsFormat, "format", "f", "jsonl",
		"Output format: jsonl, pretty")
	eventsCmd.Flags().StringSliceVar(&eventsIncludeKinds, "include-kinds", nil,
		"Event kinds to include (comma-separated: damage,heal,death)")
	eventsCmd.Flags().StringSliceVar(&eventsExcludeKinds, "exclude-kinds", nil,
		"Event kinds to exclude (comma-separated)")
	eventsCmd.Flags().StringVar(&eventsSince, "since", "",
		"Only events at/after timestamp (RFC3339 format, e.g., 2024-01-15T12:00:00Z)")
	eventsCmd.Flags().StringVar(&eventsUntil, "until", "",
		"Only events before timestamp (RFC3339 format)")
	eventsCmd.Flags().BoolVarP(&eventsFollow, "follow", "F", false,
		"Keep reading as the log grows, reopening it when rotated")
	eventsCmd.Flags().BoolVar(&eventsFromStart, "from-start", false,
		"With --follow, print existing content before following")
	eventsCmd.Flags().BoolVar(&eventsUnrecognized, "unrecognized", false,
		"Also print lines the grammar could not classify")
	eventsCmd.Flags().StringVar(&eventsSelfName, "self-name", "",
		"Player name that first-person lines refer to")
	eventsCmd.Flags().StringVar(&eventsGrammar, "grammar", "",
		"YAML grammar file tried before the built-in grammar")

	_ = eventsCmd.RegisterFlagCompletionFunc("include-kinds", completeKinds("include-kinds"))
	_ = eventsCmd.RegisterFlagCompletionFunc("exclude-kinds", completeKinds("exclude-kinds"))
	_ = eventsCmd.RegisterFlagCompletionFunc("format", completeFormats(ValidFormats))
}

func runEvents(cmd *cobra.Command, args []string) error {
	// Validate format
	if !ValidFormats[eventsFormat] {
		return fmt.Errorf("invalid format %q: must be one of: jsonl, pretty", eventsFormat)
	}

	includes, err := NormalizeKinds(eventsIncludeKinds)
	if err != nil {
		return err
	}
	excludes, err := NormalizeKinds(eventsExcludeKinds)
	if err != nil {
		return err
	}
	if err := RejectOverlap(includes, excludes); err != nil {
		return err
	}

	sinceTime, untilTime, err := parseTimeRange(eventsSince, eventsUntil)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if eventsSelfName != "" {
		cfg.SelfName = eventsSelfName
	}
	if eventsGrammar != "" {
		cfg.GrammarFile = eventsGrammar
	}

	p, err := buildParser(cfg)
	if err != nil {
		return err
	}

	path, err := resolveLogPath(cfg, args)
	if err != nil {
		return err
	}

	// Setup context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if eventsFollow {
		sel := eventSelector{
			include:      includes,
			exclude:      excludes,
			since:        sinceTime,
			until:        untilTime,
			unrecognized: eventsUnrecognized,
		}
		return followEvents(ctx, path, p, sel, os.Stdout)
	}

	opts := []raidlog.ParseOption{
		raidlog.WithParseParser(p),
		raidlog.WithParseFilter(includes, excludes),
		raidlog.WithParseIncludeUnrecognized(eventsUnrecognized),
	}
	if !sinceTime.IsZero() || !untilTime.IsZero() {
		opts = append(opts, raidlog.WithParseTimeRange(sinceTime, untilTime))
	}

	for ev, err := range raidlog.ParseFile(ctx, path, opts...) {
		if err != nil {
			// Ctrl+C: exit silently
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("parse error: %w", err)
		}
		if err := OutputEvent(eventsFormat, ev, os.Stdout); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}
	return nil
}

// eventSelector applies the events command's filters in follow mode.
type eventSelector struct {
	include, exclude []raidlog.Kind
	since, until     time.Time
	unrecognized     bool
}

func (s eventSelector) allows(ev raidlog.Event) bool {
	if !ev.Recognized() && !s.unrecognized {
		return false
	}
	if slices.Contains(s.exclude, ev.Kind) {
		return false
	}
	if len(s.include) > 0 && !slices.Contains(s.include, ev.Kind) {
		return false
	}
	if !ev.Recognized() {
		return true
	}
	if !s.since.IsZero() && ev.Timestamp.Before(s.since) {
		return false
	}
	if !s.until.IsZero() && !ev.Timestamp.Before(s.until) {
		return false
	}
	return true
}

func followEvents(ctx context.Context, path string, p raidlog.Parser, sel eventSelector, w io.Writer) error {
	fcfg := tailer.DefaultFollowConfig()
	fcfg.FromStart = eventsFromStart

	f, err := tailer.Follow(ctx, path, fcfg)
	if err != nil {
		return err
	}
	defer f.Stop()

	for {
		select {
		case line, ok := <-f.Lines():
			if !ok {
				return nil
			}
			ev := p.Parse(line)
			if !sel.allows(ev) {
				continue
			}
			if err := OutputEvent(eventsFormat, ev, w); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
		case err, ok := <-f.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		case <-ctx.Done():
			return nil
		}
	}
}

// buildParser returns the grammar chain configured by cfg.
func buildParser(cfg config.Config) (raidlog.Parser, error) {
	var opts []parser.Option
	if cfg.SelfName != "" {
		opts = append(opts, parser.WithSelfName(cfg.SelfName))
	}
	text := parser.NewText(opts...)
	if cfg.GrammarFile == "" {
		return text, nil
	}
	custom, err := parser.LoadPatternFile(cfg.GrammarFile, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading grammar: %w", err)
	}
	return parser.Chain{custom, text}, nil
}

// resolveLogPath returns the file argument, or the log the locator resolves
// from cfg.
func resolveLogPath(cfg config.Config, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	opts := locator.Options{
		SelectedPath:     cfg.SelectedPath,
		SearchEverywhere: cfg.SearchEverywhere,
		CandidateDirs:    cfg.CandidateDirs,
		Patterns:         cfg.Patterns,
	}
	if opts.SearchEverywhere && len(opts.CandidateDirs) == 0 {
		opts.CandidateDirs = locator.DefaultCandidateDirs()
	}
	cand, err := locator.Resolve(opts)
	if err != nil {
		return "", fmt.Errorf("no log file given: %w", err)
	}
	return cand.Path, nil
}

// parseTimeRange parses since and until strings into time.Time values.
func parseTimeRange(since, until string) (time.Time, time.Time, error) {
	var sinceTime, untilTime time.Time
	var err error

	if since != "" {
		sinceTime, err = time.Parse(time.RFC3339, since)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --since format: %w (expected RFC3339, e.g., 2024-01-15T12:00:00Z)", err)
		}
	}

	if until != "" {
		untilTime, err = time.Parse(time.RFC3339, until)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --until format: %w (expected RFC3339, e.g., 2024-01-15T12:00:00Z)", err)
		}
	}

	// Validate that since is before until
	if !sinceTime.IsZero() && !untilTime.IsZero() && sinceTime.After(untilTime) {
		return time.Time{}, time.Time{}, fmt.Errorf("--since must be before --until")
	}

	return sinceTime, untilTime, nil
}
