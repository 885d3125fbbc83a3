package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raidframer/raidlog-go/internal/api"
	"github.com/raidframer/raidlog-go/internal/config"
	"github.com/raidframer/raidlog-go/internal/publish"
	"github.com/raidframer/raidlog-go/pkg/raidlog"
)

var (
	// watch flags
	watchLogPath          string
	watchSearchEverywhere bool
	watchDirs             []string
	watchTimeout          time.Duration
	watchPoll             time.Duration
	watchRefresh          time.Duration
	watchFormat           string
	watchIncludes         []string
	watchExcludes         []string
	watchHTTP             string
	watchNATS             string
	watchFromStart        bool
	watchSince            time.Duration
	watchGrammar          string
	watchSelfName         string
	watchMergePets        bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the active combat log and show live encounter stats",
	Long: `Follow the active combat log, split it into encounters and print the
current encounter's statistics as they change.

Problems such as a missing log or a rotated file are printed to stderr as
warnings; watch keeps retrying until interrupted.

Examples:
  # Follow the newest log in the usual game directories
  raidlog watch --search-everywhere

  # Follow one file, reading it from the start
  raidlog watch --log-path ~/Games/RaidGame/Logs/CombatLog.txt --from-start

  # Ignore training dummies and serve the query API
  raidlog watch --exclude "Training Dummy*" --http

  # Only count players
  raidlog watch --exclude "npc:*,pet:*"

  # Stream snapshots as JSON Lines and mirror them to NATS
  raidlog watch --format jsonl --nats-url nats://127.0.0.1:4222`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchLogPath, "log-path", "l", "",
		"Combat log file, or a directory holding log files")
	watchCmd.Flags().BoolVar(&watchSearchEverywhere, "search-everywhere", false,
		"Scan the candidate directories for the newest log")
	watchCmd.Flags().StringSliceVarP(&watchDirs, "dir", "d", nil,
		"Candidate directory for --search-everywhere (repeatable)")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0,
		"Inactivity timeout that seals an encounter (default from config, 30s)")
	watchCmd.Flags().DurationVar(&watchPoll, "poll", 0,
		"Log poll interval (default from config, 250ms)")
	watchCmd.Flags().DurationVar(&watchRefresh, "refresh", time.Second,
		"How often the display is redrawn")
	watchCmd.Flags().StringVarP(&watchFormat, "format", "f", "table",
		"Output format: table, jsonl")
	watchCmd.Flags().StringSliceVar(&watchExcludes, "exclude", nil,
		"Actor name globs to leave out of the statistics, optionally kind-prefixed (npc:Training*)")
	watchCmd.Flags().StringSliceVar(&watchIncludes, "include", nil,
		"Actor name globs re-admitted after --exclude, optionally kind-prefixed (pet:*)")
	watchCmd.Flags().StringVar(&watchHTTP, "http", "",
		"Serve the query API on this address")
	watchCmd.Flags().Lookup("http").NoOptDefVal = config.DefaultHTTPAddr
	watchCmd.Flags().StringVar(&watchNATS, "nats-url", "",
		"Publish snapshots and signals to this NATS server")
	watchCmd.Flags().BoolVar(&watchFromStart, "from-start", false,
		"Read the first log from its beginning instead of its end")
	watchCmd.Flags().DurationVar(&watchSince, "since", 0,
		"Rebuild recent encounters: read the first log from its beginning, ignoring events older than this (e.g. 5m)")
	watchCmd.Flags().StringVar(&watchGrammar, "grammar", "",
		"YAML grammar file tried before the built-in grammar")
	watchCmd.Flags().StringVar(&watchSelfName, "self-name", "",
		"Player name that first-person lines refer to")
	watchCmd.Flags().BoolVar(&watchMergePets, "merge-pets", false,
		"Credit pet output to the owning player")

	_ = watchCmd.RegisterFlagCompletionFunc("format", completeFormats(ValidSnapshotFormats))
	_ = watchCmd.RegisterFlagCompletionFunc("include", completeActorRules)
	_ = watchCmd.RegisterFlagCompletionFunc("exclude", completeActorRules)
}

// applyWatchFlags overrides config values with the flags that were set.
func applyWatchFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-path") {
		cfg.SelectedPath = watchLogPath
	}
	if flags.Changed("search-everywhere") {
		cfg.SearchEverywhere = watchSearchEverywhere
	}
	if flags.Changed("dir") {
		cfg.CandidateDirs = watchDirs
		cfg.SearchEverywhere = true
	}
	if flags.Changed("timeout") {
		cfg.InactivityTimeout = watchTimeout
	}
	if flags.Changed("poll") {
		cfg.PollInterval = watchPoll
	}
	if flags.Changed("http") {
		cfg.HTTP.Addr = watchHTTP
	}
	if flags.Changed("nats-url") {
		cfg.NATS.URL = watchNATS
	}
	if flags.Changed("grammar") {
		cfg.GrammarFile = watchGrammar
	}
	if flags.Changed("self-name") {
		cfg.SelfName = watchSelfName
	}
	if flags.Changed("merge-pets") {
		cfg.MergePets = watchMergePets
	}
	cfg.Filters = append(cfg.Filters, actorRules(watchIncludes, watchExcludes)...)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !ValidSnapshotFormats[watchFormat] {
		return fmt.Errorf("invalid format %q: must be one of: table, jsonl", watchFormat)
	}
	if watchRefresh <= 0 {
		return fmt.Errorf("--refresh must be positive, got %v", watchRefresh)
	}
	if watchSince < 0 {
		return fmt.Errorf("--since must not be negative, got %v", watchSince)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyWatchFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger()

	opts := append(cfg.EngineOptions(),
		raidlog.WithReplayFromStart(watchFromStart),
		raidlog.WithLogger(logger))
	if watchSince > 0 {
		opts = append(opts, raidlog.WithReplaySince(time.Now().Add(-watchSince)))
	}
	engine, err := raidlog.New(opts...)
	if err != nil {
		return err
	}

	// Setup context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	if cfg.HTTP.Addr != "" {
		srv := api.NewServer(engine, logger)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.HTTP.Addr); err != nil {
				logger.Error("query API stopped", "err", err)
			}
		}()
	}

	var pub *publish.Publisher
	if cfg.NATS.URL != "" {
		nc, err := publish.Connect(cfg.NATS.URL, cfg.NATS.Token, logger)
		if err != nil {
			return err
		}
		defer nc.Drain()

		pub = publish.New(nc, cfg.NATS.SubjectPrefix, logger)
		updates, unsubscribe := engine.Subscribe()
		defer unsubscribe()
		go pub.Run(ctx, updates)
	}

	return watchLoop(ctx, engine, pub, watchRefresh, os.Stdout, os.Stderr, logger)
}

// watchLoop renders the current snapshot every refresh when it changed and
// reports signals until ctx is done or the engine stops.
func watchLoop(ctx context.Context, engine *raidlog.Engine, pub *publish.Publisher, refresh time.Duration, out, errOut io.Writer, logger *slog.Logger) error {
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	var last renderKey
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-engine.Done():
			return nil

		case sig, ok := <-engine.Signals():
			if !ok {
				return nil
			}
			reportSignal(sig, errOut)
			if pub != nil {
				if err := pub.PublishSignal(sig, engine.Snapshot); err != nil {
					logger.Warn("publish signal failed", "err", err)
				}
			}

		case <-ticker.C:
			snap, ok := engine.CurrentSnapshot()
			if !ok {
				continue
			}
			key := keyOf(snap)
			if key == last {
				continue
			}
			last = key
			if watchFormat == "table" {
				fmt.Fprintln(out)
			}
			if err := OutputSnapshot(watchFormat, snap, out); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
		}
	}
}

// renderKey identifies a snapshot version well enough to skip redraws.
type renderKey struct {
	id     string
	state  raidlog.EncounterState
	events int
	end    time.Time
}

func keyOf(s raidlog.EncounterStats) renderKey {
	return renderKey{id: s.ID, state: s.State, events: s.EventCount, end: s.End}
}

// reportSignal prints a signal as a warning line.
func reportSignal(sig raidlog.Signal, w io.Writer) {
	switch sig.Kind {
	case raidlog.SignalSourceOpened, raidlog.SignalEncounterSealed:
		fmt.Fprintf(w, "info: %s\n", sig)
	default:
		fmt.Fprintf(w, "warning: %s\n", sig)
	}
}
