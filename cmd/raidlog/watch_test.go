package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/raidframer/raidlog-go/internal/config"
	"github.com/raidframer/raidlog-go/pkg/raidlog"
)

// newWatchFlagCmd returns a command carrying the watch flags bound to the
// package variables, restoring them when the test ends.
func newWatchFlagCmd(t *testing.T) *cobra.Command {
	t.Helper()
	origPath, origDirs := watchLogPath, watchDirs
	origTimeout, origHTTP := watchTimeout, watchHTTP
	origIncludes, origExcludes := watchIncludes, watchExcludes
	origMerge := watchMergePets
	t.Cleanup(func() {
		watchLogPath, watchDirs = origPath, origDirs
		watchTimeout, watchHTTP = origTimeout, origHTTP
		watchIncludes, watchExcludes = origIncludes, origExcludes
		watchMergePets = origMerge
	})

	cmd := &cobra.Command{}
	cmd.Flags().StringVarP(&watchLogPath, "log-path", "l", "", "")
	cmd.Flags().StringSliceVarP(&watchDirs, "dir", "d", nil, "")
	cmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "")
	cmd.Flags().StringVar(&watchHTTP, "http", "", "")
	cmd.Flags().Lookup("http").NoOptDefVal = config.DefaultHTTPAddr
	cmd.Flags().StringSliceVar(&watchExcludes, "exclude", nil, "")
	cmd.Flags().StringSliceVar(&watchIncludes, "include", nil, "")
	cmd.Flags().BoolVar(&watchMergePets, "merge-pets", false, "")
	return cmd
}

func TestApplyWatchFlags(t *testing.T) {
	cmd := newWatchFlagCmd(t)
	err := cmd.ParseFlags([]string{
		"--dir", "/games/a,/games/b",
		"--timeout", "10s",
		"--http",
		"--exclude", "Training*",
		"--include", "Training Partner",
	})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg := config.Default()
	cfg.SelectedPath = "/from/config.txt"
	cfg.MergePets = true
	cfg.Filters = []raidlog.FilterRule{{Pattern: "Boss", Action: raidlog.FilterExclude}}
	applyWatchFlags(cmd, &cfg)

	if !cfg.SearchEverywhere || !slices.Equal(cfg.CandidateDirs, []string{"/games/a", "/games/b"}) {
		t.Errorf("dirs = %v (search everywhere %v)", cfg.CandidateDirs, cfg.SearchEverywhere)
	}
	if cfg.InactivityTimeout != 10*time.Second {
		t.Errorf("InactivityTimeout = %v, want 10s", cfg.InactivityTimeout)
	}
	if cfg.HTTP.Addr != config.DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.HTTP.Addr, config.DefaultHTTPAddr)
	}
	if cfg.SelectedPath != "/from/config.txt" {
		t.Errorf("SelectedPath overridden by unset flag: %q", cfg.SelectedPath)
	}
	if !cfg.MergePets {
		t.Error("MergePets overridden by unset flag")
	}

	want := []raidlog.FilterRule{
		{Pattern: "Boss", Action: raidlog.FilterExclude},
		{Pattern: "Training*", Action: raidlog.FilterExclude},
		{Pattern: "Training Partner", Action: raidlog.FilterInclude},
	}
	if !slices.Equal(cfg.Filters, want) {
		t.Errorf("Filters = %+v, want %+v", cfg.Filters, want)
	}
}

func TestApplyWatchFlags_NoneSet(t *testing.T) {
	cmd := newWatchFlagCmd(t)
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	applyWatchFlags(cmd, &cfg)

	def := config.Default()
	if cfg.InactivityTimeout != def.InactivityTimeout || cfg.HTTP.Addr != "" || len(cfg.Filters) != 0 {
		t.Errorf("applyWatchFlags() changed defaults: %+v", cfg)
	}
}

func TestRunWatchInvalidFormat(t *testing.T) {
	orig := watchFormat
	defer func() { watchFormat = orig }()

	watchFormat = "pretty"
	err := runWatch(watchCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("runWatch() error = %v, want invalid format", err)
	}
}

func TestRunWatchInvalidRefresh(t *testing.T) {
	origFormat, origRefresh := watchFormat, watchRefresh
	defer func() { watchFormat, watchRefresh = origFormat, origRefresh }()

	watchFormat = "table"
	watchRefresh = 0
	err := runWatch(watchCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "--refresh") {
		t.Errorf("runWatch() error = %v, want refresh error", err)
	}
}

func TestRunWatchNegativeSince(t *testing.T) {
	origFormat, origRefresh, origSince := watchFormat, watchRefresh, watchSince
	defer func() { watchFormat, watchRefresh, watchSince = origFormat, origRefresh, origSince }()

	watchFormat = "table"
	watchRefresh = time.Second
	watchSince = -time.Minute
	err := runWatch(watchCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "--since") {
		t.Errorf("runWatch() error = %v, want since error", err)
	}
}

func TestReportSignal(t *testing.T) {
	tests := []struct {
		sig  raidlog.Signal
		want string
	}{
		{raidlog.Signal{Kind: raidlog.SignalSourceOpened, Path: "/logs/a.txt"}, "info: source_opened /logs/a.txt\n"},
		{raidlog.Signal{Kind: raidlog.SignalEncounterSealed, EncounterID: "abc"}, "info: encounter_sealed abc\n"},
		{raidlog.Signal{Kind: raidlog.SignalLocatorFailed, Reason: "not found"}, "warning: locator_failed: not found\n"},
		{raidlog.Signal{Kind: raidlog.SignalRotationDetected, Path: "/logs/a.txt", Reason: "truncated"}, "warning: rotation_detected /logs/a.txt: truncated\n"},
	}

	for _, tt := range tests {
		t.Run(string(tt.sig.Kind), func(t *testing.T) {
			var buf bytes.Buffer
			reportSignal(tt.sig, &buf)
			if buf.String() != tt.want {
				t.Errorf("reportSignal() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestKeyOf(t *testing.T) {
	a := sampleSnapshot()
	b := a
	if keyOf(a) != keyOf(b) {
		t.Error("identical snapshots should share a key")
	}
	b.EventCount++
	if keyOf(a) == keyOf(b) {
		t.Error("event count change should change the key")
	}
	b = a
	b.State = raidlog.EncounterActive
	if keyOf(a) == keyOf(b) {
		t.Error("state change should change the key")
	}
}

func TestWatchLoop(t *testing.T) {
	orig := watchFormat
	defer func() { watchFormat = orig }()
	watchFormat = "jsonl"

	path := filepath.Join(t.TempDir(), "CombatLog.txt")
	content := "2024-01-15 20:00:00 Alice hits Ogre Chieftain for 100\n" +
		"2024-01-15 20:00:01 Bob heals Alice for 50\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	engine, err := raidlog.New(
		raidlog.WithSelectedPath(path),
		raidlog.WithReplayFromStart(true),
		raidlog.WithPollInterval(10*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer engine.Stop()

	var out, errOut bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := watchLoop(ctx, engine, nil, 20*time.Millisecond, &out, &errOut, logger); err != nil {
		t.Fatalf("watchLoop() error = %v", err)
	}

	if !strings.Contains(errOut.String(), "info: source_opened") {
		t.Errorf("stderr = %q, want source_opened notice", errOut.String())
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) == 0 || lines[0] == "" {
		t.Fatal("watchLoop() rendered nothing")
	}
	var last raidlog.EncounterStats
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("invalid JSON %q: %v", lines[len(lines)-1], err)
	}
	if last.TotalDamage != 100 || last.TotalHealing != 50 {
		t.Errorf("last snapshot = %+v", last)
	}
}
