package tailer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFollower_NewLines(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "CombatLog.txt")

	f, err := os.Create(logFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	follower, err := Follow(ctx, logFile, DefaultFollowConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer follower.Stop()

	// Give the follower a moment to start watching
	time.Sleep(100 * time.Millisecond)

	lines := []string{"A hits B for 1", "A hits B for 2", "A hits B for 3"}
	for i, want := range lines {
		f.WriteString(want + "\n")
		f.Sync()

		select {
		case got := <-follower.Lines():
			if got.Text != want {
				t.Errorf("line %d: got %q, want %q", i, got.Text, want)
			}
			if got.Seq != uint64(i+1) {
				t.Errorf("line %d: seq = %d, want %d", i, got.Seq, i+1)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for line %d: %q", i, want)
		}
	}
}

func TestFollower_FromStartNoFollow(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "CombatLog.txt")

	if err := os.WriteFile(logFile, []byte("existing1\n\nexisting2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := DefaultFollowConfig()
	cfg.FromStart = true
	cfg.Follow = false
	cfg.ReOpen = false

	follower, err := Follow(ctx, logFile, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer follower.Stop()

	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-follower.Lines():
			if !ok {
				if len(got) != 2 || got[0] != "existing1" || got[1] != "existing2" {
					t.Errorf("got %q, want [existing1 existing2]", got)
				}
				return
			}
			got = append(got, line.Text)
		case <-timeout:
			t.Fatalf("timeout; got %q so far", got)
		}
	}
}

func TestFollower_StopMultipleTimes(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "CombatLog.txt")

	if err := os.WriteFile(logFile, nil, 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	follower, err := Follow(ctx, logFile, DefaultFollowConfig())
	if err != nil {
		t.Fatal(err)
	}

	if err := follower.Stop(); err != nil {
		t.Errorf("first Stop() error = %v", err)
	}
	if err := follower.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}

	select {
	case _, ok := <-follower.Lines():
		if ok {
			t.Error("expected Lines channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for Lines channel to close")
	}
}

func TestFollower_ContextCancel(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "CombatLog.txt")

	if err := os.WriteFile(logFile, nil, 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	follower, err := Follow(ctx, logFile, DefaultFollowConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer follower.Stop()

	cancel()

	select {
	case _, ok := <-follower.Lines():
		if ok {
			t.Error("expected Lines channel to be closed after context cancel")
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for Lines channel to close")
	}
}

func TestFollower_FileNotExists(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := Follow(ctx, "/nonexistent/path/CombatLog.txt", DefaultFollowConfig())
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}
