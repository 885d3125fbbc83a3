package locator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeLog creates a file and backdates its modification time by age.
func writeLog(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	modTime := time.Now().Add(-age)
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolve_SelectedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "anything.log", 0)

	got, err := Resolve(Options{SelectedPath: path})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Path != path {
		t.Errorf("Resolve() = %v, want %v", got.Path, path)
	}
}

func TestResolve_SelectedMissing(t *testing.T) {
	_, err := Resolve(Options{SelectedPath: "/nonexistent/CombatLog.txt"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() error = %v, want %v", err, ErrNotFound)
	}
}

func TestResolve_NothingConfigured(t *testing.T) {
	_, err := Resolve(Options{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() error = %v, want %v", err, ErrNotFound)
	}
}

func TestResolve_SelectedDirectory(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "CombatLog_old.txt", 2*time.Hour)
	writeLog(t, dir, "CombatLog_new.txt", time.Hour)
	writeLog(t, dir, "notes.txt", 0)

	got, err := Resolve(Options{SelectedPath: dir})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if filepath.Base(got.Path) != "CombatLog_new.txt" {
		t.Errorf("Resolve() = %v, want CombatLog_new.txt", filepath.Base(got.Path))
	}
}

func TestResolve_SearchEverywhere(t *testing.T) {
	t.Setenv(EnvLogDir, "")

	dirA := t.TempDir()
	dirB := t.TempDir()
	writeLog(t, dirA, "CombatLog_a.txt", 3*time.Hour)
	writeLog(t, dirB, "combat_b.log", time.Hour)
	writeLog(t, dirB, "chat.log", 0)

	got, err := Resolve(Options{
		SearchEverywhere: true,
		CandidateDirs:    []string{dirA, "/nonexistent/dir", dirB},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if filepath.Base(got.Path) != "combat_b.log" {
		t.Errorf("Resolve() = %v, want combat_b.log", filepath.Base(got.Path))
	}
}

func TestResolve_SearchEverywhereIgnoresSelectedPath(t *testing.T) {
	t.Setenv(EnvLogDir, "")

	selected := writeLog(t, t.TempDir(), "CombatLog_selected.txt", 0)
	dir := t.TempDir()
	writeLog(t, dir, "CombatLog_scanned.txt", time.Hour)

	got, err := Resolve(Options{
		SelectedPath:     selected,
		SearchEverywhere: true,
		CandidateDirs:    []string{dir},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if filepath.Base(got.Path) != "CombatLog_scanned.txt" {
		t.Errorf("Resolve() = %v, want CombatLog_scanned.txt", filepath.Base(got.Path))
	}
}

func TestResolve_SearchEverywhereNoMatch(t *testing.T) {
	t.Setenv(EnvLogDir, "")

	dir := t.TempDir()
	writeLog(t, dir, "readme.md", 0)

	_, err := Resolve(Options{SearchEverywhere: true, CandidateDirs: []string{dir}})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() error = %v, want %v", err, ErrNotFound)
	}
}

func TestResolve_EnvDir(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "CombatLog_env.txt", 0)
	t.Setenv(EnvLogDir, dir)

	got, err := Resolve(Options{SearchEverywhere: true})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if filepath.Base(got.Path) != "CombatLog_env.txt" {
		t.Errorf("Resolve() = %v, want CombatLog_env.txt", filepath.Base(got.Path))
	}
}

func TestResolve_ReentrantAfterRemoval(t *testing.T) {
	t.Setenv(EnvLogDir, "")

	dir := t.TempDir()
	older := writeLog(t, dir, "CombatLog_1.txt", 2*time.Hour)
	newer := writeLog(t, dir, "CombatLog_2.txt", time.Hour)
	opts := Options{SearchEverywhere: true, CandidateDirs: []string{dir}}

	got, err := Resolve(opts)
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != filepath.Join(resolveDir(dir), "CombatLog_2.txt") {
		t.Fatalf("first Resolve() = %v, want %v", got.Path, newer)
	}

	if err := os.Remove(newer); err != nil {
		t.Fatal(err)
	}

	got, err = Resolve(opts)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if filepath.Base(got.Path) != filepath.Base(older) {
		t.Errorf("second Resolve() = %v, want %v", got.Path, older)
	}

	if err := os.Remove(older); err != nil {
		t.Fatal(err)
	}
	if _, err := Resolve(opts); !errors.Is(err, ErrNotFound) {
		t.Errorf("third Resolve() error = %v, want %v", err, ErrNotFound)
	}
}

func TestResolve_CustomPatterns(t *testing.T) {
	t.Setenv(EnvLogDir, "")

	dir := t.TempDir()
	writeLog(t, dir, "WoWCombatLog-2024.txt", 0)

	got, err := Resolve(Options{
		SearchEverywhere: true,
		CandidateDirs:    []string{dir},
		Patterns:         []string{"WoWCombatLog*.txt"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if filepath.Base(got.Path) != "WoWCombatLog-2024.txt" {
		t.Errorf("Resolve() = %v", got.Path)
	}
}

func TestResolve_InvalidPattern(t *testing.T) {
	_, err := Resolve(Options{SelectedPath: t.TempDir(), Patterns: []string{"[abc"}})
	if err == nil {
		t.Error("Resolve() expected error for invalid pattern")
	}
}

func TestResolveDir_NotExists(t *testing.T) {
	if resolved := resolveDir("/nonexistent/path"); resolved != "" {
		t.Error("resolveDir() = non-empty, want empty for nonexistent path")
	}
}
