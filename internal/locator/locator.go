// Package locator finds the active combat-log file.
package locator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// EnvLogDir is the environment variable naming an extra candidate directory.
const EnvLogDir = "RAIDLOG_LOGDIR"

// ErrNotFound is returned when no log file can be resolved.
var ErrNotFound = errors.New("combat log not found")

// DefaultPatterns are the known combat-log file name patterns.
var DefaultPatterns = []string{"CombatLog*.txt", "combat_*.log", "*_combat.log"}

// Options configures resolution.
type Options struct {
	// SelectedPath is a log file or a directory holding log files.
	SelectedPath string

	// SearchEverywhere scans CandidateDirs instead of using SelectedPath.
	SearchEverywhere bool

	CandidateDirs []string

	// Patterns are doublestar globs matched against file base names.
	// Empty means DefaultPatterns.
	Patterns []string
}

// Candidate is a resolved log file.
type Candidate struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// DefaultCandidateDirs returns conventional game log directories for the
// current user, in priority order. Directories are not checked for existence.
func DefaultCandidateDirs() []string {
	var dirs []string

	localAppData := os.Getenv("LOCALAPPDATA")
	if localAppData == "" {
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			localAppData = filepath.Join(userProfile, "AppData", "Local")
		}
	}
	if localAppData != "" {
		dirs = append(dirs,
			filepath.Join(localAppData, "RaidGame", "Logs"),
			filepath.Join(filepath.Dir(localAppData), "LocalLow", "RaidGame", "Logs"),
		)
	}

	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, "Documents", "RaidGame", "Logs"),
			filepath.Join(home, ".local", "share", "raidgame", "logs"),
		)
	}

	return dirs
}

// Resolve returns the active combat-log file.
//
// With SearchEverywhere unset, SelectedPath is used: a file is returned as is,
// a directory yields its newest matching file. With SearchEverywhere set, every
// candidate directory (and $RAIDLOG_LOGDIR) is scanned non-recursively and the
// newest matching file wins.
//
// Resolve keeps no state, so calling it again after the active file is
// removed selects the next-best candidate.
func Resolve(opts Options) (Candidate, error) {
	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return Candidate{}, fmt.Errorf("invalid log pattern %q", p)
		}
	}

	if !opts.SearchEverywhere {
		return resolveSelected(opts.SelectedPath, patterns)
	}

	dirs := append([]string(nil), opts.CandidateDirs...)
	if envDir := os.Getenv(EnvLogDir); envDir != "" {
		dirs = append(dirs, envDir)
	}
	if len(dirs) == 0 {
		return Candidate{}, fmt.Errorf("%w: no candidate directories configured", ErrNotFound)
	}

	var all []Candidate
	for _, dir := range dirs {
		all = append(all, scanDir(dir, patterns)...)
	}
	if len(all) == 0 {
		return Candidate{}, fmt.Errorf("%w: no file matching %s in %d directories",
			ErrNotFound, strings.Join(patterns, ", "), len(dirs))
	}
	return newest(all), nil
}

func resolveSelected(selected string, patterns []string) (Candidate, error) {
	if strings.TrimSpace(selected) == "" {
		return Candidate{}, fmt.Errorf("%w: no log path configured", ErrNotFound)
	}

	info, err := os.Stat(selected)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Candidate{}, fmt.Errorf("%w: %s does not exist", ErrNotFound, selected)
		}
		return Candidate{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	if !info.IsDir() {
		return Candidate{Path: selected, Size: info.Size(), ModTime: info.ModTime()}, nil
	}

	found := scanDir(selected, patterns)
	if len(found) == 0 {
		return Candidate{}, fmt.Errorf("%w: no matching log files in %s", ErrNotFound, selected)
	}
	return newest(found), nil
}

// scanDir lists regular files in dir whose base name matches a pattern.
// Missing or unreadable directories yield nothing.
func scanDir(dir string, patterns []string) []Candidate {
	resolved := resolveDir(dir)
	if resolved == "" {
		return nil
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil
	}

	var out []Candidate
	for _, entry := range entries {
		if entry.IsDir() || !matchesAny(entry.Name(), patterns) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, Candidate{
			Path:    filepath.Join(resolved, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return out
}

// resolveDir resolves symlinks and validates the directory.
// Returns the resolved path if valid, empty string otherwise.
func resolveDir(dir string) string {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ""
	}

	// Resolve symlinks (works with Windows Junctions in Go 1.20+)
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		resolved = dir
	}
	return resolved
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// newest picks the most recently modified candidate; ties break on path.
func newest(c []Candidate) Candidate {
	sort.Slice(c, func(i, j int) bool {
		if !c[i].ModTime.Equal(c[j].ModTime) {
			return c[i].ModTime.After(c[j].ModTime)
		}
		return c[i].Path < c[j].Path
	})
	return c[0]
}
