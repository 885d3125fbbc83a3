package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/raidframer/raidlog-go/pkg/raidlog"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "~/.config/raidlog/config.toml"

// DefaultHTTPAddr is the API address used when the API is enabled without one.
const DefaultHTTPAddr = "127.0.0.1:7480"

const defaultSubjectPrefix = "raidlog"

// Config is the user configuration for raidlog.
type Config struct {
	SelectedPath      string
	SearchEverywhere  bool
	CandidateDirs     []string
	Patterns          []string
	InactivityTimeout time.Duration
	PollInterval      time.Duration
	RecheckInterval   time.Duration
	HistorySize       int
	MergePets         bool
	ExtendOn          []raidlog.Kind
	SelfName          string
	GrammarFile       string
	Filters           []raidlog.FilterRule
	HTTP              HTTP
	NATS              NATS
}

// HTTP configures the query API. An empty Addr disables it.
type HTTP struct {
	Addr string
}

// NATS configures snapshot publishing. An empty URL disables it.
type NATS struct {
	URL           string
	Token         string
	SubjectPrefix string
}

type fileConfig struct {
	SelectedPath      string               `toml:"selected_path"`
	SearchEverywhere  bool                 `toml:"search_everywhere"`
	CandidateDirs     []string             `toml:"candidate_dirs"`
	Patterns          []string             `toml:"patterns"`
	InactivityTimeout string               `toml:"inactivity_timeout"`
	PollInterval      string               `toml:"poll_interval"`
	RecheckInterval   string               `toml:"recheck_interval"`
	HistorySize       *int                 `toml:"history_size"`
	MergePets         bool                 `toml:"merge_pets"`
	ExtendOn          []string             `toml:"extend_on"`
	SelfName          string               `toml:"self_name"`
	GrammarFile       string               `toml:"grammar_file"`
	Filters           []raidlog.FilterRule `toml:"filters"`
	HTTP              struct {
		Addr string `toml:"addr"`
	} `toml:"http"`
	NATS struct {
		URL           string `toml:"url"`
		Token         string `toml:"token"`
		SubjectPrefix string `toml:"subject_prefix"`
	} `toml:"nats"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		InactivityTimeout: raidlog.DefaultInactivityTimeout,
		PollInterval:      raidlog.DefaultPollInterval,
		RecheckInterval:   raidlog.DefaultRecheckInterval,
		HistorySize:       raidlog.DefaultHistorySize,
		NATS:              NATS{SubjectPrefix: defaultSubjectPrefix},
	}
}

// Load reads the TOML config at path, or DefaultPath when path is empty.
// A missing file yields Default.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.merge(raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) merge(raw fileConfig) error {
	if p := strings.TrimSpace(raw.SelectedPath); p != "" {
		c.SelectedPath = mustExpand(p)
	}
	c.SearchEverywhere = raw.SearchEverywhere
	for _, d := range raw.CandidateDirs {
		if d = strings.TrimSpace(d); d != "" {
			c.CandidateDirs = append(c.CandidateDirs, mustExpand(d))
		}
	}
	c.Patterns = raw.Patterns

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"inactivity_timeout", raw.InactivityTimeout, &c.InactivityTimeout},
		{"poll_interval", raw.PollInterval, &c.PollInterval},
		{"recheck_interval", raw.RecheckInterval, &c.RecheckInterval},
	}
	for _, d := range durations {
		s := strings.TrimSpace(d.raw)
		if s == "" {
			continue
		}
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}

	if raw.HistorySize != nil {
		c.HistorySize = *raw.HistorySize
	}
	c.MergePets = raw.MergePets
	for _, k := range raw.ExtendOn {
		c.ExtendOn = append(c.ExtendOn, raidlog.Kind(strings.ToLower(strings.TrimSpace(k))))
	}
	c.SelfName = strings.TrimSpace(raw.SelfName)
	if g := strings.TrimSpace(raw.GrammarFile); g != "" {
		c.GrammarFile = mustExpand(g)
	}
	c.Filters = raw.Filters

	if a := strings.TrimSpace(raw.HTTP.Addr); a != "" {
		c.HTTP.Addr = a
	}
	c.NATS.URL = strings.TrimSpace(raw.NATS.URL)
	c.NATS.Token = strings.TrimSpace(raw.NATS.Token)
	if p := strings.TrimSpace(raw.NATS.SubjectPrefix); p != "" {
		c.NATS.SubjectPrefix = p
	}
	return nil
}

// Validate reports the first invalid value.
func (c Config) Validate() error {
	if c.InactivityTimeout <= 0 {
		return fmt.Errorf("inactivity_timeout must be positive, got %v", c.InactivityTimeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.RecheckInterval < 0 {
		return fmt.Errorf("recheck_interval must be non-negative, got %v", c.RecheckInterval)
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("history_size must be non-negative, got %d", c.HistorySize)
	}
	for _, k := range c.ExtendOn {
		if _, ok := raidlog.ParseKind(string(k)); !ok || k == raidlog.KindDeath {
			return fmt.Errorf("extend_on: invalid kind %q (valid: damage, heal, buff_apply, buff_expire)", k)
		}
	}
	if !c.SearchEverywhere && c.SelectedPath == "" && len(c.CandidateDirs) > 0 {
		return errors.New("candidate_dirs requires search_everywhere")
	}
	if strings.ContainsAny(c.NATS.SubjectPrefix, " *>") {
		return fmt.Errorf("nats.subject_prefix %q must not contain spaces or wildcards", c.NATS.SubjectPrefix)
	}
	return nil
}

// EngineOptions converts the configuration to engine options. Filter rules
// are validated by raidlog.New.
func (c Config) EngineOptions() []raidlog.Option {
	opts := []raidlog.Option{
		raidlog.WithSearchEverywhere(c.SearchEverywhere),
		raidlog.WithInactivityTimeout(c.InactivityTimeout),
		raidlog.WithPollInterval(c.PollInterval),
		raidlog.WithRecheckInterval(c.RecheckInterval),
		raidlog.WithHistorySize(c.HistorySize),
		raidlog.WithMergePets(c.MergePets),
	}
	if c.SelectedPath != "" {
		opts = append(opts, raidlog.WithSelectedPath(c.SelectedPath))
	}
	if len(c.CandidateDirs) > 0 {
		opts = append(opts, raidlog.WithCandidateDirs(c.CandidateDirs...))
	} else if c.SearchEverywhere {
		opts = append(opts, raidlog.WithCandidateDirs(raidlog.DefaultCandidateDirs()...))
	}
	if len(c.Patterns) > 0 {
		opts = append(opts, raidlog.WithPatterns(c.Patterns...))
	}
	if len(c.ExtendOn) > 0 {
		opts = append(opts, raidlog.WithExtendOn(c.ExtendOn...))
	}
	if c.SelfName != "" {
		opts = append(opts, raidlog.WithSelfName(c.SelfName))
	}
	if c.GrammarFile != "" {
		opts = append(opts, raidlog.WithGrammarFile(c.GrammarFile))
	}
	if len(c.Filters) > 0 {
		opts = append(opts, raidlog.WithFilterRules(c.Filters...))
	}
	return opts
}

// ExpandPath expands a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(DefaultPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
