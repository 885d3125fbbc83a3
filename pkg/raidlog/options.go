package raidlog

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/raidframer/raidlog-go/internal/aggregate"
	"github.com/raidframer/raidlog-go/internal/filter"
	"github.com/raidframer/raidlog-go/internal/locator"
	"github.com/raidframer/raidlog-go/internal/parser"
	"github.com/raidframer/raidlog-go/internal/segment"
	"github.com/raidframer/raidlog-go/internal/tailer"
)

// Defaults used when the corresponding option is not set.
const (
	DefaultPollInterval      = 250 * time.Millisecond
	DefaultRecheckInterval   = 2 * time.Second
	DefaultInactivityTimeout = segment.DefaultTimeout
	DefaultHistorySize       = aggregate.DefaultHistorySize
	DefaultSignalBuffer      = 64
)

// Option configures an Engine (and Replay) using the functional options pattern.
type Option func(*config)

// config holds internal configuration for the engine.
type config struct {
	locate          locator.Options
	timeout         time.Duration
	extendOn        []Kind
	pollInterval    time.Duration
	recheckInterval time.Duration
	historySize     int
	rules           []FilterRule
	parser          Parser
	selfName        string
	location        *time.Location
	grammarFile     string
	mergePets       bool
	fromStart       bool
	since           time.Time
	maxRead         int64
	signalBuffer    int
	logger          *slog.Logger
	now             func() time.Time
}

// defaultConfig returns a config with sensible defaults.
func defaultConfig() *config {
	return &config{
		timeout:         DefaultInactivityTimeout,
		pollInterval:    DefaultPollInterval,
		recheckInterval: DefaultRecheckInterval,
		historySize:     DefaultHistorySize,
		maxRead:         tailer.DefaultMaxRead,
		signalBuffer:    DefaultSignalBuffer,
		now:             time.Now,
	}
}

// applyOptions applies functional options to a config.
func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// validate checks for invalid option combinations.
func (c *config) validate() error {
	if c.timeout <= 0 {
		return fmt.Errorf("inactivity timeout must be positive, got %v", c.timeout)
	}
	if c.pollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.pollInterval)
	}
	if c.recheckInterval < 0 {
		return fmt.Errorf("recheck interval must be non-negative, got %v", c.recheckInterval)
	}
	if c.historySize < 0 {
		return fmt.Errorf("history size must be non-negative, got %d", c.historySize)
	}
	if c.signalBuffer < 0 {
		return fmt.Errorf("signal buffer must be non-negative, got %d", c.signalBuffer)
	}
	for _, k := range c.extendOn {
		if _, ok := ParseKind(string(k)); !ok {
			return fmt.Errorf("unknown event kind %q in extend-on list", k)
		}
		if k == KindDeath {
			return fmt.Errorf("death events cannot extend an encounter")
		}
	}
	return nil
}

// buildParser returns the configured parser: an explicit WithParser value,
// or the grammar file chained before the default text grammar.
func (c *config) buildParser() (Parser, error) {
	if c.parser != nil {
		return c.parser, nil
	}

	var popts []parser.Option
	if c.selfName != "" {
		popts = append(popts, parser.WithSelfName(c.selfName))
	}
	if c.location != nil {
		popts = append(popts, parser.WithLocation(c.location))
	}

	text := parser.NewText(popts...)
	if c.grammarFile == "" {
		return text, nil
	}
	custom, err := parser.LoadPatternFile(c.grammarFile, popts...)
	if err != nil {
		return nil, err
	}
	return parser.Chain{custom, text}, nil
}

func (c *config) segmentConfig() segment.Config {
	sc := segment.Config{Timeout: c.timeout}
	if len(c.extendOn) > 0 {
		sc.Extends = segment.ExtendOn(c.extendOn...)
	}
	return sc
}

// WithSelectedPath sets the log file, or a directory holding log files, to
// read when search-everywhere is off.
func WithSelectedPath(path string) Option {
	return func(c *config) {
		c.locate.SelectedPath = path
	}
}

// WithSearchEverywhere scans the candidate directories for the newest log
// instead of using the selected path.
func WithSearchEverywhere(enabled bool) Option {
	return func(c *config) {
		c.locate.SearchEverywhere = enabled
	}
}

// WithCandidateDirs sets the directories scanned in search-everywhere mode.
// Default: none besides $RAIDLOG_LOGDIR; see DefaultCandidateDirs.
func WithCandidateDirs(dirs ...string) Option {
	return func(c *config) {
		c.locate.CandidateDirs = dirs
	}
}

// WithPatterns sets the glob patterns a log file name must match.
func WithPatterns(patterns ...string) Option {
	return func(c *config) {
		c.locate.Patterns = patterns
	}
}

// WithInactivityTimeout sets how long without a qualifying event seals an
// encounter. Default: 30 seconds.
func WithInactivityTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithExtendOn sets the event kinds that open and extend an encounter.
// Default: damage, heal, buff_apply and buff_expire.
func WithExtendOn(kinds ...Kind) Option {
	return func(c *config) {
		c.extendOn = kinds
	}
}

// WithPollInterval sets the ingestion cadence. Default: 250ms.
func WithPollInterval(interval time.Duration) Option {
	return func(c *config) {
		c.pollInterval = interval
	}
}

// WithRecheckInterval sets how often the locator is consulted for a newer
// log file while one is open. Zero disables rechecking. Default: 2 seconds.
func WithRecheckInterval(interval time.Duration) Option {
	return func(c *config) {
		c.recheckInterval = interval
	}
}

// WithHistorySize bounds the number of sealed encounters kept. Default: 20.
func WithHistorySize(n int) Option {
	return func(c *config) {
		c.historySize = n
	}
}

// WithFilterRules sets the initial actor filter rules.
func WithFilterRules(rules ...FilterRule) Option {
	return func(c *config) {
		c.rules = rules
	}
}

// WithParser replaces the line grammar. It takes precedence over
// WithGrammarFile, WithSelfName and WithLocation.
func WithParser(p Parser) Option {
	return func(c *config) {
		c.parser = p
	}
}

// WithGrammarFile loads a YAML grammar tried before the default one.
func WithGrammarFile(path string) Option {
	return func(c *config) {
		c.grammarFile = path
	}
}

// WithSelfName sets the player name that first-person lines refer to.
func WithSelfName(name string) Option {
	return func(c *config) {
		c.selfName = name
	}
}

// WithLocation sets the time zone of log timestamps without an offset.
// Default: time.Local.
func WithLocation(loc *time.Location) Option {
	return func(c *config) {
		c.location = loc
	}
}

// WithMergePets credits pet output to the owning player.
func WithMergePets(merge bool) Option {
	return func(c *config) {
		c.mergePets = merge
	}
}

// WithReplayFromStart reads the first resolved log from its beginning instead
// of its end. Files switched to later are always read from the start.
func WithReplayFromStart(fromStart bool) Option {
	return func(c *config) {
		c.fromStart = fromStart
	}
}

// WithReplaySince reads the first resolved log from its beginning but ignores
// events timestamped before t. It rebuilds the encounter in progress at
// startup without replaying the whole file. A zero t disables it.
//
// Example:
//
//	raidlog.WithReplaySince(time.Now().Add(-raidlog.DefaultInactivityTimeout))
func WithReplaySince(t time.Time) Option {
	return func(c *config) {
		c.since = t
	}
}

// WithMaxRead bounds the bytes read from the log per poll. Default: 1 MiB.
func WithMaxRead(n int64) Option {
	return func(c *config) {
		c.maxRead = n
	}
}

// WithSignalBuffer sets the capacity of the Signals channel. Default: 64.
func WithSignalBuffer(n int) Option {
	return func(c *config) {
		c.signalBuffer = n
	}
}

// WithLogger sets the slog logger for debug output.
// If nil (default), logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithClock replaces the wall clock used for inactivity expiry and
// rechecks. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// ParseOption configures ParseFile and ParseFileAll behavior.
type ParseOption func(*parseConfig)

// parseConfig holds internal configuration for parsing.
type parseConfig struct {
	parser              Parser
	include, exclude    []Kind
	kinds               kindSet
	includeUnrecognized bool
	since               time.Time
	until               time.Time
}

// defaultParseConfig returns a parseConfig with sensible defaults.
func defaultParseConfig() *parseConfig {
	return &parseConfig{}
}

// applyParseOptions applies functional options to a parseConfig.
func applyParseOptions(opts []ParseOption) *parseConfig {
	cfg := defaultParseConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.parser == nil {
		cfg.parser = parser.NewText()
	}
	cfg.kinds = selectKinds(cfg.include, cfg.exclude)
	return cfg
}

// WithParseParser sets the grammar used to parse lines.
// Default: the built-in text grammar.
func WithParseParser(p Parser) ParseOption {
	return func(c *parseConfig) {
		c.parser = p
	}
}

// WithParseIncludeKinds filters events to only include the specified kinds.
func WithParseIncludeKinds(kinds ...Kind) ParseOption {
	return func(c *parseConfig) {
		c.include = kinds
	}
}

// WithParseExcludeKinds filters out events of the specified kinds.
func WithParseExcludeKinds(kinds ...Kind) ParseOption {
	return func(c *parseConfig) {
		c.exclude = kinds
	}
}

// WithParseFilter sets both include and exclude kind filters for parsing.
// An excluded kind is dropped even when it is also included.
func WithParseFilter(include, exclude []Kind) ParseOption {
	return func(c *parseConfig) {
		c.include, c.exclude = include, exclude
	}
}

// WithParseIncludeUnrecognized also yields lines the grammar could not
// classify, as events of kind KindUnrecognized carrying the raw line.
// Default: false.
func WithParseIncludeUnrecognized(include bool) ParseOption {
	return func(c *parseConfig) {
		c.includeUnrecognized = include
	}
}

// WithParseTimeRange filters events to only include those within the time range.
// since is inclusive, until is exclusive.
// Zero values are ignored (no filtering for that boundary).
func WithParseTimeRange(since, until time.Time) ParseOption {
	return func(c *parseConfig) {
		c.since = since
		c.until = until
	}
}

// WithParseSince filters events to only include those at or after the given time.
func WithParseSince(since time.Time) ParseOption {
	return func(c *parseConfig) {
		c.since = since
	}
}

// WithParseUntil filters events to only include those before the given time.
func WithParseUntil(until time.Time) ParseOption {
	return func(c *parseConfig) {
		c.until = until
	}
}

// compileRules builds the actor filter from the configured rules.
func (c *config) compileRules() (*filter.Set, error) {
	return filter.Compile(c.rules)
}
