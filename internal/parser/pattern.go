package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raidframer/raidlog-go/pkg/raidlog/event"
)

// PatternFile is the YAML document describing a custom grammar.
//
//	time_format: "2006-01-02 15:04:05"
//	location: UTC
//	self_name: Alice
//	patterns:
//	  - name: melee
//	    kind: damage
//	    regex: '^(?P<timestamp>\S+ \S+) (?P<source>.+?) smacks (?P<target>.+?) for (?P<amount>\d+)$'
type PatternFile struct {
	TimeFormat string        `yaml:"time_format"`
	Location   string        `yaml:"location"`
	SelfName   string        `yaml:"self_name"`
	Patterns   []PatternSpec `yaml:"patterns"`
}

// PatternSpec is one line shape. The regex uses named groups: timestamp
// (required), source, target, amount, ability and critical (any non-empty
// match marks a critical hit).
type PatternSpec struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	Regex string `yaml:"regex"`
}

type compiledPattern struct {
	name  string
	kind  event.Kind
	re    *regexp.Regexp
	group map[string]int
}

// Pattern is a grammar loaded from a PatternFile.
type Pattern struct {
	timeFormat string
	patterns   []compiledPattern
	opts       options
}

// LoadPatternFile reads and compiles a YAML grammar file.
func LoadPatternFile(path string, opts ...Option) (*Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern file: %w", err)
	}
	p, err := ParsePatterns(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParsePatterns compiles a YAML grammar document. All validation happens
// here, so Parse never meets a broken pattern.
func ParsePatterns(data []byte, opts ...Option) (*Pattern, error) {
	var file PatternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse pattern yaml: %w", err)
	}
	if len(file.Patterns) == 0 {
		return nil, fmt.Errorf("pattern file defines no patterns")
	}

	o := applyOptions(opts)
	if file.SelfName != "" {
		o.selfName = file.SelfName
	}
	if file.Location != "" {
		loc, err := time.LoadLocation(file.Location)
		if err != nil {
			return nil, fmt.Errorf("location %q: %w", file.Location, err)
		}
		o.loc = loc
	}

	p := &Pattern{timeFormat: file.TimeFormat, opts: o}
	if p.timeFormat == "" {
		p.timeFormat = time.RFC3339Nano
	}

	for i, spec := range file.Patterns {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("pattern[%d]", i)
		}
		kind, ok := event.ParseKind(spec.Kind)
		if !ok {
			return nil, fmt.Errorf("%s: unknown kind %q (valid: %s)",
				name, spec.Kind, strings.Join(event.KindNames(), ", "))
		}
		re, err := regexp.Compile(spec.Regex)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid regex: %w", name, err)
		}
		group := make(map[string]int)
		for idx, g := range re.SubexpNames() {
			if g != "" {
				group[g] = idx
			}
		}
		if _, ok := group["timestamp"]; !ok {
			return nil, fmt.Errorf("%s: regex has no (?P<timestamp>...) group", name)
		}
		if _, ok := group["target"]; !ok {
			return nil, fmt.Errorf("%s: regex has no (?P<target>...) group", name)
		}
		if (kind == event.Damage || kind == event.Heal) && group["amount"] == 0 {
			return nil, fmt.Errorf("%s: %s pattern needs an (?P<amount>...) group", name, kind)
		}
		p.patterns = append(p.patterns, compiledPattern{name: name, kind: kind, re: re, group: group})
	}
	return p, nil
}

// Parse implements Parser. The first matching pattern wins.
func (p *Pattern) Parse(line event.RawLine) event.Event {
	text := strings.TrimSpace(line.Text)
	for _, cp := range p.patterns {
		sub := cp.re.FindStringSubmatch(text)
		if sub == nil {
			continue
		}
		field := func(name string) string {
			if idx, ok := cp.group[name]; ok {
				return sub[idx]
			}
			return ""
		}

		ts, err := time.ParseInLocation(p.timeFormat, field("timestamp"), p.opts.loc)
		if err != nil {
			return event.Unrecognize(line)
		}
		ev := event.Event{
			Kind:      cp.kind,
			Seq:       line.Seq,
			Timestamp: ts,
			Source:    ResolveActor(field("source"), p.opts.selfName),
			Target:    ResolveActor(field("target"), p.opts.selfName),
			Ability:   strings.TrimSpace(field("ability")),
			Critical:  field("critical") != "",
		}
		if ev.Target.IsZero() {
			return event.Unrecognize(line)
		}
		if _, ok := cp.group["amount"]; ok {
			n, ok := parseAmount(field("amount"))
			if !ok {
				return event.Unrecognize(line)
			}
			ev.Amount = n
		}
		return ev
	}
	return event.Unrecognize(line)
}
