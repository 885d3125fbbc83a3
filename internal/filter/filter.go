// Package filter decides which actors contribute to aggregated statistics.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/raidframer/raidlog-go/pkg/raidlog/event"
)

// ErrInvalidRule is returned by Compile for a malformed rule.
var ErrInvalidRule = errors.New("invalid filter rule")

// Action is what a matching rule does to an actor.
type Action string

const (
	Include Action = "include"
	Exclude Action = "exclude"
)

// Rule matches actors by display name and, optionally, by actor kind.
type Rule struct {
	// Pattern is a case-insensitive glob over the actor's display name,
	// e.g. "Training Dummy*" or "*'s *". Empty matches every name.
	Pattern string `json:"pattern" toml:"pattern"`

	// Kind restricts the rule to one actor kind. Empty matches any kind.
	Kind event.ActorKind `json:"kind,omitempty" toml:"kind"`

	Action Action `json:"action" toml:"action"`
}

func (r Rule) String() string {
	s := string(r.Action) + " " + r.Pattern
	if r.Kind != "" {
		s += " (" + string(r.Kind) + ")"
	}
	return s
}

type compiledRule struct {
	pattern string
	kind    event.ActorKind
	include bool
}

// Set is a compiled, immutable rule list. A nil *Set includes everything.
type Set struct {
	rules []compiledRule
	src   []Rule
}

// Compile validates and compiles rules. It returns nil, nil for an empty list.
func Compile(rules []Rule) (*Set, error) {
	if len(rules) == 0 {
		return nil, nil
	}

	s := &Set{
		rules: make([]compiledRule, 0, len(rules)),
		src:   append([]Rule(nil), rules...),
	}
	for i, r := range rules {
		var include bool
		switch Action(strings.ToLower(string(r.Action))) {
		case Include:
			include = true
		case Exclude:
		default:
			return nil, fmt.Errorf("%w: rule %d: unknown action %q", ErrInvalidRule, i, r.Action)
		}

		kind := r.Kind
		if kind != "" {
			k, ok := event.ParseActorKind(string(kind))
			if !ok {
				return nil, fmt.Errorf("%w: rule %d: unknown actor kind %q", ErrInvalidRule, i, r.Kind)
			}
			kind = k
		}

		pattern := strings.ToLower(strings.TrimSpace(r.Pattern))
		if pattern != "" && !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: rule %d: bad pattern %q", ErrInvalidRule, i, r.Pattern)
		}
		s.rules = append(s.rules, compiledRule{pattern: pattern, kind: kind, include: include})
	}
	return s, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(rules ...Rule) *Set {
	s, err := Compile(rules)
	if err != nil {
		panic(err)
	}
	return s
}

// ShouldInclude evaluates the rules in order. The last matching rule wins;
// an actor no rule matches is included.
func (s *Set) ShouldInclude(a event.Actor) bool {
	if s == nil {
		return true
	}

	include := true
	name := strings.ToLower(a.Name)
	for _, r := range s.rules {
		if r.matches(name, a.Kind) {
			include = r.include
		}
	}
	return include
}

// Rules returns a copy of the rules the set was compiled from.
func (s *Set) Rules() []Rule {
	if s == nil {
		return nil
	}
	return append([]Rule(nil), s.src...)
}

func (r compiledRule) matches(name string, kind event.ActorKind) bool {
	if r.kind != "" && r.kind != kind {
		return false
	}
	if r.pattern == "" {
		return true
	}
	// Names never contain a path separator, so Match behaves as a plain glob.
	ok, err := doublestar.Match(r.pattern, name)
	return err == nil && ok
}
