package main

import (
	"fmt"
	"strings"

	"github.com/raidframer/raidlog-go/pkg/raidlog"
)

// ValidKindNames returns a sorted list of valid event kind names.
// Delegates to raidlog.KindNames() as the single source of truth.
func ValidKindNames() []string {
	return raidlog.KindNames()
}

// NormalizeKinds converts CLI string values to a raidlog.Kind slice.
// It handles case-insensitivity, whitespace trimming, and duplicate removal.
func NormalizeKinds(values []string) ([]raidlog.Kind, error) {
	if len(values) == 0 {
		return nil, nil
	}

	result := make([]raidlog.Kind, 0, len(values))
	seen := make(map[raidlog.Kind]struct{})

	for _, raw := range values {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			return nil, fmt.Errorf("empty event kind provided (input: %q); valid kinds: %s", raw, strings.Join(ValidKindNames(), ", "))
		}

		k, ok := raidlog.ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("unknown event kind %q (valid: %s)", raw, strings.Join(ValidKindNames(), ", "))
		}

		if _, dup := seen[k]; dup {
			continue // ignore duplicates silently
		}
		seen[k] = struct{}{}
		result = append(result, k)
	}

	return result, nil
}

// RejectOverlap returns an error if any kind is in both includes and excludes.
func RejectOverlap(includes, excludes []raidlog.Kind) error {
	ex := make(map[raidlog.Kind]struct{}, len(excludes))
	for _, k := range excludes {
		ex[k] = struct{}{}
	}
	for _, k := range includes {
		if _, ok := ex[k]; ok {
			return fmt.Errorf("event kind %q cannot be both included and excluded", k)
		}
	}
	return nil
}

// actorKinds are the prefixes accepted in --include/--exclude values.
var actorKinds = []raidlog.ActorKind{
	raidlog.ActorPlayer,
	raidlog.ActorNPC,
	raidlog.ActorPet,
	raidlog.ActorUnknown,
}

// actorRules turns --include/--exclude values into filter rules. A value is a
// name glob, optionally prefixed with an actor kind ("npc:Training*"); a
// prefix that is not an actor kind stays part of the glob.
// Excludes come first so an explicit include can re-admit an actor.
func actorRules(includes, excludes []string) []raidlog.FilterRule {
	var rules []raidlog.FilterRule
	add := func(values []string, action raidlog.FilterAction) {
		for _, v := range values {
			if v = strings.TrimSpace(v); v == "" {
				continue
			}
			rule := raidlog.FilterRule{Pattern: v, Action: action}
			if kind, glob, ok := strings.Cut(v, ":"); ok {
				if k, known := raidlog.ParseActorKind(kind); known {
					rule.Kind, rule.Pattern = k, strings.TrimSpace(glob)
				}
			}
			rules = append(rules, rule)
		}
	}
	add(excludes, raidlog.FilterExclude)
	add(includes, raidlog.FilterInclude)
	return rules
}
