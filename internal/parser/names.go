package parser

import (
	"regexp"
	"strings"

	"github.com/raidframer/raidlog-go/pkg/raidlog/event"
)

var (
	leadingTag   = regexp.MustCompile(`^\[[^\]]*\]\s*`)
	trailingTag  = regexp.MustCompile(`\s*(?:<[^>]*>|\([^)]*\))$`)
	instanceTag  = regexp.MustCompile(`#\d+$`)
	possessive   = regexp.MustCompile(`^(.+?)'s\s+(.+)$`)
	unknownNames = map[string]bool{"": true, "unknown": true, "?": true, "-": true, "nil": true}
)

// NormalizeName strips the decorations logs add around actor names:
// [tags] prefixes, <guild> and (channel) suffixes, @server suffixes and quotes.
func NormalizeName(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	for {
		next := leadingTag.ReplaceAllString(s, "")
		next = trailingTag.ReplaceAllString(next, "")
		if next == s {
			break
		}
		s = next
	}
	if i := strings.IndexByte(s, '@'); i > 0 {
		s = s[:i]
	}
	return strings.Join(strings.Fields(s), " ")
}

// ResolveActor normalizes a raw name and classifies it:
//
//   - "You" is the player named selfName
//   - "Owner's Name" and "Your Name" are pets owned by Owner or selfName
//   - a #n instance suffix, a leading "the" or an inner space mark an NPC
//   - any other single token is a player
func ResolveActor(raw, selfName string) event.Actor {
	name := NormalizeName(raw)
	lower := strings.ToLower(name)

	switch {
	case unknownNames[lower]:
		if name == "" {
			return event.Actor{}
		}
		return event.Actor{ID: lower, Name: name, Kind: event.UnknownActor}

	case lower == "you":
		return actor(selfName, event.Player, "")

	case strings.HasPrefix(lower, "your "):
		pet := strings.TrimSpace(name[len("your "):])
		return actor(selfName+"'s "+pet, event.Pet, strings.ToLower(selfName))
	}

	if m := possessive.FindStringSubmatch(name); m != nil {
		owner := NormalizeName(m[1])
		if strings.EqualFold(owner, "you") {
			owner = selfName
		}
		return actor(owner+"'s "+m[2], event.Pet, strings.ToLower(owner))
	}

	switch {
	case instanceTag.MatchString(name),
		strings.HasPrefix(lower, "the "),
		strings.Contains(name, " "):
		return actor(name, event.NPC, "")
	}
	return actor(name, event.Player, "")
}

func actor(name string, kind event.ActorKind, owner string) event.Actor {
	return event.Actor{ID: strings.ToLower(name), Name: name, Kind: kind, Owner: owner}
}
