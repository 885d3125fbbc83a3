package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/raidframer/raidlog-go/pkg/raidlog/event"
)

// timestampLayouts are tried in order: every date style and separator
// linePrefix admits, without a zone first, then with "Z"/"+02:00" and
// "Z"/"+0200" offsets. Fractional seconds are accepted by every layout when
// parsing.
var timestampLayouts = func() []string {
	var layouts []string
	for _, zone := range []string{"", "Z07:00", "Z0700"} {
		for _, date := range []string{"2006-01-02", "2006.01.02"} {
			for _, sep := range []string{" ", "T"} {
				layouts = append(layouts, date+sep+"15:04:05"+zone)
			}
		}
	}
	return layouts
}()

var linePrefix = regexp.MustCompile(
	`^\[?(\d{4}[-.]\d{2}[-.]\d{2}[ T]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\]?\s+(.+)$`)

// bodyRule maps one sentence shape to an event kind. Group indexes name
// which submatch holds each field; 0 means absent. Group 1 always holds the
// words before the verb.
type bodyRule struct {
	kind     event.Kind
	re       *regexp.Regexp
	source   int
	target   int
	amount   int
	ability  int
	critical int
	// critVerb marks rules whose verb alone implies a critical hit.
	critVerb bool
}

var bodyRules = []bodyRule{
	{
		kind: event.Damage, critVerb: true,
		re:     regexp.MustCompile(`(?i)^(.+?) crits? (.+?) for ([\d,]+)(?: damage)?(?: with (.+?))?(?: \((critical)\))?\.?$`),
		source: 1, target: 2, amount: 3, ability: 4, critical: 5,
	},
	{
		kind:   event.Damage,
		re:     regexp.MustCompile(`(?i)^(.+?) (?:hits|hit|strikes) (.+?) for ([\d,]+)(?: damage)?(?: with (.+?))?(?: \((critical)\))?\.?$`),
		source: 1, target: 2, amount: 3, ability: 4, critical: 5,
	},
	{
		kind:   event.Heal,
		re:     regexp.MustCompile(`(?i)^(.+?) heals? (.+?) for ([\d,]+)(?: health| hp)?(?: with (.+?))?(?: \((critical)\))?\.?$`),
		source: 1, target: 2, amount: 3, ability: 4, critical: 5,
	},
	{
		kind:   event.BuffApply,
		re:     regexp.MustCompile(`(?i)^(.+?) applies (.+?) to (.+?)\.?$`),
		source: 1, ability: 2, target: 3,
	},
	{
		kind:   event.BuffApply,
		re:     regexp.MustCompile(`(?i)^(.+?) gains? (.+?) from (.+?)\.?$`),
		target: 1, ability: 2, source: 3,
	},
	{
		kind:    event.BuffExpire,
		re:      regexp.MustCompile(`(?i)^(.+?) fades from (.+?)\.?$`),
		ability: 1, target: 2,
	},
	{
		kind:   event.Death,
		re:     regexp.MustCompile(`(?i)^(.+?) (?:is|was) killed by (.+?)\.?$`),
		target: 1, source: 2,
	},
	{
		kind:   event.Death,
		re:     regexp.MustCompile(`(?i)^(.+?) (?:dies|died|has died)\.?$`),
		target: 1,
	},
}

// Text is the default grammar: a timestamp followed by an English combat
// sentence.
//
//	2024-01-15 20:01:02.250 Alice hits Ogre Chieftain for 1,250 with Fireball (critical)
//	[2024-01-15 20:01:03] Bob heals Alice for 300 with Renew
//	2024-01-15 20:01:04 Alice applies Haste to Bob
//	2024-01-15 20:01:09 Haste fades from Bob
//	2024-01-15 20:02:00 Ogre Chieftain is killed by Alice
type Text struct {
	opts options
}

// NewText returns the default grammar.
func NewText(opts ...Option) *Text {
	return &Text{opts: applyOptions(opts)}
}

// Parse implements Parser.
func (p *Text) Parse(line event.RawLine) event.Event {
	m := linePrefix.FindStringSubmatch(strings.TrimSpace(line.Text))
	if m == nil {
		return event.Unrecognize(line)
	}
	ts, ok := parseTimestamp(m[1], p.opts.loc)
	if !ok {
		return event.Unrecognize(line)
	}

	rule, sub := matchBody(m[2])
	if sub == nil {
		return event.Unrecognize(line)
	}
	ev, ok := rule.build(sub, p.opts.selfName)
	if !ok {
		return event.Unrecognize(line)
	}
	ev.Seq = line.Seq
	ev.Timestamp = ts
	return ev
}

// matchBody returns the rule whose verb comes first in body, so a verb-like
// word inside an actor name ("Alice hits Crit Bot") never wins over the
// sentence's real verb. Ties go to the earlier rule.
func matchBody(body string) (bodyRule, []string) {
	var (
		best    bodyRule
		bestSub []string
		bestEnd = -1
	)
	for _, rule := range bodyRules {
		idx := rule.re.FindStringSubmatchIndex(body)
		if idx == nil {
			continue
		}
		if bestEnd >= 0 && idx[3] >= bestEnd {
			continue
		}
		best, bestEnd = rule, idx[3]
		bestSub = make([]string, len(idx)/2)
		for i := range bestSub {
			if idx[2*i] >= 0 {
				bestSub[i] = body[idx[2*i]:idx[2*i+1]]
			}
		}
	}
	return best, bestSub
}

func (r bodyRule) build(sub []string, selfName string) (event.Event, bool) {
	ev := event.Event{Kind: r.kind}
	if r.source > 0 {
		ev.Source = ResolveActor(sub[r.source], selfName)
	}
	if r.target > 0 {
		ev.Target = ResolveActor(sub[r.target], selfName)
		if ev.Target.IsZero() {
			return event.Event{}, false
		}
	}
	if r.amount > 0 {
		n, ok := parseAmount(sub[r.amount])
		if !ok {
			return event.Event{}, false
		}
		ev.Amount = n
	}
	if r.ability > 0 {
		ev.Ability = strings.TrimSpace(sub[r.ability])
	}
	ev.Critical = r.critVerb || (r.critical > 0 && sub[r.critical] != "")
	return ev, true
}

func parseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseAmount(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
