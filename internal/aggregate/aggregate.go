// Package aggregate folds segmented combat events into per-encounter and
// per-participant statistics.
//
// An Aggregator has a single writer: Ingest, Seal and Publish must be called
// from one goroutine. Current, Get, History and SetFilter may be called from
// any goroutine at any time. Readers only ever see published snapshots, so
// they never observe a half-applied event and never block the writer.
package aggregate

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/raidframer/raidlog-go/internal/filter"
	"github.com/raidframer/raidlog-go/internal/segment"
	"github.com/raidframer/raidlog-go/pkg/raidlog/event"
)

// DefaultHistorySize is the number of sealed encounters kept in memory.
const DefaultHistorySize = 20

// idNamespace scopes encounter UUIDs.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/raidframer/raidlog-go/encounter"))

// EncounterID returns the identifier of the seq-th encounter starting at start.
// The same inputs always yield the same ID.
func EncounterID(seq uint64, start time.Time) string {
	name := fmt.Sprintf("%d/%s", seq, start.UTC().Format(time.RFC3339Nano))
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// Config configures an Aggregator.
type Config struct {
	// HistorySize bounds the sealed encounters kept. Zero means DefaultHistorySize.
	HistorySize int

	// MergePets credits a pet's damage and healing to its owner.
	MergePets bool

	// Filter selects the actors that contribute to totals. Nil includes all.
	Filter *filter.Set
}

// Aggregator holds the active encounter and a bounded history of sealed ones.
type Aggregator struct {
	historySize int
	mergePets   bool
	filter      atomic.Pointer[filter.Set]

	seq uint64
	cur *encounter

	// published state, read without locks
	active  atomic.Pointer[EncounterStats]
	history atomic.Pointer[[]EncounterStats]
}

// New returns an empty Aggregator.
func New(cfg Config) *Aggregator {
	a := &Aggregator{historySize: cfg.HistorySize, mergePets: cfg.MergePets}
	if a.historySize <= 0 {
		a.historySize = DefaultHistorySize
	}
	a.filter.Store(cfg.Filter)
	a.history.Store(&[]EncounterStats{})
	return a
}

// SetFilter replaces the filter. Totals already aggregated are not recomputed.
func (a *Aggregator) SetFilter(f *filter.Set) {
	a.filter.Store(f)
}

// Filter returns the filter in effect.
func (a *Aggregator) Filter() *filter.Set {
	return a.filter.Load()
}

// Ingest applies one segmenter decision for ev: seal, open, attach, in that
// order. When the decision seals an encounter its final snapshot is returned.
func (a *Aggregator) Ingest(ev event.Event, d segment.Decision) (EncounterStats, bool) {
	sealed, ok := a.Seal(d)
	if d.Open {
		a.open(ev.Timestamp)
	}
	if d.Attach && a.cur != nil {
		a.cur.add(ev, a.filter.Load(), a.mergePets)
	}
	return sealed, ok
}

// Seal applies the seal half of a decision, as produced by
// segment.Segmenter.Expire or Reset. It returns the sealed snapshot.
func (a *Aggregator) Seal(d segment.Decision) (EncounterStats, bool) {
	if !d.Seal || a.cur == nil {
		return EncounterStats{}, false
	}

	enc := a.cur
	a.cur = nil
	enc.sealed = true
	// Attached deaths may already have moved the end past SealAt.
	if d.SealAt.After(enc.end) {
		enc.end = d.SealAt
	}
	snap := enc.snapshot()

	old := *a.history.Load()
	hist := make([]EncounterStats, 0, min(len(old)+1, a.historySize))
	hist = append(hist, snap)
	hist = append(hist, old[:min(len(old), a.historySize-1)]...)
	a.history.Store(&hist)
	a.active.Store(nil)
	return snap, true
}

// Publish makes the active encounter's current totals visible to readers.
// It reports whether a new snapshot was published.
func (a *Aggregator) Publish() bool {
	if a.cur == nil || !a.cur.dirty {
		return false
	}
	snap := a.cur.snapshot()
	a.cur.dirty = false
	a.active.Store(&snap)
	return true
}

// Active reports whether an encounter is open.
func (a *Aggregator) Active() bool {
	return a.cur != nil
}

// Current returns the published active encounter, or the most recently
// sealed one when none is active.
func (a *Aggregator) Current() (EncounterStats, bool) {
	if s := a.active.Load(); s != nil {
		return *s, true
	}
	if h := *a.history.Load(); len(h) > 0 {
		return h[0], true
	}
	return EncounterStats{}, false
}

// Get returns the encounter with the given ID.
func (a *Aggregator) Get(id string) (EncounterStats, bool) {
	if s := a.active.Load(); s != nil && s.ID == id {
		return *s, true
	}
	for _, s := range *a.history.Load() {
		if s.ID == id {
			return s, true
		}
	}
	return EncounterStats{}, false
}

// History returns the sealed encounters, most recent first.
func (a *Aggregator) History() []EncounterStats {
	return slices.Clone(*a.history.Load())
}

func (a *Aggregator) open(start time.Time) {
	a.seq++
	a.cur = &encounter{
		id:           EncounterID(a.seq, start),
		seq:          a.seq,
		start:        start,
		end:          start,
		participants: make(map[string]*participant),
		dirty:        true,
	}
}

type encounter struct {
	id         string
	seq        uint64
	start, end time.Time
	sealed     bool
	dirty      bool

	totalDamage  int64
	totalHealing int64

	events       []event.Event
	participants map[string]*participant
	timeline     []TimelinePoint
}

type participant struct {
	stats     ParticipantStats
	abilities map[string]*AbilityStats
}

func (e *encounter) add(ev event.Event, f *filter.Set, mergePets bool) {
	e.events = append(e.events, ev)
	e.dirty = true
	if ev.Timestamp.After(e.end) {
		e.end = ev.Timestamp
	}

	src, srcOK := e.credit(ev.Source, f, mergePets)
	tgt, tgtOK := e.include(ev.Target, f)

	switch ev.Kind {
	case event.Damage:
		if srcOK {
			p := e.participant(src)
			p.stats.DamageDone += ev.Amount
			p.stats.Hits++
			if ev.Critical {
				p.stats.Crits++
			}
			p.touch(ev.Timestamp)
			ab := p.ability(ev.Ability)
			ab.Damage += ev.Amount
			ab.Hits++
			ab.Uses++
			if ev.Critical {
				ab.Crits++
			}
			e.totalDamage += ev.Amount
			e.bucket(ev.Timestamp).Damage += ev.Amount
		}
		if tgtOK {
			e.participant(tgt).stats.DamageTaken += ev.Amount
		}

	case event.Heal:
		if srcOK {
			p := e.participant(src)
			p.stats.HealingDone += ev.Amount
			p.stats.Heals++
			if ev.Critical {
				p.stats.Crits++
			}
			p.touch(ev.Timestamp)
			ab := p.ability(ev.Ability)
			ab.Healing += ev.Amount
			ab.Uses++
			if ev.Critical {
				ab.Crits++
			}
			e.totalHealing += ev.Amount
			e.bucket(ev.Timestamp).Healing += ev.Amount
		}
		if tgtOK {
			e.participant(tgt).stats.HealingTaken += ev.Amount
		}

	case event.BuffApply:
		if srcOK {
			p := e.participant(src)
			p.stats.Buffs++
			p.touch(ev.Timestamp)
			p.ability(ev.Ability).Uses++
		}

	case event.Death:
		if tgtOK {
			e.participant(tgt).stats.Deaths++
		}

	case event.BuffExpire, event.Unrecognized:
		// Kept in the event list only.
	}
}

// credit resolves who an action is attributed to and whether it counts.
func (e *encounter) credit(a event.Actor, f *filter.Set, mergePets bool) (event.Actor, bool) {
	if a.IsZero() || !f.ShouldInclude(a) {
		return event.Actor{}, false
	}
	if !mergePets || a.Kind != event.Pet || a.Owner == "" {
		return a, true
	}
	owner := e.ownerOf(a)
	if !f.ShouldInclude(owner) {
		return event.Actor{}, false
	}
	return owner, true
}

func (e *encounter) include(a event.Actor, f *filter.Set) (event.Actor, bool) {
	if a.IsZero() || !f.ShouldInclude(a) {
		return event.Actor{}, false
	}
	return a, true
}

func (e *encounter) ownerOf(pet event.Actor) event.Actor {
	if p, ok := e.participants[pet.Owner]; ok {
		return p.stats.Actor
	}
	name, _, ok := strings.Cut(pet.Name, "'s ")
	if !ok || !strings.EqualFold(name, pet.Owner) {
		name = pet.Owner
	}
	return event.Actor{ID: pet.Owner, Name: name, Kind: event.Player}
}

func (e *encounter) participant(a event.Actor) *participant {
	p, ok := e.participants[a.ID]
	if !ok {
		p = &participant{stats: ParticipantStats{Actor: a}}
		e.participants[a.ID] = p
	}
	return p
}

func (e *encounter) bucket(ts time.Time) *TimelinePoint {
	sec := max(int(ts.Sub(e.start)/time.Second), 0)
	for len(e.timeline) <= sec {
		e.timeline = append(e.timeline, TimelinePoint{Second: len(e.timeline)})
	}
	return &e.timeline[sec]
}

func (p *participant) touch(ts time.Time) {
	if p.stats.FirstActive.IsZero() || ts.Before(p.stats.FirstActive) {
		p.stats.FirstActive = ts
	}
	if ts.After(p.stats.LastActive) {
		p.stats.LastActive = ts
	}
}

func (p *participant) ability(name string) *AbilityStats {
	if name == "" {
		name = "melee"
	}
	if p.abilities == nil {
		p.abilities = make(map[string]*AbilityStats)
	}
	ab, ok := p.abilities[name]
	if !ok {
		ab = &AbilityStats{Name: name}
		p.abilities[name] = ab
	}
	return ab
}

func (e *encounter) snapshot() EncounterStats {
	s := EncounterStats{
		ID:           e.id,
		Seq:          e.seq,
		State:        StateActive,
		Start:        e.start,
		End:          e.end,
		Duration:     e.end.Sub(e.start),
		TotalDamage:  e.totalDamage,
		TotalHealing: e.totalHealing,
		EventCount:   len(e.events),
		Participants: make([]ParticipantStats, 0, len(e.participants)),
		Timeline:     slices.Clone(e.timeline),
		// Attached events are never rewritten, so a capped prefix is immutable.
		events: e.events[:len(e.events):len(e.events)],
	}
	if e.sealed {
		s.State = StateSealed
	}

	for _, p := range e.participants {
		ps := p.stats
		span := max(ps.LastActive.Sub(ps.FirstActive), time.Second)
		ps.DPS = float64(ps.DamageDone) / span.Seconds()
		ps.HPS = float64(ps.HealingDone) / span.Seconds()
		if len(p.abilities) > 0 {
			ps.Abilities = make([]AbilityStats, 0, len(p.abilities))
			for _, ab := range p.abilities {
				ps.Abilities = append(ps.Abilities, *ab)
			}
			slices.SortFunc(ps.Abilities, func(x, y AbilityStats) int {
				if c := cmp.Compare(y.Damage+y.Healing, x.Damage+x.Healing); c != 0 {
					return c
				}
				return strings.Compare(x.Name, y.Name)
			})
		}
		s.Participants = append(s.Participants, ps)
	}
	slices.SortFunc(s.Participants, func(x, y ParticipantStats) int {
		if c := cmp.Compare(y.DamageDone, x.DamageDone); c != 0 {
			return c
		}
		if c := cmp.Compare(y.HealingDone, x.HealingDone); c != 0 {
			return c
		}
		return strings.Compare(x.Actor.Name, y.Actor.Name)
	})
	return s
}
