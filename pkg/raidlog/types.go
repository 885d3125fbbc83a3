package raidlog

import (
	"github.com/raidframer/raidlog-go/internal/aggregate"
	"github.com/raidframer/raidlog-go/internal/filter"
	"github.com/raidframer/raidlog-go/internal/locator"
	"github.com/raidframer/raidlog-go/internal/parser"
	"github.com/raidframer/raidlog-go/internal/tailer"
	"github.com/raidframer/raidlog-go/pkg/raidlog/event"
)

// Re-export types for convenience.
// Users can import just "github.com/raidframer/raidlog-go/pkg/raidlog"
// and use raidlog.Event, raidlog.KindDamage, raidlog.EncounterStats, etc.

// Event represents a parsed combat log line.
type Event = event.Event

// Kind is the kind of a combat event.
type Kind = event.Kind

// Actor is a participant named in the log.
type Actor = event.Actor

// ActorKind classifies an actor.
type ActorKind = event.ActorKind

// RawLine is one complete line read from the log.
type RawLine = event.RawLine

// Parser converts raw lines into events. Implementations must never fail:
// unclassifiable lines become KindUnrecognized events.
type Parser = parser.Parser

// EncounterStats is an immutable snapshot of one encounter.
type EncounterStats = aggregate.EncounterStats

// ParticipantStats is one actor's totals within an encounter.
type ParticipantStats = aggregate.ParticipantStats

// AbilityStats is one actor's totals for one ability.
type AbilityStats = aggregate.AbilityStats

// TimelinePoint is the damage and healing done in one second of an encounter.
type TimelinePoint = aggregate.TimelinePoint

// EncounterState is the lifecycle state of an encounter snapshot.
type EncounterState = aggregate.State

// FilterRule includes or excludes actors from aggregation.
type FilterRule = filter.Rule

// FilterAction is what a matching FilterRule does.
type FilterAction = filter.Action

// Source describes the log file being read.
type Source = tailer.Source

// Event kind constants.
const (
	KindDamage       = event.Damage
	KindHeal         = event.Heal
	KindBuffApply    = event.BuffApply
	KindBuffExpire   = event.BuffExpire
	KindDeath        = event.Death
	KindUnrecognized = event.Unrecognized
)

// Actor kind constants.
const (
	ActorPlayer  = event.Player
	ActorNPC     = event.NPC
	ActorPet     = event.Pet
	ActorUnknown = event.UnknownActor
)

// Encounter state constants.
const (
	EncounterActive = aggregate.StateActive
	EncounterSealed = aggregate.StateSealed
)

// Filter actions.
const (
	FilterInclude = filter.Include
	FilterExclude = filter.Exclude
)

// ParseKind converts a string to Kind if valid.
func ParseKind(name string) (Kind, bool) {
	return event.ParseKind(name)
}

// ParseActorKind converts a string to ActorKind if valid. It is
// case-insensitive.
func ParseActorKind(name string) (ActorKind, bool) {
	return event.ParseActorKind(name)
}

// KindNames returns the sorted names of all recognized kinds.
func KindNames() []string {
	return event.KindNames()
}

// DefaultCandidateDirs returns the conventional game log directories for
// the current user.
func DefaultCandidateDirs() []string {
	return locator.DefaultCandidateDirs()
}

// NewTextParser returns the built-in grammar for the given self name.
// An empty name keeps the default "You".
func NewTextParser(selfName string) Parser {
	return parser.NewText(parser.WithSelfName(selfName))
}

// LoadGrammar loads a YAML grammar file.
func LoadGrammar(path string) (Parser, error) {
	return parser.LoadPatternFile(path)
}
