// Package event defines the combat event types shared by the parser,
// segmenter, aggregator and the public raidlog package.
//
// This package is separated from the main raidlog package to avoid import cycles
// between pkg/raidlog and the internal pipeline packages.
package event

import (
	"sort"
	"strings"
	"time"
)

// Kind is the discriminator of the Event tagged variant.
type Kind string

const (
	// Damage is one actor damaging another.
	Damage Kind = "damage"

	// Heal is one actor healing another.
	Heal Kind = "heal"

	// BuffApply is an effect landing on a target.
	BuffApply Kind = "buff_apply"

	// BuffExpire is an effect fading from a target.
	BuffExpire Kind = "buff_expire"

	// Death is an actor dying.
	Death Kind = "death"

	// Unrecognized is a line the parser could not classify.
	// Unrecognized events are dropped before segmentation.
	Unrecognized Kind = "unrecognized"
)

// allKinds is the canonical list of recognized kinds.
// Add new kinds here when extending the grammar.
var allKinds = []Kind{Damage, Heal, BuffApply, BuffExpire, Death}

// KindNames returns a sorted list of all recognized kind names.
// Unrecognized is not included; it is never a user-selectable kind.
func KindNames() []string {
	names := make([]string, len(allKinds))
	for i, k := range allKinds {
		names[i] = string(k)
	}
	sort.Strings(names)
	return names
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(allKinds))
	for _, k := range allKinds {
		m[string(k)] = k
	}
	return m
}()

// ParseKind converts a string to Kind if valid.
// It is case-insensitive and trims leading/trailing whitespace.
func ParseKind(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	k, ok := kindByName[name]
	return k, ok
}

// ActorKind classifies an actor by the log's naming convention.
type ActorKind string

const (
	Player       ActorKind = "player"
	NPC          ActorKind = "npc"
	Pet          ActorKind = "pet"
	UnknownActor ActorKind = "unknown"
)

// ParseActorKind converts a string to ActorKind if valid.
func ParseActorKind(name string) (ActorKind, bool) {
	switch ActorKind(strings.ToLower(strings.TrimSpace(name))) {
	case Player:
		return Player, true
	case NPC:
		return NPC, true
	case Pet:
		return Pet, true
	case UnknownActor:
		return UnknownActor, true
	}
	return "", false
}

// Actor is a participant named in the log.
type Actor struct {
	// ID is the identity key: the lower-cased normalized name.
	ID string `json:"id"`

	// Name is the normalized display name.
	Name string `json:"name"`

	Kind ActorKind `json:"kind"`

	// Owner is the owning actor's ID for pets.
	Owner string `json:"owner,omitempty"`
}

// IsZero reports whether the actor is absent from the event.
func (a Actor) IsZero() bool {
	return a.ID == ""
}

// RawLine is one complete line delivered by a tailer.
type RawLine struct {
	// Seq is the 1-based position of the line within its tailer handle.
	Seq uint64 `json:"seq"`

	Text string `json:"text"`
}

// Event is a parsed combat log line.
type Event struct {
	Kind Kind `json:"kind"`

	// Seq is the RawLine sequence number the event was parsed from.
	Seq uint64 `json:"seq"`

	// Timestamp is when the event occurred, as written in the log.
	Timestamp time.Time `json:"timestamp"`

	Source Actor `json:"source,omitzero"`
	Target Actor `json:"target,omitzero"`

	// Amount is the damage or healing amount (zero for other kinds).
	Amount int64 `json:"amount,omitempty"`

	// Ability is the skill or effect identifier.
	Ability string `json:"ability,omitempty"`

	Critical bool `json:"critical,omitempty"`

	// RawLine is the original log line (only included if requested).
	RawLine string `json:"raw_line,omitempty"`
}

// Recognized reports whether the parser classified the line.
func (e Event) Recognized() bool {
	return e.Kind != Unrecognized && e.Kind != ""
}

// Qualifies reports whether the event opens or extends an encounter under
// the default policy: every recognized kind except deaths.
func (e Event) Qualifies() bool {
	switch e.Kind {
	case Damage, Heal, BuffApply, BuffExpire:
		return true
	case Death, Unrecognized:
		return false
	}
	return false
}

// Unrecognize returns the Unrecognized event for a raw line.
func Unrecognize(line RawLine) Event {
	return Event{Kind: Unrecognized, Seq: line.Seq, RawLine: line.Text}
}
