package aggregate

import (
	"time"

	"github.com/raidframer/raidlog-go/pkg/raidlog/event"
)

// State is the lifecycle state of an encounter snapshot.
type State string

const (
	StateActive State = "active"
	StateSealed State = "sealed"
)

// EncounterStats is an immutable snapshot of one encounter. Snapshots are
// never modified after publication and are safe to share between goroutines.
type EncounterStats struct {
	ID    string `json:"id"`
	Seq   uint64 `json:"seq"`
	State State  `json:"state"`

	Start time.Time `json:"start"`
	// End is the timestamp of the last attached event while active and the
	// seal time once sealed.
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`

	TotalDamage  int64 `json:"total_damage"`
	TotalHealing int64 `json:"total_healing"`
	EventCount   int   `json:"event_count"`

	// Participants is sorted by damage done, then healing done, then name.
	Participants []ParticipantStats `json:"participants"`
	Timeline     []TimelinePoint    `json:"timeline,omitempty"`

	events []event.Event
}

// Active reports whether the encounter was still open when the snapshot was taken.
func (s EncounterStats) Active() bool {
	return s.State == StateActive
}

// Events returns a copy of the events attached to the encounter, in file
// order, including events whose actors are filtered out of the totals.
func (s EncounterStats) Events() []event.Event {
	return append([]event.Event(nil), s.events...)
}

// Participant returns the stats of the actor with the given ID.
func (s EncounterStats) Participant(id string) (ParticipantStats, bool) {
	for _, p := range s.Participants {
		if p.Actor.ID == id {
			return p, true
		}
	}
	return ParticipantStats{}, false
}

// ParticipantStats is the running totals of one actor within an encounter.
type ParticipantStats struct {
	Actor event.Actor `json:"actor"`

	DamageDone   int64 `json:"damage_done"`
	DamageTaken  int64 `json:"damage_taken"`
	HealingDone  int64 `json:"healing_done"`
	HealingTaken int64 `json:"healing_taken"`

	Hits   int `json:"hits"`
	Heals  int `json:"heals"`
	Crits  int `json:"crits"`
	Buffs  int `json:"buffs"`
	Deaths int `json:"deaths"`

	// FirstActive and LastActive bound the actor's own actions.
	FirstActive time.Time `json:"first_active,omitzero"`
	LastActive  time.Time `json:"last_active,omitzero"`

	DPS float64 `json:"dps"`
	HPS float64 `json:"hps"`

	// Abilities is sorted by damage plus healing, then name.
	Abilities []AbilityStats `json:"abilities,omitempty"`
}

// AbilityStats is one actor's totals for one ability.
type AbilityStats struct {
	Name    string `json:"name"`
	Damage  int64  `json:"damage,omitempty"`
	Healing int64  `json:"healing,omitempty"`
	Hits    int    `json:"hits,omitempty"`
	Crits   int    `json:"crits,omitempty"`
	Uses    int    `json:"uses"`
}

// TimelinePoint holds the damage and healing done during one second of an
// encounter. Second counts from the encounter start.
type TimelinePoint struct {
	Second  int   `json:"second"`
	Damage  int64 `json:"damage"`
	Healing int64 `json:"healing"`
}
