package raidlog

import "time"

// SignalKind identifies a side signal.
type SignalKind string

const (
	// SignalSourceOpened is sent when a log file is opened for reading.
	SignalSourceOpened SignalKind = "source_opened"

	// SignalRotationDetected is sent when the log was truncated, replaced or
	// superseded by a newer file. The active encounter is sealed first.
	SignalRotationDetected SignalKind = "rotation_detected"

	// SignalLocatorFailed is sent when no log file can be resolved. It is
	// sent once per distinct reason, not once per poll.
	SignalLocatorFailed SignalKind = "locator_failed"

	// SignalUnreadable is sent when the open log cannot be read. Reading is
	// retried on the next poll.
	SignalUnreadable SignalKind = "unreadable"

	// SignalEncounterSealed is sent when an encounter seals.
	SignalEncounterSealed SignalKind = "encounter_sealed"
)

// Signal is a transient status notification. Signals are never fatal: the
// engine keeps running and retries on its own.
type Signal struct {
	Kind SignalKind `json:"kind"`
	Time time.Time  `json:"time"`

	// Path is the log file involved, if any.
	Path string `json:"path,omitempty"`

	// Reason describes a failure or rotation.
	Reason string `json:"reason,omitempty"`

	// EncounterID is set for SignalEncounterSealed.
	EncounterID string `json:"encounter_id,omitempty"`
}

func (s Signal) String() string {
	out := string(s.Kind)
	if s.Path != "" {
		out += " " + s.Path
	}
	if s.EncounterID != "" {
		out += " " + s.EncounterID
	}
	if s.Reason != "" {
		out += ": " + s.Reason
	}
	return out
}

// Diagnostics is a point-in-time view of the engine's counters.
type Diagnostics struct {
	Running bool   `json:"running"`
	Source  Source `json:"source"`

	LinesRead        uint64 `json:"lines_read"`
	EventsParsed     uint64 `json:"events_parsed"`
	ParseSkips       uint64 `json:"parse_skips"`
	Rotations        uint64 `json:"rotations"`
	LocatorFailures  uint64 `json:"locator_failures"`
	ReadErrors       uint64 `json:"read_errors"`
	EncountersSealed uint64 `json:"encounters_sealed"`

	// SignalsDropped counts signals lost because the Signals channel was full.
	SignalsDropped uint64 `json:"signals_dropped"`

	// NotificationsDropped counts snapshots a slow subscriber never saw.
	NotificationsDropped uint64 `json:"notifications_dropped"`
}
