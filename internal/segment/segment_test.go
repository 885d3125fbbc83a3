package segment

import (
	"testing"
	"time"

	"github.com/raidframer/raidlog-go/pkg/raidlog/event"
)

var t0 = time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)

func at(kind event.Kind, sec int) event.Event {
	return event.Event{Kind: kind, Timestamp: t0.Add(time.Duration(sec) * time.Second)}
}

func TestObserve_ThreeLineScenario(t *testing.T) {
	s := New(Config{Timeout: 30 * time.Second})
	now := time.Now()

	d := s.Observe(at(event.Damage, 0), now)
	if !d.Open || !d.Attach || d.Seal {
		t.Fatalf("t=0 decision = %+v, want open+attach", d)
	}

	d = s.Observe(at(event.Heal, 1), now)
	if d.Open || !d.Attach || d.Seal {
		t.Fatalf("t=1 decision = %+v, want attach", d)
	}

	d = s.Observe(at(event.Damage, 40), now)
	if !d.Seal || !d.Open || !d.Attach {
		t.Fatalf("t=40 decision = %+v, want seal+open+attach", d)
	}
	if want := t0.Add(time.Second); !d.SealAt.Equal(want) {
		t.Errorf("SealAt = %v, want %v", d.SealAt, want)
	}
	if s.State() != Active {
		t.Errorf("State() = %v, want active", s.State())
	}
}

func TestObserve_ExactlyTimeoutStaysOpen(t *testing.T) {
	s := New(Config{Timeout: 30 * time.Second})
	s.Observe(at(event.Damage, 0), time.Now())
	if d := s.Observe(at(event.Damage, 30), time.Now()); d.Seal {
		t.Errorf("gap equal to timeout sealed: %+v", d)
	}
}

func TestObserve_DeathHandling(t *testing.T) {
	s := New(Config{})

	if d := s.Observe(at(event.Death, 0), time.Now()); !d.IsZero() {
		t.Errorf("death while idle = %+v, want no-op", d)
	}
	if s.State() != Idle {
		t.Fatalf("death opened an encounter")
	}

	s.Observe(at(event.Damage, 1), time.Now())
	d := s.Observe(at(event.Death, 5), time.Now())
	if !d.Attach || d.Open || d.Seal {
		t.Errorf("death while active = %+v, want attach only", d)
	}

	// A death does not extend: 1 + 30 < 35.
	if d := s.Observe(at(event.Damage, 35), time.Now()); !d.Seal {
		t.Errorf("decision = %+v, want seal since the death did not move the deadline", d)
	}
}

func TestObserve_Unrecognized(t *testing.T) {
	s := New(Config{})
	s.Observe(at(event.Damage, 0), time.Now())
	if d := s.Observe(event.Event{Kind: event.Unrecognized}, time.Now()); !d.IsZero() {
		t.Errorf("unrecognized = %+v, want no-op", d)
	}
	if d := s.Observe(at(event.Damage, 2), time.Now()); d.Seal || !d.Attach {
		t.Errorf("decision after unrecognized = %+v, want attach", d)
	}
}

func TestObserve_ExtendOn(t *testing.T) {
	s := New(Config{Timeout: 10 * time.Second, Extends: ExtendOn(event.Damage)})

	if d := s.Observe(at(event.Heal, 0), time.Now()); !d.IsZero() {
		t.Fatalf("heal opened an encounter with damage-only policy: %+v", d)
	}
	s.Observe(at(event.Damage, 1), time.Now())
	s.Observe(at(event.Heal, 9), time.Now())
	d := s.Observe(at(event.Damage, 15), time.Now())
	if !d.Seal || !d.SealAt.Equal(t0.Add(time.Second)) {
		t.Errorf("decision = %+v, want seal at t=1", d)
	}
}

func TestExtendOn_NeverDeathOrUnrecognized(t *testing.T) {
	f := ExtendOn(event.Death, event.Unrecognized, event.Heal)
	if f(event.Death) || f(event.Unrecognized) {
		t.Error("ExtendOn accepted death or unrecognized")
	}
	if !f(event.Heal) {
		t.Error("ExtendOn rejected heal")
	}
}

func TestObserve_OutOfOrderKeepsDeadline(t *testing.T) {
	s := New(Config{Timeout: 30 * time.Second})
	s.Observe(at(event.Damage, 10), time.Now())
	s.Observe(at(event.Damage, 5), time.Now())
	if got := s.LastEvent(); !got.Equal(t0.Add(10 * time.Second)) {
		t.Errorf("LastEvent() = %v, want t=10", got)
	}
}

func TestExpire(t *testing.T) {
	s := New(Config{Timeout: 30 * time.Second})
	wall := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	if d := s.Expire(wall); !d.IsZero() {
		t.Errorf("Expire() while idle = %+v", d)
	}

	s.Observe(at(event.Damage, 0), wall)
	s.Observe(at(event.Damage, 3), wall.Add(time.Second))

	if d := s.Expire(wall.Add(31 * time.Second)); !d.IsZero() {
		t.Errorf("Expire() before timeout = %+v", d)
	}
	d := s.Expire(wall.Add(32 * time.Second))
	if !d.Seal {
		t.Fatalf("Expire() = %+v, want seal", d)
	}
	if want := t0.Add(3 * time.Second); !d.SealAt.Equal(want) {
		t.Errorf("SealAt = %v, want last event timestamp %v", d.SealAt, want)
	}
	if s.State() != Idle {
		t.Errorf("State() = %v, want idle", s.State())
	}

	d = s.Observe(at(event.Damage, 4), wall.Add(33*time.Second))
	if !d.Open || d.Seal {
		t.Errorf("next event after expiry = %+v, want open without seal", d)
	}
}

func TestReset(t *testing.T) {
	s := New(Config{})
	if d := s.Reset(); !d.IsZero() {
		t.Errorf("Reset() while idle = %+v", d)
	}
	s.Observe(at(event.Damage, 7), time.Now())
	d := s.Reset()
	if !d.Seal || !d.SealAt.Equal(t0.Add(7*time.Second)) {
		t.Errorf("Reset() = %+v, want seal at t=7", d)
	}
	if s.State() != Idle || !s.LastEvent().IsZero() {
		t.Errorf("after Reset state=%v last=%v", s.State(), s.LastEvent())
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{})
	if s.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", s.Timeout(), DefaultTimeout)
	}
}
