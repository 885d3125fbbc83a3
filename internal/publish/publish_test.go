package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raidframer/raidlog-go/pkg/raidlog"
)

type message struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, message{subject, data})
	return nil
}

func (c *fakeConn) messages() []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.msgs...)
}

func TestSubjects(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"current", CurrentSubject("raids"), "raids.encounter.current"},
		{"sealed", SealedSubject("raids"), "raids.encounter.sealed"},
		{"signal", SignalSubject("raids", raidlog.SignalRotationDetected), "raids.signal.rotation_detected"},
		{"empty prefix", CurrentSubject(""), "raidlog.encounter.current"},
		{"trailing dot", SealedSubject(" guild.raids. "), "guild.raids.encounter.sealed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPublishSnapshot(t *testing.T) {
	conn := &fakeConn{}
	p := New(conn, "raids", nil)

	snap := raidlog.EncounterStats{ID: "enc-1", State: raidlog.EncounterActive, TotalDamage: 42}
	if err := p.PublishSnapshot(snap); err != nil {
		t.Fatalf("PublishSnapshot() error = %v", err)
	}

	msgs := conn.messages()
	if len(msgs) != 1 || msgs[0].subject != "raids.encounter.current" {
		t.Fatalf("messages = %+v", msgs)
	}
	var got raidlog.EncounterStats
	if err := json.Unmarshal(msgs[0].data, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.ID != "enc-1" || got.TotalDamage != 42 {
		t.Errorf("payload = %+v", got)
	}
}

func TestPublishSignal_SealedIncludesSnapshot(t *testing.T) {
	conn := &fakeConn{}
	p := New(conn, "", nil)

	sealed := raidlog.EncounterStats{ID: "enc-7", State: raidlog.EncounterSealed}
	lookup := func(id string) (raidlog.EncounterStats, bool) {
		return sealed, id == sealed.ID
	}

	sig := raidlog.Signal{Kind: raidlog.SignalEncounterSealed, Time: time.Now(), EncounterID: "enc-7"}
	if err := p.PublishSignal(sig, lookup); err != nil {
		t.Fatalf("PublishSignal() error = %v", err)
	}

	msgs := conn.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected signal and snapshot, got %d messages", len(msgs))
	}
	if msgs[0].subject != "raidlog.signal.encounter_sealed" || msgs[1].subject != "raidlog.encounter.sealed" {
		t.Errorf("subjects = %q, %q", msgs[0].subject, msgs[1].subject)
	}

	var gotSig raidlog.Signal
	if err := json.Unmarshal(msgs[0].data, &gotSig); err != nil {
		t.Fatal(err)
	}
	if gotSig.EncounterID != "enc-7" {
		t.Errorf("signal payload = %+v", gotSig)
	}
}

func TestPublishSignal_OtherKindsOnly(t *testing.T) {
	conn := &fakeConn{}
	p := New(conn, "raidlog", nil)

	calls := 0
	lookup := func(string) (raidlog.EncounterStats, bool) {
		calls++
		return raidlog.EncounterStats{}, false
	}
	if err := p.PublishSignal(raidlog.Signal{Kind: raidlog.SignalLocatorFailed, Reason: "no log"}, lookup); err != nil {
		t.Fatal(err)
	}
	if err := p.PublishSignal(raidlog.Signal{Kind: raidlog.SignalEncounterSealed, EncounterID: "gone"}, lookup); err != nil {
		t.Fatal(err)
	}
	if got := len(conn.messages()); got != 2 {
		t.Errorf("messages = %d, want 2 (no snapshot for an evicted encounter)", got)
	}
	if calls != 1 {
		t.Errorf("lookup calls = %d, want 1", calls)
	}
}

func TestPublish_ConnError(t *testing.T) {
	boom := errors.New("boom")
	p := New(&fakeConn{err: boom}, "raidlog", nil)

	if err := p.PublishSnapshot(raidlog.EncounterStats{}); !errors.Is(err, boom) {
		t.Errorf("PublishSnapshot() error = %v, want %v", err, boom)
	}
}

func TestRun_PublishesUntilClosed(t *testing.T) {
	conn := &fakeConn{}
	p := New(conn, "raidlog", nil)

	updates := make(chan raidlog.EncounterStats, 2)
	updates <- raidlog.EncounterStats{ID: "a"}
	updates <- raidlog.EncounterStats{ID: "b"}
	close(updates)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), updates)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after updates closed")
	}
	if got := len(conn.messages()); got != 2 {
		t.Errorf("messages = %d, want 2", got)
	}
}

func TestRun_StopsOnContext(t *testing.T) {
	p := New(&fakeConn{}, "raidlog", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx, make(chan raidlog.EncounterStats))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
