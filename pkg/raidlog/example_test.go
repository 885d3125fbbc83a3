package raidlog_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/raidframer/raidlog-go/pkg/raidlog"
)

// ExampleParseLine demonstrates parsing a single line with the built-in grammar.
func ExampleParseLine() {
	ev := raidlog.ParseLine("2024-01-15 20:00:00 Alice hits Ogre Chieftain for 1,250 with Fireball (critical)")

	fmt.Println(ev.Kind)
	fmt.Println(ev.Source.Name, "->", ev.Target.Name, ev.Target.Kind)
	fmt.Println(ev.Amount, ev.Ability, ev.Critical)
	// Output:
	// damage
	// Alice -> Ogre Chieftain npc
	// 1250 Fireball true
}

// ExampleReplay demonstrates segmenting a finished log offline.
func ExampleReplay() {
	dir, err := os.MkdirTemp("", "raidlog-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "CombatLog.txt")
	content := "2024-01-15 20:00:00 A hits B for 100\n" +
		"2024-01-15 20:00:01 B heals A for 50\n" +
		"2024-01-15 20:00:40 A hits B for 20\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		log.Fatal(err)
	}

	encounters, err := raidlog.Replay(context.Background(), path,
		raidlog.WithInactivityTimeout(30*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	for _, enc := range encounters {
		fmt.Printf("%s damage=%d healing=%d\n", enc.State, enc.TotalDamage, enc.TotalHealing)
	}
	// Output:
	// sealed damage=100 healing=50
	// active damage=20 healing=0
}

// ExampleNew_errors demonstrates checking configuration errors.
func ExampleNew_errors() {
	_, err := raidlog.New(raidlog.WithFilterRules(raidlog.FilterRule{
		Pattern: "Training*",
		Action:  "hide",
	}))
	if errors.Is(err, raidlog.ErrInvalidRule) {
		fmt.Println("invalid filter rule")
	}
	// Output:
	// invalid filter rule
}

// ExampleEngine_Subscribe demonstrates following live encounter snapshots.
func ExampleEngine_Subscribe() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := raidlog.New(
		raidlog.WithSearchEverywhere(true),
		raidlog.WithCandidateDirs(raidlog.DefaultCandidateDirs()...),
	)
	if err != nil {
		log.Fatal(err)
	}
	if err := engine.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer engine.Stop()

	updates, unsubscribe := engine.Subscribe()
	defer unsubscribe()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			for _, p := range snap.Participants {
				fmt.Printf("%-20s %8d %8.1f dps\n", p.Actor.Name, p.DamageDone, p.DPS)
			}
		case sig, ok := <-engine.Signals():
			if !ok {
				return
			}
			log.Printf("signal: %s", sig)
		}
	}
}
