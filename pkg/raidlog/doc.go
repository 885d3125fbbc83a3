// Package raidlog turns a game's append-only combat log into live
// encounter statistics.
//
// This package allows you to:
//   - Find and tail the active combat log, surviving truncation and rotation
//   - Split the event stream into encounters by inactivity
//   - Read per-participant damage, healing and DPS while combat is running
//   - Replay a finished log offline with identical results
//
// # Basic Usage
//
// To follow the newest combat log:
//
//	engine, err := raidlog.New(
//	    raidlog.WithSearchEverywhere(true),
//	    raidlog.WithCandidateDirs(raidlog.DefaultCandidateDirs()...),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
//	updates, unsubscribe := engine.Subscribe()
//	defer unsubscribe()
//	for snap := range updates {
//	    for _, p := range snap.Participants {
//	        fmt.Printf("%-20s %8d %8.1f dps\n", p.Actor.Name, p.DamageDone, p.DPS)
//	    }
//	}
//
// Transient problems (no log yet, the file being rotated, a read failure)
// never stop the engine. They are reported on Signals and retried on the
// next poll.
//
// To segment a finished log:
//
//	encounters, err := raidlog.Replay(ctx, "CombatLog.txt")
//
// # Grammar
//
// The built-in grammar reads lines such as
//
//	2024-01-15 20:01:02.250 Alice hits Ogre Chieftain for 1,250 with Fireball (critical)
//
// Other formats can be described in a YAML grammar file (WithGrammarFile)
// or by implementing Parser (WithParser).
package raidlog
