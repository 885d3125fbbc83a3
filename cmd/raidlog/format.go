package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/raidframer/raidlog-go/pkg/raidlog"
)

// ValidFormats lists the output formats of the events command.
var ValidFormats = map[string]bool{
	"jsonl":  true,
	"pretty": true,
}

// ValidSnapshotFormats lists the output formats of watch and replay.
var ValidSnapshotFormats = map[string]bool{
	"table": true,
	"jsonl": true,
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E8E8E8"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787"))
	sealedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87AFD7"))
	critStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF5F"))
)

type column struct {
	title string
	width int
	right bool
}

var participantColumns = []column{
	{"Name", 24, false},
	{"Kind", 7, false},
	{"Damage", 10, true},
	{"DPS", 9, true},
	{"Healing", 10, true},
	{"HPS", 9, true},
	{"Taken", 10, true},
	{"Crit%", 6, true},
	{"Deaths", 6, true},
}

// OutputJSON writes v as one JSON line.
func OutputJSON(v any, w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(v)
}

// OutputPretty writes a one-line human-readable rendering of ev.
func OutputPretty(ev raidlog.Event, w io.Writer) error {
	ts := ev.Timestamp.Format("15:04:05.000")
	var line string
	switch ev.Kind {
	case raidlog.KindDamage:
		line = fmt.Sprintf("%s ⚔ %s → %s %d", ts, ev.Source.Name, ev.Target.Name, ev.Amount)
	case raidlog.KindHeal:
		line = fmt.Sprintf("%s + %s → %s %d", ts, ev.Source.Name, ev.Target.Name, ev.Amount)
	case raidlog.KindBuffApply:
		line = fmt.Sprintf("%s ↑ %s gains %s", ts, ev.Target.Name, ev.Ability)
	case raidlog.KindBuffExpire:
		line = fmt.Sprintf("%s ↓ %s loses %s", ts, ev.Target.Name, ev.Ability)
	case raidlog.KindDeath:
		line = fmt.Sprintf("%s ✝ %s died", ts, ev.Target.Name)
		if !ev.Source.IsZero() {
			line += " (" + ev.Source.Name + ")"
		}
	case raidlog.KindUnrecognized:
		line = fmt.Sprintf("? %s", ev.RawLine)
	default:
		line = fmt.Sprintf("%s %s", ts, ev.Kind)
	}
	if ev.Kind == raidlog.KindDamage || ev.Kind == raidlog.KindHeal {
		if ev.Ability != "" {
			line += " (" + ev.Ability + ")"
		}
		if ev.Critical {
			line += " " + critStyle.Render("crit")
		}
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// OutputEvent writes ev in the given format.
func OutputEvent(format string, ev raidlog.Event, w io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(ev, w)
	case "pretty":
		return OutputPretty(ev, w)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// OutputSnapshot writes s in the given format.
func OutputSnapshot(format string, s raidlog.EncounterStats, w io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(s, w)
	case "table":
		_, err := io.WriteString(w, RenderSnapshot(s)+"\n")
		return err
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// RenderSnapshot renders an encounter header and its participant table.
func RenderSnapshot(s raidlog.EncounterStats) string {
	state := sealedStyle.Render(string(s.State))
	if s.Active() {
		state = activeStyle.Render(string(s.State))
	}
	header := fmt.Sprintf("%s  %s  %s  %s",
		headerStyle.Render("Encounter "+shortID(s.ID)),
		state,
		s.Start.Format("2006-01-02 15:04:05"),
		formatDuration(s.Duration))
	totals := mutedStyle.Render(fmt.Sprintf("damage %s  healing %s  events %d",
		formatAmount(s.TotalDamage), formatAmount(s.TotalHealing), s.EventCount))

	rows := []string{header, totals, "", renderRow(participantTitles(), headerStyle)}
	for _, p := range s.Participants {
		rows = append(rows, renderRow(participantCells(p), lipgloss.NewStyle()))
	}
	if len(s.Participants) == 0 {
		rows = append(rows, mutedStyle.Render("no participants"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func participantTitles() []string {
	titles := make([]string, len(participantColumns))
	for i, c := range participantColumns {
		titles[i] = c.title
	}
	return titles
}

func participantCells(p raidlog.ParticipantStats) []string {
	critPct := 0.0
	if n := p.Hits + p.Heals; n > 0 {
		critPct = float64(p.Crits) * 100 / float64(n)
	}
	return []string{
		p.Actor.Name,
		string(p.Actor.Kind),
		formatAmount(p.DamageDone),
		fmt.Sprintf("%.1f", p.DPS),
		formatAmount(p.HealingDone),
		fmt.Sprintf("%.1f", p.HPS),
		formatAmount(p.DamageTaken),
		fmt.Sprintf("%.0f", critPct),
		fmt.Sprintf("%d", p.Deaths),
	}
}

func renderRow(cells []string, style lipgloss.Style) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		c := participantColumns[i]
		align := lipgloss.Left
		if c.right {
			align = lipgloss.Right
		}
		parts[i] = style.Width(c.width).MaxWidth(c.width).Align(align).Render(truncate(cell, c.width))
	}
	return strings.Join(parts, " ")
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if width <= 1 || len(r) < width {
		return string(r[:max(width, 0)])
	}
	return string(r[:width-1]) + "…"
}

// formatAmount groups thousands: 1234567 -> 1,234,567.
func formatAmount(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d / time.Minute)
	sec := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%d:%02d", m, sec)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
