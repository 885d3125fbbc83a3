package raidlog

import (
	"testing"
	"time"
)

func TestSelectKinds(t *testing.T) {
	tests := []struct {
		name    string
		include []Kind
		exclude []Kind
		kind    Kind
		want    bool
	}{
		{
			name: "no lists keeps everything",
			kind: KindDamage,
			want: true,
		},
		{
			name:    "include keeps listed kind",
			include: []Kind{KindDamage},
			kind:    KindDamage,
			want:    true,
		},
		{
			name:    "include drops other kinds",
			include: []Kind{KindDamage},
			kind:    KindHeal,
			want:    false,
		},
		{
			name:    "include drops unrecognized",
			include: []Kind{KindDamage},
			kind:    KindUnrecognized,
			want:    false,
		},
		{
			name:    "exclude drops listed kind",
			exclude: []Kind{KindDeath},
			kind:    KindDeath,
			want:    false,
		},
		{
			name:    "exclude wins over include",
			include: []Kind{KindHeal},
			exclude: []Kind{KindHeal},
			kind:    KindHeal,
			want:    false,
		},
		{
			name:    "exclude only keeps unrecognized",
			exclude: []Kind{KindDamage},
			kind:    KindUnrecognized,
			want:    true,
		},
		{
			name:    "exclude only keeps every other kind",
			exclude: []Kind{KindDamage},
			kind:    KindBuffExpire,
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := selectKinds(tt.include, tt.exclude).has(tt.kind); got != tt.want {
				t.Errorf("has(%v) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestSelectKinds_NilWithoutLists(t *testing.T) {
	if s := selectKinds(nil, nil); s != nil {
		t.Errorf("selectKinds(nil, nil) = %v, want nil", s)
	}
}

func TestParseConfig_Keeps(t *testing.T) {
	base := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)
	damage := Event{Kind: KindDamage, Timestamp: base}
	noise := Event{Kind: KindUnrecognized, RawLine: "???"}

	tests := []struct {
		name string
		opts []ParseOption
		ev   Event
		want bool
	}{
		{"defaults keep recognized", nil, damage, true},
		{"defaults drop unrecognized", nil, noise, false},
		{"unrecognized opt-in", []ParseOption{WithParseIncludeUnrecognized(true)}, noise, true},
		{"since inclusive", []ParseOption{WithParseSince(base)}, damage, true},
		{"before since", []ParseOption{WithParseSince(base.Add(time.Second))}, damage, false},
		{"until exclusive", []ParseOption{WithParseUntil(base)}, damage, false},
		{"time range ignores unrecognized", []ParseOption{
			WithParseSince(base.Add(time.Hour)),
			WithParseIncludeUnrecognized(true),
		}, noise, true},
		{"kind filter applies to unrecognized", []ParseOption{
			WithParseIncludeKinds(KindDamage),
			WithParseIncludeUnrecognized(true),
		}, noise, false},
		{"separate include and exclude options", []ParseOption{
			WithParseIncludeKinds(KindDamage, KindHeal),
			WithParseExcludeKinds(KindDamage),
		}, damage, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := applyParseOptions(tt.opts).keeps(tt.ev); got != tt.want {
				t.Errorf("keeps() = %v, want %v", got, tt.want)
			}
		})
	}
}
