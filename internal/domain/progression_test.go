package domain

import (
	"testing"
	"time"
)

func TestTierFromXP(t *testing.T) {
	tests := []struct {
		name string
		xp   int
		want Tier
	}{
		{name: "zero", xp: 0, want: TierWanderer},
		{name: "negative clamps", xp: -40, want: TierWanderer},
		{name: "just below trailblazer", xp: 999, want: TierWanderer},
		{name: "trailblazer", xp: 1000, want: TierTrailblazer},
		{name: "top of trailblazer", xp: 2999, want: TierTrailblazer},
		{name: "pathfinder", xp: 3000, want: TierPathfinder},
		{name: "top of pathfinder", xp: 5999, want: TierPathfinder},
		{name: "world explorer", xp: 6000, want: TierWorldExplorer},
		{name: "top of world explorer", xp: 9999, want: TierWorldExplorer},
		{name: "elite", xp: 10000, want: TierSarthiElite},
		{name: "far above elite", xp: 250000, want: TierSarthiElite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TierFromXP(tt.xp); got != tt.want {
				t.Fatalf("TierFromXP(%d) = %q, want %q", tt.xp, got, tt.want)
			}
		})
	}
}

func TestTierFromXPMonotonic(t *testing.T) {
	rank := map[Tier]int{
		TierWanderer:      0,
		TierTrailblazer:   1,
		TierPathfinder:    2,
		TierWorldExplorer: 3,
		TierSarthiElite:   4,
	}
	prev := -1
	for xp := 0; xp <= 12000; xp += 7 {
		r, ok := rank[TierFromXP(xp)]
		if !ok {
			t.Fatalf("неизвестный ранг для xp=%d: %q", xp, TierFromXP(xp))
		}
		if r < prev {
			t.Fatalf("ранг убывает на xp=%d", xp)
		}
		prev = r
	}
}

func TestNextTier(t *testing.T) {
	tier, left, ok := NextTier(950)
	if !ok || tier != TierTrailblazer || left != 50 {
		t.Fatalf("ожидали Trailblazer через 50 XP, получили %q %d %v", tier, left, ok)
	}
	if _, _, ok := NextTier(10000); ok {
		t.Fatal("у максимального ранга нет следующего")
	}
}

func TestComputeStats(t *testing.T) {
	xp80 := 80
	xp120 := 120
	now := time.Now()
	chapters := []Chapter{
		{Places: []Place{
			{PlaceID: "a", Status: PlaceStatusDone, XP: &xp80, VisitedOn: &now},
			{PlaceID: "b", Status: PlaceStatusPending, XP: &xp120},
		}},
		{Places: []Place{
			{PlaceID: "c", Status: PlaceStatusDone, VisitedOn: &now},
			{PlaceID: "d", Status: PlaceStatusDone, XP: &xp120, VisitedOn: &now},
		}},
	}
	stats := ComputeStats(chapters, 2)
	if stats.PlacesVisited != 3 {
		t.Fatalf("ожидали 3 посещённых места, получили %d", stats.PlacesVisited)
	}
	if want := 80 + DefaultPlaceXP + 120; stats.XP != want {
		t.Fatalf("ожидали %d XP, получили %d", want, stats.XP)
	}
	if stats.ChaptersCreated != 2 {
		t.Fatalf("счётчик глав не должен меняться")
	}
	if stats.Tier != TierFromXP(stats.XP) {
		t.Fatalf("ранг не совпадает с XP")
	}
}

func TestComputeStatsFlatRate(t *testing.T) {
	var places []Place
	for i := 0; i < 7; i++ {
		places = append(places, Place{Status: PlaceStatusDone})
	}
	stats := ComputeStats([]Chapter{{Places: places}}, 1)
	if stats.XP != 7*DefaultPlaceXP || stats.PlacesVisited != 7 {
		t.Fatalf("ожидали 350 XP и 7 мест, получили %d и %d", stats.XP, stats.PlacesVisited)
	}
}

func TestPlaceToggleKeepsVisitedOnInvariant(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p := Place{PlaceID: "x", Status: PlaceStatusPending}
	done := p.Toggle(now)
	if !done.Done() || done.VisitedOn == nil || !done.VisitedOn.Equal(now) {
		t.Fatalf("ожидали done с visited_on, получили %+v", done)
	}
	back := done.Toggle(now.Add(time.Hour))
	if back.Done() || back.VisitedOn != nil {
		t.Fatalf("ожидали pending без visited_on, получили %+v", back)
	}
}
