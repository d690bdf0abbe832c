package domain

// Tier: ранг путешественника, вычисляемый только из XP.
type Tier string

const (
	TierWanderer      Tier = "Wanderer"
	TierTrailblazer   Tier = "Trailblazer"
	TierPathfinder    Tier = "Pathfinder"
	TierWorldExplorer Tier = "World Explorer"
	TierSarthiElite   Tier = "Sarthi Elite"
)

// DefaultPlaceXP начисляется за место без собственной стоимости.
const DefaultPlaceXP = 50

type tierStep struct {
	MinXP int
	Tier  Tier
}

// упорядочены по убыванию порога
var tierSteps = []tierStep{
	{MinXP: 10000, Tier: TierSarthiElite},
	{MinXP: 6000, Tier: TierWorldExplorer},
	{MinXP: 3000, Tier: TierPathfinder},
	{MinXP: 1000, Tier: TierTrailblazer},
	{MinXP: 0, Tier: TierWanderer},
}

// TierFromXP возвращает ранг для XP. Отрицательные значения считаются нулём.
func TierFromXP(xp int) Tier {
	if xp < 0 {
		xp = 0
	}
	for _, step := range tierSteps {
		if xp >= step.MinXP {
			return step.Tier
		}
	}
	return TierWanderer
}

// NextTier возвращает следующий ранг и сколько XP до него осталось.
// Для максимального ранга возвращает false.
func NextTier(xp int) (Tier, int, bool) {
	if xp < 0 {
		xp = 0
	}
	for i := len(tierSteps) - 1; i >= 0; i-- {
		if tierSteps[i].MinXP > xp {
			return tierSteps[i].Tier, tierSteps[i].MinXP - xp, true
		}
	}
	return "", 0, false
}

// PlaceXP возвращает стоимость места.
func PlaceXP(p Place) int {
	if p.XP != nil {
		return *p.XP
	}
	return DefaultPlaceXP
}

// ComputeStats пересчитывает агрегат по всем главам пользователя.
// chaptersCreated переносится как есть: это счётчик, а не производное значение.
func ComputeStats(chapters []Chapter, chaptersCreated int) Stats {
	stats := Stats{ChaptersCreated: chaptersCreated}
	for _, ch := range chapters {
		for _, p := range ch.Places {
			if !p.Done() {
				continue
			}
			stats.PlacesVisited++
			stats.XP += PlaceXP(p)
		}
	}
	if stats.XP < 0 {
		stats.XP = 0
	}
	stats.Tier = TierFromXP(stats.XP)
	return stats
}

// WithDerivedTier выставляет ранг строго по XP.
func (s Stats) WithDerivedTier() Stats {
	if s.XP < 0 {
		s.XP = 0
	}
	s.Tier = TierFromXP(s.XP)
	return s
}
