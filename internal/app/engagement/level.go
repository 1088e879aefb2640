package engagement

import (
	"math"

	"github.com/ritim-app/ritim/internal/domain"
)

// xpPerLevelUnit scales the square-root curve: level L needs 100·(L-1)² XP.
const xpPerLevelUnit = 100

// XPForLevel returns the cumulative XP required to reach a given level.
// Levels below 1 are clamped to 1.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	return xpPerLevelUnit * n * n
}

// LevelForXP returns floor(sqrt(xp/100)) + 1. Negative XP is clamped to 0.
// The float estimate is corrected against XPForLevel so rounding never
// misplaces a boundary.
func LevelForXP(xp int64) int {
	if xp <= 0 {
		return 1
	}
	level := int(math.Sqrt(float64(xp)/xpPerLevelUnit)) + 1
	for level > 1 && XPForLevel(level) > xp {
		level--
	}
	for XPForLevel(level+1) <= xp {
		level++
	}
	return level
}

// XPToNextLevel returns XP remaining until the next level.
func XPToNextLevel(xp int64) int64 {
	if xp < 0 {
		xp = 0
	}
	return XPForLevel(LevelForXP(xp)+1) - xp
}

// ProgressPct returns progress toward the next level (0.0–100.0).
func ProgressPct(xp int64) float64 {
	if xp < 0 {
		xp = 0
	}
	level := LevelForXP(xp)
	thisLevel := XPForLevel(level)
	span := XPForLevel(level+1) - thisLevel
	if span <= 0 {
		return 100.0
	}
	progress := float64(xp-thisLevel) / float64(span) * 100.0
	return min(max(progress, 0), 100)
}

// ─── Ranks ──────────────────────────────────────────────────────────────────

// ranks is ordered by ascending MinLevel. The first tier must start at 1.
var ranks = []domain.Rank{
	{MinLevel: 1, Name: "Seedling", Icon: "🌱"},
	{MinLevel: 5, Name: "Sprout", Icon: "🌿"},
	{MinLevel: 10, Name: "Sapling", Icon: "🪴"},
	{MinLevel: 15, Name: "Young Tree", Icon: "🌳"},
	{MinLevel: 20, Name: "Grove Keeper", Icon: "🌲"},
	{MinLevel: 30, Name: "Forest Sage", Icon: "🏞️"},
}

// Ranks returns the rank table (for display).
func Ranks() []domain.Rank {
	out := make([]domain.Rank, len(ranks))
	copy(out, ranks)
	return out
}

// RankForLevel returns the highest tier whose MinLevel ≤ level.
// Levels below 1 get the first tier.
func RankForLevel(level int) domain.Rank {
	rank := ranks[0]
	for _, r := range ranks[1:] {
		if r.MinLevel > level {
			break
		}
		rank = r
	}
	return rank
}

// NextRank returns the tier after the one level is in, and false at the top.
func NextRank(level int) (domain.Rank, bool) {
	for _, r := range ranks {
		if r.MinLevel > level {
			return r, true
		}
	}
	return domain.Rank{}, false
}
