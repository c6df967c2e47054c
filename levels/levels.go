// levels/levels.go - Level curve
package levels

import "math"

// MaxLevel is the highest reachable level. Experience keeps accumulating past
// the last threshold but the level stays capped.
const MaxLevel = 20

// thresholds[i] is the minimum experience required to be at level i+1.
var thresholds = [MaxLevel]int{
	0, 100, 250, 450, 700,
	1000, 1350, 1750, 2200, 2700,
	3250, 3850, 4500, 5200, 5950,
	6750, 7600, 8500, 9450, 10000,
}

// LevelFor returns the level for the given experience. Negative experience is
// treated as zero.
func LevelFor(xp int) int {
	if xp <= 0 {
		return 1
	}
	level := 1
	for i, t := range thresholds {
		if xp < t {
			break
		}
		level = i + 1
	}
	return level
}

// XPThreshold returns the minimum experience needed to be at level. Levels
// outside [1, MaxLevel] are clamped.
func XPThreshold(level int) int {
	return thresholds[clampLevel(level)-1]
}

// ProgressFraction reports how far xp is between level and the next one, in [0,1].
// At MaxLevel it is always 1.
func ProgressFraction(xp, level int) float64 {
	level = clampLevel(level)
	if level >= MaxLevel {
		return 1
	}
	lo := XPThreshold(level)
	hi := XPThreshold(level + 1)
	f := float64(xp-lo) / float64(hi-lo)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// ProgressPercent is ProgressFraction rounded to a whole percentage.
func ProgressPercent(xp, level int) int {
	return int(math.Round(ProgressFraction(xp, level) * 100))
}

// XPToNextLevel returns the experience still missing for the next level, or 0
// at MaxLevel.
func XPToNextLevel(xp, level int) int {
	level = clampLevel(level)
	if level >= MaxLevel {
		return 0
	}
	missing := XPThreshold(level+1) - xp
	if missing < 0 {
		return 0
	}
	return missing
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}
