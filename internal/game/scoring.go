package game

import "math"

const (
	BasePoints     = 100
	MaxTimeBonus   = 50
	StreakBonusPer = 10
)

// Points scores a correct answer. streakBefore is the streak the player carried
// into this round, before it is incremented for the current answer.
func Points(timeRemaining, totalTime, streakBefore int) int {
	ratio := 0.0
	if totalTime > 0 {
		ratio = float64(timeRemaining) / float64(totalTime)
	}
	ratio = math.Max(0, math.Min(1, ratio))
	return int(math.Round(BasePoints + ratio*MaxTimeBonus + float64(streakBefore*StreakBonusPer)))
}
