package battle

import "time"

// scoreAnswer computes the points for one graded answer and the player's new
// streak. A wrong answer scores nothing and resets the streak.
func (g *Game) scoreAnswer(correct bool, latency time.Duration, prevStreak int) (points, newStreak int) {
	if !correct {
		return 0, 0
	}
	newStreak = prevStreak + 1
	points = g.cfg.BasePoints
	if latency <= g.cfg.SpeedBonusWindow {
		points += g.cfg.SpeedBonus
	}
	if newStreak >= g.cfg.StreakThreshold {
		points += g.cfg.StreakBonus
	}
	return points, newStreak
}
