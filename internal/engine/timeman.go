package engine

import (
	"time"
)

// AllocateTime derives soft and hard budgets for one move from a game
// clock. movesToGo is 0 in sudden death. ply is the game ply.
func AllocateTime(clock, inc time.Duration, movesToGo, ply int) (soft, hard time.Duration) {
	if clock <= 0 {
		return 0, 0
	}

	// Sudden death: expect more moves early in the game
	mtg := movesToGo
	if mtg <= 0 {
		mtg = clamp(50-ply/4, 10, 50)
	}

	soft = clock/time.Duration(mtg) + inc*9/10
	if ply < 8 {
		soft = soft * 85 / 100
	}

	// 5x soft or 80% of the clock, whichever is smaller
	hard = min(soft*5, clock*8/10)
	soft = min(soft, hard)

	soft = max(soft, 10*time.Millisecond)
	hard = max(hard, 50*time.Millisecond)
	return soft, hard
}

// TimeManager tracks the budgets of a running search.
type TimeManager struct {
	soft      time.Duration
	hard      time.Duration
	startTime time.Time

	lastBest  uint32
	stability int
}

// Start begins timing a search with the given budgets. Zero means no limit.
func (tm *TimeManager) Start(soft, hard time.Duration) {
	*tm = TimeManager{soft: soft, hard: hard, startTime: time.Now()}
}

// Elapsed returns the time elapsed since search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// HardLimit returns the cancellation budget, or 0.
func (tm *TimeManager) HardLimit() time.Duration {
	return tm.hard
}

// Update records the best move of a finished iteration.
func (tm *TimeManager) Update(best uint32) {
	if best == tm.lastBest {
		tm.stability++
	} else {
		tm.stability = 0
	}
	tm.lastBest = best
}

// softLimit scales the soft budget by how long the best move has held:
// a move that just changed earns extra time, a settled one gives some back.
func (tm *TimeManager) softLimit() time.Duration {
	scale := 100
	switch {
	case tm.stability == 0:
		scale = 150
	case tm.stability >= 6:
		scale = 50
	case tm.stability >= 3:
		scale = 75
	}
	limit := tm.soft * time.Duration(scale) / 100
	if tm.hard > 0 {
		limit = min(limit, tm.hard)
	}
	return limit
}

// PastSoftLimit reports whether no further iteration should start.
func (tm *TimeManager) PastSoftLimit() bool {
	return tm.soft > 0 && tm.Elapsed() >= tm.softLimit()
}
