package engine

import "math"

// Progress is the completion percentage shown alongside a session: (current+1)/total,
// rounded to the nearest whole percent. A submitted form is always at 100.
func Progress(state NavigationState) int {
	if state.Status == StatusSubmitted {
		return 100
	}
	if state.TotalStages <= 0 {
		return 0
	}
	pct := int(math.Round(float64(state.CurrentStageIndex+1) * 100 / float64(state.TotalStages)))
	return min(max(pct, 0), 100)
}
