package economy

import "time"

// CatchUp sets OfflineEarnings to what passive income would have produced
// between LastSaveTime and now, capped at the tuning's offline cap. Clock
// skew (now before the last save) earns nothing.
func (e *Engine) CatchUp(now time.Time) float64 {
	e.st.OfflineEarnings = e.offlineFor(now)
	return e.st.OfflineEarnings
}

func (e *Engine) offlineFor(now time.Time) float64 {
	if e.st.LastSaveTime.IsZero() {
		return 0
	}
	away := now.Sub(e.st.LastSaveTime)
	if away <= 0 {
		return 0
	}
	if limit := e.tune.OfflineCap(); away > limit {
		away = limit
	}
	return e.st.IncomePerSecond * away.Seconds()
}

// ClaimOfflineEarnings credits pending offline earnings once and clears them.
func (e *Engine) ClaimOfflineEarnings() float64 {
	amount := e.st.OfflineEarnings
	if amount <= 0 {
		return 0
	}
	e.credit(amount)
	e.st.OfflineEarnings = 0
	return amount
}
