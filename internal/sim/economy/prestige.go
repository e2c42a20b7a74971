package economy

import "math"

// PrestigeRequirement is the coin balance needed for the next prestige:
// 10^(base exponent + prestiges so far).
func (e *Engine) PrestigeRequirement() float64 {
	return math.Pow10(e.tune.PrestigeBaseExponent + e.st.PrestigeCount)
}

func (e *Engine) CanPrestige() bool {
	return e.st.Coins >= e.PrestigeRequirement()
}

// Prestige trades the current run for one token. Coins, click power,
// businesses, upgrades and upgrade flags reset; tokens, prestige count,
// lifetime earnings, gems and settings survive. Business base incomes keep
// any income upgrades bought before the reset.
func (e *Engine) Prestige() bool {
	if !e.CanPrestige() {
		return false
	}
	st := &e.st
	st.PrestigeTokens++
	st.PrestigeCount++
	st.PrestigeMultiplier = e.multiplierFor(st.PrestigeTokens)

	st.Coins = 0
	st.ClickPower = e.tune.StartingClickPower
	for i := range st.Businesses {
		def, _ := e.cats.Business(i)
		st.Businesses[i].Owned = 0
		st.Businesses[i].CurrentCost = e.costAt(def, 0)
	}
	for _, list := range st.Upgrades {
		for i := range list {
			list[i].Purchased = false
		}
	}
	st.LuckyClick = false
	st.TimedBonus = false
	st.CostMultiplier = 1

	e.RecomputeIncome()
	return true
}

func (e *Engine) multiplierFor(tokens int) float64 {
	return 1 + e.tune.PrestigeBonusPerToken*float64(tokens)
}
