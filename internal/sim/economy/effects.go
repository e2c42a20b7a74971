package economy

import "pixeltycoon/internal/sim/catalogs"

func (e *Engine) applyEffect(eff catalogs.Effect) {
	switch eff.Kind {
	case catalogs.EffectMultiplyClickPower:
		e.st.ClickPower *= eff.Factor
	case catalogs.EffectAddClickPower:
		e.st.ClickPower += eff.Amount
	case catalogs.EffectMultiplyAllIncome:
		for i := range e.st.Businesses {
			e.st.Businesses[i].BaseIncome *= eff.Factor
		}
	case catalogs.EffectMultiplyCost:
		// Recorded only. Business prices stay ceil(baseCost * growth^owned).
		e.st.CostMultiplier *= eff.Factor
	case catalogs.EffectEnableLuckyClick:
		e.st.LuckyClick = true
	case catalogs.EffectEnableTimedBonus:
		e.st.TimedBonus = true
	}
}
