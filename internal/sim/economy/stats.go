package economy

// Stats is the lifetime summary shown by the stats screen and the admin tool.
type Stats struct {
	TotalCoinsEarned   float64
	Coins              float64
	IncomePerSecond    float64
	ClickPower         float64
	PrestigeTokens     int
	PrestigeCount      int
	PrestigeMultiplier float64
	BusinessesOwned    int
	UpgradesPurchased  int
}

func (e *Engine) Stats() Stats {
	s := Stats{
		TotalCoinsEarned:   e.st.TotalCoinsEarned,
		Coins:              e.st.Coins,
		IncomePerSecond:    e.st.IncomePerSecond,
		ClickPower:         e.st.ClickPower,
		PrestigeTokens:     e.st.PrestigeTokens,
		PrestigeCount:      e.st.PrestigeCount,
		PrestigeMultiplier: e.st.PrestigeMultiplier,
	}
	for _, b := range e.st.Businesses {
		s.BusinessesOwned += b.Owned
	}
	for _, list := range e.st.Upgrades {
		for _, u := range list {
			if u.Purchased {
				s.UpgradesPurchased++
			}
		}
	}
	return s
}

// View is a read-only projection for presentation: the state plus the
// predicates a renderer needs.
type View struct {
	State               State
	Unlocked            []bool
	PrestigeRequirement float64
	CanPrestige         bool
}

func (e *Engine) View() View {
	v := View{
		State:               e.st.Clone(),
		Unlocked:            make([]bool, len(e.st.Businesses)),
		PrestigeRequirement: e.PrestigeRequirement(),
		CanPrestige:         e.CanPrestige(),
	}
	for i := range v.Unlocked {
		v.Unlocked[i] = e.IsUnlocked(i)
	}
	return v
}

type CueKind string

const (
	CueClick    CueKind = "click"
	CuePurchase CueKind = "purchase"
	CuePrestige CueKind = "prestige"
)

// Cue reports whether the sound for kind should play. Sound is the only
// setting the engine consults.
func (e *Engine) Cue(kind CueKind) bool {
	switch kind {
	case CueClick, CuePurchase, CuePrestige:
		return e.st.Settings.Sound
	}
	return false
}
