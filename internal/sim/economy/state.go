package economy

import (
	"time"

	"pixeltycoon/internal/sim/catalogs"
)

// State is the single mutable game aggregate. It is owned by one Engine and
// must only be touched from the goroutine driving that Engine.
type State struct {
	Coins      float64
	ClickPower float64

	// IncomePerSecond is derived from Businesses and PrestigeMultiplier and
	// refreshed after every mutation that can change it.
	IncomePerSecond float64

	Businesses []BusinessState
	Upgrades   map[catalogs.Category][]UpgradeState

	PrestigeTokens     int
	PrestigeCount      int
	PrestigeMultiplier float64

	// Gems is premium currency. Nothing in the economy grants or spends it.
	Gems float64

	// TotalCoinsEarned is a lifetime counter; prestige never resets it.
	TotalCoinsEarned float64

	LastSaveTime    time.Time
	OfflineEarnings float64

	Settings Settings

	// Effect flags set by one-shot upgrades.
	CostMultiplier float64
	LuckyClick     bool
	TimedBonus     bool
}

// BusinessState tracks one catalog business. Index in State.Businesses equals
// the catalog index.
type BusinessState struct {
	ID          int
	Owned       int
	CurrentCost float64
	// BaseIncome starts at the catalog value; income upgrades scale it in place.
	BaseIncome float64
}

type UpgradeState struct {
	ID        string
	Purchased bool
}

type Settings struct {
	Sound    bool
	Music    bool
	AutoSave bool
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s State) Clone() State {
	out := s
	out.Businesses = append([]BusinessState(nil), s.Businesses...)
	out.Upgrades = make(map[catalogs.Category][]UpgradeState, len(s.Upgrades))
	for cat, list := range s.Upgrades {
		out.Upgrades[cat] = append([]UpgradeState(nil), list...)
	}
	return out
}
