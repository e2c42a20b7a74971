package economy

import (
	"math"
	"math/rand/v2"
	"time"

	"pixeltycoon/internal/sim/catalogs"
	"pixeltycoon/internal/sim/tuning"
)

// Rand is the randomness source for lucky clicks. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Engine applies player intents and timer ticks to a State.
//
// Every mutating method is total: invalid intents (unaffordable, already
// purchased, out of range) leave the state untouched and report false.
// Engine is not safe for concurrent use; see package game for the serialized
// runtime around it.
type Engine struct {
	cats *catalogs.Catalogs
	tune tuning.Tuning
	rng  Rand

	st State
}

// New returns an engine holding a fresh state built from the catalogs.
// A nil rng is replaced by a time-seeded PCG source.
func New(cats *catalogs.Catalogs, tune tuning.Tuning, rng Rand) *Engine {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>17|1))
	}
	e := &Engine{cats: cats, tune: tune, rng: rng}
	e.st = e.freshState()
	return e
}

func (e *Engine) Catalogs() *catalogs.Catalogs { return e.cats }
func (e *Engine) Tuning() tuning.Tuning        { return e.tune }

// State returns a deep copy of the current state.
func (e *Engine) State() State { return e.st.Clone() }

func (e *Engine) freshState() State {
	st := State{
		ClickPower:         e.tune.StartingClickPower,
		PrestigeMultiplier: 1,
		CostMultiplier:     1,
		Settings:           Settings{Sound: true, AutoSave: true},
		Upgrades:           make(map[catalogs.Category][]UpgradeState, 3),
	}
	st.Businesses = make([]BusinessState, 0, len(e.cats.Businesses.Defs))
	for _, def := range e.cats.Businesses.Defs {
		st.Businesses = append(st.Businesses, BusinessState{
			ID:          def.ID,
			CurrentCost: e.costAt(def, 0),
			BaseIncome:  def.BaseIncome,
		})
	}
	for _, cat := range catalogs.Categories() {
		defs := e.cats.Upgrades.ByCategory[cat]
		list := make([]UpgradeState, 0, len(defs))
		for _, u := range defs {
			list = append(list, UpgradeState{ID: u.ID})
		}
		st.Upgrades[cat] = list
	}
	return st
}

// costAt is ceil(baseCost * growth^owned).
func (e *Engine) costAt(def catalogs.BusinessDef, owned int) float64 {
	return math.Ceil(def.BaseCost * math.Pow(e.tune.CostGrowth, float64(owned)))
}

func (e *Engine) credit(amount float64) {
	e.st.Coins += amount
	e.st.TotalCoinsEarned += amount
}

// Click earns ClickPower coins, doubled on a lucky roll once the lucky-click
// flag is set. It returns the amount earned.
func (e *Engine) Click() float64 {
	earned := e.st.ClickPower
	if e.st.LuckyClick && e.rng.Float64() < e.tune.LuckyClickChance {
		earned *= e.tune.LuckyClickMultiplier
	}
	e.credit(earned)
	return earned
}

// Tick credits elapsedSeconds of passive income.
func (e *Engine) Tick(elapsedSeconds float64) {
	if elapsedSeconds <= 0 || e.st.IncomePerSecond <= 0 {
		return
	}
	e.credit(e.st.IncomePerSecond * elapsedSeconds)
}

// BuyBusiness buys one unit of the business at catalog index. Locked
// businesses can be bought; the lock only affects presentation.
func (e *Engine) BuyBusiness(index int) bool {
	def, ok := e.cats.Business(index)
	if !ok || index >= len(e.st.Businesses) {
		return false
	}
	b := &e.st.Businesses[index]
	if e.st.Coins < b.CurrentCost {
		return false
	}
	e.st.Coins -= b.CurrentCost
	b.Owned++
	b.CurrentCost = e.costAt(def, b.Owned)
	e.RecomputeIncome()
	return true
}

// BuyUpgrade purchases a one-shot upgrade and applies its effect.
func (e *Engine) BuyUpgrade(cat catalogs.Category, id string) bool {
	def, ok := e.cats.Upgrade(cat, id)
	if !ok {
		return false
	}
	list := e.st.Upgrades[cat]
	idx := -1
	for i := range list {
		if list[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || list[idx].Purchased {
		return false
	}
	if e.st.Coins < def.Cost {
		return false
	}
	e.st.Coins -= def.Cost
	list[idx].Purchased = true
	e.applyEffect(def.Effect)
	e.RecomputeIncome()
	return true
}

// RecomputeIncome refreshes IncomePerSecond from owned businesses and the
// prestige multiplier, and returns it.
func (e *Engine) RecomputeIncome() float64 {
	total := 0.0
	for _, b := range e.st.Businesses {
		if b.Owned > 0 {
			total += b.BaseIncome * float64(b.Owned) * e.st.PrestigeMultiplier
		}
	}
	e.st.IncomePerSecond = total
	return total
}

// IsUnlocked reports whether the business at index is shown as purchasable:
// index 0 always is, later ones once the businesses before them reach the
// catalog's unlocked_at count.
func (e *Engine) IsUnlocked(index int) bool {
	def, ok := e.cats.Business(index)
	if !ok {
		return false
	}
	if index == 0 {
		return true
	}
	owned := 0
	for i := 0; i < index && i < len(e.st.Businesses); i++ {
		owned += e.st.Businesses[i].Owned
	}
	return owned >= def.UnlockedAt
}

// SetSettings replaces the player settings.
func (e *Engine) SetSettings(s Settings) {
	e.st.Settings = s
}

// Reset discards all progress, lifetime stats included.
func (e *Engine) Reset() {
	e.st = e.freshState()
}
