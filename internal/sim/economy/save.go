package economy

import (
	"fmt"
	"math"
	"time"

	"pixeltycoon/internal/persistence/snapshot"
	"pixeltycoon/internal/sim/catalogs"
)

// ExportSave stamps LastSaveTime with now and returns the serialized state.
// Catalog names and costs are included so saves read like the browser build's.
func (e *Engine) ExportSave(now time.Time) snapshot.SaveV1 {
	e.st.LastSaveTime = now
	st := &e.st

	s := snapshot.SaveV1{
		Version:            snapshot.Version,
		Coins:              ptr(st.Coins),
		ClickPower:         ptr(st.ClickPower),
		IncomePerSecond:    ptr(st.IncomePerSecond),
		PrestigeTokens:     ptr(st.PrestigeTokens),
		PrestigeCount:      ptr(st.PrestigeCount),
		PrestigeMultiplier: ptr(st.PrestigeMultiplier),
		Gems:               ptr(st.Gems),
		TotalCoinsEarned:   ptr(st.TotalCoinsEarned),
		LastSaveTime:       ptr(now.UnixMilli()),
		OfflineEarnings:    ptr(st.OfflineEarnings),
		Settings: &snapshot.SettingsV1{
			Sound:    st.Settings.Sound,
			Music:    st.Settings.Music,
			AutoSave: st.Settings.AutoSave,
		},
		CostMultiplier:   ptr(st.CostMultiplier),
		LuckyChance:      ptr(st.LuckyClick),
		TimeWarpUnlocked: ptr(st.TimedBonus),
	}

	s.Businesses = make([]snapshot.BusinessV1, 0, len(st.Businesses))
	for i, b := range st.Businesses {
		def, _ := e.cats.Business(i)
		s.Businesses = append(s.Businesses, snapshot.BusinessV1{
			ID:          b.ID,
			Name:        def.Name,
			Emoji:       def.Emoji,
			BaseCost:    def.BaseCost,
			BaseIncome:  ptr(b.BaseIncome),
			UnlockedAt:  def.UnlockedAt,
			Owned:       b.Owned,
			CurrentCost: b.CurrentCost,
		})
	}

	ups := &snapshot.UpgradesV1{}
	for _, cat := range catalogs.Categories() {
		var list []snapshot.UpgradeV1
		for _, u := range st.Upgrades[cat] {
			def, _ := e.cats.Upgrade(cat, u.ID)
			list = append(list, snapshot.UpgradeV1{
				ID:          u.ID,
				Name:        def.Name,
				Description: def.Description,
				Cost:        def.Cost,
				Purchased:   u.Purchased,
			})
		}
		if list == nil {
			list = []snapshot.UpgradeV1{}
		}
		switch cat {
		case catalogs.CategoryClick:
			ups.Click = list
		case catalogs.CategoryBusiness:
			ups.Business = list
		case catalogs.CategorySpecial:
			ups.Special = list
		}
	}
	s.Upgrades = ups
	return s
}

// ImportSave replaces the live state with save merged over a fresh state, then
// computes offline earnings up to now, on top of any the save still had
// pending. Fields absent from save keep their
// fresh defaults. Business and upgrade entries are matched to the catalog by
// ID; entries the catalog does not know are ignored. Derived fields (current
// costs, income per second, prestige multiplier) are recomputed rather than
// trusted. On error the live state is left untouched.
func (e *Engine) ImportSave(save snapshot.SaveV1, now time.Time) error {
	if save.Version != 0 && save.Version != snapshot.Version {
		return fmt.Errorf("%w: unsupported save version %d", snapshot.ErrMalformed, save.Version)
	}

	next := &Engine{cats: e.cats, tune: e.tune, rng: e.rng}
	next.st = next.freshState()
	st := &next.st

	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&st.Coins, save.Coins)
	setF(&st.ClickPower, save.ClickPower)
	setF(&st.Gems, save.Gems)
	setF(&st.TotalCoinsEarned, save.TotalCoinsEarned)
	setF(&st.CostMultiplier, save.CostMultiplier)
	if save.PrestigeTokens != nil {
		st.PrestigeTokens = *save.PrestigeTokens
	}
	if save.PrestigeCount != nil {
		st.PrestigeCount = *save.PrestigeCount
	}
	if save.LastSaveTime != nil {
		st.LastSaveTime = time.UnixMilli(*save.LastSaveTime)
	}
	if save.Settings != nil {
		st.Settings = Settings{
			Sound:    save.Settings.Sound,
			Music:    save.Settings.Music,
			AutoSave: save.Settings.AutoSave,
		}
	}
	if save.LuckyChance != nil {
		st.LuckyClick = *save.LuckyChance
	}
	if save.TimeWarpUnlocked != nil {
		st.TimedBonus = *save.TimeWarpUnlocked
	}

	if st.Coins < 0 || st.ClickPower <= 0 || st.PrestigeTokens < 0 || st.PrestigeCount < 0 {
		return fmt.Errorf("%w: negative balance or non-positive click power", snapshot.ErrMalformed)
	}

	for _, b := range save.Businesses {
		if b.ID < 0 || b.ID >= len(st.Businesses) {
			continue
		}
		if b.Owned < 0 {
			return fmt.Errorf("%w: business %d owned %d", snapshot.ErrMalformed, b.ID, b.Owned)
		}
		def, _ := e.cats.Business(b.ID)
		bs := &st.Businesses[b.ID]
		bs.Owned = b.Owned
		bs.CurrentCost = next.costAt(def, b.Owned)
		if b.BaseIncome != nil && *b.BaseIncome > 0 {
			bs.BaseIncome = *b.BaseIncome
		}
	}

	if save.Upgrades != nil {
		groups := map[catalogs.Category][]snapshot.UpgradeV1{
			catalogs.CategoryClick:    save.Upgrades.Click,
			catalogs.CategoryBusiness: save.Upgrades.Business,
			catalogs.CategorySpecial:  save.Upgrades.Special,
		}
		for cat, saved := range groups {
			list := st.Upgrades[cat]
			for _, u := range saved {
				for i := range list {
					if list[i].ID != u.ID {
						continue
					}
					list[i].Purchased = u.Purchased
					// One-shot flags follow their purchased upgrades.
					if u.Purchased {
						if def, ok := e.cats.Upgrade(cat, u.ID); ok {
							switch def.Effect.Kind {
							case catalogs.EffectEnableLuckyClick:
								st.LuckyClick = true
							case catalogs.EffectEnableTimedBonus:
								st.TimedBonus = true
							}
						}
					}
				}
			}
		}
	}

	st.PrestigeMultiplier = next.multiplierFor(st.PrestigeTokens)
	next.RecomputeIncome()
	next.CatchUp(now)
	// Earnings left unclaimed last session stay pending on top of the new gap.
	if save.OfflineEarnings != nil && *save.OfflineEarnings > 0 {
		st.OfflineEarnings += *save.OfflineEarnings
	}

	// A non-finite number cannot be encoded, so accepting one would make
	// every later checkpoint fail.
	if !st.finite() {
		return fmt.Errorf("%w: value out of range", snapshot.ErrMalformed)
	}

	e.st = next.st
	return nil
}

// Checkpoint is ExportSave for callers that only need the bytes.
func (e *Engine) Checkpoint(now time.Time) ([]byte, error) {
	return snapshot.Encode(e.ExportSave(now))
}

// Restore decodes raw, validates it and imports it.
func (e *Engine) Restore(raw []byte, now time.Time) error {
	save, err := snapshot.Decode(raw)
	if err != nil {
		return err
	}
	return e.ImportSave(save, now)
}

func (st *State) finite() bool {
	vals := []float64{
		st.Coins, st.ClickPower, st.IncomePerSecond, st.PrestigeMultiplier, st.Gems,
		st.TotalCoinsEarned, st.OfflineEarnings, st.CostMultiplier,
	}
	for _, b := range st.Businesses {
		vals = append(vals, b.CurrentCost, b.BaseIncome)
	}
	for _, v := range vals {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

func ptr[T any](v T) *T { return &v }
