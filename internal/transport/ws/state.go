package ws

import (
	"pixeltycoon/internal/protocol"
	"pixeltycoon/internal/sim/catalogs"
	"pixeltycoon/internal/sim/economy"
)

// StateFromView builds the redraw message for a view. cats supplies display
// names and may be nil.
func StateFromView(v economy.View, cats *catalogs.Catalogs) protocol.StateMsg {
	st := v.State
	msg := protocol.StateMsg{
		Type:                protocol.TypeState,
		ProtocolVersion:     protocol.Version,
		Coins:               st.Coins,
		CoinsText:           protocol.FormatCoins(st.Coins),
		ClickPower:          st.ClickPower,
		IncomePerSecond:     st.IncomePerSecond,
		IncomeText:          protocol.FormatCoins(st.IncomePerSecond),
		PrestigeTokens:      st.PrestigeTokens,
		PrestigeCount:       st.PrestigeCount,
		PrestigeMultiplier:  st.PrestigeMultiplier,
		PrestigeRequirement: v.PrestigeRequirement,
		CanPrestige:         v.CanPrestige,
		Gems:                st.Gems,
		TotalCoinsEarned:    st.TotalCoinsEarned,
		OfflineEarnings:     st.OfflineEarnings,
		Settings: protocol.SettingsPayload{
			Sound:    st.Settings.Sound,
			Music:    st.Settings.Music,
			AutoSave: st.Settings.AutoSave,
		},
		Upgrades: make(map[string][]protocol.UpgradeView, len(st.Upgrades)),
	}

	msg.Businesses = make([]protocol.BusinessView, 0, len(st.Businesses))
	for i, b := range st.Businesses {
		bv := protocol.BusinessView{
			ID:         b.ID,
			Owned:      b.Owned,
			Cost:       b.CurrentCost,
			CostText:   protocol.FormatCoins(b.CurrentCost),
			Income:     b.BaseIncome * float64(b.Owned) * st.PrestigeMultiplier,
			Affordable: st.Coins >= b.CurrentCost,
		}
		if i < len(v.Unlocked) {
			bv.Unlocked = v.Unlocked[i]
		}
		if def, ok := cats.Business(i); ok {
			bv.Name = def.Name
			bv.Emoji = def.Emoji
		}
		msg.Businesses = append(msg.Businesses, bv)
	}

	for cat, list := range st.Upgrades {
		views := make([]protocol.UpgradeView, 0, len(list))
		for _, u := range list {
			uv := protocol.UpgradeView{ID: u.ID, Purchased: u.Purchased}
			if def, ok := cats.Upgrade(cat, u.ID); ok {
				uv.Name = def.Name
				uv.Description = def.Description
				uv.Cost = def.Cost
				uv.CostText = protocol.FormatCoins(def.Cost)
				uv.Affordable = !u.Purchased && st.Coins >= def.Cost
			}
			views = append(views, uv)
		}
		msg.Upgrades[string(cat)] = views
	}
	return msg
}
