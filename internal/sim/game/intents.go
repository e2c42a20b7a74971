package game

import (
	"context"
	"strconv"

	"pixeltycoon/internal/persistence/snapshot"
	"pixeltycoon/internal/sim/catalogs"
	"pixeltycoon/internal/sim/economy"
)

type IntentKind string

const (
	IntentClick        IntentKind = "CLICK"
	IntentBuyBusiness  IntentKind = "BUY_BUSINESS"
	IntentBuyUpgrade   IntentKind = "BUY_UPGRADE"
	IntentPrestige     IntentKind = "PRESTIGE"
	IntentClaimOffline IntentKind = "CLAIM_OFFLINE"
	IntentSetSettings  IntentKind = "SET_SETTINGS"
	IntentView         IntentKind = "VIEW"
	IntentExport       IntentKind = "EXPORT"
	IntentImport       IntentKind = "IMPORT"
	IntentReset        IntentKind = "RESET"
)

type Intent struct {
	Kind      IntentKind
	Index     int
	Category  catalogs.Category
	UpgradeID string
	Settings  economy.Settings
	Save      *snapshot.SaveV1
}

// Result is the loop's answer to one intent. OK=false with a nil Err means the
// intent was a rule no-op (unaffordable, already purchased, below the prestige
// requirement). Err is only set for rejected imports.
type Result struct {
	OK     bool
	Earned float64
	Cue    bool
	Err    error
	Save   *snapshot.SaveV1
	View   economy.View
}

func (g *Game) apply(in Intent) Result {
	var r Result
	target := ""

	switch in.Kind {
	case IntentClick:
		r.Earned = g.eng.Click()
		r.OK = true
		r.Cue = g.eng.Cue(economy.CueClick)
	case IntentBuyBusiness:
		target = strconv.Itoa(in.Index)
		r.OK = g.eng.BuyBusiness(in.Index)
		r.Cue = r.OK && g.eng.Cue(economy.CuePurchase)
	case IntentBuyUpgrade:
		target = string(in.Category) + "/" + in.UpgradeID
		r.OK = g.eng.BuyUpgrade(in.Category, in.UpgradeID)
		r.Cue = r.OK && g.eng.Cue(economy.CuePurchase)
	case IntentPrestige:
		r.OK = g.eng.Prestige()
		r.Cue = r.OK && g.eng.Cue(economy.CuePrestige)
	case IntentClaimOffline:
		r.Earned = g.eng.ClaimOfflineEarnings()
		r.OK = r.Earned > 0
	case IntentSetSettings:
		g.eng.SetSettings(in.Settings)
		r.OK = true
	case IntentView:
		r.OK = true
	case IntentExport:
		s := g.eng.ExportSave(g.clock.Now())
		r.Save = &s
		r.OK = true
	case IntentImport:
		if in.Save == nil {
			r.Err = snapshot.ErrMalformed
			break
		}
		if err := g.eng.ImportSave(*in.Save, g.clock.Now()); err != nil {
			r.Err = err
			break
		}
		r.OK = true
		g.checkpoint()
	case IntentReset:
		g.eng.Reset()
		r.OK = true
		g.checkpoint()
	}

	r.View = g.eng.View()
	if in.Kind != IntentView && in.Kind != IntentClick {
		g.writeAudit(in.Kind, target, r)
	}
	return r
}

func (g *Game) writeAudit(kind IntentKind, target string, r Result) {
	if g.audit == nil {
		return
	}
	st := r.View.State
	err := g.audit.WriteAudit(AuditEntry{
		TimeMs: g.clock.Now().UnixMilli(),
		Action: string(kind),
		Target: target,
		OK:     r.OK,
		Earned: r.Earned,
		Coins:  st.Coins,
		Income: st.IncomePerSecond,
	})
	if err != nil {
		g.log.Printf("audit: %v", err)
	}
}

func (g *Game) Click(ctx context.Context) (Result, error) {
	return g.Do(ctx, Intent{Kind: IntentClick})
}

func (g *Game) BuyBusiness(ctx context.Context, index int) (Result, error) {
	return g.Do(ctx, Intent{Kind: IntentBuyBusiness, Index: index})
}

func (g *Game) BuyUpgrade(ctx context.Context, cat catalogs.Category, id string) (Result, error) {
	return g.Do(ctx, Intent{Kind: IntentBuyUpgrade, Category: cat, UpgradeID: id})
}

func (g *Game) Prestige(ctx context.Context) (Result, error) {
	return g.Do(ctx, Intent{Kind: IntentPrestige})
}

func (g *Game) ClaimOffline(ctx context.Context) (Result, error) {
	return g.Do(ctx, Intent{Kind: IntentClaimOffline})
}

func (g *Game) SetSettings(ctx context.Context, s economy.Settings) (Result, error) {
	return g.Do(ctx, Intent{Kind: IntentSetSettings, Settings: s})
}

func (g *Game) View(ctx context.Context) (economy.View, error) {
	r, err := g.Do(ctx, Intent{Kind: IntentView})
	return r.View, err
}

func (g *Game) Export(ctx context.Context) (snapshot.SaveV1, error) {
	r, err := g.Do(ctx, Intent{Kind: IntentExport})
	if err != nil || r.Save == nil {
		return snapshot.SaveV1{}, err
	}
	return *r.Save, nil
}

// Import replaces the game with save. A rejected save returns an error
// wrapping snapshot.ErrMalformed and leaves the game unchanged.
func (g *Game) Import(ctx context.Context, save snapshot.SaveV1) (Result, error) {
	r, err := g.Do(ctx, Intent{Kind: IntentImport, Save: &save})
	if err != nil {
		return r, err
	}
	return r, r.Err
}

func (g *Game) Reset(ctx context.Context) (Result, error) {
	return g.Do(ctx, Intent{Kind: IntentReset})
}
