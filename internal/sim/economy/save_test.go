package economy

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"pixeltycoon/internal/persistence/snapshot"
	"pixeltycoon/internal/sim/catalogs"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestOffline_ScenarioD(t *testing.T) {
	e := newTestEngine(t, nil)
	e.st.Coins = 1e9
	for i := 0; i < 10; i++ {
		e.BuyBusiness(1)
	}
	e.st.Businesses[1].BaseIncome = 10 // 10 owned * 10 = 100/s
	if got := e.RecomputeIncome(); got != 100 {
		t.Fatalf("income=%v want 100", got)
	}

	e.st.LastSaveTime = t0
	if got := e.CatchUp(t0.Add(time.Hour)); got != 360_000 {
		t.Fatalf("1h offline=%v want 360000", got)
	}
	if got := e.CatchUp(t0.Add(50 * time.Hour)); got != 4_320_000 {
		t.Fatalf("50h offline=%v want capped 4320000", got)
	}
	if got := e.CatchUp(t0.Add(-time.Hour)); got != 0 {
		t.Fatalf("clock skew earned %v", got)
	}
}

func TestClaimOfflineEarnings(t *testing.T) {
	e := newTestEngine(t, nil)
	e.st.OfflineEarnings = 250
	if got := e.ClaimOfflineEarnings(); got != 250 {
		t.Fatalf("claimed %v", got)
	}
	if e.st.Coins != 250 || e.st.TotalCoinsEarned != 250 || e.st.OfflineEarnings != 0 {
		t.Fatalf("after claim: %+v", e.st)
	}
	if got := e.ClaimOfflineEarnings(); got != 0 || e.st.Coins != 250 {
		t.Fatalf("second claim credited %v", got)
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	e := newTestEngine(t, nil)
	e.st.Coins = 5e6
	e.BuyBusiness(0)
	e.BuyBusiness(0)
	e.BuyBusiness(3)
	e.BuyUpgrade(catalogs.CategoryClick, "tripleClick")
	e.BuyUpgrade(catalogs.CategoryBusiness, "managerTraining")
	e.BuyUpgrade(catalogs.CategoryBusiness, "bulkBuying")
	e.BuyUpgrade(catalogs.CategorySpecial, "luckyCoin")
	e.st.Gems = 3
	e.SetSettings(Settings{Sound: false, Music: true, AutoSave: false})

	save := e.ExportSave(t0)
	raw, err := snapshot.Encode(save)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := snapshot.Decode(raw)
	if err != nil {
		t.Fatalf("decode own export: %v", err)
	}

	back := newTestEngine(t, nil)
	if err := back.ImportSave(decoded, t0); err != nil {
		t.Fatalf("import: %v", err)
	}

	want, got := e.State(), back.State()
	want.LastSaveTime, got.LastSaveTime = time.Time{}, time.Time{}
	want.OfflineEarnings, got.OfflineEarnings = 0, 0
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\n got %+v", want, got)
	}
}

func TestImport_MergesOverDefaults(t *testing.T) {
	e := newTestEngine(t, nil)
	coins := 42.0
	owned := snapshot.BusinessV1{ID: 0, Owned: 3}
	unknown := snapshot.BusinessV1{ID: 77, Owned: 9}
	save := snapshot.SaveV1{
		Coins:      &coins,
		Businesses: []snapshot.BusinessV1{owned, unknown},
		Upgrades: &snapshot.UpgradesV1{
			Special: []snapshot.UpgradeV1{{ID: "luckyCoin", Purchased: true}, {ID: "retired", Purchased: true}},
		},
	}
	if err := e.ImportSave(save, t0); err != nil {
		t.Fatalf("import: %v", err)
	}
	st := e.State()
	if st.Coins != 42 || st.ClickPower != 1 || st.PrestigeMultiplier != 1 {
		t.Fatalf("merged scalars: %+v", st)
	}
	if len(st.Businesses) != 10 {
		t.Fatalf("business list must keep catalog length, got %d", len(st.Businesses))
	}
	if st.Businesses[0].Owned != 3 || st.Businesses[0].CurrentCost != 34 {
		t.Fatalf("business 0: %+v want owned 3 cost ceil(10*1.5^3)=34", st.Businesses[0])
	}
	if st.IncomePerSecond != 3 {
		t.Fatalf("income must be re-derived: %v", st.IncomePerSecond)
	}
	if !st.LuckyClick {
		t.Fatalf("lucky flag should follow the purchased upgrade")
	}
	if !st.Settings.Sound || !st.Settings.AutoSave {
		t.Fatalf("absent settings must keep defaults: %+v", st.Settings)
	}
}

func TestImport_DerivesMultiplierAndOffline(t *testing.T) {
	e := newTestEngine(t, nil)
	tokens := 5
	bogus := 9.0
	last := t0.Add(-time.Hour).UnixMilli()
	save := snapshot.SaveV1{
		PrestigeTokens:     &tokens,
		PrestigeMultiplier: &bogus,
		IncomePerSecond:    &bogus,
		LastSaveTime:       &last,
		Businesses:         []snapshot.BusinessV1{{ID: 0, Owned: 100}},
	}
	if err := e.ImportSave(save, t0); err != nil {
		t.Fatalf("import: %v", err)
	}
	st := e.State()
	if st.PrestigeMultiplier != 1.05 {
		t.Fatalf("multiplier=%v want 1.05", st.PrestigeMultiplier)
	}
	if st.IncomePerSecond != 100*1.05 {
		t.Fatalf("income=%v", st.IncomePerSecond)
	}
	if st.OfflineEarnings != st.IncomePerSecond*3600 {
		t.Fatalf("offline=%v want %v", st.OfflineEarnings, st.IncomePerSecond*3600)
	}
	if st.Coins != 0 {
		t.Fatalf("offline earnings must wait for a claim, coins=%v", st.Coins)
	}
}

func TestImport_ErrorLeavesStateUntouched(t *testing.T) {
	e := newTestEngine(t, nil)
	e.st.Coins = 10
	e.BuyBusiness(0)
	before := e.State()

	neg := snapshot.SaveV1{Businesses: []snapshot.BusinessV1{{ID: 0, Owned: -2}}}
	if err := e.ImportSave(neg, t0); !errors.Is(err, snapshot.ErrMalformed) {
		t.Fatalf("err=%v want ErrMalformed", err)
	}
	if err := e.ImportSave(snapshot.SaveV1{Version: 4}, t0); !errors.Is(err, snapshot.ErrMalformed) {
		t.Fatalf("err=%v want ErrMalformed", err)
	}
	if err := e.Restore([]byte(`{"coins": "lots"}`), t0); !errors.Is(err, snapshot.ErrMalformed) {
		t.Fatalf("err=%v want ErrMalformed", err)
	}
	if !reflect.DeepEqual(before, e.State()) {
		t.Fatalf("failed import mutated state")
	}
}

func TestImport_RejectsOverflowingValues(t *testing.T) {
	e := newTestEngine(t, nil)
	e.st.Coins = 10
	e.BuyBusiness(0)
	before := e.State()

	raw := []byte(`{"coins":5,"businesses":[{"id":0,"owned":2000}]}`)
	save, err := snapshot.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := e.ImportSave(save, t0); !errors.Is(err, snapshot.ErrMalformed) {
		t.Fatalf("err=%v want ErrMalformed", err)
	}
	if !reflect.DeepEqual(before, e.State()) {
		t.Fatalf("rejected import mutated state")
	}
	if _, err := e.Checkpoint(t0); err != nil {
		t.Fatalf("checkpoint after rejected import: %v", err)
	}
}

func TestImport_KeepsUnclaimedOffline(t *testing.T) {
	e := newTestEngine(t, nil)
	pending := 500.0
	last := t0.Add(-time.Hour).UnixMilli()
	save := snapshot.SaveV1{
		OfflineEarnings: &pending,
		LastSaveTime:    &last,
		Businesses:      []snapshot.BusinessV1{{ID: 0, Owned: 2}},
	}
	if err := e.ImportSave(save, t0); err != nil {
		t.Fatalf("import: %v", err)
	}
	if got := e.State().OfflineEarnings; got != 500+2*3600 {
		t.Fatalf("offline=%v want %v", got, 500+2*3600)
	}
	if got := e.ClaimOfflineEarnings(); got != 500+2*3600 {
		t.Fatalf("claimed=%v", got)
	}
}

func TestCheckpointStampsLastSave(t *testing.T) {
	e := newTestEngine(t, nil)
	raw, err := e.Checkpoint(t0)
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if !e.st.LastSaveTime.Equal(t0) {
		t.Fatalf("lastSaveTime=%v", e.st.LastSaveTime)
	}
	s, err := snapshot.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.LastSaveTime == nil || *s.LastSaveTime != t0.UnixMilli() {
		t.Fatalf("saved lastSaveTime=%v", s.LastSaveTime)
	}
}
